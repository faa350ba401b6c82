// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package kv

const (
	// block number (8 bytes, big endian) + hash -> encoded header
	Headers = "Header"
	// block number -> canonical hash
	HeaderCanonical = "CanonicalHeader"
	// hash -> block number
	HeaderNumber = "HeaderNumber"
	// block number + hash -> encoded body
	BlockBody = "BlockBody"
	// block number -> encoded receipts
	Receipts = "Receipt"

	// stage id -> block number
	SyncStageProgress = "SyncStage"
	// stage id -> block number up to which the stage is pruned
	SyncStagePrune = "SyncStagePrune"

	// genesis hash -> json encoded chain config
	ConfigTable = "Config"
	// misc database info (versions, prune mode, ...)
	DatabaseInfo = "DbInfo"

	// last finalized block number written to static files
	StaticFiles = "StaticFiles"
)

var (
	PruneHistory = []byte("pruneHistory")
	PruneBlocks  = []byte("pruneBlocks")
)

// ChaindataTables lists every table a chain database is created with.
var ChaindataTables = []string{
	Headers,
	HeaderCanonical,
	HeaderNumber,
	BlockBody,
	Receipts,
	SyncStageProgress,
	SyncStagePrune,
	ConfigTable,
	DatabaseInfo,
	StaticFiles,
}

func IsKnownTable(table string) bool {
	for _, t := range ChaindataTables {
		if t == table {
			return true
		}
	}
	return false
}
