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

package types

import "github.com/holiman/uint256"

// Head describes the tip of the local canonical chain.
type Head struct {
	Number     uint64
	Hash       Hash
	ParentHash Hash
	Timestamp  uint64
	Difficulty *uint256.Int
}

func HeadFromHeader(h *Header) Head {
	return Head{
		Number:     h.Number,
		Hash:       h.Hash(),
		ParentHash: h.ParentHash,
		Timestamp:  h.Time,
		Difficulty: h.Difficulty,
	}
}
