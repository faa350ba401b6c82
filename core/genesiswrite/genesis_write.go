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

package genesiswrite

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/db/rawdb"
	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/stagedsync/stages"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
)

var ErrGenesisMismatch = errors.New("genesis mismatch")

// GenesisMismatchError is raised when trying to overwrite an existing
// genesis block with an incompatible one.
type GenesisMismatchError struct {
	Stored, New types.Hash
}

func (e *GenesisMismatchError) Error() string {
	return fmt.Sprintf("database contains incompatible genesis (have %x, new %x)", e.Stored, e.New)
}

func (e *GenesisMismatchError) Unwrap() error { return ErrGenesisMismatch }

// CommitGenesisBlock writes the genesis block of spec if the store is empty.
// A store holding the same genesis is left untouched; a store holding a
// different genesis yields *GenesisMismatchError.
func CommitGenesisBlock(ctx context.Context, db kv.RwDB, spec *chain.Spec, logger log.Logger) (types.Hash, error) {
	var hash types.Hash
	err := db.Update(ctx, func(tx kv.RwTx) error {
		var err error
		hash, err = WriteGenesisBlock(tx, spec, logger)
		return err
	})
	return hash, err
}

func WriteGenesisBlock(tx kv.RwTx, spec *chain.Spec, logger log.Logger) (types.Hash, error) {
	want := spec.GenesisHash()
	stored, err := rawdb.ReadCanonicalHash(tx, 0)
	if err != nil {
		return types.Hash{}, err
	}
	if stored != (types.Hash{}) {
		if stored != want {
			return stored, &GenesisMismatchError{Stored: stored, New: want}
		}
		// Older databases may miss the config entry.
		cfg, err := rawdb.ReadChainConfig(tx, stored)
		if err != nil {
			return stored, err
		}
		if cfg == nil {
			logger.Warn("Found genesis block without chain config")
			if err := rawdb.WriteChainConfig(tx, stored, spec.Config); err != nil {
				return stored, err
			}
		}
		return stored, nil
	}

	logger.Info("Writing genesis block", "chain", spec.Name(), "hash", want)
	block := spec.Genesis.ToBlock()
	if err := rawdb.WriteBlock(tx, block); err != nil {
		return want, err
	}
	if err := rawdb.WriteCanonicalHash(tx, want, 0); err != nil {
		return want, err
	}
	if err := rawdb.WriteReceipts(tx, 0, nil); err != nil {
		return want, err
	}
	if err := rawdb.WriteHeadHeaderHash(tx, want); err != nil {
		return want, err
	}
	if err := rawdb.WriteHeadBlockHash(tx, want); err != nil {
		return want, err
	}
	for _, stage := range stages.AllStages {
		if err := stages.SaveStageProgress(tx, stage, 0); err != nil {
			return want, err
		}
	}
	if err := rawdb.WriteChainConfig(tx, want, spec.Config); err != nil {
		return want, err
	}
	return want, nil
}
