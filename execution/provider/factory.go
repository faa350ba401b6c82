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

package provider

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

var ErrIncompatibleChain = errors.New("storage is incompatible with configured chain")

// Factory hands out read and write access over a chain store for one chain.
type Factory struct {
	db     kv.RwDB
	spec   *chain.Spec
	reader *BlockReader
	logger log.Logger
}

// NewFactory fails with ErrIncompatibleChain when the store was initialised
// for a chain with another chain id.
func NewFactory(ctx context.Context, db kv.RwDB, spec *chain.Spec, logger log.Logger) (*Factory, error) {
	err := db.View(ctx, func(tx kv.Tx) error {
		genesis, err := rawdb.ReadCanonicalHash(tx, 0)
		if err != nil {
			return err
		}
		if genesis == (types.Hash{}) {
			return nil
		}
		stored, err := rawdb.ReadChainConfig(tx, genesis)
		if err != nil {
			return err
		}
		if stored != nil && stored.ChainID != spec.ChainID() {
			return fmt.Errorf("%w: stored chain id %d (%s), configured %d (%s)",
				ErrIncompatibleChain, stored.ChainID, stored.ChainName, spec.ChainID(), spec.Name())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Factory{db: db, spec: spec, reader: NewBlockReader(), logger: logger}, nil
}

func (f *Factory) DB() kv.RwDB               { return f.db }
func (f *Factory) ChainSpec() *chain.Spec    { return f.spec }
func (f *Factory) BlockReader() *BlockReader { return f.reader }
func (f *Factory) Logger() log.Logger        { return f.logger }

// StageCheckpoint returns the persisted progress of a sync stage.
func (f *Factory) StageCheckpoint(ctx context.Context, stage stages.SyncStage) (progress uint64, err error) {
	err = f.db.View(ctx, func(tx kv.Tx) error {
		progress, err = stages.GetStageProgress(tx, stage)
		return err
	})
	return progress, err
}

// LookupHead returns the head of the canonical chain as far as the Finish
// stage got.
func (f *Factory) LookupHead(ctx context.Context) (head types.Head, err error) {
	err = f.db.View(ctx, func(tx kv.Tx) error {
		number, err := stages.GetStageProgress(tx, stages.Finish)
		if err != nil {
			return err
		}
		header, err := f.reader.HeaderByNumber(ctx, tx, number)
		if err != nil {
			return err
		}
		if header == nil {
			return fmt.Errorf("no canonical header for block %d", number)
		}
		head = types.HeadFromHeader(header)
		return nil
	})
	return head, err
}
