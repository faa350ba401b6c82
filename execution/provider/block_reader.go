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
	"fmt"

	"github.com/erigontech/erigon-launch/db/rawdb"
	"github.com/erigontech/erigon-launch/execution/stagedsync/stages"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/turbo/services"
)

var _ services.FullBlockReader = (*BlockReader)(nil)

// BlockReader reads blocks straight from the chain tables.
type BlockReader struct{}

func NewBlockReader() *BlockReader { return &BlockReader{} }

func (r *BlockReader) CanonicalHash(_ context.Context, tx kv.Getter, blockNum uint64) (types.Hash, error) {
	return rawdb.ReadCanonicalHash(tx, blockNum)
}

func (r *BlockReader) Header(_ context.Context, tx kv.Getter, hash types.Hash, blockNum uint64) (*types.Header, error) {
	return rawdb.ReadHeader(tx, hash, blockNum)
}

func (r *BlockReader) HeaderByNumber(_ context.Context, tx kv.Getter, blockNum uint64) (*types.Header, error) {
	return rawdb.ReadHeaderByNumber(tx, blockNum)
}

func (r *BlockReader) HeaderByHash(_ context.Context, tx kv.Getter, hash types.Hash) (*types.Header, error) {
	number, err := rawdb.ReadHeaderNumber(tx, hash)
	if err != nil || number == nil {
		return nil, err
	}
	return rawdb.ReadHeader(tx, hash, *number)
}

func (r *BlockReader) Body(_ context.Context, tx kv.Getter, hash types.Hash, blockNum uint64) (*types.Body, error) {
	return rawdb.ReadBody(tx, hash, blockNum)
}

func (r *BlockReader) HasBody(_ context.Context, tx kv.Getter, hash types.Hash, blockNum uint64) (bool, error) {
	return rawdb.HasBody(tx, hash, blockNum)
}

func (r *BlockReader) Receipts(_ context.Context, tx kv.Getter, blockNum uint64) (types.Receipts, error) {
	return rawdb.ReadReceipts(tx, blockNum)
}

func (r *BlockReader) BlockByNumber(ctx context.Context, tx kv.Getter, number uint64) (*types.Block, error) {
	hash, err := r.CanonicalHash(ctx, tx, number)
	if err != nil {
		return nil, fmt.Errorf("failed ReadCanonicalHash: %w", err)
	}
	if hash == (types.Hash{}) {
		return nil, nil
	}
	return rawdb.ReadBlock(tx, hash, number)
}

func (r *BlockReader) BlockByHash(ctx context.Context, tx kv.Getter, hash types.Hash) (*types.Block, error) {
	number, err := rawdb.ReadHeaderNumber(tx, hash)
	if err != nil || number == nil {
		return nil, err
	}
	return rawdb.ReadBlock(tx, hash, *number)
}

// CurrentBlock returns the block the Finish stage reached.
func (r *BlockReader) CurrentBlock(tx kv.Getter) (*types.Block, error) {
	number, err := stages.GetStageProgress(tx, stages.Finish)
	if err != nil {
		return nil, err
	}
	return r.BlockByNumber(context.Background(), tx, number)
}
