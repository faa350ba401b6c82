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

package services

import (
	"context"

	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
)

type BlockReader interface {
	BlockByNumber(ctx context.Context, tx kv.Getter, number uint64) (*types.Block, error)
	BlockByHash(ctx context.Context, tx kv.Getter, hash types.Hash) (*types.Block, error)
	CurrentBlock(tx kv.Getter) (*types.Block, error)
}

type HeaderReader interface {
	Header(ctx context.Context, tx kv.Getter, hash types.Hash, blockNum uint64) (*types.Header, error)
	HeaderByNumber(ctx context.Context, tx kv.Getter, blockNum uint64) (*types.Header, error)
	HeaderByHash(ctx context.Context, tx kv.Getter, hash types.Hash) (*types.Header, error)
}

type CanonicalReader interface {
	CanonicalHash(ctx context.Context, tx kv.Getter, blockNum uint64) (types.Hash, error)
}

type BodyReader interface {
	Body(ctx context.Context, tx kv.Getter, hash types.Hash, blockNum uint64) (*types.Body, error)
	HasBody(ctx context.Context, tx kv.Getter, hash types.Hash, blockNum uint64) (bool, error)
}

type ReceiptReader interface {
	Receipts(ctx context.Context, tx kv.Getter, blockNum uint64) (types.Receipts, error)
}

type HeaderAndCanonicalReader interface {
	HeaderReader
	CanonicalReader
}

type FullBlockReader interface {
	BlockReader
	BodyReader
	HeaderReader
	ReceiptReader
	CanonicalReader
}
