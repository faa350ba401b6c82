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

package rpchelper

import (
	"context"

	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/execution/types"
)

// ApiBackend - interface which must be used by API layer
// this is reason why all methods are accepting context and returning error
type ApiBackend interface {
	NetVersion(ctx context.Context) (uint64, error)
	NetPeerCount(ctx context.Context) (uint64, error)
	ClientVersion(ctx context.Context) (string, error)
}

// ChainReader is the read side the eth namespace needs.
type ChainReader interface {
	CanonicalHead() *types.Header
	LastForkchoiceState() (provider.ForkchoiceState, bool)
	HeaderByHash(ctx context.Context, hash types.Hash) (*types.Header, error)
	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)
	BlockByHash(ctx context.Context, hash types.Hash) (*types.Block, error)
}

// TxPoolReader is the read side the txpool namespace needs.
type TxPoolReader interface {
	Status() (pending, queued int)
}
