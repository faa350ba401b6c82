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

package jsonrpc

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erigontech/erigon-launch/rpc/rpchelper"
)

// TxPoolAPI the interface for the txpool_ RPC commands
type TxPoolAPI interface {
	Status(ctx context.Context) (map[string]hexutil.Uint, error)
}

// TxPoolAPIImpl data structure to store things needed for txpool_ commands
type TxPoolAPIImpl struct {
	pool rpchelper.TxPoolReader
}

func NewTxPoolAPI(pool rpchelper.TxPoolReader) *TxPoolAPIImpl {
	return &TxPoolAPIImpl{pool: pool}
}

// Status implements txpool_status. Returns the number of pending and queued transactions.
func (api *TxPoolAPIImpl) Status(_ context.Context) (map[string]hexutil.Uint, error) {
	pending, queued := api.pool.Status()
	return map[string]hexutil.Uint{
		"pending": hexutil.Uint(pending),
		"queued":  hexutil.Uint(queued),
	}, nil
}
