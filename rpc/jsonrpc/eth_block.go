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
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/rpc"
	"github.com/erigontech/erigon-launch/rpc/ethapi"
)

// GetBlockByNumber implements eth_getBlockByNumber. Returns information about a block given the block's number.
func (api *APIImpl) GetBlockByNumber(ctx context.Context, number rpc.BlockNumber, fullTx bool) (map[string]interface{}, error) {
	b, err := api.blockByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	return ethapi.RPCMarshalBlock(b, true, fullTx), nil
}

// GetBlockByHash implements eth_getBlockByHash. Returns information about a block given the block's hash.
func (api *APIImpl) GetBlockByHash(ctx context.Context, hash types.Hash, fullTx bool) (map[string]interface{}, error) {
	b, err := api.blocks.BlockByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	return ethapi.RPCMarshalBlock(b, true, fullTx), nil
}

// GetBlockTransactionCountByNumber implements eth_getBlockTransactionCountByNumber. Returns the number of transactions in a block given the block's block number.
func (api *APIImpl) GetBlockTransactionCountByNumber(ctx context.Context, number rpc.BlockNumber) (*hexutil.Uint, error) {
	b, err := api.blockByNumber(ctx, number)
	if err != nil || b == nil {
		return nil, err
	}
	n := hexutil.Uint(len(b.Transactions()))
	return &n, nil
}

func (api *APIImpl) blockByNumber(ctx context.Context, number rpc.BlockNumber) (*types.Block, error) {
	switch number {
	case rpc.LatestBlockNumber, rpc.PendingBlockNumber:
		head := api.blocks.CanonicalHead()
		if head == nil {
			return nil, errNoHead
		}
		return api.blocks.BlockByNumber(ctx, head.Number)
	case rpc.SafeBlockNumber, rpc.FinalizedBlockNumber:
		state, ok := api.blocks.LastForkchoiceState()
		hash := state.Finalized
		if number == rpc.SafeBlockNumber {
			hash = state.Safe
		}
		if !ok || hash == (types.Hash{}) {
			return nil, fmt.Errorf("%s block not found", number)
		}
		return api.blocks.BlockByHash(ctx, hash)
	}
	if number < 0 {
		return nil, fmt.Errorf("invalid block number %d", number)
	}
	return api.blocks.BlockByNumber(ctx, uint64(number))
}
