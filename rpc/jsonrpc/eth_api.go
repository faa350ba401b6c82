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
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/rpc"
	"github.com/erigontech/erigon-launch/rpc/rpchelper"
)

// NotAvailableChainData is returned by methods that need a backend the daemon was started without.
const NotAvailableChainData = "the function %s is not available, the node runs without a network backend"

var errNoHead = errors.New("no canonical head yet")

// EthAPI is a collection of functions that are exposed in the eth namespace
type EthAPI interface {
	ChainId(ctx context.Context) (hexutil.Uint64, error)
	BlockNumber(ctx context.Context) (hexutil.Uint64, error)
	GetBlockByNumber(ctx context.Context, number rpc.BlockNumber, fullTx bool) (map[string]interface{}, error)
	GetBlockByHash(ctx context.Context, hash types.Hash, fullTx bool) (map[string]interface{}, error)
	GetBlockTransactionCountByNumber(ctx context.Context, number rpc.BlockNumber) (*hexutil.Uint, error)
}

// APIImpl is implementation of the EthAPI interface backed by the node's blockchain provider
type APIImpl struct {
	chain  *chain.Spec
	blocks rpchelper.ChainReader
}

// NewEthAPI returns APIImpl instance
func NewEthAPI(spec *chain.Spec, blocks rpchelper.ChainReader) *APIImpl {
	return &APIImpl{chain: spec, blocks: blocks}
}

// ChainId implements eth_chainId. Returns the current ethereum chainId.
func (api *APIImpl) ChainId(_ context.Context) (hexutil.Uint64, error) {
	return hexutil.Uint64(api.chain.ChainID()), nil
}

// BlockNumber implements eth_blockNumber. Returns the block number of most recent block.
func (api *APIImpl) BlockNumber(_ context.Context) (hexutil.Uint64, error) {
	head := api.blocks.CanonicalHead()
	if head == nil {
		return 0, errNoHead
	}
	return hexutil.Uint64(head.Number), nil
}
