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
	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/rpc"
	"github.com/erigontech/erigon-launch/rpc/rpchelper"
)

// APIList describes the list of available RPC apis
func APIList(spec *chain.Spec, blocks rpchelper.ChainReader, backend rpchelper.ApiBackend, pool rpchelper.TxPoolReader) []rpc.API {
	return []rpc.API{
		{
			Namespace: "eth",
			Public:    true,
			Service:   EthAPI(NewEthAPI(spec, blocks)),
			Version:   "1.0",
		},
		{
			Namespace: "net",
			Public:    true,
			Service:   NetAPI(NewNetAPIImpl(backend)),
			Version:   "1.0",
		},
		{
			Namespace: "web3",
			Public:    true,
			Service:   Web3API(NewWeb3APIImpl(backend)),
			Version:   "1.0",
		},
		{
			Namespace: "txpool",
			Public:    true,
			Service:   TxPoolAPI(NewTxPoolAPI(pool)),
			Version:   "1.0",
		},
	}
}
