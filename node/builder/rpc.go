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

package builder

import (
	"fmt"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/rpc"
	"github.com/erigontech/erigon-launch/rpc/jsonrpc"
	"github.com/erigontech/erigon-launch/rpc/rpchelper"
)

// LaunchRpcServers registers the default API modules and those of the RPC
// add-on, then starts the public and the authenticated servers.
func LaunchRpcServers[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor](
	adapter *NodeAdapter[DB, Pool, Evm, Exec],
	addOns AddOns[DB, Pool, Evm, Exec],
	spec *chain.Spec,
	cfg rpc.Config,
	backend rpchelper.ApiBackend,
	engineApis []rpc.API,
	jwtSecret []byte,
	logger log.Logger,
) (*rpc.ServerHandles, *rpc.Registry, error) {
	registry := rpc.NewRegistry(jsonrpc.APIList(spec, adapter.Provider, backend, adapter.Components.Pool)...)
	if err := addOns.ExtendRpcModules(registry, adapter); err != nil {
		return nil, nil, fmt.Errorf("extend rpc modules: %w", err)
	}
	handles, err := rpc.LaunchServers(cfg, registry, engineApis, jwtSecret, logger)
	if err != nil {
		return nil, nil, err
	}
	return handles, registry, nil
}
