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
	"github.com/erigontech/erigon-launch/execution/exex"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/rpc"
)

// NodeHooks are observers called during launch.
type NodeHooks[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor] struct {
	// OnComponentInitialized sees the freshly built components. It cannot fail
	// the build.
	OnComponentInitialized func(NodeAdapter[DB, Pool, Evm, Exec])
	// OnNodeStarted runs once every service is up. An error fails the launch.
	OnNodeStarted func(*FullNode[DB, Pool, Evm, Exec]) error
}

func (h NodeHooks[DB, Pool, Evm, Exec]) componentInitialized(adapter NodeAdapter[DB, Pool, Evm, Exec]) {
	if h.OnComponentInitialized != nil {
		h.OnComponentInitialized(adapter)
	}
}

func (h NodeHooks[DB, Pool, Evm, Exec]) nodeStarted(node *FullNode[DB, Pool, Evm, Exec]) error {
	if h.OnNodeStarted == nil {
		return nil
	}
	return h.OnNodeStarted(node)
}

// RpcAddOn can register extra API modules before the servers start.
type RpcAddOn[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor] struct {
	ExtendRpcModules func(registry *rpc.Registry, adapter *NodeAdapter[DB, Pool, Evm, Exec]) error
}

func (r RpcAddOn[DB, Pool, Evm, Exec]) extend(registry *rpc.Registry, adapter *NodeAdapter[DB, Pool, Evm, Exec]) error {
	if r.ExtendRpcModules == nil {
		return nil
	}
	return r.ExtendRpcModules(registry, adapter)
}

// AddOns is everything installed on top of the components. The zero value
// installs nothing.
type AddOns[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor] struct {
	Hooks NodeHooks[DB, Pool, Evm, Exec]
	Rpc   RpcAddOn[DB, Pool, Evm, Exec]
	ExExs []exex.InstalledExEx
}

func (a AddOns[DB, Pool, Evm, Exec]) ComponentInitialized(adapter NodeAdapter[DB, Pool, Evm, Exec]) {
	a.Hooks.componentInitialized(adapter)
}

func (a AddOns[DB, Pool, Evm, Exec]) NodeStarted(node *FullNode[DB, Pool, Evm, Exec]) error {
	return a.Hooks.nodeStarted(node)
}

func (a AddOns[DB, Pool, Evm, Exec]) ExtendRpcModules(registry *rpc.Registry, adapter *NodeAdapter[DB, Pool, Evm, Exec]) error {
	return a.Rpc.extend(registry, adapter)
}
