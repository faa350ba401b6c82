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
	"context"

	"github.com/erigontech/erigon-launch/execution/exex"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/node/nodecfg"
	"github.com/erigontech/erigon-launch/rpc"
)

// NodeBuilder starts the declaration of a node: config and store.
type NodeBuilder[DB kv.RwDB] struct {
	Config *nodecfg.Config
	DB     DB
}

func NewNodeBuilder[DB kv.RwDB](config *nodecfg.Config, db DB) NodeBuilder[DB] {
	return NodeBuilder[DB]{Config: config, DB: db}
}

// DeclareComponents fixes the component types of the node.
func DeclareComponents[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor](
	b NodeBuilder[DB],
	components ComponentsBuilder[DB, Pool, Evm, Exec],
) *NodeBuilderWithComponents[DB, Pool, Evm, Exec] {
	return &NodeBuilderWithComponents[DB, Pool, Evm, Exec]{
		Config:            b.Config,
		DB:                b.DB,
		ComponentsBuilder: components,
	}
}

// NodeBuilderWithComponents is a fully declared node, ready to be launched.
type NodeBuilderWithComponents[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor] struct {
	Config            *nodecfg.Config
	DB                DB
	ComponentsBuilder ComponentsBuilder[DB, Pool, Evm, Exec]
	AddOns            AddOns[DB, Pool, Evm, Exec]
}

func (b *NodeBuilderWithComponents[DB, Pool, Evm, Exec]) InstallExEx(id string, launch exex.LaunchFunc) *NodeBuilderWithComponents[DB, Pool, Evm, Exec] {
	b.AddOns.ExExs = append(b.AddOns.ExExs, exex.InstalledExEx{ID: id, Launch: launch})
	return b
}

func (b *NodeBuilderWithComponents[DB, Pool, Evm, Exec]) OnComponentInitialized(fn func(NodeAdapter[DB, Pool, Evm, Exec])) *NodeBuilderWithComponents[DB, Pool, Evm, Exec] {
	b.AddOns.Hooks.OnComponentInitialized = fn
	return b
}

func (b *NodeBuilderWithComponents[DB, Pool, Evm, Exec]) OnNodeStarted(fn func(*FullNode[DB, Pool, Evm, Exec]) error) *NodeBuilderWithComponents[DB, Pool, Evm, Exec] {
	b.AddOns.Hooks.OnNodeStarted = fn
	return b
}

func (b *NodeBuilderWithComponents[DB, Pool, Evm, Exec]) ExtendRpcModules(fn func(*rpc.Registry, *NodeAdapter[DB, Pool, Evm, Exec]) error) *NodeBuilderWithComponents[DB, Pool, Evm, Exec] {
	b.AddOns.Rpc.ExtendRpcModules = fn
	return b
}

// Launcher turns a declared node into a running one.
type Launcher[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor] interface {
	LaunchNode(ctx context.Context, target *NodeBuilderWithComponents[DB, Pool, Evm, Exec]) (*NodeHandle[DB, Pool, Evm, Exec], error)
}

func (b *NodeBuilderWithComponents[DB, Pool, Evm, Exec]) Launch(ctx context.Context, launcher Launcher[DB, Pool, Evm, Exec]) (*NodeHandle[DB, Pool, Evm, Exec], error) {
	return launcher.LaunchNode(ctx, b)
}
