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
	"github.com/erigontech/erigon-launch/ethdb/prune"
	"github.com/erigontech/erigon-launch/execution/builder"
	"github.com/erigontech/erigon-launch/execution/engine"
	"github.com/erigontech/erigon-launch/execution/exex"
	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/node/nodecfg"
	"github.com/erigontech/erigon-launch/node/nodecfg/datadir"
	"github.com/erigontech/erigon-launch/node/tasks"
	"github.com/erigontech/erigon-launch/rpc"
	"github.com/erigontech/erigon-launch/turbo/snapshotsync/producer"
)

// NodeServices are the services started by the launcher on top of the
// components.
type NodeServices struct {
	Engine      *engine.Handle
	Pruner      *prune.Pruner
	ExEx        *exex.ManagerHandle
	StaticFiles *producer.Producer
	RpcHandles  *rpc.ServerHandles
	RpcRegistry *rpc.Registry
}

// FullNode is a launched node. It does not change after launch.
type FullNode[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor] struct {
	db             DB
	evmConfig      Evm
	blockExecutor  Exec
	pool           Pool
	network        NetworkHandle
	provider       *provider.BlockchainProvider
	payloadBuilder *builder.PayloadBuilderHandle
	taskExecutor   *tasks.Executor
	services       NodeServices
	config         nodecfg.Config
	dataDir        datadir.Dirs
}

func NewFullNode[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor](
	adapter *NodeAdapter[DB, Pool, Evm, Exec],
	services NodeServices,
	config nodecfg.Config,
	dirs datadir.Dirs,
) *FullNode[DB, Pool, Evm, Exec] {
	return &FullNode[DB, Pool, Evm, Exec]{
		db:             adapter.DB,
		evmConfig:      adapter.Components.EvmConfig,
		blockExecutor:  adapter.Components.Executor,
		pool:           adapter.Components.Pool,
		network:        adapter.Components.Network,
		provider:       adapter.Provider,
		payloadBuilder: adapter.Components.PayloadBuilder,
		taskExecutor:   adapter.TaskExecutor,
		services:       services,
		config:         config,
		dataDir:        dirs,
	}
}

func (n *FullNode[DB, Pool, Evm, Exec]) DB() DB                                        { return n.db }
func (n *FullNode[DB, Pool, Evm, Exec]) EvmConfig() Evm                                { return n.evmConfig }
func (n *FullNode[DB, Pool, Evm, Exec]) BlockExecutor() Exec                           { return n.blockExecutor }
func (n *FullNode[DB, Pool, Evm, Exec]) Pool() Pool                                    { return n.pool }
func (n *FullNode[DB, Pool, Evm, Exec]) Network() NetworkHandle                        { return n.network }
func (n *FullNode[DB, Pool, Evm, Exec]) Provider() *provider.BlockchainProvider        { return n.provider }
func (n *FullNode[DB, Pool, Evm, Exec]) PayloadBuilder() *builder.PayloadBuilderHandle { return n.payloadBuilder }
func (n *FullNode[DB, Pool, Evm, Exec]) TaskExecutor() *tasks.Executor                 { return n.taskExecutor }
func (n *FullNode[DB, Pool, Evm, Exec]) EngineHandle() *engine.Handle                  { return n.services.Engine }
func (n *FullNode[DB, Pool, Evm, Exec]) Pruner() *prune.Pruner                         { return n.services.Pruner }
func (n *FullNode[DB, Pool, Evm, Exec]) ExExHandle() *exex.ManagerHandle               { return n.services.ExEx }
func (n *FullNode[DB, Pool, Evm, Exec]) StaticFileProducer() *producer.Producer        { return n.services.StaticFiles }
func (n *FullNode[DB, Pool, Evm, Exec]) RpcServerHandles() *rpc.ServerHandles          { return n.services.RpcHandles }
func (n *FullNode[DB, Pool, Evm, Exec]) RpcRegistry() *rpc.Registry                    { return n.services.RpcRegistry }
func (n *FullNode[DB, Pool, Evm, Exec]) DataDir() datadir.Dirs                         { return n.dataDir }

// Config returns a copy of the configuration the node was launched with.
func (n *FullNode[DB, Pool, Evm, Exec]) Config() nodecfg.Config { return n.config }

// NodeHandle is what a launch returns: the node and the future that resolves
// when it exits.
type NodeHandle[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor] struct {
	node *FullNode[DB, Pool, Evm, Exec]
	exit *ExitFuture
}

func NewNodeHandle[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor](node *FullNode[DB, Pool, Evm, Exec], exit *ExitFuture) *NodeHandle[DB, Pool, Evm, Exec] {
	return &NodeHandle[DB, Pool, Evm, Exec]{node: node, exit: exit}
}

func (h *NodeHandle[DB, Pool, Evm, Exec]) Node() *FullNode[DB, Pool, Evm, Exec] { return h.node }
func (h *NodeHandle[DB, Pool, Evm, Exec]) ExitFuture() *ExitFuture              { return h.exit }
