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

package eth

import (
	"context"

	"github.com/erigontech/erigon-launch/execution/builder"
	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/evm"
	"github.com/erigontech/erigon-launch/kv"
	nodebuilder "github.com/erigontech/erigon-launch/node/builder"
	"github.com/erigontech/erigon-launch/p2p"
	"github.com/erigontech/erigon-launch/params"
	"github.com/erigontech/erigon-launch/txnprovider/txpool"
)

// Ethereum is the component set of a default Ethereum node.
type Ethereum = nodebuilder.Components[*txpool.TxPool, *evm.Config, *evm.BlockExecutor]

// EthereumNode declares a default Ethereum node over the given store.
func EthereumNode[DB kv.RwDB](b nodebuilder.NodeBuilder[DB]) *nodebuilder.NodeBuilderWithComponents[DB, *txpool.TxPool, *evm.Config, *evm.BlockExecutor] {
	return nodebuilder.DeclareComponents(b, ComponentsBuilder[DB]())
}

// ComponentsBuilder builds the default components: the transaction pool, the
// block executor, the p2p network and the payload builder service.
func ComponentsBuilder[DB kv.RwDB]() nodebuilder.Composer[DB, *txpool.TxPool, *evm.Config, *evm.BlockExecutor] {
	return nodebuilder.Composer[DB, *txpool.TxPool, *evm.Config, *evm.BlockExecutor]{
		Pool:     nodebuilder.PoolBuilderFunc[DB, *txpool.TxPool](buildPool[DB]),
		Executor: nodebuilder.ExecutorBuilderFunc[DB, *evm.Config, *evm.BlockExecutor](buildExecutor[DB]),
		Network:  nodebuilder.NetworkBuilderFunc[DB, *txpool.TxPool](buildNetwork[DB]),
		Payload:  nodebuilder.PayloadServiceBuilderFunc[DB, *txpool.TxPool, *evm.BlockExecutor](spawnPayloadService[DB]),
	}
}

func buildPool[DB kv.RwDB](ctx *nodebuilder.BuilderContext[DB]) (*txpool.TxPool, error) {
	pool := txpool.New(ctx.Config.TxPool, ctx.Logger)
	ctx.Logger.Info("Transaction pool initialized", "maxSize", ctx.Config.TxPool.MaxSize)
	return pool, nil
}

func buildExecutor[DB kv.RwDB](ctx *nodebuilder.BuilderContext[DB]) (*evm.Config, *evm.BlockExecutor, error) {
	cfg := evm.NewConfig(ctx.ChainSpec)
	return cfg, evm.NewBlockExecutor(cfg, ctx.Logger), nil
}

func buildNetwork[DB kv.RwDB](ctx *nodebuilder.BuilderContext[DB], _ *txpool.TxPool) (nodebuilder.NetworkHandle, error) {
	network := p2p.NewNetwork(p2p.Config{
		MaxPeers:     ctx.Config.Peers.MaxPeers,
		TrustedPeers: ctx.Peers.Trusted,
		Bootnodes:    ctx.Peers.Bootnodes,
	}, ctx.Logger)
	ctx.TaskExecutor.Spawn("p2p network", network.Run)
	ctx.Logger.Info("P2P networking initialized", "port", ctx.Config.Peers.ListenPort)
	return network, nil
}

func spawnPayloadService[DB kv.RwDB](ctx *nodebuilder.BuilderContext[DB], pool *txpool.TxPool, executor *evm.BlockExecutor) (*builder.PayloadBuilderHandle, error) {
	build := builder.NewBlockBuilderFunc(ctx.TaskExecutor.Context(), ctx.Provider, pool, executor, evm.IntrinsicGas)
	service, handle := builder.NewService(build, ctx.Config.BuilderMaxBuildTime, ctx.Logger)
	ctx.TaskExecutor.Spawn("payload builder service", service.Run)
	return handle, nil
}

// ethBackend serves the net and web3 namespaces.
type ethBackend struct {
	spec    *chain.Spec
	network nodebuilder.NetworkHandle
}

func (b *ethBackend) NetVersion(context.Context) (uint64, error) { return b.spec.ChainID(), nil }

func (b *ethBackend) NetPeerCount(context.Context) (uint64, error) {
	return uint64(b.network.PeerCount()), nil
}

func (b *ethBackend) ClientVersion(context.Context) (string, error) {
	return params.ClientName + "/" + params.VersionWithCommit(params.GitCommit), nil
}
