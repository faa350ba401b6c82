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
	"fmt"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/execution/engine"
	"github.com/erigontech/erigon-launch/execution/engineapi"
	"github.com/erigontech/erigon-launch/execution/exex"
	"github.com/erigontech/erigon-launch/execution/stagedsync"
	"github.com/erigontech/erigon-launch/kv"
	nodebuilder "github.com/erigontech/erigon-launch/node/builder"
	"github.com/erigontech/erigon-launch/node/events"
	"github.com/erigontech/erigon-launch/node/nodecfg/datadir"
	"github.com/erigontech/erigon-launch/node/tasks"
	"github.com/erigontech/erigon-launch/p2p"
	"github.com/erigontech/erigon-launch/params"
)

// EthNodeLauncher launches a full Ethereum node: it runs the launch context
// steps, starts the extensions, the sync pipeline, the maintenance services,
// the consensus engine and the RPC servers.
type EthNodeLauncher[DB kv.RwDB, Pool nodebuilder.TxPool, Evm any, Exec nodebuilder.BlockExecutor] struct {
	taskExecutor *tasks.Executor
	dataDir      datadir.Dirs
	// resolver looks up peer host names, nil means the system resolver.
	resolver p2p.Resolver
	logger   log.Logger
}

func NewEthNodeLauncher[DB kv.RwDB, Pool nodebuilder.TxPool, Evm any, Exec nodebuilder.BlockExecutor](
	executor *tasks.Executor,
	dirs datadir.Dirs,
	logger log.Logger,
) *EthNodeLauncher[DB, Pool, Evm, Exec] {
	return &EthNodeLauncher[DB, Pool, Evm, Exec]{taskExecutor: executor, dataDir: dirs, logger: logger}
}

func (l *EthNodeLauncher[DB, Pool, Evm, Exec]) WithResolver(resolver p2p.Resolver) *EthNodeLauncher[DB, Pool, Evm, Exec] {
	l.resolver = resolver
	return l
}

func (l *EthNodeLauncher[DB, Pool, Evm, Exec]) LaunchNode(
	ctx context.Context,
	target *nodebuilder.NodeBuilderWithComponents[DB, Pool, Evm, Exec],
) (*nodebuilder.NodeHandle[DB, Pool, Evm, Exec], error) {
	logger := l.logger
	executor := l.taskExecutor
	addOns := target.AddOns

	c, err := l.buildContext(ctx, target)
	if err != nil {
		return nil, err
	}
	adapter := c.NodeAdapter()
	components := c.Components()
	cfg := c.Config()
	spec := c.ChainSpec()
	factory := c.ProviderFactory()

	exexHandle, err := exex.NewLauncher(c.Head(), spec, c.DB(), factory.BlockReader(), addOns.ExExs, logger).Launch(ctx, executor)
	if err != nil {
		return nil, fmt.Errorf("launch execution extensions: %w", err)
	}
	if exexHandle == nil {
		exexHandle = exex.EmptyHandle()
	}

	client := components.Network.FetchClient()
	requests := engine.NewQueue[engine.Message]()

	maxBlock, err := c.MaxBlock(ctx, client)
	if err != nil {
		return nil, err
	}

	staticFiles := c.StaticFileProducer()
	staticFileEvents := staticFiles.Events()

	consensusRules := c.Consensus()
	pipeline, err := stagedsync.BuildNetworkedPipeline(
		c.TomlConfig().PipelineConfig(),
		client,
		consensusRules,
		factory,
		executor,
		c.SyncMetricsTx(),
		cfg.Prune,
		maxBlock,
		staticFiles,
		components.Executor,
		exexHandle,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	pipelineEvents := pipeline.Events()

	pruner := c.PrunerBuilder().FinishedExExHeight(exexHandle).BuildWithProviderFactory(factory, logger)
	prunerEvents := pruner.Events()
	logger.Info("Pruner initialized", "prune_config", cfg.Prune)

	hooks := engine.Hooks{
		engine.NewStaticFileHook(staticFiles, executor),
		engine.NewPruneHook(pruner, executor),
	}
	executor.Spawn("maintenance services", func(ctx context.Context) error {
		<-ctx.Done()
		pruner.Close()
		staticFiles.Close()
		return nil
	})

	tree, toTree, fromTree := engine.NewTree(engine.DefaultTreeLimit)
	executor.SpawnCritical("block tree", tree.Run)

	var initialTarget *uint64
	if cfg.Debug.Tip != nil {
		initialTarget = maxBlock
	}
	service, engineHandle := engine.NewService(engine.ServiceConfig{
		ChainSpec:     spec,
		Client:        client,
		Consensus:     consensusRules,
		Provider:      c.BlockchainDB(),
		Pipeline:      pipeline,
		Payloads:      components.PayloadBuilder,
		Hooks:         hooks,
		InitialTarget: initialTarget,
	}, toTree, fromTree, requests, logger)
	logger.Info("Consensus engine initialized")

	eventsCtx := executor.Context()
	streams := []<-chan events.NodeEvent{
		events.Map(eventsCtx, components.Network.Events(), events.FromNetwork),
		events.Map(eventsCtx, pipelineEvents, events.FromPipeline),
		events.Map(eventsCtx, engineHandle.Events(), events.FromEngine),
		events.Map(eventsCtx, prunerEvents, events.FromPruner),
		events.Map(eventsCtx, staticFileEvents, events.FromStaticFiles),
	}
	if cfg.Debug.Tip == nil && !c.IsDev() {
		health := events.ClHealthEvents(eventsCtx, c.BlockchainDB(), events.ClHealthCheckInterval)
		streams = append(streams, events.Map(eventsCtx, health, events.FromClHealth))
	}
	merged := events.Merge(eventsCtx, streams...)
	latestBlock := c.Head().Number
	db := c.DB()
	executor.SpawnCritical("events task", func(ctx context.Context) error {
		return events.HandleEvents(ctx, components.Network, &latestBlock, merged, db, logger)
	})

	clientVersion := engineapi.ClientVersionV1{
		Code:    params.ClientCode,
		Name:    params.ClientName,
		Version: params.Version,
		Commit:  params.ShortCommit(),
	}
	engineServer := engineapi.NewEngineServer(c.BlockchainDB(), spec, engineHandle, components.PayloadBuilder, executor, clientVersion, engineapi.Capabilities, logger)
	logger.Info("Engine API handler initialized")

	jwtSecret, err := c.AuthJwtSecret()
	if err != nil {
		return nil, fmt.Errorf("jwt secret: %w", err)
	}
	backend := &ethBackend{spec: spec, network: components.Network}
	rpcHandles, rpcRegistry, err := nodebuilder.LaunchRpcServers(adapter, addOns, spec, cfg.Http, backend, engineapi.APIs(engineServer), jwtSecret, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Starting consensus engine")
	result := executor.SpawnCriticalBlocking("consensus engine", service.Run)
	exit := nodebuilder.NewExitFuture(result, cfg.Debug.Terminate)

	node := nodebuilder.NewFullNode(adapter, nodebuilder.NodeServices{
		Engine:      engineHandle,
		Pruner:      pruner,
		ExEx:        exexHandle,
		StaticFiles: staticFiles,
		RpcHandles:  rpcHandles,
		RpcRegistry: rpcRegistry,
	}, *cfg, c.DataDir())
	if err := addOns.NodeStarted(node); err != nil {
		return nil, fmt.Errorf("on node started: %w", err)
	}
	return nodebuilder.NewNodeHandle(node, exit), nil
}

func (l *EthNodeLauncher[DB, Pool, Evm, Exec]) buildContext(
	ctx context.Context,
	target *nodebuilder.NodeBuilderWithComponents[DB, Pool, Evm, Exec],
) (nodebuilder.WithComponents[DB, Pool, Evm, Exec], error) {
	var none nodebuilder.WithComponents[DB, Pool, Evm, Exec]

	lc, err := nodebuilder.NewLaunchContext(l.taskExecutor, l.dataDir, l.logger).WithConfiguredGlobals()
	if err != nil {
		return none, err
	}
	withConfigs, err := lc.WithLoadedTomlConfig(target.Config)
	if err != nil {
		return none, err
	}
	if withConfigs, err = withConfigs.WithResolvedPeers(ctx, l.resolver); err != nil {
		return none, err
	}
	withDB, err := nodebuilder.Attach(withConfigs, target.DB)
	if err != nil {
		return none, err
	}
	if withDB, err = withDB.WithAdjustedConfigs(); err != nil {
		return none, err
	}
	withFactory, err := withDB.WithProviderFactory(ctx)
	if err != nil {
		return none, err
	}
	withGenesis, err := withFactory.WithGenesis(ctx)
	if err != nil {
		return none, err
	}
	if withGenesis, err = withGenesis.WithPrometheusServer(); err != nil {
		return none, err
	}
	if withGenesis, err = withGenesis.WithMetricsTask(); err != nil {
		return none, err
	}
	withBlockchainDB, err := withGenesis.WithBlockchainDB(ctx)
	if err != nil {
		return none, err
	}
	withBlockchainDB = withBlockchainDB.Inspect(func(c nodebuilder.WithBlockchainDB[DB]) {
		c.Logger().Info("Initialising Ethereum protocol", "network", c.ChainSpec().ChainID(), "chain", c.ChainSpec().Name())
	})
	return nodebuilder.BuildComponents(withBlockchainDB, target.ComponentsBuilder, target.AddOns.ComponentInitialized)
}
