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
	"errors"
	"fmt"
	"net"

	"github.com/ledgerwatch/log/v3"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/erigontech/erigon-launch/core/genesiswrite"
	"github.com/erigontech/erigon-launch/ethdb/prune"
	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/consensus"
	"github.com/erigontech/erigon-launch/execution/consensus/serenity"
	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/metrics"
	"github.com/erigontech/erigon-launch/node/nodecfg"
	"github.com/erigontech/erigon-launch/node/nodecfg/datadir"
	"github.com/erigontech/erigon-launch/node/tasks"
	"github.com/erigontech/erigon-launch/p2p"
	"github.com/erigontech/erigon-launch/rpc"
	"github.com/erigontech/erigon-launch/turbo/snapshotsync/producer"
)

// ErrOutOfOrder is returned by a launch step whose earlier steps did not run.
var ErrOutOfOrder = errors.New("launch step called out of order")

// The launch sequence is a chain of phase types. Each step is a method on the
// phase it requires and returns the next phase, so that skipping a step does
// not compile. Steps that introduce a type parameter are package functions.
// A zero value phase, or one whose in-phase steps did not run, fails with
// ErrOutOfOrder.

type base struct {
	executor *tasks.Executor
	dirs     datadir.Dirs
	logger   log.Logger
	globals  bool
}

func (b base) TaskExecutor() *tasks.Executor { return b.executor }
func (b base) DataDir() datadir.Dirs         { return b.dirs }
func (b base) Logger() log.Logger            { return b.logger }

func (b base) ready() bool { return b.executor != nil && b.logger != nil }

// ResolvedPeers are the configured peers with their addresses looked up.
type ResolvedPeers struct {
	Trusted   []p2p.NodeRecord
	Bootnodes []p2p.NodeRecord
}

type configs struct {
	cfg      *nodecfg.Config
	toml     nodecfg.TomlConfig
	peers    ResolvedPeers
	resolved bool
	adjusted bool
}

func (c configs) Config() *nodecfg.Config        { return c.cfg }
func (c configs) TomlConfig() nodecfg.TomlConfig { return c.toml }
func (c configs) Peers() ResolvedPeers           { return c.peers }

type store[DB kv.RwDB] struct {
	db DB
}

func (s store[DB]) DB() DB { return s.db }

type factoryState struct {
	factory *provider.Factory
}

func (f factoryState) ProviderFactory() *provider.Factory { return f.factory }
func (f factoryState) ChainSpec() *chain.Spec             { return f.factory.ChainSpec() }

type genesisState struct {
	genesis     types.Hash
	syncMetrics metrics.SyncMetricsTx
}

func (g genesisState) GenesisHash() types.Hash { return g.genesis }

// SyncMetricsTx is the sink stages report their progress to.
func (g genesisState) SyncMetricsTx() metrics.SyncMetricsTx { return g.syncMetrics }

type chainState struct {
	provider *provider.BlockchainProvider
	head     types.Head
}

func (c chainState) BlockchainDB() *provider.BlockchainProvider { return c.provider }
func (c chainState) Head() types.Head                           { return c.head }

// LaunchContext is the first phase: a task executor and a data directory.
type LaunchContext struct {
	base
}

func NewLaunchContext(executor *tasks.Executor, dirs datadir.Dirs, logger log.Logger) LaunchContext {
	return LaunchContext{base{executor: executor, dirs: dirs, logger: logger}}
}

// WithConfiguredGlobals sets up process wide state, currently GOMAXPROCS
// according to the container CPU quota.
func (c LaunchContext) WithConfiguredGlobals() (LaunchContext, error) {
	if !c.ready() {
		return c, ErrOutOfOrder
	}
	logger := c.logger
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		logger.Warn("Failed to set GOMAXPROCS", "err", err)
	}
	c.globals = true
	return c, nil
}

// WithLoadedTomlConfig merges the on-disk config file into cfg. The file is
// created with defaults when missing.
func (c LaunchContext) WithLoadedTomlConfig(cfg *nodecfg.Config) (WithConfigs, error) {
	if !c.ready() || !c.globals || cfg == nil {
		return WithConfigs{}, ErrOutOfOrder
	}
	path := cfg.TomlPath()
	toml, err := nodecfg.LoadTomlConfig(path)
	if err != nil {
		return WithConfigs{}, fmt.Errorf("load config %s: %w", path, err)
	}
	merged := *cfg
	if merged.Prune, err = toml.PruneMode(cfg.Prune); err != nil {
		return WithConfigs{}, err
	}
	if toml.Peers.MaxPeers > 0 {
		merged.Peers.MaxPeers = toml.Peers.MaxPeers
	}
	c.logger.Debug("Loaded toml config", "path", path)
	return WithConfigs{base: c.base, configs: configs{cfg: &merged, toml: toml}}, nil
}

// WithConfigs holds the merged node configuration.
type WithConfigs struct {
	base
	configs
}

// WithResolvedPeers looks up the addresses of trusted peers and bootnodes. A
// nil resolver uses the system one. Lookups that time out leave the record
// unresolved instead of failing the launch.
func (c WithConfigs) WithResolvedPeers(ctx context.Context, resolver p2p.Resolver) (WithConfigs, error) {
	if !c.ready() || c.cfg == nil {
		return c, ErrOutOfOrder
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	timeout := c.cfg.Peers.ResolveTimeout
	trusted, err := p2p.ResolvePeers(ctx, resolver, c.cfg.Peers.TrustedPeers, timeout, c.logger)
	if err != nil {
		return c, fmt.Errorf("resolve trusted peers: %w", err)
	}
	if c.toml.Peers.TrustedNodesOnly {
		c.logger.Info("Only trusted peers are allowed")
		c.peers = ResolvedPeers{Trusted: trusted}
		c.resolved = true
		return c, nil
	}
	bootnodes, err := p2p.ResolvePeers(ctx, resolver, c.cfg.Peers.Bootnodes, timeout, c.logger)
	if err != nil {
		return c, fmt.Errorf("resolve bootnodes: %w", err)
	}
	c.peers = ResolvedPeers{Trusted: trusted, Bootnodes: bootnodes}
	c.resolved = true
	return c, nil
}

// Attach hands the opened store to the launch.
func Attach[DB kv.RwDB](c WithConfigs, db DB) (WithDB[DB], error) {
	if !c.ready() || !c.resolved || any(db) == nil {
		return WithDB[DB]{}, ErrOutOfOrder
	}
	c.logger.Info("Database opened")
	return WithDB[DB]{base: c.base, configs: c.configs, store: store[DB]{db: db}}, nil
}

// WithDB holds the configuration and the attached store.
type WithDB[DB kv.RwDB] struct {
	base
	configs
	store[DB]
}

// WithAdjustedConfigs applies the runtime adjustments derived from the config:
// the ETL directory default and the per instance port offsets.
func (c WithDB[DB]) WithAdjustedConfigs() (WithDB[DB], error) {
	if !c.ready() || c.cfg == nil || !c.resolved {
		return c, ErrOutOfOrder
	}
	cfg := *c.cfg
	if err := cfg.AdjustInstancePorts(); err != nil {
		return c, err
	}
	c.toml.EnsureEtlDir(cfg.Dirs)
	c.cfg = &cfg
	c.adjusted = true
	return c, nil
}

func (c WithDB[DB]) Inspect(fn func(WithDB[DB])) WithDB[DB] {
	fn(c)
	return c
}

// WithProviderFactory opens the provider factory for the configured chain.
func (c WithDB[DB]) WithProviderFactory(ctx context.Context) (WithProviderFactory[DB], error) {
	if !c.ready() || !c.adjusted {
		return WithProviderFactory[DB]{}, ErrOutOfOrder
	}
	name := c.cfg.Chain
	if c.cfg.Dev {
		name = chain.DevSpec().Name()
	}
	spec, err := chain.SpecByName(name)
	if err != nil {
		return WithProviderFactory[DB]{}, err
	}
	factory, err := provider.NewFactory(ctx, c.db, spec, c.logger)
	if err != nil {
		return WithProviderFactory[DB]{}, err
	}
	return WithProviderFactory[DB]{base: c.base, configs: c.configs, store: c.store, factoryState: factoryState{factory}}, nil
}

// WithProviderFactory holds a provider factory over the attached store.
type WithProviderFactory[DB kv.RwDB] struct {
	base
	configs
	store[DB]
	factoryState
}

func (c WithProviderFactory[DB]) Inspect(fn func(WithProviderFactory[DB])) WithProviderFactory[DB] {
	fn(c)
	return c
}

// WithGenesis writes the genesis block of the configured chain into an empty
// store, or checks that the stored one matches.
func (c WithProviderFactory[DB]) WithGenesis(ctx context.Context) (WithGenesis[DB], error) {
	if !c.ready() || c.factory == nil {
		return WithGenesis[DB]{}, ErrOutOfOrder
	}
	hash, err := genesiswrite.CommitGenesisBlock(ctx, c.db, c.ChainSpec(), c.logger)
	if err != nil {
		return WithGenesis[DB]{}, err
	}
	c.logger.Info("Initialised chain", "chain", c.ChainSpec().Name(), "genesis", hash)
	c.logger.Info("\n" + c.ChainSpec().DisplayHardforks())
	return WithGenesis[DB]{base: c.base, configs: c.configs, store: c.store, factoryState: c.factoryState, genesisState: genesisState{genesis: hash}}, nil
}

// WithGenesis holds a store with a checked genesis block.
type WithGenesis[DB kv.RwDB] struct {
	base
	configs
	store[DB]
	factoryState
	genesisState
}

func (c WithGenesis[DB]) Inspect(fn func(WithGenesis[DB])) WithGenesis[DB] {
	fn(c)
	return c
}

// WithPrometheusServer starts the metrics endpoint when it is enabled.
func (c WithGenesis[DB]) WithPrometheusServer() (WithGenesis[DB], error) {
	if !c.ready() || c.factory == nil {
		return c, ErrOutOfOrder
	}
	if !c.cfg.Metrics.Enabled {
		return c, nil
	}
	srv, err := metrics.Listen(c.cfg.Metrics.Endpoint(), metrics.DefaultSet(), c.logger)
	if err != nil {
		return c, fmt.Errorf("start metrics server: %w", err)
	}
	c.logger.Info("Starting metrics endpoint", "addr", srv.Addr())
	c.executor.Spawn("prometheus", srv.Serve)
	return c, nil
}

// WithMetricsTask starts the task that turns sync metric events into gauges.
func (c WithGenesis[DB]) WithMetricsTask() (WithGenesis[DB], error) {
	if !c.ready() || c.factory == nil {
		return c, ErrOutOfOrder
	}
	tx, rx := metrics.NewSyncMetricsChannel()
	listener := metrics.NewListener(rx, metrics.DefaultSet(), c.logger)
	c.executor.SpawnCritical("sync metrics", listener.Run)
	c.syncMetrics = tx
	return c, nil
}

// WithBlockchainDB builds the read provider and looks up the current head.
func (c WithGenesis[DB]) WithBlockchainDB(ctx context.Context) (WithBlockchainDB[DB], error) {
	if !c.ready() || c.factory == nil || c.syncMetrics == nil {
		return WithBlockchainDB[DB]{}, ErrOutOfOrder
	}
	bp, err := provider.NewBlockchainProvider(ctx, c.factory)
	if err != nil {
		return WithBlockchainDB[DB]{}, err
	}
	head, err := c.factory.LookupHead(ctx)
	if err != nil {
		return WithBlockchainDB[DB]{}, fmt.Errorf("lookup head: %w", err)
	}
	c.logger.Info("Blockchain provider initialized", "head", head.Number, "hash", head.Hash)
	return WithBlockchainDB[DB]{
		base:         c.base,
		configs:      c.configs,
		store:        c.store,
		factoryState: c.factoryState,
		genesisState: c.genesisState,
		chainState:   chainState{provider: bp, head: head},
	}, nil
}

// WithBlockchainDB holds the read provider, ready to build components on.
type WithBlockchainDB[DB kv.RwDB] struct {
	base
	configs
	store[DB]
	factoryState
	genesisState
	chainState
}

func (c WithBlockchainDB[DB]) Inspect(fn func(WithBlockchainDB[DB])) WithBlockchainDB[DB] {
	fn(c)
	return c
}

// BuildComponents runs the components builder and hands the result to
// onInit. onInit only gets a copy of the adapter.
func BuildComponents[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor](
	c WithBlockchainDB[DB],
	cb ComponentsBuilder[DB, Pool, Evm, Exec],
	onInit func(NodeAdapter[DB, Pool, Evm, Exec]),
) (WithComponents[DB, Pool, Evm, Exec], error) {
	if !c.ready() || c.provider == nil || cb == nil {
		return WithComponents[DB, Pool, Evm, Exec]{}, ErrOutOfOrder
	}
	components, err := cb.BuildComponents(&BuilderContext[DB]{
		DB:           c.db,
		Head:         c.head,
		ChainSpec:    c.ChainSpec(),
		Provider:     c.provider,
		Config:       c.cfg,
		Toml:         c.toml,
		Peers:        c.peers,
		TaskExecutor: c.executor,
		Logger:       c.logger,
	})
	if err != nil {
		return WithComponents[DB, Pool, Evm, Exec]{}, err
	}
	adapter := &NodeAdapter[DB, Pool, Evm, Exec]{
		Components:   components,
		DB:           c.db,
		Provider:     c.provider,
		TaskExecutor: c.executor,
	}
	if onInit != nil {
		observed := *adapter
		snapshot := *components
		observed.Components = &snapshot
		onInit(observed)
	}
	c.logger.Debug("Node components built")
	return WithComponents[DB, Pool, Evm, Exec]{
		base:         c.base,
		configs:      c.configs,
		store:        c.store,
		factoryState: c.factoryState,
		genesisState: c.genesisState,
		chainState:   c.chainState,
		adapter:      adapter,
		staticFiles:  producer.NewProducer(c.db, c.dirs.Snap, c.logger),
	}, nil
}

// WithComponents is the last phase: everything the node launcher wires
// together.
type WithComponents[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor] struct {
	base
	configs
	store[DB]
	factoryState
	genesisState
	chainState

	adapter     *NodeAdapter[DB, Pool, Evm, Exec]
	staticFiles *producer.Producer
}

func (c WithComponents[DB, Pool, Evm, Exec]) Ready() error {
	if !c.ready() || c.adapter == nil {
		return ErrOutOfOrder
	}
	return nil
}

func (c WithComponents[DB, Pool, Evm, Exec]) NodeAdapter() *NodeAdapter[DB, Pool, Evm, Exec] {
	return c.adapter
}

func (c WithComponents[DB, Pool, Evm, Exec]) Components() *Components[Pool, Evm, Exec] {
	return c.adapter.Components
}

func (c WithComponents[DB, Pool, Evm, Exec]) IsDev() bool { return c.cfg.IsDev() }

// StaticFileProducer is created once per launch.
func (c WithComponents[DB, Pool, Evm, Exec]) StaticFileProducer() *producer.Producer {
	return c.staticFiles
}

// PrunerBuilder returns a pruner builder for the configured prune mode. The
// caller adds the extension bound.
func (c WithComponents[DB, Pool, Evm, Exec]) PrunerBuilder() *prune.Builder {
	return prune.NewBuilder(c.cfg.Prune).BlockInterval(c.toml.Prune.BlockInterval)
}

// Consensus returns the header validation rules of the chain.
func (c WithComponents[DB, Pool, Evm, Exec]) Consensus() consensus.Engine {
	if c.IsDev() {
		return serenity.NewFaker()
	}
	return serenity.New()
}

// MaxBlock is the ceiling for the pipeline: the configured max block, or the
// number of the debug tip fetched from the network.
func (c WithComponents[DB, Pool, Evm, Exec]) MaxBlock(ctx context.Context, client p2p.FetchClient) (*uint64, error) {
	if c.cfg.Debug.MaxBlock != nil {
		n := *c.cfg.Debug.MaxBlock
		return &n, nil
	}
	if c.cfg.Debug.Tip == nil {
		return nil, nil
	}
	header, err := client.GetHeaderByHash(ctx, *c.cfg.Debug.Tip)
	if err != nil {
		return nil, fmt.Errorf("fetch debug tip %x: %w", *c.cfg.Debug.Tip, err)
	}
	n := header.Number
	return &n, nil
}

// AuthJwtSecret loads the engine API secret, generating one when the file
// does not exist.
func (c WithComponents[DB, Pool, Evm, Exec]) AuthJwtSecret() ([]byte, error) {
	path := c.cfg.Http.JWTSecretPath
	if path == "" {
		path = c.dirs.JwtSecret
	}
	return rpc.ObtainJWTSecret(path, c.logger)
}
