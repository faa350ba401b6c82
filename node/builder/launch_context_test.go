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
	"testing"
	"time"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/erigontech/erigon-launch/core/genesiswrite"
	payloadbuilder "github.com/erigontech/erigon-launch/execution/builder"
	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/evm"
	"github.com/erigontech/erigon-launch/kv/memdb"
	"github.com/erigontech/erigon-launch/node/nodecfg"
	"github.com/erigontech/erigon-launch/node/tasks"
	"github.com/erigontech/erigon-launch/p2p"
	"github.com/erigontech/erigon-launch/params/networkname"
	"github.com/erigontech/erigon-launch/txnprovider/txpool"
)

type (
	testComponents = Components[*txpool.TxPool, *evm.Config, *evm.BlockExecutor]
	testAdapter    = NodeAdapter[*memdb.DB, *txpool.TxPool, *evm.Config, *evm.BlockExecutor]
	testComposer   = Composer[*memdb.DB, *txpool.TxPool, *evm.Config, *evm.BlockExecutor]
)

func testConfig(t *testing.T) *nodecfg.Config {
	cfg := nodecfg.DefaultConfig(t.TempDir())
	cfg.Chain = networkname.Dev
	return cfg
}

func testComposerFor(logger log.Logger) testComposer {
	return testComposer{
		Pool: PoolBuilderFunc[*memdb.DB, *txpool.TxPool](func(ctx *BuilderContext[*memdb.DB]) (*txpool.TxPool, error) {
			return txpool.New(txpool.DefaultConfig, ctx.Logger), nil
		}),
		Executor: ExecutorBuilderFunc[*memdb.DB, *evm.Config, *evm.BlockExecutor](func(ctx *BuilderContext[*memdb.DB]) (*evm.Config, *evm.BlockExecutor, error) {
			cfg := evm.NewConfig(ctx.ChainSpec)
			return cfg, evm.NewBlockExecutor(cfg, ctx.Logger), nil
		}),
		Network: NetworkBuilderFunc[*memdb.DB, *txpool.TxPool](func(ctx *BuilderContext[*memdb.DB], _ *txpool.TxPool) (NetworkHandle, error) {
			return p2p.NewNetwork(p2p.Config{MaxPeers: ctx.Config.Peers.MaxPeers}, ctx.Logger), nil
		}),
		Payload: PayloadServiceBuilderFunc[*memdb.DB, *txpool.TxPool, *evm.BlockExecutor](func(ctx *BuilderContext[*memdb.DB], _ *txpool.TxPool, _ *evm.BlockExecutor) (*payloadbuilder.PayloadBuilderHandle, error) {
			_, handle := payloadbuilder.NewService(nil, time.Second, logger)
			return handle, nil
		}),
	}
}

func launchUntilBlockchainDB(t *testing.T, cfg *nodecfg.Config, db *memdb.DB) (WithBlockchainDB[*memdb.DB], *tasks.Manager) {
	t.Helper()
	ctx := context.Background()
	logger := log.New()
	m := tasks.NewManager(ctx, logger)
	t.Cleanup(func() {
		m.Shutdown()
		_ = m.Wait()
	})

	lc, err := NewLaunchContext(m.Executor(), cfg.Dirs, logger).WithConfiguredGlobals()
	require.NoError(t, err)
	withConfigs, err := lc.WithLoadedTomlConfig(cfg)
	require.NoError(t, err)
	withConfigs, err = withConfigs.WithResolvedPeers(ctx, nil)
	require.NoError(t, err)
	withDB, err := Attach(withConfigs, db)
	require.NoError(t, err)
	withDB, err = withDB.WithAdjustedConfigs()
	require.NoError(t, err)
	withFactory, err := withDB.WithProviderFactory(ctx)
	require.NoError(t, err)
	withGenesis, err := withFactory.WithGenesis(ctx)
	require.NoError(t, err)
	withGenesis, err = withGenesis.WithPrometheusServer()
	require.NoError(t, err)
	withGenesis, err = withGenesis.WithMetricsTask()
	require.NoError(t, err)
	withBlockchainDB, err := withGenesis.WithBlockchainDB(ctx)
	require.NoError(t, err)
	return withBlockchainDB, m
}

func TestLaunchContextInOrder(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Instance = 2
	db := memdb.NewTestDB(t)
	c, _ := launchUntilBlockchainDB(t, cfg, db)

	require.Equal(t, cfg.Http.AuthRpcPort+100, c.Config().Http.AuthRpcPort)
	require.Equal(t, 8551, cfg.Http.AuthRpcPort, "caller config must not change")
	require.NotEmpty(t, c.TomlConfig().Stages.Etl.Dir)
	require.Equal(t, chain.DevSpec().GenesisHash(), c.GenesisHash())
	require.Equal(t, uint64(0), c.Head().Number)
	require.Equal(t, c.GenesisHash(), c.Head().Hash)
	require.NotNil(t, c.SyncMetricsTx())

	var observed *testComponents
	withComponents, err := BuildComponents(c, testComposerFor(log.New()), func(adapter testAdapter) {
		observed = adapter.Components
		adapter.Components.Pool = nil
	})
	require.NoError(t, err)
	require.NoError(t, withComponents.Ready())
	require.NotNil(t, observed)
	require.NotNil(t, withComponents.Components().Pool, "hook must not change the built components")
	require.NotNil(t, withComponents.Components().Network)
	require.NotNil(t, withComponents.StaticFileProducer())
	require.True(t, withComponents.IsDev())

	maxBlock, err := withComponents.MaxBlock(context.Background(), p2p.NewMockFetchClient(gomock.NewController(t)))
	require.NoError(t, err)
	require.Nil(t, maxBlock)

	secret, err := withComponents.AuthJwtSecret()
	require.NoError(t, err)
	require.Len(t, secret, 32)
}

func TestLaunchContextOutOfOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := log.New()
	cfg := testConfig(t)
	db := memdb.NewTestDB(t)
	m := tasks.NewManager(ctx, logger)
	defer m.Shutdown()

	t.Run("zero phases", func(t *testing.T) {
		_, err := LaunchContext{}.WithConfiguredGlobals()
		require.ErrorIs(t, err, ErrOutOfOrder)
		_, err = LaunchContext{}.WithLoadedTomlConfig(cfg)
		require.ErrorIs(t, err, ErrOutOfOrder)
		_, err = WithConfigs{}.WithResolvedPeers(ctx, nil)
		require.ErrorIs(t, err, ErrOutOfOrder)
		_, err = Attach(WithConfigs{}, db)
		require.ErrorIs(t, err, ErrOutOfOrder)
		_, err = WithDB[*memdb.DB]{}.WithAdjustedConfigs()
		require.ErrorIs(t, err, ErrOutOfOrder)
		_, err = WithDB[*memdb.DB]{}.WithProviderFactory(ctx)
		require.ErrorIs(t, err, ErrOutOfOrder)
		_, err = WithProviderFactory[*memdb.DB]{}.WithGenesis(ctx)
		require.ErrorIs(t, err, ErrOutOfOrder)
		_, err = WithGenesis[*memdb.DB]{}.WithPrometheusServer()
		require.ErrorIs(t, err, ErrOutOfOrder)
		_, err = WithGenesis[*memdb.DB]{}.WithMetricsTask()
		require.ErrorIs(t, err, ErrOutOfOrder)
		_, err = WithGenesis[*memdb.DB]{}.WithBlockchainDB(ctx)
		require.ErrorIs(t, err, ErrOutOfOrder)
		_, err = BuildComponents(WithBlockchainDB[*memdb.DB]{}, testComposerFor(logger), nil)
		require.ErrorIs(t, err, ErrOutOfOrder)
		require.ErrorIs(t, WithComponents[*memdb.DB, *txpool.TxPool, *evm.Config, *evm.BlockExecutor]{}.Ready(), ErrOutOfOrder)
	})

	t.Run("skipped in-phase steps", func(t *testing.T) {
		lc := NewLaunchContext(m.Executor(), cfg.Dirs, logger)
		_, err := lc.WithLoadedTomlConfig(cfg)
		require.ErrorIs(t, err, ErrOutOfOrder, "globals not configured")

		lc, err = lc.WithConfiguredGlobals()
		require.NoError(t, err)
		withConfigs, err := lc.WithLoadedTomlConfig(cfg)
		require.NoError(t, err)
		_, err = Attach(withConfigs, db)
		require.ErrorIs(t, err, ErrOutOfOrder, "peers not resolved")

		withConfigs, err = withConfigs.WithResolvedPeers(ctx, nil)
		require.NoError(t, err)
		withDB, err := Attach(withConfigs, db)
		require.NoError(t, err)
		_, err = withDB.WithProviderFactory(ctx)
		require.ErrorIs(t, err, ErrOutOfOrder, "configs not adjusted")

		withDB, err = withDB.WithAdjustedConfigs()
		require.NoError(t, err)
		withFactory, err := withDB.WithProviderFactory(ctx)
		require.NoError(t, err)
		withGenesis, err := withFactory.WithGenesis(ctx)
		require.NoError(t, err)
		_, err = withGenesis.WithBlockchainDB(ctx)
		require.ErrorIs(t, err, ErrOutOfOrder, "metrics task not started")
	})
}

func TestLaunchContextGenesisMismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := log.New()
	db := memdb.NewTestDB(t)

	dev := chain.DevSpec()
	genesis := *dev.Genesis
	genesis.ExtraData = []byte("another genesis")
	_, err := genesiswrite.CommitGenesisBlock(ctx, db, chain.NewSpec(dev.Config, &genesis), logger)
	require.NoError(t, err)

	cfg := testConfig(t)
	m := tasks.NewManager(ctx, logger)
	defer m.Shutdown()

	lc, err := NewLaunchContext(m.Executor(), cfg.Dirs, logger).WithConfiguredGlobals()
	require.NoError(t, err)
	withConfigs, err := lc.WithLoadedTomlConfig(cfg)
	require.NoError(t, err)
	withConfigs, err = withConfigs.WithResolvedPeers(ctx, nil)
	require.NoError(t, err)
	withDB, err := Attach(withConfigs, db)
	require.NoError(t, err)
	withDB, err = withDB.WithAdjustedConfigs()
	require.NoError(t, err)
	withFactory, err := withDB.WithProviderFactory(ctx)
	require.NoError(t, err)

	_, err = withFactory.WithGenesis(ctx)
	require.ErrorIs(t, err, genesiswrite.ErrGenesisMismatch)
	require.Zero(t, m.Spawned())
}

func TestLaunchContextIncompatibleChain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := memdb.NewTestDB(t)
	_, err := genesiswrite.CommitGenesisBlock(ctx, db, chain.MainnetSpec(), log.New())
	require.NoError(t, err)

	cfg := testConfig(t)
	m := tasks.NewManager(ctx, log.New())
	defer m.Shutdown()
	lc, err := NewLaunchContext(m.Executor(), cfg.Dirs, log.New()).WithConfiguredGlobals()
	require.NoError(t, err)
	withConfigs, err := lc.WithLoadedTomlConfig(cfg)
	require.NoError(t, err)
	withConfigs, err = withConfigs.WithResolvedPeers(ctx, nil)
	require.NoError(t, err)
	withDB, err := Attach(withConfigs, db)
	require.NoError(t, err)
	withDB, err = withDB.WithAdjustedConfigs()
	require.NoError(t, err)

	_, err = withDB.WithProviderFactory(ctx)
	require.Error(t, err)
	require.Zero(t, m.Spawned())
}

type closingPool struct {
	*txpool.TxPool
	closed bool
}

func (p *closingPool) Close() error {
	p.closed = true
	return p.TxPool.Close()
}

func TestComposerClosesPartsOnFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	c, _ := launchUntilBlockchainDB(t, cfg, memdb.NewTestDB(t))

	pool := &closingPool{TxPool: txpool.New(txpool.DefaultConfig, log.New())}
	boom := errors.New("no network")
	payloadCalled := false
	composer := Composer[*memdb.DB, *closingPool, *evm.Config, *evm.BlockExecutor]{
		Pool: PoolBuilderFunc[*memdb.DB, *closingPool](func(*BuilderContext[*memdb.DB]) (*closingPool, error) {
			return pool, nil
		}),
		Executor: ExecutorBuilderFunc[*memdb.DB, *evm.Config, *evm.BlockExecutor](func(ctx *BuilderContext[*memdb.DB]) (*evm.Config, *evm.BlockExecutor, error) {
			cfg := evm.NewConfig(ctx.ChainSpec)
			return cfg, evm.NewBlockExecutor(cfg, ctx.Logger), nil
		}),
		Network: NetworkBuilderFunc[*memdb.DB, *closingPool](func(*BuilderContext[*memdb.DB], *closingPool) (NetworkHandle, error) {
			return nil, boom
		}),
		Payload: PayloadServiceBuilderFunc[*memdb.DB, *closingPool, *evm.BlockExecutor](func(*BuilderContext[*memdb.DB], *closingPool, *evm.BlockExecutor) (*payloadbuilder.PayloadBuilderHandle, error) {
			payloadCalled = true
			return nil, nil
		}),
	}

	hookCalled := false
	withComponents, err := BuildComponents(c, composer, func(NodeAdapter[*memdb.DB, *closingPool, *evm.Config, *evm.BlockExecutor]) {
		hookCalled = true
	})
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, withComponents.Ready(), ErrOutOfOrder)
	require.True(t, pool.closed)
	require.False(t, payloadCalled)
	require.False(t, hookCalled)
}

func TestComposerRequiresEveryPart(t *testing.T) {
	t.Parallel()

	composer := testComposerFor(log.New())
	composer.Payload = nil
	_, err := composer.BuildComponents(&BuilderContext[*memdb.DB]{Logger: log.New()})
	require.Error(t, err)
}

func TestComposerStopsNetworkOnPayloadFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	c, _ := launchUntilBlockchainDB(t, cfg, memdb.NewTestDB(t))

	stopped := make(chan error, 1)
	boom := errors.New("no payload service")
	composer := testComposerFor(log.New())
	composer.Network = NetworkBuilderFunc[*memdb.DB, *txpool.TxPool](func(ctx *BuilderContext[*memdb.DB], _ *txpool.TxPool) (NetworkHandle, error) {
		network := p2p.NewNetwork(p2p.Config{}, ctx.Logger)
		go func() { stopped <- network.Run(context.Background()) }()
		return network, nil
	})
	composer.Payload = PayloadServiceBuilderFunc[*memdb.DB, *txpool.TxPool, *evm.BlockExecutor](func(*BuilderContext[*memdb.DB], *txpool.TxPool, *evm.BlockExecutor) (*payloadbuilder.PayloadBuilderHandle, error) {
		return nil, boom
	})

	_, err := BuildComponents(c, composer, nil)
	require.ErrorIs(t, err, boom)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("network still running after a failed build")
	}
}

func TestComposerOrder(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	c, _ := launchUntilBlockchainDB(t, cfg, memdb.NewTestDB(t))

	record := func(steps *[]ComponentKind) testComposer {
		composer := testComposerFor(log.New())
		pool, executor, network, payload := composer.Pool, composer.Executor, composer.Network, composer.Payload
		composer.Pool = PoolBuilderFunc[*memdb.DB, *txpool.TxPool](func(ctx *BuilderContext[*memdb.DB]) (*txpool.TxPool, error) {
			*steps = append(*steps, PoolComponent)
			return pool.BuildPool(ctx)
		})
		composer.Executor = ExecutorBuilderFunc[*memdb.DB, *evm.Config, *evm.BlockExecutor](func(ctx *BuilderContext[*memdb.DB]) (*evm.Config, *evm.BlockExecutor, error) {
			*steps = append(*steps, ExecutorComponent)
			return executor.BuildEvm(ctx)
		})
		composer.Network = NetworkBuilderFunc[*memdb.DB, *txpool.TxPool](func(ctx *BuilderContext[*memdb.DB], p *txpool.TxPool) (NetworkHandle, error) {
			require.NotNil(t, p)
			*steps = append(*steps, NetworkComponent)
			return network.BuildNetwork(ctx, p)
		})
		composer.Payload = PayloadServiceBuilderFunc[*memdb.DB, *txpool.TxPool, *evm.BlockExecutor](func(ctx *BuilderContext[*memdb.DB], p *txpool.TxPool, e *evm.BlockExecutor) (*payloadbuilder.PayloadBuilderHandle, error) {
			require.NotNil(t, p)
			require.NotNil(t, e)
			*steps = append(*steps, PayloadComponent)
			return payload.SpawnPayloadService(ctx, p, e)
		})
		return composer
	}

	t.Run("default", func(t *testing.T) {
		var steps []ComponentKind
		_, err := BuildComponents(c, record(&steps), nil)
		require.NoError(t, err)
		require.Equal(t, DefaultComponentOrder, steps)
	})

	t.Run("caller supplied", func(t *testing.T) {
		var steps []ComponentKind
		composer := record(&steps)
		composer.Order = []ComponentKind{ExecutorComponent, PoolComponent, PayloadComponent, NetworkComponent}
		withComponents, err := BuildComponents(c, composer, nil)
		require.NoError(t, err)
		require.Equal(t, composer.Order, steps)
		require.NotNil(t, withComponents.Components().Network)
		require.NotNil(t, withComponents.Components().PayloadBuilder)
	})

	t.Run("invalid", func(t *testing.T) {
		for name, order := range map[string][]ComponentKind{
			"network before pool": {NetworkComponent, PoolComponent, ExecutorComponent, PayloadComponent},
			"payload before exec": {PoolComponent, PayloadComponent, ExecutorComponent, NetworkComponent},
			"duplicate step":      {PoolComponent, PoolComponent, ExecutorComponent, PayloadComponent},
			"missing step":        {PoolComponent, ExecutorComponent, PayloadComponent},
			"unknown step":        {PoolComponent, ExecutorComponent, NetworkComponent, ComponentKind(9)},
			"empty but not nil":   {},
		} {
			var steps []ComponentKind
			composer := record(&steps)
			composer.Order = order
			_, err := BuildComponents(c, composer, nil)
			require.ErrorIs(t, err, ErrInvalidComponentOrder, name)
			require.Empty(t, steps, name)
		}
	})
}
