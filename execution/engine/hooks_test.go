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

package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/ethdb/prune"
	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/execution/stagedsync/stagedsynctest"
	"github.com/erigontech/erigon-launch/turbo/snapshotsync/producer"
)

type inlineSpawner struct {
	names []string
	errs  []error
}

func (s *inlineSpawner) SpawnCritical(name string, fn func(ctx context.Context) error) {
	s.names = append(s.names, name)
	s.errs = append(s.errs, fn(context.Background()))
}

func TestPruneHook(t *testing.T) {
	t.Parallel()
	logger := log.New()
	spec := chain.DevSpec()
	db, _ := stagedsynctest.GenerateChain(t, spec, 20, nil)
	factory, err := provider.NewFactory(context.Background(), db, spec, logger)
	require.NoError(t, err)

	mode, err := prune.FromCli(5, 0)
	require.NoError(t, err)
	pruner := prune.NewBuilder(mode).BlockInterval(10).BuildWithProviderFactory(factory, logger)
	events := pruner.Events()

	spawner := &inlineSpawner{}
	hooks := Hooks{NewPruneHook(pruner, spawner)}

	hooks.OnEvent(HookArgs{Tip: 20})
	require.Equal(t, []string{"pruner"}, spawner.names)
	require.NoError(t, spawner.errs[0])
	require.Equal(t, prune.EventStarted, (<-events).Kind)
	require.Equal(t, prune.EventFinished, (<-events).Kind)

	// below the block interval
	hooks.OnEvent(HookArgs{Tip: 25})
	require.Len(t, spawner.names, 1)

	hooks.OnEvent(HookArgs{Tip: 30})
	require.Len(t, spawner.names, 2)
}

func TestStaticFileHook(t *testing.T) {
	t.Parallel()
	logger := log.New()
	db, _ := stagedsynctest.GenerateChain(t, chain.DevSpec(), 10, nil)
	p := producer.NewProducer(db, filepath.Join(t.TempDir(), "snapshots"), logger)
	spawner := &inlineSpawner{}
	hook := NewStaticFileHook(p, spawner)

	hook.OnEvent(HookArgs{Tip: 10})
	require.Empty(t, spawner.names)

	finalized := uint64(6)
	hook.OnEvent(HookArgs{Tip: 10, Finalized: &finalized})
	require.Equal(t, []string{"static file producer"}, spawner.names)
	require.NoError(t, spawner.errs[0])

	last, ok, err := p.HighestStaticBlock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, finalized, last)
}

type failingSpawner struct{ err error }

func (s *failingSpawner) SpawnCritical(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.err = fn(ctx)
}

func TestStaticFileHookFailureIsReturned(t *testing.T) {
	t.Parallel()
	db, _ := stagedsynctest.GenerateChain(t, chain.DevSpec(), 3, nil)
	spawner := &failingSpawner{}
	hook := NewStaticFileHook(producer.NewProducer(db, t.TempDir(), log.New()), spawner)

	finalized := uint64(3)
	hook.OnEvent(HookArgs{Finalized: &finalized})
	require.True(t, errors.Is(spawner.err, context.Canceled))
}
