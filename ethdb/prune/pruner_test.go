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

package prune

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/core/genesiswrite"
	"github.com/erigontech/erigon-launch/db/rawdb"
	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/exex"
	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/kv/memdb"
)

type fixedHeight exex.FinishedHeight

func (h fixedHeight) FinishedHeight() exex.FinishedHeight { return exex.FinishedHeight(h) }

func newTestFactory(t *testing.T, blocks uint64) *provider.Factory {
	t.Helper()
	ctx := context.Background()
	logger := log.New()
	db := memdb.NewTestDB(t)
	spec := chain.DevSpec()

	_, err := genesiswrite.CommitGenesisBlock(ctx, db, spec, logger)
	require.NoError(t, err)

	err = db.Update(ctx, func(tx kv.RwTx) error {
		parent := spec.GenesisHeader()
		for n := uint64(1); n <= blocks; n++ {
			header := &types.Header{ParentHash: parent.Hash(), Number: n, Time: parent.Time + 12, Difficulty: uint256.NewInt(0)}
			block := types.NewBlock(header, &types.Body{})
			if err := rawdb.WriteBlock(tx, block); err != nil {
				return err
			}
			if err := rawdb.WriteCanonicalHash(tx, block.Hash(), n); err != nil {
				return err
			}
			if err := rawdb.WriteReceipts(tx, n, types.Receipts{}); err != nil {
				return err
			}
			parent = header
		}
		return nil
	})
	require.NoError(t, err)

	factory, err := provider.NewFactory(ctx, db, spec, logger)
	require.NoError(t, err)
	return factory
}

func hasBody(t *testing.T, factory *provider.Factory, n uint64) bool {
	t.Helper()
	var ok bool
	err := factory.DB().View(context.Background(), func(tx kv.Tx) error {
		hash, err := rawdb.ReadCanonicalHash(tx, n)
		if err != nil {
			return err
		}
		ok, err = rawdb.HasBody(tx, hash, n)
		return err
	})
	require.NoError(t, err)
	return ok
}

func TestPrunerTargetsWithoutExExs(t *testing.T) {
	t.Parallel()

	mode, err := FromCli(10, 20)
	require.NoError(t, err)
	factory := newTestFactory(t, 0)

	unbounded := NewBuilder(mode).BuildWithProviderFactory(factory, log.New())
	withEmpty := NewBuilder(mode).FinishedExExHeight(exex.EmptyHandle()).BuildWithProviderFactory(factory, log.New())

	for _, tip := range []uint64{0, 5, 100, 1_000_000} {
		b1, r1, ok1 := unbounded.Targets(tip)
		b2, r2, ok2 := withEmpty.Targets(tip)
		require.True(t, ok1)
		require.True(t, ok2)
		require.Equal(t, b1, b2)
		require.Equal(t, r1, r2)
		require.Equal(t, mode.Blocks.PruneTo(tip), b2)
		require.Equal(t, mode.History.PruneTo(tip), r2)
	}
}

func TestPrunerBoundedByExExHeight(t *testing.T) {
	t.Parallel()

	mode, err := FromCli(1, 1)
	require.NoError(t, err)
	factory := newTestFactory(t, 20)

	notReady := NewBuilder(mode).FinishedExExHeight(fixedHeight(exex.NotReady())).BuildWithProviderFactory(factory, log.New())
	_, _, ok := notReady.Targets(20)
	require.False(t, ok)

	pruner := NewBuilder(mode).FinishedExExHeight(fixedHeight(exex.Height(3))).BuildWithProviderFactory(factory, log.New())
	events := pruner.Events()

	bodies, receipts, ok := pruner.Targets(20)
	require.True(t, ok)
	require.Equal(t, uint64(4), bodies)
	require.Equal(t, uint64(4), receipts)

	require.True(t, pruner.IsPruningNeeded(20))
	require.NoError(t, pruner.Run(context.Background(), 20))
	require.False(t, pruner.IsPruningNeeded(21))

	require.False(t, hasBody(t, factory, 3))
	require.True(t, hasBody(t, factory, 4))

	started := <-events
	require.Equal(t, EventStarted, started.Kind)
	finished := <-events
	require.Equal(t, EventFinished, finished.Kind)
	require.Equal(t, uint64(4), finished.Bodies)
}
