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

package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/ethdb/prune"
	"github.com/erigontech/erigon-launch/execution/engine"
	"github.com/erigontech/erigon-launch/execution/stagedsync"
	"github.com/erigontech/erigon-launch/kv/memdb"
	"github.com/erigontech/erigon-launch/p2p"
	"github.com/erigontech/erigon-launch/turbo/snapshotsync/producer"
)

func send[T any](events ...T) <-chan T {
	ch := make(chan T, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch
}

func TestMergeDeliversEverySource(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	merged := Merge(ctx,
		Map(ctx, send(p2p.PeerEvent{EventId: p2p.PeerEventConnect, PeerId: "a"}), FromNetwork),
		Map(ctx, send(stagedsync.Event{Kind: stagedsync.RunFinished, Progress: 5}), FromPipeline),
		Map[ClHealthEvent](ctx, nil, FromClHealth),
		Map(ctx, send(prune.Event{Kind: prune.EventFinished, Tip: 5}), FromPruner),
		Map(ctx, send(producer.Event{Kind: producer.EventFinished, To: 4}), FromStaticFiles),
	)

	seen := map[Source]int{}
	for e := range merged {
		seen[e.Source]++
	}
	require.Equal(t, map[Source]int{
		SourceNetwork:     1,
		SourcePipeline:    1,
		SourcePruner:      1,
		SourceStaticFiles: 1,
	}, seen)
}

func TestMergeStopsOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	open := make(chan NodeEvent)
	merged := Merge(ctx, open)
	cancel()
	select {
	case _, ok := <-merged:
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("merged stream not closed after cancel")
	}
}

type tracker struct {
	fcu, tc       time.Time
	hasFcu, hasTc bool
}

func (t tracker) LastReceivedUpdateTimestamp() (time.Time, bool) { return t.fcu, t.hasFcu }
func (t tracker) LastExchangedTransitionConfigurationTimestamp() (time.Time, bool) {
	return t.tc, t.hasTc
}

func TestCheckClHealth(t *testing.T) {
	t.Parallel()
	now := time.Now()
	tests := []struct {
		name    string
		tracker tracker
		want    ClHealthEventKind
		healthy bool
	}{
		{name: "never seen", tracker: tracker{}, want: ClNeverSeen},
		{name: "seen long ago", tracker: tracker{tc: now.Add(-5 * time.Minute), hasTc: true}, want: ClHasNotBeenSeenForAWhile},
		{name: "seen but no updates", tracker: tracker{tc: now.Add(-time.Second), hasTc: true}, want: ClNeverReceivedUpdates},
		{name: "stale updates", tracker: tracker{fcu: now.Add(-3 * time.Minute), hasFcu: true}, want: ClHaveNotReceivedUpdatesForAWhile},
		{name: "healthy", tracker: tracker{fcu: now.Add(-time.Second), hasFcu: true}, healthy: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, unhealthy := CheckClHealth(tt.tracker, now)
			require.Equal(t, !tt.healthy, unhealthy)
			if unhealthy {
				require.Equal(t, tt.want, ev.Kind)
			}
		})
	}
}

func TestClHealthEvents(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	stream := ClHealthEvents(ctx, tracker{}, 10*time.Millisecond)
	ev := <-stream
	require.Equal(t, ClNeverSeen, ev.Kind)
	cancel()
	for range stream {
	}
}

type peers int

func (p peers) PeerCount() int { return int(p) }

type metricsDB struct {
	*memdb.DB
	reports atomic.Int32
}

func (db *metricsDB) ReportMetrics() { db.reports.Add(1) }

func TestHandleEventsUntilStreamEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := &metricsDB{DB: memdb.NewTestDB(t)}
	events := make(chan NodeEvent)

	h := NewHandler(peers(3), nil, db, log.New())
	h.statusInterval = 5 * time.Millisecond
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, events) }()

	events <- FromNetwork(p2p.PeerEvent{EventId: p2p.PeerEventConnect, PeerId: "a"})
	events <- FromPipeline(stagedsync.Event{Kind: stagedsync.RunFinished, Progress: 7})
	events <- FromEngine(engine.Event{Kind: engine.EventCanonicalChainCommitted, Number: 9})
	events <- FromPruner(prune.Event{Kind: prune.EventFailed})
	events <- FromStaticFiles(producer.Event{Kind: producer.EventFinished})
	events <- FromClHealth(ClHealthEvent{Kind: ClNeverSeen})
	require.Eventually(t, func() bool { return db.reports.Load() > 0 }, 5*time.Second, 5*time.Millisecond)
	close(events)
	require.NoError(t, <-done)

	state := h.State()
	for _, source := range []Source{SourceNetwork, SourcePipeline, SourceConsensusEngine, SourcePruner, SourceStaticFiles, SourceClHealth} {
		require.Equal(t, 1, state.Handled(source), source.String())
	}
	latest, ok := state.LatestBlock()
	require.True(t, ok)
	require.Equal(t, uint64(9), latest)
}
