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

package exex

import (
	"context"
	"testing"
	"time"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/node/tasks"
)

func TestEmptyHandle(t *testing.T) {
	t.Parallel()

	h := EmptyHandle()
	require.False(t, h.HasExExs())
	require.True(t, h.FinishedHeight().IsNoExExs())
	require.NoError(t, h.SendNotification(context.Background(), Notification{}))

	var nilHandle *ManagerHandle
	require.True(t, nilHandle.FinishedHeight().IsNoExExs())
}

func TestLaunchWithoutExExs(t *testing.T) {
	t.Parallel()

	m := tasks.NewManager(context.Background(), log.New())
	defer m.Shutdown()

	h, err := NewLauncher(types.Head{}, nil, nil, nil, nil, log.New()).Launch(context.Background(), m.Executor())
	require.NoError(t, err)
	require.Nil(t, h)
}

// reporter is an extension that acknowledges the heights pushed on its channel.
func reporter(heights <-chan uint64, notified chan<- Notification) LaunchFunc {
	return func(ctx context.Context, exctx *Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case n := <-exctx.Notifications:
				if notified != nil {
					notified <- n
				}
			case h := <-heights:
				if err := exctx.SendEvent(ctx, Event{FinishedHeight: h}); err != nil {
					return nil
				}
			}
		}
	}
}

func TestFinishedHeightIsMinimumAndMonotonic(t *testing.T) {
	t.Parallel()

	m := tasks.NewManager(context.Background(), log.New())
	defer func() {
		m.Shutdown()
		require.NoError(t, m.Wait())
	}()

	a, b := make(chan uint64), make(chan uint64)
	notified := make(chan Notification, 1)
	exexs := []InstalledExEx{
		{ID: "a", Launch: reporter(a, notified)},
		{ID: "b", Launch: reporter(b, nil)},
	}
	h, err := NewLauncher(types.Head{}, nil, nil, nil, exexs, log.New()).Launch(context.Background(), m.Executor())
	require.NoError(t, err)
	require.True(t, h.HasExExs())
	require.True(t, h.FinishedHeight().IsNotReady())

	a <- 5
	// b has not reported yet
	time.Sleep(50 * time.Millisecond)
	require.True(t, h.FinishedHeight().IsNotReady())

	b <- 3
	require.Eventually(t, func() bool {
		v, ok := h.FinishedHeight().Value()
		return ok && v == 3
	}, 5*time.Second, 10*time.Millisecond)

	b <- 2
	time.Sleep(50 * time.Millisecond)
	v, ok := h.FinishedHeight().Value()
	require.True(t, ok)
	require.Equal(t, uint64(3), v)

	b <- 10
	require.Eventually(t, func() bool {
		v, ok := h.FinishedHeight().Value()
		return ok && v == 5
	}, 5*time.Second, 10*time.Millisecond)

	block := types.NewBlockWithHeader(&types.Header{Number: 11})
	require.NoError(t, h.SendNotification(context.Background(), Notification{Kind: ChainCommitted, Blocks: []*types.Block{block}}))
	n := <-notified
	tip, ok := n.Tip()
	require.True(t, ok)
	require.Equal(t, uint64(11), tip)
}

func TestLaunchRejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	m := tasks.NewManager(context.Background(), log.New())
	defer m.Shutdown()

	exexs := []InstalledExEx{{ID: "x", Launch: reporter(nil, nil)}, {ID: "x", Launch: reporter(nil, nil)}}
	_, err := NewLauncher(types.Head{}, nil, nil, nil, exexs, log.New()).Launch(context.Background(), m.Executor())
	require.Error(t, err)
}
