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
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/execution/types"
)

func TestQueue(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, q.Push(i))
		}()
	}
	wg.Wait()
	require.Equal(t, 100, q.Len())
	<-q.Ready()

	seen := map[int]bool{}
	for {
		v, ok := q.TryPop()
		if !ok {
			break
		}
		seen[v] = true
	}
	require.Len(t, seen, 100)

	require.NoError(t, q.Push(1))
	require.Equal(t, []int{1}, q.Close())
	require.ErrorIs(t, q.Push(2), ErrEngineUnavailable)
}

func testBlock(number uint64, extra byte) *types.Block {
	return types.NewBlockWithHeader(&types.Header{Number: number, Extra: []byte{extra}, Difficulty: uint256.NewInt(0)})
}

func TestTree(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, toTree, fromTree := NewTree(3)
	go tree.Run(ctx) //nolint:errcheck
	call := func(a TreeAction) TreeEvent {
		toTree <- a
		return <-fromTree
	}

	blocks := []*types.Block{testBlock(1, 0), testBlock(2, 0), testBlock(2, 1), testBlock(3, 0)}
	for _, b := range blocks {
		ev := call(TreeAction{Kind: ActionInsertBlock, Block: b})
		require.Equal(t, TreeBlockInserted, ev.Kind)
		require.Equal(t, b.Hash(), ev.Hash)
	}

	// limit evicts the lowest block
	require.Equal(t, TreeBlockMissing, call(TreeAction{Kind: ActionFindBlock, Hash: blocks[0].Hash()}).Kind)
	ev := call(TreeAction{Kind: ActionFindBlock, Hash: blocks[2].Hash()})
	require.Equal(t, TreeBlockFound, ev.Kind)
	require.Equal(t, uint64(2), ev.Number)

	ev = call(TreeAction{Kind: ActionCanonicalize, Number: 2})
	require.Equal(t, TreeCanonicalized, ev.Kind)
	require.Equal(t, 2, ev.Removed)
	require.Equal(t, TreeBlockFound, call(TreeAction{Kind: ActionFindBlock, Hash: blocks[3].Hash()}).Kind)
}
