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
	"bytes"
	"context"
	"fmt"

	"github.com/tidwall/btree"

	"github.com/erigontech/erigon-launch/execution/types"
)

const DefaultTreeLimit = 256

type TreeActionKind uint8

const (
	ActionInsertBlock TreeActionKind = iota
	ActionFindBlock
	ActionCanonicalize
)

// TreeAction is written by the service to the tree.
type TreeAction struct {
	Kind   TreeActionKind
	Block  *types.Block
	Hash   types.Hash
	Number uint64
}

type TreeEventKind uint8

const (
	TreeBlockInserted TreeEventKind = iota
	TreeBlockFound
	TreeBlockMissing
	TreeCanonicalized
)

func (k TreeEventKind) String() string {
	switch k {
	case TreeBlockInserted:
		return "BlockInserted"
	case TreeBlockFound:
		return "BlockFound"
	case TreeBlockMissing:
		return "BlockMissing"
	case TreeCanonicalized:
		return "Canonicalized"
	default:
		return fmt.Sprintf("TreeEventKind(%d)", k)
	}
}

// TreeEvent answers exactly one TreeAction.
type TreeEvent struct {
	Kind    TreeEventKind
	Hash    types.Hash
	Number  uint64
	Removed int
}

// Tree keeps the payloads received from the consensus layer that are not
// canonical yet. It is owned by the goroutine running Run and talks to the
// service through a pair of channels.
type Tree struct {
	blocks  *btree.BTreeG[*types.Block]
	byHash  map[types.Hash]*types.Block
	limit   int
	actions <-chan TreeAction
	events  chan<- TreeEvent
}

func lessBlock(a, b *types.Block) bool {
	if a.Number() != b.Number() {
		return a.Number() < b.Number()
	}
	ah, bh := a.Hash(), b.Hash()
	return bytes.Compare(ah[:], bh[:]) < 0
}

// NewTree returns the tree with the sending side of its action channel and
// the receiving side of its event channel.
func NewTree(limit int) (*Tree, chan<- TreeAction, <-chan TreeEvent) {
	if limit <= 0 {
		limit = DefaultTreeLimit
	}
	actions := make(chan TreeAction, 1)
	events := make(chan TreeEvent, 1)
	return &Tree{
		blocks:  btree.NewBTreeG[*types.Block](lessBlock),
		byHash:  make(map[types.Hash]*types.Block),
		limit:   limit,
		actions: actions,
		events:  events,
	}, actions, events
}

func (t *Tree) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case action, ok := <-t.actions:
			if !ok {
				return nil
			}
			ev := t.apply(action)
			select {
			case t.events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (t *Tree) apply(action TreeAction) TreeEvent {
	switch action.Kind {
	case ActionInsertBlock:
		block := action.Block
		hash := block.Hash()
		if _, ok := t.byHash[hash]; !ok {
			for t.blocks.Len() >= t.limit {
				oldest, _ := t.blocks.PopMin()
				delete(t.byHash, oldest.Hash())
			}
			t.blocks.Set(block)
			t.byHash[hash] = block
		}
		return TreeEvent{Kind: TreeBlockInserted, Hash: hash, Number: block.Number()}
	case ActionFindBlock:
		if block, ok := t.byHash[action.Hash]; ok {
			return TreeEvent{Kind: TreeBlockFound, Hash: action.Hash, Number: block.Number()}
		}
		return TreeEvent{Kind: TreeBlockMissing, Hash: action.Hash}
	case ActionCanonicalize:
		removed := 0
		for {
			oldest, ok := t.blocks.Min()
			if !ok || oldest.Number() > action.Number {
				break
			}
			t.blocks.Delete(oldest)
			delete(t.byHash, oldest.Hash())
			removed++
		}
		return TreeEvent{Kind: TreeCanonicalized, Hash: action.Hash, Number: action.Number, Removed: removed}
	default:
		panic(fmt.Sprintf("unknown tree action %d", action.Kind))
	}
}
