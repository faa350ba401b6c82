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

// Package exex runs execution extensions: long-lived plugins that are fed every
// chain change committed by the node and report back how far they processed it.
package exex

import (
	"context"
	"fmt"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/turbo/services"
)

// LaunchFunc runs an extension until ctx is cancelled. Returning an error is
// fatal for the node.
type LaunchFunc func(ctx context.Context, exctx *Context) error

// InstalledExEx is an extension registered on the node builder.
type InstalledExEx struct {
	ID     string
	Launch LaunchFunc
}

type NotificationKind uint8

const (
	ChainCommitted NotificationKind = iota
	ChainReverted
)

func (k NotificationKind) String() string {
	switch k {
	case ChainCommitted:
		return "ChainCommitted"
	case ChainReverted:
		return "ChainReverted"
	default:
		return fmt.Sprintf("NotificationKind(%d)", k)
	}
}

// Notification describes a range of blocks that was committed or reverted.
type Notification struct {
	Kind     NotificationKind
	Blocks   []*types.Block
	Receipts []types.Receipts
}

// Tip returns the highest block of the notification.
func (n Notification) Tip() (uint64, bool) {
	if len(n.Blocks) == 0 {
		return 0, false
	}
	return n.Blocks[len(n.Blocks)-1].Number(), true
}

// Event is sent by an extension to the manager.
type Event struct {
	// FinishedHeight is the highest block the extension processed. Data up to
	// and including it may be pruned.
	FinishedHeight uint64
}

type taggedEvent struct {
	id    string
	event Event
}

// Context is what an extension receives when launched.
type Context struct {
	ID            string
	Head          types.Head
	ChainSpec     *chain.Spec
	DB            kv.RoDB
	BlockReader   services.FullBlockReader
	Notifications <-chan Notification
	Logger        log.Logger

	events chan<- taggedEvent
}

// SendEvent reports progress to the manager.
func (c *Context) SendEvent(ctx context.Context, e Event) error {
	select {
	case c.events <- taggedEvent{id: c.ID, event: e}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type finishedKind uint8

const (
	finishedNoExExs finishedKind = iota
	finishedNotReady
	finishedHeight
)

// FinishedHeight is the height up to which all extensions processed the chain.
type FinishedHeight struct {
	kind   finishedKind
	height uint64
}

// NoExExs means no extensions are installed, nothing bounds pruning.
func NoExExs() FinishedHeight { return FinishedHeight{kind: finishedNoExExs} }

// NotReady means some extension did not report a height yet.
func NotReady() FinishedHeight { return FinishedHeight{kind: finishedNotReady} }

func Height(h uint64) FinishedHeight { return FinishedHeight{kind: finishedHeight, height: h} }

func (f FinishedHeight) IsNoExExs() bool  { return f.kind == finishedNoExExs }
func (f FinishedHeight) IsNotReady() bool { return f.kind == finishedNotReady }

func (f FinishedHeight) Value() (uint64, bool) {
	return f.height, f.kind == finishedHeight
}

func (f FinishedHeight) String() string {
	switch f.kind {
	case finishedNoExExs:
		return "NoExExs"
	case finishedNotReady:
		return "NotReady"
	default:
		return fmt.Sprintf("Height(%d)", f.height)
	}
}

// HeightReader gives read access to the finished height.
type HeightReader interface {
	FinishedHeight() FinishedHeight
}
