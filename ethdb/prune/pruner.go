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
	"fmt"
	"sync"
	"time"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/common/event"
	"github.com/erigontech/erigon-launch/db/rawdb"
	"github.com/erigontech/erigon-launch/execution/exex"
	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/execution/stagedsync/stages"
	"github.com/erigontech/erigon-launch/kv"
)

const (
	DefaultBlockInterval = 5
	DefaultDeleteLimit   = 3500
)

type EventKind uint8

const (
	EventStarted EventKind = iota
	EventFinished
	EventFailed
)

type Event struct {
	Kind     EventKind
	Tip      uint64
	Elapsed  time.Duration
	Bodies   uint64
	Receipts uint64
	Err      error
}

// Builder collects the pruner settings.
type Builder struct {
	mode          Mode
	blockInterval uint64
	deleteLimit   uint64
	exexHeight    exex.HeightReader
}

func NewBuilder(mode Mode) *Builder {
	return &Builder{mode: mode, blockInterval: DefaultBlockInterval, deleteLimit: DefaultDeleteLimit}
}

// BlockInterval is the minimum number of blocks between two pruner runs.
func (b *Builder) BlockInterval(n uint64) *Builder {
	b.blockInterval = n
	return b
}

// DeleteLimit caps the number of entries deleted per segment in one run.
func (b *Builder) DeleteLimit(n uint64) *Builder {
	b.deleteLimit = n
	return b
}

// FinishedExExHeight bounds pruning to what all extensions processed.
func (b *Builder) FinishedExExHeight(h exex.HeightReader) *Builder {
	b.exexHeight = h
	return b
}

func (b *Builder) Mode() Mode { return b.mode }

func (b *Builder) BuildWithProviderFactory(factory *provider.Factory, logger log.Logger) *Pruner {
	exexHeight := b.exexHeight
	if exexHeight == nil {
		exexHeight = exex.EmptyHandle()
	}
	return &Pruner{
		db:            factory.DB(),
		mode:          b.mode,
		blockInterval: b.blockInterval,
		deleteLimit:   b.deleteLimit,
		exexHeight:    exexHeight,
		events:        event.NewSender[Event](64),
		logger:        logger,
	}
}

// Pruner deletes block bodies and receipts older than the configured
// distances. It never deletes data above the height every installed
// extension has finished with.
type Pruner struct {
	db            kv.RwDB
	mode          Mode
	blockInterval uint64
	deleteLimit   uint64
	exexHeight    exex.HeightReader
	events        *event.Sender[Event]
	logger        log.Logger

	mu          sync.Mutex
	previousTip *uint64
}

func (p *Pruner) Events() <-chan Event { return p.events.Subscribe() }
func (p *Pruner) Mode() Mode           { return p.mode }

// IsPruningNeeded reports whether enough blocks passed since the previous run.
func (p *Pruner) IsPruningNeeded(tip uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mode.Enabled() {
		return false
	}
	return p.previousTip == nil || tip >= *p.previousTip+p.blockInterval
}

// Targets returns, per segment, the block number below which data may be
// deleted for the given tip. ok is false when extensions did not report yet.
func (p *Pruner) Targets(tip uint64) (bodies, receipts uint64, ok bool) {
	bodies = pruneTo(p.mode.Blocks, tip)
	receipts = pruneTo(p.mode.History, tip)

	finished := p.exexHeight.FinishedHeight()
	switch {
	case finished.IsNoExExs():
	case finished.IsNotReady():
		return 0, 0, false
	default:
		h, _ := finished.Value()
		bodies = min(bodies, h+1)
		receipts = min(receipts, h+1)
	}
	return bodies, receipts, true
}

func pruneTo(amount Distance, tip uint64) uint64 {
	if !amount.Enabled() {
		return 0
	}
	return amount.PruneTo(tip)
}

// Run prunes up to the targets for tip. Failures are reported on the event
// stream as well as returned.
func (p *Pruner) Run(ctx context.Context, tip uint64) error {
	start := time.Now()
	p.events.Notify(Event{Kind: EventStarted, Tip: tip})

	bodiesTarget, receiptsTarget, ok := p.Targets(tip)
	if !ok {
		p.logger.Debug("[prune] ExExs not ready, skipping", "tip", tip)
		p.events.Notify(Event{Kind: EventFinished, Tip: tip, Elapsed: time.Since(start)})
		return nil
	}

	var bodies, receipts uint64
	err := p.db.Update(ctx, func(tx kv.RwTx) error {
		var err error
		bodies, err = p.pruneSegment(tx, stages.Bodies, bodiesTarget, func(n uint64) error {
			hash, err := rawdb.ReadCanonicalHash(tx, n)
			if err != nil {
				return err
			}
			return rawdb.DeleteBody(tx, hash, n)
		})
		if err != nil {
			return fmt.Errorf("prune bodies: %w", err)
		}
		receipts, err = p.pruneSegment(tx, stages.Execution, receiptsTarget, func(n uint64) error {
			return rawdb.DeleteReceipts(tx, n)
		})
		if err != nil {
			return fmt.Errorf("prune receipts: %w", err)
		}
		return nil
	})
	elapsed := time.Since(start)
	if err != nil {
		p.events.Notify(Event{Kind: EventFailed, Tip: tip, Elapsed: elapsed, Err: err})
		return err
	}

	p.mu.Lock()
	p.previousTip = &tip
	p.mu.Unlock()

	p.events.Notify(Event{Kind: EventFinished, Tip: tip, Elapsed: elapsed, Bodies: bodies, Receipts: receipts})
	p.logger.Debug("[prune] done", "tip", tip, "bodies", bodies, "receipts", receipts, "took", elapsed)
	return nil
}

// pruneSegment deletes entries in [progress, target) and records the progress
// under the stage key.
func (p *Pruner) pruneSegment(tx kv.RwTx, stage stages.SyncStage, target uint64, del func(n uint64) error) (uint64, error) {
	progress, err := stages.GetStagePruneProgress(tx, stage)
	if err != nil {
		return 0, err
	}
	var deleted uint64
	n := progress
	for ; n < target && deleted < p.deleteLimit; n++ {
		if err := del(n); err != nil {
			return deleted, err
		}
		deleted++
	}
	if n != progress {
		if err := stages.SaveStagePruneProgress(tx, stage, n); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (p *Pruner) Close() { p.events.Close() }
