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

package stagedsync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/common/event"
	"github.com/erigontech/erigon-launch/db/rawdb"
	"github.com/erigontech/erigon-launch/ethdb/prune"
	"github.com/erigontech/erigon-launch/execution/consensus"
	"github.com/erigontech/erigon-launch/execution/exex"
	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/execution/stagedsync/stages"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/metrics"
	"github.com/erigontech/erigon-launch/node/tasks"
	"github.com/erigontech/erigon-launch/p2p"
	"github.com/erigontech/erigon-launch/turbo/snapshotsync/producer"
)

const badBlocksLimit = 128

var (
	ErrPipelineBusy           = errors.New("pipeline is already running")
	ErrUnwindBelowStaticFiles = errors.New("unwind below static files")
	ErrBlockExecution         = errors.New("block execution failed")
)

// Config holds the batch sizes of the default stages.
type Config struct {
	HeadersBatch uint64
	BodiesBatch  int
	ExecBatch    int
}

type EventKind uint8

const (
	RunStarted EventKind = iota
	StageRan
	StageUnwound
	RunFinished
	RunFailed
)

func (k EventKind) String() string {
	switch k {
	case RunStarted:
		return "RunStarted"
	case StageRan:
		return "StageRan"
	case StageUnwound:
		return "StageUnwound"
	case RunFinished:
		return "RunFinished"
	case RunFailed:
		return "RunFailed"
	default:
		return fmt.Sprintf("EventKind(%d)", k)
	}
}

type Event struct {
	Kind     EventKind
	Target   uint64
	Stage    stages.SyncStage
	Progress uint64
	Elapsed  time.Duration
	Err      error
}

type Result struct {
	// Progress is the Finish stage checkpoint after the run.
	Progress        uint64
	ReachedMaxBlock bool
}

// Pipeline runs the staged sync in a single write transaction per run. It is
// driven by exactly one caller, concurrent runs fail with ErrPipelineBusy.
type Pipeline struct {
	db        kv.RwDB
	sync      *Sync
	maxBlock  *uint64
	producer  *producer.Producer
	badBlocks *lru.Cache[types.Hash, uint64]
	events    *event.Sender[Event]
	running   atomic.Bool
	logger    log.Logger
}

func NewPipeline(db kv.RwDB, sync *Sync, maxBlock *uint64, staticFiles *producer.Producer, logger log.Logger) *Pipeline {
	p := &Pipeline{
		db:        db,
		sync:      sync,
		maxBlock:  maxBlock,
		producer:  staticFiles,
		badBlocks: newBadBlockCache(),
		events:    event.NewSender[Event](256),
		logger:    logger,
	}
	sync.onStage = func(stage stages.SyncStage, progress uint64, unwind bool) {
		kind := StageRan
		if unwind {
			kind = StageUnwound
		}
		p.events.Notify(Event{Kind: kind, Stage: stage, Progress: progress})
	}
	return p
}

// BuildNetworkedPipeline wires the default stages to a block source.
func BuildNetworkedPipeline(
	cfg Config,
	client p2p.FetchClient,
	engine consensus.Engine,
	factory *provider.Factory,
	executor *tasks.Executor,
	syncMetrics metrics.SyncMetricsTx,
	pruneMode prune.Mode,
	maxBlock *uint64,
	staticFiles *producer.Producer,
	blockExecutor BlockExecutor,
	exexHandle *exex.ManagerHandle,
	logger log.Logger,
) (*Pipeline, error) {
	ctx := executor.Context()
	if err := factory.DB().Update(ctx, func(tx kv.RwTx) error {
		_, err := prune.EnsureNotChanged(tx, pruneMode)
		return err
	}); err != nil {
		return nil, err
	}

	badBlocks := newBadBlockCache()
	headersCfg := StageHeadersCfg(client, engine, cfg.HeadersBatch, syncMetrics)
	headersCfg.badBlocks = badBlocks
	stageList := DefaultStages(
		headersCfg,
		StageBodiesCfg(client, cfg.BodiesBatch, syncMetrics),
		StageExecuteBlocksCfg(blockExecutor, exexHandle, cfg.ExecBatch, syncMetrics),
		StageFinishCfg(),
	)
	p := NewPipeline(factory.DB(), New(stageList, DefaultUnwindOrder, DefaultPruneOrder, logger), maxBlock, staticFiles, logger)
	p.badBlocks = badBlocks

	executor.Spawn("pipeline events", func(ctx context.Context) error {
		<-ctx.Done()
		p.events.Close()
		return nil
	})
	return p, nil
}

func newBadBlockCache() *lru.Cache[types.Hash, uint64] {
	c, err := lru.New[types.Hash, uint64](badBlocksLimit)
	if err != nil {
		panic(err)
	}
	return c
}

func (p *Pipeline) Events() <-chan Event { return p.events.Subscribe() }
func (p *Pipeline) MaxBlock() *uint64    { return p.maxBlock }

func (p *Pipeline) IsBadBlock(hash types.Hash) bool { return p.badBlocks.Contains(hash) }

func (p *Pipeline) Progress(ctx context.Context) (progress uint64, err error) {
	err = p.db.View(ctx, func(tx kv.Tx) error {
		progress, err = stages.GetStageProgress(tx, stages.Finish)
		return err
	})
	return progress, err
}

// Run moves the chain to target, unwinding first when target is below the
// current progress. The target is capped by the max block.
func (p *Pipeline) Run(ctx context.Context, target uint64) (Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Result{}, ErrPipelineBusy
	}
	defer p.running.Store(false)

	if p.maxBlock != nil && target > *p.maxBlock {
		target = *p.maxBlock
	}
	start := time.Now()
	p.events.Notify(Event{Kind: RunStarted, Target: target})

	res, err := p.run(ctx, target)
	if err != nil {
		p.events.Notify(Event{Kind: RunFailed, Target: target, Progress: res.Progress, Elapsed: time.Since(start), Err: err})
		return res, err
	}
	p.events.Notify(Event{Kind: RunFinished, Target: target, Progress: res.Progress, Elapsed: time.Since(start)})
	if logCtx := p.sync.PrintTimings(); len(logCtx) > 0 {
		p.logger.Info("Timings (slower than 50ms)", logCtx...)
	}
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, target uint64) (Result, error) {
	progress, err := p.Progress(ctx)
	if err != nil {
		return Result{}, err
	}
	p.moveToStaticFiles(ctx, progress)

	tx, err := p.db.BeginRw(ctx)
	if err != nil {
		return Result{Progress: progress}, err
	}
	defer tx.Rollback()

	if target < progress {
		lastStatic, ok, err := rawdb.ReadLastStaticFileBlock(tx)
		if err != nil {
			return Result{Progress: progress}, err
		}
		if ok && target < lastStatic {
			return Result{Progress: progress}, fmt.Errorf("%w: target %d, static files up to %d", ErrUnwindBelowStaticFiles, target, lastStatic)
		}
		p.sync.UnwindTo(target, types.Hash{})
	}

	badBlockUnwind, err := p.sync.Run(ctx, tx, target)
	if err != nil {
		return Result{Progress: progress}, err
	}
	newProgress, err := stages.GetStageProgress(tx, stages.Finish)
	if err != nil {
		return Result{Progress: progress}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{Progress: progress}, err
	}

	res := Result{Progress: newProgress, ReachedMaxBlock: p.maxBlock != nil && newProgress >= *p.maxBlock}
	if badBlockUnwind {
		bad := p.sync.PrevBadBlock()
		number := *p.sync.PrevUnwindPoint() + 1
		p.badBlocks.Add(bad, number)
		return res, &BadBlockError{Number: number, Hash: bad, Err: ErrBlockExecution}
	}
	return res, nil
}

// moveToStaticFiles copies blocks deeper than the immutability threshold
// into segment files. Failures are reported on the producer event stream.
func (p *Pipeline) moveToStaticFiles(ctx context.Context, progress uint64) {
	if p.producer == nil || progress < prune.FullImmutabilityThreshold {
		return
	}
	if err := p.producer.Run(ctx, progress-prune.FullImmutabilityThreshold); err != nil {
		p.logger.Warn("[pipeline] static files", "err", err)
	}
}
