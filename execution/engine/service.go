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
	"fmt"
	"time"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/common/event"
	"github.com/erigontech/erigon-launch/db/rawdb"
	"github.com/erigontech/erigon-launch/execution/builder"
	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/consensus"
	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/execution/stagedsync"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/p2p"
)

const DefaultRetryInterval = time.Second

// Pipeline is the part of the sync pipeline the service drives.
type Pipeline interface {
	Run(ctx context.Context, target uint64) (stagedsync.Result, error)
	Progress(ctx context.Context) (uint64, error)
	IsBadBlock(hash types.Hash) bool
}

type EventKind uint8

const (
	EventForkchoiceUpdated EventKind = iota
	EventNewPayload
	EventCanonicalChainCommitted
	EventInvalidBlock
)

func (k EventKind) String() string {
	switch k {
	case EventForkchoiceUpdated:
		return "ForkchoiceUpdated"
	case EventNewPayload:
		return "NewPayload"
	case EventCanonicalChainCommitted:
		return "CanonicalChainCommitted"
	case EventInvalidBlock:
		return "InvalidBlock"
	default:
		return fmt.Sprintf("EventKind(%d)", k)
	}
}

type Event struct {
	Kind    EventKind
	Hash    types.Hash
	Number  uint64
	Status  PayloadStatus
	Elapsed time.Duration
}

type ServiceConfig struct {
	ChainSpec *chain.Spec
	Client    p2p.FetchClient
	Consensus consensus.Engine
	Provider  *provider.BlockchainProvider
	Pipeline  Pipeline
	// Payloads is optional. Without it forkchoice updates with attributes
	// never start a payload build.
	Payloads *builder.PayloadBuilderHandle
	Hooks    Hooks
	// InitialTarget is synced to before any consensus layer request.
	InitialTarget *uint64
	RetryInterval time.Duration
}

// Service bridges consensus layer requests to the local pipeline and block
// tree. It is the only driver of the pipeline once started.
type Service struct {
	cfg      ServiceConfig
	db       kv.RoDB
	toTree   chan<- TreeAction
	fromTree <-chan TreeEvent
	requests *Queue[Message]
	events   *event.Sender[Event]
	done     chan struct{}

	target     *uint64
	needsRun   bool
	forkchoice *provider.ForkchoiceState

	logger log.Logger
}

func NewService(cfg ServiceConfig, toTree chan<- TreeAction, fromTree <-chan TreeEvent, requests *Queue[Message], logger log.Logger) (*Service, *Handle) {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	s := &Service{
		cfg:      cfg,
		db:       cfg.Provider.DB(),
		toTree:   toTree,
		fromTree: fromTree,
		requests: requests,
		events:   event.NewSender[Event](128),
		done:     make(chan struct{}),
		logger:   logger,
	}
	return s, &Handle{queue: requests, events: s.events, done: s.done}
}

// Run drives the pipeline until a shutdown request, the max block, a fatal
// pipeline error or cancellation. It must be called once.
func (s *Service) Run(ctx context.Context) error {
	defer func() {
		close(s.done)
		if rest := s.requests.Close(); len(rest) > 0 {
			s.logger.Debug("[engine] dropping requests", "count", len(rest))
		}
		s.events.Close()
	}()

	s.logger.Info("Starting consensus engine", "chain", s.cfg.ChainSpec.Name(), "hooks", len(s.cfg.Hooks))
	if s.cfg.InitialTarget != nil {
		target := *s.cfg.InitialTarget
		s.target = &target
		s.needsRun = true
		s.logger.Info("[engine] syncing to debug tip", "target", target)
	}

	for {
		for {
			msg, ok := s.requests.TryPop()
			if !ok {
				break
			}
			if done, err := s.onMessage(ctx, msg); done {
				return err
			}
		}

		var retry <-chan time.Time
		if s.needsRun {
			done, err := s.runPipeline(ctx)
			if done {
				return err
			}
			if s.needsRun {
				retry = time.After(s.cfg.RetryInterval)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.requests.Ready():
		case <-retry:
		}
	}
}

func (s *Service) runPipeline(ctx context.Context) (done bool, err error) {
	target := *s.target
	start := time.Now()
	res, err := s.cfg.Pipeline.Run(ctx, target)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return true, ctx.Err()
		}
		if stagedsync.IsFatal(err) {
			s.logger.Error("[engine] pipeline failed", "target", target, "err", err)
			return true, fmt.Errorf("pipeline: %w", err)
		}
		var badBlock *stagedsync.BadBlockError
		if errors.As(err, &badBlock) {
			s.events.Notify(Event{Kind: EventInvalidBlock, Hash: badBlock.Hash, Number: badBlock.Number, Status: StatusInvalid})
		}
		s.logger.Warn("[engine] pipeline run incomplete, will retry", "target", target, "progress", res.Progress, "err", err)
	} else if res.Progress >= target {
		s.needsRun = false
	}

	if err := s.onCanonicalProgress(ctx, res.Progress); err != nil {
		return true, err
	}
	s.events.Notify(Event{Kind: EventCanonicalChainCommitted, Number: res.Progress, Elapsed: time.Since(start)})

	if res.ReachedMaxBlock {
		s.logger.Info("[engine] reached max block, stopping", "block", res.Progress)
		return true, nil
	}
	return false, nil
}

func (s *Service) onCanonicalProgress(ctx context.Context, progress uint64) error {
	if err := s.cfg.Provider.RefreshCanonicalHead(ctx); err != nil {
		return err
	}
	if _, err := s.treeCall(ctx, TreeAction{Kind: ActionCanonicalize, Number: progress}); err != nil {
		return err
	}
	s.cfg.Hooks.OnEvent(HookArgs{Tip: progress, Finalized: s.finalizedNumber(ctx)})
	return nil
}

func (s *Service) finalizedNumber(ctx context.Context) *uint64 {
	if s.forkchoice == nil || s.forkchoice.Finalized == (types.Hash{}) {
		return nil
	}
	number, ok, err := s.canonicalNumber(ctx, s.forkchoice.Finalized)
	if err != nil || !ok {
		return nil
	}
	return &number
}

// canonicalNumber returns the number of hash when it is part of the local
// canonical chain.
func (s *Service) canonicalNumber(ctx context.Context, hash types.Hash) (number uint64, ok bool, err error) {
	err = s.db.View(ctx, func(tx kv.Tx) error {
		n, err := rawdb.ReadHeaderNumber(tx, hash)
		if err != nil || n == nil {
			return err
		}
		canonical, err := rawdb.ReadCanonicalHash(tx, *n)
		if err != nil {
			return err
		}
		number, ok = *n, canonical == hash
		return nil
	})
	return number, ok, err
}

func (s *Service) treeCall(ctx context.Context, action TreeAction) (TreeEvent, error) {
	select {
	case s.toTree <- action:
	case <-ctx.Done():
		return TreeEvent{}, ctx.Err()
	}
	select {
	case ev := <-s.fromTree:
		return ev, nil
	case <-ctx.Done():
		return TreeEvent{}, ctx.Err()
	}
}

func (s *Service) onMessage(ctx context.Context, msg Message) (done bool, err error) {
	switch msg := msg.(type) {
	case ForkchoiceUpdated:
		res, err := s.onForkchoiceUpdated(ctx, msg)
		if err != nil {
			return true, err
		}
		msg.Resp <- res
	case NewPayload:
		res, err := s.onNewPayload(ctx, msg.Block)
		if err != nil {
			return true, err
		}
		msg.Resp <- res
	case TransitionConfiguration:
		s.cfg.Provider.OnTransitionConfigurationExchanged()
		msg.Resp <- struct{}{}
	case Shutdown:
		s.logger.Info("[engine] shutdown requested")
		return true, nil
	default:
		return true, fmt.Errorf("unknown engine message %T", msg)
	}
	return false, nil
}

func (s *Service) onForkchoiceUpdated(ctx context.Context, msg ForkchoiceUpdated) (ForkchoiceUpdatedResult, error) {
	state := msg.State
	s.cfg.Provider.OnForkchoiceUpdateReceived(state)
	s.forkchoice = &state

	status, err := s.forkchoiceStatus(ctx, state.Head)
	if err != nil {
		return ForkchoiceUpdatedResult{}, err
	}
	res := ForkchoiceUpdatedResult{PayloadStatus: status}
	if status.Status == StatusValid && msg.Attributes != nil && s.cfg.Payloads != nil {
		attributes := *msg.Attributes
		attributes.ParentHash = state.Head
		id, err := s.cfg.Payloads.BuildPayload(ctx, &attributes)
		if err != nil {
			s.logger.Warn("[engine] payload build not started", "err", err)
		} else {
			res.PayloadId = &id
		}
	}
	s.events.Notify(Event{Kind: EventForkchoiceUpdated, Hash: state.Head, Status: status.Status})
	return res, nil
}

func (s *Service) forkchoiceStatus(ctx context.Context, head types.Hash) (PayloadStatusResult, error) {
	if head == (types.Hash{}) {
		return PayloadStatusResult{Status: StatusInvalid, ValidationError: "forkchoice head is empty"}, nil
	}
	if s.cfg.Pipeline.IsBadBlock(head) {
		return PayloadStatusResult{Status: StatusInvalid, ValidationError: "head is a known bad block"}, nil
	}

	progress, err := s.cfg.Pipeline.Progress(ctx)
	if err != nil {
		return PayloadStatusResult{}, err
	}
	number, canonical, err := s.canonicalNumber(ctx, head)
	if err != nil {
		return PayloadStatusResult{}, err
	}
	if canonical && number <= progress {
		return PayloadStatusResult{Status: StatusValid, LatestValidHash: &head}, nil
	}

	ev, err := s.treeCall(ctx, TreeAction{Kind: ActionFindBlock, Hash: head})
	if err != nil {
		return PayloadStatusResult{}, err
	}
	switch {
	case ev.Kind == TreeBlockFound:
		number = ev.Number
	case canonical:
	default:
		header, err := s.cfg.Client.GetHeaderByHash(ctx, head)
		if err != nil {
			s.logger.Debug("[engine] forkchoice head unknown", "hash", head, "err", err)
			return PayloadStatusResult{Status: StatusSyncing}, nil
		}
		number = header.Number
	}
	s.setTarget(number)
	return PayloadStatusResult{Status: StatusSyncing}, nil
}

func (s *Service) setTarget(number uint64) {
	s.target = &number
	s.needsRun = true
}

func (s *Service) onNewPayload(ctx context.Context, block *types.Block) (PayloadStatusResult, error) {
	hash := block.Hash()
	defer func() {
		s.events.Notify(Event{Kind: EventNewPayload, Hash: hash, Number: block.Number()})
	}()
	if s.cfg.Pipeline.IsBadBlock(hash) || s.cfg.Pipeline.IsBadBlock(block.ParentHash()) {
		return PayloadStatusResult{Status: StatusInvalid, ValidationError: "links to a known bad block"}, nil
	}

	if _, canonical, err := s.canonicalNumber(ctx, hash); err != nil {
		return PayloadStatusResult{}, err
	} else if canonical {
		return PayloadStatusResult{Status: StatusValid, LatestValidHash: &hash}, nil
	}

	var parent *types.Header
	err := s.db.View(ctx, func(tx kv.Tx) error {
		var err error
		parent, err = rawdb.ReadHeader(tx, block.ParentHash(), block.Number()-1)
		return err
	})
	if err != nil {
		return PayloadStatusResult{}, err
	}
	if parent != nil {
		if err := s.cfg.Consensus.ValidateHeaderAgainstParent(block.Header(), parent); err != nil {
			parentHash := parent.Hash()
			return PayloadStatusResult{Status: StatusInvalid, LatestValidHash: &parentHash, ValidationError: err.Error()}, nil
		}
	}

	if _, err := s.treeCall(ctx, TreeAction{Kind: ActionInsertBlock, Block: block}); err != nil {
		return PayloadStatusResult{}, err
	}
	if parent == nil {
		return PayloadStatusResult{Status: StatusSyncing}, nil
	}
	return PayloadStatusResult{Status: StatusAccepted}, nil
}
