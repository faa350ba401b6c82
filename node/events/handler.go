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
	"sync"
	"time"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/ethdb/prune"
	"github.com/erigontech/erigon-launch/execution/engine"
	"github.com/erigontech/erigon-launch/execution/stagedsync"
	"github.com/erigontech/erigon-launch/execution/stagedsync/stages"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/p2p"
	"github.com/erigontech/erigon-launch/turbo/snapshotsync/producer"
)

// StatusInterval is how often the node status line is logged.
const StatusInterval = 25 * time.Second

type PeersInfo interface {
	PeerCount() int
}

// NodeState is what the event handler learned about the node so far.
type NodeState struct {
	mu           sync.Mutex
	peers        PeersInfo
	currentStage *stages.SyncStage
	latestBlock  *uint64
	handled      map[Source]int
}

func NewNodeState(peers PeersInfo, latestBlock *uint64) *NodeState {
	return &NodeState{peers: peers, latestBlock: latestBlock, handled: map[Source]int{}}
}

func (s *NodeState) LatestBlock() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latestBlock == nil {
		return 0, false
	}
	return *s.latestBlock, true
}

// Handled returns how many events of source were handled.
func (s *NodeState) Handled(source Source) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handled[source]
}

func (s *NodeState) numConnectedPeers() int {
	if s.peers == nil {
		return 0
	}
	return s.peers.PeerCount()
}

func (s *NodeState) setLatestBlock(n uint64) {
	s.latestBlock = &n
}

func (s *NodeState) handle(e NodeEvent, logger log.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handled[e.Source]++

	switch e.Source {
	case SourceNetwork:
		s.handleNetwork(e.Network, logger)
	case SourcePipeline:
		s.handlePipeline(e.Pipeline, logger)
	case SourceConsensusEngine:
		s.handleEngine(e.Engine, logger)
	case SourceClHealth:
		handleClHealth(e.ClHealth, logger)
	case SourcePruner:
		handlePruner(e.Pruner, logger)
	case SourceStaticFiles:
		handleStaticFiles(e.StaticFiles, logger)
	}
}

func (s *NodeState) handleNetwork(e p2p.PeerEvent, logger log.Logger) {
	switch e.EventId {
	case p2p.PeerEventConnect:
		logger.Debug("Peer connected", "peer", e.PeerId, "peers", s.numConnectedPeers())
	case p2p.PeerEventDisconnect:
		logger.Debug("Peer disconnected", "peer", e.PeerId, "peers", s.numConnectedPeers())
	}
}

func (s *NodeState) handlePipeline(e stagedsync.Event, logger log.Logger) {
	switch e.Kind {
	case stagedsync.RunStarted:
		logger.Info("Preparing sync run", "target", e.Target)
	case stagedsync.StageRan:
		stage := e.Stage
		s.currentStage = &stage
		logger.Info("Stage finished", "stage", e.Stage, "checkpoint", e.Progress)
	case stagedsync.StageUnwound:
		stage := e.Stage
		s.currentStage = &stage
		logger.Info("Stage unwound", "stage", e.Stage, "unwind_to", e.Progress)
	case stagedsync.RunFinished:
		s.currentStage = nil
		s.setLatestBlock(e.Progress)
		logger.Info("Finished sync run", "progress", e.Progress, "target", e.Target, "elapsed", e.Elapsed)
	case stagedsync.RunFailed:
		s.currentStage = nil
		logger.Warn("Sync run failed", "progress", e.Progress, "target", e.Target, "err", e.Err)
	}
}

func (s *NodeState) handleEngine(e engine.Event, logger log.Logger) {
	switch e.Kind {
	case engine.EventForkchoiceUpdated:
		logger.Info("Forkchoice updated", "head", e.Hash, "status", e.Status)
	case engine.EventNewPayload:
		logger.Debug("Payload received", "number", e.Number, "hash", e.Hash, "status", e.Status, "elapsed", e.Elapsed)
	case engine.EventCanonicalChainCommitted:
		s.setLatestBlock(e.Number)
		logger.Info("Canonical chain committed", "number", e.Number, "hash", e.Hash, "elapsed", e.Elapsed)
	case engine.EventInvalidBlock:
		logger.Warn("Received invalid block", "number", e.Number, "hash", e.Hash)
	}
}

func handleClHealth(e ClHealthEvent, logger log.Logger) {
	switch e.Kind {
	case ClNeverSeen:
		logger.Warn("Post-merge network, but never seen beacon client. Please launch one to follow the chain!")
	case ClHasNotBeenSeenForAWhile:
		logger.Warn("Post-merge network, but no beacon client seen for a while. Please launch one to follow the chain!", "period", e.Period)
	case ClNeverReceivedUpdates:
		logger.Warn("Beacon client online, but never received consensus updates. Please ensure your beacon client is operational to follow the chain!")
	case ClHaveNotReceivedUpdatesForAWhile:
		logger.Warn("Beacon client online, but no consensus updates received for a while. Please fix your beacon client to follow the chain!", "period", e.Period)
	}
}

func handlePruner(e prune.Event, logger log.Logger) {
	switch e.Kind {
	case prune.EventStarted:
		logger.Debug("Pruner started", "tip", e.Tip)
	case prune.EventFinished:
		logger.Info("Pruner finished", "tip", e.Tip, "bodies", e.Bodies, "receipts", e.Receipts, "elapsed", e.Elapsed)
	case prune.EventFailed:
		logger.Error("Pruner failed", "tip", e.Tip, "err", e.Err)
	}
}

func handleStaticFiles(e producer.Event, logger log.Logger) {
	switch e.Kind {
	case producer.EventStarted:
		logger.Debug("Static file producer started", "from", e.From, "to", e.To)
	case producer.EventFinished:
		logger.Info("Static file producer finished", "from", e.From, "to", e.To, "file", e.Path, "elapsed", e.Elapsed)
	case producer.EventFailed:
		logger.Error("Static file producer failed", "from", e.From, "to", e.To, "err", e.Err)
	}
}

func (s *NodeState) logStatus(logger log.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := []interface{}{"connected_peers", s.numConnectedPeers()}
	if s.latestBlock != nil {
		ctx = append(ctx, "latest_block", *s.latestBlock)
	}
	if s.currentStage != nil {
		ctx = append(ctx, "stage", *s.currentStage)
	}
	logger.Info("Status", ctx...)
}

// Handler logs node events and reports node status until the event stream ends.
type Handler struct {
	state          *NodeState
	db             kv.RoDB
	statusInterval time.Duration
	logger         log.Logger
}

func NewHandler(peers PeersInfo, latestBlock *uint64, db kv.RoDB, logger log.Logger) *Handler {
	return &Handler{
		state:          NewNodeState(peers, latestBlock),
		db:             db,
		statusInterval: StatusInterval,
		logger:         logger,
	}
}

func (h *Handler) State() *NodeState { return h.state }

func (h *Handler) Run(ctx context.Context, events <-chan NodeEvent) error {
	ticker := time.NewTicker(h.statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				h.logger.Debug("Node event stream ended")
				return nil
			}
			h.state.handle(e, h.logger)
		case <-ticker.C:
			h.state.logStatus(h.logger)
			if m, ok := h.db.(kv.Metrics); ok {
				m.ReportMetrics()
			}
		}
	}
}

// HandleEvents is the node events task.
func HandleEvents(ctx context.Context, peers PeersInfo, latestBlock *uint64, events <-chan NodeEvent, db kv.RoDB, logger log.Logger) error {
	return NewHandler(peers, latestBlock, db, logger).Run(ctx, events)
}
