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
	"sync/atomic"

	"github.com/erigontech/erigon-launch/ethdb/prune"
	"github.com/erigontech/erigon-launch/turbo/snapshotsync/producer"
)

// Spawner starts background work whose failure is fatal for the node.
type Spawner interface {
	SpawnCritical(name string, fn func(ctx context.Context) error)
}

// HookArgs describe the chain after a pipeline run.
type HookArgs struct {
	Tip       uint64
	Finalized *uint64
}

// Hook is invoked by the service between pipeline runs. It must not block.
type Hook interface {
	Name() string
	OnEvent(args HookArgs)
}

type Hooks []Hook

func (hs Hooks) OnEvent(args HookArgs) {
	for _, h := range hs {
		h.OnEvent(args)
	}
}

// PruneHook runs the pruner in the background when enough blocks were
// imported since its previous run.
type PruneHook struct {
	pruner  *prune.Pruner
	spawner Spawner
	running atomic.Bool
}

func NewPruneHook(pruner *prune.Pruner, spawner Spawner) *PruneHook {
	return &PruneHook{pruner: pruner, spawner: spawner}
}

func (h *PruneHook) Name() string { return "prune" }

func (h *PruneHook) OnEvent(args HookArgs) {
	if !h.pruner.IsPruningNeeded(args.Tip) || !h.running.CompareAndSwap(false, true) {
		return
	}
	h.spawner.SpawnCritical("pruner", func(ctx context.Context) error {
		defer h.running.Store(false)
		return h.pruner.Run(ctx, args.Tip)
	})
}

// StaticFileHook moves finalized blocks into static files in the background.
type StaticFileHook struct {
	producer *producer.Producer
	spawner  Spawner
	running  atomic.Bool
}

func NewStaticFileHook(p *producer.Producer, spawner Spawner) *StaticFileHook {
	return &StaticFileHook{producer: p, spawner: spawner}
}

func (h *StaticFileHook) Name() string { return "static files" }

func (h *StaticFileHook) OnEvent(args HookArgs) {
	if args.Finalized == nil || !h.running.CompareAndSwap(false, true) {
		return
	}
	finalized := *args.Finalized
	h.spawner.SpawnCritical("static file producer", func(ctx context.Context) error {
		defer h.running.Store(false)
		return h.producer.Run(ctx, finalized)
	})
}
