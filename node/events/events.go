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
	"fmt"
	"sync"

	"github.com/erigontech/erigon-launch/ethdb/prune"
	"github.com/erigontech/erigon-launch/execution/engine"
	"github.com/erigontech/erigon-launch/execution/stagedsync"
	"github.com/erigontech/erigon-launch/p2p"
	"github.com/erigontech/erigon-launch/turbo/snapshotsync/producer"
)

type Source uint8

const (
	SourceNetwork Source = iota
	SourcePipeline
	SourceConsensusEngine
	SourceClHealth
	SourcePruner
	SourceStaticFiles
)

func (s Source) String() string {
	switch s {
	case SourceNetwork:
		return "network"
	case SourcePipeline:
		return "pipeline"
	case SourceConsensusEngine:
		return "consensus engine"
	case SourceClHealth:
		return "consensus layer health"
	case SourcePruner:
		return "pruner"
	case SourceStaticFiles:
		return "static file producer"
	default:
		return fmt.Sprintf("Source(%d)", s)
	}
}

// NodeEvent is one event of any node component. Only the field matching
// Source is set.
type NodeEvent struct {
	Source      Source
	Network     p2p.PeerEvent
	Pipeline    stagedsync.Event
	Engine      engine.Event
	ClHealth    ClHealthEvent
	Pruner      prune.Event
	StaticFiles producer.Event
}

func FromNetwork(e p2p.PeerEvent) NodeEvent      { return NodeEvent{Source: SourceNetwork, Network: e} }
func FromPipeline(e stagedsync.Event) NodeEvent  { return NodeEvent{Source: SourcePipeline, Pipeline: e} }
func FromEngine(e engine.Event) NodeEvent        { return NodeEvent{Source: SourceConsensusEngine, Engine: e} }
func FromClHealth(e ClHealthEvent) NodeEvent     { return NodeEvent{Source: SourceClHealth, ClHealth: e} }
func FromPruner(e prune.Event) NodeEvent         { return NodeEvent{Source: SourcePruner, Pruner: e} }
func FromStaticFiles(e producer.Event) NodeEvent { return NodeEvent{Source: SourceStaticFiles, StaticFiles: e} }

// Map converts a typed stream into node events. The output is closed when in
// is closed or ctx is done. A nil input yields a closed stream.
func Map[T any](ctx context.Context, in <-chan T, wrap func(T) NodeEvent) <-chan NodeEvent {
	out := make(chan NodeEvent)
	if in == nil {
		close(out)
		return out
	}
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- wrap(e):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Merge interleaves streams as events arrive. The result is closed once every
// input is closed or ctx is done.
func Merge(ctx context.Context, streams ...<-chan NodeEvent) <-chan NodeEvent {
	out := make(chan NodeEvent)
	var wg sync.WaitGroup
	for _, s := range streams {
		if s == nil {
			continue
		}
		wg.Add(1)
		go func(s <-chan NodeEvent) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case e, ok := <-s:
					if !ok {
						return
					}
					select {
					case out <- e:
					case <-ctx.Done():
						return
					}
				}
			}
		}(s)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
