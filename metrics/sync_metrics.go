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

package metrics

import (
	"context"

	"github.com/ledgerwatch/log/v3"
)

type SyncMetricKind uint8

const (
	StageCheckpoint SyncMetricKind = iota
	ExecutionThroughput
)

// SyncMetricEvent is emitted by the sync pipeline and consumed by the
// metrics listener.
type SyncMetricEvent struct {
	Kind           SyncMetricKind
	Stage          string
	Checkpoint     uint64
	MaxBlockNumber uint64
	Gas            uint64
}

// SyncMetricsTx is the sending half of the sync metrics channel.
type SyncMetricsTx chan<- SyncMetricEvent

const syncMetricsBuffer = 1024

func NewSyncMetricsChannel() (SyncMetricsTx, <-chan SyncMetricEvent) {
	ch := make(chan SyncMetricEvent, syncMetricsBuffer)
	return ch, ch
}

// Send never blocks, events are dropped when the listener falls behind.
func (tx SyncMetricsTx) Send(ev SyncMetricEvent) {
	if tx == nil {
		return
	}
	select {
	case tx <- ev:
	default:
	}
}

// Listener turns sync metric events into gauges.
type Listener struct {
	events <-chan SyncMetricEvent
	set    *Set
	logger log.Logger
}

func NewListener(events <-chan SyncMetricEvent, set *Set, logger log.Logger) *Listener {
	return &Listener{events: events, set: set, logger: logger}
}

func (l *Listener) Run(ctx context.Context) error {
	checkpoints := l.set.GetOrCreateGaugeVec("sync", []string{"stage"}, "stage checkpoint block number")
	maxBlocks := l.set.GetOrCreateGaugeVec("sync_max_block", []string{"stage"}, "stage target block number")
	gas := l.set.GetOrCreateCounter("exec_gas_total", "gas executed by the execution stage")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-l.events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case StageCheckpoint:
				checkpoints.WithLabelValues(ev.Stage).Set(float64(ev.Checkpoint))
				if ev.MaxBlockNumber > 0 {
					maxBlocks.WithLabelValues(ev.Stage).Set(float64(ev.MaxBlockNumber))
				}
			case ExecutionThroughput:
				gas.Add(float64(ev.Gas))
			default:
				l.logger.Trace("[metrics] unknown sync metric", "kind", ev.Kind)
			}
		}
	}
}
