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

package exex

import (
	"context"
	"sync/atomic"

	"github.com/ledgerwatch/log/v3"
)

const DefaultCapacity = 1024

type exexHandle struct {
	id            string
	notifications chan Notification
	finished      *uint64
}

type manager struct {
	exexs    []*exexHandle
	byID     map[string]*exexHandle
	incoming chan Notification
	events   chan taggedEvent
	finished atomic.Pointer[FinishedHeight]
	logger   log.Logger
}

func newManager(ids []string, capacity int, logger log.Logger) *manager {
	m := &manager{
		byID:     make(map[string]*exexHandle, len(ids)),
		incoming: make(chan Notification, capacity),
		events:   make(chan taggedEvent, capacity),
		logger:   logger,
	}
	for _, id := range ids {
		h := &exexHandle{id: id, notifications: make(chan Notification, capacity)}
		m.exexs = append(m.exexs, h)
		m.byID[id] = h
	}
	notReady := NotReady()
	m.finished.Store(&notReady)
	return m
}

func (m *manager) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-m.incoming:
			for _, ex := range m.exexs {
				select {
				case ex.notifications <- n:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		case ev := <-m.events:
			m.onEvent(ev)
		}
	}
}

func (m *manager) onEvent(ev taggedEvent) {
	ex, ok := m.byID[ev.id]
	if !ok {
		m.logger.Warn("[exex] event from unknown extension", "id", ev.id)
		return
	}
	height := ev.event.FinishedHeight
	if ex.finished != nil && height < *ex.finished {
		m.logger.Warn("[exex] finished height went backwards", "id", ev.id, "prev", *ex.finished, "new", height)
	}
	ex.finished = &height

	var lowest *uint64
	for _, other := range m.exexs {
		if other.finished == nil {
			return
		}
		if lowest == nil || *other.finished < *lowest {
			h := *other.finished
			lowest = &h
		}
	}
	if current, ok := m.finished.Load().Value(); ok && current >= *lowest {
		return
	}
	next := Height(*lowest)
	m.finished.Store(&next)
	m.logger.Debug("[exex] finished height updated", "height", *lowest)
}

// ManagerHandle is shared by the pipeline, which pushes notifications, and the
// pruner, which reads the finished height.
type ManagerHandle struct {
	m *manager
}

// EmptyHandle is the handle used when no extensions are installed. It drops
// notifications and never bounds pruning.
func EmptyHandle() *ManagerHandle { return &ManagerHandle{} }

func (h *ManagerHandle) HasExExs() bool { return h != nil && h.m != nil && len(h.m.exexs) > 0 }

func (h *ManagerHandle) FinishedHeight() FinishedHeight {
	if !h.HasExExs() {
		return NoExExs()
	}
	return *h.m.finished.Load()
}

// SendNotification blocks until the manager accepted n or ctx is done.
func (h *ManagerHandle) SendNotification(ctx context.Context, n Notification) error {
	if !h.HasExExs() {
		return nil
	}
	select {
	case h.m.incoming <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
