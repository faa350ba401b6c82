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
	"sync"

	"github.com/gammazero/deque"
)

// Queue is an unbounded multi-producer single-consumer queue. Push never
// blocks.
type Queue[T any] struct {
	mu     sync.Mutex
	items  deque.Deque[T]
	ready  chan struct{}
	closed bool
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrEngineUnavailable
	}
	q.items.PushBack(item)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// TryPop returns the oldest item, if any.
func (q *Queue[T]) TryPop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return item, false
	}
	return q.items.PopFront(), true
}

// Ready is signalled after a push. A single signal may cover many items.
func (q *Queue[T]) Ready() <-chan struct{} { return q.ready }

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close rejects further pushes and returns the items still queued.
func (q *Queue[T]) Close() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	rest := make([]T, 0, q.items.Len())
	for q.items.Len() > 0 {
		rest = append(rest, q.items.PopFront())
	}
	return rest
}
