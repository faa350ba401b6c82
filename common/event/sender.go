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

package event

import "sync"

// Sender broadcasts events to every subscriber. Each subscriber gets its own
// buffered channel; when a subscriber falls behind the oldest buffered event
// is dropped in favour of the newest one.
type Sender[T any] struct {
	mu          sync.Mutex
	capacity    int
	subscribers []chan T
	closed      bool
}

func NewSender[T any](capacity int) *Sender[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Sender[T]{capacity: capacity}
}

// Subscribe returns a channel receiving every event notified after the call.
// The channel is closed when the sender is closed.
func (s *Sender[T]) Subscribe() <-chan T {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan T, s.capacity)
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *Sender[T]) Notify(e T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	for _, ch := range s.subscribers {
		for {
			select {
			case ch <- e:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (s *Sender[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
}

func (s *Sender[T]) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
