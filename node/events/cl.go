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
	"time"

	"github.com/erigontech/erigon-launch/execution/provider"
)

const (
	// ClHealthCheckInterval is how often the consensus layer activity is checked.
	ClHealthCheckInterval = 60 * time.Second
	// NoTransitionConfigExchangedPeriod is the silence after which the consensus
	// layer is considered gone.
	NoTransitionConfigExchangedPeriod = 120 * time.Second
	// NoForkchoiceUpdateReceivedPeriod is the silence after which the consensus
	// layer is considered to not be sending updates.
	NoForkchoiceUpdateReceivedPeriod = 120 * time.Second
)

type ClHealthEventKind uint8

const (
	ClNeverSeen ClHealthEventKind = iota
	ClHasNotBeenSeenForAWhile
	ClNeverReceivedUpdates
	ClHaveNotReceivedUpdatesForAWhile
)

type ClHealthEvent struct {
	Kind ClHealthEventKind
	// Period is the time since the last sign of life, when there was one.
	Period time.Duration
}

// CheckClHealth returns the event describing the consensus layer at now, or
// false when it is healthy.
func CheckClHealth(tracker provider.CanonChainTracker, now time.Time) (ClHealthEvent, bool) {
	if fcu, ok := tracker.LastReceivedUpdateTimestamp(); ok {
		if elapsed := now.Sub(fcu); elapsed > NoForkchoiceUpdateReceivedPeriod {
			return ClHealthEvent{Kind: ClHaveNotReceivedUpdatesForAWhile, Period: elapsed}, true
		}
		return ClHealthEvent{}, false
	}
	if tc, ok := tracker.LastExchangedTransitionConfigurationTimestamp(); ok {
		if elapsed := now.Sub(tc); elapsed > NoTransitionConfigExchangedPeriod {
			return ClHealthEvent{Kind: ClHasNotBeenSeenForAWhile, Period: elapsed}, true
		}
		return ClHealthEvent{Kind: ClNeverReceivedUpdates}, true
	}
	return ClHealthEvent{Kind: ClNeverSeen}, true
}

// ClHealthEvents checks the tracker every interval until ctx is done.
func ClHealthEvents(ctx context.Context, tracker provider.CanonChainTracker, interval time.Duration) <-chan ClHealthEvent {
	out := make(chan ClHealthEvent)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				ev, ok := CheckClHealth(tracker, now)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
