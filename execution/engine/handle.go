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

	"github.com/erigontech/erigon-launch/common/event"
	"github.com/erigontech/erigon-launch/execution/builder"
	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/execution/types"
)

var ErrEngineUnavailable = errors.New("engine service unavailable")

// Handle is the sending side of the engine service. It is safe for
// concurrent use.
type Handle struct {
	queue  *Queue[Message]
	events *event.Sender[Event]
	done   <-chan struct{}
}

func (h *Handle) Events() <-chan Event { return h.events.Subscribe() }

// Send enqueues msg without waiting for the service.
func (h *Handle) Send(msg Message) error {
	select {
	case <-h.done:
		return ErrEngineUnavailable
	default:
	}
	return h.queue.Push(msg)
}

func (h *Handle) ForkchoiceUpdated(ctx context.Context, state provider.ForkchoiceState, attributes *builder.Parameters) (ForkchoiceUpdatedResult, error) {
	resp := make(chan ForkchoiceUpdatedResult, 1)
	if err := h.Send(ForkchoiceUpdated{State: state, Attributes: attributes, Resp: resp}); err != nil {
		return ForkchoiceUpdatedResult{}, err
	}
	return await(ctx, h.done, resp)
}

func (h *Handle) NewPayload(ctx context.Context, block *types.Block) (PayloadStatusResult, error) {
	resp := make(chan PayloadStatusResult, 1)
	if err := h.Send(NewPayload{Block: block, Resp: resp}); err != nil {
		return PayloadStatusResult{}, err
	}
	return await(ctx, h.done, resp)
}

func (h *Handle) TransitionConfigurationExchanged(ctx context.Context) error {
	resp := make(chan struct{}, 1)
	if err := h.Send(TransitionConfiguration{Resp: resp}); err != nil {
		return err
	}
	_, err := await(ctx, h.done, resp)
	return err
}

func (h *Handle) Shutdown() error { return h.Send(Shutdown{}) }

func await[T any](ctx context.Context, done <-chan struct{}, resp <-chan T) (T, error) {
	var zero T
	select {
	case v := <-resp:
		return v, nil
	case <-done:
		select {
		case v := <-resp:
			return v, nil
		default:
		}
		return zero, ErrEngineUnavailable
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
