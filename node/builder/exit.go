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

package builder

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	ErrAlreadyResolved = errors.New("exit future already resolved")
	errResultDropped   = errors.New("consensus engine exited without a result")
)

// ExitFuture resolves once, with the result the consensus engine service
// returned. Terminate tells the process driver to stop the process once it
// resolved.
type ExitFuture struct {
	done      chan struct{}
	resolved  atomic.Bool
	err       error
	terminate bool
}

// NewExitFuture forwards the first value of result. Anything sent after it is
// ignored.
func NewExitFuture(result <-chan error, terminate bool) *ExitFuture {
	f := &ExitFuture{done: make(chan struct{}), terminate: terminate}
	go func() {
		err, ok := <-result
		if !ok {
			err = errResultDropped
		}
		_ = f.resolve(err)
	}()
	return f
}

func (f *ExitFuture) resolve(err error) error {
	if !f.resolved.CompareAndSwap(false, true) {
		return ErrAlreadyResolved
	}
	f.err = err
	close(f.done)
	return nil
}

func (f *ExitFuture) Done() <-chan struct{} { return f.done }

// Wait blocks until the future resolves or ctx is done.
func (f *ExitFuture) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err is the resolved result, nil while unresolved.
func (f *ExitFuture) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

func (f *ExitFuture) Terminate() bool { return f.terminate }
