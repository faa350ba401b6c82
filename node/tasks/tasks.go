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

package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/ledgerwatch/log/v3"
	"golang.org/x/sync/errgroup"
)

// CriticalError is the failure of a task spawned as critical.
type CriticalError struct {
	Task  string
	Err   error
	Stack []byte
}

func (e *CriticalError) Error() string {
	return fmt.Sprintf("critical task %q failed: %v", e.Task, e.Err)
}

func (e *CriticalError) Unwrap() error { return e.Err }

// Manager owns every task spawned through its Executor. The first failing
// critical task cancels the rest and is reported by Wait and Err.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	wg     sync.WaitGroup

	failed     chan struct{}
	failedOnce sync.Once
	mu         sync.Mutex
	err        *CriticalError
	spawned    atomic.Int64

	logger log.Logger
}

func NewManager(ctx context.Context, logger log.Logger) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	return &Manager{
		ctx:    gctx,
		cancel: cancel,
		group:  group,
		failed: make(chan struct{}),
		logger: logger,
	}
}

func (m *Manager) Executor() *Executor { return &Executor{m: m} }

// Failed is closed when a critical task failed.
func (m *Manager) Failed() <-chan struct{} { return m.failed }

func (m *Manager) Err() *CriticalError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Spawned is the number of tasks started so far.
func (m *Manager) Spawned() int { return int(m.spawned.Load()) }

// Shutdown cancels the context handed to every task.
func (m *Manager) Shutdown() { m.cancel() }

// Wait blocks until every task returned and reports the first critical
// failure, if any.
func (m *Manager) Wait() error {
	groupErr := m.group.Wait()
	m.wg.Wait()
	if err := m.Err(); err != nil {
		return err
	}
	if groupErr != nil && !errors.Is(groupErr, context.Canceled) {
		return groupErr
	}
	return nil
}

func (m *Manager) fail(task string, err error, stack []byte) *CriticalError {
	cerr := &CriticalError{Task: task, Err: err, Stack: stack}
	m.failedOnce.Do(func() {
		m.mu.Lock()
		m.err = cerr
		m.mu.Unlock()
		close(m.failed)
	})
	return cerr
}

// Executor spawns tasks on a Manager. It is cheap to copy.
type Executor struct {
	m *Manager
}

func (e *Executor) Context() context.Context { return e.m.ctx }
func (e *Executor) Logger() log.Logger       { return e.m.logger }

// Spawn runs a task whose failure is only logged.
func (e *Executor) Spawn(name string, fn func(ctx context.Context) error) {
	e.m.spawned.Add(1)
	e.m.wg.Add(1)
	go func() {
		defer e.m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				e.m.logger.Error("task panicked", "task", name, "err", r, "stack", string(debug.Stack()))
			}
		}()
		if err := fn(e.m.ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.m.logger.Warn("task failed", "task", name, "err", err)
		}
	}()
}

// SpawnCritical runs a task whose error or panic is fatal for the node: it
// cancels every other task and surfaces through Manager.Wait.
func (e *Executor) SpawnCritical(name string, fn func(ctx context.Context) error) {
	e.m.spawned.Add(1)
	e.m.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = e.m.fail(name, fmt.Errorf("panic: %v", r), debug.Stack())
				e.m.logger.Error("critical task panicked", "task", name, "err", r)
			}
		}()
		err = fn(e.m.ctx)
		if err == nil || (errors.Is(err, context.Canceled) && e.m.ctx.Err() != nil) {
			return nil
		}
		e.m.logger.Error("critical task failed", "task", name, "err", err)
		return e.m.fail(name, err, nil)
	})
}

// SpawnCriticalBlocking runs a long-lived task on its own OS thread. Its
// result, including a recovered panic, is delivered on the returned channel
// instead of failing the node.
func (e *Executor) SpawnCriticalBlocking(name string, fn func(ctx context.Context) error) <-chan error {
	result := make(chan error, 1)
	e.m.spawned.Add(1)
	e.m.wg.Add(1)
	go func() {
		defer e.m.wg.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		var err error
		defer func() {
			if r := recover(); r != nil {
				e.m.logger.Error("blocking task panicked", "task", name, "err", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("task %q panicked: %v", name, r)
			}
			result <- err
			close(result)
		}()
		err = fn(e.m.ctx)
	}()
	return result
}
