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

package terminate

import (
	"context"
	"runtime"
	"syscall"
	"time"

	"github.com/ledgerwatch/log/v3"
	"github.com/shirou/gopsutil/v4/process"
)

const (
	interruptInterval = 15 * time.Second
	interruptAttempts = 10
)

// TryGracefully interrupts the current process until it exits, killing it
// once every attempt was ignored.
func TryGracefully(ctx context.Context, logger log.Logger) {
	tryGracefully(ctx, interruptInterval, logger)
}

func tryGracefully(ctx context.Context, interval time.Duration, logger log.Logger) {
	pid := syscall.Getpid()
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		logger.Error("could not create process instance for current pid", "pid", pid, "err", err)
		return
	}

	//goland:noinspection GoBoolExpressions
	if runtime.GOOS == "windows" {
		logger.Info("can't terminate process gracefully on windows - killing")
		if err = p.Kill(); err != nil {
			logger.Error("could not kill current process", "err", err)
		}

		return
	}

	logger.Info("sending interrupt signal to current process", "attempt", 0)
	if err = p.SendSignal(syscall.SIGINT); err != nil {
		logger.Error("could not send interrupt signal to current process", "err", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= interruptAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("sending interrupt signal to current process", "attempt", attempt)
			if err = p.SendSignal(syscall.SIGINT); err != nil {
				logger.Error("could not send interrupt signal to current process", "err", err)
			}
		}
	}

	logger.Info("could not gracefully terminate process - killing")
	if err = p.Kill(); err != nil {
		logger.Error("could not kill current process", "err", err)
	}
}
