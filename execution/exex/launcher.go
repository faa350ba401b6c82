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
	"fmt"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/node/tasks"
	"github.com/erigontech/erigon-launch/turbo/services"
)

// Launcher starts the installed extensions and the manager feeding them.
type Launcher struct {
	head     types.Head
	spec     *chain.Spec
	db       kv.RoDB
	reader   services.FullBlockReader
	exexs    []InstalledExEx
	capacity int
	logger   log.Logger
}

func NewLauncher(head types.Head, spec *chain.Spec, db kv.RoDB, reader services.FullBlockReader, exexs []InstalledExEx, logger log.Logger) *Launcher {
	return &Launcher{
		head:     head,
		spec:     spec,
		db:       db,
		reader:   reader,
		exexs:    exexs,
		capacity: DefaultCapacity,
		logger:   logger,
	}
}

// Launch returns nil when no extensions are installed.
func (l *Launcher) Launch(ctx context.Context, executor *tasks.Executor) (*ManagerHandle, error) {
	if len(l.exexs) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(l.exexs))
	seen := make(map[string]struct{}, len(l.exexs))
	for _, ex := range l.exexs {
		if _, ok := seen[ex.ID]; ok {
			return nil, fmt.Errorf("duplicate execution extension id %q", ex.ID)
		}
		seen[ex.ID] = struct{}{}
		ids = append(ids, ex.ID)
	}

	m := newManager(ids, l.capacity, l.logger)
	for i, ex := range l.exexs {
		exctx := &Context{
			ID:            ex.ID,
			Head:          l.head,
			ChainSpec:     l.spec,
			DB:            l.db,
			BlockReader:   l.reader,
			Notifications: m.exexs[i].notifications,
			Logger:        l.logger.New("exex", ex.ID),
			events:        m.events,
		}
		launch := ex.Launch
		l.logger.Info("Loading ExEx", "id", ex.ID)
		executor.SpawnCritical("exex "+ex.ID, func(ctx context.Context) error {
			return launch(ctx, exctx)
		})
	}

	executor.SpawnCritical("exex manager", m.run)
	l.logger.Debug("ExEx Manager started", "exexs", len(ids))
	return &ManagerHandle{m: m}, nil
}
