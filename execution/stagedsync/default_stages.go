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

package stagedsync

import (
	"context"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/execution/stagedsync/stages"
	"github.com/erigontech/erigon-launch/kv"
)

func DefaultStages(headers HeadersCfg, bodies BodiesCfg, exec ExecuteBlockCfg, finish FinishCfg) []*Stage {
	return []*Stage{
		{
			ID:          stages.Headers,
			Description: "Download headers",
			Forward: func(ctx context.Context, s *StageState, u Unwinder, tx kv.RwTx, logger log.Logger) error {
				return SpawnStageHeaders(ctx, s, tx, headers, logger)
			},
			Unwind: func(ctx context.Context, u *UnwindState, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return HeadersUnwind(u, tx)
			},
		},
		{
			ID:          stages.Bodies,
			Description: "Download block bodies",
			Forward: func(ctx context.Context, s *StageState, u Unwinder, tx kv.RwTx, logger log.Logger) error {
				return BodiesForward(ctx, s, tx, bodies, logger)
			},
			Unwind: func(ctx context.Context, u *UnwindState, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return UnwindBodiesStage(u, tx)
			},
		},
		{
			ID:          stages.Execution,
			Description: "Execute blocks w/o hash checks",
			Forward: func(ctx context.Context, s *StageState, u Unwinder, tx kv.RwTx, logger log.Logger) error {
				return SpawnExecuteBlocksStage(ctx, s, u, tx, exec, logger)
			},
			Unwind: func(ctx context.Context, u *UnwindState, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return UnwindExecutionStage(ctx, u, tx, exec)
			},
		},
		{
			ID:          stages.Finish,
			Description: "Final: update current block for the RPC API",
			Forward: func(ctx context.Context, s *StageState, u Unwinder, tx kv.RwTx, logger log.Logger) error {
				return FinishForward(s, tx, finish, logger)
			},
			Unwind: func(ctx context.Context, u *UnwindState, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return UnwindFinish(u, tx, finish)
			},
		},
	}
}

var DefaultUnwindOrder = UnwindOrder{
	stages.Finish,
	stages.Execution,
	stages.Bodies,
	stages.Headers,
}

// DefaultPruneOrder is empty: block data is pruned by the pruner service
// outside of the sync cycle.
var DefaultPruneOrder = PruneOrder{}
