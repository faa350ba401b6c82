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
	"fmt"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/db/rawdb"
	"github.com/erigontech/erigon-launch/execution/exex"
	"github.com/erigontech/erigon-launch/execution/stagedsync/stages"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/metrics"
)

type BlockExecutor interface {
	Execute(block *types.Block) (types.Receipts, error)
}

type ExecuteBlockCfg struct {
	executor    BlockExecutor
	exexHandle  *exex.ManagerHandle
	batchSize   int
	syncMetrics metrics.SyncMetricsTx
}

func StageExecuteBlocksCfg(executor BlockExecutor, exexHandle *exex.ManagerHandle, batchSize int, syncMetrics metrics.SyncMetricsTx) ExecuteBlockCfg {
	if exexHandle == nil {
		exexHandle = exex.EmptyHandle()
	}
	if batchSize <= 0 {
		batchSize = 256
	}
	return ExecuteBlockCfg{executor: executor, exexHandle: exexHandle, batchSize: batchSize, syncMetrics: syncMetrics}
}

// SpawnExecuteBlocksStage executes every block with a body above the stage
// progress and writes its receipts. Committed blocks are pushed to the
// execution extensions in batches. A block that fails execution triggers an
// unwind to its parent.
func SpawnExecuteBlocksStage(ctx context.Context, s *StageState, u Unwinder, tx kv.RwTx, cfg ExecuteBlockCfg, logger log.Logger) error {
	to, err := stages.GetStageProgress(tx, stages.Bodies)
	if err != nil {
		return err
	}
	if to <= s.BlockNumber {
		return nil
	}
	logPrefix := s.LogPrefix()
	logger.Info(fmt.Sprintf("[%s] Blocks execution", logPrefix), "from", s.BlockNumber, "to", to)

	notification := exex.Notification{Kind: exex.ChainCommitted}
	flush := func(progress uint64) error {
		if err := s.Update(tx, progress); err != nil {
			return err
		}
		cfg.syncMetrics.Send(metrics.SyncMetricEvent{Kind: metrics.StageCheckpoint, Stage: string(stages.Execution), Checkpoint: progress, MaxBlockNumber: to})
		if len(notification.Blocks) == 0 {
			return nil
		}
		if err := cfg.exexHandle.SendNotification(ctx, notification); err != nil {
			return err
		}
		notification = exex.Notification{Kind: exex.ChainCommitted}
		return nil
	}

	for n := s.BlockNumber + 1; n <= to; n++ {
		hash, err := rawdb.ReadCanonicalHash(tx, n)
		if err != nil {
			return err
		}
		block, err := rawdb.ReadBlock(tx, hash, n)
		if err != nil {
			return err
		}
		if block == nil {
			return fmt.Errorf("block %d (%s) not found", n, hash)
		}
		receipts, err := cfg.executor.Execute(block)
		if err != nil {
			logger.Warn(fmt.Sprintf("[%s] Execution failed", logPrefix), "block", n, "hash", hash, "err", err)
			if n > s.BlockNumber+1 {
				if err := flush(n - 1); err != nil {
					return err
				}
			}
			u.UnwindTo(n-1, hash)
			return nil
		}
		if err := rawdb.WriteReceipts(tx, n, receipts); err != nil {
			return err
		}
		cfg.syncMetrics.Send(metrics.SyncMetricEvent{Kind: metrics.ExecutionThroughput, Gas: block.Header().GasUsed})

		notification.Blocks = append(notification.Blocks, block)
		notification.Receipts = append(notification.Receipts, receipts)
		if len(notification.Blocks) >= cfg.batchSize {
			if err := flush(n); err != nil {
				return err
			}
		}
	}
	if err := flush(to); err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("[%s] Completed on", logPrefix), "block", to)
	return nil
}

func UnwindExecutionStage(ctx context.Context, u *UnwindState, tx kv.RwTx, cfg ExecuteBlockCfg) error {
	var reverted exex.Notification
	reverted.Kind = exex.ChainReverted
	for n := u.CurrentBlockNumber; n > u.UnwindPoint; n-- {
		if err := rawdb.DeleteReceipts(tx, n); err != nil {
			return err
		}
		if cfg.exexHandle.HasExExs() {
			hash, err := rawdb.ReadCanonicalHash(tx, n)
			if err != nil {
				return err
			}
			if block, err := rawdb.ReadBlock(tx, hash, n); err == nil && block != nil {
				reverted.Blocks = append([]*types.Block{block}, reverted.Blocks...)
			}
		}
	}
	if len(reverted.Blocks) > 0 {
		if err := cfg.exexHandle.SendNotification(ctx, reverted); err != nil {
			return err
		}
	}
	return u.Done(tx)
}
