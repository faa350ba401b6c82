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
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/db/rawdb"
	"github.com/erigontech/erigon-launch/execution/consensus"
	"github.com/erigontech/erigon-launch/execution/stagedsync/stages"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/metrics"
	"github.com/erigontech/erigon-launch/p2p"
)

var errKnownBadBlock = errors.New("known bad block")

type HeadersCfg struct {
	client      p2p.FetchClient
	engine      consensus.Engine
	batchSize   uint64
	syncMetrics metrics.SyncMetricsTx
	badBlocks   *lru.Cache[types.Hash, uint64]
}

func StageHeadersCfg(client p2p.FetchClient, engine consensus.Engine, batchSize uint64, syncMetrics metrics.SyncMetricsTx) HeadersCfg {
	if batchSize == 0 {
		batchSize = 1024
	}
	return HeadersCfg{client: client, engine: engine, batchSize: batchSize, syncMetrics: syncMetrics}
}

// SpawnStageHeaders downloads and validates canonical headers up to the run
// target. A peer running out of headers ends the stage with what was
// written so far.
func SpawnStageHeaders(ctx context.Context, s *StageState, tx kv.RwTx, cfg HeadersCfg, logger log.Logger) error {
	target := s.Target()
	if target <= s.BlockNumber {
		return nil
	}
	logPrefix := s.LogPrefix()

	parent, err := rawdb.ReadHeaderByNumber(tx, s.BlockNumber)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("canonical header %d not found", s.BlockNumber)
	}

	logger.Info(fmt.Sprintf("[%s] Waiting for headers...", logPrefix), "from", s.BlockNumber, "target", target)
	written := uint64(0)
	for from := s.BlockNumber + 1; from <= target; {
		count := min(cfg.batchSize, target-from+1)
		headers, err := cfg.client.GetHeaders(ctx, from, count)
		if err != nil {
			if written > 0 {
				logger.Warn(fmt.Sprintf("[%s] Headers download interrupted", logPrefix), "block", from, "err", err)
				break
			}
			return &DownloadError{Err: err}
		}
		if len(headers) == 0 {
			if written == 0 {
				return &DownloadError{Err: fmt.Errorf("%w: block %d", ErrNoHeaders, from)}
			}
			break
		}
		for _, header := range headers {
			if cfg.badBlocks != nil && cfg.badBlocks.Contains(header.Hash()) {
				return &DownloadError{Err: fmt.Errorf("header %d: %w", header.Number, errKnownBadBlock)}
			}
			if err := cfg.engine.ValidateHeaderAgainstParent(header, parent); err != nil {
				return &DownloadError{Err: fmt.Errorf("invalid header %d: %w", header.Number, err)}
			}
			if err := rawdb.WriteHeader(tx, header); err != nil {
				return err
			}
			if err := rawdb.WriteCanonicalHash(tx, header.Hash(), header.Number); err != nil {
				return err
			}
			parent = header
		}
		written += uint64(len(headers))
		from = parent.Number + 1
		if err := s.Update(tx, parent.Number); err != nil {
			return err
		}
		cfg.syncMetrics.Send(metrics.SyncMetricEvent{Kind: metrics.StageCheckpoint, Stage: string(stages.Headers), Checkpoint: parent.Number, MaxBlockNumber: target})
		if uint64(len(headers)) < count {
			break
		}
	}
	if err := rawdb.WriteHeadHeaderHash(tx, parent.Hash()); err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("[%s] Processed", logPrefix), "highest", parent.Number, "headers", written)
	return nil
}

func HeadersUnwind(u *UnwindState, tx kv.RwTx) error {
	if err := rawdb.TruncateCanonicalHash(tx, u.UnwindPoint+1); err != nil {
		return err
	}
	hash, err := rawdb.ReadCanonicalHash(tx, u.UnwindPoint)
	if err != nil {
		return err
	}
	if err := rawdb.WriteHeadHeaderHash(tx, hash); err != nil {
		return err
	}
	return u.Done(tx)
}
