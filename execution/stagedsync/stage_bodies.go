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
	"github.com/erigontech/erigon-launch/execution/stagedsync/stages"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/metrics"
	"github.com/erigontech/erigon-launch/p2p"
)

type BodiesCfg struct {
	client      p2p.FetchClient
	batchSize   int
	syncMetrics metrics.SyncMetricsTx
}

func StageBodiesCfg(client p2p.FetchClient, batchSize int, syncMetrics metrics.SyncMetricsTx) BodiesCfg {
	if batchSize <= 0 {
		batchSize = 128
	}
	return BodiesCfg{client: client, batchSize: batchSize, syncMetrics: syncMetrics}
}

// BodiesForward downloads the bodies of every canonical header above the
// stage progress.
func BodiesForward(ctx context.Context, s *StageState, tx kv.RwTx, cfg BodiesCfg, logger log.Logger) error {
	headerProgress, err := stages.GetStageProgress(tx, stages.Headers)
	if err != nil {
		return err
	}
	if headerProgress <= s.BlockNumber {
		return nil
	}
	logPrefix := s.LogPrefix()

	progress := s.BlockNumber
	for progress < headerProgress {
		var hashes []types.Hash
		for n := progress + 1; n <= headerProgress && len(hashes) < cfg.batchSize; n++ {
			hash, err := rawdb.ReadCanonicalHash(tx, n)
			if err != nil {
				return err
			}
			if hash == (types.Hash{}) {
				return fmt.Errorf("canonical hash %d not found", n)
			}
			hashes = append(hashes, hash)
		}
		bodies, err := cfg.client.GetBodies(ctx, hashes)
		if err != nil {
			if progress > s.BlockNumber {
				logger.Warn(fmt.Sprintf("[%s] Bodies download interrupted", logPrefix), "block", progress+1, "err", err)
				break
			}
			return &DownloadError{Err: err}
		}
		if len(bodies) == 0 {
			if progress == s.BlockNumber {
				return &DownloadError{Err: fmt.Errorf("no bodies for block %d", progress+1)}
			}
			break
		}
		for i, body := range bodies {
			if err := rawdb.WriteBody(tx, hashes[i], progress+1, body); err != nil {
				return err
			}
			progress++
		}
		if err := s.Update(tx, progress); err != nil {
			return err
		}
		cfg.syncMetrics.Send(metrics.SyncMetricEvent{Kind: metrics.StageCheckpoint, Stage: string(stages.Bodies), Checkpoint: progress, MaxBlockNumber: headerProgress})
		if len(bodies) < len(hashes) {
			break
		}
	}
	logger.Info(fmt.Sprintf("[%s] Processed", logPrefix), "highest", progress)
	return nil
}

func UnwindBodiesStage(u *UnwindState, tx kv.RwTx) error {
	return u.Done(tx)
}
