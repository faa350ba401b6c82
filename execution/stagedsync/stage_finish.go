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
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/db/rawdb"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/params"
)

type FinishCfg struct{}

func StageFinishCfg() FinishCfg { return FinishCfg{} }

// FinishForward moves the head block to the executed tip. Its progress is the
// progress of the whole pipeline.
func FinishForward(s *StageState, tx kv.RwTx, cfg FinishCfg, logger log.Logger) error {
	executionAt, err := s.ExecutionAt(tx)
	if err != nil {
		return err
	}
	if executionAt <= s.BlockNumber {
		return nil
	}
	if err := writeHeadBlock(tx, executionAt); err != nil {
		return err
	}
	if err := s.Update(tx, executionAt); err != nil {
		return err
	}
	if err := params.SetErigonVersion(tx, params.VersionKeyFinished); err != nil {
		return err
	}
	logger.Debug("["+s.LogPrefix()+"] Head block updated", "block", executionAt)
	return nil
}

func UnwindFinish(u *UnwindState, tx kv.RwTx, cfg FinishCfg) error {
	if err := writeHeadBlock(tx, u.UnwindPoint); err != nil {
		return err
	}
	return u.Done(tx)
}

func writeHeadBlock(tx kv.RwTx, number uint64) error {
	hash, err := rawdb.ReadCanonicalHash(tx, number)
	if err != nil {
		return err
	}
	return rawdb.WriteHeadBlockHash(tx, hash)
}
