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

package genesiswrite

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/db/rawdb"
	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/kv/memdb"
)

func TestCommitGenesisBlock(t *testing.T) {
	ctx := context.Background()
	logger := log.New()
	db := memdb.NewTestDB(t)
	spec := chain.DevSpec()

	hash, err := CommitGenesisBlock(ctx, db, spec, logger)
	require.NoError(t, err)
	require.Equal(t, spec.GenesisHash(), hash)

	// same genesis again is a no-op
	hash, err = CommitGenesisBlock(ctx, db, spec, logger)
	require.NoError(t, err)
	require.Equal(t, spec.GenesisHash(), hash)

	err = db.View(ctx, func(tx kv.Tx) error {
		cfg, err := rawdb.ReadChainConfig(tx, hash)
		require.NoError(t, err)
		require.Equal(t, spec.ChainID(), cfg.ChainID)
		header, err := rawdb.ReadHeaderByNumber(tx, 0)
		require.NoError(t, err)
		require.Equal(t, hash, header.Hash())
		return nil
	})
	require.NoError(t, err)
}

func TestCommitGenesisBlockMismatch(t *testing.T) {
	ctx := context.Background()
	logger := log.New()
	db := memdb.NewTestDB(t)

	first := chain.DevSpec()
	_, err := CommitGenesisBlock(ctx, db, first, logger)
	require.NoError(t, err)

	genesis := *first.Genesis
	genesis.ExtraData = []byte("another genesis")
	second := chain.NewSpec(first.Config, &genesis)

	_, err = CommitGenesisBlock(ctx, db, second, logger)
	require.ErrorIs(t, err, ErrGenesisMismatch)

	var mismatch *GenesisMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, first.GenesisHash(), mismatch.Stored)
	require.Equal(t, second.GenesisHash(), mismatch.New)
}
