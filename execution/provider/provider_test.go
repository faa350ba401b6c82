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

package provider

import (
	"context"
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/core/genesiswrite"
	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/kv/memdb"
)

func TestNewFactoryIncompatibleChain(t *testing.T) {
	ctx := context.Background()
	logger := log.New()
	db := memdb.NewTestDB(t)

	_, err := genesiswrite.CommitGenesisBlock(ctx, db, chain.DevSpec(), logger)
	require.NoError(t, err)

	_, err = NewFactory(ctx, db, chain.DevSpec(), logger)
	require.NoError(t, err)

	_, err = NewFactory(ctx, db, chain.SepoliaSpec(), logger)
	require.ErrorIs(t, err, ErrIncompatibleChain)
}

func TestBlockchainProvider(t *testing.T) {
	ctx := context.Background()
	logger := log.New()
	db := memdb.NewTestDB(t)
	spec := chain.DevSpec()

	_, err := genesiswrite.CommitGenesisBlock(ctx, db, spec, logger)
	require.NoError(t, err)
	factory, err := NewFactory(ctx, db, spec, logger)
	require.NoError(t, err)

	p, err := NewBlockchainProvider(ctx, factory)
	require.NoError(t, err)
	require.Equal(t, spec.GenesisHash(), p.CanonicalHead().Hash())

	header, err := p.HeaderByNumber(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, spec.GenesisHash(), header.Hash())

	block, err := p.BlockByHash(ctx, spec.GenesisHash())
	require.NoError(t, err)
	require.Equal(t, uint64(0), block.Number())

	_, ok := p.LastReceivedUpdateTimestamp()
	require.False(t, ok)
	p.OnForkchoiceUpdateReceived(ForkchoiceState{Head: spec.GenesisHash()})
	_, ok = p.LastReceivedUpdateTimestamp()
	require.True(t, ok)
	state, ok := p.LastForkchoiceState()
	require.True(t, ok)
	require.Equal(t, spec.GenesisHash(), state.Head)
}
