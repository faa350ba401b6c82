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

package builder

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/evm"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/txnprovider/txpool"
)

type parents map[types.Hash]*types.Header

func (p parents) HeaderByHash(_ context.Context, hash types.Hash) (*types.Header, error) {
	return p[hash], nil
}

func TestPayloadService(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := log.New()

	parent := &types.Header{Number: 4, GasLimit: 2 * evm.TxGas, Time: 48, Difficulty: uint256.NewInt(0)}
	pool := txpool.New(txpool.DefaultConfig, logger)
	sender := types.Address{0xaa}
	pool.Add([]*types.Transaction{
		txpool.NewTxn(sender, 0, 1),
		txpool.NewTxn(sender, 1, 1),
		txpool.NewTxn(sender, 2, 1), // does not fit
	})

	executor := evm.NewBlockExecutor(evm.NewConfig(chain.DevSpec()), logger)
	build := NewBlockBuilderFunc(ctx, parents{parent.Hash(): parent}, pool, executor, evm.IntrinsicGas)
	service, handle := NewService(build, 0, logger)
	done := make(chan error)
	go func() { done <- service.Run(ctx) }()

	id, err := handle.BuildPayload(ctx, &Parameters{ParentHash: parent.Hash(), Timestamp: 60})
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	result, err := handle.Resolve(ctx, id)
	require.NoError(t, err)
	block := result.Block
	require.Equal(t, uint64(5), block.Number())
	require.Equal(t, parent.Hash(), block.ParentHash())
	require.Len(t, block.Transactions(), 2)
	require.Len(t, result.Receipts, 2)
	require.Equal(t, 2*evm.TxGas, block.Header().GasUsed)

	_, err = handle.Resolve(ctx, id)
	require.ErrorIs(t, err, ErrUnknownPayload)

	t.Run("unknown parent", func(t *testing.T) {
		id, err := handle.BuildPayload(ctx, &Parameters{ParentHash: types.Hash{1}, Timestamp: 60})
		require.NoError(t, err)
		_, err = handle.Resolve(ctx, id)
		require.ErrorContains(t, err, "unknown parent")
	})

	cancel()
	require.NoError(t, <-done)
	_, err = handle.BuildPayload(context.Background(), &Parameters{})
	require.ErrorIs(t, err, ErrServiceStopped)
}
