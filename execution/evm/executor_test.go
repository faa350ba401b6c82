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

package evm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/types"
)

func TestIntrinsicGas(t *testing.T) {
	t.Parallel()
	require.Equal(t, TxGas, IntrinsicGas(nil))
	require.Equal(t, TxGas+TxDataZeroGas+2*TxDataNonZeroGasEIP2028, IntrinsicGas([]byte{0, 1, 2}))
}

func TestExecute(t *testing.T) {
	t.Parallel()
	executor := NewBlockExecutor(NewConfig(chain.DevSpec()), log.New())

	txns := []*types.Transaction{
		{Nonce: 0, Gas: 30_000, GasPrice: uint256.NewInt(1), Value: uint256.NewInt(0)},
		{Nonce: 1, Gas: 30_000, GasPrice: uint256.NewInt(1), Value: uint256.NewInt(0), Data: []byte{1}},
	}
	header := &types.Header{Number: 1, GasLimit: 100_000, GasUsed: 2*TxGas + TxDataNonZeroGasEIP2028}
	receipts, err := executor.Execute(types.NewBlock(header, &types.Body{Transactions: txns}))
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	require.Equal(t, TxGas, receipts[0].GasUsed)
	require.Equal(t, header.GasUsed, receipts[1].CumulativeGasUsed)
	require.Equal(t, txns[1].Hash(), receipts[1].TxHash)

	t.Run("gas used mismatch", func(t *testing.T) {
		bad := &types.Header{Number: 1, GasLimit: 100_000, GasUsed: 1}
		_, err := executor.Execute(types.NewBlock(bad, &types.Body{Transactions: txns}))
		require.ErrorIs(t, err, ErrGasUsedMismatch)
	})
	t.Run("gas limit", func(t *testing.T) {
		small := &types.Header{Number: 1, GasLimit: TxGas}
		_, err := executor.Execute(types.NewBlock(small, &types.Body{Transactions: txns}))
		require.ErrorIs(t, err, ErrGasLimitReached)
	})
	t.Run("intrinsic", func(t *testing.T) {
		low := []*types.Transaction{{Gas: 100, GasPrice: uint256.NewInt(1), Value: uint256.NewInt(0)}}
		_, err := executor.Execute(types.NewBlock(&types.Header{GasLimit: 100_000}, &types.Body{Transactions: low}))
		require.ErrorIs(t, err, ErrIntrinsicGas)
	})
}
