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

package stagedsynctest

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/core/genesiswrite"
	"github.com/erigontech/erigon-launch/db/rawdb"
	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/evm"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/kv/memdb"
)

// BlockModifier may alter a generated block before it is sealed.
type BlockModifier func(header *types.Header, body *types.Body)

// GenerateChain returns a store holding the genesis of spec followed by n
// blocks, each with a single transfer.
func GenerateChain(tb testing.TB, spec *chain.Spec, n uint64, modify BlockModifier) (kv.RwDB, []*types.Block) {
	tb.Helper()
	ctx := context.Background()
	db := memdb.NewTestDB(tb)
	_, err := genesiswrite.CommitGenesisBlock(ctx, db, spec, log.New())
	require.NoError(tb, err)

	blocks := make([]*types.Block, 0, n)
	err = db.Update(ctx, func(tx kv.RwTx) error {
		parent := spec.GenesisHeader()
		for i := uint64(1); i <= n; i++ {
			body := &types.Body{Transactions: []*types.Transaction{{
				Nonce:    i - 1,
				GasPrice: uint256.NewInt(1_000_000_000),
				Gas:      evm.TxGas,
				Value:    uint256.NewInt(i),
			}}}
			header := &types.Header{
				ParentHash: parent.Hash(),
				Difficulty: uint256.NewInt(0),
				Number:     i,
				GasLimit:   parent.GasLimit,
				GasUsed:    evm.TxGas,
				Time:       parent.Time + 12,
				BaseFee:    uint256.NewInt(1_000_000_000),
			}
			header.TxHash = types.DeriveTxHash(body.Transactions)
			if modify != nil {
				modify(header, body)
			}
			block := types.NewBlock(header, body)
			if err := rawdb.WriteBlock(tx, block); err != nil {
				return err
			}
			if err := rawdb.WriteCanonicalHash(tx, header.Hash(), i); err != nil {
				return err
			}
			blocks = append(blocks, block)
			parent = header
		}
		return nil
	})
	require.NoError(tb, err)
	return db, blocks
}

// GenesisDB returns a store holding only the genesis of spec.
func GenesisDB(tb testing.TB, spec *chain.Spec) kv.RwDB {
	tb.Helper()
	db := memdb.NewTestDB(tb)
	_, err := genesiswrite.CommitGenesisBlock(context.Background(), db, spec, log.New())
	require.NoError(tb, err)
	return db
}
