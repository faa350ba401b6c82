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
	"errors"
	"fmt"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/types"
)

const (
	TxGas                   uint64 = 21000
	TxDataZeroGas           uint64 = 4
	TxDataNonZeroGasEIP2028 uint64 = 16
)

var (
	ErrGasLimitReached = errors.New("gas limit reached")
	ErrIntrinsicGas    = errors.New("intrinsic gas too low")
	ErrGasUsedMismatch = errors.New("gas used mismatch")
)

// Config carries what block execution needs to know about the chain.
type Config struct {
	ChainSpec *chain.Spec
}

func NewConfig(spec *chain.Spec) *Config { return &Config{ChainSpec: spec} }

// GasPool tracks the amount of gas available during execution of the
// transactions in a block.
type GasPool uint64

func (gp *GasPool) SubGas(amount uint64) error {
	if uint64(*gp) < amount {
		return ErrGasLimitReached
	}
	*(*uint64)(gp) -= amount
	return nil
}

func (gp *GasPool) Gas() uint64 { return uint64(*gp) }

// IntrinsicGas computes the gas a transaction is charged before execution.
func IntrinsicGas(data []byte) uint64 {
	gas := TxGas
	for _, b := range data {
		if b == 0 {
			gas += TxDataZeroGas
		} else {
			gas += TxDataNonZeroGasEIP2028
		}
	}
	return gas
}

// BlockExecutor applies the transactions of a block and produces receipts.
type BlockExecutor struct {
	cfg    *Config
	logger log.Logger
}

func NewBlockExecutor(cfg *Config, logger log.Logger) *BlockExecutor {
	return &BlockExecutor{cfg: cfg, logger: logger}
}

func (e *BlockExecutor) Config() *Config { return e.cfg }

// Execute returns the receipts of block. The sum of gas charged must match
// the gas used recorded in the header.
func (e *BlockExecutor) Execute(block *types.Block) (types.Receipts, error) {
	header := block.Header()
	gp := GasPool(header.GasLimit)
	receipts := make(types.Receipts, 0, len(block.Transactions()))

	var cumulative uint64
	for i, txn := range block.Transactions() {
		receipt, err := applyTransaction(&gp, txn, &cumulative)
		if err != nil {
			return nil, fmt.Errorf("could not apply tx %d [%s]: %w", i, txn.Hash(), err)
		}
		receipts = append(receipts, receipt)
	}
	if cumulative != header.GasUsed {
		return nil, fmt.Errorf("%w: block %d, header %d, executed %d", ErrGasUsedMismatch, header.Number, header.GasUsed, cumulative)
	}
	return receipts, nil
}

func applyTransaction(gp *GasPool, txn *types.Transaction, cumulative *uint64) (*types.Receipt, error) {
	gas := IntrinsicGas(txn.Data)
	if txn.Gas < gas {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, txn.Gas, gas)
	}
	if err := gp.SubGas(gas); err != nil {
		return nil, err
	}
	*cumulative += gas
	return &types.Receipt{
		TxHash:            txn.Hash(),
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: *cumulative,
		GasUsed:           gas,
	}, nil
}
