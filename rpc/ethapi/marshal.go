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

package ethapi

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erigontech/erigon-launch/execution/types"
)

// RPCMarshalHeader converts the given header to the RPC output.
func RPCMarshalHeader(head *types.Header) map[string]interface{} {
	result := map[string]interface{}{
		"number":           hexutil.Uint64(head.Number),
		"hash":             head.Hash(),
		"parentHash":       head.ParentHash,
		"miner":            head.Coinbase,
		"stateRoot":        head.Root,
		"transactionsRoot": head.TxHash,
		"receiptsRoot":     head.ReceiptHash,
		"extraData":        hexutil.Bytes(head.Extra),
		"gasLimit":         hexutil.Uint64(head.GasLimit),
		"gasUsed":          hexutil.Uint64(head.GasUsed),
		"timestamp":        hexutil.Uint64(head.Time),
	}
	if head.Difficulty != nil {
		result["difficulty"] = (*hexutil.Big)(head.Difficulty.ToBig())
	}
	if head.BaseFee != nil {
		result["baseFeePerGas"] = (*hexutil.Big)(head.BaseFee.ToBig())
	}
	return result
}

// RPCMarshalBlock converts the given block to the RPC output which depends on fullTx. If inclTx is true transactions are
// returned. When fullTx is true the returned block contains full transaction details, otherwise it will only contain
// transaction hashes.
func RPCMarshalBlock(block *types.Block, inclTx bool, fullTx bool) map[string]interface{} {
	fields := RPCMarshalHeader(block.Header())
	if !inclTx {
		return fields
	}
	txs := block.Transactions()
	transactions := make([]interface{}, len(txs))
	for i, txn := range txs {
		if fullTx {
			transactions[i] = newRPCTransaction(txn, block, uint64(i))
		} else {
			transactions[i] = txn.Hash()
		}
	}
	fields["transactions"] = transactions
	return fields
}

// RPCTransaction represents a transaction that will serialize to the RPC representation of a transaction
type RPCTransaction struct {
	BlockHash        *types.Hash     `json:"blockHash"`
	BlockNumber      *hexutil.Uint64 `json:"blockNumber"`
	From             types.Address   `json:"from"`
	Gas              hexutil.Uint64  `json:"gas"`
	GasPrice         *hexutil.Big    `json:"gasPrice,omitempty"`
	Hash             types.Hash      `json:"hash"`
	Input            hexutil.Bytes   `json:"input"`
	Nonce            hexutil.Uint64  `json:"nonce"`
	To               types.Address   `json:"to"`
	TransactionIndex *hexutil.Uint64 `json:"transactionIndex"`
	Value            *hexutil.Big    `json:"value"`
}

func newRPCTransaction(txn *types.Transaction, block *types.Block, index uint64) *RPCTransaction {
	blockHash := block.Hash()
	blockNumber := hexutil.Uint64(block.Number())
	idx := hexutil.Uint64(index)
	result := &RPCTransaction{
		BlockHash:        &blockHash,
		BlockNumber:      &blockNumber,
		From:             txn.From,
		Gas:              hexutil.Uint64(txn.Gas),
		Hash:             txn.Hash(),
		Input:            hexutil.Bytes(txn.Data),
		Nonce:            hexutil.Uint64(txn.Nonce),
		To:               txn.To,
		TransactionIndex: &idx,
		Value:            (*hexutil.Big)(new(big.Int)),
	}
	if txn.GasPrice != nil {
		result.GasPrice = (*hexutil.Big)(txn.GasPrice.ToBig())
	}
	if txn.Value != nil {
		result.Value = (*hexutil.Big)(txn.Value.ToBig())
	}
	return result
}
