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

package types

import (
	"sync/atomic"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

type Transaction struct {
	Nonce    uint64
	GasPrice *uint256.Int
	Gas      uint64
	From     Address
	To       Address
	Value    *uint256.Int
	Data     []byte

	hash atomic.Pointer[Hash]
}

func (tx *Transaction) Hash() Hash {
	if cached := tx.hash.Load(); cached != nil {
		return *cached
	}
	enc, err := rlp.EncodeToBytes(tx)
	if err != nil {
		panic(err)
	}
	hash := Keccak256Hash(enc)
	tx.hash.Store(&hash)
	return hash
}

func EncodeTransaction(tx *Transaction) ([]byte, error) { return rlp.EncodeToBytes(tx) }

func DecodeTransaction(data []byte) (*Transaction, error) {
	tx := new(Transaction)
	if err := rlp.DecodeBytes(data, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

type Receipt struct {
	TxHash            Hash
	Status            uint64
	CumulativeGasUsed uint64
	GasUsed           uint64
}

type Receipts []*Receipt

func EncodeReceipts(r Receipts) ([]byte, error) { return rlp.EncodeToBytes(r) }

func DecodeReceipts(data []byte) (Receipts, error) {
	var r Receipts
	if err := rlp.DecodeBytes(data, &r); err != nil {
		return nil, err
	}
	return r, nil
}
