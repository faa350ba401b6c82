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
	"encoding/binary"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

type Header struct {
	ParentHash  Hash
	Coinbase    Address
	Root        Hash
	TxHash      Hash
	ReceiptHash Hash
	Difficulty  *uint256.Int
	Number      uint64
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	BaseFee     *uint256.Int `rlp:"optional"`

	hash atomic.Pointer[Hash]
}

// Hash returns the keccak256 of the rlp encoding of the header. The value is
// cached, headers must not be mutated after the first call.
func (h *Header) Hash() Hash {
	if cached := h.hash.Load(); cached != nil {
		return *cached
	}
	enc, err := rlp.EncodeToBytes(h)
	if err != nil {
		panic(err)
	}
	hash := Keccak256Hash(enc)
	h.hash.Store(&hash)
	return hash
}

func EncodeHeader(h *Header) ([]byte, error) { return rlp.EncodeToBytes(h) }

func DecodeHeader(data []byte) (*Header, error) {
	h := new(Header)
	if err := rlp.DecodeBytes(data, h); err != nil {
		return nil, err
	}
	return h, nil
}

type Body struct {
	Transactions []*Transaction
}

func EncodeBody(b *Body) ([]byte, error) { return rlp.EncodeToBytes(b) }

func DecodeBody(data []byte) (*Body, error) {
	b := new(Body)
	if err := rlp.DecodeBytes(data, b); err != nil {
		return nil, err
	}
	return b, nil
}

// DeriveTxHash commits to the ordered transaction list of a body. An empty
// list commits to the zero hash.
func DeriveTxHash(txs []*Transaction) Hash {
	if len(txs) == 0 {
		return Hash{}
	}
	enc, err := rlp.EncodeToBytes(txs)
	if err != nil {
		panic(err)
	}
	return Keccak256Hash(enc)
}

type Block struct {
	header *Header
	body   *Body
}

func NewBlock(header *Header, body *Body) *Block {
	if body == nil {
		body = &Body{}
	}
	return &Block{header: header, body: body}
}

func NewBlockWithHeader(header *Header) *Block { return NewBlock(header, nil) }

func (b *Block) Header() *Header               { return b.header }
func (b *Block) Body() *Body                   { return b.body }
func (b *Block) Transactions() []*Transaction  { return b.body.Transactions }
func (b *Block) Number() uint64                { return b.header.Number }
func (b *Block) Hash() Hash                    { return b.header.Hash() }
func (b *Block) ParentHash() Hash              { return b.header.ParentHash }
func (b *Block) Time() uint64                  { return b.header.Time }
func (b *Block) NumberAndHash() (uint64, Hash) { return b.Number(), b.Hash() }

// BlockNumberKey is the 8 byte big endian table key used for per-block records.
func BlockNumberKey(number uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, number)
	return k
}

func BlockNumberFromKey(k []byte) uint64 { return binary.BigEndian.Uint64(k[:8]) }

// HeaderKey = num (uint64 big endian) + hash
func HeaderKey(number uint64, hash Hash) []byte {
	return append(BlockNumberKey(number), hash[:]...)
}

// BlockNumAndHash identifies a block.
type BlockNumAndHash struct {
	Number uint64
	Hash   Hash
}
