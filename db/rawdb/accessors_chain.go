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

package rawdb

import (
	"encoding/binary"
	"fmt"

	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
)

var (
	headHeaderKey          = []byte("LastHeader")
	headBlockKey           = []byte("LastBlock")
	forkchoiceHeadKey      = []byte("headBlockHash")
	forkchoiceSafeKey      = []byte("safeBlockHash")
	forkchoiceFinalizedKey = []byte("finalizedBlockHash")
)

// ReadCanonicalHash retrieves the hash assigned to a canonical block number.
func ReadCanonicalHash(db kv.Getter, number uint64) (types.Hash, error) {
	data, err := db.GetOne(kv.HeaderCanonical, types.BlockNumberKey(number))
	if err != nil {
		return types.Hash{}, fmt.Errorf("failed ReadCanonicalHash: %w, number=%d", err, number)
	}
	if len(data) == 0 {
		return types.Hash{}, nil
	}
	return types.BytesToHash(data), nil
}

// TruncateCanonicalHash removes every canonical mapping from block number from
// onwards.
func TruncateCanonicalHash(tx kv.RwTx, from uint64) error {
	var keys [][]byte
	if err := tx.ForEach(kv.HeaderCanonical, types.BlockNumberKey(from), func(k, _ []byte) (bool, error) {
		keys = append(keys, append([]byte(nil), k...))
		return true, nil
	}); err != nil {
		return err
	}
	for _, k := range keys {
		if err := tx.Delete(kv.HeaderCanonical, k); err != nil {
			return fmt.Errorf("TruncateCanonicalHash: %w", err)
		}
	}
	return nil
}

// WriteCanonicalHash stores the hash assigned to a canonical block number.
func WriteCanonicalHash(db kv.Putter, hash types.Hash, number uint64) error {
	if err := db.Put(kv.HeaderCanonical, types.BlockNumberKey(number), hash.Bytes()); err != nil {
		return fmt.Errorf("failed to store number to hash mapping: %w", err)
	}
	return nil
}

// ReadHeaderNumber returns the number assigned to a hash, or nil if unknown.
func ReadHeaderNumber(db kv.Getter, hash types.Hash) (*uint64, error) {
	data, err := db.GetOne(kv.HeaderNumber, hash.Bytes())
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) != 8 {
		return nil, fmt.Errorf("ReadHeaderNumber got wrong data len: %d", len(data))
	}
	number := binary.BigEndian.Uint64(data)
	return &number, nil
}

func WriteHeaderNumber(db kv.Putter, hash types.Hash, number uint64) error {
	return db.Put(kv.HeaderNumber, hash.Bytes(), types.BlockNumberKey(number))
}

func ReadHeader(db kv.Getter, hash types.Hash, number uint64) (*types.Header, error) {
	data, err := db.GetOne(kv.Headers, types.HeaderKey(number, hash))
	if err != nil || len(data) == 0 {
		return nil, err
	}
	return types.DecodeHeader(data)
}

func ReadHeaderByNumber(db kv.Getter, number uint64) (*types.Header, error) {
	hash, err := ReadCanonicalHash(db, number)
	if err != nil {
		return nil, err
	}
	if hash == (types.Hash{}) {
		return nil, nil
	}
	return ReadHeader(db, hash, number)
}

func HasHeader(db kv.Getter, hash types.Hash, number uint64) (bool, error) {
	return db.Has(kv.Headers, types.HeaderKey(number, hash))
}

// WriteHeader stores a header and its hash to number mapping.
func WriteHeader(db kv.Putter, header *types.Header) error {
	hash := header.Hash()
	if err := WriteHeaderNumber(db, hash, header.Number); err != nil {
		return err
	}
	data, err := types.EncodeHeader(header)
	if err != nil {
		return fmt.Errorf("failed to RLP encode header: %w", err)
	}
	return db.Put(kv.Headers, types.HeaderKey(header.Number, hash), data)
}

func ReadBody(db kv.Getter, hash types.Hash, number uint64) (*types.Body, error) {
	data, err := db.GetOne(kv.BlockBody, types.HeaderKey(number, hash))
	if err != nil || len(data) == 0 {
		return nil, err
	}
	return types.DecodeBody(data)
}

func WriteBody(db kv.Putter, hash types.Hash, number uint64, body *types.Body) error {
	data, err := types.EncodeBody(body)
	if err != nil {
		return fmt.Errorf("failed to RLP encode body: %w", err)
	}
	return db.Put(kv.BlockBody, types.HeaderKey(number, hash), data)
}

func HasBody(db kv.Getter, hash types.Hash, number uint64) (bool, error) {
	return db.Has(kv.BlockBody, types.HeaderKey(number, hash))
}

func DeleteBody(db kv.Deleter, hash types.Hash, number uint64) error {
	return db.Delete(kv.BlockBody, types.HeaderKey(number, hash))
}

// ReadBlock assembles a block from its header and body. A missing body
// yields a block with an empty body.
func ReadBlock(db kv.Getter, hash types.Hash, number uint64) (*types.Block, error) {
	header, err := ReadHeader(db, hash, number)
	if err != nil || header == nil {
		return nil, err
	}
	body, err := ReadBody(db, hash, number)
	if err != nil {
		return nil, err
	}
	return types.NewBlock(header, body), nil
}

func WriteBlock(db kv.Putter, block *types.Block) error {
	if err := WriteHeader(db, block.Header()); err != nil {
		return err
	}
	return WriteBody(db, block.Hash(), block.Number(), block.Body())
}

func ReadReceipts(db kv.Getter, number uint64) (types.Receipts, error) {
	data, err := db.GetOne(kv.Receipts, types.BlockNumberKey(number))
	if err != nil || len(data) == 0 {
		return nil, err
	}
	return types.DecodeReceipts(data)
}

func WriteReceipts(db kv.Putter, number uint64, receipts types.Receipts) error {
	data, err := types.EncodeReceipts(receipts)
	if err != nil {
		return fmt.Errorf("encode block receipts for block %d: %w", number, err)
	}
	return db.Put(kv.Receipts, types.BlockNumberKey(number), data)
}

func DeleteReceipts(db kv.Deleter, number uint64) error {
	return db.Delete(kv.Receipts, types.BlockNumberKey(number))
}

func readHash(db kv.Getter, key []byte) (types.Hash, error) {
	data, err := db.GetOne(kv.DatabaseInfo, key)
	if err != nil || len(data) == 0 {
		return types.Hash{}, err
	}
	return types.BytesToHash(data), nil
}

func ReadHeadHeaderHash(db kv.Getter) (types.Hash, error) { return readHash(db, headHeaderKey) }
func WriteHeadHeaderHash(db kv.Putter, hash types.Hash) error {
	return db.Put(kv.DatabaseInfo, headHeaderKey, hash.Bytes())
}

func ReadHeadBlockHash(db kv.Getter) (types.Hash, error) { return readHash(db, headBlockKey) }
func WriteHeadBlockHash(db kv.Putter, hash types.Hash) error {
	return db.Put(kv.DatabaseInfo, headBlockKey, hash.Bytes())
}

func ReadForkchoiceHead(db kv.Getter) (types.Hash, error) { return readHash(db, forkchoiceHeadKey) }
func WriteForkchoiceHead(db kv.Putter, hash types.Hash) error {
	return db.Put(kv.DatabaseInfo, forkchoiceHeadKey, hash.Bytes())
}

func ReadForkchoiceSafe(db kv.Getter) (types.Hash, error) { return readHash(db, forkchoiceSafeKey) }
func WriteForkchoiceSafe(db kv.Putter, hash types.Hash) error {
	return db.Put(kv.DatabaseInfo, forkchoiceSafeKey, hash.Bytes())
}

func ReadForkchoiceFinalized(db kv.Getter) (types.Hash, error) {
	return readHash(db, forkchoiceFinalizedKey)
}
func WriteForkchoiceFinalized(db kv.Putter, hash types.Hash) error {
	return db.Put(kv.DatabaseInfo, forkchoiceFinalizedKey, hash.Bytes())
}

// ReadChainConfig returns the config stored for the given genesis, or nil.
func ReadChainConfig(db kv.Getter, genesis types.Hash) (*chain.Config, error) {
	data, err := db.GetOne(kv.ConfigTable, genesis.Bytes())
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	cfg, err := chain.UnmarshalConfig(data)
	if err != nil {
		return nil, fmt.Errorf("invalid chain config JSON: %x, %w", genesis, err)
	}
	return cfg, nil
}

func WriteChainConfig(db kv.Putter, genesis types.Hash, cfg *chain.Config) error {
	if cfg == nil {
		return nil
	}
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to JSON encode chain config: %w", err)
	}
	return db.Put(kv.ConfigTable, genesis.Bytes(), data)
}

// ReadLastStaticFileBlock returns the highest block moved to static files.
func ReadLastStaticFileBlock(db kv.Getter) (uint64, bool, error) {
	data, err := db.GetOne(kv.StaticFiles, headBlockKey)
	if err != nil || len(data) < 8 {
		return 0, false, err
	}
	return binary.BigEndian.Uint64(data), true, nil
}

func WriteLastStaticFileBlock(db kv.Putter, number uint64) error {
	return db.Put(kv.StaticFiles, headBlockKey, types.BlockNumberKey(number))
}
