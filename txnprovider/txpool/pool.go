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

package txpool

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/google/btree"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/execution/types"
)

var (
	ErrAlreadyKnown       = errors.New("already known")
	ErrUnderpriced        = errors.New("transaction underpriced")
	ErrReplaceUnderpriced = errors.New("replacement transaction underpriced")
	ErrNonceTooLow        = errors.New("nonce too low")
	ErrPoolOverflow       = errors.New("txpool is full")
	ErrZeroGas            = errors.New("zero gas")
	ErrClosed             = errors.New("txpool closed")
)

const (
	replacementBumpPercent        = 10
	defaultPoolSize               = 10_000
	defaultMinFeeCap       uint64 = 1
)

type Config struct {
	MaxSize   int
	MinFeeCap uint64
}

var DefaultConfig = Config{MaxSize: defaultPoolSize, MinFeeCap: defaultMinFeeCap}

type metaTxn struct {
	txn *types.Transaction
}

func lessBySenderAndNonce(a, b *metaTxn) bool {
	if c := bytes.Compare(a.txn.From[:], b.txn.From[:]); c != 0 {
		return c < 0
	}
	return a.txn.Nonce < b.txn.Nonce
}

// TxPool keeps transactions ordered by sender and nonce. A transaction is
// pending when every lower nonce of its sender down to the sender's state
// nonce is present, queued otherwise.
type TxPool struct {
	mu          sync.RWMutex
	bySender    *btree.BTreeG[*metaTxn]
	byHash      map[types.Hash]*metaTxn
	senderNonce map[types.Address]uint64
	cfg         Config
	closed      bool
	logger      log.Logger
}

func New(cfg Config, logger log.Logger) *TxPool {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaultPoolSize
	}
	return &TxPool{
		bySender:    btree.NewG[*metaTxn](32, lessBySenderAndNonce),
		byHash:      map[types.Hash]*metaTxn{},
		senderNonce: map[types.Address]uint64{},
		cfg:         cfg,
		logger:      logger,
	}
}

// Add validates and inserts transactions, returning one error slot per input.
func (p *TxPool) Add(txns []*types.Transaction) []error {
	p.mu.Lock()
	defer p.mu.Unlock()

	errs := make([]error, len(txns))
	for i, txn := range txns {
		errs[i] = p.add(txn)
	}
	return errs
}

func (p *TxPool) add(txn *types.Transaction) error {
	if p.closed {
		return ErrClosed
	}
	hash := txn.Hash()
	if _, ok := p.byHash[hash]; ok {
		return ErrAlreadyKnown
	}
	if txn.Gas == 0 {
		return ErrZeroGas
	}
	if feeCap(txn) < p.cfg.MinFeeCap {
		return fmt.Errorf("%w: fee cap %d, minimum %d", ErrUnderpriced, feeCap(txn), p.cfg.MinFeeCap)
	}
	if txn.Nonce < p.senderNonce[txn.From] {
		return fmt.Errorf("%w: have %d, state %d", ErrNonceTooLow, txn.Nonce, p.senderNonce[txn.From])
	}

	mt := &metaTxn{txn: txn}
	if found, ok := p.bySender.Get(mt); ok {
		bump := feeCap(found.txn) + feeCap(found.txn)*replacementBumpPercent/100
		if feeCap(txn) < bump {
			return ErrReplaceUnderpriced
		}
		delete(p.byHash, found.txn.Hash())
		p.logger.Trace("[txpool] replaced", "old", found.txn.Hash(), "new", hash)
	} else if p.bySender.Len() >= p.cfg.MaxSize {
		return ErrPoolOverflow
	}
	p.bySender.ReplaceOrInsert(mt)
	p.byHash[hash] = mt
	return nil
}

func feeCap(txn *types.Transaction) uint64 {
	if txn.GasPrice == nil {
		return 0
	}
	if !txn.GasPrice.IsUint64() {
		return ^uint64(0)
	}
	return txn.GasPrice.Uint64()
}

func (p *TxPool) Get(hash types.Hash) (*types.Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	mt, ok := p.byHash[hash]
	if !ok {
		return nil, false
	}
	return mt.txn, true
}

// Pending returns executable transactions in sender and nonce order, at most
// limit of them when limit is positive.
func (p *TxPool) Pending(limit int) []*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*types.Transaction
	p.walkPending(func(mt *metaTxn, pending bool) bool {
		if pending {
			out = append(out, mt.txn)
		}
		return limit <= 0 || len(out) < limit
	})
	return out
}

// Status returns the number of pending and queued transactions.
func (p *TxPool) Status() (pending, queued int) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	p.walkPending(func(_ *metaTxn, isPending bool) bool {
		if isPending {
			pending++
		} else {
			queued++
		}
		return true
	})
	return pending, queued
}

func (p *TxPool) walkPending(f func(mt *metaTxn, pending bool) bool) {
	var (
		sender   types.Address
		expected uint64
		started  bool
	)
	p.bySender.Ascend(func(mt *metaTxn) bool {
		if !started || mt.txn.From != sender {
			sender, started = mt.txn.From, true
			expected = p.senderNonce[sender]
		}
		isPending := mt.txn.Nonce == expected
		if isPending {
			expected++
		}
		return f(mt, isPending)
	})
}

func (p *TxPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bySender.Len()
}

// OnNewBlock drops transactions included in block and advances the nonces of
// their senders.
func (p *TxPool) OnNewBlock(block *types.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, txn := range block.Transactions() {
		if next := txn.Nonce + 1; next > p.senderNonce[txn.From] {
			p.senderNonce[txn.From] = next
		}
	}
	var stale []*metaTxn
	p.bySender.Ascend(func(mt *metaTxn) bool {
		if mt.txn.Nonce < p.senderNonce[mt.txn.From] {
			stale = append(stale, mt)
		}
		return true
	})
	for _, mt := range stale {
		p.bySender.Delete(mt)
		delete(p.byHash, mt.txn.Hash())
	}
	if len(stale) > 0 {
		p.logger.Debug("[txpool] removed mined", "block", block.Number(), "count", len(stale))
	}
}

func (p *TxPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.bySender.Clear(false)
	p.byHash = map[types.Hash]*metaTxn{}
	return nil
}

// NewTxn is a helper for building plain value transfers.
func NewTxn(from types.Address, nonce uint64, gasPrice uint64) *types.Transaction {
	return &types.Transaction{
		Nonce:    nonce,
		GasPrice: uint256.NewInt(gasPrice),
		Gas:      21_000,
		From:     from,
		Value:    uint256.NewInt(0),
	}
}
