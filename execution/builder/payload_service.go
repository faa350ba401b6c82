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
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/execution/types"
)

var (
	ErrUnknownPayload = errors.New("unknown payload")
	ErrServiceStopped = errors.New("payload builder service stopped")
)

const DefaultMaxBuildTime = 2 * time.Second

type requestKind uint8

const (
	requestBuild requestKind = iota
	requestResolve
)

type request struct {
	kind   requestKind
	params *Parameters
	id     uint64
	resp   chan response
}

type response struct {
	id     uint64
	result *BlockWithReceipts
	err    error
}

// Service owns in-flight payload builds. It is driven by a single goroutine
// and reached through a PayloadBuilderHandle.
type Service struct {
	requests     chan request
	stopped      chan struct{}
	build        BlockBuilderFunc
	builders     map[uint64]*BlockBuilder
	nextId       uint64
	maxBuildTime time.Duration
	logger       log.Logger
}

func NewService(build BlockBuilderFunc, maxBuildTime time.Duration, logger log.Logger) (*Service, *PayloadBuilderHandle) {
	if maxBuildTime <= 0 {
		maxBuildTime = DefaultMaxBuildTime
	}
	s := &Service{
		requests:     make(chan request),
		stopped:      make(chan struct{}),
		build:        build,
		builders:     map[uint64]*BlockBuilder{},
		maxBuildTime: maxBuildTime,
		logger:       logger,
	}
	return s, &PayloadBuilderHandle{requests: s.requests, stopped: s.stopped}
}

func (s *Service) Run(ctx context.Context) error {
	defer close(s.stopped)
	for {
		select {
		case <-ctx.Done():
			for _, b := range s.builders {
				b.interrupt.Store(true)
			}
			return nil
		case req := <-s.requests:
			req.resp <- s.handle(req)
		}
	}
}

func (s *Service) handle(req request) response {
	switch req.kind {
	case requestBuild:
		s.nextId++
		params := *req.params
		params.PayloadId = s.nextId
		s.builders[params.PayloadId] = NewBlockBuilder(s.build, &params, s.maxBuildTime, s.logger)
		return response{id: params.PayloadId}
	case requestResolve:
		b, ok := s.builders[req.id]
		if !ok {
			return response{err: fmt.Errorf("%w: %d", ErrUnknownPayload, req.id)}
		}
		delete(s.builders, req.id)
		result, err := b.Stop()
		return response{id: req.id, result: result, err: err}
	default:
		return response{err: fmt.Errorf("unknown request kind %d", req.kind)}
	}
}

// PayloadBuilderHandle is the cloneable front of the payload builder service.
type PayloadBuilderHandle struct {
	requests chan<- request
	stopped  <-chan struct{}
}

// BuildPayload starts building a payload and returns its id.
func (h *PayloadBuilderHandle) BuildPayload(ctx context.Context, params *Parameters) (uint64, error) {
	resp, err := h.send(ctx, request{kind: requestBuild, params: params})
	return resp.id, err
}

// Resolve stops the build with the given id and returns the best payload.
func (h *PayloadBuilderHandle) Resolve(ctx context.Context, id uint64) (*BlockWithReceipts, error) {
	resp, err := h.send(ctx, request{kind: requestResolve, id: id})
	if err != nil {
		return nil, err
	}
	return resp.result, resp.err
}

func (h *PayloadBuilderHandle) send(ctx context.Context, req request) (response, error) {
	req.resp = make(chan response, 1)
	select {
	case h.requests <- req:
	case <-h.stopped:
		return response{}, ErrServiceStopped
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
	select {
	case resp := <-req.resp:
		return resp, resp.err
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

type ParentReader interface {
	HeaderByHash(ctx context.Context, hash types.Hash) (*types.Header, error)
}

type PendingPool interface {
	Pending(limit int) []*types.Transaction
}

type Executor interface {
	Execute(block *types.Block) (types.Receipts, error)
}

// NewBlockBuilderFunc builds blocks on top of a known parent from the pending
// transactions of pool until the parent's gas limit is used up.
func NewBlockBuilderFunc(ctx context.Context, parents ParentReader, pool PendingPool, executor Executor, intrinsicGas func([]byte) uint64) BlockBuilderFunc {
	return func(param *Parameters, interrupt *atomic.Bool) (*BlockWithReceipts, error) {
		parent, err := parents.HeaderByHash(ctx, param.ParentHash)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("unknown parent %s", param.ParentHash)
		}
		header := &types.Header{
			ParentHash: param.ParentHash,
			Coinbase:   param.SuggestedFeeRecipient,
			Number:     parent.Number + 1,
			GasLimit:   parent.GasLimit,
			Time:       param.Timestamp,
			BaseFee:    parent.BaseFee,
			Difficulty: new(uint256.Int),
		}
		var txns []*types.Transaction
		for _, txn := range pool.Pending(0) {
			if interrupt.Load() {
				break
			}
			gas := intrinsicGas(txn.Data)
			if header.GasUsed+gas > header.GasLimit || txn.Gas < gas {
				continue
			}
			header.GasUsed += gas
			txns = append(txns, txn)
		}
		header.TxHash = types.DeriveTxHash(txns)
		block := types.NewBlock(header, &types.Body{Transactions: txns})
		receipts, err := executor.Execute(block)
		if err != nil {
			return nil, err
		}
		return &BlockWithReceipts{Block: block, Receipts: receipts}, nil
	}
}
