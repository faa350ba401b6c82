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
	"errors"
	"sync/atomic"
	"time"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/execution/types"
)

var errEmptyBuild = errors.New("block builder returned no block")

// Parameters describe the payload a consensus layer asked for.
type Parameters struct {
	PayloadId             uint64
	ParentHash            types.Hash
	Timestamp             uint64
	PrevRandao            types.Hash
	SuggestedFeeRecipient types.Address
}

type BlockWithReceipts struct {
	Block    *types.Block
	Receipts types.Receipts
}

// BlockBuilderFunc builds one payload. It should return what it has as soon
// as interrupt is set.
type BlockBuilderFunc func(param *Parameters, interrupt *atomic.Bool) (*BlockWithReceipts, error)

// BlockBuilder runs a single payload build in the background. The build is
// interrupted once maxBuildTime passed or the payload is resolved.
type BlockBuilder struct {
	interrupt atomic.Bool
	done      chan struct{}
	result    *BlockWithReceipts
	err       error
}

func NewBlockBuilder(build BlockBuilderFunc, param *Parameters, maxBuildTime time.Duration, logger log.Logger) *BlockBuilder {
	b := &BlockBuilder{done: make(chan struct{})}
	deadline := time.AfterFunc(maxBuildTime, func() {
		logger.Debug("Payload build time exceeded", "payload", param.PayloadId, "limit", maxBuildTime)
		b.interrupt.Store(true)
	})

	go func() {
		defer close(b.done)
		defer deadline.Stop()

		start := time.Now()
		logger.Info("Building block...", "payload", param.PayloadId)
		b.result, b.err = build(param, &b.interrupt)
		if b.err == nil && (b.result == nil || b.result.Block == nil) {
			b.err = errEmptyBuild
		}
		if b.err != nil {
			logger.Warn("Failed to build a block", "payload", param.PayloadId, "err", b.err)
			return
		}
		block := b.result.Block
		logger.Info("Built block", "hash", block.Hash(), "height", block.Number(), "txs", len(block.Transactions()), "time", time.Since(start))
	}()
	return b
}

// Stop interrupts the build and waits for its result.
func (b *BlockBuilder) Stop() (*BlockWithReceipts, error) {
	b.interrupt.Store(true)
	<-b.done
	return b.result, b.err
}

// Block is the built block, nil while the build is running or if it failed.
func (b *BlockBuilder) Block() *types.Block {
	select {
	case <-b.done:
	default:
		return nil
	}
	if b.result == nil {
		return nil
	}
	return b.result.Block
}
