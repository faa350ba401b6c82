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

package provider

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
)

const headerCacheLimit = 1024

// CanonChainTracker exposes when the consensus layer was last heard from.
type CanonChainTracker interface {
	LastReceivedUpdateTimestamp() (time.Time, bool)
	LastExchangedTransitionConfigurationTimestamp() (time.Time, bool)
}

// ForkchoiceState is the last forkchoice state received from the consensus layer.
type ForkchoiceState struct {
	Head, Safe, Finalized types.Hash
}

// BlockchainProvider serves chain reads to RPC and the engine API on top of a
// Factory. It caches recent headers and tracks the canonical head and the
// consensus layer activity.
type BlockchainProvider struct {
	factory *Factory
	headers *lru.Cache[types.Hash, *types.Header]

	canonicalHead atomic.Pointer[types.Header]
	forkchoice    atomic.Pointer[ForkchoiceState]

	lastForkchoiceUpdate atomic.Int64
	lastTransitionConfig atomic.Int64
}

var _ CanonChainTracker = (*BlockchainProvider)(nil)

func NewBlockchainProvider(ctx context.Context, factory *Factory) (*BlockchainProvider, error) {
	headers, err := lru.New[types.Hash, *types.Header](headerCacheLimit)
	if err != nil {
		return nil, err
	}
	p := &BlockchainProvider{factory: factory, headers: headers}
	head, err := factory.LookupHead(ctx)
	if err != nil {
		return nil, err
	}
	header, err := p.HeaderByHash(ctx, head.Hash)
	if err != nil {
		return nil, err
	}
	p.canonicalHead.Store(header)
	return p, nil
}

func (p *BlockchainProvider) Factory() *Factory      { return p.factory }
func (p *BlockchainProvider) ChainSpec() *chain.Spec { return p.factory.spec }
func (p *BlockchainProvider) DB() kv.RoDB            { return p.factory.db }

func (p *BlockchainProvider) CanonicalHead() *types.Header { return p.canonicalHead.Load() }

func (p *BlockchainProvider) SetCanonicalHead(header *types.Header) {
	p.headers.Add(header.Hash(), header)
	p.canonicalHead.Store(header)
}

func (p *BlockchainProvider) HeaderByHash(ctx context.Context, hash types.Hash) (*types.Header, error) {
	if header, ok := p.headers.Get(hash); ok {
		return header, nil
	}
	var header *types.Header
	err := p.factory.db.View(ctx, func(tx kv.Tx) (err error) {
		header, err = p.factory.reader.HeaderByHash(ctx, tx, hash)
		return err
	})
	if err != nil || header == nil {
		return nil, err
	}
	p.headers.Add(hash, header)
	return header, nil
}

func (p *BlockchainProvider) HeaderByNumber(ctx context.Context, number uint64) (*types.Header, error) {
	var header *types.Header
	err := p.factory.db.View(ctx, func(tx kv.Tx) (err error) {
		header, err = p.factory.reader.HeaderByNumber(ctx, tx, number)
		return err
	})
	if err != nil || header == nil {
		return nil, err
	}
	p.headers.Add(header.Hash(), header)
	return header, nil
}

func (p *BlockchainProvider) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	var block *types.Block
	err := p.factory.db.View(ctx, func(tx kv.Tx) (err error) {
		block, err = p.factory.reader.BlockByNumber(ctx, tx, number)
		return err
	})
	return block, err
}

func (p *BlockchainProvider) BlockByHash(ctx context.Context, hash types.Hash) (*types.Block, error) {
	var block *types.Block
	err := p.factory.db.View(ctx, func(tx kv.Tx) (err error) {
		block, err = p.factory.reader.BlockByHash(ctx, tx, hash)
		return err
	})
	return block, err
}

// RefreshCanonicalHead re-reads the head after the pipeline moved it.
func (p *BlockchainProvider) RefreshCanonicalHead(ctx context.Context) error {
	head, err := p.factory.LookupHead(ctx)
	if err != nil {
		return err
	}
	header, err := p.HeaderByHash(ctx, head.Hash)
	if err != nil {
		return err
	}
	if header != nil {
		p.canonicalHead.Store(header)
	}
	return nil
}

func (p *BlockchainProvider) OnForkchoiceUpdateReceived(state ForkchoiceState) {
	p.forkchoice.Store(&state)
	p.lastForkchoiceUpdate.Store(time.Now().UnixNano())
}

func (p *BlockchainProvider) LastForkchoiceState() (ForkchoiceState, bool) {
	if s := p.forkchoice.Load(); s != nil {
		return *s, true
	}
	return ForkchoiceState{}, false
}

func (p *BlockchainProvider) OnTransitionConfigurationExchanged() {
	p.lastTransitionConfig.Store(time.Now().UnixNano())
}

func (p *BlockchainProvider) LastReceivedUpdateTimestamp() (time.Time, bool) {
	return loadTime(&p.lastForkchoiceUpdate)
}

func (p *BlockchainProvider) LastExchangedTransitionConfigurationTimestamp() (time.Time, bool) {
	return loadTime(&p.lastTransitionConfig)
}

func loadTime(v *atomic.Int64) (time.Time, bool) {
	ns := v.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}
