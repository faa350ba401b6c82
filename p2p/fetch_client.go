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

package p2p

//go:generate mockgen -typed=true -destination=./fetch_client_mock.go -package=p2p . FetchClient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/erigontech/erigon-launch/execution/types"
)

var ErrNoPeers = errors.New("no peers")

// FetchClient is the block source used by the sync pipeline and the engine.
type FetchClient interface {
	GetHeaderByHash(ctx context.Context, hash types.Hash) (*types.Header, error)
	GetHeaders(ctx context.Context, start, count uint64) ([]*types.Header, error)
	GetBodies(ctx context.Context, hashes []types.Hash) ([]*types.Body, error)
	PeerCount() int
}

type ErrTooManyBodies struct {
	requested int
	received  int
}

func (e ErrTooManyBodies) Error() string {
	return fmt.Sprintf("too many bodies in fetch bodies response: requested=%d, received=%d", e.requested, e.received)
}

type FetcherConfig struct {
	retryBackOff time.Duration
	maxRetries   uint64
}

var defaultFetcherConfig = FetcherConfig{retryBackOff: 100 * time.Millisecond, maxRetries: 3}

func (n *Network) GetHeaderByHash(ctx context.Context, hash types.Hash) (*types.Header, error) {
	return fetchWithRetry(n.fetcherConfig, n, func(peer Peer) (*types.Header, error) {
		return peer.HeaderByHash(ctx, hash)
	})
}

func (n *Network) GetHeaders(ctx context.Context, start, count uint64) ([]*types.Header, error) {
	return fetchWithRetry(n.fetcherConfig, n, func(peer Peer) ([]*types.Header, error) {
		headers, err := peer.Headers(ctx, start, count)
		if err != nil {
			return nil, err
		}
		for i, h := range headers {
			if h.Number != start+uint64(i) {
				return nil, fmt.Errorf("non sequential header numbers: have %d, want %d", h.Number, start+uint64(i))
			}
		}
		return headers, nil
	})
}

func (n *Network) GetBodies(ctx context.Context, hashes []types.Hash) ([]*types.Body, error) {
	return fetchWithRetry(n.fetcherConfig, n, func(peer Peer) ([]*types.Body, error) {
		bodies, err := peer.Bodies(ctx, hashes)
		if err != nil {
			return nil, err
		}
		if len(bodies) > len(hashes) {
			return nil, &ErrTooManyBodies{requested: len(hashes), received: len(bodies)}
		}
		return bodies, nil
	})
}

func fetchWithRetry[TData any](config FetcherConfig, n *Network, fetch func(Peer) (TData, error)) (TData, error) {
	return backoff.RetryWithData(func() (TData, error) {
		var zero TData
		peer, ok := n.nextPeer()
		if !ok {
			return zero, backoff.Permanent(ErrNoPeers)
		}
		data, err := fetch(peer)
		if err != nil {
			// retry timeouts, possibly on another peer
			if errors.Is(err, context.DeadlineExceeded) {
				return zero, err
			}
			// permanent errors are not retried
			return zero, backoff.Permanent(err)
		}
		return data, nil
	}, backoff.WithMaxRetries(backoff.NewConstantBackOff(config.retryBackOff), config.maxRetries))
}
