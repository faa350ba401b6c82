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

package jsonrpc

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erigontech/erigon-launch/rpc/rpchelper"
)

// NetAPI serves the net namespace.
type NetAPI interface {
	Listening(ctx context.Context) (bool, error)
	Version(ctx context.Context) (string, error)
	PeerCount(ctx context.Context) (hexutil.Uint, error)
}

type NetAPIImpl struct {
	backend rpchelper.ApiBackend
}

func NewNetAPIImpl(backend rpchelper.ApiBackend) *NetAPIImpl {
	return &NetAPIImpl{backend: backend}
}

func (api *NetAPIImpl) requireBackend(method string) error {
	if api.backend == nil {
		return fmt.Errorf(NotAvailableChainData, method)
	}
	return nil
}

// Listening reports whether the p2p network answers. A node without a network
// backend is never listening.
func (api *NetAPIImpl) Listening(ctx context.Context) (bool, error) {
	if api.requireBackend("net_listening") != nil {
		return false, nil
	}
	if _, err := api.backend.NetPeerCount(ctx); err != nil {
		return false, nil
	}
	return true, nil
}

// Version is the network id in decimal.
func (api *NetAPIImpl) Version(ctx context.Context) (string, error) {
	if err := api.requireBackend("net_version"); err != nil {
		return "", err
	}
	id, err := api.backend.NetVersion(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(id, 10), nil
}

func (api *NetAPIImpl) PeerCount(ctx context.Context) (hexutil.Uint, error) {
	if err := api.requireBackend("net_peerCount"); err != nil {
		return 0, err
	}
	peers, err := api.backend.NetPeerCount(ctx)
	if err != nil {
		return 0, err
	}
	return hexutil.Uint(peers), nil
}
