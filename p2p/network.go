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

import (
	"context"
	"errors"
	"sync"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/common/event"
)

var ErrTooManyPeers = errors.New("too many peers")

type PeerEventId uint8

const (
	PeerEventConnect PeerEventId = iota
	PeerEventDisconnect
)

func (id PeerEventId) String() string {
	if id == PeerEventConnect {
		return "connect"
	}
	return "disconnect"
}

type PeerEvent struct {
	EventId PeerEventId
	PeerId  PeerId
}

type Config struct {
	MaxPeers     int
	TrustedPeers []NodeRecord
	Bootnodes    []NodeRecord
}

// Network keeps the set of sessions the node currently has and serves the
// FetchClient interface on top of them.
type Network struct {
	mu     sync.RWMutex
	peers  map[PeerId]Peer
	order  []PeerId
	cursor int

	cfg           Config
	fetcherConfig FetcherConfig
	events        *event.Sender[PeerEvent]
	closed        chan struct{}
	closeOnce     sync.Once
	logger        log.Logger
}

func NewNetwork(cfg Config, logger log.Logger) *Network {
	return &Network{
		peers:         map[PeerId]Peer{},
		cfg:           cfg,
		fetcherConfig: defaultFetcherConfig,
		events:        event.NewSender[PeerEvent](256),
		closed:        make(chan struct{}),
		logger:        logger,
	}
}

func (n *Network) Events() <-chan PeerEvent { return n.events.Subscribe() }

// FetchClient returns the block source backed by the connected peers.
func (n *Network) FetchClient() FetchClient { return n }

func (n *Network) AddPeer(peer Peer) error {
	n.mu.Lock()
	if _, ok := n.peers[peer.Id()]; ok {
		n.mu.Unlock()
		return nil
	}
	if n.cfg.MaxPeers > 0 && len(n.peers) >= n.cfg.MaxPeers {
		n.mu.Unlock()
		return ErrTooManyPeers
	}
	n.peers[peer.Id()] = peer
	n.order = append(n.order, peer.Id())
	n.mu.Unlock()

	n.logger.Debug("[p2p] peer connected", "peer", peer.Id())
	n.events.Notify(PeerEvent{EventId: PeerEventConnect, PeerId: peer.Id()})
	return nil
}

func (n *Network) RemovePeer(id PeerId) {
	n.mu.Lock()
	if _, ok := n.peers[id]; !ok {
		n.mu.Unlock()
		return
	}
	delete(n.peers, id)
	for i, p := range n.order {
		if p == id {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	n.mu.Unlock()

	n.logger.Debug("[p2p] peer disconnected", "peer", id)
	n.events.Notify(PeerEvent{EventId: PeerEventDisconnect, PeerId: id})
}

func (n *Network) PeerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}

func (n *Network) Peers() []PeerId {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]PeerId(nil), n.order...)
}

func (n *Network) nextPeer() (Peer, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.order) == 0 {
		return nil, false
	}
	n.cursor = (n.cursor + 1) % len(n.order)
	return n.peers[n.order[n.cursor]], true
}

// Run keeps the network alive until ctx is done or the network is closed,
// then disconnects every peer.
func (n *Network) Run(ctx context.Context) error {
	n.logger.Info("[p2p] network started", "trusted", len(n.cfg.TrustedPeers), "bootnodes", len(n.cfg.Bootnodes), "maxPeers", n.cfg.MaxPeers)
	select {
	case <-ctx.Done():
	case <-n.closed:
	}
	for _, id := range n.Peers() {
		n.RemovePeer(id)
	}
	n.events.Close()
	return nil
}

// Close stops Run. It is safe to call more than once.
func (n *Network) Close() error {
	n.closeOnce.Do(func() { close(n.closed) })
	n.events.Close()
	return nil
}
