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
	"fmt"

	"github.com/erigontech/erigon-launch/db/rawdb"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
)

var ErrUnknownBlock = errors.New("unknown block")

type PeerId string

func (p PeerId) String() string {
	if len(p) > 16 {
		return string(p[:16])
	}
	return string(p)
}

// Peer serves chain data to the local node.
type Peer interface {
	Id() PeerId
	Headers(ctx context.Context, start, count uint64) ([]*types.Header, error)
	HeaderByHash(ctx context.Context, hash types.Hash) (*types.Header, error)
	Bodies(ctx context.Context, hashes []types.Hash) ([]*types.Body, error)
}

// NewDBPeer returns a peer that serves the canonical chain of a local store.
func NewDBPeer(id PeerId, db kv.RoDB) Peer {
	return &dbPeer{id: id, db: db}
}

type dbPeer struct {
	id PeerId
	db kv.RoDB
}

func (p *dbPeer) Id() PeerId { return p.id }

func (p *dbPeer) Headers(ctx context.Context, start, count uint64) (headers []*types.Header, err error) {
	err = p.db.View(ctx, func(tx kv.Tx) error {
		for n := start; n < start+count; n++ {
			header, err := rawdb.ReadHeaderByNumber(tx, n)
			if err != nil {
				return err
			}
			if header == nil {
				break
			}
			headers = append(headers, header)
		}
		return nil
	})
	return headers, err
}

func (p *dbPeer) HeaderByHash(ctx context.Context, hash types.Hash) (header *types.Header, err error) {
	err = p.db.View(ctx, func(tx kv.Tx) error {
		number, err := rawdb.ReadHeaderNumber(tx, hash)
		if err != nil || number == nil {
			return err
		}
		header, err = rawdb.ReadHeader(tx, hash, *number)
		return err
	})
	if err == nil && header == nil {
		err = fmt.Errorf("%w: %s", ErrUnknownBlock, hash)
	}
	return header, err
}

func (p *dbPeer) Bodies(ctx context.Context, hashes []types.Hash) (bodies []*types.Body, err error) {
	err = p.db.View(ctx, func(tx kv.Tx) error {
		for _, hash := range hashes {
			number, err := rawdb.ReadHeaderNumber(tx, hash)
			if err != nil {
				return err
			}
			if number == nil {
				return fmt.Errorf("%w: %s", ErrUnknownBlock, hash)
			}
			body, err := rawdb.ReadBody(tx, hash, *number)
			if err != nil {
				return err
			}
			if body == nil {
				body = &types.Body{}
			}
			bodies = append(bodies, body)
		}
		return nil
	})
	return bodies, err
}
