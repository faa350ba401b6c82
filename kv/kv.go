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

package kv

import (
	"context"
	"errors"
)

var ErrUnknownTable = errors.New("unknown table")

// Label identifies a database instance in logs and metrics.
type Label string

const (
	ChainDB  Label = "chaindata"
	InMemory Label = "inmem"
)

type Getter interface {
	// GetOne returns nil (without error) if the key is absent. The returned slice
	// is only valid until the end of the transaction.
	GetOne(table string, key []byte) ([]byte, error)
	Has(table string, key []byte) (bool, error)
	// ForEach walks keys >= fromPrefix in ascending order until walker returns false.
	ForEach(table string, fromPrefix []byte, walker func(k, v []byte) (bool, error)) error
}

type Putter interface {
	Put(table string, k, v []byte) error
}

type Deleter interface {
	Delete(table string, k []byte) error
}

type Tx interface {
	Getter
	Rollback()
}

type RwTx interface {
	Tx
	Putter
	Deleter
	Commit() error
}

type RoDB interface {
	View(ctx context.Context, f func(tx Tx) error) error
	BeginRo(ctx context.Context) (Tx, error)
	Label() Label
	Close()
}

type RwDB interface {
	RoDB
	Update(ctx context.Context, f func(tx RwTx) error) error
	BeginRw(ctx context.Context) (RwTx, error)
}

// Metrics is implemented by stores that can export their internal statistics.
type Metrics interface {
	ReportMetrics()
}

// Metadata is implemented by stores that know where they live on disk.
type Metadata interface {
	Path() string
}
