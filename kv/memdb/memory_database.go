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

package memdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tidwall/btree"

	"github.com/erigontech/erigon-launch/kv"
)

var ErrClosed = errors.New("memdb: database closed")

type item struct {
	k, v []byte
}

func less(a, b item) bool { return bytes.Compare(a.k, b.k) < 0 }

// DB is an ordered in-memory store. Readers work on copy-on-write snapshots of
// the table trees, there is a single writer at a time.
type DB struct {
	label  kv.Label
	mu     sync.RWMutex
	writer sync.Mutex
	tables map[string]*btree.BTreeG[item]
	closed atomic.Bool
}

func New(label kv.Label) *DB {
	tables := make(map[string]*btree.BTreeG[item], len(kv.ChaindataTables))
	for _, name := range kv.ChaindataTables {
		tables[name] = btree.NewBTreeG[item](less)
	}
	return &DB{label: label, tables: tables}
}

func NewTestDB(tb testing.TB) *DB {
	tb.Helper()
	db := New(kv.InMemory)
	tb.Cleanup(db.Close)
	return db
}

func BeginRw(tb testing.TB, db kv.RwDB) kv.RwTx {
	tb.Helper()
	tx, err := db.BeginRw(context.Background()) //nolint:gocritic
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(tx.Rollback)
	return tx
}

func (db *DB) Label() kv.Label { return db.label }
func (db *DB) Close()          { db.closed.Store(true) }

func (db *DB) snapshot() map[string]*btree.BTreeG[item] {
	db.mu.RLock()
	defer db.mu.RUnlock()
	snap := make(map[string]*btree.BTreeG[item], len(db.tables))
	for name, t := range db.tables {
		snap[name] = t.Copy()
	}
	return snap
}

func (db *DB) BeginRo(ctx context.Context) (kv.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if db.closed.Load() {
		return nil, ErrClosed
	}
	return &tx{db: db, tables: db.snapshot()}, nil
}

func (db *DB) BeginRw(ctx context.Context) (kv.RwTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if db.closed.Load() {
		return nil, ErrClosed
	}
	db.writer.Lock()
	return &tx{db: db, tables: db.snapshot(), rw: true}, nil
}

func (db *DB) View(ctx context.Context, f func(tx kv.Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func (db *DB) Update(ctx context.Context, f func(tx kv.RwTx) error) error {
	tx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type tx struct {
	db     *DB
	tables map[string]*btree.BTreeG[item]
	rw     bool
	done   bool
}

func (t *tx) table(name string) (*btree.BTreeG[item], error) {
	if t.done {
		return nil, errors.New("memdb: transaction already finished")
	}
	tbl, ok := t.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", kv.ErrUnknownTable, name)
	}
	return tbl, nil
}

func (t *tx) GetOne(table string, key []byte) ([]byte, error) {
	tbl, err := t.table(table)
	if err != nil {
		return nil, err
	}
	it, ok := tbl.Get(item{k: key})
	if !ok {
		return nil, nil
	}
	return it.v, nil
}

func (t *tx) Has(table string, key []byte) (bool, error) {
	v, err := t.GetOne(table, key)
	return v != nil, err
}

func (t *tx) ForEach(table string, fromPrefix []byte, walker func(k, v []byte) (bool, error)) error {
	tbl, err := t.table(table)
	if err != nil {
		return err
	}
	var walkErr error
	tbl.Ascend(item{k: fromPrefix}, func(it item) bool {
		var cont bool
		cont, walkErr = walker(it.k, it.v)
		return walkErr == nil && cont
	})
	return walkErr
}

func (t *tx) Put(table string, k, v []byte) error {
	if !t.rw {
		return errors.New("memdb: put in read-only transaction")
	}
	tbl, err := t.table(table)
	if err != nil {
		return err
	}
	tbl.Set(item{k: bytes.Clone(k), v: bytes.Clone(v)})
	return nil
}

func (t *tx) Delete(table string, k []byte) error {
	if !t.rw {
		return errors.New("memdb: delete in read-only transaction")
	}
	tbl, err := t.table(table)
	if err != nil {
		return err
	}
	tbl.Delete(item{k: k})
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return errors.New("memdb: transaction already finished")
	}
	if !t.rw {
		t.done = true
		return nil
	}
	t.db.mu.Lock()
	t.db.tables = t.tables
	t.db.mu.Unlock()
	t.done = true
	t.db.writer.Unlock()
	return nil
}

func (t *tx) Rollback() {
	if t.done {
		return
	}
	t.done = true
	if t.rw {
		t.db.writer.Unlock()
	}
}
