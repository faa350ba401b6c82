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

package bolt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ledgerwatch/log/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	bolt "go.etcd.io/bbolt"

	"github.com/erigontech/erigon-launch/kv"
)

const fileName = "chain.db"

var (
	dbSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "db_size",
		Help: "Size of the database file in bytes",
	}, []string{"label"})
	dbFreePages = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "db_freelist_pages",
		Help: "Number of free pages on the freelist",
	}, []string{"label"})
	dbOpenTx = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "db_open_read_tx",
		Help: "Number of currently open read transactions",
	}, []string{"label"})
)

// DB is the on-disk chain store.
type DB struct {
	db     *bolt.DB
	label  kv.Label
	path   string
	logger log.Logger
}

func Open(dir string, label kv.Label, logger log.Logger) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fileName)
	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:        time.Second,
		NoFreelistSync: true,
		FreelistType:   bolt.FreelistMapType,
	})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("open %s: database is used by another process", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range kv.ChaindataTables {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create table %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("Opened database", "label", label, "path", path)
	return &DB{db: db, label: label, path: path, logger: logger}, nil
}

func (db *DB) Label() kv.Label { return db.label }
func (db *DB) Path() string    { return db.path }

func (db *DB) Close() {
	if err := db.db.Close(); err != nil {
		db.logger.Warn("Failed to close database", "label", db.label, "err", err)
	}
}

func (db *DB) ReportMetrics() {
	stats := db.db.Stats()
	label := string(db.label)
	dbFreePages.WithLabelValues(label).Set(float64(stats.FreePageN))
	dbOpenTx.WithLabelValues(label).Set(float64(stats.OpenTxN))
	_ = db.db.View(func(tx *bolt.Tx) error {
		dbSize.WithLabelValues(label).Set(float64(tx.Size()))
		return nil
	})
}

func (db *DB) BeginRo(ctx context.Context) (kv.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	btx, err := db.db.Begin(false)
	if err != nil {
		return nil, err
	}
	return &tx{btx: btx}, nil
}

func (db *DB) BeginRw(ctx context.Context) (kv.RwTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	btx, err := db.db.Begin(true)
	if err != nil {
		return nil, err
	}
	return &tx{btx: btx}, nil
}

func (db *DB) View(ctx context.Context, f func(tx kv.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.db.View(func(btx *bolt.Tx) error { return f(&tx{btx: btx}) })
}

func (db *DB) Update(ctx context.Context, f func(tx kv.RwTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.db.Update(func(btx *bolt.Tx) error { return f(&tx{btx: btx}) })
}

type tx struct {
	btx *bolt.Tx
}

func (t *tx) bucket(table string) (*bolt.Bucket, error) {
	b := t.btx.Bucket([]byte(table))
	if b == nil {
		return nil, fmt.Errorf("%w: %s", kv.ErrUnknownTable, table)
	}
	return b, nil
}

func (t *tx) GetOne(table string, key []byte) ([]byte, error) {
	b, err := t.bucket(table)
	if err != nil {
		return nil, err
	}
	return b.Get(key), nil
}

func (t *tx) Has(table string, key []byte) (bool, error) {
	v, err := t.GetOne(table, key)
	return v != nil, err
}

func (t *tx) ForEach(table string, fromPrefix []byte, walker func(k, v []byte) (bool, error)) error {
	b, err := t.bucket(table)
	if err != nil {
		return err
	}
	c := b.Cursor()
	for k, v := c.Seek(fromPrefix); k != nil; k, v = c.Next() {
		cont, err := walker(k, v)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

func (t *tx) Put(table string, k, v []byte) error {
	b, err := t.bucket(table)
	if err != nil {
		return err
	}
	return b.Put(k, v)
}

func (t *tx) Delete(table string, k []byte) error {
	b, err := t.bucket(table)
	if err != nil {
		return err
	}
	return b.Delete(k)
}

func (t *tx) Commit() error { return t.btx.Commit() }

func (t *tx) Rollback() {
	// bolt returns ErrTxClosed after a successful commit
	_ = t.btx.Rollback()
}
