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
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/kv"
)

func TestPutGetForEach(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		for _, k := range []string{"c", "a", "b"} {
			if err := tx.Put(kv.Headers, []byte(k), []byte("v"+k)); err != nil {
				return err
			}
		}
		return nil
	}))

	var keys []string
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		v, err := tx.GetOne(kv.Headers, []byte("b"))
		require.NoError(t, err)
		require.Equal(t, []byte("vb"), v)

		return tx.ForEach(kv.Headers, []byte("b"), func(k, _ []byte) (bool, error) {
			keys = append(keys, string(k))
			return true, nil
		})
	}))
	require.Equal(t, []string{"b", "c"}, keys)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	tx := BeginRw(t, db)
	require.NoError(t, tx.Put(kv.Headers, []byte("k"), []byte("v")))
	tx.Rollback()

	require.NoError(t, db.View(context.Background(), func(tx kv.Tx) error {
		has, err := tx.Has(kv.Headers, []byte("k"))
		require.NoError(t, err)
		require.False(t, has)
		return nil
	}))
}

func TestReaderSeesSnapshot(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	ctx := context.Background()

	ro, err := db.BeginRo(ctx)
	require.NoError(t, err)
	defer ro.Rollback()

	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		return tx.Put(kv.Headers, []byte("k"), []byte("v"))
	}))

	has, err := ro.Has(kv.Headers, []byte("k"))
	require.NoError(t, err)
	require.False(t, has)
}

func TestUnknownTable(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	err := db.View(context.Background(), func(tx kv.Tx) error {
		_, err := tx.GetOne("nope", []byte("k"))
		return err
	})
	require.ErrorIs(t, err, kv.ErrUnknownTable)
}
