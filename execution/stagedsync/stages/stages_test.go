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

package stages

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/kv/memdb"
)

func TestStageProgress(t *testing.T) {
	db := memdb.NewTestDB(t)
	tx := memdb.BeginRw(t, db)

	progress, err := GetStageProgress(tx, Headers)
	require.NoError(t, err)
	require.Zero(t, progress)

	require.NoError(t, SaveStageProgress(tx, Headers, 123))
	require.NoError(t, SaveStagePruneProgress(tx, Headers, 7))

	progress, err = GetStageProgress(tx, Headers)
	require.NoError(t, err)
	require.Equal(t, uint64(123), progress)

	pruned, err := GetStagePruneProgress(tx, Headers)
	require.NoError(t, err)
	require.Equal(t, uint64(7), pruned)

	require.NoError(t, tx.Put("SyncStage", []byte(Bodies), []byte{1}))
	_, err = GetStageProgress(tx, Bodies)
	require.Error(t, err)
}
