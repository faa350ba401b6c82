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
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/erigontech/erigon-launch/execution/types"
)

func TestMockFetchClient(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	client := NewMockFetchClient(ctrl)
	client.EXPECT().
		GetHeaders(gomock.Any(), uint64(1), uint64(2)).
		Return([]*types.Header{{Number: 1}, {Number: 2}}, nil).
		Times(1)
	client.EXPECT().PeerCount().Return(0).AnyTimes()

	var fc FetchClient = client
	headers, err := fc.GetHeaders(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, headers, 2)
	require.Zero(t, fc.PeerCount())
}
