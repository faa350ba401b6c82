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

package serenity

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/consensus"
	"github.com/erigontech/erigon-launch/execution/types"
)

type headerChain map[types.Hash]*types.Header

func (c headerChain) Config() *chain.Config { return chain.DevSpec().Config }
func (c headerChain) GetHeader(hash types.Hash, _ uint64) *types.Header {
	return c[hash]
}

func TestValidateHeaderAgainstParent(t *testing.T) {
	t.Parallel()
	parent := &types.Header{Number: 7, Time: 100, GasLimit: 30_000_000}

	child := func(mod func(h *types.Header)) *types.Header {
		h := &types.Header{ParentHash: parent.Hash(), Number: 8, Time: 112, GasLimit: 30_000_000, GasUsed: 21_000}
		if mod != nil {
			mod(h)
		}
		return h
	}

	engine := New()
	require.NoError(t, engine.ValidateHeaderAgainstParent(child(nil), parent))

	tests := []struct {
		name string
		mod  func(h *types.Header)
		err  error
	}{
		{"number", func(h *types.Header) { h.Number = 9 }, consensus.ErrInvalidNumber},
		{"parent", func(h *types.Header) { h.ParentHash = types.Hash{1} }, errInvalidParent},
		{"time", func(h *types.Header) { h.Time = 100 }, errOlderBlockTime},
		{"difficulty", func(h *types.Header) { h.Difficulty = uint256.NewInt(1) }, errInvalidDifficulty},
		{"gas", func(h *types.Header) { h.GasUsed = h.GasLimit + 1 }, errGasOverLimit},
		{"extra", func(h *types.Header) { h.Extra = make([]byte, 33) }, errExtraTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, engine.ValidateHeaderAgainstParent(child(tt.mod), parent), tt.err)
		})
	}
}

func TestVerifyHeaderUnknownParent(t *testing.T) {
	t.Parallel()
	parent := &types.Header{Number: 1, Time: 10}
	header := &types.Header{ParentHash: parent.Hash(), Number: 2, Time: 20}

	engine := New()
	require.ErrorIs(t, engine.VerifyHeader(headerChain{}, header), consensus.ErrUnknownAncestor)
	require.NoError(t, engine.VerifyHeader(headerChain{parent.Hash(): parent}, header))
	require.NoError(t, NewFaker().VerifyHeader(headerChain{}, header))
}
