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
	"errors"
	"fmt"

	"github.com/erigontech/erigon-launch/execution/consensus"
	"github.com/erigontech/erigon-launch/execution/types"
)

const MaximumExtraDataSize = 32

var (
	// errInvalidDifficulty is returned if the difficulty is non-zero.
	errInvalidDifficulty = errors.New("invalid difficulty")

	errOlderBlockTime = errors.New("timestamp older than parent")
	errInvalidParent  = errors.New("parent hash mismatch")
	errGasOverLimit   = errors.New("gas used exceeds gas limit")
	errExtraTooLong   = errors.New("extra-data too long")
)

// Serenity verifies post-merge headers. After the Merge the work is mostly
// done on the Consensus Layer, so only structural checks remain here.
type Serenity struct{}

func New() *Serenity { return &Serenity{} }

func (s *Serenity) VerifyHeader(chain consensus.ChainHeaderReader, header *types.Header) error {
	if header.Number == 0 {
		return fmt.Errorf("%w: genesis is not verified", consensus.ErrInvalidNumber)
	}
	// Short circuit if the parent is not known
	parent := chain.GetHeader(header.ParentHash, header.Number-1)
	if parent == nil {
		return consensus.ErrUnknownAncestor
	}
	return s.ValidateHeaderAgainstParent(header, parent)
}

func (s *Serenity) ValidateHeaderAgainstParent(header, parent *types.Header) error {
	if header.Number != parent.Number+1 {
		return fmt.Errorf("%w: have %d, parent %d", consensus.ErrInvalidNumber, header.Number, parent.Number)
	}
	if header.ParentHash != parent.Hash() {
		return errInvalidParent
	}
	if header.Time <= parent.Time {
		return errOlderBlockTime
	}
	if header.Difficulty != nil && !header.Difficulty.IsZero() {
		return errInvalidDifficulty
	}
	if header.GasUsed > header.GasLimit {
		return fmt.Errorf("%w: have %d, limit %d", errGasOverLimit, header.GasUsed, header.GasLimit)
	}
	if len(header.Extra) > MaximumExtraDataSize {
		return fmt.Errorf("%w: %d > %d", errExtraTooLong, len(header.Extra), MaximumExtraDataSize)
	}
	return nil
}

func (s *Serenity) Close() error { return nil }

// Faker accepts every header. It is used by dev chains where blocks are
// produced locally.
type Faker struct{}

func NewFaker() *Faker { return &Faker{} }

func (f *Faker) VerifyHeader(consensus.ChainHeaderReader, *types.Header) error { return nil }
func (f *Faker) ValidateHeaderAgainstParent(_, _ *types.Header) error          { return nil }
func (f *Faker) Close() error                                                  { return nil }
