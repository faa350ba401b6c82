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

package prune

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/erigontech/erigon-launch/kv"
)

// FullImmutabilityThreshold is the depth after which blocks are considered
// final and may leave the database for static files.
const FullImmutabilityThreshold = 90_000

// Archive keeps everything.
const Archive = Distance(math.MaxUint64)

var DefaultMode = Mode{Initialised: true, History: Archive, Blocks: Archive}

// FullMode keeps FullImmutabilityThreshold blocks of receipts.
var FullMode = Mode{Initialised: true, History: FullImmutabilityThreshold, Blocks: Archive}

var ErrModeChanged = errors.New("prune mode differs from the one stored in the database")

// Mode says how much history to keep. History covers receipts, Blocks covers
// block bodies.
type Mode struct {
	// Initialised is false when the user did not choose a mode, the stored
	// one is used then.
	Initialised bool
	History     Distance
	Blocks      Distance
}

// Distance is the number of blocks kept below the tip.
type Distance uint64

func (d Distance) Enabled() bool { return d != Archive }

// PruneTo is the first block to keep for the given tip, it never underflows.
func (d Distance) PruneTo(tip uint64) uint64 {
	if uint64(d) > tip {
		return 0
	}
	return tip - uint64(d)
}

// FromCli builds a mode from the --prune.h.older and --prune.b.older flags,
// zero meaning keep everything.
func FromCli(olderHistory, olderBlocks uint64) (Mode, error) {
	if olderHistory == 0 && olderBlocks == 0 {
		return DefaultMode, nil
	}
	mode := DefaultMode
	if olderHistory > 0 {
		mode.History = Distance(olderHistory)
	}
	if olderBlocks > 0 {
		mode.Blocks = Distance(olderBlocks)
	}
	if mode.Blocks.Enabled() && mode.History.Enabled() && mode.Blocks < mode.History {
		return DefaultMode, fmt.Errorf("--prune.b.older=%d must not be lower than --prune.h.older=%d", mode.Blocks, mode.History)
	}
	return mode, nil
}

func (m Mode) Enabled() bool { return m.History.Enabled() || m.Blocks.Enabled() }

func (m Mode) String() string {
	if !m.Initialised {
		return "default"
	}
	var flags []string
	if m.History.Enabled() {
		flags = append(flags, fmt.Sprintf("--prune.h.older=%d", m.History))
	}
	if m.Blocks.Enabled() {
		flags = append(flags, fmt.Sprintf("--prune.b.older=%d", m.Blocks))
	}
	if len(flags) == 0 {
		return "archive"
	}
	return strings.Join(flags, " ")
}

// Get reads the stored mode, missing values read as archive.
func Get(db kv.Getter) (Mode, error) {
	mode := DefaultMode
	var err error
	if mode.History, err = getDistance(db, kv.PruneHistory); err != nil {
		return mode, err
	}
	if mode.Blocks, err = getDistance(db, kv.PruneBlocks); err != nil {
		return mode, err
	}
	return mode, nil
}

type getPutter interface {
	kv.Getter
	kv.Putter
}

// EnsureNotChanged stores mode on first use and afterwards refuses a
// different one. It returns the mode in effect.
func EnsureNotChanged(tx getPutter, mode Mode) (Mode, error) {
	toStore := mode
	if !toStore.Initialised {
		toStore = DefaultMode
	}
	if err := putIfEmpty(tx, kv.PruneHistory, toStore.History); err != nil {
		return mode, err
	}
	if err := putIfEmpty(tx, kv.PruneBlocks, toStore.Blocks); err != nil {
		return mode, err
	}

	stored, err := Get(tx)
	if err != nil {
		return mode, err
	}
	if mode.Initialised && stored != mode {
		return stored, fmt.Errorf("%w, last time you used: %s", ErrModeChanged, stored)
	}
	return stored, nil
}

func getDistance(db kv.Getter, key []byte) (Distance, error) {
	v, err := db.GetOne(kv.DatabaseInfo, key)
	if err != nil {
		return 0, err
	}
	switch len(v) {
	case 0:
		return Archive, nil
	case 8:
		return Distance(binary.BigEndian.Uint64(v)), nil
	default:
		return 0, fmt.Errorf("malformed prune distance %q: %x", key, v)
	}
}

func putIfEmpty(db getPutter, key []byte, d Distance) error {
	v, err := db.GetOne(kv.DatabaseInfo, key)
	if err != nil || len(v) > 0 {
		return err
	}
	return db.Put(kv.DatabaseInfo, key, binary.BigEndian.AppendUint64(nil, uint64(d)))
}
