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

package stagedsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/erigontech/erigon-launch/execution/types"
)

var ErrNoHeaders = errors.New("no headers available from peers")

// DownloadError marks a failure to obtain data from the network. The run can
// be retried later.
type DownloadError struct {
	Err error
}

func (e *DownloadError) Error() string { return "download: " + e.Err.Error() }
func (e *DownloadError) Unwrap() error { return e.Err }

type BadBlockError struct {
	Number uint64
	Hash   types.Hash
	Err    error
}

func (e *BadBlockError) Error() string {
	return fmt.Sprintf("bad block %d (%s): %v", e.Number, e.Hash, e.Err)
}
func (e *BadBlockError) Unwrap() error { return e.Err }

// IsFatal reports whether err must stop whoever drives the pipeline. Download
// failures and bad blocks leave the chain consistent and can be retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var downloadErr *DownloadError
	if errors.As(err, &downloadErr) {
		return false
	}
	var badBlockErr *BadBlockError
	if errors.As(err, &badBlockErr) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
