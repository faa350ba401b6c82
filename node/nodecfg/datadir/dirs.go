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

package datadir

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
)

// Dirs is the layout of the node data directory.
type Dirs struct {
	RelativeDataDir string // like dataDir, but without filepath.Abs() resolution
	DataDir         string
	Chaindata       string
	Tmp             string
	Snap            string
	Logs            string
	Nodes           string
	JwtSecret       string
}

func New(datadir string) Dirs {
	relativeDataDir := datadir
	if datadir != "" {
		var err error
		absdatadir, err := filepath.Abs(datadir)
		if err != nil {
			panic(err)
		}
		datadir = absdatadir
	}

	return Dirs{
		RelativeDataDir: relativeDataDir,
		DataDir:         datadir,
		Chaindata:       filepath.Join(datadir, "chaindata"),
		Tmp:             filepath.Join(datadir, "temp"),
		Snap:            filepath.Join(datadir, "snapshots"),
		Logs:            filepath.Join(datadir, "logs"),
		Nodes:           filepath.Join(datadir, "nodes"),
		JwtSecret:       filepath.Join(datadir, "jwt.hex"),
	}
}

// MkdirAll creates every directory of the layout.
func (dirs Dirs) MkdirAll() error {
	for _, dir := range []string{dirs.DataDir, dirs.Chaindata, dirs.Tmp, dirs.Snap, dirs.Nodes} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

var (
	ErrDataDirLocked = errors.New("datadir already used by another process")

	datadirInUseErrNos = map[uint]bool{11: true, 32: true, 35: true}
)

func convertFileLockError(err error) error {
	//nolint
	if errno, ok := err.(syscall.Errno); ok && datadirInUseErrNos[uint(errno)] {
		return ErrDataDirLocked
	}
	return err
}

func TryFlock(dirs Dirs) (*flock.Flock, bool, error) {
	// Lock the instance directory to prevent concurrent use by another instance as well as
	// accidental use of the instance directory as a database.
	l := flock.New(filepath.Join(dirs.DataDir, "LOCK"))
	locked, err := l.TryLock()
	if err != nil {
		return nil, false, convertFileLockError(err)
	}
	return l, locked, nil
}

func (dirs Dirs) MustFlock() (Dirs, *flock.Flock, error) {
	l, locked, err := TryFlock(dirs)
	if err != nil {
		return dirs, l, err
	}
	if !locked {
		return dirs, l, ErrDataDirLocked
	}
	return dirs, l, nil
}
