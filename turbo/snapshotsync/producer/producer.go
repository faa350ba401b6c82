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

package producer

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/common/event"
	"github.com/erigontech/erigon-launch/db/rawdb"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
)

type EventKind uint8

const (
	EventStarted EventKind = iota
	EventFinished
	EventFailed
)

type Event struct {
	Kind    EventKind
	From    uint64
	To      uint64
	Elapsed time.Duration
	Path    string
	Err     error
}

var encoderPool = sync.Pool{
	New: func() interface{} {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(err)
		}
		return enc
	},
}

// SegmentFileName names the headers segment holding blocks [from, to].
func SegmentFileName(from, to uint64) string {
	return fmt.Sprintf("v1-%09d-%09d-headers.seg", from, to)
}

// Producer copies canonical headers out of the database into immutable zstd
// compressed segment files. A single mutex serialises runs and subscriptions,
// so one Producer can be shared between the pipeline and the engine hooks.
type Producer struct {
	mu     sync.Mutex
	db     kv.RwDB
	dir    string
	events *event.Sender[Event]
	logger log.Logger
}

func NewProducer(db kv.RwDB, dir string, logger log.Logger) *Producer {
	return &Producer{
		db:     db,
		dir:    dir,
		events: event.NewSender[Event](64),
		logger: logger,
	}
}

func (p *Producer) Events() <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events.Subscribe()
}

func (p *Producer) Dir() string { return p.dir }

// HighestStaticBlock returns the last block written to segments.
func (p *Producer) HighestStaticBlock(ctx context.Context) (n uint64, ok bool, err error) {
	err = p.db.View(ctx, func(tx kv.Tx) error {
		n, ok, err = rawdb.ReadLastStaticFileBlock(tx)
		return err
	})
	return n, ok, err
}

// Run moves every canonical header up to and including upTo that is not yet
// in a segment. Nothing happens when there is nothing to move.
func (p *Producer) Run(ctx context.Context, upTo uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	last, ok, err := p.HighestStaticBlock(ctx)
	if err != nil {
		return err
	}
	from := uint64(0)
	if ok {
		from = last + 1
	}
	if upTo < from {
		return nil
	}

	start := time.Now()
	p.events.Notify(Event{Kind: EventStarted, From: from, To: upTo})
	path, err := p.produce(ctx, from, upTo)
	if err != nil {
		p.events.Notify(Event{Kind: EventFailed, From: from, To: upTo, Elapsed: time.Since(start), Err: err})
		return err
	}
	elapsed := time.Since(start)
	p.events.Notify(Event{Kind: EventFinished, From: from, To: upTo, Elapsed: elapsed, Path: path})
	p.logger.Debug("[snapshots] segment produced", "from", from, "to", upTo, "file", filepath.Base(path), "took", elapsed)
	return nil
}

func (p *Producer) produce(ctx context.Context, from, to uint64) (string, error) {
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(p.dir, SegmentFileName(from, to))
	tmpPath := path + ".tmp"

	err := p.db.View(ctx, func(tx kv.Tx) error {
		f, err := os.Create(tmpPath)
		if err != nil {
			return err
		}
		defer f.Close()

		bw := bufio.NewWriter(f)
		enc := encoderPool.Get().(*zstd.Encoder)
		defer encoderPool.Put(enc)
		enc.Reset(bw)

		var lenBuf [binary.MaxVarintLen64]byte
		for n := from; n <= to; n++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			header, err := rawdb.ReadHeaderByNumber(tx, n)
			if err != nil {
				return err
			}
			if header == nil {
				return fmt.Errorf("missing canonical header %d", n)
			}
			data, err := types.EncodeHeader(header)
			if err != nil {
				return err
			}
			l := binary.PutUvarint(lenBuf[:], uint64(len(data)))
			if _, err := enc.Write(lenBuf[:l]); err != nil {
				return err
			}
			if _, err := enc.Write(data); err != nil {
				return err
			}
		}
		if err := enc.Close(); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		return f.Sync()
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", err
	}
	if err := p.db.Update(ctx, func(tx kv.RwTx) error {
		return rawdb.WriteLastStaticFileBlock(tx, to)
	}); err != nil {
		return "", err
	}
	return path, nil
}

func (p *Producer) Close() { p.events.Close() }

// ReadSegment decodes every header stored in a segment file.
func ReadSegment(path string) ([]*types.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	r := bufio.NewReader(dec)
	var headers []*types.Header
	for {
		l, err := binary.ReadUvarint(r)
		if errors.Is(err, io.EOF) {
			return headers, nil
		}
		if err != nil {
			return nil, err
		}
		data := make([]byte, l)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		header, err := types.DecodeHeader(data)
		if err != nil {
			return nil, err
		}
		headers = append(headers, header)
	}
}
