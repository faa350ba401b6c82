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
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ledgerwatch/log/v3"
)

var ErrMalformedNodeRecord = errors.New("malformed node record")

// DefaultResolveTimeout bounds the lookup of one peer host name.
const DefaultResolveTimeout = 5 * time.Second

// NodeRecord is a parsed enode URL.
type NodeRecord struct {
	ID   PeerId
	Host string
	Port int
	IP   net.IP
}

func (r NodeRecord) Resolved() bool { return r.IP != nil }

func (r NodeRecord) String() string {
	host := r.Host
	if r.IP != nil {
		host = r.IP.String()
	}
	return fmt.Sprintf("enode://%s@%s", r.ID, net.JoinHostPort(host, strconv.Itoa(r.Port)))
}

// ParseNodeRecord parses enode://<hex node id>@<host>:<port>.
func ParseNodeRecord(raw string) (NodeRecord, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return NodeRecord{}, fmt.Errorf("%w: %v", ErrMalformedNodeRecord, err)
	}
	if u.Scheme != "enode" {
		return NodeRecord{}, fmt.Errorf("%w: invalid URL scheme, want \"enode\"", ErrMalformedNodeRecord)
	}
	if u.User == nil {
		return NodeRecord{}, fmt.Errorf("%w: does not contain node ID", ErrMalformedNodeRecord)
	}
	id := u.User.String()
	if b, err := hex.DecodeString(id); err != nil || len(b) != 64 {
		return NodeRecord{}, fmt.Errorf("%w: invalid public key %q", ErrMalformedNodeRecord, id)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil || port <= 0 || port > 65535 {
		return NodeRecord{}, fmt.Errorf("%w: invalid port %q", ErrMalformedNodeRecord, u.Port())
	}
	rec := NodeRecord{ID: PeerId(id), Host: u.Hostname(), Port: port}
	rec.IP = net.ParseIP(rec.Host)
	return rec, nil
}

type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// ResolvePeers parses the given enode URLs and resolves their DNS names.
// Malformed records are an error. A name that does not resolve within
// timeout is kept unresolved and logged. A timeout <= 0 means
// DefaultResolveTimeout.
func ResolvePeers(ctx context.Context, resolver Resolver, raw []string, timeout time.Duration, logger log.Logger) ([]NodeRecord, error) {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	records := make([]NodeRecord, 0, len(raw))
	for _, r := range raw {
		rec, err := ParseNodeRecord(r)
		if err != nil {
			return nil, err
		}
		if !rec.Resolved() {
			rec.IP, err = resolve(ctx, resolver, rec.Host, timeout)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logger.Warn("[p2p] could not resolve peer, keeping it unresolved", "host", rec.Host, "err", err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// resolve retries the lookup of host until it succeeds or timeout elapsed.
func resolve(ctx context.Context, resolver Resolver, host string, timeout time.Duration) (net.IP, error) {
	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = timeout

	return backoff.RetryWithData(func() (net.IP, error) {
		addrs, err := resolver.LookupIPAddr(deadlineCtx, host)
		if err != nil {
			return nil, err
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("no addresses for %s", host)
		}
		return addrs[0].IP, nil
	}, backoff.WithContext(b, deadlineCtx))
}
