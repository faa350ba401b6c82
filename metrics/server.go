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

package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ledgerwatch/log/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const PrometheusPath = "/debug/metrics/prometheus"

// Server exposes a Set over http.
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   log.Logger
}

// Listen binds address so that bind failures surface before any task is
// spawned.
func Listen(address string, set *Set, logger log.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(PrometheusPath, promhttp.HandlerFor(set.Registry(), promhttp.HandlerOpts{}))
	return &Server{
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: listener,
		logger:   logger,
	}, nil
}

func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve runs until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting metrics server", "addr", "http://"+s.Addr().String()+PrometheusPath)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
