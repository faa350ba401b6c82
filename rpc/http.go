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

package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ledgerwatch/log/v3"
	"github.com/rs/cors"
)

// HTTPTimeouts represents the configuration params for the HTTP RPC server.
type HTTPTimeouts struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

var DefaultHTTPTimeouts = HTTPTimeouts{
	ReadTimeout:  30 * time.Second,
	WriteTimeout: 30 * time.Minute,
	IdleTimeout:  120 * time.Second,
}

// NewHTTPHandlerStack wraps srv with CORS and, when jwtSecret is set, bearer token checks.
// GET /health answers 200 without authentication.
func NewHTTPHandlerStack(srv http.Handler, corsDomains []string, jwtSecret []byte) http.Handler {
	mux := chi.NewRouter()
	if len(corsDomains) > 0 {
		mux.Use(cors.New(cors.Options{
			AllowedOrigins: corsDomains,
			AllowedMethods: []string{http.MethodPost, http.MethodGet},
			AllowedHeaders: []string{"*"},
			MaxAge:         600,
		}).Handler)
	}
	mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Post("/", func(w http.ResponseWriter, r *http.Request) {
		if jwtSecret != nil && !CheckJwtSecret(w, r, jwtSecret) {
			return
		}
		srv.ServeHTTP(w, r)
	})
	return mux
}

// HTTPEndpoint is a listening http server.
type HTTPEndpoint struct {
	name     string
	server   *http.Server
	listener net.Listener
	logger   log.Logger
}

// StartHTTPEndpoint binds endpoint and serves handler in the background.
func StartHTTPEndpoint(name, endpoint string, timeouts HTTPTimeouts, handler http.Handler, logger log.Logger) (*HTTPEndpoint, error) {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("could not start %s endpoint on %s: %w", name, endpoint, err)
	}
	e := &HTTPEndpoint{
		name: name,
		server: &http.Server{
			Handler:           handler,
			ReadTimeout:       timeouts.ReadTimeout,
			ReadHeaderTimeout: timeouts.ReadTimeout,
			WriteTimeout:      timeouts.WriteTimeout,
			IdleTimeout:       timeouts.IdleTimeout,
		},
		listener: listener,
		logger:   logger,
	}
	go func() {
		if err := e.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("HTTP endpoint stopped", "name", name, "err", err)
		}
	}()
	logger.Info("HTTP endpoint opened", "name", name, "url", listener.Addr().String())
	return e, nil
}

func (e *HTTPEndpoint) Addr() net.Addr { return e.listener.Addr() }

func (e *HTTPEndpoint) Shutdown(ctx context.Context) error {
	err := e.server.Shutdown(ctx)
	e.logger.Info("HTTP endpoint closed", "name", e.name, "url", e.listener.Addr().String())
	return err
}
