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
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/metrics"
)

const (
	MetadataApi             = "rpc"
	maxRequestContentLength = 1024 * 1024 * 5
	contentType             = "application/json"
	DefaultBatchLimit       = 100
	slowRequestLogThreshold = 5 * time.Second
)

// Server is an RPC server.
type Server struct {
	services        serviceRegistry
	methodAllowList AllowList
	batchLimit      int // Maximum number of requests in a batch
	run             atomic.Bool
	metrics         *serverMetrics
	logger          log.Logger
}

// NewServer creates a new server instance with no registered handlers.
func NewServer(batchLimit int, logger log.Logger) *Server {
	server := &Server{
		batchLimit: batchLimit,
		metrics:    newServerMetrics(metrics.DefaultSet()),
		logger:     logger,
	}
	server.run.Store(true)
	// Register the default service providing meta information about the RPC service such
	// as the services and methods it offers.
	rpcService := &RPCService{server: server}
	if err := server.RegisterName(MetadataApi, rpcService); err != nil {
		panic(err)
	}
	return server
}

// SetAllowList sets the allow list for methods that are handled by this server
func (s *Server) SetAllowList(allowList AllowList) {
	s.methodAllowList = allowList
}

// RegisterName creates a service for the given receiver type under the given name. When no
// methods on the given receiver match the criteria to be either a RPC method an error is
// returned. Otherwise a new service is created and added to the service collection this
// server provides to clients.
func (s *Server) RegisterName(name string, receiver interface{}) error {
	return s.services.registerName(name, receiver)
}

// Methods lists every registered method as namespace_method.
func (s *Server) Methods() []string { return s.services.methods() }

// Stop makes the server refuse new requests.
func (s *Server) Stop() {
	if s.run.CompareAndSwap(true, false) {
		s.logger.Info("RPC server shutting down")
	}
}

// Handle processes a single request body and returns the encoded response. A nil
// response means the body held notifications only.
func (s *Server) Handle(ctx context.Context, body []byte) []byte {
	msgs, batch, err := parseMessage(body)
	if err != nil {
		return s.encode(errorMessage(&parseError{"parse error"}))
	}
	if !batch {
		resp := s.handleMsg(ctx, msgs[0])
		if resp == nil {
			return nil
		}
		return s.encode(resp)
	}
	if len(msgs) == 0 {
		return s.encode(errorMessage(&invalidRequestError{"empty batch"}))
	}
	if s.batchLimit > 0 && len(msgs) > s.batchLimit {
		return s.encode(errorMessage(&CustomError{
			Code:    ErrcodeBatchLimitExceeded,
			Message: fmt.Sprintf("batch limit %d exceeded (can increase by --rpc.batch.limit). Requested batch of size: %d", s.batchLimit, len(msgs)),
		}))
	}
	answers := make([]*jsonrpcMessage, 0, len(msgs))
	for _, msg := range msgs {
		if resp := s.handleMsg(ctx, msg); resp != nil {
			answers = append(answers, resp)
		}
	}
	if len(answers) == 0 {
		return nil
	}
	return s.encode(answers)
}

func (s *Server) encode(v interface{}) []byte {
	out, err := jsonCodec.Marshal(v)
	if err != nil {
		s.logger.Warn("[rpc] failed to encode response", "err", err)
		out, _ = jsonCodec.Marshal(errorMessage(&internalError{err.Error()}))
	}
	return out
}

func (s *Server) handleMsg(ctx context.Context, msg *jsonrpcMessage) *jsonrpcMessage {
	if msg == nil {
		return errorMessage(&invalidRequestError{"invalid request"})
	}
	if msg.isNotification() {
		s.handleCall(ctx, msg)
		return nil
	}
	if msg.Version != vsn || !msg.hasValidID() || msg.Method == "" {
		if msg.hasValidID() {
			return msg.errorResponse(&invalidRequestError{"invalid request"})
		}
		return errorMessage(&invalidRequestError{"invalid request"})
	}
	return s.handleCall(ctx, msg)
}

func (s *Server) handleCall(ctx context.Context, msg *jsonrpcMessage) *jsonrpcMessage {
	if !s.methodAllowList.Allowed(msg.Method) {
		return msg.errorResponse(&methodNotFoundError{method: msg.Method})
	}
	cb := s.services.callback(msg.Method)
	if cb == nil {
		return msg.errorResponse(&methodNotFoundError{method: msg.Method})
	}
	args, err := parsePositionalArguments(msg.Params, cb.argTypes)
	if err != nil {
		return msg.errorResponse(err)
	}

	start := time.Now()
	answer, err := cb.call(ctx, msg.Method, args, s.logger)
	elapsed := time.Since(start)
	s.metrics.observe(msg.Method, err == nil, elapsed)
	if elapsed > slowRequestLogThreshold {
		s.logger.Info("[rpc] slow request", "method", msg.Method, "duration", elapsed)
	}
	if err != nil {
		s.logger.Debug("[rpc] served", "method", msg.Method, "err", err)
		return msg.errorResponse(err)
	}
	return msg.response(answer)
}

// ServeHTTP serves JSON-RPC requests over HTTP.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.run.Load() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.ContentLength > maxRequestContentLength {
		http.Error(w, fmt.Sprintf("content length too large (%d>%d)", r.ContentLength, maxRequestContentLength), http.StatusRequestEntityTooLarge)
		return
	}
	if mt := r.Header.Get("Content-Type"); mt != "" && !strings.HasPrefix(mt, contentType) {
		http.Error(w, "invalid content type, only "+contentType+" is supported", http.StatusUnsupportedMediaType)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestContentLength))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := s.Handle(r.Context(), body)
	w.Header().Set("Content-Type", contentType)
	if resp == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	_, _ = w.Write(resp)
}

// RPCService gives meta information about the server.
// e.g. gives information about the loaded modules.
type RPCService struct {
	server *Server
}

// Modules returns the list of RPC services with their version number
func (s *RPCService) Modules() map[string]string {
	return s.server.services.modules()
}
