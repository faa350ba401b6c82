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
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ledgerwatch/log/v3"
)

// Config holds the public and authenticated server settings.
type Config struct {
	HttpEnabled       bool
	HttpListenAddress string
	HttpPort          int
	API               []string // modules exposed over public http, empty means all public ones
	HttpCORSDomain    []string
	BatchLimit        int
	Timeouts          HTTPTimeouts

	AuthRpcHTTPListenAddress string
	AuthRpcPort              int
	JWTSecretPath            string
}

func DefaultConfig() Config {
	return Config{
		HttpEnabled:              true,
		HttpListenAddress:        "localhost",
		HttpPort:                 8545,
		API:                      []string{"eth", "net", "web3", "txpool"},
		BatchLimit:               DefaultBatchLimit,
		Timeouts:                 DefaultHTTPTimeouts,
		AuthRpcHTTPListenAddress: "localhost",
		AuthRpcPort:              8551,
	}
}

// Registry collects the API modules a node exposes. Add-ons extend it before the
// servers start.
type Registry struct {
	mu   sync.Mutex
	apis []API
}

func NewRegistry(apis ...API) *Registry {
	r := &Registry{}
	r.Register(apis...)
	return r
}

// Register adds apis. A namespace may be registered by several services.
func (r *Registry) Register(apis ...API) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apis = append(r.apis, apis...)
}

func (r *Registry) APIs() []API {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]API(nil), r.apis...)
}

// Namespaces returns the sorted set of registered namespaces.
func (r *Registry) Namespaces() []string {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, api := range r.APIs() {
		set.Add(api.Namespace)
	}
	names := set.ToSlice()
	sort.Strings(names)
	return names
}

// checkModuleAvailability checks that all names given in modules are actually
// available API services.
func checkModuleAvailability(modules []string, apis []API) (bad, available []string) {
	availableSet := mapset.NewThreadUnsafeSet[string](MetadataApi)
	for _, api := range apis {
		availableSet.Add(api.Namespace)
	}
	for _, name := range modules {
		if !availableSet.Contains(name) {
			bad = append(bad, name)
		}
	}
	available = availableSet.ToSlice()
	sort.Strings(available)
	return bad, available
}

// RegisterApisFromWhitelist checks the given modules' availability, generates a whitelist based on the allowed modules,
// and then registers all of the APIs exposed by the services.
func RegisterApisFromWhitelist(apis []API, modules []string, srv *Server, exposeAll bool, logger log.Logger) error {
	if bad, available := checkModuleAvailability(modules, apis); len(bad) > 0 {
		logger.Error("Unavailable modules in HTTP API list", "unavailable", bad, "available", available)
	}
	// Generate the whitelist based on the allowed modules
	whitelist := mapset.NewThreadUnsafeSet[string](modules...)
	// Register all the APIs exposed by the services
	for _, api := range apis {
		if exposeAll || whitelist.Contains(api.Namespace) || (whitelist.Cardinality() == 0 && api.Public) {
			if err := srv.RegisterName(api.Namespace, api.Service); err != nil {
				return err
			}
		}
	}
	return nil
}

// ServerHandle is a running server plus its listener.
type ServerHandle struct {
	server   *Server
	endpoint *HTTPEndpoint
}

func (h *ServerHandle) Addr() net.Addr    { return h.endpoint.Addr() }
func (h *ServerHandle) Methods() []string { return h.server.Methods() }

func (h *ServerHandle) Shutdown(ctx context.Context) error {
	h.server.Stop()
	return h.endpoint.Shutdown(ctx)
}

// ServerHandles are the servers started by LaunchServers. HTTP is nil when the public
// endpoint is disabled.
type ServerHandles struct {
	HTTP     *ServerHandle
	Auth     *ServerHandle
	Registry *Registry
}

// Methods lists every method reachable on any of the servers.
func (h *ServerHandles) Methods() []string {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, s := range []*ServerHandle{h.HTTP, h.Auth} {
		if s != nil {
			set.Append(s.Methods()...)
		}
	}
	methods := set.ToSlice()
	sort.Strings(methods)
	return methods
}

func (h *ServerHandles) Shutdown(ctx context.Context) error {
	var errs []error
	for _, s := range []*ServerHandle{h.HTTP, h.Auth} {
		if s != nil {
			errs = append(errs, s.Shutdown(ctx))
		}
	}
	return errors.Join(errs...)
}

// LaunchServers starts the public http server with the registry modules selected by
// cfg.API and the authenticated server with engineApis plus the eth namespace. A nil
// jwtSecret is obtained from cfg.JWTSecretPath.
func LaunchServers(cfg Config, registry *Registry, engineApis []API, jwtSecret []byte, logger log.Logger) (*ServerHandles, error) {
	handles := &ServerHandles{Registry: registry}
	apis := registry.APIs()

	if cfg.HttpEnabled {
		srv := NewServer(cfg.BatchLimit, logger)
		if err := RegisterApisFromWhitelist(apis, cfg.API, srv, false, logger); err != nil {
			return nil, fmt.Errorf("could not register RPC apis: %w", err)
		}
		endpoint := fmt.Sprintf("%s:%d", cfg.HttpListenAddress, cfg.HttpPort)
		e, err := StartHTTPEndpoint("http", endpoint, cfg.Timeouts, NewHTTPHandlerStack(srv, cfg.HttpCORSDomain, nil), logger)
		if err != nil {
			return nil, err
		}
		handles.HTTP = &ServerHandle{server: srv, endpoint: e}
	}

	if jwtSecret == nil {
		var err error
		if jwtSecret, err = ObtainJWTSecret(cfg.JWTSecretPath, logger); err != nil {
			_ = handles.Shutdown(context.Background())
			return nil, err
		}
	}
	engineSrv := NewServer(cfg.BatchLimit, logger)
	authApis := append([]API(nil), engineApis...)
	for _, api := range apis {
		if api.Namespace == "eth" {
			authApis = append(authApis, api)
		}
	}
	if err := RegisterApisFromWhitelist(authApis, nil, engineSrv, true, logger); err != nil {
		_ = handles.Shutdown(context.Background())
		return nil, fmt.Errorf("could not register RPC engine api: %w", err)
	}
	endpoint := fmt.Sprintf("%s:%d", cfg.AuthRpcHTTPListenAddress, cfg.AuthRpcPort)
	e, err := StartHTTPEndpoint("engine", endpoint, cfg.Timeouts, NewHTTPHandlerStack(engineSrv, nil, jwtSecret), logger)
	if err != nil {
		_ = handles.Shutdown(context.Background())
		return nil, err
	}
	handles.Auth = &ServerHandle{server: engineSrv, endpoint: e}
	return handles, nil
}
