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
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"
)

func TestObtainJWTSecret(t *testing.T) {
	t.Parallel()
	logger := log.New()

	t.Run("generates and reuses", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "jwt.hex")
		secret, err := ObtainJWTSecret(path, logger)
		require.NoError(t, err)
		require.Len(t, secret, JwtSecretLength)

		again, err := ObtainJWTSecret(path, logger)
		require.NoError(t, err)
		require.Equal(t, secret, again)
	})
	t.Run("reads existing without prefix", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "jwt.hex")
		want := bytes.Repeat([]byte{0xab}, JwtSecretLength)
		require.NoError(t, os.WriteFile(path, []byte(hex.EncodeToString(want)+"\n"), 0600))
		secret, err := ObtainJWTSecret(path, logger)
		require.NoError(t, err)
		require.Equal(t, want, secret)
	})
	t.Run("rejects wrong length", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "jwt.hex")
		require.NoError(t, os.WriteFile(path, []byte("0x1234"), 0600))
		_, err := ObtainJWTSecret(path, logger)
		require.ErrorIs(t, err, ErrInvalidJwtSecret)
	})
}

func TestValidateJwt(t *testing.T) {
	t.Parallel()
	secret := bytes.Repeat([]byte{1}, JwtSecretLength)
	now := time.Now()

	token, err := NewJwtToken(secret, now)
	require.NoError(t, err)
	require.NoError(t, validateJwt("Bearer "+token, secret, now))

	require.Error(t, validateJwt("", secret, now))
	require.Error(t, validateJwt(token, secret, now))
	require.Error(t, validateJwt("Bearer "+token, bytes.Repeat([]byte{2}, JwtSecretLength), now))

	stale, err := NewJwtToken(secret, now.Add(-2*time.Minute))
	require.NoError(t, err)
	require.Error(t, validateJwt("Bearer "+stale, secret, now))
}

func TestLaunchServers(t *testing.T) {
	t.Parallel()
	logger := log.New()
	secret := bytes.Repeat([]byte{7}, JwtSecretLength)

	cfg := DefaultConfig()
	cfg.HttpListenAddress = "127.0.0.1"
	cfg.HttpPort = 0
	cfg.AuthRpcHTTPListenAddress = "127.0.0.1"
	cfg.AuthRpcPort = 0
	cfg.API = []string{"test"}

	registry := NewRegistry(API{Namespace: "test", Service: new(testService), Public: true})
	registry.Register(API{Namespace: "eth", Service: new(testService), Public: true})
	engine := []API{{Namespace: "engine", Service: new(testService)}}

	handles, err := LaunchServers(cfg, registry, engine, secret, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = handles.Shutdown(context.Background()) })

	require.Equal(t, []string{"eth", "test"}, registry.Namespaces())
	require.Contains(t, handles.HTTP.Methods(), "test_sum")
	require.NotContains(t, handles.HTTP.Methods(), "eth_sum")
	require.NotContains(t, handles.HTTP.Methods(), "engine_sum")
	require.Contains(t, handles.Auth.Methods(), "engine_sum")
	require.Contains(t, handles.Auth.Methods(), "eth_sum")
	require.Contains(t, handles.Methods(), "test_sum")
	require.Contains(t, handles.Methods(), "engine_sum")

	post := func(addr, method, token string) *http.Response {
		body := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":%q,"params":[1,2]}`, method)
		req, err := http.NewRequest(http.MethodPost, "http://"+addr+"/", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := post(handles.HTTP.Addr().String(), "test_sum", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = post(handles.Auth.Addr().String(), "engine_sum", "")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	token, err := NewJwtToken(secret, time.Now())
	require.NoError(t, err)
	resp = post(handles.Auth.Addr().String(), "engine_sum", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	health, err := http.Get("http://" + handles.Auth.Addr().String() + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, health.StatusCode)
	health.Body.Close()
}

func TestLaunchServersFailures(t *testing.T) {
	t.Parallel()
	logger := log.New()

	t.Run("bad jwt secret", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "jwt.hex")
		require.NoError(t, os.WriteFile(path, []byte("0x00"), 0600))
		cfg := DefaultConfig()
		cfg.HttpListenAddress, cfg.HttpPort = "127.0.0.1", 0
		cfg.AuthRpcHTTPListenAddress, cfg.AuthRpcPort = "127.0.0.1", 0
		cfg.JWTSecretPath = path
		_, err := LaunchServers(cfg, NewRegistry(), nil, nil, logger)
		require.ErrorIs(t, err, ErrInvalidJwtSecret)
	})
	t.Run("bind failure", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.HttpEnabled = false
		cfg.AuthRpcHTTPListenAddress, cfg.AuthRpcPort = "256.0.0.1", 1
		_, err := LaunchServers(cfg, NewRegistry(), nil, bytes.Repeat([]byte{1}, JwtSecretLength), logger)
		require.Error(t, err)
	})
}
