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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"
)

type testService struct{}

type echoResult struct {
	String string `json:"string"`
	Int    int    `json:"int"`
}

func (s *testService) Echo(str string, i int) echoResult {
	return echoResult{String: str, Int: i}
}

func (s *testService) Sum(_ context.Context, a, b int) (int, error) { return a + b, nil }

func (s *testService) Optional(a int, b *int) int {
	if b == nil {
		return a
	}
	return a + *b
}

func (s *testService) Fail() error {
	return &CustomError{Code: ErrcodeUnknownPayload, Message: "unknown payload"}
}

func (s *testService) Crash() (int, error) { panic("boom") }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer(3, log.New())
	require.NoError(t, srv.RegisterName("test", new(testService)))
	return srv
}

type response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *jsonError      `json:"error"`
}

func call(t *testing.T, srv *Server, body string) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(srv.Handle(context.Background(), []byte(body)), &resp))
	return resp
}

func TestServerRegisterName(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	require.Equal(t, []string{"rpc_modules", "test_crash", "test_echo", "test_fail", "test_optional", "test_sum"}, srv.Methods())

	err := srv.RegisterName("", new(testService))
	require.Error(t, err)
	err = srv.RegisterName("empty", struct{}{})
	require.Error(t, err)
}

func TestServerHandle(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	t.Run("positional arguments", func(t *testing.T) {
		resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"test_echo","params":["x",7]}`)
		require.Nil(t, resp.Error)
		require.JSONEq(t, `{"string":"x","int":7}`, string(resp.Result))
		require.Equal(t, "1", string(resp.ID))
	})
	t.Run("context argument", func(t *testing.T) {
		resp := call(t, srv, `{"jsonrpc":"2.0","id":"a","method":"test_sum","params":[2,3]}`)
		require.Nil(t, resp.Error)
		require.Equal(t, "5", string(resp.Result))
	})
	t.Run("optional pointer argument", func(t *testing.T) {
		resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"test_optional","params":[2]}`)
		require.Nil(t, resp.Error)
		require.Equal(t, "2", string(resp.Result))
	})
	t.Run("missing argument", func(t *testing.T) {
		resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"test_echo","params":["x"]}`)
		require.NotNil(t, resp.Error)
		require.Equal(t, errcodeInvalidParams, resp.Error.Code)
	})
	t.Run("too many arguments", func(t *testing.T) {
		resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"test_sum","params":[1,2,3]}`)
		require.NotNil(t, resp.Error)
		require.Equal(t, errcodeInvalidParams, resp.Error.Code)
	})
	t.Run("unknown method", func(t *testing.T) {
		resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"test_nope","params":[]}`)
		require.NotNil(t, resp.Error)
		require.Equal(t, errcodeMethodNotFound, resp.Error.Code)
	})
	t.Run("custom error code", func(t *testing.T) {
		resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"test_fail"}`)
		require.NotNil(t, resp.Error)
		require.Equal(t, ErrcodeUnknownPayload, resp.Error.Code)
		require.Equal(t, "unknown payload", resp.Error.Message)
	})
	t.Run("panic is an internal error", func(t *testing.T) {
		resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"test_crash"}`)
		require.NotNil(t, resp.Error)
		require.Equal(t, errcodeInternal, resp.Error.Code)
	})
	t.Run("parse error", func(t *testing.T) {
		resp := call(t, srv, `{"jsonrpc":`)
		require.NotNil(t, resp.Error)
		require.Equal(t, errcodeParse, resp.Error.Code)
	})
	t.Run("invalid version", func(t *testing.T) {
		resp := call(t, srv, `{"jsonrpc":"1.0","id":1,"method":"test_fail"}`)
		require.NotNil(t, resp.Error)
		require.Equal(t, errcodeInvalidRequest, resp.Error.Code)
	})
	t.Run("notification has no answer", func(t *testing.T) {
		require.Nil(t, srv.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"test_sum","params":[1,2]}`)))
	})
	t.Run("modules", func(t *testing.T) {
		resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"rpc_modules"}`)
		require.Nil(t, resp.Error)
		require.JSONEq(t, `{"rpc":"1.0","test":"1.0"}`, string(resp.Result))
	})
}

func TestServerBatch(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	out := srv.Handle(context.Background(), []byte(`[
		{"jsonrpc":"2.0","id":1,"method":"test_sum","params":[1,2]},
		{"jsonrpc":"2.0","method":"test_sum","params":[1,2]},
		{"jsonrpc":"2.0","id":2,"method":"test_nope"}
	]`))
	var resps []response
	require.NoError(t, json.Unmarshal(out, &resps))
	require.Len(t, resps, 2)
	require.Equal(t, "3", string(resps[0].Result))
	require.Equal(t, errcodeMethodNotFound, resps[1].Error.Code)

	resp := call(t, srv, `[{"jsonrpc":"2.0","id":1,"method":"test_fail"},{"jsonrpc":"2.0","id":2,"method":"test_fail"},{"jsonrpc":"2.0","id":3,"method":"test_fail"},{"jsonrpc":"2.0","id":4,"method":"test_fail"}]`)
	require.NotNil(t, resp.Error)
	require.Equal(t, ErrcodeBatchLimitExceeded, resp.Error.Code)

	resp = call(t, srv, `[]`)
	require.NotNil(t, resp.Error)
	require.Equal(t, errcodeInvalidRequest, resp.Error.Code)
}

func TestServerAllowList(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	var allow AllowList
	require.NoError(t, json.Unmarshal([]byte(`["test_sum"]`), &allow))
	srv.SetAllowList(allow)

	out, err := json.Marshal(NewAllowList("b_x", "a_y"))
	require.NoError(t, err)
	require.JSONEq(t, `["a_y","b_x"]`, string(out))

	resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"test_sum","params":[1,1]}`)
	require.Nil(t, resp.Error)
	resp = call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"test_fail"}`)
	require.Equal(t, errcodeMethodNotFound, resp.Error.Code)
}

func TestServerServeHTTP(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"test_sum","params":[1,1]}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, contentType, rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), `"result":2`)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	srv.Stop()
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBlockNumberUnmarshal(t *testing.T) {
	t.Parallel()
	for input, want := range map[string]BlockNumber{
		`"latest"`:    LatestBlockNumber,
		`"earliest"`:  EarliestBlockNumber,
		`"pending"`:   PendingBlockNumber,
		`"safe"`:      SafeBlockNumber,
		`"finalized"`: FinalizedBlockNumber,
		`"0x10"`:      16,
		`"42"`:        42,
		`null`:        LatestBlockNumber,
	} {
		var bn BlockNumber
		require.NoError(t, json.Unmarshal([]byte(input), &bn), input)
		require.Equal(t, want, bn, input)
	}
	var bn BlockNumber
	require.Error(t, json.Unmarshal([]byte(`"0xzz"`), &bn))
	require.Equal(t, "0x10", BlockNumber(16).String())

	var dh DecimalOrHex
	require.NoError(t, json.Unmarshal([]byte(`"0x20"`), &dh))
	require.Equal(t, DecimalOrHex(32), dh)
}

func TestErrorMessageCodes(t *testing.T) {
	t.Parallel()
	msg := errorMessage(errors.New("plain"))
	require.Equal(t, errcodeDefault, msg.Error.Code)
	msg = errorMessage(&InvalidParamsError{"bad"})
	require.Equal(t, errcodeInvalidParams, msg.Error.Code)
}
