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
	"encoding/json"
	"errors"
	"reflect"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

const vsn = "2.0"

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// A value of this type can be a JSON-RPC request, notification, successful response or
// error response. Which one it is depends on the fields.
type jsonrpcMessage struct {
	Version string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Error   *jsonError      `json:"error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

func (msg *jsonrpcMessage) isNotification() bool {
	return msg.ID == nil && msg.Method != ""
}

func (msg *jsonrpcMessage) hasValidID() bool {
	return len(msg.ID) > 0 && msg.ID[0] != '{' && msg.ID[0] != '['
}

func (msg *jsonrpcMessage) response(result interface{}) *jsonrpcMessage {
	enc, err := jsonCodec.Marshal(result)
	if err != nil {
		return msg.errorResponse(&internalError{err.Error()})
	}
	return &jsonrpcMessage{Version: vsn, ID: msg.ID, Result: enc}
}

func (msg *jsonrpcMessage) errorResponse(err error) *jsonrpcMessage {
	resp := errorMessage(err)
	resp.ID = msg.ID
	return resp
}

func errorMessage(err error) *jsonrpcMessage {
	msg := &jsonrpcMessage{Version: vsn, ID: null, Error: &jsonError{
		Code:    errcodeDefault,
		Message: err.Error(),
	}}
	var ec Error
	if errors.As(err, &ec) {
		msg.Error.Code = ec.ErrorCode()
	}
	var de DataError
	if errors.As(err, &de) {
		msg.Error.Data = de.ErrorData()
	}
	return msg
}

var null = json.RawMessage("null")

type jsonError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (err *jsonError) Error() string {
	if err.Message == "" {
		return "json-rpc error"
	}
	return err.Message
}

func (err *jsonError) ErrorCode() int { return err.Code }

func (err *jsonError) ErrorData() interface{} { return err.Data }

// parseMessage parses raw bytes as a (batch of) JSON-RPC message(s).
func parseMessage(raw []byte) ([]*jsonrpcMessage, bool, error) {
	raw = bytes.TrimSpace(raw)
	if !isBatch(raw) {
		msg := new(jsonrpcMessage)
		if err := jsonCodec.Unmarshal(raw, msg); err != nil {
			return nil, false, err
		}
		return []*jsonrpcMessage{msg}, false, nil
	}
	var msgs []*jsonrpcMessage
	if err := jsonCodec.Unmarshal(raw, &msgs); err != nil {
		return nil, true, err
	}
	return msgs, true, nil
}

// isBatch returns true when the first non-whitespace characters is '['
func isBatch(raw []byte) bool {
	return len(raw) > 0 && raw[0] == '['
}

// parsePositionalArguments tries to parse the given args to an array of values with the
// given types. It returns the parsed values or an error when the args could not be
// parsed. Missing optional arguments are returned as reflect.Zero values.
func parsePositionalArguments(rawArgs json.RawMessage, types []reflect.Type) ([]reflect.Value, error) {
	var args []json.RawMessage
	if trimmed := bytes.TrimSpace(rawArgs); len(trimmed) > 0 && !bytes.Equal(trimmed, null) {
		if trimmed[0] != '[' {
			return nil, &InvalidParamsError{"non-array args"}
		}
		if err := jsonCodec.Unmarshal(trimmed, &args); err != nil {
			return nil, &InvalidParamsError{err.Error()}
		}
	}
	if len(args) > len(types) {
		return nil, &InvalidParamsError{"too many arguments, want at most " + strconv.Itoa(len(types))}
	}
	values := make([]reflect.Value, 0, len(types))
	for i, t := range types {
		if i >= len(args) || bytes.Equal(bytes.TrimSpace(args[i]), null) {
			if t.Kind() != reflect.Ptr && i >= len(args) {
				return nil, &InvalidParamsError{"missing value for required argument " + strconv.Itoa(i)}
			}
			values = append(values, reflect.Zero(t))
			continue
		}
		v := reflect.New(t)
		if err := jsonCodec.Unmarshal(args[i], v.Interface()); err != nil {
			return nil, &InvalidParamsError{"invalid argument " + strconv.Itoa(i) + ": " + err.Error()}
		}
		values = append(values, v.Elem())
	}
	return values, nil
}
