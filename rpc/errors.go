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

import "fmt"

// Error wraps RPC errors, which contain an error code in addition to the message.
type Error interface {
	Error() string  // returns the message
	ErrorCode() int // returns the code
}

// A DataError contains some data in addition to the error message.
type DataError interface {
	Error() string          // returns the message
	ErrorData() interface{} // returns the error data
}

const (
	errcodeDefault        = -32000
	errcodeParse          = -32700
	errcodeInvalidRequest = -32600
	errcodeMethodNotFound = -32601
	errcodeInvalidParams  = -32602
	errcodeInternal       = -32603

	// engine API
	ErrcodeUnknownPayload     = -38001
	ErrcodeInvalidForkchoice  = -38002
	ErrcodeInvalidAttributes  = -38003
	ErrcodeTooLargeRequest    = -38004
	ErrcodeUnsupportedFork    = -38005
	ErrcodeUnauthorized       = -32001
	ErrcodeBatchLimitExceeded = -32005
)

type methodNotFoundError struct{ method string }

func (e *methodNotFoundError) ErrorCode() int { return errcodeMethodNotFound }

func (e *methodNotFoundError) Error() string {
	return fmt.Sprintf("the method %s does not exist/is not available", e.method)
}

type parseError struct{ message string }

func (e *parseError) ErrorCode() int { return errcodeParse }

func (e *parseError) Error() string { return e.message }

type invalidRequestError struct{ message string }

func (e *invalidRequestError) ErrorCode() int { return errcodeInvalidRequest }

func (e *invalidRequestError) Error() string { return e.message }

type InvalidParamsError struct{ Message string }

func (e *InvalidParamsError) ErrorCode() int { return errcodeInvalidParams }

func (e *InvalidParamsError) Error() string { return e.Message }

type internalError struct{ message string }

func (e *internalError) ErrorCode() int { return errcodeInternal }

func (e *internalError) Error() string { return e.message }

// CustomError carries an arbitrary code, used by the engine API.
type CustomError struct {
	Code    int
	Message string
}

func (e *CustomError) ErrorCode() int { return e.Code }

func (e *CustomError) Error() string { return e.Message }
