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

package engine

import (
	"github.com/erigontech/erigon-launch/execution/builder"
	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/execution/types"
)

type PayloadStatus string

const (
	StatusValid            PayloadStatus = "VALID"
	StatusInvalid          PayloadStatus = "INVALID"
	StatusSyncing          PayloadStatus = "SYNCING"
	StatusAccepted         PayloadStatus = "ACCEPTED"
	StatusInvalidBlockHash PayloadStatus = "INVALID_BLOCK_HASH"
)

type PayloadStatusResult struct {
	Status          PayloadStatus
	LatestValidHash *types.Hash
	ValidationError string
}

type ForkchoiceUpdatedResult struct {
	PayloadStatus PayloadStatusResult
	PayloadId     *uint64
}

// Message is a request from the consensus layer to the engine service.
type Message interface {
	isMessage()
}

type ForkchoiceUpdated struct {
	State      provider.ForkchoiceState
	Attributes *builder.Parameters
	Resp       chan<- ForkchoiceUpdatedResult
}

type NewPayload struct {
	Block *types.Block
	Resp  chan<- PayloadStatusResult
}

type TransitionConfiguration struct {
	Resp chan<- struct{}
}

// Shutdown ends the service with a clean result.
type Shutdown struct{}

func (ForkchoiceUpdated) isMessage()       {}
func (NewPayload) isMessage()              {}
func (TransitionConfiguration) isMessage() {}
func (Shutdown) isMessage()                {}
