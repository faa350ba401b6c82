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

package engineapi

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/execution/builder"
	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/engine"
	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/rpc"
)

const (
	// MaxPayloadBodiesRequest bounds getPayloadBodies requests.
	MaxPayloadBodiesRequest = 1024

	clVersion1 = 1
	clVersion2 = 2
	clVersion3 = 3
)

// Capabilities are the engine API methods this server answers.
var Capabilities = []string{
	"engine_forkchoiceUpdatedV1",
	"engine_forkchoiceUpdatedV2",
	"engine_forkchoiceUpdatedV3",
	"engine_newPayloadV1",
	"engine_newPayloadV2",
	"engine_newPayloadV3",
	"engine_getPayloadV1",
	"engine_getPayloadV2",
	"engine_getPayloadV3",
	"engine_exchangeTransitionConfigurationV1",
	"engine_getPayloadBodiesByHashV1",
	"engine_getPayloadBodiesByRangeV1",
	"engine_getClientVersionV1",
}

// EngineHandle is the consensus engine service as seen by the API.
type EngineHandle interface {
	ForkchoiceUpdated(ctx context.Context, state provider.ForkchoiceState, attributes *builder.Parameters) (engine.ForkchoiceUpdatedResult, error)
	NewPayload(ctx context.Context, block *types.Block) (engine.PayloadStatusResult, error)
	TransitionConfigurationExchanged(ctx context.Context) error
}

type PayloadResolver interface {
	Resolve(ctx context.Context, id uint64) (*builder.BlockWithReceipts, error)
}

type BlockReader interface {
	BlockByHash(ctx context.Context, hash types.Hash) (*types.Block, error)
	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)
}

// Spawner runs body lookups off the request goroutine.
type Spawner interface {
	Spawn(name string, fn func(ctx context.Context) error)
}

// EngineServer answers the engine_ namespace for the consensus layer.
type EngineServer struct {
	blocks        BlockReader
	chain         *chain.Spec
	engine        EngineHandle
	payloads      PayloadResolver
	spawner       Spawner
	clientVersion ClientVersionV1
	capabilities  []string
	logger        log.Logger
}

func NewEngineServer(
	blocks BlockReader,
	spec *chain.Spec,
	engineHandle EngineHandle,
	payloads PayloadResolver,
	spawner Spawner,
	clientVersion ClientVersionV1,
	capabilities []string,
	logger log.Logger,
) *EngineServer {
	return &EngineServer{
		blocks:        blocks,
		chain:         spec,
		engine:        engineHandle,
		payloads:      payloads,
		spawner:       spawner,
		clientVersion: clientVersion,
		capabilities:  capabilities,
		logger:        logger,
	}
}

// APIs returns the engine namespace for registration on the authenticated server.
func APIs(e *EngineServer) []rpc.API {
	return []rpc.API{{Namespace: "engine", Version: "1.0", Service: e}}
}

var errInvalidForkchoiceState = &rpc.InvalidParamsError{Message: "forkchoice state is missing"}

func unsupportedFork(method string) error {
	return &rpc.CustomError{Code: rpc.ErrcodeUnsupportedFork, Message: fmt.Sprintf("Unsupported fork for %s", method)}
}

// checkFork enforces the method version that belongs to the fork active at timestamp.
func (e *EngineServer) checkFork(method string, version int, timestamp uint64) error {
	cancun := e.chain.IsCancun(timestamp)
	if version >= clVersion3 && !cancun {
		return unsupportedFork(method)
	}
	if version < clVersion3 && cancun {
		return unsupportedFork(method)
	}
	return nil
}

func (e *EngineServer) ForkchoiceUpdatedV1(ctx context.Context, state *ForkChoiceState, attributes *PayloadAttributes) (*ForkChoiceUpdatedResponse, error) {
	return e.forkchoiceUpdated(ctx, "engine_forkchoiceUpdatedV1", clVersion1, state, attributes)
}

func (e *EngineServer) ForkchoiceUpdatedV2(ctx context.Context, state *ForkChoiceState, attributes *PayloadAttributes) (*ForkChoiceUpdatedResponse, error) {
	return e.forkchoiceUpdated(ctx, "engine_forkchoiceUpdatedV2", clVersion2, state, attributes)
}

func (e *EngineServer) ForkchoiceUpdatedV3(ctx context.Context, state *ForkChoiceState, attributes *PayloadAttributes) (*ForkChoiceUpdatedResponse, error) {
	return e.forkchoiceUpdated(ctx, "engine_forkchoiceUpdatedV3", clVersion3, state, attributes)
}

func (e *EngineServer) forkchoiceUpdated(ctx context.Context, method string, version int, state *ForkChoiceState, attributes *PayloadAttributes) (*ForkChoiceUpdatedResponse, error) {
	if state == nil {
		return nil, errInvalidForkchoiceState
	}
	var params *builder.Parameters
	if attributes != nil {
		if version < clVersion3 && attributes.ParentBeaconBlockRoot != nil {
			return nil, &rpc.InvalidParamsError{Message: "unexpected beacon root"}
		}
		if version >= clVersion3 && attributes.ParentBeaconBlockRoot == nil {
			return nil, &rpc.InvalidParamsError{Message: "missing beacon root"}
		}
		if err := e.checkFork(method, version, uint64(attributes.Timestamp)); err != nil {
			return nil, err
		}
		params = attributes.toParameters(state.HeadHash)
	}
	e.logger.Debug("[engine] received forkchoice update", "head", state.HeadHash, "safe", state.SafeBlockHash, "finalized", state.FinalizedBlockHash, "build", params != nil)

	res, err := e.engine.ForkchoiceUpdated(ctx, state.toProvider(), params)
	if err != nil {
		return nil, err
	}
	resp := &ForkChoiceUpdatedResponse{PayloadStatus: convertPayloadStatus(res.PayloadStatus)}
	if res.PayloadId != nil {
		resp.PayloadId = ConvertPayloadId(*res.PayloadId)
	}
	return resp, nil
}

func (e *EngineServer) NewPayloadV1(ctx context.Context, payload *ExecutionPayload) (*PayloadStatus, error) {
	return e.newPayload(ctx, "engine_newPayloadV1", clVersion1, payload, nil)
}

func (e *EngineServer) NewPayloadV2(ctx context.Context, payload *ExecutionPayload) (*PayloadStatus, error) {
	return e.newPayload(ctx, "engine_newPayloadV2", clVersion2, payload, nil)
}

func (e *EngineServer) NewPayloadV3(ctx context.Context, payload *ExecutionPayload, expectedBlobHashes []types.Hash, parentBeaconBlockRoot *types.Hash) (*PayloadStatus, error) {
	if expectedBlobHashes == nil {
		return nil, &rpc.InvalidParamsError{Message: "nil blob hashes array"}
	}
	if parentBeaconBlockRoot == nil {
		return nil, &rpc.InvalidParamsError{Message: "missing beacon root"}
	}
	return e.newPayload(ctx, "engine_newPayloadV3", clVersion3, payload, parentBeaconBlockRoot)
}

func (e *EngineServer) newPayload(ctx context.Context, method string, version int, payload *ExecutionPayload, _ *types.Hash) (*PayloadStatus, error) {
	if payload == nil {
		return nil, &rpc.InvalidParamsError{Message: "payload is missing"}
	}
	if err := e.checkFork(method, version, uint64(payload.Timestamp)); err != nil {
		return nil, err
	}
	block, err := BlockFromPayload(payload)
	if err != nil {
		msg := err.Error()
		return &PayloadStatus{Status: engine.StatusInvalid, ValidationError: &msg}, nil
	}
	if hash := block.Hash(); hash != payload.BlockHash {
		e.logger.Warn("[NewPayload] invalid block hash", "stated", payload.BlockHash, "actual", hash)
		return &PayloadStatus{Status: engine.StatusInvalidBlockHash}, nil
	}
	e.logger.Debug("[NewPayload] processing", "number", block.Number(), "hash", block.Hash(), "txs", len(block.Transactions()))

	res, err := e.engine.NewPayload(ctx, block)
	if err != nil {
		return nil, err
	}
	return convertPayloadStatus(res), nil
}

func (e *EngineServer) GetPayloadV1(ctx context.Context, payloadID hexutil.Bytes) (*ExecutionPayload, error) {
	resp, err := e.getPayload(ctx, payloadID)
	if err != nil {
		return nil, err
	}
	return resp.ExecutionPayload, nil
}

func (e *EngineServer) GetPayloadV2(ctx context.Context, payloadID hexutil.Bytes) (*GetPayloadResponse, error) {
	return e.getPayload(ctx, payloadID)
}

func (e *EngineServer) GetPayloadV3(ctx context.Context, payloadID hexutil.Bytes) (*GetPayloadResponse, error) {
	resp, err := e.getPayload(ctx, payloadID)
	if err != nil {
		return nil, err
	}
	if !e.chain.IsCancun(uint64(resp.ExecutionPayload.Timestamp)) {
		return nil, unsupportedFork("engine_getPayloadV3")
	}
	var zero hexutil.Uint64
	resp.ExecutionPayload.BlobGasUsed = &zero
	resp.ExecutionPayload.ExcessBlobGas = &zero
	return resp, nil
}

func (e *EngineServer) getPayload(ctx context.Context, payloadID hexutil.Bytes) (*GetPayloadResponse, error) {
	if len(payloadID) != 8 {
		return nil, &rpc.InvalidParamsError{Message: fmt.Sprintf("invalid payload id length %d", len(payloadID))}
	}
	id := binary.BigEndian.Uint64(payloadID)
	e.logger.Debug("[GetPayload] acquiring lock")
	res, err := e.payloads.Resolve(ctx, id)
	if errors.Is(err, builder.ErrUnknownPayload) {
		return nil, &rpc.CustomError{Code: rpc.ErrcodeUnknownPayload, Message: "Unknown payload"}
	}
	if err != nil {
		return nil, err
	}
	payload, err := PayloadFromBlock(res.Block)
	if err != nil {
		return nil, err
	}
	return &GetPayloadResponse{
		ExecutionPayload: payload,
		BlockValue:       (*hexutil.Big)(blockValue(res)),
	}, nil
}

func (e *EngineServer) ExchangeTransitionConfigurationV1(ctx context.Context, beaconConfig *TransitionConfiguration) (*TransitionConfiguration, error) {
	if beaconConfig == nil {
		return nil, &rpc.InvalidParamsError{Message: "transition configuration is missing"}
	}
	if err := e.engine.TransitionConfigurationExchanged(ctx); err != nil {
		return nil, err
	}
	// all supported chains started past the merge
	return &TransitionConfiguration{
		TerminalTotalDifficulty: (*hexutil.Big)(new(big.Int)),
		TerminalBlockHash:       types.Hash{},
		TerminalBlockNumber:     0,
	}, nil
}

func (e *EngineServer) GetPayloadBodiesByHashV1(ctx context.Context, hashes []types.Hash) ([]*ExecutionPayloadBody, error) {
	if len(hashes) > MaxPayloadBodiesRequest {
		return nil, &rpc.CustomError{Code: rpc.ErrcodeTooLargeRequest, Message: "Too large request"}
	}
	return spawnBlocking(ctx, e.spawner, "engine payload bodies by hash", func(ctx context.Context) ([]*ExecutionPayloadBody, error) {
		bodies := make([]*ExecutionPayloadBody, len(hashes))
		for i, hash := range hashes {
			block, err := e.blocks.BlockByHash(ctx, hash)
			if err != nil {
				return nil, err
			}
			if bodies[i], err = payloadBody(block); err != nil {
				return nil, err
			}
		}
		return bodies, nil
	})
}

func (e *EngineServer) GetPayloadBodiesByRangeV1(ctx context.Context, start, count hexutil.Uint64) ([]*ExecutionPayloadBody, error) {
	if start == 0 || count == 0 {
		return nil, &rpc.InvalidParamsError{Message: fmt.Sprintf("invalid start or count, start: %v count: %v", start, count)}
	}
	if count > MaxPayloadBodiesRequest {
		return nil, &rpc.CustomError{Code: rpc.ErrcodeTooLargeRequest, Message: "Too large request"}
	}
	return spawnBlocking(ctx, e.spawner, "engine payload bodies by range", func(ctx context.Context) ([]*ExecutionPayloadBody, error) {
		bodies := make([]*ExecutionPayloadBody, 0, count)
		for number := uint64(start); number < uint64(start+count); number++ {
			block, err := e.blocks.BlockByNumber(ctx, number)
			if err != nil {
				return nil, err
			}
			if block == nil {
				// the response ends at the latest known block
				break
			}
			body, err := payloadBody(block)
			if err != nil {
				return nil, err
			}
			bodies = append(bodies, body)
		}
		return bodies, nil
	})
}

func payloadBody(block *types.Block) (*ExecutionPayloadBody, error) {
	if block == nil {
		return nil, nil
	}
	txs, err := encodeTransactions(block.Transactions())
	if err != nil {
		return nil, err
	}
	return &ExecutionPayloadBody{Transactions: txs}, nil
}

func (e *EngineServer) ExchangeCapabilities(fromCl []string) []string {
	missing := make([]string, 0)
	for _, c := range fromCl {
		if !contains(e.capabilities, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		e.logger.Debug("[ExchangeCapabilities] mismatch", "missing on our side", missing)
	}
	return e.capabilities
}

func (e *EngineServer) GetClientVersionV1(_ context.Context, callerVersion *ClientVersionV1) ([]ClientVersionV1, error) {
	if callerVersion != nil {
		e.logger.Info("[GetClientVersionV1] Received request from " + callerVersion.String())
	}
	return []ClientVersionV1{e.clientVersion}, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func spawnBlocking[T any](ctx context.Context, spawner Spawner, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	spawner.Spawn(name, func(taskCtx context.Context) error {
		v, err := fn(taskCtx)
		ch <- result{v: v, err: err}
		return nil
	})
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
