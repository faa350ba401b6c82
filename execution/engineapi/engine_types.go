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
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-launch/execution/builder"
	"github.com/erigontech/erigon-launch/execution/engine"
	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/execution/types"
)

// ExecutionPayload represents an execution payload (aka block) of the engine API.
type ExecutionPayload struct {
	ParentHash    types.Hash      `json:"parentHash"    gencodec:"required"`
	FeeRecipient  types.Address   `json:"feeRecipient"  gencodec:"required"`
	StateRoot     types.Hash      `json:"stateRoot"     gencodec:"required"`
	ReceiptsRoot  types.Hash      `json:"receiptsRoot"  gencodec:"required"`
	LogsBloom     hexutil.Bytes   `json:"logsBloom"`
	PrevRandao    types.Hash      `json:"prevRandao"    gencodec:"required"`
	BlockNumber   hexutil.Uint64  `json:"blockNumber"   gencodec:"required"`
	GasLimit      hexutil.Uint64  `json:"gasLimit"      gencodec:"required"`
	GasUsed       hexutil.Uint64  `json:"gasUsed"       gencodec:"required"`
	Timestamp     hexutil.Uint64  `json:"timestamp"     gencodec:"required"`
	ExtraData     hexutil.Bytes   `json:"extraData"     gencodec:"required"`
	BaseFeePerGas *hexutil.Big    `json:"baseFeePerGas" gencodec:"required"`
	BlockHash     types.Hash      `json:"blockHash"     gencodec:"required"`
	Transactions  []hexutil.Bytes `json:"transactions"  gencodec:"required"`
	BlobGasUsed   *hexutil.Uint64 `json:"blobGasUsed,omitempty"`
	ExcessBlobGas *hexutil.Uint64 `json:"excessBlobGas,omitempty"`
}

// ExecutionPayloadBody is the transactions part of a payload.
type ExecutionPayloadBody struct {
	Transactions []hexutil.Bytes `json:"transactions" gencodec:"required"`
}

// PayloadAttributes represent the attributes required to start assembling a payload
type PayloadAttributes struct {
	Timestamp             hexutil.Uint64 `json:"timestamp"             gencodec:"required"`
	PrevRandao            types.Hash     `json:"prevRandao"            gencodec:"required"`
	SuggestedFeeRecipient types.Address  `json:"suggestedFeeRecipient" gencodec:"required"`
	ParentBeaconBlockRoot *types.Hash    `json:"parentBeaconBlockRoot"`
}

// TransitionConfiguration represents the correct configurations of the CL and the EL
type TransitionConfiguration struct {
	TerminalTotalDifficulty *hexutil.Big   `json:"terminalTotalDifficulty" gencodec:"required"`
	TerminalBlockHash       types.Hash     `json:"terminalBlockHash"       gencodec:"required"`
	TerminalBlockNumber     hexutil.Uint64 `json:"terminalBlockNumber"     gencodec:"required"`
}

// ForkChoiceState is the head, safe and finalized block hashes sent by the CL.
type ForkChoiceState struct {
	HeadHash           types.Hash `json:"headBlockHash"             gencodec:"required"`
	SafeBlockHash      types.Hash `json:"safeBlockHash"             gencodec:"required"`
	FinalizedBlockHash types.Hash `json:"finalizedBlockHash"        gencodec:"required"`
}

// PayloadStatus as defined in the engine API spec
type PayloadStatus struct {
	Status          engine.PayloadStatus `json:"status"          gencodec:"required"`
	LatestValidHash *types.Hash          `json:"latestValidHash"`
	ValidationError *string              `json:"validationError"`
}

type ForkChoiceUpdatedResponse struct {
	PayloadId     *hexutil.Bytes `json:"payloadId"` // We need to reformat the uint64 so this makes more sense.
	PayloadStatus *PayloadStatus `json:"payloadStatus"`
}

type GetPayloadResponse struct {
	ExecutionPayload      *ExecutionPayload `json:"executionPayload" gencodec:"required"`
	BlockValue            *hexutil.Big      `json:"blockValue"`
	ShouldOverrideBuilder bool              `json:"shouldOverrideBuilder"`
}

// ClientVersionV1 identifies a client implementation to the other side of the engine API.
type ClientVersionV1 struct {
	Code    string `json:"code" gencodec:"required"`
	Name    string `json:"name" gencodec:"required"`
	Version string `json:"version" gencodec:"required"`
	Commit  string `json:"commit" gencodec:"required"`
}

func (c ClientVersionV1) String() string {
	return fmt.Sprintf("ClientCode: %s, %s-%s-%s", c.Code, c.Name, c.Version, c.Commit)
}

func convertPayloadStatus(x engine.PayloadStatusResult) *PayloadStatus {
	status := &PayloadStatus{Status: x.Status, LatestValidHash: x.LatestValidHash}
	if x.ValidationError != "" {
		validationError := x.ValidationError
		status.ValidationError = &validationError
	}
	return status
}

// ConvertPayloadId converts the payload id to the 8 byte form the CL expects.
func ConvertPayloadId(payloadId uint64) *hexutil.Bytes {
	encodedPayloadId := make([]byte, 8)
	binary.BigEndian.PutUint64(encodedPayloadId, payloadId)
	ret := hexutil.Bytes(encodedPayloadId)
	return &ret
}

func (s *ForkChoiceState) toProvider() (state provider.ForkchoiceState) {
	state.Head = s.HeadHash
	state.Safe = s.SafeBlockHash
	state.Finalized = s.FinalizedBlockHash
	return state
}

func (a *PayloadAttributes) toParameters(parent types.Hash) *builder.Parameters {
	return &builder.Parameters{
		ParentHash:            parent,
		Timestamp:             uint64(a.Timestamp),
		PrevRandao:            a.PrevRandao,
		SuggestedFeeRecipient: a.SuggestedFeeRecipient,
	}
}

// BlockFromPayload rebuilds the block a payload describes. The caller compares the
// resulting hash with payload.BlockHash.
func BlockFromPayload(payload *ExecutionPayload) (*types.Block, error) {
	txs := make([]*types.Transaction, len(payload.Transactions))
	for i, enc := range payload.Transactions {
		txn, err := types.DecodeTransaction(enc)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		txs[i] = txn
	}
	header := &types.Header{
		ParentHash:  payload.ParentHash,
		Coinbase:    payload.FeeRecipient,
		Root:        payload.StateRoot,
		TxHash:      types.DeriveTxHash(txs),
		ReceiptHash: payload.ReceiptsRoot,
		Difficulty:  new(uint256.Int),
		Number:      uint64(payload.BlockNumber),
		GasLimit:    uint64(payload.GasLimit),
		GasUsed:     uint64(payload.GasUsed),
		Time:        uint64(payload.Timestamp),
		Extra:       payload.ExtraData,
	}
	if payload.BaseFeePerGas != nil {
		baseFee, overflow := uint256.FromBig((*big.Int)(payload.BaseFeePerGas))
		if overflow {
			return nil, fmt.Errorf("base fee overflow")
		}
		header.BaseFee = baseFee
	}
	return types.NewBlock(header, &types.Body{Transactions: txs}), nil
}

// PayloadFromBlock is the inverse of BlockFromPayload.
func PayloadFromBlock(block *types.Block) (*ExecutionPayload, error) {
	header := block.Header()
	txs, err := encodeTransactions(block.Transactions())
	if err != nil {
		return nil, err
	}
	payload := &ExecutionPayload{
		ParentHash:   header.ParentHash,
		FeeRecipient: header.Coinbase,
		StateRoot:    header.Root,
		ReceiptsRoot: header.ReceiptHash,
		LogsBloom:    make(hexutil.Bytes, 256),
		BlockNumber:  hexutil.Uint64(header.Number),
		GasLimit:     hexutil.Uint64(header.GasLimit),
		GasUsed:      hexutil.Uint64(header.GasUsed),
		Timestamp:    hexutil.Uint64(header.Time),
		ExtraData:    header.Extra,
		BlockHash:    block.Hash(),
		Transactions: txs,
	}
	if header.BaseFee != nil {
		payload.BaseFeePerGas = (*hexutil.Big)(header.BaseFee.ToBig())
	}
	return payload, nil
}

func encodeTransactions(txs []*types.Transaction) ([]hexutil.Bytes, error) {
	out := make([]hexutil.Bytes, len(txs))
	for i, txn := range txs {
		enc, err := types.EncodeTransaction(txn)
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

// blockValue is the sum of priority fees the fee recipient earns.
func blockValue(res *builder.BlockWithReceipts) *big.Int {
	value := new(uint256.Int)
	baseFee := res.Block.Header().BaseFee
	for i, txn := range res.Block.Transactions() {
		if i >= len(res.Receipts) || txn.GasPrice == nil {
			continue
		}
		tip := new(uint256.Int).Set(txn.GasPrice)
		if baseFee != nil {
			if tip.Lt(baseFee) {
				continue
			}
			tip.Sub(tip, baseFee)
		}
		value.Add(value, tip.Mul(tip, uint256.NewInt(res.Receipts[i].GasUsed)))
	}
	return value.ToBig()
}
