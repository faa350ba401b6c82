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
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/execution/builder"
	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/engine"
	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/rpc"
)

type fakeEngine struct {
	mu          sync.Mutex
	states      []provider.ForkchoiceState
	params      []*builder.Parameters
	blocks      []*types.Block
	exchanged   int
	fcuResult   engine.ForkchoiceUpdatedResult
	payloadResp engine.PayloadStatusResult
	err         error
}

func (f *fakeEngine) ForkchoiceUpdated(_ context.Context, state provider.ForkchoiceState, params *builder.Parameters) (engine.ForkchoiceUpdatedResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
	f.params = append(f.params, params)
	return f.fcuResult, f.err
}

func (f *fakeEngine) NewPayload(_ context.Context, block *types.Block) (engine.PayloadStatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = append(f.blocks, block)
	return f.payloadResp, f.err
}

func (f *fakeEngine) TransitionConfigurationExchanged(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanged++
	return nil
}

type fakeResolver map[uint64]*builder.BlockWithReceipts

func (r fakeResolver) Resolve(_ context.Context, id uint64) (*builder.BlockWithReceipts, error) {
	res, ok := r[id]
	if !ok {
		return nil, builder.ErrUnknownPayload
	}
	return res, nil
}

type fakeBlocks []*types.Block

func (b fakeBlocks) BlockByHash(_ context.Context, hash types.Hash) (*types.Block, error) {
	for _, block := range b {
		if block.Hash() == hash {
			return block, nil
		}
	}
	return nil, nil
}

func (b fakeBlocks) BlockByNumber(_ context.Context, number uint64) (*types.Block, error) {
	if number >= uint64(len(b)) {
		return nil, nil
	}
	return b[number], nil
}

type goSpawner struct{ spawned []string }

func (s *goSpawner) Spawn(name string, fn func(ctx context.Context) error) {
	s.spawned = append(s.spawned, name)
	go fn(context.Background()) //nolint:errcheck
}

func testBlock(number, time uint64, txs ...*types.Transaction) *types.Block {
	header := &types.Header{
		Number:     number,
		Time:       time,
		GasLimit:   30_000_000,
		Difficulty: new(uint256.Int),
		BaseFee:    uint256.NewInt(7),
		TxHash:     types.DeriveTxHash(txs),
	}
	return types.NewBlock(header, &types.Body{Transactions: txs})
}

func testTx(nonce uint64, gasPrice uint64) *types.Transaction {
	return &types.Transaction{
		Nonce:    nonce,
		GasPrice: uint256.NewInt(gasPrice),
		Gas:      21_000,
		Value:    uint256.NewInt(1),
	}
}

func newTestServer(t *testing.T, spec *chain.Spec, eng *fakeEngine, payloads fakeResolver, blocks fakeBlocks) (*EngineServer, *goSpawner) {
	t.Helper()
	spawner := &goSpawner{}
	version := ClientVersionV1{Code: "EG", Name: "erigon", Version: "1.0.0", Commit: "deadbeef"}
	return NewEngineServer(blocks, spec, eng, payloads, spawner, version, Capabilities, log.New()), spawner
}

func requireRpcCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var rpcErr rpc.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, code, rpcErr.ErrorCode())
}

func TestForkchoiceUpdated(t *testing.T) {
	t.Parallel()
	id := uint64(0x0102030405060708)
	eng := &fakeEngine{fcuResult: engine.ForkchoiceUpdatedResult{
		PayloadStatus: engine.PayloadStatusResult{Status: engine.StatusValid},
		PayloadId:     &id,
	}}
	srv, _ := newTestServer(t, chain.DevSpec(), eng, nil, nil)
	ctx := context.Background()

	state := &ForkChoiceState{
		HeadHash:           types.HexToHash("0x01"),
		SafeBlockHash:      types.HexToHash("0x02"),
		FinalizedBlockHash: types.HexToHash("0x03"),
	}
	root := types.HexToHash("0xbb")
	resp, err := srv.ForkchoiceUpdatedV3(ctx, state, &PayloadAttributes{
		Timestamp:             10,
		PrevRandao:            types.HexToHash("0xaa"),
		SuggestedFeeRecipient: types.HexToAddress("0xcc"),
		ParentBeaconBlockRoot: &root,
	})
	require.NoError(t, err)
	require.Equal(t, engine.StatusValid, resp.PayloadStatus.Status)
	require.Equal(t, hexutil.Bytes{1, 2, 3, 4, 5, 6, 7, 8}, *resp.PayloadId)

	require.Len(t, eng.states, 1)
	require.Equal(t, provider.ForkchoiceState{Head: state.HeadHash, Safe: state.SafeBlockHash, Finalized: state.FinalizedBlockHash}, eng.states[0])
	require.Equal(t, state.HeadHash, eng.params[0].ParentHash)
	require.Equal(t, uint64(10), eng.params[0].Timestamp)
	require.Equal(t, types.HexToAddress("0xcc"), eng.params[0].SuggestedFeeRecipient)

	t.Run("no attributes", func(t *testing.T) {
		resp, err := srv.ForkchoiceUpdatedV1(ctx, state, nil)
		require.NoError(t, err)
		require.Equal(t, engine.StatusValid, resp.PayloadStatus.Status)
	})
	t.Run("missing state", func(t *testing.T) {
		_, err := srv.ForkchoiceUpdatedV3(ctx, nil, nil)
		requireRpcCode(t, err, -32602)
	})
	t.Run("missing beacon root", func(t *testing.T) {
		_, err := srv.ForkchoiceUpdatedV3(ctx, state, &PayloadAttributes{Timestamp: 10})
		requireRpcCode(t, err, -32602)
	})
	t.Run("old version after cancun", func(t *testing.T) {
		_, err := srv.ForkchoiceUpdatedV2(ctx, state, &PayloadAttributes{Timestamp: 10})
		requireRpcCode(t, err, rpc.ErrcodeUnsupportedFork)
	})
}

func TestForkchoiceUpdatedBeforeCancun(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{fcuResult: engine.ForkchoiceUpdatedResult{PayloadStatus: engine.PayloadStatusResult{Status: engine.StatusSyncing}}}
	srv, _ := newTestServer(t, chain.MainnetSpec(), eng, nil, nil)
	root := types.HexToHash("0xbb")

	_, err := srv.ForkchoiceUpdatedV3(context.Background(), &ForkChoiceState{}, &PayloadAttributes{Timestamp: 1, ParentBeaconBlockRoot: &root})
	requireRpcCode(t, err, rpc.ErrcodeUnsupportedFork)

	resp, err := srv.ForkchoiceUpdatedV2(context.Background(), &ForkChoiceState{}, &PayloadAttributes{Timestamp: 1})
	require.NoError(t, err)
	require.Equal(t, engine.StatusSyncing, resp.PayloadStatus.Status)
	require.Nil(t, resp.PayloadId)
}

func TestNewPayload(t *testing.T) {
	t.Parallel()
	block := testBlock(1, 12, testTx(0, 10), testTx(1, 20))
	latest := block.Hash()
	eng := &fakeEngine{payloadResp: engine.PayloadStatusResult{Status: engine.StatusValid, LatestValidHash: &latest}}
	srv, _ := newTestServer(t, chain.DevSpec(), eng, nil, nil)
	ctx := context.Background()
	root := types.Hash{}

	payload, err := PayloadFromBlock(block)
	require.NoError(t, err)

	status, err := srv.NewPayloadV3(ctx, payload, []types.Hash{}, &root)
	require.NoError(t, err)
	require.Equal(t, engine.StatusValid, status.Status)
	require.Equal(t, latest, *status.LatestValidHash)
	require.Len(t, eng.blocks, 1)
	require.Equal(t, block.Hash(), eng.blocks[0].Hash())
	require.Len(t, eng.blocks[0].Transactions(), 2)

	t.Run("block hash mismatch", func(t *testing.T) {
		bad := *payload
		bad.BlockHash = types.HexToHash("0xdead")
		status, err := srv.NewPayloadV3(ctx, &bad, []types.Hash{}, &root)
		require.NoError(t, err)
		require.Equal(t, engine.StatusInvalidBlockHash, status.Status)
	})
	t.Run("undecodable transaction", func(t *testing.T) {
		bad := *payload
		bad.Transactions = []hexutil.Bytes{{0xff, 0x01}}
		status, err := srv.NewPayloadV3(ctx, &bad, []types.Hash{}, &root)
		require.NoError(t, err)
		require.Equal(t, engine.StatusInvalid, status.Status)
		require.NotNil(t, status.ValidationError)
	})
	t.Run("missing beacon root", func(t *testing.T) {
		_, err := srv.NewPayloadV3(ctx, payload, []types.Hash{}, nil)
		requireRpcCode(t, err, -32602)
	})
	t.Run("wrong version", func(t *testing.T) {
		_, err := srv.NewPayloadV2(ctx, payload)
		requireRpcCode(t, err, rpc.ErrcodeUnsupportedFork)
	})
}

func TestGetPayload(t *testing.T) {
	t.Parallel()
	block := testBlock(3, 36, testTx(0, 10), testTx(1, 20))
	payloads := fakeResolver{
		7: {
			Block: block,
			Receipts: types.Receipts{
				{Status: types.ReceiptStatusSuccessful, GasUsed: 21_000},
				{Status: types.ReceiptStatusSuccessful, GasUsed: 21_000},
			},
		},
	}
	srv, _ := newTestServer(t, chain.DevSpec(), &fakeEngine{}, payloads, nil)
	ctx := context.Background()

	resp, err := srv.GetPayloadV3(ctx, *ConvertPayloadId(7))
	require.NoError(t, err)
	require.Equal(t, block.Hash(), resp.ExecutionPayload.BlockHash)
	require.Len(t, resp.ExecutionPayload.Transactions, 2)
	require.NotNil(t, resp.ExecutionPayload.BlobGasUsed)
	// (10-7)*21000 + (20-7)*21000
	require.Equal(t, int64(336_000), resp.BlockValue.ToInt().Int64())

	rebuilt, err := BlockFromPayload(resp.ExecutionPayload)
	require.NoError(t, err)
	require.Equal(t, block.Hash(), rebuilt.Hash())

	t.Run("unknown payload", func(t *testing.T) {
		_, err := srv.GetPayloadV3(ctx, *ConvertPayloadId(8))
		requireRpcCode(t, err, rpc.ErrcodeUnknownPayload)
	})
	t.Run("bad id length", func(t *testing.T) {
		_, err := srv.GetPayloadV2(ctx, hexutil.Bytes{1, 2})
		requireRpcCode(t, err, -32602)
	})
}

func TestGetPayloadBodies(t *testing.T) {
	t.Parallel()
	blocks := fakeBlocks{testBlock(0, 0), testBlock(1, 12, testTx(0, 10)), testBlock(2, 24)}
	srv, spawner := newTestServer(t, chain.DevSpec(), &fakeEngine{}, nil, blocks)
	ctx := context.Background()

	bodies, err := srv.GetPayloadBodiesByHashV1(ctx, []types.Hash{blocks[1].Hash(), types.HexToHash("0x99")})
	require.NoError(t, err)
	require.Len(t, bodies, 2)
	require.Len(t, bodies[0].Transactions, 1)
	require.Nil(t, bodies[1])

	bodies, err = srv.GetPayloadBodiesByRangeV1(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, bodies, 2)
	require.Len(t, spawner.spawned, 2)

	_, err = srv.GetPayloadBodiesByRangeV1(ctx, 0, 5)
	requireRpcCode(t, err, -32602)
	_, err = srv.GetPayloadBodiesByRangeV1(ctx, 1, MaxPayloadBodiesRequest+1)
	requireRpcCode(t, err, rpc.ErrcodeTooLargeRequest)
	_, err = srv.GetPayloadBodiesByHashV1(ctx, make([]types.Hash, MaxPayloadBodiesRequest+1))
	requireRpcCode(t, err, rpc.ErrcodeTooLargeRequest)
}

func TestExchangeTransitionConfigurationAndCapabilities(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{}
	srv, _ := newTestServer(t, chain.DevSpec(), eng, nil, nil)

	cfg, err := srv.ExchangeTransitionConfigurationV1(context.Background(), &TransitionConfiguration{})
	require.NoError(t, err)
	require.Equal(t, int64(0), cfg.TerminalTotalDifficulty.ToInt().Int64())
	require.Equal(t, 1, eng.exchanged)

	require.Equal(t, Capabilities, srv.ExchangeCapabilities([]string{"engine_newPayloadV1", "engine_newPayloadV9"}))

	versions, err := srv.GetClientVersionV1(context.Background(), &ClientVersionV1{Code: "LH", Name: "lighthouse"})
	require.NoError(t, err)
	require.Len(t, versions, 1)
	require.Equal(t, "EG", versions[0].Code)
}

func TestEngineNamespaceOverRpc(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{fcuResult: engine.ForkchoiceUpdatedResult{PayloadStatus: engine.PayloadStatusResult{Status: engine.StatusValid}}}
	engineSrv, _ := newTestServer(t, chain.DevSpec(), eng, nil, nil)

	srv := rpc.NewServer(rpc.DefaultBatchLimit, log.New())
	for _, api := range APIs(engineSrv) {
		require.NoError(t, srv.RegisterName(api.Namespace, api.Service))
	}
	for _, capability := range Capabilities {
		require.Contains(t, srv.Methods(), capability)
	}
	require.Contains(t, srv.Methods(), "engine_exchangeCapabilities")

	req := `{"jsonrpc":"2.0","id":1,"method":"engine_forkchoiceUpdatedV1","params":[{"headBlockHash":"0x0000000000000000000000000000000000000000000000000000000000000001","safeBlockHash":"0x0000000000000000000000000000000000000000000000000000000000000000","finalizedBlockHash":"0x0000000000000000000000000000000000000000000000000000000000000000"}]}`
	out := srv.Handle(context.Background(), []byte(req))
	var resp struct {
		Result ForkChoiceUpdatedResponse `json:"result"`
	}
	require.NoError(t, json.Unmarshal(out, &resp), string(out))
	require.Equal(t, engine.StatusValid, resp.Result.PayloadStatus.Status)
	require.Equal(t, types.HexToHash("0x01"), eng.states[0].Head)
	require.True(t, strings.Contains(string(out), `"payloadId":null`))
}
