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

package jsonrpc_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/execution/stagedsync/stagedsynctest"
	"github.com/erigontech/erigon-launch/execution/stagedsync/stages"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/rpc"
	"github.com/erigontech/erigon-launch/rpc/jsonrpc"
)

type testBackend struct{ peers uint64 }

func (b testBackend) NetVersion(context.Context) (uint64, error)    { return 1337, nil }
func (b testBackend) NetPeerCount(context.Context) (uint64, error)  { return b.peers, nil }
func (b testBackend) ClientVersion(context.Context) (string, error) { return "erigon/test", nil }

type testPool struct{}

func (testPool) Status() (int, int) { return 3, 1 }

func newTestAPI(t *testing.T) (*rpc.Server, *provider.BlockchainProvider, []*types.Block) {
	t.Helper()
	ctx := context.Background()
	spec := chain.DevSpec()
	db, blocks := stagedsynctest.GenerateChain(t, spec, 10, nil)
	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		return stages.SaveStageProgress(tx, stages.Finish, 10)
	}))
	factory, err := provider.NewFactory(ctx, db, spec, log.New())
	require.NoError(t, err)
	bp, err := provider.NewBlockchainProvider(ctx, factory)
	require.NoError(t, err)

	srv := rpc.NewServer(rpc.DefaultBatchLimit, log.New())
	require.NoError(t, rpc.RegisterApisFromWhitelist(jsonrpc.APIList(spec, bp, testBackend{peers: 2}, testPool{}), nil, srv, false, log.New()))
	return srv, bp, blocks
}

func call(t *testing.T, srv *rpc.Server, method string, params ...interface{}) json.RawMessage {
	t.Helper()
	p, err := json.Marshal(params)
	require.NoError(t, err)
	out := srv.Handle(context.Background(), []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":%q,"params":%s}`, method, p)))
	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(out, &resp))
	require.Nil(t, resp.Error, "%s: %s", method, out)
	return resp.Result
}

func TestEthAPI(t *testing.T) {
	t.Parallel()
	srv, bp, blocks := newTestAPI(t)

	require.JSONEq(t, `"0x539"`, string(call(t, srv, "eth_chainId")))
	require.JSONEq(t, `"0xa"`, string(call(t, srv, "eth_blockNumber")))

	var block map[string]interface{}
	require.NoError(t, json.Unmarshal(call(t, srv, "eth_getBlockByNumber", "0x3", false), &block))
	require.Equal(t, blocks[2].Hash().Hex(), block["hash"])
	require.Equal(t, "0x3", block["number"])
	require.Equal(t, []interface{}{blocks[2].Transactions()[0].Hash().Hex()}, block["transactions"])

	require.NoError(t, json.Unmarshal(call(t, srv, "eth_getBlockByNumber", "latest", true), &block))
	require.Equal(t, blocks[9].Hash().Hex(), block["hash"])
	txs := block["transactions"].([]interface{})
	require.Len(t, txs, 1)
	require.Equal(t, "0x9", txs[0].(map[string]interface{})["nonce"])

	require.JSONEq(t, `null`, string(call(t, srv, "eth_getBlockByNumber", "0x64", false)))

	require.NoError(t, json.Unmarshal(call(t, srv, "eth_getBlockByHash", blocks[4].Hash().Hex(), false), &block))
	require.Equal(t, "0x5", block["number"])

	require.JSONEq(t, `"0x1"`, string(call(t, srv, "eth_getBlockTransactionCountByNumber", "0x1")))

	bp.OnForkchoiceUpdateReceived(provider.ForkchoiceState{Head: blocks[9].Hash(), Safe: blocks[7].Hash(), Finalized: blocks[5].Hash()})
	require.NoError(t, json.Unmarshal(call(t, srv, "eth_getBlockByNumber", "finalized", false), &block))
	require.Equal(t, "0x6", block["number"])
	require.NoError(t, json.Unmarshal(call(t, srv, "eth_getBlockByNumber", "safe", false), &block))
	require.Equal(t, "0x8", block["number"])
}

func TestNetWeb3TxPoolAPI(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestAPI(t)

	require.JSONEq(t, `"1337"`, string(call(t, srv, "net_version")))
	require.JSONEq(t, `"0x2"`, string(call(t, srv, "net_peerCount")))
	require.JSONEq(t, `true`, string(call(t, srv, "net_listening")))
	require.JSONEq(t, `"erigon/test"`, string(call(t, srv, "web3_clientVersion")))
	require.JSONEq(t, `"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"`, string(call(t, srv, "web3_sha3", "0x")))
	require.JSONEq(t, `{"pending":"0x3","queued":"0x1"}`, string(call(t, srv, "txpool_status")))
}
