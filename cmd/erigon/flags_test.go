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

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/erigontech/erigon-launch/node/nodecfg"
	"github.com/erigontech/erigon-launch/params/networkname"
)

// runFlags parses args against the erigon flags and returns the node config.
// The flag definitions are package globals that urfave/cli mutates while
// parsing, so these tests do not run in parallel.
func runFlags(t *testing.T, args ...string) (*nodecfg.Config, error) {
	t.Helper()
	var cfg *nodecfg.Config
	app := makeApp(func(ctx *cli.Context) error {
		if path := ctx.String(ConfigFlag.Name); path != "" {
			if err := setFlagsFromConfigFile(ctx, path); err != nil {
				return err
			}
		}
		var err error
		cfg, err = NewNodeConfigUrfave(ctx)
		return err
	}, DefaultFlags)
	err := app.Run(append([]string{"erigon"}, args...))
	return cfg, err
}

func TestNodeConfigDefaults(t *testing.T) {
	dataDir := t.TempDir()
	cfg, err := runFlags(t, "--datadir", dataDir)
	require.NoError(t, err)

	require.Equal(t, dataDir, cfg.Dirs.DataDir)
	require.Equal(t, networkname.Mainnet, cfg.Chain)
	require.False(t, cfg.IsDev())
	require.Equal(t, uint16(1), cfg.Instance)
	require.Equal(t, nodecfg.DefaultP2PPort, cfg.Peers.ListenPort)
	require.Equal(t, 8545, cfg.Http.HttpPort)
	require.Equal(t, 8551, cfg.Http.AuthRpcPort)
	require.Equal(t, []string{"eth", "net", "web3", "txpool"}, cfg.Http.API)
	require.Nil(t, cfg.Debug.Tip)
	require.Nil(t, cfg.Debug.MaxBlock)
	require.False(t, cfg.Debug.Terminate)
}

func TestNodeConfigFromFlags(t *testing.T) {
	tip := "0x" + "ab" + "00000000000000000000000000000000000000000000000000000000000000"
	cfg, err := runFlags(t,
		"--datadir", t.TempDir(),
		"--dev",
		"--instance", "3",
		"--http.api", "eth,net",
		"--trustedpeers", "enode://a@127.0.0.1:30303,enode://b@127.0.0.1:30304",
		"--peers.resolve.timeout", "1s",
		"--metrics",
		"--debug.tip", tip,
		"--debug.max-block", "0",
		"--debug.terminate",
	)
	require.NoError(t, err)

	require.True(t, cfg.IsDev())
	require.Equal(t, networkname.Dev, cfg.Chain)
	require.Equal(t, uint16(3), cfg.Instance)
	require.Equal(t, []string{"eth", "net"}, cfg.Http.API)
	require.Len(t, cfg.Peers.TrustedPeers, 2)
	require.Equal(t, time.Second, cfg.Peers.ResolveTimeout)
	require.True(t, cfg.Metrics.Enabled)
	require.NotNil(t, cfg.Debug.Tip)
	require.Equal(t, byte(0xab), cfg.Debug.Tip[0])
	require.NotNil(t, cfg.Debug.MaxBlock)
	require.Zero(t, *cfg.Debug.MaxBlock)
	require.True(t, cfg.Debug.Terminate)
}

func TestNodeConfigRejectsBadTip(t *testing.T) {
	_, err := runFlags(t, "--datadir", t.TempDir(), "--debug.tip", "0x1234")
	require.ErrorContains(t, err, "debug.tip")
}

func TestNodeConfigRejectsNonPositiveResolveTimeout(t *testing.T) {
	for _, v := range []string{"0s", "-1s"} {
		_, err := runFlags(t, "--datadir", t.TempDir(), "--peers.resolve.timeout", v)
		require.ErrorContains(t, err, PeersResolveTimeoutFlag.Name, v)
	}
}

func TestSetFlagsFromConfigFile(t *testing.T) {
	files := map[string]string{
		"config.yaml": "chain: sepolia\nmaxpeers: 7\nhttp.api: [eth, debug]\nhttp.port: 9000\n",
		"config.toml": "chain = \"sepolia\"\nmaxpeers = 7\n\"http.api\" = [\"eth\", \"debug\"]\n\"http.port\" = 9000\n",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			cfg, err := runFlags(t, "--datadir", dir, "--config", path, "--http.port", "9100")
			require.NoError(t, err)
			require.Equal(t, networkname.Sepolia, cfg.Chain)
			require.Equal(t, 7, cfg.Peers.MaxPeers)
			require.Equal(t, []string{"eth", "debug"}, cfg.Http.API)
			// command line wins over the file
			require.Equal(t, 9100, cfg.Http.HttpPort)
		})
	}
}

func TestSetFlagsFromConfigFileUnknownExt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := runFlags(t, "--datadir", dir, "--config", path)
	require.ErrorIs(t, err, errConfigFileExt)
}
