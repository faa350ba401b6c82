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

package nodecfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-launch/ethdb/prune"
)

func TestLoadTomlConfigCreatesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sub", TomlFileName)

	cfg, err := LoadTomlConfig(path)
	require.NoError(t, err)
	require.Equal(t, DefaultTomlConfig(), cfg)
	require.FileExists(t, path)

	again, err := LoadTomlConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadTomlConfigMergesOverDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), TomlFileName)
	require.NoError(t, os.WriteFile(path, []byte(`
[stages.etl]
buffer_size = "1GB"

[stages.bodies]
batch_size = 10

[prune]
blocks_distance = 200000
`), 0644))

	cfg, err := LoadTomlConfig(path)
	require.NoError(t, err)
	require.Equal(t, datasize.GB, cfg.Stages.Etl.BufferSize)
	require.Equal(t, 10, cfg.Stages.Bodies.BatchSize)
	require.Equal(t, DefaultTomlConfig().Stages.Headers, cfg.Stages.Headers)
	require.Equal(t, uint64(prune.DefaultBlockInterval), cfg.Prune.BlockInterval)

	mode, err := cfg.PruneMode(prune.DefaultMode)
	require.NoError(t, err)
	require.True(t, mode.Blocks.Enabled())
	require.Equal(t, uint64(100), mode.Blocks.PruneTo(200_100))

	pipeline := cfg.PipelineConfig()
	require.Equal(t, 10, pipeline.BodiesBatch)
}

func TestLoadTomlConfigRejectsGarbage(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), TomlFileName)
	require.NoError(t, os.WriteFile(path, []byte("[stages\n"), 0644))
	_, err := LoadTomlConfig(path)
	require.Error(t, err)
}

func TestEnsureEtlDir(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig(t.TempDir())
	toml := DefaultTomlConfig()
	toml.EnsureEtlDir(cfg.Dirs)
	require.Equal(t, filepath.Join(cfg.Dirs.DataDir, "etl-tmp"), toml.Stages.Etl.Dir)

	toml.Stages.Etl.Dir = "/custom"
	toml.EnsureEtlDir(cfg.Dirs)
	require.Equal(t, "/custom", toml.Stages.Etl.Dir)
}

func TestAdjustInstancePorts(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig(t.TempDir())
	require.NoError(t, cfg.AdjustInstancePorts())
	require.Equal(t, 8551, cfg.Http.AuthRpcPort)
	require.Equal(t, 8545, cfg.Http.HttpPort)

	cfg = DefaultConfig(t.TempDir())
	cfg.Instance = 3
	require.NoError(t, cfg.AdjustInstancePorts())
	require.Equal(t, 8751, cfg.Http.AuthRpcPort)
	require.Equal(t, 8543, cfg.Http.HttpPort)
	require.Equal(t, DefaultP2PPort+2, cfg.Peers.ListenPort)
	require.Equal(t, DefaultMetricsPort+2, cfg.Metrics.Port)

	cfg.Instance = 0
	require.Error(t, cfg.AdjustInstancePorts())
}

func TestTomlPath(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig(t.TempDir())
	require.Equal(t, filepath.Join(cfg.Dirs.DataDir, TomlFileName), cfg.TomlPath())
	cfg.ConfigPath = "/etc/erigon.toml"
	require.Equal(t, "/etc/erigon.toml", cfg.TomlPath())
}
