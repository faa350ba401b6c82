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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"

	"github.com/erigontech/erigon-launch/ethdb/prune"
	"github.com/erigontech/erigon-launch/execution/stagedsync"
	"github.com/erigontech/erigon-launch/node/nodecfg/datadir"
)

const TomlFileName = "erigon.toml"

func DefaultTomlPath(dirs datadir.Dirs) string { return filepath.Join(dirs.DataDir, TomlFileName) }

// TomlConfig is the on-disk node configuration.
type TomlConfig struct {
	Stages StagesConfig `toml:"stages"`
	Prune  PruneConfig  `toml:"prune"`
	Peers  PeersToml    `toml:"peers"`
}

type StagesConfig struct {
	Etl       EtlConfig       `toml:"etl"`
	Headers   HeadersConfig   `toml:"headers"`
	Bodies    BodiesConfig    `toml:"bodies"`
	Execution ExecutionConfig `toml:"execution"`
}

type EtlConfig struct {
	// Dir defaults to <datadir>/etl-tmp.
	Dir        string            `toml:"dir,omitempty"`
	BufferSize datasize.ByteSize `toml:"buffer_size"`
}

type HeadersConfig struct {
	CommitThreshold uint64 `toml:"commit_threshold"`
}

type BodiesConfig struct {
	BatchSize int `toml:"batch_size"`
}

type ExecutionConfig struct {
	MaxBlocks int `toml:"max_blocks"`
}

type PruneConfig struct {
	BlockInterval   uint64 `toml:"block_interval"`
	HistoryDistance uint64 `toml:"history_distance,omitempty"`
	BlocksDistance  uint64 `toml:"blocks_distance,omitempty"`
}

type PeersToml struct {
	MaxPeers         int  `toml:"max_peers"`
	TrustedNodesOnly bool `toml:"trusted_nodes_only"`
}

func DefaultTomlConfig() TomlConfig {
	return TomlConfig{
		Stages: StagesConfig{
			Etl:       EtlConfig{BufferSize: 256 * datasize.MB},
			Headers:   HeadersConfig{CommitThreshold: 10_000},
			Bodies:    BodiesConfig{BatchSize: 1_000},
			Execution: ExecutionConfig{MaxBlocks: 5_000},
		},
		Prune: PruneConfig{BlockInterval: prune.DefaultBlockInterval},
		Peers: PeersToml{MaxPeers: DefaultMaxPeers},
	}
}

// PipelineConfig is the part of the config the sync pipeline is built from.
func (c TomlConfig) PipelineConfig() stagedsync.Config {
	return stagedsync.Config{
		HeadersBatch: c.Stages.Headers.CommitThreshold,
		BodiesBatch:  c.Stages.Bodies.BatchSize,
		ExecBatch:    c.Stages.Execution.MaxBlocks,
	}
}

// PruneMode overrides base with the distances set in the file.
func (c TomlConfig) PruneMode(base prune.Mode) (prune.Mode, error) {
	if c.Prune.HistoryDistance == 0 && c.Prune.BlocksDistance == 0 {
		return base, nil
	}
	return prune.FromCli(c.Prune.HistoryDistance, c.Prune.BlocksDistance)
}

// EnsureEtlDir defaults the ETL directory to one under the datadir.
func (c *TomlConfig) EnsureEtlDir(dirs datadir.Dirs) {
	if c.Stages.Etl.Dir == "" {
		c.Stages.Etl.Dir = filepath.Join(dirs.DataDir, "etl-tmp")
	}
}

// LoadTomlConfig reads path over the defaults. A missing file is created with
// the defaults.
func LoadTomlConfig(path string) (TomlConfig, error) {
	cfg := DefaultTomlConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, SaveTomlConfig(path, cfg)
	}
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func SaveTomlConfig(path string, cfg TomlConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
