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
	"fmt"
	"time"

	"github.com/erigontech/erigon-launch/ethdb/prune"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/node/nodecfg/datadir"
	"github.com/erigontech/erigon-launch/p2p"
	"github.com/erigontech/erigon-launch/params/networkname"
	"github.com/erigontech/erigon-launch/rpc"
	"github.com/erigontech/erigon-launch/txnprovider/txpool"
)

const (
	DefaultP2PPort        = 30303
	DefaultMetricsAddr    = "127.0.0.1"
	DefaultMetricsPort    = 6061
	DefaultResolveTimeout = p2p.DefaultResolveTimeout
	DefaultMaxPeers       = 32
	DefaultBuildTime      = 2 * time.Second
)

// PeersConfig lists the peers the node starts with.
type PeersConfig struct {
	ListenPort     int
	MaxPeers       int
	TrustedPeers   []string
	Bootnodes      []string
	ResolveTimeout time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
	Port    int
}

func (c MetricsConfig) Endpoint() string { return fmt.Sprintf("%s:%d", c.Addr, c.Port) }

// DebugConfig holds the settings used when running against a fixed target.
type DebugConfig struct {
	// Tip is a block hash to sync to without a consensus layer.
	Tip *types.Hash
	// MaxBlock stops the pipeline at this height.
	MaxBlock *uint64
	// Terminate stops the process once the node exits.
	Terminate bool
}

// Config is everything the node launcher needs to know.
type Config struct {
	Dirs     datadir.Dirs
	Chain    string
	Dev      bool
	Instance uint16
	// ConfigPath is the on-disk toml config, defaults to <datadir>/erigon.toml.
	ConfigPath string

	Peers   PeersConfig
	Http    rpc.Config
	Metrics MetricsConfig
	Debug   DebugConfig
	Prune   prune.Mode
	TxPool  txpool.Config

	BuilderMaxBuildTime time.Duration
}

func DefaultConfig(dataDir string) *Config {
	return &Config{
		Dirs:     datadir.New(dataDir),
		Chain:    networkname.Mainnet,
		Instance: 1,
		Peers: PeersConfig{
			ListenPort:     DefaultP2PPort,
			MaxPeers:       DefaultMaxPeers,
			ResolveTimeout: DefaultResolveTimeout,
		},
		Http:                rpc.DefaultConfig(),
		Metrics:             MetricsConfig{Addr: DefaultMetricsAddr, Port: DefaultMetricsPort},
		Prune:               prune.DefaultMode,
		TxPool:              txpool.DefaultConfig,
		BuilderMaxBuildTime: DefaultBuildTime,
	}
}

// TomlPath returns where the on-disk config lives.
func (c *Config) TomlPath() string {
	if c.ConfigPath != "" {
		return c.ConfigPath
	}
	return DefaultTomlPath(c.Dirs)
}

func (c *Config) IsDev() bool { return c.Dev || c.Chain == networkname.Dev }

// AdjustInstancePorts shifts every port so that several instances can run on
// one host. Instance 1 keeps the default ports.
func (c *Config) AdjustInstancePorts() error {
	if c.Instance == 0 {
		return fmt.Errorf("instance number must be at least 1")
	}
	offset := int(c.Instance) - 1
	c.Http.AuthRpcPort += offset * 100
	c.Http.HttpPort -= offset
	c.Peers.ListenPort += offset
	c.Metrics.Port += offset
	return nil
}
