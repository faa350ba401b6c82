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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/erigontech/erigon-launch/ethdb/prune"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/node/nodecfg"
	"github.com/erigontech/erigon-launch/params/networkname"
	"github.com/erigontech/erigon-launch/rpc"
	"github.com/erigontech/erigon-launch/turbo/logging"
)

var (
	// General settings
	DataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the databases",
		Value: defaultDataDir(),
	}
	ChainFlag = cli.StringFlag{
		Name:  "chain",
		Usage: "name of the network to join: " + strings.Join(networkname.All, ", "),
		Value: networkname.Mainnet,
	}
	DevFlag = cli.BoolFlag{
		Name:  "dev",
		Usage: "Run a local development chain",
	}
	InstanceFlag = cli.UintFlag{
		Name:  "instance",
		Usage: "Instance number, shifts every port so that several nodes can run on one host",
		Value: 1,
	}
	ConfigFlag = cli.StringFlag{
		Name:  "config",
		Usage: "Sets erigon flags from YAML/TOML file",
	}
	NodeConfigFlag = cli.StringFlag{
		Name:  "node.config",
		Usage: "Path of the node toml config, default <datadir>/" + nodecfg.TomlFileName,
	}

	// Networking
	ListenPortFlag = cli.IntFlag{
		Name:  "port",
		Usage: "Network listening port",
		Value: nodecfg.DefaultP2PPort,
	}
	MaxPeersFlag = cli.IntFlag{
		Name:  "maxpeers",
		Usage: "Maximum number of network peers",
		Value: nodecfg.DefaultMaxPeers,
	}
	TrustedPeersFlag = cli.StringSliceFlag{
		Name:  "trustedpeers",
		Usage: "Comma separated enode URLs which are always allowed to connect",
	}
	BootnodesFlag = cli.StringSliceFlag{
		Name:  "bootnodes",
		Usage: "Comma separated enode URLs for P2P discovery bootstrap",
	}
	PeersResolveTimeoutFlag = cli.DurationFlag{
		Name:  "peers.resolve.timeout",
		Usage: "Timeout of the DNS lookup of a configured peer",
		Value: nodecfg.DefaultResolveTimeout,
	}

	// RPC
	HTTPEnabledFlag = cli.BoolFlag{
		Name:  "http",
		Usage: "JSON-RPC server (enabled by default). Use --http=false to disable it",
		Value: true,
	}
	HTTPListenAddrFlag = cli.StringFlag{
		Name:  "http.addr",
		Usage: "HTTP-RPC server listening interface",
		Value: rpc.DefaultConfig().HttpListenAddress,
	}
	HTTPPortFlag = cli.IntFlag{
		Name:  "http.port",
		Usage: "HTTP-RPC server listening port",
		Value: rpc.DefaultConfig().HttpPort,
	}
	HTTPApiFlag = cli.StringSliceFlag{
		Name:  "http.api",
		Usage: "API's offered over the HTTP-RPC interface",
		Value: cli.NewStringSlice(rpc.DefaultConfig().API...),
	}
	HTTPCORSDomainFlag = cli.StringSliceFlag{
		Name:  "http.corsdomain",
		Usage: "Comma separated list of domains from which to accept cross origin requests (browser enforced)",
	}
	AuthRpcAddr = cli.StringFlag{
		Name:  "authrpc.addr",
		Usage: "HTTP-RPC server listening interface for the Engine API",
		Value: rpc.DefaultConfig().AuthRpcHTTPListenAddress,
	}
	AuthRpcPort = cli.IntFlag{
		Name:  "authrpc.port",
		Usage: "HTTP-RPC server listening port for the Engine API",
		Value: rpc.DefaultConfig().AuthRpcPort,
	}
	JWTSecretPath = cli.StringFlag{
		Name:  "authrpc.jwtsecret",
		Usage: "Path to the token that ensures safe connection between CL and EL",
	}

	// Metrics
	MetricsEnabledFlag = cli.BoolFlag{
		Name:  "metrics",
		Usage: "Enable metrics collection and reporting",
	}
	MetricsHTTPFlag = cli.StringFlag{
		Name:  "metrics.addr",
		Usage: "Enable stand-alone metrics HTTP server listening interface",
		Value: nodecfg.DefaultMetricsAddr,
	}
	MetricsPortFlag = cli.IntFlag{
		Name:  "metrics.port",
		Usage: "Metrics HTTP server listening port",
		Value: nodecfg.DefaultMetricsPort,
	}

	// Pruning
	PruneHistoryFlag = cli.Uint64Flag{
		Name:  "prune.h.older",
		Usage: `Prune receipts older than this number of blocks from the tip of the chain`,
	}
	PruneBlocksFlag = cli.Uint64Flag{
		Name:  "prune.b.older",
		Usage: `Prune block bodies older than this number of blocks from the tip of the chain`,
	}

	// Payload builder
	BuilderMaxBuildTimeFlag = cli.DurationFlag{
		Name:  "builder.maxbuildtime",
		Usage: "Maximum time a payload is built for",
		Value: nodecfg.DefaultBuildTime,
	}

	// Debug
	DebugTipFlag = cli.StringFlag{
		Name:  "debug.tip",
		Usage: "Block hash to sync to without a consensus layer",
	}
	DebugMaxBlockFlag = cli.Uint64Flag{
		Name:  "debug.max-block",
		Usage: "Stop the sync pipeline at this block",
	}
	DebugTerminateFlag = cli.BoolFlag{
		Name:  "debug.terminate",
		Usage: "Stop the process once the consensus engine exited",
	}
)

var DefaultFlags = append([]cli.Flag{
	&DataDirFlag,
	&ChainFlag,
	&DevFlag,
	&InstanceFlag,
	&ConfigFlag,
	&NodeConfigFlag,
	&ListenPortFlag,
	&MaxPeersFlag,
	&TrustedPeersFlag,
	&BootnodesFlag,
	&PeersResolveTimeoutFlag,
	&HTTPEnabledFlag,
	&HTTPListenAddrFlag,
	&HTTPPortFlag,
	&HTTPApiFlag,
	&HTTPCORSDomainFlag,
	&AuthRpcAddr,
	&AuthRpcPort,
	&JWTSecretPath,
	&MetricsEnabledFlag,
	&MetricsHTTPFlag,
	&MetricsPortFlag,
	&PruneHistoryFlag,
	&PruneBlocksFlag,
	&BuilderMaxBuildTimeFlag,
	&DebugTipFlag,
	&DebugMaxBlockFlag,
	&DebugTerminateFlag,
}, logging.Flags...)

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "erigon-data"
	}
	return filepath.Join(home, ".local", "share", "erigon")
}

// NewNodeConfigUrfave builds the node config from the command line.
func NewNodeConfigUrfave(ctx *cli.Context) (*nodecfg.Config, error) {
	cfg := nodecfg.DefaultConfig(ctx.String(DataDirFlag.Name))
	cfg.Chain = ctx.String(ChainFlag.Name)
	cfg.Dev = ctx.Bool(DevFlag.Name)
	if cfg.Dev {
		cfg.Chain = networkname.Dev
	}
	cfg.Instance = uint16(ctx.Uint(InstanceFlag.Name))
	cfg.ConfigPath = ctx.String(NodeConfigFlag.Name)

	if err := setPeers(ctx, &cfg.Peers); err != nil {
		return nil, err
	}
	setRpc(ctx, &cfg.Http)
	setMetrics(ctx, &cfg.Metrics)
	cfg.BuilderMaxBuildTime = ctx.Duration(BuilderMaxBuildTimeFlag.Name)

	mode, err := prune.FromCli(ctx.Uint64(PruneHistoryFlag.Name), ctx.Uint64(PruneBlocksFlag.Name))
	if err != nil {
		return nil, err
	}
	cfg.Prune = mode

	if err := setDebug(ctx, &cfg.Debug); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setPeers(ctx *cli.Context, cfg *nodecfg.PeersConfig) error {
	cfg.ListenPort = ctx.Int(ListenPortFlag.Name)
	cfg.MaxPeers = ctx.Int(MaxPeersFlag.Name)
	cfg.TrustedPeers = ctx.StringSlice(TrustedPeersFlag.Name)
	cfg.Bootnodes = ctx.StringSlice(BootnodesFlag.Name)
	cfg.ResolveTimeout = ctx.Duration(PeersResolveTimeoutFlag.Name)
	if cfg.ResolveTimeout <= 0 {
		return fmt.Errorf("invalid --%s %s: must be positive", PeersResolveTimeoutFlag.Name, cfg.ResolveTimeout)
	}
	return nil
}

func setRpc(ctx *cli.Context, cfg *rpc.Config) {
	cfg.HttpEnabled = ctx.Bool(HTTPEnabledFlag.Name)
	cfg.HttpListenAddress = ctx.String(HTTPListenAddrFlag.Name)
	cfg.HttpPort = ctx.Int(HTTPPortFlag.Name)
	cfg.API = ctx.StringSlice(HTTPApiFlag.Name)
	cfg.HttpCORSDomain = ctx.StringSlice(HTTPCORSDomainFlag.Name)
	cfg.AuthRpcHTTPListenAddress = ctx.String(AuthRpcAddr.Name)
	cfg.AuthRpcPort = ctx.Int(AuthRpcPort.Name)
	cfg.JWTSecretPath = ctx.String(JWTSecretPath.Name)
}

func setMetrics(ctx *cli.Context, cfg *nodecfg.MetricsConfig) {
	cfg.Enabled = ctx.Bool(MetricsEnabledFlag.Name)
	cfg.Addr = ctx.String(MetricsHTTPFlag.Name)
	cfg.Port = ctx.Int(MetricsPortFlag.Name)
}

func setDebug(ctx *cli.Context, cfg *nodecfg.DebugConfig) error {
	if tip := ctx.String(DebugTipFlag.Name); tip != "" {
		var hash types.Hash
		if err := hash.UnmarshalText([]byte(tip)); err != nil {
			return fmt.Errorf("invalid --%s %q: %w", DebugTipFlag.Name, tip, err)
		}
		cfg.Tip = &hash
	}
	if ctx.IsSet(DebugMaxBlockFlag.Name) {
		n := ctx.Uint64(DebugMaxBlockFlag.Name)
		cfg.MaxBlock = &n
	}
	cfg.Terminate = ctx.Bool(DebugTerminateFlag.Name)
	return nil
}
