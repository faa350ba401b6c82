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
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/ledgerwatch/log/v3"
	"github.com/urfave/cli/v2"

	"github.com/erigontech/erigon-launch/common/terminate"
	"github.com/erigontech/erigon-launch/eth"
	"github.com/erigontech/erigon-launch/execution/evm"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/kv/bolt"
	nodebuilder "github.com/erigontech/erigon-launch/node/builder"
	"github.com/erigontech/erigon-launch/node/tasks"
	"github.com/erigontech/erigon-launch/params"
	turbodebug "github.com/erigontech/erigon-launch/turbo/debug"
	"github.com/erigontech/erigon-launch/turbo/logging"
	"github.com/erigontech/erigon-launch/txnprovider/txpool"
)

const shutdownTimeout = 10 * time.Second

func main() {
	defer func() {
		panicResult := recover()
		if panicResult == nil {
			return
		}

		log.Error("catch panic", "err", panicResult, "stack", string(debug.Stack()))
		os.Exit(1)
	}()

	app := makeApp(runErigon, DefaultFlags)
	if err := app.Run(os.Args); err != nil {
		_, printErr := fmt.Fprintln(os.Stderr, err)
		if printErr != nil {
			log.Warn("Fprintln error", "err", printErr)
		}
		os.Exit(1)
	}
}

func makeApp(action cli.ActionFunc, cliFlags []cli.Flag) *cli.App {
	app := cli.NewApp()
	app.Name = "erigon"
	app.Usage = "Launch an Ethereum execution node"
	app.Version = params.VersionWithCommit(params.GitCommit)
	app.Flags = cliFlags
	app.Action = action
	return app
}

func runErigon(cliCtx *cli.Context) error {
	configFilePath := cliCtx.String(ConfigFlag.Name)
	if configFilePath != "" {
		if err := setFlagsFromConfigFile(cliCtx, configFilePath); err != nil {
			log.Warn("failed setting config flags from yaml/toml file", "err", err)
		}
	}

	logger := logging.SetupLoggerCtx("erigon", cliCtx)
	logger.Info("Build info", "git_branch", params.GitBranch, "git_tag", params.GitTag, "git_commit", params.GitCommit)

	nodeCfg, err := NewNodeConfigUrfave(cliCtx)
	if err != nil {
		return err
	}
	if err := nodeCfg.Dirs.MkdirAll(); err != nil {
		return err
	}
	_, lock, err := nodeCfg.Dirs.MustFlock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	db, err := bolt.Open(nodeCfg.Dirs.Chaindata, kv.ChainDB, logger)
	if err != nil {
		return fmt.Errorf("open chaindata: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(cliCtx.Context)
	defer cancel()
	go turbodebug.ListenSignals(ctx, closerFunc(cancel), logger)

	manager := tasks.NewManager(ctx, logger)
	launcher := eth.NewEthNodeLauncher[*bolt.DB, *txpool.TxPool, *evm.Config, *evm.BlockExecutor](manager.Executor(), nodeCfg.Dirs, logger)
	handle, err := eth.EthereumNode(nodebuilder.NewNodeBuilder(nodeCfg, db)).Launch(ctx, launcher)
	if err != nil {
		manager.Shutdown()
		if waitErr := manager.Wait(); waitErr != nil {
			logger.Warn("tasks did not stop cleanly", "err", waitErr)
		}
		return fmt.Errorf("launch node: %w", err)
	}

	runErr := waitForExit(ctx, manager, handle.ExitFuture(), logger)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if handles := handle.Node().RpcServerHandles(); handles != nil {
		if err := handles.Shutdown(shutdownCtx); err != nil {
			logger.Warn("RPC servers did not stop cleanly", "err", err)
		}
	}
	manager.Shutdown()
	if err := manager.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	logger.Info("Node stopped")
	return runErr
}

// waitForExit blocks until the process is interrupted, a critical task fails
// or the consensus engine exits.
func waitForExit(ctx context.Context, manager *tasks.Manager, exit *nodebuilder.ExitFuture, logger log.Logger) error {
	exited := exit.Done()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-manager.Failed():
			if err := manager.Err(); err != nil {
				return err
			}
			return errors.New("critical task failed")
		case <-exited:
			err := exit.Err()
			if err != nil {
				logger.Error("Consensus engine exited", "err", err)
			} else {
				logger.Info("Consensus engine exited")
			}
			if !exit.Terminate() {
				// keep serving RPC until interrupted
				exited = nil
				continue
			}
			go terminate.TryGracefully(ctx, logger)
			return err
		}
	}
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
