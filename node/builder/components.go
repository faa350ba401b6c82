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

package builder

import (
	"errors"
	"fmt"
	"io"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-launch/execution/builder"
	"github.com/erigontech/erigon-launch/execution/chain"
	"github.com/erigontech/erigon-launch/execution/provider"
	"github.com/erigontech/erigon-launch/execution/stagedsync"
	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/kv"
	"github.com/erigontech/erigon-launch/node/nodecfg"
	"github.com/erigontech/erigon-launch/node/tasks"
	"github.com/erigontech/erigon-launch/p2p"
)

// TxPool is what the node needs from a transaction pool.
type TxPool interface {
	Status() (pending, queued int)
	Pending(limit int) []*types.Transaction
}

// BlockExecutor is what the node needs from a block executor.
type BlockExecutor interface {
	stagedsync.BlockExecutor
}

// NetworkHandle is the running p2p network.
type NetworkHandle interface {
	PeerCount() int
	Events() <-chan p2p.PeerEvent
	FetchClient() p2p.FetchClient
}

// Components is one resolved set of node components. The type parameters fix
// the pool, EVM config and executor implementations at compile time.
type Components[Pool TxPool, Evm any, Exec BlockExecutor] struct {
	Pool           Pool
	EvmConfig      Evm
	Executor       Exec
	Network        NetworkHandle
	PayloadBuilder *builder.PayloadBuilderHandle
}

// BuilderContext is what component builders get to see.
type BuilderContext[DB kv.RwDB] struct {
	DB           DB
	Head         types.Head
	ChainSpec    *chain.Spec
	Provider     *provider.BlockchainProvider
	Config       *nodecfg.Config
	Toml         nodecfg.TomlConfig
	Peers        ResolvedPeers
	TaskExecutor *tasks.Executor
	Logger       log.Logger
}

type PoolBuilder[DB kv.RwDB, Pool TxPool] interface {
	BuildPool(ctx *BuilderContext[DB]) (Pool, error)
}

type ExecutorBuilder[DB kv.RwDB, Evm any, Exec BlockExecutor] interface {
	BuildEvm(ctx *BuilderContext[DB]) (Evm, Exec, error)
}

type NetworkBuilder[DB kv.RwDB, Pool TxPool] interface {
	BuildNetwork(ctx *BuilderContext[DB], pool Pool) (NetworkHandle, error)
}

type PayloadServiceBuilder[DB kv.RwDB, Pool TxPool, Exec BlockExecutor] interface {
	SpawnPayloadService(ctx *BuilderContext[DB], pool Pool, executor Exec) (*builder.PayloadBuilderHandle, error)
}

type PoolBuilderFunc[DB kv.RwDB, Pool TxPool] func(ctx *BuilderContext[DB]) (Pool, error)

func (f PoolBuilderFunc[DB, Pool]) BuildPool(ctx *BuilderContext[DB]) (Pool, error) { return f(ctx) }

type ExecutorBuilderFunc[DB kv.RwDB, Evm any, Exec BlockExecutor] func(ctx *BuilderContext[DB]) (Evm, Exec, error)

func (f ExecutorBuilderFunc[DB, Evm, Exec]) BuildEvm(ctx *BuilderContext[DB]) (Evm, Exec, error) {
	return f(ctx)
}

type NetworkBuilderFunc[DB kv.RwDB, Pool TxPool] func(ctx *BuilderContext[DB], pool Pool) (NetworkHandle, error)

func (f NetworkBuilderFunc[DB, Pool]) BuildNetwork(ctx *BuilderContext[DB], pool Pool) (NetworkHandle, error) {
	return f(ctx, pool)
}

type PayloadServiceBuilderFunc[DB kv.RwDB, Pool TxPool, Exec BlockExecutor] func(ctx *BuilderContext[DB], pool Pool, executor Exec) (*builder.PayloadBuilderHandle, error)

func (f PayloadServiceBuilderFunc[DB, Pool, Exec]) SpawnPayloadService(ctx *BuilderContext[DB], pool Pool, executor Exec) (*builder.PayloadBuilderHandle, error) {
	return f(ctx, pool, executor)
}

// ComponentsBuilder turns a builder context into a full component set.
type ComponentsBuilder[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor] interface {
	BuildComponents(ctx *BuilderContext[DB]) (*Components[Pool, Evm, Exec], error)
}

// ComponentKind names one step of a Composer.
type ComponentKind uint8

const (
	PoolComponent ComponentKind = iota
	ExecutorComponent
	NetworkComponent
	PayloadComponent
)

func (k ComponentKind) String() string {
	switch k {
	case PoolComponent:
		return "pool"
	case ExecutorComponent:
		return "executor"
	case NetworkComponent:
		return "network"
	case PayloadComponent:
		return "payload"
	default:
		return fmt.Sprintf("component(%d)", uint8(k))
	}
}

// DefaultComponentOrder is used when a Composer has no Order.
var DefaultComponentOrder = []ComponentKind{PoolComponent, ExecutorComponent, NetworkComponent, PayloadComponent}

var ErrInvalidComponentOrder = errors.New("invalid component order")

// componentDeps lists what each step consumes.
var componentDeps = map[ComponentKind][]ComponentKind{
	NetworkComponent: {PoolComponent},
	PayloadComponent: {PoolComponent, ExecutorComponent},
}

func validateComponentOrder(order []ComponentKind) error {
	if len(order) != len(DefaultComponentOrder) {
		return fmt.Errorf("%w: want %d steps, got %d", ErrInvalidComponentOrder, len(DefaultComponentOrder), len(order))
	}
	seen := make(map[ComponentKind]bool, len(order))
	for _, kind := range order {
		if kind > PayloadComponent {
			return fmt.Errorf("%w: unknown %s", ErrInvalidComponentOrder, kind)
		}
		if seen[kind] {
			return fmt.Errorf("%w: %s listed twice", ErrInvalidComponentOrder, kind)
		}
		for _, dep := range componentDeps[kind] {
			if !seen[dep] {
				return fmt.Errorf("%w: %s needs %s first", ErrInvalidComponentOrder, kind, dep)
			}
		}
		seen[kind] = true
	}
	return nil
}

// Composer builds the pool, the EVM config with its executor, the network
// and the payload service. Order picks the sequence, defaulting to
// DefaultComponentOrder; a step may only run once the parts it consumes are
// built. Either all of them are returned or none: on failure every part
// built so far that implements io.Closer is closed, newest first. A network
// that is already running stops when closed.
type Composer[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor] struct {
	Pool     PoolBuilder[DB, Pool]
	Executor ExecutorBuilder[DB, Evm, Exec]
	Network  NetworkBuilder[DB, Pool]
	Payload  PayloadServiceBuilder[DB, Pool, Exec]
	Order    []ComponentKind
}

func (c Composer[DB, Pool, Evm, Exec]) BuildComponents(ctx *BuilderContext[DB]) (_ *Components[Pool, Evm, Exec], err error) {
	if c.Pool == nil || c.Executor == nil || c.Network == nil || c.Payload == nil {
		return nil, errors.New("components builder is missing a part")
	}
	order := c.Order
	if order == nil {
		order = DefaultComponentOrder
	}
	if err := validateComponentOrder(order); err != nil {
		return nil, err
	}

	var built []any
	defer func() {
		if err == nil {
			return
		}
		for i := len(built) - 1; i >= 0; i-- {
			if closer, ok := built[i].(io.Closer); ok {
				if cerr := closer.Close(); cerr != nil {
					ctx.Logger.Warn("failed to close partially built component", "err", cerr)
				}
			}
		}
	}()

	components := &Components[Pool, Evm, Exec]{}
	for _, kind := range order {
		switch kind {
		case PoolComponent:
			pool, err := c.Pool.BuildPool(ctx)
			if err != nil {
				return nil, fmt.Errorf("build pool: %w", err)
			}
			components.Pool = pool
			built = append(built, pool)
		case ExecutorComponent:
			evm, executor, err := c.Executor.BuildEvm(ctx)
			if err != nil {
				return nil, fmt.Errorf("build executor: %w", err)
			}
			components.EvmConfig, components.Executor = evm, executor
			built = append(built, evm, executor)
		case NetworkComponent:
			network, err := c.Network.BuildNetwork(ctx, components.Pool)
			if err != nil {
				return nil, fmt.Errorf("build network: %w", err)
			}
			components.Network = network
			built = append(built, network)
		case PayloadComponent:
			payloads, err := c.Payload.SpawnPayloadService(ctx, components.Pool, components.Executor)
			if err != nil {
				return nil, fmt.Errorf("spawn payload service: %w", err)
			}
			components.PayloadBuilder = payloads
		}
	}
	return components, nil
}

// NodeAdapter is the built components together with storage and provider.
type NodeAdapter[DB kv.RwDB, Pool TxPool, Evm any, Exec BlockExecutor] struct {
	Components   *Components[Pool, Evm, Exec]
	DB           DB
	Provider     *provider.BlockchainProvider
	TaskExecutor *tasks.Executor
}
