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

package chain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-launch/execution/types"
	"github.com/erigontech/erigon-launch/params/networkname"
)

// Hardfork activates either at a block number or at a timestamp.
type Hardfork struct {
	Name  string  `json:"name"`
	Block *uint64 `json:"block,omitempty"`
	Time  *uint64 `json:"time,omitempty"`
}

// Config is the persisted part of the chain specification.
type Config struct {
	ChainName string     `json:"chainName"`
	ChainID   uint64     `json:"chainId"`
	Hardforks []Hardfork `json:"hardforks"`
}

func (c *Config) String() string {
	return fmt.Sprintf("{ChainID: %d, Name: %s, Forks: %d}", c.ChainID, c.ChainName, len(c.Hardforks))
}

func (c *Config) Marshal() ([]byte, error) { return json.Marshal(c) }

func UnmarshalConfig(data []byte) (*Config, error) {
	c := new(Config)
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Genesis specifies the header fields of the genesis block.
type Genesis struct {
	Timestamp  uint64
	ExtraData  []byte
	GasLimit   uint64
	Difficulty *uint256.Int
	BaseFee    *uint256.Int
	Coinbase   types.Address
}

func (g *Genesis) ToHeader() *types.Header {
	h := &types.Header{
		Number:     0,
		Time:       g.Timestamp,
		Extra:      g.ExtraData,
		GasLimit:   g.GasLimit,
		Difficulty: new(uint256.Int),
		Coinbase:   g.Coinbase,
	}
	if g.Difficulty != nil {
		h.Difficulty.Set(g.Difficulty)
	}
	if g.BaseFee != nil {
		h.BaseFee = new(uint256.Int).Set(g.BaseFee)
	}
	return h
}

func (g *Genesis) ToBlock() *types.Block { return types.NewBlockWithHeader(g.ToHeader()) }

// Spec ties a chain config to its genesis.
type Spec struct {
	Config  *Config
	Genesis *Genesis

	genesisHash types.Hash
}

func NewSpec(config *Config, genesis *Genesis) *Spec {
	return &Spec{Config: config, Genesis: genesis, genesisHash: genesis.ToHeader().Hash()}
}

func (s *Spec) ChainID() uint64              { return s.Config.ChainID }
func (s *Spec) Name() string                 { return s.Config.ChainName }
func (s *Spec) GenesisHash() types.Hash      { return s.genesisHash }
func (s *Spec) GenesisHeader() *types.Header { return s.Genesis.ToHeader() }

// IsDev reports whether this is the ephemeral development chain.
func (s *Spec) IsDev() bool { return s.Config.ChainName == networkname.Dev }

// IsActiveAtTime reports whether the timestamp based fork called name is active at time.
func (s *Spec) IsActiveAtTime(name string, time uint64) bool {
	for _, f := range s.Config.Hardforks {
		if f.Name == name && f.Time != nil {
			return *f.Time <= time
		}
	}
	return false
}

func (s *Spec) IsShanghai(time uint64) bool { return s.IsActiveAtTime("Shanghai", time) }
func (s *Spec) IsCancun(time uint64) bool   { return s.IsActiveAtTime("Cancun", time) }

// DisplayHardforks renders the fork schedule for the startup banner.
func (s *Spec) DisplayHardforks() string {
	var blockForks, timeForks []string
	forks := append([]Hardfork(nil), s.Config.Hardforks...)
	sort.SliceStable(forks, func(i, j int) bool {
		return activation(forks[i]) < activation(forks[j])
	})
	for _, f := range forks {
		switch {
		case f.Block != nil:
			blockForks = append(blockForks, fmt.Sprintf("- %s @%d", f.Name, *f.Block))
		case f.Time != nil:
			timeForks = append(timeForks, fmt.Sprintf("- %s @%d", f.Name, *f.Time))
		}
	}
	var b strings.Builder
	b.WriteString("Pre-merge hard forks (block based):\n")
	b.WriteString(strings.Join(blockForks, "\n"))
	if len(timeForks) > 0 {
		b.WriteString("\nPost-merge hard forks (timestamp based):\n")
		b.WriteString(strings.Join(timeForks, "\n"))
	}
	return b.String()
}

func activation(f Hardfork) uint64 {
	if f.Block != nil {
		return *f.Block
	}
	// timestamps sort after block numbers
	return 1<<63 + *f.Time
}

func blockFork(name string, n uint64) Hardfork { return Hardfork{Name: name, Block: &n} }
func timeFork(name string, ts uint64) Hardfork { return Hardfork{Name: name, Time: &ts} }

var londonBaseFee = uint256.NewInt(1_000_000_000)

func MainnetSpec() *Spec {
	return NewSpec(&Config{
		ChainName: networkname.Mainnet,
		ChainID:   1,
		Hardforks: []Hardfork{
			blockFork("Frontier", 0),
			blockFork("Homestead", 1_150_000),
			blockFork("Byzantium", 4_370_000),
			blockFork("London", 12_965_000),
			timeFork("Shanghai", 1_681_338_455),
			timeFork("Cancun", 1_710_338_135),
		},
	}, &Genesis{
		Timestamp:  0,
		ExtraData:  types.HexToHash("0x11bbe8db4e347b4e8c937c1c8370e4b5ed33adb3db69cbdb7a38e1e50b1b82fa").Bytes(),
		GasLimit:   5000,
		Difficulty: uint256.NewInt(17_179_869_184),
	})
}

func SepoliaSpec() *Spec {
	return NewSpec(&Config{
		ChainName: networkname.Sepolia,
		ChainID:   11_155_111,
		Hardforks: []Hardfork{
			blockFork("Frontier", 0),
			blockFork("London", 0),
			timeFork("Shanghai", 1_677_557_088),
			timeFork("Cancun", 1_706_655_072),
		},
	}, &Genesis{
		Timestamp:  1_633_267_481,
		ExtraData:  []byte("Sepolia, Athens, Attica, Greece!"),
		GasLimit:   30_000_000,
		Difficulty: uint256.NewInt(0x20000),
		BaseFee:    londonBaseFee,
	})
}

func HoleskySpec() *Spec {
	return NewSpec(&Config{
		ChainName: networkname.Holesky,
		ChainID:   17_000,
		Hardforks: []Hardfork{
			blockFork("Frontier", 0),
			blockFork("London", 0),
			timeFork("Shanghai", 1_696_000_704),
			timeFork("Cancun", 1_707_305_664),
		},
	}, &Genesis{
		Timestamp:  1_695_902_100,
		GasLimit:   25_000_000,
		Difficulty: uint256.NewInt(1),
		BaseFee:    londonBaseFee,
	})
}

func DevSpec() *Spec {
	return NewSpec(&Config{
		ChainName: networkname.Dev,
		ChainID:   1337,
		Hardforks: []Hardfork{
			blockFork("Frontier", 0),
			blockFork("London", 0),
			timeFork("Shanghai", 0),
			timeFork("Cancun", 0),
		},
	}, &Genesis{
		GasLimit:   30_000_000,
		Difficulty: uint256.NewInt(0),
		BaseFee:    londonBaseFee,
	})
}

// SpecByName returns the preset for a known network name.
func SpecByName(name string) (*Spec, error) {
	switch name {
	case "", networkname.Mainnet:
		return MainnetSpec(), nil
	case networkname.Sepolia:
		return SepoliaSpec(), nil
	case networkname.Holesky:
		return HoleskySpec(), nil
	case networkname.Dev:
		return DevSpec(), nil
	default:
		return nil, fmt.Errorf("unsupported chain %q, supported: %s", name, strings.Join(networkname.All, ","))
	}
}
