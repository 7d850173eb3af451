// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scenario

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ava-labs/blockprop/tests/fixture/deploy"
	"github.com/ava-labs/blockprop/tests/fixture/poll"
	"github.com/ava-labs/blockprop/tests/fixture/topology"
)

const (
	HelloName         = "test_helloname.wasm"
	HelloWorld        = "test_helloworld.wasm"
	MailingListDefine = "test_mailinglistdefine.wasm"

	DefaultGenesisPollAttempts = 1
	DefaultPeerPollAttempts    = 60
	DefaultPeerPollDelay       = time.Second
)

var validate = validator.New()

// RetryParams configures proposal retries during the load phase.
type RetryParams struct {
	MaxAttempts int           `yaml:"maxAttempts" validate:"min=1"`
	Delay       time.Duration `yaml:"delay"       validate:"min=0"`
}

func (p RetryParams) Policy() deploy.RetryPolicy {
	return deploy.RetryPolicy{
		MaxAttempts: p.MaxAttempts,
		Delay:       p.Delay,
	}
}

// BaselineParams configures BaselinePropagation.
type BaselineParams struct {
	// Contract batches run by every node. Each batch ends with a proposal.
	Batches [][]string `yaml:"batches" validate:"required,min=1,dive,min=1,dive,required"`
	// Block count every node must reach, genesis included.
	ExpectedBlocks      int `yaml:"expectedBlocks"      validate:"min=1"`
	GenesisPollAttempts int `yaml:"genesisPollAttempts" validate:"min=1"`
	// Defaults to twice the expected block count.
	PollAttempts int `yaml:"pollAttempts" validate:"min=0"`
	// Defaults to a hundred times the expected block count.
	ShowBlocksDepth int         `yaml:"showBlocksDepth" validate:"min=0"`
	Retry           RetryParams `yaml:"retry"`
}

func DefaultBaselineParams() BaselineParams {
	return BaselineParams{
		Batches:             [][]string{{HelloName}, {HelloWorld}},
		ExpectedBlocks:      7,
		GenesisPollAttempts: DefaultGenesisPollAttempts,
		Retry: RetryParams{
			MaxAttempts: deploy.DefaultMaxProposeAttempts,
			Delay:       deploy.DefaultProposeRetryDelay,
		},
	}
}

func (p BaselineParams) pollAttempts() int {
	if p.PollAttempts > 0 {
		return p.PollAttempts
	}
	return 2 * p.ExpectedBlocks
}

func (p BaselineParams) showBlocksDepth() int {
	if p.ShowBlocksDepth > 0 {
		return p.ShowBlocksDepth
	}
	return 100 * p.ExpectedBlocks
}

// InfectionParams configures PartialMeshInfection.
type InfectionParams struct {
	// Links present while the genesis block is distributed. Empty means
	// fully connected.
	InitialEdges []topology.Edge `yaml:"initialEdges"`
	// Link removed after genesis so that Source and Target are only
	// connected through other nodes.
	Severed  topology.Edge `yaml:"severed"`
	Source   int           `yaml:"source"   validate:"min=0"`
	Target   int           `yaml:"target"   validate:"min=0,nefield=Source"`
	Contract string        `yaml:"contract" validate:"required"`

	ExpectedBlocks      int `yaml:"expectedBlocks"      validate:"min=1"`
	GenesisPollAttempts int `yaml:"genesisPollAttempts" validate:"min=1"`
	PollAttempts        int `yaml:"pollAttempts"        validate:"min=1"`
	ShowBlocksDepth     int `yaml:"showBlocksDepth"     validate:"min=1"`
}

// DefaultInfectionParams returns the parameters of a three node chain in
// which the first node's block has to reach the last one through the middle
// node.
func DefaultInfectionParams() InfectionParams {
	return InfectionParams{
		Severed:             topology.NewEdge(0, 2),
		Source:              0,
		Target:              2,
		Contract:            HelloName,
		ExpectedBlocks:      2,
		GenesisPollAttempts: DefaultGenesisPollAttempts,
		PollAttempts:        2,
		ShowBlocksDepth:     2,
	}
}

// PartitionParams configures PartitionAndRejoin.
type PartitionParams struct {
	// The two sides of the partition. Empty means the first and second half
	// of the network.
	Sides [][]int `yaml:"sides" validate:"omitempty,len=2,dive,min=1"`
	// One contract per side, then the contract proposed after the rejoin.
	Contracts   []string `yaml:"contracts"   validate:"len=3,dive,required"`
	Nonce       uint64   `yaml:"nonce"`
	RejoinNonce uint64   `yaml:"rejoinNonce"`

	// Block count of every node while partitioned.
	ExpectedPartitioned int `yaml:"expectedPartitioned" validate:"min=1"`
	// Block count of the side that proposes after the rejoin.
	ExpectedProposerSide int `yaml:"expectedProposerSide" validate:"min=1"`
	// Block count of the other side.
	ExpectedOtherSide int `yaml:"expectedOtherSide" validate:"min=1"`

	GenesisPollAttempts int `yaml:"genesisPollAttempts" validate:"min=1"`
	// Multiplies each node's timeout budget for block count polls.
	TimeoutFactor    int           `yaml:"timeoutFactor"    validate:"min=1"`
	PeerPollAttempts int           `yaml:"peerPollAttempts" validate:"min=1"`
	PeerPollDelay    time.Duration `yaml:"peerPollDelay"    validate:"min=0"`
}

func DefaultPartitionParams() PartitionParams {
	return PartitionParams{
		Contracts:            []string{HelloName, MailingListDefine, HelloWorld},
		Nonce:                1,
		RejoinNonce:          2,
		ExpectedPartitioned:  2,
		ExpectedProposerSide: 3,
		ExpectedOtherSide:    4,
		GenesisPollAttempts:  DefaultGenesisPollAttempts,
		TimeoutFactor:        2,
		PeerPollAttempts:     DefaultPeerPollAttempts,
		PeerPollDelay:        DefaultPeerPollDelay,
	}
}

// sides returns the configured sides or splits [size] nodes in two halves.
func (p PartitionParams) sides(size int) ([]int, []int) {
	if len(p.Sides) == 2 {
		return p.Sides[0], p.Sides[1]
	}
	var first, second []int
	for i := 0; i < size; i++ {
		if i < size/2 {
			first = append(first, i)
		} else {
			second = append(second, i)
		}
	}
	return first, second
}

// budget scales a node's [timeout] budget by the configured factor.
func (p PartitionParams) budget(timeout time.Duration, attempts int) poll.Budget {
	if attempts <= 1 {
		return poll.Attempts(attempts)
	}
	return poll.Budget{
		Attempts: attempts,
		Delay:    timeout * time.Duration(p.TimeoutFactor) / time.Duration(attempts-1),
	}
}

// Params groups the parameters of every scenario.
type Params struct {
	Baseline  BaselineParams  `yaml:"baseline"`
	Infection InfectionParams `yaml:"infection"`
	Partition PartitionParams `yaml:"partition"`
}

func DefaultParams() Params {
	return Params{
		Baseline:  DefaultBaselineParams(),
		Infection: DefaultInfectionParams(),
		Partition: DefaultPartitionParams(),
	}
}

// ParseParams overlays the YAML document [bytes] on the default parameters.
func ParseParams(bytes []byte) (Params, error) {
	params := DefaultParams()
	if err := yaml.Unmarshal(bytes, &params); err != nil {
		return Params{}, fmt.Errorf("failed to unmarshal scenario params: %w", err)
	}
	if err := params.Validate(); err != nil {
		return Params{}, err
	}
	return params, nil
}

// LoadParams reads scenario parameters from [path].
func LoadParams(path string) (Params, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("failed to read scenario params: %w", err)
	}
	return ParseParams(bytes)
}

func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid scenario params: %w", err)
	}
	return nil
}
