// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package nodenet

import (
	"context"
	"errors"
	"time"
)

const (
	// Propose output only carries the leading characters of a block hash so
	// block identity across the harness is decided by this many characters.
	HashPrefixLen = 10

	// DeploySuccessMarker is present in the client output of a deploy that
	// was accepted by the node.
	DeploySuccessMarker = "Success"

	DefaultNodeTimeout = 60 * time.Second
)

var (
	ErrUnexpectedProposeOutput = errors.New("unexpected propose output")
	ErrClientCommand           = errors.New("client command failed")
)

// HashPrefix is the comparison key of a block.
type HashPrefix string

// ToHashPrefix truncates a full or partial block hash to its comparison key.
func ToHashPrefix(hash string) HashPrefix {
	if len(hash) > HashPrefixLen {
		hash = hash[:HashPrefixLen]
	}
	return HashPrefix(hash)
}

// KeyPair names the signing key files used for a deploy.
type KeyPair struct {
	Private string `yaml:"private" validate:"required"`
	Public  string `yaml:"public"  validate:"required"`
}

// DefaultKeyPair is the genesis validator key pair every test node is
// configured with.
func DefaultKeyPair() KeyPair {
	return KeyPair{
		Private: "validator-0-private.pem",
		Public:  "validator-0-public.pem",
	}
}

type DeployRequest struct {
	Session string
	Payment string
	Keys    KeyPair
	// Optional. Nil lets the client pick the next nonce.
	Nonce *uint64
}

// BlockRecord is a single entry of a node's block list.
type BlockRecord struct {
	Hash        string
	Parents     []string
	Rank        uint64
	ValidatorID string
	DeployCount int
}

func (b BlockRecord) Prefix() HashPrefix {
	return ToHashPrefix(b.Hash)
}

// Node is a capability handle on a running node. The node's lifecycle is
// owned elsewhere; implementations only talk to it.
type Node interface {
	// Name uniquely identifies the node within its network.
	Name() string
	// Timeout is the node-specific budget for waiting on its state.
	Timeout() time.Duration

	// Deploy submits a deployment and returns the raw client output.
	Deploy(ctx context.Context, req DeployRequest) (string, error)
	// Propose asks the node to package pending deploys into a block and
	// returns the raw client output.
	Propose(ctx context.Context) (string, error)
	// ShowBlocks returns up to [limit] blocks known to the node.
	ShowBlocks(ctx context.Context, limit int) ([]BlockRecord, error)
	// BlockCount returns the number of blocks known to the node.
	BlockCount(ctx context.Context) (int, error)
	// PeerCount returns the number of peers the node is connected to.
	PeerCount(ctx context.Context) (int, error)
}

// Names returns the names of the provided nodes in order.
func Names(nodes []Node) []string {
	names := make([]string, len(nodes))
	for i, node := range nodes {
		names[i] = node.Name()
	}
	return names
}
