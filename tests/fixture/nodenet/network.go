// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package nodenet

import (
	"fmt"

	"github.com/ava-labs/blockprop/utils/logging"
)

// Network is the set of nodes under test. Connectivity between them is
// shaped separately by the topology package.
type Network struct {
	// Identifies a single run, e.g. for naming links.
	UUID string
	Name string

	Nodes []Node
}

// NewCLINetwork returns a network whose nodes are driven by the command-line
// client described in [config].
func NewCLINetwork(log logging.Logger, config *NetworkConfig) *Network {
	nodes := make([]Node, len(config.Nodes))
	for i, nodeConfig := range config.Nodes {
		nodes[i] = NewCLINode(log, config.Client, nodeConfig)
	}
	return &Network{
		UUID:  config.UUID,
		Name:  config.Name,
		Nodes: nodes,
	}
}

// GetNode returns the node with the given name.
func (n *Network) GetNode(name string) (Node, error) {
	for _, node := range n.Nodes {
		if node.Name() == name {
			return node, nil
		}
	}
	return nil, fmt.Errorf("node %q not found in network %q", name, n.Name)
}

// IndexOf returns the position of the named node, or -1.
func (n *Network) IndexOf(name string) int {
	for i, node := range n.Nodes {
		if node.Name() == name {
			return i
		}
	}
	return -1
}
