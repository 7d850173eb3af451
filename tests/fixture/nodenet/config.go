// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package nodenet

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	// Constants defining the names of shell variables whose value can
	// configure the harness.
	NetworkConfigEnvName = "BLOCKPROP_NETWORK_CONFIG"
	ClientPathEnvName    = "BLOCKPROP_CLIENT_PATH"

	DefaultShowBlocksDepth = 1000
	DefaultPeerGauge       = "peers"
)

var validate = validator.New()

// NetworkConfig describes an already provisioned network of nodes.
//
// Scenarios that change the topology link node containers through dedicated
// docker networks, one per linked pair. The containers must be started
// without any network in common, otherwise unlinking a pair fails. The nodes
// must discover each other as their containers are linked.
type NetworkConfig struct {
	// Uniquely identifies the run. Generated when empty.
	UUID string `yaml:"uuid"`
	// Also used as the prefix of docker networks created for links.
	Name   string       `yaml:"name"   validate:"required,hostname_rfc1123"`
	Client ClientConfig `yaml:"client"`
	Nodes  []NodeConfig `yaml:"nodes"  validate:"required,min=1,unique=Name,dive"`
}

// ClientConfig configures the command-line client used to talk to nodes.
type ClientConfig struct {
	Path         string  `yaml:"path"         validate:"required"`
	ContractsDir string  `yaml:"contractsDir"`
	KeysDir      string  `yaml:"keysDir"`
	Keys         KeyPair `yaml:"keys"`
	// Address deploys are sent from. Derived by the client when empty.
	From            string `yaml:"from"`
	ShowBlocksDepth int    `yaml:"showBlocksDepth" validate:"gte=0"`
}

type NodeConfig struct {
	Name string `yaml:"name" validate:"required"`
	// Container hosting the node, used to mutate links.
	Container  string        `yaml:"container"`
	Host       string        `yaml:"host"       validate:"required,hostname_rfc1123|ip"`
	Port       uint16        `yaml:"port"       validate:"required"`
	MetricsURL string        `yaml:"metricsURL" validate:"omitempty,url"`
	PeerGauge  string        `yaml:"peerGauge"`
	Timeout    time.Duration `yaml:"timeout"    validate:"gte=0"`
}

// ReadNetworkConfig reads and validates a network description from [path].
func ReadNetworkConfig(path string) (*NetworkConfig, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read network config: %w", err)
	}
	return ParseNetworkConfig(bytes)
}

// ParseNetworkConfig unmarshals, defaults and validates a network description.
func ParseNetworkConfig(bytes []byte) (*NetworkConfig, error) {
	config := &NetworkConfig{}
	if err := yaml.Unmarshal(bytes, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal network config: %w", err)
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *NetworkConfig) SetDefaults() {
	if len(c.UUID) == 0 {
		c.UUID = uuid.NewString()
	}
	if len(c.Client.Path) == 0 {
		c.Client.Path = os.Getenv(ClientPathEnvName)
	}
	if c.Client.Keys == (KeyPair{}) {
		c.Client.Keys = DefaultKeyPair()
	}
	if c.Client.ShowBlocksDepth == 0 {
		c.Client.ShowBlocksDepth = DefaultShowBlocksDepth
	}
	for i := range c.Nodes {
		node := &c.Nodes[i]
		if node.Timeout == 0 {
			node.Timeout = DefaultNodeTimeout
		}
		if len(node.PeerGauge) == 0 {
			node.PeerGauge = DefaultPeerGauge
		}
		if len(node.Container) == 0 {
			node.Container = node.Name
		}
	}
}

func (c *NetworkConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid network config: %w", err)
	}
	return nil
}

// Write serializes the config to [path].
func (c *NetworkConfig) Write(path string) error {
	bytes, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal network config: %w", err)
	}
	if err := os.WriteFile(path, bytes, 0o600); err != nil {
		return fmt.Errorf("failed to write network config: %w", err)
	}
	return nil
}
