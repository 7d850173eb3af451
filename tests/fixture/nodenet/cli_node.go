// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package nodenet

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-cmd/cmd"
	"go.uber.org/zap"

	"github.com/ava-labs/blockprop/utils/logging"
)

var (
	_ Node = (*CLINode)(nil)

	errNoMetricsURL = errors.New("no metrics URL configured")
)

// CLINode talks to a node through the external command-line client.
type CLINode struct {
	log    logging.Logger
	client ClientConfig
	config NodeConfig
}

func NewCLINode(log logging.Logger, client ClientConfig, config NodeConfig) *CLINode {
	return &CLINode{
		log:    log.With(zap.String("node", config.Name)),
		client: client,
		config: config,
	}
}

func (n *CLINode) Name() string {
	return n.config.Name
}

func (n *CLINode) Timeout() time.Duration {
	return n.config.Timeout
}

// Container returns the name of the container hosting the node.
func (n *CLINode) Container() string {
	return n.config.Container
}

func (n *CLINode) Deploy(ctx context.Context, req DeployRequest) (string, error) {
	return n.run(ctx, n.deployArgs(req)...)
}

func (n *CLINode) Propose(ctx context.Context) (string, error) {
	return n.run(ctx, "propose")
}

func (n *CLINode) ShowBlocks(ctx context.Context, limit int) ([]BlockRecord, error) {
	output, err := n.run(ctx, "show-blocks", "--depth", strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	return ParseShowBlocks(output)
}

func (n *CLINode) BlockCount(ctx context.Context) (int, error) {
	blocks, err := n.ShowBlocks(ctx, n.client.ShowBlocksDepth)
	if err != nil {
		return 0, err
	}
	return len(blocks), nil
}

func (n *CLINode) PeerCount(ctx context.Context) (int, error) {
	if len(n.config.MetricsURL) == 0 {
		return 0, fmt.Errorf("%w for %s", errNoMetricsURL, n.config.Name)
	}
	families, err := GetMetrics(ctx, n.config.MetricsURL)
	if err != nil {
		return 0, fmt.Errorf("failed to get metrics of %s: %w", n.config.Name, err)
	}
	value, err := GetMetricValue(families, n.config.PeerGauge)
	if err != nil {
		return 0, err
	}
	return int(value), nil
}

func (n *CLINode) deployArgs(req DeployRequest) []string {
	args := []string{"deploy"}
	if len(n.client.From) > 0 {
		args = append(args, "--from", n.client.From)
	}
	args = append(args,
		"--session", n.contractPath(req.Session),
		"--payment", n.contractPath(req.Payment),
		"--private-key", n.keyPath(req.Keys.Private),
		"--public-key", n.keyPath(req.Keys.Public),
	)
	if req.Nonce != nil {
		args = append(args, "--nonce", strconv.FormatUint(*req.Nonce, 10))
	}
	return args
}

func (n *CLINode) contractPath(contract string) string {
	return resolve(n.client.ContractsDir, contract)
}

func (n *CLINode) keyPath(key string) string {
	return resolve(n.client.KeysDir, key)
}

func resolve(dir string, name string) string {
	if len(dir) == 0 || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// run executes a client subcommand against this node and returns its
// stdout. A non-zero exit is reported as an error wrapping ErrClientCommand.
func (n *CLINode) run(ctx context.Context, subcommand ...string) (string, error) {
	args := append([]string{
		"--host", n.config.Host,
		"--port", strconv.Itoa(int(n.config.Port)),
	}, subcommand...)
	n.log.Verbo("running client command",
		zap.String("path", n.client.Path),
		zap.Strings("args", args),
	)

	clientCmd := cmd.NewCmd(n.client.Path, args...)
	statusChan := clientCmd.Start()

	var status cmd.Status
	select {
	case status = <-statusChan:
	case <-ctx.Done():
		_ = clientCmd.Stop()
		return "", ctx.Err()
	}

	stdout := strings.Join(status.Stdout, "\n")
	n.log.Verbo("client command finished",
		zap.Strings("args", subcommand),
		zap.Int("exit", status.Exit),
		zap.String("stdout", stdout),
	)
	if status.Error != nil {
		return stdout, fmt.Errorf("%w: %s %s: %w", ErrClientCommand, n.config.Name, subcommand[0], status.Error)
	}
	if status.Exit != 0 {
		return stdout, fmt.Errorf("%w: %s %s exited with %d: %s",
			ErrClientCommand,
			n.config.Name,
			subcommand[0],
			status.Exit,
			strings.Join(status.Stderr, "\n"),
		)
	}
	return stdout, nil
}
