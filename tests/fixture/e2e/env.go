// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package e2e

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/blockprop/tests"
	"github.com/ava-labs/blockprop/tests/fixture/deploy"
	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
	"github.com/ava-labs/blockprop/tests/fixture/topology"
	"github.com/ava-labs/blockprop/tests/scenario"
	"github.com/ava-labs/blockprop/utils/logging"
)

const metricsNamespace = "blockprop"

var errNoNetworkConfig = errors.New("no network config provided")

// TestEnvironment is shared by every spec of a suite.
type TestEnvironment struct {
	Log     logging.Logger
	Config  *nodenet.NetworkConfig
	Network *nodenet.Network
	Linker  *topology.DockerLinker
	Params  scenario.Params

	registry    *prometheus.Registry
	metrics     *scenario.Metrics
	metricsPath string
}

// NewTestEnvironment loads the network and parameters named by [flagVars].
func NewTestEnvironment(t require.TestingT, flagVars *FlagVars) *TestEnvironment {
	require := require.New(t)

	level, err := flagVars.LogLevel()
	require.NoError(err)
	log, err := tests.LoggerForFormat("e2e", flagVars.LogFormat(), level)
	require.NoError(err)

	path := flagVars.NetworkConfigPath()
	require.NotEmpty(path, errNoNetworkConfig.Error())
	config, err := nodenet.ReadNetworkConfig(path)
	require.NoError(err)
	tests.Outf("{{green}}loaded network %s with %d nodes:{{/}} %v\n", config.Name, len(config.Nodes), config.UUID)

	params := scenario.DefaultParams()
	if paramsPath := flagVars.ParamsPath(); len(paramsPath) > 0 {
		params, err = scenario.LoadParams(paramsPath)
		require.NoError(err)
		tests.Outf("{{green}}loaded scenario params from %s{{/}}\n", paramsPath)
	}

	prefix := flagVars.LinkPrefix()
	if len(prefix) == 0 {
		prefix = config.Name
	}
	linker, err := topology.NewDockerLinker(log, prefix)
	require.NoError(err)

	registry := prometheus.NewRegistry()
	metrics, err := scenario.NewMetrics(metricsNamespace, registry)
	require.NoError(err)

	return &TestEnvironment{
		Log:         log,
		Config:      config,
		Network:     nodenet.NewCLINetwork(log, config),
		Linker:      linker,
		Params:      params,
		registry:    registry,
		metrics:     metrics,
		metricsPath: flagVars.MetricsPath(),
	}
}

// ScenarioEnv returns what scenarios need to run against the network.
func (te *TestEnvironment) ScenarioEnv() scenario.Env {
	return scenario.Env{
		Log:      te.Log,
		Network:  te.Network,
		Linker:   te.Linker,
		Metrics:  te.metrics,
		Template: deploy.Template{Keys: te.Config.Client.Keys},
	}
}

// Close removes the links created by the suite and writes the harness
// metrics, if requested.
func (te *TestEnvironment) Close(ctx context.Context) error {
	var errs []error
	if err := te.Linker.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(te.metricsPath) > 0 {
		if err := prometheus.WriteToTextfile(te.metricsPath, te.registry); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		} else {
			tests.Outf("{{blue}}wrote harness metrics to %s{{/}}\n", te.metricsPath)
		}
	}
	return errors.Join(errs...)
}

// Shared by the specs of a suite. Initialized from BeforeSuite.
var env *TestEnvironment

func InitSharedTestEnvironment(t require.TestingT, te *TestEnvironment) {
	require.Nil(t, env, "env already initialized")
	env = te
}

// GetEnv returns the shared test environment.
func GetEnv() *TestEnvironment {
	return env
}
