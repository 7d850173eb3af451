// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package e2e

import (
	"flag"
	"fmt"
	"os"

	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
	"github.com/ava-labs/blockprop/utils/logging"
)

const (
	ParamsEnvName      = "BLOCKPROP_SCENARIO_PARAMS"
	MetricsPathEnvName = "BLOCKPROP_METRICS_PATH"
)

type FlagVars struct {
	networkConfig string
	paramsPath    string
	metricsPath   string
	linkPrefix    string
	logFormat     string
	logLevel      string
}

// NetworkConfigPath returns the path of the description of the network to
// target.
func (v *FlagVars) NetworkConfigPath() string {
	return v.networkConfig
}

func (v *FlagVars) ParamsPath() string {
	return v.paramsPath
}

func (v *FlagVars) MetricsPath() string {
	return v.metricsPath
}

// LinkPrefix returns the prefix of the docker networks created for links.
// Defaults to the name of the network.
func (v *FlagVars) LinkPrefix() string {
	return v.linkPrefix
}

func (v *FlagVars) LogFormat() string {
	return v.logFormat
}

func (v *FlagVars) LogLevel() (logging.Level, error) {
	return logging.ToLevel(v.logLevel)
}

func RegisterFlags() *FlagVars {
	vars := FlagVars{}
	flag.StringVar(
		&vars.networkConfig,
		"network-config",
		os.Getenv(nodenet.NetworkConfigEnvName),
		fmt.Sprintf("path of the YAML description of the network to test. Also possible to configure via the %s env variable.", nodenet.NetworkConfigEnvName),
	)
	flag.StringVar(
		&vars.paramsPath,
		"scenario-params",
		os.Getenv(ParamsEnvName),
		fmt.Sprintf("[optional] path of a YAML file overriding the default scenario parameters. Also possible to configure via the %s env variable.", ParamsEnvName),
	)
	flag.StringVar(
		&vars.metricsPath,
		"metrics-path",
		os.Getenv(MetricsPathEnvName),
		fmt.Sprintf("[optional] path of a textfile the harness metrics are written to after the suite. Also possible to configure via the %s env variable.", MetricsPathEnvName),
	)
	flag.StringVar(
		&vars.linkPrefix,
		"link-prefix",
		"",
		"[optional] prefix of the docker networks created to link nodes. Defaults to the network name.",
	)
	flag.StringVar(
		&vars.logFormat,
		"log-format",
		logging.AutoString,
		logging.FormatDescription,
	)
	flag.StringVar(
		&vars.logLevel,
		"log-level",
		logging.Info.String(),
		"the log level of the harness",
	)

	return &vars
}
