// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/blockprop/utils/logging"
)

const (
	envPrefix = "blockprop"

	NetworkConfigKey = "network-config"
	ParamsKey        = "scenario-params"
	MetricsPathKey   = "metrics-path"
	MetricsAddrKey   = "metrics-addr"
	LinkPrefixKey    = "link-prefix"
	KeepLinksKey     = "keep-links"
	LogFormatKey     = "log-format"
	LogLevelKey      = "log-level"
	LogFileKey       = "log-file"
	TimeoutKey       = "timeout"
	TargetKey        = "target"
	AttemptsKey      = "attempts"
	DelayKey         = "delay"
)

// newViper returns a viper instance resolving every flag of [fs] from the
// command line first and then from a BLOCKPROP_ prefixed environment
// variable, e.g. --network-config from BLOCKPROP_NETWORK_CONFIG.
func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	return v, nil
}

func addNetworkFlags(fs *pflag.FlagSet) {
	fs.String(NetworkConfigKey, "", "Path of the YAML description of the network")
	fs.String(LogFormatKey, logging.AutoString, logging.FormatDescription)
	fs.String(LogLevelKey, logging.Info.String(), "The log level of the harness")
	fs.String(LogFileKey, "", "[optional] path of a rotated file that JSON log entries are also written to")
	fs.Duration(TimeoutKey, 10*time.Minute, "Maximum duration of the command")
}

func addLinkFlags(fs *pflag.FlagSet) {
	fs.String(LinkPrefixKey, "", "Prefix of the docker networks created to link nodes. Defaults to the network name.")
}

func addPollFlags(fs *pflag.FlagSet) {
	fs.Int(TargetKey, 1, "Value the observation must reach")
	fs.Int(AttemptsKey, 1, "Maximum number of observations")
	fs.Duration(DelayKey, 0, "Delay between observations. Defaults to the node timeout spread over the attempts.")
}
