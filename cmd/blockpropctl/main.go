// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ava-labs/blockprop/tests"
	"github.com/ava-labs/blockprop/tests/fixture/deploy"
	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
	"github.com/ava-labs/blockprop/tests/fixture/poll"
	"github.com/ava-labs/blockprop/tests/fixture/topology"
	"github.com/ava-labs/blockprop/tests/scenario"
	"github.com/ava-labs/blockprop/utils/logging"
)

const (
	cliVersion = "0.1.0"

	cleanupTimeout = 30 * time.Second
)

var (
	errNetworkConfigRequired = fmt.Errorf("--%s or %s are required", NetworkConfigKey, nodenet.NetworkConfigEnvName)
	errUnknownScenario       = errors.New("unknown scenario")
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "blockpropctl failed: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "blockpropctl",
		Short:         "blockpropctl commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version details",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), cliVersion)
			return nil
		},
	}
	rootCmd.AddCommand(
		versionCmd,
		newRunCommand(),
		newLinkCommand(topology.OpConnect, "Link two nodes"),
		newLinkCommand(topology.OpDisconnect, "Unlink two nodes"),
		newWaitCommand("wait-blocks", "Wait for a node to hold at least --target blocks", poll.BlockCount),
		newWaitCommand("wait-peers", "Wait for a node to have at least --target peers", poll.PeerCount),
	)
	return rootCmd
}

// session holds what every command needs to talk to the network.
type session struct {
	v       *viper.Viper
	log     logging.Logger
	config  *nodenet.NetworkConfig
	network *nodenet.Network
}

func newSession(cmd *cobra.Command) (*session, error) {
	v, err := newViper(cmd.Flags())
	if err != nil {
		return nil, err
	}
	path := v.GetString(NetworkConfigKey)
	if len(path) == 0 {
		return nil, errNetworkConfigRequired
	}
	level, err := logging.ToLevel(v.GetString(LogLevelKey))
	if err != nil {
		return nil, err
	}
	var log logging.Logger
	if file := v.GetString(LogFileKey); len(file) > 0 {
		log, err = tests.LoggerWithFile("", v.GetString(LogFormatKey), level, file)
	} else {
		log, err = tests.LoggerForFormat("", v.GetString(LogFormatKey), level)
	}
	if err != nil {
		return nil, err
	}
	config, err := nodenet.ReadNetworkConfig(path)
	if err != nil {
		return nil, err
	}
	return &session{
		v:       v,
		log:     log,
		config:  config,
		network: nodenet.NewCLINetwork(log, config),
	}, nil
}

func (s *session) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.v.GetDuration(TimeoutKey))
}

func (s *session) linker() (*topology.DockerLinker, error) {
	prefix := s.v.GetString(LinkPrefixKey)
	if len(prefix) == 0 {
		prefix = s.config.Name
	}
	return topology.NewDockerLinker(s.log, prefix)
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "run <baseline|infection|partition>",
		Short:     "Run a block propagation scenario against a provisioned network",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"baseline", "infection", "partition"},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.log.Stop()

			params := scenario.DefaultParams()
			if path := s.v.GetString(ParamsKey); len(path) > 0 {
				params, err = scenario.LoadParams(path)
				if err != nil {
					return err
				}
			}
			registry := prometheus.NewRegistry()
			metrics, err := scenario.NewMetrics("blockprop", registry)
			if err != nil {
				return err
			}
			linker, err := s.linker()
			if err != nil {
				return err
			}
			if addr := s.v.GetString(MetricsAddrKey); len(addr) > 0 {
				server := newMetricsServer(addr, registry, s.log)
				if _, err := server.Start(); err != nil {
					return err
				}
				defer func() {
					_ = server.Stop()
				}()
			}

			ctx, cancel := s.context()
			defer cancel()
			env := scenario.Env{
				Log:      s.log,
				Network:  s.network,
				Linker:   linker,
				Metrics:  metrics,
				Template: deploy.Template{Keys: s.config.Client.Keys},
			}
			report, runErr := runScenario(ctx, args[0], env, params)
			if report != nil {
				printReport(cmd, report)
			}

			errs := []error{runErr}
			if !s.v.GetBool(KeepLinksKey) {
				errs = append(errs, closeLinks(linker))
			}
			if path := s.v.GetString(MetricsPathKey); len(path) > 0 {
				errs = append(errs, prometheus.WriteToTextfile(path, registry))
			}
			return errors.Join(errs...)
		},
	}
	addNetworkFlags(cmd.Flags())
	addLinkFlags(cmd.Flags())
	cmd.Flags().String(ParamsKey, "", "[optional] path of a YAML file overriding the default scenario parameters")
	cmd.Flags().String(MetricsPathKey, "", "[optional] path of a textfile to write the harness metrics to")
	cmd.Flags().String(MetricsAddrKey, "", "[optional] address to serve the harness metrics on while the scenario runs")
	cmd.Flags().Bool(KeepLinksKey, false, "Keep the docker networks created to link nodes")
	return cmd
}

func runScenario(ctx context.Context, name string, env scenario.Env, params scenario.Params) (*scenario.Report, error) {
	switch name {
	case "baseline", scenario.BaselineName:
		return scenario.BaselinePropagation(ctx, env, params.Baseline)
	case "infection", scenario.InfectionName:
		return scenario.PartialMeshInfection(ctx, env, params.Infection)
	case "partition", scenario.PartitionName:
		return scenario.PartitionAndRejoin(ctx, env, params.Partition)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownScenario, name)
	}
}

func printReport(cmd *cobra.Command, report *scenario.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", report.Scenario, report.Phase())
	for _, record := range report.Phases {
		fmt.Fprintf(out, "  %-26s %-40s %s\n", record.Phase, record.Note, record.Duration)
	}
	for node, produced := range report.Produced {
		fmt.Fprintf(out, "  %s produced %v\n", node, produced)
	}
}

type linkCloser interface {
	Close(ctx context.Context) error
}

// closeLinks removes the links created during a run. It does not reuse the
// run's context, which is done once the run times out.
func closeLinks(linker linkCloser) error {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	return linker.Close(ctx)
}

func newLinkCommand(op string, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   op + " <node> <node>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.log.Stop()

			a, err := s.network.GetNode(args[0])
			if err != nil {
				return err
			}
			b, err := s.network.GetNode(args[1])
			if err != nil {
				return err
			}
			linker, err := s.linker()
			if err != nil {
				return err
			}

			ctx, cancel := s.context()
			defer cancel()
			if op == topology.OpConnect {
				err = linker.Link(ctx, a, b)
			} else {
				err = linker.Unlink(ctx, a, b)
			}
			if err != nil {
				return topology.MutationError(op, a, b, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s and %s via %s\n", op, a.Name(), b.Name(), linker.NetworkName(a, b))
			return nil
		},
	}
	addNetworkFlags(cmd.Flags())
	addLinkFlags(cmd.Flags())
	return cmd
}

func newWaitCommand(use string, short string, flavor poll.Flavor) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <node>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.log.Stop()

			node, err := s.network.GetNode(args[0])
			if err != nil {
				return err
			}
			observe := poll.ObserveBlockCount
			if flavor == poll.PeerCount {
				observe = poll.ObservePeerCount
			}
			budget := poll.Budget{
				Attempts: s.v.GetInt(AttemptsKey),
				Delay:    s.v.GetDuration(DelayKey),
			}

			ctx, cancel := s.context()
			defer cancel()
			outcome, err := poll.New(s.log, nil).WaitForAtLeast(ctx, node, flavor, observe, s.v.GetInt(TargetKey), budget)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome)
			return nil
		},
	}
	addNetworkFlags(cmd.Flags())
	addPollFlags(cmd.Flags())
	return cmd
}
