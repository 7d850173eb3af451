// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
	"github.com/ava-labs/blockprop/tests/scenario"
)

func TestVersion(t *testing.T) {
	require := require.New(t)

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(cmd.Execute())
	require.Equal(cliVersion+"\n", out.String())
}

func TestNetworkConfigRequired(t *testing.T) {
	t.Setenv(nodenet.NetworkConfigEnvName, "")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"wait-blocks", "node-0"})
	require.ErrorIs(t, cmd.Execute(), errNetworkConfigRequired)
}

func TestViperReadsEnvironment(t *testing.T) {
	require := require.New(t)

	t.Setenv(nodenet.NetworkConfigEnvName, "/tmp/network.yaml")
	t.Setenv("BLOCKPROP_TIMEOUT", "3s")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addNetworkFlags(fs)
	addPollFlags(fs)
	require.NoError(fs.Parse([]string{"--attempts=4"}))

	v, err := newViper(fs)
	require.NoError(err)
	require.Equal("/tmp/network.yaml", v.GetString(NetworkConfigKey))
	require.Equal(3*time.Second, v.GetDuration(TimeoutKey))
	require.Equal(4, v.GetInt(AttemptsKey))
	require.Equal(1, v.GetInt(TargetKey))
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	require := require.New(t)

	t.Setenv("BLOCKPROP_LINK_PREFIX", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addLinkFlags(fs)
	require.NoError(fs.Parse([]string{"--link-prefix=from-flag"}))

	v, err := newViper(fs)
	require.NoError(err)
	require.Equal("from-flag", v.GetString(LinkPrefixKey))
}

func TestRunUnknownScenario(t *testing.T) {
	_, err := runScenario(context.Background(), "gossip", scenario.Env{}, scenario.DefaultParams())
	require.ErrorIs(t, err, errUnknownScenario)
}

type recordingCloser struct {
	ctxErr   error
	deadline time.Time
}

func (r *recordingCloser) Close(ctx context.Context) error {
	r.ctxErr = ctx.Err()
	r.deadline, _ = ctx.Deadline()
	return nil
}

// Links are removed with a fresh deadline even when the run itself timed
// out.
func TestCloseLinksUsesFreshContext(t *testing.T) {
	require := require.New(t)

	closer := &recordingCloser{}
	require.NoError(closeLinks(closer))
	require.NoError(closer.ctxErr)
	require.WithinDuration(time.Now().Add(cleanupTimeout), closer.deadline, cleanupTimeout/2)
}
