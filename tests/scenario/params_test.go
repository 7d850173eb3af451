// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/blockprop/tests/fixture/topology"
)

func TestDefaultParams(t *testing.T) {
	require := require.New(t)

	params := DefaultParams()
	require.NoError(params.Validate())
	require.Equal(14, params.Baseline.pollAttempts())
	require.Equal(700, params.Baseline.showBlocksDepth())
}

func TestParseParams(t *testing.T) {
	require := require.New(t)

	params, err := ParseParams([]byte(`
baseline:
  expectedBlocks: 9
  pollAttempts: 3
  retry:
    maxAttempts: 2
    delay: 500ms
infection:
  severed: {a: 2, b: 1}
  source: 2
  target: 1
partition:
  sides: [[0], [1, 2]]
`))
	require.NoError(err)
	require.Equal(9, params.Baseline.ExpectedBlocks)
	require.Equal(3, params.Baseline.pollAttempts())
	require.Equal(RetryParams{MaxAttempts: 2, Delay: 500 * time.Millisecond}, params.Baseline.Retry)
	require.Equal([][]string{{HelloName}, {HelloWorld}}, params.Baseline.Batches)
	require.Equal(topology.Edge{A: 2, B: 1}, params.Infection.Severed)
	require.Equal(HelloName, params.Infection.Contract)

	first, second := params.Partition.sides(3)
	require.Equal([]int{0}, first)
	require.Equal([]int{1, 2}, second)
}

func TestParseParamsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "source is target",
			yaml: "infection: {source: 1, target: 1}",
		},
		{
			name: "missing rejoin contract",
			yaml: "partition: {contracts: [a.wasm, b.wasm]}",
		},
		{
			name: "empty batch",
			yaml: "baseline: {batches: [[a.wasm], []]}",
		},
		{
			name: "no proposal attempts",
			yaml: "baseline: {retry: {maxAttempts: 0}}",
		},
		{
			name: "three sides",
			yaml: "partition: {sides: [[0], [1], [2]]}",
		},
		{
			name: "not yaml",
			yaml: "baseline: [",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseParams([]byte(test.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoadParams(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(os.WriteFile(path, []byte("partition: {timeoutFactor: 3}\n"), 0o600))

	params, err := LoadParams(path)
	require.NoError(err)
	require.Equal(3, params.Partition.TimeoutFactor)

	_, err = LoadParams(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(err, os.ErrNotExist)
}

func TestDefaultSides(t *testing.T) {
	require := require.New(t)

	first, second := DefaultPartitionParams().sides(4)
	require.Equal([]int{0, 1}, first)
	require.Equal([]int{2, 3}, second)

	first, second = DefaultPartitionParams().sides(5)
	require.Equal([]int{0, 1}, first)
	require.Equal([]int{2, 3, 4}, second)
}

func TestPartitionBudget(t *testing.T) {
	require := require.New(t)

	params := DefaultPartitionParams()
	budget := params.budget(time.Second, 3)
	require.Equal(3, budget.Attempts)
	require.Equal(time.Second, budget.Delay)

	budget = params.budget(time.Second, 1)
	require.Zero(budget.Delay)
}

func TestNewMetricsDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewMetrics("blockprop", registry)
	require.NoError(t, err)
	_, err = NewMetrics("blockprop", registry)
	require.Error(t, err)
}
