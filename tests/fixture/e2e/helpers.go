// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package e2e

import (
	"context"
	"time"

	ginkgo "github.com/onsi/ginkgo/v2"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/blockprop/tests"
	"github.com/ava-labs/blockprop/tests/scenario"
)

// A long default timeout used to timeout failed scenarios but unlikely to
// induce flaking due to unexpected resource contention.
const DefaultTimeout = 10 * time.Minute

// DescribeScenario annotates the specs that mutate a shared network.
func DescribeScenario(text string, body func()) bool {
	return ginkgo.Describe("[Scenario] "+text, ginkgo.Serial, body)
}

// Helper simplifying use of a timed context by canceling the context on ginkgo
// teardown.
func ContextWithTimeout(duration time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	ginkgo.DeferCleanup(cancel)
	return ctx
}

// Helper simplifying use of a timed context configured with the default
// timeout.
func DefaultContext() context.Context {
	return ContextWithTimeout(DefaultTimeout)
}

// RequirePassed fails the current spec unless the scenario run passed, and
// prints the phases it went through either way.
func RequirePassed(report *scenario.Report, err error) {
	if report != nil {
		for _, record := range report.Phases {
			tests.Outf("{{blue}}%s{{/}} %s (%s)\n", record.Phase, record.Note, record.Duration)
		}
		for node, produced := range report.Produced {
			tests.Outf("{{cyan}}%s produced{{/}} %v\n", node, produced)
		}
	}
	require.NoError(ginkgo.GinkgoT(), err)
	require.True(ginkgo.GinkgoT(), report.Passed())
}
