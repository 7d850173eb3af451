// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package propagation

import (
	"github.com/ava-labs/blockprop/tests"
	"github.com/ava-labs/blockprop/tests/fixture/e2e"
	"github.com/ava-labs/blockprop/tests/scenario"

	ginkgo "github.com/onsi/ginkgo/v2"
)

// Every scenario expects a freshly provisioned network holding only the
// genesis block. Select one with --label-filter per provisioned network.
var _ = e2e.DescribeScenario("[Block Propagation]", func() {
	ginkgo.It("propagates the blocks every node proposes concurrently to every node", ginkgo.Label(scenario.BaselineName), func() {
		env := e2e.GetEnv()
		tests.Outf("{{blue}}running %s on %d nodes{{/}}\n", scenario.BaselineName, len(env.Network.Nodes))
		e2e.RequirePassed(scenario.BaselinePropagation(e2e.DefaultContext(), env.ScenarioEnv(), env.Params.Baseline))
	})

	ginkgo.It("propagates blocks to nodes that are not directly linked to the proposer", ginkgo.Label(scenario.InfectionName), func() {
		env := e2e.GetEnv()
		tests.Outf("{{blue}}running %s on %d nodes{{/}}\n", scenario.InfectionName, len(env.Network.Nodes))
		e2e.RequirePassed(scenario.PartialMeshInfection(e2e.DefaultContext(), env.ScenarioEnv(), env.Params.Infection))
	})

	ginkgo.It("keeps partitions isolated and heals them on rejoin", ginkgo.Label(scenario.PartitionName), func() {
		env := e2e.GetEnv()
		tests.Outf("{{blue}}running %s on %d nodes{{/}}\n", scenario.PartitionName, len(env.Network.Nodes))
		e2e.RequirePassed(scenario.PartitionAndRejoin(e2e.DefaultContext(), env.ScenarioEnv(), env.Params.Partition))
	})
})
