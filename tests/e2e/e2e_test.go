// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// e2e runs the block propagation scenarios against a provisioned network.
package e2e_test

import (
	"context"
	"testing"

	"github.com/onsi/gomega"

	"github.com/ava-labs/blockprop/tests"
	"github.com/ava-labs/blockprop/tests/fixture/e2e"

	// ensure test packages are scanned by ginkgo
	_ "github.com/ava-labs/blockprop/tests/e2e/propagation"

	ginkgo "github.com/onsi/ginkgo/v2"
)

func TestE2E(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "blockprop e2e test suites")
}

var flagVars *e2e.FlagVars

func init() {
	flagVars = e2e.RegisterFlags()
}

var _ = ginkgo.BeforeSuite(func() {
	e2e.InitSharedTestEnvironment(ginkgo.GinkgoT(), e2e.NewTestEnvironment(ginkgo.GinkgoT(), flagVars))
})

var _ = ginkgo.AfterSuite(func() {
	env := e2e.GetEnv()
	if env == nil {
		return
	}
	tests.Outf("{{red}}removing links created by the suite{{/}}\n")
	gomega.Expect(env.Close(context.Background())).Should(gomega.Succeed())
})
