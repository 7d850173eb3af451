// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scenario

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ava-labs/blockprop/tests/fixture/deploy"
	"github.com/ava-labs/blockprop/tests/fixture/poll"
	"github.com/ava-labs/blockprop/utils/set"
)

const BaselineName = "baseline-propagation"

// BaselinePropagation has every node of a fully connected network deploy and
// propose concurrently, then checks that every node received every block.
func BaselinePropagation(ctx context.Context, env Env, params BaselineParams) (*Report, error) {
	if err := validate.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid %s params: %w", BaselineName, err)
	}
	r, err := newRun(ctx, env, BaselineName, 1)
	if err != nil {
		return nil, err
	}
	return r.finish(r.baseline(params))
}

func (r *run) baseline(params BaselineParams) error {
	if err := r.waitForGenesis(params.GenesisPollAttempts); err != nil {
		return err
	}

	r.enter(Loading, fmt.Sprintf("%d batches per node", len(params.Batches)))
	assignments := make([]deploy.Assignment, len(r.nodes))
	for i, node := range r.nodes {
		assignments[i] = deploy.Assignment{
			Node:    node,
			Batches: deploy.Batches(params.Batches...),
		}
	}
	driver := deploy.NewDriver(r.log, params.Retry.Policy(), r.env.template(), r.env.Metrics)
	result, err := driver.Run(r.ctx, assignments)
	if result != nil {
		for _, name := range result.Nodes() {
			r.report.Produced[name] = set.Sorted(result.Produced(name))
		}
	}
	if err != nil {
		return err
	}

	r.enter(ConvergingPostLoad, fmt.Sprintf("%d blocks", params.ExpectedBlocks))
	attempts := params.pollAttempts()
	for _, node := range r.nodes {
		if err := r.waitForBlocks(node, params.ExpectedBlocks, poll.Attempts(attempts)); err != nil {
			return err
		}
	}

	r.enter(Asserting, "every produced block on every node")
	expected := result.All()
	r.log.Info("checking propagation",
		zap.Int("producedBlocks", expected.Len()),
		zap.Int("depth", params.showBlocksDepth()),
	)
	for _, node := range r.nodes {
		if err := r.assertContains(node, expected, params.showBlocksDepth()); err != nil {
			return err
		}
	}
	return nil
}
