// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scenario

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ava-labs/blockprop/tests/fixture/deploy"
	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
	"github.com/ava-labs/blockprop/tests/fixture/poll"
	"github.com/ava-labs/blockprop/tests/fixture/topology"
	"github.com/ava-labs/blockprop/utils/set"
)

const PartitionName = "partition-and-rejoin"

var errNoPartition = errors.New("partition sides are still connected")

// PartitionAndRejoin splits a fully connected network in two, has each side
// propose in isolation, heals the split and checks how far the next block
// travels.
//
// After the rejoin the proposing side only holds its own branch plus the new
// block, while the other side receives the new block together with the
// proposing side's branch. The expected counts of both sides are therefore
// different.
func PartitionAndRejoin(ctx context.Context, env Env, params PartitionParams) (*Report, error) {
	if err := validate.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid %s params: %w", PartitionName, err)
	}
	r, err := newRun(ctx, env, PartitionName, 2)
	if err != nil {
		return nil, err
	}
	return r.finish(r.partition(params))
}

func (r *run) partition(params PartitionParams) error {
	first, second := params.sides(len(r.nodes))
	sides := [2][]nodenet.Node{}
	for i, indices := range [][]int{first, second} {
		for _, index := range indices {
			node, err := r.node(index)
			if err != nil {
				return err
			}
			sides[i] = append(sides[i], node)
		}
	}

	controller, err := r.controller(topology.FullMesh(len(r.nodes)))
	if err != nil {
		return err
	}
	cross := controller.CrossEdges(first, second)

	if err := r.waitForGenesis(params.GenesisPollAttempts); err != nil {
		return err
	}

	r.enter(MutatingTopology, fmt.Sprintf("partition %v from %v", first, second))
	if err := controller.DisconnectAll(r.ctx, cross); err != nil {
		return err
	}
	for _, a := range first {
		for _, b := range second {
			if controller.Graph().Reachable(a, b) {
				return fmt.Errorf("%w: nodes %d and %d", errNoPartition, a, b)
			}
		}
	}

	// Both sides reuse the same nonce since neither can see the other's
	// deploy.
	r.enter(Loading, "propose on both sides")
	sideBlocks := [2]set.Set[nodenet.HashPrefix]{}
	for i, side := range sides {
		proposer := side[0]
		prefix, err := deploy.DeployAndPropose(r.ctx, proposer, r.env.template(), params.Contracts[i], nonce(params.Nonce), r.env.Metrics)
		if err != nil {
			return err
		}
		r.produced(proposer, prefix)
		sideBlocks[i] = set.Of(prefix)
	}

	r.enter(ConvergingPostLoad, fmt.Sprintf("%d blocks on every node", params.ExpectedPartitioned))
	for _, node := range r.nodes {
		budget := params.budget(node.Timeout(), params.ExpectedPartitioned)
		if err := r.waitForBlocks(node, params.ExpectedPartitioned, budget); err != nil {
			return err
		}
	}
	for i, side := range sides {
		foreign := sideBlocks[1-i]
		for _, node := range side {
			if err := r.assertLacks(node, foreign, params.ExpectedPartitioned); err != nil {
				return err
			}
		}
	}

	r.enter(MutatingTopology, "rejoin")
	if err := controller.ConnectAll(r.ctx, cross); err != nil {
		return err
	}

	r.enter(ConvergingPostMutation, "peers")
	peerBudget := poll.Budget{
		Attempts: params.PeerPollAttempts,
		Delay:    params.PeerPollDelay,
	}
	for _, node := range r.nodes {
		if err := r.waitForPeers(node, len(r.nodes)-1, peerBudget); err != nil {
			return err
		}
	}

	proposer := r.nodes[first[0]]
	r.enter(Loading, "propose on "+proposer.Name())
	prefix, err := deploy.DeployAndPropose(r.ctx, proposer, r.env.template(), params.Contracts[2], nonce(params.RejoinNonce), r.env.Metrics)
	if err != nil {
		return err
	}
	r.produced(proposer, prefix)

	r.enter(ConvergingPostMutation, "blocks after rejoin")
	targets := [2]int{params.ExpectedProposerSide, params.ExpectedOtherSide}
	for i, side := range sides {
		for _, node := range side {
			budget := params.budget(node.Timeout(), targets[i])
			if err := r.waitForBlocks(node, targets[i], budget); err != nil {
				return err
			}
		}
	}

	r.enter(Asserting, "rejoin block on every node")
	rejoined := set.Of(prefix)
	rejoined.Union(sideBlocks[0])
	for _, node := range r.nodes {
		if err := r.assertContains(node, rejoined, max(params.ExpectedProposerSide, params.ExpectedOtherSide)); err != nil {
			return err
		}
	}
	r.log.Info("partition healed",
		zap.Int("proposerSide", params.ExpectedProposerSide),
		zap.Int("otherSide", params.ExpectedOtherSide),
	)
	return nil
}
