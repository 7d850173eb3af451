// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/blockprop/tests/fixture/deploy"
	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
	"github.com/ava-labs/blockprop/tests/fixture/poll"
	"github.com/ava-labs/blockprop/tests/fixture/topology"
	"github.com/ava-labs/blockprop/utils/set"
)

const InfectionName = "partial-mesh-infection"

var (
	errDirectLink = errors.New("source and target are still directly linked")
	errNoPath     = errors.New("source and target are not connected")
)

// PartialMeshInfection checks that a block reaches a node that is not
// directly linked to its proposer.
func PartialMeshInfection(ctx context.Context, env Env, params InfectionParams) (*Report, error) {
	if err := validate.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid %s params: %w", InfectionName, err)
	}
	r, err := newRun(ctx, env, InfectionName, 3)
	if err != nil {
		return nil, err
	}
	return r.finish(r.infection(params))
}

func (r *run) infection(params InfectionParams) error {
	source, err := r.node(params.Source)
	if err != nil {
		return err
	}
	target, err := r.node(params.Target)
	if err != nil {
		return err
	}

	graph := topology.FullMesh(len(r.nodes))
	if len(params.InitialEdges) > 0 {
		graph, err = topology.NewGraph(len(r.nodes), params.InitialEdges...)
		if err != nil {
			return err
		}
	}
	controller, err := r.controller(graph)
	if err != nil {
		return err
	}

	if err := r.waitForGenesis(params.GenesisPollAttempts); err != nil {
		return err
	}

	r.enter(MutatingTopology, "sever "+params.Severed.String())
	if err := controller.Disconnect(r.ctx, params.Severed.A, params.Severed.B); err != nil {
		return err
	}
	current := controller.Graph()
	if current.Connected(params.Source, params.Target) {
		return fmt.Errorf("%w: %s and %s", errDirectLink, source.Name(), target.Name())
	}
	if !current.Reachable(params.Source, params.Target) {
		return fmt.Errorf("%w: %s and %s", errNoPath, source.Name(), target.Name())
	}

	r.enter(Loading, "propose on "+source.Name())
	prefix, err := deploy.DeployAndPropose(r.ctx, source, r.env.template(), params.Contract, nil, r.env.Metrics)
	if err != nil {
		return err
	}
	r.produced(source, prefix)

	r.enter(ConvergingPostLoad, fmt.Sprintf("%d blocks on %s", params.ExpectedBlocks, target.Name()))
	if err := r.waitForBlocks(target, params.ExpectedBlocks, poll.Attempts(params.PollAttempts)); err != nil {
		return err
	}

	r.enter(Asserting, "block of "+source.Name()+" on "+target.Name())
	return r.assertContains(target, set.Of[nodenet.HashPrefix](prefix), params.ShowBlocksDepth)
}
