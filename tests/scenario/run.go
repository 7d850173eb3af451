// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/blockprop/tests/fixture/deploy"
	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
	"github.com/ava-labs/blockprop/tests/fixture/poll"
	"github.com/ava-labs/blockprop/tests/fixture/topology"
	"github.com/ava-labs/blockprop/utils/logging"
	"github.com/ava-labs/blockprop/utils/set"
)

var (
	ErrPropagation  = errors.New("block propagation failed")
	ErrNonMonotonic = errors.New("block count decreased")

	errNoNetwork      = errors.New("no network")
	errNoLinker       = errors.New("no linker")
	errTooFewNodes    = errors.New("not enough nodes")
	errNodeOutOfRange = errors.New("node index out of range")
)

// Env is what a scenario runs against. The network is provisioned and owned
// by the caller.
type Env struct {
	Log     logging.Logger
	Network *nodenet.Network
	// Required by scenarios that change the topology.
	Linker topology.Linker
	// Optional.
	Metrics *Metrics
	// Key pair and payment contract used for every deploy.
	Template deploy.Template
}

func (e Env) template() deploy.Template {
	if len(e.Template.Keys.Private) == 0 {
		t := deploy.DefaultTemplate()
		t.Payment = e.Template.Payment
		return t
	}
	return e.Template
}

// run drives a single scenario through its phases.
type run struct {
	ctx    context.Context
	env    Env
	log    logging.Logger
	nodes  []nodenet.Node
	poller *poll.Poller
	report *Report
}

func newRun(ctx context.Context, env Env, scenario string, minNodes int) (*run, error) {
	if env.Network == nil {
		return nil, errNoNetwork
	}
	if len(env.Network.Nodes) < minNodes {
		return nil, fmt.Errorf("%w: %s needs %d, network %q has %d",
			errTooFewNodes,
			scenario,
			minNodes,
			env.Network.Name,
			len(env.Network.Nodes),
		)
	}
	log := env.Log
	if log == nil {
		log = logging.NoLog{}
	}
	log = log.With(zap.String("scenario", scenario))

	r := &run{
		ctx:    ctx,
		env:    env,
		log:    log,
		nodes:  env.Network.Nodes,
		poller: poll.New(log, env.Metrics),
		report: newReport(scenario),
	}
	r.enter(Provisioning, fmt.Sprintf("%d nodes", len(r.nodes)))
	return r, nil
}

// enter closes the current phase and starts [phase].
func (r *run) enter(phase Phase, note string) {
	now := time.Now()
	if n := len(r.report.Phases); n > 0 {
		current := &r.report.Phases[n-1]
		current.Duration = now.Sub(current.Started)
		r.env.Metrics.phaseFinished(r.report.Scenario, current.Phase, current.Duration)
	}
	r.report.Phases = append(r.report.Phases, PhaseRecord{
		Phase:   phase,
		Note:    note,
		Started: now,
	})
	r.log.Info("entering phase",
		zap.Stringer("phase", phase),
		zap.String("note", note),
	)
}

// finish moves the run to its terminal phase.
func (r *run) finish(err error) (*Report, error) {
	if err == nil {
		err = r.checkMonotonic()
	}
	r.report.Err = err
	if err != nil {
		r.enter(Failed, err.Error())
	} else {
		r.enter(Passed, "")
	}
	r.env.Metrics.runFinished(r.report.Scenario, err == nil)
	return r.report, err
}

func (r *run) node(index int) (nodenet.Node, error) {
	if index < 0 || index >= len(r.nodes) {
		return nil, fmt.Errorf("%w: %d in a network of %d nodes", errNodeOutOfRange, index, len(r.nodes))
	}
	return r.nodes[index], nil
}

// controller links the nodes according to [initial] and returns a controller
// for the resulting topology.
func (r *run) controller(initial *topology.Graph) (*topology.Controller, error) {
	if r.env.Linker == nil {
		return nil, errNoLinker
	}
	controller, err := topology.New(r.log, r.nodes, initial, r.env.Linker, r.env.Metrics)
	if err != nil {
		return nil, err
	}
	if err := controller.Establish(r.ctx); err != nil {
		return nil, err
	}
	return controller, nil
}

func (r *run) produced(node nodenet.Node, prefixes ...nodenet.HashPrefix) {
	name := node.Name()
	r.report.Produced[name] = append(r.report.Produced[name], prefixes...)
}

func (r *run) record(outcome poll.Outcome) {
	r.report.Polls = append(r.report.Polls, outcome)
	if outcome.Flavor == poll.BlockCount {
		r.report.BlockCounts[outcome.Node] = append(r.report.BlockCounts[outcome.Node], outcome.History...)
	}
}

func (r *run) waitForBlocks(node nodenet.Node, target int, budget poll.Budget) error {
	outcome, err := r.poller.WaitForBlockCount(r.ctx, node, target, budget)
	r.record(outcome)
	return err
}

func (r *run) waitForPeers(node nodenet.Node, target int, budget poll.Budget) error {
	outcome, err := r.poller.WaitForPeerCount(r.ctx, node, target, budget)
	r.record(outcome)
	return err
}

// waitForGenesis waits for every node to hold at least the genesis block.
func (r *run) waitForGenesis(attempts int) error {
	r.enter(ConvergingGenesis, "")
	for _, node := range r.nodes {
		if err := r.waitForBlocks(node, 1, poll.Attempts(attempts)); err != nil {
			return err
		}
	}
	return nil
}

// observed returns the prefixes of the most recent [depth] blocks of [node].
func (r *run) observed(node nodenet.Node, depth int) (set.Set[nodenet.HashPrefix], error) {
	blocks, err := node.ShowBlocks(r.ctx, depth)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks of %s: %w", node.Name(), err)
	}
	prefixes := set.NewSet[nodenet.HashPrefix](len(blocks))
	for _, block := range blocks {
		prefixes.Add(block.Prefix())
	}
	return prefixes, nil
}

// assertContains fails unless [node] holds every block of [expected].
func (r *run) assertContains(node nodenet.Node, expected set.Set[nodenet.HashPrefix], depth int) error {
	observed, err := r.observed(node, depth)
	if err != nil {
		return err
	}
	missing := expected.Difference(observed)
	if missing.Len() > 0 {
		return fmt.Errorf("%w: %s is missing %d of %d blocks: expected %s, observed %s, missing %s",
			ErrPropagation,
			node.Name(),
			missing.Len(),
			expected.Len(),
			expected,
			observed,
			missing,
		)
	}
	r.log.Info("node holds every expected block",
		zap.String("node", node.Name()),
		zap.Int("expected", expected.Len()),
		zap.Int("observed", observed.Len()),
	)
	return nil
}

// assertLacks fails if [node] holds any block of [foreign].
func (r *run) assertLacks(node nodenet.Node, foreign set.Set[nodenet.HashPrefix], depth int) error {
	observed, err := r.observed(node, depth)
	if err != nil {
		return err
	}
	leaked := set.Set[nodenet.HashPrefix]{}
	for prefix := range foreign {
		if observed.Contains(prefix) {
			leaked.Add(prefix)
		}
	}
	if leaked.Len() > 0 {
		return fmt.Errorf("%w: %s observed %s produced outside of its partition",
			ErrPropagation,
			node.Name(),
			leaked,
		)
	}
	return nil
}

// checkMonotonic verifies that no node's block count ever decreased.
func (r *run) checkMonotonic() error {
	for _, node := range r.nodes {
		name := node.Name()
		counts := r.report.BlockCounts[name]
		for i := 1; i < len(counts); i++ {
			if counts[i] < counts[i-1] {
				return fmt.Errorf("%w: %s went from %d to %d blocks, observed %v",
					ErrNonMonotonic,
					name,
					counts[i-1],
					counts[i],
					counts,
				)
			}
		}
	}
	return nil
}

func nonce(n uint64) *uint64 {
	return &n
}
