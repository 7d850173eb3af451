// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deploy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
	"github.com/ava-labs/blockprop/utils/logging"
	"github.com/ava-labs/blockprop/utils/set"
)

var (
	errDuplicateNode = errors.New("node assigned more than once")
	errNoAssignments = errors.New("no assignments")
)

// Batch is an ordered sequence of contracts deployed together before a
// single proposal.
type Batch struct {
	contracts []string
}

func NewBatch(contracts ...string) Batch {
	return Batch{contracts: slices.Clone(contracts)}
}

// Contracts returns a copy of the contracts of the batch.
func (b Batch) Contracts() []string {
	return slices.Clone(b.contracts)
}

// Batches builds one batch per provided contract list.
func Batches(contracts ...[]string) []Batch {
	batches := make([]Batch, len(contracts))
	for i, batch := range contracts {
		batches[i] = NewBatch(batch...)
	}
	return batches
}

// Assignment is the work for one node in a concurrent run.
type Assignment struct {
	Node    nodenet.Node
	Batches []Batch
}

// unit processes one node's batches. It is only accessed by its own
// goroutine until the driver has joined all units.
type unit struct {
	log      logging.Logger
	node     nodenet.Node
	batches  []Batch
	retry    RetryPolicy
	template Template
	metrics  Metrics

	produced set.Set[nodenet.HashPrefix]
	err      error
}

func (u *unit) run(ctx context.Context) error {
	for i, batch := range u.batches {
		for _, contract := range batch.contracts {
			err := Deploy(ctx, u.node, u.template, contract, nil)
			u.metrics.Deployed(u.node.Name(), err == nil)
			if err != nil {
				return err
			}
		}

		output, attempts, err := ProposeWithRetry(ctx, u.log, u.node, u.retry)
		u.metrics.Proposed(u.node.Name(), attempts, err == nil)
		if err != nil {
			return err
		}
		prefix, err := nodenet.ExtractBlockHash(output)
		if err != nil {
			return fmt.Errorf("batch %d on %s: %w", i, u.node.Name(), err)
		}
		u.produced.Add(prefix)
		u.log.Info("proposed block",
			zap.Int("batch", i),
			zap.String("block", string(prefix)),
			zap.Int("attempts", attempts),
		)
	}
	return nil
}

// Result holds what each unit produced. It is only available once every
// unit has finished.
type Result struct {
	nodes    []string
	produced map[string]set.Set[nodenet.HashPrefix]
	errs     map[string]error
}

// Nodes returns the names of the nodes that took part, in assignment order.
func (r *Result) Nodes() []string {
	return slices.Clone(r.nodes)
}

// Produced returns the prefixes of the blocks proposed by [node].
func (r *Result) Produced(node string) set.Set[nodenet.HashPrefix] {
	return r.produced[node]
}

// All returns the prefixes of every block proposed during the run.
func (r *Result) All() set.Set[nodenet.HashPrefix] {
	all := set.Set[nodenet.HashPrefix]{}
	for _, produced := range r.produced {
		all.Union(produced)
	}
	return all
}

// Err returns the error that terminated [node]'s unit, if any.
func (r *Result) Err(node string) error {
	return r.errs[node]
}

// Driver runs one unit of deploy+propose work per node concurrently.
type Driver struct {
	log      logging.Logger
	retry    RetryPolicy
	template Template
	metrics  Metrics
}

// NewDriver returns a driver. [metrics] may be nil.
func NewDriver(log logging.Logger, retry RetryPolicy, template Template, metrics Metrics) *Driver {
	if metrics == nil {
		metrics = noMetrics{}
	}
	return &Driver{
		log:      log,
		retry:    retry,
		template: template,
		metrics:  metrics,
	}
}

// Run starts one goroutine per assignment and blocks until all of them have
// terminated. A failing unit does not stop the others; the returned error
// joins the errors of every failed unit.
func (d *Driver) Run(ctx context.Context, assignments []Assignment) (*Result, error) {
	if err := d.retry.Validate(); err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, errNoAssignments
	}

	units := make([]*unit, len(assignments))
	seen := set.Set[string]{}
	for i, assignment := range assignments {
		name := assignment.Node.Name()
		if seen.Contains(name) {
			return nil, fmt.Errorf("%w: %s", errDuplicateNode, name)
		}
		seen.Add(name)

		units[i] = &unit{
			log:      d.log.With(zap.String("node", name)),
			node:     assignment.Node,
			batches:  slices.Clone(assignment.Batches),
			retry:    d.retry,
			template: d.template,
			metrics:  d.metrics,
			produced: set.Set[nodenet.HashPrefix]{},
		}
	}

	d.log.Info("starting deploy units",
		zap.Int("units", len(units)),
		zap.Int("maxProposeAttempts", d.retry.MaxAttempts),
		zap.Duration("proposeRetryDelay", d.retry.Delay),
	)
	// A plain group is used so that a failing unit does not cancel the
	// others.
	var eg errgroup.Group
	for _, u := range units {
		eg.Go(func() error {
			u.err = u.run(ctx)
			if u.err != nil {
				u.log.Error("deploy unit failed", zap.Error(u.err))
			}
			return u.err
		})
	}
	_ = eg.Wait()

	result := &Result{
		nodes:    make([]string, len(units)),
		produced: make(map[string]set.Set[nodenet.HashPrefix], len(units)),
		errs:     make(map[string]error),
	}
	var errs []error
	for i, u := range units {
		name := u.node.Name()
		result.nodes[i] = name
		result.produced[name] = u.produced
		if u.err != nil {
			result.errs[name] = u.err
			errs = append(errs, u.err)
		}
	}
	return result, errors.Join(errs...)
}
