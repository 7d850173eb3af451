// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
	"github.com/ava-labs/blockprop/utils/logging"
)

type Flavor string

const (
	BlockCount Flavor = "block-count"
	PeerCount  Flavor = "peer-count"
)

var (
	ErrConvergenceTimeout = errors.New("convergence timeout")

	errInvalidAttempts = errors.New("at least one attempt is required")
)

// Observation samples a numeric property of a node.
type Observation func(ctx context.Context, node nodenet.Node) (int, error)

func ObserveBlockCount(ctx context.Context, node nodenet.Node) (int, error) {
	return node.BlockCount(ctx)
}

func ObservePeerCount(ctx context.Context, node nodenet.Node) (int, error) {
	return node.PeerCount(ctx)
}

// Budget bounds a poll. A zero Delay spreads the node's own timeout budget
// evenly between attempts.
type Budget struct {
	Attempts int
	Delay    time.Duration
}

// Attempts returns a budget of [attempts] observations that waits according
// to the node's timeout budget.
func Attempts(attempts int) Budget {
	return Budget{Attempts: attempts}
}

func (b Budget) delayFor(node nodenet.Node) time.Duration {
	if b.Delay > 0 || b.Attempts <= 1 {
		return b.Delay
	}
	return node.Timeout() / time.Duration(b.Attempts-1)
}

// Recorder is notified of every observation made by a Poller.
type Recorder interface {
	Observed(node string, flavor Flavor, value int)
	Exhausted(node string, flavor Flavor)
}

// Outcome describes how a poll ended.
type Outcome struct {
	Node     string
	Flavor   Flavor
	Target   int
	Observed int
	Attempts int
	// Every successfully observed value in order.
	History []int
	// The most recent observation error, if any.
	LastErr error
}

func (o Outcome) Satisfied() bool {
	return len(o.History) > 0 && o.Observed >= o.Target
}

func (o Outcome) String() string {
	if o.Satisfied() {
		return fmt.Sprintf("%s of %s reached %d (target %d) at attempt %d", o.Flavor, o.Node, o.Observed, o.Target, o.Attempts)
	}
	s := fmt.Sprintf("%s of %s was %d after %d attempts, expected at least %d", o.Flavor, o.Node, o.Observed, o.Attempts, o.Target)
	if o.LastErr != nil {
		s += fmt.Sprintf(" (last error: %v)", o.LastErr)
	}
	return s
}

// Poller repeatedly observes a node until an "observed >= target" condition
// holds or its attempt budget is exhausted.
type Poller struct {
	log      logging.Logger
	recorder Recorder
}

// New returns a poller. [recorder] may be nil.
func New(log logging.Logger, recorder Recorder) *Poller {
	return &Poller{
		log:      log,
		recorder: recorder,
	}
}

func (p *Poller) WaitForBlockCount(ctx context.Context, node nodenet.Node, target int, budget Budget) (Outcome, error) {
	return p.WaitForAtLeast(ctx, node, BlockCount, ObserveBlockCount, target, budget)
}

func (p *Poller) WaitForPeerCount(ctx context.Context, node nodenet.Node, target int, budget Budget) (Outcome, error) {
	return p.WaitForAtLeast(ctx, node, PeerCount, ObservePeerCount, target, budget)
}

// WaitForAtLeast returns as soon as an observation is at least [target]. The
// first observation happens immediately and consecutive observations are
// separated by a constant delay. Running out of attempts returns an error
// wrapping ErrConvergenceTimeout.
func (p *Poller) WaitForAtLeast(
	ctx context.Context,
	node nodenet.Node,
	flavor Flavor,
	observe Observation,
	target int,
	budget Budget,
) (Outcome, error) {
	outcome := Outcome{
		Node:   node.Name(),
		Flavor: flavor,
		Target: target,
	}
	if budget.Attempts < 1 {
		return outcome, errInvalidAttempts
	}

	log := p.log.With(
		zap.String("node", outcome.Node),
		zap.String("flavor", string(flavor)),
		zap.Int("target", target),
	)
	backoff := wait.Backoff{
		Duration: budget.delayFor(node),
		Factor:   1,
		Steps:    budget.Attempts,
	}
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		outcome.Attempts++

		value, err := observe(ctx, node)
		if err != nil {
			outcome.LastErr = err
			log.Debug("failed to observe node",
				zap.Int("attempt", outcome.Attempts),
				zap.Error(err),
			)
			return false, nil
		}

		outcome.Observed = value
		outcome.History = append(outcome.History, value)
		if p.recorder != nil {
			p.recorder.Observed(outcome.Node, flavor, value)
		}
		log.Debug("observed node",
			zap.Int("attempt", outcome.Attempts),
			zap.Int("observed", value),
		)
		return value >= target, nil
	})
	switch {
	case err == nil:
		log.Info("node converged",
			zap.Int("observed", outcome.Observed),
			zap.Int("attempts", outcome.Attempts),
		)
		return outcome, nil
	case ctx.Err() != nil:
		return outcome, fmt.Errorf("polling %s of %s: %w", flavor, outcome.Node, err)
	default:
		if p.recorder != nil {
			p.recorder.Exhausted(outcome.Node, flavor)
		}
		log.Error("node failed to converge",
			zap.Int("observed", outcome.Observed),
			zap.Int("attempts", outcome.Attempts),
			zap.NamedError("lastErr", outcome.LastErr),
		)
		return outcome, fmt.Errorf("%w: %s", ErrConvergenceTimeout, outcome)
	}
}
