// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deploy

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

const (
	DefaultMaxProposeAttempts = 5
	DefaultProposeRetryDelay  = 3 * time.Second
)

var (
	ErrDeployFailed     = errors.New("deploy failed")
	ErrProposalRejected = errors.New("proposal rejected")

	errInvalidRetryPolicy = errors.New("at least one proposal attempt is required")
)

// RetryPolicy bounds the retries of a rejected proposal.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxProposeAttempts,
		Delay:       DefaultProposeRetryDelay,
	}
}

func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return errInvalidRetryPolicy
	}
	return nil
}

// Template fills in the parts of a deploy request that are common to every
// workload of a run.
type Template struct {
	Keys nodenet.KeyPair
	// Payment contract. Defaults to the session contract when empty.
	Payment string
}

func DefaultTemplate() Template {
	return Template{
		Keys: nodenet.DefaultKeyPair(),
	}
}

func (t Template) Request(contract string, nonce *uint64) nodenet.DeployRequest {
	payment := t.Payment
	if len(payment) == 0 {
		payment = contract
	}
	return nodenet.DeployRequest{
		Session: contract,
		Payment: payment,
		Keys:    t.Keys,
		Nonce:   nonce,
	}
}

// Metrics is notified of every deploy and proposal.
type Metrics interface {
	Deployed(node string, success bool)
	Proposed(node string, attempts int, success bool)
}

type noMetrics struct{}

func (noMetrics) Deployed(string, bool) {}

func (noMetrics) Proposed(string, int, bool) {}

// Deploy submits [contract] to [node] and fails unless the node reports
// success. Deploys are never retried.
func Deploy(ctx context.Context, node nodenet.Node, template Template, contract string, nonce *uint64) error {
	output, err := node.Deploy(ctx, template.Request(contract, nonce))
	if err != nil {
		return fmt.Errorf("%w: %s on %s: %w", ErrDeployFailed, contract, node.Name(), err)
	}
	if !nodenet.DeploySucceeded(output) {
		return fmt.Errorf("%w: %s on %s: %q", ErrDeployFailed, contract, node.Name(), output)
	}
	return nil
}

// ProposeWithRetry proposes a block on [node], retrying rejected proposals
// with a constant delay until the policy is exhausted. It returns the output
// of the successful proposal.
func ProposeWithRetry(ctx context.Context, log logging.Logger, node nodenet.Node, policy RetryPolicy) (string, int, error) {
	if err := policy.Validate(); err != nil {
		return "", 0, err
	}

	var (
		output   string
		lastErr  error
		attempts int
	)
	backoff := wait.Backoff{
		Duration: policy.Delay,
		Factor:   1,
		Steps:    policy.MaxAttempts,
	}
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		attempts++
		output, lastErr = node.Propose(ctx)
		if lastErr != nil {
			log.Warn("proposal rejected",
				zap.String("node", node.Name()),
				zap.Int("attempt", attempts),
				zap.Int("maxAttempts", policy.MaxAttempts),
				zap.Error(lastErr),
			)
			return false, nil
		}
		return true, nil
	})
	switch {
	case err == nil:
		return output, attempts, nil
	case ctx.Err() != nil:
		return "", attempts, err
	default:
		return "", attempts, fmt.Errorf("%w: %s after %d attempts: %w", ErrProposalRejected, node.Name(), attempts, lastErr)
	}
}

// DeployAndPropose deploys a single contract and proposes a block without
// retrying. It returns the prefix of the proposed block. [metrics] may be nil.
func DeployAndPropose(
	ctx context.Context,
	node nodenet.Node,
	template Template,
	contract string,
	nonce *uint64,
	metrics Metrics,
) (nodenet.HashPrefix, error) {
	if metrics == nil {
		metrics = noMetrics{}
	}
	err := Deploy(ctx, node, template, contract, nonce)
	metrics.Deployed(node.Name(), err == nil)
	if err != nil {
		return "", err
	}
	output, err := node.Propose(ctx)
	metrics.Proposed(node.Name(), 1, err == nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrProposalRejected, node.Name(), err)
	}
	return nodenet.ExtractBlockHash(output)
}
