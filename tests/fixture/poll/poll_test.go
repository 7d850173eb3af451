// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
	"github.com/ava-labs/blockprop/utils/logging"
)

var errUnreachable = errors.New("unreachable")

// testNode only answers identity questions; observations are supplied by
// the test.
type testNode struct {
	nodenet.Node

	name    string
	timeout time.Duration
}

func (n *testNode) Name() string {
	return n.name
}

func (n *testNode) Timeout() time.Duration {
	return n.timeout
}

// sequence returns an observation yielding [values] in order and repeating
// the last one. It also returns a pointer to the number of calls.
func sequence(values ...int) (Observation, *int) {
	calls := 0
	return func(context.Context, nodenet.Node) (int, error) {
		i := calls
		if i >= len(values) {
			i = len(values) - 1
		}
		calls++
		return values[i], nil
	}, &calls
}

type testRecorder struct {
	observed  []int
	exhausted int
}

func (r *testRecorder) Observed(_ string, _ Flavor, value int) {
	r.observed = append(r.observed, value)
}

func (r *testRecorder) Exhausted(string, Flavor) {
	r.exhausted++
}

func TestWaitForAtLeast(t *testing.T) {
	tests := []struct {
		name             string
		values           []int
		target           int
		attempts         int
		expectedErr      error
		expectedAttempts int
		expectedObserved int
	}{
		{
			name:             "satisfied immediately",
			values:           []int{7},
			target:           7,
			attempts:         14,
			expectedAttempts: 1,
			expectedObserved: 7,
		},
		{
			name:             "satisfied at third attempt",
			values:           []int{1, 3, 5, 7},
			target:           5,
			attempts:         10,
			expectedAttempts: 3,
			expectedObserved: 5,
		},
		{
			name:             "exceeding the target satisfies",
			values:           []int{1, 4},
			target:           3,
			attempts:         2,
			expectedAttempts: 2,
			expectedObserved: 4,
		},
		{
			name:             "exhausted",
			values:           []int{1, 2},
			target:           3,
			attempts:         4,
			expectedErr:      ErrConvergenceTimeout,
			expectedAttempts: 4,
			expectedObserved: 2,
		},
		{
			name:             "single attempt",
			values:           []int{0, 1},
			target:           1,
			attempts:         1,
			expectedErr:      ErrConvergenceTimeout,
			expectedAttempts: 1,
			expectedObserved: 0,
		},
		{
			name:        "no attempts",
			values:      []int{1},
			target:      1,
			attempts:    0,
			expectedErr: errInvalidAttempts,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			observe, calls := sequence(test.values...)
			recorder := &testRecorder{}
			poller := New(logging.NoLog{}, recorder)
			node := &testNode{name: "node-0", timeout: time.Second}

			outcome, err := poller.WaitForAtLeast(
				context.Background(),
				node,
				BlockCount,
				observe,
				test.target,
				Budget{Attempts: test.attempts, Delay: time.Millisecond},
			)
			require.ErrorIs(err, test.expectedErr)
			require.Equal(test.expectedAttempts, *calls)
			require.Equal(test.expectedAttempts, outcome.Attempts)
			require.Equal(test.expectedObserved, outcome.Observed)
			require.Equal(outcome.History, recorder.observed)
			require.Equal(err == nil, outcome.Satisfied())
			if errors.Is(err, ErrConvergenceTimeout) {
				require.Equal(1, recorder.exhausted)
			}
		})
	}
}

func TestTimeoutNamesNodeAndValues(t *testing.T) {
	require := require.New(t)

	observe, _ := sequence(2)
	poller := New(logging.NoLog{}, nil)
	node := &testNode{name: "node-2"}

	_, err := poller.WaitForAtLeast(context.Background(), node, PeerCount, observe, 3, Budget{Attempts: 2, Delay: time.Millisecond})
	require.ErrorIs(err, ErrConvergenceTimeout)
	require.ErrorContains(err, "node-2")
	require.ErrorContains(err, "peer-count")
	require.ErrorContains(err, "was 2 after 2 attempts, expected at least 3")
}

func TestObservationErrorsAreRetried(t *testing.T) {
	require := require.New(t)

	calls := 0
	observe := func(context.Context, nodenet.Node) (int, error) {
		calls++
		if calls < 3 {
			return 0, errUnreachable
		}
		return 1, nil
	}
	poller := New(logging.NoLog{}, nil)

	outcome, err := poller.WaitForAtLeast(context.Background(), &testNode{name: "node-0"}, BlockCount, observe, 1, Budget{Attempts: 3, Delay: time.Millisecond})
	require.NoError(err)
	require.Equal(3, outcome.Attempts)
	require.Equal([]int{1}, outcome.History)
	require.ErrorIs(outcome.LastErr, errUnreachable)
}

func TestExhaustionReportsLastError(t *testing.T) {
	observe := func(context.Context, nodenet.Node) (int, error) {
		return 0, errUnreachable
	}
	poller := New(logging.NoLog{}, nil)

	outcome, err := poller.WaitForAtLeast(context.Background(), &testNode{name: "node-0"}, BlockCount, observe, 1, Budget{Attempts: 2, Delay: time.Millisecond})
	require.ErrorIs(t, err, ErrConvergenceTimeout)
	require.ErrorContains(t, err, errUnreachable.Error())
	require.False(t, outcome.Satisfied())
}

func TestSingleAttemptDoesNotWait(t *testing.T) {
	require := require.New(t)

	observe, _ := sequence(0)
	poller := New(logging.NoLog{}, nil)

	start := time.Now()
	_, err := poller.WaitForAtLeast(context.Background(), &testNode{name: "node-0"}, BlockCount, observe, 1, Budget{Attempts: 1, Delay: time.Hour})
	require.ErrorIs(err, ErrConvergenceTimeout)
	require.Less(time.Since(start), time.Minute)
}

func TestDelayDerivedFromNodeTimeout(t *testing.T) {
	require := require.New(t)

	node := &testNode{name: "node-0", timeout: 40 * time.Millisecond}
	require.Equal(20*time.Millisecond, Attempts(3).delayFor(node))
	require.Equal(time.Duration(0), Attempts(1).delayFor(node))
	require.Equal(time.Second, Budget{Attempts: 3, Delay: time.Second}.delayFor(node))

	observe, calls := sequence(0)
	start := time.Now()
	_, err := New(logging.NoLog{}, nil).WaitForAtLeast(context.Background(), node, BlockCount, observe, 1, Attempts(3))
	require.ErrorIs(err, ErrConvergenceTimeout)
	require.Equal(3, *calls)
	require.GreaterOrEqual(time.Since(start), 40*time.Millisecond)
}

func TestCanceledContext(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	observe, calls := sequence(0)
	_, err := New(logging.NoLog{}, nil).WaitForAtLeast(ctx, &testNode{name: "node-0"}, BlockCount, observe, 1, Budget{Attempts: 3, Delay: time.Millisecond})
	require.ErrorIs(err, context.Canceled)
	require.Zero(*calls)
}

func TestBlockAndPeerFlavors(t *testing.T) {
	require := require.New(t)

	node := &countingNode{testNode: testNode{name: "node-0"}, blocks: 2, peers: 3}
	poller := New(logging.NoLog{}, nil)
	budget := Budget{Attempts: 1}

	outcome, err := poller.WaitForBlockCount(context.Background(), node, 2, budget)
	require.NoError(err)
	require.Equal(BlockCount, outcome.Flavor)

	outcome, err = poller.WaitForPeerCount(context.Background(), node, 3, budget)
	require.NoError(err)
	require.Equal(PeerCount, outcome.Flavor)

	_, err = poller.WaitForPeerCount(context.Background(), node, 4, budget)
	require.ErrorIs(err, ErrConvergenceTimeout)
}

type countingNode struct {
	testNode

	blocks int
	peers  int
}

func (n *countingNode) BlockCount(context.Context) (int, error) {
	return n.blocks, nil
}

func (n *countingNode) PeerCount(context.Context) (int, error) {
	return n.peers, nil
}

// An observation that never satisfies the target is made exactly as many
// times as the budget allows and always ends in a timeout.
func TestExhaustionProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("exhausts after exactly the attempt budget", prop.ForAll(
		func(attempts int, value int) bool {
			observe, calls := sequence(value)
			outcome, err := New(logging.NoLog{}, nil).WaitForAtLeast(
				context.Background(),
				&testNode{name: "node-0"},
				BlockCount,
				observe,
				value+1,
				Budget{Attempts: attempts, Delay: time.Microsecond},
			)
			return errors.Is(err, ErrConvergenceTimeout) &&
				*calls == attempts &&
				outcome.Attempts == attempts &&
				len(outcome.History) == attempts
		},
		gen.IntRange(1, 8),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
