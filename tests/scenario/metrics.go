// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scenario

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/blockprop/tests/fixture/deploy"
	"github.com/ava-labs/blockprop/tests/fixture/poll"
	"github.com/ava-labs/blockprop/tests/fixture/topology"
)

const (
	flavorLabel   = "flavor"
	resultLabel   = "result"
	opLabel       = "op"
	scenarioLabel = "scenario"
	phaseLabel    = "phase"

	successResult = "success"
	failureResult = "failure"
)

var (
	_ poll.Recorder     = (*Metrics)(nil)
	_ deploy.Metrics    = (*Metrics)(nil)
	_ topology.Recorder = (*Metrics)(nil)
)

func resultOf(success bool) string {
	if success {
		return successResult
	}
	return failureResult
}

// Metrics of the harness itself. A nil *Metrics records nothing.
type Metrics struct {
	pollObservations *prometheus.CounterVec
	pollTimeouts     *prometheus.CounterVec
	deploys          *prometheus.CounterVec
	proposals        *prometheus.CounterVec
	proposalRetries  prometheus.Counter
	mutations        *prometheus.CounterVec
	phaseDurations   *prometheus.HistogramVec
	runs             *prometheus.CounterVec
}

func NewMetrics(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		pollObservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_observations",
			Help:      "Number of successful node observations made while polling",
		}, []string{flavorLabel}),
		pollTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_timeouts",
			Help:      "Number of polls that exhausted their attempt budget",
		}, []string{flavorLabel}),
		deploys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deploys",
			Help:      "Number of deploys submitted",
		}, []string{resultLabel}),
		proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals",
			Help:      "Number of proposal steps by result. Rejected attempts that were retried are counted by proposal_retries",
		}, []string{resultLabel}),
		proposalRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposal_retries",
			Help:      "Number of proposal attempts beyond the first",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topology_mutations",
			Help:      "Number of link mutations applied to the network",
		}, []string{opLabel, resultLabel}),
		phaseDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Time spent in each scenario phase",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{scenarioLabel, phaseLabel}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenario_runs",
			Help:      "Number of finished scenario runs",
		}, []string{scenarioLabel, resultLabel}),
	}
	err := errors.Join(
		registerer.Register(m.pollObservations),
		registerer.Register(m.pollTimeouts),
		registerer.Register(m.deploys),
		registerer.Register(m.proposals),
		registerer.Register(m.proposalRetries),
		registerer.Register(m.mutations),
		registerer.Register(m.phaseDurations),
		registerer.Register(m.runs),
	)
	return m, err
}

func (m *Metrics) Observed(_ string, flavor poll.Flavor, _ int) {
	if m == nil {
		return
	}
	m.pollObservations.WithLabelValues(string(flavor)).Inc()
}

func (m *Metrics) Exhausted(_ string, flavor poll.Flavor) {
	if m == nil {
		return
	}
	m.pollTimeouts.WithLabelValues(string(flavor)).Inc()
}

func (m *Metrics) Deployed(_ string, success bool) {
	if m == nil {
		return
	}
	m.deploys.WithLabelValues(resultOf(success)).Inc()
}

func (m *Metrics) Proposed(_ string, attempts int, success bool) {
	if m == nil {
		return
	}
	m.proposals.WithLabelValues(resultOf(success)).Inc()
	if attempts > 1 {
		m.proposalRetries.Add(float64(attempts - 1))
	}
}

func (m *Metrics) Mutated(op string, success bool) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, resultOf(success)).Inc()
}

func (m *Metrics) phaseFinished(scenario string, phase Phase, duration time.Duration) {
	if m == nil {
		return
	}
	m.phaseDurations.WithLabelValues(scenario, phase.String()).Observe(duration.Seconds())
}

func (m *Metrics) runFinished(scenario string, passed bool) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(scenario, resultOf(passed)).Inc()
}
