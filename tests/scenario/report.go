// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scenario

import (
	"time"

	"github.com/ava-labs/blockprop/tests/fixture/nodenet"
	"github.com/ava-labs/blockprop/tests/fixture/poll"
)

type PhaseRecord struct {
	Phase    Phase
	Note     string
	Started  time.Time
	Duration time.Duration
}

// Report describes a scenario run, whether it passed or not.
type Report struct {
	Scenario string
	Phases   []PhaseRecord
	Polls    []poll.Outcome
	// Prefixes of the blocks proposed by each node during the run.
	Produced map[string][]nodenet.HashPrefix
	// Every block count observed on each node, in order.
	BlockCounts map[string][]int
	Err         error
}

func newReport(scenario string) *Report {
	return &Report{
		Scenario:    scenario,
		Produced:    map[string][]nodenet.HashPrefix{},
		BlockCounts: map[string][]int{},
	}
}

// Phase returns the most recent phase of the run.
func (r *Report) Phase() Phase {
	if len(r.Phases) == 0 {
		return Provisioning
	}
	return r.Phases[len(r.Phases)-1].Phase
}

// PhaseSequence returns every phase visited, in order.
func (r *Report) PhaseSequence() []Phase {
	phases := make([]Phase, len(r.Phases))
	for i, record := range r.Phases {
		phases[i] = record.Phase
	}
	return phases
}

func (r *Report) Passed() bool {
	return r.Phase() == Passed
}
