// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scenario

// Phase is a step of a scenario run. Scenarios that mutate the topology more
// than once may visit a phase several times.
type Phase int

const (
	Provisioning Phase = iota
	ConvergingGenesis
	Loading
	ConvergingPostLoad
	MutatingTopology
	ConvergingPostMutation
	Asserting
	Passed
	Failed
)

func (p Phase) String() string {
	switch p {
	case Provisioning:
		return "provisioning"
	case ConvergingGenesis:
		return "converging-genesis"
	case Loading:
		return "loading"
	case ConvergingPostLoad:
		return "converging-post-load"
	case MutatingTopology:
		return "mutating-topology"
	case ConvergingPostMutation:
		return "converging-post-mutation"
	case Asserting:
		return "asserting"
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no phase can follow [p].
func (p Phase) Terminal() bool {
	return p == Passed || p == Failed
}
