// Package agent owns the run lifecycle: the state machine, the engine that
// drives it, and the context that accumulates everything a run produces.
package agent

import "fmt"

// State is a lifecycle stage. Values are lowercase on the wire and in
// run-state files.
type State string

const (
	StateStart       State = "start"
	StatePlanning    State = "planning"
	StateResearch    State = "research"
	StateValidation  State = "validation"
	StateSynthesis   State = "synthesis"
	StateHumanReview State = "human_review"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

func ParseState(s string) (State, error) {
	st := State(s)
	switch st {
	case StateStart, StatePlanning, StateResearch, StateValidation,
		StateSynthesis, StateHumanReview, StateCompleted, StateFailed:
		return st, nil
	default:
		return "", fmt.Errorf("invalid state: %q", s)
	}
}

// Terminal reports whether the state ends the run. No transition leaves a
// terminal state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// allowedTransitions is the complete transition relation. Anything not in
// this table is a programming error, not a recoverable condition.
var allowedTransitions = map[State][]State{
	StateStart:       {StatePlanning, StateFailed},
	StatePlanning:    {StateResearch, StateFailed},
	StateResearch:    {StateValidation, StateFailed},
	StateValidation:  {StateSynthesis, StateHumanReview, StateResearch, StateFailed},
	StateSynthesis:   {StateCompleted, StateFailed},
	StateHumanReview: {StateSynthesis, StateFailed},
	StateCompleted:   {},
	StateFailed:      {},
}

// CanTransition reports whether from -> to is in the transition relation.
func CanTransition(from, to State) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
