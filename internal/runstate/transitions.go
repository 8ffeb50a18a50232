// Package runstate defines the lifecycle of one pipeline run.
//
// Valid state graph:
//
//	PENDING ──► PREPARING ──► PREPARED ──► SYNCING ──► SUCCEEDED
//	   │            │             │            │
//	   └────────────┴─────────────┴────────────┴──► FAILED
//
// SUCCEEDED and FAILED are terminal states.
package runstate

import "fmt"

// State of a run.
type State string

const (
	StatePending   State = "PENDING"
	StatePreparing State = "PREPARING"
	StatePrepared  State = "PREPARED"
	StateSyncing   State = "SYNCING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[State][]State{
	StatePending:   {StatePreparing, StateFailed},
	StatePreparing: {StatePrepared, StateFailed},
	StatePrepared:  {StateSyncing, StateFailed},
	StateSyncing:   {StateSucceeded, StateFailed},
	// SUCCEEDED and FAILED are terminal
}

// ParseState converts a raw string to a State, returning an error for
// unknown values.
func ParseState(s string) (State, error) {
	st := State(s)
	switch st {
	case StatePending, StatePreparing, StatePrepared, StateSyncing, StateSucceeded, StateFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown run state %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted.
func IsTransitionAllowed(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s State) bool { return s == StateSucceeded || s == StateFailed }
