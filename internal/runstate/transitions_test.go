package runstate_test

import (
	"testing"

	"github.com/ned0ra/diplom/internal/runstate"
)

var allStates = []runstate.State{
	runstate.StatePending,
	runstate.StatePreparing,
	runstate.StatePrepared,
	runstate.StateSyncing,
	runstate.StateSucceeded,
	runstate.StateFailed,
}

// ── ParseState ─────────────────────────────────────────────────────────────

func TestParseState_ValidValues(t *testing.T) {
	valid := []string{"PENDING", "PREPARING", "PREPARED", "SYNCING", "SUCCEEDED", "FAILED"}
	for _, s := range valid {
		got, err := runstate.ParseState(s)
		if err != nil {
			t.Errorf("ParseState(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseState(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseState_Invalid(t *testing.T) {
	for _, s := range []string{"", "UNKNOWN", "pending", " SYNCING"} {
		if _, err := runstate.ParseState(s); err == nil {
			t.Errorf("ParseState(%q) expected error, got nil", s)
		}
	}
}

// ── IsTransitionAllowed ────────────────────────────────────────────────────

func TestIsTransitionAllowed_ValidForward(t *testing.T) {
	cases := []struct {
		from runstate.State
		to   runstate.State
	}{
		{runstate.StatePending, runstate.StatePreparing},
		{runstate.StatePreparing, runstate.StatePrepared},
		{runstate.StatePrepared, runstate.StateSyncing},
		{runstate.StateSyncing, runstate.StateSucceeded},
	}
	for _, c := range cases {
		if !runstate.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be true", c.from, c.to)
		}
	}
}

func TestIsTransitionAllowed_ToFailed(t *testing.T) {
	for _, from := range allStates {
		if runstate.IsTerminal(from) {
			continue
		}
		if !runstate.IsTransitionAllowed(from, runstate.StateFailed) {
			t.Errorf("IsTransitionAllowed(%s → FAILED) should be true", from)
		}
	}
}

func TestIsTransitionAllowed_FromTerminal(t *testing.T) {
	for _, from := range []runstate.State{runstate.StateSucceeded, runstate.StateFailed} {
		for _, to := range allStates {
			if runstate.IsTransitionAllowed(from, to) {
				t.Errorf("IsTransitionAllowed(%s → %s) should be false (terminal state)", from, to)
			}
		}
	}
}

func TestIsTransitionAllowed_SkipAndBackwards(t *testing.T) {
	cases := []struct {
		from runstate.State
		to   runstate.State
	}{
		{runstate.StatePending, runstate.StateSyncing},   // skip prepare
		{runstate.StatePending, runstate.StateSucceeded}, // skip all
		{runstate.StatePreparing, runstate.StateSyncing}, // skip PREPARED
		{runstate.StatePrepared, runstate.StatePreparing},
		{runstate.StateSyncing, runstate.StatePrepared},
		{runstate.StateSyncing, runstate.StateSyncing},
	}
	for _, c := range cases {
		if runstate.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false", c.from, c.to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range allStates {
		want := s == runstate.StateSucceeded || s == runstate.StateFailed
		if got := runstate.IsTerminal(s); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", s, got, want)
		}
	}
}
