package runstate

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ned0ra/diplom/internal/syncer"
)

var (
	ErrUnknownRun        = errors.New("unknown run")
	ErrInvalidTransition = errors.New("invalid run state transition")
)

// Run is a snapshot of one pipeline run.
type Run struct {
	ID         string        `json:"id"`
	State      State         `json:"state"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	Fetched    int           `json:"fetched"`
	Skipped    int           `json:"skipped"`
	Report     syncer.Report `json:"report"`
	Error      string        `json:"error,omitempty"`
}

// Tracker holds the current run of this process and notifies listeners
// when a run reaches a terminal state.
type Tracker struct {
	mu        sync.Mutex
	run       *Run
	listeners []func(Run)
	now       func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// OnFinish registers fn to be called with the final snapshot of every run.
func (t *Tracker) OnFinish(fn func(Run)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Start begins tracking a new run in PENDING, replacing the previous one.
func (t *Tracker) Start(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run = &Run{ID: id, State: StatePending, StartedAt: t.now().UTC()}
}

// Move transitions run id to state to.
func (t *Tracker) Move(id string, to State) error {
	return t.transition(id, to, nil)
}

// Record applies fn to run id without changing its state.
func (t *Tracker) Record(id string, fn func(*Run)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run == nil || t.run.ID != id {
		return fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	fn(t.run)
	return nil
}

// Succeed moves run id to SUCCEEDED and stores its sync report.
func (t *Tracker) Succeed(id string, rep syncer.Report) error {
	return t.transition(id, StateSucceeded, func(r *Run) { r.Report = rep })
}

// Fail moves run id to FAILED and records cause.
func (t *Tracker) Fail(id string, cause error) error {
	return t.transition(id, StateFailed, func(r *Run) {
		if cause != nil {
			r.Error = cause.Error()
		}
	})
}

// Last returns a copy of the current or most recent run.
func (t *Tracker) Last() (Run, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run == nil {
		return Run{}, false
	}
	return *t.run, true
}

func (t *Tracker) transition(id string, to State, mutate func(*Run)) error {
	t.mu.Lock()
	if t.run == nil || t.run.ID != id {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	from := t.run.State
	if !IsTransitionAllowed(from, to) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	t.run.State = to
	if mutate != nil {
		mutate(t.run)
	}

	var (
		snapshot  Run
		listeners []func(Run)
	)
	if IsTerminal(to) {
		t.run.FinishedAt = t.now().UTC()
		snapshot = *t.run
		listeners = append(listeners, t.listeners...)
	}
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return nil
}
