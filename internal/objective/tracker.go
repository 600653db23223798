package objective

import (
	"log/slog"
	"sync"
)

// State is the lifecycle of a tracked objective.
type State int

const (
	StateInactive State = iota
	StateActive
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	default:
		return "inactive"
	}
}

// Tracker is the in-process objective system the night scheduler reports
// to. Activation is idempotent; a completed objective re-arms on the next
// activation, since the same defense objective is raised night after
// night. Thread-safe for concurrent access.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewTracker creates an empty objective tracker.
func NewTracker() *Tracker {
	return &Tracker{
		states: make(map[string]State, 8),
	}
}

// Activate marks an objective active. Activating an already-active
// objective is a no-op; activating a completed one re-arms it.
func (t *Tracker) Activate(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.states[id] {
	case StateActive:
		return
	case StateCompleted:
		slog.Info("objective reactivated", "objective", id)
	default:
		slog.Info("objective activated", "objective", id)
	}

	t.states[id] = StateActive
}

// Complete marks an active objective completed. Completing an objective
// that is not active is a logic error: reported and ignored.
func (t *Tracker) Complete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.states[id] != StateActive {
		slog.Warn("complete ignored for non-active objective",
			"objective", id,
			"state", t.states[id].String())
		return
	}

	t.states[id] = StateCompleted
	slog.Info("objective completed", "objective", id)
}

// IsActive reports whether the objective is currently active.
func (t *Tracker) IsActive(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[id] == StateActive
}

// IsCompleted reports whether the objective has been completed.
func (t *Tracker) IsCompleted(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[id] == StateCompleted
}

// StateOf returns the current state of an objective.
func (t *Tracker) StateOf(id string) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[id]
}
