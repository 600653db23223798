// Package night implements the wave/night spawning scheduler: the
// Week → Night → Wave plan driver that decides when a defense night
// starts, sequences its waves, aggregates unit deaths and detects the
// cleared state.
//
// Collaborator contracts are declared here, on the consumer side; the
// concrete implementations live in internal/clock, internal/objective,
// internal/unit and internal/db.
package night

import (
	"context"
	"time"

	"github.com/pkarpov/duskwatch/internal/plan"
)

// Clock is the day/night cycle the scheduler polls and controls.
type Clock interface {
	// TimeOfDay returns the normalized time-of-day in [0,1).
	TimeOfDay() float64
	// Day returns the current 1-based day number.
	Day() int
	Pause()
	Resume()
	SetTimeOfDay(v float64)
	SetSpeed(mult float64)
}

// Objectives is the mission system notified on defense start and clear.
type Objectives interface {
	// Activate is idempotent: activating an active objective is a no-op.
	Activate(id string)
	Complete(id string)
	IsActive(id string) bool
	IsCompleted(id string) bool
}

// Unit is the scheduler's weak back-reference to a spawned unit:
// the death subscription and nothing else. Lifecycle stays with the
// world that spawned it.
type Unit interface {
	// OnDeath registers the death notification handler. The factory
	// contract guarantees it fires at most once per unit.
	OnDeath(fn func())
	// ClearDeathHandler is the unsubscribe path used on forced reset.
	ClearDeathHandler()
}

// UnitFactory instantiates units with difficulty modifiers applied.
type UnitFactory interface {
	Spawn(unitType string, point plan.SpawnPoint, speedMult, healthMult float64) (Unit, error)
}

// Record is the persisted outcome of one cleared night.
type Record struct {
	Day        int
	Week       int
	Night      int
	TotalUnits int
	Waves      int
	StartedAt  time.Time
	ClearedAt  time.Time
}

// RecordStore persists cleared-night records. A nil store disables
// persistence without changing scheduler behavior.
type RecordStore interface {
	SaveNightRecord(ctx context.Context, rec Record) error
}
