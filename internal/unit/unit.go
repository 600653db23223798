package unit

import (
	"sync"

	"github.com/pkarpov/duskwatch/internal/plan"
)

// Unit is a live spawned defender target. The scheduler holds only a
// weak back-reference: the death subscription and nothing else. The
// world (Factory) owns the lifecycle.
type Unit struct {
	id       uint32
	unitType string
	point    plan.SpawnPoint
	health   float64
	speed    float64

	mu        sync.Mutex
	deathOnce sync.Once
	detach    func() // world bookkeeping, set by the factory
	onDeath   func()
	dead      bool
}

// ID returns the unique object ID.
func (u *Unit) ID() uint32 { return u.id }

// Type returns the unit type name.
func (u *Unit) Type() string { return u.unitType }

// Point returns the spawn point the unit appeared at.
func (u *Unit) Point() plan.SpawnPoint { return u.point }

// Health returns the unit's health after difficulty multipliers.
func (u *Unit) Health() float64 { return u.health }

// Speed returns the unit's movement speed after difficulty multipliers.
func (u *Unit) Speed() float64 { return u.speed }

// OnDeath registers the death notification handler. At most one handler
// is held; registering replaces any previous one.
func (u *Unit) OnDeath(fn func()) {
	u.mu.Lock()
	u.onDeath = fn
	u.mu.Unlock()
}

// ClearDeathHandler detaches the death handler. Used by the scheduler's
// teardown so stray deaths after a forced reset notify nobody.
func (u *Unit) ClearDeathHandler() {
	u.mu.Lock()
	u.onDeath = nil
	u.mu.Unlock()
}

// Kill marks the unit dead and fires the death notification exactly
// once, no matter how many times it is called.
func (u *Unit) Kill() {
	u.deathOnce.Do(func() {
		u.mu.Lock()
		u.dead = true
		detach := u.detach
		fn := u.onDeath
		u.onDeath = nil
		u.mu.Unlock()

		if detach != nil {
			detach()
		}
		if fn != nil {
			fn()
		}
	})
}

// Dead reports whether the unit has been killed.
func (u *Unit) Dead() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dead
}
