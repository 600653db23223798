package unit

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pkarpov/duskwatch/internal/plan"
)

// TypeDef holds the base stats for one unit type. Difficulty multipliers
// from the wave definition are applied on top at spawn time.
type TypeDef struct {
	Health float64
	Speed  float64
}

// Factory instantiates units and tracks the live population.
type Factory struct {
	types map[string]TypeDef

	units     sync.Map // map[uint32]*Unit — objectID → unit
	idCounter atomic.Uint32
	aliveCnt  atomic.Int32 // cached count (O(1) access)
}

// NewFactory creates a factory over the configured unit roster.
func NewFactory(types map[string]TypeDef) *Factory {
	f := &Factory{types: types}

	// Start objectIDs from 100000, below is reserved for world objects.
	f.idCounter.Store(100000)

	return f
}

// HasType reports whether a unit type is configured.
func (f *Factory) HasType(name string) bool {
	_, ok := f.types[name]
	return ok
}

// Spawn instantiates a unit of the given type at a spawn point, with the
// wave's difficulty multipliers applied. The returned handle exposes the
// death notification the scheduler subscribes to.
func (f *Factory) Spawn(unitType string, point plan.SpawnPoint, speedMult, healthMult float64) (*Unit, error) {
	def, ok := f.types[unitType]
	if !ok {
		return nil, fmt.Errorf("spawning %q: unknown unit type", unitType)
	}

	u := &Unit{
		id:       f.idCounter.Add(1),
		unitType: unitType,
		point:    point,
		health:   def.Health * healthMult,
		speed:    def.Speed * speedMult,
	}

	f.units.Store(u.ID(), u)
	f.aliveCnt.Add(1)

	// The world drops its reference once the unit dies. The public
	// OnDeath slot stays free for the scheduler's subscription.
	u.detach = func() {
		f.remove(u.ID())
	}

	slog.Debug("unit spawned",
		"objectID", u.ID(),
		"type", unitType,
		"point", point.Name,
		"health", u.health,
		"speed", u.speed)

	return u, nil
}

func (f *Factory) remove(id uint32) {
	if _, ok := f.units.LoadAndDelete(id); ok {
		f.aliveCnt.Add(-1)
	}
}

// AliveCount returns the number of live units (O(1) cached count).
func (f *Factory) AliveCount() int {
	return int(f.aliveCnt.Load())
}

// Get returns a live unit by object ID.
func (f *Factory) Get(id uint32) (*Unit, bool) {
	value, ok := f.units.Load(id)
	if !ok {
		return nil, false
	}
	return value.(*Unit), true
}

// Range calls fn for every live unit until fn returns false.
func (f *Factory) Range(fn func(u *Unit) bool) {
	f.units.Range(func(_, value any) bool {
		return fn(value.(*Unit))
	})
}
