package night

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkarpov/duskwatch/internal/objective"
	"github.com/pkarpov/duskwatch/internal/plan"
)

// fakeClock records time-control calls; no actual timekeeping.
type fakeClock struct {
	mu        sync.Mutex
	tod       float64
	day       int
	paused    bool
	speed     float64
	pauses    int
	resumes   int
	setTimes  []float64
	setSpeeds []float64
}

func newFakeClock(day int, tod float64) *fakeClock {
	return &fakeClock{day: day, tod: tod, speed: 1}
}

func (c *fakeClock) TimeOfDay() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tod
}

func (c *fakeClock) Day() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.day
}

func (c *fakeClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	c.pauses++
}

func (c *fakeClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.resumes++
}

func (c *fakeClock) SetTimeOfDay(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tod = v
	c.setTimes = append(c.setTimes, v)
}

func (c *fakeClock) SetSpeed(mult float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = mult
	c.setSpeeds = append(c.setSpeeds, mult)
}

func (c *fakeClock) setTOD(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tod = v
}

func (c *fakeClock) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// fakeUnit is a death-subscription stub. kill fires the registered
// handler once, like the real factory contract.
type fakeUnit struct {
	unitType string
	point    plan.SpawnPoint
	handler  func()
	cleared  bool
}

func (u *fakeUnit) OnDeath(fn func())  { u.handler = fn }
func (u *fakeUnit) ClearDeathHandler() { u.handler = nil; u.cleared = true }

func (u *fakeUnit) kill() {
	if u.handler != nil {
		h := u.handler
		u.handler = nil
		h()
	}
}

// fakeFactory records every spawn and hands back fakeUnits.
type fakeFactory struct {
	units   []*fakeUnit
	failAll bool
}

func (f *fakeFactory) Spawn(unitType string, point plan.SpawnPoint, speedMult, healthMult float64) (Unit, error) {
	if f.failAll {
		return nil, assert.AnError
	}
	u := &fakeUnit{unitType: unitType, point: point}
	f.units = append(f.units, u)
	return u, nil
}

func (f *fakeFactory) killAll() {
	for _, u := range f.units {
		u.kill()
	}
}

// fakeStore signals every save on a channel so tests can wait for the
// async persistence goroutine.
type fakeStore struct {
	saved chan Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(chan Record, 4)}
}

func (s *fakeStore) SaveNightRecord(_ context.Context, rec Record) error {
	s.saved <- rec
	return nil
}

func wave(name string, count int, interval, offset float64) plan.Wave {
	return plan.Wave{
		Name:             name,
		UnitCount:        count,
		SpawnInterval:    interval,
		StartOffset:      offset,
		UnitTypes:        []string{"walker"},
		SpeedMultiplier:  1,
		HealthMultiplier: 1,
		SpawnPoints:      []plan.SpawnPoint{{Name: "gate"}},
	}
}

type schedulerFixture struct {
	sched      *Scheduler
	clock      *fakeClock
	factory    *fakeFactory
	objectives *objective.Tracker
	store      *fakeStore
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		clock:      newFakeClock(1, 0.9),
		factory:    &fakeFactory{},
		objectives: objective.NewTracker(),
		store:      newFakeStore(),
	}
	f.sched = NewScheduler(SchedulerConfig{}, f.factory, f.clock, f.objectives, f.store)
	return f
}

// activate mirrors what the monitor does after a successful start.
func (f *schedulerFixture) activate() {
	f.clock.Pause()
	f.objectives.Activate(DefaultObjectiveID)
}

func TestScheduler_SingleWaveCadence(t *testing.T) {
	f := newSchedulerFixture(t)
	n := &plan.Night{Name: "test", Waves: []plan.Wave{wave("front", 3, 1, 0)}}

	total := f.sched.StartNight(n, 1)
	require.Equal(t, 3, total)
	f.activate()

	assert.True(t, f.sched.NightStarted())
	assert.Equal(t, 3, f.sched.UnitsAlive())
	assert.Equal(t, 1, f.sched.PendingWaves())
	assert.False(t, f.sched.WaveActive())

	// Offset 0: the wave starts on the first tick, first unit immediately.
	f.sched.Tick(0)
	assert.True(t, f.sched.WaveActive())
	assert.Equal(t, 0, f.sched.CurrentWave())
	assert.Equal(t, 0, f.sched.PendingWaves())
	require.Len(t, f.factory.units, 1)

	// One interval elapses, second unit.
	f.sched.Tick(1)
	require.Len(t, f.factory.units, 2)
	assert.True(t, f.sched.WaveActive())

	// Last unit; the runner is discarded on the same tick it finishes.
	f.sched.Tick(1)
	require.Len(t, f.factory.units, 3)
	assert.False(t, f.sched.WaveActive())
	assert.Equal(t, -1, f.sched.CurrentWave())

	// No further spawns ever.
	f.sched.Tick(10)
	assert.Len(t, f.factory.units, 3)
}

func TestScheduler_LargeTickSpawnsAllDueUnits(t *testing.T) {
	f := newSchedulerFixture(t)
	n := &plan.Night{Waves: []plan.Wave{wave("front", 5, 1, 0)}}
	f.sched.StartNight(n, 1)

	f.sched.Tick(0) // wave starts, 1 spawned
	f.sched.Tick(10)
	assert.Len(t, f.factory.units, 5)
}

func TestScheduler_WavesNeverOverlap(t *testing.T) {
	f := newSchedulerFixture(t)
	// Both waves due immediately. The second must wait until the first
	// finished spawning, then start on a later tick in plan order.
	n := &plan.Night{Waves: []plan.Wave{
		wave("first", 2, 1, 0),
		wave("second", 2, 1, 0),
	}}
	f.sched.StartNight(n, 1)

	f.sched.Tick(0)
	assert.Equal(t, 0, f.sched.CurrentWave())
	assert.Equal(t, 1, f.sched.PendingWaves())

	// First wave's last spawn. The tick that finishes a runner never also
	// starts the next wave, so "second" is still pending.
	f.sched.Tick(1)
	require.Len(t, f.factory.units, 2)
	assert.False(t, f.sched.WaveActive())
	assert.Equal(t, 1, f.sched.PendingWaves())

	f.sched.Tick(0.1)
	assert.Equal(t, 1, f.sched.CurrentWave())
	require.Len(t, f.factory.units, 3)

	f.sched.Tick(1)
	assert.Len(t, f.factory.units, 4)
}

func TestScheduler_OffsetGatesWaveStart(t *testing.T) {
	f := newSchedulerFixture(t)
	n := &plan.Night{Waves: []plan.Wave{wave("late", 1, 1, 5)}}
	f.sched.StartNight(n, 1)

	f.sched.Tick(2)
	assert.False(t, f.sched.WaveActive())
	assert.Empty(t, f.factory.units)

	f.sched.Tick(2)
	assert.Empty(t, f.factory.units)

	f.sched.Tick(1.5) // elapsed 5.5 >= offset 5
	require.Len(t, f.factory.units, 1)
}

func TestScheduler_AtMostOneWaveStartPerTick(t *testing.T) {
	f := newSchedulerFixture(t)
	n := &plan.Night{Waves: []plan.Wave{
		wave("a", 1, 1, 0),
		wave("b", 1, 1, 0),
	}}
	f.sched.StartNight(n, 1)

	// Wave "a" is a single spawn: its runner is finished at start and is
	// never stored. "b" is also due, but only one wave may start per tick.
	f.sched.Tick(0)
	assert.Len(t, f.factory.units, 1)
	assert.Equal(t, 1, f.sched.PendingWaves())

	f.sched.Tick(0)
	assert.Len(t, f.factory.units, 2)
	assert.Equal(t, 0, f.sched.PendingWaves())
}

func TestScheduler_ClearCompletesObjectiveAndRestoresClock(t *testing.T) {
	f := newSchedulerFixture(t)
	n := &plan.Night{Name: "clearable", Waves: []plan.Wave{wave("front", 3, 1, 0)}}
	f.sched.StartNight(n, 7)
	f.activate()

	f.sched.Tick(0)
	f.sched.Tick(1)
	f.sched.Tick(1)
	f.sched.Tick(0.1) // runner cleanup
	require.Len(t, f.factory.units, 3)

	// Kill all but one: nothing completes yet.
	f.factory.units[0].kill()
	f.factory.units[1].kill()
	assert.Equal(t, 1, f.sched.UnitsAlive())
	assert.False(t, f.objectives.IsCompleted(DefaultObjectiveID))
	assert.True(t, f.clock.isPaused())

	f.factory.units[2].kill()

	assert.True(t, f.objectives.IsCompleted(DefaultObjectiveID))
	assert.False(t, f.clock.isPaused())
	assert.InDelta(t, DefaultPostClearTimeOfDay, f.clock.TimeOfDay(), 1e-9)
	assert.Equal(t, []float64{1}, f.clock.setSpeeds)

	// Run state is gone.
	assert.False(t, f.sched.NightStarted())
	assert.Equal(t, 0, f.sched.UnitsAlive())
	assert.Equal(t, 0, f.sched.TotalUnits())

	select {
	case rec := <-f.store.saved:
		assert.Equal(t, 7, rec.Day)
		assert.Equal(t, 1, rec.Week)
		assert.Equal(t, 1, rec.Night)
		assert.Equal(t, 3, rec.TotalUnits)
		assert.Equal(t, 1, rec.Waves)
		assert.False(t, rec.ClearedAt.Before(rec.StartedAt))
	case <-time.After(2 * time.Second):
		t.Fatal("night record was never persisted")
	}
}

func TestScheduler_ActiveRunnerBlocksCompletion(t *testing.T) {
	f := newSchedulerFixture(t)
	n := &plan.Night{Waves: []plan.Wave{wave("front", 2, 1, 0)}}
	f.sched.StartNight(n, 1)
	f.activate()

	f.sched.Tick(0) // one of two spawned, runner mid-wave
	require.Len(t, f.factory.units, 1)
	require.True(t, f.sched.WaveActive())

	// Drive the alive count to zero by hand while the runner is still
	// active. The completion predicate must not fire: the wave has a unit
	// left to spawn.
	f.sched.OnUnitDeath()
	f.sched.OnUnitDeath()
	assert.Equal(t, 0, f.sched.UnitsAlive())
	assert.True(t, f.sched.NightStarted())
	assert.False(t, f.objectives.IsCompleted(DefaultObjectiveID))

	// A further death with the count already at zero clamps.
	f.sched.OnUnitDeath()
	assert.Equal(t, 0, f.sched.UnitsAlive())
	assert.True(t, f.sched.NightStarted())
}

func TestScheduler_EmptyNightCompletesImmediately(t *testing.T) {
	f := newSchedulerFixture(t)
	n := &plan.Night{Name: "empty"}

	total := f.sched.StartNight(n, 1)
	assert.Equal(t, 0, total)
	assert.False(t, f.sched.NightStarted())
	assert.False(t, f.objectives.IsActive(DefaultObjectiveID))
	assert.Equal(t, 0, f.clock.pauses)
}

func TestScheduler_NilNight(t *testing.T) {
	f := newSchedulerFixture(t)
	assert.Equal(t, 0, f.sched.StartNight(nil, 1))
	assert.False(t, f.sched.NightStarted())
}

func TestScheduler_DeathAfterTeardownIgnored(t *testing.T) {
	f := newSchedulerFixture(t)
	n := &plan.Night{Waves: []plan.Wave{wave("front", 1, 1, 0)}}
	f.sched.StartNight(n, 1)
	f.activate()

	f.sched.Tick(0)
	require.Len(t, f.factory.units, 1)

	f.factory.units[0].kill()
	require.False(t, f.sched.NightStarted())

	// Deaths reported after the run state is gone change nothing.
	f.sched.OnUnitDeath()
	f.sched.OnUnitDeath()
	assert.Equal(t, 0, f.sched.UnitsAlive())
	assert.False(t, f.sched.NightStarted())
}

func TestScheduler_ForceStopCancelsEverything(t *testing.T) {
	f := newSchedulerFixture(t)
	n := &plan.Night{Waves: []plan.Wave{
		wave("front", 5, 2, 0),
		wave("late", 3, 1, 100),
	}}
	f.sched.StartNight(n, 1)
	f.activate()

	f.sched.Tick(0)
	f.sched.Tick(2)
	require.Len(t, f.factory.units, 2)

	f.sched.ForceStop()
	assert.False(t, f.sched.NightStarted())
	assert.Equal(t, 0, f.sched.UnitsAlive())
	assert.Equal(t, 0, f.sched.PendingWaves())
	assert.False(t, f.sched.WaveActive())

	// Cancelled runner spawns nothing more.
	f.sched.Tick(10)
	assert.Len(t, f.factory.units, 2)

	// Death handlers were detached: stray kills are harmless and the
	// objective never completes.
	for _, u := range f.factory.units {
		assert.True(t, u.cleared)
		u.kill()
	}
	assert.False(t, f.objectives.IsCompleted(DefaultObjectiveID))

	// Idempotent.
	f.sched.ForceStop()
}

func TestScheduler_DoubleStartResets(t *testing.T) {
	f := newSchedulerFixture(t)
	first := &plan.Night{Waves: []plan.Wave{wave("front", 4, 1, 0)}}
	f.sched.StartNight(first, 1)
	f.sched.Tick(0)
	require.Len(t, f.factory.units, 1)

	second := &plan.Night{Waves: []plan.Wave{wave("other", 2, 1, 0)}}
	total := f.sched.StartNight(second, 2)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, f.sched.UnitsAlive())
	assert.Equal(t, 1, f.sched.PendingWaves())

	// The first night's unit is detached; its death is not attributed.
	f.factory.units[0].kill()
	assert.Equal(t, 2, f.sched.UnitsAlive())
}

func TestScheduler_SpawnFailureStillCountsAsSpawned(t *testing.T) {
	f := newSchedulerFixture(t)
	f.factory.failAll = true
	n := &plan.Night{Waves: []plan.Wave{wave("front", 2, 1, 0)}}
	f.sched.StartNight(n, 1)

	f.sched.Tick(0)
	f.sched.Tick(1)
	f.sched.Tick(0.1)

	// The wave ran to completion despite producing nothing; the units it
	// failed to produce can never die, so the night stays open until dawn.
	assert.False(t, f.sched.WaveActive())
	assert.Equal(t, 0, f.sched.PendingWaves())
	assert.Equal(t, 2, f.sched.UnitsAlive())
	assert.True(t, f.sched.NightStarted())
}

func TestScheduler_NilRecordStore(t *testing.T) {
	clk := newFakeClock(1, 0.9)
	factory := &fakeFactory{}
	objectives := objective.NewTracker()
	sched := NewScheduler(SchedulerConfig{}, factory, clk, objectives, nil)

	n := &plan.Night{Waves: []plan.Wave{wave("front", 1, 1, 0)}}
	sched.StartNight(n, 1)
	objectives.Activate(DefaultObjectiveID)
	sched.Tick(0)
	sched.Tick(0.1)

	factory.killAll()
	assert.True(t, objectives.IsCompleted(DefaultObjectiveID))
	assert.False(t, sched.NightStarted())
}

func TestScheduler_RandomizedCompletion(t *testing.T) {
	// Property check: under arbitrary tick/kill interleavings the night
	// completes exactly when all waves have spawned and every unit died.
	for seed := range 20 {
		rng := rand.New(rand.NewPCG(uint64(seed), 42))
		f := newSchedulerFixture(t)
		n := &plan.Night{Waves: []plan.Wave{
			wave("a", 3, 1, 0),
			wave("b", 2, 0.5, 2),
			wave("c", 4, 1.5, 5),
		}}
		total := f.sched.StartNight(n, 1)
		require.Equal(t, 9, total)
		f.activate()

		killed := 0
		for range 1000 {
			if rng.IntN(2) == 0 {
				f.sched.Tick(rng.Float64())
			} else if killed < len(f.factory.units) {
				f.factory.units[killed].kill()
				killed++
			}
			if !f.sched.NightStarted() {
				break
			}
		}
		// Drain: finish spawning, then kill the rest.
		for range 50 {
			f.sched.Tick(1)
		}
		for killed < len(f.factory.units) {
			f.factory.units[killed].kill()
			killed++
		}

		assert.Len(t, f.factory.units, 9, "seed %d", seed)
		assert.True(t, f.objectives.IsCompleted(DefaultObjectiveID), "seed %d", seed)
		assert.False(t, f.sched.NightStarted(), "seed %d", seed)
	}
}
