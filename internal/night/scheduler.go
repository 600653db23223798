package night

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pkarpov/duskwatch/internal/metrics"
	"github.com/pkarpov/duskwatch/internal/plan"
)

// DefaultObjectiveID is the mission raised while a defense night runs.
const DefaultObjectiveID = "zombie_defense"

// DefaultPostClearTimeOfDay is where the clock jumps after a cleared
// night: just before the midnight wrap, so the resumed clock rolls into
// the next day within moments instead of replaying the rest of the
// night at the old rate.
const DefaultPostClearTimeOfDay = 0.995

// SchedulerConfig tunes completion behavior.
type SchedulerConfig struct {
	ObjectiveID        string
	PostClearTimeOfDay float64
}

func (c *SchedulerConfig) applyDefaults() {
	if c.ObjectiveID == "" {
		c.ObjectiveID = DefaultObjectiveID
	}
	if c.PostClearTimeOfDay <= 0 || c.PostClearTimeOfDay >= 1 {
		c.PostClearTimeOfDay = DefaultPostClearTimeOfDay
	}
}

// Scheduler owns one Night Run State at a time: the pending-wave queue
// for the current night, the single active wave runner, the live-unit
// count and the completion check.
//
// All mutation happens through the public contract under one mutex; the
// game loop ticks it and the debug overlay reads it.
type Scheduler struct {
	mu  sync.Mutex
	cfg SchedulerConfig

	factory    UnitFactory
	clock      Clock
	objectives Objectives
	records    RecordStore // nil disables persistence

	// Night Run State. Created by StartNight, destroyed on completion
	// or forced reset.
	night      *plan.Night
	day        int
	started    bool
	elapsed    float64
	pending    []int // wave indices, plan order, only ever shrinks
	runner     *waveRunner
	unitsAlive int
	totalUnits int
	units      []Unit // death-handler back-refs for this night
	startedAt  time.Time
}

// NewScheduler wires the scheduler to its collaborators. The record
// store may be nil.
func NewScheduler(cfg SchedulerConfig, factory UnitFactory, clk Clock, objectives Objectives, records RecordStore) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		cfg:        cfg,
		factory:    factory,
		clock:      clk,
		objectives: objectives,
		records:    records,
	}
}

// StartNight initializes the run state for a night and returns the
// total unit count, so the caller can decide whether to raise the
// objective. A night with no waves or no units holds the completion
// predicate immediately and is torn down at dawn like any other.
func (s *Scheduler) StartNight(n *plan.Night, day int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		// Double start is a logic error in the caller. Reset and go on.
		slog.Warn("night already running, resetting before start", "day", day)
		s.forceStopLocked()
	}
	if n == nil {
		slog.Error("start night with nil definition", "day", day)
		return 0
	}

	s.night = n
	s.day = day
	s.totalUnits = n.TotalUnits()
	s.unitsAlive = s.totalUnits
	s.elapsed = 0
	s.runner = nil
	s.units = s.units[:0]
	s.pending = s.pending[:0]
	for i := range n.Waves {
		s.pending = append(s.pending, i)
	}
	s.startedAt = time.Now()
	s.started = true

	metrics.RecordNightStarted()
	metrics.SetUnitsAlive(s.unitsAlive)
	metrics.SetPendingWaves(len(s.pending))

	slog.Info("night started",
		"day", day,
		"night", n.Name,
		"waves", len(n.Waves),
		"totalUnits", s.totalUnits)

	// An empty night holds the completion predicate immediately. The
	// objective was never raised for it, so this is a plain reset.
	if s.unitsAlive == 0 && len(s.pending) == 0 {
		slog.Warn("night is empty, completing immediately", "day", day, "night", n.Name)
		s.resetLocked()
		return 0
	}
	if s.totalUnits == 0 {
		slog.Warn("night has no units to spawn", "day", day, "night", n.Name)
	}

	return s.totalUnits
}

// Tick advances night time by dt seconds: drives the active wave's
// spawn cadence, or starts the first pending wave whose offset has been
// reached. At most one wave starts per tick and waves never overlap; a
// new wave is considered only once the previous runner has fully
// finished spawning. This sequencing is a property of the scheduler,
// not of the wave definitions.
func (s *Scheduler) Tick(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.elapsed += dt

	if s.runner != nil {
		s.runner.tick(dt)
		if s.runner.finished() {
			slog.Info("wave finished spawning",
				"wave", s.runner.index,
				"name", s.runner.wave.Name,
				"spawned", s.runner.spawned)
			s.runner = nil
		}
		return
	}

	// pending stays in plan order, so the first eligible entry is the
	// plan-order tie-break the contract requires.
	for i, idx := range s.pending {
		w := &s.night.Waves[idx]
		if w.StartOffset > s.elapsed {
			continue
		}
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		metrics.SetPendingWaves(len(s.pending))
		s.startWaveLocked(idx, w)
		break
	}
}

func (s *Scheduler) startWaveLocked(idx int, w *plan.Wave) {
	slog.Info("wave starting",
		"wave", idx,
		"name", w.Name,
		"units", w.UnitCount,
		"interval", w.SpawnInterval,
		"offset", w.StartOffset,
		"nightElapsed", s.elapsed)
	metrics.RecordWaveStarted()

	r := startWaveRunner(idx, w, s.spawnLocked)
	if !r.finished() {
		s.runner = r
	}
}

// spawnLocked picks a random spawn point and unit type and asks the
// factory for a unit. A failed spawn is reported and still counts as
// spawned; the unit it should have produced can then never die, which
// is exactly why plans are validated at load time.
func (s *Scheduler) spawnLocked(w *plan.Wave) {
	point := w.SpawnPoints[rand.IntN(len(w.SpawnPoints))]
	unitType := w.UnitTypes[rand.IntN(len(w.UnitTypes))]

	u, err := s.factory.Spawn(unitType, point, w.SpeedMultiplier, w.HealthMultiplier)
	if err != nil {
		slog.Error("unit spawn failed",
			"wave", w.Name,
			"type", unitType,
			"point", point.Name,
			"error", err)
		return
	}

	u.OnDeath(s.OnUnitDeath)
	s.units = append(s.units, u)
	metrics.RecordSpawn()
}

// OnUnitDeath attributes one unit death to the running night. The count
// is clamped at zero: a decrement below zero is a factory contract
// violation, reported and ignored. The completion check runs
// synchronously here, so the objective-complete signal is never delayed
// past the tick the last unit died in.
func (s *Scheduler) OnUnitDeath() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		slog.Warn("unit death after night teardown, ignoring")
		return
	}
	if s.unitsAlive == 0 {
		slog.Warn("unit death would take alive count below zero, clamping")
		return
	}

	s.unitsAlive--
	metrics.RecordDeath()
	metrics.SetUnitsAlive(s.unitsAlive)

	if s.unitsAlive == 0 && len(s.pending) == 0 && s.runner == nil {
		s.finishLocked()
	}
}

// finishLocked handles the cleared night: completes the objective,
// hands time control back to the clock and resets the run state.
func (s *Scheduler) finishLocked() {
	cleared := time.Now()
	duration := cleared.Sub(s.startedAt)

	if s.objectives.IsActive(s.cfg.ObjectiveID) && !s.objectives.IsCompleted(s.cfg.ObjectiveID) {
		s.objectives.Complete(s.cfg.ObjectiveID)
		s.clock.Resume()
		s.clock.SetSpeed(1)
		s.clock.SetTimeOfDay(s.cfg.PostClearTimeOfDay)
		metrics.RecordNightCleared()

		slog.Info("night cleared",
			"day", s.day,
			"totalUnits", s.totalUnits,
			"duration", duration)

		if s.records != nil {
			rec := Record{
				Day:        s.day,
				Week:       (s.day - 1) / plan.NightsPerWeek,
				Night:      (s.day - 1) % plan.NightsPerWeek,
				TotalUnits: s.totalUnits,
				Waves:      len(s.night.Waves),
				StartedAt:  s.startedAt,
				ClearedAt:  cleared,
			}
			go s.saveRecord(rec)
		}
	}

	s.resetLocked()
}

func (s *Scheduler) saveRecord(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.records.SaveNightRecord(ctx, rec); err != nil {
		slog.Error("saving night record",
			"day", rec.Day,
			"error", err)
	}
}

// ForceStop cancels the active wave runner, drops every pending wave,
// zeroes the counters and detaches the death handlers of every unit
// spawned this night, so stray deaths after teardown are ignored.
// Idempotent; a no-op when no night is running.
func (s *Scheduler) ForceStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceStopLocked()
}

func (s *Scheduler) forceStopLocked() {
	if !s.started {
		return
	}

	if s.runner != nil {
		s.runner.cancel()
	}
	for _, u := range s.units {
		u.ClearDeathHandler()
	}

	slog.Info("night force-stopped",
		"day", s.day,
		"unitsAlive", s.unitsAlive,
		"pendingWaves", len(s.pending))
	metrics.RecordNightForced()

	s.resetLocked()
}

func (s *Scheduler) resetLocked() {
	s.night = nil
	s.started = false
	s.elapsed = 0
	s.pending = s.pending[:0]
	s.runner = nil
	s.unitsAlive = 0
	s.totalUnits = 0
	s.units = s.units[:0]

	metrics.SetUnitsAlive(0)
	metrics.SetPendingWaves(0)
}

// Observability getters. No side effects; a debug overlay reads these.

// UnitsAlive returns the live unit count for the running night.
func (s *Scheduler) UnitsAlive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unitsAlive
}

// TotalUnits returns the total unit count for the running night.
func (s *Scheduler) TotalUnits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalUnits
}

// PendingWaves returns how many waves have not started yet.
func (s *Scheduler) PendingWaves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// WaveActive reports whether a wave is currently spawning.
func (s *Scheduler) WaveActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runner != nil
}

// CurrentWave returns the active wave's plan index, or -1.
func (s *Scheduler) CurrentWave() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runner == nil {
		return -1
	}
	return s.runner.index
}

// NightStarted reports whether a night run is in progress.
func (s *Scheduler) NightStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
