package night

import (
	"log/slog"

	"github.com/pkarpov/duskwatch/internal/plan"
)

// waveRunner drives spawning for a single active wave: exactly UnitCount
// spawns at SpawnInterval cadence, first unit at wave start. The pending
// delay between spawns is an explicit countdown the scheduler's tick
// advances, so cancellation is a plain state change — a cancelled runner
// can never spawn again.
type waveRunner struct {
	index     int
	wave      *plan.Wave
	spawnFn   func(w *plan.Wave)
	spawned   int
	untilNext float64 // seconds until the next spawn
	done      bool
}

// startWaveRunner begins a wave, spawning its first unit immediately.
// A wave with no spawn points or no unit types aborts: it spawns
// nothing and is immediately inactive. Misconfiguration must not
// silently simulate progress from a default location.
func startWaveRunner(index int, w *plan.Wave, spawnFn func(w *plan.Wave)) *waveRunner {
	r := &waveRunner{
		index:   index,
		wave:    w,
		spawnFn: spawnFn,
	}

	if len(w.SpawnPoints) == 0 || len(w.UnitTypes) == 0 {
		slog.Error("wave misconfigured, aborting",
			"wave", index,
			"name", w.Name,
			"spawnPoints", len(w.SpawnPoints),
			"unitTypes", len(w.UnitTypes))
		r.done = true
		return r
	}
	if w.UnitCount <= 0 {
		r.done = true
		return r
	}

	r.spawnFn(w)
	r.spawned = 1
	r.untilNext = w.SpawnInterval
	if r.spawned >= w.UnitCount {
		r.done = true
	}
	return r
}

// tick advances the spawn countdown by dt seconds, spawning every unit
// that has come due. After the last spawn the wave is no longer active.
func (r *waveRunner) tick(dt float64) {
	if r.done {
		return
	}

	r.untilNext -= dt
	for r.untilNext <= 0 && r.spawned < r.wave.UnitCount {
		r.spawnFn(r.wave)
		r.spawned++
		r.untilNext += r.wave.SpawnInterval
	}

	if r.spawned >= r.wave.UnitCount {
		r.done = true
	}
}

// finished reports whether the wave has spawned everything (or aborted).
func (r *waveRunner) finished() bool { return r.done }

// cancel discards the pending spawn delay. No further units spawn.
func (r *waveRunner) cancel() { r.done = true }
