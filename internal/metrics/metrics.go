package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors for the night-defense scheduler. Bounded cardinality only:
// no per-unit or per-wave labels.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "duskwatch_loop_tick_duration_seconds",
		Help:    "Time spent in one game loop tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	unitsAlive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "duskwatch_units_alive",
		Help: "Units currently alive in the running night",
	})

	pendingWaves = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "duskwatch_pending_waves",
		Help: "Waves not yet started in the running night",
	})

	unitsSpawned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duskwatch_units_spawned_total",
		Help: "Total units spawned",
	})

	unitsDied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duskwatch_units_died_total",
		Help: "Total unit deaths attributed to the scheduler",
	})

	wavesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duskwatch_waves_started_total",
		Help: "Total waves started",
	})

	nightsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duskwatch_nights_started_total",
		Help: "Total nights started",
	})

	nightsCleared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duskwatch_nights_cleared_total",
		Help: "Total nights cleared via the completion predicate",
	})

	nightsForced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duskwatch_nights_force_stopped_total",
		Help: "Total nights torn down by a forced reset",
	})
)

// RecordTick records one loop tick's duration.
func RecordTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// SetUnitsAlive updates the live unit gauge.
func SetUnitsAlive(n int) {
	unitsAlive.Set(float64(n))
}

// SetPendingWaves updates the pending wave gauge.
func SetPendingWaves(n int) {
	pendingWaves.Set(float64(n))
}

// RecordSpawn increments the spawned-units counter.
func RecordSpawn() {
	unitsSpawned.Inc()
}

// RecordDeath increments the unit-death counter.
func RecordDeath() {
	unitsDied.Inc()
}

// RecordWaveStarted increments the wave counter.
func RecordWaveStarted() {
	wavesStarted.Inc()
}

// RecordNightStarted increments the night counter.
func RecordNightStarted() {
	nightsStarted.Inc()
}

// RecordNightCleared increments the cleared-night counter.
func RecordNightCleared() {
	nightsCleared.Inc()
}

// RecordNightForced increments the forced-reset counter.
func RecordNightForced() {
	nightsForced.Inc()
}
