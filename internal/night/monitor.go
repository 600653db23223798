package night

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/pkarpov/duskwatch/internal/plan"
)

// NightStartThreshold is the time-of-day fraction at which a night
// begins. A design constant: it must match what the clock considers
// dusk, it is not derived from anything.
const NightStartThreshold = 0.868

// MonitorConfig tunes the night/day transition.
type MonitorConfig struct {
	// Threshold is the dusk time-of-day; NightStartThreshold if zero.
	Threshold   float64
	ObjectiveID string
}

func (c *MonitorConfig) applyDefaults() {
	if c.Threshold <= 0 || c.Threshold >= 1 {
		c.Threshold = NightStartThreshold
	}
	if c.ObjectiveID == "" {
		c.ObjectiveID = DefaultObjectiveID
	}
}

// Monitor bridges the continuous clock signal into discrete night
// start/end transitions and keeps the resolved (week, night) indices in
// sync with the day counter. It never touches Night Run State directly,
// only the Scheduler's public contract.
type Monitor struct {
	mu  sync.Mutex
	cfg MonitorConfig

	clock      Clock
	sched      *Scheduler
	objectives Objectives
	plan       *plan.Plan

	week         int
	night        int
	indicesOK    bool
	nightStarted bool
}

// NewMonitor wires the monitor. A missing clock or scheduler is fatal
// to this component; a missing plan is reported and degrades to "no
// night runs", since the rest of the game must keep going.
func NewMonitor(cfg MonitorConfig, clk Clock, sched *Scheduler, objectives Objectives, p *plan.Plan) (*Monitor, error) {
	if clk == nil {
		return nil, errors.New("night monitor: no clock, cannot monitor day/night cycle")
	}
	if sched == nil {
		return nil, errors.New("night monitor: no scheduler")
	}
	if objectives == nil {
		return nil, errors.New("night monitor: no objective bridge")
	}
	cfg.applyDefaults()

	m := &Monitor{
		cfg:        cfg,
		clock:      clk,
		sched:      sched,
		objectives: objectives,
		plan:       p,
	}
	if p == nil {
		slog.Error("night monitor: no spawn plan, nights disabled")
	}
	m.resolveLocked(clk.Day())
	return m, nil
}

// OnDayChanged recomputes the (week, night) indices for the new day.
// A day advancing while a night is still running is a forced reset: the
// in-progress night is torn down, not completed. Cached display indices
// refresh even when the new day is out of plan bounds.
func (m *Monitor) OnDayChanged(day int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The window flag stays set: a new day inside the same night window
	// must not start a second night. Only the run state is destroyed.
	if m.nightStarted && m.sched.NightStarted() {
		slog.Warn("day advanced while night running, forcing reset", "day", day)
		m.sched.ForceStop()
	}

	m.resolveLocked(day)
}

func (m *Monitor) resolveLocked(day int) {
	if m.plan == nil {
		m.indicesOK = false
		return
	}

	week, night, err := m.plan.ResolveNight(day)
	m.week, m.night = week, night
	if err != nil {
		m.indicesOK = false
		slog.Error("resolving night for day", "day", day, "error", err)
		return
	}

	m.indicesOK = true
	slog.Debug("night resolved", "day", day, "week", week, "night", night)
}

// Poll reads the clock and drives the night state machine: crossing the
// dusk threshold starts the resolved night, dropping back below it
// tears the night down. Called on a fixed cadence by the game loop.
func (m *Monitor) Poll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	tod := m.clock.TimeOfDay()
	switch {
	case tod >= m.cfg.Threshold && !m.nightStarted:
		m.nightStarted = true
		m.startNightLocked()

	case tod < m.cfg.Threshold && m.nightStarted:
		m.nightStarted = false
		// Forced reset, not a success completion. A night that already
		// cleared naturally makes this a no-op.
		m.sched.ForceStop()
		slog.Debug("night window closed", "timeOfDay", tod)
	}
}

func (m *Monitor) startNightLocked() {
	if !m.indicesOK {
		slog.Error("night not started: day is outside the spawn plan",
			"week", m.week,
			"night", m.night)
		return
	}

	n := m.plan.NightAt(m.week, m.night)
	if n == nil {
		slog.Error("night not started: no definition at indices",
			"week", m.week,
			"night", m.night)
		return
	}

	day := m.clock.Day()
	total := m.sched.StartNight(n, day)

	// The objective is raised only for a night that will actually
	// spawn something. Pausing is tied to the same gate so a
	// misconfigured night can never freeze time.
	if total > 0 && m.sched.PendingWaves() > 0 {
		m.clock.Pause()
		m.objectives.Activate(m.cfg.ObjectiveID)
		slog.Info("defense objective raised",
			"day", day,
			"week", m.week,
			"night", m.night,
			"totalUnits", total)
	} else {
		slog.Warn("night spawned nothing, objective not raised", "day", day)
	}
}

// Week returns the resolved week index for the current day.
func (m *Monitor) Week() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.week
}

// Night returns the resolved night index within the week.
func (m *Monitor) Night() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.night
}

// NightWindowOpen reports whether time-of-day is inside the night
// window as of the last poll.
func (m *Monitor) NightWindowOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nightStarted
}
