package night

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkarpov/duskwatch/internal/metrics"
)

// Advancer is the write side of the clock, driven only by the loop.
type Advancer interface {
	Advance(dt float64)
}

// Loop is the fixed-step game loop for the defense subsystem. One
// goroutine owns every Night Run State mutation: each step advances the
// clock (which fires day-changed synchronously), runs the monitor poll
// on its own cadence and ticks the scheduler.
type Loop struct {
	clock   Advancer
	monitor *Monitor
	sched   *Scheduler

	tick time.Duration
	poll time.Duration
}

// NewLoop creates the loop. tick defaults to 100ms, poll to 500ms.
func NewLoop(clk Advancer, monitor *Monitor, sched *Scheduler, tick, poll time.Duration) *Loop {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &Loop{
		clock:   clk,
		monitor: monitor,
		sched:   sched,
		tick:    tick,
		poll:    poll,
	}
}

// Run blocks until the context is canceled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	slog.Info("game loop started", "tick", l.tick, "poll", l.poll)

	dt := l.tick.Seconds()
	var sincePoll time.Duration

	for {
		select {
		case <-ctx.Done():
			slog.Info("game loop stopping")
			return ctx.Err()

		case <-ticker.C:
			start := time.Now()

			l.clock.Advance(dt)

			sincePoll += l.tick
			if sincePoll >= l.poll {
				sincePoll = 0
				l.monitor.Poll()
			}

			l.sched.Tick(dt)
			metrics.RecordTick(time.Since(start))
		}
	}
}

// Step runs one loop iteration with an explicit dt. Poll cadence is
// bypassed: the monitor polls every step. Used by simulation harnesses.
func (l *Loop) Step(dt float64) {
	l.clock.Advance(dt)
	l.monitor.Poll()
	l.sched.Tick(dt)
}
