package clock

import (
	"log/slog"
	"sync"
)

// DayChangedFunc is notified with the new day number when the clock
// wraps past midnight.
type DayChangedFunc func(day int)

// GameClock is the survival game's day/night cycle: a normalized
// time-of-day in [0,1) advanced by the game loop, a 1-based day counter,
// and pause/speed control handed to the night scheduler during a defense.
//
// Listeners fire synchronously inside Advance, on the loop goroutine.
// The remaining accessors are safe to call from other goroutines (the
// debug overlay reads them).
type GameClock struct {
	mu sync.RWMutex

	timeOfDay float64 // [0,1)
	day       int     // 1-based
	dayLength float64 // real seconds per full day at speed 1x
	speed     float64
	paused    bool

	listeners []DayChangedFunc
}

// New creates a clock starting at the given day and time-of-day.
// dayLength is the number of real seconds one in-game day takes at 1x.
func New(day int, timeOfDay, dayLength float64) *GameClock {
	if day < 1 {
		day = 1
	}
	if dayLength <= 0 {
		dayLength = 1200
	}
	return &GameClock{
		timeOfDay: clampTime(timeOfDay),
		day:       day,
		dayLength: dayLength,
		speed:     1,
	}
}

// SubscribeDayChanged registers a listener for day transitions.
// Registration is wiring-time only, before the loop starts.
func (c *GameClock) SubscribeDayChanged(fn DayChangedFunc) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Advance moves time forward by dt real seconds. A paused clock does not
// move. Wrapping past midnight increments the day counter and notifies
// subscribers before Advance returns.
func (c *GameClock) Advance(dt float64) {
	c.mu.Lock()
	if c.paused || dt <= 0 {
		c.mu.Unlock()
		return
	}

	c.timeOfDay += dt * c.speed / c.dayLength

	var newDay int
	var listeners []DayChangedFunc
	for c.timeOfDay >= 1 {
		c.timeOfDay -= 1
		c.day++
		newDay = c.day
	}
	if newDay != 0 {
		listeners = append(listeners, c.listeners...)
	}
	c.mu.Unlock()

	if newDay != 0 {
		slog.Info("day changed", "day", newDay)
		for _, fn := range listeners {
			fn(newDay)
		}
	}
}

// TimeOfDay returns the normalized time-of-day in [0,1).
func (c *GameClock) TimeOfDay() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeOfDay
}

// Day returns the current 1-based day number.
func (c *GameClock) Day() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.day
}

// Pause stops time flow until Resume.
func (c *GameClock) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	slog.Debug("clock paused")
}

// Resume restarts time flow.
func (c *GameClock) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	slog.Debug("clock resumed")
}

// Paused reports whether the clock is currently paused.
func (c *GameClock) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// SetTimeOfDay jumps the clock to a specific time-of-day without
// touching the day counter.
func (c *GameClock) SetTimeOfDay(v float64) {
	c.mu.Lock()
	c.timeOfDay = clampTime(v)
	c.mu.Unlock()
}

// SetSpeed sets the time speed multiplier. Non-positive values reset to 1x.
func (c *GameClock) SetSpeed(mult float64) {
	if mult <= 0 {
		mult = 1
	}
	c.mu.Lock()
	c.speed = mult
	c.mu.Unlock()
}

// Speed returns the current speed multiplier.
func (c *GameClock) Speed() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speed
}

func clampTime(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v >= 1 {
		return 0.999999
	}
	return v
}
