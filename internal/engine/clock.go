package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxline/workday/internal/model"
)

// TickLogger records one row per unit advance of the clock.
// *store.Store satisfies this interface.
type TickLogger interface {
	AppendTickLog(ctx context.Context, tick int64, reason string, at time.Time) error
}

// Clock owns the monotonic tick counter for one simulation.
//
// The counter only moves through Advance, which is serialized by an
// internal mutex; concurrent advances cannot interleave. Reads go through
// an atomic and never block behind an advance in progress.
//
// Calendar-like values (day, hour, minute) are derived from the tick via
// the configured TickLayout, never stored.
type Clock struct {
	layout model.TickLayout
	log    TickLogger

	mu   sync.Mutex // serializes Advance
	tick atomic.Int64

	running     atomic.Bool
	autoAdvance atomic.Bool
}

// Status is a read-only snapshot of the clock.
type Status struct {
	Tick        int64 `json:"tick"`
	Day         int64 `json:"day"`
	Hour        int   `json:"hour"`
	Minute      int   `json:"minute"`
	Running     bool  `json:"running"`
	AutoAdvance bool  `json:"auto_advance"`
}

// NewClock creates a clock starting at tick 0.
func NewClock(layout model.TickLayout, log TickLogger) *Clock {
	return &Clock{layout: layout, log: log}
}

// NewClockAt creates a clock starting at a specific tick. Used to resume
// a simulation from the persisted tick log.
func NewClockAt(layout model.TickLayout, log TickLogger, start int64) *Clock {
	if start < 0 {
		panic(fmt.Sprintf("clock: negative start tick %d", start))
	}
	c := NewClock(layout, log)
	c.tick.Store(start)
	return c
}

// Advance atomically increases the tick counter by n, appending one tick
// log row per unit advanced. Returns the new tick.
//
// Advancing by n <= 0 is a programming error and panics: the counter is
// monotonically non-decreasing and silent clamping would hide the bug.
func (c *Clock) Advance(ctx context.Context, n int64, reason string) int64 {
	if n <= 0 {
		panic(fmt.Sprintf("clock: advance by %d would not increase the tick", n))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tick := c.tick.Load()
	for i := int64(0); i < n; i++ {
		tick++
		if c.log != nil {
			if err := c.log.AppendTickLog(ctx, tick, reason, time.Now()); err != nil {
				// Log persistence is diagnostic; losing a row does not
				// justify halting the simulation.
				slog.Warn("tick log append failed", "tick", tick, "error", err)
			}
		}
	}
	c.tick.Store(tick)

	slog.Debug("clock advanced", "tick", tick, "by", n, "reason", reason)
	return tick
}

// Tick returns the current tick without blocking behind an advance.
func (c *Clock) Tick() int64 { return c.tick.Load() }

// Current returns a snapshot of the clock with derived calendar values.
func (c *Clock) Current() Status {
	tick := c.tick.Load()
	hour, minute := c.layout.TimeOfDay(tick)
	return Status{
		Tick:        tick,
		Day:         c.layout.Day(tick),
		Hour:        hour,
		Minute:      minute,
		Running:     c.running.Load(),
		AutoAdvance: c.autoAdvance.Load(),
	}
}

// Layout returns the tick layout the clock derives calendar values with.
func (c *Clock) Layout() model.TickLayout { return c.layout }

func (c *Clock) setRunning(v bool)     { c.running.Store(v) }
func (c *Clock) setAutoAdvance(v bool) { c.autoAdvance.Store(v) }
