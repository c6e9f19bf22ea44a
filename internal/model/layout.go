package model

import "fmt"

// TickLayout maps the monotonic tick counter onto simulated working days.
//
// A day consists of TicksPerDay ticks spread evenly over WorkdayMinutes
// minutes of simulated wall time, starting at StartHour. With the default
// layout (16 ticks, 480 minutes, start 09:00) each tick is 30 minutes:
// tick 0 is 09:00 on day 0, tick 3 is 10:30, tick 16 is 09:00 on day 1.
//
// The layout is pure derivation; it never mutates the tick counter.
type TickLayout struct {
	TicksPerDay    int64
	StartHour      int
	WorkdayMinutes int
}

// DefaultLayout is a 16-tick, 8-hour working day starting at 09:00.
var DefaultLayout = TickLayout{TicksPerDay: 16, StartHour: 9, WorkdayMinutes: 480}

// Validate checks the layout for usable values.
func (l TickLayout) Validate() error {
	if l.TicksPerDay <= 0 {
		return fmt.Errorf("ticks_per_day must be positive, got %d", l.TicksPerDay)
	}
	if l.WorkdayMinutes <= 0 {
		return fmt.Errorf("workday_minutes must be positive, got %d", l.WorkdayMinutes)
	}
	if l.StartHour < 0 || l.StartHour > 23 {
		return fmt.Errorf("start_hour must be in [0,23], got %d", l.StartHour)
	}
	return nil
}

// Day returns the day index for an absolute tick.
func (l TickLayout) Day(tick int64) int64 {
	return tick / l.TicksPerDay
}

// TimeOfDay returns the simulated (hour, minute) for an absolute tick.
func (l TickLayout) TimeOfDay(tick int64) (hour, minute int) {
	tickOfDay := tick % l.TicksPerDay
	minutes := int(tickOfDay * int64(l.WorkdayMinutes) / l.TicksPerDay)
	return l.StartHour + minutes/60, minutes % 60
}

// TickAt returns the absolute tick for (day, hour, minute), along with
// whether the time falls inside the working day at a tick boundary's
// granularity. Times before StartHour or past the end of the working day
// report ok=false.
func (l TickLayout) TickAt(day int64, hour, minute int) (tick int64, ok bool) {
	minutes := (hour-l.StartHour)*60 + minute
	if minutes < 0 || minutes >= l.WorkdayMinutes {
		return 0, false
	}
	return day*l.TicksPerDay + int64(minutes)*l.TicksPerDay/int64(l.WorkdayMinutes), true
}

// DayStart returns the first tick of a day.
func (l TickLayout) DayStart(day int64) int64 { return day * l.TicksPerDay }

// DayEnd returns the last tick of a day.
func (l TickLayout) DayEnd(day int64) int64 { return (day+1)*l.TicksPerDay - 1 }
