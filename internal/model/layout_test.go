package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTickLayout_Day(t *testing.T) {
	l := DefaultLayout

	assert.Equal(t, int64(0), l.Day(0))
	assert.Equal(t, int64(0), l.Day(15))
	assert.Equal(t, int64(1), l.Day(16))
	assert.Equal(t, int64(2), l.Day(35))
}

func TestTickLayout_TimeOfDay(t *testing.T) {
	l := DefaultLayout // 30-minute ticks, start 09:00

	tests := []struct {
		tick   int64
		hour   int
		minute int
	}{
		{0, 9, 0},
		{1, 9, 30},
		{3, 10, 30},
		{15, 16, 30},
		{16, 9, 0}, // next day wraps
	}
	for _, tt := range tests {
		h, m := l.TimeOfDay(tt.tick)
		assert.Equal(t, tt.hour, h, "hour for tick %d", tt.tick)
		assert.Equal(t, tt.minute, m, "minute for tick %d", tt.tick)
	}
}

func TestTickLayout_TickAt(t *testing.T) {
	l := DefaultLayout

	tick, ok := l.TickAt(0, 10, 30)
	assert.True(t, ok)
	assert.Equal(t, int64(3), tick)

	tick, ok = l.TickAt(1, 9, 0)
	assert.True(t, ok)
	assert.Equal(t, int64(16), tick)

	// Before the working day starts.
	_, ok = l.TickAt(0, 8, 0)
	assert.False(t, ok, "08:00 is outside the working day")

	// At or past the end of the working day.
	_, ok = l.TickAt(0, 17, 0)
	assert.False(t, ok, "17:00 is outside the working day")
}

func TestTickLayout_RoundTrip(t *testing.T) {
	l := DefaultLayout

	for tick := int64(0); tick < 48; tick++ {
		day := l.Day(tick)
		h, m := l.TimeOfDay(tick)
		back, ok := l.TickAt(day, h, m)
		assert.True(t, ok, "tick %d round trip in range", tick)
		assert.Equal(t, tick, back, "tick %d round trips", tick)
	}
}

func TestTickLayout_Validate(t *testing.T) {
	assert.NoError(t, DefaultLayout.Validate())
	assert.Error(t, TickLayout{TicksPerDay: 0, StartHour: 9, WorkdayMinutes: 480}.Validate())
	assert.Error(t, TickLayout{TicksPerDay: 16, StartHour: 9, WorkdayMinutes: 0}.Validate())
	assert.Error(t, TickLayout{TicksPerDay: 16, StartHour: 25, WorkdayMinutes: 480}.Validate())
}

func TestChannel_Valid(t *testing.T) {
	assert.True(t, ChannelEmail.Valid())
	assert.True(t, ChannelChat.Valid())
	assert.False(t, Channel("carrier_pigeon").Valid())
}

func TestRoster_Lookups(t *testing.T) {
	r := NewRoster([]Person{
		{ID: "alice", Name: "Alice", CoordinatorID: "carol", Active: true},
		{ID: "bob", Name: "Bob", CoordinatorID: "carol", Active: false},
		{ID: "carol", Name: "Carol", Active: true},
	})

	p, ok := r.ByID("bob")
	assert.True(t, ok)
	assert.Equal(t, "Bob", p.Name)

	_, ok = r.ByID("dave")
	assert.False(t, ok)

	active := r.Active()
	assert.Len(t, active, 2)
	assert.Equal(t, "alice", active[0].ID)
	assert.Equal(t, "carol", active[1].ID)

	coord, ok := r.Coordinator(active[0])
	assert.True(t, ok)
	assert.Equal(t, "carol", coord.ID)

	_, ok = r.Coordinator(Person{ID: "x"})
	assert.False(t, ok, "no coordinator configured")
}

func TestParticipationStat_Total(t *testing.T) {
	s := ParticipationStat{EmailCount: 3, ChatCount: 2}
	assert.Equal(t, 5, s.Total())
}

func TestStatusOverride_ActiveAt(t *testing.T) {
	o := StatusOverride{PersonID: "alice", Status: "sick", UntilTick: 15}
	assert.True(t, o.ActiveAt(10))
	assert.True(t, o.ActiveAt(15), "bound is inclusive")
	assert.False(t, o.ActiveAt(16))
}
