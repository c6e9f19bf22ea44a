package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DefaultsApply(t *testing.T) {
	cfg, err := Parse([]byte(`
people:
  - id: alice
    name: Alice
    email: alice@corp.test
    handle: alice
    active: true
`))
	require.NoError(t, err)

	assert.Equal(t, int64(16), cfg.Clock.TicksPerDay)
	assert.Equal(t, 9, cfg.Clock.StartHour)
	assert.Equal(t, int64(2), cfg.Comms.CooldownTicks)
	assert.Equal(t, 0.2, cfg.Events.AbsenceProbability)
	assert.True(t, cfg.Balancing)
	assert.Equal(t, 4, cfg.Parallelism)
	require.Len(t, cfg.People, 1)
	assert.Equal(t, "alice@corp.test", cfg.People[0].Email)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
seed: 42
clock:
  ticks_per_day: 8
  start_hour: 8
  workday_minutes: 240
comms:
  cooldown_ticks: 10
  external_stakeholders:
    - client@example.com
balancing: false
`))
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, int64(8), cfg.Clock.TicksPerDay)
	assert.Equal(t, int64(10), cfg.Comms.CooldownTicks)
	assert.Equal(t, []string{"client@example.com"}, cfg.Comms.ExternalStakeholders)
	assert.False(t, cfg.Balancing)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero ticks per day", "clock:\n  ticks_per_day: 0\n"},
		{"negative cooldown", "comms:\n  cooldown_ticks: -1\n"},
		{"probability out of range", "events:\n  absence_probability: 1.5\n"},
		{"zero period", "events:\n  feature_request_period_ticks: 0\n"},
		{"empty person id", "people:\n  - name: Nobody\n"},
		{"duplicate person id", "people:\n  - id: a\n  - id: a\n"},
		{"self coordinator", "people:\n  - id: a\n    coordinator_id: a\n"},
		{"not yaml", ":\t::"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workday.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Seed)
}

func TestConfig_Layout(t *testing.T) {
	cfg := Default()
	l := cfg.Layout()
	assert.Equal(t, cfg.Clock.TicksPerDay, l.TicksPerDay)
	assert.NoError(t, l.Validate())
}
