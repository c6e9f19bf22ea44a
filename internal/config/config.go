// Package config loads and validates the simulator's YAML configuration.
//
// The config file carries the tick layout, the communication rules, the
// event trigger rates, and the roster. Everything has a documented
// default so a minimal file only needs a roster.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voxline/workday/internal/model"
)

// Config is the root of the YAML configuration file.
type Config struct {
	Seed int64 `yaml:"seed"`

	Clock  ClockConfig  `yaml:"clock"`
	Comms  CommsConfig  `yaml:"comms"`
	Events EventsConfig `yaml:"events"`

	// Balancing toggles participation balancing. When false,
	// ShouldGenerateFallback always answers yes.
	Balancing bool `yaml:"balancing"`

	// Parallelism bounds the plan-generation worker pool.
	Parallelism int `yaml:"parallelism"`

	People []model.Person `yaml:"people"`
}

// ClockConfig configures the tick layout and auto-advance.
type ClockConfig struct {
	TicksPerDay        int64 `yaml:"ticks_per_day"`
	StartHour          int   `yaml:"start_hour"`
	WorkdayMinutes     int   `yaml:"workday_minutes"`
	AutoAdvanceSeconds int   `yaml:"auto_advance_seconds"`
}

// CommsConfig configures dedup/cooldown and target resolution.
type CommsConfig struct {
	CooldownTicks int64 `yaml:"cooldown_ticks"`

	// ExternalStakeholders are addresses outside the roster that targets
	// may resolve to. Anything else is rejected, never guessed.
	ExternalStakeholders []string `yaml:"external_stakeholders"`
}

// EventsConfig makes the event trigger rates explicit configuration
// rather than constants buried in the event system. The defaults
// reproduce roughly one absence every five simulated days and one
// feature request every two days at the default 16-tick layout.
type EventsConfig struct {
	AbsenceProbability        float64 `yaml:"absence_probability"`
	FeatureRequestProbability float64 `yaml:"feature_request_probability"`
	FeatureRequestPeriodTicks int64   `yaml:"feature_request_period_ticks"`
}

// Default returns the configuration used when a field is absent.
func Default() Config {
	return Config{
		Clock: ClockConfig{
			TicksPerDay:        model.DefaultLayout.TicksPerDay,
			StartHour:          model.DefaultLayout.StartHour,
			WorkdayMinutes:     model.DefaultLayout.WorkdayMinutes,
			AutoAdvanceSeconds: 0,
		},
		Comms: CommsConfig{
			CooldownTicks: 2,
		},
		Events: EventsConfig{
			AbsenceProbability:        0.2,
			FeatureRequestProbability: 0.5,
			FeatureRequestPeriodTicks: 16,
		},
		Balancing:   true,
		Parallelism: 4,
	}
}

// Load reads, merges with defaults, and validates a config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Layout returns the tick layout described by the clock section.
func (c Config) Layout() model.TickLayout {
	return model.TickLayout{
		TicksPerDay:    c.Clock.TicksPerDay,
		StartHour:      c.Clock.StartHour,
		WorkdayMinutes: c.Clock.WorkdayMinutes,
	}
}

// Validate checks the config for usable values.
func (c Config) Validate() error {
	if err := c.Layout().Validate(); err != nil {
		return fmt.Errorf("clock: %w", err)
	}
	if c.Comms.CooldownTicks < 0 {
		return fmt.Errorf("comms: cooldown_ticks must be non-negative, got %d", c.Comms.CooldownTicks)
	}
	if p := c.Events.AbsenceProbability; p < 0 || p > 1 {
		return fmt.Errorf("events: absence_probability must be in [0,1], got %v", p)
	}
	if p := c.Events.FeatureRequestProbability; p < 0 || p > 1 {
		return fmt.Errorf("events: feature_request_probability must be in [0,1], got %v", p)
	}
	if c.Events.FeatureRequestPeriodTicks <= 0 {
		return fmt.Errorf("events: feature_request_period_ticks must be positive, got %d", c.Events.FeatureRequestPeriodTicks)
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive, got %d", c.Parallelism)
	}
	seen := make(map[string]bool, len(c.People))
	for _, p := range c.People {
		if p.ID == "" {
			return fmt.Errorf("people: person with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("people: duplicate id %q", p.ID)
		}
		seen[p.ID] = true
		if p.CoordinatorID != "" && p.CoordinatorID == p.ID {
			return fmt.Errorf("people: %q cannot coordinate themselves", p.ID)
		}
	}
	return nil
}
