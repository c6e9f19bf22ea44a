package cli

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/voxline/workday/internal/balance"
	"github.com/voxline/workday/internal/comms"
	"github.com/voxline/workday/internal/config"
	"github.com/voxline/workday/internal/engine"
	"github.com/voxline/workday/internal/events"
	"github.com/voxline/workday/internal/model"
	"github.com/voxline/workday/internal/runtime"
	"github.com/voxline/workday/internal/store"
)

// buildSimulation assembles a Simulation from config on top of an open
// store. The clock resumes from the last persisted tick, so stopping and
// restarting a run continues the same timeline.
func buildSimulation(ctx context.Context, cfg config.Config, st *store.Store, planner engine.Planner, gateway comms.Gateway, projects comms.ProjectContext) (*engine.Simulation, error) {
	layout := cfg.Layout()
	roster := model.NewRoster(cfg.People)
	rng := rand.New(rand.NewSource(cfg.Seed))

	startTick, err := st.LatestTick(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume clock: %w", err)
	}
	clock := engine.NewClockAt(layout, st, startTick)

	bal := balance.New(st, cfg.Balancing)
	hub := comms.New(comms.Config{
		Layout:               layout,
		CooldownTicks:        cfg.Comms.CooldownTicks,
		ExternalStakeholders: cfg.Comms.ExternalStakeholders,
	}, roster, projects, gateway, comms.UUIDv7Generator{}, bal)

	ev := events.New(st, events.Config{
		AbsenceProbability:        cfg.Events.AbsenceProbability,
		FeatureRequestProbability: cfg.Events.FeatureRequestProbability,
		FeatureRequestPeriodTicks: cfg.Events.FeatureRequestPeriodTicks,
	}, layout, rng)

	runtimes := runtime.NewManager(st)
	if err := runtimes.Sync(ctx, roster.Active(), false); err != nil {
		return nil, fmt.Errorf("hydrate runtimes: %w", err)
	}

	return engine.New(engine.Options{
		Clock:       clock,
		Events:      ev,
		Runtimes:    runtimes,
		Balancer:    bal,
		Hub:         hub,
		Planner:     planner,
		Roster:      roster,
		RNG:         rng,
		Parallelism: cfg.Parallelism,
	}), nil
}

// buildEventSystem assembles just the event system, for commands that
// inject or list events without running the simulation.
func buildEventSystem(cfg config.Config, st *store.Store) *events.System {
	return events.New(st, events.Config{
		AbsenceProbability:        cfg.Events.AbsenceProbability,
		FeatureRequestProbability: cfg.Events.FeatureRequestProbability,
		FeatureRequestPeriodTicks: cfg.Events.FeatureRequestPeriodTicks,
	}, cfg.Layout(), rand.New(rand.NewSource(cfg.Seed)))
}

// FilePlanner reads each person's plan text from <dir>/<person-id>.txt
// on every tick. Missing files mean an empty plan; scheduling dedup in
// the hub keeps repeated directives from double-dispatching.
//
// It stands in for a real generation service so a simulation can run
// end to end from static fixtures.
type FilePlanner struct {
	Dir string
}

func (p FilePlanner) Plan(_ context.Context, req engine.PlanRequest) (engine.PlanResult, error) {
	if p.Dir == "" {
		return engine.PlanResult{}, nil
	}
	data, err := os.ReadFile(filepath.Join(p.Dir, req.Person.ID+".txt"))
	if err != nil {
		if os.IsNotExist(err) {
			return engine.PlanResult{}, nil
		}
		return engine.PlanResult{}, fmt.Errorf("read plan for %s: %w", req.Person.ID, err)
	}
	return engine.PlanResult{Text: strings.TrimSpace(string(data))}, nil
}
