package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxline/workday/internal/balance"
	"github.com/voxline/workday/internal/comms"
	"github.com/voxline/workday/internal/events"
	"github.com/voxline/workday/internal/model"
	"github.com/voxline/workday/internal/runtime"
)

// Planner produces one person's plan for one tick. Implementations call
// out to a text generation service; the engine only requires that a call
// either returns a result or an error, never blocks forever (honor ctx).
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (PlanResult, error)
}

// PlanRequest is everything a planner may condition on for one person
// at one tick.
type PlanRequest struct {
	Tick        int64
	Day         int64
	Person      model.Person
	Adjustments []string
	Inbox       []model.InboundMessage
}

// PlanResult is a planner's output. Text is free-form plan prose that
// may embed schedulable directive lines. Comms are pre-structured
// communications. Fallback, if set, is used only when the person would
// otherwise schedule nothing this tick, gated by the participation
// balancer.
type PlanResult struct {
	Text     string
	Comms    []model.ScheduledComm
	Fallback *model.ScheduledComm
}

// StepReport summarizes one completed tick.
type StepReport struct {
	Tick       int64
	Day        int64
	Events     int
	Planned    int
	PlanErrors int
	Scheduled  int
	Fallbacks  int
	EmailsSent int
	ChatsSent  int
}

// Options wires a Simulation's collaborators.
type Options struct {
	Clock       *Clock
	Events      *events.System
	Runtimes    *runtime.Manager
	Balancer    *balance.Balancer
	Hub         *comms.Hub
	Planner     Planner
	Roster      *model.Roster
	RNG         *rand.Rand
	Parallelism int
}

// Simulation drives the tick pipeline: advance the clock, process
// events, deliver inboxes, plan in parallel, schedule, dispatch.
//
// One mutex spans every state mutation of a tick. Only the planner
// calls run outside it; they are pure with respect to engine state, so
// the pipeline stays deterministic for a fixed seed and planner.
type Simulation struct {
	mu        sync.Mutex
	clock     *Clock
	events    *events.System
	runtimes  *runtime.Manager
	balancer  *balance.Balancer
	hub       *comms.Hub
	planner   Planner
	roster    *model.Roster
	rng       *rand.Rand
	overrides map[string]model.StatusOverride
	parallel  int

	autoMu     sync.Mutex
	autoCancel context.CancelFunc
	autoDone   chan struct{}
}

// New constructs a Simulation. Parallelism values below one are raised
// to one.
func New(opts Options) *Simulation {
	parallel := opts.Parallelism
	if parallel < 1 {
		parallel = 1
	}
	return &Simulation{
		clock:     opts.Clock,
		events:    opts.Events,
		runtimes:  opts.Runtimes,
		balancer:  opts.Balancer,
		hub:       opts.Hub,
		planner:   opts.Planner,
		roster:    opts.Roster,
		rng:       opts.RNG,
		overrides: make(map[string]model.StatusOverride),
		parallel:  parallel,
	}
}

// Clock exposes the simulation clock for status queries.
func (s *Simulation) Clock() *Clock { return s.clock }

// Roster returns the current roster.
func (s *Simulation) Roster() *model.Roster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster
}

// OverrideFor reports the active status override for a person at the
// current tick, if any.
func (s *Simulation) OverrideFor(personID string) (model.StatusOverride, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ov, ok := s.overrides[personID]
	if !ok || !ov.ActiveAt(s.clock.Tick()) {
		return model.StatusOverride{}, false
	}
	return ov, true
}

// ReloadRoster swaps the roster mid-run, used by config hot reload.
// When cascade is true, departed people's persisted inbox and stats are
// deleted; otherwise their inbox survives for a possible rejoin.
func (s *Simulation) ReloadRoster(ctx context.Context, roster *model.Roster, cascade bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.runtimes.Sync(ctx, roster.Active(), cascade); err != nil {
		return fmt.Errorf("sync runtimes: %w", err)
	}
	s.roster = roster
	s.hub.SetRoster(roster)
	slog.Info("roster reloaded", "people", roster.Size(), "cascade", cascade)
	return nil
}

type planJob struct {
	person      model.Person
	adjustments []string
	inbox       []model.InboundMessage
}

type planOutcome struct {
	job planJob
	res PlanResult
	err error
}

// Step advances the clock by one tick and runs the full pipeline for the
// new tick. Event processing failures abort the step; plan generation
// failures never do, they only cost that person their dispatches for
// the tick.
func (s *Simulation) Step(ctx context.Context) (StepReport, error) {
	return s.step(ctx, "step")
}

func (s *Simulation) step(ctx context.Context, reason string) (StepReport, error) {
	s.mu.Lock()
	tick := s.clock.Advance(ctx, 1, reason)
	day := s.clock.Layout().Day(tick)
	report := StepReport{Tick: tick, Day: day}

	s.hub.ResetTickSends()
	s.pruneOverridesLocked(tick)

	outcome, err := s.events.ProcessTick(ctx, tick, s.roster, s.overrides)
	if err != nil {
		s.mu.Unlock()
		return report, fmt.Errorf("process events at tick %d: %w", tick, err)
	}
	report.Events = len(outcome.Events)
	for _, ov := range outcome.Overrides {
		s.overrides[ov.PersonID] = ov
	}

	// Deliver event notifications in roster order so inbox row ids are
	// reproducible for a fixed seed.
	for _, p := range s.roster.Active() {
		for _, msg := range outcome.Inbox[p.ID] {
			if _, err := s.runtimes.Queue(ctx, p, msg); err != nil {
				slog.Warn("inbox delivery failed", "person", p.ID, "error", err)
			}
		}
	}

	// Absent people do not plan; their inbox keeps accumulating and is
	// drained on the tick they return.
	var jobs []planJob
	for _, p := range s.roster.Active() {
		if ov, ok := s.overrides[p.ID]; ok && ov.ActiveAt(tick) {
			continue
		}
		jobs = append(jobs, planJob{
			person:      p,
			adjustments: outcome.Adjustments[p.ID],
			inbox:       s.runtimes.Drain(p.ID),
		})
	}
	s.mu.Unlock()

	results := make([]planOutcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			res, err := s.planner.Plan(gctx, PlanRequest{
				Tick:        tick,
				Day:         day,
				Person:      job.person,
				Adjustments: job.adjustments,
				Inbox:       job.inbox,
			})
			results[i] = planOutcome{job: job, res: res, err: err}
			return nil
		})
	}
	// Workers never return errors; per-person failures ride in results.
	_ = g.Wait()

	s.mu.Lock()
	teamSize := len(s.roster.Active())
	for _, r := range results {
		p := r.job.person
		if r.err != nil {
			// Unacknowledged messages go back on the queue and are
			// redelivered next tick. At-least-once, not exactly-once.
			slog.Error("plan generation failed", "person", p.ID, "tick", tick, "error", r.err)
			s.runtimes.Requeue(p.ID, r.job.inbox)
			report.PlanErrors++
			continue
		}
		report.Planned++

		scheduled := 0
		if r.res.Text != "" {
			scheduled += s.hub.ScheduleFromPlan(p.ID, r.res.Text, tick)
		}
		for _, c := range r.res.Comms {
			c.PersonID = p.ID
			if err := s.hub.ScheduleStructured(c, tick); err != nil {
				slog.Warn("structured comm rejected", "person", p.ID, "error", err)
				continue
			}
			scheduled++
		}
		if scheduled == 0 && r.res.Fallback != nil &&
			s.balancer.ShouldGenerateFallback(p.ID, day, teamSize, s.rng) {
			fb := *r.res.Fallback
			fb.PersonID = p.ID
			if err := s.hub.ScheduleStructured(fb, tick); err == nil {
				scheduled++
				report.Fallbacks++
			}
		}
		report.Scheduled += scheduled

		if ids := messageIDs(r.job.inbox); len(ids) > 0 {
			if err := s.runtimes.Remove(ctx, ids); err != nil {
				slog.Warn("inbox acknowledge failed", "person", p.ID, "error", err)
			}
		}
	}

	report.EmailsSent, report.ChatsSent = s.hub.DispatchScheduled(ctx, tick)
	s.mu.Unlock()

	slog.Info("tick complete",
		"tick", tick, "day", day,
		"events", report.Events, "planned", report.Planned,
		"emails", report.EmailsSent, "chats", report.ChatsSent)
	return report, nil
}

func (s *Simulation) pruneOverridesLocked(tick int64) {
	for id, ov := range s.overrides {
		if tick > ov.UntilTick {
			delete(s.overrides, id)
		}
	}
}

func messageIDs(msgs []model.InboundMessage) []int64 {
	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}

// StartAuto begins stepping on a wall-clock interval until StopAuto or
// context cancellation. Returns an error if auto advance is already
// running.
func (s *Simulation) StartAuto(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("auto advance interval must be positive, got %v", interval)
	}
	s.autoMu.Lock()
	defer s.autoMu.Unlock()
	if s.autoCancel != nil {
		return fmt.Errorf("auto advance already running")
	}

	actx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.autoCancel = cancel
	s.autoDone = done
	s.clock.setRunning(true)
	s.clock.setAutoAdvance(true)

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-actx.Done():
				return
			case <-ticker.C:
				if _, err := s.step(actx, "auto"); err != nil {
					slog.Error("auto step failed", "error", err)
				}
			}
		}
	}()
	return nil
}

// StopAuto halts auto advance, waiting for any in-flight step to finish.
// Safe to call when auto advance is not running.
func (s *Simulation) StopAuto() {
	s.autoMu.Lock()
	defer s.autoMu.Unlock()
	if s.autoCancel == nil {
		return
	}
	s.autoCancel()
	<-s.autoDone
	s.autoCancel = nil
	s.autoDone = nil
	s.clock.setAutoAdvance(false)
	s.clock.setRunning(false)
}
