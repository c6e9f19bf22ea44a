// Package harness runs fully pinned simulation scenarios for tests.
//
// A Scenario fixes everything nondeterministic about a run: the seed,
// the roster, the plan text each person produces at each tick, and the
// thread id sequence. Two executions of the same scenario yield
// byte-identical traces, which makes the traces suitable for golden
// file comparison.
package harness

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/voxline/workday/internal/balance"
	"github.com/voxline/workday/internal/comms"
	"github.com/voxline/workday/internal/engine"
	"github.com/voxline/workday/internal/events"
	"github.com/voxline/workday/internal/model"
	"github.com/voxline/workday/internal/runtime"
	"github.com/voxline/workday/internal/store"
	"github.com/voxline/workday/internal/testutil"
)

// Scenario describes one pinned simulation run.
type Scenario struct {
	Name  string
	Seed  int64
	Ticks int64

	Layout        model.TickLayout // zero value means model.DefaultLayout
	CooldownTicks int64
	Events        events.Config
	Balancing     bool
	People        []model.Person
	Projects      comms.ProjectContext // nil means comms.NoProjects

	// Plans maps person id to plan text per tick. Missing entries mean
	// the person produces an empty plan that tick.
	Plans map[string]map[int64]string

	// Fallbacks maps person id to the fallback communication offered on
	// every tick where the person's plan schedules nothing.
	Fallbacks map[string]*model.ScheduledComm
}

// Result is the observable outcome of a scenario run.
type Result struct {
	Reports []engine.StepReport
	Gateway *testutil.RecordingGateway

	lines []string
}

// scenarioPlanner replays the scenario's scripted plan text.
type scenarioPlanner struct {
	plans     map[string]map[int64]string
	fallbacks map[string]*model.ScheduledComm
}

func (p *scenarioPlanner) Plan(_ context.Context, req engine.PlanRequest) (engine.PlanResult, error) {
	res := engine.PlanResult{Fallback: p.fallbacks[req.Person.ID]}
	if byTick, ok := p.plans[req.Person.ID]; ok {
		res.Text = byTick[req.Tick]
	}
	return res, nil
}

// Run executes the scenario against an in-memory store and returns the
// per-tick reports plus a line-oriented trace of every send.
func Run(sc Scenario) (*Result, error) {
	if sc.Ticks <= 0 {
		return nil, fmt.Errorf("scenario %q: ticks must be positive", sc.Name)
	}
	layout := sc.Layout
	if layout == (model.TickLayout{}) {
		layout = model.DefaultLayout
	}
	projects := sc.Projects
	if projects == nil {
		projects = comms.NoProjects{}
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("scenario %q: open store: %w", sc.Name, err)
	}
	defer st.Close()

	roster := model.NewRoster(sc.People)
	rng := rand.New(rand.NewSource(sc.Seed))
	gw := &testutil.RecordingGateway{}
	bal := balance.New(st, sc.Balancing)

	// Enough thread ids for every email the scenario could send.
	tokens := make([]string, 0, int(sc.Ticks)*len(sc.People)+1)
	for i := 0; i < cap(tokens); i++ {
		tokens = append(tokens, fmt.Sprintf("thread-%d", i+1))
	}

	hub := comms.New(comms.Config{
		Layout:        layout,
		CooldownTicks: sc.CooldownTicks,
	}, roster, projects, gw, comms.NewFixedGenerator(tokens...), bal)

	sim := engine.New(engine.Options{
		Clock:       engine.NewClock(layout, st),
		Events:      events.New(st, sc.Events, layout, rng),
		Runtimes:    runtime.NewManager(st),
		Balancer:    bal,
		Hub:         hub,
		Planner:     &scenarioPlanner{plans: sc.Plans, fallbacks: sc.Fallbacks},
		Roster:      roster,
		RNG:         rng,
		Parallelism: 1,
	})

	res := &Result{Gateway: gw}
	ctx := context.Background()
	var seenEmails, seenDMs, seenRooms int
	for i := int64(0); i < sc.Ticks; i++ {
		report, err := sim.Step(ctx)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: step at tick %d: %w", sc.Name, report.Tick, err)
		}
		res.Reports = append(res.Reports, report)

		status := sim.Clock().Current()
		res.lines = append(res.lines, fmt.Sprintf(
			"tick %d day %d %02d:%02d events=%d planned=%d scheduled=%d emails=%d chats=%d",
			report.Tick, report.Day, status.Hour, status.Minute,
			report.Events, report.Planned, report.Scheduled,
			report.EmailsSent, report.ChatsSent))

		for _, e := range res.Gateway.Emails()[seenEmails:] {
			line := fmt.Sprintf("  email %s -> %s thread=%s subject=%q",
				e.From, strings.Join(e.To, ","), e.ThreadID, e.Subject)
			if len(e.CC) > 0 {
				line += fmt.Sprintf(" cc=%s", strings.Join(e.CC, ","))
			}
			res.lines = append(res.lines, line)
		}
		seenEmails = len(res.Gateway.Emails())

		for _, d := range res.Gateway.DMs()[seenDMs:] {
			res.lines = append(res.lines, fmt.Sprintf("  dm %s -> %s: %s", d.From, d.To, d.Body))
		}
		seenDMs = len(res.Gateway.DMs())

		for _, r := range res.Gateway.Rooms()[seenRooms:] {
			res.lines = append(res.lines, fmt.Sprintf("  room %s <- %s: %s", r.Room, r.From, r.Body))
		}
		seenRooms = len(res.Gateway.Rooms())
	}
	return res, nil
}

// Trace renders the run as newline-separated text, one line per tick
// plus one indented line per send.
func (r *Result) Trace() []byte {
	return []byte(strings.Join(r.lines, "\n") + "\n")
}
