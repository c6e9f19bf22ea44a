// Package events generates and converts workplace events.
//
// Two kinds are built in: absence (one low-probability draw per team per
// day, marking one eligible person out until end of day) and
// feature_request (a periodic low-probability client ask routed to the
// coordinator with a randomly paired collaborator).
//
// Determinism: every probability draw and random selection routes through
// the single *rand.Rand passed at construction. The system never
// re-seeds. Two systems built with the same seed, store contents, and
// call sequence produce identical event sequences.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/voxline/workday/internal/model"
	"github.com/voxline/workday/internal/store"
)

// Config holds the trigger rates. These are deliberately explicit
// configuration: the intended event rate per simulated day depends on the
// tick layout, and burying the constants here would hide that coupling.
type Config struct {
	// AbsenceProbability is the chance of the single daily absence draw
	// succeeding.
	AbsenceProbability float64

	// FeatureRequestProbability is the chance of a feature request on
	// each draw; draws happen every FeatureRequestPeriodTicks ticks.
	FeatureRequestProbability float64
	FeatureRequestPeriodTicks int64
}

// featureCatalog is the pool of synthetic client asks.
var featureCatalog = []string{
	"export to CSV",
	"dark mode",
	"bulk archive",
	"audit trail",
	"saved filters",
}

// System owns event generation for one simulation.
//
// Not goroutine-safe: ProcessTick must run under the engine's
// advance-scope lock, which also guarantees a deterministic RNG call
// sequence.
type System struct {
	rng    *rand.Rand
	store  *store.Store
	cfg    Config
	layout model.TickLayout

	lastAbsenceDay int64
}

// TickOutcome is everything one tick of event processing produced.
type TickOutcome struct {
	Events      []model.Event
	Adjustments map[string][]string
	Inbox       map[string][]model.InboundMessage
	Overrides   []model.StatusOverride
}

// New creates a System. The rng is shared with the rest of the engine and
// must be seeded exactly once by the caller.
func New(st *store.Store, cfg Config, layout model.TickLayout, rng *rand.Rand) *System {
	return &System{
		rng:            rng,
		store:          st,
		cfg:            cfg,
		layout:         layout,
		lastAbsenceDay: -1,
	}
}

// ProcessTick runs the probabilistic generators for one tick and converts
// anything generated into adjustments and inbox messages.
//
// overrides is the set of status overrides currently in force, keyed by
// person id; it gates absence eligibility but is not mutated here.
func (s *System) ProcessTick(ctx context.Context, tick int64, roster *model.Roster, overrides map[string]model.StatusOverride) (*TickOutcome, error) {
	out := &TickOutcome{
		Adjustments: make(map[string][]string),
		Inbox:       make(map[string][]model.InboundMessage),
	}

	if err := s.maybeAbsence(ctx, tick, roster, overrides, out); err != nil {
		return nil, err
	}
	if err := s.maybeFeatureRequest(ctx, tick, roster, out); err != nil {
		return nil, err
	}

	for _, e := range out.Events {
		for _, id := range e.TargetIDs {
			p, ok := roster.ByID(id)
			if !ok {
				continue
			}
			if adj := s.AdjustmentsFor(e, p); adj != "" {
				out.Adjustments[id] = append(out.Adjustments[id], adj)
			}
		}
	}

	return out, nil
}

// maybeAbsence runs the single daily absence draw.
//
// Eligibility: the team only draws once per day (checked against memory
// and, after a restart, against the persisted event log), and only people
// who are active and not already under a status override can be picked.
func (s *System) maybeAbsence(ctx context.Context, tick int64, roster *model.Roster, overrides map[string]model.StatusOverride, out *TickOutcome) error {
	day := s.layout.Day(tick)
	if s.lastAbsenceDay == day {
		return nil
	}
	n, err := s.store.CountEventsForDay(ctx, model.EventAbsence, s.layout.DayStart(day), s.layout.DayEnd(day))
	if err != nil {
		return fmt.Errorf("absence eligibility: %w", err)
	}
	if n > 0 {
		s.lastAbsenceDay = day
		return nil
	}

	if s.rng.Float64() >= s.cfg.AbsenceProbability {
		return nil
	}

	var eligible []model.Person
	for _, p := range roster.Active() {
		if o, ok := overrides[p.ID]; ok && o.ActiveAt(tick) {
			continue
		}
		eligible = append(eligible, p)
	}
	if len(eligible) == 0 {
		return nil
	}
	absent := eligible[s.rng.Intn(len(eligible))]

	event := model.Event{
		ID:        fmt.Sprintf("ev-absence-%d", tick),
		Kind:      model.EventAbsence,
		TargetIDs: []string{absent.ID},
		ProjectID: absent.ProjectID,
		AtTick:    tick,
		Payload: map[string]string{
			"person_id":   absent.ID,
			"person_name": absent.Name,
		},
		CreatedAt: time.Now(),
	}
	if coord, ok := roster.Coordinator(absent); ok {
		event.TargetIDs = append(event.TargetIDs, coord.ID)
	}
	if err := s.store.InsertEvent(ctx, event); err != nil {
		return fmt.Errorf("persist absence: %w", err)
	}
	s.lastAbsenceDay = day

	out.Events = append(out.Events, event)
	out.Overrides = append(out.Overrides, model.StatusOverride{
		PersonID:  absent.ID,
		Status:    "absent",
		UntilTick: s.layout.DayEnd(day),
	})

	out.Inbox[absent.ID] = append(out.Inbox[absent.ID], model.InboundMessage{
		RecipientID: absent.ID,
		SenderID:    "system",
		SenderName:  "Workday",
		Subject:     "Sick leave recorded",
		Summary:     fmt.Sprintf("You are marked out for the rest of day %d.", day),
		MessageType: "absence_notice",
		Channel:     model.ChannelEmail,
		Tick:        tick,
	})
	if coord, ok := roster.Coordinator(absent); ok {
		out.Inbox[coord.ID] = append(out.Inbox[coord.ID], model.InboundMessage{
			RecipientID: coord.ID,
			SenderID:    "system",
			SenderName:  "Workday",
			Subject:     fmt.Sprintf("%s is out today", absent.Name),
			Summary:     fmt.Sprintf("%s is on sick leave until end of day %d.", absent.Name, day),
			ActionItem:  "Redistribute their urgent work.",
			MessageType: "absence_notice",
			Channel:     model.ChannelEmail,
			Tick:        tick,
		})
	}

	slog.Info("absence generated", "person", absent.ID, "tick", tick, "day", day)
	return nil
}

// maybeFeatureRequest runs the periodic feature-request draw.
func (s *System) maybeFeatureRequest(ctx context.Context, tick int64, roster *model.Roster, out *TickOutcome) error {
	if s.cfg.FeatureRequestPeriodTicks <= 0 || tick%s.cfg.FeatureRequestPeriodTicks != 0 {
		return nil
	}
	if s.rng.Float64() >= s.cfg.FeatureRequestProbability {
		return nil
	}

	coord, ok := teamCoordinator(roster)
	if !ok {
		return nil
	}
	var others []model.Person
	for _, p := range roster.Active() {
		if p.ID != coord.ID {
			others = append(others, p)
		}
	}
	if len(others) == 0 {
		return nil
	}
	collab := others[s.rng.Intn(len(others))]
	feature := featureCatalog[s.rng.Intn(len(featureCatalog))]

	event := model.Event{
		ID:        fmt.Sprintf("ev-feature-%d", tick),
		Kind:      model.EventFeatureRequest,
		TargetIDs: []string{coord.ID, collab.ID},
		ProjectID: coord.ProjectID,
		AtTick:    tick,
		Payload: map[string]string{
			"feature":           feature,
			"collaborator_id":   collab.ID,
			"collaborator_name": collab.Name,
		},
		CreatedAt: time.Now(),
	}
	if err := s.store.InsertEvent(ctx, event); err != nil {
		return fmt.Errorf("persist feature request: %w", err)
	}

	out.Events = append(out.Events, event)
	out.Inbox[coord.ID] = append(out.Inbox[coord.ID], model.InboundMessage{
		RecipientID: coord.ID,
		SenderID:    "system",
		SenderName:  "Workday",
		Subject:     fmt.Sprintf("Client request: %s", feature),
		Summary:     fmt.Sprintf("A client asked for %q.", feature),
		ActionItem:  fmt.Sprintf("Scope it with %s.", collab.Name),
		MessageType: "feature_request",
		Channel:     model.ChannelEmail,
		Tick:        tick,
	})
	out.Inbox[collab.ID] = append(out.Inbox[collab.ID], model.InboundMessage{
		RecipientID: collab.ID,
		SenderID:    "system",
		SenderName:  "Workday",
		Subject:     fmt.Sprintf("Client request: %s", feature),
		Summary:     fmt.Sprintf("%s will reach out about the %q request.", coord.Name, feature),
		MessageType: "feature_request",
		Channel:     model.ChannelChat,
		Tick:        tick,
	})

	slog.Info("feature request generated", "feature", feature, "coordinator", coord.ID, "collaborator", collab.ID, "tick", tick)
	return nil
}

// teamCoordinator returns the first active person referenced as someone's
// coordinator, in roster declaration order for determinism.
func teamCoordinator(roster *model.Roster) (model.Person, bool) {
	for _, p := range roster.All() {
		if p.CoordinatorID == "" {
			continue
		}
		if coord, ok := roster.ByID(p.CoordinatorID); ok && coord.Active {
			return coord, true
		}
	}
	return model.Person{}, false
}

// Inject persists an externally authored event as-is. Injection never
// consults the RNG and bypasses eligibility checks; injected events are
// trusted.
func (s *System) Inject(ctx context.Context, e model.Event) (model.Event, error) {
	if !e.Kind.Valid() {
		return model.Event{}, fmt.Errorf("inject: unknown event kind %q", e.Kind)
	}
	if len(e.TargetIDs) == 0 {
		return model.Event{}, fmt.Errorf("inject: at least one target is required")
	}
	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if err := s.store.InsertEvent(ctx, e); err != nil {
		return model.Event{}, err
	}
	slog.Info("event injected", "id", e.ID, "kind", e.Kind, "targets", e.TargetIDs)
	return e, nil
}

// List returns persisted events filtered by project and/or target.
func (s *System) List(ctx context.Context, projectID, targetID string) ([]model.Event, error) {
	return s.store.ListEvents(ctx, store.EventFilter{ProjectID: projectID, TargetID: targetID})
}

// AdjustmentsFor derives the planning-adjustment text an event implies
// for one person. Pure: the same (event, person) pair always yields the
// same string. Unknown kinds log a warning and yield nothing rather than
// failing — a forward-compatible injected event must not halt planning.
func (s *System) AdjustmentsFor(e model.Event, p model.Person) string {
	switch e.Kind {
	case model.EventAbsence:
		if e.Payload["person_id"] == p.ID {
			return "You are out on sick leave today. Wrap up and hand off anything urgent."
		}
		if e.Targets(p.ID) {
			return fmt.Sprintf("%s is out today. Redistribute their urgent work.", e.Payload["person_name"])
		}
		return ""
	case model.EventFeatureRequest:
		if len(e.TargetIDs) > 0 && e.TargetIDs[0] == p.ID {
			return fmt.Sprintf("A client requested %q. Coordinate scoping with %s.", e.Payload["feature"], e.Payload["collaborator_name"])
		}
		if e.Targets(p.ID) {
			return fmt.Sprintf("Expect a scoping conversation about the %q request.", e.Payload["feature"])
		}
		return ""
	default:
		slog.Warn("no adjustment rule for event kind", "kind", e.Kind, "event", e.ID)
		return ""
	}
}
