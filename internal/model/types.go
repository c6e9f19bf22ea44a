// Package model defines the core domain types for the workday simulator.
//
// The simulator advances in discrete ticks. A tick maps onto a simulated
// working day through a TickLayout (see layout.go). Synthetic people
// exchange scheduled emails and chats, react to injected events, and are
// throttled or boosted based on per-day participation statistics.
//
// Everything in this package is a plain value type with no behavior beyond
// lookups and validation. Mutation happens in the owning subsystems.
package model

import "time"

// Channel identifies a communication medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
)

// Valid reports whether c is a known channel value.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelChat
}

// Person is one synthetic workplace persona.
//
// Email and Handle are the only addresses a communication may resolve to.
// CoordinatorID points at the person who receives escalation messages for
// this person (absence notices, feature-request coordination).
type Person struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Email         string `json:"email" yaml:"email"`
	Handle        string `json:"handle" yaml:"handle"`
	Role          string `json:"role" yaml:"role"`
	CoordinatorID string `json:"coordinator_id" yaml:"coordinator_id"`
	ProjectID     string `json:"project_id" yaml:"project_id"`
	Active        bool   `json:"active" yaml:"active"`
}

// Roster is an ordered set of people. Order is the declaration order from
// the config file and is preserved so that random selection over the
// roster is deterministic for a given seed.
type Roster struct {
	people []Person
}

// NewRoster builds a roster from a slice of people, preserving order.
func NewRoster(people []Person) *Roster {
	r := &Roster{people: make([]Person, len(people))}
	copy(r.people, people)
	return r
}

// All returns every person in declaration order.
func (r *Roster) All() []Person {
	out := make([]Person, len(r.people))
	copy(out, r.people)
	return out
}

// Active returns active people in declaration order.
func (r *Roster) Active() []Person {
	var out []Person
	for _, p := range r.people {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}

// ByID looks up a person by ID.
func (r *Roster) ByID(id string) (Person, bool) {
	for _, p := range r.people {
		if p.ID == id {
			return p, true
		}
	}
	return Person{}, false
}

// Coordinator returns the coordinator for a person, if one is configured
// and present in the roster.
func (r *Roster) Coordinator(p Person) (Person, bool) {
	if p.CoordinatorID == "" {
		return Person{}, false
	}
	return r.ByID(p.CoordinatorID)
}

// Size returns the number of people in the roster.
func (r *Roster) Size() int { return len(r.people) }

// EventKind enumerates the event types the simulator understands.
type EventKind string

const (
	EventAbsence        EventKind = "absence"
	EventFeatureRequest EventKind = "feature_request"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	return k == EventAbsence || k == EventFeatureRequest
}

// Event is one entry in the append-only event log. Events are immutable
// once persisted; adjustment text is re-derived from them, never stored.
type Event struct {
	ID        string            `json:"id"`
	Kind      EventKind         `json:"kind"`
	TargetIDs []string          `json:"target_ids"`
	ProjectID string            `json:"project_id,omitempty"`
	AtTick    int64             `json:"at_tick"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Targets reports whether the event targets the given person.
func (e Event) Targets(personID string) bool {
	for _, id := range e.TargetIDs {
		if id == personID {
			return true
		}
	}
	return false
}

// StatusOverride marks a person as being in a non-default status until a
// bound tick (inclusive). Used for absence.
type StatusOverride struct {
	PersonID  string `json:"person_id"`
	Status    string `json:"status"`
	UntilTick int64  `json:"until_tick"`
}

// ActiveAt reports whether the override is still in force at tick.
func (o StatusOverride) ActiveAt(tick int64) bool {
	return tick <= o.UntilTick
}

// InboundMessage is one item in a person's inbox. Each message is owned by
// exactly one recipient runtime; it is persisted on enqueue and deleted
// only after the planning cycle that drained it has acted on it.
type InboundMessage struct {
	ID          int64   `json:"id"`
	RecipientID string  `json:"recipient_id"`
	SenderID    string  `json:"sender_id"`
	SenderName  string  `json:"sender_name"`
	Subject     string  `json:"subject"`
	Summary     string  `json:"summary"`
	ActionItem  string  `json:"action_item,omitempty"`
	MessageType string  `json:"message_type"`
	Channel     Channel `json:"channel"`
	Tick        int64   `json:"tick"`
	MessageID   string  `json:"message_id,omitempty"`
}

// ScheduledComm is one parsed or pre-structured outbound communication.
// It exists only between plan parsing and dispatch within a cycle.
type ScheduledComm struct {
	PersonID  string   `json:"person_id"`
	Tick      int64    `json:"tick"`
	Channel   Channel  `json:"channel"`
	Targets   []string `json:"targets"`
	CC        []string `json:"cc,omitempty"`
	BCC       []string `json:"bcc,omitempty"`
	Subject   string   `json:"subject,omitempty"`
	Body      string   `json:"body"`
	ThreadID  string   `json:"thread_id,omitempty"`
	ReplyToID string   `json:"reply_to_id,omitempty"`
}

// ParticipationStat is the per-person, per-day message counter row.
// Total is always EmailCount + ChatCount.
type ParticipationStat struct {
	PersonID   string `json:"person_id"`
	Day        int64  `json:"day"`
	EmailCount int    `json:"email_count"`
	ChatCount  int    `json:"chat_count"`
}

// Total returns the combined count across channels.
func (s ParticipationStat) Total() int { return s.EmailCount + s.ChatCount }

// TickLogEntry records one unit advance of the clock.
type TickLogEntry struct {
	Tick   int64     `json:"tick"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// EmailRecord is one entry in a person's bounded recent-email history,
// used to resolve reply targets and thread continuity.
type EmailRecord struct {
	EmailID  string `json:"email_id"`
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	ThreadID string `json:"thread_id"`
	SentTick int64  `json:"sent_at_tick"`
}
