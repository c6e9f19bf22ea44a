package comms

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Gateway is the outbound transport boundary. The hub decides whether
// and what to send; the gateway decides how delivery happens.
type Gateway interface {
	SendEmail(ctx context.Context, sender string, to, cc, bcc []string, subject, body, threadID string) error
	SendDM(ctx context.Context, sender, recipient, body string) error
	SendRoomMessage(ctx context.Context, room, sender, body string) error
}

// ProjectContext supplies project-scoped routing decisions. Injected
// once at construction rather than passed per call.
type ProjectContext interface {
	// ActiveProjectRoom returns the chat room slug for a person's
	// currently active project, if any.
	ActiveProjectRoom(personID string) (string, bool)

	// ActiveProjects lists the projects a person works on in a given
	// simulated week.
	ActiveProjects(personID string, week int64) []string
}

// IDGenerator produces unique thread identifiers.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined identifiers for testing.
//
// This enables deterministic thread ids and golden trace comparison.
// Panics once the provided tokens are exhausted - a fail-fast signal
// that a test created more threads than it expected.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}

// LogGateway logs every send instead of delivering it. Used by the CLI
// run command, where no real transport exists.
type LogGateway struct{}

func (LogGateway) SendEmail(_ context.Context, sender string, to, cc, bcc []string, subject, body, threadID string) error {
	slog.Info("email sent", "from", sender, "to", to, "cc", cc, "bcc", bcc, "subject", subject, "thread", threadID)
	return nil
}

func (LogGateway) SendDM(_ context.Context, sender, recipient, body string) error {
	slog.Info("dm sent", "from", sender, "to", recipient)
	return nil
}

func (LogGateway) SendRoomMessage(_ context.Context, room, sender, body string) error {
	slog.Info("room message sent", "room", room, "from", sender)
	return nil
}

// NoProjects is a ProjectContext with no active projects; group keywords
// fall back to direct messages.
type NoProjects struct{}

func (NoProjects) ActiveProjectRoom(string) (string, bool) { return "", false }
func (NoProjects) ActiveProjects(string, int64) []string   { return nil }

// StaticProjects maps each person to one room and project list.
type StaticProjects struct {
	Rooms    map[string]string   // person id -> room slug
	Projects map[string][]string // person id -> project ids
}

func (s StaticProjects) ActiveProjectRoom(personID string) (string, bool) {
	room, ok := s.Rooms[personID]
	return room, ok && room != ""
}

func (s StaticProjects) ActiveProjects(personID string, _ int64) []string {
	return s.Projects[personID]
}
