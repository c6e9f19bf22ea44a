// Package testutil holds helpers shared by tests across packages.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxline/workday/internal/store"
)

// NewStore opens a throwaway sqlite store in a temp directory, closed
// automatically when the test ends.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "workday.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// Email is one captured outbound email.
type Email struct {
	From     string
	To       []string
	CC       []string
	BCC      []string
	Subject  string
	Body     string
	ThreadID string
}

// DM is one captured direct message.
type DM struct {
	From string
	To   string
	Body string
}

// RoomMessage is one captured room post.
type RoomMessage struct {
	Room string
	From string
	Body string
}

// RecordingGateway captures every send for later assertions. Safe for
// concurrent use.
type RecordingGateway struct {
	mu     sync.Mutex
	emails []Email
	dms    []DM
	rooms  []RoomMessage
}

func (g *RecordingGateway) SendEmail(_ context.Context, sender string, to, cc, bcc []string, subject, body, threadID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.emails = append(g.emails, Email{sender, to, cc, bcc, subject, body, threadID})
	return nil
}

func (g *RecordingGateway) SendDM(_ context.Context, sender, recipient, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dms = append(g.dms, DM{sender, recipient, body})
	return nil
}

func (g *RecordingGateway) SendRoomMessage(_ context.Context, room, sender, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rooms = append(g.rooms, RoomMessage{room, sender, body})
	return nil
}

// Emails returns a copy of the captured emails in send order.
func (g *RecordingGateway) Emails() []Email {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Email, len(g.emails))
	copy(out, g.emails)
	return out
}

// DMs returns a copy of the captured direct messages in send order.
func (g *RecordingGateway) DMs() []DM {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]DM, len(g.dms))
	copy(out, g.dms)
	return out
}

// Rooms returns a copy of the captured room posts in send order.
func (g *RecordingGateway) Rooms() []RoomMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]RoomMessage, len(g.rooms))
	copy(out, g.rooms)
	return out
}
