package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxline/workday/internal/model"
)

// createTestStore creates a fresh on-disk store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file should exist")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	s1.Close()

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	tick, err := s2.LatestTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), tick)
}

func TestStore_InsertAndListEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	e1 := model.Event{
		ID:        "ev-1",
		Kind:      model.EventAbsence,
		TargetIDs: []string{"alice", "carol"},
		AtTick:    4,
		Payload:   map[string]string{"person": "Alice"},
		CreatedAt: time.Now(),
	}
	e2 := model.Event{
		ID:        "ev-2",
		Kind:      model.EventFeatureRequest,
		TargetIDs: []string{"carol"},
		ProjectID: "apollo",
		AtTick:    2,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.InsertEvent(ctx, e1))
	require.NoError(t, s.InsertEvent(ctx, e2))

	all, err := s.ListEvents(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ev-2", all[0].ID, "ordered by at_tick")
	assert.Equal(t, "ev-1", all[1].ID)
	assert.Equal(t, map[string]string{"person": "Alice"}, all[1].Payload)

	byProject, err := s.ListEvents(ctx, EventFilter{ProjectID: "apollo"})
	require.NoError(t, err)
	require.Len(t, byProject, 1)
	assert.Equal(t, "ev-2", byProject[0].ID)

	byTarget, err := s.ListEvents(ctx, EventFilter{TargetID: "alice"})
	require.NoError(t, err)
	require.Len(t, byTarget, 1)
	assert.Equal(t, "ev-1", byTarget[0].ID)
}

func TestStore_InsertEvent_DuplicateIDIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	e := model.Event{ID: "ev-1", Kind: model.EventAbsence, TargetIDs: []string{"a"}, AtTick: 1, CreatedAt: time.Now()}
	require.NoError(t, s.InsertEvent(ctx, e))
	require.NoError(t, s.InsertEvent(ctx, e), "duplicate insert is idempotent")

	all, err := s.ListEvents(ctx, EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_CountEventsForDay(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, tick := range []int64{0, 5, 15, 16} {
		e := model.Event{
			ID: "ev-" + string(rune('a'+i)), Kind: model.EventAbsence,
			TargetIDs: []string{"a"}, AtTick: tick, CreatedAt: time.Now(),
		}
		require.NoError(t, s.InsertEvent(ctx, e))
	}

	n, err := s.CountEventsForDay(ctx, model.EventAbsence, 0, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.CountEventsForDay(ctx, model.EventFeatureRequest, 0, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestStore_InboxRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id1, err := s.InsertInboxMessage(ctx, model.InboundMessage{
		RecipientID: "bob", SenderID: "system", Subject: "first",
		Channel: model.ChannelEmail, Tick: 1,
	})
	require.NoError(t, err)
	id2, err := s.InsertInboxMessage(ctx, model.InboundMessage{
		RecipientID: "bob", SenderID: "system", Subject: "second",
		Channel: model.ChannelChat, Tick: 2,
	})
	require.NoError(t, err)
	assert.Greater(t, id2, id1, "row ids are assigned in insertion order")

	msgs, err := s.ListInboxMessages(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Subject)
	assert.Equal(t, "second", msgs[1].Subject)
	assert.Equal(t, model.ChannelChat, msgs[1].Channel)

	require.NoError(t, s.DeleteInboxMessages(ctx, []int64{id1}))
	msgs, err = s.ListInboxMessages(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "second", msgs[0].Subject)
}

func TestStore_DeleteInboxMessages_EmptySliceNoop(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.DeleteInboxMessages(context.Background(), nil))
}

func TestStore_ClearInbox(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.InsertInboxMessage(ctx, model.InboundMessage{
		RecipientID: "bob", SenderID: "system", Channel: model.ChannelEmail,
	})
	require.NoError(t, err)

	require.NoError(t, s.ClearInbox(ctx))
	msgs, err := s.ListInboxMessages(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStore_Participation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BumpParticipation(ctx, "alice", 0, model.ChannelEmail))
	require.NoError(t, s.BumpParticipation(ctx, "alice", 0, model.ChannelEmail))
	require.NoError(t, s.BumpParticipation(ctx, "alice", 0, model.ChannelChat))
	require.NoError(t, s.BumpParticipation(ctx, "bob", 0, model.ChannelChat))
	require.NoError(t, s.BumpParticipation(ctx, "alice", 1, model.ChannelEmail))

	day0, err := s.ParticipationForDay(ctx, 0)
	require.NoError(t, err)
	require.Len(t, day0, 2)
	assert.Equal(t, "alice", day0[0].PersonID)
	assert.Equal(t, 2, day0[0].EmailCount)
	assert.Equal(t, 1, day0[0].ChatCount)
	assert.Equal(t, 3, day0[0].Total())
	assert.Equal(t, "bob", day0[1].PersonID)
	assert.Equal(t, 1, day0[1].Total())
}

func TestStore_BumpParticipation_UnknownChannel(t *testing.T) {
	s := createTestStore(t)
	err := s.BumpParticipation(context.Background(), "alice", 0, model.Channel("fax"))
	assert.Error(t, err)
}

func TestStore_TickLog(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.AppendTickLog(ctx, 1, "step", now))
	require.NoError(t, s.AppendTickLog(ctx, 2, "auto", now))

	latest, err := s.LatestTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest)

	entries, err := s.TickLog(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].Tick, "newest first")
	assert.Equal(t, "auto", entries[0].Reason)
}

func TestStore_RemovePerson_Cascades(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.InsertInboxMessage(ctx, model.InboundMessage{
		RecipientID: "bob", SenderID: "system", Channel: model.ChannelEmail,
	})
	require.NoError(t, err)
	require.NoError(t, s.BumpParticipation(ctx, "bob", 0, model.ChannelEmail))
	require.NoError(t, s.InsertEvent(ctx, model.Event{
		ID: "ev-1", Kind: model.EventAbsence, TargetIDs: []string{"bob"},
		AtTick: 1, CreatedAt: time.Now(),
	}))

	require.NoError(t, s.RemovePerson(ctx, "bob"))

	msgs, err := s.ListInboxMessages(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	day0, err := s.ParticipationForDay(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, day0)

	// Event log is append-only and untouched by the cascade.
	events, err := s.ListEvents(ctx, EventFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
