package runtime

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxline/workday/internal/model"
	"github.com/voxline/workday/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "runtime.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	alice = model.Person{ID: "alice", Name: "Alice", Active: true}
	bob   = model.Person{ID: "bob", Name: "Bob", Active: true}
)

func TestManager_QueueThenDrain_FIFO(t *testing.T) {
	m := NewManager(testStore(t))
	ctx := context.Background()

	m1, err := m.Queue(ctx, alice, model.InboundMessage{SenderID: "system", Subject: "first", Channel: model.ChannelEmail})
	require.NoError(t, err)
	m2, err := m.Queue(ctx, alice, model.InboundMessage{SenderID: "system", Subject: "second", Channel: model.ChannelEmail})
	require.NoError(t, err)
	assert.Greater(t, m2.ID, m1.ID)

	drained := m.Drain("alice")
	require.Len(t, drained, 2)
	assert.Equal(t, "first", drained[0].Subject)
	assert.Equal(t, "second", drained[1].Subject)

	assert.Empty(t, m.Drain("alice"), "second drain is empty")
}

func TestManager_DrainWithoutRemove_Redelivers(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	m1 := NewManager(st)
	_, err := m1.Queue(ctx, alice, model.InboundMessage{SenderID: "system", Subject: "urgent", Channel: model.ChannelEmail})
	require.NoError(t, err)
	require.Len(t, m1.Drain("alice"), 1)
	// Crash before Remove: a fresh manager hydrates the same message.

	m2 := NewManager(st)
	rt, err := m2.Get(ctx, alice)
	require.NoError(t, err)
	require.Len(t, rt.Pending(), 1)
	assert.Equal(t, "urgent", rt.Pending()[0].Subject)
}

func TestManager_RemoveAcknowledges(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	m1 := NewManager(st)
	msg, err := m1.Queue(ctx, alice, model.InboundMessage{SenderID: "system", Subject: "done", Channel: model.ChannelEmail})
	require.NoError(t, err)

	drained := m1.Drain("alice")
	require.Len(t, drained, 1)
	require.NoError(t, m1.Remove(ctx, []int64{drained[0].ID}))
	_ = msg

	m2 := NewManager(st)
	rt, err := m2.Get(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, rt.Pending(), "acknowledged messages are gone for good")
}

func TestManager_Get_HydratesInIDOrder(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	for _, subject := range []string{"a", "b", "c"} {
		_, err := st.InsertInboxMessage(ctx, model.InboundMessage{
			RecipientID: "alice", SenderID: "system", Subject: subject, Channel: model.ChannelEmail,
		})
		require.NoError(t, err)
	}

	m := NewManager(st)
	rt, err := m.Get(ctx, alice)
	require.NoError(t, err)
	pending := rt.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, "a", pending[0].Subject)
	assert.Equal(t, "c", pending[2].Subject)
}

func TestManager_Sync_AddsAndRemoves(t *testing.T) {
	m := NewManager(testStore(t))
	ctx := context.Background()

	require.NoError(t, m.Sync(ctx, []model.Person{alice, bob}, false))
	assert.Equal(t, 2, m.Size())

	require.NoError(t, m.Sync(ctx, []model.Person{alice}, false))
	assert.Equal(t, 1, m.Size())
	assert.Empty(t, m.Drain("bob"), "removed runtime has no in-memory state")
}

func TestManager_Sync_NoCascadeKeepsPersistedMessages(t *testing.T) {
	st := testStore(t)
	m := NewManager(st)
	ctx := context.Background()

	_, err := m.Queue(ctx, bob, model.InboundMessage{SenderID: "system", Subject: "keep", Channel: model.ChannelEmail})
	require.NoError(t, err)

	require.NoError(t, m.Sync(ctx, []model.Person{alice}, false))
	msgs, err := st.ListInboxMessages(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "persisted messages survive a non-cascading sync")

	// Bob rejoins: the message is still deliverable.
	require.NoError(t, m.Sync(ctx, []model.Person{alice, bob}, false))
	assert.Len(t, m.Drain("bob"), 1)
}

func TestManager_Sync_CascadeDeletesPersistedMessages(t *testing.T) {
	st := testStore(t)
	m := NewManager(st)
	ctx := context.Background()

	_, err := m.Queue(ctx, bob, model.InboundMessage{SenderID: "system", Subject: "gone", Channel: model.ChannelEmail})
	require.NoError(t, err)

	require.NoError(t, m.Sync(ctx, []model.Person{alice}, true))
	msgs, err := st.ListInboxMessages(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestManager_ClearAll(t *testing.T) {
	st := testStore(t)
	m := NewManager(st)
	ctx := context.Background()

	_, err := m.Queue(ctx, alice, model.InboundMessage{SenderID: "system", Channel: model.ChannelEmail})
	require.NoError(t, err)

	require.NoError(t, m.ClearAll(ctx))
	assert.Equal(t, 0, m.Size())

	msgs, err := st.ListInboxMessages(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestManager_Requeue_RestoresDrainedMessages(t *testing.T) {
	m := NewManager(testStore(t))
	ctx := context.Background()

	_, err := m.Queue(ctx, alice, model.InboundMessage{SenderID: "system", Subject: "first", Channel: model.ChannelEmail})
	require.NoError(t, err)
	drained := m.Drain("alice")
	require.Len(t, drained, 1)

	// A message queued while the drained batch was being processed lands
	// behind the requeued one.
	_, err = m.Queue(ctx, alice, model.InboundMessage{SenderID: "system", Subject: "second", Channel: model.ChannelEmail})
	require.NoError(t, err)

	m.Requeue("alice", drained)
	redelivered := m.Drain("alice")
	require.Len(t, redelivered, 2)
	assert.Equal(t, "first", redelivered[0].Subject)
	assert.Equal(t, "second", redelivered[1].Subject)
}

func TestManager_Requeue_UnknownPersonIsNoop(t *testing.T) {
	m := NewManager(testStore(t))
	m.Requeue("ghost", []model.InboundMessage{{Subject: "lost"}})
	assert.Empty(t, m.Drain("ghost"))
}
