// Package runtime maintains per-person inboxes of inbound messages.
//
// Each active person has exactly one WorkerRuntime holding an in-memory
// FIFO of undelivered messages, mirrored in the store. The Manager is the
// only writer to every runtime it owns.
//
// Delivery is at-least-once: Drain empties the in-memory queue and
// returns the messages, but the persisted rows stay until the caller
// acknowledges them with Remove. A crash between the two re-delivers on
// the next hydration, never silently loses.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voxline/workday/internal/model"
	"github.com/voxline/workday/internal/store"
)

// WorkerRuntime is one person's inbox. Owned exclusively by the Manager;
// callers only ever see copies of its contents.
type WorkerRuntime struct {
	Person model.Person

	inbox []model.InboundMessage
}

// Pending returns a copy of the queued messages in FIFO order.
func (r *WorkerRuntime) Pending() []model.InboundMessage {
	out := make([]model.InboundMessage, len(r.inbox))
	copy(out, r.inbox)
	return out
}

// Manager owns all worker runtimes for one simulation.
type Manager struct {
	mu       sync.Mutex
	store    *store.Store
	runtimes map[string]*WorkerRuntime
}

// NewManager creates an empty manager backed by the given store.
func NewManager(st *store.Store) *Manager {
	return &Manager{
		store:    st,
		runtimes: make(map[string]*WorkerRuntime),
	}
}

// Get returns the runtime for a person, creating and hydrating it from
// persisted undelivered messages (in id order) if absent.
func (m *Manager) Get(ctx context.Context, p model.Person) (*WorkerRuntime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(ctx, p)
}

func (m *Manager) getLocked(ctx context.Context, p model.Person) (*WorkerRuntime, error) {
	if rt, ok := m.runtimes[p.ID]; ok {
		return rt, nil
	}
	msgs, err := m.store.ListInboxMessages(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("hydrate runtime %s: %w", p.ID, err)
	}
	rt := &WorkerRuntime{Person: p, inbox: msgs}
	m.runtimes[p.ID] = rt
	if len(msgs) > 0 {
		slog.Info("runtime hydrated with undelivered messages", "person", p.ID, "count", len(msgs))
	}
	return rt, nil
}

// Sync reconciles the runtime set with the active roster: new people get
// runtimes, departed people lose theirs. Persisted messages for removed
// people are left alone unless cascade is set.
func (m *Manager) Sync(ctx context.Context, active []model.Person, cascade bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keep := make(map[string]bool, len(active))
	for _, p := range active {
		keep[p.ID] = true
		if _, err := m.getLocked(ctx, p); err != nil {
			return err
		}
	}
	for id := range m.runtimes {
		if keep[id] {
			continue
		}
		delete(m.runtimes, id)
		slog.Info("runtime removed", "person", id, "cascade", cascade)
		if cascade {
			if err := m.store.DeleteInboxForPerson(ctx, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Queue persists a message for a recipient, assigning its id, and appends
// it to the in-memory inbox.
func (m *Manager) Queue(ctx context.Context, recipient model.Person, msg model.InboundMessage) (model.InboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rt, err := m.getLocked(ctx, recipient)
	if err != nil {
		return model.InboundMessage{}, err
	}
	msg.RecipientID = recipient.ID
	id, err := m.store.InsertInboxMessage(ctx, msg)
	if err != nil {
		return model.InboundMessage{}, fmt.Errorf("queue message for %s: %w", recipient.ID, err)
	}
	msg.ID = id
	rt.inbox = append(rt.inbox, msg)
	return msg, nil
}

// Drain atomically removes and returns all queued messages for a person,
// leaving the in-memory inbox empty. The persisted rows remain until the
// caller acknowledges them with Remove after acting on them.
func (m *Manager) Drain(personID string) []model.InboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	rt, ok := m.runtimes[personID]
	if !ok || len(rt.inbox) == 0 {
		return nil
	}
	drained := rt.inbox
	rt.inbox = nil
	return drained
}

// Requeue returns drained but unacknowledged messages to the front of a
// person's in-memory inbox. The persisted rows were never deleted, so
// this restores the pre-drain state for redelivery next tick.
func (m *Manager) Requeue(personID string, msgs []model.InboundMessage) {
	if len(msgs) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rt, ok := m.runtimes[personID]
	if !ok {
		return
	}
	restored := make([]model.InboundMessage, 0, len(msgs)+len(rt.inbox))
	restored = append(restored, msgs...)
	rt.inbox = append(restored, rt.inbox...)
}

// Remove acknowledges drained messages, deleting their persisted rows.
func (m *Manager) Remove(ctx context.Context, ids []int64) error {
	return m.store.DeleteInboxMessages(ctx, ids)
}

// ClearAll wipes all in-memory and persisted runtime state. Full-reset
// path only.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runtimes = make(map[string]*WorkerRuntime)
	return m.store.ClearInbox(ctx)
}

// Size returns the number of live runtimes.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runtimes)
}
