package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voxline/workday/internal/model"
)

// EventFilter narrows ListEvents results. Zero-value fields match
// everything.
type EventFilter struct {
	ProjectID string
	TargetID  string
	Kind      model.EventKind
}

// InsertEvent appends an event to the log. Events are immutable once
// written; duplicate IDs are silently ignored (idempotent re-injection).
func (s *Store) InsertEvent(ctx context.Context, e model.Event) error {
	targets, err := json.Marshal(e.TargetIDs)
	if err != nil {
		return fmt.Errorf("marshal target ids: %w", err)
	}
	payload := e.Payload
	if payload == nil {
		payload = map[string]string{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, kind, target_ids, project_id, at_tick, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		string(e.Kind),
		string(targets),
		e.ProjectID,
		e.AtTick,
		string(payloadJSON),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns events matching the filter, ordered by (at_tick, id).
//
// Target filtering happens in Go: target_ids is a JSON array column and
// the event log is small enough that a table scan per query is fine.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error) {
	query := `
		SELECT id, kind, target_ids, project_id, at_tick, payload, created_at
		FROM events WHERE 1=1`
	var args []any
	if f.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(f.Kind))
	}
	query += ` ORDER BY at_tick ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			e           model.Event
			kind        string
			targetsJSON string
			payloadJSON string
			createdStr  string
		)
		if err := rows.Scan(&e.ID, &kind, &targetsJSON, &e.ProjectID, &e.AtTick, &payloadJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = model.EventKind(kind)
		if err := json.Unmarshal([]byte(targetsJSON), &e.TargetIDs); err != nil {
			return nil, fmt.Errorf("unmarshal target ids for event %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(payloadJSON), &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for event %s: %w", e.ID, err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for event %s: %w", e.ID, err)
		}
		if f.TargetID != "" && !e.Targets(f.TargetID) {
			continue
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountEventsForDay returns how many events of a kind fall inside a day's
// tick range. Used for once-per-day eligibility checks that must survive
// restarts.
func (s *Store) CountEventsForDay(ctx context.Context, kind model.EventKind, firstTick, lastTick int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events WHERE kind = ? AND at_tick BETWEEN ? AND ?
	`, string(kind), firstTick, lastTick).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
