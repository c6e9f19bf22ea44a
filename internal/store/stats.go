package store

import (
	"context"
	"fmt"
	"time"

	"github.com/voxline/workday/internal/model"
)

// BumpParticipation increments one channel counter for (person, day).
// The channel must already be validated by the caller.
func (s *Store) BumpParticipation(ctx context.Context, personID string, day int64, channel model.Channel) error {
	var column string
	switch channel {
	case model.ChannelEmail:
		column = "email_count"
	case model.ChannelChat:
		column = "chat_count"
	default:
		return fmt.Errorf("unknown channel %q", channel)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participation_stats (person_id, day, `+column+`)
		VALUES (?, ?, 1)
		ON CONFLICT(person_id, day) DO UPDATE SET `+column+` = `+column+` + 1
	`, personID, day)
	if err != nil {
		return fmt.Errorf("bump participation: %w", err)
	}
	return nil
}

// ParticipationForDay returns every person's counters for one day,
// ordered by person id for deterministic output.
func (s *Store) ParticipationForDay(ctx context.Context, day int64) ([]model.ParticipationStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_id, day, email_count, chat_count
		FROM participation_stats WHERE day = ?
		ORDER BY person_id COLLATE BINARY ASC
	`, day)
	if err != nil {
		return nil, fmt.Errorf("query participation: %w", err)
	}
	defer rows.Close()

	var stats []model.ParticipationStat
	for rows.Next() {
		var st model.ParticipationStat
		if err := rows.Scan(&st.PersonID, &st.Day, &st.EmailCount, &st.ChatCount); err != nil {
			return nil, fmt.Errorf("scan participation: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// DeleteParticipationForPerson removes a person's counters as part of an
// explicit cascade.
func (s *Store) DeleteParticipationForPerson(ctx context.Context, personID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM participation_stats WHERE person_id = ?`, personID)
	if err != nil {
		return fmt.Errorf("cascade participation for %s: %w", personID, err)
	}
	return nil
}

// AppendTickLog records one unit advance of the clock.
func (s *Store) AppendTickLog(ctx context.Context, tick int64, reason string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tick_log (tick, reason, at) VALUES (?, ?, ?)
	`, tick, reason, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append tick log: %w", err)
	}
	return nil
}

// LatestTick returns the highest logged tick, or 0 for an empty log.
func (s *Store) LatestTick(ctx context.Context) (int64, error) {
	var tick int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(tick), 0) FROM tick_log`).Scan(&tick)
	if err != nil {
		return 0, fmt.Errorf("latest tick: %w", err)
	}
	return tick, nil
}

// TickLog returns the most recent entries, newest first.
func (s *Store) TickLog(ctx context.Context, limit int) ([]model.TickLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, reason, at FROM tick_log
		ORDER BY tick DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query tick log: %w", err)
	}
	defer rows.Close()

	var entries []model.TickLogEntry
	for rows.Next() {
		var e model.TickLogEntry
		var atStr string
		if err := rows.Scan(&e.Tick, &e.Reason, &atStr); err != nil {
			return nil, fmt.Errorf("scan tick log: %w", err)
		}
		e.At, err = time.Parse(time.RFC3339Nano, atStr)
		if err != nil {
			return nil, fmt.Errorf("parse tick log time: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RemovePerson cascades a person's removal across every table that keys
// on a person id. The event log is append-only and is left alone.
func (s *Store) RemovePerson(ctx context.Context, personID string) error {
	if err := s.DeleteInboxForPerson(ctx, personID); err != nil {
		return err
	}
	return s.DeleteParticipationForPerson(ctx, personID)
}
