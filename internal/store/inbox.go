package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxline/workday/internal/model"
)

// InsertInboxMessage persists an inbound message and returns its assigned
// row id. The id orders hydration after a restart.
func (s *Store) InsertInboxMessage(ctx context.Context, m model.InboundMessage) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO inbox_messages
		(recipient_id, sender_id, sender_name, subject, summary, action_item, message_type, channel, tick, message_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.RecipientID,
		m.SenderID,
		m.SenderName,
		m.Subject,
		m.Summary,
		m.ActionItem,
		m.MessageType,
		string(m.Channel),
		m.Tick,
		m.MessageID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert inbox message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("inbox message id: %w", err)
	}
	return id, nil
}

// ListInboxMessages returns all undelivered messages for a recipient in
// id order (the order they were queued).
func (s *Store) ListInboxMessages(ctx context.Context, recipientID string) ([]model.InboundMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient_id, sender_id, sender_name, subject, summary, action_item, message_type, channel, tick, message_id
		FROM inbox_messages WHERE recipient_id = ?
		ORDER BY id ASC
	`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("query inbox: %w", err)
	}
	defer rows.Close()

	var msgs []model.InboundMessage
	for rows.Next() {
		var m model.InboundMessage
		var channel string
		if err := rows.Scan(&m.ID, &m.RecipientID, &m.SenderID, &m.SenderName, &m.Subject,
			&m.Summary, &m.ActionItem, &m.MessageType, &channel, &m.Tick, &m.MessageID); err != nil {
			return nil, fmt.Errorf("scan inbox message: %w", err)
		}
		m.Channel = model.Channel(channel)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// DeleteInboxMessages removes messages by id after planning has acted on
// them. Deleting an already-deleted id is a no-op.
func (s *Store) DeleteInboxMessages(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM inbox_messages WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("delete inbox messages: %w", err)
	}
	return nil
}

// DeleteInboxForPerson removes all persisted messages owned by one
// recipient. Only called for an explicit destructive cascade.
func (s *Store) DeleteInboxForPerson(ctx context.Context, recipientID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM inbox_messages WHERE recipient_id = ?`, recipientID)
	if err != nil {
		return fmt.Errorf("cascade inbox for %s: %w", recipientID, err)
	}
	return nil
}

// ClearInbox wipes every persisted inbox message. Full-reset path only.
func (s *Store) ClearInbox(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM inbox_messages`); err != nil {
		return fmt.Errorf("clear inbox: %w", err)
	}
	return nil
}
