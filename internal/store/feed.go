package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/events"
)

// Recorder is a queryable feed history.
type Recorder interface {
	Name() string
	RecordMessage(ctx context.Context, msg chat.Message) error
	RecordEvent(ctx context.Context, ev events.Event) error
	RecentMessages(ctx context.Context, limit int) ([]chat.Message, error)
	ConversationMessages(ctx context.Context, a, b string, limit int) ([]chat.Message, error)
	RecentEvents(ctx context.Context, limit int) ([]events.Event, error)
	EventsFor(ctx context.Context, subject string, limit int) ([]events.Event, error)
	Close() error
}

const defaultLimit = 50

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultLimit
	}
	return limit
}

// conversationKey is empty for the global channel.
func conversationKey(m chat.Message) string {
	if m.TargetID == "" {
		return ""
	}
	return chat.ConversationID(m.SenderID, m.TargetID)
}

// RecordMessage stores one chat message. Replays of the same id are ignored.
func (s *Store) RecordMessage(ctx context.Context, m chat.Message) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO chat_messages (id, sender_id, sender_name, body, origin, target_id, conversation_id, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		m.ID, m.SenderID, m.SenderName, m.Body, string(m.Origin), m.TargetID, conversationKey(m), m.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	return nil
}

// RecordEvent stores one activity event.
func (s *Store) RecordEvent(ctx context.Context, e events.Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO activity_events (id, category, subject, message, icon, color, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, string(e.Category), e.Subject, e.Message, e.Icon, e.Color, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// RecentMessages returns the latest global messages, oldest first.
func (s *Store) RecentMessages(ctx context.Context, limit int) ([]chat.Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, sender_id, sender_name, body, origin, target_id, sent_at
		FROM chat_messages
		WHERE conversation_id = ''
		ORDER BY sent_at DESC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return collectMessages(rows)
}

// ConversationMessages returns the latest messages between a and b, oldest first.
func (s *Store) ConversationMessages(ctx context.Context, a, b string, limit int) ([]chat.Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, sender_id, sender_name, body, origin, target_id, sent_at
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY sent_at DESC
		LIMIT $2`, chat.ConversationID(a, b), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("conversation messages: %w", err)
	}
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]chat.Message, error) {
	defer rows.Close()
	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		var origin string
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.Body, &origin, &m.TargetID, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Origin = chat.Origin(origin)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// RecentEvents returns the latest activity events, oldest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]events.Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, category, subject, message, icon, color, occurred_at
		FROM activity_events
		ORDER BY occurred_at DESC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return collectEvents(rows)
}

// EventsFor returns the latest events about one subject, oldest first.
func (s *Store) EventsFor(ctx context.Context, subject string, limit int) ([]events.Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, category, subject, message, icon, color, occurred_at
		FROM activity_events
		WHERE subject = $1
		ORDER BY occurred_at DESC
		LIMIT $2`, subject, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("events for %s: %w", subject, err)
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]events.Event, error) {
	defer rows.Close()
	var out []events.Event
	for rows.Next() {
		var e events.Event
		var category string
		if err := rows.Scan(&e.ID, &category, &e.Subject, &e.Message, &e.Icon, &e.Color, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Category = events.Category(category)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}
