package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/events"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file feed history for running without Postgres.
// Writes go through one writer goroutine so the simulation never waits on
// disk.
type SQLiteStore struct {
	db *sql.DB

	ch     chan any
	wg     sync.WaitGroup
	mu     sync.RWMutex // guards closed against sends on a closed ch
	closed bool

	logger *zap.Logger
}

const sqliteQueue = 4096

// OpenSQLite opens or creates the database at path. ":memory:" is accepted.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sqlite path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		ch:     make(chan any, sqliteQueue),
		logger: logger,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	logger.Info("SQLite store opened", zap.String("path", path))
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			sender_id TEXT NOT NULL,
			sender_name TEXT NOT NULL,
			body TEXT NOT NULL,
			origin TEXT NOT NULL,
			target_id TEXT NOT NULL DEFAULT '',
			conversation_id TEXT NOT NULL DEFAULT '',
			sent_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_conversation ON chat_messages(conversation_id, sent_at);`,
		`CREATE TABLE IF NOT EXISTS activity_events (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			subject TEXT NOT NULL,
			message TEXT NOT NULL,
			icon TEXT NOT NULL,
			color TEXT NOT NULL,
			occurred_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_activity_events_subject ON activity_events(subject, occurred_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

// RecordMessage queues a message for the writer. Drops when the queue is full.
func (s *SQLiteStore) RecordMessage(_ context.Context, m chat.Message) error {
	return s.enqueue(m)
}

// RecordEvent queues an event for the writer. Drops when the queue is full.
func (s *SQLiteStore) RecordEvent(_ context.Context, e events.Event) error {
	return s.enqueue(e)
}

func (s *SQLiteStore) enqueue(v any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("sqlite store closed")
	}
	select {
	case s.ch <- v:
		return nil
	default:
		return fmt.Errorf("sqlite writer behind, dropped %T", v)
	}
}

// Flush blocks until everything queued so far is written.
func (s *SQLiteStore) Flush() {
	done := make(chan struct{})
	if s.enqueue(done) != nil {
		return
	}
	<-done
}

func (s *SQLiteStore) loop() {
	for v := range s.ch {
		var err error
		switch item := v.(type) {
		case chat.Message:
			_, err = s.db.Exec(`INSERT OR IGNORE INTO chat_messages
				(id, sender_id, sender_name, body, origin, target_id, conversation_id, sent_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				item.ID, item.SenderID, item.SenderName, item.Body, string(item.Origin),
				item.TargetID, conversationKey(item), item.Timestamp.UnixNano())
		case events.Event:
			_, err = s.db.Exec(`INSERT OR IGNORE INTO activity_events
				(id, category, subject, message, icon, color, occurred_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				item.ID, string(item.Category), item.Subject, item.Message, item.Icon, item.Color,
				item.Timestamp.UnixNano())
		case chan struct{}:
			close(item)
		}
		if err != nil {
			s.logger.Warn("sqlite write failed", zap.Error(err))
		}
	}
}

func (s *SQLiteStore) RecentMessages(ctx context.Context, limit int) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, sender_name, body, origin, target_id, sent_at
		FROM chat_messages WHERE conversation_id = ''
		ORDER BY sent_at DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return scanSQLiteMessages(rows)
}

func (s *SQLiteStore) ConversationMessages(ctx context.Context, a, b string, limit int) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, sender_name, body, origin, target_id, sent_at
		FROM chat_messages WHERE conversation_id = ?
		ORDER BY sent_at DESC LIMIT ?`, chat.ConversationID(a, b), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("conversation messages: %w", err)
	}
	return scanSQLiteMessages(rows)
}

func scanSQLiteMessages(rows *sql.Rows) ([]chat.Message, error) {
	defer rows.Close()
	var out []chat.Message
	for rows.Next() {
		var m chat.Message
		var origin string
		var ns int64
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.Body, &origin, &m.TargetID, &ns); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Origin = chat.Origin(origin)
		m.Timestamp = time.Unix(0, ns)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (s *SQLiteStore) RecentEvents(ctx context.Context, limit int) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, subject, message, icon, color, occurred_at
		FROM activity_events ORDER BY occurred_at DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return scanSQLiteEvents(rows)
}

func (s *SQLiteStore) EventsFor(ctx context.Context, subject string, limit int) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, subject, message, icon, color, occurred_at
		FROM activity_events WHERE subject = ?
		ORDER BY occurred_at DESC LIMIT ?`, subject, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("events for %s: %w", subject, err)
	}
	return scanSQLiteEvents(rows)
}

func scanSQLiteEvents(rows *sql.Rows) ([]events.Event, error) {
	defer rows.Close()
	var out []events.Event
	for rows.Next() {
		var e events.Event
		var category string
		var ns int64
		if err := rows.Scan(&e.ID, &category, &e.Subject, &e.Message, &e.Icon, &e.Color, &ns); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Category = events.Category(category)
		e.Timestamp = time.Unix(0, ns)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// Close drains the writer and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.wg.Wait()
	return s.db.Close()
}
