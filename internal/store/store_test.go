package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/events"
	"go.uber.org/zap"
)

var _ Recorder = (*Store)(nil)
var _ Recorder = (*SQLiteStore)(nil)

func TestSQLiteRoundTrip(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "feed.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		m := chat.Message{
			ID: fmt.Sprintf("g%d", i), SenderID: "AI_1", SenderName: "Whiskers",
			Body: fmt.Sprintf("line %d", i), Origin: chat.OriginSimulated,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.RecordMessage(ctx, m); err != nil {
			t.Fatalf("RecordMessage: %v", err)
		}
	}
	private := chat.Message{
		ID: "p0", SenderID: "player", SenderName: "You", Body: "hi",
		Origin: chat.OriginHuman, TargetID: "AI_3", Timestamp: base,
	}
	if err := s.RecordMessage(ctx, private); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}
	ev := events.Event{
		ID: "e0", Category: events.CategoryJoined, Subject: "Luna",
		Message: "Luna joined the game!", Icon: "person.crop.circle.badge.plus", Color: "green",
		Timestamp: base,
	}
	if err := s.RecordEvent(ctx, ev); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	// Duplicate ids are ignored.
	_ = s.RecordEvent(ctx, ev)
	s.Flush()

	global, err := s.RecentMessages(ctx, 2)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(global) != 2 || global[0].Body != "line 1" || global[1].Body != "line 2" {
		t.Errorf("recent global = %+v", global)
	}

	conv, err := s.ConversationMessages(ctx, "AI_3", "player", 10)
	if err != nil {
		t.Fatalf("ConversationMessages: %v", err)
	}
	if len(conv) != 1 || !conv[0].Human() || !conv[0].Timestamp.Equal(base) {
		t.Errorf("conversation = %+v", conv)
	}

	evs, err := s.EventsFor(ctx, "Luna", 10)
	if err != nil {
		t.Fatalf("EventsFor: %v", err)
	}
	if len(evs) != 1 || evs[0].Category != events.CategoryJoined {
		t.Errorf("events = %+v", evs)
	}
}

func TestSQLiteRejectsAfterClose(t *testing.T) {
	s, err := OpenSQLite(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.RecordEvent(context.Background(), events.Event{ID: "x"}); err == nil {
		t.Error("expected error after close")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestJournalRotatesAndReads(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir, "feed")
	hour := time.Date(2026, 3, 4, 5, 10, 0, 0, time.UTC)
	j.now = func() time.Time { return hour }

	ctx := context.Background()
	if err := j.RecordMessage(ctx, chat.Message{ID: "m1", Body: "meow"}); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}
	if err := j.RecordEvent(ctx, events.Event{ID: "e1", Category: events.CategoryLeft}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	hour = hour.Add(time.Hour)
	if err := j.RecordEvent(ctx, events.Event{ID: "e2", Category: events.CategoryJoined}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	first, err := ReadJournal(filepath.Join(dir, "feed-2026-03-04-05.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	if len(first) != 2 || first[0].Kind != "message" || first[0].Message.Body != "meow" || first[1].Event.ID != "e1" {
		t.Errorf("first file = %+v", first)
	}
	second, err := ReadJournal(filepath.Join(dir, "feed-2026-03-04-06.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	if len(second) != 1 || second[0].Event.Category != events.CategoryJoined {
		t.Errorf("second file = %+v", second)
	}
}
