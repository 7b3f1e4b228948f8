package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/config"
	"github.com/nidhogg/catcity/internal/events"
	"github.com/nidhogg/catcity/internal/world"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu     sync.Mutex
	msgs   []chat.Message
	events []events.Event
	fail   bool
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) RecordMessage(_ context.Context, m chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	if s.fail {
		return errors.New("boom")
	}
	return nil
}

func (s *recordingSink) RecordEvent(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func newTestGame(t *testing.T) *Game {
	t.Helper()
	cfg := config.Default().Simulation
	cfg.Seed = 42
	g, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestSnapshotAfterStart(t *testing.T) {
	g := newTestGame(t)
	g.Start()
	defer g.Stop()

	g.Clock.Advance(10 * time.Second)
	s := g.Snapshot()
	if !s.Running || len(s.Agents) != 5 {
		t.Fatalf("running=%v agents=%d", s.Running, len(s.Agents))
	}
	if s.Player.Action != world.StateIdle {
		t.Errorf("player action = %q", s.Player.Action)
	}
	if len(s.Events) < 5 {
		t.Errorf("events = %d, want the five initial joins", len(s.Events))
	}
	if s.Notification == nil {
		t.Error("no notification displayed with a busy queue")
	}
}

func TestSinksReceiveFeed(t *testing.T) {
	g := newTestGame(t)
	sink := &recordingSink{fail: true}
	g.Attach(sink)
	g.Start()

	g.Chat.SendMessage("player", "You", "hi Shadow", true, "AI_0")
	g.Events.PlayerLeveledUp(2)
	g.Clock.Advance(4 * time.Second)
	g.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.msgs) < 2 {
		t.Errorf("sink got %d messages, want message and reply", len(sink.msgs))
	}
	found := false
	for _, e := range sink.events {
		if e.Subject == "You" && e.Category == events.CategoryLevelUp {
			found = true
		}
	}
	if !found {
		t.Error("sink missed the player level-up")
	}
}

func TestSeedIsDeterministic(t *testing.T) {
	a, b := newTestGame(t), newTestGame(t)
	a.Start()
	b.Start()
	defer a.Stop()
	defer b.Stop()

	for i := 0; i < 50; i++ {
		a.Clock.Advance(100 * time.Millisecond)
		b.Clock.Advance(100 * time.Millisecond)
	}
	ra, rb := a.Presence.Roster(), b.Presence.Roster()
	for i := range ra {
		if ra[i].Position != rb[i].Position || ra[i].Level != rb[i].Level {
			t.Fatalf("agent %d diverged: %+v vs %+v", i, ra[i], rb[i])
		}
	}
}

func TestConfigMapping(t *testing.T) {
	cfg := config.Default().Simulation
	cfg.Player.RevertPolicy = config.RevertCancel
	if pc := PlayerConfig(cfg.Player); !pc.CancelReverts || pc.RevertDelay != 500*time.Millisecond {
		t.Errorf("player config = %+v", pc)
	}
	if cc := ChatConfig(cfg.Chat); cc.Debounce != 10*time.Second || cc.ReplyMax != 3*time.Second {
		t.Errorf("chat config = %+v", cc)
	}
	if ec := EventsConfig(cfg.Events); ec.Gap != 500*time.Millisecond || ec.RejoinDelay != 15*time.Second {
		t.Errorf("events config = %+v", ec)
	}
	if pc := PresenceConfig(cfg.Presence); pc.Bounds.HalfExtent != 300 || pc.TickInterval != 100*time.Millisecond {
		t.Errorf("presence config = %+v", pc)
	}
}

func TestMissingPhraseFile(t *testing.T) {
	cfg := config.Default().Simulation
	cfg.Chat.PhrasesPath = "/nonexistent/phrases.yaml"
	if _, err := New(cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing phrase book")
	}
}
