//go:build integration && !e2e

package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/config"
	"github.com/nidhogg/catcity/internal/events"
	"github.com/nidhogg/catcity/internal/game"
	"github.com/nidhogg/catcity/internal/gateway"
	"github.com/nidhogg/catcity/internal/social"
	"github.com/nidhogg/catcity/internal/store"
)

func TestPostgresFeedAndSessions(t *testing.T) {
	ctx := context.Background()
	pg, err := store.New(testPGDSN, testLogger)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer pg.Close()
	if err := pg.Migrate(ctx, "../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	base := time.Date(2026, 3, 4, 5, 0, 0, 0, time.UTC)
	msgs := []chat.Message{
		{ID: "m1", SenderID: "AI_0", SenderName: "Luna", Body: "meow", Origin: chat.OriginSimulated, Timestamp: base},
		{ID: "m2", SenderID: "player", SenderName: "You", Body: "hi", Origin: chat.OriginHuman, Timestamp: base.Add(time.Second)},
		{ID: "m3", SenderID: "player", SenderName: "You", Body: "psst", Origin: chat.OriginHuman, TargetID: "AI_0", Timestamp: base.Add(2 * time.Second)},
	}
	for _, m := range msgs {
		if err := pg.RecordMessage(ctx, m); err != nil {
			t.Fatalf("record %s: %v", m.ID, err)
		}
	}
	// Re-recording is idempotent.
	if err := pg.RecordMessage(ctx, msgs[0]); err != nil {
		t.Fatalf("re-record: %v", err)
	}

	global, err := pg.RecentMessages(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(global) != 2 || global[0].ID != "m1" || global[1].ID != "m2" {
		t.Fatalf("global = %+v", global)
	}
	conv, err := pg.ConversationMessages(ctx, "AI_0", "player", 10)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(conv) != 1 || conv[0].TargetID != "AI_0" {
		t.Fatalf("conversation = %+v", conv)
	}

	ev := events.Event{ID: "e1", Category: events.CategoryJoined, Subject: "Luna", Message: "Luna joined the game!", Color: "green", Timestamp: base}
	if err := pg.RecordEvent(ctx, ev); err != nil {
		t.Fatalf("record event: %v", err)
	}
	got, err := pg.EventsFor(ctx, "Luna", 5)
	if err != nil {
		t.Fatalf("events for: %v", err)
	}
	if len(got) != 1 || got[0].Message != ev.Message {
		t.Fatalf("events = %+v", got)
	}

	id, err := pg.OpenSession(ctx, 1<<63+5)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if seed, err := pg.SessionSeed(ctx, id); err != nil || seed != 1<<63+5 {
		t.Fatalf("seed = %d, %v", seed, err)
	}
	if err := pg.CloseSession(ctx, id); err != nil {
		t.Fatalf("close session: %v", err)
	}
}

func TestRedisFeedStreamsGameOutput(t *testing.T) {
	feed, err := gateway.NewRedisFeed(testRedisURL, "catcity:test", testLogger)
	if err != nil {
		t.Fatalf("redis feed: %v", err)
	}
	defer feed.Close()

	g, err := game.New(config.Default().Simulation, testLogger)
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	g.Attach(feed)
	g.Start()
	defer g.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	items := feed.Subscribe(ctx)

	// The subscriber reads from "$", so keep posting until one arrives.
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case item, ok := <-items:
			if !ok {
				t.Fatal("feed closed before any item arrived")
			}
			if item.Kind == "event" && item.Event != nil && item.Event.Subject == "You" {
				return
			}
		case <-tick.C:
			g.Events.PlayerLeveledUp(2)
		case <-ctx.Done():
			t.Fatal("no event arrived on the feed stream")
		}
	}
}

func TestRedisInputRoundTrip(t *testing.T) {
	feed, err := gateway.NewRedisFeed(testRedisURL, "catcity:input-test", testLogger)
	if err != nil {
		t.Fatalf("redis feed: %v", err)
	}
	defer feed.Close()

	got := make(chan *gateway.InboundMessage, 1)
	feed.OnMessage(func(m *gateway.InboundMessage) {
		select {
		case got <- m:
		default:
		}
	})
	ctx := context.Background()
	if err := feed.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case m := <-got:
			if m.Platform != "redis" || m.Content != "/who" || m.ChannelID == "" {
				t.Fatalf("inbound = %+v", m)
			}
			return
		case <-tick.C:
			if _, err := feed.PublishInput(ctx, gateway.InputPayload{UserName: "Ana", Content: "/who"}); err != nil {
				t.Fatalf("publish input: %v", err)
			}
		case <-deadline:
			t.Fatal("input never reached the handler")
		}
	}
}

func TestSocialGraph(t *testing.T) {
	ctx := context.Background()
	driver, err := social.Connect(ctx, testNeo4jURI, "", "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	cfg := social.DefaultConfig()
	cfg.HistoryCap = 2
	graph := social.NewGraph(driver, cfg, testLogger)
	defer graph.Close(ctx)

	for _, body := range []string{"one", "two", "three"} {
		m := chat.Message{SenderID: "player", TargetID: "AI_1", Body: body}
		if err := graph.RecordMessage(ctx, m); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	// Global chat creates no link.
	if err := graph.RecordMessage(ctx, chat.Message{SenderID: "player", Body: "hi all"}); err != nil {
		t.Fatalf("record global: %v", err)
	}

	rel, err := graph.Get(ctx, "player", "AI_1")
	if err != nil || rel == nil {
		t.Fatalf("get = %v, %v", rel, err)
	}
	if rel.Strength < 0.149 || rel.Strength > 0.151 {
		t.Errorf("strength = %v, want 0.15", rel.Strength)
	}
	if len(rel.History) != 2 || rel.History[1] != "three" {
		t.Errorf("history = %v", rel.History)
	}

	if err := graph.Decay(ctx); err != nil {
		t.Fatalf("decay: %v", err)
	}
	rels, err := graph.Relations(ctx, "player")
	if err != nil {
		t.Fatalf("relations: %v", err)
	}
	if len(rels) != 1 || rels[0].Strength > 0.141 {
		t.Errorf("relations after decay = %+v", rels)
	}

	missing, err := graph.Get(ctx, "AI_1", "player")
	if err != nil || missing != nil {
		t.Errorf("reverse link = %v, %v", missing, err)
	}
}
