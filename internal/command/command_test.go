package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/config"
	"github.com/nidhogg/catcity/internal/events"
	"github.com/nidhogg/catcity/internal/game"
	"github.com/nidhogg/catcity/internal/gateway"
	"github.com/nidhogg/catcity/internal/world"
	"go.uber.org/zap"
)

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Command{
		Name:        "ping",
		Description: "Ping test",
		Usage:       "/ping",
		Handler: func(ctx context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			return &CommandResult{Content: "pong: " + args}, nil
		},
	})

	ctx := context.Background()
	cc := &CommandContext{Platform: "test"}

	result, err := reg.Dispatch(ctx, "/PING hello", cc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "pong: hello" {
		t.Errorf("got %q, want %q", result.Content, "pong: hello")
	}

	result, err = reg.Dispatch(ctx, "/unknown", cc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Content, "Unknown command") {
		t.Errorf("got %q for unknown command", result.Content)
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Command{Name: "beta"})
	reg.Register(&Command{Name: "alpha"})

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("got %d commands, want 2", len(list))
	}
	if list[0].Name != "alpha" {
		t.Errorf("got %q first, want %q", list[0].Name, "alpha")
	}
}

func TestSenderDefaults(t *testing.T) {
	var nilCC *CommandContext
	if id, name := nilCC.Sender(); id != DefaultUserID || name != DefaultUserName {
		t.Errorf("nil sender = %q %q", id, name)
	}
	cc := &CommandContext{UserID: "u1", UserName: "Bob"}
	if id, name := cc.Sender(); id != "u1" || name != "Bob" {
		t.Errorf("sender = %q %q", id, name)
	}
}

func newTestGame(t *testing.T) (*game.Game, *Registry) {
	t.Helper()
	cfg := config.Default().Simulation
	cfg.Seed = 7
	g, err := game.New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	g.Presence.Start()
	t.Cleanup(g.Stop)

	reg := NewRegistry()
	RegisterBuiltins(reg, gateway.NewGateway(zap.NewNop()))
	RegisterPlayer(reg, g.Player)
	RegisterChat(reg, g.Chat, g.Presence)
	RegisterWorld(reg, g.Presence, g.Events)
	return g, reg
}

func dispatch(t *testing.T, reg *Registry, input string) *CommandResult {
	t.Helper()
	res, err := reg.Dispatch(context.Background(), input, &CommandContext{Platform: "test"})
	if err != nil {
		t.Fatalf("%s: %v", input, err)
	}
	return res
}

func TestApplyPlayerAction(t *testing.T) {
	g, _ := newTestGame(t)

	if err := ApplyPlayerAction(g.Player, "right", []string{"run"}); err != nil {
		t.Fatalf("right: %v", err)
	}
	if s := g.Player.State(); s.Action != world.StateRunning || s.Position.X != 10 {
		t.Errorf("after run right: %+v", s)
	}
	if err := ApplyPlayerAction(g.Player, "teleport", []string{"3", "4"}); err != nil {
		t.Fatalf("teleport: %v", err)
	}
	if p := g.Player.State().Position; p.X != 3 || p.Y != 4 {
		t.Errorf("teleport position = %+v", p)
	}
	if err := ApplyPlayerAction(g.Player, "teleport", []string{"x"}); err == nil {
		t.Error("expected error for bad teleport args")
	}
	for _, bad := range [][]string{{"0", "NaN"}, {"Inf", "1"}, {"2", "-inf"}} {
		if err := ApplyPlayerAction(g.Player, "teleport", bad); err == nil {
			t.Errorf("teleport %v: expected error", bad)
		}
	}
	if p := g.Player.State().Position; p.X != 3 || p.Y != 4 {
		t.Errorf("non-finite teleport moved the player to %+v", p)
	}
	if err := ApplyPlayerAction(g.Player, "fly", nil); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("fly err = %v, want ErrUnknownAction", err)
	}
}

func TestDoCommandJumps(t *testing.T) {
	g, reg := newTestGame(t)
	res := dispatch(t, reg, "/do jump")
	if !strings.Contains(res.Content, "jumping") {
		t.Errorf("content = %q", res.Content)
	}
	g.Clock.Advance(2 * time.Second)
	if s := g.Player.State(); s.Jumping || s.Position.Y != 0 {
		t.Errorf("after landing: %+v", s)
	}
}

func TestWhisperGetsReply(t *testing.T) {
	g, reg := newTestGame(t)
	target := g.Presence.Roster()[0]

	res := dispatch(t, reg, "/whisper "+strings.ToLower(target.Name)+" hello there")
	msg, ok := res.Data.(chat.Message)
	if !ok || msg.TargetID != target.ID || !msg.Human() {
		t.Fatalf("whisper data = %#v", res.Data)
	}

	g.Clock.Advance(3 * time.Second)
	conv := g.Chat.Conversation(DefaultUserID, target.ID)
	if len(conv) != 2 || conv[1].SenderID != target.ID {
		t.Fatalf("conversation = %+v", conv)
	}
	if n := g.Chat.UnreadConversation(DefaultUserID, target.ID); n != 1 {
		t.Errorf("unread = %d, want 1", n)
	}

	dispatch(t, reg, "/read "+target.ID)
	if n := g.Chat.UnreadConversation(DefaultUserID, target.ID); n != 0 {
		t.Errorf("unread after /read = %d", n)
	}

	if res := dispatch(t, reg, "/whisper nobody hi"); !strings.Contains(res.Content, "No resident") {
		t.Errorf("unknown target content = %q", res.Content)
	}
}

func TestEventCommands(t *testing.T) {
	g, reg := newTestGame(t)

	res := dispatch(t, reg, "/event left Shadow")
	ev, ok := res.Data.(events.Event)
	if !ok || ev.Category != events.CategoryLeft || ev.Message != "Shadow left the game" || ev.Color != "gray" {
		t.Fatalf("event data = %#v", res.Data)
	}
	if res := dispatch(t, reg, "/event party Shadow"); !strings.Contains(res.Content, "Unknown category") {
		t.Errorf("bad category content = %q", res.Content)
	}

	res = dispatch(t, reg, "/found yarn 3")
	if res.Content != "You found 3 yarns!" {
		t.Errorf("found content = %q", res.Content)
	}
	if res := dispatch(t, reg, "/levelup 4"); res.Content != "You reached Level 4!" {
		t.Errorf("levelup content = %q", res.Content)
	}

	hist := g.Events.History()
	if len(hist) != 3 {
		t.Fatalf("history = %d events", len(hist))
	}
	if res := dispatch(t, reg, "/feed 2"); strings.Contains(res.Content, "Shadow left") {
		t.Errorf("/feed 2 should show only the last two: %q", res.Content)
	}
}

func TestWhoAndStatus(t *testing.T) {
	_, reg := newTestGame(t)
	if res := dispatch(t, reg, "/who"); strings.Count(res.Content, "lvl") != 5 {
		t.Errorf("/who = %q", res.Content)
	}
	if res := dispatch(t, reg, "/status"); res.Content != "No adapters configured." {
		t.Errorf("/status = %q", res.Content)
	}
	if res := dispatch(t, reg, "/help"); !strings.Contains(res.Content, "/whisper") {
		t.Errorf("/help missing whisper: %q", res.Content)
	}
}
