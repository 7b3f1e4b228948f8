package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/events"
	"go.uber.org/zap"
)

type fakeAdapter struct {
	platform   string
	connectErr error
	handler    MessageHandler

	mu         sync.Mutex
	sent       []*OutboundMessage
	broadcasts []*BroadcastMessage
}

func (f *fakeAdapter) Platform() string              { return f.platform }
func (f *fakeAdapter) Connect(context.Context) error { return f.connectErr }
func (f *fakeAdapter) OnMessage(h MessageHandler)    { f.handler = h }
func (f *fakeAdapter) Close() error                  { return nil }
func (f *fakeAdapter) Send(_ context.Context, m *OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}
func (f *fakeAdapter) Broadcast(_ context.Context, m *BroadcastMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, m)
	return nil
}

func TestGatewayRoutesInbound(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	a := &fakeAdapter{platform: "fake"}
	gw.Register(a)

	var got *InboundMessage
	gw.SetHandler(func(m *InboundMessage) { got = m })
	a.handler(&InboundMessage{Platform: "fake", Content: "/jump"})

	if got == nil || got.Content != "/jump" {
		t.Fatalf("handler got %+v", got)
	}
	if err := gw.Send(context.Background(), &OutboundMessage{Platform: "fake", Content: "ok"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := gw.Send(context.Background(), &OutboundMessage{Platform: "nope"}); err == nil {
		t.Error("expected error for unknown platform")
	}
}

func TestConnectAllContinuesPastFailures(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	bad := &fakeAdapter{platform: "bad", connectErr: errors.New("refused")}
	good := &fakeAdapter{platform: "good"}
	gw.Register(bad)
	gw.Register(good)

	err := gw.ConnectAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("ConnectAll error = %v", err)
	}
	status := gw.StatusAll()
	if len(status) != 2 || status[0].Platform != "bad" || status[1].Platform != "good" {
		t.Errorf("status = %+v", status)
	}
}

func TestBroadcasterMirrorsFeed(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	a := &fakeAdapter{platform: "fake"}
	gw.Register(a)
	b := NewBroadcaster(gw, zap.NewNop())
	ctx := context.Background()

	ev := events.Event{Category: events.CategoryJoined, Message: "Luna joined the game!", Icon: "person.crop.circle.badge.plus"}
	if err := b.RecordEvent(ctx, ev); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	_ = b.RecordMessage(ctx, chat.Message{SenderName: "Luna", Body: "meow"})

	b.MirrorChat = true
	_ = b.RecordMessage(ctx, chat.Message{SenderName: "Luna", Body: "purr"})
	_ = b.RecordMessage(ctx, chat.Message{SenderName: "You", Body: "psst", TargetID: "AI_1"})

	if len(a.broadcasts) != 2 {
		t.Fatalf("broadcasts = %d, want event plus one mirrored chat", len(a.broadcasts))
	}
	if a.broadcasts[0].Type != BroadcastEvent || a.broadcasts[1].Content != "purr" {
		t.Errorf("broadcasts = %+v, %+v", a.broadcasts[0], a.broadcasts[1])
	}
	if h := b.History(1); len(h) != 1 || h[0].Message.Content != "purr" {
		t.Errorf("history = %+v", h)
	}
	if got := formatDiscord(a.broadcasts[0]); got != "👋 Luna joined the game!" {
		t.Errorf("formatDiscord = %q", got)
	}
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketInputAndReply(t *testing.T) {
	ws := NewWebSocketAdapter(zap.NewNop())
	gw := NewGateway(zap.NewNop())
	gw.Register(ws)
	gw.SetHandler(func(m *InboundMessage) {
		_ = gw.Send(context.Background(), &OutboundMessage{
			Platform:  m.Platform,
			ChannelID: m.ChannelID,
			Content:   "echo " + m.Content,
		})
	})

	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()
	conn := dialWS(t, srv)
	defer conn.Close()
	waitFor(t, func() bool { return ws.Clients() == 1 })

	payload, _ := json.Marshal(InputPayload{UserID: "player", Content: "/jump"})
	if err := conn.WriteJSON(Envelope{Type: "input", Payload: payload}); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != "reply" {
		t.Fatalf("frame type = %q", env.Type)
	}
	var out OutboundMessage
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if out.Content != "echo /jump" {
		t.Errorf("reply = %q", out.Content)
	}
}

func TestSnapshotPublisherGatesByInterval(t *testing.T) {
	ws := NewWebSocketAdapter(zap.NewNop())
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	frames := 0
	pub := NewSnapshotPublisher(ws, func() any {
		frames++
		return map[string]int{"frame": frames}
	}, 100*time.Millisecond, zap.NewNop())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pub.OnTick(base)
	if pub.Pushed() != 0 {
		t.Fatal("pushed with no clients")
	}

	conn := dialWS(t, srv)
	defer conn.Close()
	waitFor(t, func() bool { return ws.Clients() == 1 })

	for i := 1; i <= 10; i++ {
		pub.OnTick(base.Add(time.Duration(i) * 50 * time.Millisecond))
	}
	if pub.Pushed() != 5 {
		t.Fatalf("pushed = %d, want 5", pub.Pushed())
	}
	env := readEnvelope(t, conn)
	if env.Type != "snapshot" || !strings.Contains(string(env.Payload), `"frame":1`) {
		t.Errorf("first frame = %s %s", env.Type, env.Payload)
	}
}

func TestWebSocketCloseDisconnectsClients(t *testing.T) {
	ws := NewWebSocketAdapter(zap.NewNop())
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()
	conn := dialWS(t, srv)
	defer conn.Close()
	waitFor(t, func() bool { return ws.Clients() == 1 })

	_ = ws.Close()
	if ws.Clients() != 0 || ws.Status().Connected {
		t.Fatalf("clients=%d status=%+v", ws.Clients(), ws.Status())
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("read after close = %v, want normal closure", err)
	}
}

func TestRESTReplyGoesToItsRequest(t *testing.T) {
	rest := NewRESTAdapter(zap.NewNop())
	var second error
	rest.OnMessage(func(m *InboundMessage) {
		ctx := context.Background()
		// An activity event mirrored while the request waits.
		if err := rest.Broadcast(ctx, &BroadcastMessage{Type: BroadcastEvent, Title: "level_up", Content: "You reached Level 2!"}); err != nil {
			t.Errorf("broadcast: %v", err)
		}
		if err := rest.Send(ctx, &OutboundMessage{Platform: "rest", ChannelID: m.ChannelID, Content: "reply to " + m.Content}); err != nil {
			t.Errorf("send: %v", err)
		}
		second = rest.Send(ctx, &OutboundMessage{Platform: "rest", ChannelID: m.ChannelID, Content: "late"})
	})

	srv := httptest.NewServer(rest.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/message", "application/json", strings.NewReader(`{"content":"/levelup 2"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out OutboundMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Content != "reply to /levelup 2" {
		t.Errorf("content = %q", out.Content)
	}
	if !errors.Is(second, ErrAlreadyReplied) {
		t.Errorf("second send err = %v, want ErrAlreadyReplied", second)
	}
	if n := rest.Pending(); n != 0 {
		t.Errorf("pending = %d after reply", n)
	}
	if err := rest.Send(context.Background(), &OutboundMessage{ChannelID: out.ChannelID}); err == nil {
		t.Error("send to a finished request should fail")
	}
}

func TestRESTRejectsBlankContent(t *testing.T) {
	rest := NewRESTAdapter(zap.NewNop())
	srv := httptest.NewServer(rest.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/message", "application/json", strings.NewReader(`{"content":"  "}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
