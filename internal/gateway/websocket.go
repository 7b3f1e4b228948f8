package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Envelope is the frame format on the render socket in both directions.
// Server frames: snapshot, reply, broadcast. Client frames: input.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// InputPayload is what a client sends: a slash command or a chat line.
type InputPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Content  string `json:"content"`
}

const (
	wsClientQueue  = 32
	wsWriteTimeout = 5 * time.Second
	wsReadTimeout  = 90 * time.Second
	wsPingInterval = 30 * time.Second
)

type wsClient struct {
	id  string
	out chan []byte
}

// WebSocketAdapter is the render feed. Every connected client receives
// snapshots pushed by a SnapshotPublisher plus replies to its own input.
type WebSocketAdapter struct {
	upgrader websocket.Upgrader
	handler  MessageHandler

	mu      sync.RWMutex
	clients map[string]*wsClient
	closed  bool
	logger  *zap.Logger
}

// NewWebSocketAdapter creates the render socket adapter.
func NewWebSocketAdapter(logger *zap.Logger) *WebSocketAdapter {
	return &WebSocketAdapter{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*wsClient),
		logger:  logger,
	}
}

func (a *WebSocketAdapter) Platform() string { return "ws" }

func (a *WebSocketAdapter) Connect(_ context.Context) error { return nil }

func (a *WebSocketAdapter) OnMessage(h MessageHandler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

// Clients returns the number of connected sockets.
func (a *WebSocketAdapter) Clients() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.clients)
}

// Handler upgrades the request and serves one client until it disconnects.
func (a *WebSocketAdapter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := a.upgrader.Upgrade(w, r, nil)
		if err != nil {
			a.logger.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		c := &wsClient{id: uuid.New().String(), out: make(chan []byte, wsClientQueue)}
		if !a.add(c) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		}
		defer a.remove(c.id)
		a.logger.Info("render client connected", zap.String("client", c.id))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go a.writeLoop(ctx, cancel, conn, c)

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		})
		for {
			_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			a.handleFrame(c, raw)
		}
		a.logger.Info("render client disconnected", zap.String("client", c.id))
	}
}

func (a *WebSocketAdapter) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, c *wsClient) {
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-c.out:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				cancel()
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cancel()
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				cancel()
				return
			}
		}
	}
}

func (a *WebSocketAdapter) handleFrame(c *wsClient, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type != "input" {
		return
	}
	var in InputPayload
	if err := json.Unmarshal(env.Payload, &in); err != nil || in.Content == "" {
		return
	}
	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	if handler == nil {
		return
	}
	handler(&InboundMessage{
		Platform:  "ws",
		ChannelID: c.id,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Content:   in.Content,
		Timestamp: time.Now(),
	})
}

func (a *WebSocketAdapter) add(c *wsClient) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.clients[c.id] = c
	return true
}

func (a *WebSocketAdapter) remove(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.clients[id]; ok {
		delete(a.clients, id)
		close(c.out)
	}
}

func encodeEnvelope(typ string, payload any) ([]byte, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Payload: p})
}

// Send delivers a reply to the client that issued the input.
func (a *WebSocketAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	b, err := encodeEnvelope("reply", msg)
	if err != nil {
		return err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	c, ok := a.clients[msg.ChannelID]
	if !ok {
		return fmt.Errorf("no websocket client: %s", msg.ChannelID)
	}
	select {
	case c.out <- b:
		return nil
	default:
		return fmt.Errorf("websocket client %s queue full", msg.ChannelID)
	}
}

// Broadcast pushes a broadcast frame to every client.
func (a *WebSocketAdapter) Broadcast(_ context.Context, msg *BroadcastMessage) error {
	b, err := encodeEnvelope("broadcast", msg)
	if err != nil {
		return err
	}
	a.fanout(b)
	return nil
}

// PushSnapshot sends one frame to every client. Slow clients miss frames
// rather than stall the publisher.
func (a *WebSocketAdapter) PushSnapshot(snapshot any) error {
	b, err := encodeEnvelope("snapshot", snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	a.fanout(b)
	return nil
}

func (a *WebSocketAdapter) fanout(b []byte) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, c := range a.clients {
		select {
		case c.out <- b:
		default:
		}
	}
}

// Close disconnects every client and refuses new ones.
func (a *WebSocketAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	for id, c := range a.clients {
		delete(a.clients, id)
		close(c.out)
	}
	return nil
}

func (a *WebSocketAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return AdapterStatus{
		Platform:  "ws",
		Connected: !a.closed,
		Details:   fmt.Sprintf("clients=%d", len(a.clients)),
	}
}
