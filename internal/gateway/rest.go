package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const restReplyTimeout = 10 * time.Second

// ErrAlreadyReplied is returned when a request has already received its reply.
var ErrAlreadyReplied = errors.New("request already answered")

// lineRequest is the body of POST /message.
type lineRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Content  string `json:"content"`
}

// pendingLine is one HTTP request waiting for the router's answer. The first
// Send addressed to it wins; later ones are rejected.
type pendingLine struct {
	once  sync.Once
	done  chan struct{}
	reply *OutboundMessage
}

func (p *pendingLine) deliver(msg *OutboundMessage) bool {
	delivered := false
	p.once.Do(func() {
		p.reply = msg
		close(p.done)
		delivered = true
	})
	return delivered
}

// RESTAdapter takes one command or chat line per HTTP request and answers
// with the reply addressed to that request. It has no push channel, so
// broadcasts are not delivered here; HTTP clients read them from the API's
// broadcast history instead.
type RESTAdapter struct {
	mu      sync.RWMutex
	handler MessageHandler
	pending map[string]*pendingLine // channelID -> waiting request
	logger  *zap.Logger
}

// NewRESTAdapter creates a REST gateway adapter.
func NewRESTAdapter(logger *zap.Logger) *RESTAdapter {
	return &RESTAdapter{
		pending: make(map[string]*pendingLine),
		logger:  logger,
	}
}

func (a *RESTAdapter) Platform() string { return "rest" }

func (a *RESTAdapter) Connect(_ context.Context) error { return nil }

func (a *RESTAdapter) OnMessage(h MessageHandler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

func (a *RESTAdapter) Close() error { return nil }

// Pending returns the number of requests still waiting for a reply.
func (a *RESTAdapter) Pending() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.pending)
}

func (a *RESTAdapter) Status() AdapterStatus {
	return AdapterStatus{
		Platform:  "rest",
		Connected: true,
		Details:   fmt.Sprintf("%d waiting", a.Pending()),
	}
}

// Send answers the request identified by msg.ChannelID.
func (a *RESTAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	a.mu.RLock()
	p, ok := a.pending[msg.ChannelID]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no waiting request: %s", msg.ChannelID)
	}
	if !p.deliver(msg) {
		return fmt.Errorf("%w: %s", ErrAlreadyReplied, msg.ChannelID)
	}
	return nil
}

// Broadcast is a no-op: a request only ever receives its own reply.
func (a *RESTAdapter) Broadcast(_ context.Context, _ *BroadcastMessage) error {
	return nil
}

// Routes returns a chi router with REST gateway endpoints.
func (a *RESTAdapter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/message", a.handleMessage)
	return r
}

func (a *RESTAdapter) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		replyJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		replyJSON(w, http.StatusBadRequest, map[string]string{"error": "content is required"})
		return
	}

	channelID := uuid.NewString()
	p := &pendingLine{done: make(chan struct{})}

	a.mu.Lock()
	a.pending[channelID] = p
	handler := a.handler
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.pending, channelID)
		a.mu.Unlock()
	}()

	if handler == nil {
		replyJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no message handler"})
		return
	}
	handler(&InboundMessage{
		Platform:  "rest",
		ChannelID: channelID,
		UserID:    req.UserID,
		UserName:  req.UserName,
		Content:   req.Content,
		Timestamp: time.Now(),
	})

	timer := time.NewTimer(restReplyTimeout)
	defer timer.Stop()
	select {
	case <-p.done:
		replyJSON(w, http.StatusOK, p.reply)
	case <-timer.C:
		a.logger.Warn("rest reply timed out", zap.String("channel", channelID))
		replyJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "response timeout"})
	case <-r.Context().Done():
	}
}

func replyJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
