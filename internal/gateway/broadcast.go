package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/events"
	"go.uber.org/zap"
)

// BroadcastRecord tracks a sent broadcast for history.
type BroadcastRecord struct {
	Message *BroadcastMessage `json:"message"`
	SentAt  time.Time         `json:"sent_at"`
	Targets []string          `json:"targets"`
}

const broadcastHistoryCap = 200

// Broadcaster mirrors the simulation feed to every platform adapter. It is a
// feed sink: activity events are always mirrored, global chat only when
// MirrorChat is set.
type Broadcaster struct {
	gateway    *Gateway
	MirrorChat bool

	mu      sync.Mutex
	history []BroadcastRecord
	logger  *zap.Logger
}

// NewBroadcaster creates a broadcaster backed by the given gateway.
func NewBroadcaster(gw *Gateway, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		gateway: gw,
		logger:  logger,
	}
}

func (b *Broadcaster) Name() string { return "broadcast" }

// RecordEvent mirrors one activity event.
func (b *Broadcaster) RecordEvent(ctx context.Context, e events.Event) error {
	return b.Send(ctx, &BroadcastMessage{
		Type:    BroadcastEvent,
		Title:   string(e.Category),
		Content: e.Message,
		Icon:    e.Icon,
		Color:   e.Color,
	})
}

// RecordMessage mirrors global chat when enabled. Private messages stay put.
func (b *Broadcaster) RecordMessage(ctx context.Context, m chat.Message) error {
	if !b.MirrorChat || m.TargetID != "" {
		return nil
	}
	return b.Send(ctx, &BroadcastMessage{
		Type:       BroadcastChat,
		Title:      m.SenderName,
		Content:    m.Body,
		SenderName: m.SenderName,
	})
}

// Send broadcasts a message to all or selected platforms via the gateway.
func (b *Broadcaster) Send(ctx context.Context, msg *BroadcastMessage) error {
	if msg.Type == "" {
		return fmt.Errorf("broadcast type is required")
	}

	b.logger.Debug("sending broadcast",
		zap.String("type", string(msg.Type)),
		zap.String("title", msg.Title))

	if err := b.gateway.Broadcast(ctx, msg); err != nil {
		return err
	}

	targets := msg.Platforms
	if len(targets) == 0 {
		targets = b.gateway.Adapters()
	}

	b.mu.Lock()
	b.history = append(b.history, BroadcastRecord{
		Message: msg,
		SentAt:  time.Now(),
		Targets: targets,
	})
	if over := len(b.history) - broadcastHistoryCap; over > 0 {
		b.history = append([]BroadcastRecord(nil), b.history[over:]...)
	}
	b.mu.Unlock()
	return nil
}

// History returns the most recent broadcast records, oldest first.
func (b *Broadcaster) History(limit int) []BroadcastRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	start := len(b.history) - limit
	out := make([]BroadcastRecord, limit)
	copy(out, b.history[start:])
	return out
}
