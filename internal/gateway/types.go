package gateway

import (
	"context"
	"time"
)

// GatewayAdapter defines the interface for platform adapters.
type GatewayAdapter interface {
	Platform() string
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg *OutboundMessage) error
	OnMessage(handler MessageHandler)
	Broadcast(ctx context.Context, msg *BroadcastMessage) error
	Close() error
}

// StatusReporter is implemented by adapters that track a live connection.
type StatusReporter interface {
	Status() AdapterStatus
}

// AdapterStatus is the connection state of one adapter.
type AdapterStatus struct {
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	Details     string     `json:"details,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// MessageHandler processes inbound messages from any platform.
type MessageHandler func(msg *InboundMessage)

// InboundMessage is a normalized message from any platform. Content is either
// a slash command or a line of global chat.
type InboundMessage struct {
	Platform  string    `json:"platform"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ReplyTo   string    `json:"reply_to,omitempty"`
}

// OutboundMessage is a reply sent to a specific platform channel.
type OutboundMessage struct {
	Platform   string `json:"platform"`
	ChannelID  string `json:"channel_id"`
	SenderName string `json:"sender_name,omitempty"`
	Content    string `json:"content"`
	ReplyTo    string `json:"reply_to,omitempty"`
}

// BroadcastType categorizes broadcast messages.
type BroadcastType string

const (
	BroadcastEvent        BroadcastType = "event"
	BroadcastChat         BroadcastType = "chat"
	BroadcastAnnouncement BroadcastType = "announcement"
)

// BroadcastMessage is sent to multiple platforms simultaneously.
type BroadcastMessage struct {
	Type       BroadcastType `json:"type"`
	Title      string        `json:"title"`
	Content    string        `json:"content"`
	SenderName string        `json:"sender_name,omitempty"`
	Icon       string        `json:"icon,omitempty"`
	Color      string        `json:"color,omitempty"`
	Platforms  []string      `json:"platforms,omitempty"`
}
