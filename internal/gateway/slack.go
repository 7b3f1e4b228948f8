package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"
)

// SlackAdapter implements GatewayAdapter for Slack using Socket Mode.
type SlackAdapter struct {
	client  *slack.Client
	socket  *socketmode.Client
	handler MessageHandler
	threads map[string]string // channelID:userID -> thread_ts for conversation continuity

	connected   bool
	connectedAt time.Time
	lastError   string
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewSlackAdapter creates a Slack gateway adapter.
// botToken is the Bot User OAuth Token (xoxb-...).
// appToken is the App-Level Token (xapp-...) for Socket Mode.
func NewSlackAdapter(botToken, appToken string, logger *zap.Logger) *SlackAdapter {
	client := slack.New(botToken,
		slack.OptionAppLevelToken(appToken),
	)

	socket := socketmode.New(client,
		socketmode.OptionLog(zap.NewStdLog(logger)),
	)

	return &SlackAdapter{
		client:  client,
		socket:  socket,
		threads: make(map[string]string),
		logger:  logger,
	}
}

func (a *SlackAdapter) Platform() string { return "slack" }

func (a *SlackAdapter) OnMessage(h MessageHandler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

// Connect starts the Socket Mode event loop in a background goroutine.
func (a *SlackAdapter) Connect(ctx context.Context) error {
	go a.handleEvents(ctx)
	go func() {
		if err := a.socket.RunContext(ctx); err != nil {
			a.mu.Lock()
			a.connected = false
			a.lastError = err.Error()
			a.mu.Unlock()
			a.logger.Error("slack socket mode error", zap.Error(err))
		}
	}()
	a.logger.Info("slack adapter starting socket mode")
	return nil
}

func (a *SlackAdapter) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.socket.Events:
			if !ok {
				return
			}
			a.processEvent(evt)
		}
	}
}

func (a *SlackAdapter) processEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		a.mu.Lock()
		a.connected = true
		a.connectedAt = time.Now()
		a.lastError = ""
		a.mu.Unlock()
	case socketmode.EventTypeConnectionError:
		a.mu.Lock()
		a.connected = false
		a.lastError = "connection error"
		a.mu.Unlock()
	case socketmode.EventTypeEventsAPI:
		eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		a.socket.Ack(*evt.Request)

		if eventsAPI.Type == slackevents.CallbackEvent {
			switch inner := eventsAPI.InnerEvent.Data.(type) {
			case *slackevents.MessageEvent:
				// Bot messages include our own mirror posts.
				if inner.BotID != "" {
					return
				}
				a.handleSlackMessage(inner)
			}
		}
	}
}

func (a *SlackAdapter) handleSlackMessage(ev *slackevents.MessageEvent) {
	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	if handler == nil {
		return
	}

	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}
	key := fmt.Sprintf("%s:%s", ev.Channel, ev.User)
	a.mu.Lock()
	a.threads[key] = threadTS
	a.mu.Unlock()

	handler(&InboundMessage{
		Platform:  "slack",
		ChannelID: ev.Channel,
		UserID:    ev.User,
		UserName:  ev.User,
		Content:   ev.Text,
		Timestamp: time.Now(),
		ReplyTo:   threadTS,
	})
}

// Send posts a reply to a Slack channel, threaded when ReplyTo is set.
func (a *SlackAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	opts := []slack.MsgOption{
		slack.MsgOptionText(msg.Content, false),
	}
	if msg.ReplyTo != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ReplyTo))
	}
	if msg.SenderName != "" {
		opts = append(opts, slack.MsgOptionUsername(msg.SenderName))
	}

	_, _, err := a.client.PostMessage(msg.ChannelID, opts...)
	if err != nil {
		a.logger.Error("slack send failed",
			zap.String("channel", msg.ChannelID), zap.Error(err))
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}

// Broadcast sends a broadcast message to all channels the bot is in.
func (a *SlackAdapter) Broadcast(_ context.Context, msg *BroadcastMessage) error {
	opts := []slack.MsgOption{
		slack.MsgOptionText(formatSlack(msg), false),
	}
	if msg.SenderName != "" {
		opts = append(opts, slack.MsgOptionUsername(msg.SenderName))
	}

	params := &slack.GetConversationsForUserParameters{
		Types: []string{"public_channel", "private_channel"},
		Limit: 200,
	}
	channels, _, err := a.client.GetConversationsForUser(params)
	if err != nil {
		return fmt.Errorf("slack list channels: %w", err)
	}

	for _, ch := range channels {
		if _, _, err := a.client.PostMessage(ch.ID, opts...); err != nil {
			a.logger.Warn("slack broadcast to channel failed",
				zap.String("channel", ch.ID), zap.Error(err))
		}
	}
	return nil
}

func formatSlack(msg *BroadcastMessage) string {
	switch msg.Type {
	case BroadcastEvent:
		if e, ok := eventEmoji[msg.Icon]; ok {
			return e + " " + msg.Content
		}
		return msg.Content
	case BroadcastChat:
		return msg.Content
	default:
		return fmt.Sprintf("*[%s] %s*\n%s", msg.Type, msg.Title, msg.Content)
	}
}

// Close is a no-op; the socket context cancellation handles shutdown.
func (a *SlackAdapter) Close() error {
	return nil
}

func (a *SlackAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  "slack",
		Connected: a.connected,
		Error:     a.lastError,
	}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
		s.Details = fmt.Sprintf("threads=%d", len(a.threads))
	}
	return s
}
