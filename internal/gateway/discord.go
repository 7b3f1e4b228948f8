package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// eventEmoji maps notification icons to a leading emoji for chat platforms.
var eventEmoji = map[string]string{
	"person.crop.circle.badge.plus":  "👋",
	"person.crop.circle.badge.minus": "🚪",
	"sparkles":                       "✨",
	"star.fill":                      "⭐",
	"checkmark.circle.fill":          "✅",
	"crown.fill":                     "🎩",
	"trophy.fill":                    "🏆",
}

// DiscordAdapter mirrors the feed into one Discord channel and turns
// messages posted there into player input.
type DiscordAdapter struct {
	token     string
	channelID string // mirror target; empty falls back to the first text channel per guild
	session   *discordgo.Session
	handler   MessageHandler

	connected   bool
	connectedAt time.Time
	lastError   string
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewDiscordAdapter creates a Discord gateway adapter.
func NewDiscordAdapter(token, channelID string, logger *zap.Logger) *DiscordAdapter {
	return &DiscordAdapter{
		token:     token,
		channelID: channelID,
		logger:    logger,
	}
}

func (a *DiscordAdapter) Platform() string { return "discord" }

func (a *DiscordAdapter) OnMessage(h MessageHandler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

// Connect opens the Discord gateway websocket.
func (a *DiscordAdapter) Connect(_ context.Context) error {
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		a.setError(fmt.Sprintf("session create: %v", err))
		return fmt.Errorf("discord session: %w", err)
	}
	a.session = session

	a.session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	a.session.AddHandler(a.onMessageCreate)

	if err := a.session.Open(); err != nil {
		a.setError(fmt.Sprintf("open failed: %v", err))
		return fmt.Errorf("discord open: %w", err)
	}

	a.mu.Lock()
	a.connected = true
	a.connectedAt = time.Now()
	a.lastError = ""
	a.mu.Unlock()

	guildCount := len(a.session.State.Guilds)
	if guildCount == 0 {
		a.logger.Warn("discord bot not added to any server")
	}
	a.logger.Info("discord adapter connected",
		zap.String("user", a.session.State.User.Username),
		zap.Int("guilds", guildCount))
	return nil
}

func (a *DiscordAdapter) setError(msg string) {
	a.mu.Lock()
	a.lastError = msg
	a.connected = false
	a.mu.Unlock()
}

func (a *DiscordAdapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	if a.channelID != "" && m.ChannelID != a.channelID {
		return
	}
	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	if handler == nil {
		return
	}

	handler(&InboundMessage{
		Platform:  "discord",
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  m.Author.Username,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		ReplyTo:   m.ID,
	})
}

// Send posts a reply to a Discord channel.
func (a *DiscordAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	if a.session == nil {
		return fmt.Errorf("discord not connected")
	}
	content := msg.Content
	if msg.SenderName != "" {
		content = fmt.Sprintf("**[%s]** %s", msg.SenderName, msg.Content)
	}
	if msg.ReplyTo != "" {
		_, err := a.session.ChannelMessageSendReply(msg.ChannelID, content, &discordgo.MessageReference{
			MessageID: msg.ReplyTo,
			ChannelID: msg.ChannelID,
		})
		if err != nil {
			return fmt.Errorf("discord reply: %w", err)
		}
		return nil
	}
	if _, err := a.session.ChannelMessageSend(msg.ChannelID, content); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

// Broadcast posts to the configured channel, or to the first writable text
// channel of every guild when none is configured.
func (a *DiscordAdapter) Broadcast(_ context.Context, msg *BroadcastMessage) error {
	if a.session == nil {
		return fmt.Errorf("discord not connected")
	}
	content := formatDiscord(msg)

	if a.channelID != "" {
		if _, err := a.session.ChannelMessageSend(a.channelID, content); err != nil {
			return fmt.Errorf("discord broadcast: %w", err)
		}
		return nil
	}

	for _, guild := range a.session.State.Guilds {
		channels, err := a.session.GuildChannels(guild.ID)
		if err != nil {
			a.logger.Warn("discord list channels failed",
				zap.String("guild", guild.ID), zap.Error(err))
			continue
		}
		for _, ch := range channels {
			if ch.Type == discordgo.ChannelTypeGuildText {
				if _, err := a.session.ChannelMessageSend(ch.ID, content); err == nil {
					break
				}
			}
		}
	}
	return nil
}

func formatDiscord(msg *BroadcastMessage) string {
	switch msg.Type {
	case BroadcastEvent:
		if e, ok := eventEmoji[msg.Icon]; ok {
			return e + " " + msg.Content
		}
		return msg.Content
	case BroadcastChat:
		return fmt.Sprintf("**%s:** %s", msg.SenderName, msg.Content)
	default:
		return fmt.Sprintf("**[%s] %s**\n%s", msg.Type, msg.Title, msg.Content)
	}
}

// Close shuts down the Discord session.
func (a *DiscordAdapter) Close() error {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}

func (a *DiscordAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  "discord",
		Connected: a.connected,
		Error:     a.lastError,
	}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
		guildCount := 0
		if a.session != nil && a.session.State != nil {
			guildCount = len(a.session.State.Guilds)
		}
		s.Details = fmt.Sprintf("bot=%s, guilds=%d",
			a.session.State.User.Username, guildCount)
	}
	return s
}
