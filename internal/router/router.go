// Package router turns gateway input into simulation commands.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/command"
	"github.com/nidhogg/catcity/internal/gateway"
	"go.uber.org/zap"
)

// Sender delivers a reply to the originating platform.
type Sender interface {
	Send(ctx context.Context, msg *gateway.OutboundMessage) error
}

// MessageRouter handles every inbound line: slash commands go to the
// registry, anything else is posted to the global chat as a human message.
type MessageRouter struct {
	gw       Sender
	chat     *chat.Simulator
	commands *command.Registry
	logger   *zap.Logger
}

// New creates a new MessageRouter.
func New(gw Sender, sim *chat.Simulator, commands *command.Registry, logger *zap.Logger) *MessageRouter {
	return &MessageRouter{
		gw:       gw,
		chat:     sim,
		commands: commands,
		logger:   logger,
	}
}

// Handle routes an inbound message. Signature matches gateway.MessageHandler.
func (mr *MessageRouter) Handle(msg *gateway.InboundMessage) {
	ctx := context.Background()
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return
	}
	mr.logger.Debug("routing message",
		zap.String("platform", msg.Platform),
		zap.String("channel", msg.ChannelID),
		zap.String("user", msg.UserName),
	)

	cc := &command.CommandContext{
		Platform:  msg.Platform,
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		UserName:  msg.UserName,
	}

	if strings.HasPrefix(content, "/") {
		result, err := mr.commands.Dispatch(ctx, content, cc)
		if err != nil {
			mr.logger.Error("command dispatch error", zap.Error(err))
			mr.sendReply(ctx, msg, "Command error: "+err.Error())
			return
		}
		mr.sendReply(ctx, msg, result.Content)
		return
	}

	id, name := cc.Sender()
	posted := mr.chat.SendMessage(id, name, content, true, "")
	mr.sendReply(ctx, msg, fmt.Sprintf("%s: %s", posted.SenderName, posted.Body))
}

// sendReply sends a text reply back to the originating platform/channel.
func (mr *MessageRouter) sendReply(ctx context.Context, orig *gateway.InboundMessage, text string) {
	err := mr.gw.Send(ctx, &gateway.OutboundMessage{
		Platform:  orig.Platform,
		ChannelID: orig.ChannelID,
		Content:   text,
		ReplyTo:   orig.ReplyTo,
	})
	if err != nil {
		mr.logger.Warn("send reply failed",
			zap.String("platform", orig.Platform), zap.Error(err))
	}
}
