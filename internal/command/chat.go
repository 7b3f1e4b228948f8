package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/presence"
)

// RegisterChat registers /say, /whisper, /inbox, /read and /clear.
func RegisterChat(reg *Registry, sim *chat.Simulator, roster *presence.Simulator) {
	reg.Register(&Command{
		Name:        "say",
		Description: "Post to the global chat",
		Usage:       "/say <text>",
		Handler: func(_ context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			if args == "" {
				return &CommandResult{Content: "Usage: /say <text>"}, nil
			}
			id, name := cc.Sender()
			msg := sim.SendMessage(id, name, args, true, "")
			return &CommandResult{Content: "sent", Data: msg}, nil
		},
	})

	reg.Register(&Command{
		Name:        "whisper",
		Description: "Send a private message to a resident",
		Usage:       "/whisper <name|id> <text>",
		Handler: func(_ context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			parts := strings.SplitN(args, " ", 2)
			if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
				return &CommandResult{Content: "Usage: /whisper <name|id> <text>"}, nil
			}
			target, ok := ResolveResident(roster, parts[0])
			if !ok {
				return &CommandResult{Content: fmt.Sprintf("No resident named %q.", parts[0])}, nil
			}
			id, name := cc.Sender()
			msg := sim.SendMessage(id, name, strings.TrimSpace(parts[1]), true, target.ID)
			return &CommandResult{Content: fmt.Sprintf("whispered to %s", target.Name), Data: msg}, nil
		},
	})

	reg.Register(&Command{
		Name:        "inbox",
		Description: "Show unread counts",
		Usage:       "/inbox",
		Handler: func(_ context.Context, _ string, cc *CommandContext) (*CommandResult, error) {
			id, _ := cc.Sender()
			var b strings.Builder
			fmt.Fprintf(&b, "global: %d unread\n", sim.UnreadGlobal())
			for _, a := range roster.Roster() {
				if n := sim.UnreadConversation(id, a.ID); n > 0 {
					fmt.Fprintf(&b, "%s: %d unread\n", a.Name, n)
				}
			}
			fmt.Fprintf(&b, "private total: %d", sim.TotalUnreadPrivate())
			return &CommandResult{Content: b.String()}, nil
		},
	})

	reg.Register(&Command{
		Name:        "read",
		Description: "Show a channel and mark it read",
		Usage:       "/read [name|id]",
		Handler: func(_ context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			if args == "" {
				msgs := sim.Global()
				sim.MarkGlobalRead()
				return &CommandResult{Content: formatMessages(msgs), Data: msgs}, nil
			}
			target, ok := ResolveResident(roster, args)
			if !ok {
				return &CommandResult{Content: fmt.Sprintf("No resident named %q.", args)}, nil
			}
			id, _ := cc.Sender()
			msgs := sim.Conversation(id, target.ID)
			sim.MarkConversationRead(id, target.ID)
			return &CommandResult{Content: formatMessages(msgs), Data: msgs}, nil
		},
	})

	reg.Register(&Command{
		Name:        "clear",
		Description: "Clear a conversation, or all chat with 'all'",
		Usage:       "/clear <name|id|all>",
		Handler: func(_ context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			if strings.EqualFold(args, "all") {
				sim.ClearAll()
				return &CommandResult{Content: "all chat cleared"}, nil
			}
			target, ok := ResolveResident(roster, args)
			if !ok {
				return &CommandResult{Content: "Usage: /clear <name|id|all>"}, nil
			}
			id, _ := cc.Sender()
			sim.ClearConversation(id, target.ID)
			return &CommandResult{Content: fmt.Sprintf("conversation with %s cleared", target.Name)}, nil
		},
	})
}

// ResolveResident finds a roster entry by id or case-insensitive name.
func ResolveResident(roster *presence.Simulator, key string) (presence.Agent, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return presence.Agent{}, false
	}
	if a, ok := roster.Agent(key); ok {
		return a, true
	}
	for _, a := range roster.Roster() {
		if strings.EqualFold(a.Name, key) {
			return a, true
		}
	}
	return presence.Agent{}, false
}

func formatMessages(msgs []chat.Message) string {
	if len(msgs) == 0 {
		return "(no messages)"
	}
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s] %s: %s", m.Timestamp.Format("15:04:05"), m.SenderName, m.Body)
	}
	return b.String()
}
