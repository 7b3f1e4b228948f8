package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nidhogg/catcity/internal/events"
	"github.com/nidhogg/catcity/internal/presence"
)

// RegisterWorld registers /who, /presence, /event, /found, /levelup and /feed.
func RegisterWorld(reg *Registry, roster *presence.Simulator, notifier *events.Notifier) {
	reg.Register(&Command{
		Name:        "who",
		Description: "List residents in the city",
		Usage:       "/who",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			agents := roster.Roster()
			if len(agents) == 0 {
				return &CommandResult{Content: "Nobody is around."}, nil
			}
			var b strings.Builder
			for _, a := range agents {
				fmt.Fprintf(&b, "  [%s] %s lvl %d, %s at (%.0f, %.0f)\n",
					a.ID, a.Name, a.Level, a.Action, a.Position.X, a.Position.Y)
			}
			return &CommandResult{Content: b.String(), Data: agents}, nil
		},
	})

	reg.Register(&Command{
		Name:        "presence",
		Description: "Start or stop the simulated residents",
		Usage:       "/presence <start|stop>",
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			switch strings.ToLower(args) {
			case "start":
				roster.Start()
				return &CommandResult{Content: fmt.Sprintf("%d residents spawned", len(roster.Roster()))}, nil
			case "stop":
				roster.Stop()
				return &CommandResult{Content: "residents stopped"}, nil
			default:
				return &CommandResult{Content: "Usage: /presence <start|stop>"}, nil
			}
		},
	})

	reg.Register(&Command{
		Name:        "event",
		Description: "Post an activity event",
		Usage:       "/event <category> <subject> [message]",
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			parts := strings.SplitN(args, " ", 3)
			if len(parts) < 2 {
				return &CommandResult{Content: "Usage: /event <category> <subject> [message]"}, nil
			}
			cat := events.Category(strings.ToLower(parts[0]))
			if !cat.Valid() {
				return &CommandResult{Content: fmt.Sprintf("Unknown category %q.", parts[0])}, nil
			}
			message := ""
			if len(parts) == 3 {
				message = parts[2]
			}
			ev := PostEvent(notifier, cat, parts[1], message)
			return &CommandResult{Content: ev.Message, Data: ev}, nil
		},
	})

	reg.Register(&Command{
		Name:        "found",
		Description: "Announce that you found items",
		Usage:       "/found <item> [count]",
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			fields := strings.Fields(args)
			if len(fields) == 0 {
				return &CommandResult{Content: "Usage: /found <item> [count]"}, nil
			}
			count := 1
			if len(fields) > 1 {
				n, err := strconv.Atoi(fields[1])
				if err != nil || n < 1 {
					return &CommandResult{Content: "count must be a positive number"}, nil
				}
				count = n
			}
			ev := notifier.PlayerFoundItem(fields[0], count)
			return &CommandResult{Content: ev.Message, Data: ev}, nil
		},
	})

	reg.Register(&Command{
		Name:        "levelup",
		Description: "Announce that you reached a level",
		Usage:       "/levelup <level>",
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			level, err := strconv.Atoi(strings.TrimSpace(args))
			if err != nil || level < 1 {
				return &CommandResult{Content: "Usage: /levelup <level>"}, nil
			}
			ev := notifier.PlayerLeveledUp(level)
			return &CommandResult{Content: ev.Message, Data: ev}, nil
		},
	})

	reg.Register(&Command{
		Name:        "feed",
		Description: "Show recent activity",
		Usage:       "/feed [n]",
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			hist := notifier.History()
			n := 10
			if v, err := strconv.Atoi(strings.TrimSpace(args)); err == nil && v > 0 {
				n = v
			}
			if len(hist) > n {
				hist = hist[len(hist)-n:]
			}
			if len(hist) == 0 {
				return &CommandResult{Content: "(no activity)"}, nil
			}
			var b strings.Builder
			for _, e := range hist {
				fmt.Fprintf(&b, "  [%s] %s\n", e.Timestamp.Format("15:04:05"), e.Message)
			}
			if cur, ok := notifier.Current(); ok {
				fmt.Fprintf(&b, "showing: %s", cur.Message)
			}
			return &CommandResult{Content: b.String(), Data: hist}, nil
		},
	})
}

// PostEvent adds an event with the stock icon and color of its category.
// An empty message uses the stock wording.
func PostEvent(n *events.Notifier, cat events.Category, subject, message string) events.Event {
	text, icon, color := events.Stock(cat, subject)
	if message == "" {
		message = text
	}
	return n.AddEvent(cat, subject, message, icon, color)
}
