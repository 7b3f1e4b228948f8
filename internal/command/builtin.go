package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/catcity/internal/gateway"
)

// StatusProvider provides adapter connection status.
type StatusProvider interface {
	StatusAll() []gateway.AdapterStatus
}

// RegisterBuiltins registers /help and /status.
func RegisterBuiltins(reg *Registry, status StatusProvider) {
	reg.Register(helpCommand(reg))
	reg.Register(statusCommand(status))
}

// ---------------------------------------------------------------------------
// /help
// ---------------------------------------------------------------------------

func helpCommand(reg *Registry) *Command {
	return &Command{
		Name:        "help",
		Description: "List all available commands",
		Usage:       "/help",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			cmds := reg.List()
			var b strings.Builder
			b.WriteString("Available commands:\n")
			for _, c := range cmds {
				fmt.Fprintf(&b, "  /%s: %s\n", c.Name, c.Description)
				if c.Usage != "" {
					fmt.Fprintf(&b, "    Usage: %s\n", c.Usage)
				}
			}
			return &CommandResult{Content: b.String()}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /status
// ---------------------------------------------------------------------------

func statusCommand(provider StatusProvider) *Command {
	return &Command{
		Name:        "status",
		Description: "Show adapter connection status",
		Usage:       "/status",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			if provider == nil {
				return &CommandResult{Content: "No adapters configured."}, nil
			}
			adapters := provider.StatusAll()
			if len(adapters) == 0 {
				return &CommandResult{Content: "No adapters configured."}, nil
			}
			var b strings.Builder
			b.WriteString("Adapter status:\n")
			for _, a := range adapters {
				state := "disconnected"
				if a.Connected {
					state = "connected"
				}
				fmt.Fprintf(&b, "  %s: %s", a.Platform, state)
				if a.Details != "" {
					fmt.Fprintf(&b, " (%s)", a.Details)
				}
				if a.Error != "" {
					fmt.Fprintf(&b, " error: %s", a.Error)
				}
				b.WriteByte('\n')
			}
			return &CommandResult{Content: b.String(), Data: adapters}, nil
		},
	}
}
