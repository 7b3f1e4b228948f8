package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Command represents a slash command.
type Command struct {
	Name        string
	Description string
	Usage       string
	Handler     CommandHandler
}

// CommandHandler is the function signature for command execution.
type CommandHandler func(ctx context.Context, args string, cc *CommandContext) (*CommandResult, error)

// CommandContext identifies who issued a command and where from.
type CommandContext struct {
	Platform  string
	ChannelID string
	UserID    string
	UserName  string
}

// Sender returns the chat identity of the issuer. Anonymous callers speak as
// the local player.
func (cc *CommandContext) Sender() (id, name string) {
	id, name = DefaultUserID, DefaultUserName
	if cc == nil {
		return id, name
	}
	if cc.UserID != "" {
		id = cc.UserID
	}
	if cc.UserName != "" {
		name = cc.UserName
	}
	return id, name
}

// Identity of the local player when an adapter supplies none.
const (
	DefaultUserID   = "player"
	DefaultUserName = "You"
)

// CommandResult holds the output of a command.
type CommandResult struct {
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	mu       sync.RWMutex
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd.Name] = cmd
}

// Dispatch parses a slash command string and executes the matching handler.
func (r *Registry) Dispatch(ctx context.Context, input string, cc *CommandContext) (*CommandResult, error) {
	name, args := parse(input)

	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()
	if !ok {
		return &CommandResult{
			Content: fmt.Sprintf("Unknown command: /%s. Type /help for available commands.", name),
		}, nil
	}

	return cmd.Handler(ctx, args, cc)
}

// parse splits "/name args..." into name and trimmed args.
func parse(input string) (name, args string) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "/")
	parts := strings.SplitN(input, " ", 2)
	name = strings.ToLower(parts[0])
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}
	return name, args
}

// List returns all registered commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
