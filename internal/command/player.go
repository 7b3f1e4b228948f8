package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nidhogg/catcity/internal/player"
	"github.com/nidhogg/catcity/internal/world"
)

// ErrUnknownAction is returned for a player action name that does not exist.
var ErrUnknownAction = errors.New("unknown player action")

// PlayerActions lists every action accepted by ApplyPlayerAction.
var PlayerActions = []string{
	"left", "right", "up", "down", "jump", "crawl", "climb", "unclimb",
	"knock", "steal", "hide", "unhide", "stop", "teleport",
}

// ApplyPlayerAction runs one named action on the controller. Modifiers:
// "run" for left/right, "climb" for up/down, "x y" for teleport.
func ApplyPlayerAction(c *player.Controller, action string, args []string) error {
	has := func(flag string) bool {
		for _, a := range args {
			if strings.EqualFold(a, flag) {
				return true
			}
		}
		return false
	}

	switch strings.ToLower(action) {
	case "left":
		c.MoveLeft(has("run"))
	case "right":
		c.MoveRight(has("run"))
	case "up":
		c.MoveUp(has("climb"))
	case "down":
		c.MoveDown(has("climb"))
	case "jump":
		c.Jump()
	case "crawl":
		c.ToggleCrawl()
	case "climb":
		c.StartClimbing()
	case "unclimb":
		c.StopClimbing()
	case "knock":
		c.KnockOver()
	case "steal":
		c.Steal()
	case "hide":
		c.HideInBox()
	case "unhide":
		c.ExitBox()
	case "stop":
		c.Stop()
	case "teleport":
		if len(args) != 2 {
			return fmt.Errorf("teleport needs x and y")
		}
		x, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("teleport x: %w", err)
		}
		y, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("teleport y: %w", err)
		}
		if !finite(x) || !finite(y) {
			return fmt.Errorf("teleport: coordinates must be finite")
		}
		c.Teleport(world.Vec2{X: x, Y: y})
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	return nil
}

// RegisterPlayer registers /do and /me.
func RegisterPlayer(reg *Registry, c *player.Controller) {
	reg.Register(&Command{
		Name:        "do",
		Description: "Perform a player action",
		Usage:       "/do <" + strings.Join(PlayerActions, "|") + "> [run|climb|x y]",
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			fields := strings.Fields(args)
			if len(fields) == 0 {
				return &CommandResult{Content: "Usage: /do <action>"}, nil
			}
			if err := ApplyPlayerAction(c, fields[0], fields[1:]); err != nil {
				return &CommandResult{Content: err.Error()}, nil
			}
			s := c.State()
			return &CommandResult{Content: describePlayer(s), Data: s}, nil
		},
	})
	reg.Register(&Command{
		Name:        "me",
		Description: "Show the player state",
		Usage:       "/me",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			s := c.State()
			return &CommandResult{Content: describePlayer(s), Data: s}, nil
		},
	})
}

func describePlayer(s player.Snapshot) string {
	var flags []string
	if s.Jumping {
		flags = append(flags, "jumping")
	}
	if s.Crawling {
		flags = append(flags, "crawling")
	}
	if s.Climbing {
		flags = append(flags, "climbing")
	}
	out := fmt.Sprintf("%s at (%.1f, %.1f) facing %s", s.Action, s.Position.X, s.Position.Y, s.Facing)
	if len(flags) > 0 {
		out += " [" + strings.Join(flags, ", ") + "]"
	}
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
