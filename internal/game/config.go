package game

import (
	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/config"
	"github.com/nidhogg/catcity/internal/events"
	"github.com/nidhogg/catcity/internal/player"
	"github.com/nidhogg/catcity/internal/presence"
	"github.com/nidhogg/catcity/internal/world"
)

// PlayerConfig maps the file config onto the controller's.
func PlayerConfig(c config.PlayerConfig) player.Config {
	return player.Config{
		WalkSpeed:         c.WalkSpeed,
		RunSpeed:          c.RunSpeed,
		ClimbSpeed:        c.ClimbSpeed,
		JumpForce:         c.JumpForce,
		Gravity:           c.Gravity,
		StepsPerSecond:    c.StepsPerSecond,
		InteractionRadius: c.InteractionRadius,
		ClimbMargin:       c.ClimbMargin,
		RevertDelay:       config.Millis(c.RevertMs),
		CancelReverts:     c.RevertPolicy == config.RevertCancel,
	}
}

func PresenceConfig(c config.PresenceConfig) presence.Config {
	return presence.Config{
		AgentCount:   c.AgentCount,
		Names:        c.Names,
		SpawnOrigin:  world.Vec2{X: c.SpawnX, Y: c.SpawnY},
		SpawnRadius:  c.SpawnRadius,
		Bounds:       world.Bounds{HalfExtent: c.Bound},
		TickInterval: config.Millis(c.TickMs),
		WanderStep:   c.WanderStep,
		RunStep:      c.RunStep,
		MinLevel:     c.MinLevel,
		MaxLevel:     c.MaxLevel,
	}
}

// ChatConfig leaves Phrases unset; New fills it.
func ChatConfig(c config.ChatConfig) chat.Config {
	return chat.Config{
		TickInterval: config.Millis(c.TickMs),
		Debounce:     config.Millis(c.DebounceMs),
		SpeakChance:  c.SpeakChance,
		GreetChance:  c.GreetChance,
		GlobalCap:    c.GlobalCap,
		PrivateCap:   c.PrivateCap,
		ReplyMin:     config.Millis(c.ReplyMinMs),
		ReplyMax:     config.Millis(c.ReplyMaxMs),
	}
}

func EventsConfig(c config.EventsConfig) events.Config {
	return events.Config{
		TickInterval:       config.Millis(c.TickMs),
		HistoryCap:         c.HistoryCap,
		DisplayDuration:    config.Millis(c.DisplayMs),
		Gap:                config.Millis(c.GapMs),
		RejoinDelay:        config.Millis(c.RejoinMs),
		InitialJoins:       c.InitialJoins,
		InitialJoinDelay:   config.Millis(c.InitialJoinDelayMs),
		InitialJoinSpacing: config.Millis(c.InitialJoinSpacingMs),
	}
}
