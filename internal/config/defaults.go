package config

// RevertPolicy values for PlayerConfig.RevertPolicy.
const (
	RevertLegacy = "legacy"
	RevertCancel = "cancel"
)

// DefaultNames are the display names of the simulated residents, in roster order.
var DefaultNames = []string{"Shadow", "Whiskers", "Mittens", "Luna", "Felix"}

// Default returns a configuration with every simulation constant set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 3210, LogLevel: "development"},
		Simulation: SimulationConfig{
			FrameMs: 16,
			Speed:   1.0,
			Player: PlayerConfig{
				WalkSpeed:         5,
				RunSpeed:          10,
				ClimbSpeed:        3,
				JumpForce:         -20,
				Gravity:           1.2,
				StepsPerSecond:    60,
				InteractionRadius: 50,
				ClimbMargin:       20,
				RevertMs:          500,
				RevertPolicy:      RevertLegacy,
			},
			Presence: PresenceConfig{
				AgentCount:  5,
				Names:       append([]string(nil), DefaultNames...),
				SpawnRadius: 150,
				Bound:       300,
				TickMs:      100,
				WanderStep:  3,
				RunStep:     6,
				MinLevel:    1,
				MaxLevel:    10,
			},
			Chat: ChatConfig{
				TickMs:      5000,
				DebounceMs:  10000,
				SpeakChance: 0.5,
				GreetChance: 0.2,
				GlobalCap:   50,
				PrivateCap:  100,
				ReplyMinMs:  1000,
				ReplyMaxMs:  3000,
			},
			Events: EventsConfig{
				TickMs:               8000,
				HistoryCap:           20,
				DisplayMs:            3000,
				GapMs:                500,
				RejoinMs:             15000,
				InitialJoins:         true,
				InitialJoinDelayMs:   2000,
				InitialJoinSpacingMs: 1500,
			},
		},
		Gateway: GatewayConfig{
			WebSocket: WebSocketGatewayConfig{Enabled: true, SnapshotIntervalMs: 100},
		},
		Database: DatabaseConfig{
			Redis: RedisConfig{Stream: "catcity:feed"},
		},
	}
}

// ApplyDefaults replaces zero values that would stall or break the simulation.
func (c *Config) ApplyDefaults() {
	d := Default()

	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = d.Server.LogLevel
	}

	s, ds := &c.Simulation, d.Simulation
	if s.FrameMs <= 0 {
		s.FrameMs = ds.FrameMs
	}
	if s.Speed <= 0 {
		s.Speed = ds.Speed
	}
	if s.Player.StepsPerSecond <= 0 {
		s.Player.StepsPerSecond = ds.Player.StepsPerSecond
	}
	if s.Player.Gravity <= 0 {
		s.Player.Gravity = ds.Player.Gravity
	}
	if s.Player.InteractionRadius <= 0 {
		s.Player.InteractionRadius = ds.Player.InteractionRadius
	}
	if s.Player.RevertPolicy == "" {
		s.Player.RevertPolicy = ds.Player.RevertPolicy
	}
	if s.Presence.AgentCount <= 0 {
		s.Presence.AgentCount = ds.Presence.AgentCount
	}
	if len(s.Presence.Names) == 0 {
		s.Presence.Names = ds.Presence.Names
	}
	if s.Presence.Bound <= 0 {
		s.Presence.Bound = ds.Presence.Bound
	}
	if s.Presence.TickMs <= 0 {
		s.Presence.TickMs = ds.Presence.TickMs
	}
	if s.Presence.MaxLevel < s.Presence.MinLevel || s.Presence.MinLevel <= 0 {
		s.Presence.MinLevel, s.Presence.MaxLevel = ds.Presence.MinLevel, ds.Presence.MaxLevel
	}
	if s.Chat.TickMs <= 0 {
		s.Chat.TickMs = ds.Chat.TickMs
	}
	if s.Chat.GlobalCap <= 0 {
		s.Chat.GlobalCap = ds.Chat.GlobalCap
	}
	if s.Chat.PrivateCap <= 0 {
		s.Chat.PrivateCap = ds.Chat.PrivateCap
	}
	if s.Chat.ReplyMaxMs < s.Chat.ReplyMinMs {
		s.Chat.ReplyMinMs, s.Chat.ReplyMaxMs = ds.Chat.ReplyMinMs, ds.Chat.ReplyMaxMs
	}
	if s.Events.TickMs <= 0 {
		s.Events.TickMs = ds.Events.TickMs
	}
	if s.Events.HistoryCap <= 0 {
		s.Events.HistoryCap = ds.Events.HistoryCap
	}
	if s.Events.DisplayMs <= 0 {
		s.Events.DisplayMs = ds.Events.DisplayMs
	}
	if c.Gateway.WebSocket.SnapshotIntervalMs <= 0 {
		c.Gateway.WebSocket.SnapshotIntervalMs = d.Gateway.WebSocket.SnapshotIntervalMs
	}
	if c.Database.Redis.Stream == "" {
		c.Database.Redis.Stream = d.Database.Redis.Stream
	}
}
