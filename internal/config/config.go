package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Simulation SimulationConfig `json:"simulation"`
	Gateway    GatewayConfig    `json:"gateway"`
	Database   DatabaseConfig   `json:"database"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

// SimulationConfig holds every tunable of the four simulated components.
type SimulationConfig struct {
	Seed     int64          `json:"seed"` // 0 picks a random seed
	FrameMs  int            `json:"frame_ms"`
	Speed    float64        `json:"speed"`
	Player   PlayerConfig   `json:"player"`
	Presence PresenceConfig `json:"presence"`
	Chat     ChatConfig     `json:"chat"`
	Events   EventsConfig   `json:"events"`
}

type PlayerConfig struct {
	WalkSpeed         float64 `json:"walk_speed"`
	RunSpeed          float64 `json:"run_speed"`
	ClimbSpeed        float64 `json:"climb_speed"`
	JumpForce         float64 `json:"jump_force"`
	Gravity           float64 `json:"gravity"`
	StepsPerSecond    int     `json:"steps_per_second"`
	InteractionRadius float64 `json:"interaction_radius"`
	ClimbMargin       float64 `json:"climb_margin"`
	RevertMs          int     `json:"revert_ms"`
	RevertPolicy      string  `json:"revert_policy"` // legacy | cancel
}

type PresenceConfig struct {
	AgentCount  int      `json:"agent_count"`
	Names       []string `json:"names"`
	SpawnX      float64  `json:"spawn_x"`
	SpawnY      float64  `json:"spawn_y"`
	SpawnRadius float64  `json:"spawn_radius"`
	Bound       float64  `json:"bound"`
	TickMs      int      `json:"tick_ms"`
	WanderStep  float64  `json:"wander_step"`
	RunStep     float64  `json:"run_step"`
	MinLevel    int      `json:"min_level"`
	MaxLevel    int      `json:"max_level"`
}

type ChatConfig struct {
	TickMs      int     `json:"tick_ms"`
	DebounceMs  int     `json:"debounce_ms"`
	SpeakChance float64 `json:"speak_chance"`
	GreetChance float64 `json:"greet_chance"`
	GlobalCap   int     `json:"global_cap"`
	PrivateCap  int     `json:"private_cap"`
	ReplyMinMs  int     `json:"reply_min_ms"`
	ReplyMaxMs  int     `json:"reply_max_ms"`
	PhrasesPath string  `json:"phrases_path,omitempty"`
}

type EventsConfig struct {
	TickMs               int  `json:"tick_ms"`
	HistoryCap           int  `json:"history_cap"`
	DisplayMs            int  `json:"display_ms"`
	GapMs                int  `json:"gap_ms"`
	RejoinMs             int  `json:"rejoin_ms"`
	InitialJoins         bool `json:"initial_joins"`
	InitialJoinDelayMs   int  `json:"initial_join_delay_ms"`
	InitialJoinSpacingMs int  `json:"initial_join_spacing_ms"`
}

type GatewayConfig struct {
	Slack     SlackGatewayConfig     `json:"slack"`
	Discord   DiscordGatewayConfig   `json:"discord"`
	WebSocket WebSocketGatewayConfig `json:"websocket"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	AppToken string `json:"app_token"`
}

type DiscordGatewayConfig struct {
	Enabled   bool   `json:"enabled"`
	BotToken  string `json:"bot_token"`
	ChannelID string `json:"channel_id"`
}

type WebSocketGatewayConfig struct {
	Enabled            bool `json:"enabled"`
	SnapshotIntervalMs int  `json:"snapshot_interval_ms"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	SQLite   SQLiteConfig   `json:"sqlite"`
	Journal  JournalConfig  `json:"journal"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type SQLiteConfig struct {
	Path string `json:"path"`
}

// JournalConfig names the directory of the compressed feed archive.
type JournalConfig struct {
	Dir string `json:"dir"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisConfig struct {
	URL    string `json:"url"`
	Stream string `json:"stream"`
}

// Millis converts a millisecond count from the config into a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file, substitutes environment variable references,
// validates the result against the embedded schema and fills unset fields
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	if err := Validate([]byte(resolved)); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal([]byte(resolved), cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}
