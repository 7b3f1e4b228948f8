// Package presence fabricates the other residents of the city: a fixed
// roster of simulated cats that wander, run and idle on a periodic tick.
package presence

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nidhogg/catcity/internal/world"
	"go.uber.org/zap"
)

// Agent is a simulated resident. Only the Simulator mutates agents; everyone
// else receives copies.
type Agent struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Position   world.Vec2        `json:"position"`
	Facing     world.Direction   `json:"facing"`
	Action     world.ActionState `json:"action"`
	Level      int               `json:"level"`
	IsAI       bool              `json:"is_ai"`
	LastUpdate time.Time         `json:"last_update"`
}

// Config controls roster size, spawn layout and movement.
type Config struct {
	AgentCount   int
	Names        []string
	SpawnOrigin  world.Vec2
	SpawnRadius  float64
	Bounds       world.Bounds
	TickInterval time.Duration
	WanderStep   float64
	RunStep      float64
	MinLevel     int
	MaxLevel     int
}

// DefaultConfig returns five residents on a 150-unit circle in a ±300 square.
func DefaultConfig() Config {
	return Config{
		AgentCount:   5,
		Names:        []string{"Shadow", "Whiskers", "Mittens", "Luna", "Felix"},
		SpawnRadius:  150,
		Bounds:       world.Bounds{HalfExtent: 300},
		TickInterval: 100 * time.Millisecond,
		WanderStep:   3,
		RunStep:      6,
		MinLevel:     1,
		MaxLevel:     10,
	}
}

// Behavior is one outcome of the per-agent tick draw.
type Behavior string

const (
	BehaviorWander Behavior = "wander"
	BehaviorJump   Behavior = "jump"
	BehaviorIdle   Behavior = "idle"
	BehaviorRun    Behavior = "run"
	BehaviorCrawl  Behavior = "crawl"
	BehaviorStay   Behavior = "stay"
)

// behaviorFor maps a draw in [0,100] onto the cumulative behavior buckets.
func behaviorFor(draw int) Behavior {
	switch {
	case draw <= 60:
		return BehaviorWander
	case draw <= 70:
		return BehaviorJump
	case draw <= 80:
		return BehaviorIdle
	case draw <= 85:
		return BehaviorRun
	case draw <= 90:
		return BehaviorCrawl
	default:
		return BehaviorStay
	}
}

// Simulator owns the roster and its movement tick.
type Simulator struct {
	cfg     Config
	clock   *world.WorldClock
	rng     *rand.Rand
	agents  []Agent
	tick    *world.Token
	running bool
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewSimulator creates a stopped simulator with an empty roster.
func NewSimulator(clock *world.WorldClock, cfg Config, rng *rand.Rand, logger *zap.Logger) *Simulator {
	return &Simulator{
		cfg:    cfg,
		clock:  clock,
		rng:    rng,
		logger: logger,
	}
}

// Start spawns the roster on a circle around the spawn origin and begins
// ticking. Calling Start on a running simulator does nothing.
func (s *Simulator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	now := s.clock.WorldTime()
	n := s.cfg.AgentCount
	s.agents = make([]Agent, n)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		pos := world.Vec2{
			X: s.cfg.SpawnOrigin.X + s.cfg.SpawnRadius*math.Cos(angle),
			Y: s.cfg.SpawnOrigin.Y + s.cfg.SpawnRadius*math.Sin(angle),
		}
		s.agents[i] = Agent{
			ID:         fmt.Sprintf("AI_%d", i),
			Name:       s.nameFor(i),
			Position:   s.cfg.Bounds.Clamp(pos),
			Facing:     world.FacingRight,
			Action:     world.StateIdle,
			Level:      s.cfg.MinLevel + s.rng.IntN(s.cfg.MaxLevel-s.cfg.MinLevel+1),
			IsAI:       true,
			LastUpdate: now,
		}
	}

	s.tick = s.clock.Every("presence.tick", s.cfg.TickInterval, s.onTick)
	s.running = true
	s.logger.Info("presence simulation started",
		zap.Int("agents", n),
		zap.Float64("spawn_radius", s.cfg.SpawnRadius),
		zap.Duration("tick", s.cfg.TickInterval))
}

// Stop halts the tick and clears the roster.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick.Cancel()
	s.tick = nil
	s.agents = nil
	if s.running {
		s.logger.Info("presence simulation stopped")
	}
	s.running = false
}

// Running reports whether the roster is live.
func (s *Simulator) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Roster returns a copy of every agent in roster order.
func (s *Simulator) Roster() []Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Agent, len(s.agents))
	copy(out, s.agents)
	return out
}

// Agent returns a copy of one agent.
func (s *Simulator) Agent(id string) (Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.agents {
		if a.ID == id {
			return a, true
		}
	}
	return Agent{}, false
}

// Names returns the display names in roster order.
func (s *Simulator) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.agents))
	for i, a := range s.agents {
		names[i] = a.Name
	}
	return names
}

func (s *Simulator) onTick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tick.Active() {
		return
	}
	for i := range s.agents {
		s.step(&s.agents[i], now)
	}
}

// step applies one behavior draw to a. Caller holds mu.
func (s *Simulator) step(a *Agent, now time.Time) {
	a.LastUpdate = now

	switch behaviorFor(s.rng.IntN(101)) {
	case BehaviorWander:
		dx := s.uniform(s.cfg.WanderStep)
		dy := s.uniform(s.cfg.WanderStep)
		a.Position.X += dx
		a.Position.Y += dy
		a.Action = world.StateWalking
		if math.Abs(dx) > math.Abs(dy) {
			if dx > 0 {
				a.Facing = world.FacingRight
			} else {
				a.Facing = world.FacingLeft
			}
		} else if dy > 0 {
			a.Facing = world.FacingDown
		} else {
			a.Facing = world.FacingUp
		}
	case BehaviorJump:
		a.Action = world.StateJumping
	case BehaviorIdle:
		a.Action = world.StateIdle
	case BehaviorRun:
		a.Position.X += s.uniform(s.cfg.RunStep)
		a.Position.Y += s.uniform(s.cfg.RunStep)
		a.Action = world.StateRunning
	case BehaviorCrawl:
		a.Action = world.StateCrawling
	case BehaviorStay:
	}

	a.Position = s.cfg.Bounds.Clamp(a.Position)
}

// uniform draws from [-limit, limit].
func (s *Simulator) uniform(limit float64) float64 {
	return (s.rng.Float64()*2 - 1) * limit
}

func (s *Simulator) nameFor(i int) string {
	if i < len(s.cfg.Names) {
		return s.cfg.Names[i]
	}
	return fmt.Sprintf("Stray %d", i+1)
}
