// Package game wires the player controller and the three simulators onto one
// world clock and fans their output out to attached sinks.
package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/config"
	"github.com/nidhogg/catcity/internal/events"
	"github.com/nidhogg/catcity/internal/player"
	"github.com/nidhogg/catcity/internal/presence"
	"github.com/nidhogg/catcity/internal/world"
	"go.uber.org/zap"
)

// Sink receives every chat message and activity event the simulation
// publishes. Delivery is fire-and-forget: errors are logged and dropped.
type Sink interface {
	Name() string
	RecordMessage(ctx context.Context, msg chat.Message) error
	RecordEvent(ctx context.Context, ev events.Event) error
}

// Snapshot is everything a renderer needs for one frame.
type Snapshot struct {
	WorldTime     time.Time        `json:"world_time"`
	Running       bool             `json:"running"`
	Player        player.Snapshot  `json:"player"`
	Agents        []presence.Agent `json:"agents"`
	Chat          []chat.Message   `json:"chat"`
	UnreadGlobal  int              `json:"unread_global"`
	UnreadPrivate int              `json:"unread_private"`
	Notification  *events.Event    `json:"notification,omitempty"`
	Events        []events.Event   `json:"events"`
}

type feedItem struct {
	msg *chat.Message
	ev  *events.Event
}

const (
	feedBuffer  = 1024
	sinkTimeout = 5 * time.Second
)

// Game owns the simulation components. Fields are exported so transports
// can issue commands directly; each component is safe for concurrent use.
type Game struct {
	Clock    *world.WorldClock
	Player   *player.Controller
	Presence *presence.Simulator
	Chat     *chat.Simulator
	Events   *events.Notifier

	seed uint64

	sinks   []Sink
	feed    chan feedItem
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
	logger  *zap.Logger
}

// New builds every component from the simulation config. A zero seed picks
// a random one.
func New(cfg config.SimulationConfig, logger *zap.Logger) (*Game, error) {
	phrases := chat.DefaultPhraseBook()
	if cfg.Chat.PhrasesPath != "" {
		b, err := chat.LoadPhraseBook(cfg.Chat.PhrasesPath)
		if err != nil {
			return nil, fmt.Errorf("load phrases: %w", err)
		}
		phrases = b
	}

	seed := uint64(cfg.Seed)
	if seed == 0 {
		seed = rand.Uint64()
	}
	stream := func(n uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, n)) }

	clock := world.NewWorldClock(config.Millis(cfg.FrameMs), cfg.Speed, logger)
	roster := presence.NewSimulator(clock, PresenceConfig(cfg.Presence), stream(1), logger.Named("presence"))

	chatCfg := ChatConfig(cfg.Chat)
	chatCfg.Phrases = phrases

	g := &Game{
		Clock:    clock,
		Player:   player.NewController(clock, PlayerConfig(cfg.Player), logger.Named("player")),
		Presence: roster,
		Chat:     chat.NewSimulator(clock, roster, chatCfg, stream(2), logger.Named("chat")),
		Events:   events.NewNotifier(clock, roster, EventsConfig(cfg.Events), stream(3), logger.Named("events")),
		seed:     seed,
		logger:   logger,
	}
	g.Chat.OnMessage(func(m chat.Message) { g.publish(feedItem{msg: &m}) })
	g.Events.OnEvent(func(e events.Event) { g.publish(feedItem{ev: &e}) })

	logger.Info("simulation assembled",
		zap.Uint64("seed", seed),
		zap.Int("agents", cfg.Presence.AgentCount),
		zap.String("revert_policy", cfg.Player.RevertPolicy))
	return g, nil
}

// Seed returns the seed every random stream was derived from.
func (g *Game) Seed() uint64 { return g.seed }

// Attach adds a sink. Sinks attached after Start still receive later items.
func (g *Game) Attach(s Sink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sinks = append(g.sinks, s)
	g.logger.Info("sink attached", zap.String("sink", s.Name()))
}

// Start spawns the roster, starts chatter and event generation and the sink
// dispatcher. The real-time clock loop is left to the caller.
func (g *Game) Start() {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return
	}
	g.running = true
	g.feed = make(chan feedItem, feedBuffer)
	g.wg.Add(1)
	go g.dispatch(g.feed)
	g.mu.Unlock()

	g.Presence.Start()
	g.Chat.Start()
	g.Events.Start()
}

// Stop halts every producer, drains the sink queue and stops the clock loop.
func (g *Game) Stop() {
	g.Events.Stop()
	g.Chat.Stop()
	g.Presence.Stop()
	g.Player.Close()
	g.Clock.Stop()

	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	close(g.feed)
	g.mu.Unlock()
	g.wg.Wait()
}

// Snapshot aggregates the read side of every component.
func (g *Game) Snapshot() Snapshot {
	s := Snapshot{
		WorldTime:     g.Clock.WorldTime(),
		Running:       g.Presence.Running(),
		Player:        g.Player.State(),
		Agents:        g.Presence.Roster(),
		Chat:          g.Chat.Global(),
		UnreadGlobal:  g.Chat.UnreadGlobal(),
		UnreadPrivate: g.Chat.TotalUnreadPrivate(),
		Events:        g.Events.History(),
	}
	if cur, ok := g.Events.Current(); ok {
		s.Notification = &cur
	}
	return s
}

func (g *Game) publish(item feedItem) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.running || len(g.sinks) == 0 {
		return
	}
	select {
	case g.feed <- item:
	default:
		g.logger.Warn("sink queue full, dropping feed item")
	}
}

func (g *Game) dispatch(feed <-chan feedItem) {
	defer g.wg.Done()
	for item := range feed {
		g.mu.RLock()
		sinks := make([]Sink, len(g.sinks))
		copy(sinks, g.sinks)
		g.mu.RUnlock()

		for _, s := range sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			var err error
			if item.msg != nil {
				err = s.RecordMessage(ctx, *item.msg)
			} else {
				err = s.RecordEvent(ctx, *item.ev)
			}
			cancel()
			if err != nil {
				g.logger.Warn("sink delivery failed", zap.String("sink", s.Name()), zap.Error(err))
			}
		}
	}
}
