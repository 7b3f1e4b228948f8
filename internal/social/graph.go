// Package social keeps a relation graph of who talks privately to whom.
// Each private message strengthens the link between sender and target;
// a periodic world task decays every link toward zero.
package social

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/events"
	"github.com/nidhogg/catcity/internal/world"
	"go.uber.org/zap"
)

// Relation is a directed link from one participant to another.
type Relation struct {
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	Strength  float64   `json:"strength"` // 0-1
	History   []string  `json:"history"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Config tunes how fast links grow and fade.
type Config struct {
	Boost      float64       // per private message
	Decay      float64       // per decay period
	Period     time.Duration // world time between decays
	HistoryCap int           // recent message bodies kept per link
}

func DefaultConfig() Config {
	return Config{Boost: 0.05, Decay: 0.01, Period: time.Minute, HistoryCap: 20}
}

// Graph stores relations in Neo4j.
type Graph struct {
	driver   neo4j.DriverWithContext
	cfg      Config
	decaying atomic.Bool
	logger   *zap.Logger
}

// Connect opens a Neo4j driver and verifies the server is reachable.
func Connect(ctx context.Context, uri, user, password string) (neo4j.DriverWithContext, error) {
	auth := neo4j.NoAuth()
	if user != "" {
		auth = neo4j.BasicAuth(user, password, "")
	}
	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return driver, nil
}

func NewGraph(driver neo4j.DriverWithContext, cfg Config, logger *zap.Logger) *Graph {
	return &Graph{driver: driver, cfg: cfg, logger: logger}
}

func (g *Graph) Name() string { return "neo4j" }

// RecordMessage strengthens sender -> target for private messages.
// Global chat carries no relation and is ignored.
func (g *Graph) RecordMessage(ctx context.Context, m chat.Message) error {
	from, to, ok := linkFor(m)
	if !ok {
		return nil
	}
	return g.RecordInteraction(ctx, from, to, m.Body)
}

// RecordEvent is a no-op; activity events do not move relations.
func (g *Graph) RecordEvent(context.Context, events.Event) error { return nil }

func linkFor(m chat.Message) (from, to string, ok bool) {
	if m.TargetID == "" || m.SenderID == "" || m.SenderID == m.TargetID {
		return "", "", false
	}
	return m.SenderID, m.TargetID, true
}

// RecordInteraction creates the link if needed, adds Boost (capped at 1) and
// appends summary to the bounded history.
func (g *Graph) RecordInteraction(ctx context.Context, fromID, toID, summary string) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MERGE (a:Participant {id: $from})
		 MERGE (b:Participant {id: $to})
		 MERGE (a)-[r:TALKS_TO]->(b)
		 ON CREATE SET r.strength = 0.0, r.history = []
		 SET r.strength = CASE WHEN r.strength + $boost > 1.0 THEN 1.0 ELSE r.strength + $boost END,
		     r.history = (r.history + $summary)[-$cap..],
		     r.updated_at = datetime()`,
		map[string]any{
			"from":    fromID,
			"to":      toID,
			"boost":   g.cfg.Boost,
			"summary": summary,
			"cap":     g.cfg.HistoryCap,
		})
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// Get returns the link from -> to, or nil when none exists.
func (g *Graph) Get(ctx context.Context, fromID, toID string) (*Relation, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (a:Participant {id: $from})-[r:TALKS_TO]->(b:Participant {id: $to})
		 RETURN b.id AS to, r.strength AS strength, r.history AS history, r.updated_at AS updated_at`,
		map[string]any{"from": fromID, "to": toID})
	if err != nil {
		return nil, fmt.Errorf("get relation: %w", err)
	}
	if !result.Next(ctx) {
		return nil, result.Err()
	}
	rel := relationFrom(fromID, result.Record())
	return &rel, nil
}

// Relations returns every outgoing link of id, strongest first.
func (g *Graph) Relations(ctx context.Context, id string) ([]Relation, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (a:Participant {id: $id})-[r:TALKS_TO]->(b:Participant)
		 RETURN b.id AS to, r.strength AS strength, r.history AS history, r.updated_at AS updated_at
		 ORDER BY r.strength DESC`,
		map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get relations: %w", err)
	}

	var out []Relation
	for result.Next(ctx) {
		out = append(out, relationFrom(id, result.Record()))
	}
	return out, result.Err()
}

func relationFrom(fromID string, rec *neo4j.Record) Relation {
	rel := Relation{FromID: fromID}
	if v, ok := rec.Get("to"); ok {
		rel.ToID, _ = v.(string)
	}
	if v, ok := rec.Get("strength"); ok {
		rel.Strength, _ = v.(float64)
	}
	if v, ok := rec.Get("history"); ok {
		if h, ok := v.([]any); ok {
			for _, item := range h {
				if s, ok := item.(string); ok {
					rel.History = append(rel.History, s)
				}
			}
		}
	}
	if v, ok := rec.Get("updated_at"); ok {
		rel.UpdatedAt, _ = v.(time.Time)
	}
	return rel
}

// Decay lowers every link by the configured amount, flooring at zero.
func (g *Graph) Decay(ctx context.Context) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MATCH ()-[r:TALKS_TO]->()
		 WHERE r.strength > 0
		 SET r.strength = CASE WHEN r.strength - $decay < 0 THEN 0.0 ELSE r.strength - $decay END`,
		map[string]any{"decay": g.cfg.Decay})
	if err != nil {
		return fmt.Errorf("decay relations: %w", err)
	}
	return nil
}

// Schedule registers the decay as a periodic world task. The database call
// runs off the clock goroutine; a decay still in flight skips the next one.
func (g *Graph) Schedule(clock *world.WorldClock) *world.Token {
	return clock.Every("social.decay", g.cfg.Period, func(time.Time) {
		if !g.decaying.CompareAndSwap(false, true) {
			return
		}
		go func() {
			defer g.decaying.Store(false)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := g.Decay(ctx); err != nil {
				g.logger.Warn("relation decay failed", zap.Error(err))
			}
		}()
	})
}

// Close closes the underlying driver.
func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}
