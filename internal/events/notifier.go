// Package events produces the activity feed: random happenings attributed to
// the simulated residents, local player milestones and a single-slot
// notification display fed from a FIFO queue.
package events

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/catcity/internal/world"
	"go.uber.org/zap"
)

// Category classifies an activity event.
type Category string

const (
	CategoryJoined           Category = "joined"
	CategoryLeft             Category = "left"
	CategoryLevelUp          Category = "level_up"
	CategoryFoundItem        Category = "found_item"
	CategoryCompletedQuest   Category = "completed_quest"
	CategoryUnlockedCosmetic Category = "unlocked_cosmetic"
	CategoryAchievement      Category = "achievement"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryJoined, CategoryLeft, CategoryLevelUp, CategoryFoundItem,
		CategoryCompletedQuest, CategoryUnlockedCosmetic, CategoryAchievement:
		return true
	}
	return false
}

// Event is one entry of the activity feed. Icon and Color are symbolic
// references resolved by the renderer.
type Event struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Icon      string    `json:"icon"`
	Color     string    `json:"color"`
	Timestamp time.Time `json:"timestamp"`
}

// NameSource supplies the display names events are attributed to.
type NameSource interface {
	Names() []string
}

// Config controls generation rate, history size and display timing.
type Config struct {
	TickInterval       time.Duration
	HistoryCap         int
	DisplayDuration    time.Duration
	Gap                time.Duration
	RejoinDelay        time.Duration
	InitialJoins       bool
	InitialJoinDelay   time.Duration
	InitialJoinSpacing time.Duration
}

// DefaultConfig returns the stock feed timing.
func DefaultConfig() Config {
	return Config{
		TickInterval:       8 * time.Second,
		HistoryCap:         20,
		DisplayDuration:    3 * time.Second,
		Gap:                500 * time.Millisecond,
		RejoinDelay:        15 * time.Second,
		InitialJoins:       true,
		InitialJoinDelay:   2 * time.Second,
		InitialJoinSpacing: 1500 * time.Millisecond,
	}
}

type displayState int

const (
	displayIdle displayState = iota
	displayShowing
	displayCooling // dismissed, waiting out the gap
)

// Notifier owns the event history and the display queue.
type Notifier struct {
	cfg   Config
	clock *world.WorldClock
	rng   *rand.Rand
	names NameSource

	history []Event
	queue   []Event
	current *Event
	state   displayState

	tick    *world.Token
	display *world.Token
	delays  []*world.Token

	onEvent   []func(Event)
	onDisplay []func(Event)

	mu     sync.Mutex
	logger *zap.Logger
}

// NewNotifier creates a stopped notifier.
func NewNotifier(clock *world.WorldClock, names NameSource, cfg Config, rng *rand.Rand, logger *zap.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		clock:  clock,
		rng:    rng,
		names:  names,
		logger: logger,
	}
}

// OnEvent registers a hook called with every event added to the history.
func (n *Notifier) OnEvent(fn func(Event)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onEvent = append(n.onEvent, fn)
}

// OnDisplay registers a hook called whenever an event starts displaying.
func (n *Notifier) OnDisplay(fn func(Event)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onDisplay = append(n.onDisplay, fn)
}

// Start begins random generation and, if configured, schedules one join
// announcement per resident.
func (n *Notifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tick.Active() {
		return
	}
	n.tick = n.clock.Every("events.tick", n.cfg.TickInterval, n.generate)
	if n.cfg.InitialJoins {
		n.after("events.initial_joins", n.cfg.InitialJoinDelay, func(tok *world.Token, _ time.Time) {
			n.announceJoins(tok)
		})
	}
	n.logger.Info("event generation started", zap.Duration("tick", n.cfg.TickInterval))
}

// Stop cancels generation, pending rejoins and the display cycle. History
// and the queue are kept; the next AddEvent restarts the display.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tick.Active() {
		n.logger.Info("event generation stopped")
	}
	n.tick.Cancel()
	n.tick = nil
	for _, t := range n.delays {
		t.Cancel()
	}
	n.delays = nil
	n.display.Cancel()
	n.display = nil
	n.current = nil
	n.state = displayIdle
}

// AddEvent appends an event to the history and queues it for display. A left
// event brings the same resident back with a joined event after the rejoin
// delay.
func (n *Notifier) AddEvent(category Category, subject, message, icon, color string) Event {
	ev, _ := n.publish(nil, category, subject, message, icon, color, time.Time{})
	return ev
}

// publish records an event and runs the hooks outside the lock. A non-nil tok
// that has been cancelled suppresses the event; an active one is forgotten in
// the same locked section that commits. A zero now means the current world
// time.
func (n *Notifier) publish(tok *world.Token, category Category, subject, message, icon, color string, now time.Time) (Event, bool) {
	n.mu.Lock()
	if tok != nil {
		if !tok.Active() {
			n.mu.Unlock()
			return Event{}, false
		}
		n.forget(tok)
	}
	if now.IsZero() {
		now = n.clock.WorldTime()
	}
	ev, shown := n.add(category, subject, message, icon, color, now)
	evHooks, dispHooks := n.hooks()
	n.mu.Unlock()

	emit(evHooks, ev)
	if shown != nil {
		emit(dispHooks, *shown)
	}
	return ev, true
}

// PlayerFoundItem records a find by the local player.
func (n *Notifier) PlayerFoundItem(item string, count int) Event {
	if count < 1 {
		count = 1
	}
	plural := ""
	if count > 1 {
		plural = "s"
	}
	return n.AddEvent(CategoryFoundItem, "You",
		fmt.Sprintf("You found %d %s%s!", count, item, plural), "sparkles", "cyan")
}

// PlayerLeveledUp records a level-up of the local player.
func (n *Notifier) PlayerLeveledUp(level int) Event {
	return n.AddEvent(CategoryLevelUp, "You",
		fmt.Sprintf("You reached Level %d!", level), "star.fill", "cyan")
}

// Current returns the displayed event, if any.
func (n *Notifier) Current() (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Event{}, false
	}
	return *n.current, true
}

// History returns a copy of the recent events, oldest first.
func (n *Notifier) History() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Event, len(n.history))
	copy(out, n.history)
	return out
}

// Pending returns the number of events waiting for the display.
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// add records the event and kicks the display if it is idle. It returns the
// event that started displaying, if any. Caller holds mu.
func (n *Notifier) add(category Category, subject, message, icon, color string, now time.Time) (Event, *Event) {
	ev := Event{
		ID:        uuid.NewString(),
		Category:  category,
		Subject:   subject,
		Message:   message,
		Icon:      icon,
		Color:     color,
		Timestamp: now,
	}
	n.history = append(n.history, ev)
	if n.cfg.HistoryCap > 0 && len(n.history) > n.cfg.HistoryCap {
		n.history = append(n.history[:0:0], n.history[len(n.history)-n.cfg.HistoryCap:]...)
	}
	n.queue = append(n.queue, ev)

	if category == CategoryLeft {
		n.after("events.rejoin", n.cfg.RejoinDelay, func(tok *world.Token, at time.Time) {
			n.publish(tok, CategoryJoined, subject, joinedMessage(subject), iconJoined, "green", at)
		})
	}

	n.logger.Debug("activity event",
		zap.String("category", string(category)),
		zap.String("subject", subject),
		zap.Int("queued", len(n.queue)))

	if n.state == displayIdle {
		return ev, n.showNext()
	}
	return ev, nil
}

// showNext pops the queue head into the display slot. Caller holds mu.
func (n *Notifier) showNext() *Event {
	if len(n.queue) == 0 {
		n.state = displayIdle
		return nil
	}
	ev := n.queue[0]
	n.queue = n.queue[1:]
	n.current = &ev
	n.state = displayShowing

	var tok *world.Token
	tok = n.clock.After("events.dismiss", n.cfg.DisplayDuration, func(time.Time) {
		n.mu.Lock()
		defer n.mu.Unlock()
		if !tok.Active() || tok != n.display {
			return
		}
		n.current = nil
		n.state = displayCooling
		n.display = n.clock.After("events.gap", n.cfg.Gap, n.endGap)
	})
	n.display = tok
	shown := ev
	return &shown
}

func (n *Notifier) endGap(time.Time) {
	n.mu.Lock()
	if n.state != displayCooling {
		n.mu.Unlock()
		return
	}
	shown := n.showNext()
	_, dispHooks := n.hooks()
	n.mu.Unlock()
	if shown != nil {
		emit(dispHooks, *shown)
	}
}

// after schedules a tracked one-shot delay that Stop cancels. fn receives the
// token and must check it and forget it in the same locked section that
// commits its effect, so Stop can cancel it up to that point. Caller holds mu.
func (n *Notifier) after(name string, d time.Duration, fn func(tok *world.Token, now time.Time)) {
	var tok *world.Token
	tok = n.clock.After(name, d, func(now time.Time) { fn(tok, now) })
	n.delays = append(n.delays, tok)
}

func (n *Notifier) forget(tok *world.Token) {
	for i, t := range n.delays {
		if t == tok {
			n.delays = append(n.delays[:i], n.delays[i+1:]...)
			return
		}
	}
}

func (n *Notifier) announceJoins(parent *world.Token) {
	names := n.names.Names()
	n.mu.Lock()
	defer n.mu.Unlock()
	if !parent.Active() {
		return
	}
	n.forget(parent)
	for i, name := range names {
		n.after("events.join", time.Duration(i)*n.cfg.InitialJoinSpacing, func(tok *world.Token, at time.Time) {
			n.publish(tok, CategoryJoined, name, joinedMessage(name), iconJoined, "green", at)
		})
	}
}

func (n *Notifier) generate(now time.Time) {
	names := n.names.Names()
	n.mu.Lock()
	if !n.tick.Active() || len(names) == 0 {
		n.mu.Unlock()
		return
	}
	name := names[n.rng.IntN(len(names))]
	category := categoryFor(n.rng.Float64())
	message, icon, color := n.compose(category, name)
	ev, shown := n.add(category, name, message, icon, color, now)
	evHooks, dispHooks := n.hooks()
	n.mu.Unlock()

	emit(evHooks, ev)
	if shown != nil {
		emit(dispHooks, *shown)
	}
}

func (n *Notifier) hooks() ([]func(Event), []func(Event)) {
	ev := make([]func(Event), len(n.onEvent))
	copy(ev, n.onEvent)
	disp := make([]func(Event), len(n.onDisplay))
	copy(disp, n.onDisplay)
	return ev, disp
}

func emit(hooks []func(Event), ev Event) {
	for _, fn := range hooks {
		fn(ev)
	}
}
