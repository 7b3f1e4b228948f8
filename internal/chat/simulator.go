// Package chat runs the city chat: a capped global channel, capped private
// conversations, autonomous chatter from the simulated residents and
// personality-driven replies to human messages.
package chat

import (
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/catcity/internal/presence"
	"github.com/nidhogg/catcity/internal/world"
	"go.uber.org/zap"
)

// Origin tells human messages apart from simulated ones.
type Origin string

const (
	OriginHuman     Origin = "human"
	OriginSimulated Origin = "simulated"
)

// Message is one chat line. An empty TargetID means the global channel.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
	Origin     Origin    `json:"origin"`
	TargetID   string    `json:"target_id,omitempty"`
}

// Human reports whether a person typed the message.
func (m Message) Human() bool { return m.Origin == OriginHuman }

// RosterSource supplies the simulated residents that can speak.
type RosterSource interface {
	Roster() []presence.Agent
}

// Config controls chatter frequency, channel capacities and reply latency.
type Config struct {
	TickInterval time.Duration
	Debounce     time.Duration
	SpeakChance  float64
	GreetChance  float64
	GlobalCap    int
	PrivateCap   int
	ReplyMin     time.Duration
	ReplyMax     time.Duration
	Phrases      PhraseBook
}

// DefaultConfig returns the stock chat tuning with the built-in phrase book.
func DefaultConfig() Config {
	return Config{
		TickInterval: 5 * time.Second,
		Debounce:     10 * time.Second,
		SpeakChance:  0.5,
		GreetChance:  0.2,
		GlobalCap:    50,
		PrivateCap:   100,
		ReplyMin:     time.Second,
		ReplyMax:     3 * time.Second,
		Phrases:      DefaultPhraseBook(),
	}
}

// ConversationID names the private channel between a and b. It is the same
// for both argument orders.
func ConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// Simulator owns every channel and the autonomous chatter tick.
type Simulator struct {
	cfg    Config
	clock  *world.WorldClock
	rng    *rand.Rand
	roster RosterSource

	global        []Message
	private       map[string][]Message
	unreadGlobal  int
	unreadPrivate map[string]int
	lastSpoke     map[string]time.Time

	personalities map[string]Personality
	nextPersona   int

	tick      *world.Token
	replies   []*world.Token
	onMessage []func(Message)

	mu     sync.Mutex
	logger *zap.Logger
}

// NewSimulator creates a stopped simulator with empty channels.
func NewSimulator(clock *world.WorldClock, roster RosterSource, cfg Config, rng *rand.Rand, logger *zap.Logger) *Simulator {
	if cfg.Phrases == nil {
		cfg.Phrases = DefaultPhraseBook()
	}
	if cfg.ReplyMax < cfg.ReplyMin {
		cfg.ReplyMax = cfg.ReplyMin
	}
	return &Simulator{
		cfg:           cfg,
		clock:         clock,
		rng:           rng,
		roster:        roster,
		private:       make(map[string][]Message),
		unreadPrivate: make(map[string]int),
		lastSpoke:     make(map[string]time.Time),
		personalities: make(map[string]Personality),
		logger:        logger,
	}
}

// OnMessage registers a hook called with every message that lands in a
// channel. Hooks run outside the simulator lock.
func (s *Simulator) OnMessage(fn func(Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = append(s.onMessage, fn)
}

// Start assigns personalities round-robin in roster order and begins the
// chatter tick. Calling Start twice does nothing.
func (s *Simulator) Start() {
	roster := s.roster.Roster()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tick.Active() {
		return
	}
	s.personalities = make(map[string]Personality)
	s.nextPersona = 0
	for _, a := range roster {
		s.assign(a.ID)
	}
	s.tick = s.clock.Every("chat.tick", s.cfg.TickInterval, s.onTick)
	s.logger.Info("chat simulation started",
		zap.Int("speakers", len(roster)),
		zap.Duration("tick", s.cfg.TickInterval))
}

// Stop cancels the chatter tick and every pending reply. History stays.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tick.Active() {
		s.logger.Info("chat simulation stopped", zap.Int("dropped_replies", len(s.replies)))
	}
	s.tick.Cancel()
	s.tick = nil
	for _, t := range s.replies {
		t.Cancel()
	}
	s.replies = nil
}

// PersonalityOf returns the personality of a simulated resident.
func (s *Simulator) PersonalityOf(id string) (Personality, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.personalities[id]
	return p, ok
}

// SendMessage posts body from senderID. An empty targetID posts to the global
// channel; otherwise the message goes to the private conversation with
// targetID. A human message to a simulated resident schedules its reply.
func (s *Simulator) SendMessage(senderID, senderName, body string, human bool, targetID string) Message {
	var recipient *presence.Agent
	if human && targetID != "" {
		for _, a := range s.roster.Roster() {
			if a.ID == targetID && a.IsAI {
				recipient = &a
				break
			}
		}
	}

	origin := OriginSimulated
	if human {
		origin = OriginHuman
	}

	s.mu.Lock()
	msg := Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
		Timestamp:  s.clock.WorldTime(),
		Origin:     origin,
		TargetID:   targetID,
	}
	s.store(msg)
	if recipient != nil {
		s.scheduleReply(*recipient, msg)
	}
	hooks := s.hooks()
	s.mu.Unlock()

	emit(hooks, msg)
	return msg
}

// scheduleReply queues the recipient's answer to msg. Caller holds mu.
func (s *Simulator) scheduleReply(recipient presence.Agent, msg Message) {
	persona := s.assign(recipient.ID)
	span := s.cfg.ReplyMax - s.cfg.ReplyMin
	delay := s.cfg.ReplyMin + time.Duration(s.rng.Float64()*float64(span))
	text := s.cfg.Phrases.Respond(persona, msg.Body, s.rng)

	var tok *world.Token
	tok = s.clock.After("chat.reply", delay, func(now time.Time) {
		s.mu.Lock()
		if !tok.Active() {
			s.mu.Unlock()
			return
		}
		s.forgetReply(tok)
		reply := Message{
			ID:         uuid.NewString(),
			SenderID:   recipient.ID,
			SenderName: recipient.Name,
			Body:       text,
			Timestamp:  now,
			Origin:     OriginSimulated,
			TargetID:   msg.SenderID,
		}
		s.store(reply)
		hooks := s.hooks()
		s.mu.Unlock()
		emit(hooks, reply)
	})
	s.replies = append(s.replies, tok)

	s.logger.Debug("reply scheduled",
		zap.String("from", recipient.ID),
		zap.String("to", msg.SenderID),
		zap.String("personality", string(persona)),
		zap.Duration("delay", delay))
}

func (s *Simulator) onTick(now time.Time) {
	roster := s.roster.Roster()

	s.mu.Lock()
	if !s.tick.Active() || len(roster) == 0 || s.rng.Float64() >= s.cfg.SpeakChance {
		s.mu.Unlock()
		return
	}
	a := roster[s.rng.IntN(len(roster))]
	if last, ok := s.lastSpoke[a.ID]; ok && now.Sub(last) < s.cfg.Debounce {
		s.mu.Unlock()
		return
	}

	ph := s.cfg.Phrases[s.assign(a.ID)]
	body := pick(ph.Ambient, s.rng)
	if s.rng.Float64() < s.cfg.GreetChance {
		body = pick(ph.Greetings, s.rng)
	}
	msg := Message{
		ID:         uuid.NewString(),
		SenderID:   a.ID,
		SenderName: a.Name,
		Body:       body,
		Timestamp:  now,
		Origin:     OriginSimulated,
	}
	s.store(msg)
	s.lastSpoke[a.ID] = now
	hooks := s.hooks()
	s.mu.Unlock()

	emit(hooks, msg)
}

// store appends msg to its channel, evicting the oldest entry past capacity.
// Only simulated messages count as unread. Caller holds mu.
func (s *Simulator) store(msg Message) {
	if msg.TargetID == "" {
		s.global = appendCapped(s.global, msg, s.cfg.GlobalCap)
		if !msg.Human() {
			s.unreadGlobal++
		}
		return
	}
	id := ConversationID(msg.SenderID, msg.TargetID)
	s.private[id] = appendCapped(s.private[id], msg, s.cfg.PrivateCap)
	if !msg.Human() {
		s.unreadPrivate[id]++
	}
}

func appendCapped(list []Message, msg Message, limit int) []Message {
	list = append(list, msg)
	if limit > 0 && len(list) > limit {
		list = append(list[:0:0], list[len(list)-limit:]...)
	}
	return list
}

// assign returns id's personality, handing out the next one in rotation to
// newcomers. Caller holds mu.
func (s *Simulator) assign(id string) Personality {
	if p, ok := s.personalities[id]; ok {
		return p
	}
	p := Personalities[s.nextPersona%len(Personalities)]
	s.nextPersona++
	s.personalities[id] = p
	return p
}

func (s *Simulator) forgetReply(tok *world.Token) {
	for i, t := range s.replies {
		if t == tok {
			s.replies = append(s.replies[:i], s.replies[i+1:]...)
			return
		}
	}
}

func (s *Simulator) hooks() []func(Message) {
	out := make([]func(Message), len(s.onMessage))
	copy(out, s.onMessage)
	return out
}

func emit(hooks []func(Message), msg Message) {
	for _, fn := range hooks {
		fn(msg)
	}
}

// Global returns a copy of the global channel, oldest first.
func (s *Simulator) Global() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.global))
	copy(out, s.global)
	return out
}

// Conversation returns a copy of the private conversation between a and b.
func (s *Simulator) Conversation(a, b string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.private[ConversationID(a, b)]
	out := make([]Message, len(src))
	copy(out, src)
	return out
}

// Conversations lists the ids of every private conversation with messages.
func (s *Simulator) Conversations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.private))
	for id, msgs := range s.private {
		if len(msgs) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *Simulator) UnreadGlobal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadGlobal
}

func (s *Simulator) UnreadConversation(a, b string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadPrivate[ConversationID(a, b)]
}

// TotalUnreadPrivate sums the unread counts of every private conversation.
func (s *Simulator) TotalUnreadPrivate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.unreadPrivate {
		total += n
	}
	return total
}

func (s *Simulator) MarkGlobalRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreadGlobal = 0
}

func (s *Simulator) MarkConversationRead(a, b string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unreadPrivate, ConversationID(a, b))
}

// ClearConversation drops one private conversation and its unread count.
func (s *Simulator) ClearConversation(a, b string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := ConversationID(a, b)
	delete(s.private, id)
	delete(s.unreadPrivate, id)
}

// ClearAll empties every channel and resets unread counts.
func (s *Simulator) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = nil
	s.private = make(map[string][]Message)
	s.unreadGlobal = 0
	s.unreadPrivate = make(map[string]int)
}
