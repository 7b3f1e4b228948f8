package chat

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Personality decides what a simulated resident says.
type Personality string

const (
	Friendly   Personality = "friendly"
	Sarcastic  Personality = "sarcastic"
	Mysterious Personality = "mysterious"
	Cheerful   Personality = "cheerful"
	Wise       Personality = "wise"
)

// Personalities lists every personality in round-robin assignment order.
var Personalities = []Personality{Friendly, Sarcastic, Mysterious, Cheerful, Wise}

// Replies holds the topic-specific answers of one personality.
type Replies struct {
	Shiny    []string `yaml:"shiny" json:"shiny"`
	Quest    []string `yaml:"quest" json:"quest"`
	Question []string `yaml:"question" json:"question"`
}

// Phrases is everything one personality can say.
type Phrases struct {
	Greetings []string `yaml:"greetings" json:"greetings"`
	Ambient   []string `yaml:"ambient" json:"ambient"`
	Replies   Replies  `yaml:"replies" json:"replies"`
}

// PhraseBook maps each personality to its phrases.
type PhraseBook map[Personality]Phrases

//go:embed personalities.yaml
var defaultPhrases []byte

// DefaultPhraseBook returns the built-in phrase book.
func DefaultPhraseBook() PhraseBook {
	b, err := ParsePhraseBook(defaultPhrases)
	if err != nil {
		panic(fmt.Sprintf("embedded phrase book: %v", err))
	}
	return b
}

// LoadPhraseBook reads a YAML phrase book from disk.
func LoadPhraseBook(path string) (PhraseBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phrase book %s: %w", path, err)
	}
	b, err := ParsePhraseBook(data)
	if err != nil {
		return nil, fmt.Errorf("phrase book %s: %w", path, err)
	}
	return b, nil
}

// ParsePhraseBook decodes YAML and checks that every personality can speak on
// every topic.
func ParsePhraseBook(data []byte) (PhraseBook, error) {
	var b PhraseBook
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	for _, p := range Personalities {
		ph, ok := b[p]
		if !ok {
			return nil, fmt.Errorf("personality %q missing", p)
		}
		for name, list := range map[string][]string{
			"greetings":        ph.Greetings,
			"ambient":          ph.Ambient,
			"replies.shiny":    ph.Replies.Shiny,
			"replies.quest":    ph.Replies.Quest,
			"replies.question": ph.Replies.Question,
		} {
			if len(list) == 0 {
				return nil, fmt.Errorf("personality %q has no %s", p, name)
			}
		}
	}
	return b, nil
}

// Topic is what an incoming message is about, in matching priority order.
type Topic int

const (
	TopicGreeting Topic = iota
	TopicShiny
	TopicQuest
	TopicQuestion
	TopicOther
)

var topicKeywords = []struct {
	topic Topic
	words []string
}{
	{TopicGreeting, []string{"hi", "hello", "hey"}},
	{TopicShiny, []string{"shiny", "shinies"}},
	{TopicQuest, []string{"quest"}},
	{TopicQuestion, []string{"how", "what", "where", "why"}},
}

// Classify finds the first topic whose keyword appears anywhere in the
// lower-cased body. Matching is by substring, so "this" counts as a greeting.
func Classify(body string) Topic {
	lower := strings.ToLower(body)
	for _, tk := range topicKeywords {
		for _, w := range tk.words {
			if strings.Contains(lower, w) {
				return tk.topic
			}
		}
	}
	return TopicOther
}

// Respond picks a reply to body in personality p's voice.
func (b PhraseBook) Respond(p Personality, body string, rng *rand.Rand) string {
	ph := b[p]
	switch Classify(body) {
	case TopicGreeting:
		return pick(ph.Greetings, rng)
	case TopicShiny:
		return pick(ph.Replies.Shiny, rng)
	case TopicQuest:
		return pick(ph.Replies.Quest, rng)
	case TopicQuestion:
		return pick(ph.Replies.Question, rng)
	default:
		return pick(ph.Ambient, rng)
	}
}

func pick(list []string, rng *rand.Rand) string {
	if len(list) == 0 {
		return "..."
	}
	return list[rng.IntN(len(list))]
}
