package social

import (
	"testing"

	"github.com/nidhogg/catcity/internal/chat"
)

func TestLinkFor(t *testing.T) {
	tests := []struct {
		name     string
		msg      chat.Message
		from, to string
		ok       bool
	}{
		{"global", chat.Message{SenderID: "AI_1"}, "", "", false},
		{"private", chat.Message{SenderID: "player", TargetID: "AI_3"}, "player", "AI_3", true},
		{"reply", chat.Message{SenderID: "AI_3", TargetID: "player"}, "AI_3", "player", true},
		{"self", chat.Message{SenderID: "AI_3", TargetID: "AI_3"}, "", "", false},
		{"anonymous", chat.Message{TargetID: "AI_3"}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, ok := linkFor(tt.msg)
			if from != tt.from || to != tt.to || ok != tt.ok {
				t.Errorf("linkFor = (%q, %q, %v), want (%q, %q, %v)", from, to, ok, tt.from, tt.to, tt.ok)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.Boost <= c.Decay {
		t.Errorf("boost %v should outpace decay %v", c.Boost, c.Decay)
	}
	if c.HistoryCap <= 0 || c.Period <= 0 {
		t.Errorf("config = %+v", c)
	}
}
