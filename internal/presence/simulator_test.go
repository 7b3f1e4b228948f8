package presence

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/nidhogg/catcity/internal/world"
	"go.uber.org/zap"
)

func newTestSimulator(t *testing.T, cfg Config, seed uint64) (*Simulator, *world.WorldClock) {
	t.Helper()
	clock := world.NewWorldClock(16*time.Millisecond, 1.0, zap.NewNop())
	s := NewSimulator(clock, cfg, rand.New(rand.NewPCG(seed, seed^0x9e3779b9)), zap.NewNop())
	t.Cleanup(s.Stop)
	return s, clock
}

func TestSpawnOnCircle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SpawnRadius = 30
	s, _ := newTestSimulator(t, cfg, 1)
	s.Start()

	roster := s.Roster()
	if len(roster) != 5 {
		t.Fatalf("roster size = %d, want 5", len(roster))
	}
	for i, a := range roster {
		angle := 2 * math.Pi * float64(i) / 5
		wantX, wantY := 30*math.Cos(angle), 30*math.Sin(angle)
		if math.Abs(a.Position.X-wantX) > 1e-9 || math.Abs(a.Position.Y-wantY) > 1e-9 {
			t.Errorf("agent %d at %+v, want (%v, %v)", i, a.Position, wantX, wantY)
		}
		if d := math.Hypot(a.Position.X, a.Position.Y); math.Abs(d-30) > 1e-9 {
			t.Errorf("agent %d distance = %v, want 30", i, d)
		}
		if a.Action != world.StateIdle || !a.IsAI {
			t.Errorf("agent %d spawned as %q ai=%v", i, a.Action, a.IsAI)
		}
		if a.Level < 1 || a.Level > 10 {
			t.Errorf("agent %d level = %d, want 1..10", i, a.Level)
		}
	}
	if roster[0].ID != "AI_0" || roster[0].Name != "Shadow" || roster[4].Name != "Felix" {
		t.Errorf("unexpected identities: %s/%s .. %s", roster[0].ID, roster[0].Name, roster[4].Name)
	}
}

func TestAgentsStayInBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bounds = world.Bounds{HalfExtent: 20}
	cfg.SpawnRadius = 18
	cfg.RunStep = 15
	cfg.WanderStep = 10

	for seed := uint64(1); seed <= 5; seed++ {
		s, clock := newTestSimulator(t, cfg, seed)
		s.Start()
		for i := 0; i < 500; i++ {
			clock.Advance(cfg.TickInterval)
			for _, a := range s.Roster() {
				if !cfg.Bounds.Contains(a.Position) {
					t.Fatalf("seed %d tick %d: %s escaped to %+v", seed, i, a.ID, a.Position)
				}
			}
		}
		if got := len(s.Roster()); got != cfg.AgentCount {
			t.Fatalf("seed %d: roster size changed to %d", seed, got)
		}
	}
}

func TestTickMovesAgents(t *testing.T) {
	s, clock := newTestSimulator(t, DefaultConfig(), 7)
	s.Start()
	before := s.Roster()

	clock.Advance(time.Second)
	after := s.Roster()

	moved := 0
	for i := range after {
		if after[i].Position != before[i].Position {
			moved++
		}
		if !after[i].LastUpdate.After(before[i].LastUpdate) {
			t.Errorf("%s last update not advanced", after[i].ID)
		}
	}
	if moved == 0 {
		t.Error("no agent moved after 10 ticks")
	}
}

func TestBehaviorBuckets(t *testing.T) {
	cases := []struct {
		draw int
		want Behavior
	}{
		{0, BehaviorWander}, {60, BehaviorWander},
		{61, BehaviorJump}, {70, BehaviorJump},
		{71, BehaviorIdle}, {80, BehaviorIdle},
		{81, BehaviorRun}, {85, BehaviorRun},
		{86, BehaviorCrawl}, {90, BehaviorCrawl},
		{91, BehaviorStay}, {100, BehaviorStay},
	}
	for _, c := range cases {
		if got := behaviorFor(c.draw); got != c.want {
			t.Errorf("behaviorFor(%d) = %q, want %q", c.draw, got, c.want)
		}
	}
}

func TestRosterIsACopy(t *testing.T) {
	s, _ := newTestSimulator(t, DefaultConfig(), 3)
	s.Start()

	r := s.Roster()
	r[0].Name = "Impostor"
	r[0].Position.X = 9999

	a, ok := s.Agent("AI_0")
	if !ok {
		t.Fatal("AI_0 missing")
	}
	if a.Name == "Impostor" || a.Position.X == 9999 {
		t.Error("roster snapshot aliased live state")
	}
}

func TestStopClearsRosterAndTick(t *testing.T) {
	s, clock := newTestSimulator(t, DefaultConfig(), 4)
	s.Start()
	s.Stop()

	if n := len(s.Roster()); n != 0 {
		t.Errorf("roster size after stop = %d", n)
	}
	if s.Running() {
		t.Error("still running after stop")
	}
	clock.Advance(time.Second)
	if clock.Pending() != 0 {
		t.Errorf("tick still scheduled after stop")
	}

	s.Start()
	if n := len(s.Roster()); n != 5 {
		t.Errorf("restart roster size = %d, want 5", n)
	}
}

func TestExtraAgentsGetFallbackNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AgentCount = 7
	s, _ := newTestSimulator(t, cfg, 5)
	s.Start()

	names := s.Names()
	if len(names) != 7 || names[6] != "Stray 7" {
		t.Errorf("names = %v", names)
	}
}
