// Package player drives the player-controlled cat: movement commands, the
// jump integrator and the short timed interaction poses.
package player

import (
	"math"
	"sync"
	"time"

	"github.com/nidhogg/catcity/internal/world"
	"go.uber.org/zap"
)

// Config holds the movement and physics constants of the controller.
type Config struct {
	WalkSpeed         float64
	RunSpeed          float64
	ClimbSpeed        float64
	JumpForce         float64 // negative: up is -Y
	Gravity           float64
	StepsPerSecond    int
	InteractionRadius float64
	ClimbMargin       float64
	RevertDelay       time.Duration
	// CancelReverts makes a new command cancel a pending knock/steal revert.
	// When false a stale revert may reset a newer state to idle.
	CancelReverts bool
}

// DefaultConfig returns the stock cat physics.
func DefaultConfig() Config {
	return Config{
		WalkSpeed:         5,
		RunSpeed:          10,
		ClimbSpeed:        3,
		JumpForce:         -20,
		Gravity:           1.2,
		StepsPerSecond:    60,
		InteractionRadius: 50,
		ClimbMargin:       20,
		RevertDelay:       500 * time.Millisecond,
	}
}

// Snapshot is a read-only copy of the controller state for renderers.
type Snapshot struct {
	Position world.Vec2        `json:"position"`
	Facing   world.Direction   `json:"facing"`
	Action   world.ActionState `json:"action"`
	Jumping  bool              `json:"jumping"`
	Crawling bool              `json:"crawling"`
	Climbing bool              `json:"climbing"`
}

// Controller is the player action state machine.
type Controller struct {
	cfg      Config
	clock    *world.WorldClock
	position world.Vec2
	facing   world.Direction
	action   world.ActionState
	crawling bool
	climbing bool

	jumping          bool
	verticalVelocity float64
	groundLevel      float64
	jumpTask         *world.Token
	reverts          []*world.Token

	mu     sync.Mutex
	logger *zap.Logger
}

// NewController creates a controller standing idle at the origin.
func NewController(clock *world.WorldClock, cfg Config, logger *zap.Logger) *Controller {
	if cfg.StepsPerSecond <= 0 {
		cfg.StepsPerSecond = 60
	}
	return &Controller{
		cfg:    cfg,
		clock:  clock,
		facing: world.FacingRight,
		action: world.StateIdle,
		logger: logger,
	}
}

// State returns a snapshot of the controller.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Position: c.position,
		Facing:   c.facing,
		Action:   c.action,
		Jumping:  c.jumping,
		Crawling: c.crawling,
		Climbing: c.climbing,
	}
}

// Teleport places the cat at p. Ignored mid-jump and for non-finite points.
func (c *Controller) Teleport(p world.Vec2) {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.jumping {
		return
	}
	c.position = p
}

// MoveLeft steps left at walk or run speed.
func (c *Controller) MoveLeft(running bool) {
	c.moveHorizontal(world.FacingLeft, -1, running)
}

// MoveRight steps right at walk or run speed.
func (c *Controller) MoveRight(running bool) {
	c.moveHorizontal(world.FacingRight, 1, running)
}

func (c *Controller) moveHorizontal(dir world.Direction, sign float64, running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.jumping {
		return
	}
	speed, action := c.cfg.WalkSpeed, world.StateWalking
	if running {
		speed, action = c.cfg.RunSpeed, world.StateRunning
	}
	c.facing = dir
	c.position.X += sign * speed
	c.setAction(action)
}

// MoveUp steps up, climbing at climb speed or walking at walk speed.
func (c *Controller) MoveUp(climbing bool) {
	c.moveVertical(world.FacingUp, -1, climbing)
}

// MoveDown steps down, climbing at climb speed or walking at walk speed.
func (c *Controller) MoveDown(climbing bool) {
	c.moveVertical(world.FacingDown, 1, climbing)
}

func (c *Controller) moveVertical(dir world.Direction, sign float64, climbing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.jumping {
		return
	}
	speed, action := c.cfg.WalkSpeed, world.StateWalking
	if climbing {
		speed, action = c.cfg.ClimbSpeed, world.StateClimbing
	}
	c.facing = dir
	c.position.Y += sign * speed
	c.setAction(action)
}

// Jump starts the jump integrator. No-op while a jump is in flight.
func (c *Controller) Jump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.jumping {
		return
	}

	c.jumpTask.Cancel()
	c.jumping = true
	c.groundLevel = c.position.Y
	c.verticalVelocity = c.cfg.JumpForce
	c.setAction(world.StateJumping)

	step := time.Second / time.Duration(c.cfg.StepsPerSecond)
	var tok *world.Token
	tok = c.clock.Every("player.jump", step, func(time.Time) { c.jumpStep(tok) })
	c.jumpTask = tok

	c.logger.Debug("jump started",
		zap.Float64("ground", c.groundLevel),
		zap.Duration("step", step))
}

// jumpStep integrates one physics step. The token check happens under the
// lock so nothing commits once the jump has been cancelled.
func (c *Controller) jumpStep(tok *world.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !tok.Active() || tok != c.jumpTask {
		return
	}

	v := c.verticalVelocity + c.cfg.Gravity
	y := c.position.Y + v
	if y >= c.groundLevel {
		c.position.Y = c.groundLevel
		c.verticalVelocity = 0
		c.jumping = false
		c.action = world.StateIdle
		tok.Cancel()
		c.logger.Debug("jump landed", zap.Float64("ground", c.groundLevel))
		return
	}
	c.position.Y = y
	c.verticalVelocity = v
}

// ToggleCrawl flips between crawling and idle.
func (c *Controller) ToggleCrawl() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crawling = !c.crawling
	if c.crawling {
		c.setAction(world.StateCrawling)
	} else {
		c.setAction(world.StateIdle)
	}
}

// StartClimbing enters the climbing pose.
func (c *Controller) StartClimbing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.climbing = true
	c.setAction(world.StateClimbing)
}

// StopClimbing leaves the climbing pose.
func (c *Controller) StopClimbing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.climbing = false
	c.setAction(world.StateIdle)
}

// KnockOver plays the knocking pose and reverts to idle after the revert delay.
func (c *Controller) KnockOver() {
	c.timedAction(world.StateKnocking)
}

// Steal plays the stealing pose and reverts to idle after the revert delay.
func (c *Controller) Steal() {
	c.timedAction(world.StateStealing)
}

func (c *Controller) timedAction(state world.ActionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAction(state)

	var tok *world.Token
	tok = c.clock.After("player.revert", c.cfg.RevertDelay, func(time.Time) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !tok.Active() {
			return
		}
		c.forgetRevert(tok)
		c.action = world.StateIdle
	})
	c.reverts = append(c.reverts, tok)
}

// HideInBox enters the hiding pose. No timer.
func (c *Controller) HideInBox() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAction(world.StateHiding)
}

// ExitBox leaves the hiding pose.
func (c *Controller) ExitBox() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAction(world.StateIdle)
}

// Stop forces idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAction(world.StateIdle)
}

// IsNearObject reports whether p is closer than threshold. A non-positive
// threshold uses the configured interaction radius.
func (c *Controller) IsNearObject(p world.Vec2, threshold float64) bool {
	if threshold <= 0 {
		threshold = c.cfg.InteractionRadius
	}
	c.mu.Lock()
	pos := c.position
	c.mu.Unlock()
	return pos.Dist(p) < threshold
}

// CanClimbHere reports whether the cat stands on or next to any obstacle.
func (c *Controller) CanClimbHere(obstacles []world.Rect) bool {
	c.mu.Lock()
	pos := c.position
	c.mu.Unlock()
	for _, o := range obstacles {
		if o.Contains(pos) || o.Expand(c.cfg.ClimbMargin).Contains(pos) {
			return true
		}
	}
	return false
}

// PendingReverts returns how many knock/steal reverts are still scheduled.
func (c *Controller) PendingReverts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reverts)
}

// Close cancels the jump integrator and every pending revert.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jumpTask.Cancel()
	c.jumping = false
	c.verticalVelocity = 0
	for _, t := range c.reverts {
		t.Cancel()
	}
	c.reverts = nil
}

// setAction changes the action state. With CancelReverts a pending revert is
// superseded by any new state. Caller holds mu.
func (c *Controller) setAction(state world.ActionState) {
	if c.cfg.CancelReverts {
		for _, t := range c.reverts {
			t.Cancel()
		}
		c.reverts = c.reverts[:0]
	}
	if c.action != state {
		c.logger.Debug("player action changed",
			zap.String("from", string(c.action)),
			zap.String("to", string(state)))
	}
	c.action = state
}

func (c *Controller) forgetRevert(tok *world.Token) {
	for i, t := range c.reverts {
		if t == tok {
			c.reverts = append(c.reverts[:i], c.reverts[i+1:]...)
			return
		}
	}
}
