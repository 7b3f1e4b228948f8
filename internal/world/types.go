package world

import "math"

// ActionState is what a character (the player or a simulated agent) is doing.
type ActionState string

const (
	StateIdle     ActionState = "idle"
	StateWalking  ActionState = "walking"
	StateRunning  ActionState = "running"
	StateJumping  ActionState = "jumping"
	StateCrawling ActionState = "crawling"
	StateClimbing ActionState = "climbing"
	StateKnocking ActionState = "knocking"
	StateStealing ActionState = "stealing"
	StateHiding   ActionState = "hiding"
)

// Direction is the way a character faces.
type Direction string

const (
	FacingLeft  Direction = "left"
	FacingRight Direction = "right"
	FacingUp    Direction = "up"
	FacingDown  Direction = "down"
)

// Vec2 is a point in world units. Y grows downward, so jumping is negative Y.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between two points.
func (v Vec2) Dist(o Vec2) float64 {
	return math.Hypot(v.X-o.X, v.Y-o.Y)
}

// Rect is an axis-aligned rectangle with its origin at the minimum corner.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Contains reports whether p lies in the half-open rectangle [min, max).
func (r Rect) Contains(p Vec2) bool {
	if r.W <= 0 || r.H <= 0 {
		return false
	}
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Expand grows the rectangle by margin on every side.
func (r Rect) Expand(margin float64) Rect {
	return Rect{X: r.X - margin, Y: r.Y - margin, W: r.W + 2*margin, H: r.H + 2*margin}
}

// Bounds is a square centred on the origin with the given half extent.
type Bounds struct {
	HalfExtent float64 `json:"half_extent"`
}

// Clamp pulls p inside the square.
func (b Bounds) Clamp(p Vec2) Vec2 {
	return Vec2{
		X: math.Max(-b.HalfExtent, math.Min(b.HalfExtent, p.X)),
		Y: math.Max(-b.HalfExtent, math.Min(b.HalfExtent, p.Y)),
	}
}

// Contains reports whether p lies inside the square, edges included.
func (b Bounds) Contains(p Vec2) bool {
	return math.Abs(p.X) <= b.HalfExtent && math.Abs(p.Y) <= b.HalfExtent
}
