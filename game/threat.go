package game

import "math"

// Style selects a threat's movement policy.
type Style string

const (
	Goldfish Style = "goldfish"
	Bull     Style = "bull"
	Shark    Style = "shark"
	Hawk     Style = "hawk"
	Deer     Style = "deer"
	Owl      Style = "owl"
)

// KnownStyles are the styles observed on the live server.
var KnownStyles = []Style{Bull, Hawk, Shark, Goldfish, Deer, Owl}

// Threat is a hostile entity on the board.
type Threat struct {
	Position    Position
	Direction   Direction
	Style       Style
	Personality string

	// Spawn is where the threat was first observed.
	Spawn Position
	// Seed drives NextRand. The server spends one draw choosing the initial
	// direction, so a freshly observed threat starts at 1.
	Seed int
}

// NewThreat returns a threat as first observed at pos.
func NewThreat(pos Position, dir Direction, style Style, personality string) Threat {
	return Threat{
		Position:    pos,
		Direction:   dir,
		Style:       style,
		Personality: personality,
		Spawn:       pos,
		Seed:        1,
	}
}

// NextRand returns the next value in [0,1) of the threat's deterministic
// sequence and advances it.
func (t *Threat) NextRand() float64 {
	seed := t.Seed
	t.Seed++
	x := math.Sin(float64(seed)) * 10000
	return x - math.Floor(x)
}

// Pick chooses one of n options with NextRand. n must be positive.
func (t *Threat) Pick(n int) int {
	idx := int(math.Floor(t.NextRand() * float64(n)))
	if idx >= n {
		idx = n - 1
	}
	return idx
}
