// Package game defines the core game state types for the survival challenge.
//
// These types represent the minimal state needed by the simulator and the
// search. Snapshots are treated as immutable: every transition clones first,
// so a State can be shared freely between a search tree and the agent loop.
package game

import "fmt"

// Position is a grid coordinate.
// Coordinates follow the server's screen convention: (0,0) is top-left and
// y grows downwards.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Offset returns the neighbouring position one step in direction d.
func (p Position) Offset(d Direction) Position {
	switch d {
	case Up:
		return Position{X: p.X, Y: p.Y - 1}
	case Down:
		return Position{X: p.X, Y: p.Y + 1}
	case Left:
		return Position{X: p.X - 1, Y: p.Y}
	case Right:
		return Position{X: p.X + 1, Y: p.Y}
	}
	return p
}

// Apply returns the position reached by m, ignoring walls.
func (p Position) Apply(m Move) Position {
	if d, ok := m.Direction(); ok {
		return p.Offset(d)
	}
	return p
}

func (p Position) Manhattan(o Position) int {
	return abs(p.X-o.X) + abs(p.Y-o.Y)
}

func (p Position) DistSquared(o Position) int {
	dx, dy := p.X-o.X, p.Y-o.Y
	return dx*dx + dy*dy
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Direction is one of the four unit steps.
type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions lists every direction in the order moves are generated.
var Directions = [4]Direction{Up, Down, Left, Right}

func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	default:
		return Left
	}
}

// Move converts the direction to a non-idle move.
func (d Direction) Move() Move {
	return Move(d)
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// ParseDirection parses the server's lowercase direction names.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Move is a direction or Idle.
type Move uint8

const (
	MoveUp    = Move(Up)
	MoveDown  = Move(Down)
	MoveLeft  = Move(Left)
	MoveRight = Move(Right)
	Idle      = Move(4)
)

// Direction returns the direction of a non-idle move.
func (m Move) Direction() (Direction, bool) {
	if m >= Idle {
		return 0, false
	}
	return Direction(m), true
}

func (m Move) String() string {
	if d, ok := m.Direction(); ok {
		return d.String()
	}
	return "idle"
}

// State is a single tick snapshot.
type State struct {
	Tick     int
	Position Position
	Alive    bool
	Threats  []Threat
	Grid     *Grid

	// Seen is where threats believe the player is: the player's position at
	// the end of the previous tick. {-1,-1} before the first tick.
	Seen Position
}

// Clone performs a copy of the state. The grid is shared since it never
// changes during a game.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	if len(s.Threats) > 0 {
		out.Threats = make([]Threat, len(s.Threats))
		copy(out.Threats, s.Threats)
	}
	return &out
}

// ThreatPositions returns the position of every threat, in order.
func (s *State) ThreatPositions() []Position {
	out := make([]Position, len(s.Threats))
	for i := range s.Threats {
		out[i] = s.Threats[i].Position
	}
	return out
}

// Caught reports whether a threat shares the player's cell.
func (s *State) Caught() bool {
	for i := range s.Threats {
		if s.Threats[i].Position == s.Position {
			return true
		}
	}
	return false
}

// Occupied reports whether any threat stands on p.
func (s *State) Occupied(p Position) bool {
	for i := range s.Threats {
		if s.Threats[i].Position == p {
			return true
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
