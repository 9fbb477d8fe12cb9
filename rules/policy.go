package rules

import (
	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/safety"
)

// Policy decides a threat's next move on a tick where threats move.
// Policies may advance the threat's random sequence, so t must be owned by
// the caller. Returning game.Idle holds position.
type Policy interface {
	Move(t *game.Threat, grid *game.Grid, seen game.Position) game.Move
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(t *game.Threat, grid *game.Grid, seen game.Position) game.Move

func (f PolicyFunc) Move(t *game.Threat, grid *game.Grid, seen game.Position) game.Move {
	return f(t, grid, seen)
}

var (
	// Stationary is used for every style without a registered policy. Hawk,
	// owl and (by default) shark and deer are not modeled, so predictions for
	// them are expected to drift.
	Stationary Policy = PolicyFunc(func(*game.Threat, *game.Grid, game.Position) game.Move {
		return game.Idle
	})

	BullPolicy     Policy = PolicyFunc(bull)
	GoldfishPolicy Policy = PolicyFunc(goldfish)
	SharkPolicy    Policy = PolicyFunc(shark)
	DeerPolicy     Policy = PolicyFunc(deer)
)

// Policies are the movement rules the simulator trusts by default.
var Policies = map[game.Style]Policy{
	game.Bull:     BullPolicy,
	game.Goldfish: GoldfishPolicy,
}

// ExtendedPolicies adds the chasing styles on top of Policies.
func ExtendedPolicies() map[game.Style]Policy {
	out := make(map[game.Style]Policy, len(Policies)+2)
	for k, v := range Policies {
		out[k] = v
	}
	out[game.Shark] = SharkPolicy
	out[game.Deer] = DeerPolicy
	return out
}

// openDirections lists passable directions from the threat in server order.
func openDirections(t *game.Threat, grid *game.Grid) []game.Direction {
	out := make([]game.Direction, 0, 4)
	for _, d := range [4]game.Direction{game.Left, game.Right, game.Up, game.Down} {
		if grid.IsEmpty(t.Position.Offset(d)) {
			out = append(out, d)
		}
	}
	return out
}

func contains(dirs []game.Direction, d game.Direction) bool {
	for _, x := range dirs {
		if x == d {
			return true
		}
	}
	return false
}

// bull charges in its facing direction and turns randomly when blocked.
func bull(t *game.Threat, grid *game.Grid, _ game.Position) game.Move {
	dirs := openDirections(t, grid)
	if len(dirs) == 0 {
		return game.Idle
	}
	if contains(dirs, t.Direction) {
		return t.Direction.Move()
	}
	return dirs[t.Pick(len(dirs))].Move()
}

// goldfish swims straight and bounces back off walls.
func goldfish(t *game.Threat, grid *game.Grid, _ game.Position) game.Move {
	dirs := openDirections(t, grid)
	switch {
	case len(dirs) == 0:
		return game.Idle
	case contains(dirs, t.Direction):
		return t.Direction.Move()
	case contains(dirs, t.Direction.Opposite()):
		return t.Direction.Opposite().Move()
	}
	return dirs[t.Pick(len(dirs))].Move()
}

// shark takes the first step of a shortest path towards the agent.
func shark(t *game.Threat, grid *game.Grid, seen game.Position) game.Move {
	d, ok := safety.FirstStep(grid, t.Position, seen)
	if !ok {
		return game.Idle
	}
	return d.Move()
}

// deer never turns back unless cornered. It approaches the agent from afar
// and retreats to its spawn once within six cells.
func deer(t *game.Threat, grid *game.Grid, seen game.Position) game.Move {
	dirs := openDirections(t, grid)
	switch len(dirs) {
	case 0:
		return game.Idle
	case 1:
		return dirs[0].Move()
	}
	target := t.Spawn
	if t.Position.DistSquared(seen) > 6*6 {
		target = seen
	}
	best, bestDist := game.Idle, 0
	for _, d := range dirs {
		if d == t.Direction.Opposite() {
			continue
		}
		dist := t.Position.Offset(d).DistSquared(target)
		if best == game.Idle || dist < bestDist {
			best, bestDist = d.Move(), dist
		}
	}
	return best
}
