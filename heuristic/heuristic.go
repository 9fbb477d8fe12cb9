// Package heuristic is the search-free fallback policy: walk away from the
// nearest threat.
package heuristic

import (
	"math/rand"

	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/safety"
)

// SafeThreshold is the safety above which the agent stops fleeing step by
// step and heads for the safest cell it can reach.
const SafeThreshold = 2

// Decision is a single step or a move-to target.
type Decision struct {
	Move      game.Move
	Target    game.Position
	HasTarget bool
}

// Choose picks the agent's action for s.
//
// distances is the server's distance-from-home table indexed [x][y], with
// safety.Unreachable for cells the agent cannot walk to; nil when the server
// did not send one. rng breaks ties; nil picks the first candidate.
func Choose(s *game.State, distances [][]int, rng *rand.Rand) Decision {
	field := safety.Compute(s.Grid, s.ThreatPositions())

	if distances != nil && field.Score(s.Position) > SafeThreshold {
		if target, ok := safestReachable(s.Grid, field, distances); ok && target != s.Position {
			return Decision{Move: game.Idle, Target: target, HasTarget: true}
		}
	}
	return Decision{Move: Greedy(s.Grid, field, s.Position, rng)}
}

// Greedy returns the passable direction whose destination is furthest from
// any threat, or Idle when boxed in.
func Greedy(grid *game.Grid, field *safety.Field, from game.Position, rng *rand.Rand) game.Move {
	best := safety.Unreachable - 1
	var picks []game.Move
	for _, d := range grid.Moves(from) {
		score := field.Score(from.Offset(d))
		switch {
		case score > best:
			best = score
			picks = append(picks[:0], d.Move())
		case score == best:
			picks = append(picks, d.Move())
		}
	}
	switch {
	case len(picks) == 0:
		return game.Idle
	case rng == nil || len(picks) == 1:
		return picks[0]
	}
	return picks[rng.Intn(len(picks))]
}

func safestReachable(grid *game.Grid, field *safety.Field, distances [][]int) (game.Position, bool) {
	var (
		target            game.Position
		found             bool
		bestScore, bestAt int
	)
	for x := 0; x < grid.Width && x < len(distances); x++ {
		for y := 0; y < grid.Height && y < len(distances[x]); y++ {
			dist := distances[x][y]
			p := game.Position{X: x, Y: y}
			if dist == safety.Unreachable || !grid.IsEmpty(p) {
				continue
			}
			score := field.Score(p)
			if !found || score > bestScore || (score == bestScore && dist < bestAt) {
				target, bestScore, bestAt, found = p, score, dist, true
			}
		}
	}
	return target, found
}
