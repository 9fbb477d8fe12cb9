package mcts

import (
	"math/rand"

	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/safety"
)

// Rollout picks the agent's move during a playout. moves is never empty.
type Rollout func(s *game.State, moves []game.Move, rng *rand.Rand) game.Move

// RandomRollout plays uniformly among the legal moves.
func RandomRollout(_ *game.State, moves []game.Move, rng *rand.Rand) game.Move {
	return moves[rng.Intn(len(moves))]
}

// SafetyRollout plays one of the moves landing furthest from any threat.
func SafetyRollout(s *game.State, moves []game.Move, rng *rand.Rand) game.Move {
	field := safety.Compute(s.Grid, s.ThreatPositions())
	bestScore := safety.Unreachable - 1
	var picks []game.Move
	for _, m := range moves {
		score := field.Score(s.Position.Apply(m))
		switch {
		case score > bestScore:
			bestScore = score
			picks = append(picks[:0], m)
		case score == bestScore:
			picks = append(picks, m)
		}
	}
	return picks[rng.Intn(len(picks))]
}
