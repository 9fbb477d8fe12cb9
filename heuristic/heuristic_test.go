package heuristic

import (
	"math/rand"
	"testing"

	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/safety"
	"github.com/stretchr/testify/require"
)

func openState(w, h int, pos game.Position, threats ...game.Position) *game.State {
	s := &game.State{Tick: 1, Position: pos, Alive: true, Grid: game.Open(w, h)}
	for _, p := range threats {
		s.Threats = append(s.Threats, game.NewThreat(p, game.Up, game.Goldfish, ""))
	}
	return s
}

func TestChooseOpenBoardMovesAway(t *testing.T) {
	s := openState(5, 5, game.Position{X: 2, Y: 2}, game.Position{X: 0, Y: 0})
	seen := map[game.Move]bool{}
	for seed := int64(0); seed < 30; seed++ {
		d := Choose(s, nil, rand.New(rand.NewSource(seed)))
		require.False(t, d.HasTarget)
		require.Contains(t, []game.Move{game.MoveRight, game.MoveDown}, d.Move)
		seen[d.Move] = true
	}
	require.Len(t, seen, 2, "ties are broken by the rng")
}

func TestChooseNeverStepsOntoAdjacentThreat(t *testing.T) {
	s := openState(5, 5, game.Position{X: 2, Y: 2}, game.Position{X: 2, Y: 1})
	for seed := int64(0); seed < 20; seed++ {
		d := Choose(s, nil, rand.New(rand.NewSource(seed)))
		require.NotEqual(t, game.MoveUp, d.Move)
		require.NotEqual(t, game.Idle, d.Move)
	}
}

func TestChooseBoxedIn(t *testing.T) {
	s := &game.State{Position: game.Position{X: 1, Y: 1}, Alive: true, Grid: game.ParseGrid(
		"###",
		"#.#",
		"###",
	)}
	require.Equal(t, Decision{Move: game.Idle}, Choose(s, nil, nil))
}

func TestChooseMovesToSafestReachableCell(t *testing.T) {
	s := openState(5, 5, game.Position{X: 2, Y: 2}, game.Position{X: 0, Y: 0})
	d := Choose(s, safety.Distances(s.Grid, s.Position), nil)
	require.True(t, d.HasTarget)
	require.Equal(t, game.Position{X: 4, Y: 4}, d.Target)
}

func TestChooseStaysOnSafestCell(t *testing.T) {
	g := game.ParseGrid(
		"......",
		"######",
	)
	s := &game.State{Position: game.Position{X: 5, Y: 0}, Alive: true, Grid: g,
		Threats: []game.Threat{game.NewThreat(game.Position{X: 0, Y: 0}, game.Up, game.Hawk, "")}}

	// Already on the safest cell: no target, step greedily instead.
	d := Choose(s, safety.Distances(g, s.Position), nil)
	require.False(t, d.HasTarget)
	require.Equal(t, game.MoveLeft, d.Move)
}

func TestChooseNearThreatIgnoresDistances(t *testing.T) {
	s := openState(5, 5, game.Position{X: 1, Y: 1}, game.Position{X: 0, Y: 0})
	d := Choose(s, safety.Distances(s.Grid, s.Position), nil)
	require.False(t, d.HasTarget)
	require.Contains(t, []game.Move{game.MoveRight, game.MoveDown}, d.Move)
}

func TestSafestReachableUsesDistanceTies(t *testing.T) {
	g := game.Open(5, 1)
	field := safety.Compute(g, nil)
	dist := [][]int{{4}, {3}, {2}, {1}, {0}}
	target, ok := safestReachable(g, field, dist)
	require.True(t, ok)
	require.Equal(t, game.Position{X: 4, Y: 0}, target)

	dist = [][]int{{safety.Unreachable}, {safety.Unreachable}, {1}, {0}, {safety.Unreachable}}
	target, ok = safestReachable(g, field, dist)
	require.True(t, ok)
	require.Equal(t, game.Position{X: 3, Y: 0}, target)
}
