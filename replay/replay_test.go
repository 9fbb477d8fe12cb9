package replay

import (
	"testing"

	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/protocol"
	"github.com/devnull/blitzbot/rules"
	"github.com/devnull/blitzbot/store"
	"github.com/stretchr/testify/require"
)

// session plays n ticks through sim and records them the way the agent would.
func session(t *testing.T, s *game.State, n int, sim *rules.Simulator) []store.Tick {
	t.Helper()
	plan := []protocol.Action{
		mustMove(t, game.MoveLeft),
		mustMove(t, game.MoveRight),
		protocol.MoveToAction(game.Position{X: 5, Y: 3}),
		{Type: protocol.ActionMoveDown},
	}
	ticks := make([]store.Tick, 0, n)
	for i := 0; i < n; i++ {
		a := plan[i%len(plan)]
		ticks = append(ticks, store.Tick{Line: i + 1, State: protocol.FromState(s, game.Position{}), Action: &a})
		s = Predict(s, &a, sim)
	}
	return ticks
}

func mustMove(t *testing.T, m game.Move) protocol.Action {
	t.Helper()
	a, ok := protocol.MoveAction(m)
	require.True(t, ok)
	return a
}

func start(style game.Style) *game.State {
	return &game.State{
		Tick:     1,
		Position: game.Position{X: 5, Y: 5},
		Alive:    true,
		Grid:     game.Open(7, 7),
		Seen:     protocol.NoPosition,
		Threats:  []game.Threat{game.NewThreat(game.Position{X: 0, Y: 0}, game.Right, style, "steady")},
	}
}

func TestVerifyCleanSession(t *testing.T) {
	sim := rules.Default()
	ticks := session(t, start(game.Bull), 12, sim)

	r, err := Verify(ticks, sim)
	require.NoError(t, err)
	require.True(t, r.Clean(), "%v", r.Mismatches)
	require.Equal(t, 12, r.Ticks)
	require.Equal(t, 11, r.Checked)
	require.Empty(t, r.Unmodeled)

	// The bull walked right on the two scheduled ticks.
	require.Equal(t, game.Position{X: 2, Y: 0}, ticks[11].State.Threats[0].Position)
}

func TestVerifyReportsThreatDrift(t *testing.T) {
	sim := rules.Default()
	ticks := session(t, start(game.Bull), 12, sim)
	ticks[11].State.Threats[0].Position = game.Position{X: 4, Y: 0}

	r, err := Verify(ticks, sim)
	require.NoError(t, err)
	require.Len(t, r.Mismatches, 1)
	m := r.Mismatches[0]
	require.Equal(t, 12, m.Tick)
	require.Equal(t, "position", m.Field)
	require.Equal(t, "(2,0)", m.Predicted)
	require.Equal(t, "(4,0)", m.Observed)
	require.Equal(t, 1, r.ByStyle[game.Bull])
	require.Contains(t, m.String(), "threat 0 (bull)")
}

func TestVerifyReportsAgentDrift(t *testing.T) {
	sim := rules.Default()
	ticks := session(t, start(game.Bull), 4, sim)
	ticks[2].State.YourCharacter.Position = game.Position{X: 0, Y: 6}

	r, err := Verify(ticks, sim)
	require.NoError(t, err)
	require.NotEmpty(t, r.Mismatches)
	require.Equal(t, "agent", r.Mismatches[0].Subject)
	require.Equal(t, 3, r.Mismatches[0].Tick)
	require.Empty(t, r.ByStyle)
}

func TestVerifySkipsUnmodeledStyles(t *testing.T) {
	sim := rules.Default()
	ticks := session(t, start(game.Owl), 6, sim)
	ticks[5].State.Threats[0].Position = game.Position{X: 3, Y: 3}

	r, err := Verify(ticks, sim)
	require.NoError(t, err)
	require.True(t, r.Clean())
	require.Equal(t, 5, r.Unmodeled[game.Owl])
}

func TestVerifyThreatCountChange(t *testing.T) {
	sim := rules.Default()
	ticks := session(t, start(game.Bull), 3, sim)
	ticks[2].State.Threats = nil

	r, err := Verify(ticks, sim)
	require.NoError(t, err)
	require.Len(t, r.Mismatches, 1)
	require.Equal(t, "count", r.Mismatches[0].Field)
}

func TestVerifyEmpty(t *testing.T) {
	_, err := Verify(nil, nil)
	require.Error(t, err)
}

func TestPredictWithoutActionIdles(t *testing.T) {
	s := start(game.Bull)
	next := Predict(s, nil, nil)
	require.Equal(t, s.Position, next.Position)
	require.Equal(t, 2, next.Tick)
}
