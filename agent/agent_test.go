package agent

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devnull/blitzbot/config"
	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/mcts"
	"github.com/devnull/blitzbot/protocol"
	"github.com/devnull/blitzbot/rules"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newAgent(cfg Config) *Agent {
	nop := zerolog.Nop()
	cfg.Logger = &nop
	if cfg.Seed == 0 {
		cfg.Seed = 3
	}
	return New(cfg)
}

// corridor is a 5x1 board with the agent in the middle and a goldfish at the
// left end.
func corridor(style game.Style) *game.State {
	return &game.State{
		Tick:     1,
		Position: game.Position{X: 2, Y: 0},
		Alive:    true,
		Grid:     game.Open(5, 1),
		Seen:     protocol.NoPosition,
		Threats:  []game.Threat{game.NewThreat(game.Position{X: 0, Y: 0}, game.Right, style, "calm")},
	}
}

func message(s *game.State) *protocol.TeamGameState {
	return protocol.FromState(s, game.Position{X: 2, Y: 0})
}

func TestDecideHeuristic(t *testing.T) {
	a := newAgent(Config{Strategy: Heuristic})
	require.Equal(t, Uninitialized, a.Phase())

	cmd, err := a.Decide(context.Background(), message(corridor(game.Goldfish)))
	require.NoError(t, err)
	require.Equal(t, protocol.TypeCommand, cmd.Type)
	require.Equal(t, 1, cmd.Tick)
	require.Len(t, cmd.Actions, 1)
	require.Equal(t, protocol.ActionMoveRight, cmd.Actions[0].Type)

	require.Equal(t, Emitted, a.Phase())
	sess := a.Session()
	require.NotNil(t, sess)
	require.Equal(t, 1, sess.Decisions)
	require.Equal(t, game.Position{X: 3, Y: 0}, sess.Predicted.Position)
	require.Equal(t, game.Position{X: 2, Y: 0}, sess.Spawn)
}

func TestDecideSearch(t *testing.T) {
	a := newAgent(Config{
		Strategy:      Search,
		SearchOptions: []mcts.Option{mcts.WithIterations(200), mcts.WithDuration(time.Second)},
	})
	cmd, err := a.Decide(context.Background(), message(corridor(game.Bull)))
	require.NoError(t, err)
	require.LessOrEqual(t, len(cmd.Actions), 1)
	require.NotNil(t, a.Session().Predicted)
	require.Equal(t, 2, a.Session().Predicted.Tick)
}

func TestUnknownStyle(t *testing.T) {
	t.Run("strict", func(t *testing.T) {
		a := newAgent(Config{Strict: true, Styles: []game.Style{game.Bull}})
		_, err := a.Decide(context.Background(), message(corridor(game.Goldfish)))
		require.ErrorIs(t, err, ErrUnknownStyle)
		require.Equal(t, Terminated, a.Phase())

		_, err = a.Decide(context.Background(), message(corridor(game.Bull)))
		require.ErrorIs(t, err, ErrTerminated)
	})
	t.Run("tolerant", func(t *testing.T) {
		a := newAgent(Config{Styles: []game.Style{game.Bull}})
		cmd, err := a.Decide(context.Background(), message(corridor(game.Style("kraken"))))
		require.NoError(t, err)
		require.Len(t, cmd.Actions, 1)
		require.True(t, a.Session().Fallback)
		require.Equal(t, Heuristic, a.Strategy())
	})
}

func TestDecodeFailure(t *testing.T) {
	bad := message(corridor(game.Bull))
	bad.Map.Tiles = nil

	a := newAgent(Config{Strategy: Heuristic})
	cmd, err := a.Decide(context.Background(), bad)
	require.NoError(t, err)
	require.Empty(t, cmd.Actions)
	require.NotNil(t, cmd.Actions)

	strict := newAgent(Config{Strategy: Heuristic, Strict: true})
	_, err = strict.Decide(context.Background(), bad)
	require.Error(t, err)
	require.Equal(t, Terminated, strict.Phase())
}

func TestDecisionPanicIsRecovered(t *testing.T) {
	boom := func(context.Context, *game.State, *protocol.TeamGameState) (decision, error) {
		panic("boom")
	}

	a := newAgent(Config{})
	a.choose = boom
	cmd, err := a.Decide(context.Background(), message(corridor(game.Bull)))
	require.NoError(t, err)
	require.Empty(t, cmd.Actions)
	require.Equal(t, 1, a.Session().Failures)
	require.Equal(t, 2, a.Session().Predicted.Tick, "an idle prediction keeps the drift check running")

	strict := newAgent(Config{Strict: true})
	strict.choose = boom
	_, err = strict.Decide(context.Background(), message(corridor(game.Bull)))
	require.ErrorContains(t, err, "boom")
}

func TestDecisionErrorIsReported(t *testing.T) {
	want := errors.New("no idea")
	a := newAgent(Config{Strict: true})
	a.choose = func(context.Context, *game.State, *protocol.TeamGameState) (decision, error) {
		return decision{}, want
	}
	_, err := a.Decide(context.Background(), message(corridor(game.Bull)))
	require.ErrorIs(t, err, want)
}

func TestPredictionDrift(t *testing.T) {
	sim := rules.Default()
	a := newAgent(Config{Strategy: Heuristic, Simulator: sim})
	s := corridor(game.Goldfish)

	_, err := a.Decide(context.Background(), message(s))
	require.NoError(t, err)

	// The server agrees with the prediction.
	next := a.Session().Predicted.Clone()
	_, err = a.Decide(context.Background(), message(next))
	require.NoError(t, err)
	require.Zero(t, a.Session().Mismatches)

	// The goldfish turns up somewhere the model did not expect.
	drifted := a.Session().Predicted.Clone()
	drifted.Threats[0].Position = game.Position{X: 1, Y: 0}
	_, err = a.Decide(context.Background(), message(drifted))
	require.NoError(t, err)
	require.Equal(t, 1, a.Session().Mismatches)
}

func TestDeadAgentIdles(t *testing.T) {
	s := corridor(game.Bull)
	s.Alive = false
	a := newAgent(Config{Strategy: Heuristic})
	cmd, err := a.Decide(context.Background(), message(s))
	require.NoError(t, err)
	require.Empty(t, cmd.Actions)
	require.Zero(t, a.Session().Decisions)
}

func TestScore(t *testing.T) {
	require.Equal(t, 5, Score(0))
	require.Equal(t, 505, Score(100))
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	ac := FromConfig(cfg)
	require.True(t, ac.Strict)
	require.Equal(t, Search, ac.Strategy)
	require.Len(t, ac.Styles, len(game.KnownStyles))
	require.False(t, ac.Simulator.Modeled(game.Shark))

	cfg.Server.Token = "remote"
	cfg.Agent.Extended = true
	cfg.Agent.Strategy = config.StrategyHeuristic
	ac = FromConfig(cfg)
	require.False(t, ac.Strict)
	require.Equal(t, Heuristic, ac.Strategy)
	require.True(t, ac.Simulator.Modeled(game.Shark))
}

func TestHeuristicWithoutDistanceTable(t *testing.T) {
	s := &game.State{
		Tick:     1,
		Position: game.Position{X: 2, Y: 2},
		Alive:    true,
		Grid:     game.Open(5, 5),
		Seen:     protocol.NoPosition,
		Threats:  []game.Threat{game.NewThreat(game.Position{X: 0, Y: 0}, game.Right, game.Bull, "")},
	}
	msg := protocol.FromState(s, s.Position)
	msg.YourCharacter.Distances = nil

	a := newAgent(Config{Strategy: Heuristic})
	cmd, err := a.Decide(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, cmd.Actions, 1)
	require.Equal(t, protocol.ActionMoveTo, cmd.Actions[0].Type)
	target, ok := cmd.Actions[0].Target()
	require.True(t, ok)
	require.Equal(t, game.Position{X: 4, Y: 4}, target)
	require.Contains(t, []game.Position{{X: 3, Y: 2}, {X: 2, Y: 3}}, a.Session().Predicted.Position)
}

func TestLastTickErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	a := New(Config{Strategy: Heuristic, Seed: 3, Logger: &logger})

	msg := message(corridor(game.Bull))
	msg.LastTickErrors = []string{"invalid action MOVE_SIDEWAYS"}
	_, err := a.Decide(context.Background(), msg)
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), "invalid action MOVE_SIDEWAYS")
}

func TestFromConfigEmptyStyles(t *testing.T) {
	cfg := config.Default()
	cfg.Agent.Styles = []string{}
	ac := FromConfig(cfg)
	require.Nil(t, ac.Styles)

	a := newAgent(ac)
	_, err := a.Decide(context.Background(), message(corridor(game.Owl)))
	require.NoError(t, err)
	require.NotEqual(t, Terminated, a.Phase())
}
