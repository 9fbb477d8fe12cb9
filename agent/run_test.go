package agent_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/devnull/blitzbot/agent"
	"github.com/devnull/blitzbot/client"
	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/protocol"
	"github.com/devnull/blitzbot/replay"
	"github.com/devnull/blitzbot/rules"
	"github.com/devnull/blitzbot/selfplay"
	"github.com/devnull/blitzbot/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func quiet(cfg agent.Config) *agent.Agent {
	nop := zerolog.Nop()
	cfg.Logger = &nop
	cfg.Seed = 11
	return agent.New(cfg)
}

func board() *game.State {
	return &game.State{
		Tick:     1,
		Position: game.Position{X: 3, Y: 3},
		Alive:    true,
		Grid: game.ParseGrid(
			"......",
			".#....",
			"......",
			"......",
			"....#.",
			"......",
		),
		Threats: []game.Threat{game.NewThreat(game.Position{X: 0, Y: 0}, game.Right, game.Bull, "angry")},
	}
}

func TestRunRecordsEveryTick(t *testing.T) {
	sim := rules.Default()
	srv := selfplay.NewServer("run", board(), game.Position{X: 3, Y: 3}, sim, 8)
	rec, err := store.OpenReplayWriter(filepath.Join(t.TempDir(), "run.jsonl"))
	require.NoError(t, err)

	a := quiet(agent.Config{Strategy: agent.Heuristic, Simulator: sim})
	out, err := a.Run(context.Background(), srv, rec)
	require.NoError(t, err)
	require.Equal(t, agent.Terminated, a.Phase())
	require.Equal(t, 8, out.Ticks)
	require.Equal(t, 8, out.LastTick)
	require.Equal(t, agent.Score(8), out.Score)
	require.Zero(t, out.Mismatches)

	// The recorder was closed by Run.
	require.Error(t, rec.Write([]byte(`{}`), protocol.NewCommand(9, nil)))

	ticks, err := store.LoadReplay(rec.Path())
	require.NoError(t, err)
	require.Len(t, ticks, 8)

	report, err := replay.Verify(ticks, sim)
	require.NoError(t, err)
	require.True(t, report.Clean(), "%v", report.Mismatches)
}

type closedConn struct{}

func (closedConn) Receive(context.Context) (*protocol.TeamGameState, []byte, error) {
	return nil, nil, client.ErrClosed
}

func (closedConn) Send(context.Context, protocol.Command) error { return nil }

func TestRunImmediateClose(t *testing.T) {
	a := quiet(agent.Config{})
	out, err := a.Run(context.Background(), closedConn{}, nil)
	require.NoError(t, err)
	require.Zero(t, out.Ticks)
	require.Zero(t, out.Score)
}

type brokenConn struct{ closedConn }

func (brokenConn) Receive(context.Context) (*protocol.TeamGameState, []byte, error) {
	return nil, nil, errors.New("network down")
}

func TestRunReceiveError(t *testing.T) {
	a := quiet(agent.Config{})
	_, err := a.Run(context.Background(), brokenConn{}, nil)
	require.ErrorContains(t, err, "network down")
}

func TestRunStrictStopsOnUnknownStyle(t *testing.T) {
	s := board()
	s.Threats[0].Style = "kraken"
	srv := selfplay.NewServer("strict", s, s.Position, nil, 5)

	a := quiet(agent.Config{Strict: true})
	out, err := a.Run(context.Background(), srv, nil)
	require.ErrorIs(t, err, agent.ErrUnknownStyle)
	require.Zero(t, out.Ticks)
}
