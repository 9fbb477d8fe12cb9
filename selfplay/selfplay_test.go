package selfplay

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/devnull/blitzbot/agent"
	"github.com/devnull/blitzbot/client"
	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/protocol"
	"github.com/devnull/blitzbot/rules"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func writeMap(t *testing.T, dir, name string, s *game.State) {
	t.Helper()
	b, err := json.Marshal(protocol.FromState(s, s.Position))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), b, 0o644))
}

func emptyMap() *game.State {
	return &game.State{Tick: 1, Position: game.Position{X: 2, Y: 2}, Alive: true, Grid: game.Open(5, 5)}
}

func quietAgent() *agent.Agent {
	nop := zerolog.Nop()
	return agent.New(agent.Config{Strategy: agent.Heuristic, Seed: 7, Logger: &nop})
}

func TestLoadMaps(t *testing.T) {
	dir := t.TempDir()
	writeMap(t, dir, "b-open", emptyMap())
	writeMap(t, dir, "a-walls", &game.State{Tick: 1, Alive: true, Grid: game.ParseGrid(
		"..#",
		"...",
	)})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))

	maps, err := LoadMaps(dir)
	require.NoError(t, err)
	require.Len(t, maps, 2)
	require.Equal(t, "a-walls", maps[0].Name)
	require.Equal(t, "b-open", maps[1].Name)

	s, err := maps[0].State()
	require.NoError(t, err)
	require.False(t, s.Grid.IsEmpty(game.Position{X: 2, Y: 0}))
}

func TestLoadMapsErrors(t *testing.T) {
	_, err := LoadMaps(t.TempDir())
	require.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))
	_, err = LoadMaps(dir)
	require.Error(t, err)
}

func TestServerEndsWhenCaught(t *testing.T) {
	ctx := context.Background()
	s := &game.State{
		Tick:     6,
		Position: game.Position{X: 1, Y: 0},
		Alive:    true,
		Grid:     game.Open(2, 1),
		Threats:  []game.Threat{game.NewThreat(game.Position{X: 0, Y: 0}, game.Right, game.Bull, "")},
	}
	srv := NewServer("s", s, s.Position, rules.Default(), 0)

	require.Error(t, srv.Send(ctx, protocol.NewCommand(6, nil)), "send before receive")

	msg, raw, err := srv.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, msg.Tick)
	require.True(t, json.Valid(raw))

	require.Error(t, srv.Send(ctx, protocol.NewCommand(5, nil)), "wrong tick")

	left, _ := protocol.MoveAction(game.MoveLeft)
	require.NoError(t, srv.Send(ctx, protocol.NewCommand(6, &left)))
	require.False(t, srv.State().Alive)

	_, _, err = srv.Receive(ctx)
	require.ErrorIs(t, err, client.ErrClosed)

	rows := srv.Rows()
	require.Len(t, rows, 1)
	require.Equal(t, protocol.ActionMoveLeft, rows[0].Action)
	require.Equal(t, "selfplay", rows[0].Source)
}

func TestPlayRunsToMaxTicks(t *testing.T) {
	m := Map{Name: "open", Message: protocol.FromState(emptyMap(), game.Position{X: 2, Y: 2})}

	res, err := Play(context.Background(), m, quietAgent(), rules.Default(), 10)
	require.NoError(t, err)
	require.Equal(t, "open", res.Map)
	require.Equal(t, 10, res.Ticks)
	require.Equal(t, 55, res.Score)
	require.True(t, res.Survived)
	require.Zero(t, res.Mismatches)
	require.Len(t, res.Rows, 10)
	require.Equal(t, int32(10), res.Rows[9].Tick)
	require.NotEmpty(t, res.SessionID)
}

func TestPlayWithThreatsHasNoPredictionDrift(t *testing.T) {
	s := emptyMap()
	s.Threats = []game.Threat{
		game.NewThreat(game.Position{X: 0, Y: 0}, game.Right, game.Bull, ""),
		game.NewThreat(game.Position{X: 4, Y: 4}, game.Up, game.Goldfish, ""),
	}
	m := Map{Name: "threats", Message: protocol.FromState(s, s.Position)}

	res, err := Play(context.Background(), m, quietAgent(), rules.Default(), 30)
	require.NoError(t, err)
	require.Zero(t, res.Mismatches)
	require.LessOrEqual(t, res.Ticks, 30)
}

func TestRunAll(t *testing.T) {
	m := Map{Name: "open", Message: protocol.FromState(emptyMap(), game.Position{X: 2, Y: 2})}
	maps := []Map{m, m, m}
	maps[1].Name = "second"

	var mu sync.Mutex
	var updates []Update
	results := RunAll(context.Background(), maps, 2, quietAgent, nil, 5, func(u Update) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, u)
	})

	require.Len(t, updates, 3)
	require.Len(t, results, 3)
	require.Equal(t, "second", results[1].Map)
	for _, r := range results {
		require.Equal(t, 5, r.Ticks)
	}
	for _, u := range updates {
		require.NoError(t, u.Err)
	}
}
