package selfplay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/devnull/blitzbot/client"
	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/protocol"
	"github.com/devnull/blitzbot/replay"
	"github.com/devnull/blitzbot/rules"
	"github.com/devnull/blitzbot/store"
)

// Server plays the game server's part for one offline game: it owns the true
// state and advances it with the simulator when a command arrives. It
// satisfies agent.Conn.
type Server struct {
	mu        sync.Mutex
	sim       *rules.Simulator
	state     *game.State
	spawn     game.Position
	maxTicks  int
	sessionID string
	rows      []store.ArchiveTickRow
	pending   bool
	ended     bool
}

// NewServer starts a game from initial. The game ends when the agent is
// caught or maxTicks ticks have been played; maxTicks <= 0 means no limit.
func NewServer(sessionID string, initial *game.State, spawn game.Position, sim *rules.Simulator, maxTicks int) *Server {
	if sim == nil {
		sim = rules.Default()
	}
	return &Server{
		sim:       sim,
		state:     initial.Clone(),
		spawn:     spawn,
		maxTicks:  maxTicks,
		sessionID: sessionID,
	}
}

// Receive returns the current tick, or client.ErrClosed once the game ended.
func (s *Server) Receive(ctx context.Context) (*protocol.TeamGameState, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, nil, fmt.Errorf("game over at tick %d: %w", s.state.Tick, client.ErrClosed)
	}
	msg := protocol.FromState(s.state, s.spawn)
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, nil, fmt.Errorf("encode tick: %w", err)
	}
	s.pending = true
	return msg, raw, nil
}

// Send applies the command for the current tick.
func (s *Server) Send(ctx context.Context, cmd protocol.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return client.ErrClosed
	}
	if !s.pending {
		return fmt.Errorf("command for tick %d sent before receiving it", cmd.Tick)
	}
	if cmd.Tick != s.state.Tick {
		return fmt.Errorf("command for tick %d, current tick is %d", cmd.Tick, s.state.Tick)
	}
	if len(cmd.Actions) > 1 {
		return fmt.Errorf("tick %d: %d actions", cmd.Tick, len(cmd.Actions))
	}

	var action *protocol.Action
	row := store.NewArchiveRow(s.sessionID, "selfplay", s.state)
	if len(cmd.Actions) == 1 {
		a := cmd.Actions[0]
		if err := a.Validate(); err != nil {
			return fmt.Errorf("tick %d: %w", cmd.Tick, err)
		}
		action = &a
		row.Action = a.Type
		if p, ok := a.Target(); ok {
			row.TargetX, row.TargetY = int32(p.X), int32(p.Y)
		}
	}
	s.rows = append(s.rows, row)

	s.state = replay.Predict(s.state, action, s.sim)
	s.pending = false
	if !s.state.Alive || (s.maxTicks > 0 && len(s.rows) >= s.maxTicks) {
		s.ended = true
	}
	return nil
}

// State returns a copy of the true state.
func (s *Server) State() *game.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Rows returns the archive rows of the ticks played so far.
func (s *Server) Rows() []store.ArchiveTickRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.ArchiveTickRow(nil), s.rows...)
}
