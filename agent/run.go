package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/devnull/blitzbot/client"
	"github.com/devnull/blitzbot/protocol"
)

// Conn is the server side of a session. *client.Conn implements it.
type Conn interface {
	Receive(ctx context.Context) (*protocol.TeamGameState, []byte, error)
	Send(ctx context.Context, cmd protocol.Command) error
}

// Recorder keeps the session's replay. *store.ReplayWriter implements it.
type Recorder interface {
	Write(gameMessage []byte, cmd protocol.Command) error
	Close() error
}

// Outcome summarises a finished session.
type Outcome struct {
	Ticks      int
	LastTick   int
	Score      int
	Mismatches int
	Failures   int
}

// Score is the final score reported for a session that ended after tick.
func Score(tick int) int {
	return (tick + 1) * 5
}

// Run plays ticks from conn until the server closes the session. Every tick
// is answered and then recorded. rec may be nil.
func (a *Agent) Run(ctx context.Context, conn Conn, rec Recorder) (out Outcome, err error) {
	defer func() {
		a.Terminate()
		if rec != nil {
			if cerr := rec.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close recorder: %w", cerr)
			}
		}
	}()

	for {
		msg, raw, err := conn.Receive(ctx)
		if errors.Is(err, client.ErrClosed) {
			break
		}
		if err != nil {
			return a.outcome(out), fmt.Errorf("receive: %w", err)
		}

		cmd, err := a.Decide(ctx, msg)
		if err != nil {
			return a.outcome(out), err
		}
		if err := conn.Send(ctx, cmd); err != nil {
			if errors.Is(err, client.ErrClosed) {
				break
			}
			return a.outcome(out), fmt.Errorf("send tick %d: %w", msg.Tick, err)
		}
		if rec != nil {
			if err := rec.Write(raw, cmd); err != nil {
				if a.cfg.Strict {
					return a.outcome(out), fmt.Errorf("record tick %d: %w", msg.Tick, err)
				}
				a.log.Error().Err(err).Int("tick", msg.Tick).Msg("replay write failed")
			}
		}
		out.Ticks++
		out.LastTick = msg.Tick
	}

	out = a.outcome(out)
	a.log.Info().
		Int("ticks", out.Ticks).
		Int("last_tick", out.LastTick).
		Int("score", out.Score).
		Int("mismatches", out.Mismatches).
		Msg("session closed")
	return out, nil
}

func (a *Agent) outcome(out Outcome) Outcome {
	if out.Ticks > 0 {
		out.Score = Score(out.LastTick)
	}
	if a.session != nil {
		out.Mismatches = a.session.Mismatches
		out.Failures = a.session.Failures
	}
	return out
}
