// Package agent turns server ticks into commands: it keeps the session's
// model of the game, runs the decision search (or the heuristic) under the
// tick budget and checks the simulator's predictions against what the
// server reports next.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"time"

	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/heuristic"
	"github.com/devnull/blitzbot/mcts"
	"github.com/devnull/blitzbot/protocol"
	"github.com/devnull/blitzbot/replay"
	"github.com/devnull/blitzbot/rules"
	"github.com/devnull/blitzbot/safety"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownStyle = errors.New("unknown threat style")
	ErrTerminated   = errors.New("agent terminated")
)

// Phase is the agent's position in its per-tick cycle.
type Phase int

const (
	Uninitialized Phase = iota
	Ready
	Deciding
	Emitted
	Terminated
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Deciding:
		return "deciding"
	case Emitted:
		return "emitted"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

type Strategy string

const (
	Search    Strategy = "search"
	Heuristic Strategy = "heuristic"
)

type Config struct {
	// Styles the agent accepts. Nil means game.KnownStyles.
	Styles []game.Style
	// Personalities the agent recognises. Empty accepts any.
	Personalities []string
	// Strict makes unknown styles and decision failures fatal.
	Strict   bool
	Strategy Strategy
	// Simulator is the threat model. Nil means rules.Default.
	Simulator     *rules.Simulator
	SearchOptions []mcts.Option
	// Seed fixes the search and heuristic tie-breaking. Zero seeds from the
	// clock.
	Seed   int64
	Logger *zerolog.Logger
}

// Session is the agent's model of the current game, created on the first
// tick.
type Session struct {
	Spawn game.Position
	// State is the last observed snapshot.
	State *game.State
	// Predicted is the snapshot expected next, given the emitted action.
	Predicted *game.State
	// Fallback is set when the search cannot be trusted for this game and
	// the heuristic decides instead.
	Fallback   bool
	Decisions  int
	Failures   int
	Mismatches int
}

// decision is what a strategy produced for one tick.
type decision struct {
	action    *protocol.Action
	predicted *game.State
}

type Agent struct {
	cfg     Config
	log     zerolog.Logger
	sim     *rules.Simulator
	search  *mcts.MCTS
	rng     *rand.Rand
	styles  map[game.Style]bool
	persona map[string]bool
	warned  map[string]bool

	phase   Phase
	session *Session

	choose func(ctx context.Context, s *game.State, msg *protocol.TeamGameState) (decision, error)
}

func New(cfg Config) *Agent {
	if cfg.Strategy == "" {
		cfg.Strategy = Search
	}
	if cfg.Styles == nil {
		cfg.Styles = game.KnownStyles
	}
	sim := cfg.Simulator
	if sim == nil {
		sim = rules.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	opts := append([]mcts.Option{mcts.WithSeed(seed)}, cfg.SearchOptions...)
	a := &Agent{
		cfg:     cfg,
		log:     logger.With().Str("component", "agent").Logger(),
		sim:     sim,
		search:  mcts.New(sim, opts...),
		rng:     rand.New(rand.NewSource(seed)),
		styles:  make(map[game.Style]bool, len(cfg.Styles)),
		persona: make(map[string]bool, len(cfg.Personalities)),
		warned:  map[string]bool{},
	}
	for _, s := range cfg.Styles {
		a.styles[s] = true
	}
	for _, p := range cfg.Personalities {
		a.persona[p] = true
	}
	a.choose = a.decide
	return a
}

func (a *Agent) Phase() Phase       { return a.phase }
func (a *Agent) Session() *Session  { return a.session }
func (a *Agent) Config() Config     { return a.cfg }
func (a *Agent) Strategy() Strategy { return a.strategy() }

// Terminate ends the agent. Further ticks are refused.
func (a *Agent) Terminate() {
	a.transition(Terminated)
}

func (a *Agent) transition(to Phase) {
	if a.phase == to {
		return
	}
	a.log.Trace().Stringer("from", a.phase).Stringer("to", to).Msg("phase")
	a.phase = to
}

// Decide produces the command for one tick.
//
// In tolerant mode a failed decision is logged and answered with no action;
// in strict mode the error is returned.
func (a *Agent) Decide(ctx context.Context, msg *protocol.TeamGameState) (protocol.Command, error) {
	if a.phase == Terminated {
		return protocol.Command{}, ErrTerminated
	}
	empty := protocol.NewCommand(msg.Tick, nil)

	var prev *game.State
	if a.session != nil {
		prev = a.session.Predicted
		if prev == nil {
			prev = a.session.State
		}
	}
	s, err := msg.State(prev)
	if err != nil {
		return a.fail(empty, fmt.Errorf("tick %d: decode state: %w", msg.Tick, err))
	}

	if a.session == nil {
		a.session = &Session{Spawn: msg.YourCharacter.SpawnPoint}
		a.log.Info().
			Int("tick", msg.Tick).
			Int("width", s.Grid.Width).
			Int("height", s.Grid.Height).
			Int("threats", len(s.Threats)).
			Msg("session started")
	}
	a.transition(Ready)
	if len(msg.LastTickErrors) > 0 {
		a.log.Warn().Int("tick", msg.Tick).Strs("errors", msg.LastTickErrors).Msg("server reported errors")
	}

	if err := a.checkStyles(s); err != nil {
		return protocol.Command{}, err
	}
	a.checkPrediction(s)
	a.session.State = s
	a.session.Predicted = nil

	if !s.Alive {
		a.log.Info().Int("tick", msg.Tick).Msg("caught, idling")
		a.transition(Emitted)
		return empty, nil
	}

	a.transition(Deciding)
	d, err := a.safeChoose(ctx, s, msg)
	if err != nil {
		a.session.Predicted = rules.Step(s, game.Idle, a.sim)
		return a.fail(empty, fmt.Errorf("tick %d: %w", msg.Tick, err))
	}
	a.session.Decisions++
	a.session.Predicted = d.predicted
	a.transition(Emitted)
	return protocol.NewCommand(msg.Tick, d.action), nil
}

func (a *Agent) fail(empty protocol.Command, err error) (protocol.Command, error) {
	if a.session != nil {
		a.session.Failures++
	}
	if a.cfg.Strict {
		a.transition(Terminated)
		return protocol.Command{}, err
	}
	a.log.Error().Err(err).Msg("decision failed, sending no action")
	a.transition(Emitted)
	return empty, nil
}

// safeChoose runs the strategy, converting a panic into an error.
func (a *Agent) safeChoose(ctx context.Context, s *game.State, msg *protocol.TeamGameState) (d decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decision panic: %v\n%s", r, debug.Stack())
		}
	}()
	return a.choose(ctx, s, msg)
}

func (a *Agent) strategy() Strategy {
	if a.session != nil && a.session.Fallback {
		return Heuristic
	}
	return a.cfg.Strategy
}

func (a *Agent) decide(ctx context.Context, s *game.State, msg *protocol.TeamGameState) (decision, error) {
	switch a.strategy() {
	case Heuristic:
		return a.heuristic(s, msg), nil
	case Search:
		res, err := a.search.Search(ctx, s)
		if err != nil {
			a.log.Warn().Err(err).Int("tick", msg.Tick).Msg("search failed, using heuristic")
			return a.heuristic(s, msg), nil
		}
		a.log.Debug().
			Int("tick", msg.Tick).
			Int("iterations", res.Iterations).
			Dur("elapsed", res.Elapsed).
			Stringer("move", res.Move).
			Msg("search")
		return a.step(s, res.Move), nil
	}
	return decision{}, fmt.Errorf("unknown strategy %q", a.cfg.Strategy)
}

func (a *Agent) heuristic(s *game.State, msg *protocol.TeamGameState) decision {
	distances := msg.YourCharacter.DistanceTable()
	if distances == nil {
		distances = safety.Distances(s.Grid, s.Position)
	}
	h := heuristic.Choose(s, distances, a.rng)
	if h.HasTarget {
		act := protocol.MoveToAction(h.Target)
		return decision{action: &act, predicted: rules.StepTo(s, h.Target, a.sim)}
	}
	return a.step(s, h.Move)
}

func (a *Agent) step(s *game.State, m game.Move) decision {
	d := decision{predicted: rules.Step(s, m, a.sim)}
	if act, ok := protocol.MoveAction(m); ok {
		d.action = &act
	}
	return d
}

// checkStyles rejects unknown threat styles in strict mode. In tolerant mode
// it warns once per style and hands the game to the heuristic, whose
// distance field does not depend on how threats move.
func (a *Agent) checkStyles(s *game.State) error {
	for _, t := range s.Threats {
		if !a.styles[t.Style] {
			if a.cfg.Strict {
				a.transition(Terminated)
				return fmt.Errorf("%w: %q", ErrUnknownStyle, t.Style)
			}
			if a.warnOnce("style:" + string(t.Style)) {
				a.log.Warn().Str("style", string(t.Style)).Msg("unknown threat style, falling back to heuristic")
			}
			a.session.Fallback = true
		}
		if len(a.persona) > 0 && !a.persona[t.Personality] && a.warnOnce("personality:"+t.Personality) {
			a.log.Warn().Str("personality", t.Personality).Msg("unknown threat personality")
		}
	}
	return nil
}

func (a *Agent) warnOnce(key string) bool {
	if a.warned[key] {
		return false
	}
	a.warned[key] = true
	return true
}

func (a *Agent) checkPrediction(s *game.State) {
	if a.session.Predicted == nil {
		return
	}
	diff := replay.Compare(a.session.Predicted, s, a.sim)
	if len(diff) == 0 {
		return
	}
	a.session.Mismatches++
	ev := a.log.Warn().Int("tick", s.Tick).Int("mismatches", len(diff))
	ev.Str("first", diff[0].String()).Msg("prediction drift")
}
