// Package mcts chooses the agent's move with a time-boxed Monte-Carlo tree
// search over alternating agent and threat turns.
package mcts

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/rules"
	"github.com/devnull/blitzbot/safety"
)

const (
	DefaultDuration = 250 * time.Millisecond
	DefaultHorizon  = 20
)

var DefaultExploration = math.Sqrt2

type Option func(m *MCTS)

type MCTS struct {
	sim         *rules.Simulator
	duration    time.Duration
	horizon     int
	exploration float64
	iterations  int
	rollout     Rollout
	modeled     bool
	rng         *rand.Rand
}

// WithDuration sets the wall-clock budget of a search.
func WithDuration(duration time.Duration) Option {
	return func(m *MCTS) {
		if duration > 0 {
			m.duration = duration
		}
	}
}

// WithHorizon sets how many ticks past the root playouts run.
func WithHorizon(ticks int) Option {
	return func(m *MCTS) {
		if ticks > 0 {
			m.horizon = ticks
		}
	}
}

func WithExploration(c float64) Option {
	return func(m *MCTS) {
		if c >= 0 {
			m.exploration = c
		}
	}
}

func WithSeed(seed int64) Option {
	return func(m *MCTS) {
		m.rng = rand.New(rand.NewSource(seed))
	}
}

func WithRollout(r Rollout) Option {
	return func(m *MCTS) {
		if r != nil {
			m.rollout = r
		}
	}
}

// WithIterations caps the number of iterations. The duration still applies.
func WithIterations(n int) Option {
	return func(m *MCTS) {
		if n > 0 {
			m.iterations = n
		}
	}
}

// WithModeledThreats replaces the adversarial branching of threats whose
// style the simulator models with the single move their policy predicts.
func WithModeledThreats() Option {
	return func(m *MCTS) {
		m.modeled = true
	}
}

func New(sim *rules.Simulator, options ...Option) *MCTS {
	if sim == nil {
		sim = rules.Default()
	}
	m := &MCTS{
		sim:         sim,
		duration:    DefaultDuration,
		horizon:     DefaultHorizon,
		exploration: DefaultExploration,
		rollout:     RandomRollout,
	}
	for _, option := range options {
		option(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return m
}

// Result is the outcome of one search.
type Result struct {
	Move       game.Move
	Iterations int
	Elapsed    time.Duration
	Children   []ChildSummary
}

var ErrNoState = errors.New("mcts: state has no grid")

// tree is the per-search working set.
type tree struct {
	*MCTS
	root        *node
	rootTick    int
	horizonTick int
	rewards     bounds
	c2          float64
}

// Search explores from s until the budget, the iteration cap or ctx runs out
// and returns the root move with the most visits.
func (m *MCTS) Search(ctx context.Context, s *game.State) (Result, error) {
	start := time.Now()
	if s == nil || s.Grid == nil {
		return Result{Move: game.Idle}, ErrNoState
	}
	t := &tree{
		MCTS:        m,
		rootTick:    s.Tick,
		horizonTick: s.Tick + m.horizon,
		c2:          m.exploration * m.exploration,
	}
	t.root = t.newNode(nil, game.Idle, s.Clone(), 0)
	if t.root.terminal {
		return Result{Move: game.Idle, Elapsed: time.Since(start)}, nil
	}

	iterations := 0
	for {
		if m.iterations > 0 && iterations >= m.iterations {
			break
		}
		if time.Since(start) >= m.duration {
			break
		}
		select {
		case <-ctx.Done():
			if iterations == 0 {
				return Result{Move: game.Idle, Elapsed: time.Since(start)}, ctx.Err()
			}
			return t.result(iterations, start), nil
		default:
		}

		leaf := t.selectThenExpand()
		t.backup(leaf, t.simulate(leaf))
		iterations++
	}
	return t.result(iterations, start), nil
}

func (t *tree) result(iterations int, start time.Time) Result {
	res := Result{Move: game.Idle, Iterations: iterations, Elapsed: time.Since(start)}
	for _, c := range t.root.children {
		res.Children = append(res.Children, ChildSummary{Move: c.move, Visits: c.visits, Mean: c.mean()})
	}
	if b := best(t.root.children); b != nil {
		res.Move = b.move
	}
	return res
}

func (t *tree) newNode(parent *node, move game.Move, s *game.State, turn int) *node {
	n := &node{state: s, turn: turn, move: move, parent: parent}
	n.terminal = !s.Alive || (turn == 0 && s.Tick >= t.horizonTick)
	if !n.terminal {
		n.untried = t.actions(s, turn)
	}
	return n
}

// actions lists the moves available on a turn.
func (t *tree) actions(s *game.State, turn int) []game.Move {
	if turn == 0 {
		return rules.LegalMoves(s.Grid, s.Position, s.ThreatPositions())
	}
	i := turn - 1
	if t.predicts(s, i) {
		return []game.Move{t.sim.Predict(s.Clone(), i)}
	}
	return rules.ThreatMoves(s, i)
}

func (t *tree) predicts(s *game.State, i int) bool {
	return t.modeled && t.sim.Modeled(s.Threats[i].Style)
}

// play applies mv for the mover on turn to s in place and returns the next
// turn.
func (t *tree) play(s *game.State, turn int, mv game.Move) int {
	if turn == 0 {
		rules.MoveAgent(s, mv)
		if !s.Alive {
			return 0
		}
		if len(s.Threats) > 0 && t.sim.ThreatsMove(s.Tick) {
			return 1
		}
		rules.EndTick(s)
		return 0
	}

	i := turn - 1
	if t.predicts(s, i) {
		t.sim.Advance(s, i)
	} else {
		rules.MoveThreat(s, i, mv)
	}
	if !s.Alive {
		return turn
	}
	if turn == len(s.Threats) {
		rules.EndTick(s)
		return 0
	}
	return turn + 1
}

func (t *tree) selectThenExpand() *node {
	n := t.root
	for !n.terminal && len(n.untried) == 0 && len(n.children) > 0 {
		n = t.selectChild(n)
	}
	if n.terminal || len(n.untried) == 0 {
		return n
	}

	k := t.rng.Intn(len(n.untried))
	mv := n.untried[k]
	n.untried[k] = n.untried[len(n.untried)-1]
	n.untried = n.untried[:len(n.untried)-1]

	s := n.state.Clone()
	turn := t.play(s, n.turn, mv)
	child := t.newNode(n, mv, s, turn)
	n.children = append(n.children, child)
	return child
}

// selectChild applies UCB1. The agent maximises the normalised reward and
// threats minimise it.
func (t *tree) selectChild(n *node) *node {
	c2LnN := t.c2 * math.Log(float64(n.visits))
	var out *node
	bestScore := math.Inf(-1)
	for _, c := range n.children {
		q := t.rewards.normalize(c.mean())
		if n.turn != 0 {
			q = 1 - q
		}
		if score := ucb1(q, c.visits, c2LnN); out == nil || score > bestScore {
			out, bestScore = c, score
		}
	}
	return out
}

// simulate plays from n to a terminal state or the horizon and scores it.
func (t *tree) simulate(n *node) float64 {
	s := n.state
	if !n.terminal {
		s = s.Clone()
		turn := n.turn
		for s.Alive && !(turn == 0 && s.Tick >= t.horizonTick) {
			var mv game.Move
			if turn == 0 {
				mv = t.rollout(s, rules.LegalMoves(s.Grid, s.Position, s.ThreatPositions()), t.rng)
			} else if !t.predicts(s, turn-1) {
				moves := rules.ThreatMoves(s, turn-1)
				mv = moves[t.rng.Intn(len(moves))]
			}
			turn = t.play(s, turn, mv)
		}
	}
	return t.reward(s)
}

// reward is the ticks survived past the root, plus the final distance to
// the nearest threat when the horizon is reached alive.
func (t *tree) reward(s *game.State) float64 {
	r := float64(s.Tick - t.rootTick)
	if s.Alive && s.Tick >= t.horizonTick {
		r += float64(safety.Compute(s.Grid, s.ThreatPositions()).Score(s.Position))
	}
	return r
}

func (t *tree) backup(n *node, reward float64) {
	t.rewards.observe(reward)
	for ; n != nil; n = n.parent {
		n.visits++
		n.valueSum += reward
	}
}
