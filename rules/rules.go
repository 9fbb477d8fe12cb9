// Package rules advances game snapshots one tick at a time.
package rules

import (
	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/safety"
)

// Simulator holds the threat model: when threats move and how each style
// moves.
type Simulator struct {
	Schedule Schedule
	Policies map[game.Style]Policy
}

// Default models bull and goldfish threats on the every-fifth-tick schedule.
func Default() *Simulator {
	return &Simulator{Schedule: EveryFifth, Policies: Policies}
}

// Extended also models shark and deer threats and the late-game speed-up.
func Extended() *Simulator {
	return &Simulator{Schedule: Accelerating, Policies: ExtendedPolicies()}
}

// ThreatsMove reports whether threats move when advancing from tick.
func (sim *Simulator) ThreatsMove(tick int) bool {
	if sim.Schedule == nil {
		return EveryFifth(tick)
	}
	return sim.Schedule(tick)
}

// Policy returns the policy for style, Stationary when unmodeled.
func (sim *Simulator) Policy(style game.Style) Policy {
	if p, ok := sim.Policies[style]; ok {
		return p
	}
	return Stationary
}

// Modeled reports whether style has a movement rule.
func (sim *Simulator) Modeled(style game.Style) bool {
	_, ok := sim.Policies[style]
	return ok
}

// Step returns the snapshot after the agent plays m and threats react.
// The input is left untouched. A nil sim uses Default.
func Step(s *game.State, m game.Move, sim *Simulator) *game.State {
	if sim == nil {
		sim = Default()
	}
	next := s.Clone()
	MoveAgent(next, m)
	if sim.ThreatsMove(next.Tick) {
		for i := range next.Threats {
			sim.Advance(next, i)
		}
	}
	EndTick(next)
	return next
}

// StepTo plays a move-to command: one step along the shortest path to target.
func StepTo(s *game.State, target game.Position, sim *Simulator) *game.State {
	m := game.Idle
	if d, ok := safety.FirstStep(s.Grid, s.Position, target); ok {
		m = d.Move()
	}
	return Step(s, m, sim)
}

// MoveAgent applies the agent's move to s in place. Moves into walls or off
// the board are no-ops.
func MoveAgent(s *game.State, m game.Move) {
	if !s.Alive {
		return
	}
	if next := s.Position.Apply(m); s.Grid.IsEmpty(next) {
		s.Position = next
	}
	checkCaught(s)
}

// MoveThreat applies m to threat i in place.
func MoveThreat(s *game.State, i int, m game.Move) {
	t := &s.Threats[i]
	if d, ok := m.Direction(); ok {
		if next := t.Position.Offset(d); s.Grid.IsEmpty(next) {
			t.Position = next
			t.Direction = d
		}
	}
	checkCaught(s)
}

// Predict returns the move threat i's policy makes from s. It advances the
// threat's random sequence in s.
func (sim *Simulator) Predict(s *game.State, i int) game.Move {
	t := &s.Threats[i]
	return sim.Policy(t.Style).Move(t, s.Grid, s.Seen)
}

// Advance moves threat i in place according to its policy.
func (sim *Simulator) Advance(s *game.State, i int) {
	MoveThreat(s, i, sim.Predict(s, i))
}

// EndTick closes the tick: threats see the agent's new position from now on.
func EndTick(s *game.State) {
	s.Tick++
	s.Seen = s.Position
}

func checkCaught(s *game.State) {
	if s.Alive && s.Caught() {
		s.Alive = false
	}
}

// LegalMoves lists the agent's candidate moves from `from`: passable
// directions not onto an avoided cell, in game.Directions order, then Idle.
func LegalMoves(grid *game.Grid, from game.Position, avoid []game.Position) []game.Move {
	moves := make([]game.Move, 0, 5)
	for _, d := range game.Directions {
		p := from.Offset(d)
		if !grid.IsEmpty(p) || containsPos(avoid, p) {
			continue
		}
		moves = append(moves, d.Move())
	}
	return append(moves, game.Idle)
}

// ThreatMoves lists passable directions for threat i, then Idle.
func ThreatMoves(s *game.State, i int) []game.Move {
	from := s.Threats[i].Position
	moves := make([]game.Move, 0, 5)
	for _, d := range s.Grid.Moves(from) {
		moves = append(moves, d.Move())
	}
	return append(moves, game.Idle)
}

// Terminal reports whether play from s is over: caught, dead or at horizon.
func Terminal(s *game.State, horizon int) bool {
	return !s.Alive || s.Caught() || s.Tick >= horizon
}

func containsPos(ps []game.Position, p game.Position) bool {
	for _, x := range ps {
		if x == p {
			return true
		}
	}
	return false
}
