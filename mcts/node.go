package mcts

import (
	"math"

	"github.com/devnull/blitzbot/game"
)

// node is one decision in the alternating tree. turn 0 means the agent picks
// the next move; turn i > 0 means threat i-1 does. Threat turns only appear
// on ticks where threats move.
type node struct {
	state    *game.State
	turn     int
	move     game.Move
	parent   *node
	children []*node
	untried  []game.Move
	terminal bool

	visits   int
	valueSum float64
}

func (n *node) mean() float64 {
	if n.visits == 0 {
		return 0
	}
	return n.valueSum / float64(n.visits)
}

func ucb1(mean float64, visits int, c2LnN float64) float64 {
	if visits == 0 {
		return math.Inf(1)
	}
	return mean + math.Sqrt(c2LnN/float64(visits))
}

// bounds tracks the observed reward range so UCB works on [0,1] values
// whatever the board size.
type bounds struct {
	lo, hi float64
	seen   bool
}

func (b *bounds) observe(v float64) {
	if !b.seen {
		b.lo, b.hi, b.seen = v, v, true
		return
	}
	b.lo = math.Min(b.lo, v)
	b.hi = math.Max(b.hi, v)
}

func (b *bounds) normalize(v float64) float64 {
	if b.hi <= b.lo {
		return 0.5
	}
	return (v - b.lo) / (b.hi - b.lo)
}

// ChildSummary describes one root move after a search.
type ChildSummary struct {
	Move   game.Move `json:"move"`
	Visits int       `json:"n"`
	Mean   float64   `json:"q"`
}

// best picks the most visited child, breaking ties on mean reward.
func best(children []*node) *node {
	var out *node
	for _, c := range children {
		if out == nil || c.visits > out.visits || (c.visits == out.visits && c.mean() > out.mean()) {
			out = c
		}
	}
	return out
}
