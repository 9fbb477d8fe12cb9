// Package replay checks the simulator against recorded sessions.
package replay

import (
	"fmt"

	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/protocol"
	"github.com/devnull/blitzbot/rules"
	"github.com/devnull/blitzbot/store"
)

// Mismatch is one disagreement between a predicted and an observed snapshot.
type Mismatch struct {
	Tick      int    `json:"tick"`
	Subject   string `json:"subject"`
	Field     string `json:"field"`
	Predicted string `json:"predicted"`
	Observed  string `json:"observed"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("tick %d: %s %s predicted %s, observed %s", m.Tick, m.Subject, m.Field, m.Predicted, m.Observed)
}

// Compare lists where predicted and observed disagree. Threats whose style
// sim does not model are skipped: their drift is expected.
func Compare(predicted, observed *game.State, sim *rules.Simulator) []Mismatch {
	var out []Mismatch
	add := func(subject, field string, p, o any) {
		out = append(out, Mismatch{
			Tick:      observed.Tick,
			Subject:   subject,
			Field:     field,
			Predicted: fmt.Sprint(p),
			Observed:  fmt.Sprint(o),
		})
	}

	if predicted.Tick != observed.Tick {
		add("agent", "tick", predicted.Tick, observed.Tick)
	}
	if predicted.Position != observed.Position {
		add("agent", "position", predicted.Position, observed.Position)
	}
	if predicted.Alive != observed.Alive {
		add("agent", "alive", predicted.Alive, observed.Alive)
	}
	if len(predicted.Threats) != len(observed.Threats) {
		add("threats", "count", len(predicted.Threats), len(observed.Threats))
		return out
	}
	for i := range observed.Threats {
		p, o := predicted.Threats[i], observed.Threats[i]
		subject := fmt.Sprintf("threat %d (%s)", i, o.Style)
		if p.Style != o.Style {
			add(subject, "style", p.Style, o.Style)
			continue
		}
		if !sim.Modeled(o.Style) {
			continue
		}
		if p.Position != o.Position {
			add(subject, "position", p.Position, o.Position)
		}
		if p.Direction != o.Direction {
			add(subject, "direction", p.Direction, o.Direction)
		}
	}
	return out
}

// Predict plays the recorded action for a tick. A missing action is idle.
func Predict(s *game.State, action *protocol.Action, sim *rules.Simulator) *game.State {
	if action == nil {
		return rules.Step(s, game.Idle, sim)
	}
	if target, ok := action.Target(); ok {
		return rules.StepTo(s, target, sim)
	}
	m, _ := action.Move()
	return rules.Step(s, m, sim)
}

// Report summarises a verification run.
type Report struct {
	Ticks      int
	Checked    int
	Mismatches []Mismatch
	// ByStyle counts threat mismatches per style.
	ByStyle map[game.Style]int
	// Unmodeled counts threats whose movement was not checked.
	Unmodeled map[game.Style]int
}

// Clean reports whether every prediction held.
func (r Report) Clean() bool {
	return len(r.Mismatches) == 0
}

// Verify feeds the session through sim tick by tick. Each tick's recorded
// action is applied to the observed snapshot and the prediction compared
// against the next observed one.
func Verify(ticks []store.Tick, sim *rules.Simulator) (Report, error) {
	if sim == nil {
		sim = rules.Default()
	}
	r := Report{
		Ticks:     len(ticks),
		ByStyle:   map[game.Style]int{},
		Unmodeled: map[game.Style]int{},
	}
	if len(ticks) == 0 {
		return r, fmt.Errorf("empty replay")
	}

	state, err := ticks[0].State.State(nil)
	if err != nil {
		return r, fmt.Errorf("line %d: %w", ticks[0].Line, err)
	}
	for i := 1; i < len(ticks); i++ {
		predicted := Predict(state, ticks[i-1].Action, sim)
		observed, err := ticks[i].State.State(predicted)
		if err != nil {
			return r, fmt.Errorf("line %d: %w", ticks[i].Line, err)
		}
		for _, th := range observed.Threats {
			if !sim.Modeled(th.Style) {
				r.Unmodeled[th.Style]++
			}
		}
		for _, m := range Compare(predicted, observed, sim) {
			r.Mismatches = append(r.Mismatches, m)
			if i := threatIndex(m); i >= 0 && i < len(observed.Threats) {
				r.ByStyle[observed.Threats[i].Style]++
			}
		}
		r.Checked++
		state = observed
	}
	return r, nil
}

func threatIndex(m Mismatch) int {
	var i int
	if _, err := fmt.Sscanf(m.Subject, "threat %d", &i); err != nil {
		return -1
	}
	return i
}
