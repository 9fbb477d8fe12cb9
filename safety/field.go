// Package safety computes distance-to-threat fields and shortest paths over a
// grid map.
package safety

import "github.com/devnull/blitzbot/game"

// Unreachable marks cells no threat can walk to (walls and walled-off pockets).
const Unreachable = -1

// Field is the per-tick distance from every cell to its nearest threat.
type Field struct {
	grid *game.Grid
	dist []int
}

// Compute runs a multi-source BFS seeded with every threat cell.
// Threat cells are 0; other empty cells hold the minimum 4-directional step
// count to any threat, or Unreachable.
func Compute(grid *game.Grid, threats []game.Position) *Field {
	f := &Field{grid: grid, dist: make([]int, grid.Cells())}
	for i := range f.dist {
		f.dist[i] = Unreachable
	}

	queue := make([]int, 0, grid.Cells())
	for _, p := range threats {
		if !grid.InBounds(p) {
			continue
		}
		idx := grid.Index(p)
		if f.dist[idx] == 0 {
			continue
		}
		f.dist[idx] = 0
		queue = append(queue, idx)
	}

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		p := grid.At(cur)
		for _, d := range game.Directions {
			n := p.Offset(d)
			if !grid.IsEmpty(n) {
				continue
			}
			ni := grid.Index(n)
			if f.dist[ni] != Unreachable {
				continue
			}
			f.dist[ni] = f.dist[cur] + 1
			queue = append(queue, ni)
		}
	}
	return f
}

// At returns the distance at p, or Unreachable for unreached or out-of-bounds
// cells.
func (f *Field) At(p game.Position) int {
	if !f.grid.InBounds(p) {
		return Unreachable
	}
	return f.dist[f.grid.Index(p)]
}

func (f *Field) Reachable(p game.Position) bool {
	return f.At(p) != Unreachable
}

// Max returns the largest finite distance in the field, and -1 when no cell
// is reachable.
func (f *Field) Max() int {
	best := Unreachable
	for _, v := range f.dist {
		if v > best {
			best = v
		}
	}
	return best
}

// Score is At with unreachable empty cells valued as the whole board: a cell
// no threat can reach is as safe as it gets.
func (f *Field) Score(p game.Position) int {
	v := f.At(p)
	if v == Unreachable && f.grid.IsEmpty(p) {
		return f.grid.Cells()
	}
	return v
}
