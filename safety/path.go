package safety

import "github.com/devnull/blitzbot/game"

// engineOrder is the neighbour order the game server expands paths in.
var engineOrder = [4]game.Direction{game.Left, game.Right, game.Up, game.Down}

// Distances returns the BFS step count from `from` to every cell, indexed
// [x][y], with Unreachable for cells that cannot be walked to.
func Distances(grid *game.Grid, from game.Position) [][]int {
	dist, _ := search(grid, from)
	out := make([][]int, grid.Width)
	for x := 0; x < grid.Width; x++ {
		out[x] = make([]int, grid.Height)
		for y := 0; y < grid.Height; y++ {
			out[x][y] = dist[grid.Index(game.Position{X: x, Y: y})]
		}
	}
	return out
}

// Path returns the shortest path from `from` to `to`, excluding `from` and
// including `to`. Ties between equal-length paths resolve the way the server
// resolves them. Returns nil if `to` cannot be reached or equals `from`.
func Path(grid *game.Grid, from, to game.Position) []game.Position {
	if from == to || !grid.IsEmpty(from) || !grid.IsEmpty(to) {
		return nil
	}
	dist, parent := search(grid, from)
	ti := grid.Index(to)
	if dist[ti] == Unreachable {
		return nil
	}
	path := make([]game.Position, dist[ti])
	for i, cur := len(path)-1, ti; i >= 0; i-- {
		path[i] = grid.At(cur)
		cur = parent[cur]
	}
	return path
}

// FirstStep returns the direction of the first step of Path.
func FirstStep(grid *game.Grid, from, to game.Position) (game.Direction, bool) {
	path := Path(grid, from, to)
	if len(path) == 0 {
		return 0, false
	}
	next := path[0]
	for _, d := range engineOrder {
		if from.Offset(d) == next {
			return d, true
		}
	}
	return 0, false
}

func search(grid *game.Grid, from game.Position) (dist, parent []int) {
	dist = make([]int, grid.Cells())
	parent = make([]int, grid.Cells())
	for i := range dist {
		dist[i] = Unreachable
		parent[i] = -1
	}
	if !grid.IsEmpty(from) {
		return dist, parent
	}
	start := grid.Index(from)
	dist[start] = 0
	queue := []int{start}
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		p := grid.At(cur)
		for _, d := range engineOrder {
			n := p.Offset(d)
			if !grid.IsEmpty(n) {
				continue
			}
			ni := grid.Index(n)
			if dist[ni] != Unreachable {
				continue
			}
			dist[ni] = dist[cur] + 1
			parent[ni] = cur
			queue = append(queue, ni)
		}
	}
	return dist, parent
}
