package protocol

import (
	"fmt"

	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/safety"
)

// NoPosition is the agent position threats see before the first tick.
var NoPosition = game.Position{X: -1, Y: -1}

// Grid converts the tile map.
func (m GameMap) Grid() (*game.Grid, error) {
	if len(m.Tiles) != m.Width {
		return nil, fmt.Errorf("map has %d columns, want %d", len(m.Tiles), m.Width)
	}
	cols := make([][]game.Tile, m.Width)
	for x, col := range m.Tiles {
		cols[x] = make([]game.Tile, len(col))
		for y, name := range col {
			tile, err := game.ParseTile(name)
			if err != nil {
				return nil, fmt.Errorf("tile (%d,%d): %w", x, y, err)
			}
			cols[x][y] = tile
		}
	}
	return game.NewGrid(m.Width, m.Height, cols)
}

// FromGrid renders a grid back into the wire layout.
func FromGrid(g *game.Grid) GameMap {
	m := GameMap{Width: g.Width, Height: g.Height, Tiles: make([][]string, g.Width)}
	for x, col := range g.Columns() {
		m.Tiles[x] = make([]string, len(col))
		for y, t := range col {
			m.Tiles[x][y] = t.String()
		}
	}
	return m
}

// State converts the message into a snapshot.
//
// prev is the session's previous snapshot, if any. Threats are matched by
// index: when the style matches, the spawn point and random sequence carry
// over, and the grid is reused when unchanged. Threats first see the agent
// one tick after the session starts.
func (msg *TeamGameState) State(prev *game.State) (*game.State, error) {
	grid, err := msg.Map.Grid()
	if err != nil {
		return nil, err
	}
	s := &game.State{
		Tick:     msg.Tick,
		Position: msg.YourCharacter.Position,
		Alive:    msg.YourCharacter.Alive,
		Grid:     grid,
		Seen:     NoPosition,
		Threats:  make([]game.Threat, 0, len(msg.Threats)),
	}
	if prev != nil {
		if prev.Grid.Equal(grid) {
			s.Grid = prev.Grid
		}
		s.Seen = s.Position
	}
	for i, t := range msg.Threats {
		dir, err := game.ParseDirection(t.Direction)
		if err != nil {
			return nil, fmt.Errorf("threat %d: %w", i, err)
		}
		th := game.NewThreat(t.Position, dir, game.Style(t.Style), t.Personality)
		if prev != nil && i < len(prev.Threats) && prev.Threats[i].Style == th.Style {
			th.Spawn = prev.Threats[i].Spawn
			th.Seed = prev.Threats[i].Seed
		}
		s.Threats = append(s.Threats, th)
	}
	return s, nil
}

// DistanceTable returns the server distance table with nulls as
// safety.Unreachable, or nil when the server sent none.
func (c YourCharacter) DistanceTable() [][]int {
	if len(c.Distances) == 0 {
		return nil
	}
	out := make([][]int, len(c.Distances))
	for x, col := range c.Distances {
		out[x] = make([]int, len(col))
		for y, d := range col {
			if d == nil {
				out[x][y] = safety.Unreachable
			} else {
				out[x][y] = *d
			}
		}
	}
	return out
}

// FromState builds the message the server would send for s. Used to drive
// the agent offline.
func FromState(s *game.State, spawn game.Position) *TeamGameState {
	msg := &TeamGameState{
		Type:              "TICK",
		Tick:              s.Tick,
		CurrentTickNumber: s.Tick,
		LastTickErrors:    []string{},
		YourCharacter: YourCharacter{
			Position:   s.Position,
			Alive:      s.Alive,
			SpawnPoint: spawn,
		},
		Threats: make([]Threat, len(s.Threats)),
		Map:     FromGrid(s.Grid),
	}
	for i, t := range s.Threats {
		msg.Threats[i] = Threat{
			Position:    t.Position,
			Direction:   t.Direction.String(),
			Personality: t.Personality,
			Style:       string(t.Style),
		}
	}
	dist := safety.Distances(s.Grid, s.Position)
	msg.YourCharacter.Distances = make([][]*int, len(dist))
	for x, col := range dist {
		msg.YourCharacter.Distances[x] = make([]*int, len(col))
		for y := range col {
			if col[y] != safety.Unreachable {
				d := col[y]
				msg.YourCharacter.Distances[x][y] = &d
			}
		}
	}
	return msg
}
