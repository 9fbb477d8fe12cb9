package game

import (
	"fmt"
	"strings"
)

// Tile is the content of a single cell.
type Tile uint8

const (
	Empty Tile = iota
	Wall
)

func (t Tile) String() string {
	if t == Wall {
		return "WALL"
	}
	return "EMPTY"
}

// ParseTile parses the server's tile names.
func ParseTile(s string) (Tile, error) {
	switch s {
	case "EMPTY":
		return Empty, nil
	case "WALL":
		return Wall, nil
	}
	return Empty, fmt.Errorf("unknown tile %q", s)
}

// Grid is the static tile layout of a map.
// Tiles are stored column-major to match the server's tiles[x][y] layout.
type Grid struct {
	Width  int
	Height int
	tiles  []Tile
}

// NewGrid builds a grid from tiles indexed [x][y].
func NewGrid(width, height int, tiles [][]Tile) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid grid dimensions: %dx%d", width, height)
	}
	if len(tiles) != width {
		return nil, fmt.Errorf("grid has %d columns, want %d", len(tiles), width)
	}
	g := &Grid{Width: width, Height: height, tiles: make([]Tile, width*height)}
	for x := 0; x < width; x++ {
		if len(tiles[x]) != height {
			return nil, fmt.Errorf("grid column %d has %d rows, want %d", x, len(tiles[x]), height)
		}
		copy(g.tiles[x*height:(x+1)*height], tiles[x])
	}
	return g, nil
}

// ParseGrid builds a grid from rows of '#' (wall) and ' ' or '.' (empty),
// laid out top to bottom so it reads like the board.
func ParseGrid(rows ...string) *Grid {
	height := len(rows)
	width := 0
	if height > 0 {
		width = len(rows[0])
	}
	g := &Grid{Width: width, Height: height, tiles: make([]Tile, width*height)}
	for y, row := range rows {
		if len(row) != width {
			panic(fmt.Sprintf("ParseGrid: row %d has width %d, want %d", y, len(row), width))
		}
		for x := 0; x < width; x++ {
			switch row[x] {
			case '#':
				g.tiles[x*height+y] = Wall
			case ' ', '.':
			default:
				panic(fmt.Sprintf("ParseGrid: unexpected %q at (%d,%d)", row[x], x, y))
			}
		}
	}
	return g
}

// Open returns an empty width x height grid.
func Open(width, height int) *Grid {
	return &Grid{Width: width, Height: height, tiles: make([]Tile, width*height)}
}

func (g *Grid) InBounds(p Position) bool {
	return p.X >= 0 && p.X < g.Width && p.Y >= 0 && p.Y < g.Height
}

// IsEmpty reports whether p can be walked on. Out of bounds is never empty.
func (g *Grid) IsEmpty(p Position) bool {
	return g.InBounds(p) && g.tiles[p.X*g.Height+p.Y] == Empty
}

func (g *Grid) Tile(p Position) Tile {
	if !g.InBounds(p) {
		return Wall
	}
	return g.tiles[p.X*g.Height+p.Y]
}

// Index maps an in-bounds position to a dense cell index.
func (g *Grid) Index(p Position) int {
	return p.X*g.Height + p.Y
}

// At is the inverse of Index.
func (g *Grid) At(idx int) Position {
	return Position{X: idx / g.Height, Y: idx % g.Height}
}

// Cells is the number of cells, walls included.
func (g *Grid) Cells() int {
	return g.Width * g.Height
}

// Moves lists the passable directions from p in Directions order.
func (g *Grid) Moves(p Position) []Direction {
	out := make([]Direction, 0, 4)
	for _, d := range Directions {
		if g.IsEmpty(p.Offset(d)) {
			out = append(out, d)
		}
	}
	return out
}

// Columns returns the tiles indexed [x][y].
func (g *Grid) Columns() [][]Tile {
	out := make([][]Tile, g.Width)
	for x := 0; x < g.Width; x++ {
		out[x] = make([]Tile, g.Height)
		copy(out[x], g.tiles[x*g.Height:(x+1)*g.Height])
	}
	return out
}

// Equal reports whether two grids have the same layout.
func (g *Grid) Equal(o *Grid) bool {
	if g == nil || o == nil {
		return g == o
	}
	if g.Width != o.Width || g.Height != o.Height {
		return false
	}
	for i := range g.tiles {
		if g.tiles[i] != o.tiles[i] {
			return false
		}
	}
	return true
}

// Dump renders the grid with optional highlighted cells, top row first.
func (g *Grid) Dump(marks map[Position]byte) string {
	var sb strings.Builder
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			p := Position{X: x, Y: y}
			if c, ok := marks[p]; ok {
				sb.WriteByte(c)
			} else if g.IsEmpty(p) {
				sb.WriteByte('.')
			} else {
				sb.WriteByte('#')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
