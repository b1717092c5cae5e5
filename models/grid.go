package models

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// EmptySymbol marks a cell with nothing on it
const EmptySymbol = '.'

// ErrEmptyMap is returned when a map text holds no rows
var ErrEmptyMap = errors.New("map contains no rows")

// Position is a cell coordinate on the grid
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// IsEmptySymbol reports whether a symbol counts as an empty cell
func IsEmptySymbol(r rune) bool {
	return r == EmptySymbol || r == ' ' || r == 0
}

// Grid is a rectangular map of single-character symbols stored row-major
type Grid struct {
	Width  int
	Height int
	cells  []rune
}

// NewGrid creates a grid with every cell empty
func NewGrid(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	cells := make([]rune, width*height)
	for i := range cells {
		cells[i] = EmptySymbol
	}
	return &Grid{Width: width, Height: height, cells: cells}
}

// GridFromRows builds a grid from text rows. Short rows are padded with spaces
// so the result is rectangular.
func GridFromRows(rows []string) *Grid {
	width := 0
	for _, row := range rows {
		if n := utf8.RuneCountInString(row); n > width {
			width = n
		}
	}
	g := &Grid{Width: width, Height: len(rows), cells: make([]rune, width*len(rows))}
	for y, row := range rows {
		x := 0
		for _, r := range row {
			g.cells[y*width+x] = r
			x++
		}
		for ; x < width; x++ {
			g.cells[y*width+x] = ' '
		}
	}
	return g
}

// InBounds reports whether (x, y) lies inside the grid
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// Get returns the symbol at (x, y), or 0 when out of bounds
func (g *Grid) Get(x, y int) rune {
	if !g.InBounds(x, y) {
		return 0
	}
	return g.cells[y*g.Width+x]
}

// Set writes a symbol at (x, y). Out-of-bounds writes are ignored.
func (g *Grid) Set(x, y int, r rune) bool {
	if !g.InBounds(x, y) {
		return false
	}
	g.cells[y*g.Width+x] = r
	return true
}

// IsFree reports whether (x, y) is inside the grid and empty
func (g *Grid) IsFree(x, y int) bool {
	return g.InBounds(x, y) && IsEmptySymbol(g.cells[y*g.Width+x])
}

// PositionsOf lists every cell holding the symbol in row-major order
func (g *Grid) PositionsOf(symbol rune) []Position {
	var out []Position
	for i, r := range g.cells {
		if r == symbol {
			out = append(out, Position{X: i % g.Width, Y: i / g.Width})
		}
	}
	return out
}

// Cells exposes the backing slice in row-major order
func (g *Grid) Cells() []rune { return g.cells }

// Rows returns the grid as one string per row
func (g *Grid) Rows() []string {
	rows := make([]string, g.Height)
	for y := 0; y < g.Height; y++ {
		rows[y] = string(g.cells[y*g.Width : (y+1)*g.Width])
	}
	return rows
}

// Clone returns a deep copy of the grid
func (g *Grid) Clone() *Grid {
	cells := make([]rune, len(g.cells))
	copy(cells, g.cells)
	return &Grid{Width: g.Width, Height: g.Height, cells: cells}
}

// String renders the grid with one row per line
func (g *Grid) String() string {
	var b strings.Builder
	_, _ = g.WriteTo(&b)
	return b.String()
}

// WriteTo writes the grid as text, one row per line, with '.' for empty cells
func (g *Grid) WriteTo(w io.Writer) (int64, error) {
	var total int64
	line := make([]rune, g.Width)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			r := g.cells[y*g.Width+x]
			if r == 0 {
				r = EmptySymbol
			}
			line[x] = r
		}
		n, err := io.WriteString(w, string(line)+"\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ParseGrid reads a map text. Blank lines are dropped and the width is the
// length of the longest row.
func ParseGrid(r io.Reader) (*Grid, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var rows []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyMap
	}
	return GridFromRows(rows), nil
}
