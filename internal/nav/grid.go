package nav

import "fmt"

// Grid is a dense row-major float64 raster. Binary maps use 0/1 values;
// distance fields use metres-in-cells with +Inf for unreachable.
type Grid struct {
	Rows  int
	Cols  int
	Cells []float64
}

// NewGrid allocates a zeroed Rows x Cols grid.
func NewGrid(rows, cols int) *Grid {
	return &Grid{Rows: rows, Cols: cols, Cells: make([]float64, rows*cols)}
}

// At returns the value at (r, c). Callers are expected to stay in bounds;
// planner loops are hot and bounds are established once per plan.
func (g *Grid) At(r, c int) float64 {
	return g.Cells[r*g.Cols+c]
}

// Set writes the value at (r, c).
func (g *Grid) Set(r, c int, v float64) {
	g.Cells[r*g.Cols+c] = v
}

// InBounds reports whether (r, c) lies inside the grid.
func (g *Grid) InBounds(r, c int) bool {
	return r >= 0 && r < g.Rows && c >= 0 && c < g.Cols
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := NewGrid(g.Rows, g.Cols)
	copy(out.Cells, g.Cells)
	return out
}

// Fill sets every cell to v.
func (g *Grid) Fill(v float64) {
	for i := range g.Cells {
		g.Cells[i] = v
	}
}

// Zero resets every cell to 0.
func (g *Grid) Zero() {
	g.Fill(0)
}

// Any reports whether any cell is nonzero.
func (g *Grid) Any() bool {
	for _, v := range g.Cells {
		if v != 0 {
			return true
		}
	}
	return false
}

// Round snaps every cell to the nearest integer in place. Obstacle maps
// arrive as float predictions and must be binarised before planning.
func (g *Grid) Round() {
	for i, v := range g.Cells {
		if v >= 0.5 {
			g.Cells[i] = 1
		} else {
			g.Cells[i] = 0
		}
	}
}

// AddBoundary returns a copy of g grown by one cell on every side, with the
// new border cells set to value.
func AddBoundary(g *Grid, value float64) *Grid {
	out := NewGrid(g.Rows+2, g.Cols+2)
	out.Fill(value)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			out.Set(r+1, c+1, g.At(r, c))
		}
	}
	return out
}

// RemoveBoundary strips the one-cell border added by AddBoundary.
func RemoveBoundary(g *Grid) *Grid {
	if g.Rows < 2 || g.Cols < 2 {
		panic(fmt.Sprintf("nav: grid %dx%d too small to strip boundary", g.Rows, g.Cols))
	}
	out := NewGrid(g.Rows-2, g.Cols-2)
	for r := 0; r < out.Rows; r++ {
		for c := 0; c < out.Cols; c++ {
			out.Set(r, c, g.At(r+1, c+1))
		}
	}
	return out
}

// DiskSelem returns the cell offsets of a disk structuring element with the
// given radius, matching a morphological disk: all offsets within euclidean
// distance radius of the origin.
func DiskSelem(radius int) [][2]int {
	if radius < 0 {
		radius = 0
	}
	var offsets [][2]int
	r2 := radius * radius
	for dr := -radius; dr <= radius; dr++ {
		for dc := -radius; dc <= radius; dc++ {
			if dr*dr+dc*dc <= r2 {
				offsets = append(offsets, [2]int{dr, dc})
			}
		}
	}
	return offsets
}

// Dilate returns the binary dilation of g by the structuring element: a
// cell is set if any selem offset lands on a set cell of g.
func Dilate(g *Grid, selem [][2]int) *Grid {
	out := NewGrid(g.Rows, g.Cols)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if g.At(r, c) == 0 {
				continue
			}
			for _, off := range selem {
				rr, cc := r+off[0], c+off[1]
				if rr >= 0 && rr < g.Rows && cc >= 0 && cc < g.Cols {
					out.Set(rr, cc, 1)
				}
			}
		}
	}
	return out
}
