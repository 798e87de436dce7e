// Package grid implements a flat uniform bucket grid over a reference
// track's vertices, giving O(1) candidate lookup for nearest-neighbor
// snapping.
package grid

import (
	"math"

	"github.com/banshee-data/trackmatch/internal/track/reference"
)

// Cell is a (start, count) slice descriptor into Grid.Indices.
type Cell struct {
	Start, Count int
}

// Grid is a flat uniform grid over a reference polyline's axis-aligned
// bounding box. Immutable after construction: every reference point is
// referenced by exactly one cell, and the grid may be shared by
// reference across goroutines without synchronization.
type Grid struct {
	Min           [2]float64
	InvCell       float64
	Width, Height int
	Cells         []Cell
	Indices       []int
}

// New builds a Grid over points using cellSize (meters) buckets,
// following spec.md §4.5.
func New(points []reference.Point, cellSize float64) *Grid {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	if len(points) == 0 {
		minX, minY, maxX, maxY = 0, 0, 0, 0
	}

	width := int(math.Ceil((maxX-minX)/cellSize)) + 1
	height := int(math.Ceil((maxY-minY)/cellSize)) + 1

	g := &Grid{
		Min:     [2]float64{minX, minY},
		InvCell: 1 / cellSize,
		Width:   width,
		Height:  height,
	}

	cellOf := make([]int, len(points))
	counts := make([]int, width*height)
	for i, p := range points {
		cx := clamp(int((p.X-minX)*g.InvCell), width)
		cy := clamp(int((p.Y-minY)*g.InvCell), height)
		c := cy*width + cx
		cellOf[i] = c
		counts[c]++
	}

	g.Cells = make([]Cell, width*height)
	offset := 0
	for c, n := range counts {
		g.Cells[c] = Cell{Start: offset, Count: 0}
		offset += n
	}

	g.Indices = make([]int, len(points))
	cursor := make([]int, width*height)
	for i := range g.Cells {
		cursor[i] = g.Cells[i].Start
	}
	for i, c := range cellOf {
		g.Indices[cursor[c]] = i
		cursor[c]++
		g.Cells[c].Count++
	}

	return g
}

func clamp(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v >= limit {
		return limit - 1
	}
	return v
}

// CellIndex clamps (x, y) into the grid and returns the flat cell index
// cy*width + cx.
func (g *Grid) CellIndex(x, y float64) int {
	cx := clamp(int((x-g.Min[0])*g.InvCell), g.Width)
	cy := clamp(int((y-g.Min[1])*g.InvCell), g.Height)
	return cy*g.Width + cx
}

// Neighbors fills out with the 9-cell Moore neighborhood of cell
// (including cell itself), in cell-major enumeration order: y from -1 to
// +1, x from -1 to +1 within each row. Out-of-range neighbors are
// substituted with cell itself so callers can iterate unconditionally;
// the resulting duplicate scans are harmless since downstream distance
// comparison is idempotent (spec.md §4.5/§9).
func (g *Grid) Neighbors(cell int, out *[9]int) {
	cx := cell % g.Width
	cy := cell / g.Width

	i := 0
	for dy := -1; dy <= 1; dy++ {
		ny := cy + dy
		for dx := -1; dx <= 1; dx++ {
			nx := cx + dx
			if nx < 0 || nx >= g.Width || ny < 0 || ny >= g.Height {
				out[i] = cell
			} else {
				out[i] = ny*g.Width + nx
			}
			i++
		}
	}
}
