// Package spatial provides a uniform hash grid for broad-phase queries.
package spatial

import (
	"math"

	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
)

// DefaultCellSize roughly matches a vehicle bounding box plus the query buffer.
const DefaultCellSize = 40.0

type cell struct {
	x, y int
}

// Grid buckets keys by the cells their boxes cover. Keys are kept in insertion
// order within a cell so that query results are deterministic.
type Grid[K comparable] struct {
	cellSize  float64
	cells     map[cell][]K
	footprint map[K][]cell
}

// NewGrid creates an empty grid. A non-positive cell size falls back to
// DefaultCellSize.
func NewGrid[K comparable](cellSize float64) *Grid[K] {
	if cellSize <= 0 || math.IsNaN(cellSize) {
		cellSize = DefaultCellSize
	}
	return &Grid[K]{
		cellSize:  cellSize,
		cells:     make(map[cell][]K),
		footprint: make(map[K][]cell),
	}
}

// CellSize returns the edge length of a grid cell.
func (g *Grid[K]) CellSize() float64 { return g.cellSize }

// Len returns the number of keys currently in the grid.
func (g *Grid[K]) Len() int { return len(g.footprint) }

// Clear removes every key while keeping allocated cell slices.
func (g *Grid[K]) Clear() {
	for c, keys := range g.cells {
		g.cells[c] = keys[:0]
	}
	clear(g.footprint)
}

// Insert registers key in every cell the box spans. Inserting a key that is
// already present replaces its footprint.
func (g *Grid[K]) Insert(key K, box geometry.Hitbox) {
	if _, ok := g.footprint[key]; ok {
		g.Remove(key)
	}
	minX, minY, maxX, maxY := g.cellRange(box)
	covered := make([]cell, 0, (maxX-minX+1)*(maxY-minY+1))
	for cx := minX; cx <= maxX; cx++ {
		for cy := minY; cy <= maxY; cy++ {
			c := cell{cx, cy}
			g.cells[c] = append(g.cells[c], key)
			covered = append(covered, c)
		}
	}
	g.footprint[key] = covered
}

// Remove drops key from all cells it occupies.
func (g *Grid[K]) Remove(key K) {
	covered, ok := g.footprint[key]
	if !ok {
		return
	}
	for _, c := range covered {
		keys := g.cells[c]
		for i, k := range keys {
			if k == key {
				g.cells[c] = append(keys[:i], keys[i+1:]...)
				break
			}
		}
	}
	delete(g.footprint, key)
}

// Update moves key to the cells covered by box, touching only the cells that
// changed.
func (g *Grid[K]) Update(key K, box geometry.Hitbox) {
	old, ok := g.footprint[key]
	if !ok {
		g.Insert(key, box)
		return
	}
	minX, minY, maxX, maxY := g.cellRange(box)
	if len(old) > 0 {
		first, last := old[0], old[len(old)-1]
		if first.x == minX && first.y == minY && last.x == maxX && last.y == maxY {
			return
		}
	}
	g.Insert(key, box)
}

// Query returns every key sharing at least one cell with the box, without
// duplicates.
func (g *Grid[K]) Query(box geometry.Hitbox) []K {
	minX, minY, maxX, maxY := g.cellRange(box)
	var out []K
	seen := make(map[K]struct{})
	for cx := minX; cx <= maxX; cx++ {
		for cy := minY; cy <= maxY; cy++ {
			for _, k := range g.cells[cell{cx, cy}] {
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
	}
	return out
}

// QueryRadius returns the keys near a point, using the square enclosing the
// circle as the query box.
func (g *Grid[K]) QueryRadius(p geometry.Point, radius float64) []K {
	return g.Query(geometry.Hitbox{X: p.X - radius, Y: p.Y - radius, Width: 2 * radius, Height: 2 * radius})
}

func (g *Grid[K]) cellRange(box geometry.Hitbox) (minX, minY, maxX, maxY int) {
	minX = int(math.Floor(box.X / g.cellSize))
	minY = int(math.Floor(box.Y / g.cellSize))
	maxX = int(math.Floor(box.Right() / g.cellSize))
	maxY = int(math.Floor(box.Bottom() / g.cellSize))
	return
}
