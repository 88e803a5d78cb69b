// Package dissolve reduces many small same-class polygons into fewer larger
// ones. It builds a contiguity graph per classification code using a
// grid-hash spatial index for candidate narrowing, extracts connected
// components, and unions each component's members, with repair and a
// degraded hull fallback for components that exceed the vertex budget.
package dissolve

import (
	"math"

	"github.com/twpayne/go-geos"
)

type cellKey struct {
	x, y int
}

// spatialIndex is a uniform grid hash over geometry bounding boxes. A
// geometry is registered in every cell its bbox overlaps; candidate
// neighbors are geometries sharing at least one cell, confirmed later by an
// exact predicate.
type spatialIndex struct {
	cellSize float64
	grid     map[cellKey][]int
	bounds   []*geos.Box2D
}

// newSpatialIndex sizes the grid from the average bbox extent of the input
// so that typical geometries span a handful of cells.
func newSpatialIndex(geoms []*geos.Geom) *spatialIndex {
	var sumW, sumH float64
	bounds := make([]*geos.Box2D, len(geoms))
	for i, g := range geoms {
		b := g.Bounds()
		bounds[i] = b
		sumW += b.MaxX - b.MinX
		sumH += b.MaxY - b.MinY
	}

	cellSize := 1.0
	if n := float64(len(geoms)); n > 0 {
		avg := math.Max(sumW/n, sumH/n)
		if avg > 0 {
			cellSize = avg * 2
		}
	}

	idx := &spatialIndex{
		cellSize: cellSize,
		grid:     make(map[cellKey][]int),
		bounds:   bounds,
	}
	for i := range geoms {
		idx.add(i)
	}
	return idx
}

func (si *spatialIndex) add(i int) {
	for _, key := range si.cells(si.bounds[i]) {
		si.grid[key] = append(si.grid[key], i)
	}
}

// candidates returns indices j > i whose bounding boxes overlap i's. The
// j > i restriction yields each candidate pair exactly once.
func (si *spatialIndex) candidates(i int) []int {
	bi := si.bounds[i]
	seen := make(map[int]struct{})
	var out []int
	for _, key := range si.cells(bi) {
		for _, j := range si.grid[key] {
			if j <= i {
				continue
			}
			if _, dup := seen[j]; dup {
				continue
			}
			seen[j] = struct{}{}
			if boxesOverlap(bi, si.bounds[j]) {
				out = append(out, j)
			}
		}
	}
	return out
}

func (si *spatialIndex) cells(b *geos.Box2D) []cellKey {
	minX := int(math.Floor(b.MinX / si.cellSize))
	minY := int(math.Floor(b.MinY / si.cellSize))
	maxX := int(math.Floor(b.MaxX / si.cellSize))
	maxY := int(math.Floor(b.MaxY / si.cellSize))

	keys := make([]cellKey, 0, (maxX-minX+1)*(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			keys = append(keys, cellKey{x, y})
		}
	}
	return keys
}

func boxesOverlap(a, b *geos.Box2D) bool {
	return a.MinX <= b.MaxX && b.MinX <= a.MaxX &&
		a.MinY <= b.MaxY && b.MinY <= a.MaxY
}
