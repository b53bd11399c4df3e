package world

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Region is an 8x8 bucket of columns used for coarse frustum rejection and
// batched iteration. It carries no gameplay state: a region exists exactly
// while it has at least one member column.
type Region struct {
	Coord   RegionCoord
	columns map[ColumnCoord]*Column

	boundsMin mgl32.Vec3
	boundsMax mgl32.Vec3
}

func newRegion(coord RegionCoord) *Region {
	baseX := float32(coord.X * RegionSize * ChunkSize)
	baseZ := float32(coord.Z * RegionSize * ChunkSize)
	side := float32(RegionSize * ChunkSize)
	return &Region{
		Coord:     coord,
		columns:   make(map[ColumnCoord]*Column, RegionSize*RegionSize),
		boundsMin: mgl32.Vec3{baseX, 0, baseZ},
		boundsMax: mgl32.Vec3{baseX + side, ColumnHeight, baseZ + side},
	}
}

// Bounds returns the box covering all possible member columns.
func (r *Region) Bounds() (min, max mgl32.Vec3) {
	return r.boundsMin, r.boundsMax
}

// Len returns the member column count.
func (r *Region) Len() int {
	return len(r.columns)
}

// Each calls fn for every member column.
func (r *Region) Each(fn func(*Column)) {
	for _, col := range r.columns {
		fn(col)
	}
}

func (r *Region) add(col *Column) {
	r.columns[col.Coord] = col
}

// remove deletes a column and reports whether the region became empty.
func (r *Region) remove(coord ColumnCoord) bool {
	delete(r.columns, coord)
	return len(r.columns) == 0
}
