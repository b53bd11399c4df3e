package world

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// ColumnState tracks the streaming lifecycle of a column.
type ColumnState int32

const (
	ColumnUnloaded ColumnState = iota
	ColumnGenerating
	ColumnReady
)

// Column is a vertical stack of exactly ChunksPerColumn chunks sharing one
// combined GPU mesh. Its bounding box depends only on the XZ coordinate and
// the fixed column height, so it is computed once and never invalidated.
type Column struct {
	Coord  ColumnCoord
	Chunks [ChunksPerColumn]*Chunk

	state atomic.Int32

	// Set when the column is removed from the world so an in-flight
	// generation task discards its result instead of writing into
	// released storage.
	released atomic.Bool

	boundsMin mgl32.Vec3
	boundsMax mgl32.Vec3
}

// NewColumn creates a column with allocated chunk storage in the Generating state.
func NewColumn(coord ColumnCoord) *Column {
	col := &Column{Coord: coord}
	baseX := float32(coord.X * ChunkSize)
	baseZ := float32(coord.Z * ChunkSize)
	for i := range col.Chunks {
		col.Chunks[i] = NewChunk(mgl32.Vec3{baseX, float32(i * ChunkSize), baseZ})
	}
	col.boundsMin = mgl32.Vec3{baseX, 0, baseZ}
	col.boundsMax = mgl32.Vec3{baseX + ChunkSize, ColumnHeight, baseZ + ChunkSize}
	col.state.Store(int32(ColumnGenerating))
	return col
}

// State returns the current streaming state.
func (c *Column) State() ColumnState {
	return ColumnState(c.state.Load())
}

func (c *Column) setState(s ColumnState) {
	c.state.Store(int32(s))
}

// Released reports whether the column was unloaded from the world.
func (c *Column) Released() bool {
	return c.released.Load()
}

// Bounds returns the fixed world-space bounding box of the column.
func (c *Column) Bounds() (min, max mgl32.Vec3) {
	return c.boundsMin, c.boundsMax
}

// IsEmpty reports whether every chunk in the column is all air.
func (c *Column) IsEmpty() bool {
	for _, ch := range c.Chunks {
		if !ch.IsEmpty() {
			return false
		}
	}
	return true
}

// IsMeshDirty reports whether any chunk in the column needs remeshing.
func (c *Column) IsMeshDirty() bool {
	for _, ch := range c.Chunks {
		if ch.IsMeshDirty() {
			return true
		}
	}
	return false
}

// MarkMeshDirty dirties every chunk so the whole column is re-extracted.
// Used when a neighboring column finishes generating and boundary faces
// must be re-evaluated against real data.
func (c *Column) MarkMeshDirty() {
	for _, ch := range c.Chunks {
		ch.MarkMeshDirty()
	}
}

// GetBlock reads a block at a column-local X/Z and world-space Y.
func (c *Column) GetBlock(localX, worldY, localZ int) BlockType {
	if worldY < 0 || worldY >= ColumnHeight {
		return BlockTypeAir
	}
	return c.Chunks[worldY/ChunkSize].GetBlock(localX, mod(worldY, ChunkSize), localZ)
}

// SetBlock writes a block at a column-local X/Z and world-space Y.
// Writes outside the vertical range are dropped.
func (c *Column) SetBlock(localX, worldY, localZ int, bt BlockType) {
	if worldY < 0 || worldY >= ColumnHeight {
		return
	}
	c.Chunks[worldY/ChunkSize].SetBlock(localX, mod(worldY, ChunkSize), localZ, bt)
}

// release drops all chunk storage. Main-thread only, through World unload.
func (c *Column) release() {
	c.released.Store(true)
	c.setState(ColumnUnloaded)
	for _, ch := range c.Chunks {
		ch.ReleaseStorage()
	}
}
