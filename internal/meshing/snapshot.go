package meshing

import (
	"voxelstream/internal/world"
)

const (
	paddedSize   = world.ChunkSize + 2
	paddedVolume = paddedSize * paddedSize * paddedSize
)

// Snapshot is a consistent copy of one chunk's blocks plus a one-cell border
// sampled from neighboring chunks and columns. The chunk lock is held only
// while copying; the border is read through the world's opacity query, which
// tolerates missing neighbors. Greedy meshing runs against the snapshot so
// concurrent block edits never block on a mesh build.
type Snapshot struct {
	blocks []world.BlockType
}

func paddedIndex(x, y, z int) int {
	return (x + 1) + (y+1)*paddedSize + (z+1)*paddedSize*paddedSize
}

// At returns the block at chunk-local coordinates; x, y, z may be -1 or
// ChunkSize to address the border.
func (s *Snapshot) At(x, y, z int) world.BlockType {
	return s.blocks[paddedIndex(x, y, z)]
}

// Opaque reports whether the cell at chunk-local coordinates hides faces.
func (s *Snapshot) Opaque(x, y, z int) bool {
	return s.blocks[paddedIndex(x, y, z)].IsOpaque()
}

// CaptureSnapshot fills s from the chunk at index chunkY of col, reusing s's
// storage. Border cells are recorded as Stone or Air depending only on the
// neighbor's opacity; their exact type never reaches the output mesh.
func CaptureSnapshot(s *Snapshot, w *world.World, col *world.Column, chunkY int, scratch []world.BlockType) []world.BlockType {
	if cap(s.blocks) < paddedVolume {
		s.blocks = make([]world.BlockType, paddedVolume)
	}
	s.blocks = s.blocks[:paddedVolume]

	ch := col.Chunks[chunkY]
	scratch = ch.Snapshot(scratch)

	for z := 0; z < world.ChunkSize; z++ {
		for y := 0; y < world.ChunkSize; y++ {
			src := y*world.ChunkSize + z*world.ChunkSize*world.ChunkSize
			dst := paddedIndex(0, y, z)
			copy(s.blocks[dst:dst+world.ChunkSize], scratch[src:src+world.ChunkSize])
		}
	}

	baseX := col.Coord.X * world.ChunkSize
	baseY := chunkY * world.ChunkSize
	baseZ := col.Coord.Z * world.ChunkSize
	border := func(lx, ly, lz int) {
		bt := world.BlockTypeAir
		if w.IsOpaqueAt(baseX+lx, baseY+ly, baseZ+lz) {
			bt = world.BlockTypeStone
		}
		s.blocks[paddedIndex(lx, ly, lz)] = bt
	}
	for a := 0; a < world.ChunkSize; a++ {
		for b := 0; b < world.ChunkSize; b++ {
			border(-1, a, b)
			border(world.ChunkSize, a, b)
			border(a, -1, b)
			border(a, world.ChunkSize, b)
			border(a, b, -1)
			border(a, b, world.ChunkSize)
		}
	}
	return scratch
}
