package world

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Chunk is a 32x32x32 block volume. Block storage is guarded by the chunk's
// own lock; the flat index layout is x + y*32 + z*32*32.
type Chunk struct {
	mu        sync.Mutex
	blocks    []BlockType
	nonAir    int
	meshDirty bool

	// World-space origin of the chunk's (0,0,0) block corner.
	Origin mgl32.Vec3
}

// NewChunk creates an empty chunk with the given world-space origin.
func NewChunk(origin mgl32.Vec3) *Chunk {
	return &Chunk{
		blocks: make([]BlockType, ChunkVolume),
		Origin: origin,
	}
}

func blockIndex(x, y, z int) int {
	return x + y*ChunkSize + z*ChunkSize*ChunkSize
}

// GetBlock returns the block at local coordinates, or Air out of range.
func (c *Chunk) GetBlock(x, y, z int) BlockType {
	if x < 0 || x >= ChunkSize || y < 0 || y >= ChunkSize || z < 0 || z >= ChunkSize {
		return BlockTypeAir
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocks == nil {
		return BlockTypeAir
	}
	return c.blocks[blockIndex(x, y, z)]
}

// SetBlock writes the block at local coordinates. The mesh-dirty flag is set
// only when the stored value actually changes.
func (c *Chunk) SetBlock(x, y, z int, bt BlockType) {
	if x < 0 || x >= ChunkSize || y < 0 || y >= ChunkSize || z < 0 || z >= ChunkSize {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocks == nil {
		if bt == BlockTypeAir {
			return
		}
		c.blocks = make([]BlockType, ChunkVolume)
	}
	idx := blockIndex(x, y, z)
	old := c.blocks[idx]
	if old == bt {
		return
	}
	c.blocks[idx] = bt
	if old == BlockTypeAir {
		c.nonAir++
	} else if bt == BlockTypeAir {
		c.nonAir--
	}
	c.meshDirty = true
}

// IsEmpty reports whether the chunk contains only air.
func (c *Chunk) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonAir == 0
}

// IsMeshDirty reports whether the chunk changed since the last mesh build.
func (c *Chunk) IsMeshDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meshDirty
}

// MarkMeshDirty forces a remesh on the next update pass.
func (c *Chunk) MarkMeshDirty() {
	c.mu.Lock()
	c.meshDirty = true
	c.mu.Unlock()
}

// ClearMeshDirty marks the chunk as meshed. Called when a mesh job is
// submitted so a faulted job does not retry forever.
func (c *Chunk) ClearMeshDirty() {
	c.mu.Lock()
	c.meshDirty = false
	c.mu.Unlock()
}

// Snapshot copies the block array into dst under the chunk lock and returns
// it. dst is grown if needed; callers reuse snapshot buffers through a pool
// so meshing does not allocate per run. The lock is held only for the copy,
// never for the CPU-bound meshing that follows.
func (c *Chunk) Snapshot(dst []BlockType) []BlockType {
	if cap(dst) < ChunkVolume {
		dst = make([]BlockType, ChunkVolume)
	}
	dst = dst[:ChunkVolume]
	c.mu.Lock()
	if c.blocks == nil {
		for i := range dst {
			dst[i] = BlockTypeAir
		}
	} else {
		copy(dst, c.blocks)
	}
	c.mu.Unlock()
	return dst
}

// ReleaseStorage drops the block array. Called when the owning column
// unloads; the chunk must not be used afterwards.
func (c *Chunk) ReleaseStorage() {
	c.mu.Lock()
	c.blocks = nil
	c.nonAir = 0
	c.meshDirty = false
	c.mu.Unlock()
}
