package meshing

import (
	"math/bits"
	"sync"

	"voxelstream/internal/world"
)

// MeshBuffers carries one column's merged vertex and index lists between a
// mesh worker and the render thread. Exactly one owner holds a MeshBuffers
// between Rent and Return; the worker hands ownership over with the result
// and the consumer returns it after the data is uploaded.
type MeshBuffers struct {
	Verts   []Vertex
	Indices []uint32
}

const poolClasses = 8

// BufferPool recycles mesh output buffers and chunk snapshot scratch so
// steady-state meshing does not allocate. Mesh buffers are binned by
// capacity class (power-of-two vertex capacity) so a column that regrew
// keeps landing in a fitting slab.
type BufferPool struct {
	mu      sync.Mutex
	meshes  [poolClasses][]*MeshBuffers
	snaps   []*Snapshot
	scratch [][]world.BlockType
}

// NewBufferPool creates an empty pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{}
}

// class maps a vertex capacity to its size-class bin. Class 0 holds
// capacities up to 1024 vertices, each following class doubles.
func class(vertexCap int) int {
	if vertexCap <= 1024 {
		return 0
	}
	c := bits.Len(uint(vertexCap-1)) - 10
	if c >= poolClasses {
		c = poolClasses - 1
	}
	return c
}

// RentMesh returns an empty MeshBuffers with at least sizeHint vertex
// capacity when a pooled one fits, allocating otherwise.
func (p *BufferPool) RentMesh(sizeHint int) *MeshBuffers {
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := class(sizeHint); c < poolClasses; c++ {
		if n := len(p.meshes[c]); n > 0 {
			m := p.meshes[c][n-1]
			p.meshes[c] = p.meshes[c][:n-1]
			m.Verts = m.Verts[:0]
			m.Indices = m.Indices[:0]
			return m
		}
	}
	return &MeshBuffers{}
}

// ReturnMesh gives a MeshBuffers back to the pool. The caller must not use
// it afterwards.
func (p *BufferPool) ReturnMesh(m *MeshBuffers) {
	if m == nil {
		return
	}
	c := class(cap(m.Verts))
	p.mu.Lock()
	p.meshes[c] = append(p.meshes[c], m)
	p.mu.Unlock()
}

// RentSnapshot returns a reusable snapshot buffer.
func (p *BufferPool) RentSnapshot() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.snaps); n > 0 {
		s := p.snaps[n-1]
		p.snaps = p.snaps[:n-1]
		return s
	}
	return &Snapshot{}
}

// ReturnSnapshot gives a snapshot buffer back to the pool.
func (p *BufferPool) ReturnSnapshot(s *Snapshot) {
	if s == nil {
		return
	}
	p.mu.Lock()
	p.snaps = append(p.snaps, s)
	p.mu.Unlock()
}

// RentScratch returns a chunk-sized block scratch slice.
func (p *BufferPool) RentScratch() []world.BlockType {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.scratch); n > 0 {
		s := p.scratch[n-1]
		p.scratch = p.scratch[:n-1]
		return s
	}
	return make([]world.BlockType, world.ChunkVolume)
}

// ReturnScratch gives a scratch slice back to the pool.
func (p *BufferPool) ReturnScratch(s []world.BlockType) {
	if s == nil {
		return
	}
	p.mu.Lock()
	p.scratch = append(p.scratch, s)
	p.mu.Unlock()
}
