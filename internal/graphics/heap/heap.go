// Package heap packs many column meshes into two shared device buffers
// through growable free-list sub-allocation, so the whole world draws from
// one vertex/index binding.
package heap

import (
	"fmt"
	"log"

	"voxelstream/internal/graphics/device"
)

// alignment applied to every allocation request, in bytes.
const alignment = 4

// Allocation is a placement inside the heap's shared buffers. It is owned
// by exactly one column and freed exactly once, either when the column
// unloads or right before the column requests a larger placement.
type Allocation struct {
	VertexOffset int
	IndexOffset  int
	VertexSize   int
	IndexSize    int
}

// Heap owns the shared vertex and index mega-buffers and their free lists.
type Heap struct {
	ctx device.Context

	vertexBuf device.Buffer
	indexBuf  device.Buffer
	vertex    *freeList
	index     *freeList
}

// New creates a heap with the given initial buffer sizes in bytes.
func New(ctx device.Context, vertexBytes, indexBytes int) (*Heap, error) {
	vb, err := ctx.CreateBuffer(vertexBytes, device.UsageVertex)
	if err != nil {
		return nil, fmt.Errorf("create vertex heap: %w", err)
	}
	ib, err := ctx.CreateBuffer(indexBytes, device.UsageIndex)
	if err != nil {
		ctx.DestroyBuffer(vb)
		return nil, fmt.Errorf("create index heap: %w", err)
	}
	return &Heap{
		ctx:       ctx,
		vertexBuf: vb,
		indexBuf:  ib,
		vertex:    newFreeList(vertexBytes),
		index:     newFreeList(indexBytes),
	}, nil
}

// VertexBuffer returns the current shared vertex buffer.
func (h *Heap) VertexBuffer() device.Buffer { return h.vertexBuf }

// IndexBuffer returns the current shared index buffer.
func (h *Heap) IndexBuffer() device.Buffer { return h.indexBuf }

func alignUp(n int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}

// Allocate reserves byte ranges for a mesh in both buffers, growing a
// buffer when its free list has no fitting range. Growth preserves every
// already-placed byte and never moves existing allocations, so previously
// recorded placements stay valid.
func (h *Heap) Allocate(vertexSize, indexSize int) (Allocation, error) {
	vertexSize = alignUp(vertexSize)
	indexSize = alignUp(indexSize)

	vOff, ok := h.vertex.alloc(vertexSize)
	if !ok {
		if err := h.grow(&h.vertexBuf, h.vertex, vertexSize, device.UsageVertex); err != nil {
			return Allocation{}, err
		}
		if vOff, ok = h.vertex.alloc(vertexSize); !ok {
			return Allocation{}, fmt.Errorf("vertex heap: no range for %d bytes after growth", vertexSize)
		}
	}
	iOff, ok := h.index.alloc(indexSize)
	if !ok {
		if err := h.grow(&h.indexBuf, h.index, indexSize, device.UsageIndex); err != nil {
			_ = h.vertex.free(vOff, vertexSize)
			return Allocation{}, err
		}
		if iOff, ok = h.index.alloc(indexSize); !ok {
			_ = h.vertex.free(vOff, vertexSize)
			return Allocation{}, fmt.Errorf("index heap: no range for %d bytes after growth", indexSize)
		}
	}
	return Allocation{
		VertexOffset: vOff,
		IndexOffset:  iOff,
		VertexSize:   vertexSize,
		IndexSize:    indexSize,
	}, nil
}

// Free returns both ranges of an allocation to their free lists.
func (h *Heap) Free(a Allocation) {
	if a.VertexSize == 0 && a.IndexSize == 0 {
		return
	}
	if err := h.vertex.free(a.VertexOffset, a.VertexSize); err != nil {
		log.Printf("heap: vertex free: %v", err)
	}
	if err := h.index.free(a.IndexOffset, a.IndexSize); err != nil {
		log.Printf("heap: index free: %v", err)
	}
}

// grow replaces the backing buffer with one at least double the old size
// (or old size + required, whichever is larger), copies all live bytes on
// the GPU, retires the old buffer through deferred release, and extends the
// free list with the appended capacity. Old offsets remain valid: growth
// only appends.
func (h *Heap) grow(buf *device.Buffer, fl *freeList, required int, usage device.BufferUsage) error {
	old := *buf
	oldSize := fl.capacity
	newSize := max(oldSize*2, oldSize+required)

	replacement, err := h.ctx.CreateBuffer(newSize, usage)
	if err != nil {
		return fmt.Errorf("heap grow to %d: %w", newSize, err)
	}
	cb, err := h.ctx.BeginCommands()
	if err != nil {
		h.ctx.DestroyBuffer(replacement)
		return fmt.Errorf("heap grow copy: %w", err)
	}
	h.ctx.CopyBuffer(cb, old, replacement, []device.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: oldSize}})
	h.ctx.TransferBarrier(cb)
	if err := h.ctx.EndAndSubmit(cb); err != nil {
		h.ctx.DestroyBuffer(replacement)
		return fmt.Errorf("heap grow submit: %w", err)
	}

	h.ctx.DeferRelease(func() { h.ctx.DestroyBuffer(old) })
	*buf = replacement
	fl.extend(newSize)
	log.Printf("heap: grew %v buffer %d -> %d bytes", usage, oldSize, newSize)
	return nil
}

// FreeBytes reports the free byte totals of both lists.
func (h *Heap) FreeBytes() (vertex, index int) {
	return h.vertex.freeBytes(), h.index.freeBytes()
}

// Destroy releases both buffers through deferred release.
func (h *Heap) Destroy() {
	vb, ib := h.vertexBuf, h.indexBuf
	h.ctx.DeferRelease(func() {
		h.ctx.DestroyBuffer(vb)
		h.ctx.DestroyBuffer(ib)
	})
}
