package device

import (
	"errors"
	"fmt"
)

// MemContext is a host-memory Context used by tests and benchmarks. Buffers
// are plain byte slices and submitted copies execute immediately, so data
// movement through the heap and uploader is directly assertable. Deferred
// releases run when their frame slot comes around again, mirroring the
// fence-delayed destruction of the Vulkan backend.
type MemContext struct {
	framesInFlight int
	slot           int
	deferred       [][]func()

	// Counters inspected by tests.
	Submissions int
	Barriers    int
	CopyRegions int
	Live        int
}

// NewMemContext creates a MemContext with the given frame slot count.
func NewMemContext(framesInFlight int) *MemContext {
	return &MemContext{
		framesInFlight: framesInFlight,
		deferred:       make([][]func(), framesInFlight),
	}
}

type memBuffer struct {
	data      []byte
	usage     BufferUsage
	destroyed bool
}

func (b *memBuffer) Size() int          { return len(b.data) }
func (b *memBuffer) Usage() BufferUsage { return b.usage }

// Bytes exposes the raw contents of a MemContext buffer for assertions.
func (c *MemContext) Bytes(b Buffer) []byte {
	return b.(*memBuffer).data
}

type memCommands struct {
	ops []func()
}

func (c *MemContext) FrameSlot() int      { return c.slot }
func (c *MemContext) FramesInFlight() int { return c.framesInFlight }

func (c *MemContext) CreateBuffer(size int, usage BufferUsage) (Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("buffer size %d", size)
	}
	c.Live++
	return &memBuffer{data: make([]byte, size), usage: usage}, nil
}

func (c *MemContext) DestroyBuffer(b Buffer) {
	mb := b.(*memBuffer)
	if mb.destroyed {
		panic("device: double destroy")
	}
	mb.destroyed = true
	c.Live--
}

func (c *MemContext) WriteBuffer(b Buffer, offset int, data []byte) error {
	mb := b.(*memBuffer)
	if mb.destroyed {
		return errors.New("write to destroyed buffer")
	}
	if offset < 0 || offset+len(data) > len(mb.data) {
		return fmt.Errorf("write [%d,%d) out of bounds %d", offset, offset+len(data), len(mb.data))
	}
	copy(mb.data[offset:], data)
	return nil
}

func (c *MemContext) BeginCommands() (CommandBuffer, error) {
	return &memCommands{}, nil
}

func (c *MemContext) CopyBuffer(cb CommandBuffer, src, dst Buffer, regions []BufferCopy) {
	s, d := src.(*memBuffer), dst.(*memBuffer)
	rs := append([]BufferCopy(nil), regions...)
	c.CopyRegions += len(rs)
	cb.(*memCommands).ops = append(cb.(*memCommands).ops, func() {
		for _, r := range rs {
			copy(d.data[r.DstOffset:r.DstOffset+r.Size], s.data[r.SrcOffset:r.SrcOffset+r.Size])
		}
	})
}

func (c *MemContext) TransferBarrier(cb CommandBuffer) {
	c.Barriers++
}

func (c *MemContext) EndAndSubmit(cb CommandBuffer) error {
	for _, op := range cb.(*memCommands).ops {
		op()
	}
	c.Submissions++
	return nil
}

func (c *MemContext) BindMeshBuffers(cb CommandBuffer, vertex, index Buffer) {}

func (c *MemContext) DrawIndexedIndirect(cb CommandBuffer, indirect Buffer, count, stride int) {}

func (c *MemContext) DeferRelease(fn func()) {
	c.deferred[c.slot] = append(c.deferred[c.slot], fn)
}

// AdvanceFrame moves to the next frame slot and runs the releases deferred
// the last time that slot was active, the point where a real device knows
// the slot's prior work finished.
func (c *MemContext) AdvanceFrame() {
	c.slot = (c.slot + 1) % c.framesInFlight
	pending := c.deferred[c.slot]
	c.deferred[c.slot] = nil
	for _, fn := range pending {
		fn()
	}
}

// DrainReleases runs every pending deferred release, as on shutdown.
func (c *MemContext) DrainReleases() {
	for i := range c.deferred {
		for _, fn := range c.deferred[i] {
			fn()
		}
		c.deferred[i] = nil
	}
}
