// Package device defines the thin command-submission surface the voxel
// renderer consumes: buffer creation, batched copies, one barrier kind, and
// the indirect multi-draw entry point. The Vulkan backend lives in
// vkdevice; MemContext is a host-memory implementation for tests.
package device

import "unsafe"

// BufferUsage selects the backing and visibility of a buffer.
type BufferUsage int

const (
	// UsageVertex is a device-local buffer bound as the shared vertex heap.
	UsageVertex BufferUsage = iota
	// UsageIndex is a device-local buffer bound as the shared index heap.
	UsageIndex
	// UsageStaging is host-visible transfer-source memory.
	UsageStaging
	// UsageIndirect holds indirect draw commands.
	UsageIndirect
)

func (u BufferUsage) String() string {
	switch u {
	case UsageVertex:
		return "vertex"
	case UsageIndex:
		return "index"
	case UsageStaging:
		return "staging"
	case UsageIndirect:
		return "indirect"
	default:
		return "unknown"
	}
}

// Buffer is an opaque device buffer handle.
type Buffer interface {
	Size() int
	Usage() BufferUsage
}

// CommandBuffer is an opaque recording handle.
type CommandBuffer interface{}

// BufferCopy is one copy region inside a batched transfer.
type BufferCopy struct {
	SrcOffset int
	DstOffset int
	Size      int
}

// Context is the render context the core calls into. All methods are main
// thread only. Recording follows begin/record/submit; destruction of
// anything the GPU may still read goes through DeferRelease, which runs the
// action only after the frame slot's prior work completed.
type Context interface {
	// FrameSlot identifies which of FramesInFlight slots is recording.
	FrameSlot() int
	FramesInFlight() int

	CreateBuffer(size int, usage BufferUsage) (Buffer, error)
	DestroyBuffer(Buffer)
	// WriteBuffer stores data into a host-visible buffer at offset.
	WriteBuffer(b Buffer, offset int, data []byte) error

	BeginCommands() (CommandBuffer, error)
	// CopyBuffer records regions copied from src to dst.
	CopyBuffer(cb CommandBuffer, src, dst Buffer, regions []BufferCopy)
	// TransferBarrier records a transfer-write to vertex/index-read barrier.
	TransferBarrier(cb CommandBuffer)
	EndAndSubmit(cb CommandBuffer) error

	// BindMeshBuffers binds the shared heap buffers once per frame.
	BindMeshBuffers(cb CommandBuffer, vertex, index Buffer)
	// DrawIndexedIndirect issues count draws from the indirect buffer.
	DrawIndexedIndirect(cb CommandBuffer, indirect Buffer, count, stride int)

	DeferRelease(fn func())
}

// DrawIndexedIndirectCommand mirrors VkDrawIndexedIndirectCommand: the
// GPU-consumed record for one draw, packed with no padding.
type DrawIndexedIndirectCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

// DrawCommandSize is the indirect array stride in bytes.
const DrawCommandSize = int(unsafe.Sizeof(DrawIndexedIndirectCommand{}))

// DrawCommandBytes reinterprets a command slice as raw bytes for upload.
func DrawCommandBytes(cmds []DrawIndexedIndirectCommand) []byte {
	if len(cmds) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&cmds[0])), len(cmds)*DrawCommandSize)
}
