// Package vkdevice implements the device abstraction on Vulkan. Buffer
// memory is chosen per usage: mesh and index storage is device-local with
// transfer src/dst so the heap can grow by GPU copy, staging and indirect
// buffers are host-visible and persistently mapped.
package vkdevice

import (
	"fmt"
	"log"
	"time"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"voxelstream/internal/graphics/device"
)

// transferTimeout bounds how long a transfer submit may take before the
// device is considered lost.
const transferTimeout = 5 * time.Second

type vkBuffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	mapped unsafe.Pointer
	size   int
	usage  device.BufferUsage
}

func (b *vkBuffer) Size() int                 { return b.size }
func (b *vkBuffer) Usage() device.BufferUsage { return b.usage }

type vkCommands struct {
	cb vk.CommandBuffer
}

// Context implements device.Context over a Vulkan logical device. All
// methods must be called from the thread that owns the queue.
type Context struct {
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	queue          vk.Queue
	cmdPool        vk.CommandPool

	transferFence vk.Fence

	framesInFlight int
	frameSlot      int
	pending        [][]func()
}

// NewContext builds a transfer-capable context over an already created
// logical device and queue.
func NewContext(physicalDevice vk.PhysicalDevice, dev vk.Device, queue vk.Queue, queueFamily uint32, framesInFlight int) (*Context, error) {
	c := &Context{
		physicalDevice: physicalDevice,
		device:         dev,
		queue:          queue,
		framesInFlight: framesInFlight,
		pending:        make([][]func(), framesInFlight),
	}

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit | vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: queueFamily,
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(dev, &poolInfo, nil, &pool); res != vk.Success {
		return nil, fmt.Errorf("vkCreateCommandPool failed: %d", res)
	}
	c.cmdPool = pool

	fenceInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var fence vk.Fence
	if res := vk.CreateFence(dev, &fenceInfo, nil, &fence); res != vk.Success {
		vk.DestroyCommandPool(dev, pool, nil)
		return nil, fmt.Errorf("vkCreateFence failed: %d", res)
	}
	c.transferFence = fence
	return c, nil
}

// Destroy waits for the device to idle and releases everything, including
// whatever is still queued for deferred release.
func (c *Context) Destroy() {
	vk.DeviceWaitIdle(c.device)
	for slot := range c.pending {
		for _, fn := range c.pending[slot] {
			fn()
		}
		c.pending[slot] = nil
	}
	vk.DestroyFence(c.device, c.transferFence, nil)
	vk.DestroyCommandPool(c.device, c.cmdPool, nil)
}

func (c *Context) FrameSlot() int      { return c.frameSlot }
func (c *Context) FramesInFlight() int { return c.framesInFlight }

// BeginFrame advances to the given slot and runs its deferred releases.
// The caller must have waited on that slot's frame fence first, so every
// release queued framesInFlight frames ago is safe to run.
func (c *Context) BeginFrame(slot int) {
	c.frameSlot = slot
	for _, fn := range c.pending[slot] {
		fn()
	}
	c.pending[slot] = c.pending[slot][:0]
}

// DeferRelease queues fn to run when the current frame slot comes around
// again.
func (c *Context) DeferRelease(fn func()) {
	c.pending[c.frameSlot] = append(c.pending[c.frameSlot], fn)
}

func usageFlags(usage device.BufferUsage) (vk.BufferUsageFlagBits, vk.MemoryPropertyFlagBits, bool) {
	switch usage {
	case device.UsageVertex:
		return vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit | vk.BufferUsageTransferSrcBit,
			vk.MemoryPropertyDeviceLocalBit, false
	case device.UsageIndex:
		return vk.BufferUsageIndexBufferBit | vk.BufferUsageTransferDstBit | vk.BufferUsageTransferSrcBit,
			vk.MemoryPropertyDeviceLocalBit, false
	case device.UsageStaging:
		return vk.BufferUsageTransferSrcBit,
			vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit, true
	case device.UsageIndirect:
		return vk.BufferUsageIndirectBufferBit,
			vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit, true
	}
	return 0, 0, false
}

// CreateBuffer allocates a buffer with memory matching its usage. Host
// visible buffers stay mapped for their whole lifetime.
func (c *Context) CreateBuffer(size int, usage device.BufferUsage) (device.Buffer, error) {
	usageBits, memBits, mapIt := usageFlags(usage)

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usageBits),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(c.device, &bufferInfo, nil, &buffer); res != vk.Success {
		return nil, fmt.Errorf("vkCreateBuffer (%s) failed: %d", usage, res)
	}

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(c.device, buffer, &memReqs)
	memReqs.Deref()

	memTypeIndex, err := c.findMemoryType(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(memBits))
	if err != nil {
		vk.DestroyBuffer(c.device, buffer, nil)
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memTypeIndex,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(c.device, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyBuffer(c.device, buffer, nil)
		return nil, fmt.Errorf("vkAllocateMemory (%s) failed: %d", usage, res)
	}
	vk.BindBufferMemory(c.device, buffer, memory, 0)

	b := &vkBuffer{handle: buffer, memory: memory, size: size, usage: usage}
	if mapIt {
		var data unsafe.Pointer
		if res := vk.MapMemory(c.device, memory, 0, vk.DeviceSize(size), 0, &data); res != vk.Success {
			vk.DestroyBuffer(c.device, buffer, nil)
			vk.FreeMemory(c.device, memory, nil)
			return nil, fmt.Errorf("vkMapMemory (%s) failed: %d", usage, res)
		}
		b.mapped = data
	}
	return b, nil
}

func (c *Context) DestroyBuffer(b device.Buffer) {
	vb := b.(*vkBuffer)
	if vb.mapped != nil {
		vk.UnmapMemory(c.device, vb.memory)
		vb.mapped = nil
	}
	vk.DestroyBuffer(c.device, vb.handle, nil)
	vk.FreeMemory(c.device, vb.memory, nil)
}

// WriteBuffer copies data into a persistently mapped buffer at offset.
func (c *Context) WriteBuffer(b device.Buffer, offset int, data []byte) error {
	vb := b.(*vkBuffer)
	if vb.mapped == nil {
		return fmt.Errorf("write to unmapped %s buffer", vb.usage)
	}
	if offset+len(data) > vb.size {
		return fmt.Errorf("write of %d bytes at %d exceeds %s buffer of %d", len(data), offset, vb.usage, vb.size)
	}
	vk.Memcopy(unsafe.Add(vb.mapped, offset), data)
	return nil
}

// BeginCommands allocates and begins a one-shot primary command buffer.
func (c *Context) BeginCommands() (device.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cmdBuffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(c.device, &allocInfo, cmdBuffers); res != vk.Success {
		return nil, fmt.Errorf("vkAllocateCommandBuffers failed: %d", res)
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(cmdBuffers[0], &beginInfo); res != vk.Success {
		vk.FreeCommandBuffers(c.device, c.cmdPool, 1, cmdBuffers)
		return nil, fmt.Errorf("vkBeginCommandBuffer failed: %d", res)
	}
	return &vkCommands{cb: cmdBuffers[0]}, nil
}

func (c *Context) CopyBuffer(cb device.CommandBuffer, src, dst device.Buffer, regions []device.BufferCopy) {
	vkRegions := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		vkRegions[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(cb.(*vkCommands).cb, src.(*vkBuffer).handle, dst.(*vkBuffer).handle, uint32(len(vkRegions)), vkRegions)
}

// TransferBarrier makes all transfer writes in the command buffer visible
// to subsequent vertex, index and indirect reads.
func (c *Context) TransferBarrier(cb device.CommandBuffer) {
	barrier := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessVertexAttributeReadBit | vk.AccessIndexReadBit | vk.AccessIndirectCommandReadBit),
	}
	vk.CmdPipelineBarrier(cb.(*vkCommands).cb,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageVertexInputBit|vk.PipelineStageDrawIndirectBit),
		0,
		1, []vk.MemoryBarrier{barrier},
		0, nil,
		0, nil)
}

// EndAndSubmit ends the command buffer, submits it and waits on the
// transfer fence. Transfers complete before the caller continues, so
// staged meshes are drawable the same frame.
func (c *Context) EndAndSubmit(cb device.CommandBuffer) error {
	vcb := cb.(*vkCommands).cb
	if res := vk.EndCommandBuffer(vcb); res != vk.Success {
		return fmt.Errorf("vkEndCommandBuffer failed: %d", res)
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{vcb},
	}
	if res := vk.QueueSubmit(c.queue, 1, []vk.SubmitInfo{submitInfo}, c.transferFence); res != vk.Success {
		return fmt.Errorf("vkQueueSubmit (transfer) failed: %d", res)
	}
	res := vk.WaitForFences(c.device, 1, []vk.Fence{c.transferFence}, vk.True, uint64(transferTimeout.Nanoseconds()))
	vk.ResetFences(c.device, 1, []vk.Fence{c.transferFence})
	vk.FreeCommandBuffers(c.device, c.cmdPool, 1, []vk.CommandBuffer{vcb})
	if res != vk.Success {
		log.Printf("vkdevice: transfer fence wait returned %d", res)
		return fmt.Errorf("transfer fence wait failed: %d", res)
	}
	return nil
}

func (c *Context) BindMeshBuffers(cb device.CommandBuffer, vertex, index device.Buffer) {
	vcb := cb.(*vkCommands).cb
	vk.CmdBindVertexBuffers(vcb, 0, 1, []vk.Buffer{vertex.(*vkBuffer).handle}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(vcb, index.(*vkBuffer).handle, 0, vk.IndexTypeUint32)
}

func (c *Context) DrawIndexedIndirect(cb device.CommandBuffer, indirect device.Buffer, count, stride int) {
	vk.CmdDrawIndexedIndirect(cb.(*vkCommands).cb, indirect.(*vkBuffer).handle, 0, uint32(count), uint32(stride))
}

// WrapCommandBuffer adapts an externally recorded command buffer, such as
// the per-frame buffer the presentation layer owns, so the scene can
// record draws into it.
func WrapCommandBuffer(cb vk.CommandBuffer) device.CommandBuffer {
	return &vkCommands{cb: cb}
}

// findMemoryType finds a memory type matching the filter and properties.
func (c *Context) findMemoryType(typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(c.physicalDevice, &memProps)
	memProps.Deref()

	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memProps.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (memProps.MemoryTypes[i].PropertyFlags&properties) == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no suitable memory type for properties 0x%x", properties)
}
