package vkdevice

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"
)

// Renderer owns the presentation side: swapchain, render pass, the mesh
// pipeline and per-frame synchronization. Scene draws are recorded into its
// frame command buffers between BeginFrame and EndFrame.
type Renderer struct {
	ctx     *Context
	surface vk.Surface

	swapchain      vk.Swapchain
	format         vk.Format
	extent         vk.Extent2D
	images         []vk.Image
	views          []vk.ImageView
	framebuffers   []vk.Framebuffer
	renderPass     vk.RenderPass
	pipeline       vk.Pipeline
	pipelineLayout vk.PipelineLayout

	depthImage  vk.Image
	depthMemory vk.DeviceMemory
	depthView   vk.ImageView

	texture *textureArray

	frameCmd       []vk.CommandBuffer
	imageAvailable []vk.Semaphore
	renderFinished []vk.Semaphore
	frameFences    []vk.Fence

	frame      int
	imageIndex uint32
}

// pushConstants is the per-frame data handed to the vertex shader.
type pushConstants struct {
	ViewProj mgl32.Mat4
}

// NewRenderer builds the full presentation stack over an existing context
// and surface. shaderDir must contain mesh.vert.spv and mesh.frag.spv,
// compiled from the sources next to them with glslangValidator.
func NewRenderer(ctx *Context, surface vk.Surface, width, height uint32, shaderDir, textureDir string) (*Renderer, error) {
	r := &Renderer{ctx: ctx, surface: surface}

	if err := r.createSwapchain(width, height); err != nil {
		return nil, err
	}
	if err := r.createDepthBuffer(); err != nil {
		r.Destroy()
		return nil, err
	}
	if err := r.createRenderPass(); err != nil {
		r.Destroy()
		return nil, err
	}
	if err := r.createFramebuffers(); err != nil {
		r.Destroy()
		return nil, err
	}
	tex, err := newTextureArray(ctx, textureDir)
	if err != nil {
		r.Destroy()
		return nil, err
	}
	r.texture = tex
	if err := r.createPipeline(shaderDir); err != nil {
		r.Destroy()
		return nil, err
	}
	if err := r.createFrameResources(); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) Extent() (width, height uint32) {
	return r.extent.Width, r.extent.Height
}

func (r *Renderer) createSwapchain(width, height uint32) error {
	var caps vk.SurfaceCapabilities
	vk.GetPhysicalDeviceSurfaceCapabilities(r.ctx.physicalDevice, r.surface, &caps)
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(r.ctx.physicalDevice, r.surface, &formatCount, nil)
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(r.ctx.physicalDevice, r.surface, &formatCount, formats)
	formats[0].Deref()
	r.format = formats[0].Format
	colorSpace := formats[0].ColorSpace
	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == vk.FormatB8g8r8a8Unorm {
			r.format = formats[i].Format
			colorSpace = formats[i].ColorSpace
			break
		}
	}

	r.extent = caps.CurrentExtent
	if r.extent.Width == ^uint32(0) {
		r.extent = vk.Extent2D{Width: width, Height: height}
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          r.surface,
		MinImageCount:    imageCount,
		ImageFormat:      r.format,
		ImageColorSpace:  colorSpace,
		ImageExtent:      r.extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
	}
	var swapchain vk.Swapchain
	if res := vk.CreateSwapchain(r.ctx.device, &createInfo, nil, &swapchain); res != vk.Success {
		return fmt.Errorf("vkCreateSwapchainKHR failed: %d", res)
	}
	r.swapchain = swapchain

	var count uint32
	vk.GetSwapchainImages(r.ctx.device, swapchain, &count, nil)
	r.images = make([]vk.Image, count)
	vk.GetSwapchainImages(r.ctx.device, swapchain, &count, r.images)

	r.views = make([]vk.ImageView, count)
	for i, img := range r.images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   r.format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		if res := vk.CreateImageView(r.ctx.device, &viewInfo, nil, &r.views[i]); res != vk.Success {
			return fmt.Errorf("vkCreateImageView (swapchain %d) failed: %d", i, res)
		}
	}
	return nil
}

func (r *Renderer) createDepthBuffer() error {
	imageInfo := vk.ImageCreateInfo{
		SType:       vk.StructureTypeImageCreateInfo,
		ImageType:   vk.ImageType2d,
		Format:      vk.FormatD32Sfloat,
		Extent:      vk.Extent3D{Width: r.extent.Width, Height: r.extent.Height, Depth: 1},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var image vk.Image
	if res := vk.CreateImage(r.ctx.device, &imageInfo, nil, &image); res != vk.Success {
		return fmt.Errorf("vkCreateImage (depth) failed: %d", res)
	}
	r.depthImage = image

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(r.ctx.device, image, &memReqs)
	memReqs.Deref()
	memTypeIndex, err := r.ctx.findMemoryType(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memTypeIndex,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(r.ctx.device, &allocInfo, nil, &memory); res != vk.Success {
		return fmt.Errorf("vkAllocateMemory (depth) failed: %d", res)
	}
	r.depthMemory = memory
	vk.BindImageMemory(r.ctx.device, image, memory, 0)

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   vk.FormatD32Sfloat,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	if res := vk.CreateImageView(r.ctx.device, &viewInfo, nil, &r.depthView); res != vk.Success {
		return fmt.Errorf("vkCreateImageView (depth) failed: %d", res)
	}
	return nil
}

func (r *Renderer) createRenderPass() error {
	attachments := []vk.AttachmentDescription{
		{
			Format:         r.format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		},
		{
			Format:         vk.FormatD32Sfloat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}
	colorRef := vk.AttachmentReference{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal}
	depthRef := vk.AttachmentReference{Attachment: 1, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{colorRef},
		PDepthStencilAttachment: &depthRef,
	}
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}
	renderPassInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	var renderPass vk.RenderPass
	if res := vk.CreateRenderPass(r.ctx.device, &renderPassInfo, nil, &renderPass); res != vk.Success {
		return fmt.Errorf("vkCreateRenderPass failed: %d", res)
	}
	r.renderPass = renderPass
	return nil
}

func (r *Renderer) createFramebuffers() error {
	r.framebuffers = make([]vk.Framebuffer, len(r.views))
	for i, view := range r.views {
		fbInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      r.renderPass,
			AttachmentCount: 2,
			PAttachments:    []vk.ImageView{view, r.depthView},
			Width:           r.extent.Width,
			Height:          r.extent.Height,
			Layers:          1,
		}
		if res := vk.CreateFramebuffer(r.ctx.device, &fbInfo, nil, &r.framebuffers[i]); res != vk.Success {
			return fmt.Errorf("vkCreateFramebuffer (%d) failed: %d", i, res)
		}
	}
	return nil
}

func loadShader(dir, name string) ([]byte, error) {
	code, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("load shader %s (compile the .vert/.frag sources with glslangValidator -V): %w", name, err)
	}
	return code, nil
}

func (r *Renderer) createShaderModule(code []byte) (vk.ShaderModule, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(r.ctx.device, &createInfo, nil, &module); res != vk.Success {
		return vk.NullShaderModule, fmt.Errorf("vkCreateShaderModule failed: %d", res)
	}
	return module, nil
}

func sliceUint32(data []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

// vertexStride mirrors the meshing Vertex layout: position, uv, layer.
const vertexStride = 6 * 4

func (r *Renderer) createPipeline(shaderDir string) error {
	vertCode, err := loadShader(shaderDir, "mesh.vert.spv")
	if err != nil {
		return err
	}
	fragCode, err := loadShader(shaderDir, "mesh.frag.spv")
	if err != nil {
		return err
	}
	vertModule, err := r.createShaderModule(vertCode)
	if err != nil {
		return err
	}
	defer vk.DestroyShaderModule(r.ctx.device, vertModule, nil)
	fragModule, err := r.createShaderModule(fragCode)
	if err != nil {
		return err
	}
	defer vk.DestroyShaderModule(r.ctx.device, fragModule, nil)

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertModule,
			PName:  "main\x00",
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragModule,
			PName:  "main\x00",
		},
	}

	binding := vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    vertexStride,
		InputRate: vk.VertexInputRateVertex,
	}
	attributes := []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 12},
		{Location: 2, Binding: 0, Format: vk.FormatR32Sfloat, Offset: 20},
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{binding},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	viewport := vk.Viewport{
		Width:    float32(r.extent.Width),
		Height:   float32(r.extent.Height),
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{Extent: r.extent}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    []vk.Viewport{viewport},
		ScissorCount:  1,
		PScissors:     []vk.Rect2D{scissor},
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.True,
		DepthWriteEnable: vk.True,
		DepthCompareOp:   vk.CompareOpLess,
	}
	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	pushRange := vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		Offset:     0,
		Size:       uint32(unsafe.Sizeof(pushConstants{})),
	}
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{r.texture.setLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushRange},
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(r.ctx.device, &layoutInfo, nil, &layout); res != vk.Success {
		return fmt.Errorf("vkCreatePipelineLayout failed: %d", res)
	}
	r.pipelineLayout = layout

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		Layout:              layout,
		RenderPass:          r.renderPass,
	}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(r.ctx.device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines); res != vk.Success {
		return fmt.Errorf("vkCreateGraphicsPipelines failed: %d", res)
	}
	r.pipeline = pipelines[0]
	return nil
}

func (r *Renderer) createFrameResources() error {
	n := r.ctx.framesInFlight
	r.frameCmd = make([]vk.CommandBuffer, n)
	r.imageAvailable = make([]vk.Semaphore, n)
	r.renderFinished = make([]vk.Semaphore, n)
	r.frameFences = make([]vk.Fence, n)

	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        r.ctx.cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(n),
	}
	if res := vk.AllocateCommandBuffers(r.ctx.device, &allocInfo, r.frameCmd); res != vk.Success {
		return fmt.Errorf("vkAllocateCommandBuffers (frame) failed: %d", res)
	}
	for i := 0; i < n; i++ {
		semInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
		if res := vk.CreateSemaphore(r.ctx.device, &semInfo, nil, &r.imageAvailable[i]); res != vk.Success {
			return fmt.Errorf("vkCreateSemaphore failed: %d", res)
		}
		if res := vk.CreateSemaphore(r.ctx.device, &semInfo, nil, &r.renderFinished[i]); res != vk.Success {
			return fmt.Errorf("vkCreateSemaphore failed: %d", res)
		}
		fenceInfo := vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}
		if res := vk.CreateFence(r.ctx.device, &fenceInfo, nil, &r.frameFences[i]); res != vk.Success {
			return fmt.Errorf("vkCreateFence (frame) failed: %d", res)
		}
	}
	return nil
}

// BeginFrame waits for the frame slot, acquires a swapchain image and
// starts the render pass. The returned command buffer is ready for draws.
// outdated means the swapchain no longer matches the surface and the
// caller should recreate.
func (r *Renderer) BeginFrame(viewProj mgl32.Mat4) (cb vk.CommandBuffer, outdated bool, err error) {
	slot := r.frame % r.ctx.framesInFlight
	vk.WaitForFences(r.ctx.device, 1, []vk.Fence{r.frameFences[slot]}, vk.True, ^uint64(0))
	r.ctx.BeginFrame(slot)

	var imageIndex uint32
	res := vk.AcquireNextImage(r.ctx.device, r.swapchain, ^uint64(0), r.imageAvailable[slot], vk.NullFence, &imageIndex)
	if res == vk.ErrorOutOfDate {
		return nil, true, nil
	}
	if res != vk.Success && res != vk.Suboptimal {
		return nil, false, fmt.Errorf("vkAcquireNextImageKHR failed: %d", res)
	}
	r.imageIndex = imageIndex
	vk.ResetFences(r.ctx.device, 1, []vk.Fence{r.frameFences[slot]})

	cmd := r.frameCmd[slot]
	vk.ResetCommandBuffer(cmd, 0)
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(cmd, &beginInfo); res != vk.Success {
		return nil, false, fmt.Errorf("vkBeginCommandBuffer (frame) failed: %d", res)
	}

	clearValues := []vk.ClearValue{
		vk.NewClearValue([]float32{0.53, 0.77, 0.92, 1.0}),
		vk.NewClearDepthStencil(1.0, 0),
	}
	renderPassInfo := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      r.renderPass,
		Framebuffer:     r.framebuffers[imageIndex],
		RenderArea:      vk.Rect2D{Extent: r.extent},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(cmd, &renderPassInfo, vk.SubpassContentsInline)
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, r.pipeline)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, r.pipelineLayout, 0, 1, []vk.DescriptorSet{r.texture.set}, 0, nil)

	pc := pushConstants{ViewProj: viewProj}
	vk.CmdPushConstants(cmd, r.pipelineLayout, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0,
		uint32(unsafe.Sizeof(pc)), unsafe.Pointer(&pc))
	return cmd, false, nil
}

// EndFrame closes the render pass, submits and presents.
func (r *Renderer) EndFrame() (outdated bool, err error) {
	slot := r.frame % r.ctx.framesInFlight
	cmd := r.frameCmd[slot]
	vk.CmdEndRenderPass(cmd)
	if res := vk.EndCommandBuffer(cmd); res != vk.Success {
		return false, fmt.Errorf("vkEndCommandBuffer (frame) failed: %d", res)
	}

	waitStage := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{r.imageAvailable[slot]},
		PWaitDstStageMask:    []vk.PipelineStageFlags{waitStage},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{r.renderFinished[slot]},
	}
	if res := vk.QueueSubmit(r.ctx.queue, 1, []vk.SubmitInfo{submitInfo}, r.frameFences[slot]); res != vk.Success {
		return false, fmt.Errorf("vkQueueSubmit (frame) failed: %d", res)
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{r.renderFinished[slot]},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{r.swapchain},
		PImageIndices:      []uint32{r.imageIndex},
	}
	res := vk.QueuePresent(r.ctx.queue, &presentInfo)
	r.frame++
	if res == vk.ErrorOutOfDate || res == vk.Suboptimal {
		return true, nil
	}
	if res != vk.Success {
		return false, fmt.Errorf("vkQueuePresentKHR failed: %d", res)
	}
	return false, nil
}

// Destroy tears the presentation stack down. Safe on a partially built
// renderer.
func (r *Renderer) Destroy() {
	dev := r.ctx.device
	vk.DeviceWaitIdle(dev)
	for _, f := range r.frameFences {
		vk.DestroyFence(dev, f, nil)
	}
	for _, s := range r.renderFinished {
		vk.DestroySemaphore(dev, s, nil)
	}
	for _, s := range r.imageAvailable {
		vk.DestroySemaphore(dev, s, nil)
	}
	if len(r.frameCmd) > 0 {
		vk.FreeCommandBuffers(dev, r.ctx.cmdPool, uint32(len(r.frameCmd)), r.frameCmd)
	}
	if r.pipeline != vk.NullPipeline {
		vk.DestroyPipeline(dev, r.pipeline, nil)
	}
	if r.pipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(dev, r.pipelineLayout, nil)
	}
	if r.texture != nil {
		r.texture.destroy(r.ctx)
	}
	for _, fb := range r.framebuffers {
		vk.DestroyFramebuffer(dev, fb, nil)
	}
	if r.renderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(dev, r.renderPass, nil)
	}
	if r.depthView != vk.NullImageView {
		vk.DestroyImageView(dev, r.depthView, nil)
	}
	if r.depthImage != vk.NullImage {
		vk.DestroyImage(dev, r.depthImage, nil)
		vk.FreeMemory(dev, r.depthMemory, nil)
	}
	for _, v := range r.views {
		vk.DestroyImageView(dev, v, nil)
	}
	if r.swapchain != vk.NullSwapchain {
		vk.DestroySwapchain(dev, r.swapchain, nil)
	}
}
