package vkdevice

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"voxelstream/internal/graphics/device"
	"voxelstream/internal/graphics/textures"
)

// textureArray is the block texture array image plus the descriptor
// machinery for sampling it.
type textureArray struct {
	image   vk.Image
	memory  vk.DeviceMemory
	view    vk.ImageView
	sampler vk.Sampler

	setLayout vk.DescriptorSetLayout
	pool      vk.DescriptorPool
	set       vk.DescriptorSet
}

// newTextureArray builds the layered image from dir and uploads it through
// a one-shot staging buffer.
func newTextureArray(ctx *Context, dir string) (*textureArray, error) {
	arr, err := textures.Build(dir)
	if err != nil {
		return nil, err
	}
	t := &textureArray{}

	imageInfo := vk.ImageCreateInfo{
		SType:       vk.StructureTypeImageCreateInfo,
		ImageType:   vk.ImageType2d,
		Format:      vk.FormatR8g8b8a8Unorm,
		Extent:      vk.Extent3D{Width: textures.LayerSize, Height: textures.LayerSize, Depth: 1},
		MipLevels:   1,
		ArrayLayers: uint32(arr.Layers),
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var image vk.Image
	if res := vk.CreateImage(ctx.device, &imageInfo, nil, &image); res != vk.Success {
		return nil, fmt.Errorf("vkCreateImage (textures) failed: %d", res)
	}
	t.image = image

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(ctx.device, image, &memReqs)
	memReqs.Deref()
	memTypeIndex, err := ctx.findMemoryType(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		t.destroy(ctx)
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memTypeIndex,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(ctx.device, &allocInfo, nil, &memory); res != vk.Success {
		t.destroy(ctx)
		return nil, fmt.Errorf("vkAllocateMemory (textures) failed: %d", res)
	}
	t.memory = memory
	vk.BindImageMemory(ctx.device, image, memory, 0)

	if err := t.upload(ctx, arr); err != nil {
		t.destroy(ctx)
		return nil, err
	}
	if err := t.createView(ctx, arr.Layers); err != nil {
		t.destroy(ctx)
		return nil, err
	}
	if err := t.createDescriptors(ctx); err != nil {
		t.destroy(ctx)
		return nil, err
	}
	return t, nil
}

func (t *textureArray) upload(ctx *Context, arr *textures.Array) error {
	staging, err := ctx.CreateBuffer(len(arr.Pixels), device.UsageStaging)
	if err != nil {
		return err
	}
	defer ctx.DestroyBuffer(staging)
	if err := ctx.WriteBuffer(staging, 0, arr.Pixels); err != nil {
		return err
	}

	cb, err := ctx.BeginCommands()
	if err != nil {
		return err
	}
	cmd := cb.(*vkCommands).cb

	subresource := vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1,
		LayerCount: uint32(arr.Layers),
	}
	toTransfer := vk.ImageMemoryBarrier{
		SType:            vk.StructureTypeImageMemoryBarrier,
		DstAccessMask:    vk.AccessFlags(vk.AccessTransferWriteBit),
		OldLayout:        vk.ImageLayoutUndefined,
		NewLayout:        vk.ImageLayoutTransferDstOptimal,
		Image:            t.image,
		SubresourceRange: subresource,
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toTransfer})

	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: uint32(arr.Layers),
		},
		ImageExtent: vk.Extent3D{Width: textures.LayerSize, Height: textures.LayerSize, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cmd, staging.(*vkBuffer).handle, t.image,
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})

	toSampled := vk.ImageMemoryBarrier{
		SType:            vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:    vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask:    vk.AccessFlags(vk.AccessShaderReadBit),
		OldLayout:        vk.ImageLayoutTransferDstOptimal,
		NewLayout:        vk.ImageLayoutShaderReadOnlyOptimal,
		Image:            t.image,
		SubresourceRange: subresource,
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toSampled})

	return ctx.EndAndSubmit(cb)
}

func (t *textureArray) createView(ctx *Context, layers int) error {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    t.image,
		ViewType: vk.ImageViewType2dArray,
		Format:   vk.FormatR8g8b8a8Unorm,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: uint32(layers),
		},
	}
	if res := vk.CreateImageView(ctx.device, &viewInfo, nil, &t.view); res != vk.Success {
		return fmt.Errorf("vkCreateImageView (textures) failed: %d", res)
	}

	// Nearest filtering keeps the block texel look.
	samplerInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.FilterNearest,
		MinFilter:    vk.FilterNearest,
		MipmapMode:   vk.SamplerMipmapModeNearest,
		AddressModeU: vk.SamplerAddressModeRepeat,
		AddressModeV: vk.SamplerAddressModeRepeat,
		AddressModeW: vk.SamplerAddressModeRepeat,
	}
	if res := vk.CreateSampler(ctx.device, &samplerInfo, nil, &t.sampler); res != vk.Success {
		return fmt.Errorf("vkCreateSampler failed: %d", res)
	}
	return nil
}

func (t *textureArray) createDescriptors(ctx *Context) error {
	binding := vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vk.DescriptorSetLayoutBinding{binding},
	}
	if res := vk.CreateDescriptorSetLayout(ctx.device, &layoutInfo, nil, &t.setLayout); res != vk.Success {
		return fmt.Errorf("vkCreateDescriptorSetLayout failed: %d", res)
	}

	poolSize := vk.DescriptorPoolSize{
		Type:            vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: 1,
		PPoolSizes:    []vk.DescriptorPoolSize{poolSize},
	}
	if res := vk.CreateDescriptorPool(ctx.device, &poolInfo, nil, &t.pool); res != vk.Success {
		return fmt.Errorf("vkCreateDescriptorPool failed: %d", res)
	}

	setAllocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     t.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{t.setLayout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(ctx.device, &setAllocInfo, &sets[0]); res != vk.Success {
		return fmt.Errorf("vkAllocateDescriptorSets failed: %d", res)
	}
	t.set = sets[0]

	imageDesc := vk.DescriptorImageInfo{
		Sampler:     t.sampler,
		ImageView:   t.view,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          t.set,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo:      []vk.DescriptorImageInfo{imageDesc},
	}
	vk.UpdateDescriptorSets(ctx.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return nil
}

func (t *textureArray) destroy(ctx *Context) {
	dev := ctx.device
	if t.pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(dev, t.pool, nil)
	}
	if t.setLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(dev, t.setLayout, nil)
	}
	if t.sampler != vk.NullSampler {
		vk.DestroySampler(dev, t.sampler, nil)
	}
	if t.view != vk.NullImageView {
		vk.DestroyImageView(dev, t.view, nil)
	}
	if t.image != vk.NullImage {
		vk.DestroyImage(dev, t.image, nil)
		vk.FreeMemory(dev, t.memory, nil)
	}
}
