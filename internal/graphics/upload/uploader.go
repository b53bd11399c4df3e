// Package upload coalesces many small buffer uploads into one staged copy
// per frame: one command buffer, one barrier, one submit.
package upload

import (
	"fmt"

	"voxelstream/internal/graphics/device"
)

const alignment = 4

type pendingCopy struct {
	dst    device.Buffer
	region device.BufferCopy
}

// Batcher owns one host-visible staging buffer per in-flight frame slot and
// a queue of copy descriptors recorded since Begin.
type Batcher struct {
	ctx     device.Context
	staging []device.Buffer
	cursor  int
	pending []pendingCopy
}

// NewBatcher creates staging buffers of stagingBytes for every frame slot.
func NewBatcher(ctx device.Context, stagingBytes int) (*Batcher, error) {
	b := &Batcher{ctx: ctx}
	for i := 0; i < ctx.FramesInFlight(); i++ {
		buf, err := ctx.CreateBuffer(stagingBytes, device.UsageStaging)
		if err != nil {
			for _, prev := range b.staging {
				ctx.DestroyBuffer(prev)
			}
			return nil, fmt.Errorf("create staging buffer %d: %w", i, err)
		}
		b.staging = append(b.staging, buf)
	}
	return b, nil
}

// Begin resets the write cursor for the current frame slot. The previous
// contents of this slot's staging buffer are no longer in flight by the
// time the slot comes around again.
func (b *Batcher) Begin() {
	b.cursor = 0
	b.pending = b.pending[:0]
}

// Upload stages data for a copy into dst at dstOffset. It returns false,
// without mutating any state, when the remaining staging capacity cannot
// hold the request; the caller then falls back to UploadDirect.
func (b *Batcher) Upload(data []byte, dst device.Buffer, dstOffset int) bool {
	staging := b.staging[b.ctx.FrameSlot()]
	start := (b.cursor + alignment - 1) &^ (alignment - 1)
	if start+len(data) > staging.Size() {
		return false
	}
	if err := b.ctx.WriteBuffer(staging, start, data); err != nil {
		return false
	}
	b.pending = append(b.pending, pendingCopy{
		dst: dst,
		region: device.BufferCopy{
			SrcOffset: start,
			DstOffset: dstOffset,
			Size:      len(data),
		},
	})
	b.cursor = start + len(data)
	return true
}

// Flush records every queued copy into one command buffer, emits a single
// transfer-to-read barrier and submits once. A no-op when nothing was
// queued since Begin.
func (b *Batcher) Flush() error {
	if len(b.pending) == 0 {
		return nil
	}
	staging := b.staging[b.ctx.FrameSlot()]
	cb, err := b.ctx.BeginCommands()
	if err != nil {
		return fmt.Errorf("upload flush: %w", err)
	}

	// Group runs with the same destination to keep one CopyBuffer per run.
	var runDst device.Buffer
	var regions []device.BufferCopy
	flushRun := func() {
		if len(regions) > 0 {
			b.ctx.CopyBuffer(cb, staging, runDst, regions)
			regions = regions[:0]
		}
	}
	for _, pc := range b.pending {
		if pc.dst != runDst {
			flushRun()
			runDst = pc.dst
		}
		regions = append(regions, pc.region)
	}
	flushRun()

	b.ctx.TransferBarrier(cb)
	if err := b.ctx.EndAndSubmit(cb); err != nil {
		return fmt.Errorf("upload submit: %w", err)
	}
	b.pending = b.pending[:0]
	return nil
}

// UploadDirect is the unbatched fallback for requests larger than the
// staging buffer: a transient staging buffer sized to the request, one copy,
// one submit, released once the frame slot's work is known complete.
func (b *Batcher) UploadDirect(data []byte, dst device.Buffer, dstOffset int) error {
	staging, err := b.ctx.CreateBuffer(len(data), device.UsageStaging)
	if err != nil {
		return fmt.Errorf("direct upload staging: %w", err)
	}
	if err := b.ctx.WriteBuffer(staging, 0, data); err != nil {
		b.ctx.DestroyBuffer(staging)
		return fmt.Errorf("direct upload write: %w", err)
	}
	cb, err := b.ctx.BeginCommands()
	if err != nil {
		b.ctx.DestroyBuffer(staging)
		return fmt.Errorf("direct upload: %w", err)
	}
	b.ctx.CopyBuffer(cb, staging, dst, []device.BufferCopy{{SrcOffset: 0, DstOffset: dstOffset, Size: len(data)}})
	b.ctx.TransferBarrier(cb)
	if err := b.ctx.EndAndSubmit(cb); err != nil {
		b.ctx.DestroyBuffer(staging)
		return fmt.Errorf("direct upload submit: %w", err)
	}
	b.ctx.DeferRelease(func() { b.ctx.DestroyBuffer(staging) })
	return nil
}

// Destroy releases the per-slot staging buffers through deferred release.
func (b *Batcher) Destroy() {
	buffers := b.staging
	b.ctx.DeferRelease(func() {
		for _, buf := range buffers {
			b.ctx.DestroyBuffer(buf)
		}
	})
	b.staging = nil
}
