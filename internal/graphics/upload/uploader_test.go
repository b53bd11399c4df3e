package upload

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelstream/internal/graphics/device"
)

func TestBatchedUploadsLandAtOffsets(t *testing.T) {
	ctx := device.NewMemContext(2)
	b, err := NewBatcher(ctx, 256)
	require.NoError(t, err)

	dst, err := ctx.CreateBuffer(128, device.UsageVertex)
	require.NoError(t, err)

	b.Begin()
	require.True(t, b.Upload([]byte{1, 2, 3, 4}, dst, 0))
	require.True(t, b.Upload([]byte{9, 9}, dst, 100))
	require.NoError(t, b.Flush())

	got := ctx.Bytes(dst)
	assert.Equal(t, []byte{1, 2, 3, 4}, got[0:4])
	assert.Equal(t, []byte{9, 9}, got[100:102])
}

func TestFlushSubmitsAndBarriersOnce(t *testing.T) {
	ctx := device.NewMemContext(2)
	b, err := NewBatcher(ctx, 1024)
	require.NoError(t, err)

	dstA, _ := ctx.CreateBuffer(512, device.UsageVertex)
	dstB, _ := ctx.CreateBuffer(512, device.UsageIndex)

	b.Begin()
	for i := 0; i < 10; i++ {
		require.True(t, b.Upload([]byte{byte(i)}, dstA, i*16))
		require.True(t, b.Upload([]byte{byte(i)}, dstB, i*16))
	}
	require.NoError(t, b.Flush())

	assert.Equal(t, 1, ctx.Submissions, "all copies share one submit")
	assert.Equal(t, 1, ctx.Barriers, "all copies share one barrier")
	assert.Equal(t, 20, ctx.CopyRegions)
}

func TestFlushWithoutUploadsIsNoop(t *testing.T) {
	ctx := device.NewMemContext(2)
	b, err := NewBatcher(ctx, 64)
	require.NoError(t, err)

	b.Begin()
	require.NoError(t, b.Flush())
	assert.Equal(t, 0, ctx.Submissions)
	assert.Equal(t, 0, ctx.Barriers)
}

func TestOverflowReturnsFalseWithoutMutation(t *testing.T) {
	ctx := device.NewMemContext(2)
	b, err := NewBatcher(ctx, 16)
	require.NoError(t, err)

	dst, _ := ctx.CreateBuffer(64, device.UsageVertex)

	b.Begin()
	require.True(t, b.Upload([]byte{1, 2, 3, 4, 5, 6, 7, 8}, dst, 0))

	// Too large for the remaining 8 bytes; must not consume anything.
	assert.False(t, b.Upload(make([]byte, 12), dst, 8))

	// The remaining capacity is still intact for a fitting request.
	require.True(t, b.Upload([]byte{42}, dst, 32))
	require.NoError(t, b.Flush())
	assert.Equal(t, byte(42), ctx.Bytes(dst)[32])
}

func TestUploadAlignsStagingCursor(t *testing.T) {
	ctx := device.NewMemContext(2)
	b, err := NewBatcher(ctx, 64)
	require.NoError(t, err)

	dst, _ := ctx.CreateBuffer(64, device.UsageVertex)

	b.Begin()
	require.True(t, b.Upload([]byte{1}, dst, 0))
	require.True(t, b.Upload([]byte{2}, dst, 8))
	require.NoError(t, b.Flush())

	// Second copy starts at the next aligned staging offset.
	staging := b.staging[ctx.FrameSlot()]
	assert.Equal(t, byte(1), ctx.Bytes(staging)[0])
	assert.Equal(t, byte(2), ctx.Bytes(staging)[4])
}

func TestUploadDirectBypassesStaging(t *testing.T) {
	ctx := device.NewMemContext(2)
	b, err := NewBatcher(ctx, 8)
	require.NoError(t, err)

	dst, _ := ctx.CreateBuffer(256, device.UsageVertex)
	payload := bytes.Repeat([]byte{7}, 100)

	require.False(t, b.Upload(payload, dst, 16), "oversized request must not fit staging")
	require.NoError(t, b.UploadDirect(payload, dst, 16))
	assert.Equal(t, payload, ctx.Bytes(dst)[16:116])

	// The transient staging buffer retires once all frame slots cycle.
	live := ctx.Live
	ctx.AdvanceFrame()
	ctx.AdvanceFrame()
	assert.Equal(t, live-1, ctx.Live)
}

func TestPerSlotStagingBuffers(t *testing.T) {
	ctx := device.NewMemContext(3)
	b, err := NewBatcher(ctx, 32)
	require.NoError(t, err)
	assert.Len(t, b.staging, 3)

	dst, _ := ctx.CreateBuffer(32, device.UsageVertex)

	b.Begin()
	require.True(t, b.Upload([]byte{1}, dst, 0))
	require.NoError(t, b.Flush())

	ctx.AdvanceFrame()
	b.Begin()
	require.True(t, b.Upload([]byte{2}, dst, 4))
	require.NoError(t, b.Flush())

	// Each slot wrote through its own staging buffer.
	assert.Equal(t, byte(1), ctx.Bytes(b.staging[0])[0])
	assert.Equal(t, byte(2), ctx.Bytes(b.staging[1])[0])
}
