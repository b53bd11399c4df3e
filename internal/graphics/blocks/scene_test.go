package blocks

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelstream/internal/graphics/device"
	"voxelstream/internal/profiling"
	"voxelstream/internal/world"
)

func testConfig() Config {
	return Config{
		VertexHeapBytes:   4 << 20,
		IndexHeapBytes:    2 << 20,
		StagingBytes:      1 << 20,
		UploadsPerFrame:   4,
		MeshWorkers:       2,
		MeshQueueSize:     64,
		ResultsBufferSize: 64,
	}
}

// newTestScene builds a scene over a host-memory device and a tiny world.
func newTestScene(t *testing.T, cfg Config) (*device.MemContext, *world.World, *Scene) {
	t.Helper()
	ctx := device.NewMemContext(2)
	w := world.New(1, 1)
	s, err := NewScene(ctx, w, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Shutdown()
		w.Close()
		ctx.DrainReleases()
	})
	return ctx, w, s
}

// pumpUntil drives the frame loop until cond holds or the deadline passes.
func pumpUntil(t *testing.T, w *world.World, s *Scene, ctx *device.MemContext, center world.ColumnCoord, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		w.Update(center)
		s.Update()
		ctx.AdvanceFrame()
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func placedColumns(s *Scene) int {
	n := 0
	for _, gpu := range s.columns {
		if gpu.hasAlloc && gpu.indexCount > 0 {
			n++
		}
	}
	return n
}

func TestSceneMeshesAndPlacesAllColumns(t *testing.T) {
	ctx, w, s := newTestScene(t, testConfig())
	center := world.ColumnCoord{X: 0, Z: 0}

	pumpUntil(t, w, s, ctx, center, func() bool {
		return placedColumns(s) == 9
	})

	assert.Greater(t, ctx.Submissions, 0, "placements go through staged copies")
	vFree, iFree := s.heap.FreeBytes()
	assert.Less(t, vFree, 4<<20, "vertex heap holds placed meshes")
	assert.Less(t, iFree, 2<<20, "index heap holds placed meshes")
}

func TestSceneRespectsUploadBudget(t *testing.T) {
	cfg := testConfig()
	cfg.UploadsPerFrame = 1
	ctx, w, s := newTestScene(t, cfg)
	center := world.ColumnCoord{X: 0, Z: 0}

	pumpUntil(t, w, s, ctx, center, func() bool {
		if s.UploadsLastFrame() > 1 {
			t.Fatalf("uploaded %d columns in one frame with budget 1", s.UploadsLastFrame())
		}
		return placedColumns(s) == 9
	})
}

func TestSceneBuildsIndirectDraws(t *testing.T) {
	ctx, w, s := newTestScene(t, testConfig())
	center := world.ColumnCoord{X: 0, Z: 0}
	pumpUntil(t, w, s, ctx, center, func() bool {
		return placedColumns(s) == 9
	})

	// Look at the terrain from above; everything placed is in view.
	proj := mgl32.Perspective(mgl32.DegToRad(70), 1.0, 0.1, 2000)
	view := mgl32.LookAtV(mgl32.Vec3{16, 300, 16}, mgl32.Vec3{16, 0, 16}, mgl32.Vec3{0, 0, -1})
	require.NoError(t, s.Render(nil, proj.Mul4(view)))
	assert.Equal(t, 9, s.DrawCount())

	cmds := s.commands
	for _, cmd := range cmds {
		assert.Equal(t, uint32(1), cmd.InstanceCount)
		assert.NotZero(t, cmd.IndexCount)
		assert.Zero(t, cmd.FirstInstance)
	}

	// The per-frame draw counter mirrors the emitted command count.
	profiling.ResetFrame()
	require.NoError(t, s.Render(nil, proj.Mul4(view)))
	assert.EqualValues(t, 9, profiling.Counter("scene.draw.columns"))

	// Facing away from the terrain everything is culled.
	viewAway := mgl32.LookAtV(mgl32.Vec3{0, 300, 0}, mgl32.Vec3{0, 600, 0}, mgl32.Vec3{0, 0, -1})
	require.NoError(t, s.Render(nil, proj.Mul4(viewAway)))
	assert.Equal(t, 0, s.DrawCount())
}

func TestSceneFreesPlacementsOnUnload(t *testing.T) {
	ctx, w, s := newTestScene(t, testConfig())
	center := world.ColumnCoord{X: 0, Z: 0}
	pumpUntil(t, w, s, ctx, center, func() bool {
		return placedColumns(s) == 9
	})

	// Move far away; every old column unloads and must release its
	// placement through the observer.
	far := world.ColumnCoord{X: 1000, Z: 0}
	pumpUntil(t, w, s, ctx, far, func() bool {
		for coord := range s.columns {
			if coord.Chebyshev(far) > 1 {
				return false
			}
		}
		return true
	})

	pumpUntil(t, w, s, ctx, far, func() bool {
		return placedColumns(s) == 9
	})
	assert.Len(t, s.columns, 9, "stale render state must not accumulate")
}

func TestSceneIndirectBufferGrows(t *testing.T) {
	ctx, w, s := newTestScene(t, testConfig())
	center := world.ColumnCoord{X: 0, Z: 0}
	pumpUntil(t, w, s, ctx, center, func() bool {
		return placedColumns(s) == 9
	})

	proj := mgl32.Perspective(mgl32.DegToRad(70), 1.0, 0.1, 2000)
	view := mgl32.LookAtV(mgl32.Vec3{16, 300, 16}, mgl32.Vec3{16, 0, 16}, mgl32.Vec3{0, 0, -1})
	require.NoError(t, s.Render(nil, proj.Mul4(view)))

	slot := ctx.FrameSlot()
	buf := s.indirect[slot]
	require.NotNil(t, buf)
	assert.GreaterOrEqual(t, buf.Size(), s.DrawCount()*device.DrawCommandSize)

	// A second render into the same slot reuses the buffer.
	require.NoError(t, s.Render(nil, proj.Mul4(view)))
	assert.Same(t, buf, s.indirect[slot])
}
