// Package blocks drives the per-column render state: it feeds dirty columns
// to the mesh workers, places finished meshes into the shared heap under a
// per-frame upload budget, and turns a frustum walk over regions into a
// single indirect multi-draw.
package blocks

import (
	"fmt"
	"log"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/graphics/device"
	"voxelstream/internal/graphics/heap"
	"voxelstream/internal/graphics/upload"
	"voxelstream/internal/meshing"
	"voxelstream/internal/profiling"
	"voxelstream/internal/world"
)

// frustumMargin inflates tested AABBs by this many blocks.
const frustumMargin float32 = 1.0

// columnGPU is the render-side state of one loaded column. The pending
// buffers are written once by a mesh worker and consumed exactly once by
// the upload pass on the main thread.
type columnGPU struct {
	col *world.Column

	alloc    heap.Allocation
	hasAlloc bool
	// Index count of the uploaded mesh; zero means nothing to draw.
	indexCount uint32

	meshInFlight bool
	pending      *meshing.MeshBuffers
	hasPending   bool
}

// Config carries the externally provided knobs the scene consumes.
type Config struct {
	VertexHeapBytes   int
	IndexHeapBytes    int
	StagingBytes      int
	UploadsPerFrame   int
	MeshWorkers       int
	MeshQueueSize     int
	ResultsBufferSize int
}

// Scene owns the GPU residency of every loaded column.
type Scene struct {
	ctx   device.Context
	world *world.World
	heap  *heap.Heap
	batch *upload.Batcher

	buffers *meshing.BufferPool
	workers *meshing.WorkerPool
	results chan meshing.Result

	columns     map[world.ColumnCoord]*columnGPU
	uploadQueue []*columnGPU
	budget      int

	commands    []device.DrawIndexedIndirectCommand
	indirect    []device.Buffer
	uploadsDone int
}

// NewScene wires the scene into the world's unload path and starts the mesh
// workers.
func NewScene(ctx device.Context, w *world.World, cfg Config) (*Scene, error) {
	h, err := heap.New(ctx, cfg.VertexHeapBytes, cfg.IndexHeapBytes)
	if err != nil {
		return nil, err
	}
	batch, err := upload.NewBatcher(ctx, cfg.StagingBytes)
	if err != nil {
		h.Destroy()
		return nil, err
	}
	buffers := meshing.NewBufferPool()
	s := &Scene{
		ctx:      ctx,
		world:    w,
		heap:     h,
		batch:    batch,
		buffers:  buffers,
		workers:  meshing.NewWorkerPool(cfg.MeshWorkers, cfg.MeshQueueSize, buffers),
		results:  make(chan meshing.Result, cfg.ResultsBufferSize),
		columns:  make(map[world.ColumnCoord]*columnGPU),
		budget:   cfg.UploadsPerFrame,
		indirect: make([]device.Buffer, ctx.FramesInFlight()),
	}
	w.SetUnloadObserver(s.onColumnUnload)
	return s, nil
}

// Shutdown stops the workers and releases GPU resources.
func (s *Scene) Shutdown() {
	s.workers.Shutdown()
	s.drainResults()
	for _, gpu := range s.columns {
		s.releaseColumn(gpu)
	}
	s.batch.Destroy()
	s.heap.Destroy()
	for _, buf := range s.indirect {
		if buf != nil {
			b := buf
			s.ctx.DeferRelease(func() { s.ctx.DestroyBuffer(b) })
		}
	}
}

// UploadsLastFrame reports how many columns were placed in the last Update,
// for the profiling counters.
func (s *Scene) UploadsLastFrame() int {
	return s.uploadsDone
}

// Update runs the per-frame mesh pipeline on the main thread: drain worker
// results, submit newly dirty columns, then upload finished meshes into the
// heap, bounded by the per-frame budget.
func (s *Scene) Update() {
	s.drainResults()
	s.submitDirty()
	s.uploadPending()
}

func (s *Scene) drainResults() {
	for {
		select {
		case res := <-s.results:
			s.applyResult(res)
		default:
			return
		}
	}
}

func (s *Scene) applyResult(res meshing.Result) {
	gpu := s.columns[res.Column.Coord]
	if gpu == nil || gpu.col != res.Column || res.Column.Released() {
		// Column unloaded while meshing; drop the result.
		s.buffers.ReturnMesh(res.Buffers)
		return
	}
	gpu.meshInFlight = false
	if res.Err != nil {
		// Dirty flags stay cleared, so the fault does not spin. A later
		// edit or neighbor generation re-marks the column.
		return
	}
	if gpu.hasPending {
		// Superseded result that was never uploaded.
		s.buffers.ReturnMesh(gpu.pending)
	} else {
		s.uploadQueue = append(s.uploadQueue, gpu)
	}
	gpu.pending = res.Buffers
	gpu.hasPending = true
}

// submitDirty queues mesh jobs for ready, dirty columns. Dirty flags are
// cleared on submission (not completion) so one job is in flight per column
// at most.
func (s *Scene) submitDirty() {
	s.world.EachColumn(func(col *world.Column) {
		if col.State() != world.ColumnReady {
			return
		}
		gpu := s.columns[col.Coord]
		if gpu == nil {
			gpu = &columnGPU{col: col}
			s.columns[col.Coord] = gpu
		}
		if gpu.meshInFlight || !col.IsMeshDirty() {
			return
		}
		if col.IsEmpty() {
			// Nothing to extract; clear any previous mesh.
			for _, ch := range col.Chunks {
				ch.ClearMeshDirty()
			}
			s.clearPlacement(gpu)
			return
		}
		for _, ch := range col.Chunks {
			ch.ClearMeshDirty()
		}
		ok := s.workers.Submit(meshing.Job{World: s.world, Column: col, Result: s.results})
		if ok {
			gpu.meshInFlight = true
		} else {
			// Queue full; re-mark and retry next frame.
			col.MarkMeshDirty()
		}
	})
}

// uploadPending places up to budget finished column meshes into the heap
// through the batch uploader.
func (s *Scene) uploadPending() {
	s.uploadsDone = 0
	if len(s.uploadQueue) == 0 {
		return
	}
	s.batch.Begin()
	n := 0
	for n < len(s.uploadQueue) && s.uploadsDone < s.budget {
		gpu := s.uploadQueue[n]
		n++
		if !gpu.hasPending {
			continue
		}
		bufs := gpu.pending
		gpu.pending = nil
		gpu.hasPending = false
		if gpu.col.Released() {
			s.buffers.ReturnMesh(bufs)
			continue
		}
		if err := s.uploadColumn(gpu, bufs); err != nil {
			log.Printf("blocks: column (%d,%d) upload: %v", gpu.col.Coord.X, gpu.col.Coord.Z, err)
			// Placement failed (heap exhaustion). Re-dirty so the column is
			// retried on a later frame instead of staying invisible forever.
			gpu.col.MarkMeshDirty()
		} else {
			s.uploadsDone++
		}
		s.buffers.ReturnMesh(bufs)
	}
	s.uploadQueue = s.uploadQueue[:copy(s.uploadQueue, s.uploadQueue[n:])]
	if err := s.batch.Flush(); err != nil {
		log.Printf("blocks: upload flush: %v", err)
	}
	profiling.Count("scene.upload.columns", int64(s.uploadsDone))
}

// uploadColumn sizes a placement for the mesh and stages both copies. An
// existing placement is reused when the sizes still match; otherwise it is
// freed first and a fresh one allocated, which may grow the heap.
func (s *Scene) uploadColumn(gpu *columnGPU, bufs *meshing.MeshBuffers) error {
	if len(bufs.Indices) == 0 {
		s.clearPlacement(gpu)
		return nil
	}
	vbytes := meshing.VertexBytes(bufs.Verts)
	ibytes := meshing.IndexBytes(bufs.Indices)

	needAlloc := !gpu.hasAlloc ||
		gpu.alloc.VertexSize < len(vbytes) || gpu.alloc.IndexSize < len(ibytes)
	if needAlloc {
		if gpu.hasAlloc {
			s.heap.Free(gpu.alloc)
			gpu.hasAlloc = false
		}
		alloc, err := s.heap.Allocate(len(vbytes), len(ibytes))
		if err != nil {
			gpu.indexCount = 0
			return fmt.Errorf("allocate placement: %w", err)
		}
		gpu.alloc = alloc
		gpu.hasAlloc = true
	}

	if !s.batch.Upload(vbytes, s.heap.VertexBuffer(), gpu.alloc.VertexOffset) {
		if err := s.batch.UploadDirect(vbytes, s.heap.VertexBuffer(), gpu.alloc.VertexOffset); err != nil {
			return err
		}
	}
	if !s.batch.Upload(ibytes, s.heap.IndexBuffer(), gpu.alloc.IndexOffset) {
		if err := s.batch.UploadDirect(ibytes, s.heap.IndexBuffer(), gpu.alloc.IndexOffset); err != nil {
			return err
		}
	}
	gpu.indexCount = uint32(len(bufs.Indices))
	return nil
}

func (s *Scene) clearPlacement(gpu *columnGPU) {
	if gpu.hasAlloc {
		s.heap.Free(gpu.alloc)
		gpu.hasAlloc = false
	}
	gpu.indexCount = 0
}

// onColumnUnload is called by the world on the main thread when a column
// leaves the loaded set. The placement is freed here, exactly once; a mesh
// result still in flight is discarded when it drains.
func (s *Scene) onColumnUnload(col *world.Column) {
	gpu := s.columns[col.Coord]
	if gpu == nil || gpu.col != col {
		return
	}
	s.releaseColumn(gpu)
	delete(s.columns, col.Coord)
}

func (s *Scene) releaseColumn(gpu *columnGPU) {
	if gpu.hasPending {
		s.buffers.ReturnMesh(gpu.pending)
		gpu.pending = nil
		gpu.hasPending = false
	}
	s.clearPlacement(gpu)
}

// Render walks regions, frustum-tests hierarchically, and issues one
// indirect multi-draw for every visible placed column. Regions rejected by
// the frustum skip all member columns without individual tests.
func (s *Scene) Render(cb device.CommandBuffer, viewProj mgl32.Mat4) error {
	planes := extractFrustumPlanes(viewProj)
	s.commands = s.commands[:0]

	margin := mgl32.Vec3{frustumMargin, frustumMargin, frustumMargin}
	s.world.EachRegion(func(r *world.Region) {
		rmin, rmax := r.Bounds()
		if !isBoxVisible(rmin.Sub(margin), rmax.Add(margin), planes) {
			return
		}
		r.Each(func(col *world.Column) {
			gpu := s.columns[col.Coord]
			if gpu == nil || gpu.indexCount == 0 || !gpu.hasAlloc {
				return
			}
			cmin, cmax := col.Bounds()
			if !isBoxVisible(cmin.Sub(margin), cmax.Add(margin), planes) {
				return
			}
			s.commands = append(s.commands, device.DrawIndexedIndirectCommand{
				IndexCount:    gpu.indexCount,
				InstanceCount: 1,
				FirstIndex:    uint32(gpu.alloc.IndexOffset / meshing.IndexSize),
				VertexOffset:  int32(gpu.alloc.VertexOffset / meshing.VertexSize),
				FirstInstance: 0,
			})
		})
	})

	profiling.Count("scene.draw.columns", int64(len(s.commands)))
	if len(s.commands) == 0 {
		return nil
	}
	data := device.DrawCommandBytes(s.commands)
	buf, err := s.ensureIndirectBuffer(len(data))
	if err != nil {
		return err
	}
	if err := s.ctx.WriteBuffer(buf, 0, data); err != nil {
		return fmt.Errorf("write indirect commands: %w", err)
	}
	s.ctx.BindMeshBuffers(cb, s.heap.VertexBuffer(), s.heap.IndexBuffer())
	s.ctx.DrawIndexedIndirect(cb, buf, len(s.commands), device.DrawCommandSize)
	return nil
}

// DrawCount reports how many indirect commands the last Render emitted.
func (s *Scene) DrawCount() int {
	return len(s.commands)
}

// ActiveMeshTasks reports how many mesh builds are running right now.
func (s *Scene) ActiveMeshTasks() int {
	return int(meshing.ActiveTasks.Load())
}

// ensureIndirectBuffer returns this frame slot's indirect buffer, growing
// it geometrically when the command list no longer fits.
func (s *Scene) ensureIndirectBuffer(size int) (device.Buffer, error) {
	slot := s.ctx.FrameSlot()
	buf := s.indirect[slot]
	if buf != nil && buf.Size() >= size {
		return buf, nil
	}
	newSize := 64 * device.DrawCommandSize
	if buf != nil {
		newSize = buf.Size()
	}
	for newSize < size {
		newSize *= 2
	}
	replacement, err := s.ctx.CreateBuffer(newSize, device.UsageIndirect)
	if err != nil {
		return nil, fmt.Errorf("grow indirect buffer: %w", err)
	}
	if buf != nil {
		old := buf
		s.ctx.DeferRelease(func() { s.ctx.DestroyBuffer(old) })
	}
	s.indirect[slot] = replacement
	return replacement, nil
}
