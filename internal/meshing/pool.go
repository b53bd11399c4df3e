package meshing

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"voxelstream/internal/world"
)

// Job requests a mesh build for one column. The result is delivered on
// Result exactly once; the caller never blocks waiting on the worker.
type Job struct {
	World  *world.World
	Column *world.Column
	Result chan<- Result
}

// Result is the outcome of one column mesh build. On success Buffers holds
// the merged vertex/index lists for all eight sub-chunks; ownership passes
// to the consumer, who returns them to the pool after upload. On failure
// Buffers is nil and the column's dirty flags stay cleared so the fault does
// not retry in a loop.
type Result struct {
	Column  *world.Column
	Buffers *MeshBuffers
	Err     error
}

// ActiveTasks is the number of mesh builds currently running, for the
// profiling overlay counters.
var ActiveTasks atomic.Int32

// WorkerPool runs column mesh builds on background goroutines.
type WorkerPool struct {
	jobQueue chan Job
	buffers  *BufferPool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWorkerPool starts workers goroutines servicing a queue of queueSize.
func NewWorkerPool(workers, queueSize int, buffers *BufferPool) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		jobQueue: make(chan Job, queueSize),
		buffers:  buffers,
		ctx:      ctx,
		cancel:   cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit queues a job without blocking. Returns false when the queue is
// full; the caller re-marks the column dirty and retries next frame.
func (p *WorkerPool) Submit(job Job) bool {
	select {
	case p.jobQueue <- job:
		return true
	default:
		return false
	}
}

// QueueLength returns the number of jobs waiting.
func (p *WorkerPool) QueueLength() int {
	return len(p.jobQueue)
}

// Shutdown stops the workers and waits for in-flight builds to finish.
func (p *WorkerPool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	var mesher Mesher
	for {
		select {
		case job := <-p.jobQueue:
			res := p.runJob(&mesher, job)
			select {
			case job.Result <- res:
			case <-p.ctx.Done():
				p.buffers.ReturnMesh(res.Buffers)
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// runJob builds the merged mesh for one column. A panic anywhere in the
// build is contained here: pooled buffers go back to the pool, the fault is
// logged and reported in the result, and the main thread never sees it.
func (p *WorkerPool) runJob(mesher *Mesher, job Job) (res Result) {
	ActiveTasks.Add(1)
	defer ActiveTasks.Add(-1)

	snap := p.buffers.RentSnapshot()
	scratch := p.buffers.RentScratch()
	out := p.buffers.RentMesh(0)

	defer func() {
		p.buffers.ReturnSnapshot(snap)
		p.buffers.ReturnScratch(scratch)
		if r := recover(); r != nil {
			p.buffers.ReturnMesh(out)
			log.Printf("meshing: column (%d,%d) build panicked: %v", job.Column.Coord.X, job.Column.Coord.Z, r)
			res = Result{Column: job.Column, Err: fmt.Errorf("mesh build panicked: %v", r)}
		}
	}()

	col := job.Column
	for chunkY, ch := range col.Chunks {
		if ch.IsEmpty() {
			continue
		}
		scratch = CaptureSnapshot(snap, job.World, col, chunkY, scratch)
		out.Verts, out.Indices = mesher.BuildChunkMesh(snap, ch.Origin, out.Verts, out.Indices)
	}
	return Result{Column: col, Buffers: out}
}
