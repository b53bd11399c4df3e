package world

import (
	"log"
	"math"
	"runtime"
	"sync"
)

// UnloadObserver is notified on the main thread when a column leaves the
// world, before its block storage is released. The render side uses it to
// free the column's heap placement exactly once.
type UnloadObserver func(*Column)

// World owns every loaded column, keyed by 2D chunk coordinate, and groups
// them into regions. Map mutation is confined to the main thread; meshing and
// generation workers only perform lookups, guarded by the same RWMutex.
type World struct {
	mu      sync.RWMutex
	columns map[ColumnCoord]*Column
	regions map[RegionCoord]*Region

	gen      *Generator
	jobs     chan *Column
	done     chan *Column
	closed   bool
	onUnload UnloadObserver

	// Columns registered but not yet accepted by the generation queue.
	// Main thread only.
	pendingGen []*Column

	viewDistance int
	center       ColumnCoord
	hasCenter    bool
}

// New creates a world streaming columns within viewDistance (Chebyshev,
// in chunks) of the viewer and starts the generation workers.
func New(seed int64, viewDistance int) *World {
	return newWorld(seed, viewDistance, 4096, max(runtime.NumCPU()-1, 1))
}

func newWorld(seed int64, viewDistance, queueCap, workers int) *World {
	w := &World{
		columns:      make(map[ColumnCoord]*Column),
		regions:      make(map[RegionCoord]*Region),
		gen:          NewGenerator(seed),
		jobs:         make(chan *Column, queueCap),
		done:         make(chan *Column, queueCap),
		viewDistance: viewDistance,
	}
	for i := 0; i < workers; i++ {
		go w.genWorker()
	}
	return w
}

// SetUnloadObserver installs the unload callback. Main thread only, before
// the first Update.
func (w *World) SetUnloadObserver(fn UnloadObserver) {
	w.onUnload = fn
}

// Close stops the generation workers. In-flight tasks finish and their
// results are discarded through the released flag.
func (w *World) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
}

func (w *World) genWorker() {
	for col := range w.jobs {
		if col.Released() {
			continue
		}
		w.gen.Populate(col)
		if col.Released() {
			// Unloaded while generating: drop the result.
			col.release()
			continue
		}
		w.done <- col
	}
}

// UpdateFromPosition recomputes the center column from a world-space viewer
// position and restreams when a chunk boundary was crossed. Call once per
// frame from the main thread.
func (w *World) UpdateFromPosition(x, z float32) {
	center := ColumnCoordForBlock(int(math.Floor(float64(x))), int(math.Floor(float64(z))))
	w.Update(center)
}

// Update drains finished generation tasks, then reconciles the loaded set
// against the view-distance square around center: columns outside unload,
// missing coordinates inside load and queue for generation.
func (w *World) Update(center ColumnCoord) {
	w.drainGenerated()
	w.retryPending()

	if w.hasCenter && center == w.center {
		return
	}
	w.center = center
	w.hasCenter = true

	// Unload pass first so the load pass reuses the freed map capacity.
	var evict []*Column
	w.mu.RLock()
	for coord, col := range w.columns {
		if coord.Chebyshev(center) > w.viewDistance {
			evict = append(evict, col)
		}
	}
	w.mu.RUnlock()
	for _, col := range evict {
		w.unloadColumn(col)
	}

	for dx := -w.viewDistance; dx <= w.viewDistance; dx++ {
		for dz := -w.viewDistance; dz <= w.viewDistance; dz++ {
			coord := ColumnCoord{X: center.X + dx, Z: center.Z + dz}
			w.mu.RLock()
			_, ok := w.columns[coord]
			w.mu.RUnlock()
			if !ok {
				w.loadColumn(coord)
			}
		}
	}
}

// drainGenerated applies completed generation results: the column becomes
// Ready and it plus its four XZ neighbors are re-dirtied so boundary faces
// are re-evaluated against real neighbor data.
func (w *World) drainGenerated() {
	for {
		select {
		case col := <-w.done:
			if col.Released() {
				continue
			}
			col.setState(ColumnReady)
			col.MarkMeshDirty()
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				if nb := w.Column(ColumnCoord{X: col.Coord.X + d[0], Z: col.Coord.Z + d[1]}); nb != nil {
					nb.MarkMeshDirty()
				}
			}
		default:
			return
		}
	}
}

func (w *World) loadColumn(coord ColumnCoord) {
	col := NewColumn(coord)

	w.mu.Lock()
	w.columns[coord] = col
	rc := RegionFor(coord)
	region := w.regions[rc]
	if region == nil {
		region = newRegion(rc)
		w.regions[rc] = region
	}
	region.add(col)
	closed := w.closed
	w.mu.Unlock()

	if closed {
		return
	}
	select {
	case w.jobs <- col:
	default:
		// Queue full; the column stays registered in Generating and the
		// enqueue is retried on the next Update.
		log.Printf("world: generation queue full, deferring column (%d,%d)", coord.X, coord.Z)
		w.pendingGen = append(w.pendingGen, col)
	}
}

// retryPending re-attempts enqueueing columns the generation queue rejected.
// Columns unloaded while waiting are dropped through their released flag.
func (w *World) retryPending() {
	if len(w.pendingGen) == 0 {
		return
	}
	w.mu.RLock()
	closed := w.closed
	w.mu.RUnlock()

	remaining := w.pendingGen[:0]
	for _, col := range w.pendingGen {
		if closed || col.Released() {
			continue
		}
		select {
		case w.jobs <- col:
		default:
			remaining = append(remaining, col)
		}
	}
	for i := len(remaining); i < len(w.pendingGen); i++ {
		w.pendingGen[i] = nil
	}
	w.pendingGen = remaining
}

func (w *World) unloadColumn(col *Column) {
	if w.onUnload != nil {
		w.onUnload(col)
	}

	w.mu.Lock()
	delete(w.columns, col.Coord)
	rc := RegionFor(col.Coord)
	if region := w.regions[rc]; region != nil && region.remove(col.Coord) {
		delete(w.regions, rc)
	}
	w.mu.Unlock()

	col.release()
}

// Column returns the loaded column at coord, or nil. Safe from workers.
func (w *World) Column(coord ColumnCoord) *Column {
	w.mu.RLock()
	col := w.columns[coord]
	w.mu.RUnlock()
	return col
}

// ColumnCount returns the number of loaded columns.
func (w *World) ColumnCount() int {
	w.mu.RLock()
	n := len(w.columns)
	w.mu.RUnlock()
	return n
}

// EachColumn calls fn for every loaded column.
func (w *World) EachColumn(fn func(*Column)) {
	w.mu.RLock()
	cols := make([]*Column, 0, len(w.columns))
	for _, col := range w.columns {
		cols = append(cols, col)
	}
	w.mu.RUnlock()
	for _, col := range cols {
		fn(col)
	}
}

// EachRegion calls fn for every region. The culler walks regions first so a
// rejected region skips all of its member columns.
func (w *World) EachRegion(fn func(*Region)) {
	w.mu.RLock()
	regions := make([]*Region, 0, len(w.regions))
	for _, r := range w.regions {
		regions = append(regions, r)
	}
	w.mu.RUnlock()
	for _, r := range regions {
		fn(r)
	}
}

// RegionCount returns the number of live regions.
func (w *World) RegionCount() int {
	w.mu.RLock()
	n := len(w.regions)
	w.mu.RUnlock()
	return n
}

// GetBlock returns the block at world coordinates, or Air when the position
// is outside the vertical range or its column is not loaded.
func (w *World) GetBlock(x, y, z int) BlockType {
	if y < 0 || y >= ColumnHeight {
		return BlockTypeAir
	}
	col := w.Column(ColumnCoordForBlock(x, z))
	if col == nil {
		return BlockTypeAir
	}
	return col.GetBlock(mod(x, ChunkSize), y, mod(z, ChunkSize))
}

// SetBlock writes a block at world coordinates. A no-op outside the vertical
// range or when the column is not loaded. Border writes dirty the adjacent
// column so its boundary faces are rebuilt.
func (w *World) SetBlock(x, y, z int, bt BlockType) {
	if y < 0 || y >= ColumnHeight {
		return
	}
	coord := ColumnCoordForBlock(x, z)
	col := w.Column(coord)
	if col == nil {
		return
	}
	lx, lz := mod(x, ChunkSize), mod(z, ChunkSize)
	col.SetBlock(lx, y, lz, bt)

	dirtyNeighbor := func(dx, dz int) {
		if nb := w.Column(ColumnCoord{X: coord.X + dx, Z: coord.Z + dz}); nb != nil {
			nb.MarkMeshDirty()
		}
	}
	if lx == 0 {
		dirtyNeighbor(-1, 0)
	} else if lx == ChunkSize-1 {
		dirtyNeighbor(1, 0)
	}
	if lz == 0 {
		dirtyNeighbor(0, -1)
	} else if lz == ChunkSize-1 {
		dirtyNeighbor(0, 1)
	}
}

// IsOpaqueAt is the mesher's neighbor query. Positions outside the vertical
// range read as air. Columns that are missing or still generating read as
// solid, which suppresses boundary faces at the streaming frontier until the
// neighbor's real data arrives (generation completion re-dirties neighbors).
func (w *World) IsOpaqueAt(x, y, z int) bool {
	if y < 0 || y >= ColumnHeight {
		return false
	}
	col := w.Column(ColumnCoordForBlock(x, z))
	if col == nil || col.State() != ColumnReady {
		return true
	}
	return col.GetBlock(mod(x, ChunkSize), y, mod(z, ChunkSize)).IsOpaque()
}

// SurfaceHeightAt exposes the generator heightmap, used to place the viewer.
func (w *World) SurfaceHeightAt(x, z int) int {
	return w.gen.HeightAt(x, z)
}
