package meshing

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/world"
)

// Vertex is the wire format for chunk geometry: position, tiling texture
// coordinate and the texture-array slice selected by the block type.
// Tightly packed, 24 bytes.
type Vertex struct {
	Position [3]float32
	TexCoord [2]float32
	TexLayer float32
}

// VertexSize is the byte stride of one Vertex.
const VertexSize = int(unsafe.Sizeof(Vertex{}))

// IndexSize is the byte size of one triangle index.
const IndexSize = 4

// VertexBytes reinterprets a vertex slice as raw bytes for upload.
func VertexBytes(v []Vertex) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*VertexSize)
}

// IndexBytes reinterprets an index slice as raw bytes for upload.
func IndexBytes(idx []uint32) []byte {
	if len(idx) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&idx[0])), len(idx)*IndexSize)
}

// dirSpec describes one of the six face directions: the normal axis (perp),
// the two in-plane axes (u, v) and the sign of the outward normal.
type dirSpec struct {
	normal mgl32.Vec3
	u, v   int
}

var directions = [6]dirSpec{
	{mgl32.Vec3{1, 0, 0}, 1, 2},
	{mgl32.Vec3{-1, 0, 0}, 1, 2},
	{mgl32.Vec3{0, 1, 0}, 0, 2},
	{mgl32.Vec3{0, -1, 0}, 0, 2},
	{mgl32.Vec3{0, 0, 1}, 0, 1},
	{mgl32.Vec3{0, 0, -1}, 0, 1},
}

// Mesher builds greedy-merged chunk meshes. It keeps its mask scratch buffer
// between runs, so one Mesher belongs to one worker goroutine.
type Mesher struct {
	mask []world.BlockType
}

// BuildChunkMesh appends the surface mesh of the snapshot to verts/indices
// and returns the extended slices. Positions are world-space using the
// chunk's origin; indices reference the vertices appended by this call and
// earlier calls on the same slices, so sub-chunk meshes of a column merge by
// simply sharing the output buffers.
//
// For each direction a 2D mask per slice holds the block type of every
// exposed face; a rectangle greedily grows over equal mask cells (width
// first, then full-width rows), emits one quad and clears what it consumed.
func (m *Mesher) BuildChunkMesh(snap *Snapshot, origin mgl32.Vec3, verts []Vertex, indices []uint32) ([]Vertex, []uint32) {
	const n = world.ChunkSize
	if cap(m.mask) < n*n {
		m.mask = make([]world.BlockType, n*n)
	}
	mask := m.mask[:n*n]

	for _, dir := range directions {
		perp := 3 - dir.u - dir.v
		step := 1
		if dir.normal[perp] < 0 {
			step = -1
		}

		for p := 0; p < n; p++ {
			// Build the exposure mask for this slice.
			hasAny := false
			for u := 0; u < n; u++ {
				for v := 0; v < n; v++ {
					var pos [3]int
					pos[dir.u] = u
					pos[dir.v] = v
					pos[perp] = p
					bt := snap.At(pos[0], pos[1], pos[2])
					if !bt.IsOpaque() {
						mask[u*n+v] = world.BlockTypeAir
						continue
					}
					pos[perp] = p + step
					if snap.Opaque(pos[0], pos[1], pos[2]) {
						mask[u*n+v] = world.BlockTypeAir
						continue
					}
					mask[u*n+v] = bt
					hasAny = true
				}
			}
			if !hasAny {
				continue
			}

			// Greedy merge: grow width along v, then height along u, over
			// cells of the same block type. Consumed cells are cleared so a
			// face is emitted exactly once.
			for u := 0; u < n; u++ {
				for v := 0; v < n; {
					bt := mask[u*n+v]
					if bt == world.BlockTypeAir {
						v++
						continue
					}
					width := 1
					for v+width < n && mask[u*n+v+width] == bt {
						width++
					}
					height := 1
				grow:
					for u+height < n {
						for k := v; k < v+width; k++ {
							if mask[(u+height)*n+k] != bt {
								break grow
							}
						}
						height++
					}
					for hu := u; hu < u+height; hu++ {
						for hv := v; hv < v+width; hv++ {
							mask[hu*n+hv] = world.BlockTypeAir
						}
					}
					verts, indices = emitQuad(verts, indices, dir, perp, origin, p, u, v, width, height, bt)
					v += width
				}
			}
		}
	}
	return verts, indices
}

// emitQuad appends one merged rectangle as 4 vertices and 6 indices
// (two CCW front-facing triangles).
func emitQuad(verts []Vertex, indices []uint32, dir dirSpec, perp int, origin mgl32.Vec3, p, u, v, width, height int, bt world.BlockType) ([]Vertex, []uint32) {
	var base mgl32.Vec3
	base[perp] = float32(p)
	if dir.normal[perp] > 0 {
		base[perp]++
	}
	base[dir.u] = float32(u)
	base[dir.v] = float32(v)
	base = base.Add(origin)

	var du, dv mgl32.Vec3
	du[dir.u] = float32(height)
	dv[dir.v] = float32(width)

	layer := bt.TextureLayer()
	h := float32(height)
	w := float32(width)
	quad := [4]Vertex{
		{Position: base, TexCoord: [2]float32{0, 0}, TexLayer: layer},
		{Position: base.Add(du), TexCoord: [2]float32{h, 0}, TexLayer: layer},
		{Position: base.Add(du).Add(dv), TexCoord: [2]float32{h, w}, TexLayer: layer},
		{Position: base.Add(dv), TexCoord: [2]float32{0, w}, TexLayer: layer},
	}
	// Flip winding so the front face stays CCW seen from the normal side.
	if (dir.normal[perp] < 0) != (perp == 1) {
		quad[1], quad[3] = quad[3], quad[1]
	}

	first := uint32(len(verts))
	verts = append(verts, quad[:]...)
	indices = append(indices,
		first, first+1, first+2,
		first, first+2, first+3,
	)
	return verts, indices
}
