package meshing

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/world"
)

func newTestSnapshot() *Snapshot {
	return &Snapshot{blocks: make([]world.BlockType, paddedVolume)}
}

func (s *Snapshot) set(x, y, z int, bt world.BlockType) {
	s.blocks[paddedIndex(x, y, z)] = bt
}

func buildMesh(snap *Snapshot) ([]Vertex, []uint32) {
	m := &Mesher{}
	return m.BuildChunkMesh(snap, mgl32.Vec3{}, nil, nil)
}

func TestSingleBlockMesh(t *testing.T) {
	snap := newTestSnapshot()
	snap.set(0, 0, 0, world.BlockTypeGrass)
	verts, indices := buildMesh(snap)
	// 6 faces, one quad each
	if len(verts) != 24 || len(indices) != 36 {
		t.Fatalf("single block: got %d verts %d indices, want 24/36", len(verts), len(indices))
	}
}

func TestTwoBlocksSeparated(t *testing.T) {
	snap := newTestSnapshot()
	snap.set(0, 0, 0, world.BlockTypeGrass)
	snap.set(2, 0, 0, world.BlockTypeGrass)
	verts, indices := buildMesh(snap)
	if len(verts) != 48 || len(indices) != 72 {
		t.Fatalf("two separated blocks: got %d verts %d indices, want 48/72", len(verts), len(indices))
	}
}

func TestTwoBlocksTouchingGreedy(t *testing.T) {
	snap := newTestSnapshot()
	snap.set(0, 0, 0, world.BlockTypeGrass)
	snap.set(1, 0, 0, world.BlockTypeGrass)
	verts, indices := buildMesh(snap)
	// Union is a 2x1x1 cuboid, still 6 quads after merging
	if len(verts) != 24 || len(indices) != 36 {
		t.Fatalf("two touching blocks (greedy merge): got %d verts %d indices, want 24/36", len(verts), len(indices))
	}
}

func TestDifferentTypesDoNotMerge(t *testing.T) {
	snap := newTestSnapshot()
	snap.set(0, 0, 0, world.BlockTypeGrass)
	snap.set(1, 0, 0, world.BlockTypeStone)
	verts, _ := buildMesh(snap)
	// Shared face is culled on both sides, but no quad spans both blocks:
	// 5 exposed faces each
	if len(verts) != 40 {
		t.Fatalf("mixed types: got %d verts, want 40", len(verts))
	}
}

func TestBorderFaceCulled(t *testing.T) {
	snap := newTestSnapshot()
	snap.set(world.ChunkSize-1, 0, 0, world.BlockTypeGrass)
	// Solid border cell in the neighboring chunk hides the +X face.
	snap.set(world.ChunkSize, 0, 0, world.BlockTypeStone)
	verts, indices := buildMesh(snap)
	if len(verts) != 20 || len(indices) != 30 {
		t.Fatalf("border culling: got %d verts %d indices, want 20/30", len(verts), len(indices))
	}
}

func TestFullSlabMergesToSixQuads(t *testing.T) {
	snap := newTestSnapshot()
	for x := 0; x < world.ChunkSize; x++ {
		for z := 0; z < world.ChunkSize; z++ {
			snap.set(x, 0, z, world.BlockTypeStone)
		}
	}
	verts, indices := buildMesh(snap)
	// 32x32x1 slab: top, bottom and four 32x1 sides each merge to one quad
	if len(verts) != 24 || len(indices) != 36 {
		t.Fatalf("slab merge: got %d verts %d indices, want 24/36", len(verts), len(indices))
	}
}

func TestFullChunkWithAirNeighborsIsOuterShell(t *testing.T) {
	snap := newTestSnapshot()
	for x := 0; x < world.ChunkSize; x++ {
		for y := 0; y < world.ChunkSize; y++ {
			for z := 0; z < world.ChunkSize; z++ {
				snap.set(x, y, z, world.BlockTypeStone)
			}
		}
	}
	verts, indices := buildMesh(snap)
	// Each 32x32 outer face merges to a single quad, no interior faces.
	if len(verts) != 24 || len(indices) != 36 {
		t.Fatalf("full chunk shell: got %d verts %d indices, want 24/36", len(verts), len(indices))
	}
}

func TestInteriorFullChunkIsCulled(t *testing.T) {
	snap := newTestSnapshot()
	for x := -1; x <= world.ChunkSize; x++ {
		for y := -1; y <= world.ChunkSize; y++ {
			for z := -1; z <= world.ChunkSize; z++ {
				snap.set(x, y, z, world.BlockTypeStone)
			}
		}
	}
	verts, _ := buildMesh(snap)
	// Every face is against a solid neighbor, nothing is exposed.
	if len(verts) != 0 {
		t.Fatalf("buried chunk: got %d verts, want 0", len(verts))
	}
}

func TestMeshDeterministic(t *testing.T) {
	snap := newTestSnapshot()
	for x := 0; x < world.ChunkSize; x++ {
		for z := 0; z < world.ChunkSize; z++ {
			h := (x*7 + z*13) % 8
			for y := 0; y <= h; y++ {
				snap.set(x, y, z, world.BlockTypeDirt)
			}
		}
	}
	v1, i1 := buildMesh(snap)
	v2, i2 := buildMesh(snap)
	if !bytes.Equal(VertexBytes(v1), VertexBytes(v2)) {
		t.Fatal("vertex output differs between identical runs")
	}
	if !bytes.Equal(IndexBytes(i1), IndexBytes(i2)) {
		t.Fatal("index output differs between identical runs")
	}
}

func TestVertexTexLayer(t *testing.T) {
	snap := newTestSnapshot()
	snap.set(0, 0, 0, world.BlockTypeStone)
	verts, _ := buildMesh(snap)
	want := world.BlockTypeStone.TextureLayer()
	for i, v := range verts {
		if v.TexLayer != want {
			t.Fatalf("vertex %d: TexLayer %v, want %v", i, v.TexLayer, want)
		}
	}
}

func TestIndicesReferenceAppendedVertices(t *testing.T) {
	snap := newTestSnapshot()
	snap.set(0, 0, 0, world.BlockTypeGrass)
	base := make([]Vertex, 10)
	verts, indices := (&Mesher{}).BuildChunkMesh(snap, mgl32.Vec3{}, base, nil)
	if len(verts) != 34 {
		t.Fatalf("appended verts: got %d, want 34", len(verts))
	}
	for _, idx := range indices {
		if idx < 10 || int(idx) >= len(verts) {
			t.Fatalf("index %d outside appended range [10,%d)", idx, len(verts))
		}
	}
}

func BenchmarkBuildChunkMesh_Terrain(b *testing.B) {
	snap := newTestSnapshot()
	for x := 0; x < world.ChunkSize; x++ {
		for z := 0; z < world.ChunkSize; z++ {
			h := 8 + (x*5+z*3)%16
			for y := 0; y < h; y++ {
				snap.set(x, y, z, world.BlockTypeStone)
			}
		}
	}
	m := &Mesher{}
	var verts []Vertex
	var indices []uint32
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		verts, indices = m.BuildChunkMesh(snap, mgl32.Vec3{}, verts[:0], indices[:0])
	}
}
