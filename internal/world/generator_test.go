package world

import "testing"

func TestHeightAtDeterministic(t *testing.T) {
	a := NewGenerator(7)
	b := NewGenerator(7)
	for _, p := range [][2]int{{0, 0}, {100, -350}, {-8191, 4096}} {
		if a.HeightAt(p[0], p[1]) != b.HeightAt(p[0], p[1]) {
			t.Fatalf("seed 7 heights differ at (%d,%d)", p[0], p[1])
		}
	}
	c := NewGenerator(8)
	same := true
	for x := 0; x < 64; x += 8 {
		if a.HeightAt(x, 0) != c.HeightAt(x, 0) {
			same = false
		}
	}
	if same {
		t.Fatal("different seeds produced identical terrain")
	}
}

func TestHeightAtRange(t *testing.T) {
	g := NewGenerator(99)
	for x := -512; x <= 512; x += 37 {
		for z := -512; z <= 512; z += 41 {
			h := g.HeightAt(x, z)
			if h < 1 || h >= ColumnHeight {
				t.Fatalf("height %d at (%d,%d) outside [1,%d)", h, x, z, ColumnHeight)
			}
		}
	}
}

func TestPopulateLayers(t *testing.T) {
	g := NewGenerator(1)
	col := NewColumn(ColumnCoord{X: 0, Z: 0})
	g.Populate(col)

	for lx := 0; lx < ChunkSize; lx += 7 {
		for lz := 0; lz < ChunkSize; lz += 7 {
			surface := g.HeightAt(lx, lz)
			if got := col.GetBlock(lx, 0, lz); got != BlockTypeBedrock {
				t.Fatalf("(%d,0,%d): got %d, want bedrock", lx, lz, got)
			}
			if got := col.GetBlock(lx, surface+1, lz); got != BlockTypeAir {
				t.Fatalf("(%d,%d,%d): got %d above surface, want air", lx, surface+1, lz, got)
			}
			if got := col.GetBlock(lx, surface, lz); got == BlockTypeAir {
				t.Fatalf("(%d,%d,%d): surface block is air", lx, surface, lz)
			}
			if surface > 5 {
				if got := col.GetBlock(lx, surface-4, lz); got != BlockTypeStone {
					t.Fatalf("(%d,%d,%d): got %d deep underground, want stone", lx, surface-4, lz, got)
				}
			}
		}
	}
}

func BenchmarkPopulate(b *testing.B) {
	g := NewGenerator(1)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		col := NewColumn(ColumnCoord{X: i, Z: 0})
		g.Populate(col)
	}
}
