package meshing

import "testing"

func TestBufferPoolReusesMeshBuffers(t *testing.T) {
	p := NewBufferPool()
	m := p.RentMesh(0)
	m.Verts = append(m.Verts, make([]Vertex, 2000)...)
	m.Indices = append(m.Indices, make([]uint32, 3000)...)
	p.ReturnMesh(m)

	// A request fitting the returned capacity gets the same buffer back,
	// reset to empty.
	got := p.RentMesh(1500)
	if got != m {
		t.Fatal("pool did not reuse the returned buffer")
	}
	if len(got.Verts) != 0 || len(got.Indices) != 0 {
		t.Fatal("rented buffer not reset")
	}
	if cap(got.Verts) < 1500 {
		t.Fatalf("rented capacity %d below hint", cap(got.Verts))
	}
}

func TestBufferPoolClassBins(t *testing.T) {
	cases := []struct {
		cap  int
		want int
	}{
		{0, 0},
		{1024, 0},
		{1025, 1},
		{2048, 1},
		{4096, 2},
		{1 << 20, poolClasses - 1},
	}
	for _, tc := range cases {
		if got := class(tc.cap); got != tc.want {
			t.Fatalf("class(%d) = %d, want %d", tc.cap, got, tc.want)
		}
	}
}

func TestBufferPoolNilReturnsAreSafe(t *testing.T) {
	p := NewBufferPool()
	p.ReturnMesh(nil)
	p.ReturnSnapshot(nil)
	p.ReturnScratch(nil)
}

func TestBufferPoolScratchSized(t *testing.T) {
	p := NewBufferPool()
	s := p.RentScratch()
	if len(s) != 32*32*32 {
		t.Fatalf("scratch length %d, want chunk volume", len(s))
	}
	p.ReturnScratch(s)
	if got := p.RentScratch(); len(got) != len(s) {
		t.Fatal("returned scratch changed size")
	}
}
