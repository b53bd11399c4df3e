package world

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestChunkSetGetRoundTrip(t *testing.T) {
	c := NewChunk(mgl32.Vec3{})
	c.SetBlock(5, 6, 7, BlockTypeStone)
	if got := c.GetBlock(5, 6, 7); got != BlockTypeStone {
		t.Fatalf("got %d, want stone", got)
	}
	if got := c.GetBlock(5, 6, 8); got != BlockTypeAir {
		t.Fatalf("neighbor cell: got %d, want air", got)
	}
}

func TestChunkOutOfBounds(t *testing.T) {
	c := NewChunk(mgl32.Vec3{})
	c.SetBlock(-1, 0, 0, BlockTypeStone)
	c.SetBlock(0, ChunkSize, 0, BlockTypeStone)
	if !c.IsEmpty() {
		t.Fatal("out-of-bounds writes must not land")
	}
	if got := c.GetBlock(ChunkSize, 0, 0); got != BlockTypeAir {
		t.Fatalf("out-of-bounds read: got %d, want air", got)
	}
}

func TestChunkDirtyOnlyOnChange(t *testing.T) {
	c := NewChunk(mgl32.Vec3{})
	c.SetBlock(1, 1, 1, BlockTypeDirt)
	if !c.IsMeshDirty() {
		t.Fatal("write should dirty the chunk")
	}
	c.ClearMeshDirty()
	c.SetBlock(1, 1, 1, BlockTypeDirt)
	if c.IsMeshDirty() {
		t.Fatal("same-value write must not dirty the chunk")
	}
}

func TestChunkNonAirCounting(t *testing.T) {
	c := NewChunk(mgl32.Vec3{})
	if !c.IsEmpty() {
		t.Fatal("new chunk should be empty")
	}
	c.SetBlock(0, 0, 0, BlockTypeStone)
	c.SetBlock(1, 0, 0, BlockTypeStone)
	if c.IsEmpty() {
		t.Fatal("chunk with blocks reported empty")
	}
	c.SetBlock(0, 0, 0, BlockTypeAir)
	c.SetBlock(1, 0, 0, BlockTypeAir)
	if !c.IsEmpty() {
		t.Fatal("chunk emptied of blocks should be empty")
	}
}

func TestChunkSnapshotIsCopy(t *testing.T) {
	c := NewChunk(mgl32.Vec3{})
	c.SetBlock(0, 0, 0, BlockTypeStone)
	snap := c.Snapshot(nil)
	c.SetBlock(0, 0, 0, BlockTypeDirt)
	if snap[blockIndex(0, 0, 0)] != BlockTypeStone {
		t.Fatal("snapshot must not observe later writes")
	}
	if len(snap) != ChunkVolume {
		t.Fatalf("snapshot length %d, want %d", len(snap), ChunkVolume)
	}
}

func TestColumnBlockRouting(t *testing.T) {
	col := NewColumn(ColumnCoord{X: 0, Z: 0})
	col.SetBlock(3, 200, 4, BlockTypeSnow)
	if got := col.GetBlock(3, 200, 4); got != BlockTypeSnow {
		t.Fatalf("routing worldY 200: got %d, want snow", got)
	}
	if got := col.Chunks[200/ChunkSize].GetBlock(3, 200%ChunkSize, 4); got != BlockTypeSnow {
		t.Fatal("write landed in the wrong sub-chunk")
	}
	if got := col.GetBlock(3, -1, 4); got != BlockTypeAir {
		t.Fatal("below the column should read air")
	}
	if got := col.GetBlock(3, ColumnHeight, 4); got != BlockTypeAir {
		t.Fatal("above the column should read air")
	}
}

func TestColumnBounds(t *testing.T) {
	col := NewColumn(ColumnCoord{X: 2, Z: -1})
	min, max := col.Bounds()
	if min.X() != 64 || min.Z() != -32 || min.Y() != 0 {
		t.Fatalf("bounds min %v", min)
	}
	if max.X() != 96 || max.Z() != 0 || max.Y() != float32(ColumnHeight) {
		t.Fatalf("bounds max %v", max)
	}
}

func TestColumnReleaseDropsStorage(t *testing.T) {
	col := NewColumn(ColumnCoord{X: 0, Z: 0})
	col.SetBlock(0, 0, 0, BlockTypeStone)
	col.release()
	if !col.Released() {
		t.Fatal("release flag not set")
	}
	if got := col.GetBlock(0, 0, 0); got != BlockTypeAir {
		t.Fatal("released column should read air")
	}
}
