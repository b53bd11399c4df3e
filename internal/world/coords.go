package world

const (
	// ChunkSize is the edge length of a cubic chunk in blocks.
	ChunkSize = 32
	// ChunkVolume is the block count of one chunk.
	ChunkVolume = ChunkSize * ChunkSize * ChunkSize

	// ChunksPerColumn is the number of chunks stacked in one vertical column.
	ChunksPerColumn = 8
	// ColumnHeight is the total height of a column in blocks.
	ColumnHeight = ChunkSize * ChunksPerColumn

	// RegionSize is the edge length of a region in columns (XZ).
	RegionSize = 8
)

// ColumnCoord addresses a vertical chunk column in the XZ plane.
type ColumnCoord struct {
	X, Z int
}

// RegionCoord addresses an 8x8 bucket of columns.
type RegionCoord struct {
	X, Z int
}

// RegionFor returns the region containing a column coordinate.
func RegionFor(c ColumnCoord) RegionCoord {
	return RegionCoord{X: floorDiv(c.X, RegionSize), Z: floorDiv(c.Z, RegionSize)}
}

// ColumnCoordForBlock returns the column containing a world-space block X,Z.
func ColumnCoordForBlock(x, z int) ColumnCoord {
	return ColumnCoord{X: floorDiv(x, ChunkSize), Z: floorDiv(z, ChunkSize)}
}

// Chebyshev returns the Chebyshev (chessboard) distance between two columns.
func (c ColumnCoord) Chebyshev(o ColumnCoord) int {
	dx := c.X - o.X
	if dx < 0 {
		dx = -dx
	}
	dz := c.Z - o.Z
	if dz < 0 {
		dz = -dz
	}
	if dx > dz {
		return dx
	}
	return dz
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// mod returns the non-negative remainder of a/b.
func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
