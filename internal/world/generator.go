package world

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// Default terrain shaping parameters. Tuned for 256-block columns with the
// surface living in the lower half so mountains leave air headroom.
const (
	genBaseHeight = 72
	genAmplitude  = 48
	genScale      = 1.0 / 180.0
	genOctaves    = 4
	genSandLevel  = 62
	genSnowLevel  = 150
)

// Generator produces heightmap terrain for columns.
type Generator struct {
	seed  int64
	noise *perlin.Perlin
}

// NewGenerator creates a deterministic generator for the given seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		seed:  seed,
		noise: perlin.NewPerlin(2, 2, genOctaves, seed),
	}
}

// HeightAt computes the surface height (block Y) at a world X,Z.
func (g *Generator) HeightAt(worldX, worldZ int) int {
	n := g.noise.Noise2D(float64(worldX)*genScale, float64(worldZ)*genScale)
	h := genBaseHeight + n*genAmplitude
	if h < 1 {
		h = 1
	}
	if h > ColumnHeight-1 {
		h = ColumnHeight - 1
	}
	return int(math.Floor(h))
}

// Populate fills an entire column from the heightmap. Runs on a worker
// goroutine; chunk writes serialize through each chunk's own lock.
func (g *Generator) Populate(col *Column) {
	baseX := col.Coord.X * ChunkSize
	baseZ := col.Coord.Z * ChunkSize
	for lx := 0; lx < ChunkSize; lx++ {
		for lz := 0; lz < ChunkSize; lz++ {
			height := g.HeightAt(baseX+lx, baseZ+lz)
			for y := 0; y <= height; y++ {
				col.SetBlock(lx, y, lz, g.blockAt(y, height))
			}
		}
	}
}

func (g *Generator) blockAt(y, surface int) BlockType {
	switch {
	case y == 0:
		return BlockTypeBedrock
	case y < surface-3:
		return BlockTypeStone
	case y < surface:
		return BlockTypeDirt
	case surface <= genSandLevel:
		return BlockTypeSand
	case surface >= genSnowLevel:
		return BlockTypeSnow
	default:
		return BlockTypeGrass
	}
}
