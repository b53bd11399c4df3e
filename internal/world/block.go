package world

// BlockType identifies the material stored in a single voxel cell.
type BlockType uint16

const (
	BlockTypeAir BlockType = iota
	BlockTypeStone
	BlockTypeDirt
	BlockTypeGrass
	BlockTypeSand
	BlockTypeBedrock
	BlockTypeSnow
)

// NumTextureLayers is the slice count of the block texture array.
const NumTextureLayers = 7

// IsOpaque reports whether the block hides faces of adjacent blocks.
// Air is the only transparent type in this set.
func (b BlockType) IsOpaque() bool {
	return b != BlockTypeAir
}

// TextureLayer returns the texture-array slice used for faces of this block type.
// Layer 0 is reserved for a debug checker so a miswired type is visible at a glance.
func (b BlockType) TextureLayer() float32 {
	switch b {
	case BlockTypeStone:
		return 1
	case BlockTypeDirt:
		return 2
	case BlockTypeGrass:
		return 3
	case BlockTypeSand:
		return 4
	case BlockTypeBedrock:
		return 5
	case BlockTypeSnow:
		return 6
	default:
		return 0
	}
}
