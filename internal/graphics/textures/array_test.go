package textures

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"voxelstream/internal/world"
)

func TestBuildWithoutFilesFallsBack(t *testing.T) {
	a, err := Build(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if a.Layers != world.NumTextureLayers {
		t.Fatalf("layers %d, want %d", a.Layers, world.NumTextureLayers)
	}
	if want := a.Layers * LayerSize * LayerSize * 4; len(a.Pixels) != want {
		t.Fatalf("pixel bytes %d, want %d", len(a.Pixels), want)
	}
	// Layer 0 is the debug checker: magenta in the first cell.
	if a.Pixels[0] != 255 || a.Pixels[2] != 255 {
		t.Fatal("layer 0 should start with a magenta texel")
	}
	// Stone layer fell back to its tint.
	stone := a.layer(1)
	r, g, b, _ := stone.At(0, 0).RGBA()
	if r>>8 != 128 || g>>8 != 128 || b>>8 != 128 {
		t.Fatalf("stone tint fallback got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func writeTestPNG(t *testing.T, path string, size int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestBuildLoadsAndScalesPNGs(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "stone.png"), LayerSize, color.RGBA{10, 20, 30, 255})
	// Oversized source exercises the resampling path.
	writeTestPNG(t, filepath.Join(dir, "dirt.png"), 64, color.RGBA{200, 100, 50, 255})

	a, err := Build(dir)
	if err != nil {
		t.Fatal(err)
	}

	stone := a.layer(1)
	r, g, b, _ := stone.At(3, 3).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
		t.Fatalf("stone texel got %d,%d,%d", r>>8, g>>8, b>>8)
	}

	dirt := a.layer(2)
	r, g, b, _ = dirt.At(8, 8).RGBA()
	// Uniform source stays uniform after scaling.
	if r>>8 != 200 || g>>8 != 100 || b>>8 != 50 {
		t.Fatalf("scaled dirt texel got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}
