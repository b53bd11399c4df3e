// Package textures builds the block texture array pixel data. The backend
// uploads the result into a layered image; this package stays off the GPU
// so it can run before any device exists.
package textures

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"voxelstream/internal/world"
)

// LayerSize is the edge length of every texture layer in texels.
const LayerSize = 16

// Array holds tightly packed RGBA texels for all block layers, layer 0
// first.
type Array struct {
	Pixels []byte
	Layers int
}

// layerFiles maps texture layers to their file names under the texture
// directory. Missing files fall back to a generated solid tint.
var layerFiles = map[int]string{
	1: "stone.png",
	2: "dirt.png",
	3: "grass.png",
	4: "sand.png",
	5: "bedrock.png",
	6: "snow.png",
}

var layerTints = map[int][4]byte{
	1: {128, 128, 128, 255},
	2: {121, 85, 58, 255},
	3: {85, 160, 52, 255},
	4: {219, 206, 142, 255},
	5: {40, 40, 40, 255},
	6: {240, 245, 250, 255},
}

// Build assembles the texture array from PNG files in dir. Every layer is
// scaled to LayerSize square. Layer 0 is always the generated magenta
// checker so a wrong TexLayer is visible at a glance.
func Build(dir string) (*Array, error) {
	layers := world.NumTextureLayers
	a := &Array{
		Pixels: make([]byte, layers*LayerSize*LayerSize*4),
		Layers: layers,
	}
	writeChecker(a.layer(0))

	for layer := 1; layer < layers; layer++ {
		name, ok := layerFiles[layer]
		if !ok {
			writeChecker(a.layer(layer))
			continue
		}
		img, err := loadPNG(filepath.Join(dir, name))
		if err != nil {
			log.Printf("textures: %s: %v, using tint", name, err)
			writeTint(a.layer(layer), layerTints[layer])
			continue
		}
		scaleInto(a.layer(layer), img)
	}
	return a, nil
}

// layer returns the RGBA image view over one layer's texels.
func (a *Array) layer(i int) *image.RGBA {
	stride := LayerSize * LayerSize * 4
	return &image.RGBA{
		Pix:    a.Pixels[i*stride : (i+1)*stride],
		Stride: LayerSize * 4,
		Rect:   image.Rect(0, 0, LayerSize, LayerSize),
	}
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// scaleInto resamples src into the layer. ApproxBiLinear is enough for
// block art; NearestNeighbor would alias on non power of two sources.
func scaleInto(dst *image.RGBA, src image.Image) {
	if src.Bounds().Dx() == LayerSize && src.Bounds().Dy() == LayerSize {
		xdraw.Copy(dst, image.Point{}, src, src.Bounds(), xdraw.Src, nil)
		return
	}
	xdraw.ApproxBiLinear.Scale(dst, dst.Rect, src, src.Bounds(), xdraw.Src, nil)
}

func writeTint(dst *image.RGBA, c [4]byte) {
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = c[0]
		dst.Pix[i+1] = c[1]
		dst.Pix[i+2] = c[2]
		dst.Pix[i+3] = c[3]
	}
}

// writeChecker fills the layer with a magenta and black checker.
func writeChecker(dst *image.RGBA) {
	for y := 0; y < LayerSize; y++ {
		for x := 0; x < LayerSize; x++ {
			i := y*dst.Stride + x*4
			if (x/4+y/4)%2 == 0 {
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = 255, 0, 255
			} else {
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = 0, 0, 0
			}
			dst.Pix[i+3] = 255
		}
	}
}
