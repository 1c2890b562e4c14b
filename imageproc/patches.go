package imageproc

import (
	"image"

	"golang.org/x/image/draw"
)

// Pad returns img drawn at the origin of a zero-filled canvas of the
// given size. Padding only ever grows the bottom and right edges so
// real content stays anchored at (0, 0).
func Pad(img image.Image, canvasSize image.Point) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, canvasSize.X, canvasSize.Y))
	draw.Draw(dst, img.Bounds(), img, image.Point{}, draw.Over)
	return dst
}

// PadMask returns a row-major boolean mask of canvasSize marking which
// pixels hold real content after a bottom/right pad of an image of
// contentSize.
func PadMask(contentSize, canvasSize image.Point) []bool {
	mask := make([]bool, canvasSize.X*canvasSize.Y)

	for y := 0; y < contentSize.Y; y++ {
		for x := 0; x < contentSize.X; x++ {
			mask[y*canvasSize.X+x] = true
		}
	}

	return mask
}

// GridSize returns the number of patch columns and rows a canvas of
// the given size divides into.
func GridSize(canvasSize image.Point, patchSize int) image.Point {
	return image.Point{canvasSize.X / patchSize, canvasSize.Y / patchSize}
}

// DivideToPatches slices img into non-overlapping patchSize squares in
// row-major order (top-to-bottom, left-to-right). The image dimensions
// must be exact multiples of patchSize, which Pad guarantees when the
// canvas came from a tile-grid candidate.
func DivideToPatches(img image.Image, patchSize int) []image.Image {
	b := img.Bounds()
	grid := GridSize(b.Max.Sub(b.Min), patchSize)

	patches := make([]image.Image, 0, grid.X*grid.Y)

	for row := 0; row < grid.Y; row++ {
		for col := 0; col < grid.X; col++ {
			rect := image.Rect(
				b.Min.X+col*patchSize,
				b.Min.Y+row*patchSize,
				b.Min.X+(col+1)*patchSize,
				b.Min.Y+(row+1)*patchSize,
			)
			patches = append(patches, img.(interface {
				SubImage(image.Rectangle) image.Image
			}).SubImage(rect))
		}
	}

	return patches
}
