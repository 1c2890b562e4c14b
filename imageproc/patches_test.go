package imageproc

import (
	"image"
	"image/color"
	"testing"
)

func TestPad(t *testing.T) {
	content := testImage(image.Point{980, 490}, color.RGBA{200, 100, 50, 255})
	padded := Pad(content, image.Point{980, 980})

	if got := padded.Bounds().Max; got != (image.Point{980, 980}) {
		t.Fatalf("incorrect canvas size: %v", got)
	}

	r, _, _, _ := padded.At(0, 0).RGBA()
	if r>>8 != 200 {
		t.Errorf("content pixel not preserved, got r=%d", r>>8)
	}

	r, g, b, _ := padded.At(0, 700).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("padding is not zero, got %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestPadMask(t *testing.T) {
	type maskCase struct {
		Content image.Point
		Canvas  image.Point
	}

	cases := []maskCase{
		{Content: image.Point{980, 490}, Canvas: image.Point{980, 980}},
		{Content: image.Point{336, 980}, Canvas: image.Point{980, 980}},
		{Content: image.Point{490, 490}, Canvas: image.Point{490, 490}},
	}

	for _, c := range cases {
		mask := PadMask(c.Content, c.Canvas)

		if len(mask) != c.Canvas.X*c.Canvas.Y {
			t.Fatalf("incorrect mask length %d", len(mask))
		}

		count := 0
		for _, m := range mask {
			if m {
				count++
			}
		}

		// the true count always equals the pre-padding content area
		if count != c.Content.X*c.Content.Y {
			t.Errorf("content %v: %d true pixels, expected %d", c.Content, count, c.Content.X*c.Content.Y)
		}

		if !mask[0] {
			t.Errorf("content %v: top-left pixel should be content", c.Content)
		}

		if c.Content != c.Canvas && mask[len(mask)-1] {
			t.Errorf("content %v: bottom-right pixel should be padding", c.Content)
		}
	}
}

func TestDivideToPatches(t *testing.T) {
	const patch = 10

	// 3 columns x 2 rows, each cell filled with a distinct red value
	img := image.NewRGBA(image.Rect(0, 0, 3*patch, 2*patch))
	for y := 0; y < 2*patch; y++ {
		for x := 0; x < 3*patch; x++ {
			cell := uint8((y/patch)*3 + x/patch)
			img.SetRGBA(x, y, color.RGBA{cell * 10, 0, 0, 255})
		}
	}

	patches := DivideToPatches(img, patch)

	grid := GridSize(image.Point{3 * patch, 2 * patch}, patch)
	if len(patches) != grid.X*grid.Y {
		t.Fatalf("got %d patches, expected %d", len(patches), grid.X*grid.Y)
	}

	for i, p := range patches {
		b := p.Bounds()
		if b.Dx() != patch || b.Dy() != patch {
			t.Fatalf("patch %d has size %dx%d", i, b.Dx(), b.Dy())
		}

		r, _, _, _ := p.At(b.Min.X, b.Min.Y).RGBA()
		if got := uint8(r >> 8); got != uint8(i)*10 {
			t.Errorf("patch %d out of row-major order: red=%d, expected %d", i, got, i*10)
		}
	}
}
