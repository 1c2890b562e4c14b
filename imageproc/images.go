// Package imageproc provides the shared primitives used by the model
// image processors: resizing, alpha compositing, zero padding, patch
// extraction, and pixel normalization.
package imageproc

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

var (
	ImageNetDefaultMean  = [3]float32{0.485, 0.456, 0.406}
	ImageNetDefaultSTD   = [3]float32{0.229, 0.224, 0.225}
	ImageNetStandardMean = [3]float32{0.5, 0.5, 0.5}
	ImageNetStandardSTD  = [3]float32{0.5, 0.5, 0.5}
	ClipDefaultMean      = [3]float32{0.48145466, 0.4578275, 0.40821073}
	ClipDefaultSTD       = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

type ResizeMethod int

const (
	ResizeBilinear ResizeMethod = iota
	ResizeNearestNeighbor
	ResizeApproxBilinear
	ResizeCatmullrom
)

// Valid reports whether m names a known interpolation kernel.
func (m ResizeMethod) Valid() bool {
	switch m {
	case ResizeBilinear, ResizeNearestNeighbor, ResizeApproxBilinear, ResizeCatmullrom:
		return true
	}
	return false
}

// Composite returns an image with the alpha channel removed by drawing over a white background.
func Composite(img image.Image) image.Image {
	white := color.RGBA{255, 255, 255, 255}
	return CompositeColor(img, white)
}

// CompositeColor returns an image with the alpha channel removed by drawing over a background color.
func CompositeColor(img image.Image, color color.Color) image.Image {
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), &image.Uniform{color}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
	return dst
}

// Resize returns an image which has been scaled to a new size.
func Resize(img image.Image, newSize image.Point, method ResizeMethod) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, newSize.X, newSize.Y))

	kernels := map[ResizeMethod]draw.Interpolator{
		ResizeBilinear:        draw.BiLinear,
		ResizeNearestNeighbor: draw.NearestNeighbor,
		ResizeApproxBilinear:  draw.ApproxBiLinear,
		ResizeCatmullrom:      draw.CatmullRom,
	}

	kernel, ok := kernels[method]
	if !ok {
		panic("no resizing method found")
	}

	kernel.Scale(dst, dst.Rect, img, img.Bounds(), draw.Over, nil)

	return dst
}

// Normalize returns a flat slice of float32 pixel values for an image.
// When rescale is set, 8-bit channel values are first scaled to [0, 1];
// each channel is then shifted by mean and divided by std. The format
// argument selects planar (ChannelsFirst) or interleaved (ChannelsLast)
// ordering of the output.
func Normalize(img image.Image, mean, std [3]float32, rescale bool, format DataFormat) []float32 {
	var pixelVals []float32

	bounds := img.Bounds()
	if format == ChannelsFirst {
		var rVals, gVals, bVals []float32
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := img.At(x, y)
				r, g, b, _ := c.RGBA()
				var rVal, gVal, bVal float32
				if rescale {
					rVal = float32(r>>8) / 255.0
					gVal = float32(g>>8) / 255.0
					bVal = float32(b>>8) / 255.0
				}

				rVal = (rVal - mean[0]) / std[0]
				gVal = (gVal - mean[1]) / std[1]
				bVal = (bVal - mean[2]) / std[2]

				rVals = append(rVals, rVal)
				gVals = append(gVals, gVal)
				bVals = append(bVals, bVal)
			}
		}

		pixelVals = append(pixelVals, rVals...)
		pixelVals = append(pixelVals, gVals...)
		pixelVals = append(pixelVals, bVals...)
	} else {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := img.At(x, y)
				r, g, b, _ := c.RGBA()
				var rVal, gVal, bVal float32
				if rescale {
					rVal = float32(r>>8) / 255.0
					gVal = float32(g>>8) / 255.0
					bVal = float32(b>>8) / 255.0
				}

				rVal = (rVal - mean[0]) / std[0]
				gVal = (gVal - mean[1]) / std[1]
				bVal = (bVal - mean[2]) / std[2]

				pixelVals = append(pixelVals, rVal, gVal, bVal)
			}
		}
	}

	return pixelVals
}

// Denormalize inverts Normalize: each value is multiplied by std and
// shifted by mean, then scaled back to [0, 255] when rescale is set.
// The size argument is the spatial size of the tensor; it determines
// the plane stride for ChannelsFirst data.
func Denormalize(vals []float32, mean, std [3]float32, size image.Point, rescale bool, format DataFormat) []float32 {
	out := make([]float32, len(vals))
	plane := size.X * size.Y

	for i, v := range vals {
		var c int
		if format == ChannelsFirst {
			c = i / plane
		} else {
			c = i % 3
		}

		v = v*std[c] + mean[c]
		if rescale {
			v *= 255.0
		}
		out[i] = v
	}

	return out
}
