package imageproc

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var ErrNoResolutions = errors.New("imageproc: candidate resolution set is empty")

// ValidateResolutions checks that candidates is a non-empty list of
// positive sizes. Processors call this once at construction; the
// selector itself assumes a validated set.
func ValidateResolutions(candidates []image.Point) error {
	if len(candidates) == 0 {
		return ErrNoResolutions
	}

	for i, c := range candidates {
		if c.X <= 0 || c.Y <= 0 {
			return fmt.Errorf("imageproc: candidate resolution %d is not positive: %v", i, c)
		}
	}

	return nil
}

// SelectBestResolution picks the candidate that maximizes the area of
// the original image after scaling it to fit inside the candidate,
// breaking ties on the smallest wasted (padding) area. The effective
// area is capped at the original image area so that upscaling beyond
// the source never looks better than containing it. Exact ties keep
// the earliest candidate, which makes the selection deterministic for
// a fixed candidate order.
func SelectBestResolution(imageSize image.Point, candidates []image.Point) image.Point {
	var best image.Point
	maxEffective := -1
	minWasted := math.MaxInt

	originalArea := imageSize.X * imageSize.Y

	for _, c := range candidates {
		scale := math.Min(float64(c.X)/float64(imageSize.X), float64(c.Y)/float64(imageSize.Y))

		downscaledW := int(float64(imageSize.X) * scale)
		downscaledH := int(float64(imageSize.Y) * scale)

		effective := min(downscaledW*downscaledH, originalArea)
		wasted := c.X*c.Y - effective

		if effective > maxEffective || (effective == maxEffective && wasted < minWasted) {
			best = c
			maxEffective = effective
			minWasted = wasted
		}
	}

	return best
}

// FitToResolution returns the size of imageSize scaled to fit inside
// target while preserving aspect ratio. The constrained dimension is
// pinned to the target; the other is rounded up and clamped so the
// result never exceeds the target.
func FitToResolution(imageSize, target image.Point) image.Point {
	scaleW := float64(target.X) / float64(imageSize.X)
	scaleH := float64(target.Y) / float64(imageSize.Y)

	if scaleW < scaleH {
		return image.Point{
			target.X,
			min(int(math.Ceil(float64(imageSize.Y)*scaleW)), target.Y),
		}
	}

	return image.Point{
		min(int(math.Ceil(float64(imageSize.X)*scaleH)), target.X),
		target.Y,
	}
}
