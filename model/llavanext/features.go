package llavanext

import (
	"image"

	"github.com/tessera-ml/tessera/imageproc"
)

// NumImageTokens returns the exact number of vision feature tokens the
// model emits for an image of the given native size: the base crop
// features plus the unpadded grid features plus one newline feature
// per surviving row. The arithmetic here must mirror the resize and
// pad stages exactly; an off-by-one silently breaks generation, which
// is why ProcessImage cross-checks the implied grid.
func (p *ImageProcessor) NumImageTokens(height, width int) int {
	npatches := p.cfg.ImageSize / p.cfg.PatchSize

	canvas := imageproc.SelectBestResolution(image.Point{width, height}, p.cfg.GridPinpoints)
	numPatchWidth := canvas.X / p.cfg.ImageSize
	numPatchHeight := canvas.Y / p.cfg.ImageSize

	unpadded, newline := unpaddedFeatures(height, width, npatches, numPatchHeight, numPatchWidth)

	// The base crop covers the entire image, +1 for the CLS token.
	base := npatches*npatches + 1

	return unpadded + newline + base
}

// unpaddedFeatures maps the padding arithmetic into feature-grid
// units. Padding is bottom/right only, so the dimension that got
// padded shrinks to the scaled extent; the aspect comparison and the
// integer truncation order match the pixel-space resize exactly.
func unpaddedFeatures(height, width, npatches, numPatchHeight, numPatchWidth int) (int, int) {
	currentHeight := npatches * numPatchHeight
	currentWidth := npatches * numPatchWidth

	originalAspectRatio := float64(width) / float64(height)
	currentAspectRatio := float64(currentWidth) / float64(currentHeight)

	if originalAspectRatio > currentAspectRatio {
		currentHeight = (height * currentWidth) / width
	} else {
		currentWidth = (width * currentHeight) / height
	}

	unpadded := currentHeight * currentWidth
	newline := currentHeight

	return unpadded, newline
}
