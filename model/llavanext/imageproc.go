// Package llavanext implements LLaVA-Next style variable-resolution
// preprocessing: an image is fitted to the best candidate resolution
// from a grid-pinpoint set, padded bottom/right, sliced into square
// tiles, and paired with a base crop of the whole image. The package
// also computes the exact vision token count the model emits for an
// image, which the prompt expander depends on.
package llavanext

import (
	"errors"
	"fmt"
	"image"

	"github.com/tessera-ml/tessera/imageproc"
)

var (
	ErrEmptyBatch    = errors.New("llavanext: empty image batch")
	ErrNilImage      = errors.New("llavanext: nil image in batch")
	ErrTokenMismatch = errors.New("llavanext: predicted token grid disagrees with produced tiles")
)

// Config holds every recognized preprocessing option. Start from
// DefaultConfig; New rejects unusable values.
type Config struct {
	// ImageSize is the square tile edge (the vision tower input).
	ImageSize int

	// PatchSize is the vision transformer patch edge; ImageSize must
	// divide evenly by it.
	PatchSize int

	// GridPinpoints are the candidate target resolutions as
	// (width, height); each dimension must be a multiple of ImageSize.
	GridPinpoints []image.Point

	Mean [3]float32
	STD  [3]float32

	Resample    imageproc.ResizeMethod
	DoNormalize bool
	DataFormat  imageproc.DataFormat
}

func DefaultConfig() Config {
	return Config{
		ImageSize: 336,
		PatchSize: 14,
		GridPinpoints: []image.Point{
			{672, 336},
			{336, 672},
			{672, 672},
			{336, 1008},
			{1008, 336},
		},
		Mean:        imageproc.ClipDefaultMean,
		STD:         imageproc.ClipDefaultSTD,
		Resample:    imageproc.ResizeBilinear,
		DoNormalize: true,
		DataFormat:  imageproc.ChannelsFirst,
	}
}

type ImageProcessor struct {
	cfg Config
}

func New(cfg Config) (*ImageProcessor, error) {
	if cfg.ImageSize <= 0 || cfg.PatchSize <= 0 {
		return nil, fmt.Errorf("llavanext: image size %d and patch size %d must be positive", cfg.ImageSize, cfg.PatchSize)
	}

	if cfg.ImageSize%cfg.PatchSize != 0 {
		return nil, fmt.Errorf("llavanext: image size %d is not a multiple of patch size %d", cfg.ImageSize, cfg.PatchSize)
	}

	if err := imageproc.ValidateResolutions(cfg.GridPinpoints); err != nil {
		return nil, err
	}

	for i, pp := range cfg.GridPinpoints {
		if pp.X%cfg.ImageSize != 0 || pp.Y%cfg.ImageSize != 0 {
			return nil, fmt.Errorf("llavanext: grid pinpoint %d (%v) is not a multiple of image size %d", i, pp, cfg.ImageSize)
		}
	}

	if !cfg.Resample.Valid() {
		return nil, fmt.Errorf("llavanext: unknown resample method %d", cfg.Resample)
	}

	if !cfg.DataFormat.Valid() {
		return nil, fmt.Errorf("llavanext: unknown data format %d", cfg.DataFormat)
	}

	for i, s := range cfg.STD {
		if s == 0 {
			return nil, fmt.Errorf("llavanext: std for channel %d is zero", i)
		}
	}

	return &ImageProcessor{cfg: cfg}, nil
}

func (p *ImageProcessor) Config() Config {
	return p.cfg
}

// Processed is the per-image preprocessing result.
type Processed struct {
	// Tiles holds one flat tensor per crop. The first entry is the
	// base crop (the whole image resized to an ImageSize square); the
	// rest are the grid tiles in row-major order.
	Tiles [][]float32

	// TargetResolution is the selected canvas size.
	TargetResolution image.Point

	// ImageSize is the native (width, height) of the input.
	ImageSize image.Point

	// NumTokens is the vision token count the model emits for this
	// image, including the CLS token.
	NumTokens int
}

// Batch stacks per-image results in input order.
type Batch struct {
	Images []Processed

	// MaxTiles is the largest tile count (base included) any image
	// produced; shorter entries need padding tiles downstream.
	MaxTiles int
}

func (p *ImageProcessor) normalize(img image.Image) []float32 {
	mean, std := p.cfg.Mean, p.cfg.STD
	if !p.cfg.DoNormalize {
		mean = [3]float32{}
		std = [3]float32{1, 1, 1}
	}

	return imageproc.Normalize(img, mean, std, true, p.cfg.DataFormat)
}

// ProcessImage preprocesses a single image. Beyond producing tiles, it
// cross-checks the tile grid against the token-count arithmetic and
// fails loudly on divergence rather than silently corrupting
// downstream prompts.
func (p *ImageProcessor) ProcessImage(img image.Image) (*Processed, error) {
	if img == nil {
		return nil, ErrNilImage
	}

	img = imageproc.Composite(img)

	b := img.Bounds()
	size := image.Point{b.Dx(), b.Dy()}

	canvas := imageproc.SelectBestResolution(size, p.cfg.GridPinpoints)
	newSize := imageproc.FitToResolution(size, canvas)

	resized := imageproc.Resize(img, newSize, p.cfg.Resample)
	padded := imageproc.Pad(resized, canvas)
	patches := imageproc.DivideToPatches(padded, p.cfg.ImageSize)

	grid := imageproc.GridSize(canvas, p.cfg.ImageSize)
	if len(patches) != grid.X*grid.Y {
		return nil, fmt.Errorf("%w: %d tiles for a %dx%d grid", ErrTokenMismatch, len(patches), grid.X, grid.Y)
	}

	base := imageproc.Resize(img, image.Point{p.cfg.ImageSize, p.cfg.ImageSize}, p.cfg.Resample)

	tiles := make([][]float32, 0, len(patches)+1)
	tiles = append(tiles, p.normalize(base))
	for _, patch := range patches {
		tiles = append(tiles, p.normalize(patch))
	}

	return &Processed{
		Tiles:            tiles,
		TargetResolution: canvas,
		ImageSize:        size,
		NumTokens:        p.NumImageTokens(size.Y, size.X),
	}, nil
}

// Preprocess runs ProcessImage over a batch. A bad input aborts the
// whole batch.
func (p *ImageProcessor) Preprocess(imgs ...image.Image) (*Batch, error) {
	if len(imgs) == 0 {
		return nil, ErrEmptyBatch
	}

	batch := &Batch{Images: make([]Processed, 0, len(imgs))}
	for i, img := range imgs {
		processed, err := p.ProcessImage(img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}

		batch.Images = append(batch.Images, *processed)
		batch.MaxTiles = max(batch.MaxTiles, len(processed.Tiles))
	}

	return batch, nil
}
