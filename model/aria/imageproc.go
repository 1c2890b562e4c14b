// Package aria implements the Aria image preprocessing pipeline:
// images are resized so their longer edge matches the configured input
// size, padded bottom/right to a square canvas with a boolean pixel
// mask, and optionally split into a grid of square crops chosen from a
// fixed set of tile aspect ratios.
package aria

import (
	"errors"
	"fmt"
	"image"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/tessera-ml/tessera/imageproc"
)

var (
	ErrMaxImageSize = errors.New("aria: max image size must be 490 or 980")
	ErrMinImageSize = errors.New("aria: min image size must be positive and not exceed max image size")
	ErrEmptyBatch   = errors.New("aria: empty image batch")
	ErrNilImage     = errors.New("aria: nil image in batch")
)

// defaultSplitRatios is the supported tile-grid set, expressed as
// (columns, rows). Order matters: the resolution selector keeps the
// earliest candidate on exact ties.
var defaultSplitRatios = []image.Point{
	{2, 1}, {3, 1}, {4, 1}, {5, 1}, {6, 1}, {7, 1}, {8, 1},
	{4, 2}, {3, 2}, {2, 2}, {1, 2},
	{1, 3}, {2, 3},
	{1, 4}, {2, 4},
	{1, 5},
	{1, 6},
	{1, 7},
	{1, 8},
}

// Config holds every recognized preprocessing option. The zero value
// is not usable; start from DefaultConfig.
type Config struct {
	// MaxImageSize is the square canvas edge every crop is padded to.
	// Only the trained sizes 490 and 980 are accepted.
	MaxImageSize int

	// MinImageSize is the lower bound on the shorter edge after
	// resizing. Clamping to it can distort aspect ratio slightly.
	MinImageSize int

	Mean [3]float32
	STD  [3]float32

	// SplitRatios are the allowed tile grids as (columns, rows).
	SplitRatios []image.Point

	// SplitImage selects the tiled multi-crop path instead of a
	// single resized crop per image.
	SplitImage bool

	Resample     imageproc.ResizeMethod
	DoNormalize  bool
	DoConvertRGB bool
	DataFormat   imageproc.DataFormat
}

func DefaultConfig() Config {
	return Config{
		MaxImageSize: 980,
		MinImageSize: 336,
		Mean:         imageproc.ImageNetStandardMean,
		STD:          imageproc.ImageNetStandardSTD,
		SplitRatios:  defaultSplitRatios,
		Resample:     imageproc.ResizeCatmullrom,
		DoNormalize:  true,
		DoConvertRGB: true,
		DataFormat:   imageproc.ChannelsFirst,
	}
}

type ImageProcessor struct {
	cfg Config
}

// New validates cfg once; Preprocess never re-validates per call.
func New(cfg Config) (*ImageProcessor, error) {
	if cfg.MaxImageSize != 490 && cfg.MaxImageSize != 980 {
		return nil, fmt.Errorf("%w: got %d", ErrMaxImageSize, cfg.MaxImageSize)
	}

	if cfg.MinImageSize <= 0 || cfg.MinImageSize > cfg.MaxImageSize {
		return nil, fmt.Errorf("%w: got %d", ErrMinImageSize, cfg.MinImageSize)
	}

	if err := imageproc.ValidateResolutions(cfg.SplitRatios); err != nil {
		return nil, err
	}

	if !cfg.Resample.Valid() {
		return nil, fmt.Errorf("aria: unknown resample method %d", cfg.Resample)
	}

	if !cfg.DataFormat.Valid() {
		return nil, fmt.Errorf("aria: unknown data format %d", cfg.DataFormat)
	}

	for i, s := range cfg.STD {
		if s == 0 {
			return nil, fmt.Errorf("aria: std for channel %d is zero", i)
		}
	}

	return &ImageProcessor{cfg: cfg}, nil
}

func (p *ImageProcessor) Config() Config {
	return p.cfg
}

// Batch is the structured result of preprocessing one or more images.
// Crops of consecutive input images are stacked in order.
type Batch struct {
	// PixelValues holds one flat tensor per crop, each covering a
	// MaxImageSize square in the configured layout.
	PixelValues [][]float32

	// PixelMasks holds one row-major MaxImageSize x MaxImageSize
	// mask per crop; true marks real (non-padding) pixels.
	PixelMasks [][]bool

	// NumCrops is the maximum crop count any single image produced.
	NumCrops int

	// ImageSizes are the native (width, height) sizes per input image.
	ImageSizes []image.Point
}

// CandidateResolutions returns the pixel sizes implied by the
// configured split ratios.
func (p *ImageProcessor) CandidateResolutions() []image.Point {
	resolutions := make([]image.Point, len(p.cfg.SplitRatios))
	for i, r := range p.cfg.SplitRatios {
		resolutions[i] = image.Point{r.X * p.cfg.MaxImageSize, r.Y * p.cfg.MaxImageSize}
	}
	return resolutions
}

// boundedSize pins the longer edge to MaxImageSize and scales the
// shorter edge by the same factor, clamped up to MinImageSize.
func (p *ImageProcessor) boundedSize(size image.Point) image.Point {
	scale := float64(p.cfg.MaxImageSize) / float64(max(size.X, size.Y))

	if size.X >= size.Y {
		return image.Point{
			p.cfg.MaxImageSize,
			max(int(float64(size.Y)*scale), p.cfg.MinImageSize),
		}
	}

	return image.Point{
		max(int(float64(size.X)*scale), p.cfg.MinImageSize),
		p.cfg.MaxImageSize,
	}
}

// processCrop resizes one crop into the square canvas and returns its
// pixel tensor and mask.
func (p *ImageProcessor) processCrop(img image.Image) ([]float32, []bool) {
	size := img.Bounds().Max.Sub(img.Bounds().Min)
	newSize := p.boundedSize(size)
	canvas := image.Point{p.cfg.MaxImageSize, p.cfg.MaxImageSize}

	resized := imageproc.Resize(img, newSize, p.cfg.Resample)
	padded := imageproc.Pad(resized, canvas)
	mask := imageproc.PadMask(newSize, canvas)

	mean, std := p.cfg.Mean, p.cfg.STD
	if !p.cfg.DoNormalize {
		mean = [3]float32{}
		std = [3]float32{1, 1, 1}
	}

	return imageproc.Normalize(padded, mean, std, true, p.cfg.DataFormat), mask
}

// splitCrops resizes img into the best-fitting tiled canvas and slices
// it into MaxImageSize squares, row-major.
func (p *ImageProcessor) splitCrops(img image.Image) []image.Image {
	size := img.Bounds().Max.Sub(img.Bounds().Min)

	canvas := imageproc.SelectBestResolution(size, p.CandidateResolutions())
	newSize := imageproc.FitToResolution(size, canvas)

	resized := imageproc.Resize(img, newSize, p.cfg.Resample)
	padded := imageproc.Pad(resized, canvas)

	return imageproc.DivideToPatches(padded, p.cfg.MaxImageSize)
}

func (p *ImageProcessor) processImage(img image.Image) (pixels [][]float32, masks [][]bool) {
	if p.cfg.DoConvertRGB {
		img = imageproc.Composite(img)
	}

	crops := []image.Image{img}
	if p.cfg.SplitImage {
		crops = p.splitCrops(img)
	}

	for _, crop := range crops {
		vals, mask := p.processCrop(crop)
		pixels = append(pixels, vals)
		masks = append(masks, mask)
	}

	return pixels, masks
}

// Preprocess runs the pipeline over a batch of decoded images. Any
// invalid input aborts the whole batch; batch tensors must stay
// uniform. Images are processed concurrently but results keep input
// order.
func (p *ImageProcessor) Preprocess(imgs ...image.Image) (*Batch, error) {
	if len(imgs) == 0 {
		return nil, ErrEmptyBatch
	}

	for i, img := range imgs {
		if img == nil {
			return nil, fmt.Errorf("%w: index %d", ErrNilImage, i)
		}
	}

	type imageResult struct {
		pixels [][]float32
		masks  [][]bool
	}

	results := make([]imageResult, len(imgs))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, img := range imgs {
		i, img := i, img
		g.Go(func() error {
			pixels, masks := p.processImage(img)
			results[i] = imageResult{pixels: pixels, masks: masks}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &Batch{ImageSizes: make([]image.Point, len(imgs))}
	for i, img := range imgs {
		b := img.Bounds()
		batch.ImageSizes[i] = image.Point{b.Dx(), b.Dy()}

		batch.PixelValues = append(batch.PixelValues, results[i].pixels...)
		batch.PixelMasks = append(batch.PixelMasks, results[i].masks...)
		batch.NumCrops = max(batch.NumCrops, len(results[i].pixels))
	}

	return batch, nil
}

// NumCropsFor predicts how many crops a single image of the given
// native size produces without touching pixel data.
func (p *ImageProcessor) NumCropsFor(size image.Point) int {
	if !p.cfg.SplitImage {
		return 1
	}

	canvas := imageproc.SelectBestResolution(size, p.CandidateResolutions())
	grid := imageproc.GridSize(canvas, p.cfg.MaxImageSize)
	return grid.X * grid.Y
}
