package aria

import (
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/tessera-ml/tessera/imageproc"
)

func testImage(size image.Point) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			img.SetRGBA(x, y, color.RGBA{100, 150, 200, 255})
		}
	}
	return img
}

func TestNewValidation(t *testing.T) {
	_, err := New(DefaultConfig())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.MaxImageSize = 512
	_, err = New(cfg)
	require.ErrorIs(t, err, ErrMaxImageSize)

	cfg = DefaultConfig()
	cfg.MinImageSize = 0
	_, err = New(cfg)
	require.ErrorIs(t, err, ErrMinImageSize)

	cfg = DefaultConfig()
	cfg.MinImageSize = 1000
	_, err = New(cfg)
	require.ErrorIs(t, err, ErrMinImageSize)

	cfg = DefaultConfig()
	cfg.SplitRatios = nil
	_, err = New(cfg)
	require.ErrorIs(t, err, imageproc.ErrNoResolutions)

	cfg = DefaultConfig()
	cfg.SplitRatios = []image.Point{{0, 2}}
	_, err = New(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Resample = imageproc.ResizeMethod(42)
	_, err = New(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.DataFormat = imageproc.DataFormat(7)
	_, err = New(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.STD[1] = 0
	_, err = New(cfg)
	require.Error(t, err)
}

func TestBoundedSize(t *testing.T) {
	type sizeCase struct {
		MaxImageSize int
		MinImageSize int
		ImageSize    image.Point
		Expected     image.Point
	}

	cases := []sizeCase{
		{
			MaxImageSize: 980,
			MinImageSize: 336,
			ImageSize:    image.Point{1000, 500},
			Expected:     image.Point{980, 490},
		},
		{
			MaxImageSize: 980,
			MinImageSize: 336,
			ImageSize:    image.Point{500, 1000},
			Expected:     image.Point{490, 980},
		},
		{
			MaxImageSize: 980,
			MinImageSize: 336,
			ImageSize:    image.Point{980, 980},
			Expected:     image.Point{980, 980},
		},
		{
			// extreme aspect ratio clamps the short edge to the
			// minimum, distorting aspect
			MaxImageSize: 980,
			MinImageSize: 336,
			ImageSize:    image.Point{3000, 200},
			Expected:     image.Point{980, 336},
		},
		{
			MaxImageSize: 490,
			MinImageSize: 336,
			ImageSize:    image.Point{1000, 500},
			Expected:     image.Point{490, 336},
		},
	}

	for _, c := range cases {
		cfg := DefaultConfig()
		cfg.MaxImageSize = c.MaxImageSize
		cfg.MinImageSize = c.MinImageSize

		p, err := New(cfg)
		require.NoError(t, err)

		actual := p.boundedSize(c.ImageSize)
		if actual != c.Expected {
			t.Errorf("bounded size of %v at max %d: got %v, expected %v",
				c.ImageSize, c.MaxImageSize, actual, c.Expected)
		}
	}
}

func TestProcessCropMaskInvariant(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)

	for _, size := range []image.Point{{1000, 500}, {640, 480}, {2000, 2000}} {
		pixels, mask := p.processCrop(testImage(size))

		if len(pixels) != 3*980*980 {
			t.Fatalf("size %v: tensor length %d, expected %d", size, len(pixels), 3*980*980)
		}

		newSize := p.boundedSize(size)
		count := 0
		for _, m := range mask {
			if m {
				count++
			}
		}

		if count != newSize.X*newSize.Y {
			t.Errorf("size %v: %d mask pixels, expected %d", size, count, newSize.X*newSize.Y)
		}
	}
}

func TestPreprocessValidation(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)

	_, err = p.Preprocess()
	require.ErrorIs(t, err, ErrEmptyBatch)

	_, err = p.Preprocess(testImage(image.Point{10, 10}), nil)
	require.ErrorIs(t, err, ErrNilImage)
}

func TestSplitCrops(t *testing.T) {
	type splitCase struct {
		ImageSize image.Point
		Grid      image.Point
	}

	cases := []splitCase{
		// a 2:1 landscape image lands on the (2, 1) tile grid
		{ImageSize: image.Point{1000, 500}, Grid: image.Point{2, 1}},
		// a 1:4 portrait image lands on the (1, 3) grid: it is the
		// smallest canvas whose fitted image keeps full effective area
		{ImageSize: image.Point{500, 2000}, Grid: image.Point{1, 3}},
	}

	cfg := DefaultConfig()
	cfg.SplitImage = true

	p, err := New(cfg)
	require.NoError(t, err)

	for _, c := range cases {
		crops := p.splitCrops(testImage(c.ImageSize))

		if len(crops) != c.Grid.X*c.Grid.Y {
			t.Errorf("size %v: %d crops, expected %d", c.ImageSize, len(crops), c.Grid.X*c.Grid.Y)
		}

		if got := p.NumCropsFor(c.ImageSize); got != len(crops) {
			t.Errorf("size %v: NumCropsFor predicts %d, pipeline produced %d", c.ImageSize, got, len(crops))
		}

		canvas := imageproc.SelectBestResolution(c.ImageSize, p.CandidateResolutions())
		if canvas.X%cfg.MaxImageSize != 0 || canvas.Y%cfg.MaxImageSize != 0 {
			t.Errorf("size %v: canvas %v is not a tile multiple", c.ImageSize, canvas)
		}
	}
}

func TestPreprocessBatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SplitImage = true

	p, err := New(cfg)
	require.NoError(t, err)

	batch, err := p.Preprocess(
		testImage(image.Point{1000, 500}),
		testImage(image.Point{500, 2000}),
	)
	require.NoError(t, err)

	if diff := cmp.Diff(batch.ImageSizes, []image.Point{{1000, 500}, {500, 2000}}); diff != "" {
		t.Errorf("image sizes mismatch (-got +want):\n%s", diff)
	}

	// 2 crops for the first image, 3 for the second
	if len(batch.PixelValues) != 5 || len(batch.PixelMasks) != 5 {
		t.Fatalf("got %d tensors and %d masks, expected 5 each", len(batch.PixelValues), len(batch.PixelMasks))
	}

	if batch.NumCrops != 3 {
		t.Errorf("NumCrops = %d, expected 3", batch.NumCrops)
	}

	for i, vals := range batch.PixelValues {
		if len(vals) != 3*980*980 {
			t.Errorf("crop %d: tensor length %d", i, len(vals))
		}
	}
}

func TestPreprocessDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SplitImage = true

	p, err := New(cfg)
	require.NoError(t, err)

	img := testImage(image.Point{777, 333})

	a, err := p.Preprocess(img)
	require.NoError(t, err)
	b, err := p.Preprocess(img)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("preprocessing is not deterministic (-first +second):\n%s", diff)
	}
}
