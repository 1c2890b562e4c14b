package main

import (
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/x448/float16"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/tessera-ml/tessera/imageproc"
	"github.com/tessera-ml/tessera/model/aria"
	"github.com/tessera-ml/tessera/model/llavanext"
)

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	slog.Debug("decoded image", "path", path, "format", format)
	return img, nil
}

// writeTensor dumps flat tensors to a little-endian binary file,
// optionally converting to half precision.
func writeTensor(path string, tensors [][]float32, f16 bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, t := range tensors {
		if f16 {
			bits := make([]uint16, len(t))
			for i, v := range t {
				bits[i] = uint16(float16.Fromfloat32(v))
			}
			if err := binary.Write(f, binary.LittleEndian, bits); err != nil {
				return err
			}
			continue
		}

		if err := binary.Write(f, binary.LittleEndian, t); err != nil {
			return err
		}
	}

	return nil
}

func statsCell(vals []float32, format imageproc.DataFormat) string {
	mean, std, err := imageproc.ChannelStats(vals, format)
	if err != nil {
		return "-"
	}

	return fmt.Sprintf("mean %.3f/%.3f/%.3f std %.3f/%.3f/%.3f",
		mean[0], mean[1], mean[2], std[0], std[1], std[2])
}

func preprocessCmd() *cobra.Command {
	var (
		model     string
		maxSize   int
		split     bool
		output    string
		f16       bool
		showStats bool
	)

	cmd := &cobra.Command{
		Use:   "preprocess IMAGE...",
		Short: "Run the preprocessing pipeline over image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imgs := make([]image.Image, len(args))
			for i, path := range args {
				img, err := decodeImage(path)
				if err != nil {
					return err
				}
				imgs[i] = img
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("  ")
			table.SetHeader([]string{"FILE", "SIZE", "TARGET", "CROPS", "TOKENS", "STATS"})

			var tensors [][]float32

			switch model {
			case "aria":
				cfg := aria.DefaultConfig()
				cfg.MaxImageSize = maxSize
				cfg.SplitImage = split

				p, err := aria.New(cfg)
				if err != nil {
					return err
				}

				batch, err := p.Preprocess(imgs...)
				if err != nil {
					return err
				}
				tensors = batch.PixelValues

				crop := 0
				for i, path := range args {
					n := p.NumCropsFor(batch.ImageSizes[i])
					stats := "-"
					if showStats && crop < len(batch.PixelValues) {
						stats = statsCell(batch.PixelValues[crop], cfg.DataFormat)
					}
					crop += n

					table.Append([]string{
						path,
						batch.ImageSizes[i].String(),
						fmt.Sprintf("%dx%d", maxSize, maxSize),
						strconv.Itoa(n),
						"-",
						stats,
					})
				}

			case "llavanext":
				p, err := llavanext.New(llavanext.DefaultConfig())
				if err != nil {
					return err
				}

				batch, err := p.Preprocess(imgs...)
				if err != nil {
					return err
				}

				for i, path := range args {
					processed := batch.Images[i]
					tensors = append(tensors, processed.Tiles...)

					stats := "-"
					if showStats {
						stats = statsCell(processed.Tiles[0], p.Config().DataFormat)
					}

					table.Append([]string{
						path,
						processed.ImageSize.String(),
						processed.TargetResolution.String(),
						strconv.Itoa(len(processed.Tiles)),
						strconv.Itoa(processed.NumTokens),
						stats,
					})
				}

			default:
				return fmt.Errorf("unknown model %q (want aria or llavanext)", model)
			}

			table.Render()

			if output != "" {
				if err := writeTensor(output, tensors, f16); err != nil {
					return err
				}
				slog.Info("wrote tensor dump", "path", output, "tensors", len(tensors), "f16", f16)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "aria", "pipeline to run: aria or llavanext")
	cmd.Flags().IntVar(&maxSize, "max-size", 980, "aria canvas size (490 or 980)")
	cmd.Flags().BoolVar(&split, "split", false, "split images into tiled crops (aria)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write pixel tensors to a binary file")
	cmd.Flags().BoolVar(&f16, "f16", false, "write tensors as float16")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print per-channel mean/std of the first crop")

	return cmd
}

func gridsCmd() *cobra.Command {
	var maxSize int

	cmd := &cobra.Command{
		Use:   "grids",
		Short: "Print the candidate tile grids and their resolutions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := aria.DefaultConfig()
			cfg.MaxImageSize = maxSize

			p, err := aria.New(cfg)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("  ")
			table.SetHeader([]string{"GRID", "RESOLUTION", "CROPS"})

			resolutions := p.CandidateResolutions()
			for i, r := range cfg.SplitRatios {
				table.Append([]string{
					fmt.Sprintf("%dx%d", r.X, r.Y),
					resolutions[i].String(),
					strconv.Itoa(r.X * r.Y),
				})
			}

			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&maxSize, "max-size", 980, "aria canvas size (490 or 980)")

	return cmd
}
