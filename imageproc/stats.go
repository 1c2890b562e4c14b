package imageproc

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// ChannelStats returns the per-channel mean and standard deviation of
// a pixel tensor in the given layout. Useful for sanity-checking
// normalization output; a correctly normalized tensor hovers around
// mean 0, std 1 per channel.
func ChannelStats(vals []float32, format DataFormat) (mean, std [3]float32, err error) {
	if len(vals) == 0 || len(vals)%3 != 0 {
		return mean, std, fmt.Errorf("imageproc: tensor length %d is not divisible into 3 channels", len(vals))
	}

	plane := len(vals) / 3
	channels := make([][]float64, 3)
	for c := range channels {
		channels[c] = make([]float64, 0, plane)
	}

	for i, v := range vals {
		var c int
		if format == ChannelsFirst {
			c = i / plane
		} else {
			c = i % 3
		}
		channels[c] = append(channels[c], float64(v))
	}

	for c := range channels {
		m, s := stat.MeanStdDev(channels[c], nil)
		mean[c] = float32(m)
		std[c] = float32(s)
	}

	return mean, std, nil
}
