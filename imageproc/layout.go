package imageproc

import (
	"errors"
	"fmt"
)

// DataFormat describes where the channel axis sits in a pixel tensor.
type DataFormat int

const (
	// ChannelsFirst is (channels, height, width) planar layout.
	ChannelsFirst DataFormat = iota
	// ChannelsLast is (height, width, channels) interleaved layout.
	ChannelsLast
)

func (f DataFormat) String() string {
	switch f {
	case ChannelsFirst:
		return "channels_first"
	case ChannelsLast:
		return "channels_last"
	}
	return fmt.Sprintf("DataFormat(%d)", int(f))
}

// Valid reports whether f is a known layout.
func (f DataFormat) Valid() bool {
	return f == ChannelsFirst || f == ChannelsLast
}

var ErrAmbiguousLayout = errors.New("imageproc: cannot infer channel layout from shape")

func isChannelCount(n int) bool {
	return n == 1 || n == 3 || n == 4
}

// InferDataFormat guesses the channel layout of a 3-axis tensor shape.
// An axis is taken to be the channel axis iff its size is 1, 3 or 4.
// The guess fails when both the first and last axes (or neither) look
// like channel axes, e.g. a 3x224x3 or 224x224x224 shape.
func InferDataFormat(shape [3]int) (DataFormat, error) {
	first, last := isChannelCount(shape[0]), isChannelCount(shape[2])

	switch {
	case first && !last:
		return ChannelsFirst, nil
	case last && !first:
		return ChannelsLast, nil
	}

	return 0, fmt.Errorf("%w: %v", ErrAmbiguousLayout, shape)
}
