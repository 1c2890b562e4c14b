// Package processor expands image placeholder tokens in text prompts
// to the exact repeated count of vision tokens the paired image
// produces, so tokenization downstream sees one placeholder per
// feature. Tokenizer invocation itself is out of scope.
package processor

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

const DefaultImageToken = "<image>"

var ErrSizeMismatch = errors.New("processor: prompt and image size counts differ")

// FeatureCounter reports the vision token count for an image of a
// native (height, width) size. llavanext.ImageProcessor satisfies it.
type FeatureCounter interface {
	NumImageTokens(height, width int) int
}

type Expander struct {
	counter    FeatureCounter
	imageToken string

	// dropCLS mirrors the "default" feature-select strategy, which
	// discards the CLS token before the projector.
	dropCLS bool
}

type Option func(*Expander)

// WithImageToken overrides the placeholder string.
func WithImageToken(token string) Option {
	return func(e *Expander) {
		e.imageToken = token
	}
}

// WithoutCLS subtracts the CLS token from every expansion.
func WithoutCLS() Option {
	return func(e *Expander) {
		e.dropCLS = true
	}
}

func NewExpander(counter FeatureCounter, opts ...Option) *Expander {
	e := &Expander{
		counter:    counter,
		imageToken: DefaultImageToken,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Expand replaces the placeholder in each prompt with the repeated
// token count for the paired image size (width, height). Prompts and
// sizes pair positionally and must have equal length.
func (e *Expander) Expand(prompts []string, sizes []image.Point) ([]string, error) {
	if len(prompts) != len(sizes) {
		return nil, fmt.Errorf("%w: %d prompts, %d sizes", ErrSizeMismatch, len(prompts), len(sizes))
	}

	expanded := make([]string, len(prompts))
	for i, prompt := range prompts {
		n := e.counter.NumImageTokens(sizes[i].Y, sizes[i].X)
		if e.dropCLS {
			n--
		}
		if n < 0 {
			return nil, fmt.Errorf("processor: negative token count %d for size %v", n, sizes[i])
		}

		expanded[i] = strings.ReplaceAll(prompt, e.imageToken, strings.Repeat(e.imageToken, n))
	}

	return expanded, nil
}
