//go:build !gocv

package camera

import (
	"context"

	"github.com/gazewatch/gazewatch/internal/vision"
)

// Source is unavailable without the gocv build tag.
type Source struct{}

// Open always fails with ErrUnavailable.
func Open(Config) (*Source, error) {
	return nil, ErrUnavailable
}

// Next implements vision.FrameSource.
func (*Source) Next(context.Context) (vision.Frame, error) {
	return vision.Frame{}, ErrUnavailable
}

// Close implements vision.FrameSource.
func (*Source) Close() error { return nil }
