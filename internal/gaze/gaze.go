// Package gaze converts face-mesh landmarks into normalized gaze ratios.
package gaze

import (
	"errors"
	"fmt"
	"math"

	"github.com/gazewatch/gazewatch/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// MinSpan is the smallest eye span, in pixels, accepted as a denominator.
const MinSpan = 1e-6

var (
	// ErrMalformedInput is returned when the landmark set lacks required indices
	ErrMalformedInput = errors.New("malformed landmark input")
	// ErrDegenerateGeometry is returned when an eye span is too small to normalize against
	ErrDegenerateGeometry = errors.New("degenerate eye geometry")
)

// MalformedInputError reports a landmark set that is too short.
type MalformedInputError struct {
	Got  int
	Want int
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("%s: got %d landmarks, need at least %d", ErrMalformedInput, e.Got, e.Want)
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

// DegenerateGeometryError names the span that collapsed.
type DegenerateGeometryError struct {
	Span  string
	Value float64
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("%s: %s is %g", ErrDegenerateGeometry, e.Span, e.Value)
}

func (e *DegenerateGeometryError) Unwrap() error { return ErrDegenerateGeometry }

// Compute returns the gaze ratio for one frame's landmarks.
//
// The horizontal ratio is the iris centroid's fractional position between the
// two eye corners, averaged over both eyes. The vertical ratio is the left iris
// position between the left upper and lower lid.
func Compute(lm core.LandmarkSet) (core.GazeRatio, error) {
	if len(lm) < core.MinLandmarks {
		return core.GazeRatio{}, &MalformedInputError{Got: len(lm), Want: core.MinLandmarks}
	}

	leftIris := centroid(lm, core.LeftIris)
	rightIris := centroid(lm, core.RightIris)

	leftL, leftR := lm[core.LeftEyeOuter], lm[core.LeftEyeInner]
	rightL, rightR := lm[core.RightEyeInner], lm[core.RightEyeOuter]

	leftX, err := fraction(leftIris.X, leftL.X, leftR.X, "left-eye-width")
	if err != nil {
		return core.GazeRatio{}, err
	}
	rightX, err := fraction(rightIris.X, rightL.X, rightR.X, "right-eye-width")
	if err != nil {
		return core.GazeRatio{}, err
	}
	y, err := fraction(leftIris.Y, lm[core.LeftEyeTop].Y, lm[core.LeftEyeBottom].Y, "left-eye-height")
	if err != nil {
		return core.GazeRatio{}, err
	}

	return core.GazeRatio{X: (leftX + rightX) / 2, Y: y}, nil
}

// fraction returns (v-lo)/(hi-lo), rejecting near-zero spans and non-finite results.
func fraction(v, lo, hi float64, span string) (float64, error) {
	d := hi - lo
	if math.IsNaN(d) || math.Abs(d) < MinSpan {
		return 0, &DegenerateGeometryError{Span: span, Value: d}
	}
	f := (v - lo) / d
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &DegenerateGeometryError{Span: span, Value: d}
	}
	return f, nil
}

// centroid averages the iris ring points.
func centroid(lm core.LandmarkSet, ring [core.IrisRingSize]int) core.Point {
	pts := make([]geom.Point, 0, len(ring))
	for _, idx := range ring {
		p := lm[idx]
		gp, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.X, Y: p.Y}})
		if err != nil {
			// NaN or infinite coordinates; fraction reports the degenerate value.
			return core.Point{X: math.NaN(), Y: math.NaN()}
		}
		pts = append(pts, gp)
	}
	c, ok := geom.NewMultiPoint(pts).Centroid().Coordinates()
	if !ok {
		return core.Point{X: math.NaN(), Y: math.NaN()}
	}
	return core.Point{X: c.X, Y: c.Y}
}
