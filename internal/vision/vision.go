// Package vision joins a frame source and a landmark detector with the gaze
// computation. Per-frame failures never escape: they come back as unusable
// observations with a reason.
package vision

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/gazewatch/gazewatch/internal/gaze"
	"github.com/gazewatch/gazewatch/internal/trigger"
	"github.com/gazewatch/gazewatch/pkg/core"
)

// Frame is one captured image. Sources that replay recorded detector output set
// Landmarks and Detected instead of Image, and Trigger to the operator input
// recorded with the frame.
type Frame struct {
	Seq       uint64
	Time      time.Time
	Image     image.Image
	Width     int
	Height    int
	Landmarks core.LandmarkSet
	Detected  bool
	Trigger   trigger.Signal
}

// FrameSource yields frames in a consistent, horizontally mirrored orientation.
// Next returns io.EOF when the stream is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Detector finds the face landmarks in a frame. found is false when no face is visible.
type Detector interface {
	Detect(ctx context.Context, f Frame) (lm core.LandmarkSet, found bool, err error)
}

// EmbeddedDetector returns the landmarks carried by replayed frames.
type EmbeddedDetector struct{}

// Detect implements Detector.
func (EmbeddedDetector) Detect(_ context.Context, f Frame) (core.LandmarkSet, bool, error) {
	if !f.Detected || len(f.Landmarks) == 0 {
		return nil, false, nil
	}
	return f.Landmarks, true, nil
}

// Reasons attached to unusable observations.
const (
	ReasonNoFace     = "no face"
	ReasonMalformed  = "malformed landmarks"
	ReasonDegenerate = "degenerate geometry"
	ReasonDetector   = "detector error"
)

// Observation is the gaze reading for one frame.
type Observation struct {
	Frame  Frame
	Ratio  core.GazeRatio
	Valid  bool
	Reason string
	Err    error
}

// Observer pulls frames and turns them into observations.
type Observer struct {
	Source   FrameSource
	Detector Detector
}

// NewObserver creates an Observer. A nil detector means frames carry their own landmarks.
func NewObserver(src FrameSource, det Detector) *Observer {
	if det == nil {
		det = EmbeddedDetector{}
	}
	return &Observer{Source: src, Detector: det}
}

// Observe reads the next frame and computes its gaze ratio. Only frame source
// errors (including io.EOF) are returned.
func (o *Observer) Observe(ctx context.Context) (Observation, error) {
	f, err := o.Source.Next(ctx)
	if err != nil {
		return Observation{}, err
	}
	return o.observeFrame(ctx, f), nil
}

func (o *Observer) observeFrame(ctx context.Context, f Frame) Observation {
	obs := Observation{Frame: f}

	lm, found, err := o.Detector.Detect(ctx, f)
	if err != nil {
		obs.Reason = ReasonDetector
		obs.Err = err
		return obs
	}
	if !found {
		obs.Reason = ReasonNoFace
		return obs
	}

	ratio, err := gaze.Compute(lm)
	switch {
	case errors.Is(err, gaze.ErrMalformedInput):
		obs.Reason = ReasonMalformed
		obs.Err = err
	case err != nil:
		obs.Reason = ReasonDegenerate
		obs.Err = err
	default:
		obs.Ratio = ratio
		obs.Valid = true
	}
	return obs
}
