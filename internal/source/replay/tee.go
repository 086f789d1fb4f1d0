package replay

import (
	"context"
	"errors"
	"sync"

	"github.com/gazewatch/gazewatch/internal/trigger"
	"github.com/gazewatch/gazewatch/internal/vision"
	"github.com/gazewatch/gazewatch/pkg/core"
)

// Tee records a live session so it can be replayed with recording triggers.
// It wraps both the detector and the trigger source: every frame passed to
// Detect is held until the next Poll, then written with the polled signal,
// matching Source.Poll which returns the trigger of the last frame read.
// Frames the detector fails on are recorded as no face.
//
// A signal polled while no frame is pending is attached to the next frame.
// Write errors never affect detection; the first one is returned by Close.
type Tee struct {
	Detector vision.Detector
	Triggers trigger.Source
	Recorder *Recorder

	mu      sync.Mutex
	pending *vision.Frame
	carry   trigger.Signal
	err     error
}

// Detect implements vision.Detector.
func (t *Tee) Detect(ctx context.Context, f vision.Frame) (core.LandmarkSet, bool, error) {
	lm, found, err := t.Detector.Detect(ctx, f)

	rec := f
	rec.Image = nil
	rec.Landmarks = nil
	rec.Detected = false
	if err == nil && found {
		rec.Landmarks = lm
		rec.Detected = true
	}

	t.mu.Lock()
	t.flushLocked()
	rec.Trigger = t.carry
	t.carry = trigger.None
	t.pending = &rec
	t.mu.Unlock()

	return lm, found, err
}

// Poll implements trigger.Source.
func (t *Tee) Poll() trigger.Signal {
	sig := t.Triggers.Poll()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		if sig != trigger.None {
			t.carry = sig
		}
		return sig
	}
	if sig != trigger.None {
		t.pending.Trigger = sig
	}
	t.flushLocked()
	return sig
}

// Close writes the pending frame and closes the recorder.
func (t *Tee) Close() error {
	t.mu.Lock()
	t.flushLocked()
	err := t.err
	t.mu.Unlock()
	return errors.Join(err, t.Recorder.Close())
}

func (t *Tee) flushLocked() {
	if t.pending == nil {
		return
	}
	if err := t.Recorder.Write(*t.pending); err != nil && t.err == nil {
		t.err = err
	}
	t.pending = nil
}
