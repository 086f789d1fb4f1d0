// Package calibration collects one gaze sample per fixation target and derives
// the acceptance region used during monitoring.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gazewatch/gazewatch/pkg/core"
)

// DefaultMargin is added on every side of the sample bounding box.
const DefaultMargin = 0.05

// ErrCalibrationIncomplete is returned when the region is requested before all
// targets were sampled, or when calibration could not finish.
var ErrCalibrationIncomplete = errors.New("calibration incomplete")

// IncompleteError describes why calibration stopped early.
type IncompleteError struct {
	Captured int
	Reason   string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: %d of %d targets captured (%s)", ErrCalibrationIncomplete, e.Captured, core.TargetCount, e.Reason)
}

func (e *IncompleteError) Unwrap() error { return ErrCalibrationIncomplete }

// State is the controller position: AwaitingTarget(i) for i in 0..3, then Complete.
type State int

// Complete is the terminal state.
const Complete State = core.TargetCount

// AwaitingTarget returns the state waiting for target i.
func AwaitingTarget(i int) State { return State(i) }

func (s State) String() string {
	if s >= Complete {
		return "COMPLETE"
	}
	return fmt.Sprintf("AWAITING_TARGET(%d)", int(s))
}

// Controller is the calibration state machine.
type Controller struct {
	mu      sync.RWMutex
	margin  float64
	state   State
	samples []core.CalibrationSample
	region  core.AcceptanceRegion
	done    time.Time
}

// New creates a controller in AwaitingTarget(0). A negative margin is treated as 0.
func New(margin float64) *Controller {
	if margin < 0 || math.IsNaN(margin) {
		margin = 0
	}
	return &Controller{
		margin:  margin,
		state:   AwaitingTarget(0),
		samples: make([]core.CalibrationSample, 0, core.TargetCount),
	}
}

// Margin returns the tolerance added around the samples.
func (c *Controller) Margin() float64 {
	return c.margin
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Done reports whether all targets were sampled.
func (c *Controller) Done() bool {
	return c.State() == Complete
}

// Target returns the target currently awaited. ok is false once complete.
func (c *Controller) Target() (target core.Target, ok bool) {
	s := c.State()
	if s >= Complete {
		return 0, false
	}
	return core.Target(s), true
}

// Samples returns a copy of the samples captured so far, in target order.
func (c *Controller) Samples() []core.CalibrationSample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.CalibrationSample, len(c.samples))
	copy(out, c.samples)
	return out
}

// Capture applies a capture trigger. A trigger without a usable ratio, or one
// received after completion, leaves the controller unchanged and returns false.
func (c *Controller) Capture(ratio core.GazeRatio, valid bool, at time.Time) bool {
	if !valid || math.IsNaN(ratio.X) || math.IsNaN(ratio.Y) || math.IsInf(ratio.X, 0) || math.IsInf(ratio.Y, 0) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state >= Complete {
		return false
	}

	c.samples = append(c.samples, core.CalibrationSample{
		Target:     core.Target(c.state),
		Ratio:      ratio,
		CapturedAt: at,
	})
	c.state++

	if c.state == Complete {
		c.region = RegionFromSamples(c.samples, c.margin)
		c.done = at
	}
	return true
}

// Region returns the acceptance region once calibration is complete.
func (c *Controller) Region() (core.AcceptanceRegion, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state < Complete {
		return core.AcceptanceRegion{}, &IncompleteError{Captured: len(c.samples), Reason: "region requested early"}
	}
	return c.region, nil
}

// Result returns the full calibration record once complete.
func (c *Controller) Result(sessionID string) (core.Calibration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state < Complete {
		return core.Calibration{}, &IncompleteError{Captured: len(c.samples), Reason: "result requested early"}
	}
	res := core.Calibration{
		SessionID:   sessionID,
		Margin:      c.margin,
		Region:      c.region,
		CompletedAt: c.done,
	}
	copy(res.Samples[:], c.samples)
	return res, nil
}

// Incomplete builds the error reported when calibration stops for reason.
func (c *Controller) Incomplete(reason string) *IncompleteError {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &IncompleteError{Captured: len(c.samples), Reason: reason}
}

// RegionFromSamples returns the bounding box of samples expanded by margin on each side.
func RegionFromSamples(samples []core.CalibrationSample, margin float64) core.AcceptanceRegion {
	if len(samples) == 0 {
		return core.AcceptanceRegion{}
	}
	r := core.AcceptanceRegion{
		MinX: samples[0].Ratio.X, MaxX: samples[0].Ratio.X,
		MinY: samples[0].Ratio.Y, MaxY: samples[0].Ratio.Y,
	}
	for _, s := range samples[1:] {
		r.MinX = math.Min(r.MinX, s.Ratio.X)
		r.MaxX = math.Max(r.MaxX, s.Ratio.X)
		r.MinY = math.Min(r.MinY, s.Ratio.Y)
		r.MaxY = math.Max(r.MaxY, s.Ratio.Y)
	}
	r.MinX -= margin
	r.MaxX += margin
	r.MinY -= margin
	r.MaxY += margin
	return r
}
