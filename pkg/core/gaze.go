// pkg/core/gaze.go
package core

import (
	"fmt"
	"time"
)

// GazeRatio is the iris position normalized against the eye geometry.
// X is averaged across both eyes; Y uses the left eye lids only.
type GazeRatio struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Target is a calibration fixation target.
type Target int

// Fixation targets in the order they are presented to the subject.
const (
	TopLeft Target = iota
	TopRight
	BottomLeft
	BottomRight
)

// TargetCount is the number of calibration targets.
const TargetCount = 4

// Targets returns all targets in presentation order.
func Targets() []Target {
	return []Target{TopLeft, TopRight, BottomLeft, BottomRight}
}

// Label is the text shown to the subject for this target.
func (t Target) Label() string {
	switch t {
	case TopLeft:
		return "TOP LEFT"
	case TopRight:
		return "TOP RIGHT"
	case BottomLeft:
		return "BOTTOM LEFT"
	case BottomRight:
		return "BOTTOM RIGHT"
	default:
		return fmt.Sprintf("TARGET %d", int(t))
	}
}

func (t Target) String() string {
	return t.Label()
}

// CalibrationSample is a gaze ratio captured while the subject looked at Target.
type CalibrationSample struct {
	Target     Target    `json:"target"`
	Ratio      GazeRatio `json:"ratio"`
	CapturedAt time.Time `json:"capturedAt"`
}

// AcceptanceRegion is an axis-aligned rectangle in ratio space.
type AcceptanceRegion struct {
	MinX float64 `json:"minX"`
	MaxX float64 `json:"maxX"`
	MinY float64 `json:"minY"`
	MaxY float64 `json:"maxY"`
}

// Contains reports whether r lies inside the region. Bounds are inclusive.
func (a AcceptanceRegion) Contains(r GazeRatio) bool {
	return a.MinX <= r.X && r.X <= a.MaxX && a.MinY <= r.Y && r.Y <= a.MaxY
}

// Valid reports whether the bounds are ordered.
func (a AcceptanceRegion) Valid() bool {
	return a.MinX <= a.MaxX && a.MinY <= a.MaxY
}

// Calibration is the completed result of one calibration pass.
type Calibration struct {
	SessionID   string                         `json:"sessionId"`
	Samples     [TargetCount]CalibrationSample `json:"samples"`
	Margin      float64                        `json:"margin"`
	Region      AcceptanceRegion               `json:"region"`
	CompletedAt time.Time                      `json:"completedAt"`
}
