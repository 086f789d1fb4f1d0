// Package v1 contains the v1 session report format.
package v1

import "time"

// FormatVersion is written into every v1 report.
const FormatVersion = 1

// Report is the root JSON structure for v1 format.
type Report struct {
	FormatVersion int          `json:"formatVersion"`
	Version       string       `json:"version"`
	Session       Session      `json:"session"`
	Calibration   *Calibration `json:"calibration"`
	Summary       Summary      `json:"summary"`
	Spans         []Span       `json:"spans"`

	// Frames holds one row per monitored frame: [seq, unixMillis, status, x, y].
	// x and y are null when the frame had no usable gaze ratio.
	Frames [][]any `json:"frames"`
}

// Session describes the run.
type Session struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject,omitempty"`
	Source    string    `json:"source"`
	Host      string    `json:"host,omitempty"`
	Margin    float64   `json:"margin"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Calibration holds the captured samples and the derived region.
type Calibration struct {
	Samples     []Sample   `json:"samples"`
	Region      [4]float64 `json:"region"` // minX, maxX, minY, maxY
	CompletedAt time.Time  `json:"completedAt"`
}

// Sample is one calibration capture.
type Sample struct {
	Target string  `json:"target"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Summary holds the frame counters.
type Summary struct {
	EndReason      string            `json:"endReason"`
	Frames         uint64            `json:"frames"`
	Counts         map[string]uint64 `json:"counts"`
	InsideFraction float64           `json:"insideFraction"`
	DurationSec    float64           `json:"durationSec"`
}

// Span is a run of frames with the same status.
type Span struct {
	Status   string  `json:"status"`
	FirstSeq uint64  `json:"firstSeq"`
	LastSeq  uint64  `json:"lastSeq"`
	Frames   uint64  `json:"frames"`
	Start    int64   `json:"start"` // unix millis
	Seconds  float64 `json:"seconds"`
}
