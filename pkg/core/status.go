// pkg/core/status.go
package core

import (
	"fmt"
	"time"
)

// MonitorStatus is the per-frame classification.
type MonitorStatus int

const (
	NoFace MonitorStatus = iota
	Inside
	Outside
)

// Statuses lists every status value.
func Statuses() []MonitorStatus {
	return []MonitorStatus{NoFace, Inside, Outside}
}

func (s MonitorStatus) String() string {
	switch s {
	case NoFace:
		return "NO_FACE"
	case Inside:
		return "INSIDE"
	case Outside:
		return "OUTSIDE"
	default:
		return fmt.Sprintf("MonitorStatus(%d)", int(s))
	}
}

// DisplayText is the operator-facing status line.
func (s MonitorStatus) DisplayText() string {
	switch s {
	case Inside:
		return "LOOKING INSIDE SCREEN"
	case Outside:
		return "LOOKING OUTSIDE SCREEN"
	default:
		return "NO FACE DETECTED"
	}
}

// MarshalText encodes the status as its name.
func (s MonitorStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *MonitorStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "NO_FACE":
		*s = NoFace
	case "INSIDE":
		*s = Inside
	case "OUTSIDE":
		*s = Outside
	default:
		return fmt.Errorf("unknown monitor status %q", string(b))
	}
	return nil
}

// StatusEvent is the classification of one monitored frame.
type StatusEvent struct {
	SessionID string        `json:"sessionId"`
	Seq       uint64        `json:"seq"`
	Time      time.Time     `json:"time"`
	Status    MonitorStatus `json:"status"`
	Ratio     GazeRatio     `json:"ratio"`
	HasRatio  bool          `json:"hasRatio"`
	Reason    string        `json:"reason,omitempty"`
}
