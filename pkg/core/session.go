// pkg/core/session.go
package core

import "time"

// Session describes one calibration + monitoring run.
type Session struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Source    string    `json:"source"`
	Host      string    `json:"host"`
	Version   string    `json:"version"`
	Margin    float64   `json:"margin"`
	StartTime time.Time `json:"startTime"`
}

// SessionSummary is recorded when monitoring ends.
type SessionSummary struct {
	SessionID string                   `json:"sessionId"`
	EndTime   time.Time                `json:"endTime"`
	EndReason string                   `json:"endReason"`
	Frames    uint64                   `json:"frames"`
	Counts    map[MonitorStatus]uint64 `json:"counts"`
}

// NewSessionSummary returns a summary with zeroed counters for every status.
func NewSessionSummary(sessionID string) SessionSummary {
	counts := make(map[MonitorStatus]uint64, 3)
	for _, s := range Statuses() {
		counts[s] = 0
	}
	return SessionSummary{SessionID: sessionID, Counts: counts}
}

// Observe counts one status.
func (s *SessionSummary) Observe(status MonitorStatus) {
	if s.Counts == nil {
		s.Counts = make(map[MonitorStatus]uint64, 3)
	}
	s.Frames++
	s.Counts[status]++
}

// InsideFraction is the share of INSIDE frames, or 0 when nothing was monitored.
func (s SessionSummary) InsideFraction() float64 {
	if s.Frames == 0 {
		return 0
	}
	return float64(s.Counts[Inside]) / float64(s.Frames)
}

// UploadMetadata accompanies an exported session report sent to the
// proctoring server.
type UploadMetadata struct {
	SessionID      string  `json:"sessionId"`
	Subject        string  `json:"subject"`
	Duration       float64 `json:"duration"`
	InsideFraction float64 `json:"insideFraction"`
	EndReason      string  `json:"endReason"`
}
