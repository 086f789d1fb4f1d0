package core

import "time"

// StatusSpan is a run of consecutive frames sharing one status.
type StatusSpan struct {
	SessionID string        `json:"sessionId"`
	Status    MonitorStatus `json:"status"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	FirstSeq  uint64        `json:"firstSeq"`
	LastSeq   uint64        `json:"lastSeq"`
	Frames    uint64        `json:"frames"`
}

// Duration is the time between the first and last frame of the span.
func (s StatusSpan) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// SpanTracker compacts a status stream into spans.
type SpanTracker struct {
	open *StatusSpan
}

// Add extends the open span with e. When e changes the status, the previous
// span is returned closed and a new one is opened.
func (t *SpanTracker) Add(e StatusEvent) (closed StatusSpan, ok bool) {
	if t.open != nil && t.open.Status == e.Status && t.open.SessionID == e.SessionID {
		t.open.End = e.Time
		t.open.LastSeq = e.Seq
		t.open.Frames++
		return StatusSpan{}, false
	}
	if t.open != nil {
		closed, ok = *t.open, true
	}
	t.open = &StatusSpan{
		SessionID: e.SessionID,
		Status:    e.Status,
		Start:     e.Time,
		End:       e.Time,
		FirstSeq:  e.Seq,
		LastSeq:   e.Seq,
		Frames:    1,
	}
	return closed, ok
}

// Flush closes and returns the open span, if any.
func (t *SpanTracker) Flush() (StatusSpan, bool) {
	if t.open == nil {
		return StatusSpan{}, false
	}
	s := *t.open
	t.open = nil
	return s, true
}

// Spans compacts events into spans.
func Spans(events []StatusEvent) []StatusSpan {
	var (
		t   SpanTracker
		out []StatusSpan
	)
	for _, e := range events {
		if s, ok := t.Add(e); ok {
			out = append(out, s)
		}
	}
	if s, ok := t.Flush(); ok {
		out = append(out, s)
	}
	return out
}
