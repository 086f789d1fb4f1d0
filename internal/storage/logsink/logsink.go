// Package logsink is the display sink: it writes status transitions to the
// log in the operator-facing wording.
package logsink

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gazewatch/gazewatch/pkg/core"
)

// Backend logs the session record. Only status changes are logged; repeated
// frames with the same status are folded into the next transition line.
type Backend struct {
	log *slog.Logger

	mu    sync.Mutex
	spans core.SpanTracker
	seen  bool
}

// New creates a log sink writing to logger.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{log: logger.With("component", "display")}
}

func (b *Backend) Name() string { return "log" }
func (b *Backend) Init() error  { return nil }
func (b *Backend) Close() error { return nil }

func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	b.spans = core.SpanTracker{}
	b.seen = false
	b.mu.Unlock()
	b.log.Info("Session started", "session", s.ID, "subject", s.Subject, "source", s.Source)
	return nil
}

func (b *Backend) RecordCalibration(c *core.Calibration) error {
	r := c.Region
	b.log.Info("Acceptance region",
		"minX", r.MinX, "maxX", r.MaxX,
		"minY", r.MinY, "maxY", r.MaxY,
		"margin", c.Margin)
	return nil
}

func (b *Backend) RecordStatus(e *core.StatusEvent) error {
	b.mu.Lock()
	closed, changed := b.spans.Add(*e)
	first := !b.seen
	b.seen = true
	b.mu.Unlock()

	if changed {
		b.logSpan(closed)
	}
	if changed || first {
		b.log.Info(e.Status.DisplayText(), "status", e.Status.String(), "seq", e.Seq)
	}
	return nil
}

func (b *Backend) EndSession(summary *core.SessionSummary) error {
	b.mu.Lock()
	open, ok := b.spans.Flush()
	b.mu.Unlock()
	if ok {
		b.logSpan(open)
	}

	b.log.Info("Session ended",
		"reason", summary.EndReason,
		"frames", summary.Frames,
		"inside", summary.Counts[core.Inside],
		"outside", summary.Counts[core.Outside],
		"noFace", summary.Counts[core.NoFace],
		"insideFraction", summary.InsideFraction())
	return nil
}

func (b *Backend) logSpan(s core.StatusSpan) {
	b.log.Debug("Status span", "status", s.Status.String(), "frames", s.Frames,
		"duration", s.Duration().Round(time.Millisecond))
}
