// Package monitor classifies every frame after calibration against the
// acceptance region and reports the status stream.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gazewatch/gazewatch/internal/trigger"
	"github.com/gazewatch/gazewatch/internal/vision"
	"github.com/gazewatch/gazewatch/pkg/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/gazewatch/gazewatch/internal/monitor"

// Reasons recorded in SessionSummary.EndReason.
const (
	EndFramesExhausted = "frames exhausted"
	EndStopRequested   = "stop requested"
	EndQuitRequested   = "quit requested"
	EndContextCanceled = "context canceled"
	EndSourceError     = "source error"
)

// ErrAlreadyRunning is returned when Run is called on a running loop.
var ErrAlreadyRunning = errors.New("monitoring loop already running")

// Observations yields one observation per frame.
type Observations interface {
	Observe(ctx context.Context) (vision.Observation, error)
}

// StatusSink receives every classified frame. Errors are logged and never stop the loop.
type StatusSink interface {
	RecordStatus(e *core.StatusEvent) error
}

// Dependencies holds all dependencies for the monitoring loop.
type Dependencies struct {
	Observations Observations
	Triggers     trigger.Source
	Sink         StatusSink
	Logger       *slog.Logger
	Meter        metric.Meter
	SessionID    string
}

// Snapshot is the loop state exposed to the status file writer.
type Snapshot struct {
	Running  bool
	Status   core.MonitorStatus
	Ratio    core.GazeRatio
	HasRatio bool
	Since    time.Time
	Frames   uint64
	Counts   map[core.MonitorStatus]uint64
}

// Loop runs the monitoring phase.
type Loop struct {
	deps Dependencies

	frames      metric.Int64Counter
	transitions metric.Int64Counter
	latency     metric.Float64Histogram

	running  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}

	mu      sync.RWMutex
	summary core.SessionSummary
	current core.StatusEvent
	since   time.Time
	started bool
}

// NewLoop creates a monitoring loop. A nil trigger source never quits; a nil
// meter uses the global OTel meter provider.
func NewLoop(deps Dependencies) (*Loop, error) {
	if deps.Observations == nil {
		return nil, errors.New("monitor: observations are required")
	}
	if deps.Triggers == nil {
		deps.Triggers = trigger.Never
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Meter == nil {
		deps.Meter = otel.Meter(instrumentationName)
	}
	deps.Logger = deps.Logger.With("component", "monitor")

	l := &Loop{
		deps:     deps,
		stopChan: make(chan struct{}),
		summary:  core.NewSessionSummary(deps.SessionID),
	}

	var err error
	l.frames, err = deps.Meter.Int64Counter(
		"gazewatch.frames",
		metric.WithDescription("Monitored frames by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frame counter: %w", err)
	}
	l.transitions, err = deps.Meter.Int64Counter(
		"gazewatch.status.transitions",
		metric.WithDescription("Status changes between consecutive frames"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transition counter: %w", err)
	}
	l.latency, err = deps.Meter.Float64Histogram(
		"gazewatch.frame.duration",
		metric.WithDescription("Time to observe and classify one frame"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frame duration histogram: %w", err)
	}
	return l, nil
}

// IsRunning returns whether Run is in progress.
func (l *Loop) IsRunning() bool {
	return l.running.Load()
}

// Stop asks the loop to end before its next iteration. It is safe to call
// more than once and from any goroutine.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}

// Snapshot returns the current status and counters.
func (l *Loop) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	counts := make(map[core.MonitorStatus]uint64, len(l.summary.Counts))
	for k, v := range l.summary.Counts {
		counts[k] = v
	}
	return Snapshot{
		Running:  l.running.Load(),
		Status:   l.current.Status,
		Ratio:    l.current.Ratio,
		HasRatio: l.current.HasRatio,
		Since:    l.since,
		Frames:   l.summary.Frames,
		Counts:   counts,
	}
}

// Run classifies frames against region until the source is exhausted, the
// context is canceled, Stop is called or the operator quits. Only frame source
// failures are returned as errors; the summary is valid in every case.
func (l *Loop) Run(ctx context.Context, region core.AcceptanceRegion) (core.SessionSummary, error) {
	if !l.running.CompareAndSwap(false, true) {
		return core.SessionSummary{}, ErrAlreadyRunning
	}
	defer l.running.Store(false)

	log := l.deps.Logger
	log.Info("Monitoring started",
		"minX", region.MinX, "maxX", region.MaxX, "minY", region.MinY, "maxY", region.MaxY)

	reason, err := l.run(ctx, region)

	l.mu.Lock()
	l.summary.EndTime = time.Now()
	l.summary.EndReason = reason
	summary := l.summary
	summary.Counts = make(map[core.MonitorStatus]uint64, len(l.summary.Counts))
	for k, v := range l.summary.Counts {
		summary.Counts[k] = v
	}
	l.mu.Unlock()

	log.Info("Monitoring ended",
		"reason", reason,
		"frames", summary.Frames,
		"inside", summary.Counts[core.Inside],
		"outside", summary.Counts[core.Outside],
		"noFace", summary.Counts[core.NoFace])
	return summary, err
}

func (l *Loop) run(ctx context.Context, region core.AcceptanceRegion) (string, error) {
	for {
		if reason, stop := l.shouldStop(ctx); stop {
			return reason, nil
		}

		start := time.Now()
		obs, err := l.deps.Observations.Observe(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return EndFramesExhausted, nil
		case err != nil && ctx.Err() != nil:
			return EndContextCanceled, nil
		case err != nil:
			return EndSourceError, fmt.Errorf("frame source failed: %w", err)
		}

		status := Classify(region, obs)
		l.record(ctx, obs, status)
		l.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000)
	}
}

// shouldStop is checked at the top of every iteration.
func (l *Loop) shouldStop(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return EndContextCanceled, true
	case <-l.stopChan:
		return EndStopRequested, true
	default:
	}
	if l.deps.Triggers.Poll() == trigger.Quit {
		return EndQuitRequested, true
	}
	return "", false
}

func (l *Loop) record(ctx context.Context, obs vision.Observation, status core.MonitorStatus) {
	ev := core.StatusEvent{
		SessionID: l.deps.SessionID,
		Seq:       obs.Frame.Seq,
		Time:      obs.Frame.Time,
		Status:    status,
		Ratio:     obs.Ratio,
		HasRatio:  obs.Valid,
		Reason:    obs.Reason,
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	l.mu.Lock()
	prev, started := l.current.Status, l.started
	l.current = ev
	l.started = true
	if !started || prev != status {
		l.since = ev.Time
	}
	l.summary.Observe(status)
	l.mu.Unlock()

	l.frames.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status.String())))

	log := l.deps.Logger
	if started && prev != status {
		l.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", prev.String()),
			attribute.String("to", status.String())))
		log.Info("Status changed", "from", prev, "to", status, "seq", ev.Seq)
	} else if !started {
		log.Info("Initial status", "status", status, "seq", ev.Seq)
	}
	log.Debug("Frame classified",
		"seq", ev.Seq, "status", status, "x", ev.Ratio.X, "y", ev.Ratio.Y, "valid", obs.Valid, "reason", obs.Reason)
	if obs.Err != nil {
		log.Debug("Frame unusable", "seq", ev.Seq, "error", obs.Err)
	}

	if l.deps.Sink != nil {
		if err := l.deps.Sink.RecordStatus(&ev); err != nil {
			log.Warn("Status sink failed", "seq", ev.Seq, "error", err)
		}
	}
}
