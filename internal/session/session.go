// Package session owns one calibration + monitoring run: it drives the
// calibration controller with frames and operator triggers, then hands the
// acceptance region to the monitoring loop, recording everything on the way.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gazewatch/gazewatch/internal/calibration"
	"github.com/gazewatch/gazewatch/internal/monitor"
	"github.com/gazewatch/gazewatch/internal/trigger"
	"github.com/gazewatch/gazewatch/internal/vision"
	"github.com/gazewatch/gazewatch/pkg/core"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
)

// Reasons calibration can end without completing.
const (
	ReasonFramesExhausted = "frames exhausted"
	ReasonQuitRequested   = "quit requested"
	ReasonContextCanceled = "context canceled"
	ReasonStopRequested   = "stop requested"
)

// Recorder receives the session record. storage.Backend and
// storage.Publisher satisfy it.
type Recorder interface {
	StartSession(s *core.Session) error
	RecordCalibration(c *core.Calibration) error
	RecordStatus(e *core.StatusEvent) error
	EndSession(summary *core.SessionSummary) error
}

// Dependencies holds all dependencies for a session.
type Dependencies struct {
	Source   vision.FrameSource
	Detector vision.Detector
	Triggers trigger.Source
	Recorder Recorder
	Context  *Context
	Logger   *slog.Logger
	Meter    metric.Meter

	// Prompt receives the operator prompts; defaults to stdout.
	Prompt io.Writer

	Margin     float64
	Subject    string
	SourceName string
	Version    string
}

// Session is a scoped owner of the frame source: Run closes it on every exit path.
type Session struct {
	deps     Dependencies
	info     core.Session
	ctrl     *calibration.Controller
	observer *vision.Observer
	loop     *monitor.Loop

	stopOnce sync.Once
	stopChan chan struct{}
}

// New prepares a session. The frame source is owned by the session from here on.
func New(deps Dependencies) (*Session, error) {
	if deps.Source == nil {
		return nil, errors.New("session: frame source is required")
	}
	if deps.Triggers == nil {
		deps.Triggers = trigger.Never
	}
	if deps.Context == nil {
		deps.Context = NewContext()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Prompt == nil {
		deps.Prompt = os.Stdout
	}

	host, _ := os.Hostname()
	s := &Session{
		deps: deps,
		info: core.Session{
			ID:        uuid.NewString(),
			Subject:   deps.Subject,
			Source:    deps.SourceName,
			Host:      host,
			Version:   deps.Version,
			StartTime: time.Now(),
		},
		ctrl:     calibration.New(deps.Margin),
		observer: vision.NewObserver(deps.Source, deps.Detector),
		stopChan: make(chan struct{}),
	}
	s.info.Margin = s.ctrl.Margin()

	var sink monitor.StatusSink
	if deps.Recorder != nil {
		sink = deps.Recorder
	}
	loop, err := monitor.NewLoop(monitor.Dependencies{
		Observations: s.observer,
		Triggers:     deps.Triggers,
		Sink:         sink,
		Logger:       deps.Logger,
		Meter:        deps.Meter,
		SessionID:    s.info.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create monitoring loop: %w", err)
	}
	s.loop = loop
	return s, nil
}

// Info returns the session metadata.
func (s *Session) Info() core.Session {
	return s.info
}

// Loop exposes the monitoring loop, e.g. for the status file writer.
func (s *Session) Loop() *monitor.Loop {
	return s.loop
}

// Calibration exposes the calibration controller.
func (s *Session) Calibration() *calibration.Controller {
	return s.ctrl
}

// Stop ends calibration or monitoring before the next frame.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.loop.Stop()
}

// Run calibrates and then monitors until the frames run out or the session
// is stopped. Calibration that cannot finish returns a
// *calibration.IncompleteError. The frame source is closed before Run returns.
func (s *Session) Run(ctx context.Context) (summary core.SessionSummary, err error) {
	defer func() {
		if cerr := s.deps.Source.Close(); cerr != nil {
			s.deps.Logger.Warn("Failed to close frame source", "error", cerr)
		}
	}()

	log := s.deps.Logger.With("component", "session")
	sc := s.deps.Context
	sc.SetSession(&s.info)
	defer sc.SetPhase(PhaseFinished)

	if err := s.record(func(r Recorder) error { return r.StartSession(&s.info) }); err != nil {
		return core.SessionSummary{}, fmt.Errorf("failed to start session: %w", err)
	}
	log.Info("Session started", "subject", s.info.Subject, "source", s.info.Source, "margin", s.info.Margin)

	sc.SetPhase(PhaseCalibrating)
	region, err := s.calibrate(ctx, log)
	if err != nil {
		summary = core.NewSessionSummary(s.info.ID)
		summary.EndTime = time.Now()
		var inc *calibration.IncompleteError
		if errors.As(err, &inc) {
			summary.EndReason = "calibration incomplete: " + inc.Reason
		} else {
			summary.EndReason = "calibration failed"
		}
		s.end(&summary, log)
		return summary, err
	}

	sc.SetPhase(PhaseMonitoring)
	s.prompt("MONITORING | Press q + ENTER to quit")
	summary, err = s.loop.Run(ctx, region)
	s.end(&summary, log)
	return summary, err
}

func (s *Session) end(summary *core.SessionSummary, log *slog.Logger) {
	if err := s.record(func(r Recorder) error { return r.EndSession(summary) }); err != nil {
		log.Error("Failed to record session end", "error", err)
	}
	log.Info("Session finished", "reason", summary.EndReason, "frames", summary.Frames,
		"insideFraction", summary.InsideFraction())
}

func (s *Session) calibrate(ctx context.Context, log *slog.Logger) (core.AcceptanceRegion, error) {
	s.announce(log)

	for {
		select {
		case <-ctx.Done():
			return core.AcceptanceRegion{}, s.ctrl.Incomplete(ReasonContextCanceled)
		case <-s.stopChan:
			return core.AcceptanceRegion{}, s.ctrl.Incomplete(ReasonStopRequested)
		default:
		}

		obs, err := s.observer.Observe(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return core.AcceptanceRegion{}, s.ctrl.Incomplete(ReasonFramesExhausted)
		case err != nil && ctx.Err() != nil:
			return core.AcceptanceRegion{}, s.ctrl.Incomplete(ReasonContextCanceled)
		case err != nil:
			return core.AcceptanceRegion{}, fmt.Errorf("frame source failed during calibration: %w", err)
		}

		switch s.deps.Triggers.Poll() {
		case trigger.Quit:
			return core.AcceptanceRegion{}, s.ctrl.Incomplete(ReasonQuitRequested)
		case trigger.Capture:
			target, _ := s.ctrl.Target()
			if !s.ctrl.Capture(obs.Ratio, obs.Valid, obs.Frame.Time) {
				log.Warn("Capture ignored", "target", target.Label(), "seq", obs.Frame.Seq, "reason", obs.Reason)
				s.prompt(fmt.Sprintf("NO USABLE FACE (%s) | Press ENTER to retry", obs.Reason))
				continue
			}
			log.Info("Calibration sample captured", "target", target.Label(), "x", obs.Ratio.X, "y", obs.Ratio.Y, "seq", obs.Frame.Seq)

			if s.ctrl.Done() {
				return s.completeCalibration(log)
			}
			s.announce(log)
		}
	}
}

func (s *Session) completeCalibration(log *slog.Logger) (core.AcceptanceRegion, error) {
	result, err := s.ctrl.Result(s.info.ID)
	if err != nil {
		return core.AcceptanceRegion{}, err
	}
	if err := s.record(func(r Recorder) error { return r.RecordCalibration(&result) }); err != nil {
		log.Error("Failed to record calibration", "error", err)
	}
	r := result.Region
	log.Info("Calibration complete", "minX", r.MinX, "maxX", r.MaxX, "minY", r.MinY, "maxY", r.MaxY)
	return r, nil
}

func (s *Session) announce(log *slog.Logger) {
	target, ok := s.ctrl.Target()
	if !ok {
		return
	}
	s.deps.Context.SetTarget(target)
	log.Debug("Awaiting calibration target", "target", target.Label())
	s.prompt(fmt.Sprintf("LOOK AT: %s | Press ENTER", target.Label()))
}

func (s *Session) prompt(line string) {
	fmt.Fprintln(s.deps.Prompt, line)
}

func (s *Session) record(fn func(Recorder) error) error {
	if s.deps.Recorder == nil {
		return nil
	}
	return fn(s.deps.Recorder)
}
