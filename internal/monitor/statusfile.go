package monitor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gazewatch/gazewatch/pkg/core"
)

// SnapshotProvider exposes the state written to the status file.
type SnapshotProvider interface {
	Snapshot() Snapshot
}

// PhaseProvider describes what the session is doing, e.g. "calibrating: TOP LEFT".
type PhaseProvider func() string

// StatusFileDependencies holds all dependencies for the status file writer.
type StatusFileDependencies struct {
	Path     string
	Interval time.Duration
	Loop     SnapshotProvider
	Phase    PhaseProvider
	Logger   *slog.Logger
}

// StatusFile periodically rewrites a small text file with the current status,
// the display surface for headless runs.
type StatusFile struct {
	deps      StatusFileDependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewStatusFile creates a status file writer.
func NewStatusFile(deps StatusFileDependencies) *StatusFile {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &StatusFile{deps: deps}
}

// IsRunning returns whether the writer goroutine is running.
func (s *StatusFile) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Render builds the status file contents.
func Render(phase string, snap Snapshot, now time.Time) string {
	var b strings.Builder
	if phase != "" {
		fmt.Fprintf(&b, "phase: %s\n", phase)
	}
	if snap.Frames == 0 {
		b.WriteString("status: WAITING\n")
		return b.String()
	}
	fmt.Fprintf(&b, "status: %s\n", snap.Status.DisplayText())
	if snap.HasRatio {
		fmt.Fprintf(&b, "gaze: x=%.3f y=%.3f\n", snap.Ratio.X, snap.Ratio.Y)
	}
	fmt.Fprintf(&b, "since: %s (%s)\n", snap.Since.UTC().Format(time.RFC3339), now.Sub(snap.Since).Truncate(time.Second))
	fmt.Fprintf(&b, "frames: %d\n", snap.Frames)
	for _, st := range core.Statuses() {
		n := snap.Counts[st]
		fmt.Fprintf(&b, "%s: %d (%.1f%%)\n", strings.ToLower(st.String()), n, 100*float64(n)/float64(snap.Frames))
	}
	return b.String()
}

// Start starts the writer goroutine. It is a no-op when already running.
func (s *StatusFile) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.deps.Path), 0755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create status directory: %w", err)
	}
	statusFile, err := os.Create(s.deps.Path)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create status file: %w", err)
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.write(statusFile)
			statusFile.Close()
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		s.deps.Logger.Debug("Starting status file writer", "path", s.deps.Path)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.write(statusFile)
			}
		}
	}()

	return nil
}

func (s *StatusFile) write(f *os.File) {
	var phase string
	if s.deps.Phase != nil {
		phase = s.deps.Phase()
	}
	var snap Snapshot
	if s.deps.Loop != nil {
		snap = s.deps.Loop.Snapshot()
	}

	if err := f.Truncate(0); err != nil {
		s.deps.Logger.Error("Error truncating status file", "error", err)
		return
	}
	if _, err := f.Seek(0, 0); err != nil {
		s.deps.Logger.Error("Error rewinding status file", "error", err)
		return
	}
	if _, err := f.WriteString(Render(phase, snap, time.Now())); err != nil {
		s.deps.Logger.Error("Error writing status file", "error", err)
	}
}

// Stop stops the writer after a final write and waits for it to finish.
func (s *StatusFile) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	stop, done := s.stopChan, s.done
	select {
	case <-stop:
	default:
		close(stop)
	}
	s.mu.Unlock()
	<-done
}
