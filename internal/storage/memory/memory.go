// Package memory keeps a session in memory and exports it as a JSON report
// when the session ends.
package memory

import (
	"sync"

	"github.com/gazewatch/gazewatch/internal/config"
	"github.com/gazewatch/gazewatch/pkg/core"
)

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	version string

	session     *core.Session
	calibration *core.Calibration
	events      []core.StatusEvent
	summary     *core.SessionSummary

	lastExportPath string
	lastExportMeta core.UploadMetadata
	mu             sync.RWMutex
}

// New creates a new memory backend. version is written into the report.
func New(cfg config.MemoryConfig, version string) *Backend {
	return &Backend{
		cfg:     cfg,
		version: version,
	}
}

func (b *Backend) Name() string { return "memory" }

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session and drops anything recorded before.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sess := *s
	b.session = &sess
	b.calibration = nil
	b.events = nil
	b.summary = nil
	return nil
}

// RecordCalibration stores the calibration result.
func (b *Backend) RecordCalibration(c *core.Calibration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cal := *c
	b.calibration = &cal
	return nil
}

// RecordStatus appends one classified frame.
func (b *Backend) RecordStatus(e *core.StatusEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, *e)
	return nil
}

// EndSession finalizes and exports the session report.
func (b *Backend) EndSession(summary *core.SessionSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sum := *summary
	b.summary = &sum
	return b.exportJSON()
}

// Events returns a copy of the recorded status events.
func (b *Backend) Events() []core.StatusEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.StatusEvent, len(b.events))
	copy(out, b.events)
	return out
}

// GetExportedFilePath returns the path of the last exported report.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata returns metadata about the last exported report.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMeta
}
