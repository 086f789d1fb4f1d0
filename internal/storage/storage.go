// Package storage defines the session sinks: everything that records a
// session's calibration and status stream.
package storage

import (
	"errors"
	"fmt"

	"github.com/gazewatch/gazewatch/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession(summary *core.SessionSummary) error

	// Recording
	RecordCalibration(c *core.Calibration) error
	RecordStatus(e *core.StatusEvent) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the proctoring server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// Named is an optional interface used to label a backend in logs and metrics.
type Named interface {
	Name() string
}

// NameOf returns the backend name, or its type when it has none.
func NameOf(b Backend) string {
	if n, ok := b.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", b)
}

// Multi fans every call out to several backends. Every backend is called even
// when an earlier one fails; the errors are joined.
type Multi []Backend

func (m Multi) each(fn func(Backend) error) error {
	var errs []error
	for _, b := range m {
		if err := fn(b); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", NameOf(b), err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Name() string { return "multi" }

func (m Multi) Init() error { return m.each(Backend.Init) }

// Close closes the backends in reverse order.
func (m Multi) Close() error {
	var errs []error
	for i := len(m) - 1; i >= 0; i-- {
		if err := m[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", NameOf(m[i]), err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) StartSession(s *core.Session) error {
	return m.each(func(b Backend) error { return b.StartSession(s) })
}

func (m Multi) EndSession(summary *core.SessionSummary) error {
	return m.each(func(b Backend) error { return b.EndSession(summary) })
}

func (m Multi) RecordCalibration(c *core.Calibration) error {
	return m.each(func(b Backend) error { return b.RecordCalibration(c) })
}

func (m Multi) RecordStatus(e *core.StatusEvent) error {
	return m.each(func(b Backend) error { return b.RecordStatus(e) })
}

// Uploadables returns the backends that produced an uploadable export.
func (m Multi) Uploadables() []Uploadable {
	var out []Uploadable
	for _, b := range m {
		if u, ok := b.(Uploadable); ok {
			out = append(out, u)
		}
	}
	return out
}

// Nop is a backend that records nothing.
type Nop struct{}

func (Nop) Name() string                               { return "none" }
func (Nop) Init() error                                { return nil }
func (Nop) Close() error                               { return nil }
func (Nop) StartSession(*core.Session) error           { return nil }
func (Nop) EndSession(*core.SessionSummary) error      { return nil }
func (Nop) RecordCalibration(*core.Calibration) error { return nil }
func (Nop) RecordStatus(*core.StatusEvent) error       { return nil }
