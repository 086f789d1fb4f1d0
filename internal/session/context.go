package session

import (
	"log/slog"
	"sync"

	"github.com/gazewatch/gazewatch/pkg/core"
)

// Phase is the session stage.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseCalibrating Phase = "calibrating"
	PhaseMonitoring  Phase = "monitoring"
	PhaseFinished    Phase = "finished"
)

// Context holds the current session state shared with logging and the
// status file writer.
type Context struct {
	mu        sync.RWMutex
	session   *core.Session
	phase     Phase
	target    core.Target
	hasTarget bool
}

// NewContext creates a new Context with no session loaded.
func NewContext() *Context {
	return &Context{phase: PhaseIdle}
}

// GetSession returns the current session, or nil.
func (c *Context) GetSession() *core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession sets the current session and resets the phase to idle.
func (c *Context) SetSession(s *core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.phase = PhaseIdle
	c.hasTarget = false
}

// Phase returns the current phase.
func (c *Context) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// SetPhase moves to phase. Leaving calibration clears the target.
func (c *Context) SetPhase(p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = p
	if p != PhaseCalibrating {
		c.hasTarget = false
	}
}

// Target returns the calibration target currently shown.
func (c *Context) Target() (core.Target, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target, c.hasTarget
}

// SetTarget records the calibration target currently shown.
func (c *Context) SetTarget(t core.Target) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = t
	c.hasTarget = true
}

// Describe renders the phase for humans, e.g. "calibrating: TOP LEFT".
func (c *Context) Describe() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.phase == PhaseCalibrating && c.hasTarget {
		return string(c.phase) + ": " + c.target.Label()
	}
	return string(c.phase)
}

// LogAttrs returns the attributes added to every log record.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	attrs := []slog.Attr{
		slog.String("session", c.session.ID),
		slog.String("phase", string(c.phase)),
	}
	if c.phase == PhaseCalibrating && c.hasTarget {
		attrs = append(attrs, slog.String("target", c.target.Label()))
	}
	return attrs
}
