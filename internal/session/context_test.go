package session

import (
	"log/slog"
	"testing"

	"github.com/gazewatch/gazewatch/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestContext_Defaults(t *testing.T) {
	c := NewContext()
	assert.Nil(t, c.GetSession())
	assert.Equal(t, PhaseIdle, c.Phase())
	assert.Nil(t, c.LogAttrs(), "no attributes before a session exists")
	_, ok := c.Target()
	assert.False(t, ok)
}

func TestContext_DescribeAndAttrs(t *testing.T) {
	c := NewContext()
	c.SetSession(&core.Session{ID: "abc"})
	c.SetPhase(PhaseCalibrating)
	c.SetTarget(core.BottomRight)

	assert.Equal(t, "calibrating: BOTTOM RIGHT", c.Describe())
	assert.Equal(t, []slog.Attr{
		slog.String("session", "abc"),
		slog.String("phase", "calibrating"),
		slog.String("target", "BOTTOM RIGHT"),
	}, c.LogAttrs())

	c.SetPhase(PhaseMonitoring)
	assert.Equal(t, "monitoring", c.Describe())
	_, ok := c.Target()
	assert.False(t, ok, "leaving calibration clears the target")
	assert.Len(t, c.LogAttrs(), 2)
}

func TestContext_SetSessionResetsPhase(t *testing.T) {
	c := NewContext()
	c.SetSession(&core.Session{ID: "one"})
	c.SetPhase(PhaseFinished)

	c.SetSession(&core.Session{ID: "two"})
	assert.Equal(t, PhaseIdle, c.Phase())
	assert.Equal(t, "two", c.GetSession().ID)
}
