// Package influxstorage writes the session as InfluxDB time series: one
// gaze_status point per frame plus calibration and summary points.
package influxstorage

import (
	"context"
	"fmt"
	"time"

	"github.com/gazewatch/gazewatch/internal/influx"
	"github.com/gazewatch/gazewatch/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementStatus      = "gaze_status"
	MeasurementCalibration = "gaze_calibration"
	MeasurementSession     = "gaze_session"
)

// ConnectTimeout bounds the connection attempt in Init.
const ConnectTimeout = 5 * time.Second

// Backend implements storage.Backend on an influx.Manager.
type Backend struct {
	mgr     *influx.Manager
	subject string
}

// New creates a backend. Init connects the manager.
func New(mgr *influx.Manager) *Backend {
	return &Backend{mgr: mgr}
}

func (b *Backend) Name() string { return "influx" }

func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()
	return b.mgr.Connect(ctx)
}

func (b *Backend) Close() error {
	return b.mgr.Close()
}

func (b *Backend) StartSession(s *core.Session) error {
	b.subject = s.Subject
	p := influxdb2_write.NewPointWithMeasurement(MeasurementSession).
		AddTag("session", s.ID).
		AddTag("source", s.Source).
		AddField("event", "start").
		AddField("margin", s.Margin).
		SetTime(s.StartTime)
	if s.Subject != "" {
		p.AddTag("subject", s.Subject)
	}
	return b.mgr.WritePoint(p)
}

func (b *Backend) RecordCalibration(c *core.Calibration) error {
	return b.mgr.WritePoint(CalibrationPoint(c))
}

func (b *Backend) RecordStatus(e *core.StatusEvent) error {
	return b.mgr.WritePoint(StatusPoint(e))
}

func (b *Backend) EndSession(summary *core.SessionSummary) error {
	if err := b.mgr.WritePoint(SummaryPoint(summary, b.subject)); err != nil {
		return err
	}
	if err := b.mgr.Flush(); err != nil {
		return fmt.Errorf("failed to flush influx points: %w", err)
	}
	return nil
}

// BackupPath returns the backup file in use, or "" when writing to the server.
func (b *Backend) BackupPath() string {
	if b.mgr.IsValid {
		return ""
	}
	return b.mgr.BackupPath
}

// StatusPoint builds the per-frame point. x and y are only set when the frame
// had a usable gaze ratio.
func StatusPoint(e *core.StatusEvent) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementStatus).
		AddTag("session", e.SessionID).
		AddTag("status", e.Status.String()).
		AddField("seq", int64(e.Seq)).
		AddField("inside", e.Status == core.Inside).
		SetTime(e.Time)
	if e.HasRatio {
		p.AddField("x", e.Ratio.X).AddField("y", e.Ratio.Y)
	}
	return p
}

// CalibrationPoint holds the acceptance region bounds.
func CalibrationPoint(c *core.Calibration) *influxdb2_write.Point {
	r := c.Region
	return influxdb2_write.NewPointWithMeasurement(MeasurementCalibration).
		AddTag("session", c.SessionID).
		AddField("min_x", r.MinX).
		AddField("max_x", r.MaxX).
		AddField("min_y", r.MinY).
		AddField("max_y", r.MaxY).
		AddField("margin", c.Margin).
		SetTime(c.CompletedAt)
}

// SummaryPoint holds the end-of-session counters.
func SummaryPoint(s *core.SessionSummary, subject string) *influxdb2_write.Point {
	ts := s.EndTime
	if ts.IsZero() {
		ts = time.Now()
	}
	p := influxdb2_write.NewPointWithMeasurement(MeasurementSession).
		AddTag("session", s.SessionID).
		AddField("event", "end").
		AddField("end_reason", s.EndReason).
		AddField("frames", int64(s.Frames)).
		AddField("inside", int64(s.Counts[core.Inside])).
		AddField("outside", int64(s.Counts[core.Outside])).
		AddField("no_face", int64(s.Counts[core.NoFace])).
		AddField("inside_fraction", s.InsideFraction()).
		SetTime(ts)
	if subject != "" {
		p.AddTag("subject", subject)
	}
	return p
}
