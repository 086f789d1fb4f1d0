package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gazewatch/gazewatch/internal/config"
	"github.com/gazewatch/gazewatch/internal/storage"
	v1 "github.com/gazewatch/gazewatch/internal/storage/memory/export/v1"
	"github.com/gazewatch/gazewatch/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Verify Backend implements storage.Backend interface
var _ storage.Backend = (*Backend)(nil)

// Verify Backend implements storage.Uploadable interface
var _ storage.Uploadable = (*Backend)(nil)

var start = time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)

func recordSession(t *testing.T, b *Backend) {
	t.Helper()
	require.NoError(t, b.Init())
	require.NoError(t, b.StartSession(&core.Session{
		ID:        "4f9d2c1e-0000-4000-8000-000000000000",
		Subject:   "Jane Doe: exam 2",
		Source:    "replay",
		Margin:    0.05,
		StartTime: start,
	}))

	cal := core.Calibration{
		SessionID:   "4f9d2c1e-0000-4000-8000-000000000000",
		Margin:      0.05,
		Region:      core.AcceptanceRegion{MinX: 0.15, MaxX: 0.85, MinY: 0.25, MaxY: 0.75},
		CompletedAt: start.Add(5 * time.Second),
	}
	for i, r := range []core.GazeRatio{{X: 0.2, Y: 0.3}, {X: 0.8, Y: 0.3}, {X: 0.2, Y: 0.7}, {X: 0.8, Y: 0.7}} {
		cal.Samples[i] = core.CalibrationSample{Target: core.Target(i), Ratio: r, CapturedAt: start.Add(time.Duration(i+1) * time.Second)}
	}
	require.NoError(t, b.RecordCalibration(&cal))

	summary := core.NewSessionSummary("4f9d2c1e-0000-4000-8000-000000000000")
	for i, s := range []core.MonitorStatus{core.Inside, core.Inside, core.Outside, core.NoFace} {
		e := core.StatusEvent{
			SessionID: "4f9d2c1e-0000-4000-8000-000000000000",
			Seq:       uint64(i + 1),
			Time:      start.Add(time.Duration(6+i) * time.Second),
			Status:    s,
			Ratio:     core.GazeRatio{X: 0.5, Y: 0.5},
			HasRatio:  s != core.NoFace,
		}
		require.NoError(t, b.RecordStatus(&e))
		summary.Observe(s)
	}
	summary.EndTime = start.Add(10 * time.Second)
	summary.EndReason = "frames exhausted"
	require.NoError(t, b.EndSession(&summary))
}

func readReport(t *testing.T, path string, compressed bool) v1.Report {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var dec *json.Decoder
	if compressed {
		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer gz.Close()
		dec = json.NewDecoder(gz)
	} else {
		dec = json.NewDecoder(f)
	}

	var r v1.Report
	require.NoError(t, dec.Decode(&r))
	return r
}

func TestExport_Uncompressed(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir}, "1.2.3")
	recordSession(t, b)

	path := b.GetExportedFilePath()
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, "Jane_Doe__exam_2_20260304_093000_4f9d2c1e.json", filepath.Base(path))

	r := readReport(t, path, false)
	assert.Equal(t, v1.FormatVersion, r.FormatVersion)
	assert.Equal(t, "1.2.3", r.Version)
	assert.Equal(t, "Jane Doe: exam 2", r.Session.Subject)
	assert.Equal(t, start.Add(10*time.Second), r.Session.EndTime)

	require.NotNil(t, r.Calibration)
	assert.Equal(t, [4]float64{0.15, 0.85, 0.25, 0.75}, r.Calibration.Region)
	assert.Equal(t, "BOTTOM RIGHT", r.Calibration.Samples[3].Target)

	assert.Equal(t, uint64(4), r.Summary.Frames)
	assert.Equal(t, uint64(2), r.Summary.Counts["INSIDE"])
	assert.Equal(t, 0.5, r.Summary.InsideFraction)
	assert.Equal(t, 10.0, r.Summary.DurationSec)

	require.Len(t, r.Spans, 3)
	assert.Equal(t, "INSIDE", r.Spans[0].Status)
	assert.Equal(t, uint64(2), r.Spans[0].Frames)

	require.Len(t, r.Frames, 4)
	assert.Equal(t, "NO_FACE", r.Frames[3][2])
	assert.Nil(t, r.Frames[3][3])

	meta := b.GetExportMetadata()
	assert.Equal(t, "Jane Doe: exam 2", meta.Subject)
	assert.Equal(t, 0.5, meta.InsideFraction)
	assert.Equal(t, "frames exhausted", meta.EndReason)
	assert.Equal(t, 10.0, meta.Duration)
}

func TestExport_Compressed(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true}, "dev")
	recordSession(t, b)

	path := b.GetExportedFilePath()
	assert.True(t, strings.HasSuffix(path, ".json.gz"))

	r := readReport(t, path, true)
	assert.Len(t, r.Frames, 4)
}

func TestStartSession_ResetsState(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()}, "dev")
	recordSession(t, b)
	assert.Len(t, b.Events(), 4)

	require.NoError(t, b.StartSession(&core.Session{ID: "second", StartTime: start}))
	assert.Empty(t, b.Events())
}

func TestEndSession_WithoutStart(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()}, "dev")
	summary := core.NewSessionSummary("x")
	assert.Error(t, b.EndSession(&summary))
	assert.Empty(t, b.GetExportedFilePath())
}

func TestEndSession_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	b := New(config.MemoryConfig{OutputDir: file}, "dev")
	require.NoError(t, b.StartSession(&core.Session{ID: "x", StartTime: start}))
	summary := core.NewSessionSummary("x")
	err := b.EndSession(&summary)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output directory")
}

func TestRecordStatus_CopiesEvent(t *testing.T) {
	b := New(config.MemoryConfig{}, "dev")
	e := core.StatusEvent{Seq: 1, Status: core.Inside}
	require.NoError(t, b.RecordStatus(&e))
	e.Status = core.Outside

	assert.Equal(t, core.Inside, b.Events()[0].Status)
}
