package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/gazewatch/gazewatch/internal/storage/memory/export/v1"
	"github.com/gazewatch/gazewatch/pkg/core"
)

// exportJSON writes the session report. Callers hold b.mu.
func (b *Backend) exportJSON() error {
	if b.session == nil {
		return errors.New("no session started")
	}

	report := v1.Build(&v1.SessionData{
		Session:     b.session,
		Calibration: b.calibration,
		Events:      b.events,
		Summary:     b.summary,
		Version:     b.version,
	})

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, b.fileName())

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, report)
	} else {
		err = writeJSON(outputPath, report)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastExportMeta = core.UploadMetadata{
		SessionID:      b.session.ID,
		Subject:        b.session.Subject,
		Duration:       report.Summary.DurationSec,
		InsideFraction: report.Summary.InsideFraction,
		EndReason:      report.Summary.EndReason,
	}
	return nil
}

// fileName builds "<subject>_<start>_<id prefix>.json[.gz]".
func (b *Backend) fileName() string {
	subject := sanitize(b.session.Subject)
	if subject == "" {
		subject = "session"
	}
	id := b.session.ID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("%s_%s_%s.json", subject, b.session.StartTime.Format("20060102_150405"), id)
	if b.cfg.CompressOutput {
		name += ".gz"
	}
	return name
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '/', '\\', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}

func writeJSON(path string, data v1.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(data); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return f.Close()
}

func writeGzipJSON(path string, data v1.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return f.Close()
}
