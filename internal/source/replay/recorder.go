package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gazewatch/gazewatch/internal/trigger"
	"github.com/gazewatch/gazewatch/internal/vision"
)

// Recorder writes detector output in the replay format.
type Recorder struct {
	mu sync.Mutex
	w  *bufio.Writer
	c  io.Closer
}

// Create creates (or truncates) a recording file.
func Create(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}
	return NewRecorder(f), nil
}

// NewRecorder writes to wc.
func NewRecorder(wc io.WriteCloser) *Recorder {
	return &Recorder{w: bufio.NewWriter(wc), c: wc}
}

// Write appends one frame with its trigger. Frames without a detection are
// written with null landmarks.
func (r *Recorder) Write(f vision.Frame) error {
	rec := Record{
		Seq:    f.Seq,
		Time:   f.Time,
		Width:  f.Width,
		Height: f.Height,
	}
	if f.Detected {
		rec.Landmarks = make([][2]float64, len(f.Landmarks))
		for i, p := range f.Landmarks {
			rec.Landmarks[i] = [2]float64{p.X, p.Y}
		}
	}
	if f.Trigger != trigger.None {
		rec.Trigger = f.Trigger.String()
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", f.Seq, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", f.Seq, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.w.Flush(); err != nil {
		_ = r.c.Close()
		return err
	}
	return r.c.Close()
}
