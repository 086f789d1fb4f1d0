// Package replay reads and writes JSON Lines recordings of landmark detector
// output so sessions can be re-run without a camera.
//
// Each line is one frame:
//
//	{"seq":1,"t":"2026-01-02T15:04:05Z","landmarks":[[x,y],...],"trigger":"capture"}
//
// A null or missing "landmarks" means no face was detected in that frame.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gazewatch/gazewatch/internal/trigger"
	"github.com/gazewatch/gazewatch/internal/vision"
	"github.com/gazewatch/gazewatch/pkg/core"
)

// Record is one line of a recording.
type Record struct {
	Seq       uint64       `json:"seq,omitempty"`
	Time      time.Time    `json:"t,omitempty"`
	Width     int          `json:"w,omitempty"`
	Height    int          `json:"h,omitempty"`
	Landmarks [][2]float64 `json:"landmarks"`
	Trigger   string       `json:"trigger,omitempty"`
}

// Source replays a recording. It is both a vision.FrameSource and a
// trigger.Source: Poll returns the trigger attached to the last frame read,
// once.
type Source struct {
	rc      io.ReadCloser
	sc      *bufio.Scanner
	seq     uint64
	mu      sync.Mutex
	pending trigger.Signal
}

// Open opens a recording file.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	return NewSource(f), nil
}

// NewSource reads a recording from rc.
func NewSource(rc io.ReadCloser) *Source {
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Source{rc: rc, sc: sc}
}

// Next implements vision.FrameSource.
func (s *Source) Next(ctx context.Context) (vision.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return vision.Frame{}, err
		}
		if !s.sc.Scan() {
			if err := s.sc.Err(); err != nil {
				return vision.Frame{}, fmt.Errorf("failed to read recording: %w", err)
			}
			return vision.Frame{}, io.EOF
		}
		line := s.sc.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return vision.Frame{}, fmt.Errorf("invalid recording line %d: %w", s.seq+1, err)
		}
		s.seq++

		f := vision.Frame{
			Seq:    rec.Seq,
			Time:   rec.Time,
			Width:  rec.Width,
			Height: rec.Height,
		}
		if f.Seq == 0 {
			f.Seq = s.seq
		}
		if f.Time.IsZero() {
			f.Time = time.Now()
		}
		if rec.Landmarks != nil {
			f.Detected = true
			f.Landmarks = make(core.LandmarkSet, len(rec.Landmarks))
			for i, p := range rec.Landmarks {
				f.Landmarks[i] = core.Point{X: p[0], Y: p[1]}
			}
		}

		f.Trigger = trigger.ParseSignal(rec.Trigger)

		s.mu.Lock()
		s.pending = f.Trigger
		s.mu.Unlock()
		return f, nil
	}
}

// Poll implements trigger.Source.
func (s *Source) Poll() trigger.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig := s.pending
	s.pending = trigger.None
	return sig
}

// Close implements vision.FrameSource.
func (s *Source) Close() error {
	return s.rc.Close()
}
