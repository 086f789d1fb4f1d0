// Package imagedir serves frames from a directory of still images, in lexical
// file-name order.
package imagedir

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gazewatch/gazewatch/internal/vision"
)

// Config holds image directory source settings.
type Config struct {
	Dir    string
	Mirror bool
	// Interval paces frames like a camera would. Zero delivers frames as fast as they decode.
	Interval time.Duration
}

// Source implements vision.FrameSource over image files.
type Source struct {
	cfg   Config
	files []string
	next  int
	last  time.Time
}

var extensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Open lists the image files in cfg.Dir.
func Open(cfg Config) (*Source, error) {
	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(cfg.Dir, e.Name()))
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no png or jpeg frames in %s", cfg.Dir)
	}
	return &Source{cfg: cfg, files: files}, nil
}

// Len returns the number of frames.
func (s *Source) Len() int {
	return len(s.files)
}

// Next decodes the next image.
func (s *Source) Next(ctx context.Context) (vision.Frame, error) {
	if s.next >= len(s.files) {
		return vision.Frame{}, io.EOF
	}
	if err := s.pace(ctx); err != nil {
		return vision.Frame{}, err
	}

	path := s.files[s.next]
	s.next++

	img, err := decode(path)
	if err != nil {
		return vision.Frame{}, err
	}
	if s.cfg.Mirror {
		img = vision.MirrorHorizontal(img)
	}
	b := img.Bounds()
	return vision.Frame{
		Seq:    uint64(s.next),
		Time:   time.Now(),
		Image:  img,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

func (s *Source) pace(ctx context.Context) error {
	if s.cfg.Interval <= 0 || s.last.IsZero() {
		s.last = time.Now()
		return ctx.Err()
	}
	wait := time.Until(s.last.Add(s.cfg.Interval))
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	s.last = time.Now()
	return nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Close releases nothing; files are opened per frame.
func (s *Source) Close() error {
	s.next = len(s.files)
	return nil
}
