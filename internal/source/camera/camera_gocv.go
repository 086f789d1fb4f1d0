//go:build gocv

package camera

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gazewatch/gazewatch/internal/vision"
	"gocv.io/x/gocv"
)

// Source reads frames from an OpenCV video capture device.
type Source struct {
	cfg    Config
	webcam *gocv.VideoCapture
	mat    gocv.Mat
	seq    uint64
}

// Open acquires the capture device. The caller owns the returned Source and must Close it.
func Open(cfg Config) (*Source, error) {
	webcam, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to open video device %d: %w", cfg.Device, err)
	}
	if cfg.Width > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	return &Source{cfg: cfg, webcam: webcam, mat: gocv.NewMat()}, nil
}

// Next blocks until the device delivers a frame. A device that stops
// delivering frames for ReadTimeout ends the stream.
func (s *Source) Next(ctx context.Context) (vision.Frame, error) {
	deadline := time.Now().Add(s.cfg.ReadTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return vision.Frame{}, err
		}
		if !s.webcam.IsOpened() {
			return vision.Frame{}, io.EOF
		}
		if s.webcam.Read(&s.mat) && !s.mat.Empty() {
			break
		}
		if time.Now().After(deadline) {
			return vision.Frame{}, io.EOF
		}
		time.Sleep(10 * time.Millisecond)
	}

	if s.cfg.Mirror {
		gocv.Flip(s.mat, &s.mat, 1)
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return vision.Frame{}, fmt.Errorf("failed to convert frame: %w", err)
	}

	s.seq++
	return vision.Frame{
		Seq:    s.seq,
		Time:   time.Now(),
		Image:  img,
		Width:  s.mat.Cols(),
		Height: s.mat.Rows(),
	}, nil
}

// Close releases the device.
func (s *Source) Close() error {
	_ = s.mat.Close()
	return s.webcam.Close()
}
