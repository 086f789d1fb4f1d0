// Package camera captures live frames from a local video device.
package camera

import (
	"errors"
	"time"
)

// ErrUnavailable is returned when the binary was built without camera support.
var ErrUnavailable = errors.New("camera support not compiled in (build with -tags gocv)")

// Config holds camera settings.
type Config struct {
	Device int
	Width  int
	Height int
	// Mirror flips frames horizontally so subject-left is screen-left.
	Mirror bool
	// ReadTimeout bounds how long a silent device is tolerated before the stream ends.
	ReadTimeout time.Duration
}
