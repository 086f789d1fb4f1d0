//go:build !gocv

package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpen_WithoutGocv(t *testing.T) {
	src, err := Open(Config{Device: 0})
	assert.Nil(t, src)
	assert.ErrorIs(t, err, ErrUnavailable)
}
