package gaze

import (
	"errors"
	"math"
	"testing"

	"github.com/gazewatch/gazewatch/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eyeGeometry describes a synthetic face in pixel space.
type eyeGeometry struct {
	leftOuter, leftInner   float64 // x of left eye corners
	rightInner, rightOuter float64 // x of right eye corners
	top, bottom            float64 // y of left eye lids
	leftIris, rightIris    core.Point
}

func (g eyeGeometry) landmarks() core.LandmarkSet {
	lm := make(core.LandmarkSet, core.FaceMeshSize)
	lm[core.LeftEyeOuter] = core.Point{X: g.leftOuter, Y: 100}
	lm[core.LeftEyeInner] = core.Point{X: g.leftInner, Y: 100}
	lm[core.RightEyeInner] = core.Point{X: g.rightInner, Y: 100}
	lm[core.RightEyeOuter] = core.Point{X: g.rightOuter, Y: 100}
	lm[core.LeftEyeTop] = core.Point{X: 0, Y: g.top}
	lm[core.LeftEyeBottom] = core.Point{X: 0, Y: g.bottom}
	ring(lm, core.LeftIris, g.leftIris)
	ring(lm, core.RightIris, g.rightIris)
	return lm
}

// ring places four points symmetrically around c so their centroid is c.
func ring(lm core.LandmarkSet, idx [core.IrisRingSize]int, c core.Point) {
	offsets := []core.Point{{X: 2, Y: 0}, {X: 0, Y: -2}, {X: -2, Y: 0}, {X: 0, Y: 2}}
	for i, id := range idx {
		lm[id] = core.Point{X: c.X + offsets[i].X, Y: c.Y + offsets[i].Y}
	}
}

func centered() eyeGeometry {
	return eyeGeometry{
		leftOuter: 100, leftInner: 140,
		rightInner: 200, rightOuter: 240,
		top: 90, bottom: 110,
		leftIris:  core.Point{X: 120, Y: 100},
		rightIris: core.Point{X: 220, Y: 100},
	}
}

func TestCompute_Centered(t *testing.T) {
	r, err := Compute(centered().landmarks())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r.X, 1e-9)
	assert.InDelta(t, 0.5, r.Y, 1e-9)
}

func TestCompute_Ratios(t *testing.T) {
	tests := []struct {
		name  string
		left  core.Point
		right core.Point
		wantX float64
		wantY float64
	}{
		{"at outer corners", core.Point{X: 100, Y: 90}, core.Point{X: 200, Y: 90}, 0, 0},
		{"at inner corners", core.Point{X: 140, Y: 110}, core.Point{X: 240, Y: 110}, 1, 1},
		{"quarter", core.Point{X: 110, Y: 95}, core.Point{X: 210, Y: 95}, 0.25, 0.25},
		{"eyes disagree", core.Point{X: 110, Y: 100}, core.Point{X: 230, Y: 100}, 0.5, 0.5},
		{"beyond corner", core.Point{X: 144, Y: 114}, core.Point{X: 244, Y: 100}, 1.1, 1.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := centered()
			g.leftIris = tt.left
			g.rightIris = tt.right
			r, err := Compute(g.landmarks())
			require.NoError(t, err)
			assert.InDelta(t, tt.wantX, r.X, 1e-9)
			assert.InDelta(t, tt.wantY, r.Y, 1e-9)
		})
	}
}

func TestCompute_VerticalUsesLeftEyeOnly(t *testing.T) {
	g := centered()
	g.rightIris = core.Point{X: 220, Y: 500}
	r, err := Compute(g.landmarks())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r.Y, 1e-9)
}

func TestCompute_Deterministic(t *testing.T) {
	g := centered()
	g.leftIris = core.Point{X: 117.3, Y: 97.1}
	g.rightIris = core.Point{X: 223.9, Y: 101.4}
	lm := g.landmarks()

	first, err := Compute(lm)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Compute(lm)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCompute_TooShort(t *testing.T) {
	for _, n := range []int{0, 12, core.MinLandmarks - 1} {
		_, err := Compute(make(core.LandmarkSet, n))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedInput))

		var mErr *MalformedInputError
		require.True(t, errors.As(err, &mErr))
		assert.Equal(t, n, mErr.Got)
		assert.Equal(t, core.MinLandmarks, mErr.Want)
	}
}

func TestCompute_MinimumLengthAccepted(t *testing.T) {
	lm := centered().landmarks()[:core.MinLandmarks]
	_, err := Compute(lm)
	assert.NoError(t, err)
}

func TestCompute_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*eyeGeometry)
		span   string
	}{
		{"left corners coincide", func(g *eyeGeometry) { g.leftInner = g.leftOuter }, "left-eye-width"},
		{"right corners coincide", func(g *eyeGeometry) { g.rightOuter = g.rightInner }, "right-eye-width"},
		{"eye closed", func(g *eyeGeometry) { g.bottom = g.top }, "left-eye-height"},
		{"near zero span", func(g *eyeGeometry) { g.leftInner = g.leftOuter + 1e-9 }, "left-eye-width"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := centered()
			tt.mutate(&g)
			r, err := Compute(g.landmarks())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDegenerateGeometry))

			var dErr *DegenerateGeometryError
			require.True(t, errors.As(err, &dErr))
			assert.Equal(t, tt.span, dErr.Span)
			assert.False(t, math.IsNaN(r.X) || math.IsNaN(r.Y))
		})
	}
}

func TestCompute_NonFiniteInput(t *testing.T) {
	g := centered()
	lm := g.landmarks()
	lm[core.LeftIris[0]] = core.Point{X: math.Inf(1), Y: 100}

	_, err := Compute(lm)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerateGeometry))
}

func TestCompute_NaNIrisPoint(t *testing.T) {
	g := centered()
	lm := g.landmarks()
	lm[core.LeftIris[0]] = core.Point{X: math.NaN(), Y: 100}

	_, err := Compute(lm)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerateGeometry))

	var dErr *DegenerateGeometryError
	require.True(t, errors.As(err, &dErr))
	assert.Equal(t, "left-eye-width", dErr.Span)
}
