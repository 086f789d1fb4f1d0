// Package gazetest builds synthetic face-mesh landmark sets for tests.
package gazetest

import "github.com/gazewatch/gazewatch/pkg/core"

// Eye geometry of the synthetic face, in pixels.
const (
	LeftOuterX  = 100.0
	LeftInnerX  = 140.0
	RightInnerX = 200.0
	RightOuterX = 240.0
	LidTopY     = 90.0
	LidBottomY  = 110.0
	EyeWidth    = 40.0
	EyeHeight   = 20.0
)

// Landmarks returns a full landmark set whose gaze ratio is r.
func Landmarks(r core.GazeRatio) core.LandmarkSet {
	lm := make(core.LandmarkSet, core.FaceMeshSize)
	lm[core.LeftEyeOuter] = core.Point{X: LeftOuterX, Y: 100}
	lm[core.LeftEyeInner] = core.Point{X: LeftInnerX, Y: 100}
	lm[core.RightEyeInner] = core.Point{X: RightInnerX, Y: 100}
	lm[core.RightEyeOuter] = core.Point{X: RightOuterX, Y: 100}
	lm[core.LeftEyeTop] = core.Point{X: 120, Y: LidTopY}
	lm[core.LeftEyeBottom] = core.Point{X: 120, Y: LidBottomY}

	y := LidTopY + r.Y*EyeHeight
	for _, idx := range core.LeftIris {
		lm[idx] = core.Point{X: LeftOuterX + r.X*EyeWidth, Y: y}
	}
	for _, idx := range core.RightIris {
		lm[idx] = core.Point{X: RightInnerX + r.X*EyeWidth, Y: y}
	}
	return lm
}

// Degenerate returns a landmark set whose left eye corners coincide.
func Degenerate() core.LandmarkSet {
	lm := Landmarks(core.GazeRatio{X: 0.5, Y: 0.5})
	lm[core.LeftEyeInner] = lm[core.LeftEyeOuter]
	return lm
}
