// pkg/core/landmarks.go
package core

// Face-mesh landmark indices read by the gaze computation.
// Numbering follows the MediaPipe face mesh with refined iris landmarks (478 points).
const (
	LeftEyeOuter  = 33
	LeftEyeInner  = 133
	RightEyeInner = 362
	RightEyeOuter = 263

	LeftEyeTop    = 159
	LeftEyeBottom = 145

	LeftIrisFirst  = 468
	RightIrisFirst = 473
	IrisRingSize   = 4

	// MinLandmarks is the shortest landmark set that contains every index above.
	MinLandmarks = RightIrisFirst + IrisRingSize

	// FaceMeshSize is the length of a full refined face-mesh detection.
	FaceMeshSize = 478
)

// LeftIris lists the left iris ring indices.
var LeftIris = [IrisRingSize]int{468, 469, 470, 471}

// RightIris lists the right iris ring indices.
var RightIris = [IrisRingSize]int{473, 474, 475, 476}

// Point is a 2-D pixel-space coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LandmarkSet is one frame's detector output. It is never mutated after detection.
type LandmarkSet []Point

// ScaleNormalized converts detector output in [0,1] image coordinates into
// integer pixel coordinates for a frame of the given size.
func ScaleNormalized(normalized [][2]float64, width, height int) LandmarkSet {
	out := make(LandmarkSet, len(normalized))
	for i, p := range normalized {
		out[i] = Point{
			X: float64(int(p[0] * float64(width))),
			Y: float64(int(p[1] * float64(height))),
		}
	}
	return out
}
