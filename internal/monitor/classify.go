package monitor

import (
	"github.com/gazewatch/gazewatch/internal/vision"
	"github.com/gazewatch/gazewatch/pkg/core"
)

// Classify maps one observation to a status. Unusable observations are NO_FACE.
func Classify(region core.AcceptanceRegion, obs vision.Observation) core.MonitorStatus {
	if !obs.Valid {
		return core.NoFace
	}
	if region.Contains(obs.Ratio) {
		return core.Inside
	}
	return core.Outside
}
