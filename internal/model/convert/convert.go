package convert

import (
	"encoding/json"
	"fmt"

	"github.com/gazewatch/gazewatch/internal/model"
	"github.com/gazewatch/gazewatch/pkg/core"
)

// SessionRegion decodes the acceptance region stored on a session row.
// ok is false when the session was never calibrated.
func SessionRegion(s model.Session) (r core.AcceptanceRegion, ok bool, err error) {
	if len(s.Region) == 0 || string(s.Region) == "null" {
		return r, false, nil
	}
	if err := json.Unmarshal(s.Region, &r); err != nil {
		return r, false, fmt.Errorf("invalid region on session %s: %w", s.ID, err)
	}
	return r, true, nil
}

// StatusEventToCore converts a GORM model.StatusEvent back to a core.StatusEvent.
func StatusEventToCore(e model.StatusEvent) (core.StatusEvent, error) {
	out := core.StatusEvent{
		SessionID: e.SessionID,
		Seq:       e.Seq,
		Time:      e.Time,
		Reason:    e.Reason,
		HasRatio:  e.RatioX.Valid && e.RatioY.Valid,
	}
	if err := out.Status.UnmarshalText([]byte(e.Status)); err != nil {
		return core.StatusEvent{}, err
	}
	if out.HasRatio {
		out.Ratio = core.GazeRatio{X: e.RatioX.Float64, Y: e.RatioY.Float64}
	}
	return out, nil
}
