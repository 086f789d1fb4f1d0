// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"

	"github.com/gazewatch/gazewatch/internal/model"
	"github.com/gazewatch/gazewatch/pkg/core"
	"gorm.io/datatypes"
)

// regionToJSON converts an acceptance region to datatypes.JSON for DB storage.
func regionToJSON(r core.AcceptanceRegion) datatypes.JSON {
	data, _ := json.Marshal(r)
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	return model.Session{
		ID:        s.ID,
		Subject:   s.Subject,
		Source:    s.Source,
		Host:      s.Host,
		Version:   s.Version,
		Margin:    s.Margin,
		StartTime: s.StartTime,
		Region:    datatypes.JSON("null"),
	}
}

// CalibrationUpdates returns the session columns set when calibration completes.
func CalibrationUpdates(c core.Calibration) map[string]any {
	return map[string]any{
		"region":        regionToJSON(c.Region),
		"calibrated_at": sql.NullTime{Time: c.CompletedAt, Valid: !c.CompletedAt.IsZero()},
	}
}

// SummaryUpdates returns the session columns set when the session ends.
func SummaryUpdates(s core.SessionSummary) map[string]any {
	return map[string]any{
		"end_time":       sql.NullTime{Time: s.EndTime, Valid: !s.EndTime.IsZero()},
		"end_reason":     s.EndReason,
		"frames":         s.Frames,
		"inside_frames":  s.Counts[core.Inside],
		"outside_frames": s.Counts[core.Outside],
		"no_face_frames": s.Counts[core.NoFace],
	}
}

// CoreToCalibrationSamples converts the samples of a calibration to GORM rows.
func CoreToCalibrationSamples(c core.Calibration) []model.CalibrationSample {
	out := make([]model.CalibrationSample, 0, len(c.Samples))
	for _, s := range c.Samples {
		out = append(out, model.CalibrationSample{
			SessionID:   c.SessionID,
			TargetIndex: int(s.Target),
			Target:      s.Target.Label(),
			RatioX:      s.Ratio.X,
			RatioY:      s.Ratio.Y,
			CapturedAt:  s.CapturedAt,
		})
	}
	return out
}

// CoreToStatusEvent converts a core.StatusEvent to a GORM model.StatusEvent.
// The ratio columns are NULL when the frame had no usable ratio.
func CoreToStatusEvent(e core.StatusEvent) model.StatusEvent {
	return model.StatusEvent{
		SessionID: e.SessionID,
		Seq:       e.Seq,
		Time:      e.Time,
		Status:    e.Status.String(),
		RatioX:    sql.NullFloat64{Float64: e.Ratio.X, Valid: e.HasRatio},
		RatioY:    sql.NullFloat64{Float64: e.Ratio.Y, Valid: e.HasRatio},
		Reason:    e.Reason,
	}
}

// CoreToStatusSpan converts a core.StatusSpan to a GORM model.StatusSpan.
func CoreToStatusSpan(s core.StatusSpan) model.StatusSpan {
	return model.StatusSpan{
		SessionID: s.SessionID,
		Status:    s.Status.String(),
		StartTime: s.Start,
		EndTime:   s.End,
		FirstSeq:  s.FirstSeq,
		LastSeq:   s.LastSeq,
		Frames:    s.Frames,
	}
}
