package v1

import (
	"math"

	"github.com/gazewatch/gazewatch/pkg/core"
)

// SessionData contains all the data needed to build a report.
type SessionData struct {
	Session     *core.Session
	Calibration *core.Calibration
	Events      []core.StatusEvent
	Summary     *core.SessionSummary
	Version     string
}

// Build creates a Report from the session data.
func Build(data *SessionData) Report {
	r := Report{
		FormatVersion: FormatVersion,
		Version:       data.Version,
		Spans:         make([]Span, 0),
		Frames:        make([][]any, 0, len(data.Events)),
	}

	if s := data.Session; s != nil {
		r.Session = Session{
			ID:        s.ID,
			Subject:   s.Subject,
			Source:    s.Source,
			Host:      s.Host,
			Margin:    s.Margin,
			StartTime: s.StartTime,
		}
	}

	if c := data.Calibration; c != nil {
		cal := &Calibration{
			Samples:     make([]Sample, 0, len(c.Samples)),
			Region:      [4]float64{c.Region.MinX, c.Region.MaxX, c.Region.MinY, c.Region.MaxY},
			CompletedAt: c.CompletedAt,
		}
		for _, s := range c.Samples {
			cal.Samples = append(cal.Samples, Sample{Target: s.Target.Label(), X: round(s.Ratio.X), Y: round(s.Ratio.Y)})
		}
		r.Calibration = cal
	}

	for _, e := range data.Events {
		row := []any{e.Seq, e.Time.UnixMilli(), e.Status.String(), nil, nil}
		if e.HasRatio {
			row[3] = round(e.Ratio.X)
			row[4] = round(e.Ratio.Y)
		}
		r.Frames = append(r.Frames, row)
	}

	for _, s := range core.Spans(data.Events) {
		r.Spans = append(r.Spans, Span{
			Status:   s.Status.String(),
			FirstSeq: s.FirstSeq,
			LastSeq:  s.LastSeq,
			Frames:   s.Frames,
			Start:    s.Start.UnixMilli(),
			Seconds:  s.Duration().Seconds(),
		})
	}

	r.Summary = buildSummary(data)
	switch {
	case data.Summary != nil && !data.Summary.EndTime.IsZero():
		r.Session.EndTime = data.Summary.EndTime
	case len(data.Events) > 0:
		r.Session.EndTime = data.Events[len(data.Events)-1].Time
	default:
		r.Session.EndTime = r.Session.StartTime
	}
	return r
}

func buildSummary(data *SessionData) Summary {
	sum := Summary{Counts: make(map[string]uint64, 3)}
	for _, s := range core.Statuses() {
		sum.Counts[s.String()] = 0
	}

	src := data.Summary
	if src == nil {
		// No end record: derive the counters from the events.
		derived := core.NewSessionSummary("")
		for _, e := range data.Events {
			derived.Observe(e.Status)
		}
		src = &derived
	}

	sum.EndReason = src.EndReason
	sum.Frames = src.Frames
	for s, n := range src.Counts {
		sum.Counts[s.String()] = n
	}
	sum.InsideFraction = round(src.InsideFraction())
	if data.Session != nil && !src.EndTime.IsZero() {
		sum.DurationSec = src.EndTime.Sub(data.Session.StartTime).Seconds()
	}
	return sum
}

// round keeps ratios readable in the report.
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
