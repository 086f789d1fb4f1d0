package storage

import (
	"fmt"
	"time"

	"github.com/gazewatch/gazewatch/internal/dispatcher"
	"github.com/gazewatch/gazewatch/pkg/core"
)

// Subscribe registers b on d so that every session event reaches it.
// Pass dispatcher.Buffered to decouple a slow backend from the publisher.
func Subscribe(d *dispatcher.Dispatcher, b Backend, opts ...dispatcher.Option) {
	d.Subscribe(NameOf(b), func(e dispatcher.Event) error {
		switch p := e.Payload.(type) {
		case *core.Session:
			return b.StartSession(p)
		case *core.Calibration:
			return b.RecordCalibration(p)
		case *core.StatusEvent:
			return b.RecordStatus(p)
		case *core.SessionSummary:
			return b.EndSession(p)
		default:
			return fmt.Errorf("unexpected payload %T on %s", e.Payload, e.Topic)
		}
	}, opts...)
}

// Publisher turns session recording calls into dispatcher events. Session
// start, calibration and end are critical and never dropped; status events
// may be dropped by buffered subscribers that fall behind.
type Publisher struct {
	d *dispatcher.Dispatcher
}

// NewPublisher creates a publisher on d.
func NewPublisher(d *dispatcher.Dispatcher) *Publisher {
	return &Publisher{d: d}
}

func (p *Publisher) StartSession(s *core.Session) error {
	return p.d.Publish(dispatcher.Event{Topic: dispatcher.TopicSessionStart, Payload: s, Timestamp: s.StartTime, Critical: true})
}

func (p *Publisher) RecordCalibration(c *core.Calibration) error {
	return p.d.Publish(dispatcher.Event{Topic: dispatcher.TopicCalibration, Payload: c, Timestamp: c.CompletedAt, Critical: true})
}

// RecordStatus publishes a copy of e so callers may reuse it.
func (p *Publisher) RecordStatus(e *core.StatusEvent) error {
	ev := *e
	return p.d.Publish(dispatcher.Event{Topic: dispatcher.TopicStatus, Payload: &ev, Timestamp: ev.Time})
}

func (p *Publisher) EndSession(summary *core.SessionSummary) error {
	ts := summary.EndTime
	if ts.IsZero() {
		ts = time.Now()
	}
	return p.d.Publish(dispatcher.Event{Topic: dispatcher.TopicSessionEnd, Payload: summary, Timestamp: ts, Critical: true})
}
