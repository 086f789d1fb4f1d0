// Package dispatcher fans session events out to subscribers. Subscribers
// registered with Buffered run on their own goroutine so a slow sink never
// stalls the publisher; per subscriber, events are delivered in publish order.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Topics published during a session.
const (
	TopicSessionStart = "session.start"
	TopicCalibration  = "session.calibration"
	TopicStatus       = "session.status"
	TopicSessionEnd   = "session.end"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("dispatcher closed")

// Event is one published message.
type Event struct {
	Topic     string
	Payload   any
	Timestamp time.Time

	// Critical events block on a full buffer instead of being dropped.
	Critical bool
}

// HandlerFunc processes an event.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures subscriber registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
	topics     []string
}

// Buffered makes the subscriber async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered subscriber block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the subscriber.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Topics limits the subscriber to the given topics. Without it every topic is delivered.
func Topics(topics ...string) Option {
	return func(c *config) {
		c.topics = append(c.topics, topics...)
	}
}

type subscriber struct {
	name     string
	handle   HandlerFunc
	topics   []string
	buffer   chan Event
	blocking bool
	attr     attribute.KeyValue
}

func (s *subscriber) wants(topic string) bool {
	return len(s.topics) == 0 || slices.Contains(s.topics, topic)
}

// Dispatcher routes events to registered subscribers.
type Dispatcher struct {
	logger Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	mu          sync.RWMutex
	subscribers []*subscriber
	closed      bool
	wg          sync.WaitGroup

	dropCount atomic.Uint64
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger: logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events waiting per subscriber"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for _, s := range d.subscribers {
				if s.buffer != nil {
					o.ObserveInt64(d.queueSize, int64(len(s.buffer)), metric.WithAttributes(s.attr))
				}
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Subscribe adds a named subscriber with optional configuration.
func (d *Dispatcher) Subscribe(name string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &subscriber{
		name:     name,
		handle:   h,
		topics:   cfg.topics,
		blocking: cfg.blocking,
		attr:     attribute.String("subscriber", name),
	}
	if cfg.logged {
		s.handle = d.withLogging(name, s.handle)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if cfg.bufferSize > 0 {
		s.buffer = make(chan Event, cfg.bufferSize)
		d.wg.Add(1)
		go d.drain(s)
	}
	d.subscribers = append(d.subscribers, s)
}

// HasSubscriber returns true if a subscriber with the given name is registered.
func (d *Dispatcher) HasSubscriber(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.subscribers {
		if s.name == name {
			return true
		}
	}
	return false
}

// Publish delivers an event to every interested subscriber. Synchronous
// subscriber errors and drops are joined into the returned error.
func (d *Dispatcher) Publish(e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	var errs []error
	for _, s := range d.subscribers {
		if !s.wants(e.Topic) {
			continue
		}
		if s.buffer == nil {
			if err := s.handle(e); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			}
			d.processed.Add(context.Background(), 1, metric.WithAttributes(s.attr))
			continue
		}
		if err := d.enqueue(s, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dropped returns the number of events dropped on full buffers.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropCount.Load()
}

// Close stops accepting events and waits until every buffered subscriber has
// handled what was already queued.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, s := range d.subscribers {
		if s.buffer != nil {
			close(s.buffer)
		}
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) enqueue(s *subscriber, e Event) error {
	if s.blocking || e.Critical {
		s.buffer <- e
		return nil
	}
	select {
	case s.buffer <- e:
		return nil
	default:
		d.dropCount.Add(1)
		d.dropped.Add(context.Background(), 1, metric.WithAttributes(s.attr, attribute.String("topic", e.Topic)))
		return fmt.Errorf("queue full: %s", s.name)
	}
}

func (d *Dispatcher) drain(s *subscriber) {
	defer d.wg.Done()
	for e := range s.buffer {
		if err := s.handle(e); err != nil {
			d.logger.Error("subscriber failed", "subscriber", s.name, "topic", e.Topic, "error", err)
		}
		d.processed.Add(context.Background(), 1, metric.WithAttributes(s.attr))
	}
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "subscriber", name, "topic", e.Topic)

		err := h(e)

		if err != nil {
			d.logger.Error("event failed", "subscriber", name, "topic", e.Topic, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "subscriber", name, "topic", e.Topic, "duration", time.Since(start))
		}

		return err
	}
}
