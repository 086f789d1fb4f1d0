package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func (l *testLogger) hasPrefix(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range l.messages {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}
	t.Cleanup(d.Close)

	return d, logger
}

func TestDispatcher_SyncSubscriber(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Subscribe("display", func(e Event) error {
		got = e
		return nil
	})

	if err := d.Publish(Event{Topic: TopicStatus, Payload: "INSIDE"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Payload != "INSIDE" {
		t.Errorf("expected payload INSIDE, got %v", got.Payload)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be filled in")
	}
}

func TestDispatcher_SyncSubscriberError(t *testing.T) {
	d, _ := newTestDispatcher(t)

	sinkErr := errors.New("disk full")
	d.Subscribe("broken", func(e Event) error { return sinkErr })
	d.Subscribe("healthy", func(e Event) error { return nil })

	err := d.Publish(Event{Topic: TopicStatus})
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected wrapped sink error, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("expected subscriber name in error, got %v", err)
	}
}

func TestDispatcher_TopicFilter(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var statuses, all atomic.Int32
	d.Subscribe("status-only", func(e Event) error {
		statuses.Add(1)
		return nil
	}, Topics(TopicStatus))
	d.Subscribe("everything", func(e Event) error {
		all.Add(1)
		return nil
	})

	d.Publish(Event{Topic: TopicSessionStart})
	d.Publish(Event{Topic: TopicStatus})
	d.Publish(Event{Topic: TopicSessionEnd})

	if statuses.Load() != 1 {
		t.Errorf("expected 1 status event, got %d", statuses.Load())
	}
	if all.Load() != 3 {
		t.Errorf("expected 3 events, got %d", all.Load())
	}
}

func TestDispatcher_BufferedKeepsOrder(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var mu sync.Mutex
	var seen []int
	d.Subscribe("sink", func(e Event) error {
		mu.Lock()
		seen = append(seen, e.Payload.(int))
		mu.Unlock()
		return nil
	}, Buffered(100))

	for i := 0; i < 50; i++ {
		if err := d.Publish(Event{Topic: TopicStatus, Payload: i}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	d.Close()

	if len(seen) != 50 {
		t.Fatalf("expected 50 events after close, got %d", len(seen))
	}
	for i, v := range seen {
		if v != i {
			t.Fatalf("event %d delivered out of order: %d", i, v)
		}
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Subscribe("slow", func(e Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(2))

	d.Publish(Event{Topic: TopicStatus}) // being processed
	<-started
	d.Publish(Event{Topic: TopicStatus}) // queued
	d.Publish(Event{Topic: TopicStatus}) // queued

	err := d.Publish(Event{Topic: TopicStatus})
	if err == nil {
		t.Error("expected error when queue is full")
	}
	if d.Dropped() != 1 {
		t.Errorf("expected 1 dropped event, got %d", d.Dropped())
	}

	close(block)
}

func TestDispatcher_CriticalEventBlocks(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Subscribe("slow", func(e Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(1))

	d.Publish(Event{Topic: TopicStatus})
	<-started
	d.Publish(Event{Topic: TopicStatus})

	done := make(chan struct{})
	go func() {
		d.Publish(Event{Topic: TopicSessionEnd, Critical: true})
		close(done)
	}()

	select {
	case <-done:
		t.Error("critical publish should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	<-done
	if d.Dropped() != 0 {
		t.Errorf("critical events must not be dropped, got %d drops", d.Dropped())
	}
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Subscribe("blocking", func(e Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(1), Blocking())

	d.Publish(Event{Topic: TopicStatus})
	<-started
	d.Publish(Event{Topic: TopicStatus})

	done := make(chan struct{})
	go func() {
		d.Publish(Event{Topic: TopicStatus})
		close(done)
	}()

	select {
	case <-done:
		t.Error("publish should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	<-done
}

func TestDispatcher_PublishAfterClose(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Subscribe("sink", func(e Event) error { return nil }, Buffered(1))

	d.Close()
	d.Close()

	if err := d.Publish(Event{Topic: TopicStatus}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestDispatcher_AsyncErrorIsLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Subscribe("broken", func(e Event) error {
		return errors.New("connection reset")
	}, Buffered(4))

	if err := d.Publish(Event{Topic: TopicStatus}); err != nil {
		t.Fatalf("async subscriber errors must not reach the publisher: %v", err)
	}
	d.Close()

	if !logger.hasPrefix("ERROR: subscriber failed") {
		t.Error("expected error log message")
	}
}

func TestDispatcher_LoggedSubscriber(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Subscribe("logged", func(e Event) error { return nil }, Logged())
	d.Publish(Event{Topic: TopicCalibration})

	if !logger.hasPrefix("DEBUG: handling event") || !logger.hasPrefix("DEBUG: event complete") {
		t.Errorf("expected debug messages, got %v", logger.messages)
	}
}

func TestDispatcher_LoggedSubscriberError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Subscribe("logged", func(e Event) error { return fmt.Errorf("test error") }, Logged())
	d.Publish(Event{Topic: TopicCalibration})

	if !logger.hasPrefix("ERROR: event failed") {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasSubscriber(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Subscribe("memory", func(e Event) error { return nil })

	if !d.HasSubscriber("memory") {
		t.Error("expected subscriber to exist")
	}
	if d.HasSubscriber("influx") {
		t.Error("expected subscriber to not exist")
	}
}
