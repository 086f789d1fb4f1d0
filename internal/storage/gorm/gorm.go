// Package gormstorage implements the storage.Backend interface on top of GORM.
// Session, calibration and summary rows are written synchronously; status
// events and status spans are queued and batch-written by a background writer.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gazewatch/gazewatch/internal/model"
	"github.com/gazewatch/gazewatch/internal/model/convert"
	"github.com/gazewatch/gazewatch/internal/queue"
	"github.com/gazewatch/gazewatch/pkg/core"

	"gorm.io/gorm"
)

// DefaultFlushInterval is used when Dependencies.FlushInterval is zero.
const DefaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
	// Name labels the backend in logs, e.g. "sqlite" or "postgres".
	Name string
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	StatusEvents *queue.Queue[model.StatusEvent]
	StatusSpans  *queue.Queue[model.StatusSpan]
}

func newQueues() *queues {
	return &queues{
		StatusEvents: queue.New[model.StatusEvent](),
		StatusSpans:  queue.New[model.StatusSpan](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	log    *slog.Logger
	queues *queues

	spanMu sync.Mutex
	spans  core.SpanTracker

	// flushMu serializes the writer goroutine with synchronous flushes.
	flushMu sync.Mutex

	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Name == "" {
		deps.Name = "gorm"
	}
	return &Backend{
		deps:   deps,
		log:    deps.Logger.With("component", deps.Name),
		queues: newQueues(),
	}
}

func (b *Backend) Name() string { return b.deps.Name }

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB { return b.deps.DB }

// Init migrates the schema and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend: no database connection")
	}
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.startDBWriter()
	return nil
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			<-b.done
		}
		if b.deps.DB != nil {
			err = b.Flush()
		}
	})
	return err
}

// StartSession inserts the session row.
func (b *Backend) StartSession(s *core.Session) error {
	row := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	b.spanMu.Lock()
	b.spans = core.SpanTracker{}
	b.spanMu.Unlock()
	return nil
}

// RecordCalibration inserts the samples and stores the region on the session row.
func (b *Backend) RecordCalibration(c *core.Calibration) error {
	samples := convert.CoreToCalibrationSamples(*c)
	return b.deps.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&samples).Error; err != nil {
			return fmt.Errorf("failed to insert calibration samples: %w", err)
		}
		res := tx.Model(&model.Session{}).Where("id = ?", c.SessionID).Updates(convert.CalibrationUpdates(*c))
		if res.Error != nil {
			return fmt.Errorf("failed to store acceptance region: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("session %s not found", c.SessionID)
		}
		return nil
	})
}

// RecordStatus queues the event and, on a status change, the span it closed.
func (b *Backend) RecordStatus(e *core.StatusEvent) error {
	b.queues.StatusEvents.Push(convert.CoreToStatusEvent(*e))

	b.spanMu.Lock()
	closed, ok := b.spans.Add(*e)
	b.spanMu.Unlock()
	if ok {
		b.queues.StatusSpans.Push(convert.CoreToStatusSpan(closed))
	}
	return nil
}

// EndSession closes the open span, writes everything queued and stores the summary.
func (b *Backend) EndSession(summary *core.SessionSummary) error {
	b.spanMu.Lock()
	open, ok := b.spans.Flush()
	b.spanMu.Unlock()
	if ok {
		b.queues.StatusSpans.Push(convert.CoreToStatusSpan(open))
	}

	flushErr := b.Flush()

	res := b.deps.DB.Model(&model.Session{}).Where("id = ?", summary.SessionID).Updates(convert.SummaryUpdates(*summary))
	if res.Error != nil {
		return errors.Join(flushErr, fmt.Errorf("failed to update session: %w", res.Error))
	}
	return flushErr
}

// Pending returns the number of queued rows not yet written.
func (b *Backend) Pending() int {
	return b.queues.StatusEvents.Len() + b.queues.StatusSpans.Len()
}

// Flush writes all queued rows now.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	return errors.Join(
		writeQueue(b.deps.DB, b.queues.StatusEvents, "status events", b.log),
		writeQueue(b.deps.DB, b.queues.StatusSpans, "status spans", b.log),
	)
}

// writeQueue writes all items from a queue to the database in a transaction.
// Items are put back at the front of the queue when the write fails.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) error {
	if q.Empty() {
		return nil
	}

	items := q.Drain()
	start := time.Now()
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		tx.Rollback()
		if lost := q.Requeue(items); lost > 0 {
			log.Warn("Write queue overflow, rows discarded", "queue", name, "discarded", lost)
		}
		log.Error("Error writing batch", "queue", name, "rows", len(items), "error", err)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tx.Commit().Error; err != nil {
		q.Requeue(items)
		return fmt.Errorf("failed to commit %s: %w", name, err)
	}
	log.Debug("Wrote batch", "queue", name, "rows", len(items), "duration", time.Since(start))
	return nil
}

// startDBWriter periodically drains the queues into the DB until Close.
func (b *Backend) startDBWriter() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			// errors are logged by writeQueue; rows stay queued for the next tick
			_ = b.Flush()
		}
	}
}
