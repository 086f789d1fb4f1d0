// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend via composition; the only SQLite-specific concerns
// are creating the in-memory DB and dumping it to disk.
package sqlitestorage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gazewatch/gazewatch/internal/config"
	"github.com/gazewatch/gazewatch/internal/database"
	gormstorage "github.com/gazewatch/gazewatch/internal/storage/gorm"
	"github.com/gazewatch/gazewatch/pkg/core"

	"gorm.io/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db        *gorm.DB
	cfg       config.SQLiteConfig
	log       *slog.Logger
	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	started   bool
}

// New creates a new SQLite storage backend. cfg.Path is the dump file; with an
// empty path the database lives in memory only.
func New(cfg config.SQLiteConfig, dbm *database.Manager, logger *slog.Logger) (*Backend, error) {
	db, err := dbm.GetSqliteDB("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:            db,
		Logger:        logger,
		FlushInterval: cfg.FlushInterval,
		Name:          "sqlite",
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logger.With("component", "sqlite"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if b.cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(b.cfg.Path), 0755); err != nil {
			return fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	b.started = true
	if b.cfg.Path != "" && b.cfg.FlushInterval > 0 {
		go b.dumpLoop()
	} else {
		close(b.done)
	}
	return nil
}

// EndSession writes the summary and dumps the final state to disk.
func (b *Backend) EndSession(summary *core.SessionSummary) error {
	err := b.Backend.EndSession(summary)
	return errors.Join(err, b.dump())
}

// Close stops the dump goroutine, closes the embedded GORM backend and
// writes a last dump.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopChan)
		if b.started {
			<-b.done
		}
		err = errors.Join(b.Backend.Close(), b.dump())
	})
	return err
}

// Path returns the dump file path.
func (b *Backend) Path() string {
	return b.cfg.Path
}

func (b *Backend) dump() error {
	if b.cfg.Path == "" {
		return nil
	}
	took, err := database.DumpMemoryDBToDisk(b.db, b.cfg.Path)
	if err != nil {
		b.log.Error("Error dumping to disk", "path", b.cfg.Path, "error", err)
		return err
	}
	b.log.Debug("Dumped to disk", "path", b.cfg.Path, "duration", took)
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.dump()
		}
	}
}
