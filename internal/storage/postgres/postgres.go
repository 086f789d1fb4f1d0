// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with internal queues and a background DB writer goroutine.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/gazewatch/gazewatch/internal/config"
	"github.com/gazewatch/gazewatch/internal/database"
	gormstorage "github.com/gazewatch/gazewatch/internal/storage/gorm"

	"gorm.io/gorm"
)

// Backend connects to Postgres on Init and then behaves as the GORM backend.
type Backend struct {
	*gormstorage.Backend
	cfg    config.PostgresConfig
	dbm    *database.Manager
	logger *slog.Logger
}

// New creates a new Postgres storage backend. No connection is made until Init.
func New(cfg config.PostgresConfig, dbm *database.Manager, logger *slog.Logger) *Backend {
	return &Backend{cfg: cfg, dbm: dbm, logger: logger}
}

// NewWithDB creates a backend on an existing connection, e.g. one shared
// with other tooling.
func NewWithDB(db *gorm.DB, cfg config.PostgresConfig, logger *slog.Logger) *Backend {
	b := &Backend{cfg: cfg, logger: logger}
	b.Backend = b.gormBackend(db)
	return b
}

func (b *Backend) gormBackend(db *gorm.DB) *gormstorage.Backend {
	return gormstorage.New(gormstorage.Dependencies{
		DB:            db,
		Logger:        b.logger,
		FlushInterval: b.cfg.FlushInterval,
		Name:          "postgres",
	})
}

// Name is available before Init.
func (b *Backend) Name() string { return "postgres" }

// Init connects, migrates the schema and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.Backend == nil {
		db, err := b.dbm.GetPostgresDB(b.cfg)
		if err != nil {
			return err
		}
		b.Backend = b.gormBackend(db)
	}
	if err := b.Backend.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	return nil
}

// Close stops the writer and flushes. It is a no-op when Init never connected.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
