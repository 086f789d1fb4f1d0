package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gazewatch/gazewatch/internal/config"
	"github.com/gazewatch/gazewatch/internal/database"
	"github.com/gazewatch/gazewatch/internal/dispatcher"
	"github.com/gazewatch/gazewatch/internal/influx"
	"github.com/gazewatch/gazewatch/internal/storage"
	influxstorage "github.com/gazewatch/gazewatch/internal/storage/influx"
	"github.com/gazewatch/gazewatch/internal/storage/logsink"
	"github.com/gazewatch/gazewatch/internal/storage/memory"
	pgstorage "github.com/gazewatch/gazewatch/internal/storage/postgres"
	sqlitestorage "github.com/gazewatch/gazewatch/internal/storage/sqlite"
	wsstorage "github.com/gazewatch/gazewatch/internal/storage/websocket"

	"github.com/rs/zerolog"
)

// storageDeps carries what the backends need besides their own config.
type storageDeps struct {
	Logger    *slog.Logger
	ZeroLog   zerolog.Logger
	Version   string
	ServerURL string
	APIKey    string
}

// createStorageBackends builds one backend per configured storage type.
func createStorageBackends(storageCfg config.StorageConfig, deps storageDeps) (storage.Multi, error) {
	var backends storage.Multi
	for _, t := range storageCfg.Types() {
		b, err := createStorageBackend(t, storageCfg, deps)
		if err != nil {
			return nil, err
		}
		if b != nil {
			backends = append(backends, b)
		}
	}
	return backends, nil
}

func createStorageBackend(kind string, storageCfg config.StorageConfig, deps storageDeps) (storage.Backend, error) {
	logger := deps.Logger.With("backend", kind)

	switch kind {
	case "memory":
		return memory.New(storageCfg.Memory, deps.Version), nil

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, database.NewManager(deps.ZeroLog), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return backend, nil

	case "postgres":
		return pgstorage.New(storageCfg.Postgres, database.NewManager(deps.ZeroLog), logger), nil

	case "influx":
		mgr := influx.NewManager(storageCfg.Influx, deps.ZeroLog.With().Str("component", "influx").Logger())
		return influxstorage.New(mgr), nil

	case "websocket":
		wsCfg := storageCfg.WebSocket
		if wsCfg.URL == "" {
			wsCfg.URL = httpToWS(deps.ServerURL) + "/api/stream"
		}
		if wsCfg.Secret == "" {
			wsCfg.Secret = deps.APIKey
		}
		return wsstorage.New(wsCfg, logger), nil

	case "log":
		return logsink.New(deps.Logger), nil

	case "none":
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: unknown storage type %q", config.ErrInvalid, kind)
	}
}

// initStorage initializes every backend and subscribes each on its own
// buffered queue. Backends that fail to initialize are closed and skipped.
func initStorage(d *dispatcher.Dispatcher, backends storage.Multi, bufferSize int, logger *slog.Logger) storage.Multi {
	var ready storage.Multi
	for _, b := range backends {
		name := storage.NameOf(b)
		if err := b.Init(); err != nil {
			logger.Error("Failed to initialize storage backend", "backend", name, "error", err)
			if cerr := b.Close(); cerr != nil {
				logger.Debug("Failed to close storage backend", "backend", name, "error", cerr)
			}
			continue
		}
		storage.Subscribe(d, b, dispatcher.Buffered(bufferSize))
		logger.Info("Storage backend initialized", "backend", name)
		ready = append(ready, b)
	}
	return ready
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
