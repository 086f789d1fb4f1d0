package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/gazewatch/gazewatch/internal/config"
	"github.com/gazewatch/gazewatch/internal/dispatcher"
	"github.com/gazewatch/gazewatch/internal/logging"
	"github.com/gazewatch/gazewatch/internal/storage"
	"github.com/gazewatch/gazewatch/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeps() storageDeps {
	return storageDeps{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		ZeroLog:   zerolog.Nop(),
		Version:   "test",
		ServerURL: "http://localhost:5000",
	}
}

func names(m storage.Multi) []string {
	var out []string
	for _, b := range m {
		out = append(out, storage.NameOf(b))
	}
	return out
}

func TestCreateStorageBackends(t *testing.T) {
	tests := []struct {
		typ  string
		want []string
	}{
		{"memory", []string{"memory"}},
		{"memory, log", []string{"memory", "log"}},
		{"none", nil},
		{"", nil},
		{"SQLite", []string{"sqlite"}},
		{"postgres,influx,websocket", []string{"postgres", "influx", "websocket"}},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			cfg := config.StorageConfig{Type: tt.typ}
			cfg.Memory.OutputDir = t.TempDir()

			backends, err := createStorageBackends(cfg, testDeps())
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(backends))
			assert.NoError(t, backends.Close())
		})
	}
}

func TestCreateStorageBackends_Unknown(t *testing.T) {
	_, err := createStorageBackends(config.StorageConfig{Type: "memory,tape"}, testDeps())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestInitStorage_SkipsFailedBackends(t *testing.T) {
	d, err := dispatcher.New(logging.NewDispatcherLogger(nil))
	require.NoError(t, err)

	cfg := config.StorageConfig{Type: "memory,websocket"}
	cfg.Memory.OutputDir = t.TempDir()
	// nothing listens on port 1
	cfg.WebSocket.URL = "ws://127.0.0.1:1/api/stream"

	backends, err := createStorageBackends(cfg, testDeps())
	require.NoError(t, err)

	ready := initStorage(d, backends, 16, testDeps().Logger)
	assert.Equal(t, []string{"memory"}, names(ready))
	assert.True(t, d.HasSubscriber("memory"))
	assert.False(t, d.HasSubscriber("websocket"))

	p := storage.NewPublisher(d)
	require.NoError(t, p.StartSession(&core.Session{ID: "s1"}))
	d.Close()
	require.NoError(t, ready.Close())
}

func TestHttpToWS(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://localhost:5000", "ws://localhost:5000"},
		{"https://example.com/", "wss://example.com"},
		{"ws://already", "ws://already"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, httpToWS(tt.in), tt.in)
	}
}
