package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gazewatch/gazewatch/internal/config"
	"github.com/gazewatch/gazewatch/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSqliteDB_InMemoryIsPrivate(t *testing.T) {
	m := NewManager(zerolog.Nop())

	a, err := m.GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, m.Setup(a))
	require.NoError(t, a.Create(&model.Session{ID: "a", StartTime: time.Now()}).Error)

	b, err := m.GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, m.Setup(b))

	var count int64
	require.NoError(t, b.Model(&model.Session{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	m := NewManager(zerolog.Nop())
	db, err := m.GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, m.Setup(db))
	require.NoError(t, db.Create(&model.Session{ID: "dumped", StartTime: time.Now()}).Error)

	path := filepath.Join(t.TempDir(), "session.db")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))

	_, err = DumpMemoryDBToDisk(db, path)
	require.NoError(t, err)

	disk, err := m.GetSqliteDB(path)
	require.NoError(t, err)
	var s model.Session
	require.NoError(t, disk.First(&s, "id = ?", "dumped").Error)
	assert.Equal(t, "dumped", s.ID)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	_, err := DumpMemoryDBToDisk(nil, "")
	assert.Error(t, err)
}

func TestGetPostgresDB_Unreachable(t *testing.T) {
	m := NewManager(zerolog.Nop())
	_, err := m.GetPostgresDB(config.PostgresConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "postgres",
		Password: "postgres",
		Database: "gazewatch",
		SSLMode:  "disable",
	})
	assert.Error(t, err)
}
