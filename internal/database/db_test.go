package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCacheDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "client_data.db"),
		Profile: ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate_CreatesCacheTables(t *testing.T) {
	db := newCacheDB(t)
	require.NoError(t, db.Migrate())
	// Second run is a no-op
	require.NoError(t, db.Migrate())

	for _, table := range []string{"cache_entries", "screening_reports"} {
		var name string
		err := db.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "x.db"), Name: "unknown"})
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Migrate())
	assert.Equal(t, ProfileStandard, db.Profile())
}

func TestHealthCheckAndStats(t *testing.T) {
	db := newCacheDB(t)
	require.NoError(t, db.Migrate())

	require.NoError(t, db.HealthCheck(context.Background()))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageSize, int64(0))
	assert.Greater(t, stats.PageCount, int64(0))
}

func TestBuildConnectionString(t *testing.T) {
	cache := buildConnectionString("/tmp/a.db", ProfileCache)
	assert.Contains(t, cache, "journal_mode(WAL)")
	assert.Contains(t, cache, "synchronous(OFF)")

	standard := buildConnectionString("/tmp/a.db", ProfileStandard)
	assert.Contains(t, standard, "synchronous(NORMAL)")
}

func TestMoveAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client_data.db")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))
	require.NoError(t, os.WriteFile(path+"-wal", []byte("wal"), 0644))

	target, err := MoveAside(path, time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, path+".corrupt-20261016T120000", target)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(target + "-wal")
	assert.NoError(t, err)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newCacheDB(t)
	_, err := db.Conn().Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO t (v) VALUES (1)"); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM t").Scan(&count))
	assert.Equal(t, 0, count)
}
