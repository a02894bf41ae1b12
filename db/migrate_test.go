package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/aisguard/logger"
)

func TestOpenWithMigrations(t *testing.T) {
	db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"schema_migrations", "runs", "run_counts", "run_stages", "run_chunks"} {
		var n int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}

func TestMigrate(t *testing.T) {
	t.Run("records every version", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, Migrate(db, nil))

		var versions []string
		rows, err := db.Query("SELECT version FROM schema_migrations ORDER BY version")
		require.NoError(t, err)
		defer rows.Close()
		for rows.Next() {
			var v string
			require.NoError(t, rows.Scan(&v))
			versions = append(versions, v)
		}
		assert.Equal(t, []string{"000", "001", "002"}, versions)
	})

	t.Run("is idempotent", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, Migrate(db, nil))
		require.NoError(t, Migrate(db, nil), "running migrations multiple times should be safe")
	})

	t.Run("fails on a closed database", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		db.Close()

		assert.Error(t, Migrate(db, nil))
	})

	t.Run("conflicting schema_migrations is reported", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")
		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		_, err = db.Exec("CREATE TABLE schema_migrations (bad_schema TEXT)")
		require.NoError(t, err)
		db.Close()

		db, err = OpenWithMigrations(dbPath, nil)
		require.Error(t, err)
		assert.Nil(t, db)
		assert.Contains(t, err.Error(), "failed to migrate")
	})
}

func TestLoadLedgerMigrations(t *testing.T) {
	ms, err := loadLedgerMigrations()
	require.NoError(t, err)

	var versions, names []string
	for _, m := range ms {
		versions = append(versions, m.Version)
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"000", "001", "002"}, versions)
	assert.Equal(t, []string{"create_schema_migrations", "create_runs", "create_run_chunks"}, names)
}

func TestParseMigrationFile(t *testing.T) {
	m, err := parseMigrationFile("001_create_runs.sql")
	require.NoError(t, err)
	assert.Equal(t, ledgerMigration{Version: "001", Name: "create_runs", File: "001_create_runs.sql"}, m)

	for _, bad := range []string{"README.md", "001.sql", "_runs.sql", "001_.sql"} {
		_, err := parseMigrationFile(bad)
		assert.Error(t, err, bad)
	}
}

func TestMigrateLogsLedgerMigrations(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, Migrate(db, zap.New(core).Sugar()))

	applying := logs.FilterMessage("Applying ledger migration").All()
	require.Len(t, applying, 3)
	fields := applying[1].ContextMap()
	assert.Equal(t, "create_runs", fields[logger.FieldMigration])
	assert.Equal(t, "001", fields[logger.FieldSchemaVersion])
	assert.Equal(t, "001_create_runs.sql", fields[logger.FieldFile])

	done := logs.FilterMessage("Run ledger schema up to date").All()
	require.Len(t, done, 1)
	assert.Equal(t, "002", done[0].ContextMap()[logger.FieldSchemaVersion])
	assert.EqualValues(t, 3, done[0].ContextMap()[logger.FieldCount])

	// Nothing pending on a second run
	logs.TakeAll()
	require.NoError(t, Migrate(db, zap.New(core).Sugar()))
	assert.Zero(t, logs.Len())
}

func TestAppliedVersions(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	applied, bootstrapped, err := appliedVersions(db)
	require.NoError(t, err)
	assert.False(t, bootstrapped)
	assert.Empty(t, applied)

	require.NoError(t, Migrate(db, nil))
	applied, bootstrapped, err = appliedVersions(db)
	require.NoError(t, err)
	assert.True(t, bootstrapped)
	assert.Equal(t, map[string]bool{"000": true, "001": true, "002": true}, applied)
}
