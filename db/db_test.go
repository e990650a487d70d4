package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/typetrace/errors"
)

func TestOpen(t *testing.T) {
	t.Run("opens database successfully", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		var journalMode string
		require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
		assert.Equal(t, "wal", journalMode)

		var foreignKeys int
		require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
		assert.Equal(t, 1, foreignKeys)

		var busyTimeout int
		require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
		assert.Equal(t, SQLiteBusyTimeoutMS, busyTimeout)
	})

	t.Run("LIKE is case sensitive on every connection", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		ctx := context.Background()
		// two live connections force the pool to dial twice
		c1, err := db.Conn(ctx)
		require.NoError(t, err)
		defer c1.Close()
		c2, err := db.Conn(ctx)
		require.NoError(t, err)
		defer c2.Close()

		for _, c := range []*sql.Conn{c1, c2} {
			var upper, exact bool
			require.NoError(t, c.QueryRowContext(ctx, "SELECT 'PKG.a' LIKE 'pkg.%', 'pkg.a' LIKE 'pkg.%'").Scan(&upper, &exact))
			assert.False(t, upper)
			assert.True(t, exact)
		}
	})

	t.Run("returns error for invalid path", func(t *testing.T) {
		db, err := Open("/invalid/nonexistent/path/db.sqlite", nil)

		// If Open() succeeds (lazy connection on some platforms), Ping() will fail
		if err == nil && db != nil {
			err = db.Ping()
			db.Close()
		}
		assert.Error(t, err)
	})

	t.Run("creates database file if it doesn't exist", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "new.db")
		_, err := os.Stat(dbPath)
		assert.True(t, os.IsNotExist(err))

		db, err := Open(dbPath, zaptest.NewLogger(t).Sugar())
		require.NoError(t, err)
		defer db.Close()

		_, err = os.Stat(dbPath)
		assert.NoError(t, err)
	})
}

func TestConnectUnknownDialect(t *testing.T) {
	_, err := Connect(Dialect("oracle"), "x", nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{
		"sqlite":     SQLite,
		"sqlite3":    SQLite,
		" SQLite ":   SQLite,
		"postgres":   Postgres,
		"postgresql": Postgres,
		"pgx":        Postgres,
	} {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDialect("mysql")
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestDialectPlaceholders(t *testing.T) {
	assert.Equal(t, "?", SQLite.Placeholder(3))
	assert.Equal(t, "$3", Postgres.Placeholder(3))
	assert.Equal(t, "sqlite3", SQLite.DriverName())
	assert.Equal(t, "pgx", Postgres.DriverName())
}

func TestMigrate(t *testing.T) {
	t.Run("creates the trace table", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, Migrate(db, SQLite, nil))

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='call_traces'").Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		versions, err := AppliedVersions(db)
		require.NoError(t, err)
		assert.Equal(t, []string{"000", "001"}, versions)
	})

	t.Run("is idempotent", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		core, logs := observer.New(zapcore.DebugLevel)
		log := zap.New(core).Sugar()

		require.NoError(t, Migrate(db, SQLite, log))
		require.NoError(t, Migrate(db, SQLite, log), "running migrations multiple times should be safe")

		assert.Equal(t, 2, logs.FilterMessage("Applying migration").Len())
		assert.Equal(t, 2, logs.FilterMessage("Skipping migration (already applied)").Len())

		versions, err := AppliedVersions(db)
		require.NoError(t, err)
		assert.Len(t, versions, 2)
	})

	t.Run("fails on a closed database", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		db.Close()

		err = Migrate(db, SQLite, nil)
		require.Error(t, err)
		assert.True(t, IsDatabaseClosed(err))
	})
}

func TestMigratePostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM schema_migrations WHERE version = \$1\)`).
		WithArgs("000").
		WillReturnError(fmt.Errorf(`relation "schema_migrations" does not exist`))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations \(version\) VALUES \(\$1\)`).
		WithArgs("000").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM schema_migrations WHERE version = \$1\)`).
		WithArgs("001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS call_traces").WillReturnError(fmt.Errorf("permission denied"))
	mock.ExpectRollback()

	err = Migrate(db, Postgres, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute 001_create_call_traces.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "traces.db?_case_sensitive_like=true", SQLiteDSN("traces.db"))
	assert.Equal(t, "file:traces.db?mode=ro&_case_sensitive_like=true", SQLiteDSN("file:traces.db?mode=ro"))
}

func TestIsDatabaseClosed(t *testing.T) {
	assert.False(t, IsDatabaseClosed(nil))
	assert.True(t, IsDatabaseClosed(errors.Wrap(ErrDatabaseClosed, "store")))
	assert.True(t, IsDatabaseClosed(fmt.Errorf("sql: database is closed")))
	assert.True(t, IsDatabaseClosed(errors.Wrap(sql.ErrConnDone, "commit")))
	assert.True(t, IsDatabaseClosed(fmt.Errorf("query: conn closed")))
	assert.False(t, IsDatabaseClosed(fmt.Errorf("disk full")))
}
