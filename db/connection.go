package db

import (
	"database/sql"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/logger"
)

// SQLiteBusyTimeoutMS is how long SQLite waits on a locked database.
const SQLiteBusyTimeoutMS = 5000

// SQLiteDSN returns the go-sqlite3 DSN for path. LIKE is made case
// sensitive, matching PostgreSQL, so module and qualname prefixes filter
// the same on both dialects. The option is a DSN parameter rather than a
// PRAGMA because it is per connection and database/sql pools connections.
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_case_sensitive_like=true"
}

// Open opens a SQLite database at the specified path with optimized settings.
// If logger is provided, logs database operations; otherwise operates silently.
func Open(path string, log *zap.SugaredLogger) (*sql.DB, error) {
	log = logger.OrNop(log)
	log.Debugw("Opening database", logger.FieldPath, path, logger.FieldDialect, SQLite)

	db, err := sql.Open(SQLite.DriverName(), SQLiteDSN(path))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Enable WAL mode for concurrent reads during writes
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}

	if _, err := db.Exec("PRAGMA busy_timeout = " + strconv.Itoa(SQLiteBusyTimeoutMS)); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to set busy timeout")
	}

	log.Infow("Database opened successfully",
		logger.FieldPath, path,
		"wal_mode", true,
		"foreign_keys", true,
		"case_sensitive_like", true,
	)
	return db, nil
}

// OpenPostgres opens a PostgreSQL database through the pgx stdlib driver
// and checks that it is reachable.
func OpenPostgres(dsn string, log *zap.SugaredLogger) (*sql.DB, error) {
	log = logger.OrNop(log)
	log.Debugw("Opening database", logger.FieldDialect, Postgres)

	db, err := sql.Open(Postgres.DriverName(), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.WithHint(
			errors.Wrap(err, "failed to reach database"),
			"check database.dsn or TYPETRACE_DATABASE_DSN")
	}

	log.Infow("Database opened successfully", logger.FieldDialect, Postgres)
	return db, nil
}

// Connect opens target with the driver for d: a file path for SQLite, a
// DSN for PostgreSQL.
func Connect(d Dialect, target string, log *zap.SugaredLogger) (*sql.DB, error) {
	switch d {
	case SQLite:
		return Open(target, log)
	case Postgres:
		return OpenPostgres(target, log)
	}
	return nil, errors.Wrapf(errors.ErrInvalidRequest, "unknown dialect %q", d)
}

// OpenWithMigrations connects and brings the schema up to date.
func OpenWithMigrations(d Dialect, target string, log *zap.SugaredLogger) (*sql.DB, error) {
	db, err := Connect(d, target, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := Migrate(db, d, log); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}
	return db, nil
}
