package am

import (
	"github.com/teranos/typetrace/db"
	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/trace/storage"
)

// MaxVerbosity is the highest meaningful log.verbosity.
const MaxVerbosity = 3

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	dialect, err := db.ParseDialect(c.Database.Driver)
	if err != nil {
		return errors.Wrap(err, "database.driver")
	}

	switch dialect {
	case db.Postgres:
		if c.Database.DSN == "" {
			return errors.WithHint(
				errors.New("database.dsn cannot be empty when database.driver is postgres"),
				"set TYPETRACE_DATABASE_DSN or DATABASE_URL")
		}
	case db.SQLite:
		// Empty path falls back to DefaultDatabasePath
	}

	// Zero means default for the sizing knobs, negative is invalid
	if c.Database.BatchSize < 0 {
		return errors.Newf("database.batch_size must be >= 0, got %d", c.Database.BatchSize)
	}
	if limit := storage.MaxBatchSize(dialect); c.Database.BatchSize > limit {
		return errors.WithHintf(
			errors.Newf("database.batch_size must be <= %d for %s, got %d", limit, dialect, c.Database.BatchSize),
			"each row binds %d parameters and %s caps a statement's parameters", storage.ParamsPerRow, dialect)
	}
	if c.Trace.QueryLimit < 0 {
		return errors.Newf("trace.query_limit must be >= 0, got %d", c.Trace.QueryLimit)
	}
	if c.Trace.DecodeCacheSize < 0 {
		return errors.Newf("trace.decode_cache_size must be >= 0, got %d", c.Trace.DecodeCacheSize)
	}

	if c.Log.Verbosity < 0 || c.Log.Verbosity > MaxVerbosity {
		return errors.Newf("log.verbosity must be between 0 and %d, got %d", MaxVerbosity, c.Log.Verbosity)
	}

	for i, m := range c.Universe.Manifests {
		if m == "" {
			return errors.Newf("universe.manifests[%d] cannot be empty", i)
		}
	}

	return nil
}
