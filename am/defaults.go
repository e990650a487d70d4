package am

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/teranos/typetrace/db"
	"github.com/teranos/typetrace/trace"
	"github.com/teranos/typetrace/trace/storage"
)

// Default values
const (
	DefaultDriver       = "sqlite"
	DefaultDatabasePath = "typetrace.sqlite3"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", DefaultDriver)
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", storage.DefaultTable)
	v.SetDefault("database.batch_size", storage.DefaultBatchSize)

	// Trace defaults
	v.SetDefault("trace.query_limit", trace.DefaultQueryLimit)
	v.SetDefault("trace.decode_cache_size", trace.DefaultDecodeCacheSize)

	// Universe defaults
	v.SetDefault("universe.manifests", []string{})

	// Log defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 0)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// Postgres DSN; DATABASE_URL is what most hosting platforms export
	v.BindEnv("database.dsn", EnvPrefix+"_DATABASE_DSN", "DATABASE_URL")

	// Database path
	v.BindEnv("database.path", EnvPrefix+"_DATABASE_PATH")
}

// GetDatabaseTarget returns the SQLite path or the Postgres DSN, whichever
// the configured driver uses.
// An unknown driver is reported by Validate; it falls through to the path.
func (c *Config) GetDatabaseTarget() string {
	if dialect, err := db.ParseDialect(c.Database.Driver); err == nil && dialect == db.Postgres {
		return c.Database.DSN
	}
	if c.Database.Path == "" {
		return DefaultDatabasePath
	}
	return c.Database.Path
}

// String returns a string representation of the config. The DSN is
// omitted since it usually carries credentials.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: {Driver: %s, Path: %s, Table: %s}, Trace: {QueryLimit: %d}}",
		c.Database.Driver, c.Database.Path, c.Database.Table, c.Trace.QueryLimit)
}
