// Package am loads typetrace configuration.
//
// Values are merged from built-in defaults, TOML files, a .env file and
// TYPETRACE_* environment variables, lowest precedence first.
package am

// Config represents the typetrace configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Trace    TraceConfig    `mapstructure:"trace" toml:"trace"`
	Universe UniverseConfig `mapstructure:"universe" toml:"universe"`
	Log      LogConfig      `mapstructure:"log" toml:"log"`
}

// DatabaseConfig configures the trace store
type DatabaseConfig struct {
	Driver    string `mapstructure:"driver" toml:"driver"`         // sqlite or postgres (default: sqlite)
	Path      string `mapstructure:"path" toml:"path"`             // SQLite file (default: typetrace.sqlite3)
	DSN       string `mapstructure:"dsn" toml:"dsn"`               // Postgres connection string
	Table     string `mapstructure:"table" toml:"table"`           // Trace table (default: call_traces)
	BatchSize int    `mapstructure:"batch_size" toml:"batch_size"` // Rows per INSERT statement; 0 = default 100
}

// TraceConfig configures reading traces back
type TraceConfig struct {
	QueryLimit      int `mapstructure:"query_limit" toml:"query_limit"`             // Max rows per filter query (default: 2000)
	DecodeCacheSize int `mapstructure:"decode_cache_size" toml:"decode_cache_size"` // Decoded descriptor strings remembered (default: 4096)
}

// UniverseConfig lists the YAML manifests that declare the user-defined
// modules descriptors are resolved against.
type UniverseConfig struct {
	Manifests []string `mapstructure:"manifests" toml:"manifests"`
}

// LogConfig configures the global logger
type LogConfig struct {
	JSON      bool `mapstructure:"json" toml:"json"`
	Verbosity int  `mapstructure:"verbosity" toml:"verbosity"` // 0-3, same scale as -v
}

// Config file names and locations
const (
	ConfigFileName   = "typetrace.toml"
	SystemConfigPath = "/etc/typetrace/typetrace.toml"
	UserConfigDir    = ".typetrace"
	EnvPrefix        = "TYPETRACE"
)

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
