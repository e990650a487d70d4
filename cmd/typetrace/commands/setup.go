// Package commands implements the typetrace CLI subcommands.
package commands

import (
	"database/sql"

	"github.com/teranos/typetrace/am"
	"github.com/teranos/typetrace/db"
	"github.com/teranos/typetrace/descriptor"
	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/logger"
	"github.com/teranos/typetrace/trace"
	"github.com/teranos/typetrace/trace/storage"
	"github.com/teranos/typetrace/typesys"
)

// cfg is the configuration loaded by Setup.
var cfg *am.Config

// Setup loads configuration and initializes the global logger. Flag values
// raise, never lower, what the config file asks for.
func Setup(configPath string, verbosity int, jsonLogs bool) error {
	var err error
	if configPath != "" {
		cfg, err = am.LoadFromFile(configPath)
	} else {
		cfg, err = am.Load()
	}
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	verbosity = max(verbosity, cfg.Log.Verbosity)
	if err := logger.Initialize(jsonLogs || cfg.Log.JSON, verbosity); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	return nil
}

// openDatabase validates the configuration, then opens and migrates the
// configured database.
func openDatabase() (*sql.DB, db.Dialect, error) {
	if err := cfg.Validate(); err != nil {
		return nil, "", errors.Wrap(err, "invalid configuration")
	}
	dialect, err := db.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, "", err
	}

	conn, err := db.OpenWithMigrations(dialect, cfg.GetDatabaseTarget(), logger.ComponentLogger("db"))
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to open %s database", dialect)
	}
	return conn, dialect, nil
}

// openStore opens the trace store. The returned close function releases
// the connection.
func openStore() (*storage.SQLStore, func(), error) {
	conn, dialect, err := openDatabase()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewSQLStore(conn, dialect, cfg.Database.Table, cfg.Database.BatchSize, logger.ComponentLogger("storage"))
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return store, func() { conn.Close() }, nil
}

// loadUniverse builds the registry descriptors are resolved against: the
// builtin modules plus every configured manifest.
func loadUniverse() (*typesys.Registry, error) {
	reg := typesys.NewRegistry(typesys.Builtins())
	for _, path := range cfg.Universe.Manifests {
		if err := typesys.LoadManifestFile(path, reg); err != nil {
			return nil, errors.Wrapf(err, "failed to load manifest %s", path)
		}
		logger.Debugw("Loaded manifest", logger.FieldPath, path)
	}
	return reg, nil
}

// newDecoder creates a decoder over the configured universe. Unless strict
// is set, callables of undeclared modules decode with no declared
// parameters.
func newDecoder(strict bool) (*trace.Decoder, error) {
	reg, err := loadUniverse()
	if err != nil {
		return nil, err
	}
	var funcs trace.FuncResolver = reg
	if !strict {
		funcs = trace.NewLenientResolver(reg)
	}
	return trace.NewDecoder(descriptor.NewCodec(reg), funcs, cfg.Trace.DecodeCacheSize, logger.ComponentLogger("decoder"))
}
