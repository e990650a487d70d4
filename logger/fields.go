package logger

import (
	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across typetrace.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Components
	FieldComponent = "component"
	FieldOperation = "operation"

	// Call traces
	FieldModule   = "module"
	FieldQualname = "qualname"
	FieldFunc     = "func"
	FieldType     = "type"

	// Storage
	FieldTable     = "table"
	FieldDialect   = "dialect"
	FieldPath      = "path"
	FieldQuery     = "query"
	FieldBatchID   = "batch_id"
	FieldBatchSize = "batch_size"
	FieldLimit     = "limit"
	FieldVersion   = "version"

	// Errors
	FieldError = "error"

	// Counts
	FieldCount       = "count"
	FieldFailedCount = "failed_count"
	FieldTotalCount  = "total_count"
	FieldDurationMS  = "duration_ms"
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	store := storage.NewSQLStore(db, dialect, table, logger.ComponentLogger("storage"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
//
// Example:
//
//	batchLogger := logger.ChildLogger(s.logger, logger.FieldBatchID, id)
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}

// OrNop returns l, or a no-op logger when l is nil.
// Constructors accept nil loggers the way db.Open does.
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}
