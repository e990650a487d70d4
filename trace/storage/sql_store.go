// Package storage provides the SQL call trace store.
// It handles database persistence and query construction for SQLite and
// PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/typetrace/db"
	"github.com/teranos/typetrace/descriptor"
	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/logger"
	"github.com/teranos/typetrace/trace"
)

// DefaultBatchSize is the number of rows written per INSERT statement.
const DefaultBatchSize = 100

// ParamsPerRow is the number of bind parameters one inserted row uses.
const ParamsPerRow = 6

// Statement parameter caps: the PostgreSQL wire protocol counts them in a
// uint16, and go-sqlite3 builds SQLite with SQLITE_MAX_VARIABLE_NUMBER at
// its default.
const (
	maxPostgresParams = 65535
	maxSQLiteParams   = 32766
)

// MaxBatchSize is the largest batch one INSERT statement can carry on d.
func MaxBatchSize(d db.Dialect) int {
	if d == db.Postgres {
		return maxPostgresParams / ParamsPerRow
	}
	return maxSQLiteParams / ParamsPerRow
}

// Stats summarizes a trace table.
type Stats struct {
	Rows      int
	Modules   int
	Callables int
}

// SQLStore implements trace.Store on a database/sql connection.
type SQLStore struct {
	db        *sql.DB
	dialect   db.Dialect
	table     string
	batchSize int
	codec     *descriptor.Codec
	logger    *zap.SugaredLogger
}

var _ trace.Store = (*SQLStore)(nil)

// NewSQLStore creates a store over table. batchSize <= 0 selects
// DefaultBatchSize; a batchSize above MaxBatchSize is lowered to it.
func NewSQLStore(conn *sql.DB, dialect db.Dialect, table string, batchSize int, log *zap.SugaredLogger) (*SQLStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := validateTable(table); err != nil {
		return nil, err
	}
	log = logger.OrNop(log)
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if limit := MaxBatchSize(dialect); batchSize > limit {
		log.Warnw("Batch size exceeds the statement parameter limit, lowering it",
			logger.FieldDialect, dialect,
			logger.FieldBatchSize, batchSize,
			logger.FieldLimit, limit)
		batchSize = limit
	}
	return &SQLStore{
		db:        conn,
		dialect:   dialect,
		table:     table,
		batchSize: batchSize,
		codec:     descriptor.NewCodec(nil),
		logger:    log,
	}, nil
}

// Add encodes traces and stores them in one transaction, batchSize rows per
// statement. Traces that fail to encode are logged and skipped.
func (s *SQLStore) Add(ctx context.Context, traces []trace.CallTrace) error {
	start := time.Now()
	log := logger.ChildLogger(s.logger, logger.FieldBatchID, uuid.NewString())

	rows, failed := trace.SerializeTraces(s.codec, traces, log)
	if len(rows) == 0 {
		log.Debugw("No call traces to store",
			logger.FieldTotalCount, len(traces),
			logger.FieldFailedCount, failed)
		return nil
	}

	now := time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for lo := 0; lo < len(rows); lo += s.batchSize {
			hi := min(lo+s.batchSize, len(rows))
			q, err := MakeInsert(s.dialect, s.table, rows[lo:hi], now)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, q.SQL, q.Args...); err != nil {
				return storageError(err, "insert call traces")
			}
		}
		return nil
	})
	if err != nil {
		log.Errorw("Failed to store call traces",
			logger.FieldCount, len(rows),
			logger.FieldError, err)
		return err
	}

	log.Infow("Stored call traces",
		logger.FieldTable, s.table,
		logger.FieldCount, len(rows),
		logger.FieldFailedCount, failed,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return nil
}

// Filter returns distinct rows matching f. A NULL or 'null' type column is
// read as absent.
func (s *SQLStore) Filter(ctx context.Context, f trace.Filter) ([]trace.CallTraceRow, error) {
	q, err := MakeQuery(s.dialect, s.table, f)
	if err != nil {
		return nil, err
	}
	s.logger.Debugw("Filtering call traces",
		logger.FieldModule, f.Module,
		logger.FieldQualname, f.QualnamePrefix,
		logger.FieldLimit, q.Args[len(q.Args)-1])

	var out []trace.CallTraceRow
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, q.SQL, q.Args...)
		if err != nil {
			return storageError(err, "query call traces")
		}
		defer rows.Close()

		for rows.Next() {
			var r trace.CallTraceRow
			var ret, yield sql.NullString
			if err := rows.Scan(&r.Module, &r.Qualname, &r.ArgTypes, &ret, &yield); err != nil {
				return storageError(err, "scan call trace")
			}
			r.ReturnType = absentOrValue(ret)
			r.YieldType = absentOrValue(yield)
			out = append(out, r)
		}
		if err := rows.Err(); err != nil {
			return storageError(err, "iterate call traces")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListModules returns the distinct modules with stored traces, sorted.
func (s *SQLStore) ListModules(ctx context.Context) ([]string, error) {
	var modules []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT DISTINCT module FROM "+s.table+" ORDER BY module")
		if err != nil {
			return storageError(err, "list modules")
		}
		defer rows.Close()

		for rows.Next() {
			var m string
			if err := rows.Scan(&m); err != nil {
				return storageError(err, "scan module")
			}
			modules = append(modules, m)
		}
		if err := rows.Err(); err != nil {
			return storageError(err, "iterate modules")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return modules, nil
}

// Stats counts stored rows, modules and callables.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*), COUNT(DISTINCT module), COUNT(DISTINCT module || '.' || qualname) FROM "+s.table,
		).Scan(&st.Rows, &st.Modules, &st.Callables)
		return storageError(err, "count call traces")
	})
	return st, err
}

// withTx runs fn in a transaction, committing on success and rolling back
// on error or panic.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError(err, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warnw("Rollback failed", logger.FieldError, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageError(err, "commit transaction")
	}
	return nil
}

// storageError wraps a driver error so callers can match errors.ErrStorage
// and, for closed connections, db.ErrDatabaseClosed.
func storageError(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := errors.Mark(errors.Wrap(err, msg), errors.ErrStorage)
	if db.IsDatabaseClosed(err) {
		wrapped = errors.Mark(wrapped, db.ErrDatabaseClosed)
	}
	return wrapped
}

func absentOrValue(ns sql.NullString) *string {
	if !ns.Valid || ns.String == trace.AbsentMarker {
		return nil
	}
	s := ns.String
	return &s
}
