package storage

import (
	"regexp"
	"strings"
	"time"

	"github.com/teranos/typetrace/db"
	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/trace"
)

// DefaultTable is the trace table created by the db migrations.
const DefaultTable = "call_traces"

// rowColumns are the columns a stored row is read back from, in scan order.
const rowColumns = "module, qualname, arg_types, return_type, yield_type"

const insertColumns = "created_at, " + rowColumns

// Table names cannot be bound as parameters, so they are whitelisted.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Query is a parameterized SQL statement.
type Query struct {
	SQL  string
	Args []any
}

// queryBuilder accumulates SQL WHERE clauses and parameters for trace queries
type queryBuilder struct {
	dialect      db.Dialect
	whereClauses []string
	args         []any
}

// bind appends arg and returns its placeholder
func (qb *queryBuilder) bind(arg any) string {
	qb.args = append(qb.args, arg)
	return qb.dialect.Placeholder(len(qb.args))
}

// addPrefixFilter matches column values starting with prefix
func (qb *queryBuilder) addPrefixFilter(column, prefix string) {
	ph := qb.bind(escapeLikePattern(prefix) + "%")
	qb.whereClauses = append(qb.whereClauses, column+" LIKE "+ph+" ESCAPE '\\'")
}

// build returns the WHERE clauses joined with AND
func (qb *queryBuilder) build() string {
	return strings.Join(qb.whereClauses, " AND ")
}

// escapeLikePattern escapes special characters in LIKE patterns for SQL ESCAPE clause
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

func validateTable(table string) error {
	if !tableNamePattern.MatchString(table) {
		return errors.WithHint(
			errors.Wrapf(errors.ErrInvalidRequest, "invalid table name %q", table),
			"table names may contain letters, digits and underscores, optionally schema-qualified")
	}
	return nil
}

// MakeQuery builds the SELECT for f: distinct rows whose module starts with
// f.Module and, when set, whose qualname starts with f.QualnamePrefix, at
// most f.Limit of them.
func MakeQuery(dialect db.Dialect, table string, f trace.Filter) (Query, error) {
	if err := validateTable(table); err != nil {
		return Query{}, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = trace.DefaultQueryLimit
	}

	qb := &queryBuilder{dialect: dialect}
	qb.addPrefixFilter("module", f.Module)
	if f.QualnamePrefix != "" {
		qb.addPrefixFilter("qualname", f.QualnamePrefix)
	}
	where := qb.build()
	limitPH := qb.bind(limit)

	var sb strings.Builder
	sb.WriteString("SELECT " + rowColumns + " FROM " + table)
	sb.WriteString(" WHERE " + where)
	sb.WriteString(" GROUP BY " + rowColumns)
	sb.WriteString(" ORDER BY module, qualname")
	sb.WriteString(" LIMIT " + limitPH)
	return Query{SQL: sb.String(), Args: qb.args}, nil
}

// MakeInsert builds one multi-row INSERT for rows, each stamped with now.
func MakeInsert(dialect db.Dialect, table string, rows []trace.CallTraceRow, now time.Time) (Query, error) {
	if err := validateTable(table); err != nil {
		return Query{}, err
	}
	if len(rows) == 0 {
		return Query{}, errors.NewInvalidRequestError("insert needs at least one row")
	}

	qb := &queryBuilder{dialect: dialect, args: make([]any, 0, len(rows)*ParamsPerRow)}
	values := make([]string, 0, len(rows))
	for _, r := range rows {
		phs := []string{
			qb.bind(now),
			qb.bind(r.Module),
			qb.bind(r.Qualname),
			qb.bind(r.ArgTypes),
			qb.bind(nullable(r.ReturnType)),
			qb.bind(nullable(r.YieldType)),
		}
		values = append(values, "("+strings.Join(phs, ", ")+")")
	}

	sqlText := "INSERT INTO " + table + " (" + insertColumns + ") VALUES " + strings.Join(values, ", ")
	return Query{SQL: sqlText, Args: qb.args}, nil
}

// nullable maps an absent type column to SQL NULL
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
