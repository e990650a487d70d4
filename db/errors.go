package db

import (
	"database/sql"
	"strings"

	"github.com/teranos/typetrace/errors"
)

// ErrDatabaseClosed marks errors from a connection that was already closed,
// e.g. a store used after the CLI released its database.
var ErrDatabaseClosed = errors.New("database is closed")

// closedMessages are the texts drivers use for a closed handle. database/sql
// and go-sqlite3 say "database is closed"; pgx says "conn closed".
var closedMessages = []string{
	"database is closed",
	"conn closed",
	"closed pool",
}

// IsDatabaseClosed reports whether err comes from a closed database,
// connection or transaction. Driver errors are matched by message because
// the drivers do not export them.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.IsAny(err, ErrDatabaseClosed, sql.ErrConnDone) {
		return true
	}
	msg := err.Error()
	for _, m := range closedMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
