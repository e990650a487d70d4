package trace

import "context"

// DefaultQueryLimit caps the rows a Filter returns when no limit is set.
const DefaultQueryLimit = 2000

// Filter selects stored traces.
type Filter struct {
	// Module matches as a prefix.
	Module string
	// QualnamePrefix is optional.
	QualnamePrefix string
	// Limit <= 0 means DefaultQueryLimit.
	Limit int
}

// Store persists call traces.
type Store interface {
	// Add encodes and stores traces. Traces that fail to encode are logged
	// and skipped; the rest are stored in one transaction.
	Add(ctx context.Context, traces []CallTrace) error
	// Filter returns distinct stored rows matching f.
	Filter(ctx context.Context, f Filter) ([]CallTraceRow, error)
	// ListModules returns the distinct modules with stored traces, sorted.
	ListModules(ctx context.Context) ([]string, error)
}
