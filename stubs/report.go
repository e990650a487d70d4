package stubs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/logger"
	"github.com/teranos/typetrace/trace"
)

// Report is a rendered stub plus decode bookkeeping.
type Report struct {
	Module  string
	Text    string
	Decoded int
	Failed  int
}

// Reporter renders stubs from a trace store.
type Reporter struct {
	store   trace.Store
	decoder *trace.Decoder
	limit   int
	logger  *zap.SugaredLogger
}

// NewReporter creates a reporter. limit <= 0 uses the store's default
// query limit.
func NewReporter(store trace.Store, decoder *trace.Decoder, limit int, log *zap.SugaredLogger) *Reporter {
	return &Reporter{
		store:   store,
		decoder: decoder,
		limit:   limit,
		logger:  logger.OrNop(log),
	}
}

// Stub loads the traces recorded for module (optionally narrowed to a
// qualname prefix), deduplicates generated classes and renders the stub.
// Submodules matched by the prefix query are not rendered into module's
// stub. Returns a not-found error when no trace for module decodes.
func (r *Reporter) Stub(ctx context.Context, module, qualnamePrefix string) (*Report, error) {
	if module == "" {
		return nil, errors.NewInvalidRequestError("module is required")
	}
	start := time.Now()

	rows, err := r.store.Filter(ctx, trace.Filter{Module: module, QualnamePrefix: qualnamePrefix, Limit: r.limit})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load traces for %s", module)
	}

	decoded := r.decoder.DecodeRows(rows)
	traces := make([]trace.CallTrace, 0, len(decoded.Traces))
	for _, t := range decoded.Traces {
		if t.Func.Module == module {
			traces = append(traces, t)
		}
	}
	if len(traces) == 0 {
		err := errors.NewNotFoundError("no call traces for module %s", module)
		return nil, errors.WithHintf(err, "run the traced code first, or check `typetrace list-modules`")
	}

	stubs, err := BuildModuleStubs(traces)
	if err != nil {
		return nil, err
	}
	stub := stubs[module]
	if err := DedupeModule(stub); err != nil {
		return nil, errors.Wrapf(err, "failed to deduplicate classes for %s", module)
	}

	report := &Report{
		Module:  module,
		Text:    stub.Render(),
		Decoded: len(traces),
		Failed:  decoded.Failed,
	}
	r.logger.Infow("Rendered stub",
		logger.FieldModule, module,
		logger.FieldCount, len(stub.Functions),
		logger.FieldFailedCount, decoded.Failed,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return report, nil
}
