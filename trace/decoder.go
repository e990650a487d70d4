package trace

import (
	"maps"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/teranos/typetrace/descriptor"
	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/logger"
	"github.com/teranos/typetrace/typesys"
)

// DefaultDecodeCacheSize is the number of decoded descriptor strings a
// Decoder remembers.
const DefaultDecodeCacheSize = 4096

// DecodeResult is the outcome of decoding a batch of rows.
type DecodeResult struct {
	Traces []CallTrace
	Failed int
}

// Decoder turns stored rows back into call traces. Rows of one module
// repeat the same descriptor strings, so decoded types are memoized per
// Decoder. A Decoder is safe for concurrent use; caches are never shared
// between decoders.
type Decoder struct {
	codec  *descriptor.Codec
	funcs  FuncResolver
	types  *lru.Cache[string, *typesys.Type]
	args   *lru.Cache[string, map[string]*typesys.Type]
	logger *zap.SugaredLogger
}

// NewDecoder creates a decoder. cacheSize <= 0 selects
// DefaultDecodeCacheSize.
func NewDecoder(codec *descriptor.Codec, funcs FuncResolver, cacheSize int, log *zap.SugaredLogger) (*Decoder, error) {
	if codec == nil {
		codec = descriptor.NewCodec(nil)
	}
	if funcs == nil {
		funcs = typesys.Builtins()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultDecodeCacheSize
	}
	types, err := lru.New[string, *typesys.Type](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create type cache")
	}
	args, err := lru.New[string, map[string]*typesys.Type](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create argument cache")
	}
	return &Decoder{
		codec:  codec,
		funcs:  funcs,
		types:  types,
		args:   args,
		logger: logger.OrNop(log),
	}, nil
}

// DecodeRows decodes rows in order. Rows that fail to decode are counted,
// never returned as an error. Stale rows (unknown names, callables) are
// logged at debug level, anything else at error level; one warning
// summarizes the failures.
func (d *Decoder) DecodeRows(rows []CallTraceRow) DecodeResult {
	result := DecodeResult{Traces: make([]CallTrace, 0, len(rows))}
	for _, row := range rows {
		t, err := row.decode(d.funcs, d.decodeArgs, d.decodeType)
		if err != nil {
			result.Failed++
			logf := d.logger.Debugw
			if !errors.IsDecodeError(err) {
				// not stale data; a bug or a corrupt row
				logf = d.logger.Errorw
			}
			logf("Failed to decode trace",
				logger.FieldModule, row.Module,
				logger.FieldQualname, row.Qualname,
				logger.FieldError, err)
			continue
		}
		result.Traces = append(result.Traces, t)
	}
	if result.Failed > 0 {
		d.logger.Warnw("Some call traces could not be decoded",
			logger.FieldFailedCount, result.Failed,
			logger.FieldTotalCount, len(rows))
	}
	return result
}

func (d *Decoder) decodeType(s string) (*typesys.Type, error) {
	if t, ok := d.types.Get(s); ok {
		return t, nil
	}
	t, err := d.codec.TypeFromJSON(s)
	if err != nil {
		return nil, err
	}
	d.types.Add(s, t)
	return t, nil
}

// decodeArgs hands out a copy so callers may modify their trace.
func (d *Decoder) decodeArgs(s string) (map[string]*typesys.Type, error) {
	if m, ok := d.args.Get(s); ok {
		return maps.Clone(m), nil
	}
	m, err := d.codec.DecodeNamedMap(s)
	if err != nil {
		return nil, err
	}
	d.args.Add(s, m)
	return maps.Clone(m), nil
}
