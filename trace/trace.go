// Package trace holds observed call shapes and their storable form.
//
// A CallTrace is what a capture session records for one call: the callable,
// the type of each argument, and optionally the return and yield types.
// A CallTraceRow is the same shape with every type encoded as descriptor
// JSON, ready for a Store.
package trace

import (
	"go.uber.org/zap"

	"github.com/teranos/typetrace/descriptor"
	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/logger"
	"github.com/teranos/typetrace/typesys"
)

// AbsentMarker is the stored text some writers use for an absent type.
// Readers treat it like SQL NULL.
const AbsentMarker = "null"

// CallTrace is one observed call shape. A nil ReturnType or YieldType means
// the call was not observed to return or yield; typesys.NoneType is an
// observed None.
type CallTrace struct {
	Func       *typesys.Func
	ArgTypes   map[string]*typesys.Type
	ReturnType *typesys.Type
	YieldType  *typesys.Type
}

// CallTraceRow is the encoded form of a CallTrace. Treat it as immutable.
type CallTraceRow struct {
	Module   string
	Qualname string
	ArgTypes string
	// nil means absent
	ReturnType *string
	YieldType  *string
}

// FuncResolver finds callables by module and qualname.
// *typesys.Registry implements it.
type FuncResolver interface {
	LookupFunc(module, qualname string) (*typesys.Func, error)
}

// FromTrace encodes t.
func FromTrace(codec *descriptor.Codec, t CallTrace) (CallTraceRow, error) {
	if t.Func == nil {
		return CallTraceRow{}, errors.Wrap(errors.ErrSerialization, "call trace has no callable")
	}
	args, err := codec.EncodeNamedMap(t.ArgTypes)
	if err != nil {
		return CallTraceRow{}, errors.Wrapf(err, "arguments of %s.%s", t.Func.Module, t.Func.Qualname)
	}
	ret, err := maybeEncode(codec, t.ReturnType)
	if err != nil {
		return CallTraceRow{}, errors.Wrapf(err, "return type of %s.%s", t.Func.Module, t.Func.Qualname)
	}
	yield, err := maybeEncode(codec, t.YieldType)
	if err != nil {
		return CallTraceRow{}, errors.Wrapf(err, "yield type of %s.%s", t.Func.Module, t.Func.Qualname)
	}
	return CallTraceRow{
		Module:     t.Func.Module,
		Qualname:   t.Func.Qualname,
		ArgTypes:   args,
		ReturnType: ret,
		YieldType:  yield,
	}, nil
}

func maybeEncode(codec *descriptor.Codec, t *typesys.Type) (*string, error) {
	if t == nil {
		return nil, nil
	}
	s, err := codec.TypeToJSON(t)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ToTrace decodes r. The callable must be known to funcs; otherwise the
// error wraps errors.ErrCallableNotFound.
func (r CallTraceRow) ToTrace(codec *descriptor.Codec, funcs FuncResolver) (CallTrace, error) {
	return r.decode(funcs, codec.DecodeNamedMap, codec.TypeFromJSON)
}

func (r CallTraceRow) decode(
	funcs FuncResolver,
	decodeArgs func(string) (map[string]*typesys.Type, error),
	decodeType func(string) (*typesys.Type, error),
) (CallTrace, error) {
	fn, err := funcs.LookupFunc(r.Module, r.Qualname)
	if err != nil {
		return CallTrace{}, err
	}
	args, err := decodeArgs(r.ArgTypes)
	if err != nil {
		return CallTrace{}, errors.Wrapf(err, "arguments of %s.%s", r.Module, r.Qualname)
	}
	ret, err := maybeDecode(decodeType, r.ReturnType)
	if err != nil {
		return CallTrace{}, errors.Wrapf(err, "return type of %s.%s", r.Module, r.Qualname)
	}
	yield, err := maybeDecode(decodeType, r.YieldType)
	if err != nil {
		return CallTrace{}, errors.Wrapf(err, "yield type of %s.%s", r.Module, r.Qualname)
	}
	return CallTrace{Func: fn, ArgTypes: args, ReturnType: ret, YieldType: yield}, nil
}

func maybeDecode(decodeType func(string) (*typesys.Type, error), s *string) (*typesys.Type, error) {
	if IsAbsent(s) {
		return nil, nil
	}
	return decodeType(*s)
}

// IsAbsent reports whether a stored type column means "no type".
func IsAbsent(s *string) bool {
	return s == nil || *s == AbsentMarker
}

// SerializeTraces encodes traces in order. A trace that fails to encode is
// logged and skipped, so one bad trace never loses the batch; the number
// skipped is returned.
func SerializeTraces(codec *descriptor.Codec, traces []CallTrace, log *zap.SugaredLogger) ([]CallTraceRow, int) {
	log = logger.OrNop(log)
	rows := make([]CallTraceRow, 0, len(traces))
	failed := 0
	for _, t := range traces {
		row, err := FromTrace(codec, t)
		if err != nil {
			failed++
			module, qualname := "", ""
			if t.Func != nil {
				module, qualname = t.Func.Module, t.Func.Qualname
			}
			log.Errorw("Failed to serialize trace",
				logger.FieldModule, module,
				logger.FieldQualname, qualname,
				logger.FieldError, err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, failed
}
