package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/typetrace/descriptor"
	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/hooks"
	"github.com/teranos/typetrace/typesys"
)

func testRegistry(t *testing.T) *typesys.Registry {
	t.Helper()
	reg := typesys.NewRegistry(typesys.Builtins())
	require.NoError(t, reg.DefineFunc(&typesys.Func{Module: "pkg.mod", Qualname: "f", Params: []string{"x", "y"}}))
	require.NoError(t, reg.DefineFunc(&typesys.Func{Module: "pkg.mod", Qualname: "gen", Params: []string{"n"}}))
	return reg
}

func mustFunc(t *testing.T, reg *typesys.Registry, qualname string) *typesys.Func {
	t.Helper()
	fn, err := reg.LookupFunc("pkg.mod", qualname)
	require.NoError(t, err)
	return fn
}

func observed(level zapcore.Level) (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core).Sugar(), logs
}

func TestEncodeDecodeCall(t *testing.T) {
	reg := testRegistry(t)
	codec := descriptor.NewCodec(reg)
	fn := mustFunc(t, reg, "f")

	ct := CallTrace{
		Func: fn,
		ArgTypes: map[string]*typesys.Type{
			"x": typesys.Int,
			"y": typesys.MustApply(typesys.List, typesys.Str),
		},
		ReturnType: typesys.Bool,
	}

	row, err := FromTrace(codec, ct)
	require.NoError(t, err)
	assert.Equal(t, "pkg.mod", row.Module)
	assert.Equal(t, "f", row.Qualname)
	assert.Nil(t, row.YieldType)
	require.NotNil(t, row.ReturnType)

	descs, err := descriptor.DecodeNamedDescriptors(row.ArgTypes)
	require.NoError(t, err)
	assert.Equal(t, descriptor.Simple{Module: "builtins", Name: "int"}, descs["x"])
	assert.True(t, descriptor.Equal(
		descriptor.Parameterized{Module: "builtins", Name: "list", Elements: []descriptor.Descriptor{descriptor.Simple{Module: "builtins", Name: "str"}}},
		descs["y"]))

	ret, err := descriptor.FromJSON(*row.ReturnType)
	require.NoError(t, err)
	assert.Equal(t, descriptor.Simple{Module: "builtins", Name: "bool"}, ret)

	back, err := row.ToTrace(codec, reg)
	require.NoError(t, err)
	assert.Same(t, fn, back.Func)
	assert.Same(t, typesys.Int, back.ArgTypes["x"])
	assert.True(t, typesys.Equal(ct.ArgTypes["y"], back.ArgTypes["y"]))
	assert.Same(t, typesys.Bool, back.ReturnType)
	assert.Nil(t, back.YieldType)
}

func TestAbsentIsNotNone(t *testing.T) {
	reg := testRegistry(t)
	codec := descriptor.NewCodec(reg)
	fn := mustFunc(t, reg, "f")

	absent, err := FromTrace(codec, CallTrace{Func: fn})
	require.NoError(t, err)
	none, err := FromTrace(codec, CallTrace{Func: fn, ReturnType: typesys.NoneType})
	require.NoError(t, err)

	assert.Nil(t, absent.ReturnType)
	require.NotNil(t, none.ReturnType)
	assert.Equal(t, `{"module":"builtins","qualname":"NoneType"}`, *none.ReturnType)
	assert.Equal(t, "{}", absent.ArgTypes)

	a, err := absent.ToTrace(codec, reg)
	require.NoError(t, err)
	n, err := none.ToTrace(codec, reg)
	require.NoError(t, err)
	assert.Nil(t, a.ReturnType)
	assert.Same(t, typesys.NoneType, n.ReturnType)

	// the literal marker reads as absent too
	marker := AbsentMarker
	legacy := CallTraceRow{Module: "pkg.mod", Qualname: "f", ArgTypes: "{}", ReturnType: &marker, YieldType: &marker}
	l, err := legacy.ToTrace(codec, reg)
	require.NoError(t, err)
	assert.Nil(t, l.ReturnType)
	assert.Nil(t, l.YieldType)
}

func TestToTraceUnknownCallable(t *testing.T) {
	reg := testRegistry(t)
	row := CallTraceRow{Module: "pkg.mod", Qualname: "missing", ArgTypes: "{}"}

	_, err := row.ToTrace(descriptor.NewCodec(reg), reg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCallableNotFound))
	assert.True(t, errors.IsNotFoundError(err))
}

func TestFromTraceErrors(t *testing.T) {
	codec := descriptor.NewCodec(nil)

	_, err := FromTrace(codec, CallTrace{})
	assert.True(t, errors.Is(err, errors.ErrSerialization))

	fn := &typesys.Func{Module: "pkg.mod", Qualname: "f"}
	_, err = FromTrace(codec, CallTrace{Func: fn, ReturnType: &typesys.Type{Name: "Orphan"}})
	assert.True(t, errors.Is(err, errors.ErrSerialization))
}

func TestSerializeTracesSkipsFailures(t *testing.T) {
	reg := testRegistry(t)
	codec := descriptor.NewCodec(reg)
	fn := mustFunc(t, reg, "f")
	log, logs := observed(zapcore.DebugLevel)

	traces := []CallTrace{
		{Func: fn, ArgTypes: map[string]*typesys.Type{"x": typesys.Int}},
		{Func: fn, ArgTypes: map[string]*typesys.Type{"x": {Name: "Orphan"}}},
		{Func: fn, ArgTypes: map[string]*typesys.Type{"x": typesys.Str}},
	}

	rows, failed := SerializeTraces(codec, traces, log)
	assert.Equal(t, 1, failed)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[0].ArgTypes, `"int"`)
	assert.Contains(t, rows[1].ArgTypes, `"str"`)

	entries := logs.FilterMessage("Failed to serialize trace").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "f", entries[0].ContextMap()["qualname"])
}

func TestSerializeTracesNilLogger(t *testing.T) {
	rows, failed := SerializeTraces(descriptor.NewCodec(nil), []CallTrace{{}}, nil)
	assert.Empty(t, rows)
	assert.Equal(t, 1, failed)
}

func TestDecodeRowsPartialFailure(t *testing.T) {
	reg := testRegistry(t)
	codec := descriptor.NewCodec(reg)
	log, logs := observed(zapcore.DebugLevel)

	dec, err := NewDecoder(codec, reg, 0, log)
	require.NoError(t, err)

	intJSON := `{"module":"builtins","qualname":"int"}`
	rows := []CallTraceRow{
		{Module: "pkg.mod", Qualname: "f", ArgTypes: `{"x":` + intJSON + `}`, ReturnType: &intJSON},
		{Module: "pkg.mod", Qualname: "f", ArgTypes: `{"x":{"module":"builtins","qualname":"spam"}}`},
		{Module: "pkg.mod", Qualname: "gen", ArgTypes: `{"n":` + intJSON + `}`, YieldType: &intJSON},
	}

	result := dec.DecodeRows(rows)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Traces, 2)
	assert.Equal(t, "f", result.Traces[0].Func.Qualname)
	assert.Equal(t, "gen", result.Traces[1].Func.Qualname)
	assert.Same(t, typesys.Int, result.Traces[1].YieldType)

	debug := logs.FilterMessage("Failed to decode trace").All()
	require.Len(t, debug, 1)
	assert.Equal(t, zapcore.DebugLevel, debug[0].Level)

	summary := logs.FilterMessage("Some call traces could not be decoded").All()
	require.Len(t, summary, 1)
	assert.Equal(t, zapcore.WarnLevel, summary[0].Level)
	assert.Equal(t, int64(1), summary[0].ContextMap()["failed_count"])
	assert.Equal(t, int64(3), summary[0].ContextMap()["total_count"])
}

func TestDecodeRowsNoFailuresNoWarning(t *testing.T) {
	reg := testRegistry(t)
	log, logs := observed(zapcore.DebugLevel)
	dec, err := NewDecoder(nil, reg, 8, log)
	require.NoError(t, err)

	result := dec.DecodeRows([]CallTraceRow{{Module: "pkg.mod", Qualname: "f", ArgTypes: "{}"}})
	assert.Zero(t, result.Failed)
	assert.Len(t, result.Traces, 1)
	assert.Zero(t, logs.Len())
}

func TestDecoderCacheHandsOutCopies(t *testing.T) {
	reg := testRegistry(t)
	dec, err := NewDecoder(nil, reg, 8, nil)
	require.NoError(t, err)

	row := CallTraceRow{Module: "pkg.mod", Qualname: "f", ArgTypes: `{"x":{"module":"builtins","qualname":"int"}}`}
	first := dec.DecodeRows([]CallTraceRow{row})
	require.Len(t, first.Traces, 1)
	first.Traces[0].ArgTypes["x"] = typesys.Str

	second := dec.DecodeRows([]CallTraceRow{row})
	require.Len(t, second.Traces, 1)
	assert.Same(t, typesys.Int, second.Traces[0].ArgTypes["x"])
}

func TestCapturedValuesRoundTrip(t *testing.T) {
	reg := testRegistry(t)
	codec := descriptor.NewCodec(reg)
	getter := hooks.NewGetter(hooks.DefaultHooks()...)

	xt, err := getter.TypeOf(hooks.Tuple{1, "a"})
	require.NoError(t, err)
	yt, err := getter.TypeOf(hooks.Frame{Columns: []hooks.Series{{Name: "qty", Values: []any{1}}}})
	require.NoError(t, err)

	row, err := FromTrace(codec, CallTrace{
		Func:     mustFunc(t, reg, "f"),
		ArgTypes: map[string]*typesys.Type{"x": xt, "y": yt},
	})
	require.NoError(t, err)

	back, err := row.ToTrace(codec, reg)
	require.NoError(t, err)
	assert.True(t, typesys.Equal(xt, back.ArgTypes["x"]))
	assert.True(t, typesys.Equal(yt, back.ArgTypes["y"]))
}

func TestLenientResolver(t *testing.T) {
	reg := testRegistry(t)
	r := NewLenientResolver(reg)

	declared, err := r.LookupFunc("pkg.mod", "f")
	require.NoError(t, err)
	assert.Same(t, mustFunc(t, reg, "f"), declared)

	_, err = r.LookupFunc("pkg.mod", "removed")
	assert.True(t, errors.Is(err, errors.ErrCallableNotFound), "declared modules stay strict")

	standIn, err := r.LookupFunc("app.views", "Index.get")
	require.NoError(t, err)
	assert.Equal(t, &typesys.Func{Module: "app.views", Qualname: "Index.get"}, standIn)

	again, err := r.LookupFunc("app.views", "Index.get")
	require.NoError(t, err)
	assert.Same(t, standIn, again)
}
