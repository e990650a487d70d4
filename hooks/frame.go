package hooks

import (
	"time"

	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/typesys"
)

// FrameModelName is the name of records synthesized from data frames.
const FrameModelName = "DUMMY_PANDERA_MODEL"

// Series is a named column of values.
type Series struct {
	Name   string
	Values []any
}

// Frame is a table of named columns.
type Frame struct {
	Columns []Series
}

// ColumnTypeFunc infers the element type of a column.
type ColumnTypeFunc func(s Series) *typesys.Type

// FrameHook describes a Frame as DataFrame[M], where M is a synthesized
// DataFrameModel with one Series[T] field per column, and a Series as
// Series[T].
type FrameHook struct {
	ColumnType ColumnTypeFunc
}

// NewFrameHook creates a frame hook; a nil fn means SampleColumnType.
func NewFrameHook(fn ColumnTypeFunc) FrameHook {
	if fn == nil {
		fn = SampleColumnType
	}
	return FrameHook{ColumnType: fn}
}

func (FrameHook) Handles(value any) bool {
	switch value.(type) {
	case Frame, Series:
		return true
	}
	return false
}

func (h FrameHook) Convert(_ *Getter, value any) (*typesys.Type, error) {
	columnType := h.ColumnType
	if columnType == nil {
		columnType = SampleColumnType
	}

	if s, ok := value.(Series); ok {
		return typesys.Apply(typesys.Series, columnType(s))
	}

	frame := value.(Frame)
	seen := make(map[string]bool, len(frame.Columns))
	fields := make([]typesys.Field, 0, len(frame.Columns))
	for _, col := range frame.Columns {
		if seen[col.Name] {
			return nil, errors.Wrapf(errors.ErrInvalidType, "frame has column %q twice", col.Name)
		}
		seen[col.Name] = true
		st, err := typesys.Apply(typesys.Series, columnType(col))
		if err != nil {
			return nil, err
		}
		fields = append(fields, typesys.Field{Name: col.Name, Type: st})
	}
	model := typesys.NewRecord(FrameModelName, fields, typesys.DataFrameModel)
	return typesys.Apply(typesys.DataFrame, model)
}

// SampleColumnType infers a column dtype from its non-nil values: integers
// are int64, numbers mixing integers and floats are float64, booleans bool_,
// timestamps datetime64. A column of one other scalar kind gets that
// scalar's builtin type; anything else, including an empty column, is
// object_.
func SampleColumnType(s Series) *typesys.Type {
	var kind *typesys.Type
	numeric := true
	for _, v := range s.Values {
		if v == nil {
			continue
		}
		t := sampleKind(v)
		if t == nil {
			return typesys.NumpyObject
		}
		if t != typesys.NumpyInt64 && t != typesys.NumpyFloat64 {
			numeric = false
		}
		switch {
		case kind == nil:
			kind = t
		case kind == t:
		case numeric:
			kind = typesys.NumpyFloat64
		default:
			return typesys.NumpyObject
		}
	}
	if kind == nil {
		return typesys.NumpyObject
	}
	return kind
}

func sampleKind(v any) *typesys.Type {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return typesys.NumpyInt64
	case float32, float64:
		return typesys.NumpyFloat64
	case bool:
		return typesys.NumpyBool
	case time.Time:
		return typesys.NumpyDatetime64
	case string:
		return typesys.Str
	case time.Duration:
		return typesys.Timedelta
	case complex64, complex128:
		return typesys.Complex
	}
	return nil
}
