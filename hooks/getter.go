// Package hooks infers type handles from observed Go values.
//
// A Getter maps a value to a *typesys.Type. Hooks let a capture session
// replace the default inference for particular values with a synthesized
// record type, e.g. a tuple becomes an anonymous NamedTuple.
package hooks

import (
	"reflect"
	"sort"
	"time"

	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/typesys"
)

// MaxDepth bounds how deeply nested values are walked.
const MaxDepth = 32

// Hook converts values it handles into type handles.
type Hook interface {
	Handles(value any) bool
	// Convert may call g.TypeOf for nested values.
	Convert(g *Getter, value any) (*typesys.Type, error)
}

// Getter infers type handles. It is safe for concurrent use.
type Getter struct {
	hooks []Hook
	depth int
}

// NewGetter creates a getter that consults hooks in order before the
// default inference.
func NewGetter(hooks ...Hook) *Getter {
	return &Getter{hooks: hooks}
}

// DefaultHooks returns the tuple, frame, dict and struct hooks.
func DefaultHooks() []Hook {
	return []Hook{TupleHook{}, NewFrameHook(nil), DictHook{}, StructHook{}}
}

// TypeOf returns the type handle of value.
func (g *Getter) TypeOf(value any) (*typesys.Type, error) {
	if g.depth > MaxDepth {
		return nil, errors.Wrapf(errors.ErrInvalidType, "value nested deeper than %d levels", MaxDepth)
	}
	child := *g
	child.depth++

	if value == nil {
		return typesys.NoneType, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return typesys.NoneType, nil
		}
		return child.TypeOf(rv.Elem().Interface())
	}

	for _, h := range g.hooks {
		if h.Handles(value) {
			return h.Convert(&child, value)
		}
	}

	switch value.(type) {
	case bool:
		return typesys.Bool, nil
	case string:
		return typesys.Str, nil
	case []byte:
		return typesys.Bytes, nil
	case time.Time:
		return typesys.Datetime, nil
	case time.Duration:
		return typesys.Timedelta, nil
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return typesys.Int, nil
	case reflect.Float32, reflect.Float64:
		return typesys.Float, nil
	case reflect.Complex64, reflect.Complex128:
		return typesys.Complex, nil
	case reflect.String:
		return typesys.Str, nil
	case reflect.Bool:
		return typesys.Bool, nil
	case reflect.Slice, reflect.Array:
		elems := make([]*typesys.Type, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			t, err := child.TypeOf(rv.Index(i).Interface())
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", i)
			}
			elems = append(elems, t)
		}
		elem, err := unionOf(elems, false)
		if err != nil {
			return nil, err
		}
		return typesys.Apply(typesys.ListAlias, elem)
	case reflect.Map:
		var keys, values []*typesys.Type
		iter := rv.MapRange()
		for iter.Next() {
			k, err := child.TypeOf(iter.Key().Interface())
			if err != nil {
				return nil, errors.Wrap(err, "map key")
			}
			v, err := child.TypeOf(iter.Value().Interface())
			if err != nil {
				return nil, errors.Wrap(err, "map value")
			}
			keys = append(keys, k)
			values = append(values, v)
		}
		kt, err := unionOf(keys, true)
		if err != nil {
			return nil, err
		}
		vt, err := unionOf(values, true)
		if err != nil {
			return nil, err
		}
		return typesys.Apply(typesys.DictAlias, kt, vt)
	}

	return nil, errors.Wrapf(errors.ErrInvalidType, "cannot describe value of Go type %T", value)
}

// unionOf joins observed member types; no members means Any. Members seen
// in map iteration order are sorted so the result does not vary.
func unionOf(types []*typesys.Type, sorted bool) (*typesys.Type, error) {
	if len(types) == 0 {
		return typesys.AnyType, nil
	}
	if sorted {
		types = append([]*typesys.Type(nil), types...)
		sort.SliceStable(types, func(i, j int) bool {
			return types[i].String() < types[j].String()
		})
	}
	return typesys.Apply(typesys.UnionType, types...)
}
