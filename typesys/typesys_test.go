package typesys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/typetrace/errors"
)

func TestBuiltinsLookup(t *testing.T) {
	r := Builtins()

	obj, ok := r.Lookup("builtins", "int")
	require.True(t, ok)
	assert.Same(t, Int, obj)

	obj, ok = r.Lookup("typing", "List")
	require.True(t, ok)
	assert.Same(t, ListAlias, obj)

	// hidden builtins are not nameable
	_, ok = r.Lookup("builtins", "NoneType")
	assert.False(t, ok)
	_, ok = r.Lookup("builtins", "mappingproxy")
	assert.False(t, ok)
}

func TestBuiltinsFrozen(t *testing.T) {
	err := Builtins().Define("builtins", "spam", class("builtins", "spam"))
	require.Error(t, err)
	assert.True(t, errors.IsAssertionFailure(err))
}

func TestRegistryLayering(t *testing.T) {
	r := NewRegistry(Builtins())
	box := &Type{Module: "shop", Name: "Box", Generic: true}
	require.NoError(t, r.Define("shop", "Box", box))

	obj, ok := r.Lookup("shop", "Box")
	require.True(t, ok)
	assert.Same(t, box, obj)

	_, ok = r.Lookup("builtins", "str")
	assert.True(t, ok, "parent lookups fall through")

	err := r.Define("shop", "Box", box)
	assert.True(t, errors.IsInvalidRequestError(err))

	assert.Contains(t, r.Modules(), "shop")
	assert.Contains(t, r.Modules(), "builtins")
}

func TestLookupFunc(t *testing.T) {
	r := NewRegistry(nil)
	fn := &Func{Module: "shop", Qualname: "Cart.total", Params: []string{"self"}}
	require.NoError(t, r.DefineFunc(fn))
	require.NoError(t, r.Define("shop", "DEBUG", &Value{Module: "shop", Name: "DEBUG"}))

	got, err := r.LookupFunc("shop", "Cart.total")
	require.NoError(t, err)
	assert.Same(t, fn, got)

	_, err = r.LookupFunc("shop", "missing")
	assert.True(t, errors.Is(err, errors.ErrCallableNotFound))

	_, err = r.LookupFunc("shop", "DEBUG")
	assert.True(t, errors.Is(err, errors.ErrCallableNotFound))
}

func TestApply(t *testing.T) {
	listOfStr, err := Apply(List, Str)
	require.NoError(t, err)
	assert.True(t, listOfStr.IsApplied())
	assert.Same(t, List, listOfStr.Origin)
	assert.Equal(t, "builtins.list[builtins.str]", listOfStr.String())

	_, err = Apply(Int, Str)
	assert.True(t, errors.Is(err, errors.ErrInvalidType))
}

func TestApplyUnion(t *testing.T) {
	u := MustApply(UnionType, Int, Str, Int)
	require.Len(t, u.Args, 2)
	assert.Equal(t, "Union", u.DisplayName())

	single := MustApply(UnionType, Int, Int)
	assert.Same(t, Int, single)

	nested := MustApply(UnionType, u, Bool)
	assert.Len(t, nested.Args, 3)

	opt := MustApply(OptionalType, Str)
	assert.True(t, opt.Union)
	assert.True(t, Equal(opt, MustApply(UnionType, Str, NoneType)))
}

func TestIsRecord(t *testing.T) {
	rec := NewRecord("Point", []Field{{Name: "x", Type: Int}})
	assert.True(t, rec.IsRecord())
	assert.True(t, NewTypedDict("D", nil).IsRecord(), "empty field list still counts")
	assert.False(t, Int.IsRecord())
	assert.False(t, (&Type{Module: "shop", Name: "Box", Fields: []Field{}}).IsRecord())
}

func TestEqual(t *testing.T) {
	a := NewDerivedRecord("T", NamedTupleType, []Field{{Name: "a", Type: Int}, {Name: "b", Type: Str}})
	b := NewDerivedRecord("T", NamedTupleType, []Field{{Name: "a", Type: Int}, {Name: "b", Type: Str}})
	c := NewDerivedRecord("T", NamedTupleType, []Field{{Name: "b", Type: Str}, {Name: "a", Type: Int}})

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c), "field order matters")
	assert.False(t, Equal(a, nil))
}

const manifestYAML = `
modules:
  - name: pandera_example
    types:
      - name: Box
        generic: true
      - name: Widget
    functions:
      - qualname: takes_df
        params: [df]
      - qualname: Loader.load
        params: [self, path]
    values: [DEBUG]
`

func TestLoadManifest(t *testing.T) {
	r := NewRegistry(Builtins())
	require.NoError(t, LoadManifest(strings.NewReader(manifestYAML), r))

	obj, ok := r.Lookup("pandera_example", "Box")
	require.True(t, ok)
	assert.True(t, obj.(*Type).Generic)

	fn, err := r.LookupFunc("pandera_example", "Loader.load")
	require.NoError(t, err)
	assert.Equal(t, []string{"self", "path"}, fn.Params)

	obj, ok = r.Lookup("pandera_example", "DEBUG")
	require.True(t, ok)
	assert.IsType(t, &Value{}, obj)
}

func TestLoadManifestRejectsUnknownFields(t *testing.T) {
	err := LoadManifest(strings.NewReader("modules:\n  - name: m\n    classes: []\n"), NewRegistry(nil))
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestLoadManifestEmpty(t *testing.T) {
	assert.NoError(t, LoadManifest(strings.NewReader(""), NewRegistry(nil)))
}
