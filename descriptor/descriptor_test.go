package descriptor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/typesys"
)

var (
	intD  = Simple{Module: "builtins", Name: "int"}
	strD  = Simple{Module: "builtins", Name: "str"}
	noneD = Simple{Module: "builtins", Name: "NoneType"}
)

func namedTuple(name string) Composite {
	return Composite{
		Name:   name,
		Fields: []Field{{Name: "a", Type: intD}, {Name: "b", Type: strD}},
		Kind:   DerivedFrom,
		Bases:  []TypeRef{{Module: "typing", Name: "NamedTuple"}},
	}
}

func panderaModel(name string) Composite {
	return Composite{
		Name: name,
		Fields: []Field{
			{Name: "price", Type: Parameterized{Module: "pandera.typing", Name: "Series", Elements: []Descriptor{Simple{Module: "numpy", Name: "float64"}}}},
			{Name: "label", Type: Parameterized{Module: "pandera.typing", Name: "Series", Elements: []Descriptor{strD}}},
		},
		Kind:  InheritsFrom,
		Bases: []TypeRef{{Module: "pandera.api.pandas.model", Name: "DataFrameModel"}},
	}
}

// representable descriptors, every one resolvable against the builtin registry
func fixtures() map[string]Descriptor {
	return map[string]Descriptor{
		"simple":        intD,
		"hidden none":   noneD,
		"hidden proxy":  Simple{Module: "builtins", Name: "mappingproxy"},
		"any":           Simple{Module: "typing", Name: "Any"},
		"list of str":   Parameterized{Module: "builtins", Name: "list", Elements: []Descriptor{strD}},
		"empty tuple":   Parameterized{Module: "typing", Name: "Tuple", Elements: []Descriptor{}},
		"nested params": Parameterized{Module: "typing", Name: "Dict", Elements: []Descriptor{strD, Parameterized{Module: "typing", Name: "Union", Elements: []Descriptor{intD, noneD}}}},
		"named tuple":   namedTuple("DUMMY_NAMED_TUPLE"),
		"typed dict": Composite{
			Name:   "DUMMY_TYPED_DICT",
			Fields: []Field{{Name: "zeta", Type: intD}, {Name: "alpha", Type: strD}},
			Kind:   TypedRecord,
		},
		"pandera model": panderaModel("DUMMY_PANDERA_MODEL"),
		"data frame":    Parameterized{Module: "pandera.typing", Name: "DataFrame", Elements: []Descriptor{panderaModel("DUMMY_PANDERA_MODEL")}},
		"plain record": Composite{
			Name:   "Order",
			Fields: []Field{{Name: "line", Type: namedTuple("DUMMY_NAMED_TUPLE")}, {Name: "qty", Type: intD}},
			Kind:   Record,
		},
		"empty record": Composite{Name: "Empty", Fields: []Field{}, Kind: Record},
	}
}

var equateEmpty = cmpopts.EquateEmpty()

func TestJSONRoundTrip(t *testing.T) {
	for name, d := range fixtures() {
		t.Run(name, func(t *testing.T) {
			s, err := ToJSON(d)
			require.NoError(t, err)

			got, err := FromJSON(s)
			require.NoError(t, err)
			if diff := cmp.Diff(d, got, equateEmpty); diff != "" {
				t.Errorf("FromJSON(ToJSON(d)) mismatch (-want +got):\n%s", diff)
			}
			assert.True(t, Equal(d, got))
		})
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec(nil)
	for name, d := range fixtures() {
		t.Run(name, func(t *testing.T) {
			s, err := ToJSON(d)
			require.NoError(t, err)

			typ, err := codec.TypeFromJSON(s)
			require.NoError(t, err)

			back, err := Encode(typ)
			require.NoError(t, err)
			if diff := cmp.Diff(d, back, equateEmpty); diff != "" {
				t.Errorf("Encode(Decode(d)) mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToJSONWireFormat(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		want string
	}{
		{
			name: "simple",
			d:    intD,
			want: `{"module":"builtins","qualname":"int"}`,
		},
		{
			name: "empty elements",
			d:    Parameterized{Module: "typing", Name: "Tuple"},
			want: `{"elem_types":[],"module":"typing","qualname":"Tuple"}`,
		},
		{
			name: "derived record keeps field order",
			d: Composite{
				Name:   "T",
				Fields: []Field{{Name: "b", Type: strD}, {Name: "a", Type: intD}},
				Kind:   DerivedFrom,
				Bases:  []TypeRef{{Module: "typing", Name: "NamedTuple"}},
			},
			want: `{"base_class":{"module":"typing","qualname":"NamedTuple"},"elem_types":{"b":{"module":"builtins","qualname":"str"},"a":{"module":"builtins","qualname":"int"}},"module":null,"qualname":"T"}`,
		},
		{
			name: "typed dict",
			d:    Composite{Name: "D", Fields: []Field{{Name: "x", Type: intD}}, Kind: TypedRecord},
			want: `{"elem_types":{"x":{"module":"builtins","qualname":"int"}},"is_typed_dict":true,"module":null,"qualname":"D"}`,
		},
		{
			name: "inherits",
			d:    Composite{Name: "M", Fields: []Field{}, Kind: InheritsFrom, Bases: []TypeRef{{Module: "a", Name: "B"}, {Module: "c", Name: "D"}}},
			want: `{"bases":[{"module":"a","qualname":"B"},{"module":"c","qualname":"D"}],"elem_types":{},"module":null,"qualname":"M"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToJSON(tt.d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToJSONDeterministic(t *testing.T) {
	build := func() Descriptor {
		return Parameterized{Module: "pandera.typing", Name: "DataFrame", Elements: []Descriptor{panderaModel("M")}}
	}
	a, err := ToJSON(build())
	require.NoError(t, err)
	b, err := ToJSON(build())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestToJSONRejectsInvalid(t *testing.T) {
	dup := Composite{Name: "T", Fields: []Field{{Name: "a", Type: intD}, {Name: "a", Type: strD}}}
	_, err := ToJSON(dup)
	assert.True(t, errors.Is(err, errors.ErrSerialization))

	_, err = ToJSON(Composite{Name: "T", Kind: DerivedFrom})
	assert.True(t, errors.Is(err, errors.ErrSerialization))

	_, err = ToJSON(nil)
	assert.True(t, errors.Is(err, errors.ErrSerialization))
}

func TestFromJSONMalformed(t *testing.T) {
	for _, s := range []string{
		``,
		`null`,
		`[1,2]`,
		`{"module":"builtins"}`,
		`{"module":"builtins","qualname":"int","elem_types":3}`,
		`{"qualname":"T","module":null,"elem_types":{"a":{"module":"builtins","qualname":"int"},"a":{"module":"builtins","qualname":"int"}}}`,
		`{"qualname":"T","module":null,"elem_types":{},"base_class":{"module":"typing"}}`,
	} {
		_, err := FromJSON(s)
		assert.Truef(t, errors.IsInvalidRequestError(err), "FromJSON(%q) error = %v", s, err)
	}
}

func TestFromJSONKindPrecedence(t *testing.T) {
	d, err := FromJSON(`{"base_class":{"module":"typing","qualname":"NamedTuple"},"elem_types":{},"is_typed_dict":true,"module":null,"qualname":"T"}`)
	require.NoError(t, err)
	assert.Equal(t, TypedRecord, d.(Composite).Kind)

	d, err = FromJSON(`{"bases":[],"base_class":null,"elem_types":{},"module":null,"qualname":"T"}`)
	require.NoError(t, err)
	assert.Equal(t, InheritsFrom, d.(Composite).Kind)
}

func TestTemplate(t *testing.T) {
	a := namedTuple("DUMMY_NAMED_TUPLE")
	b := namedTuple("DUMMY_NAMED_TUPLE_1")
	assert.Equal(t, Template(a), Template(b))
	assert.True(t, SameShape(a, b))
	assert.False(t, Equal(a, b))

	reordered := Composite{
		Name:   "DUMMY_NAMED_TUPLE",
		Fields: []Field{{Name: "b", Type: strD}, {Name: "a", Type: intD}},
		Kind:   DerivedFrom,
		Bases:  a.Bases,
	}
	assert.NotEqual(t, Template(a), Template(reordered))

	otherKind := a
	otherKind.Kind = TypedRecord
	otherKind.Bases = nil
	assert.NotEqual(t, Template(a), Template(otherKind))

	// nested composite names do not matter either
	outerA := Composite{Name: "O", Fields: []Field{{Name: "x", Type: a}}}
	outerB := Composite{Name: "P", Fields: []Field{{Name: "x", Type: b}}}
	assert.Equal(t, Template(outerA), Template(outerB))
}

func TestEncodeClassification(t *testing.T) {
	rec := typesys.NewDerivedRecord("R", typesys.NamedTupleType, []typesys.Field{{Name: "a", Type: typesys.Int}})

	tests := []struct {
		name string
		typ  *typesys.Type
		want Descriptor
	}{
		{"simple", typesys.Int, intD},
		{"union name", typesys.MustApply(typesys.OptionalType, typesys.Str),
			Parameterized{Module: "typing", Name: "Union", Elements: []Descriptor{strD, noneD}}},
		{"alias name", typesys.MustApply(typesys.ListAlias, typesys.Int),
			Parameterized{Module: "typing", Name: "List", Elements: []Descriptor{intD}}},
		{"any", typesys.AnyType, Simple{Module: "typing", Name: "Any"}},
		{"empty tuple marker", typesys.MustApply(typesys.TupleAlias, typesys.EmptyTuple),
			Parameterized{Module: "typing", Name: "Tuple", Elements: []Descriptor{}}},
		{"record", rec, Composite{Name: "R", Fields: []Field{{Name: "a", Type: intD}}, Kind: DerivedFrom,
			Bases: []TypeRef{{Module: "typing", Name: "NamedTuple"}}}},
		{"nominal class with annotations stays simple",
			&typesys.Type{Module: "shop", Name: "Cart", Fields: []typesys.Field{{Name: "n", Type: typesys.Int}}},
			Simple{Module: "shop", Name: "Cart"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.typ)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got, equateEmpty); diff != "" {
				t.Errorf("Encode mismatch (-want +got):\n%s", diff)
			}

			viaCodec, err := NewCodec(nil).Encode(tt.typ)
			require.NoError(t, err)
			if diff := cmp.Diff(got, viaCodec, equateEmpty); diff != "" {
				t.Errorf("Codec.Encode mismatch (-Encode +Codec.Encode):\n%s", diff)
			}
		})
	}
}

func TestEncodeSerializationErrors(t *testing.T) {
	for name, typ := range map[string]*typesys.Type{
		"nil":            nil,
		"no module":      {Name: "Orphan"},
		"bare marker":    typesys.EmptyTuple,
		"unnamed record": typesys.NewRecord("", nil),
		"bad field":      typesys.NewRecord("R", []typesys.Field{{Name: "x", Type: &typesys.Type{Name: "Orphan"}}}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Encode(typ)
			assert.True(t, errors.Is(err, errors.ErrSerialization), "got %v", err)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	codec := NewCodec(nil)

	_, err := codec.Decode(Simple{Module: "builtins", Name: "spam"})
	assert.True(t, errors.Is(err, errors.ErrNameLookup))

	_, err = codec.Decode(Simple{Module: "typing", Name: "TYPE_CHECKING"})
	assert.True(t, errors.Is(err, errors.ErrInvalidType))

	_, err = codec.Decode(Parameterized{Module: "nowhere", Name: "Box", Elements: []Descriptor{intD}})
	assert.True(t, errors.Is(err, errors.ErrNameLookup))

	_, err = codec.Decode(Parameterized{Module: "builtins", Name: "int", Elements: []Descriptor{intD}})
	assert.True(t, errors.Is(err, errors.ErrInvalidType), "int is not subscriptable")

	_, err = codec.Decode(Composite{Name: "R", Kind: DerivedFrom, Bases: []TypeRef{{Module: "nowhere", Name: "Base"}}})
	assert.True(t, errors.Is(err, errors.ErrNameLookup))

	// NoneType is only hidden under builtins
	_, err = codec.Decode(Simple{Module: "types", Name: "NoneType"})
	assert.True(t, errors.Is(err, errors.ErrNameLookup))
}

func TestDecodeCompositeIsUnresolvable(t *testing.T) {
	codec := NewCodec(nil)
	typ, err := codec.Decode(namedTuple("DUMMY_NAMED_TUPLE"))
	require.NoError(t, err)

	assert.Empty(t, typ.Module)
	assert.True(t, typ.IsRecord())
	assert.Same(t, typesys.NamedTupleType, typ.Base)
	require.Len(t, typ.Fields, 2)
	assert.Equal(t, "a", typ.Fields[0].Name)
	assert.Same(t, typesys.Int, typ.Fields[0].Type)
}

func TestDecodeWithManifestRegistry(t *testing.T) {
	reg := typesys.NewRegistry(typesys.Builtins())
	box := &typesys.Type{Module: "shop", Name: "Box", Generic: true}
	require.NoError(t, reg.Define("shop", "Box", box))

	typ, err := NewCodec(reg).Decode(Parameterized{Module: "shop", Name: "Box", Elements: []Descriptor{intD}})
	require.NoError(t, err)
	assert.Same(t, box, typ.Origin)
}

func TestNamedMap(t *testing.T) {
	codec := NewCodec(nil)
	args := map[string]*typesys.Type{
		"y": typesys.MustApply(typesys.List, typesys.Str),
		"x": typesys.Int,
	}

	s, err := codec.EncodeNamedMap(args)
	require.NoError(t, err)
	assert.Equal(t,
		`{"x":{"module":"builtins","qualname":"int"},"y":{"elem_types":[{"module":"builtins","qualname":"str"}],"module":"builtins","qualname":"list"}}`,
		s)

	back, err := codec.DecodeNamedMap(s)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.True(t, typesys.Equal(args["y"], back["y"]))
	assert.Same(t, typesys.Int, back["x"])

	empty, err := codec.EncodeNamedMap(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", empty)

	_, err = codec.EncodeNamedMap(map[string]*typesys.Type{"bad": {Name: "Orphan"}})
	assert.True(t, errors.Is(err, errors.ErrSerialization))

	_, err = codec.DecodeNamedMap(`{"x":{"module":"builtins","qualname":"spam"}}`)
	assert.True(t, errors.Is(err, errors.ErrNameLookup))
}
