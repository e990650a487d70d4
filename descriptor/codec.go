package descriptor

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/typesys"
)

// hiddenBuiltins are builtin types that module lookup cannot name.
// Read-only after package initialization.
var hiddenBuiltins = map[string]*typesys.Type{
	"NoneType":           typesys.NoneType,
	"NotImplementedType": typesys.NotImplementedType,
	"mappingproxy":       typesys.MappingProxy,
}

// Resolver resolves a module attribute. *typesys.Registry implements it.
type Resolver interface {
	Lookup(module, name string) (typesys.Object, bool)
}

// Codec converts between type handles and descriptors, resolving names
// through its Resolver. A Codec holds no mutable state.
type Codec struct {
	resolver Resolver
}

// NewCodec creates a codec resolving against r, or against the builtin
// registry when r is nil.
func NewCodec(r Resolver) *Codec {
	if r == nil {
		r = typesys.Builtins()
	}
	return &Codec{resolver: r}
}

// Encode classifies t: synthesized records become Composite, applied
// generics Parameterized, anything else Simple.
func Encode(t *typesys.Type) (Descriptor, error) {
	if t == nil {
		return nil, errors.Wrap(errors.ErrSerialization, "nil type handle")
	}
	if t == typesys.EmptyTuple {
		return nil, errors.Wrap(errors.ErrSerialization, "empty tuple marker outside a tuple")
	}

	if t.IsRecord() {
		return encodeRecord(t)
	}

	if t.IsApplied() {
		args := t.Args
		// Tuple[()] carries a single empty marker
		if len(args) == 1 && args[0] == typesys.EmptyTuple {
			args = nil
		}
		out := Parameterized{Module: t.Module, Name: t.DisplayName(), Elements: make([]Descriptor, 0, len(args))}
		for i, arg := range args {
			d, err := Encode(arg)
			if err != nil {
				return nil, errors.Wrapf(err, "argument %d of %s", i, t.DisplayName())
			}
			out.Elements = append(out.Elements, d)
		}
		return out, nil
	}

	if t.Module == "" {
		return nil, errors.WithHint(
			errors.Wrapf(errors.ErrSerialization, "type %q has no declaring module", t.Name),
			"only synthesized records may omit their module")
	}
	return Simple{Module: t.Module, Name: t.DisplayName()}, nil
}

// Encode is the package-level Encode. Encoding never consults the
// resolver; the method pairs with Decode for callers holding a Codec.
func (c *Codec) Encode(t *typesys.Type) (Descriptor, error) {
	return Encode(t)
}

func encodeRecord(t *typesys.Type) (Descriptor, error) {
	if t.Name == "" {
		return nil, errors.Wrap(errors.ErrSerialization, "synthesized record has no name")
	}
	out := Composite{Name: t.Name, Fields: make([]Field, 0, len(t.Fields))}
	for _, f := range t.Fields {
		d, err := Encode(f.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s of %s", f.Name, t.Name)
		}
		out.Fields = append(out.Fields, Field{Name: f.Name, Type: d})
	}

	switch {
	case t.TypedDict:
		out.Kind = TypedRecord
	case t.Base != nil:
		out.Kind = DerivedFrom
		out.Bases = []TypeRef{{Module: t.Base.Module, Name: t.Base.DisplayName()}}
	case len(t.Bases) > 0:
		out.Kind = InheritsFrom
		for _, b := range t.Bases {
			out.Bases = append(out.Bases, TypeRef{Module: b.Module, Name: b.DisplayName()})
		}
	default:
		out.Kind = Record
	}
	return out, nil
}

// Decode reifies d into a type handle.
//
// Errors wrap errors.ErrNameLookup when a name is missing from its module
// and errors.ErrInvalidType when it names something that is not a type.
func (c *Codec) Decode(d Descriptor) (*typesys.Type, error) {
	switch x := d.(type) {
	case Simple:
		return c.resolveType(x.Module, x.Name)

	case Parameterized:
		base, err := c.resolveType(x.Module, x.Name)
		if err != nil {
			return nil, err
		}
		args := make([]*typesys.Type, 0, len(x.Elements))
		for _, e := range x.Elements {
			arg, err := c.Decode(e)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return typesys.Apply(base, args...)

	case Composite:
		return c.decodeRecord(x)
	}
	return nil, errors.NewInvalidRequestError("unknown descriptor %T", d)
}

func (c *Codec) decodeRecord(x Composite) (*typesys.Type, error) {
	fields := make([]typesys.Field, 0, len(x.Fields))
	for _, f := range x.Fields {
		ft, err := c.Decode(f.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s of %s", f.Name, x.Name)
		}
		fields = append(fields, typesys.Field{Name: f.Name, Type: ft})
	}

	switch x.Kind {
	case TypedRecord:
		return typesys.NewTypedDict(x.Name, fields), nil
	case DerivedFrom:
		if len(x.Bases) != 1 {
			return nil, errors.NewInvalidRequestError("record %s derives from %d bases, want 1", x.Name, len(x.Bases))
		}
		base, err := c.resolveType(x.Bases[0].Module, x.Bases[0].Name)
		if err != nil {
			return nil, errors.Wrapf(err, "base of %s", x.Name)
		}
		return typesys.NewDerivedRecord(x.Name, base, fields), nil
	case InheritsFrom:
		bases := make([]*typesys.Type, 0, len(x.Bases))
		for _, ref := range x.Bases {
			b, err := c.resolveType(ref.Module, ref.Name)
			if err != nil {
				return nil, errors.Wrapf(err, "base of %s", x.Name)
			}
			bases = append(bases, b)
		}
		return typesys.NewRecord(x.Name, fields, bases...), nil
	}
	return typesys.NewRecord(x.Name, fields), nil
}

func (c *Codec) resolveType(module, name string) (*typesys.Type, error) {
	if module == "builtins" {
		if t, ok := hiddenBuiltins[name]; ok {
			return t, nil
		}
	}
	obj, ok := c.resolver.Lookup(module, name)
	if !ok {
		return nil, errors.WithHintf(
			errors.Wrapf(errors.ErrNameLookup, "%q in module %q", name, module),
			"add %s to a universe manifest if the traced program defines it", module)
	}
	t, ok := obj.(*typesys.Type)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidType,
			"attribute specified by %q in module %q is of type %T, not type", name, module, obj)
	}
	return t, nil
}

// TypeToJSON encodes t straight to its JSON form.
func (c *Codec) TypeToJSON(t *typesys.Type) (string, error) {
	d, err := c.Encode(t)
	if err != nil {
		return "", err
	}
	return ToJSON(d)
}

// TypeFromJSON reifies a type from the form produced by TypeToJSON.
func (c *Codec) TypeFromJSON(s string) (*typesys.Type, error) {
	d, err := FromJSON(s)
	if err != nil {
		return nil, err
	}
	return c.Decode(d)
}

// EncodeNamedMap encodes a name → type mapping (an argument list) as one
// JSON object with sorted keys.
func (c *Codec) EncodeNamedMap(types map[string]*typesys.Type) (string, error) {
	descs := make(map[string]Descriptor, len(types))
	for name, t := range types {
		d, err := c.Encode(t)
		if err != nil {
			return "", errors.Wrapf(err, "argument %s", name)
		}
		descs[name] = d
	}
	return EncodeNamedDescriptors(descs)
}

// DecodeNamedMap reifies the form produced by EncodeNamedMap.
func (c *Codec) DecodeNamedMap(s string) (map[string]*typesys.Type, error) {
	descs, err := DecodeNamedDescriptors(s)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*typesys.Type, len(descs))
	for name, d := range descs {
		t, err := c.Decode(d)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %s", name)
		}
		out[name] = t
	}
	return out, nil
}

// EncodeNamedDescriptors writes descriptors keyed by name, keys sorted.
func EncodeNamedDescriptors(descs map[string]Descriptor) (string, error) {
	names := make([]string, 0, len(descs))
	for name, d := range descs {
		if err := validate(d); err != nil {
			return "", errors.Wrapf(err, "argument %s", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, name)
		writeDescriptor(&buf, descs[name], false)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// DecodeNamedDescriptors parses the form produced by EncodeNamedDescriptors.
func DecodeNamedDescriptors(s string) (map[string]Descriptor, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "decode argument types: %v", err)
	}
	out := make(map[string]Descriptor, len(raw))
	for name, r := range raw {
		d, err := decodeRaw(r)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %s", name)
		}
		out[name] = d
	}
	return out, nil
}
