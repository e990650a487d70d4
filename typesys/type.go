// Package typesys models the runtime type handles that call traces carry.
//
// A *Type stands in for a live type object: a nominal class, a generic that
// can be subscripted, an applied generic, the Any marker, or a record type
// synthesized from an observed value. Module namespaces are kept in a
// Registry, which is what descriptor decoding resolves names against.
package typesys

import (
	"strings"

	"github.com/teranos/typetrace/errors"
)

// Object is anything a module namespace can bind a name to.
type Object interface {
	object()
}

// Type is a type handle.
type Type struct {
	// Module is the declaring module; "" means unset (synthesized, local
	// to the capture session and never resolvable by name).
	Module string
	// Name is the qualified name within Module.
	Name string
	// Alias is the display name of a generic whose display name differs
	// from its qualname (typing.List displays as "List", stores "list").
	Alias string

	Generic   bool // subscriptable
	Union     bool
	Any       bool
	TypedDict bool

	// Origin and Args are set on applied generics.
	Origin *Type
	Args   []*Type

	// Fields is non-nil for record types, in declaration order.
	Fields []Field
	// Base is the declared origin base of a record (e.g. typing.NamedTuple).
	Base *Type
	// Bases are the ordinary bases of a record class.
	Bases []*Type
}

func (*Type) object() {}

// Field is one annotated record attribute.
type Field struct {
	Name string
	Type *Type
}

// Func is a callable bound in a module.
type Func struct {
	Module   string
	Qualname string
	// Params is the declared parameter order, used when rendering stubs.
	Params []string
}

func (*Func) object() {}

// Value is a module attribute that is not a type.
type Value struct {
	Module string
	Name   string
}

func (*Value) object() {}

// IsApplied reports whether t is a generic applied to type arguments.
func (t *Type) IsApplied() bool {
	return t != nil && t.Origin != nil
}

// IsRecord reports whether t is a synthesized record: it has field
// annotations and no resolvable declaring module.
func (t *Type) IsRecord() bool {
	return t != nil && t.Fields != nil && (t.Module == "" || t.TypedDict)
}

// DisplayName is the name a type is stored under: "Union" for unions,
// "Any" for the Any marker, the alias for aliased generics, else Name.
func (t *Type) DisplayName() string {
	switch {
	case t.Union:
		return "Union"
	case t.Any:
		return "Any"
	case t.Alias != "":
		return t.Alias
	}
	return t.Name
}

// String renders t as a qualified annotation, e.g. typing.Dict[builtins.str, builtins.int].
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	var sb strings.Builder
	t.writeTo(&sb)
	return sb.String()
}

func (t *Type) writeTo(sb *strings.Builder) {
	if t == EmptyTuple {
		sb.WriteString("()")
		return
	}
	if t.Module != "" {
		sb.WriteString(t.Module)
		sb.WriteByte('.')
	}
	sb.WriteString(t.DisplayName())
	if t.Origin == nil {
		return
	}
	sb.WriteByte('[')
	for i, arg := range t.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		arg.writeTo(sb)
	}
	sb.WriteByte(']')
}

// Apply subscripts a generic with ordered type arguments.
// Optional[X] becomes Union[X, NoneType]; a union of one type is that type.
func Apply(base *Type, args ...*Type) (*Type, error) {
	if base == nil {
		return nil, errors.Wrap(errors.ErrInvalidType, "cannot subscript nil type")
	}
	if !base.Generic {
		return nil, errors.Wrapf(errors.ErrInvalidType, "%s is not subscriptable", base)
	}
	if base == OptionalType {
		if len(args) != 1 {
			return nil, errors.Wrapf(errors.ErrInvalidType, "Optional takes exactly one argument, got %d", len(args))
		}
		return Apply(UnionType, args[0], NoneType)
	}
	if base.Union {
		args = dedupeUnion(args)
		if len(args) == 1 {
			return args[0], nil
		}
	}

	applied := &Type{
		Module: base.Module,
		Name:   base.Name,
		Alias:  base.Alias,
		Union:  base.Union,
		Origin: base,
		Args:   make([]*Type, len(args)),
	}
	copy(applied.Args, args)
	return applied, nil
}

// MustApply is Apply for arguments known to be valid.
func MustApply(base *Type, args ...*Type) *Type {
	t, err := Apply(base, args...)
	if err != nil {
		panic(err)
	}
	return t
}

// dedupeUnion flattens nested unions and drops repeated members, keeping
// first-seen order.
func dedupeUnion(args []*Type) []*Type {
	var out []*Type
	for _, arg := range args {
		members := []*Type{arg}
		if arg.IsApplied() && arg.Union {
			members = arg.Args
		}
		for _, m := range members {
			seen := false
			for _, existing := range out {
				if Equal(existing, m) {
					seen = true
					break
				}
			}
			if !seen {
				out = append(out, m)
			}
		}
	}
	return out
}

// Equal reports structural equality of two type handles.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Module != b.Module || a.Name != b.Name || a.Alias != b.Alias ||
		a.Generic != b.Generic || a.Union != b.Union || a.Any != b.Any || a.TypedDict != b.TypedDict {
		return false
	}
	if (a.Origin == nil) != (b.Origin == nil) || !equalList(a.Args, b.Args) {
		return false
	}
	if (a.Fields == nil) != (b.Fields == nil) || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i].Name != b.Fields[i].Name || !Equal(a.Fields[i].Type, b.Fields[i].Type) {
			return false
		}
	}
	return Equal(a.Base, b.Base) && equalList(a.Bases, b.Bases)
}

func equalList(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// NewRecord synthesizes a plain record class with the given bases.
func NewRecord(name string, fields []Field, bases ...*Type) *Type {
	return &Type{Name: name, Fields: copyFields(fields), Bases: bases}
}

// NewDerivedRecord synthesizes a record whose declared origin base is base,
// the way a NamedTuple or a dataclass-style model is built.
func NewDerivedRecord(name string, base *Type, fields []Field) *Type {
	return &Type{Name: name, Fields: copyFields(fields), Base: base}
}

// NewTypedDict synthesizes an anonymous TypedDict.
func NewTypedDict(name string, fields []Field) *Type {
	return &Type{Name: name, Fields: copyFields(fields), TypedDict: true, Base: TypedDictType}
}

func copyFields(fields []Field) []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}
