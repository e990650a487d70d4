// Package descriptor is the portable form of a type handle.
//
// A Descriptor is one of three variants:
//
//	Simple        a nominal type, identified by module and name
//	Parameterized a generic applied to ordered element descriptors
//	Composite     a record synthesized from an observed value's fields
//
// Descriptors travel as JSON (ToJSON/FromJSON) and are turned back into
// type handles by a Codec, which resolves names against a registry.
package descriptor

// Descriptor is a tagged type descriptor. The concrete types are Simple,
// Parameterized and Composite.
type Descriptor interface {
	descriptor()
}

// Simple is a non-parameterized nominal type.
type Simple struct {
	Module string
	Name   string
}

// Parameterized is a generic applied to ordered type arguments.
type Parameterized struct {
	Module   string
	Name     string
	Elements []Descriptor
}

// Composite is a structurally synthesized record type. It has no declaring
// module.
type Composite struct {
	Name   string
	Fields []Field
	Kind   RecordKind
	// Bases holds the single origin base for DerivedFrom and the ordered
	// bases for InheritsFrom; it is empty for the other kinds.
	Bases []TypeRef
}

func (Simple) descriptor()        {}
func (Parameterized) descriptor() {}
func (Composite) descriptor()     {}

// Field is one record attribute, in declaration order.
type Field struct {
	Name string
	Type Descriptor
}

// TypeRef names a nominal type without describing it.
type TypeRef struct {
	Module string
	Name   string
}

// RecordKind says how a composite record was declared.
type RecordKind int

const (
	// Record is a plain class with annotations and no bases.
	Record RecordKind = iota
	// TypedRecord is an anonymous TypedDict.
	TypedRecord
	// DerivedFrom records have one declared origin base, e.g. NamedTuple.
	DerivedFrom
	// InheritsFrom records subclass an ordered list of bases.
	InheritsFrom
)

func (k RecordKind) String() string {
	switch k {
	case Record:
		return "record"
	case TypedRecord:
		return "typed_record"
	case DerivedFrom:
		return "derived_from"
	case InheritsFrom:
		return "inherits_from"
	}
	return "unknown"
}

// Equal reports structural equality, names included.
func Equal(a, b Descriptor) bool {
	switch x := a.(type) {
	case Simple:
		y, ok := b.(Simple)
		return ok && x == y
	case Parameterized:
		y, ok := b.(Parameterized)
		if !ok || x.Module != y.Module || x.Name != y.Name || len(x.Elements) != len(y.Elements) {
			return false
		}
		for i := range x.Elements {
			if !Equal(x.Elements[i], y.Elements[i]) {
				return false
			}
		}
		return true
	case Composite:
		y, ok := b.(Composite)
		if !ok || x.Name != y.Name || x.Kind != y.Kind || len(x.Fields) != len(y.Fields) || len(x.Bases) != len(y.Bases) {
			return false
		}
		for i := range x.Fields {
			if x.Fields[i].Name != y.Fields[i].Name || !Equal(x.Fields[i].Type, y.Fields[i].Type) {
				return false
			}
		}
		for i := range x.Bases {
			if x.Bases[i] != y.Bases[i] {
				return false
			}
		}
		return true
	}
	return a == nil && b == nil
}
