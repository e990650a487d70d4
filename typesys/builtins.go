package typesys

import "sync"

func class(module, name string) *Type { return &Type{Module: module, Name: name} }

func generic(module, name string) *Type {
	return &Type{Module: module, Name: name, Generic: true}
}

func alias(module, name, display string) *Type {
	return &Type{Module: module, Name: name, Alias: display, Generic: true}
}

// builtins
var (
	Int       = class("builtins", "int")
	Float     = class("builtins", "float")
	Complex   = class("builtins", "complex")
	Str       = class("builtins", "str")
	Bytes     = class("builtins", "bytes")
	Bool      = class("builtins", "bool")
	ObjectT   = class("builtins", "object")
	TypeT     = generic("builtins", "type")
	List      = generic("builtins", "list")
	Dict      = generic("builtins", "dict")
	Tuple     = generic("builtins", "tuple")
	Set       = generic("builtins", "set")
	FrozenSet = generic("builtins", "frozenset")
)

// Hidden builtins: real types that cannot be named through module lookup.
var (
	NoneType           = class("builtins", "NoneType")
	NotImplementedType = class("builtins", "NotImplementedType")
	MappingProxy       = class("builtins", "mappingproxy")
)

// EmptyTuple is the argument marker of an empty tuple annotation,
// Tuple[()]. Applied types never keep it.
var EmptyTuple = &Type{Name: "()"}

// typing
var (
	AnyType        = &Type{Module: "typing", Name: "Any", Any: true}
	UnionType      = &Type{Module: "typing", Name: "Union", Union: true, Generic: true}
	OptionalType   = generic("typing", "Optional")
	ListAlias      = alias("typing", "list", "List")
	DictAlias      = alias("typing", "dict", "Dict")
	TupleAlias     = alias("typing", "tuple", "Tuple")
	SetAlias       = alias("typing", "set", "Set")
	FrozenSetAlias = alias("typing", "frozenset", "FrozenSet")
	IteratorType   = alias("typing", "Iterator", "Iterator")
	GeneratorType  = alias("typing", "Generator", "Generator")
	CallableType   = alias("typing", "Callable", "Callable")
	NamedTupleType = class("typing", "NamedTuple")
	TypedDictType  = class("typing", "TypedDict")
	TypeChecking   = &Value{Module: "typing", Name: "TYPE_CHECKING"}
)

// datetime
var (
	Datetime  = class("datetime", "datetime")
	Date      = class("datetime", "date")
	Timedelta = class("datetime", "timedelta")
)

// numpy scalar dtypes, as produced by column inference
var (
	NumpyInt64      = class("numpy", "int64")
	NumpyFloat64    = class("numpy", "float64")
	NumpyBool       = class("numpy", "bool_")
	NumpyDatetime64 = class("numpy", "datetime64")
	NumpyObject     = class("numpy", "object_")
	NumpyStr        = class("numpy", "str_")
)

// pandera
var (
	DataFrame      = generic("pandera.typing", "DataFrame")
	Series         = generic("pandera.typing", "Series")
	DataFrameModel = class("pandera.api.pandas.model", "DataFrameModel")
)

var (
	builtinsOnce     sync.Once
	builtinsRegistry *Registry
)

// Builtins returns the process-wide registry of well-known modules.
// It is built once and frozen; layer a NewRegistry on top to add modules.
func Builtins() *Registry {
	builtinsOnce.Do(func() {
		r := NewRegistry(nil)
		for _, t := range []*Type{
			Int, Float, Complex, Str, Bytes, Bool, ObjectT, TypeT,
			List, Dict, Tuple, Set, FrozenSet,
			AnyType, UnionType, OptionalType,
			ListAlias, DictAlias, TupleAlias, SetAlias, FrozenSetAlias,
			IteratorType, GeneratorType, CallableType, NamedTupleType, TypedDictType,
			Datetime, Date, Timedelta,
			NumpyInt64, NumpyFloat64, NumpyBool, NumpyDatetime64, NumpyObject, NumpyStr,
			DataFrame, Series, DataFrameModel,
		} {
			r.mustDefine(t.Module, t.DisplayName(), t)
		}
		r.mustDefine(TypeChecking.Module, TypeChecking.Name, TypeChecking)
		r.frozen = true
		builtinsRegistry = r
	})
	return builtinsRegistry
}
