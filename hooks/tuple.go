package hooks

import (
	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/typesys"
)

// TupleRecordName is the name of records synthesized from tuples.
const TupleRecordName = "DUMMY_NAMED_TUPLE"

// Tuple is a fixed-arity heterogeneous value.
type Tuple []any

// TupleHook describes a Tuple as an anonymous NamedTuple whose fields are
// named a, b, c... after their positions.
type TupleHook struct{}

func (TupleHook) Handles(value any) bool {
	_, ok := value.(Tuple)
	return ok
}

func (TupleHook) Convert(g *Getter, value any) (*typesys.Type, error) {
	tuple := value.(Tuple)
	fields := make([]typesys.Field, 0, len(tuple))
	i := 0
	for name := range AttributeNames(0) {
		if i == len(tuple) {
			break
		}
		t, err := g.TypeOf(tuple[i])
		if err != nil {
			return nil, errors.Wrapf(err, "tuple item %d", i)
		}
		fields = append(fields, typesys.Field{Name: name, Type: t})
		i++
	}
	return typesys.NewDerivedRecord(TupleRecordName, typesys.NamedTupleType, fields), nil
}
