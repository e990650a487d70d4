package hooks

import (
	"reflect"
	"time"

	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/typesys"
)

// AnonymousRecordName names records built from unnamed struct types.
const AnonymousRecordName = "DUMMY_RECORD"

var timeType = reflect.TypeOf(time.Time{})

// StructHook describes a Go struct as a plain record named after its Go
// type, with its exported fields in declaration order.
type StructHook struct{}

func (StructHook) Handles(value any) bool {
	rt := reflect.TypeOf(value)
	return rt != nil && rt.Kind() == reflect.Struct && rt != timeType
}

func (StructHook) Convert(g *Getter, value any) (*typesys.Type, error) {
	rv := reflect.ValueOf(value)
	rt := rv.Type()

	name := rt.Name()
	if name == "" {
		name = AnonymousRecordName
	}

	fields := make([]typesys.Field, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		t, err := g.TypeOf(rv.Field(i).Interface())
		if err != nil {
			return nil, errors.Wrapf(err, "field %s.%s", name, sf.Name)
		}
		fields = append(fields, typesys.Field{Name: sf.Name, Type: t})
	}
	return typesys.NewRecord(name, fields), nil
}
