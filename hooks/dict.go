package hooks

import (
	"sort"

	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/typesys"
)

const (
	// TypedDictName is the name of records synthesized from small maps.
	TypedDictName = "DUMMY_TYPED_DICT"
	// MaxTypedDictSize is the largest map described as a TypedDict; larger
	// maps fall back to Dict[K, V].
	MaxTypedDictSize = 16
)

// DictHook describes a small non-empty map[string]any as an anonymous
// TypedDict with one field per key, keys sorted.
type DictHook struct{}

func (DictHook) Handles(value any) bool {
	m, ok := value.(map[string]any)
	return ok && len(m) > 0 && len(m) <= MaxTypedDictSize
}

func (DictHook) Convert(g *Getter, value any) (*typesys.Type, error) {
	m := value.(map[string]any)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]typesys.Field, 0, len(keys))
	for _, k := range keys {
		t, err := g.TypeOf(m[k])
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", k)
		}
		fields = append(fields, typesys.Field{Name: k, Type: t})
	}
	return typesys.NewTypedDict(TypedDictName, fields), nil
}
