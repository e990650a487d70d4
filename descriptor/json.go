package descriptor

import (
	"bytes"
	"encoding/json"

	"github.com/teranos/typetrace/errors"
)

// Wire keys. Objects are written with these keys in sorted order; composite
// field objects keep declaration order.
const (
	keyBaseClass   = "base_class"
	keyBases       = "bases"
	keyElemTypes   = "elem_types"
	keyIsTypedDict = "is_typed_dict"
	keyModule      = "module"
	keyQualname    = "qualname"
)

// ToJSON encodes d. Equal descriptors always produce identical bytes, which
// the trace store relies on to group duplicate rows.
func ToJSON(d Descriptor) (string, error) {
	if err := validate(d); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	writeDescriptor(&buf, d, false)
	return buf.String(), nil
}

// FromJSON decodes a descriptor produced by ToJSON.
func FromJSON(s string) (Descriptor, error) {
	return decodeRaw(json.RawMessage(s))
}

func validate(d Descriptor) error {
	switch x := d.(type) {
	case Simple:
		return nil
	case Parameterized:
		for _, e := range x.Elements {
			if err := validate(e); err != nil {
				return err
			}
		}
		return nil
	case Composite:
		seen := make(map[string]bool, len(x.Fields))
		for _, f := range x.Fields {
			if seen[f.Name] {
				return errors.Wrapf(errors.ErrSerialization, "record %s declares field %q twice", x.Name, f.Name)
			}
			seen[f.Name] = true
			if err := validate(f.Type); err != nil {
				return err
			}
		}
		if x.Kind == DerivedFrom && len(x.Bases) != 1 {
			return errors.Wrapf(errors.ErrSerialization, "record %s derives from %d bases, want 1", x.Name, len(x.Bases))
		}
		return nil
	}
	return errors.Wrapf(errors.ErrSerialization, "unknown descriptor %T", d)
}

// writeDescriptor writes d as JSON. With blankNames, composite names are
// written empty, which yields the structural template.
func writeDescriptor(buf *bytes.Buffer, d Descriptor, blankNames bool) {
	switch x := d.(type) {
	case Simple:
		buf.WriteByte('{')
		writeKey(buf, keyModule)
		writeString(buf, x.Module)
		buf.WriteByte(',')
		writeKey(buf, keyQualname)
		writeString(buf, x.Name)
		buf.WriteByte('}')

	case Parameterized:
		buf.WriteByte('{')
		writeKey(buf, keyElemTypes)
		buf.WriteByte('[')
		for i, e := range x.Elements {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeDescriptor(buf, e, blankNames)
		}
		buf.WriteString("],")
		writeKey(buf, keyModule)
		writeString(buf, x.Module)
		buf.WriteByte(',')
		writeKey(buf, keyQualname)
		writeString(buf, x.Name)
		buf.WriteByte('}')

	case Composite:
		buf.WriteByte('{')
		switch x.Kind {
		case DerivedFrom:
			writeKey(buf, keyBaseClass)
			if len(x.Bases) > 0 {
				writeRef(buf, x.Bases[0])
			} else {
				buf.WriteString("null")
			}
			buf.WriteByte(',')
		case InheritsFrom:
			writeKey(buf, keyBases)
			buf.WriteByte('[')
			for i, ref := range x.Bases {
				if i > 0 {
					buf.WriteByte(',')
				}
				writeRef(buf, ref)
			}
			buf.WriteString("],")
		}
		writeKey(buf, keyElemTypes)
		buf.WriteByte('{')
		for i, f := range x.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeKey(buf, f.Name)
			writeDescriptor(buf, f.Type, blankNames)
		}
		buf.WriteString("},")
		if x.Kind == TypedRecord {
			writeKey(buf, keyIsTypedDict)
			buf.WriteString("true,")
		}
		writeKey(buf, keyModule)
		buf.WriteString("null,")
		writeKey(buf, keyQualname)
		if blankNames {
			writeString(buf, "")
		} else {
			writeString(buf, x.Name)
		}
		buf.WriteByte('}')

	default:
		buf.WriteString("null")
	}
}

func writeRef(buf *bytes.Buffer, ref TypeRef) {
	buf.WriteByte('{')
	writeKey(buf, keyModule)
	writeString(buf, ref.Module)
	buf.WriteByte(',')
	writeKey(buf, keyQualname)
	writeString(buf, ref.Name)
	buf.WriteByte('}')
}

func writeKey(buf *bytes.Buffer, key string) {
	writeString(buf, key)
	buf.WriteByte(':')
}

func writeString(buf *bytes.Buffer, s string) {
	// Marshal of a string cannot fail
	b, _ := json.Marshal(s)
	buf.Write(b)
}

func decodeRaw(raw json.RawMessage) (Descriptor, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "decode type descriptor: %v", err)
	}
	if obj == nil {
		return nil, errors.NewInvalidRequestError("type descriptor is null")
	}

	var name string
	if err := unmarshalField(obj, keyQualname, &name); err != nil {
		return nil, err
	}

	elems, hasElems := obj[keyElemTypes]
	elems = bytes.TrimSpace(elems)
	switch {
	case !hasElems || bytes.Equal(elems, []byte("null")):
		var module string
		if err := unmarshalField(obj, keyModule, &module); err != nil {
			return nil, err
		}
		return Simple{Module: module, Name: name}, nil

	case elems[0] == '[':
		var module string
		if err := unmarshalField(obj, keyModule, &module); err != nil {
			return nil, err
		}
		var rawElems []json.RawMessage
		if err := json.Unmarshal(elems, &rawElems); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidRequest, "decode elem_types of %s.%s: %v", module, name, err)
		}
		out := Parameterized{Module: module, Name: name, Elements: make([]Descriptor, 0, len(rawElems))}
		for _, re := range rawElems {
			d, err := decodeRaw(re)
			if err != nil {
				return nil, err
			}
			out.Elements = append(out.Elements, d)
		}
		return out, nil

	case elems[0] == '{':
		fields, err := decodeOrderedFields(elems)
		if err != nil {
			return nil, errors.Wrapf(err, "record %s", name)
		}
		out := Composite{Name: name, Fields: fields}
		if err := decodeKind(obj, &out); err != nil {
			return nil, errors.Wrapf(err, "record %s", name)
		}
		return out, nil
	}

	return nil, errors.NewInvalidRequestError("elem_types of %s must be an array or an object", name)
}

func decodeKind(obj map[string]json.RawMessage, out *Composite) error {
	var typedDict bool
	if raw, ok := obj[keyIsTypedDict]; ok {
		if err := json.Unmarshal(raw, &typedDict); err != nil {
			return errors.Wrapf(errors.ErrInvalidRequest, "decode %s: %v", keyIsTypedDict, err)
		}
	}
	if typedDict {
		out.Kind = TypedRecord
		return nil
	}
	if raw, ok := obj[keyBaseClass]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		ref, err := decodeRef(raw)
		if err != nil {
			return err
		}
		out.Kind = DerivedFrom
		out.Bases = []TypeRef{ref}
		return nil
	}
	if raw, ok := obj[keyBases]; ok {
		var rawRefs []json.RawMessage
		if err := json.Unmarshal(raw, &rawRefs); err != nil {
			return errors.Wrapf(errors.ErrInvalidRequest, "decode %s: %v", keyBases, err)
		}
		out.Kind = InheritsFrom
		out.Bases = make([]TypeRef, 0, len(rawRefs))
		for _, rr := range rawRefs {
			ref, err := decodeRef(rr)
			if err != nil {
				return err
			}
			out.Bases = append(out.Bases, ref)
		}
		return nil
	}
	out.Kind = Record
	return nil
}

func decodeRef(raw json.RawMessage) (TypeRef, error) {
	var ref struct {
		Module   *string `json:"module"`
		Qualname *string `json:"qualname"`
	}
	if err := json.Unmarshal(raw, &ref); err != nil {
		return TypeRef{}, errors.Wrapf(errors.ErrInvalidRequest, "decode base reference: %v", err)
	}
	if ref.Module == nil || ref.Qualname == nil {
		return TypeRef{}, errors.NewInvalidRequestError("base reference needs module and qualname")
	}
	return TypeRef{Module: *ref.Module, Name: *ref.Qualname}, nil
}

// decodeOrderedFields reads a JSON object keeping its key order.
func decodeOrderedFields(raw json.RawMessage) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "decode record fields: %v", err)
	}

	fields := make([]Field, 0)
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidRequest, "decode record fields: %v", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.NewInvalidRequestError("record field name %v is not a string", tok)
		}
		if seen[key] {
			return nil, errors.NewInvalidRequestError("record field %q appears twice", key)
		}
		seen[key] = true

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidRequest, "decode record field %q: %v", key, err)
		}
		d, err := decodeRaw(value)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", key)
		}
		fields = append(fields, Field{Name: key, Type: d})
	}
	return fields, nil
}

func unmarshalField(obj map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := obj[key]
	if !ok {
		return errors.NewInvalidRequestError("type descriptor is missing %q", key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "decode %q: %v", key, err)
	}
	return nil
}
