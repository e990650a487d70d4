package stubs

import (
	"sort"

	"github.com/teranos/typetrace/descriptor"
	"github.com/teranos/typetrace/errors"
	"github.com/teranos/typetrace/trace"
	"github.com/teranos/typetrace/typesys"
)

// observed collects every type seen for one callable.
type observed struct {
	fn      *typesys.Func
	args    map[string][]*typesys.Type
	argSeen []string
	returns []*typesys.Type
	yields  []*typesys.Type
}

func (o *observed) add(t trace.CallTrace) {
	names := make([]string, 0, len(t.ArgTypes))
	for name := range t.ArgTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := o.args[name]; !ok {
			o.argSeen = append(o.argSeen, name)
		}
		o.args[name] = append(o.args[name], t.ArgTypes[name])
	}
	if t.ReturnType != nil {
		o.returns = append(o.returns, t.ReturnType)
	}
	if t.YieldType != nil {
		o.yields = append(o.yields, t.YieldType)
	}
}

// paramOrder is the declared parameter order followed by any other
// observed arguments in first-seen order.
func (o *observed) paramOrder() []string {
	order := make([]string, 0, len(o.fn.Params)+len(o.argSeen))
	declared := make(map[string]bool, len(o.fn.Params))
	for _, p := range o.fn.Params {
		declared[p] = true
		order = append(order, p)
	}
	for _, name := range o.argSeen {
		if !declared[name] {
			order = append(order, name)
		}
	}
	return order
}

// BuildModuleStubs builds one stub per module from traces. Every argument
// is annotated with the union of its observed types; generators return
// Iterator[Y] or Generator[Y, None, R]. Each synthesized record met on the
// way becomes a generated class with its own reference site, so
// DedupeModule should run before rendering.
func BuildModuleStubs(traces []trace.CallTrace) (map[string]*ModuleStub, error) {
	byModule := make(map[string]map[string]*observed)
	for _, t := range traces {
		if t.Func == nil {
			continue
		}
		funcs := byModule[t.Func.Module]
		if funcs == nil {
			funcs = make(map[string]*observed)
			byModule[t.Func.Module] = funcs
		}
		o := funcs[t.Func.Qualname]
		if o == nil {
			o = &observed{fn: t.Func, args: make(map[string][]*typesys.Type)}
			funcs[t.Func.Qualname] = o
		}
		o.add(t)
	}

	out := make(map[string]*ModuleStub, len(byModule))
	for module, funcs := range byModule {
		qualnames := make([]string, 0, len(funcs))
		for q := range funcs {
			qualnames = append(qualnames, q)
		}
		sort.Strings(qualnames)

		b := &builder{stub: NewModuleStub(module)}
		for _, q := range qualnames {
			fs, err := b.function(funcs[q])
			if err != nil {
				return nil, errors.Wrapf(err, "build stub for %s.%s", module, q)
			}
			b.stub.Functions = append(b.stub.Functions, fs)
		}
		out[module] = b.stub
	}
	return out, nil
}

type builder struct {
	stub *ModuleStub
}

func (b *builder) function(o *observed) (*FunctionStub, error) {
	fs := &FunctionStub{Qualname: o.fn.Qualname}
	for _, name := range o.paramOrder() {
		p := Param{Name: name}
		if types := o.args[name]; len(types) > 0 {
			t, err := union(types)
			if err != nil {
				return nil, err
			}
			if p.Type, err = b.annotate(t); err != nil {
				return nil, errors.Wrapf(err, "parameter %s", name)
			}
		}
		fs.Params = append(fs.Params, p)
	}

	ret, err := returnType(o.returns, o.yields)
	if err != nil {
		return nil, err
	}
	if ret != nil {
		if fs.Return, err = b.annotate(ret); err != nil {
			return nil, errors.Wrap(err, "return type")
		}
	}
	return fs, nil
}

func union(types []*typesys.Type) (*typesys.Type, error) {
	return typesys.Apply(typesys.UnionType, types...)
}

func returnType(returns, yields []*typesys.Type) (*typesys.Type, error) {
	if len(yields) == 0 {
		if len(returns) == 0 {
			return nil, nil
		}
		return union(returns)
	}
	y, err := union(yields)
	if err != nil {
		return nil, err
	}
	r := typesys.NoneType
	if len(returns) > 0 {
		if r, err = union(returns); err != nil {
			return nil, err
		}
	}
	if r == typesys.NoneType {
		return typesys.Apply(typesys.IteratorType, y)
	}
	return typesys.Apply(typesys.GeneratorType, y, typesys.NoneType, r)
}

// annotate converts t, generating a class for every synthesized record.
func (b *builder) annotate(t *typesys.Type) (*Annotation, error) {
	switch {
	case t == nil:
		return nil, errors.Wrap(errors.ErrSerialization, "nil type handle")

	case t.IsRecord():
		return b.record(t)

	case t.IsApplied():
		if t.Union && len(t.Args) == 2 {
			for i, arg := range t.Args {
				if arg == typesys.NoneType {
					inner, err := b.annotate(t.Args[1-i])
					if err != nil {
						return nil, err
					}
					return &Annotation{Module: "typing", Name: "Optional", Args: []*Annotation{inner}, Applied: true}, nil
				}
			}
		}
		a := &Annotation{Module: t.Module, Name: t.DisplayName(), Applied: true, Union: t.Union}
		for _, arg := range t.Args {
			if arg == typesys.EmptyTuple {
				continue
			}
			inner, err := b.annotate(arg)
			if err != nil {
				return nil, err
			}
			a.Args = append(a.Args, inner)
		}
		return a, nil

	case t == typesys.NoneType:
		return &Annotation{Module: "builtins", Name: "None"}, nil
	}
	return &Annotation{Module: t.Module, Name: t.DisplayName()}, nil
}

func (b *builder) record(t *typesys.Type) (*Annotation, error) {
	d, err := descriptor.Encode(t)
	if err != nil {
		return nil, err
	}
	comp, ok := d.(descriptor.Composite)
	if !ok {
		return nil, errors.AssertionFailedf("record %s encoded as %T", t.Name, d)
	}

	c := b.stub.AddClass(NewClassStub(t.Name, comp))
	switch {
	case t.TypedDict:
		c.Bases = []*Annotation{{Module: "typing", Name: "TypedDict"}}
	case t.Base != nil:
		base, err := b.annotate(t.Base)
		if err != nil {
			return nil, err
		}
		c.Bases = []*Annotation{base}
	default:
		for _, bt := range t.Bases {
			base, err := b.annotate(bt)
			if err != nil {
				return nil, err
			}
			c.Bases = append(c.Bases, base)
		}
	}
	for _, f := range t.Fields {
		ft, err := b.annotate(f.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s of %s", f.Name, t.Name)
		}
		c.Fields = append(c.Fields, ClassField{Name: f.Name, Type: ft})
	}

	ref := &RecordRef{Name: c.Name}
	c.AddRef(ref)
	return &Annotation{Ref: ref}, nil
}
