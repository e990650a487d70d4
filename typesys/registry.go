package typesys

import (
	"sort"

	"github.com/teranos/typetrace/errors"
)

// Registry maps module names to their namespaces.
// A registry may layer on a parent; lookups fall through to it.
type Registry struct {
	parent  *Registry
	modules map[string]map[string]Object
	frozen  bool
}

// NewRegistry creates an empty registry on top of parent (which may be nil).
func NewRegistry(parent *Registry) *Registry {
	return &Registry{
		parent:  parent,
		modules: make(map[string]map[string]Object),
	}
}

// Define binds name in module to obj.
func (r *Registry) Define(module, name string, obj Object) error {
	if r.frozen {
		return errors.AssertionFailedf("registry is read-only, cannot define %s.%s", module, name)
	}
	if module == "" || name == "" {
		return errors.NewInvalidRequestError("module and name are required (got %q, %q)", module, name)
	}
	if obj == nil {
		return errors.NewInvalidRequestError("cannot bind nil to %s.%s", module, name)
	}
	ns, ok := r.modules[module]
	if !ok {
		ns = make(map[string]Object)
		r.modules[module] = ns
	}
	if _, exists := ns[name]; exists {
		return errors.Wrapf(errors.ErrInvalidRequest, "%s.%s is already defined", module, name)
	}
	ns[name] = obj
	return nil
}

func (r *Registry) mustDefine(module, name string, obj Object) {
	if err := r.Define(module, name, obj); err != nil {
		panic(err)
	}
}

// DefineFunc binds a callable under its qualname.
func (r *Registry) DefineFunc(fn *Func) error {
	if fn == nil {
		return errors.NewInvalidRequestError("cannot define nil func")
	}
	return r.Define(fn.Module, fn.Qualname, fn)
}

// Lookup resolves module.name, consulting parents last.
func (r *Registry) Lookup(module, name string) (Object, bool) {
	for reg := r; reg != nil; reg = reg.parent {
		if obj, ok := reg.modules[module][name]; ok {
			return obj, true
		}
	}
	return nil, false
}

// LookupFunc resolves a callable by module and qualname.
func (r *Registry) LookupFunc(module, qualname string) (*Func, error) {
	obj, ok := r.Lookup(module, qualname)
	if !ok {
		return nil, errors.Wrapf(errors.ErrCallableNotFound, "%s.%s", module, qualname)
	}
	fn, ok := obj.(*Func)
	if !ok {
		return nil, errors.WithHintf(
			errors.Wrapf(errors.ErrCallableNotFound, "%s.%s", module, qualname),
			"%s.%s is bound, but not to a callable", module, qualname)
	}
	return fn, nil
}

// Modules lists every module visible through r, sorted.
func (r *Registry) Modules() []string {
	seen := make(map[string]bool)
	for reg := r; reg != nil; reg = reg.parent {
		for m := range reg.modules {
			seen[m] = true
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
