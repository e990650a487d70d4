package trace

import (
	"sync"

	"github.com/teranos/typetrace/typesys"
)

// LenientResolver resolves callables through a registry, but stands in a
// parameterless Func for callables of modules the registry knows nothing
// about. Callables missing from a declared module still fail to resolve:
// such a trace is stale.
type LenientResolver struct {
	reg      *typesys.Registry
	declared map[string]bool

	mu    sync.Mutex
	funcs map[[2]string]*typesys.Func
}

// NewLenientResolver wraps reg. The set of declared modules is taken at
// construction time.
func NewLenientResolver(reg *typesys.Registry) *LenientResolver {
	declared := make(map[string]bool)
	for _, m := range reg.Modules() {
		declared[m] = true
	}
	return &LenientResolver{
		reg:      reg,
		declared: declared,
		funcs:    make(map[[2]string]*typesys.Func),
	}
}

// LookupFunc implements FuncResolver. The same stand-in is returned for
// repeated lookups.
func (r *LenientResolver) LookupFunc(module, qualname string) (*typesys.Func, error) {
	if r.declared[module] {
		return r.reg.LookupFunc(module, qualname)
	}

	key := [2]string{module, qualname}
	r.mu.Lock()
	defer r.mu.Unlock()
	fn, ok := r.funcs[key]
	if !ok {
		fn = &typesys.Func{Module: module, Qualname: qualname}
		r.funcs[key] = fn
	}
	return fn, nil
}
