// Package stubs turns decoded call traces into Python stub files.
//
// Records synthesized at capture time (anonymous NamedTuples, pandera
// models, TypedDicts, Go structs) become generated classes. Each place a
// signature names one of them is a RecordRef, so that deduplication can
// rename every use of a merged class at once.
package stubs

import (
	"sort"
	"strconv"
	"strings"

	"github.com/teranos/typetrace/descriptor"
)

// RecordRef is one site in a signature annotation that names a generated
// class.
type RecordRef struct {
	Name string
}

// Annotation is a type annotation as it appears in a stub.
type Annotation struct {
	Module string
	Name   string
	Args   []*Annotation
	// Applied is set for subscripted generics, including Tuple[()].
	Applied bool
	// Union members that render alike are written once.
	Union bool
	// Ref is set when the annotation names a generated class; Module and
	// Name are then unused.
	Ref *RecordRef
}

// Param is one function parameter. A nil Type means unannotated.
type Param struct {
	Name string
	Type *Annotation
}

// FunctionStub is the inferred signature of one callable.
type FunctionStub struct {
	Qualname string
	Params   []Param
	// nil means the call was never observed to return
	Return *Annotation
}

// ClassField is one annotated attribute of a generated class.
type ClassField struct {
	Name string
	Type *Annotation
}

// ClassStub is a class generated for a synthesized record.
type ClassStub struct {
	Name   string
	Record descriptor.Composite
	Fields []ClassField
	// Bases are the rendered base classes, in order.
	Bases []*Annotation

	template string
	refs     map[*RecordRef]struct{}
}

// NewClassStub creates a class for record, named name.
func NewClassStub(name string, record descriptor.Composite) *ClassStub {
	return &ClassStub{
		Name:     name,
		Record:   record,
		template: descriptor.Template(record),
		refs:     make(map[*RecordRef]struct{}),
	}
}

// Template is the structural template of the class's record.
func (c *ClassStub) Template() string {
	return c.template
}

// AddRef registers a reference site.
func (c *ClassStub) AddRef(ref *RecordRef) {
	c.refs[ref] = struct{}{}
}

// Refs returns the reference sites, ordered by name for stable output.
func (c *ClassStub) Refs() []*RecordRef {
	out := make([]*RecordRef, 0, len(c.refs))
	for ref := range c.refs {
		out = append(out, ref)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HasRef reports whether ref is one of the class's reference sites.
func (c *ClassStub) HasRef(ref *RecordRef) bool {
	_, ok := c.refs[ref]
	return ok
}

// UpdateRefs points every reference site at the class's current name.
func (c *ClassStub) UpdateRefs() {
	for ref := range c.refs {
		ref.Name = c.Name
	}
}

// ModuleStub is everything rendered into one module's stub file.
type ModuleStub struct {
	Module           string
	Functions        []*FunctionStub
	GeneratedClasses []*ClassStub

	names map[string]bool
}

// NewModuleStub creates an empty stub for module.
func NewModuleStub(module string) *ModuleStub {
	return &ModuleStub{
		Module: module,
		names:  make(map[string]bool),
	}
}

// AddClass adds a generated class, renaming it with a numeric suffix if a
// class of the same name already exists in the module. It returns the class.
func (m *ModuleStub) AddClass(c *ClassStub) *ClassStub {
	c.Name = m.uniqueName(c.Name)
	m.names[c.Name] = true
	m.GeneratedClasses = append(m.GeneratedClasses, c)
	return c
}

func (m *ModuleStub) uniqueName(base string) string {
	if !m.names[base] {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if !m.names[candidate] {
			return candidate
		}
	}
}

// Import is one "from Module import Names" line.
type Import struct {
	Module string
	Names  []string
}

// Imports lists what the stub's annotations need imported, modules and
// names sorted. Builtins and the module itself need no import.
func (m *ModuleStub) Imports() []Import {
	need := make(map[string]map[string]bool)
	var visit func(a *Annotation)
	visit = func(a *Annotation) {
		if a == nil {
			return
		}
		if a.Union {
			if members := a.members(); len(members) == 1 {
				visit(members[0])
				return
			}
		}
		if a.Ref == nil && a.Module != "" && a.Module != "builtins" && a.Module != m.Module {
			if need[a.Module] == nil {
				need[a.Module] = make(map[string]bool)
			}
			// Outer.Inner is reached through Outer
			need[a.Module][strings.SplitN(a.Name, ".", 2)[0]] = true
		}
		for _, arg := range a.Args {
			visit(arg)
		}
	}
	for _, fn := range m.Functions {
		for _, p := range fn.Params {
			visit(p.Type)
		}
		visit(fn.Return)
	}
	for _, c := range m.GeneratedClasses {
		for _, b := range c.Bases {
			visit(b)
		}
		for _, f := range c.Fields {
			visit(f.Type)
		}
	}

	modules := make([]string, 0, len(need))
	for mod := range need {
		modules = append(modules, mod)
	}
	sort.Strings(modules)

	out := make([]Import, 0, len(modules))
	for _, mod := range modules {
		names := make([]string, 0, len(need[mod]))
		for n := range need[mod] {
			names = append(names, n)
		}
		sort.Strings(names)
		out = append(out, Import{Module: mod, Names: names})
	}
	return out
}
