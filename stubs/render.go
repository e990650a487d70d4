package stubs

import (
	"fmt"
	"sort"
	"strings"
)

// pythonKeywords are reserved words in Python that need special handling
var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// toPythonIdent converts an identifier to a valid Python identifier
// Adds underscore suffix for Python keywords
func toPythonIdent(s string) string {
	if pythonKeywords[s] {
		return s + "_"
	}
	return s
}

// String renders a as it appears in a stub.
func (a *Annotation) String() string {
	var sb strings.Builder
	a.writeTo(&sb)
	return sb.String()
}

func (a *Annotation) writeTo(sb *strings.Builder) {
	if a.Ref != nil {
		sb.WriteString(a.Ref.Name)
		return
	}
	args := a.Args
	if a.Union {
		// distinct records merged by DedupeModule end up with one name
		if args = a.members(); len(args) == 1 {
			args[0].writeTo(sb)
			return
		}
	}
	sb.WriteString(a.Name)
	if !a.Applied {
		return
	}
	sb.WriteByte('[')
	if len(args) == 0 {
		sb.WriteString("()")
	}
	for i, arg := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		arg.writeTo(sb)
	}
	sb.WriteByte(']')
}

// members returns the arguments of a union without repeats, first
// occurrence kept.
func (a *Annotation) members() []*Annotation {
	seen := make(map[string]bool, len(a.Args))
	out := make([]*Annotation, 0, len(a.Args))
	for _, arg := range a.Args {
		if s := arg.String(); !seen[s] {
			seen[s] = true
			out = append(out, arg)
		}
	}
	return out
}

// Render writes the module's stub file: imports, generated classes, then
// functions. Methods (qualnames Class.method) are grouped under their class.
func (m *ModuleStub) Render() string {
	var sections []string

	if imports := m.Imports(); len(imports) > 0 {
		var sb strings.Builder
		for _, imp := range imports {
			sb.WriteString(fmt.Sprintf("from %s import %s\n", imp.Module, strings.Join(imp.Names, ", ")))
		}
		sections = append(sections, strings.TrimRight(sb.String(), "\n"))
	}

	for _, c := range m.GeneratedClasses {
		sections = append(sections, renderClass(c))
	}

	root := &classBlock{}
	for _, fn := range m.Functions {
		root.add(strings.Split(fn.Qualname, "."), fn)
	}
	for _, fn := range root.functions {
		sections = append(sections, renderFunction(fn, 0))
	}
	for _, name := range root.childOrder() {
		sections = append(sections, root.children[name].render(name, 0))
	}

	if len(sections) == 0 {
		return ""
	}
	return strings.Join(sections, "\n\n\n") + "\n"
}

func renderClass(c *ClassStub) string {
	var sb strings.Builder
	sb.WriteString("class " + c.Name)
	if len(c.Bases) > 0 {
		bases := make([]string, len(c.Bases))
		for i, b := range c.Bases {
			bases[i] = b.String()
		}
		sb.WriteString("(" + strings.Join(bases, ", ") + ")")
	}
	sb.WriteString(":\n")

	if len(c.Fields) == 0 {
		sb.WriteString("    pass\n")
	}
	for _, f := range c.Fields {
		sb.WriteString(fmt.Sprintf("    %s: %s\n", toPythonIdent(f.Name), f.Type))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderFunction(fn *FunctionStub, depth int) string {
	name := fn.Qualname
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}

	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		if p.Type == nil {
			params[i] = p.Name
		} else {
			params[i] = p.Name + ": " + p.Type.String()
		}
	}

	line := strings.Repeat("    ", depth) + "def " + name + "(" + strings.Join(params, ", ") + ")"
	if fn.Return != nil {
		line += " -> " + fn.Return.String()
	}
	return line + ": ..."
}

// classBlock groups methods by the class path of their qualname.
type classBlock struct {
	functions []*FunctionStub
	children  map[string]*classBlock
}

func (c *classBlock) add(path []string, fn *FunctionStub) {
	if len(path) == 1 {
		c.functions = append(c.functions, fn)
		return
	}
	if c.children == nil {
		c.children = make(map[string]*classBlock)
	}
	child := c.children[path[0]]
	if child == nil {
		child = &classBlock{}
		c.children[path[0]] = child
	}
	child.add(path[1:], fn)
}

func (c *classBlock) childOrder() []string {
	names := make([]string, 0, len(c.children))
	for name := range c.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *classBlock) render(name string, depth int) string {
	indent := strings.Repeat("    ", depth)
	parts := []string{indent + "class " + name + ":"}
	var body []string
	for _, fn := range c.functions {
		body = append(body, renderFunction(fn, depth+1))
	}
	for _, child := range c.childOrder() {
		body = append(body, c.children[child].render(child, depth+1))
	}
	return strings.Join(parts, "\n") + "\n" + strings.Join(body, "\n")
}
