package ir

// Loc is a 1-based source position. Zero means unknown.
type Loc struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Module is the top-level container produced by the bridge.
//
// Decls preserves source order. The structure is immutable after the bridge
// runs; later passes only fill type, binding and ownership slots.
type Module struct {
	Name  string
	Decls []Decl
}

// Decl is a top-level declaration.
//
// This is a sealed interface - only types in this package implement it.
type Decl interface {
	declNode() // Marker method - seals interface to this package
	DeclName() string
}

// Import is a resolved (or unresolved) import declaration.
//
//	import math            -> Module "math", Alias "math"
//	import numpy as np     -> Module "numpy", Alias "np"
//	from os import path    -> Module "os", From, Names [{path path}]
type Import struct {
	Module   string
	Alias    string
	From     bool
	Names    []ImportName
	Target   string            // target-language path from the mapping table
	Rewrites map[string]string // item name -> target expression
	Resolved bool
	Loc      Loc
}

// ImportName is one name in a from-import.
type ImportName struct {
	Name  string
	Alias string
}

// Constant is a module- or class-level constant binding.
type Constant struct {
	Name       string
	Annotation Type
	Type       Type
	Value      Expr
	Loc        Loc
}

// Param is a function parameter.
type Param struct {
	Name       string
	Annotation Type // nil when unannotated
	Default    Expr // nil when required
	Variadic   bool // *args: the type must be a sequence
	KwOnly     bool
	Binding    *Binding
	Loc        Loc
}

// SplitParams separates positional, variadic and keyword-only parameters.
func SplitParams(params []*Param) (pos []*Param, variadic *Param, kw []*Param) {
	for _, p := range params {
		switch {
		case p.Variadic:
			variadic = p
		case p.KwOnly:
			kw = append(kw, p)
		default:
			pos = append(pos, p)
		}
	}
	return pos, variadic, kw
}

// ParamAt returns the parameter receiving argument i of a bound call with n
// arguments: positional arguments first, then variadic elements, then
// keyword-only arguments.
func ParamAt(params []*Param, i, n int) *Param {
	pos, variadic, kw := SplitParams(params)
	if i < len(pos) {
		return pos[i]
	}
	nvar := n - len(pos) - len(kw)
	if nvar < 0 {
		nvar = 0
	}
	if variadic != nil && i < len(pos)+nvar {
		return variadic
	}
	k := i - len(pos) - nvar
	if k >= 0 && k < len(kw) {
		return kw[k]
	}
	return nil
}

// ReceiverMode is how a method takes self.
type ReceiverMode int

const (
	ReceiverNone   ReceiverMode = iota // free function or static method
	ReceiverRef                        // &self
	ReceiverMutRef                     // &mut self
)

func (r ReceiverMode) String() string {
	switch r {
	case ReceiverRef:
		return "&self"
	case ReceiverMutRef:
		return "&mut self"
	default:
		return "none"
	}
}

// Doctest is one interactive example extracted from a docstring.
type Doctest struct {
	Call     Expr
	Expected Expr
	Source   string
	Line     int
}

// Function is a free function or a method.
type Function struct {
	Name   string
	Params []*Param

	// Returns is the return-type slot. It starts Unknown (or the annotation)
	// and is refined by inference.
	Returns          Type
	ReturnAnnotation Type

	Body []Stmt

	Async    bool
	Class    *Class // owning class for methods
	Static   bool
	Receiver ReceiverMode
	Self     *Binding // receiver binding for methods

	// Fallible is set when an uncaught raise can escape the function.
	Fallible bool

	// Skipped is set when the bridge could not represent the body.
	Skipped    bool
	SkipReason string

	Doc      string
	Doctests []Doctest

	// Bindings lists every binding of the body in creation order.
	Bindings []*Binding

	Loc Loc
}

// IsMethod reports whether f belongs to a class.
func (f *Function) IsMethod() bool {
	return f.Class != nil
}

// QualifiedName returns Class.method for methods, the plain name otherwise.
func (f *Function) QualifiedName() string {
	if f.Class != nil {
		return f.Class.Name + "." + f.Name
	}
	return f.Name
}

// Param returns the parameter named name, or nil.
func (f *Function) Param(name string) *Param {
	for _, p := range f.Params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Field is a class field.
type Field struct {
	Name       string
	Annotation Type
	Type       Type
	Default    Expr
	Loc        Loc
}

// Class is a user-defined class.
type Class struct {
	Name      string
	Bases     []string
	Fields    []*Field
	Methods   []*Function
	Constants []*Constant
	Exception bool // derives from an exception class
	Dataclass bool // decorated with @dataclass
	Loc       Loc
}

// Field returns the field named name, or nil.
func (c *Class) Field(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// AddField appends a field unless one with the same name exists.
// Returns the existing or new field.
func (c *Class) AddField(f *Field) *Field {
	if existing := c.Field(f.Name); existing != nil {
		return existing
	}
	c.Fields = append(c.Fields, f)
	return f
}

// Method returns the method named name, or nil.
func (c *Class) Method(name string) *Function {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Constant returns the class constant named name, or nil.
func (c *Class) Constant(name string) *Constant {
	for _, k := range c.Constants {
		if k.Name == name {
			return k
		}
	}
	return nil
}

// Init returns the constructor method, or nil.
func (c *Class) Init() *Function {
	return c.Method("__init__")
}

func (*Import) declNode()   {}
func (*Constant) declNode() {}
func (*Function) declNode() {}
func (*Class) declNode()    {}

func (d *Import) DeclName() string {
	if d.Alias != "" {
		return d.Alias
	}
	return d.Module
}
func (d *Constant) DeclName() string { return d.Name }
func (d *Function) DeclName() string { return d.Name }
func (d *Class) DeclName() string    { return d.Name }

// Functions returns the top-level functions in declaration order.
func (m *Module) Functions() []*Function {
	var out []*Function
	for _, d := range m.Decls {
		if f, ok := d.(*Function); ok {
			out = append(out, f)
		}
	}
	return out
}

// Classes returns the classes in declaration order.
func (m *Module) Classes() []*Class {
	var out []*Class
	for _, d := range m.Decls {
		if c, ok := d.(*Class); ok {
			out = append(out, c)
		}
	}
	return out
}

// Imports returns the imports in declaration order.
func (m *Module) Imports() []*Import {
	var out []*Import
	for _, d := range m.Decls {
		if i, ok := d.(*Import); ok {
			out = append(out, i)
		}
	}
	return out
}

// Constants returns the module constants in declaration order.
func (m *Module) Constants() []*Constant {
	var out []*Constant
	for _, d := range m.Decls {
		if c, ok := d.(*Constant); ok {
			out = append(out, c)
		}
	}
	return out
}

// AllFunctions returns free functions and methods, in declaration order.
func (m *Module) AllFunctions() []*Function {
	var out []*Function
	for _, d := range m.Decls {
		switch n := d.(type) {
		case *Function:
			out = append(out, n)
		case *Class:
			out = append(out, n.Methods...)
		}
	}
	return out
}

// Function returns the top-level function named name, or nil.
func (m *Module) Function(name string) *Function {
	for _, f := range m.Functions() {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Class returns the class named name, or nil.
func (m *Module) Class(name string) *Class {
	for _, c := range m.Classes() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Constant returns the module constant named name, or nil.
func (m *Module) Constant(name string) *Constant {
	for _, c := range m.Constants() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Import returns the import bound to local name, or nil. For from-imports the
// imported item names are matched as well.
func (m *Module) Import(name string) (*Import, string) {
	for _, imp := range m.Imports() {
		if !imp.From && imp.DeclName() == name {
			return imp, ""
		}
		if imp.From {
			for _, n := range imp.Names {
				local := n.Alias
				if local == "" {
					local = n.Name
				}
				if local == name {
					return imp, n.Name
				}
			}
		}
	}
	return nil, ""
}
