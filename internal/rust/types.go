package rust

import "strings"

// Type is a Rust type.
//
// This is a sealed interface - only types in this package implement it.
type Type interface {
	typeNode() // Marker method - seals interface to this package
	String() string
}

// Path is a named type with optional generic arguments: i64, String,
// Vec<i64>, HashMap<String, i64>, std::fs::File.
type Path struct {
	Name string
	Args []Type
}

// RefType is &T or &mut T.
type RefType struct {
	Mut   bool
	Inner Type
}

// TupleType is (A, B). An empty TupleType is the unit type ().
type TupleType struct {
	Elems []Type
}

// SliceType is [T], used behind a reference as &[T].
type SliceType struct {
	Elem Type
}

// ImplFn is impl Fn(A, B) -> R, used for closure parameters.
type ImplFn struct {
	Params []Type
	Result Type // nil for ()
}

// InferType is the placeholder _.
type InferType struct{}

func (Path) typeNode()      {}
func (RefType) typeNode()   {}
func (TupleType) typeNode() {}
func (SliceType) typeNode() {}
func (ImplFn) typeNode()    {}
func (InferType) typeNode() {}

// Named returns a type path with generic arguments.
func Named(name string, args ...Type) Path {
	return Path{Name: name, Args: args}
}

// Unit is the () type.
var Unit = TupleType{}

// IsUnit reports whether t is ().
func IsUnit(t Type) bool {
	tt, ok := t.(TupleType)
	return t == nil || ok && len(tt.Elems) == 0
}

func (t Path) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	return t.Name + "<" + typeList(t.Args) + ">"
}

func (t RefType) String() string {
	if t.Mut {
		return "&mut " + t.Inner.String()
	}
	return "&" + t.Inner.String()
}

func (t TupleType) String() string {
	if len(t.Elems) == 1 {
		return "(" + t.Elems[0].String() + ",)"
	}
	return "(" + typeList(t.Elems) + ")"
}

func (t SliceType) String() string {
	return "[" + t.Elem.String() + "]"
}

func (t ImplFn) String() string {
	s := "impl Fn(" + typeList(t.Params) + ")"
	if t.Result != nil && !IsUnit(t.Result) {
		s += " -> " + t.Result.String()
	}
	return s
}

func (InferType) String() string { return "_" }

func typeList(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
