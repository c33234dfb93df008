package ir

import (
	"strings"
)

// Type is a node in the closed type lattice.
//
// This is a sealed interface - only types in this package implement it.
// Values are immutable; passes build new types instead of editing them.
//
// Type kinds:
//   - Prim: int (native signed word), float, bool, usize, unit
//   - Str: text
//   - Seq, Map, Set, Tuple: containers
//   - Optional, Result: optional value and fallible result
//   - Ref: borrowed reference
//   - Generic: named types (classes, library types) with parameters
//   - Func: callable values (lambdas)
//   - Unknown: transient placeholder, never survives into code generation
//   - Any: terminal fallback
type Type interface {
	typeNode() // Marker method - seals interface to this package
	String() string
}

// PrimKind enumerates primitive types.
type PrimKind int

const (
	KindInt PrimKind = iota
	KindFloat
	KindBool
	KindUsize
	KindUnit
)

// Prim is a primitive type.
type Prim struct {
	Kind PrimKind
}

// Str is the text type.
type Str struct{}

// Seq is a homogeneous growable sequence.
type Seq struct {
	Elem Type
}

// Map is a key/value mapping.
type Map struct {
	Key   Type
	Value Type
}

// Set is an unordered collection of unique values.
type Set struct {
	Elem Type
}

// Tuple is a fixed-size heterogeneous product.
type Tuple struct {
	Elems []Type
}

// Optional is a value that may be absent.
type Optional struct {
	Inner Type
}

// Result is a fallible computation.
type Result struct {
	Ok  Type
	Err Type
}

// Ref is a borrowed reference to Inner.
type Ref struct {
	Mutable  bool
	Lifetime string
	Inner    Type
}

// Generic is a named type with optional parameters.
// User classes are Generic with no parameters.
type Generic struct {
	Name   string
	Params []Type
}

// Func is the type of a callable value.
type Func struct {
	Params []Type
	Result Type
}

// Unknown is the unresolved placeholder.
type Unknown struct{}

// Any is the terminal fallback type.
type Any struct{}

func (Prim) typeNode()     {}
func (Str) typeNode()      {}
func (Seq) typeNode()      {}
func (Map) typeNode()      {}
func (Set) typeNode()      {}
func (Tuple) typeNode()    {}
func (Optional) typeNode() {}
func (Result) typeNode()   {}
func (Ref) typeNode()      {}
func (Generic) typeNode()  {}
func (Func) typeNode()     {}
func (Unknown) typeNode()  {}
func (Any) typeNode()      {}

// Canonical instances of the leaf types.
var (
	IntType    Type = Prim{Kind: KindInt}
	FloatType  Type = Prim{Kind: KindFloat}
	BoolType   Type = Prim{Kind: KindBool}
	UsizeType  Type = Prim{Kind: KindUsize}
	UnitType   Type = Prim{Kind: KindUnit}
	StrType    Type = Str{}
	Unresolved Type = Unknown{}
	AnyType    Type = Any{}
)

// ExceptionClass is the generic name used for caught exception values.
const ExceptionClass = "PyException"

func (p Prim) String() string {
	switch p.Kind {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindUsize:
		return "usize"
	case KindUnit:
		return "None"
	default:
		return "prim?"
	}
}

func (Str) String() string { return "str" }

func (s Seq) String() string { return "list[" + typeString(s.Elem) + "]" }

func (m Map) String() string {
	return "dict[" + typeString(m.Key) + ", " + typeString(m.Value) + "]"
}

func (s Set) String() string { return "set[" + typeString(s.Elem) + "]" }

func (t Tuple) String() string { return "tuple[" + joinTypes(t.Elems) + "]" }

func (o Optional) String() string { return "Optional[" + typeString(o.Inner) + "]" }

func (r Result) String() string {
	return "Result[" + typeString(r.Ok) + ", " + typeString(r.Err) + "]"
}

func (r Ref) String() string {
	var b strings.Builder
	b.WriteString("&")
	if r.Lifetime != "" {
		b.WriteString("'" + r.Lifetime + " ")
	}
	if r.Mutable {
		b.WriteString("mut ")
	}
	b.WriteString(typeString(r.Inner))
	return b.String()
}

func (g Generic) String() string {
	if len(g.Params) == 0 {
		return g.Name
	}
	return g.Name + "[" + joinTypes(g.Params) + "]"
}

func (f Func) String() string {
	return "Callable[[" + joinTypes(f.Params) + "], " + typeString(f.Result) + "]"
}

func (Unknown) String() string { return "?" }

func (Any) String() string { return "Any" }

func typeString(t Type) string {
	if t == nil {
		return "?"
	}
	return t.String()
}

func joinTypes(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = typeString(t)
	}
	return strings.Join(parts, ", ")
}

// OrUnknown returns t, or Unresolved when t is nil.
func OrUnknown(t Type) Type {
	if t == nil {
		return Unresolved
	}
	return t
}

// Equal reports structural equality of two types. Nil equals Unknown.
func Equal(a, b Type) bool {
	a, b = OrUnknown(a), OrUnknown(b)
	switch x := a.(type) {
	case Prim:
		y, ok := b.(Prim)
		return ok && x.Kind == y.Kind
	case Str:
		_, ok := b.(Str)
		return ok
	case Seq:
		y, ok := b.(Seq)
		return ok && Equal(x.Elem, y.Elem)
	case Map:
		y, ok := b.(Map)
		return ok && Equal(x.Key, y.Key) && Equal(x.Value, y.Value)
	case Set:
		y, ok := b.(Set)
		return ok && Equal(x.Elem, y.Elem)
	case Tuple:
		y, ok := b.(Tuple)
		return ok && equalLists(x.Elems, y.Elems)
	case Optional:
		y, ok := b.(Optional)
		return ok && Equal(x.Inner, y.Inner)
	case Result:
		y, ok := b.(Result)
		return ok && Equal(x.Ok, y.Ok) && Equal(x.Err, y.Err)
	case Ref:
		y, ok := b.(Ref)
		return ok && x.Mutable == y.Mutable && x.Lifetime == y.Lifetime && Equal(x.Inner, y.Inner)
	case Generic:
		y, ok := b.(Generic)
		return ok && x.Name == y.Name && equalLists(x.Params, y.Params)
	case Func:
		y, ok := b.(Func)
		return ok && equalLists(x.Params, y.Params) && Equal(x.Result, y.Result)
	case Unknown:
		_, ok := b.(Unknown)
		return ok
	case Any:
		_, ok := b.(Any)
		return ok
	}
	return false
}

func equalLists(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// IsUnknown reports whether t is exactly the Unknown placeholder (or nil).
func IsUnknown(t Type) bool {
	if t == nil {
		return true
	}
	_, ok := t.(Unknown)
	return ok
}

// IsAny reports whether t is the Any fallback.
func IsAny(t Type) bool {
	_, ok := t.(Any)
	return ok
}

// ContainsUnknown reports whether Unknown appears anywhere inside t.
func ContainsUnknown(t Type) bool {
	found := false
	Visit(t, func(n Type) {
		if IsUnknown(n) {
			found = true
		}
	})
	return found
}

// ContainsAny reports whether Any appears anywhere inside t.
func ContainsAny(t Type) bool {
	found := false
	Visit(t, func(n Type) {
		if IsAny(n) {
			found = true
		}
	})
	return found
}

// Visit calls fn for t and every type nested inside it, parents first.
func Visit(t Type, fn func(Type)) {
	t = OrUnknown(t)
	fn(t)
	for _, c := range children(t) {
		Visit(c, fn)
	}
}

func children(t Type) []Type {
	switch x := t.(type) {
	case Seq:
		return []Type{x.Elem}
	case Map:
		return []Type{x.Key, x.Value}
	case Set:
		return []Type{x.Elem}
	case Tuple:
		return x.Elems
	case Optional:
		return []Type{x.Inner}
	case Result:
		return []Type{x.Ok, x.Err}
	case Ref:
		return []Type{x.Inner}
	case Generic:
		return x.Params
	case Func:
		return append(append([]Type{}, x.Params...), x.Result)
	}
	return nil
}

// MapType rebuilds t bottom-up, replacing every nested type with fn(nested).
func MapType(t Type, fn func(Type) Type) Type {
	t = OrUnknown(t)
	switch x := t.(type) {
	case Seq:
		return fn(Seq{Elem: MapType(x.Elem, fn)})
	case Map:
		return fn(Map{Key: MapType(x.Key, fn), Value: MapType(x.Value, fn)})
	case Set:
		return fn(Set{Elem: MapType(x.Elem, fn)})
	case Tuple:
		return fn(Tuple{Elems: mapList(x.Elems, fn)})
	case Optional:
		return fn(Optional{Inner: MapType(x.Inner, fn)})
	case Result:
		return fn(Result{Ok: MapType(x.Ok, fn), Err: MapType(x.Err, fn)})
	case Ref:
		return fn(Ref{Mutable: x.Mutable, Lifetime: x.Lifetime, Inner: MapType(x.Inner, fn)})
	case Generic:
		return fn(Generic{Name: x.Name, Params: mapList(x.Params, fn)})
	case Func:
		return fn(Func{Params: mapList(x.Params, fn), Result: MapType(x.Result, fn)})
	default:
		return fn(t)
	}
}

func mapList(ts []Type, fn func(Type) Type) []Type {
	if ts == nil {
		return nil
	}
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = MapType(t, fn)
	}
	return out
}

// Deref strips any number of reference layers.
func Deref(t Type) Type {
	for {
		r, ok := t.(Ref)
		if !ok {
			return OrUnknown(t)
		}
		t = r.Inner
	}
}

// IsInteger reports whether t is int or usize (after dereferencing).
func IsInteger(t Type) bool {
	p, ok := Deref(t).(Prim)
	return ok && (p.Kind == KindInt || p.Kind == KindUsize)
}

// IsNumeric reports whether t is int, usize or float (after dereferencing).
func IsNumeric(t Type) bool {
	p, ok := Deref(t).(Prim)
	return ok && (p.Kind == KindInt || p.Kind == KindUsize || p.Kind == KindFloat)
}

// IsPrim reports whether t is the primitive of kind k (after dereferencing).
func IsPrim(t Type, k PrimKind) bool {
	p, ok := Deref(t).(Prim)
	return ok && p.Kind == k
}

// IsStr reports whether t is text (after dereferencing).
func IsStr(t Type) bool {
	_, ok := Deref(t).(Str)
	return ok
}

// IsCopy reports whether values of t are cheaply duplicable (bitwise copy).
func IsCopy(t Type) bool {
	switch x := OrUnknown(t).(type) {
	case Prim:
		return true
	case Tuple:
		for _, e := range x.Elems {
			if !IsCopy(e) {
				return false
			}
		}
		return true
	case Optional:
		return IsCopy(x.Inner)
	case Ref:
		return !x.Mutable
	}
	return false
}

// ElemOf returns the type produced by iterating over t, or Unknown.
//
//	list[T], set[T] -> T
//	dict[K, V]      -> K
//	str             -> str
//	range[T]        -> T
func ElemOf(t Type) Type {
	switch x := Deref(t).(type) {
	case Seq:
		return OrUnknown(x.Elem)
	case Set:
		return OrUnknown(x.Elem)
	case Map:
		return OrUnknown(x.Key)
	case Str:
		return StrType
	case Generic:
		if x.Name == "range" && len(x.Params) == 1 {
			return x.Params[0]
		}
		if x.Name == "Iterator" && len(x.Params) == 1 {
			return x.Params[0]
		}
	case Any:
		return AnyType
	}
	return Unresolved
}

// ClassName returns the class name when t is a user class instance.
func ClassName(t Type) (string, bool) {
	g, ok := Deref(t).(Generic)
	if !ok || len(g.Params) > 0 {
		return "", false
	}
	return g.Name, true
}

// RangeOf returns the range type over integers of type elem.
func RangeOf(elem Type) Type {
	return Generic{Name: "range", Params: []Type{elem}}
}

// IteratorOf returns a lazy iterator type over elem.
func IteratorOf(elem Type) Type {
	return Generic{Name: "Iterator", Params: []Type{elem}}
}
