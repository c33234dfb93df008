package infer

import (
	"sort"

	"github.com/roach88/pyrs/internal/ir"
)

// builtinFunc computes the result type of a builtin call from the resolved
// argument types. args excludes keyword arguments.
type builtinFunc func(args []ir.Type, c *ir.Call) ir.Type

func always(t ir.Type) builtinFunc {
	return func([]ir.Type, *ir.Call) ir.Type { return t }
}

func arg(args []ir.Type, i int) ir.Type {
	if i < len(args) {
		return ir.OrUnknown(args[i])
	}
	return ir.Unresolved
}

func elemOfArg(i int) func([]ir.Type, *ir.Call) ir.Type {
	return func(args []ir.Type, _ *ir.Call) ir.Type {
		return ir.ElemOf(arg(args, i))
	}
}

var builtinFuncs = map[string]builtinFunc{
	"print":      always(ir.UnitType),
	"len":        always(ir.UsizeType),
	"int":        always(ir.IntType),
	"float":      always(ir.FloatType),
	"str":        always(ir.StrType),
	"repr":       always(ir.StrType),
	"bool":       always(ir.BoolType),
	"chr":        always(ir.StrType),
	"ord":        always(ir.IntType),
	"hex":        always(ir.StrType),
	"bin":        always(ir.StrType),
	"oct":        always(ir.StrType),
	"format":     always(ir.StrType),
	"id":         always(ir.IntType),
	"callable":   always(ir.BoolType),
	"input":      always(ir.StrType),
	"hash":       always(ir.IntType),
	"isinstance": always(ir.BoolType),
	"any":        always(ir.BoolType),
	"all":        always(ir.BoolType),
	"open":       always(ir.Generic{Name: "File"}),
	"super":      always(ir.AnyType),
	"range":      rangeResult,
	"abs": func(args []ir.Type, _ *ir.Call) ir.Type {
		if ir.IsPrim(arg(args, 0), ir.KindUsize) {
			return ir.UsizeType
		}
		return arg(args, 0)
	},
	"round": func(args []ir.Type, _ *ir.Call) ir.Type {
		if len(args) > 1 {
			return ir.FloatType
		}
		return ir.IntType
	},
	"pow": func(args []ir.Type, _ *ir.Call) ir.Type {
		t, _ := Unify(arg(args, 0), arg(args, 1))
		return t
	},
	"divmod": func(args []ir.Type, _ *ir.Call) ir.Type {
		t, _ := Unify(arg(args, 0), arg(args, 1))
		return ir.Tuple{Elems: []ir.Type{t, t}}
	},
	"min": minMax,
	"max": minMax,
	"sum": func(args []ir.Type, _ *ir.Call) ir.Type {
		return ir.ElemOf(arg(args, 0))
	},
	"sorted": func(args []ir.Type, _ *ir.Call) ir.Type {
		return ir.Seq{Elem: ir.ElemOf(arg(args, 0))}
	},
	"reversed": func(args []ir.Type, _ *ir.Call) ir.Type {
		return ir.IteratorOf(ir.ElemOf(arg(args, 0)))
	},
	"enumerate": func(args []ir.Type, _ *ir.Call) ir.Type {
		return ir.IteratorOf(ir.Tuple{Elems: []ir.Type{ir.UsizeType, ir.ElemOf(arg(args, 0))}})
	},
	"zip": func(args []ir.Type, _ *ir.Call) ir.Type {
		elems := make([]ir.Type, len(args))
		for i := range args {
			elems[i] = ir.ElemOf(args[i])
		}
		return ir.IteratorOf(ir.Tuple{Elems: elems})
	},
	"list": func(args []ir.Type, _ *ir.Call) ir.Type {
		return ir.Seq{Elem: ir.ElemOf(arg(args, 0))}
	},
	"tuple": func(args []ir.Type, _ *ir.Call) ir.Type {
		return ir.Seq{Elem: ir.ElemOf(arg(args, 0))}
	},
	"set": func(args []ir.Type, _ *ir.Call) ir.Type {
		return ir.Set{Elem: ir.ElemOf(arg(args, 0))}
	},
	"dict": func(args []ir.Type, _ *ir.Call) ir.Type {
		if tup, ok := ir.ElemOf(arg(args, 0)).(ir.Tuple); ok && len(tup.Elems) == 2 {
			return ir.Map{Key: tup.Elems[0], Value: tup.Elems[1]}
		}
		if m, ok := ir.Deref(arg(args, 0)).(ir.Map); ok {
			return m
		}
		return ir.Map{Key: ir.Unresolved, Value: ir.Unresolved}
	},
	"iter": func(args []ir.Type, _ *ir.Call) ir.Type {
		return ir.IteratorOf(ir.ElemOf(arg(args, 0)))
	},
	"next": elemOfArg(0),
	"map": func(args []ir.Type, _ *ir.Call) ir.Type {
		if f, ok := arg(args, 0).(ir.Func); ok {
			return ir.IteratorOf(ir.OrUnknown(f.Result))
		}
		return ir.IteratorOf(ir.Unresolved)
	},
	"filter": func(args []ir.Type, _ *ir.Call) ir.Type {
		return ir.IteratorOf(ir.ElemOf(arg(args, 1)))
	},
}

// rangeResult types range(...) over usize when every bound is usize or a
// non-negative literal and at least one is usize; over int otherwise.
func rangeResult(args []ir.Type, c *ir.Call) ir.Type {
	usize := false
	for i, a := range args {
		switch {
		case ir.IsPrim(a, ir.KindUsize):
			usize = true
		case isNonNegIntLiteral(c.Args[i]):
		default:
			return ir.RangeOf(ir.IntType)
		}
	}
	if usize {
		return ir.RangeOf(ir.UsizeType)
	}
	return ir.RangeOf(ir.IntType)
}

func minMax(args []ir.Type, _ *ir.Call) ir.Type {
	if len(args) == 1 {
		return ir.ElemOf(args[0])
	}
	t, _ := unifyAll(args)
	return t
}

// lambdaParamHint returns the type a lambda passed as a key or mapping
// function to builtin receives: the element of the iterated argument.
func lambdaParamHint(builtin string, args []ir.Expr) ir.Type {
	switch builtin {
	case "sorted", "min", "max":
		if len(args) > 0 {
			return ir.ElemOf(ir.TypeOf(args[0]))
		}
	case "map", "filter":
		if len(args) > 1 {
			return ir.ElemOf(ir.TypeOf(args[1]))
		}
	}
	return ir.Unresolved
}

// methodResult types a builtin method call on a receiver of type recv.
// ok is false when recv has no such method.
func methodResult(recv ir.Type, name string, args []ir.Type) (t ir.Type, ok bool) {
	switch r := ir.Deref(recv).(type) {
	case ir.Seq:
		elem := ir.OrUnknown(r.Elem)
		switch name {
		case "append", "extend", "insert", "remove", "sort", "reverse", "clear":
			return ir.UnitType, true
		case "pop":
			return elem, true
		case "index", "count":
			return ir.UsizeType, true
		case "copy":
			return r, true
		}
	case ir.Map:
		switch name {
		case "get":
			if len(args) > 1 {
				return ir.OrUnknown(r.Value), true
			}
			return ir.Optional{Inner: ir.OrUnknown(r.Value)}, true
		case "keys":
			return ir.IteratorOf(ir.OrUnknown(r.Key)), true
		case "values":
			return ir.IteratorOf(ir.OrUnknown(r.Value)), true
		case "items":
			return ir.IteratorOf(ir.Tuple{Elems: []ir.Type{ir.OrUnknown(r.Key), ir.OrUnknown(r.Value)}}), true
		case "pop", "setdefault":
			return ir.OrUnknown(r.Value), true
		case "update", "clear":
			return ir.UnitType, true
		case "copy":
			return r, true
		}
	case ir.Set:
		switch name {
		case "add", "discard", "remove", "update", "clear":
			return ir.UnitType, true
		case "union", "intersection", "difference", "copy":
			return r, true
		case "issubset", "issuperset", "isdisjoint":
			return ir.BoolType, true
		}
	case ir.Str:
		switch name {
		case "upper", "lower", "strip", "lstrip", "rstrip", "replace", "title", "capitalize", "join", "format", "center", "zfill":
			return ir.StrType, true
		case "split", "splitlines":
			return ir.Seq{Elem: ir.StrType}, true
		case "startswith", "endswith", "isdigit", "isalpha", "isspace", "isupper", "islower":
			return ir.BoolType, true
		case "find":
			return ir.IntType, true
		case "count":
			return ir.UsizeType, true
		}
	case ir.Generic:
		if r.Name == "File" {
			switch name {
			case "read":
				return ir.StrType, true
			case "readlines":
				return ir.Seq{Elem: ir.StrType}, true
			case "write", "close":
				return ir.UnitType, true
			}
		}
		if r.Name == ir.ExceptionClass && name == "args" {
			return ir.Seq{Elem: ir.StrType}, true
		}
	case ir.Any:
		return ir.AnyType, true
	}
	return ir.Unresolved, false
}

// capabilities maps method names that only one builtin container kind
// offers to the shape they imply for an unresolved receiver.
var capabilities = map[string]ir.Type{
	"append":     ir.Seq{Elem: ir.Unresolved},
	"extend":     ir.Seq{Elem: ir.Unresolved},
	"insert":     ir.Seq{Elem: ir.Unresolved},
	"sort":       ir.Seq{Elem: ir.Unresolved},
	"reverse":    ir.Seq{Elem: ir.Unresolved},
	"add":        ir.Set{Elem: ir.Unresolved},
	"discard":    ir.Set{Elem: ir.Unresolved},
	"keys":       ir.Map{Key: ir.Unresolved, Value: ir.Unresolved},
	"values":     ir.Map{Key: ir.Unresolved, Value: ir.Unresolved},
	"items":      ir.Map{Key: ir.Unresolved, Value: ir.Unresolved},
	"setdefault": ir.Map{Key: ir.Unresolved, Value: ir.Unresolved},
	"upper":      ir.StrType,
	"lower":      ir.StrType,
	"strip":      ir.StrType,
	"startswith": ir.StrType,
	"endswith":   ir.StrType,
	"split":      ir.StrType,
	"splitlines": ir.StrType,
	"isdigit":    ir.StrType,
}

var mutatingMethods = map[string]bool{
	"append": true, "extend": true, "insert": true, "pop": true, "remove": true,
	"sort": true, "reverse": true, "clear": true, "add": true, "discard": true,
	"update": true, "setdefault": true, "write": true,
}

// IsMutatingMethod reports whether calling name on a value of type recv
// mutates the receiver in place.
func IsMutatingMethod(recv ir.Type, name string) bool {
	if !mutatingMethods[name] {
		return false
	}
	switch r := ir.Deref(recv).(type) {
	case ir.Seq, ir.Map, ir.Set:
		return true
	case ir.Generic:
		return r.Name == "File" && name == "write"
	}
	return false
}

// exceptionNames are builtin exception classes usable in raise and except.
var exceptionNames = map[string]bool{
	"Exception": true, "BaseException": true, "ValueError": true, "TypeError": true,
	"KeyError": true, "IndexError": true, "RuntimeError": true, "ArithmeticError": true,
	"ZeroDivisionError": true, "LookupError": true, "AttributeError": true,
	"NotImplementedError": true, "OSError": true, "IOError": true, "AssertionError": true,
	"StopIteration": true, "FileNotFoundError": true, "OverflowError": true,
}

// IsBuiltin reports whether name resolves to a builtin function or
// exception class.
func IsBuiltin(name string) bool {
	_, fn := builtinFuncs[name]
	return fn || exceptionNames[name]
}

// Builtins returns the names of every builtin function, sorted.
func Builtins() []string {
	out := make([]string, 0, len(builtinFuncs))
	for name := range builtinFuncs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func isNonNegIntLiteral(e ir.Expr) bool {
	lit, ok := e.(*ir.Literal)
	return ok && lit.Kind == ir.LitInt && lit.Int >= 0
}

// isIntLiteral reports whether e is an integer literal or a negated one.
func isIntLiteral(e ir.Expr) bool {
	if u, ok := e.(*ir.Unary); ok && u.Op == ir.UNeg {
		e = u.X
	}
	lit, ok := e.(*ir.Literal)
	return ok && lit.Kind == ir.LitInt
}
