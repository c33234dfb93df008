package bridge

import (
	"fmt"

	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/pyast"
)

var primitiveAnnotations = map[string]ir.Type{
	"int":    ir.IntType,
	"float":  ir.FloatType,
	"bool":   ir.BoolType,
	"str":    ir.StrType,
	"None":   ir.UnitType,
	"bytes":  ir.Generic{Name: "bytes"},
	"Any":    ir.AnyType,
	"object": ir.AnyType,
}

func (b *Bridge) annotation(e pyast.Expr) ir.Type {
	return convertAnnotation(e, b.classes)
}

// ParseAnnotation converts annotation text such as "list[float]" to a type.
// classes names the user classes that may appear.
func ParseAnnotation(src string, classes map[string]bool) (ir.Type, error) {
	e, err := pyast.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("annotation %q: %w", src, err)
	}
	return convertAnnotation(e, classes), nil
}

// convertAnnotation maps an annotation expression to an IR type. Names it
// does not know become Any.
func convertAnnotation(e pyast.Expr, classes map[string]bool) ir.Type {
	conv := func(x pyast.Expr) ir.Type { return convertAnnotation(x, classes) }
	switch x := e.(type) {
	case *pyast.Constant:
		switch x.Kind {
		case pyast.ConstNone:
			return ir.UnitType
		case pyast.ConstStr:
			// Forward reference: "ClassName" or "list[ClassName]".
			inner, err := pyast.ParseExpr(x.Value)
			if err != nil {
				return ir.AnyType
			}
			return conv(inner)
		}
		return ir.AnyType
	case *pyast.Name:
		return namedType(x.ID, classes)
	case *pyast.Attribute:
		// typing.List, t.Optional ...
		return namedType(x.Attr, classes)
	case *pyast.BinOp:
		if x.Op == "|" {
			return union([]ir.Type{conv(x.Left), conv(x.Right)})
		}
	case *pyast.Subscript:
		return subscriptType(x, classes)
	}
	return ir.AnyType
}

func namedType(name string, classes map[string]bool) ir.Type {
	if t, ok := primitiveAnnotations[name]; ok {
		return t
	}
	switch name {
	case "list", "List", "Sequence", "Iterable", "MutableSequence":
		return ir.Seq{Elem: ir.Unresolved}
	case "dict", "Dict", "Mapping", "MutableMapping":
		return ir.Map{Key: ir.Unresolved, Value: ir.Unresolved}
	case "set", "Set", "frozenset", "FrozenSet":
		return ir.Set{Elem: ir.Unresolved}
	case "Iterator", "Generator":
		return ir.IteratorOf(ir.Unresolved)
	}
	if classes[name] {
		return ir.Generic{Name: name}
	}
	return ir.AnyType
}

func subscriptType(x *pyast.Subscript, classes map[string]bool) ir.Type {
	conv := func(e pyast.Expr) ir.Type { return convertAnnotation(e, classes) }
	var args []pyast.Expr
	if t, ok := x.Slice.(*pyast.Tuple); ok {
		args = t.Elts
	} else {
		args = []pyast.Expr{x.Slice}
	}
	arg := func(i int) ir.Type {
		if i < len(args) {
			return conv(args[i])
		}
		return ir.Unresolved
	}

	var name string
	switch base := x.Value.(type) {
	case *pyast.Name:
		name = base.ID
	case *pyast.Attribute:
		name = base.Attr
	default:
		return ir.AnyType
	}

	switch name {
	case "list", "List", "Sequence", "Iterable", "MutableSequence":
		return ir.Seq{Elem: arg(0)}
	case "dict", "Dict", "Mapping", "MutableMapping":
		return ir.Map{Key: arg(0), Value: arg(1)}
	case "set", "Set", "frozenset", "FrozenSet":
		return ir.Set{Elem: arg(0)}
	case "Iterator", "Generator":
		return ir.IteratorOf(arg(0))
	case "Optional":
		return ir.Optional{Inner: arg(0)}
	case "Union":
		ts := make([]ir.Type, len(args))
		for i := range args {
			ts[i] = arg(i)
		}
		return union(ts)
	case "tuple", "Tuple":
		if len(args) == 2 {
			if c, ok := args[1].(*pyast.Constant); ok && c.Kind == pyast.ConstEllipsis {
				return ir.Seq{Elem: arg(0)}
			}
		}
		elems := make([]ir.Type, len(args))
		for i := range args {
			elems[i] = arg(i)
		}
		return ir.Tuple{Elems: elems}
	case "Callable":
		f := ir.Func{Result: arg(1)}
		if l, ok := args[0].(*pyast.List); ok {
			for _, p := range l.Elts {
				f.Params = append(f.Params, conv(p))
			}
		}
		return f
	}
	return ir.AnyType
}

// union handles the two-armed "T | None" form; wider unions are Any.
func union(ts []ir.Type) ir.Type {
	var rest []ir.Type
	optional := false
	for _, t := range ts {
		if ir.IsPrim(t, ir.KindUnit) {
			optional = true
			continue
		}
		rest = append(rest, t)
	}
	switch {
	case len(rest) == 1 && optional:
		return ir.Optional{Inner: rest[0]}
	case len(rest) == 1:
		return rest[0]
	case len(rest) > 1 && allEqual(rest):
		if optional {
			return ir.Optional{Inner: rest[0]}
		}
		return rest[0]
	}
	return ir.AnyType
}

func allEqual(ts []ir.Type) bool {
	for _, t := range ts[1:] {
		if !ir.Equal(t, ts[0]) {
			return false
		}
	}
	return true
}
