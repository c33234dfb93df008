package codegen

import (
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/rust"
)

const (
	hashMapPath = "std::collections::HashMap"
	hashSetPath = "std::collections::HashSet"
)

// typ returns the owned Rust type for t.
func (u *unit) typ(t ir.Type) rust.Type {
	switch x := ir.OrUnknown(t).(type) {
	case ir.Prim:
		switch x.Kind {
		case ir.KindInt:
			return rust.Named(u.profile.IntType())
		case ir.KindFloat:
			return rust.Named("f64")
		case ir.KindBool:
			return rust.Named("bool")
		case ir.KindUsize:
			return rust.Named("usize")
		default:
			return rust.Unit
		}
	case ir.Str:
		return rust.Named("String")
	case ir.Seq:
		return rust.Named("Vec", u.typ(x.Elem))
	case ir.Map:
		u.use(hashMapPath)
		return rust.Named("HashMap", u.typ(x.Key), u.typ(x.Value))
	case ir.Set:
		u.use(hashSetPath)
		return rust.Named("HashSet", u.typ(x.Elem))
	case ir.Tuple:
		elems := make([]rust.Type, len(x.Elems))
		for i, e := range x.Elems {
			elems[i] = u.typ(e)
		}
		return rust.TupleType{Elems: elems}
	case ir.Optional:
		return rust.Named("Option", u.typ(x.Inner))
	case ir.Result:
		return rust.Named("Result", u.typ(x.Ok), u.typ(x.Err))
	case ir.Ref:
		return u.refType(x.Inner, x.Mutable)
	case ir.Generic:
		switch x.Name {
		case "range", "Iterator":
			return rust.Named("Vec", u.typ(ir.ElemOf(x)))
		case "File":
			return rust.Named("std::fs::File")
		case ir.ExceptionClass:
			u.helpers[helperException] = true
			return rust.Named(ir.ExceptionClass)
		}
		if c := u.module.Class(x.Name); c != nil && c.Exception {
			u.helpers[helperException] = true
			return rust.Named(ir.ExceptionClass)
		}
		args := make([]rust.Type, len(x.Params))
		for i, p := range x.Params {
			args[i] = u.typ(p)
		}
		return rust.Named(x.Name, args...)
	case ir.Func:
		return rust.Named("Box", rust.Named("dyn "+u.fnSig(x)))
	}
	return rust.Named("Box", rust.Named("dyn std::any::Any"))
}

// fnSig renders Fn(A, B) -> R.
func (u *unit) fnSig(f ir.Func) string {
	impl := u.implFn(f)
	return impl.String()[len("impl "):]
}

func (u *unit) implFn(f ir.Func) rust.ImplFn {
	params := make([]rust.Type, len(f.Params))
	for i, p := range f.Params {
		params[i] = u.typ(p)
	}
	var result rust.Type
	if !ir.IsPrim(f.Result, ir.KindUnit) {
		result = u.typ(f.Result)
	}
	return rust.ImplFn{Params: params, Result: result}
}

// refType returns the borrowed form of t: &str for text, a slice for
// sequences, &T otherwise.
func (u *unit) refType(t ir.Type, mut bool) rust.Type {
	if mut {
		return rust.RefType{Mut: true, Inner: u.typ(t)}
	}
	switch x := ir.Deref(t).(type) {
	case ir.Str:
		return rust.RefType{Inner: rust.Named("str")}
	case ir.Seq:
		return rust.RefType{Inner: rust.SliceType{Elem: u.typ(x.Elem)}}
	}
	return rust.RefType{Inner: u.typ(t)}
}

// paramType is the declared type of a parameter under its pass mode.
func (u *unit) paramType(b *ir.Binding) rust.Type {
	if f, ok := ir.Deref(b.Type).(ir.Func); ok {
		return u.implFn(f)
	}
	switch b.Pass {
	case ir.PassBorrowed:
		return u.refType(b.Type, false)
	case ir.PassMutBorrowed:
		return u.refType(b.Type, true)
	}
	return u.typ(b.Type)
}

// annotate returns the type for a let annotation, or nil when rustc must
// infer it (closures, unresolved types).
func (u *unit) annotate(t ir.Type) rust.Type {
	t = ir.OrUnknown(t)
	if ir.IsAny(t) || ir.ContainsUnknown(t) {
		return nil
	}
	if _, ok := t.(ir.Func); ok {
		return nil
	}
	return u.typ(t)
}

// zero returns the default value of t. ok is false for types without one.
func (u *unit) zero(t ir.Type) (rust.Expr, bool) {
	switch x := ir.OrUnknown(t).(type) {
	case ir.Prim:
		switch x.Kind {
		case ir.KindFloat:
			return &rust.FloatLit{Value: 0}, true
		case ir.KindBool:
			return &rust.BoolLit{Value: false}, true
		case ir.KindUnit:
			return &rust.TupleExpr{}, true
		}
		return rust.Int(0), true
	case ir.Str:
		return rust.CallPath("String::new"), true
	case ir.Seq:
		return rust.CallPath("Vec::new"), true
	case ir.Map:
		u.use(hashMapPath)
		return rust.CallPath("HashMap::new"), true
	case ir.Set:
		u.use(hashSetPath)
		return rust.CallPath("HashSet::new"), true
	case ir.Optional:
		return rust.Id("None"), true
	case ir.Tuple:
		elems := make([]rust.Expr, len(x.Elems))
		for i, e := range x.Elems {
			z, ok := u.zero(e)
			if !ok {
				return nil, false
			}
			elems[i] = z
		}
		return &rust.TupleExpr{Elems: elems}, true
	}
	return nil, false
}

// copyable reports whether values of t are Copy in the generated code.
func copyable(t ir.Type) bool {
	return ir.IsCopy(ir.OrUnknown(t))
}

// isBorrowedParam reports whether b is received by reference.
func isBorrowedParam(b *ir.Binding) bool {
	if b == nil || b.Kind != ir.BindParam {
		return false
	}
	if _, ok := ir.Deref(b.Type).(ir.Func); ok {
		return false
	}
	return b.Pass != ir.PassByValue
}

func isFloat(t ir.Type) bool { return ir.IsPrim(t, ir.KindFloat) }
func isBool(t ir.Type) bool  { return ir.IsPrim(t, ir.KindBool) }
func isUnit(t ir.Type) bool  { return ir.IsPrim(t, ir.KindUnit) }

// isOrd reports whether values of t are totally ordered in Rust.
func isOrd(t ir.Type) bool {
	ordered := true
	ir.Visit(t, func(n ir.Type) {
		if isFloat(n) || ir.IsAny(n) {
			ordered = false
		}
		switch n.(type) {
		case ir.Map, ir.Set, ir.Func:
			ordered = false
		}
	})
	return ordered
}
