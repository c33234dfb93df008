package infer

import (
	"github.com/roach88/pyrs/internal/ir"
)

// Unify combines two candidate types for one slot.
//
//	T, T                     -> T
//	Unknown, T               -> T
//	int, usize               -> int   (the width law)
//	int|usize, float         -> float
//	T, Optional[U]           -> Optional[Unify(T, U)]
//	containers               -> element-wise
//	Any, T                   -> Any
//
// Any other pair fails: the result is Any and ok is false.
func Unify(a, b ir.Type) (t ir.Type, ok bool) {
	a, b = ir.OrUnknown(a), ir.OrUnknown(b)
	switch {
	case ir.IsUnknown(a):
		return b, true
	case ir.IsUnknown(b):
		return a, true
	case ir.IsAny(a) || ir.IsAny(b):
		return ir.AnyType, true
	case ir.Equal(a, b):
		return a, true
	}

	if ra, isRef := a.(ir.Ref); isRef {
		return Unify(ra.Inner, b)
	}
	if rb, isRef := b.(ir.Ref); isRef {
		return Unify(a, rb.Inner)
	}

	if oa, isOpt := a.(ir.Optional); isOpt {
		inner, ok := Unify(oa.Inner, optionalInner(b))
		if !ok {
			return ir.AnyType, false
		}
		return ir.Optional{Inner: inner}, true
	}
	if _, isOpt := b.(ir.Optional); isOpt {
		return Unify(b, a)
	}

	switch x := a.(type) {
	case ir.Prim:
		y, isPrim := b.(ir.Prim)
		if !isPrim {
			break
		}
		return unifyPrim(x, y)
	case ir.Seq:
		if y, same := b.(ir.Seq); same {
			elem, ok := Unify(x.Elem, y.Elem)
			if ok {
				return ir.Seq{Elem: elem}, true
			}
		}
	case ir.Set:
		if y, same := b.(ir.Set); same {
			elem, ok := Unify(x.Elem, y.Elem)
			if ok {
				return ir.Set{Elem: elem}, true
			}
		}
	case ir.Map:
		if y, same := b.(ir.Map); same {
			k, okK := Unify(x.Key, y.Key)
			v, okV := Unify(x.Value, y.Value)
			if okK && okV {
				return ir.Map{Key: k, Value: v}, true
			}
		}
	case ir.Tuple:
		if y, same := b.(ir.Tuple); same && len(x.Elems) == len(y.Elems) {
			elems, ok := unifyLists(x.Elems, y.Elems)
			if ok {
				return ir.Tuple{Elems: elems}, true
			}
		}
	case ir.Generic:
		if y, same := b.(ir.Generic); same && x.Name == y.Name && len(x.Params) == len(y.Params) {
			params, ok := unifyLists(x.Params, y.Params)
			if ok {
				return ir.Generic{Name: x.Name, Params: params}, true
			}
		}
	case ir.Func:
		if y, same := b.(ir.Func); same && len(x.Params) == len(y.Params) {
			params, okP := unifyLists(x.Params, y.Params)
			res, okR := Unify(x.Result, y.Result)
			if okP && okR {
				return ir.Func{Params: params, Result: res}, true
			}
		}
	case ir.Result:
		if y, same := b.(ir.Result); same {
			okT, ok1 := Unify(x.Ok, y.Ok)
			errT, ok2 := Unify(x.Err, y.Err)
			if ok1 && ok2 {
				return ir.Result{Ok: okT, Err: errT}, true
			}
		}
	}
	return ir.AnyType, false
}

func optionalInner(t ir.Type) ir.Type {
	if o, ok := t.(ir.Optional); ok {
		return o.Inner
	}
	return t
}

func unifyPrim(x, y ir.Prim) (ir.Type, bool) {
	if x.Kind == y.Kind {
		return x, true
	}
	num := func(p ir.Prim) bool {
		return p.Kind == ir.KindInt || p.Kind == ir.KindUsize || p.Kind == ir.KindFloat
	}
	if !num(x) || !num(y) {
		return ir.AnyType, false
	}
	if x.Kind == ir.KindFloat || y.Kind == ir.KindFloat {
		return ir.FloatType, true
	}
	return ir.IntType, true
}

func unifyLists(a, b []ir.Type) ([]ir.Type, bool) {
	out := make([]ir.Type, len(a))
	for i := range a {
		t, ok := Unify(a[i], b[i])
		if !ok {
			return nil, false
		}
		out[i] = t
	}
	return out, true
}

// unifyAll folds Unify over ts. The bool is false when any step failed.
func unifyAll(ts []ir.Type) (ir.Type, bool) {
	var acc ir.Type = ir.Unresolved
	ok := true
	for _, t := range ts {
		var stepOK bool
		acc, stepOK = Unify(acc, t)
		ok = ok && stepOK
	}
	return acc, ok
}
