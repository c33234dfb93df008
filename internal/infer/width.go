package infer

import (
	"github.com/roach88/pyrs/internal/ir"
)

// widen applies the width law to fn: wherever an integer meets a float, or
// usize meets int, the narrower side records an explicit conversion in its
// Conv slot. Integer literals change type instead of converting.
func (e *Engine) widen(fn *ir.Function) {
	if fn.Skipped {
		return
	}
	ir.WalkBody(fn.Body, func(x ir.Expr) bool {
		x.Base().Conv = nil
		return true
	})
	ir.WalkStmts(fn.Body, func(s ir.Stmt) bool {
		switch n := s.(type) {
		case *ir.Assign:
			if n.Value != nil && len(n.Targets) == 1 {
				e.coerce(n.Value, ir.TypeOf(n.Targets[0]))
			}
		case *ir.Return:
			e.coerce(n.Value, fn.Returns)
		}
		return true
	})
	ir.WalkBody(fn.Body, func(x ir.Expr) bool {
		e.widenExpr(x)
		return true
	})
}

// coerce makes x usable where a value of type want is expected.
func (e *Engine) coerce(x ir.Expr, want ir.Type) {
	if x == nil || want == nil {
		return
	}
	want = ir.Deref(want)
	have := ir.TypeOf(x)
	if _, ok := ir.Deref(have).(ir.Optional); ok {
		if _, isOpt := want.(ir.Optional); !isOpt && !ir.ContainsUnknown(want) && !ir.IsAny(want) {
			// Codegen reports it: None was never excluded here.
			x.Base().Conv = want
		}
		return
	}
	if o, ok := want.(ir.Optional); ok {
		want = ir.Deref(ir.OrUnknown(o.Inner))
	}
	if widthOnly(have, want) {
		if _, isPrim := want.(ir.Prim); !isPrim {
			e.coerceContainer(x, want)
			return
		}
	}
	switch {
	case ir.IsPrim(want, ir.KindUsize) && ir.IsPrim(have, ir.KindInt):
		if isNonNegIntLiteral(x) {
			x.Base().T = ir.UsizeType
			return
		}
		x.Base().Conv = ir.UsizeType
	case ir.IsPrim(want, ir.KindInt) && ir.IsPrim(have, ir.KindUsize):
		if isNonNegIntLiteral(x) {
			x.Base().T = ir.IntType
			return
		}
		x.Base().Conv = ir.IntType
	case ir.IsPrim(want, ir.KindFloat) && ir.IsInteger(have):
		x.Base().Conv = ir.FloatType
	}
}

// widthOnly reports whether have and want differ, but only in the width of
// the integers somewhere inside them.
func widthOnly(have, want ir.Type) bool {
	if have == nil || want == nil || ir.ContainsUnknown(have) || ir.ContainsUnknown(want) {
		return false
	}
	if ir.Equal(have, want) {
		return false
	}
	return ir.Equal(intWidth(have), intWidth(want))
}

func intWidth(t ir.Type) ir.Type {
	return ir.MapType(ir.Deref(t), func(t ir.Type) ir.Type {
		if ir.IsPrim(t, ir.KindUsize) {
			return ir.IntType
		}
		return t
	})
}

// coerceContainer retypes a container built in place and converts any
// other container value as a whole.
func (e *Engine) coerceContainer(x ir.Expr, want ir.Type) {
	switch n := x.(type) {
	case *ir.ListLit:
		n.T = want
		e.coerceAll(n.Elems, ir.ElemOf(want))
	case *ir.SetLit:
		n.T = want
		e.coerceAll(n.Elems, ir.ElemOf(want))
	case *ir.DictLit:
		m, ok := want.(ir.Map)
		if !ok {
			break
		}
		n.T = want
		e.coerceAll(n.Keys, m.Key)
		e.coerceAll(n.Values, m.Value)
	case *ir.TupleLit:
		t, ok := want.(ir.Tuple)
		if !ok || len(t.Elems) != len(n.Elems) {
			break
		}
		n.T = want
		for i, el := range n.Elems {
			e.coerce(el, t.Elems[i])
		}
	case *ir.Comprehension:
		n.T = want
		switch n.Kind {
		case ir.CompDict:
			if m, ok := want.(ir.Map); ok {
				e.coerce(n.Key, m.Key)
				e.coerce(n.Value, m.Value)
			}
		default:
			e.coerce(n.Elem, ir.ElemOf(want))
		}
	case *ir.Ternary:
		n.T = want
		e.coerce(n.Then, want)
		e.coerce(n.Else, want)
	default:
		x.Base().Conv = want
	}
}

// position coerces a sequence position to usize. Negative literals are left
// for codegen, which counts them from the end.
func (e *Engine) position(x ir.Expr) {
	if v, ok := constIndex(x); ok && v < 0 {
		return
	}
	e.coerce(x, ir.UsizeType)
}

func (e *Engine) widenExpr(x ir.Expr) {
	switch n := x.(type) {
	case *ir.Binary:
		e.widenBinary(n)
	case *ir.Unary:
		if n.Op == ir.UNeg && ir.IsPrim(ir.TypeOf(n.X), ir.KindUsize) {
			n.X.Base().Conv = ir.IntType
		}
	case *ir.Index:
		switch c := ir.Deref(ir.TypeOf(n.X)).(type) {
		case ir.Seq, ir.Str:
			e.position(n.Index)
		case ir.Map:
			e.coerce(n.Index, c.Key)
		}
	case *ir.Slice:
		switch ir.Deref(ir.TypeOf(n.X)).(type) {
		case ir.Seq, ir.Str:
			e.position(n.Lower)
			e.position(n.Upper)
		}
	case *ir.Call:
		e.widenCall(n)
	case *ir.ListLit:
		e.coerceAll(n.Elems, ir.ElemOf(ir.TypeOf(n)))
	case *ir.SetLit:
		e.coerceAll(n.Elems, ir.ElemOf(ir.TypeOf(n)))
	case *ir.DictLit:
		if m, ok := ir.Deref(ir.TypeOf(n)).(ir.Map); ok {
			e.coerceAll(n.Keys, m.Key)
			e.coerceAll(n.Values, m.Value)
		}
	case *ir.Ternary:
		e.coerce(n.Then, ir.TypeOf(n))
		e.coerce(n.Else, ir.TypeOf(n))
	case *ir.Comprehension:
		switch n.Kind {
		case ir.CompList, ir.CompSet:
			e.coerce(n.Elem, ir.ElemOf(ir.TypeOf(n)))
		}
	}
}

func (e *Engine) coerceAll(xs []ir.Expr, want ir.Type) {
	for _, x := range xs {
		e.coerce(x, want)
	}
}

func (e *Engine) widenBinary(b *ir.Binary) {
	switch b.Op {
	case ir.OpAnd, ir.OpOr, ir.OpIs, ir.OpIsNot:
		return
	case ir.OpIn, ir.OpNotIn:
		e.coerce(b.L, containerKey(ir.TypeOf(b.R)))
		return
	}
	lt, rt := ir.TypeOf(b.L), ir.TypeOf(b.R)
	switch {
	case ir.IsPrim(lt, ir.KindFloat) && ir.IsInteger(rt):
		b.R.Base().Conv = ir.FloatType
	case ir.IsPrim(rt, ir.KindFloat) && ir.IsInteger(lt):
		b.L.Base().Conv = ir.FloatType
	case b.Op == ir.OpDiv && ir.IsInteger(lt) && ir.IsInteger(rt):
		b.L.Base().Conv = ir.FloatType
		b.R.Base().Conv = ir.FloatType
	case ir.IsPrim(lt, ir.KindUsize) && ir.IsPrim(rt, ir.KindInt):
		e.coerce(b.L, ir.IntType)
	case ir.IsPrim(rt, ir.KindUsize) && ir.IsPrim(lt, ir.KindInt):
		e.coerce(b.R, ir.IntType)
	}
}

func (e *Engine) widenCall(c *ir.Call) {
	switch {
	case c.Callee != nil:
		for i, a := range c.Args {
			p := ir.ParamAt(c.Callee.Params, i, len(c.Args))
			if p == nil || p.Binding == nil {
				continue
			}
			want := p.Binding.Type
			if p.Variadic {
				want = ir.ElemOf(want)
			}
			e.coerce(a, want)
		}
		return
	case c.Ctor != nil && c.Ctor.Dataclass:
		fields := classFields(e.module, c.Ctor)
		for i, a := range c.Args {
			if i < len(fields) {
				e.coerce(a, fields[i].Type)
			}
		}
		return
	}

	if recv, name, ok := c.Method(); ok && c.Builtin != "" {
		switch r := ir.Deref(ir.TypeOf(recv)).(type) {
		case ir.Seq:
			switch name {
			case "insert":
				if len(c.Args) > 1 {
					e.position(c.Args[0])
					e.coerce(c.Args[1], r.Elem)
				}
			case "pop":
				if len(c.Args) > 0 {
					e.position(c.Args[0])
				}
			case "append", "remove", "index", "count":
				e.coerceAll(c.Args, r.Elem)
			}
		case ir.Map:
			switch name {
			case "get", "pop", "setdefault":
				if len(c.Args) > 0 {
					e.coerce(c.Args[0], r.Key)
				}
				if len(c.Args) > 1 {
					e.coerce(c.Args[1], r.Value)
				}
			}
		case ir.Set:
			switch name {
			case "add", "discard", "remove":
				e.coerceAll(c.Args, r.Elem)
			}
		}
		return
	}

	switch c.Builtin {
	case "range":
		e.coerceAll(c.Args, ir.ElemOf(ir.TypeOf(c)))
		return
	case "min", "max":
		if len(c.Args) > 1 {
			e.coerceAll(c.Args, ir.TypeOf(c))
		}
		return
	case "abs":
		e.coerceAll(c.Args, ir.TypeOf(c))
		return
	case "":
	default:
		return
	}

	var params []ir.Type
	switch f := c.Func.(type) {
	case *ir.Attribute:
		params = funcParams(ir.TypeOf(f))
	case *ir.Var:
		params = funcParams(ir.TypeOf(f))
	}
	for i, a := range c.Args {
		if i < len(params) {
			e.coerce(a, params[i])
		}
	}
}
