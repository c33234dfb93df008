package codegen

import (
	"strconv"

	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/rust"
	"github.com/roach88/pyrs/internal/target"
)

// Expression contexts:
//
//	place     the expression as written, without taking ownership
//	value     an owned value: places of non-Copy types are cloned unless
//	          this is the binding's last use
//	borrow    a shared reference for a & parameter
//	strRef    a &str
//	refExact  a &T for APIs that take exactly &T (Vec::contains)
//	cond      a bool for if and while heads
//
// A string literal, a borrowed text parameter and a text constant are &str
// places; every other text expression is an owned String.

// place lowers e and applies the conversion inference recorded on it.
func (l *lowerer) place(e ir.Expr) rust.Expr {
	if e == nil {
		return &rust.TupleExpr{}
	}
	conv := e.Base().Conv
	if conv == nil || ir.Equal(conv, ir.TypeOf(e)) {
		return l.raw(e)
	}
	if _, ok := ir.Deref(ir.TypeOf(e)).(ir.Optional); ok {
		if _, ok := ir.Deref(conv).(ir.Optional); !ok {
			return l.unsupported(l.fn, "Optional value",
				"used where "+conv.String()+" is required; check it against None first", e.Base().Loc)
		}
	}
	switch ir.Deref(conv).(type) {
	case ir.Seq, ir.Set, ir.Map:
		return l.widened(e, conv)
	}
	if v, ok := intLiteral(e); ok {
		if isFloat(conv) {
			return &rust.FloatLit{Value: float64(v)}
		}
		return rust.Int(v)
	}
	return &rust.Cast{X: l.raw(e), Type: l.typ(conv)}
}

func (l *lowerer) raw(e ir.Expr) rust.Expr {
	switch x := e.(type) {
	case *ir.Literal:
		return l.literal(x)
	case *ir.Var:
		return l.varRef(x)
	case *ir.Binary:
		return l.binary(x)
	case *ir.Unary:
		return l.unary(x)
	case *ir.Call:
		return l.call(x, false)
	case *ir.Index:
		return l.index(x)
	case *ir.Attribute:
		return l.attribute(x)
	case *ir.ListLit:
		elem := ir.ElemOf(ir.TypeOf(x))
		if len(x.Elems) == 0 {
			return rust.CallPath("Vec::new")
		}
		return &rust.Macro{Name: "vec", Bracket: true, Args: l.values(x.Elems, elem)}
	case *ir.TupleLit:
		t, _ := ir.Deref(ir.TypeOf(x)).(ir.Tuple)
		elems := make([]rust.Expr, len(x.Elems))
		for i, el := range x.Elems {
			want := ir.TypeOf(el)
			if i < len(t.Elems) {
				want = t.Elems[i]
			}
			elems[i] = l.valueAs(el, want)
		}
		return &rust.TupleExpr{Elems: elems}
	case *ir.SetLit:
		l.use(hashSetPath)
		return l.fromArray("HashSet", l.values(x.Elems, ir.ElemOf(ir.TypeOf(x))), ir.TypeOf(x))
	case *ir.DictLit:
		l.use(hashMapPath)
		m, _ := ir.Deref(ir.TypeOf(x)).(ir.Map)
		pairs := make([]rust.Expr, len(x.Keys))
		for i := range x.Keys {
			pairs[i] = &rust.TupleExpr{Elems: []rust.Expr{l.valueAs(x.Keys[i], m.Key), l.valueAs(x.Values[i], m.Value)}}
		}
		return l.fromArray("HashMap", pairs, ir.TypeOf(x))
	case *ir.Comprehension:
		return l.comprehension(x)
	case *ir.Lambda:
		return l.closure(x, false)
	case *ir.Slice:
		return l.slice(x)
	case *ir.FString:
		return l.fstring(x)
	case *ir.Await:
		if c, ok := x.X.(*ir.Call); ok {
			return l.call(c, true)
		}
		return &rust.AwaitExpr{X: l.place(x.X)}
	case *ir.Ternary:
		t := ir.TypeOf(x)
		return &rust.If{
			Cond: l.cond(x.Cond),
			Then: &rust.Block{Tail: l.valueAs(x.Then, t)},
			Else: &rust.BlockExpr{Block: &rust.Block{Tail: l.valueAs(x.Else, t)}},
		}
	}
	return l.unsupported(l.fn, ir.ExprKind(e), "no lowering rule", e.Base().Loc)
}

// fromArray builds a HashSet or HashMap from literal elements.
func (l *lowerer) fromArray(kind string, elems []rust.Expr, t ir.Type) rust.Expr {
	if len(elems) == 0 {
		return rust.CallPath(kind + "::new")
	}
	if l.profile.Supports(target.FeatureCollectionFromArray) {
		return rust.CallPath(kind+"::from", &rust.ArrayLit{Elems: elems})
	}
	vec := &rust.Macro{Name: "vec", Bracket: true, Args: elems}
	return collect(rust.Method(vec, "into_iter"), l.typ(t))
}

func (l *lowerer) values(xs []ir.Expr, want ir.Type) []rust.Expr {
	out := make([]rust.Expr, len(xs))
	for i, x := range xs {
		out[i] = l.valueAs(x, want)
	}
	return out
}

func collect(it rust.Expr, t rust.Type) rust.Expr {
	return &rust.MethodCall{Recv: it, Name: "collect", Turbofish: []rust.Type{t}}
}

// intLiteral returns the value of an integer literal or a negated one.
func intLiteral(e ir.Expr) (int64, bool) {
	neg := false
	if u, ok := e.(*ir.Unary); ok && u.Op == ir.UNeg {
		neg, e = true, u.X
	}
	lit, ok := e.(*ir.Literal)
	if !ok || lit.Kind != ir.LitInt {
		return 0, false
	}
	if neg {
		return -lit.Int, true
	}
	return lit.Int, true
}

func (l *lowerer) literal(x *ir.Literal) rust.Expr {
	switch x.Kind {
	case ir.LitInt:
		if isFloat(x.T) {
			return &rust.FloatLit{Value: float64(x.Int)}
		}
		return rust.Int(x.Int)
	case ir.LitFloat:
		return &rust.FloatLit{Value: x.Float}
	case ir.LitStr:
		return rust.Str(x.Str)
	case ir.LitBool:
		return &rust.BoolLit{Value: x.Bool}
	case ir.LitNone:
		return rust.Id("None")
	case ir.LitBytes:
		return rust.Method(rust.Method(rust.Str(x.Str), "as_bytes"), "to_vec")
	}
	return l.unsupported(l.fn, "literal", x.Kind.String(), x.Loc)
}

func (l *lowerer) varRef(v *ir.Var) rust.Expr {
	switch v.Ref {
	case ir.RefConstant:
		if c, ok := v.Decl.(*ir.Constant); ok && !l.constItem(c) {
			return &rust.Call{Func: rust.Id(ident(v.Name))}
		}
	case ir.RefImport:
		if imp, item := l.module.Import(v.Name); imp != nil && item != "" {
			if path, ok := l.member(imp, item); ok {
				return &rust.PathExpr{Path: path}
			}
		}
		return l.unsupported(l.fn, v.Name, "unmapped import", v.Loc)
	case ir.RefBuiltin:
		return l.unsupported(l.fn, v.Name, "builtin used as a value", v.Loc)
	}
	if l.isSelf(v) {
		return rust.Id(l.selfName)
	}
	if v.Narrowed {
		// A None test has excluded None here.
		if copyable(ir.TypeOf(v)) {
			return rust.Method(rust.Id(ident(v.Name)), "unwrap")
		}
		return rust.Method(rust.Method(rust.Id(ident(v.Name)), "as_ref"), "unwrap")
	}
	return rust.Id(ident(v.Name))
}

func (l *lowerer) isSelf(v *ir.Var) bool {
	return l.fn != nil && l.fn.Self != nil && v.Binding == l.fn.Self
}

// isRef reports whether the Rust variable for v already holds a reference.
func (l *lowerer) isRef(e ir.Expr) bool {
	v, ok := e.(*ir.Var)
	if !ok || v.Binding == nil {
		return false
	}
	if l.isSelf(v) {
		return !l.ctor
	}
	return isBorrowedParam(v.Binding) || l.refVars[v.Binding]
}

// isStrRef reports whether e lowers to a &str place.
func (l *lowerer) isStrRef(e ir.Expr) bool {
	if !ir.IsStr(ir.TypeOf(e)) {
		return false
	}
	switch x := e.(type) {
	case *ir.Literal:
		return x.Kind == ir.LitStr
	case *ir.Var:
		if x.Ref == ir.RefConstant {
			c, ok := x.Decl.(*ir.Constant)
			return ok && l.constItem(c)
		}
		return l.isRef(x)
	case *ir.Attribute:
		return l.classConstant(x) != nil
	}
	return false
}

// needsClone reports whether an owned copy of a place of type t needs an
// explicit clone.
func needsClone(t ir.Type) bool {
	if copyable(t) {
		return false
	}
	switch x := ir.Deref(t).(type) {
	case ir.Func, ir.Any, ir.Unknown:
		return false
	case ir.Generic:
		return x.Name != "File"
	}
	return true
}

// widened converts the elements of a container whose element types differ
// from to only in integer width, collecting a new container.
func (l *lowerer) widened(e ir.Expr, to ir.Type) rust.Expr {
	var body rust.Expr
	var params []rust.Param
	switch from := ir.Deref(ir.TypeOf(e)).(type) {
	case ir.Seq:
		if !elemConvertible(from.Elem, ir.ElemOf(to)) {
			break
		}
		params, body = []rust.Param{{Name: "v"}}, l.elemConv(rust.Id("v"), from.Elem, ir.ElemOf(to))
	case ir.Set:
		if !elemConvertible(from.Elem, ir.ElemOf(to)) {
			break
		}
		l.use(hashSetPath)
		params, body = []rust.Param{{Name: "v"}}, l.elemConv(rust.Id("v"), from.Elem, ir.ElemOf(to))
	case ir.Map:
		m, ok := ir.Deref(to).(ir.Map)
		if !ok || !elemConvertible(from.Key, m.Key) || !elemConvertible(from.Value, m.Value) {
			break
		}
		l.use(hashMapPath)
		params = []rust.Param{{Name: "(k, v)"}}
		body = &rust.TupleExpr{Elems: []rust.Expr{
			l.elemConv(rust.Id("k"), from.Key, m.Key),
			l.elemConv(rust.Id("v"), from.Value, m.Value),
		}}
	}
	if body == nil {
		return l.unsupported(l.fn, "container conversion",
			ir.TypeOf(e).String()+" to "+to.String(), e.Base().Loc)
	}
	it := rust.Method(l.raw(e), "iter")
	return collect(rust.Method(it, "map", &rust.Closure{Params: params, Body: body}), l.typ(to))
}

func elemConvertible(from, to ir.Type) bool {
	if ir.Equal(from, to) {
		return true
	}
	_, a := ir.Deref(from).(ir.Prim)
	_, b := ir.Deref(to).(ir.Prim)
	return a && b
}

// elemConv converts one borrowed element v of type from to an owned to.
func (l *lowerer) elemConv(v rust.Expr, from, to ir.Type) rust.Expr {
	switch {
	case ir.Equal(from, to) && copyable(from):
		return &rust.Unary{Op: "*", X: v}
	case ir.Equal(from, to):
		return cloneOf(v)
	}
	return &rust.Cast{X: &rust.Unary{Op: "*", X: v}, Type: l.typ(to)}
}

func cloneOf(x rust.Expr) rust.Expr {
	return rust.Method(x, "clone")
}

// value lowers e to an owned value.
func (l *lowerer) value(e ir.Expr) rust.Expr {
	if e == nil {
		return &rust.TupleExpr{}
	}
	x := l.place(e)
	t := ir.EffectiveType(e)
	if c := e.Base().Conv; c != nil && !ir.Equal(c, ir.TypeOf(e)) {
		if _, isPrim := ir.Deref(c).(ir.Prim); !isPrim {
			// Converted containers are freshly collected.
			return x
		}
	}
	switch n := e.(type) {
	case *ir.Literal:
		if n.Kind == ir.LitStr {
			return rust.Method(x, "to_string")
		}
	case *ir.Var:
		return l.ownVar(n, x, t)
	case *ir.Attribute:
		if c := l.classConstant(n); c != nil {
			if ir.IsStr(c.Type) {
				return rust.Method(x, "to_string")
			}
			return x
		}
		if n.Rewrite == "" && needsClone(t) {
			return cloneOf(x)
		}
	case *ir.Index:
		if !ir.IsStr(ir.TypeOf(n.X)) && needsClone(t) {
			return cloneOf(x)
		}
	case *ir.Call:
		if n.Builtin == "setdefault" {
			if copyable(t) {
				return &rust.Unary{Op: "*", X: x}
			}
			return cloneOf(x)
		}
	}
	return x
}

func (l *lowerer) ownVar(v *ir.Var, x rust.Expr, t ir.Type) rust.Expr {
	switch v.Ref {
	case ir.RefConstant:
		if c, ok := v.Decl.(*ir.Constant); ok && ir.IsStr(c.Type) && l.constItem(c) {
			return rust.Method(x, "to_string")
		}
		return x
	case ir.RefFunction, ir.RefClass, ir.RefImport, ir.RefBuiltin:
		return x
	}
	b := v.Binding
	if b == nil {
		return x
	}
	if v.Narrowed {
		if copyable(t) {
			return x
		}
		return cloneOf(x)
	}
	if l.isRef(v) {
		switch ir.Deref(b.Type).(type) {
		case ir.Str:
			return rust.Method(x, "to_string")
		case ir.Seq:
			return rust.Method(x, "to_vec")
		}
		if copyable(t) {
			return &rust.Unary{Op: "*", X: x}
		}
		return cloneOf(x)
	}
	if !needsClone(t) || v.LastUse {
		return x
	}
	return cloneOf(x)
}

// valueAs lowers e to an owned value of type want: values flowing into an
// Optional slot are wrapped in Some, lambdas stored as values are boxed.
func (l *lowerer) valueAs(e ir.Expr, want ir.Type) rust.Expr {
	if e == nil {
		return &rust.TupleExpr{}
	}
	want = ir.OrUnknown(want)
	have := ir.Deref(ir.EffectiveType(e))
	switch w := ir.Deref(want).(type) {
	case ir.Optional:
		if ir.IsNone(e) {
			return rust.Id("None")
		}
		switch have.(type) {
		case ir.Optional, ir.Unknown, ir.Any:
			return l.value(e)
		}
		return &rust.Call{Func: rust.Id("Some"), Args: []rust.Expr{l.valueAs(e, w.Inner)}}
	case ir.Func:
		if lam, ok := e.(*ir.Lambda); ok {
			c := l.closure(lam, false)
			c.Move = true
			return rust.CallPath("Box::new", c)
		}
	case ir.Any:
		switch have.(type) {
		case ir.Any, ir.Unknown:
		default:
			return &rust.Cast{X: rust.CallPath("Box::new", l.value(e)), Type: l.typ(ir.AnyType)}
		}
	}
	return l.value(e)
}

// borrow lowers e for a & parameter of type want.
func (l *lowerer) borrow(e ir.Expr, want ir.Type) rust.Expr {
	if o, ok := ir.Deref(want).(ir.Optional); ok {
		if _, isOpt := ir.Deref(ir.EffectiveType(e)).(ir.Optional); !isOpt {
			if ir.IsNone(e) {
				return &rust.Borrow{X: rust.Id("None")}
			}
			return &rust.Borrow{X: l.valueAs(e, o)}
		}
	}
	if l.isStrRef(e) || l.isRef(e) {
		return l.place(e)
	}
	return &rust.Borrow{X: l.place(e)}
}

// borrowMut lowers e for a &mut parameter.
func (l *lowerer) borrowMut(e ir.Expr) rust.Expr {
	if l.isRef(e) {
		return l.place(e)
	}
	return &rust.Borrow{Mut: true, X: l.place(e)}
}

// strRef lowers a text expression to a &str.
func (l *lowerer) strRef(e ir.Expr) rust.Expr {
	if l.isStrRef(e) {
		return l.place(e)
	}
	return rust.Method(l.place(e), "as_str")
}

// refExact lowers e to a reference of exactly its owned type.
func (l *lowerer) refExact(e ir.Expr) rust.Expr {
	if ir.IsStr(ir.TypeOf(e)) {
		if l.isStrRef(e) {
			return &rust.Borrow{X: rust.Method(l.place(e), "to_string")}
		}
		return &rust.Borrow{X: l.place(e)}
	}
	if l.isRef(e) && !copyable(ir.TypeOf(e)) {
		return l.place(e)
	}
	return &rust.Borrow{X: l.place(e)}
}

// keyRef lowers a key for lookups that accept any borrowed form of the key.
func (l *lowerer) keyRef(e ir.Expr) rust.Expr {
	if ir.IsStr(ir.TypeOf(e)) {
		return l.strRef(e)
	}
	return l.refExact(e)
}

// cond lowers e as a boolean condition using Python truthiness.
func (l *lowerer) cond(e ir.Expr) rust.Expr {
	switch x := e.(type) {
	case *ir.Binary:
		switch x.Op {
		case ir.OpAnd:
			return &rust.Binary{Op: "&&", L: l.cond(x.L), R: l.cond(x.R)}
		case ir.OpOr:
			return &rust.Binary{Op: "||", L: l.cond(x.L), R: l.cond(x.R)}
		}
	case *ir.Unary:
		if x.Op == ir.UNot {
			return &rust.Unary{Op: "!", X: l.cond(x.X)}
		}
	}
	t := ir.EffectiveType(e)
	if isBool(t) {
		return l.place(e)
	}
	return truthy(l.place(e), t)
}

// truthy tests a lowered value of type t the way Python's bool() does.
func truthy(x rust.Expr, t ir.Type) rust.Expr {
	switch tt := ir.Deref(t).(type) {
	case ir.Prim:
		switch tt.Kind {
		case ir.KindBool:
			return x
		case ir.KindFloat:
			return &rust.Binary{Op: "!=", L: x, R: &rust.FloatLit{Value: 0}}
		case ir.KindUnit:
			return &rust.BoolLit{Value: false}
		}
		return &rust.Binary{Op: "!=", L: x, R: rust.Int(0)}
	case ir.Str, ir.Seq, ir.Map, ir.Set:
		return &rust.Unary{Op: "!", X: rust.Method(x, "is_empty")}
	case ir.Optional:
		return rust.Method(x, "is_some")
	}
	return &rust.BoolLit{Value: true}
}

func (l *lowerer) unary(x *ir.Unary) rust.Expr {
	switch x.Op {
	case ir.UNeg:
		switch v := l.place(x.X).(type) {
		case *rust.IntLit:
			return rust.Int(-v.Value)
		case *rust.FloatLit:
			return &rust.FloatLit{Value: -v.Value}
		default:
			return &rust.Unary{Op: "-", X: v}
		}
	case ir.UPos:
		return l.place(x.X)
	case ir.UNot:
		return &rust.Unary{Op: "!", X: l.cond(x.X)}
	case ir.UInvert:
		return &rust.Unary{Op: "!", X: l.place(x.X)}
	}
	return l.unsupported(l.fn, "unary "+x.Op.String(), "", x.Loc)
}

func (l *lowerer) binary(b *ir.Binary) rust.Expr {
	switch {
	case b.Op == ir.OpAnd || b.Op == ir.OpOr:
		return l.logical(b)
	case b.Op.IsComparison():
		return l.compare(b)
	}
	return l.arith(b)
}

// logical lowers and/or. Boolean operands short-circuit directly; other
// operands yield one of the operand values like Python does.
func (l *lowerer) logical(b *ir.Binary) rust.Expr {
	lt, rt := ir.EffectiveType(b.L), ir.EffectiveType(b.R)
	if isBool(lt) && isBool(rt) {
		return l.cond(b)
	}
	t := ir.TypeOf(b)
	if _, ok := ir.Deref(lt).(ir.Optional); ok && b.Op == ir.OpOr {
		if _, ok := ir.Deref(rt).(ir.Optional); !ok {
			return rust.Method(l.value(b.L), "unwrap_or", l.value(b.R))
		}
	}
	tmp := l.names.fresh("v")
	left := &rust.Let{Name: tmp, Value: l.valueAs(b.L, t)}
	keep := &rust.Block{Tail: rust.Id(tmp)}
	other := &rust.BlockExpr{Block: &rust.Block{Tail: l.valueAs(b.R, t)}}
	test := truthy(rust.Id(tmp), lt)
	pick := &rust.If{Cond: test, Then: keep, Else: other}
	if b.Op == ir.OpAnd {
		pick = &rust.If{Cond: test, Then: other.Block, Else: &rust.BlockExpr{Block: keep}}
	}
	return &rust.BlockExpr{Block: &rust.Block{Stmts: []rust.Stmt{left}, Tail: pick}}
}

var cmpOps = map[ir.BinOp]string{
	ir.OpEq: "==", ir.OpNe: "!=", ir.OpLt: "<", ir.OpLe: "<=", ir.OpGt: ">", ir.OpGe: ">=",
	ir.OpIs: "==", ir.OpIsNot: "!=",
}

func (l *lowerer) compare(b *ir.Binary) rust.Expr {
	switch b.Op {
	case ir.OpIn:
		return l.contains(b.R, b.L)
	case ir.OpNotIn:
		return &rust.Unary{Op: "!", X: l.contains(b.R, b.L)}
	case ir.OpEq, ir.OpNe, ir.OpIs, ir.OpIsNot:
		other := b.L
		if ir.IsNone(b.L) {
			other = b.R
		}
		if ir.IsNone(b.L) || ir.IsNone(b.R) {
			eq := b.Op == ir.OpEq || b.Op == ir.OpIs
			if ir.IsNone(other) {
				return &rust.BoolLit{Value: eq}
			}
			if eq {
				return rust.Method(l.place(other), "is_none")
			}
			return rust.Method(l.place(other), "is_some")
		}
	}
	op := cmpOps[b.Op]
	lt, rt := ir.Deref(ir.EffectiveType(b.L)), ir.Deref(ir.EffectiveType(b.R))
	left, right := l.cmpOperand(b.L, rt), l.cmpOperand(b.R, lt)

	if ir.IsStr(lt) && ir.IsStr(rt) && op != "==" && op != "!=" {
		// Ordering needs both sides as the same type.
		lref, rref := l.isStrRef(b.L), l.isStrRef(b.R)
		switch {
		case lref && !rref:
			right = rust.Method(right, "as_str")
		case rref && !lref:
			left = rust.Method(left, "as_str")
		}
	} else if !ir.IsStr(lt) {
		lref, rref := l.isRef(b.L) && !copyable(lt), l.isRef(b.R) && !copyable(rt)
		switch {
		case lref && !rref:
			left = &rust.Unary{Op: "*", X: left}
		case rref && !lref:
			right = &rust.Unary{Op: "*", X: right}
		}
	}
	return &rust.Binary{Op: op, L: left, R: right}
}

// cmpOperand lowers one side of a comparison against the other side's type.
func (l *lowerer) cmpOperand(e ir.Expr, other ir.Type) rust.Expr {
	if _, ok := ir.Deref(other).(ir.Optional); ok {
		if _, self := ir.Deref(ir.EffectiveType(e)).(ir.Optional); !self {
			return &rust.Call{Func: rust.Id("Some"), Args: []rust.Expr{l.value(e)}}
		}
	}
	return l.place(e)
}

// contains lowers "item in container". The method is chosen from the
// container's inferred type.
func (l *lowerer) contains(container, item ir.Expr) rust.Expr {
	if tup, ok := container.(*ir.TupleLit); ok {
		elems := make([]rust.Expr, len(tup.Elems))
		for i, e := range tup.Elems {
			elems[i] = l.value(e)
		}
		return rust.Method(&rust.ArrayLit{Elems: elems}, "contains", l.refExact(item))
	}
	switch c := ir.Deref(ir.TypeOf(container)).(type) {
	case ir.Seq:
		return rust.Method(l.place(container), "contains", l.refExact(item))
	case ir.Set:
		if ir.IsStr(c.Elem) {
			return rust.Method(l.place(container), "contains", l.strRef(item))
		}
		return rust.Method(l.place(container), "contains", l.refExact(item))
	case ir.Map:
		return rust.Method(l.place(container), "contains_key", l.keyRef(item))
	case ir.Str:
		return rust.Method(l.place(container), "contains", l.strRef(item))
	case ir.Generic:
		if c.Name == "range" {
			if call, ok := container.(*ir.Call); ok && call.Builtin == "range" {
				return rust.Method(l.rangeExpr(call), "contains", &rust.Borrow{X: l.place(item)})
			}
		}
	}
	return l.unsupported(l.fn, "in", "containment on "+ir.TypeOf(container).String(), container.Base().Loc)
}

// arith lowers arithmetic, concatenation, repetition and set operators.
func (l *lowerer) arith(b *ir.Binary) rust.Expr {
	lt, rt := ir.Deref(ir.EffectiveType(b.L)), ir.Deref(ir.EffectiveType(b.R))
	switch {
	case ir.IsStr(lt) && ir.IsStr(rt) && b.Op == ir.OpAdd:
		return &rust.Macro{Name: "format", Args: []rust.Expr{rust.Str("{}{}"), l.place(b.L), l.place(b.R)}}
	case ir.IsStr(lt) && ir.IsInteger(rt) && b.Op == ir.OpMul:
		return rust.Method(l.place(b.L), "repeat", l.usize(b.R))
	}
	switch x := lt.(type) {
	case ir.Seq:
		switch b.Op {
		case ir.OpAdd:
			parts := []rust.Expr{l.fullSlice(b.L), l.fullSlice(b.R)}
			return rust.Method(&rust.ArrayLit{Elems: parts}, "concat")
		case ir.OpMul:
			if list, ok := b.L.(*ir.ListLit); ok && len(list.Elems) == 1 {
				return &rust.Macro{Name: "vec", Repeat: true, Args: []rust.Expr{l.valueAs(list.Elems[0], x.Elem), l.usize(b.R)}}
			}
			if copyable(x.Elem) {
				return rust.Method(l.place(b.L), "repeat", l.usize(b.R))
			}
			rep := &rust.Macro{Name: "vec", Repeat: true, Args: []rust.Expr{l.value(b.L), l.usize(b.R)}}
			return rust.Method(rep, "concat")
		}
	case ir.Set:
		method := map[ir.BinOp]string{
			ir.OpBitOr: "union", ir.OpBitAnd: "intersection",
			ir.OpSub: "difference", ir.OpBitXor: "symmetric_difference",
		}[b.Op]
		if method != "" {
			l.use(hashSetPath)
			it := rust.Method(l.place(b.L), method, l.borrow(b.R, rt))
			return collect(rust.Method(it, "cloned"), l.typ(x))
		}
	case ir.Prim:
		if ir.IsNumeric(x) || isBool(x) {
			return l.numeric(b.Op, l.place(b.L), l.place(b.R), x, b.R)
		}
	}
	return l.unsupported(l.fn, "binary "+b.Op.String(), lt.String()+" and "+rt.String(), b.Loc)
}

// fullSlice lowers a sequence operand as &v[..].
func (l *lowerer) fullSlice(e ir.Expr) rust.Expr {
	return &rust.Borrow{X: &rust.Index{X: l.place(e), Index: &rust.Range{}}}
}

// usize lowers an integer expression used as a count.
func (l *lowerer) usize(e ir.Expr) rust.Expr {
	if v, ok := intLiteral(e); ok && v >= 0 {
		return rust.Int(v)
	}
	x := l.place(e)
	if ir.IsPrim(ir.EffectiveType(e), ir.KindUsize) {
		return x
	}
	return &rust.Cast{X: x, Type: rust.Named("usize")}
}

var compound = map[ir.BinOp]string{
	ir.OpAdd: "+", ir.OpSub: "-", ir.OpMul: "*",
	ir.OpBitAnd: "&", ir.OpBitOr: "|", ir.OpBitXor: "^", ir.OpShl: "<<", ir.OpShr: ">>",
}

// numeric lowers x op y for numbers of type t. rhs is the source of y,
// consulted for literal divisors and exponents.
func (l *lowerer) numeric(op ir.BinOp, x, y rust.Expr, t ir.Type, rhs ir.Expr) rust.Expr {
	float := isFloat(t)
	usize := ir.IsPrim(t, ir.KindUsize)
	lit, isLit := intLiteral(rhs)
	if s, ok := compound[op]; ok {
		return &rust.Binary{Op: s, L: x, R: y}
	}
	switch op {
	case ir.OpDiv:
		return &rust.Binary{Op: "/", L: x, R: y}
	case ir.OpFloorDiv:
		switch {
		case float:
			return rust.Method(&rust.Binary{Op: "/", L: x, R: y}, "floor")
		case usize:
			return &rust.Binary{Op: "/", L: x, R: y}
		case isLit && lit > 0:
			return rust.Method(l.receiver(x), "div_euclid", y)
		}
		l.helpers[helperFloorDiv] = true
		return rust.CallPath("py_floordiv", x, y)
	case ir.OpMod:
		switch {
		case float:
			return rust.Method(l.receiver(x), "rem_euclid", y)
		case usize:
			return &rust.Binary{Op: "%", L: x, R: y}
		case isLit && lit > 0:
			return rust.Method(l.receiver(x), "rem_euclid", y)
		}
		l.helpers[helperMod] = true
		return rust.CallPath("py_mod", x, y)
	case ir.OpPow:
		switch {
		case float && isLit:
			return rust.Method(l.receiver(x), "powi", rust.Int(lit))
		case float:
			return rust.Method(l.receiver(x), "powf", y)
		case isLit && lit >= 0:
			return rust.Method(l.receiver(x), "pow", rust.Int(lit))
		}
		return rust.Method(l.receiver(x), "pow", &rust.Cast{X: y, Type: rust.Named("u32")})
	}
	return l.unsupported(l.fn, "binary "+op.String(), t.String(), ir.Loc{})
}

// receiver pins the type of a literal method receiver.
func (l *lowerer) receiver(x rust.Expr) rust.Expr {
	switch v := x.(type) {
	case *rust.IntLit:
		if v.Suffix == "" {
			return &rust.IntLit{Value: v.Value, Suffix: l.profile.IntType()}
		}
	case *rust.FloatLit:
		return &rust.Cast{X: v, Type: rust.Named("f64")}
	}
	return x
}

// position lowers a sequence index. Negative literals count from the end
// of seq.
func (l *lowerer) position(i, seq ir.Expr) rust.Expr {
	if v, ok := intLiteral(i); ok && v < 0 {
		return &rust.Binary{Op: "-", L: rust.Method(l.place(seq), "len"), R: rust.Int(-v)}
	}
	return l.place(i)
}

func (l *lowerer) index(x *ir.Index) rust.Expr {
	switch c := ir.Deref(ir.TypeOf(x.X)).(type) {
	case ir.Seq:
		return &rust.Index{X: l.place(x.X), Index: l.position(x.Index, x.X)}
	case ir.Map:
		return &rust.Index{X: l.place(x.X), Index: l.keyRef(x.Index)}
	case ir.Str:
		chars := rust.Method(l.place(x.X), "chars")
		var ch rust.Expr
		if v, ok := intLiteral(x.Index); ok && v < 0 {
			ch = rust.Method(rust.Method(chars, "rev"), "nth", rust.Int(-v-1))
		} else {
			ch = rust.Method(chars, "nth", l.place(x.Index))
		}
		return rust.Method(rust.Method(ch, "unwrap"), "to_string")
	case ir.Tuple:
		if v, ok := intLiteral(x.Index); ok {
			if v < 0 {
				v += int64(len(c.Elems))
			}
			if v >= 0 && int(v) < len(c.Elems) {
				return &rust.Field{X: l.place(x.X), Name: strconv.FormatInt(v, 10)}
			}
		}
		return l.unsupported(l.fn, "index", "tuple index must be a constant in range", x.Loc)
	}
	return l.unsupported(l.fn, "index", "subscript of "+ir.TypeOf(x.X).String(), x.Loc)
}

// classConstant returns the class constant a names (Cls.K or self.K).
func (l *lowerer) classConstant(a *ir.Attribute) *ir.Constant {
	if a.Field != nil {
		return nil
	}
	if v, ok := a.X.(*ir.Var); ok {
		if v.Ref == ir.RefClass {
			if c, ok := v.Decl.(*ir.Class); ok {
				return c.Constant(a.Name)
			}
		}
		if l.isSelf(v) && l.fn.Class != nil {
			for _, k := range l.chain(l.fn.Class) {
				if c := k.Constant(a.Name); c != nil {
					return c
				}
			}
		}
	}
	return nil
}

func (l *lowerer) attribute(a *ir.Attribute) rust.Expr {
	if v, ok := a.X.(*ir.Var); ok && v.Ref == ir.RefImport {
		if imp, ok := v.Decl.(*ir.Import); ok {
			if path, ok := l.member(imp, a.Name); ok {
				return &rust.PathExpr{Path: path}
			}
		}
		if a.Rewrite != "" {
			return &rust.PathExpr{Path: a.Rewrite}
		}
		return l.unsupported(l.fn, v.Name+"."+a.Name, "unmapped module member", a.Loc)
	}
	if c := l.classConstant(a); c != nil {
		owner := "Self"
		if v, ok := a.X.(*ir.Var); ok && v.Ref == ir.RefClass {
			owner = v.Name
		}
		return &rust.PathExpr{Path: owner + "::" + ident(c.Name)}
	}
	if g, ok := ir.Deref(ir.TypeOf(a.X)).(ir.Generic); ok && g.Name == ir.ExceptionClass {
		if a.Name == "args" {
			return &rust.Macro{Name: "vec", Bracket: true, Args: []rust.Expr{cloneOf(&rust.Field{X: l.place(a.X), Name: "message"})}}
		}
		return l.unsupported(l.fn, "attribute "+a.Name, "exception attribute", a.Loc)
	}
	return &rust.Field{X: l.place(a.X), Name: ident(a.Name)}
}

// slice lowers X[lo:hi:step] for sequences and text.
func (l *lowerer) slice(s *ir.Slice) rust.Expr {
	step, hasStep := int64(1), s.Step != nil
	if hasStep {
		v, ok := intLiteral(s.Step)
		if !ok || v == 0 {
			return l.unsupported(l.fn, "slice", "step must be a non-zero constant", s.Loc)
		}
		step = v
	}
	switch t := ir.Deref(ir.TypeOf(s.X)).(type) {
	case ir.Seq:
		if step < 0 {
			if s.Lower != nil || s.Upper != nil || step != -1 {
				return l.unsupported(l.fn, "slice", "reverse slices take no bounds", s.Loc)
			}
			return collect(rust.Method(rust.Method(rust.Method(l.place(s.X), "iter"), "rev"), l.copier(t.Elem)), l.typ(t))
		}
		if s.Lower == nil && s.Upper == nil && step == 1 {
			return rust.Method(l.place(s.X), "to_vec")
		}
		it := l.bounded(rust.Method(l.place(s.X), "iter"), s, func() rust.Expr { return rust.Method(l.place(s.X), "len") })
		if step > 1 {
			it = rust.Method(it, "step_by", rust.Int(step))
		}
		return collect(rust.Method(it, l.copier(t.Elem)), l.typ(t))
	case ir.Str:
		chars := rust.Method(l.place(s.X), "chars")
		if step < 0 {
			if s.Lower != nil || s.Upper != nil || step != -1 {
				return l.unsupported(l.fn, "slice", "reverse slices take no bounds", s.Loc)
			}
			return collect(rust.Method(chars, "rev"), rust.Named("String"))
		}
		it := l.bounded(chars, s, func() rust.Expr { return rust.Method(rust.Method(l.place(s.X), "chars"), "count") })
		if step > 1 {
			it = rust.Method(it, "step_by", rust.Int(step))
		}
		return collect(it, rust.Named("String"))
	}
	return l.unsupported(l.fn, "slice", "slice of "+ir.TypeOf(s.X).String(), s.Loc)
}

// bounded restricts it to the positions [lo, hi) of s. Bounds clamp to the
// ends: take runs before skip, and bounds counted from the end saturate at
// zero.
func (l *lowerer) bounded(it rust.Expr, s *ir.Slice, n func() rust.Expr) rust.Expr {
	bound := func(e ir.Expr) rust.Expr {
		if v, ok := intLiteral(e); ok && v < 0 {
			return rust.Method(n(), "saturating_sub", rust.Int(-v))
		}
		return l.place(e)
	}
	if s.Upper != nil {
		it = rust.Method(it, "take", bound(s.Upper))
	}
	if s.Lower != nil {
		it = rust.Method(it, "skip", bound(s.Lower))
	}
	return it
}

// copier is the adapter that turns an iterator of &T into one of T.
func (l *lowerer) copier(elem ir.Type) string {
	if copyable(elem) {
		return "copied"
	}
	return "cloned"
}

// closure lowers a lambda. With byRef the closure receives &T arguments, as
// iterator adapters pass them: Copy parameters destructure the reference
// and the others are read through it.
func (l *lowerer) closure(f *ir.Lambda, byRef bool) *rust.Closure {
	params := make([]rust.Param, 0, len(f.Params))
	for _, p := range f.Params {
		name := ident(p.Name)
		b := p.Binding
		if byRef {
			if b != nil && copyable(b.Type) {
				name = "&" + name
			} else if b != nil {
				l.refVars[b] = true
			}
			params = append(params, rust.Param{Name: name})
			continue
		}
		var t rust.Type
		if b != nil {
			t = l.annotate(b.Type)
		}
		params = append(params, rust.Param{Name: name, Type: t})
	}
	return &rust.Closure{Params: params, Body: l.value(f.Body)}
}

// comprehension lowers to a block that fills an accumulator in nested loops.
func (l *lowerer) comprehension(c *ir.Comprehension) rust.Expr {
	acc := l.names.fresh("acc")
	t := ir.TypeOf(c)
	var (
		init rust.Expr
		add  rust.Stmt
	)
	switch c.Kind {
	case ir.CompSet:
		l.use(hashSetPath)
		init = rust.CallPath("HashSet::new")
		add = &rust.ExprStmt{X: rust.Method(rust.Id(acc), "insert", l.valueAs(c.Elem, ir.ElemOf(t)))}
	case ir.CompDict:
		l.use(hashMapPath)
		m, _ := ir.Deref(t).(ir.Map)
		init = rust.CallPath("HashMap::new")
		add = &rust.ExprStmt{X: rust.Method(rust.Id(acc), "insert", l.valueAs(c.Key, m.Key), l.valueAs(c.Value, m.Value))}
	default:
		init = rust.CallPath("Vec::new")
		add = &rust.ExprStmt{X: rust.Method(rust.Id(acc), "push", l.valueAs(c.Elem, ir.ElemOf(t)))}
	}

	inner := &rust.Block{Stmts: []rust.Stmt{add}}
	for i := len(c.Gens) - 1; i >= 0; i-- {
		g := c.Gens[i]
		body := inner
		for j := len(g.Ifs) - 1; j >= 0; j-- {
			body = &rust.Block{Stmts: []rust.Stmt{&rust.ExprStmt{X: &rust.If{Cond: l.cond(g.Ifs[j]), Then: body}}}}
		}
		loop := &rust.For{Pattern: l.pattern(g.Target), Iter: l.forIter(g.Iter, g.Target), Body: body}
		inner = &rust.Block{Stmts: []rust.Stmt{&rust.ExprStmt{X: loop}}}
	}

	stmts := []rust.Stmt{&rust.Let{Name: acc, Mut: true, Type: l.annotate(t), Value: init}}
	stmts = append(stmts, inner.Stmts...)
	return &rust.BlockExpr{Block: &rust.Block{Stmts: stmts, Tail: rust.Id(acc)}}
}

// pattern renders a loop or comprehension target.
func (l *lowerer) pattern(target ir.Expr) string {
	switch x := target.(type) {
	case *ir.Var:
		name := ident(x.Name)
		if x.Binding != nil && x.Binding.NeedsMut() {
			return "mut " + name
		}
		return name
	case *ir.TupleLit:
		return l.tuplePattern(x.Elems)
	case *ir.ListLit:
		return l.tuplePattern(x.Elems)
	}
	return "_"
}

func (l *lowerer) tuplePattern(elems []ir.Expr) string {
	out := "("
	for i, e := range elems {
		if i > 0 {
			out += ", "
		}
		out += l.pattern(e)
	}
	if len(elems) == 1 {
		out += ","
	}
	return out + ")"
}
