package infer

import (
	"github.com/roach88/pyrs/internal/ir"
)

// typer runs the forward pass over one function for one fixpoint round.
type typer struct {
	e  *Engine
	fn *ir.Function

	returns []ir.Type
	values  int

	// narrow counts the None tests currently excluding None per binding.
	narrow map[*ir.Binding]int
}

// params seeds unannotated parameters from their default values.
func (t *typer) params() {
	for _, p := range t.fn.Params {
		if p.Default == nil {
			continue
		}
		t.e.refine(p.Binding, t.expr(p.Default))
	}
}

func (t *typer) block(stmts []ir.Stmt) {
	for i, s := range stmts {
		t.stmt(s)
		n, ok := s.(*ir.If)
		if !ok {
			continue
		}
		var bs []*ir.Binding
		switch {
		case exits(n.Then) && !exits(n.Else):
			bs = notNoneWhenFalse(n.Cond)
		case exits(n.Else) && !exits(n.Then):
			bs = notNoneWhenTrue(n.Cond)
		}
		if len(bs) > 0 {
			rest := stmts[i+1:]
			t.narrowed(bs, rest, func() { t.block(rest) })
			return
		}
	}
}

// exits reports whether control never falls off the end of stmts.
func exits(stmts []ir.Stmt) bool {
	if ir.Terminates(stmts) {
		return true
	}
	if len(stmts) == 0 {
		return false
	}
	switch stmts[len(stmts)-1].(type) {
	case *ir.Break, *ir.Continue:
		return true
	}
	return false
}

func (t *typer) stmt(s ir.Stmt) {
	switch n := s.(type) {
	case *ir.Assign:
		t.assign(n)
	case *ir.Return:
		if n.Value == nil {
			t.returns = append(t.returns, ir.Optional{Inner: ir.Unresolved})
			return
		}
		t.values++
		t.returns = append(t.returns, t.expect(n.Value, t.declaredReturn()))
	case *ir.If:
		t.expr(n.Cond)
		t.narrowed(notNoneWhenTrue(n.Cond), n.Then, func() { t.block(n.Then) })
		t.narrowed(notNoneWhenFalse(n.Cond), n.Else, func() { t.block(n.Else) })
	case *ir.While:
		t.expr(n.Cond)
		t.narrowed(notNoneWhenTrue(n.Cond), n.Body, func() { t.block(n.Body) })
	case *ir.For:
		it := t.expr(n.Iter)
		t.bindTarget(n.Target, ir.ElemOf(it))
		t.block(n.Body)
	case *ir.ExprStmt:
		t.expr(n.X)
	case *ir.Raise:
		if n.Message != nil {
			t.expr(n.Message)
		}
	case *ir.With:
		ct := t.expr(n.Ctx)
		if n.Target != nil {
			t.e.refine(n.Target.Binding, ct)
			n.Target.T = n.Target.Binding.Type
		}
		t.block(n.Body)
	case *ir.TryExcept:
		t.block(n.Body)
		for _, h := range n.Handlers {
			t.block(h.Body)
		}
		t.block(n.Else)
		t.block(n.Finally)
	case *ir.Break, *ir.Continue:
	}
}

func (t *typer) declaredReturn() ir.Type {
	if a := t.fn.ReturnAnnotation; a != nil && !ir.ContainsUnknown(a) {
		return a
	}
	return nil
}

// finishReturns folds the collected return types into the return slot.
// A body that can fall off its end also returns None.
func (t *typer) finishReturns() {
	fn := t.fn
	if d := t.declaredReturn(); d != nil {
		if !ir.Equal(fn.Returns, d) {
			fn.Returns = d
			t.e.changed = true
		}
		return
	}
	var got ir.Type = ir.UnitType
	if t.values > 0 {
		ts := t.returns
		if !ir.Terminates(fn.Body) {
			ts = append(ts, ir.Optional{Inner: ir.Unresolved})
		}
		var ok bool
		got, ok = unifyAll(ts)
		if !ok {
			t.e.returnConflicts[fn] = addCandidates(t.e.returnConflicts[fn], ts...)
		}
	}
	if isOpenOptional(got) && ir.IsPrim(fn.Returns, ir.KindUnit) {
		return
	}
	next, ok := Unify(fn.Returns, got)
	if !ok {
		t.e.returnConflicts[fn] = addCandidates(t.e.returnConflicts[fn], fn.Returns, got)
	}
	if !ir.Equal(next, fn.Returns) {
		fn.Returns = next
		t.e.changed = true
	}
}

func (t *typer) assign(n *ir.Assign) {
	if n.Value == nil {
		for _, target := range n.Targets {
			if n.Annotation != nil {
				t.assignTo(target, n.Annotation)
			}
		}
		n.Type = n.Annotation
		return
	}
	if n.Augmented() {
		target := n.Targets[0]
		cur := t.targetType(target)
		vt := t.expr(n.Value)
		res := t.binaryType(n.Op, target, n.Value, cur, vt)
		t.assignTo(target, res)
		n.Type = res
		return
	}

	var hint ir.Type
	if len(n.Targets) == 1 {
		hint = n.Annotation
		if hint == nil {
			hint = t.targetType(n.Targets[0])
		}
	}
	vt := t.expect(n.Value, hint)
	n.Type = vt
	if len(n.Targets) == 1 {
		t.assignTo(n.Targets[0], vt)
		return
	}
	elems := unpack(vt, len(n.Targets))
	for i, target := range n.Targets {
		t.assignTo(target, elems[i])
	}
}

// unpack splits a value type over n unpacking targets.
func unpack(vt ir.Type, n int) []ir.Type {
	out := make([]ir.Type, n)
	tup, isTuple := ir.Deref(vt).(ir.Tuple)
	for i := range out {
		switch {
		case isTuple && len(tup.Elems) == n:
			out[i] = tup.Elems[i]
		case ir.IsAny(vt):
			out[i] = ir.AnyType
		default:
			out[i] = ir.ElemOf(vt)
		}
	}
	return out
}

// targetType returns the current type of an assignment target without
// treating it as a read.
func (t *typer) targetType(target ir.Expr) ir.Type {
	switch x := target.(type) {
	case *ir.Var:
		if x.Binding != nil {
			x.T = x.Binding.Type
			return x.Binding.Type
		}
		return t.expr(x)
	case *ir.TupleLit:
		elems := make([]ir.Type, len(x.Elems))
		for i, e := range x.Elems {
			elems[i] = t.targetType(e)
		}
		return ir.Tuple{Elems: elems}
	}
	return t.expr(target)
}

// assignTo stores a value of type vt into target.
func (t *typer) assignTo(target ir.Expr, vt ir.Type) {
	switch x := target.(type) {
	case *ir.Var:
		if x.Ref != ir.RefLocal {
			return
		}
		t.e.refine(x.Binding, vt)
		x.T = x.Binding.Type
	case *ir.TupleLit:
		elems := unpack(vt, len(x.Elems))
		for i, e := range x.Elems {
			t.assignTo(e, elems[i])
		}
		x.T = vt
	case *ir.ListLit:
		elems := unpack(vt, len(x.Elems))
		for i, e := range x.Elems {
			t.assignTo(e, elems[i])
		}
		x.T = vt
	case *ir.Attribute:
		xt := t.expr(x.X)
		if cls := t.classOf(xt); cls != nil {
			x.Field = lookupField(t.e.module, cls, x.Name)
			if x.Field == nil {
				t.e.unsupported(t.fn, x.Loc, "assignment to undeclared attribute %s.%s", cls.Name, x.Name)
			}
			t.e.refineField(x.Field, vt)
			x.T = x.Field.Type
			return
		}
		x.T = vt
	case *ir.Index:
		xt := t.expr(x.X)
		it := t.expr(x.Index)
		switch c := ir.Deref(xt).(type) {
		case ir.Map:
			t.e.refineSlot(x.X, ir.Map{Key: it, Value: vt})
			x.T = c.Value
		case ir.Seq:
			t.e.refineSlot(x.X, ir.Seq{Elem: vt})
			x.T = c.Elem
		case ir.Unknown:
			if !ir.IsInteger(it) && !ir.IsUnknown(it) {
				t.e.refineSlot(x.X, ir.Map{Key: it, Value: vt})
			}
			x.T = vt
		default:
			x.T = vt
		}
	}
}

// bindTarget binds loop or comprehension targets to an element type.
func (t *typer) bindTarget(target ir.Expr, elem ir.Type) {
	switch x := target.(type) {
	case *ir.Var:
		t.e.refine(x.Binding, elem)
		x.T = x.Binding.Type
	case *ir.TupleLit:
		elems := unpack(elem, len(x.Elems))
		for i, e := range x.Elems {
			t.bindTarget(e, elems[i])
		}
		x.T = elem
	}
}

// expect types e and fills unresolved holes in its type from hint, the
// type the context requires.
func (t *typer) expect(e ir.Expr, hint ir.Type) ir.Type {
	got := t.expr(e)
	if hint == nil || !ir.ContainsUnknown(got) || ir.ContainsUnknown(hint) {
		return got
	}
	if filled, ok := Unify(got, hint); ok {
		e.Base().T = filled
		return filled
	}
	return got
}

// expr types e and its children, storing the result in the node.
func (t *typer) expr(e ir.Expr) ir.Type {
	if e == nil {
		return ir.UnitType
	}
	r := t.exprType(e)
	e.Base().T = r
	return r
}

func (t *typer) exprType(e ir.Expr) ir.Type {
	switch x := e.(type) {
	case *ir.Literal:
		return literalType(x)
	case *ir.Var:
		return t.varType(x)
	case *ir.Binary:
		var lt, rt ir.Type
		if v, ok := x.L.(*ir.Var); ok && noneTested(x) != nil && (x.Op == ir.OpIs || x.Op == ir.OpIsNot) {
			// The test itself reads the Optional.
			v.Narrowed = false
			lt = ir.OrUnknown(v.Binding.Type)
			v.T = lt
		} else {
			lt = t.expr(x.L)
		}
		switch x.Op {
		case ir.OpAnd:
			t.narrowed(notNoneWhenTrue(x.L), nil, func() { rt = t.expr(x.R) })
		case ir.OpOr:
			t.narrowed(notNoneWhenFalse(x.L), nil, func() { rt = t.expr(x.R) })
		default:
			rt = t.expr(x.R)
		}
		return t.binaryType(x.Op, x.L, x.R, lt, rt)
	case *ir.Unary:
		xt := t.expr(x.X)
		switch x.Op {
		case ir.UNot:
			return ir.BoolType
		case ir.UNeg:
			if ir.IsPrim(xt, ir.KindUsize) {
				return ir.IntType
			}
			return xt
		case ir.UInvert:
			return ir.IntType
		}
		return xt
	case *ir.Call:
		return t.call(x)
	case *ir.Index:
		return t.index(x)
	case *ir.Attribute:
		return t.attribute(x)
	case *ir.ListLit:
		return ir.Seq{Elem: t.elems(e, x.Elems)}
	case *ir.SetLit:
		return ir.Set{Elem: t.elems(e, x.Elems)}
	case *ir.TupleLit:
		elems := make([]ir.Type, len(x.Elems))
		for i, el := range x.Elems {
			elems[i] = t.expr(el)
		}
		return ir.Tuple{Elems: elems}
	case *ir.DictLit:
		return ir.Map{Key: t.elems(e, x.Keys), Value: t.elems(e, x.Values)}
	case *ir.Comprehension:
		return t.comprehension(x)
	case *ir.Lambda:
		params := make([]ir.Type, len(x.Params))
		for i, p := range x.Params {
			if p.Default != nil {
				t.e.refine(p.Binding, t.expr(p.Default))
			}
			params[i] = p.Binding.Type
		}
		return ir.Func{Params: params, Result: t.expr(x.Body)}
	case *ir.Slice:
		xt := t.expr(x.X)
		t.expr(x.Lower)
		t.expr(x.Upper)
		t.expr(x.Step)
		if ir.IsStr(xt) {
			return ir.StrType
		}
		return ir.Deref(xt)
	case *ir.FString:
		for _, p := range x.Parts {
			if p.X != nil {
				t.expr(p.X)
			}
		}
		return ir.StrType
	case *ir.Await:
		return t.expr(x.X)
	case *ir.Ternary:
		t.expr(x.Cond)
		var a, b ir.Type
		t.narrowed(notNoneWhenTrue(x.Cond), nil, func() { a = t.expr(x.Then) })
		t.narrowed(notNoneWhenFalse(x.Cond), nil, func() { b = t.expr(x.Else) })
		u, ok := Unify(a, b)
		if !ok {
			t.e.exprConflicts[e] = addCandidates(t.e.exprConflicts[e], a, b)
		}
		return u
	}
	return ir.AnyType
}

func literalType(l *ir.Literal) ir.Type {
	switch l.Kind {
	case ir.LitInt:
		return ir.IntType
	case ir.LitFloat:
		return ir.FloatType
	case ir.LitStr:
		return ir.StrType
	case ir.LitBool:
		return ir.BoolType
	case ir.LitBytes:
		return ir.Generic{Name: "bytes"}
	}
	return ir.Optional{Inner: ir.Unresolved}
}

// elems unifies the element types of a display. Integer literals adopt a
// usize element type when every other element is usize.
func (t *typer) elems(owner ir.Expr, es []ir.Expr) ir.Type {
	ts := make([]ir.Type, len(es))
	for i, el := range es {
		ts[i] = t.expr(el)
	}
	u, ok := unifyAll(ts)
	if !ok {
		t.e.exprConflicts[owner] = addCandidates(t.e.exprConflicts[owner], ts...)
		return u
	}
	if ir.IsPrim(u, ir.KindInt) {
		usize, lits := false, true
		for i, el := range es {
			switch {
			case ir.IsPrim(ts[i], ir.KindUsize):
				usize = true
			case !isNonNegIntLiteral(el):
				lits = false
			}
		}
		if usize && lits {
			for _, el := range es {
				el.Base().T = ir.UsizeType
			}
			return ir.UsizeType
		}
	}
	return u
}

func (t *typer) varType(v *ir.Var) ir.Type {
	switch v.Ref {
	case ir.RefLocal:
		return t.narrowType(v)
	case ir.RefFunction:
		return funcType(v.Decl.(*ir.Function))
	case ir.RefClass:
		cls := v.Decl.(*ir.Class)
		return ir.Func{Result: ir.Generic{Name: cls.Name}}
	case ir.RefConstant:
		return ir.OrUnknown(v.Decl.(*ir.Constant).Type)
	case ir.RefImport:
		imp := v.Decl.(*ir.Import)
		if _, item := t.e.module.Import(v.Name); item != "" {
			return t.e.memberType(imp, item)
		}
		return ir.Generic{Name: "module"}
	case ir.RefBuiltin:
		if fn, ok := builtinFuncs[v.Name]; ok {
			res := fn([]ir.Type{ir.AnyType}, &ir.Call{Args: make([]ir.Expr, 1)})
			return ir.Func{Params: []ir.Type{ir.AnyType}, Result: res}
		}
		return ir.Func{Result: ir.Generic{Name: ir.ExceptionClass}}
	}
	return ir.Unresolved
}

// memberType types a mapped library member: a Func for members with known
// parameters, the value type otherwise.
func (e *Engine) memberType(imp *ir.Import, name string) ir.Type {
	_, item, ok := e.importItem(imp, name)
	if !ok {
		return ir.AnyType
	}
	ret := e.itemType(item.Returns)
	if item.Params == nil {
		return ret
	}
	params := make([]ir.Type, len(item.Params))
	for i, p := range item.Params {
		params[i] = e.itemType(p)
	}
	return ir.Func{Params: params, Result: ret}
}

// binaryType types "l op r". Integer literals adapt to a usize partner.
func (t *typer) binaryType(op ir.BinOp, l, r ir.Expr, lt, rt ir.Type) ir.Type {
	switch op {
	case ir.OpAnd, ir.OpOr:
		if ir.IsPrim(lt, ir.KindBool) && ir.IsPrim(rt, ir.KindBool) {
			return ir.BoolType
		}
		if opt, ok := ir.Deref(lt).(ir.Optional); ok && op == ir.OpOr {
			u, _ := Unify(opt.Inner, rt)
			return u
		}
		u, _ := Unify(lt, rt)
		return u
	case ir.OpIn, ir.OpNotIn, ir.OpIs, ir.OpIsNot:
		return ir.BoolType
	}

	adaptLiteral(l, lt, rt)
	adaptLiteral(r, rt, lt)
	lt, rt = ir.TypeOf(l), ir.TypeOf(r)

	if op.IsComparison() {
		return ir.BoolType
	}

	ld, rd := ir.Deref(lt), ir.Deref(rt)
	switch {
	case ir.IsAny(ld) || ir.IsAny(rd):
		return ir.AnyType
	case ir.IsUnknown(ld) && ir.IsUnknown(rd):
		return ir.Unresolved
	case ir.IsUnknown(ld):
		return arithResult(op, rd, rd)
	case ir.IsUnknown(rd):
		return arithResult(op, ld, ld)
	}
	return arithResult(op, ld, rd)
}

func arithResult(op ir.BinOp, l, r ir.Type) ir.Type {
	switch {
	case ir.IsStr(l) && (ir.IsStr(r) || op == ir.OpMod):
		return ir.StrType
	case ir.IsStr(l) && ir.IsInteger(r) && op == ir.OpMul:
		return ir.StrType
	}
	if s, ok := l.(ir.Seq); ok {
		if op == ir.OpMul {
			return s
		}
		if rs, ok := r.(ir.Seq); ok && op == ir.OpAdd {
			u, _ := Unify(s, rs)
			return u
		}
	}
	if ls, ok := l.(ir.Set); ok {
		if rs, ok := r.(ir.Set); ok {
			u, _ := Unify(ls, rs)
			return u
		}
	}
	if !ir.IsNumeric(l) || !ir.IsNumeric(r) {
		if ir.IsPrim(l, ir.KindBool) && ir.IsPrim(r, ir.KindBool) && (op == ir.OpBitAnd || op == ir.OpBitOr || op == ir.OpBitXor) {
			return ir.BoolType
		}
		return ir.AnyType
	}
	if op == ir.OpDiv {
		return ir.FloatType
	}
	u, _ := Unify(l, r)
	if ir.IsPrim(l, ir.KindUsize) && ir.IsPrim(r, ir.KindUsize) {
		return ir.UsizeType
	}
	return u
}

// adaptLiteral gives a non-negative integer literal the usize type of its
// partner operand.
func adaptLiteral(lit ir.Expr, lt, ot ir.Type) {
	if !ir.IsPrim(ot, ir.KindUsize) || !ir.IsPrim(lt, ir.KindInt) {
		return
	}
	if isNonNegIntLiteral(lit) {
		lit.Base().T = ir.UsizeType
	}
}

func (t *typer) index(x *ir.Index) ir.Type {
	xt := t.expr(x.X)
	it := t.expr(x.Index)
	switch c := ir.Deref(xt).(type) {
	case ir.Seq:
		return ir.OrUnknown(c.Elem)
	case ir.Str:
		return ir.StrType
	case ir.Map:
		if ir.IsUnknown(c.Key) {
			t.e.refineSlot(x.X, ir.Map{Key: it, Value: ir.Unresolved})
		}
		return ir.OrUnknown(c.Value)
	case ir.Tuple:
		if lit, ok := constIndex(x.Index); ok {
			if lit < 0 {
				lit += int64(len(c.Elems))
			}
			if lit >= 0 && int(lit) < len(c.Elems) {
				return c.Elems[lit]
			}
		}
		u, _ := unifyAll(c.Elems)
		return u
	case ir.Any:
		return ir.AnyType
	}
	return ir.Unresolved
}

// constIndex returns the value of a literal (possibly negated) index.
func constIndex(e ir.Expr) (int64, bool) {
	if u, ok := e.(*ir.Unary); ok && u.Op == ir.UNeg {
		v, ok := constIndex(u.X)
		return -v, ok
	}
	lit, ok := e.(*ir.Literal)
	if !ok || lit.Kind != ir.LitInt {
		return 0, false
	}
	return lit.Int, true
}

func (t *typer) attribute(x *ir.Attribute) ir.Type {
	if v, ok := x.X.(*ir.Var); ok && v.Ref == ir.RefImport {
		t.expr(v)
		return t.importMember(x, v)
	}
	xt := t.expr(x.X)
	if v, ok := x.X.(*ir.Var); ok && v.Ref == ir.RefClass {
		cls := v.Decl.(*ir.Class)
		if c := cls.Constant(x.Name); c != nil {
			return ir.OrUnknown(c.Type)
		}
		if m := lookupMethod(t.e.module, cls, x.Name); m != nil {
			return funcType(m)
		}
		t.e.unsupported(t.fn, x.Loc, "unknown class attribute %s.%s", cls.Name, x.Name)
	}
	if cls := t.classOf(xt); cls != nil {
		if f := lookupField(t.e.module, cls, x.Name); f != nil {
			x.Field = f
			return ir.OrUnknown(f.Type)
		}
		if m := lookupMethod(t.e.module, cls, x.Name); m != nil {
			return funcType(m)
		}
		if c := cls.Constant(x.Name); c != nil {
			return ir.OrUnknown(c.Type)
		}
		t.e.unsupported(t.fn, x.Loc, "unknown attribute %s.%s", cls.Name, x.Name)
	}
	switch d := ir.Deref(xt).(type) {
	case ir.Generic:
		if d.Name == ir.ExceptionClass && x.Name == "args" {
			return ir.Seq{Elem: ir.StrType}
		}
		return ir.AnyType
	case ir.Unknown:
		return ir.Unresolved
	}
	return ir.AnyType
}

// importMember resolves module.member through the mapping table and records
// the rewrite on the attribute.
func (t *typer) importMember(x *ir.Attribute, v *ir.Var) ir.Type {
	imp := v.Decl.(*ir.Import)
	entry, _, ok := t.e.importItem(imp, x.Name)
	if !ok {
		if e, found := t.e.table.Lookup(imp.Module); found {
			x.Rewrite, _ = e.ItemPath(x.Name)
		}
		return ir.AnyType
	}
	x.Rewrite, _ = entry.ItemPath(x.Name)
	return t.e.memberType(imp, x.Name)
}

// classOf returns the user class of an instance type.
func (t *typer) classOf(xt ir.Type) *ir.Class {
	name, ok := ir.ClassName(xt)
	if !ok {
		return nil
	}
	return t.e.module.Class(name)
}

func (t *typer) comprehension(x *ir.Comprehension) ir.Type {
	for _, g := range x.Gens {
		it := t.expr(g.Iter)
		t.bindTarget(g.Target, ir.ElemOf(it))
		for _, c := range g.Ifs {
			t.expr(c)
		}
	}
	switch x.Kind {
	case ir.CompList:
		return ir.Seq{Elem: t.expr(x.Elem)}
	case ir.CompSet:
		return ir.Set{Elem: t.expr(x.Elem)}
	case ir.CompDict:
		return ir.Map{Key: t.expr(x.Key), Value: t.expr(x.Value)}
	}
	return ir.IteratorOf(t.expr(x.Elem))
}

// constants types module constants, class constants and field defaults.
// A value that fails to type is reported once and then left alone.
func (e *Engine) constants() {
	t := &typer{e: e}
	for _, c := range e.module.Constants() {
		e.constant(t, c)
	}
	for _, cls := range e.module.Classes() {
		for _, c := range cls.Constants {
			e.constant(t, c)
		}
		for _, f := range cls.Fields {
			if f.Annotation != nil && ir.IsUnknown(f.Type) {
				f.Type = f.Annotation
				e.changed = true
			}
			if f.Default == nil || e.broken[f.Default] {
				continue
			}
			if !e.guard(nil, func() {
				e.refineField(f, t.expect(f.Default, f.Annotation))
			}) {
				e.broken[f.Default] = true
			}
		}
	}
}

func (e *Engine) constant(t *typer, c *ir.Constant) {
	if e.broken[c.Value] {
		return
	}
	ok := e.guard(nil, func() {
		vt := t.expect(c.Value, c.Annotation)
		next := vt
		if c.Annotation != nil && !ir.ContainsUnknown(c.Annotation) {
			next = c.Annotation
		}
		if !ir.Equal(next, c.Type) {
			c.Type = next
			e.changed = true
		}
	})
	if !ok {
		e.broken[c.Value] = true
		c.Type = ir.AnyType
	}
}
