package codegen

import (
	"strconv"

	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/rust"
	"github.com/roach88/pyrs/internal/target"
)

// block lowers a statement list.
func (l *lowerer) block(stmts []ir.Stmt) *rust.Block {
	out := &rust.Block{}
	for _, s := range stmts {
		out.Stmts = append(out.Stmts, l.stmt(s)...)
	}
	return out
}

func (l *lowerer) stmt(s ir.Stmt) []rust.Stmt {
	line := s.Pos().Line
	switch n := s.(type) {
	case *ir.ExprStmt:
		if lit, ok := n.X.(*ir.Literal); ok && lit.Kind == ir.LitStr {
			return nil
		}
		x := l.place(n.X)
		if t, ok := x.(*rust.TupleExpr); ok && len(t.Elems) == 0 {
			return nil
		}
		return []rust.Stmt{&rust.ExprStmt{X: x, Line: line}}
	case *ir.Assign:
		return l.assign(n)
	case *ir.Return:
		return []rust.Stmt{l.ret(n)}
	case *ir.Raise:
		return []rust.Stmt{l.raise(n)}
	case *ir.Break:
		if l.try != nil && l.loops == 0 {
			return []rust.Stmt{&rust.ExprStmt{X: l.unsupported(l.fn, "break", "break out of a try body", n.Loc), Line: line}}
		}
		return []rust.Stmt{&rust.Break{Line: line}}
	case *ir.Continue:
		if l.try != nil && l.loops == 0 {
			return []rust.Stmt{&rust.ExprStmt{X: l.unsupported(l.fn, "continue", "continue out of a try body", n.Loc), Line: line}}
		}
		return []rust.Stmt{&rust.Continue{Line: line}}
	case *ir.If:
		return l.ifStmt(n)
	case *ir.While:
		return []rust.Stmt{l.while(n)}
	case *ir.For:
		iter := l.forIter(n.Iter, n.Target)
		l.loops++
		body := l.block(n.Body)
		l.loops--
		return []rust.Stmt{&rust.ExprStmt{X: &rust.For{Pattern: l.pattern(n.Target), Iter: iter, Body: body}, Line: line}}
	case *ir.With:
		return []rust.Stmt{l.with(n)}
	case *ir.TryExcept:
		return l.tryStmt(n)
	}
	return []rust.Stmt{&rust.ExprStmt{X: l.unsupported(l.fn, "statement", "no lowering rule", s.Pos()), Line: line}}
}

// assign lowers plain, augmented and unpacking assignments.
func (l *lowerer) assign(s *ir.Assign) []rust.Stmt {
	line := s.Loc.Line
	if len(s.Targets) > 1 {
		return l.unpack(s.Targets, s.Value, line)
	}
	target := s.Targets[0]
	if s.Augmented() {
		return []rust.Stmt{l.augment(target, s.Op, s.Value, line)}
	}
	switch t := target.(type) {
	case *ir.Var:
		b := t.Binding
		if b == nil {
			return []rust.Stmt{&rust.ExprStmt{X: l.unsupported(l.fn, "assignment to "+t.Name, "unresolved name", t.Loc), Line: line}}
		}
		if s.Value == nil {
			if !t.Declares {
				return nil
			}
			return []rust.Stmt{&rust.Let{Name: ident(t.Name), Mut: b.NeedsMut(), Type: l.annotate(b.Type), Line: line}}
		}
		if t.Declares {
			return []rust.Stmt{&rust.Let{
				Name:  ident(t.Name),
				Mut:   b.NeedsMut(),
				Type:  l.annotate(b.Type),
				Value: l.letValue(s.Value, b.Type),
				Line:  line,
			}}
		}
		return []rust.Stmt{&rust.Assign{Target: rust.Id(ident(t.Name)), Op: "=", Value: l.valueAs(s.Value, b.Type), Line: line}}
	case *ir.TupleLit:
		return l.unpack(t.Elems, s.Value, line)
	case *ir.ListLit:
		return l.unpack(t.Elems, s.Value, line)
	}
	if s.Value == nil {
		return nil
	}
	return l.bind(target, l.valueAs(s.Value, ir.TypeOf(target)), s.Value, line)
}

// letValue lowers the initializer of a new binding. Lambdas stay unboxed
// closures.
func (l *lowerer) letValue(e ir.Expr, t ir.Type) rust.Expr {
	if lam, ok := e.(*ir.Lambda); ok {
		return l.closure(lam, false)
	}
	return l.valueAs(e, t)
}

// bind stores the lowered value x into target. src is the source value
// expression, or nil when x does not come from one.
func (l *lowerer) bind(target ir.Expr, x rust.Expr, src ir.Expr, line int) []rust.Stmt {
	switch t := target.(type) {
	case *ir.Var:
		if t.Binding == nil {
			break
		}
		if t.Declares {
			return []rust.Stmt{&rust.Let{Name: ident(t.Name), Mut: t.Binding.NeedsMut(), Type: l.annotate(t.Binding.Type), Value: x, Line: line}}
		}
		return []rust.Stmt{&rust.Assign{Target: rust.Id(ident(t.Name)), Op: "=", Value: x, Line: line}}
	case *ir.Attribute:
		return []rust.Stmt{&rust.Assign{Target: l.attribute(t), Op: "=", Value: x, Line: line}}
	case *ir.Index:
		switch c := ir.Deref(ir.TypeOf(t.X)).(type) {
		case ir.Map:
			key := l.valueAs(t.Index, c.Key)
			if src != nil && readsSame(src, t.Index) && needsClone(c.Key) {
				key = cloneOf(l.place(t.Index))
			}
			return []rust.Stmt{&rust.ExprStmt{X: rust.Method(l.place(t.X), "insert", key, x), Line: line}}
		case ir.Seq:
			return []rust.Stmt{&rust.Assign{Target: &rust.Index{X: l.place(t.X), Index: l.position(t.Index, t.X)}, Op: "=", Value: x, Line: line}}
		}
	case *ir.TupleLit:
		tmp := l.names.fresh("t")
		out := []rust.Stmt{&rust.Let{Name: tmp, Value: x, Line: line}}
		for i, e := range t.Elems {
			out = append(out, l.bind(e, &rust.Field{X: rust.Id(tmp), Name: strconv.Itoa(i)}, nil, line)...)
		}
		return out
	}
	return []rust.Stmt{&rust.ExprStmt{X: l.unsupported(l.fn, "assignment", "to "+ir.ExprKind(target), target.Base().Loc), Line: line}}
}

// readsSame reports whether e reads the binding that key names.
func readsSame(e, key ir.Expr) bool {
	k, ok := key.(*ir.Var)
	if !ok || k.Binding == nil {
		return false
	}
	found := false
	ir.WalkExpr(e, func(x ir.Expr) bool {
		if v, ok := x.(*ir.Var); ok && v.Binding == k.Binding {
			found = true
		}
		return !found
	})
	return found
}

// augment lowers target op= value.
func (l *lowerer) augment(target ir.Expr, op ir.BinOp, value ir.Expr, line int) rust.Stmt {
	t := ir.Deref(ir.TypeOf(target))
	reported := l.diags.Len()
	place := l.augTarget(target)
	if l.diags.Len() > reported {
		// The target has no lowering; its placeholder stands for the statement.
		return &rust.ExprStmt{X: place, Line: line}
	}
	switch {
	case ir.IsStr(t) && op == ir.OpAdd:
		return &rust.ExprStmt{X: rust.Method(place, "push_str", l.strRef(value)), Line: line}
	case isSeq(t) && op == ir.OpAdd:
		return &rust.ExprStmt{X: rust.Method(place, "extend", l.iterate(value)), Line: line}
	}
	if _, ok := t.(ir.Set); ok && op == ir.OpBitOr {
		return &rust.ExprStmt{X: rust.Method(place, "extend", l.iterate(value)), Line: line}
	}
	if sym, ok := compound[op]; ok && (ir.IsNumeric(t) || isBool(t)) {
		return &rust.Assign{Target: place, Op: sym + "=", Value: l.place(value), Line: line}
	}
	if op == ir.OpDiv && isFloat(t) {
		return &rust.Assign{Target: place, Op: "/=", Value: l.place(value), Line: line}
	}
	combined := &ir.Binary{ExprBase: ir.ExprBase{Loc: value.Base().Loc, T: t}, Op: op, L: target, R: value}
	return &rust.Assign{Target: l.augTarget(target), Op: "=", Value: l.binary(combined), Line: line}
}

// augTarget lowers the place an augmented assignment updates.
func (l *lowerer) augTarget(target ir.Expr) rust.Expr {
	if ix, ok := target.(*ir.Index); ok {
		if _, isMap := ir.Deref(ir.TypeOf(ix.X)).(ir.Map); isMap {
			slot := rust.Method(rust.Method(l.place(ix.X), "get_mut", l.keyRef(ix.Index)), "unwrap")
			return &rust.Unary{Op: "*", X: slot}
		}
	}
	return l.raw(target)
}

// unpack lowers a, b = value.
func (l *lowerer) unpack(targets []ir.Expr, value ir.Expr, line int) []rust.Stmt {
	vars := make([]*ir.Var, 0, len(targets))
	declaring, existing := 0, 0
	for _, t := range targets {
		if v, ok := t.(*ir.Var); ok && v.Binding != nil {
			vars = append(vars, v)
			if v.Declares {
				declaring++
			} else {
				existing++
			}
		}
	}
	vt := ir.Deref(ir.TypeOf(value))
	tup, isTuple := vt.(ir.Tuple)
	if isTuple && len(tup.Elems) != len(targets) {
		return []rust.Stmt{&rust.ExprStmt{X: l.unsupported(l.fn, "unpacking", "arity mismatch", value.Base().Loc), Line: line}}
	}
	lit, isLit := value.(*ir.TupleLit)

	if isTuple && declaring == len(targets) {
		names := make([]string, len(vars))
		types := make([]rust.Type, len(vars))
		typed := true
		for i, v := range vars {
			names[i] = ident(v.Name)
			if v.Binding.NeedsMut() {
				names[i] = "mut " + names[i]
			}
			if types[i] = l.annotate(v.Binding.Type); types[i] == nil {
				typed = false
			}
		}
		let := &rust.Let{Names: names, Value: l.tupleValue(value, lit, isLit, vars), Line: line}
		if typed {
			let.Type = rust.TupleType{Elems: types}
		}
		return []rust.Stmt{let}
	}
	if isLit && existing == len(targets) && l.profile.Supports(target.FeatureDestructuringAssignment) {
		ids := make([]rust.Expr, len(vars))
		for i, v := range vars {
			ids[i] = rust.Id(ident(v.Name))
		}
		return []rust.Stmt{&rust.Assign{Target: &rust.TupleExpr{Elems: ids}, Op: "=", Value: l.tupleValue(value, lit, isLit, vars), Line: line}}
	}

	tmp := l.names.fresh("t")
	out := []rust.Stmt{&rust.Let{Name: tmp, Value: l.value(value), Line: line}}
	for i, t := range targets {
		var part rust.Expr
		if isTuple {
			part = &rust.Field{X: rust.Id(tmp), Name: strconv.Itoa(i)}
		} else {
			part = &rust.Index{X: rust.Id(tmp), Index: rust.Int(int64(i))}
			if needsClone(ir.ElemOf(vt)) {
				part = cloneOf(part)
			}
		}
		out = append(out, l.bind(t, part, nil, line)...)
	}
	return out
}

// tupleValue lowers the right side of a tuple unpacking with each element
// converted to its target's type.
func (l *lowerer) tupleValue(value ir.Expr, lit *ir.TupleLit, isLit bool, vars []*ir.Var) rust.Expr {
	if !isLit || len(lit.Elems) != len(vars) {
		return l.value(value)
	}
	elems := make([]rust.Expr, len(vars))
	for i, v := range vars {
		elems[i] = l.valueAs(lit.Elems[i], v.Binding.Type)
	}
	return &rust.TupleExpr{Elems: elems}
}

// ret lowers a return statement.
func (l *lowerer) ret(s *ir.Return) rust.Stmt {
	line := s.Loc.Line
	if l.ctor {
		return &rust.Return{Value: l.okWrap(rust.Id("this")), Line: line}
	}
	var v rust.Expr
	switch {
	case s.Value != nil:
		v = l.valueAs(s.Value, l.fn.Returns)
	case isOptional(l.fn.Returns):
		v = rust.Id("None")
	}
	return l.returnStmt(v, line)
}

// returnStmt returns v from the function, through the enclosing try
// closure if there is one. A nil v is ().
func (l *lowerer) returnStmt(v rust.Expr, line int) rust.Stmt {
	if l.try != nil {
		if v == nil {
			v = &rust.TupleExpr{}
		}
		some := &rust.Call{Func: rust.Id("Some"), Args: []rust.Expr{v}}
		return &rust.Return{Value: &rust.Call{Func: rust.Id("Ok"), Args: []rust.Expr{some}}, Line: line}
	}
	if l.fn != nil && l.fn.Fallible {
		if v == nil {
			v = &rust.TupleExpr{}
		}
		return &rust.Return{Value: &rust.Call{Func: rust.Id("Ok"), Args: []rust.Expr{v}}, Line: line}
	}
	return &rust.Return{Value: v, Line: line}
}

// raise lowers raise and failed assertions.
func (l *lowerer) raise(s *ir.Raise) rust.Stmt {
	line := s.Loc.Line
	switch {
	case s.Assert:
		args := []rust.Expr{rust.Str("AssertionError")}
		if s.Message != nil {
			ph, arg := l.formatArg(s.Message, 0, "")
			args = []rust.Expr{rust.Str("AssertionError: " + ph)}
			if arg != nil {
				args = append(args, arg)
			}
		}
		return &rust.ExprStmt{X: &rust.Macro{Name: "panic", Args: args}, Line: line}
	case s.Reraise || (s.Kind != "" && s.Kind == l.errAlias):
		if l.errVar == "" {
			return &rust.ExprStmt{X: l.unsupported(l.fn, "raise", "bare raise outside an except clause", s.Loc), Line: line}
		}
		return l.throw(cloneOf(rust.Id(l.errVar)), line)
	}
	var msg []ir.Expr
	if s.Message != nil {
		msg = []ir.Expr{s.Message}
	}
	return l.throw(l.newException(s.Kind, l.message(msg)), line)
}

// throw raises the PyException x: returned as an Err where the function
// can fail, a panic otherwise.
func (l *lowerer) throw(x rust.Expr, line int) rust.Stmt {
	if l.result {
		return &rust.Return{Value: &rust.Call{Func: rust.Id("Err"), Args: []rust.Expr{x}}, Line: line}
	}
	return &rust.ExprStmt{X: &rust.Macro{Name: "panic", Args: []rust.Expr{rust.Str("{}"), x}}, Line: line}
}

// ifStmt lowers an if statement with its hoisted declarations.
func (l *lowerer) ifStmt(s *ir.If) []rust.Stmt {
	out := l.hoist(s.Hoisted, func(b *ir.Binding) bool {
		return assigns(s.Then, b) && assigns(s.Else, b)
	})
	pre, x := l.ifExpr(s)
	out = append(out, pre...)
	return append(out, &rust.ExprStmt{X: x, Line: s.Loc.Line})
}

// ifExpr lowers s to an if expression and the statements that must run
// before it. Elif chains stay flat when no statement is needed between the
// branches.
func (l *lowerer) ifExpr(s *ir.If) ([]rust.Stmt, *rust.If) {
	pre, cond := l.splitCond(s.Cond)
	out := &rust.If{Cond: cond, Then: l.block(s.Then)}
	if len(s.Else) == 1 {
		if elif, ok := s.Else[0].(*ir.If); ok && len(elif.Hoisted) == 0 {
			if elifPre, x := l.ifExpr(elif); len(elifPre) == 0 {
				out.Else = x
				return pre, out
			}
		}
	}
	if len(s.Else) > 0 {
		out.Else = &rust.BlockExpr{Block: l.block(s.Else)}
	}
	return pre, out
}

// hoist declares bindings ahead of a branching statement. Bindings every
// path assigns are declared without a value; the rest start at their zero
// value.
func (l *lowerer) hoist(bindings []*ir.Binding, definite func(*ir.Binding) bool) []rust.Stmt {
	var out []rust.Stmt
	for _, b := range bindings {
		let := &rust.Let{Name: ident(b.Name), Mut: b.NeedsMut(), Type: l.annotate(b.Type), Line: b.Loc.Line}
		if definite == nil || !definite(b) {
			if z, ok := l.zero(b.Type); ok {
				let.Value = z
				let.Mut = true
			}
		}
		out = append(out, let)
	}
	return out
}

// assigns reports whether every path through stmts that reaches its end
// assigns b.
func assigns(stmts []ir.Stmt, b *ir.Binding) bool {
	for _, s := range stmts {
		switch n := s.(type) {
		case *ir.Assign:
			for _, t := range n.Targets {
				for _, v := range ir.TargetVars(t) {
					if v.Binding == b {
						return true
					}
				}
			}
		case *ir.If:
			if assigns(n.Then, b) && assigns(n.Else, b) {
				return true
			}
		case *ir.With:
			if assigns(n.Body, b) {
				return true
			}
		case *ir.Return, *ir.Raise, *ir.Break, *ir.Continue:
			return true
		}
	}
	return false
}

// splitCond binds a comparison whose operands need conversions to a
// temporary, keeping casts out of the branch head.
func (l *lowerer) splitCond(e ir.Expr) ([]rust.Stmt, rust.Expr) {
	b, ok := e.(*ir.Binary)
	if !ok || !b.Op.IsComparison() || (b.L.Base().Conv == nil && b.R.Base().Conv == nil) {
		return nil, l.cond(e)
	}
	tmp := l.names.fresh("cmp")
	let := &rust.Let{Name: tmp, Type: rust.Named("bool"), Value: l.cond(e), Line: b.Loc.Line}
	return []rust.Stmt{let}, rust.Id(tmp)
}

func (l *lowerer) while(s *ir.While) rust.Stmt {
	line := s.Loc.Line
	if isTrue(s.Cond) {
		l.loops++
		body := l.block(s.Body)
		l.loops--
		return &rust.ExprStmt{X: &rust.Loop{Body: body}, Line: line}
	}
	pre, cond := l.splitCond(s.Cond)
	l.loops++
	body := l.block(s.Body)
	l.loops--
	if len(pre) == 0 {
		return &rust.ExprStmt{X: &rust.While{Cond: cond, Body: body}, Line: line}
	}
	exit := &rust.If{Cond: &rust.Unary{Op: "!", X: cond}, Then: &rust.Block{Stmts: []rust.Stmt{&rust.Break{}}}}
	stmts := append(pre, &rust.ExprStmt{X: exit})
	body.Stmts = append(stmts, body.Stmts...)
	return &rust.ExprStmt{X: &rust.Loop{Body: body}, Line: line}
}

// with lowers a with statement to a block that owns the resource.
func (l *lowerer) with(s *ir.With) rust.Stmt {
	name := l.names.fresh("ctx")
	mut := false
	if s.Target != nil {
		name = ident(s.Target.Name)
		if b := s.Target.Binding; b != nil {
			mut = b.NeedsMut()
		}
	}
	if g, ok := ir.Deref(ir.TypeOf(s.Ctx)).(ir.Generic); ok && g.Name == "File" {
		mut = true
	}
	let := &rust.Let{Name: name, Mut: mut, Value: l.value(s.Ctx), Line: s.Loc.Line}
	body := l.block(s.Body)
	body.Stmts = append([]rust.Stmt{let}, body.Stmts...)
	return &rust.ExprStmt{X: &rust.BlockExpr{Block: body}, Line: s.Loc.Line}
}

// tryStmt lowers try/except/else/finally. The body runs in an immediately
// called closure returning Result, so ? and raise inside it stop at the
// handlers. A body that returns from the function yields Some(value).
func (l *lowerer) tryStmt(s *ir.TryExcept) []rust.Stmt {
	line := s.Loc.Line
	out := l.hoist(s.Hoisted, nil)

	frame := &tryFrame{returns: containsReturn(s.Body)}
	result, try, loops := l.result, l.try, l.loops
	l.result, l.try, l.loops = true, frame, 0
	body := l.block(s.Body)
	if !ir.Terminates(s.Body) {
		var done rust.Expr = &rust.TupleExpr{}
		if frame.returns {
			done = rust.Id("None")
		}
		body.Tail = &rust.Call{Func: rust.Id("Ok"), Args: []rust.Expr{done}}
	}
	l.result, l.try, l.loops = result, try, loops

	var okType rust.Type = rust.Unit
	if frame.returns {
		var inner rust.Type = rust.Unit
		if !isUnit(l.fn.Returns) {
			inner = l.typ(l.fn.Returns)
		}
		okType = rust.Named("Option", inner)
	}
	l.helpers[helperException] = true
	closure := &rust.Closure{
		Result: rust.Named("Result", okType, rust.Named(ir.ExceptionClass)),
		Body:   &rust.BlockExpr{Block: body},
	}
	tryVar := l.names.fresh("try")
	out = append(out, &rust.Let{Name: tryVar, Value: &rust.Call{Func: &rust.Paren{X: closure}}, Line: line})

	errName := l.names.fresh("err")
	dispatch := l.dispatch(s.Handlers, errName)
	var elseBlock *rust.Block
	if len(s.Else) > 0 {
		elseBlock = l.block(s.Else)
	}

	if frame.returns {
		ret := l.names.fresh("ret")
		retArm := l.block(s.Finally)
		retArm.Stmts = append(retArm.Stmts, l.returnStmt(rust.Id(ret), line))
		if elseBlock == nil {
			elseBlock = &rust.Block{}
		}
		out = append(out, &rust.ExprStmt{X: &rust.Match{X: rust.Id(tryVar), Arms: []rust.Arm{
			{Pattern: "Ok(Some(" + ret + "))", Body: &rust.BlockExpr{Block: retArm}},
			{Pattern: "Ok(None)", Body: &rust.BlockExpr{Block: elseBlock}},
			{Pattern: "Err(" + errName + ")", Body: &rust.BlockExpr{Block: dispatch}},
		}}, Line: line})
	} else {
		out = append(out, &rust.ExprStmt{X: &rust.IfLet{
			Pattern: "Err(" + errName + ")",
			X:       rust.Id(tryVar),
			Then:    dispatch,
			Else:    elseBlock,
		}, Line: line})
	}
	return append(out, l.block(s.Finally).Stmts...)
}

// dispatch routes the caught error errName to the first matching handler
// and re-raises it when none matches.
func (l *lowerer) dispatch(handlers []*ir.Handler, errName string) *rust.Block {
	err := rust.Id(errName)
	var (
		first, last *rust.If
		fallback    *rust.Block
	)
	for _, h := range handlers {
		blk := l.handler(h, errName)
		kinds := l.caughtKinds(h.Kinds)
		if kinds == nil {
			fallback = blk
			break
		}
		kind := &rust.Field{X: err, Name: "kind"}
		var test rust.Expr
		if len(kinds) == 1 {
			test = &rust.Binary{Op: "==", L: kind, R: rust.Str(kinds[0])}
		} else {
			names := make([]rust.Expr, len(kinds))
			for i, k := range kinds {
				names[i] = rust.Str(k)
			}
			test = rust.Method(&rust.ArrayLit{Elems: names}, "contains", &rust.Borrow{X: rust.Method(kind, "as_str")})
		}
		branch := &rust.If{Cond: test, Then: blk}
		if first == nil {
			first = branch
		} else {
			last.Else = branch
		}
		last = branch
	}
	if fallback == nil {
		fallback = &rust.Block{Stmts: []rust.Stmt{l.throw(err, 0)}}
	}
	if first == nil {
		return fallback
	}
	last.Else = &rust.BlockExpr{Block: fallback}
	return &rust.Block{Stmts: []rust.Stmt{&rust.ExprStmt{X: first}}}
}

// handler lowers one except clause with the caught error in scope.
func (l *lowerer) handler(h *ir.Handler, errName string) *rust.Block {
	savedVar, savedAlias := l.errVar, l.errAlias
	l.errVar, l.errAlias = errName, h.Name
	defer func() { l.errVar, l.errAlias = savedVar, savedAlias }()

	blk := l.block(h.Body)
	if h.Name != "" && h.Binding != nil {
		bind := &rust.Let{Name: ident(h.Name), Value: cloneOf(rust.Id(errName)), Line: h.Loc.Line}
		blk.Stmts = append([]rust.Stmt{bind}, blk.Stmts...)
	}
	return blk
}

// containsReturn reports whether stmts return from the function.
func containsReturn(stmts []ir.Stmt) bool {
	found := false
	ir.WalkStmts(stmts, func(s ir.Stmt) bool {
		if _, ok := s.(*ir.Return); ok {
			found = true
		}
		return !found
	})
	return found
}
