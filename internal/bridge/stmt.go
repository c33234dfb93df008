package bridge

import (
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/pyast"
)

var augOps = map[string]ir.BinOp{
	"+": ir.OpAdd, "-": ir.OpSub, "*": ir.OpMul, "/": ir.OpDiv, "//": ir.OpFloorDiv,
	"%": ir.OpMod, "**": ir.OpPow, "&": ir.OpBitAnd, "|": ir.OpBitOr, "^": ir.OpBitXor,
	"<<": ir.OpShl, ">>": ir.OpShr,
}

func (b *Bridge) block(body []pyast.Stmt) []ir.Stmt {
	var out []ir.Stmt
	for _, s := range body {
		out = append(out, b.stmt(s)...)
	}
	return out
}

func (b *Bridge) stmt(s pyast.Stmt) []ir.Stmt {
	base := ir.StmtBase{Loc: irLoc(s.Position())}
	switch n := s.(type) {
	case *pyast.Pass:
		return nil
	case *pyast.ExprStmt:
		return b.exprStmt(n, base)
	case *pyast.Assign:
		return b.assign(n, base)
	case *pyast.AugAssign:
		op, ok := augOps[n.Op]
		if !ok {
			b.unsupported(n.Pos, "augmented operator %s=", n.Op)
		}
		return []ir.Stmt{&ir.Assign{StmtBase: base, Targets: []ir.Expr{b.target(n.Target)}, Value: b.expr(n.Value), Op: op}}
	case *pyast.AnnAssign:
		a := &ir.Assign{StmtBase: base, Targets: []ir.Expr{b.target(n.Target)}, Annotation: b.annotation(n.Annotation)}
		if n.Value != nil {
			a.Value = b.expr(n.Value)
		}
		return []ir.Stmt{a}
	case *pyast.Return:
		r := &ir.Return{StmtBase: base}
		if n.Value != nil {
			r.Value = b.expr(n.Value)
		}
		return []ir.Stmt{r}
	case *pyast.If:
		return []ir.Stmt{&ir.If{StmtBase: base, Cond: b.expr(n.Test), Then: b.block(n.Body), Else: b.block(n.Orelse)}}
	case *pyast.While:
		if len(n.Orelse) > 0 {
			b.unsupported(n.Pos, "while-else")
		}
		return []ir.Stmt{&ir.While{StmtBase: base, Cond: b.expr(n.Test), Body: b.block(n.Body)}}
	case *pyast.For:
		if n.Async {
			b.unsupported(n.Pos, "async for")
		}
		if len(n.Orelse) > 0 {
			b.unsupported(n.Pos, "for-else")
		}
		return []ir.Stmt{&ir.For{StmtBase: base, Target: b.target(n.Target), Iter: b.expr(n.Iter), Body: b.block(n.Body)}}
	case *pyast.With:
		return []ir.Stmt{b.with(n, n.Items, base)}
	case *pyast.Raise:
		return []ir.Stmt{b.raise(n, base)}
	case *pyast.Try:
		return []ir.Stmt{b.try(n, base)}
	case *pyast.Assert:
		r := &ir.Raise{StmtBase: base, Kind: "AssertionError", Assert: true}
		if n.Msg != nil {
			r.Message = b.expr(n.Msg)
		}
		cond := &ir.Unary{ExprBase: ir.ExprBase{Loc: irLoc(n.Test.Position())}, Op: ir.UNot, X: b.expr(n.Test)}
		return []ir.Stmt{&ir.If{StmtBase: base, Cond: cond, Then: []ir.Stmt{r}}}
	case *pyast.Break:
		return []ir.Stmt{&ir.Break{StmtBase: base}}
	case *pyast.Continue:
		return []ir.Stmt{&ir.Continue{StmtBase: base}}
	}
	b.unsupported(s.Position(), "%s", stmtName(s))
	return nil
}

func (b *Bridge) exprStmt(n *pyast.ExprStmt, base ir.StmtBase) []ir.Stmt {
	if c, ok := n.Value.(*pyast.Constant); ok {
		// Stray string literals and "..." stubs have no effect.
		if c.Kind == pyast.ConstStr || c.Kind == pyast.ConstEllipsis {
			return nil
		}
	}
	if _, ok := n.Value.(*pyast.Yield); ok {
		b.unsupported(n.Pos, "generator function (yield)")
	}
	return []ir.Stmt{&ir.ExprStmt{StmtBase: base, X: b.expr(n.Value)}}
}

// assign lowers "a = v", "a, b = v" and "a = b = v". The chained form
// becomes "a = v; b = a" so v is evaluated once.
func (b *Bridge) assign(n *pyast.Assign, base ir.StmtBase) []ir.Stmt {
	if _, ok := n.Value.(*pyast.Yield); ok {
		b.unsupported(n.Pos, "generator function (yield)")
	}
	value := b.expr(n.Value)
	var out []ir.Stmt
	for i, t := range n.Targets {
		a := &ir.Assign{StmtBase: base, Value: value}
		if tup, ok := unpackTarget(t); ok {
			for _, e := range tup {
				a.Targets = append(a.Targets, b.target(e))
			}
		} else {
			a.Targets = []ir.Expr{b.target(t)}
		}
		out = append(out, a)
		if i+1 < len(n.Targets) {
			first, ok := n.Targets[0].(*pyast.Name)
			if !ok {
				b.unsupported(n.Pos, "chained assignment to %s", exprName(n.Targets[0]))
			}
			value = &ir.Var{ExprBase: ir.ExprBase{Loc: irLoc(first.Pos)}, Name: first.ID}
		}
	}
	return out
}

func unpackTarget(t pyast.Expr) ([]pyast.Expr, bool) {
	switch x := t.(type) {
	case *pyast.Tuple:
		return x.Elts, true
	case *pyast.List:
		return x.Elts, true
	}
	return nil, false
}

// target lowers an assignment or loop target.
func (b *Bridge) target(t pyast.Expr) ir.Expr {
	base := ir.ExprBase{Loc: irLoc(t.Position())}
	switch x := t.(type) {
	case *pyast.Name:
		return &ir.Var{ExprBase: base, Name: x.ID}
	case *pyast.Tuple, *pyast.List:
		elts, _ := unpackTarget(t)
		tup := &ir.TupleLit{ExprBase: base}
		for _, e := range elts {
			tup.Elems = append(tup.Elems, b.target(e))
		}
		return tup
	case *pyast.Attribute:
		return &ir.Attribute{ExprBase: base, X: b.expr(x.Value), Name: x.Attr}
	case *pyast.Subscript:
		if _, ok := x.Slice.(*pyast.Slice); ok {
			b.unsupported(x.Pos, "slice assignment")
		}
		return &ir.Index{ExprBase: base, X: b.expr(x.Value), Index: b.expr(x.Slice)}
	}
	b.unsupported(t.Position(), "assignment to %s", exprName(t))
	return nil
}

// with lowers each item into a nested With.
func (b *Bridge) with(n *pyast.With, items []*pyast.WithItem, base ir.StmtBase) ir.Stmt {
	if n.Async {
		b.unsupported(n.Pos, "async with")
	}
	item := items[0]
	w := &ir.With{StmtBase: base, Ctx: b.expr(item.Context)}
	if item.Var != nil {
		name, ok := item.Var.(*pyast.Name)
		if !ok {
			b.unsupported(n.Pos, "with target %s", exprName(item.Var))
		}
		w.Target = &ir.Var{ExprBase: ir.ExprBase{Loc: irLoc(name.Pos)}, Name: name.ID}
	}
	if len(items) > 1 {
		w.Body = []ir.Stmt{b.with(n, items[1:], base)}
	} else {
		w.Body = b.block(n.Body)
	}
	return w
}

// raise lowers "raise", "raise Kind" and "raise Kind(msg)".
func (b *Bridge) raise(n *pyast.Raise, base ir.StmtBase) ir.Stmt {
	r := &ir.Raise{StmtBase: base}
	switch exc := n.Exc.(type) {
	case nil:
		r.Reraise = true
	case *pyast.Name:
		r.Kind = exc.ID
	case *pyast.Call:
		name, ok := exc.Func.(*pyast.Name)
		if !ok {
			b.unsupported(n.Pos, "raise of %s", exprName(exc.Func))
		}
		if len(exc.Args) > 1 || len(exc.Keywords) > 0 {
			b.unsupported(n.Pos, "exception with more than one argument")
		}
		r.Kind = name.ID
		if len(exc.Args) == 1 {
			r.Message = b.expr(exc.Args[0])
		}
	default:
		b.unsupported(n.Pos, "raise of %s", exprName(n.Exc))
	}
	return r
}

func (b *Bridge) try(n *pyast.Try, base ir.StmtBase) ir.Stmt {
	t := &ir.TryExcept{
		StmtBase: base,
		Body:     b.block(n.Body),
		Else:     b.block(n.Orelse),
		Finally:  b.block(n.Finalbody),
	}
	for _, h := range n.Handlers {
		ih := &ir.Handler{Name: h.Name, Body: b.block(h.Body), Loc: irLoc(h.Pos)}
		switch ty := h.Type.(type) {
		case nil:
		case *pyast.Name:
			ih.Kinds = []string{ty.ID}
		case *pyast.Tuple:
			for _, e := range ty.Elts {
				name, ok := e.(*pyast.Name)
				if !ok {
					b.unsupported(h.Pos, "except clause on %s", exprName(e))
				}
				ih.Kinds = append(ih.Kinds, name.ID)
			}
		default:
			b.unsupported(h.Pos, "except clause on %s", exprName(h.Type))
		}
		t.Handlers = append(t.Handlers, ih)
	}
	return t
}
