package ownership

import "github.com/roach88/pyrs/internal/ir"

// set is a set of bindings.
type set map[*ir.Binding]bool

func (s set) clone() set {
	out := make(set, len(s))
	for b := range s {
		out[b] = true
	}
	return out
}

func (s set) union(o set) {
	for b := range o {
		s[b] = true
	}
}

// loopFrame is the liveness context of one enclosing loop.
type loopFrame struct {
	exit   set // live after the loop
	pinned set // outer bindings read in the loop
}

// liveness scans a function body backwards. live holds the bindings read
// later on the current path.
type liveness struct {
	live   set
	loops  []*loopFrame
	pinned map[*ir.Binding]int
}

// markLastUses sets LastUse on the final read of each binding.
func markLastUses(fn *ir.Function) {
	l := &liveness{live: make(set), pinned: make(map[*ir.Binding]int)}
	l.block(fn.Body)
}

func (l *liveness) block(stmts []ir.Stmt) {
	for i := len(stmts) - 1; i >= 0; i-- {
		l.stmt(stmts[i])
	}
}

func (l *liveness) stmt(s ir.Stmt) {
	switch n := s.(type) {
	case *ir.Assign:
		for i := len(n.Targets) - 1; i >= 0; i-- {
			l.target(n.Targets[i], n.Augmented())
		}
		l.expr(n.Value)
	case *ir.Return:
		l.live = make(set)
		l.expr(n.Value)
	case *ir.Raise:
		l.live = make(set)
		l.expr(n.Message)
	case *ir.ExprStmt:
		l.expr(n.X)
	case *ir.Break:
		if f := l.frame(); f != nil {
			l.live = f.exit.clone()
		}
	case *ir.Continue:
		if f := l.frame(); f != nil {
			l.live = f.exit.clone()
			l.live.union(f.pinned)
		}
	case *ir.If:
		after := l.live
		l.live = after.clone()
		l.block(n.Then)
		then := l.live
		l.live = after.clone()
		l.block(n.Else)
		l.live.union(then)
		l.expr(n.Cond)
	case *ir.While:
		l.loop(n.Body, nil, n.Cond)
	case *ir.For:
		l.loop(n.Body, n.Target, nil)
		l.expr(n.Iter)
	case *ir.With:
		l.block(n.Body)
		if n.Target != nil && n.Target.Binding != nil {
			delete(l.live, n.Target.Binding)
		}
		l.expr(n.Ctx)
	case *ir.TryExcept:
		l.try(n)
	}
}

// loop scans a loop body. Bindings declared outside the loop and read in it
// stay live across the whole body and are never a last use there.
func (l *liveness) loop(body []ir.Stmt, target, cond ir.Expr) {
	f := &loopFrame{exit: l.live.clone(), pinned: make(set)}
	inner := declaredIn(body, target)
	reads := readsIn(body)
	if cond != nil {
		reads.union(readsInExpr(cond))
	}
	for b := range reads {
		if !inner[b] {
			f.pinned[b] = true
			l.pinned[b]++
		}
	}
	l.loops = append(l.loops, f)

	l.live = f.exit.clone()
	l.live.union(f.pinned)
	l.block(body)
	l.expr(cond)
	l.loops = l.loops[:len(l.loops)-1]
	for b := range f.pinned {
		l.pinned[b]--
	}

	l.live.union(f.exit)
	l.live.union(f.pinned)
	if target != nil {
		for _, v := range ir.TargetVars(target) {
			delete(l.live, v.Binding)
		}
	}
}

func (l *liveness) try(n *ir.TryExcept) {
	l.block(n.Finally)
	after := l.live
	alts := make(set)
	for _, h := range n.Handlers {
		l.live = after.clone()
		l.block(h.Body)
		if h.Binding != nil {
			delete(l.live, h.Binding)
		}
		alts.union(l.live)
	}
	handlers := alts.clone()
	l.live = after.clone()
	l.block(n.Else)
	alts.union(l.live)

	// The body may transfer to a handler after any statement, so what the
	// handlers read stays live throughout it.
	l.live = alts
	for b := range handlers {
		l.pinned[b]++
	}
	l.block(n.Body)
	for b := range handlers {
		l.pinned[b]--
	}
	l.live.union(handlers)
}

func (l *liveness) frame() *loopFrame {
	if len(l.loops) == 0 {
		return nil
	}
	return l.loops[len(l.loops)-1]
}

// target handles an assignment target. A plain write ends the liveness of
// the old value; an index or attribute store reads its base.
func (l *liveness) target(t ir.Expr, augmented bool) {
	switch x := t.(type) {
	case *ir.Var:
		if x.Binding == nil {
			return
		}
		if augmented {
			l.live[x.Binding] = true
			return
		}
		delete(l.live, x.Binding)
	case *ir.TupleLit:
		for i := len(x.Elems) - 1; i >= 0; i-- {
			l.target(x.Elems[i], false)
		}
	case *ir.ListLit:
		for i := len(x.Elems) - 1; i >= 0; i-- {
			l.target(x.Elems[i], false)
		}
	case *ir.Index:
		l.expr(x.Index)
		l.store(x.X)
	case *ir.Attribute:
		l.store(x.X)
	}
}

// store keeps the base of a store target live without marking a last use.
func (l *liveness) store(e ir.Expr) {
	switch x := e.(type) {
	case *ir.Var:
		if x.Ref == ir.RefLocal && x.Binding != nil {
			l.live[x.Binding] = true
		}
	case *ir.Index:
		l.expr(x.Index)
		l.store(x.X)
	case *ir.Attribute:
		l.store(x.X)
	default:
		l.expr(e)
	}
}

// expr visits the reads of e in reverse evaluation order.
func (l *liveness) expr(e ir.Expr) {
	if e == nil {
		return
	}
	switch x := e.(type) {
	case *ir.Var:
		if x.Ref != ir.RefLocal || x.Binding == nil {
			return
		}
		b := x.Binding
		if !l.live[b] && l.pinned[b] == 0 {
			x.LastUse = true
		}
		l.live[b] = true
		return
	case *ir.Lambda, *ir.Comprehension:
		// Captured or iterated reads are not moves.
		for b := range readsInExpr(e) {
			l.live[b] = true
		}
		return
	case *ir.Binary:
		if x.Op == ir.OpAnd || x.Op == ir.OpOr {
			// The right side may not run.
			before := l.live.clone()
			l.expr(x.R)
			l.live.union(before)
			l.expr(x.L)
			return
		}
	case *ir.Ternary:
		after := l.live
		l.live = after.clone()
		l.expr(x.Then)
		then := l.live
		l.live = after.clone()
		l.expr(x.Else)
		l.live.union(then)
		l.expr(x.Cond)
		return
	}
	kids := ir.Children(e)
	for i := len(kids) - 1; i >= 0; i-- {
		l.expr(kids[i])
	}
}

// readsIn returns every local binding read in stmts.
func readsIn(stmts []ir.Stmt) set {
	out := make(set)
	ir.WalkBody(stmts, func(e ir.Expr) bool {
		if v, ok := e.(*ir.Var); ok && v.Ref == ir.RefLocal && v.Binding != nil {
			out[v.Binding] = true
		}
		return true
	})
	return out
}

func readsInExpr(e ir.Expr) set {
	out := make(set)
	ir.WalkExpr(e, func(x ir.Expr) bool {
		if v, ok := x.(*ir.Var); ok && v.Ref == ir.RefLocal && v.Binding != nil {
			out[v.Binding] = true
		}
		return true
	})
	return out
}
