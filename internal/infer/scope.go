package infer

import (
	"github.com/roach88/pyrs/internal/ir"
)

// resolver creates bindings for one function body and resolves every name
// reference in it.
type resolver struct {
	e   *Engine
	fn  *ir.Function
	env *ir.TypeEnvironment

	// loopNames holds names declared while a loop scope was open, so a
	// later unresolved read can be reported as a read after the loop.
	loopNames map[string]bool
}

func (e *Engine) newResolver(fn *ir.Function) *resolver {
	return &resolver{e: e, fn: fn, env: ir.NewTypeEnvironment(), loopNames: make(map[string]bool)}
}

// resolveModule resolves the expressions that live outside function bodies:
// module and class constants and class field defaults.
func (e *Engine) resolveModule() {
	resolveValue := func(x ir.Expr) {
		if !e.guard(nil, func() { e.newResolver(nil).expr(x) }) {
			e.broken[x] = true
		}
	}
	for _, d := range e.module.Decls {
		switch n := d.(type) {
		case *ir.Constant:
			resolveValue(n.Value)
		case *ir.Class:
			for _, c := range n.Constants {
				resolveValue(c.Value)
			}
			for _, f := range n.Fields {
				if f.Default != nil {
					resolveValue(f.Default)
				}
			}
		}
	}
}

// resolve declares parameter and local bindings of fn. A function that was
// already resolved keeps its bindings.
func (e *Engine) resolve(fn *ir.Function) {
	if fn.Bindings != nil {
		return
	}
	r := e.newResolver(fn)
	e.guard(fn, func() {
		for _, p := range fn.Params {
			if p.Default != nil {
				r.expr(p.Default)
			}
		}
		if fn.IsMethod() && !fn.Static {
			fn.Self = r.env.Declare("self", ir.BindSelf, fn.Loc)
			fn.Self.Type = ir.Generic{Name: fn.Class.Name}
		}
		for _, p := range fn.Params {
			p.Binding = r.env.Declare(p.Name, ir.BindParam, p.Loc)
			if p.Annotation != nil {
				p.Binding.Declared = p.Annotation
				p.Binding.Type = p.Annotation
			}
		}
		r.block(fn.Body, nil)
	})
	fn.Bindings = append([]*ir.Binding{}, r.env.Bindings()...)
}

// block resolves stmts. after holds the names read once the block is done.
func (r *resolver) block(stmts []ir.Stmt, after map[string]bool) {
	for i, s := range stmts {
		r.stmt(s, stmts[i+1:], after)
	}
}

func (r *resolver) stmt(s ir.Stmt, rest []ir.Stmt, after map[string]bool) {
	switch n := s.(type) {
	case *ir.Assign:
		if n.Value != nil {
			r.expr(n.Value)
		}
		for _, t := range n.Targets {
			r.target(t, n.Augmented(), ir.BindLocal)
		}
		if n.Annotation != nil && len(n.Targets) == 1 {
			if v, ok := n.Targets[0].(*ir.Var); ok && v.Binding != nil {
				v.Binding.Declared = n.Annotation
				v.Binding.Type = n.Annotation
			}
		}
	case *ir.Return:
		r.expr(n.Value)
	case *ir.ExprStmt:
		r.expr(n.X)
	case *ir.Raise:
		r.expr(n.Message)
	case *ir.If:
		r.expr(n.Cond)
		live := union(reads(rest), after)
		n.Hoisted = r.hoist(n.Pos(), live, n.Then, n.Else)
		r.branch(n.Then, live)
		r.branch(n.Else, live)
	case *ir.While:
		r.expr(n.Cond)
		r.loop(n.Body, nil, union(reads(rest), after))
	case *ir.For:
		r.expr(n.Iter)
		r.loop(n.Body, n.Target, union(reads(rest), after))
	case *ir.With:
		r.expr(n.Ctx)
		if n.Target != nil {
			r.target(n.Target, false, ir.BindWith)
		}
		r.block(n.Body, union(reads(rest), after))
	case *ir.TryExcept:
		live := union(reads(rest), after)
		blocks := [][]ir.Stmt{n.Body, n.Else}
		for _, h := range n.Handlers {
			blocks = append(blocks, h.Body)
		}
		n.Hoisted = r.hoist(n.Pos(), live, blocks...)
		r.branch(n.Body, live)
		for _, h := range n.Handlers {
			r.env.Push(ir.ScopeBranch)
			if h.Name != "" {
				h.Binding = r.declare(h.Name, ir.BindHandler, h.Loc)
				h.Binding.Type = ir.Generic{Name: ir.ExceptionClass}
			}
			r.block(h.Body, live)
			r.env.Pop()
		}
		r.branch(n.Else, live)
		r.block(n.Finally, after)
	case *ir.Break, *ir.Continue:
	}
}

func (r *resolver) branch(stmts []ir.Stmt, after map[string]bool) {
	r.env.Push(ir.ScopeBranch)
	r.block(stmts, after)
	r.env.Pop()
}

func (r *resolver) loop(body []ir.Stmt, target ir.Expr, after map[string]bool) {
	r.env.Push(ir.ScopeLoop)
	if target != nil {
		for _, v := range ir.TargetVars(target) {
			r.bindNew(v, ir.BindLoopVar)
		}
	}
	r.block(body, after)
	r.env.Pop()
}

// hoist declares, ahead of a branching statement, every name that one of
// its branches assigns outside any loop and that is read after the
// statement. A name also assigned inside a loop in those branches stays
// loop-scoped, and so does every name only assigned in loops.
func (r *resolver) hoist(at ir.Loc, live map[string]bool, blocks ...[]ir.Stmt) []*ir.Binding {
	var names []string
	seen := make(map[string]bool)
	inLoop := make(map[string]bool)
	for _, b := range blocks {
		collectAssigned(b, false, func(name string, loop bool) {
			if loop {
				inLoop[name] = true
				return
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		})
	}
	var out []*ir.Binding
	for _, name := range names {
		if !live[name] || inLoop[name] || r.env.Lookup(name) != nil {
			continue
		}
		b := r.declare(name, ir.BindLocal, at)
		b.Hoisted = true
		out = append(out, b)
	}
	return out
}

// collectAssigned reports every name a plain assignment or with target in
// stmts binds, flagging those inside a loop body.
func collectAssigned(stmts []ir.Stmt, loop bool, fn func(name string, loop bool)) {
	for _, s := range stmts {
		switch n := s.(type) {
		case *ir.Assign:
			for _, t := range n.Targets {
				for _, v := range ir.TargetVars(t) {
					fn(v.Name, loop)
				}
			}
		case *ir.With:
			if n.Target != nil {
				fn(n.Target.Name, loop)
			}
		case *ir.For:
			for _, v := range ir.TargetVars(n.Target) {
				fn(v.Name, true)
			}
			collectAssigned(n.Body, true, fn)
			continue
		case *ir.While:
			collectAssigned(n.Body, true, fn)
			continue
		}
		for _, b := range ir.Blocks(s) {
			collectAssigned(b, loop, fn)
		}
	}
}

// target resolves an assignment target. Plain names are written; an
// augmented assignment also reads its target first.
func (r *resolver) target(t ir.Expr, augmented bool, kind ir.BindingKind) {
	switch x := t.(type) {
	case *ir.Var:
		if augmented {
			r.read(x)
			return
		}
		r.write(x, kind)
	case *ir.TupleLit:
		for _, e := range x.Elems {
			r.target(e, false, kind)
		}
	case *ir.ListLit:
		for _, e := range x.Elems {
			r.target(e, false, kind)
		}
	case *ir.Attribute:
		r.expr(x.X)
	case *ir.Index:
		r.expr(x.X)
		r.expr(x.Index)
	default:
		r.expr(t)
	}
}

// write binds v to the visible binding of its name, or declares a new one
// in the innermost scope.
func (r *resolver) write(v *ir.Var, kind ir.BindingKind) {
	if b := r.env.Lookup(v.Name); b != nil {
		v.Ref = ir.RefLocal
		v.Binding = b
		v.Declares = false
		return
	}
	r.bindNew(v, kind)
}

func (r *resolver) bindNew(v *ir.Var, kind ir.BindingKind) {
	v.Ref = ir.RefLocal
	v.Binding = r.declare(v.Name, kind, v.Loc)
	v.Declares = true
}

func (r *resolver) declare(name string, kind ir.BindingKind, at ir.Loc) *ir.Binding {
	if r.env.InLoop() {
		r.loopNames[name] = true
	}
	return r.env.Declare(name, kind, at)
}

// read resolves a name reference: locals first, then module declarations,
// imports and builtins.
func (r *resolver) read(v *ir.Var) {
	if b := r.env.Lookup(v.Name); b != nil {
		v.Ref = ir.RefLocal
		v.Binding = b
		b.Read = true
		return
	}
	m := r.e.module
	if f := m.Function(v.Name); f != nil {
		v.Ref, v.Decl = ir.RefFunction, f
		return
	}
	if c := m.Class(v.Name); c != nil {
		v.Ref, v.Decl = ir.RefClass, c
		return
	}
	if c := m.Constant(v.Name); c != nil {
		v.Ref, v.Decl = ir.RefConstant, c
		return
	}
	if imp, _ := m.Import(v.Name); imp != nil {
		v.Ref, v.Decl = ir.RefImport, imp
		return
	}
	if IsBuiltin(v.Name) {
		v.Ref = ir.RefBuiltin
		return
	}
	if r.loopNames[v.Name] {
		r.e.unsupported(r.fn, v.Loc, "read of %q after the loop that assigns it", v.Name)
	}
	r.e.internalError(r.fn, v.Loc, "reference to undeclared name %q", v.Name)
}

// expr resolves every name read inside e.
func (r *resolver) expr(e ir.Expr) {
	if e == nil {
		return
	}
	switch x := e.(type) {
	case *ir.Var:
		r.read(x)
	case *ir.Comprehension:
		for i, g := range x.Gens {
			if i == 0 {
				r.expr(g.Iter)
				r.env.Push(ir.ScopeComprehension)
			} else {
				r.expr(g.Iter)
			}
			for _, v := range ir.TargetVars(g.Target) {
				r.bindNew(v, ir.BindCompVar)
			}
			for _, c := range g.Ifs {
				r.expr(c)
			}
		}
		r.expr(x.Elem)
		r.expr(x.Key)
		r.expr(x.Value)
		if len(x.Gens) > 0 {
			r.env.Pop()
		}
	case *ir.Lambda:
		for _, p := range x.Params {
			r.expr(p.Default)
		}
		r.env.Push(ir.ScopeComprehension)
		for _, p := range x.Params {
			p.Binding = r.declare(p.Name, ir.BindParam, p.Loc)
		}
		r.expr(x.Body)
		r.env.Pop()
	case *ir.Attribute:
		r.expr(x.X)
	default:
		for _, c := range ir.Children(e) {
			r.expr(c)
		}
	}
}

// reads returns the names read anywhere in stmts, ignoring names bound by
// comprehensions and lambdas inside them.
func reads(stmts []ir.Stmt) map[string]bool {
	out := make(map[string]bool)
	ir.WalkStmts(stmts, func(s ir.Stmt) bool {
		switch n := s.(type) {
		case *ir.Assign:
			readsExpr(n.Value, nil, out)
			for _, t := range n.Targets {
				readsTarget(t, n.Augmented(), out)
			}
		case *ir.For:
			readsExpr(n.Iter, nil, out)
		case *ir.With:
			readsExpr(n.Ctx, nil, out)
		default:
			for _, e := range ir.StmtExprs(s) {
				readsExpr(e, nil, out)
			}
		}
		return true
	})
	return out
}

func readsTarget(t ir.Expr, augmented bool, out map[string]bool) {
	switch x := t.(type) {
	case *ir.Var:
		if augmented {
			out[x.Name] = true
		}
	case *ir.TupleLit:
		for _, e := range x.Elems {
			readsTarget(e, false, out)
		}
	case *ir.Attribute:
		readsExpr(x.X, nil, out)
	case *ir.Index:
		readsExpr(x.X, nil, out)
		readsExpr(x.Index, nil, out)
	}
}

func readsExpr(e ir.Expr, bound map[string]bool, out map[string]bool) {
	if e == nil {
		return
	}
	switch x := e.(type) {
	case *ir.Var:
		if !bound[x.Name] {
			out[x.Name] = true
		}
		return
	case *ir.Comprehension:
		inner := copySet(bound)
		for _, g := range x.Gens {
			readsExpr(g.Iter, inner, out)
			for _, v := range ir.TargetVars(g.Target) {
				inner[v.Name] = true
			}
			for _, c := range g.Ifs {
				readsExpr(c, inner, out)
			}
		}
		readsExpr(x.Elem, inner, out)
		readsExpr(x.Key, inner, out)
		readsExpr(x.Value, inner, out)
		return
	case *ir.Lambda:
		inner := copySet(bound)
		for _, p := range x.Params {
			inner[p.Name] = true
		}
		readsExpr(x.Body, inner, out)
		return
	}
	for _, c := range ir.Children(e) {
		readsExpr(c, bound, out)
	}
}

func copySet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s)+2)
	for k := range s {
		out[k] = true
	}
	return out
}

func union(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}
