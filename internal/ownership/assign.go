package ownership

import "github.com/roach88/pyrs/internal/ir"

// many is the count given to an assignment that may run more than once.
const many = 2

// counts maps bindings to their assignment count along one path.
type counts map[*ir.Binding]int

func (c counts) add(b *ir.Binding, n int) {
	if b != nil {
		c[b] = saturate(c[b] + n)
	}
}

// then appends the counts of a following block.
func (c counts) then(o counts) {
	for b, n := range o {
		c.add(b, n)
	}
}

// either merges mutually exclusive blocks, keeping the larger count.
func either(blocks ...counts) counts {
	out := make(counts)
	for _, blk := range blocks {
		for b, n := range blk {
			if n > out[b] {
				out[b] = n
			}
		}
	}
	return out
}

func saturate(n int) int {
	if n > many {
		return many
	}
	return n
}

// counter walks a function body. loops holds, innermost last, the set of
// bindings declared inside each enclosing loop.
type counter struct {
	loops []map[*ir.Binding]bool
}

// countAssignments sets Assignments and Mutable on every binding of fn.
func countAssignments(fn *ir.Function) {
	total := make(counts)
	if fn.Self != nil {
		total.add(fn.Self, 1)
	}
	for _, p := range fn.Params {
		total.add(p.Binding, 1)
	}
	c := &counter{}
	total.then(c.block(fn.Body))
	for _, b := range fn.Bindings {
		if b.Kind == ir.BindCompVar {
			total.add(b, 1)
		}
	}
	lambdaParams(fn.Body, total)

	for b, n := range total {
		b.Assignments = n
		b.Mutable = n > 1
	}
}

// lambdaParams gives each lambda parameter its single binding.
func lambdaParams(body []ir.Stmt, total counts) {
	ir.WalkBody(body, func(e ir.Expr) bool {
		if l, ok := e.(*ir.Lambda); ok {
			for _, p := range l.Params {
				total.add(p.Binding, 1)
			}
		}
		return true
	})
}

func (c *counter) block(stmts []ir.Stmt) counts {
	out := make(counts)
	for _, s := range stmts {
		out.then(c.stmt(s))
	}
	return out
}

func (c *counter) stmt(s ir.Stmt) counts {
	out := make(counts)
	switch n := s.(type) {
	case *ir.Assign:
		if n.Value == nil {
			return out
		}
		for _, t := range n.Targets {
			for _, v := range ir.TargetVars(t) {
				c.assign(out, v.Binding)
			}
		}
	case *ir.With:
		if n.Target != nil {
			c.assign(out, n.Target.Binding)
		}
		out.then(c.block(n.Body))
	case *ir.If:
		out.then(either(c.block(n.Then), c.block(n.Else)))
	case *ir.For:
		c.enter(n.Body, n.Target)
		for _, v := range ir.TargetVars(n.Target) {
			c.assign(out, v.Binding)
		}
		out.then(c.block(n.Body))
		c.leave()
	case *ir.While:
		c.enter(n.Body, nil)
		out.then(c.block(n.Body))
		c.leave()
	case *ir.TryExcept:
		// Any prefix of the body may run before a handler does.
		out.then(c.block(n.Body))
		alts := []counts{c.block(n.Else)}
		for _, h := range n.Handlers {
			hc := make(counts)
			if h.Binding != nil {
				c.assign(hc, h.Binding)
			}
			hc.then(c.block(h.Body))
			alts = append(alts, hc)
		}
		out.then(either(alts...))
		out.then(c.block(n.Finally))
	}
	return out
}

// assign counts one assignment to b at the current position.
func (c *counter) assign(out counts, b *ir.Binding) {
	if b == nil {
		return
	}
	if len(c.loops) > 0 && !c.loops[len(c.loops)-1][b] {
		out.add(b, many)
		return
	}
	out.add(b, 1)
}

func (c *counter) enter(body []ir.Stmt, target ir.Expr) {
	c.loops = append(c.loops, declaredIn(body, target))
}

func (c *counter) leave() {
	c.loops = c.loops[:len(c.loops)-1]
}

// declaredIn returns the bindings whose declaration lies in a loop with the
// given body and target.
func declaredIn(body []ir.Stmt, target ir.Expr) map[*ir.Binding]bool {
	out := make(map[*ir.Binding]bool)
	if target != nil {
		for _, v := range ir.TargetVars(target) {
			if v.Binding != nil {
				out[v.Binding] = true
			}
		}
	}
	ir.WalkStmts(body, func(s ir.Stmt) bool {
		switch n := s.(type) {
		case *ir.If:
			for _, b := range n.Hoisted {
				out[b] = true
			}
		case *ir.TryExcept:
			for _, b := range n.Hoisted {
				out[b] = true
			}
			for _, h := range n.Handlers {
				if h.Binding != nil {
					out[h.Binding] = true
				}
			}
		}
		for _, e := range ir.StmtExprs(s) {
			ir.WalkExpr(e, func(x ir.Expr) bool {
				if v, ok := x.(*ir.Var); ok && v.Declares && v.Binding != nil {
					out[v.Binding] = true
				}
				return true
			})
		}
		return true
	})
	return out
}
