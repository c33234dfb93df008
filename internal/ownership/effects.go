package ownership

import (
	"github.com/roach88/pyrs/internal/infer"
	"github.com/roach88/pyrs/internal/ir"
)

// storing lists builtin methods that move their arguments into the receiver.
var storing = map[string]bool{
	"append": true, "insert": true, "add": true, "extend": true,
	"setdefault": true, "update": true,
}

// effects collects, in program order, what a function body does to its
// bindings.
type effects struct {
	fn *ir.Function

	mutated  set // mutated in place so far on the current path
	escapes  set
	consumed set
	everMut  set
	readMut  set // read after an in-place mutation
}

// analyzeEffects updates the mutation, escape and pass facts of fn from its
// callees' current pass modes. It reports whether a pass mode or receiver
// changed.
func analyzeEffects(fn *ir.Function) bool {
	if fn.Skipped {
		changed := false
		for _, p := range fn.Params {
			if p.Binding != nil && p.Binding.Pass != ir.PassByValue {
				p.Binding.Pass = ir.PassByValue
				changed = true
			}
		}
		return changed
	}

	fx := &effects{
		fn:       fn,
		mutated:  make(set),
		escapes:  make(set),
		consumed: make(set),
		everMut:  make(set),
		readMut:  make(set),
	}
	fx.block(fn.Body)

	for _, b := range fn.Bindings {
		if fx.everMut[b] {
			b.MutatedInPlace = true
		}
		if fx.escapes[b] {
			b.Escapes = true
		}
		if fx.readMut[b] {
			b.ReadAfterMutation = true
		}
	}

	changed := false
	for _, p := range fn.Params {
		b := p.Binding
		if b == nil {
			continue
		}
		if mode := passMode(b, fx.consumed[b]); rank(mode) > rank(b.Pass) {
			b.Pass = mode
			changed = true
		}
	}
	if fn.Self != nil && !fn.Static && fn.Self.MutatedInPlace && fn.Receiver != ir.ReceiverMutRef {
		fn.Receiver = ir.ReceiverMutRef
		changed = true
	}
	return changed
}

// passMode decides how a parameter receives its argument.
//
//	copyable, reassigned or consumed -> by value
//	mutated in place                 -> &mut
//	only read                        -> &
func passMode(b *ir.Binding, consumed bool) ir.PassMode {
	t := ir.Deref(b.Type)
	switch t.(type) {
	case ir.Func, ir.Any:
		return ir.PassByValue
	}
	if ir.IsCopy(t) || b.Escapes || consumed || b.Mutable {
		return ir.PassByValue
	}
	if b.MutatedInPlace {
		return ir.PassMutBorrowed
	}
	return ir.PassBorrowed
}

func rank(m ir.PassMode) int {
	switch m {
	case ir.PassBorrowed:
		return 0
	case ir.PassMutBorrowed:
		return 1
	default:
		return 2
	}
}

func (fx *effects) block(stmts []ir.Stmt) {
	for _, s := range stmts {
		fx.stmt(s)
	}
}

func (fx *effects) stmt(s ir.Stmt) {
	switch n := s.(type) {
	case *ir.Assign:
		fx.expr(n.Value)
		for _, t := range n.Targets {
			fx.target(t, n.Value, n.Augmented())
		}
	case *ir.Return:
		fx.expr(n.Value)
		fx.escape(n.Value)
	case *ir.Raise:
		fx.expr(n.Message)
	case *ir.ExprStmt:
		fx.expr(n.X)
	case *ir.If:
		fx.expr(n.Cond)
		fx.branches(n.Then, n.Else)
	case *ir.While:
		fx.loop(n.Body, n.Cond)
	case *ir.For:
		fx.expr(n.Iter)
		fx.loop(n.Body, nil)
	case *ir.With:
		fx.expr(n.Ctx)
		fx.block(n.Body)
	case *ir.TryExcept:
		blocks := [][]ir.Stmt{append(append([]ir.Stmt{}, n.Body...), n.Else...)}
		for _, h := range n.Handlers {
			blocks = append(blocks, h.Body)
		}
		fx.branches(blocks...)
		fx.block(n.Finally)
	}
}

// branches runs mutually exclusive blocks from the same state and merges
// what they mutated.
func (fx *effects) branches(blocks ...[]ir.Stmt) {
	before := fx.mutated
	after := make(set)
	for _, b := range blocks {
		fx.mutated = before.clone()
		fx.block(b)
		after.union(fx.mutated)
	}
	fx.mutated = after
}

// loop runs a loop body twice so that reads early in the body see mutations
// made later in the previous iteration.
func (fx *effects) loop(body []ir.Stmt, cond ir.Expr) {
	for i := 0; i < 2; i++ {
		fx.expr(cond)
		fx.block(body)
	}
}

func (fx *effects) target(t, value ir.Expr, augmented bool) {
	switch x := t.(type) {
	case *ir.Var:
		if augmented {
			fx.read(x)
		}
		if b := local(value); b != nil && !augmented {
			fx.consumed[b] = true
		}
	case *ir.Index:
		fx.expr(x.Index)
		fx.mutate(root(x.X))
		fx.escape(value)
	case *ir.Attribute:
		fx.mutate(root(x.X))
		fx.escape(value)
	}
}

func (fx *effects) mutate(b *ir.Binding) {
	if b == nil {
		return
	}
	fx.mutated[b] = true
	fx.everMut[b] = true
}

func (fx *effects) read(v *ir.Var) {
	if v.Ref != ir.RefLocal || v.Binding == nil {
		return
	}
	if fx.mutated[v.Binding] {
		fx.readMut[v.Binding] = true
	}
}

// escape marks locals whose value e transfers into a longer-lived place.
func (fx *effects) escape(e ir.Expr) {
	switch x := e.(type) {
	case *ir.Var:
		if b := local(x); b != nil {
			fx.escapes[b] = true
		}
	case *ir.Ternary:
		fx.escape(x.Then)
		fx.escape(x.Else)
	case *ir.Await:
		fx.escape(x.X)
	}
}

// expr visits e in evaluation order: operands first, then the effect of the
// node itself.
func (fx *effects) expr(e ir.Expr) {
	if e == nil {
		return
	}
	if v, ok := e.(*ir.Var); ok {
		fx.read(v)
		return
	}
	for _, c := range ir.Children(e) {
		fx.expr(c)
	}
	switch x := e.(type) {
	case *ir.ListLit:
		for _, el := range x.Elems {
			fx.escape(el)
		}
	case *ir.TupleLit:
		for _, el := range x.Elems {
			fx.escape(el)
		}
	case *ir.SetLit:
		for _, el := range x.Elems {
			fx.escape(el)
		}
	case *ir.DictLit:
		for i := range x.Keys {
			fx.escape(x.Keys[i])
			fx.escape(x.Values[i])
		}
	case *ir.Call:
		fx.call(x)
	}
}

func (fx *effects) call(c *ir.Call) {
	recv, name, isMethod := c.Method()
	if isMethod && c.Callee == nil && c.Ctor == nil {
		if infer.IsMutatingMethod(ir.TypeOf(recv), name) {
			fx.mutate(root(recv))
			if storing[name] {
				for _, a := range c.Args {
					fx.escape(a)
				}
			}
		}
		return
	}
	if c.Callee != nil {
		if isMethod && c.Callee.Receiver == ir.ReceiverMutRef {
			fx.mutate(root(recv))
		}
		for i, a := range c.Args {
			b := local(a)
			if b == nil {
				continue
			}
			p := ir.ParamAt(c.Callee.Params, i, len(c.Args))
			if p == nil || p.Binding == nil {
				continue
			}
			switch {
			case p.Variadic:
				fx.consumed[b] = true
			case p.Binding.Pass == ir.PassMutBorrowed:
				fx.mutate(b)
			case p.Binding.Pass == ir.PassByValue && !ir.IsCopy(p.Binding.Type):
				fx.consumed[b] = true
			}
		}
		return
	}
	if c.Ctor != nil {
		for _, a := range c.Args {
			fx.escape(a)
		}
	}
}
