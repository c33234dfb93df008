package infer

import (
	"github.com/roach88/pyrs/internal/ir"
)

// A None test narrows an Optional local to its inner type wherever the test
// has excluded None:
//
//	if x is not None: <then>        then
//	if x is None: ... else: <else>  else
//	if x is None: <exits>           the rest of the enclosing block
//	x is not None and <rhs>         rhs
//	x is None or <rhs>              rhs
//
// A binding written anywhere in the region is not narrowed there.

// notNoneWhenTrue returns the locals cond proves non-None when it holds.
func notNoneWhenTrue(cond ir.Expr) []*ir.Binding {
	switch c := cond.(type) {
	case *ir.Binary:
		switch c.Op {
		case ir.OpIsNot:
			if b := noneTested(c); b != nil {
				return []*ir.Binding{b}
			}
		case ir.OpAnd:
			return append(notNoneWhenTrue(c.L), notNoneWhenTrue(c.R)...)
		}
	case *ir.Unary:
		if c.Op == ir.UNot {
			return notNoneWhenFalse(c.X)
		}
	}
	return nil
}

// notNoneWhenFalse returns the locals cond proves non-None when it fails.
func notNoneWhenFalse(cond ir.Expr) []*ir.Binding {
	switch c := cond.(type) {
	case *ir.Binary:
		switch c.Op {
		case ir.OpIs:
			if b := noneTested(c); b != nil {
				return []*ir.Binding{b}
			}
		case ir.OpOr:
			return append(notNoneWhenFalse(c.L), notNoneWhenFalse(c.R)...)
		}
	case *ir.Unary:
		if c.Op == ir.UNot {
			return notNoneWhenTrue(c.X)
		}
	}
	return nil
}

// noneTested returns the local of "x is None" or "x is not None".
func noneTested(b *ir.Binary) *ir.Binding {
	v, ok := b.L.(*ir.Var)
	if !ok || v.Ref != ir.RefLocal || v.Binding == nil || !ir.IsNone(b.R) {
		return nil
	}
	return v.Binding
}

// narrowed runs body with bs narrowed, skipping those written in region.
func (t *typer) narrowed(bs []*ir.Binding, region []ir.Stmt, body func()) {
	var pushed []*ir.Binding
	for _, b := range bs {
		if writes(region, b) {
			continue
		}
		if t.narrow == nil {
			t.narrow = make(map[*ir.Binding]int)
		}
		t.narrow[b]++
		pushed = append(pushed, b)
	}
	body()
	for _, b := range pushed {
		t.narrow[b]--
	}
}

// narrowType is the type a read of b has at the current point.
func (t *typer) narrowType(v *ir.Var) ir.Type {
	v.Narrowed = false
	bt := ir.OrUnknown(v.Binding.Type)
	if t.narrow[v.Binding] == 0 {
		return bt
	}
	o, ok := bt.(ir.Optional)
	if !ok || ir.IsUnknown(o.Inner) {
		return bt
	}
	v.Narrowed = true
	return o.Inner
}

// writes reports whether any statement in stmts assigns b.
func writes(stmts []ir.Stmt, b *ir.Binding) bool {
	found := false
	ir.WalkStmts(stmts, func(s ir.Stmt) bool {
		switch n := s.(type) {
		case *ir.Assign:
			for _, target := range n.Targets {
				found = found || targets(target, b)
			}
		case *ir.For:
			found = found || targets(n.Target, b)
		case *ir.With:
			found = found || (n.Target != nil && n.Target.Binding == b)
		}
		return !found
	})
	return found
}

func targets(target ir.Expr, b *ir.Binding) bool {
	switch x := target.(type) {
	case *ir.Var:
		return x.Binding == b
	case *ir.TupleLit:
		for _, e := range x.Elems {
			if targets(e, b) {
				return true
			}
		}
	case *ir.ListLit:
		for _, e := range x.Elems {
			if targets(e, b) {
				return true
			}
		}
	}
	return false
}
