package infer

import (
	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/ir"
)

// finalize degrades every type that is still unresolved to Any and reports
// it. After finalize no Unknown remains in a generated function.
func (e *Engine) finalize() {
	for _, c := range e.module.Constants() {
		e.finalizeConstant(nil, c)
	}
	for _, cls := range e.module.Classes() {
		for _, c := range cls.Constants {
			e.finalizeConstant(cls, c)
		}
		for _, f := range cls.Fields {
			name := cls.Name + "." + f.Name
			if conflict := e.fieldConflicts[f]; len(conflict) > 0 {
				f.Type = ir.AnyType
				e.ambiguous(name, conflict, e.loc(nil, f.Loc))
			} else if ir.ContainsUnknown(f.Type) {
				f.Type = anyfy(f.Type)
				e.ambiguous(name, nil, e.loc(nil, f.Loc))
			}
			e.coerce(f.Default, f.Type)
			e.finalizeExpr(f.Default)
		}
	}
	for _, fn := range e.module.AllFunctions() {
		e.finalizeFunction(fn)
	}
}

func (e *Engine) finalizeConstant(cls *ir.Class, c *ir.Constant) {
	name := c.Name
	if cls != nil {
		name = cls.Name + "." + c.Name
	}
	if ir.ContainsUnknown(c.Type) {
		c.Type = anyfy(c.Type)
		e.ambiguous(name, nil, e.loc(nil, c.Loc))
	}
	e.coerce(c.Value, c.Type)
	e.finalizeExpr(c.Value)
}

func (e *Engine) finalizeFunction(fn *ir.Function) {
	if fn.Skipped {
		for _, p := range fn.Params {
			if p.Binding != nil && ir.ContainsUnknown(p.Binding.Type) {
				p.Binding.Type = ir.AnyType
			}
		}
		if fn.Returns == nil || ir.ContainsUnknown(fn.Returns) {
			fn.Returns = ir.UnitType
		}
		return
	}

	for _, b := range fn.Bindings {
		loc := e.loc(fn, b.Loc)
		switch {
		case len(b.Candidates) > 0:
			e.ambiguous(b.Name, b.Candidates, loc)
			b.Candidates = nil
			b.Type = ir.AnyType
		case isOpenOptional(b.Type) && !b.Read:
			b.Type = ir.Optional{Inner: ir.UnitType}
		case ir.ContainsUnknown(b.Type):
			b.Type = anyfy(b.Type)
			e.ambiguous(b.Name, nil, loc)
		}
	}

	returns := "return value of " + fn.QualifiedName()
	switch {
	case len(e.returnConflicts[fn]) > 0:
		fn.Returns = ir.AnyType
		e.ambiguous(returns, e.returnConflicts[fn], e.loc(fn, fn.Loc))
	case fn.Returns == nil:
		fn.Returns = ir.UnitType
	case isOpenOptional(fn.Returns):
		fn.Returns = ir.UnitType
	case ir.ContainsUnknown(fn.Returns):
		fn.Returns = anyfy(fn.Returns)
		e.ambiguous(returns, nil, e.loc(fn, fn.Loc))
	}

	ir.WalkStmts(fn.Body, func(s ir.Stmt) bool {
		if a, ok := s.(*ir.Assign); ok && a.Type != nil && ir.ContainsUnknown(a.Type) {
			a.Type = anyfy(a.Type)
		}
		return true
	})
	ir.WalkBody(fn.Body, func(x ir.Expr) bool {
		e.finalizeExprNode(x, fn)
		return true
	})
	for _, d := range fn.Doctests {
		e.finalizeExpr(d.Call)
		e.finalizeExpr(d.Expected)
	}
}

func (e *Engine) finalizeExpr(x ir.Expr) {
	ir.WalkExpr(x, func(n ir.Expr) bool {
		e.finalizeExprNode(n, nil)
		return true
	})
}

func (e *Engine) finalizeExprNode(x ir.Expr, fn *ir.Function) {
	b := x.Base()
	if conflict := e.exprConflicts[x]; len(conflict) > 0 {
		e.ambiguous(ir.ExprKind(x)+" expression", conflict, e.loc(fn, b.Loc))
		delete(e.exprConflicts, x)
		b.T = ir.AnyType
		return
	}
	if b.T == nil {
		b.T = ir.AnyType
		return
	}
	if ir.ContainsUnknown(b.T) {
		b.T = anyfy(b.T)
	}
}

func (e *Engine) ambiguous(name string, candidates []ir.Type, loc diag.Location) {
	strs := make([]string, len(candidates))
	for i, c := range candidates {
		strs[i] = c.String()
	}
	if len(strs) == 0 {
		strs = nil
	}
	e.diags.Add(diag.AmbiguousType(name, strs, loc))
}

// isOpenOptional reports whether t is Optional with an unresolved inner type.
func isOpenOptional(t ir.Type) bool {
	o, ok := ir.OrUnknown(t).(ir.Optional)
	return ok && ir.IsUnknown(o.Inner)
}

// anyfy replaces every Unknown inside t with Any.
func anyfy(t ir.Type) ir.Type {
	return ir.MapType(t, func(n ir.Type) ir.Type {
		if ir.IsUnknown(n) {
			return ir.AnyType
		}
		return n
	})
}
