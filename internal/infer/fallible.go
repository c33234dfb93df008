package infer

import (
	"github.com/roach88/pyrs/internal/ir"
)

// fallible marks every function from which a raise can escape: its own
// uncaught raises or calls to fallible functions. Assertions panic instead
// and do not make a function fallible.
func (e *Engine) fallible() {
	for {
		changed := false
		for _, fn := range e.module.AllFunctions() {
			if fn.Skipped || fn.Fallible {
				continue
			}
			if raises(fn.Body) {
				fn.Fallible = true
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// raises reports whether an error raised in stmts can escape them.
func raises(stmts []ir.Stmt) bool {
	for _, s := range stmts {
		switch n := s.(type) {
		case *ir.Raise:
			if !n.Assert {
				return true
			}
		case *ir.TryExcept:
			if !catchesAll(n.Handlers) && raises(n.Body) {
				return true
			}
			for _, h := range n.Handlers {
				if raises(h.Body) {
					return true
				}
			}
			if raises(n.Else) || raises(n.Finally) {
				return true
			}
			continue
		}
		for _, x := range ir.StmtExprs(s) {
			if callsFallible(x) {
				return true
			}
		}
		for _, b := range ir.Blocks(s) {
			if raises(b) {
				return true
			}
		}
	}
	return false
}

func callsFallible(x ir.Expr) bool {
	found := false
	ir.WalkExpr(x, func(n ir.Expr) bool {
		if c, ok := n.(*ir.Call); ok && c.Callee != nil && c.Callee.Fallible {
			found = true
		}
		return !found
	})
	return found
}

// catchesAll reports whether one of the handlers catches every error.
func catchesAll(hs []*ir.Handler) bool {
	for _, h := range hs {
		if len(h.Kinds) == 0 {
			return true
		}
		for _, k := range h.Kinds {
			if k == "Exception" || k == "BaseException" {
				return true
			}
		}
	}
	return false
}

// doctests resolves and types the examples of fn's docstring. Examples
// that cannot be resolved or typed are dropped.
func (e *Engine) doctests(fn *ir.Function) {
	if len(fn.Doctests) == 0 {
		return
	}
	kept := fn.Doctests[:0]
	for _, d := range fn.Doctests {
		ok := e.quietly(func() {
			r := e.newResolver(nil)
			r.expr(d.Call)
			r.expr(d.Expected)
			t := &typer{e: e}
			ct := t.expr(d.Call)
			t.expect(d.Expected, ct)
			e.coerce(d.Expected, ct)
		})
		if ok {
			kept = append(kept, d)
			continue
		}
		e.logger.Debug("doctest dropped", "function", fn.QualifiedName(), "line", d.Line)
	}
	fn.Doctests = kept
}

// quietly runs body and reports whether it finished without aborting. The
// abort diagnostic is discarded.
func (e *Engine) quietly(body func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, isAbort := r.(abort); !isAbort {
				panic(r)
			}
			ok = false
		}
	}()
	body()
	return true
}
