package codegen

import (
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/rust"
)

// lowerer holds the state of one function body lowering.
type lowerer struct {
	*unit
	fn    *ir.Function // nil for module-level expressions and tests
	names namer

	// result is set where an error can be propagated with ? or
	// return Err: fallible functions and try closures.
	result bool

	selfName string    // "self", or "this" inside a staged constructor
	ctor     bool      // lowering the body of a generated new
	try      *tryFrame // innermost try closure
	loops    int       // loops entered since the function or try closure began
	errVar   string    // caught error inside a handler, for bare raise
	errAlias string    // Python name the handler binds errVar to

	// refVars are closure parameters received as &T.
	refVars map[*ir.Binding]bool
}

// tryFrame describes the closure a try body runs in.
type tryFrame struct {
	// returns is set when the body returns from the function; the closure
	// then yields Option<R> with Some for a return.
	returns bool
}

func (u *unit) lowerer(fn *ir.Function) *lowerer {
	l := &lowerer{unit: u, fn: fn, selfName: "self", refVars: make(map[*ir.Binding]bool)}
	if fn != nil {
		l.result = fn.Fallible
	}
	return l
}

// returnType is the declared Rust result of fn, wrapped in Result when it
// is fallible. Nil means ().
func (u *unit) returnType(fn *ir.Function) rust.Type {
	var t rust.Type
	if !isUnit(fn.Returns) {
		t = u.typ(fn.Returns)
	}
	if fn.Fallible {
		u.helpers[helperException] = true
		if t == nil {
			t = rust.Unit
		}
		return rust.Named("Result", t, rust.Named(ir.ExceptionClass))
	}
	return t
}

func (u *unit) params(fn *ir.Function) []rust.Param {
	out := make([]rust.Param, 0, len(fn.Params))
	for _, p := range fn.Params {
		b := p.Binding
		if b == nil {
			continue
		}
		out = append(out, rust.Param{
			Name: ident(p.Name),
			Type: u.paramType(b),
			Mut:  b.NeedsMut() && !isBorrowedParam(b),
		})
	}
	return out
}

// function lowers a free function or method. name overrides fn.Name for
// methods copied into a derived class.
func (u *unit) function(fn *ir.Function, name string, cls *ir.Class) *rust.Fn {
	out := &rust.Fn{
		Name:   ident(name),
		Params: u.params(fn),
		Result: u.returnType(fn),
		Pub:    name != "main" || cls != nil,
		Async:  fn.Async,
		Doc:    fn.Doc,
		Line:   fn.Loc.Line,
	}
	if cls != nil && !fn.Static {
		out.Receiver = fn.Receiver.String()
		if fn.Receiver == ir.ReceiverNone {
			out.Receiver = "&self"
		}
	}
	if fn.Skipped {
		reason := fn.SkipReason
		if reason == "" {
			reason = "unsupported function body"
		}
		out.Body = &rust.Block{Tail: rust.Todo(reason)}
		return out
	}
	l := u.lowerer(fn)
	out.Body = l.body(fn.Body)
	return out
}

// body lowers a function body and adds the tail its return type needs.
func (l *lowerer) body(stmts []ir.Stmt) *rust.Block {
	b := l.block(stmts)
	if l.rustTerminates(stmts) {
		return b
	}
	var tail rust.Expr
	switch {
	case isUnit(l.fn.Returns):
		if l.fn.Fallible {
			tail = &rust.Call{Func: rust.Id("Ok"), Args: []rust.Expr{&rust.TupleExpr{}}}
		}
	case isOptional(l.fn.Returns):
		tail = l.okWrap(rust.Id("None"))
	default:
		tail = &rust.Macro{Name: "unreachable"}
	}
	b.Tail = tail
	return b
}

func (l *lowerer) okWrap(x rust.Expr) rust.Expr {
	if l.fn != nil && l.fn.Fallible {
		return &rust.Call{Func: rust.Id("Ok"), Args: []rust.Expr{x}}
	}
	return x
}

func isOptional(t ir.Type) bool {
	_, ok := ir.OrUnknown(t).(ir.Optional)
	return ok
}

// rustTerminates reports whether rustc sees that control never reaches the
// end of the lowered stmts.
func (l *lowerer) rustTerminates(stmts []ir.Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	switch s := stmts[len(stmts)-1].(type) {
	case *ir.Return:
		return true
	case *ir.Raise:
		return true
	case *ir.If:
		return len(s.Else) > 0 && l.rustTerminates(s.Then) && l.rustTerminates(s.Else)
	case *ir.While:
		return isTrue(s.Cond) && ir.Terminates([]ir.Stmt{s})
	case *ir.With:
		return l.rustTerminates(s.Body)
	}
	return false
}

func isTrue(e ir.Expr) bool {
	lit, ok := e.(*ir.Literal)
	return ok && lit.Kind == ir.LitBool && lit.Bool
}

// constant lowers a module constant to a const item when its value is a
// constant expression, and to a function returning the value otherwise.
func (u *unit) constant(c *ir.Constant) rust.Item {
	l := u.lowerer(nil)
	if u.constItem(c) {
		ty := u.typ(c.Type)
		value := l.place(c.Value)
		if ir.IsStr(c.Type) {
			ty = rust.RefType{Inner: rust.Named("str")}
			value = rust.Str(c.Value.(*ir.Literal).Str)
		}
		return &rust.Const{Name: ident(c.Name), Type: ty, Value: value, Pub: true, Line: c.Loc.Line}
	}
	return &rust.Fn{
		Name:   ident(c.Name),
		Result: u.typ(c.Type),
		Body:   &rust.Block{Tail: l.valueAs(c.Value, c.Type)},
		Pub:    true,
		Line:   c.Loc.Line,
	}
}

// constItem reports whether c can be a Rust const.
func (u *unit) constItem(c *ir.Constant) bool {
	if ir.IsStr(c.Type) {
		lit, ok := c.Value.(*ir.Literal)
		return ok && lit.Kind == ir.LitStr
	}
	if _, ok := ir.OrUnknown(c.Type).(ir.Prim); !ok || isUnit(c.Type) {
		return false
	}
	return u.constExpr(c.Value, 0)
}

func (u *unit) constExpr(e ir.Expr, depth int) bool {
	if depth > 16 {
		return false
	}
	switch x := e.(type) {
	case *ir.Literal:
		return x.Kind == ir.LitInt || x.Kind == ir.LitFloat || x.Kind == ir.LitBool
	case *ir.Unary:
		return u.constExpr(x.X, depth+1)
	case *ir.Binary:
		switch x.Op {
		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpBitAnd, ir.OpBitOr, ir.OpBitXor, ir.OpShl, ir.OpShr:
			return u.constExpr(x.L, depth+1) && u.constExpr(x.R, depth+1)
		}
	case *ir.Var:
		if c, ok := x.Decl.(*ir.Constant); ok && x.Ref == ir.RefConstant {
			return !ir.IsStr(c.Type) && u.constItem(c)
		}
	}
	return false
}

// testModule builds the #[cfg(test)] module from the doctests of every
// function. It returns nil when there are none.
func (u *unit) testModule() *rust.Mod {
	var tests []rust.Item
	for _, fn := range u.module.AllFunctions() {
		if fn.Skipped {
			continue
		}
		for i, d := range fn.Doctests {
			l := u.lowerer(nil)
			got := l.value(d.Call)
			want := l.valueAs(d.Expected, ir.TypeOf(d.Call))
			tests = append(tests, &rust.Fn{
				Name:  testName(fn.QualifiedName(), i),
				Attrs: []string{"#[test]"},
				Body: &rust.Block{Stmts: []rust.Stmt{
					&rust.ExprStmt{X: &rust.Macro{Name: "assert_eq", Args: []rust.Expr{got, want}}},
				}},
			})
		}
	}
	if len(tests) == 0 {
		return nil
	}
	return &rust.Mod{
		Name:  "tests",
		Attrs: []string{"#[cfg(test)]"},
		Uses:  []string{"super::*"},
		Items: tests,
	}
}
