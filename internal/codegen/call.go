package codegen

import (
	"strings"
	"unicode"

	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/rust"
)

// call lowers a call. Iterator-producing builtins collect into a Vec, and
// calls to fallible functions propagate their error.
func (l *lowerer) call(c *ir.Call, await bool) rust.Expr {
	if it, ok := l.iterCall(c); ok {
		return collect(it, l.typ(ir.Seq{Elem: ir.ElemOf(ir.TypeOf(c))}))
	}
	x := l.invoke(c)
	if await {
		x = &rust.AwaitExpr{X: x}
	}
	if name, fallible := l.fallibleCall(c); fallible {
		return l.propagate(x, name)
	}
	return x
}

// fallibleCall reports whether c returns a Result.
func (l *lowerer) fallibleCall(c *ir.Call) (string, bool) {
	if c.Ctor != nil && !c.Ctor.Exception {
		if c.Callee != nil && c.Callee.Fallible && !c.Callee.Skipped {
			return c.Ctor.Name + "::new", true
		}
		return "", false
	}
	if c.Callee != nil && c.Callee.Fallible && !c.Callee.Skipped {
		return c.Callee.QualifiedName(), true
	}
	return "", false
}

// propagate unwraps a Result: with ? where the enclosing function can
// return the error, with expect otherwise.
func (l *lowerer) propagate(x rust.Expr, name string) rust.Expr {
	if l.result {
		return &rust.TryExpr{X: x}
	}
	return rust.Method(x, "expect", rust.Str(name+" failed"))
}

func (l *lowerer) invoke(c *ir.Call) rust.Expr {
	if c.Ctor != nil {
		return l.construct(c)
	}
	if c.Builtin != "" {
		if recv, name, ok := c.Method(); ok {
			return l.builtinMethod(c, recv, name)
		}
		return l.builtin(c)
	}
	if recv, name, ok := c.Method(); ok {
		if sc, isSuper := recv.(*ir.Call); isSuper && sc.Builtin == "super" {
			return l.superCall(c, name)
		}
	}
	if fn := c.Callee; fn != nil {
		if fn.Skipped {
			return l.unsupported(l.fn, "call to "+fn.QualifiedName(), "callee was skipped", c.Loc)
		}
		args := l.args(c, fn.Params)
		recv, _, isMethod := c.Method()
		if isMethod && fn.Class != nil {
			if v, ok := recv.(*ir.Var); (ok && v.Ref == ir.RefClass) || fn.Static {
				return rust.CallPath(fn.Class.Name+"::"+ident(fn.Name), args...)
			}
			return &rust.MethodCall{Recv: l.place(recv), Name: ident(fn.Name), Args: args}
		}
		return &rust.Call{Func: rust.Id(ident(fn.Name)), Args: args}
	}

	switch f := c.Func.(type) {
	case *ir.Var:
		switch f.Ref {
		case ir.RefBuiltin:
			return l.newException(f.Name, l.message(c.Args))
		case ir.RefImport:
			return l.importCall(c, l.place(f))
		}
		if fn, ok := ir.Deref(ir.TypeOf(f)).(ir.Func); ok {
			return &rust.Call{Func: l.place(f), Args: l.funcArgs(c.Args, fn)}
		}
	case *ir.Attribute:
		if v, ok := f.X.(*ir.Var); ok && v.Ref == ir.RefImport {
			return l.importCall(c, l.attribute(f))
		}
		if f.Field != nil {
			if fn, ok := ir.Deref(f.Field.Type).(ir.Func); ok {
				return &rust.Call{Func: &rust.Paren{X: l.place(f)}, Args: l.funcArgs(c.Args, fn)}
			}
		}
	}
	return l.unsupported(l.fn, "call", "unresolved callee "+ir.ExprKind(c.Func), c.Loc)
}

// importCall calls a mapped library member. Type names are instantiated
// with new.
func (l *lowerer) importCall(c *ir.Call, target rust.Expr) rust.Expr {
	args := make([]rust.Expr, len(c.Args))
	for i, a := range c.Args {
		args[i] = l.value(a)
	}
	if p, ok := target.(*rust.PathExpr); ok {
		if r := []rune(p.Path); len(r) > 0 && unicode.IsUpper(r[0]) && !strings.Contains(p.Path, "::") {
			return rust.CallPath(p.Path+"::new", args...)
		}
	}
	return &rust.Call{Func: target, Args: args}
}

func (l *lowerer) funcArgs(args []ir.Expr, fn ir.Func) []rust.Expr {
	out := make([]rust.Expr, len(args))
	for i, a := range args {
		var want ir.Type = ir.TypeOf(a)
		if i < len(fn.Params) {
			want = fn.Params[i]
		}
		out[i] = l.valueAs(a, want)
	}
	return out
}

// construct lowers a class instantiation.
func (l *lowerer) construct(c *ir.Call) rust.Expr {
	cls := c.Ctor
	if cls.Exception {
		return l.newException(cls.Name, l.message(c.Args))
	}
	if cls.Dataclass && c.Callee == nil {
		fields := l.allFields(cls)
		args := make([]rust.Expr, 0, len(c.Args))
		for i, a := range c.Args {
			if i < len(fields) {
				args = append(args, l.valueAs(a, fields[i].Type))
			}
		}
		return rust.CallPath(cls.Name+"::new", args...)
	}
	if c.Callee != nil {
		return rust.CallPath(cls.Name+"::new", l.args(c, c.Callee.Params)...)
	}
	return rust.CallPath(cls.Name + "::new")
}

// superCall lowers super().__init__(args) inside a staged constructor: the
// base is built and its fields are moved into this.
func (l *lowerer) superCall(c *ir.Call, name string) rust.Expr {
	if name != "__init__" || !l.ctor || l.fn.Class == nil || len(l.fn.Class.Bases) == 0 {
		return l.unsupported(l.fn, "super()."+name, "only super().__init__ in a constructor is supported", c.Loc)
	}
	base := l.module.Class(l.fn.Class.Bases[0])
	if base == nil {
		return l.unsupported(l.fn, "super().__init__", "base "+l.fn.Class.Bases[0]+" is not a user class", c.Loc)
	}
	var (
		params   []*ir.Param
		fallible bool
	)
	for _, k := range l.chain(base) {
		if init := k.Init(); init != nil {
			params, fallible = init.Params, init.Fallible
			break
		}
	}
	args := make([]rust.Expr, len(c.Args))
	for i, a := range c.Args {
		if p := ir.ParamAt(params, i, len(c.Args)); p != nil {
			args[i] = l.arg(a, p)
			continue
		}
		args[i] = l.value(a)
	}
	var built rust.Expr = rust.CallPath(base.Name+"::new", args...)
	if fallible {
		built = l.propagate(built, base.Name+"::new")
	}
	tmp := l.names.fresh("base")
	stmts := []rust.Stmt{&rust.Let{Name: tmp, Value: built, Line: c.Loc.Line}}
	for _, f := range l.allFields(base) {
		stmts = append(stmts, &rust.Assign{
			Target: &rust.Field{X: rust.Id(l.selfName), Name: ident(f.Name)},
			Op:     "=",
			Value:  &rust.Field{X: rust.Id(tmp), Name: ident(f.Name)},
		})
	}
	return &rust.BlockExpr{Block: &rust.Block{Stmts: stmts}}
}

// message lowers the message argument of an exception constructor.
func (l *lowerer) message(args []ir.Expr) rust.Expr {
	if len(args) == 0 {
		return rust.Str("")
	}
	a := args[0]
	if lit, ok := a.(*ir.Literal); ok && lit.Kind == ir.LitStr {
		return rust.Str(lit.Str)
	}
	if ir.IsStr(ir.TypeOf(a)) {
		return l.value(a)
	}
	return l.str(a)
}

// args lowers the bound arguments of a user call: positional arguments,
// then the variadic tail as one Vec, then keyword-only arguments.
func (l *lowerer) args(c *ir.Call, params []*ir.Param) []rust.Expr {
	pos, variadic, kw := ir.SplitParams(params)
	nvar := len(c.Args) - len(pos) - len(kw)
	if nvar < 0 || variadic == nil {
		nvar = 0
	}
	out := make([]rust.Expr, 0, len(params))
	for i := 0; i < len(pos) && i < len(c.Args); i++ {
		out = append(out, l.arg(c.Args[i], pos[i]))
	}
	if variadic != nil {
		var elem ir.Type = ir.Unresolved
		if variadic.Binding != nil {
			elem = ir.ElemOf(variadic.Binding.Type)
		}
		var rest []rust.Expr
		for i := len(pos); i < len(pos)+nvar && i < len(c.Args); i++ {
			rest = append(rest, l.valueAs(c.Args[i], elem))
		}
		var v rust.Expr = rust.CallPath("Vec::new")
		if len(rest) > 0 {
			v = &rust.Macro{Name: "vec", Bracket: true, Args: rest}
		}
		if isBorrowedParam(variadic.Binding) {
			v = &rust.Borrow{Mut: variadic.Binding.Pass == ir.PassMutBorrowed, X: v}
		}
		out = append(out, v)
	}
	for k, p := range kw {
		if i := len(pos) + nvar + k; i < len(c.Args) {
			out = append(out, l.arg(c.Args[i], p))
		}
	}
	return out
}

// arg lowers one argument for parameter p under its pass mode.
func (l *lowerer) arg(a ir.Expr, p *ir.Param) rust.Expr {
	b := p.Binding
	if b == nil {
		return l.value(a)
	}
	if _, ok := ir.Deref(b.Type).(ir.Func); ok {
		if lam, ok := a.(*ir.Lambda); ok {
			return l.closure(lam, false)
		}
		return l.place(a)
	}
	switch b.Pass {
	case ir.PassBorrowed:
		return l.borrow(a, b.Type)
	case ir.PassMutBorrowed:
		return l.borrowMut(a)
	}
	return l.valueAs(a, b.Type)
}
