package infer

import (
	"github.com/roach88/pyrs/internal/ir"
)

// callSites collects, per parameter, the argument types seen at call sites
// during one round.
type callSites struct {
	args map[*ir.Param][]ir.Type
}

func (e *Engine) site(fn *ir.Function) *callSites {
	s, ok := e.sites[fn]
	if !ok {
		s = &callSites{args: make(map[*ir.Param][]ir.Type)}
		e.sites[fn] = s
	}
	return s
}

func (s *callSites) add(p *ir.Param, t ir.Type) {
	if p == nil || ir.IsUnknown(t) {
		return
	}
	s.args[p] = append(s.args[p], t)
}

// specialize refines unannotated parameters with the argument types seen at
// every call site.
func (e *Engine) specialize() {
	for _, fn := range e.module.AllFunctions() {
		s, ok := e.sites[fn]
		if !ok || fn.Skipped {
			continue
		}
		for _, p := range fn.Params {
			for _, at := range s.args[p] {
				if p.Variadic {
					at = ir.Seq{Elem: at}
				}
				e.refine(p.Binding, at)
			}
		}
	}
}

// bindArgs rewrites the arguments of c into parameter order: positional
// arguments, then variadic elements, then keyword-only arguments. Keyword
// arguments are placed by name and omitted defaults are filled in.
func (t *typer) bindArgs(c *ir.Call, name string, params []*ir.Param) {
	pos, variadic, kw := ir.SplitParams(params)
	slots := make([]ir.Expr, len(pos))
	var extra []ir.Expr
	for i, a := range c.Args {
		if i < len(pos) {
			slots[i] = a
			continue
		}
		if variadic == nil {
			t.e.unsupported(t.fn, c.Loc, "%s() takes %d positional arguments but %d were given", name, len(pos), len(c.Args))
		}
		extra = append(extra, a)
	}
	kwSlots := make([]ir.Expr, len(kw))
	for _, k := range c.Kwargs {
		placed := false
		for i, p := range pos {
			if p.Name == k.Name {
				if slots[i] != nil {
					t.e.unsupported(t.fn, c.Loc, "%s() got multiple values for argument %q", name, k.Name)
				}
				slots[i], placed = k.Value, true
			}
		}
		for i, p := range kw {
			if p.Name == k.Name {
				kwSlots[i], placed = k.Value, true
			}
		}
		if !placed {
			t.e.unsupported(t.fn, c.Loc, "%s() got an unexpected keyword argument %q", name, k.Name)
		}
	}
	fill := func(ps []*ir.Param, out []ir.Expr) {
		for i, p := range ps {
			if out[i] != nil {
				continue
			}
			if p.Default == nil {
				t.e.unsupported(t.fn, c.Loc, "%s() missing required argument %q", name, p.Name)
			}
			out[i] = ir.CloneExpr(p.Default)
		}
	}
	fill(pos, slots)
	fill(kw, kwSlots)

	args := make([]ir.Expr, 0, len(slots)+len(extra)+len(kwSlots))
	args = append(args, slots...)
	args = append(args, extra...)
	args = append(args, kwSlots...)
	c.Args = args
	c.Kwargs = nil
}

// call types a call expression and resolves its target.
func (t *typer) call(c *ir.Call) ir.Type {
	switch f := c.Func.(type) {
	case *ir.Attribute:
		return t.methodCall(c, f)
	case *ir.Var:
		switch f.Ref {
		case ir.RefFunction:
			f.T = funcType(f.Decl.(*ir.Function))
			return t.userCall(c, f.Decl.(*ir.Function))
		case ir.RefClass:
			return t.construct(c, f.Decl.(*ir.Class))
		case ir.RefBuiltin:
			return t.builtinCall(c, f.Name)
		case ir.RefImport:
			t.expr(f)
			imp := f.Decl.(*ir.Import)
			if _, item := t.e.module.Import(f.Name); item != "" {
				return t.importCall(c, imp, item)
			}
		}
	}
	ft := t.expr(c.Func)
	fn, isFunc := ir.Deref(ft).(ir.Func)
	for i, a := range c.Args {
		var hint ir.Type
		if isFunc && i < len(fn.Params) {
			hint = fn.Params[i]
		}
		t.expect(a, hint)
	}
	t.kwargs(c)
	if isFunc {
		return ir.OrUnknown(fn.Result)
	}
	if ir.IsUnknown(ft) {
		return ir.Unresolved
	}
	return ir.AnyType
}

func (t *typer) kwargs(c *ir.Call) {
	for _, k := range c.Kwargs {
		t.expr(k.Value)
	}
}

// userCall types a call to a user function or method and records the
// argument types for specialization.
func (t *typer) userCall(c *ir.Call, fn *ir.Function) ir.Type {
	if c.Callee == nil {
		t.bindArgs(c, fn.QualifiedName(), fn.Params)
		c.Callee = fn
	}
	s := t.e.site(fn)
	for i, a := range c.Args {
		p := ir.ParamAt(fn.Params, i, len(c.Args))
		var hint ir.Type
		if p != nil && p.Binding != nil {
			hint = p.Binding.Type
			if p.Variadic {
				hint = ir.ElemOf(hint)
			}
		}
		if l, ok := a.(*ir.Lambda); ok {
			t.lambda(l, funcParams(hint))
		}
		s.add(p, t.expect(a, hint))
	}
	if fn.Skipped {
		return ir.AnyType
	}
	return ir.OrUnknown(fn.Returns)
}

func funcParams(t ir.Type) []ir.Type {
	if f, ok := ir.Deref(ir.OrUnknown(t)).(ir.Func); ok {
		return f.Params
	}
	return nil
}

// construct types a class instantiation.
func (t *typer) construct(c *ir.Call, cls *ir.Class) ir.Type {
	result := ir.Generic{Name: cls.Name}
	if init := lookupMethod(t.e.module, cls, "__init__"); init != nil {
		c.Ctor = cls
		t.userCall(c, init)
		return result
	}
	if !cls.Dataclass {
		if len(c.Args) > 0 || len(c.Kwargs) > 0 {
			if !cls.Exception {
				t.e.unsupported(t.fn, c.Loc, "%s() takes no arguments", cls.Name)
			}
			for _, a := range c.Args {
				t.expr(a)
			}
			t.kwargs(c)
		}
		c.Ctor = cls
		return result
	}

	fields := classFields(t.e.module, cls)
	if c.Ctor == nil {
		params := make([]*ir.Param, len(fields))
		for i, f := range fields {
			params[i] = &ir.Param{Name: f.Name, Default: f.Default, Loc: f.Loc}
		}
		t.bindArgs(c, cls.Name, params)
		c.Ctor = cls
	}
	for i, a := range c.Args {
		if i >= len(fields) {
			break
		}
		f := fields[i]
		t.e.refineField(f, t.expect(a, f.Type))
	}
	return result
}

// classFields returns the fields of cls with inherited fields first.
func classFields(m *ir.Module, cls *ir.Class) []*ir.Field {
	var chain []*ir.Class
	for c, depth := cls, 0; c != nil && depth < maxClassDepth; c, depth = baseClass(m, c), depth+1 {
		chain = append(chain, c)
	}
	var out []*ir.Field
	seen := make(map[string]bool)
	for i := len(chain) - 1; i >= 0; i-- {
		for _, f := range chain[i].Fields {
			if !seen[f.Name] {
				seen[f.Name] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// builtinCall types a call to a builtin function or exception class.
func (t *typer) builtinCall(c *ir.Call, name string) ir.Type {
	fn, ok := builtinFuncs[name]
	if !ok {
		for _, a := range c.Args {
			t.expr(a)
		}
		t.kwargs(c)
		return ir.Generic{Name: ir.ExceptionClass}
	}
	c.Builtin = name
	args := t.typeArgs(c)
	if key := c.Kwarg("key"); key != nil {
		if l, ok := key.(*ir.Lambda); ok {
			t.lambda(l, []ir.Type{lambdaParamHint(name, c.Args)})
		}
	}
	for i, a := range c.Args {
		if l, ok := a.(*ir.Lambda); ok {
			t.lambda(l, []ir.Type{lambdaParamHint(name, c.Args)})
			args[i] = ir.TypeOf(l)
		}
	}
	t.kwargs(c)
	return fn(args, c)
}

// typeArgs types the positional arguments of c, leaving lambdas for later
// so they can take hints from the other arguments.
func (t *typer) typeArgs(c *ir.Call) []ir.Type {
	args := make([]ir.Type, len(c.Args))
	for i, a := range c.Args {
		if _, ok := a.(*ir.Lambda); ok {
			args[i] = ir.Unresolved
			continue
		}
		args[i] = t.expr(a)
	}
	return args
}

// lambda seeds the parameters of l from hints before typing it.
func (t *typer) lambda(l *ir.Lambda, hints []ir.Type) {
	if len(hints) == 1 && len(l.Params) > 1 {
		if tup, ok := ir.Deref(ir.OrUnknown(hints[0])).(ir.Tuple); ok && len(tup.Elems) == len(l.Params) {
			hints = tup.Elems
		}
	}
	for i, p := range l.Params {
		if i < len(hints) {
			t.e.refine(p.Binding, ir.OrUnknown(hints[i]))
		}
	}
	t.expr(l)
}

// importCall types a call to a mapped library member.
func (t *typer) importCall(c *ir.Call, imp *ir.Import, name string) ir.Type {
	_, item, ok := t.e.importItem(imp, name)
	for i, a := range c.Args {
		var hint ir.Type
		if ok && i < len(item.Params) {
			hint = t.e.itemType(item.Params[i])
		}
		t.expect(a, hint)
	}
	t.kwargs(c)
	if !ok {
		return ir.AnyType
	}
	return t.e.itemType(item.Returns)
}

// methodCall types recv.name(args): module members, static and instance
// methods of user classes, and builtin methods.
func (t *typer) methodCall(c *ir.Call, f *ir.Attribute) ir.Type {
	if v, ok := f.X.(*ir.Var); ok {
		switch v.Ref {
		case ir.RefImport:
			t.expr(v)
			f.T = t.importMember(f, v)
			return t.importCall(c, v.Decl.(*ir.Import), f.Name)
		case ir.RefClass:
			cls := v.Decl.(*ir.Class)
			m := lookupMethod(t.e.module, cls, f.Name)
			if m == nil {
				t.e.unsupported(t.fn, f.Loc, "unknown class attribute %s.%s", cls.Name, f.Name)
			}
			f.T = funcType(m)
			return t.userCall(c, m)
		}
	}

	xt := t.expr(f.X)
	if cls := t.classOf(xt); cls != nil {
		if m := lookupMethod(t.e.module, cls, f.Name); m != nil {
			f.T = funcType(m)
			return t.userCall(c, m)
		}
		if fld := lookupField(t.e.module, cls, f.Name); fld != nil {
			f.Field = fld
			f.T = ir.OrUnknown(fld.Type)
			for _, a := range c.Args {
				t.expr(a)
			}
			if fn, ok := ir.Deref(f.T).(ir.Func); ok {
				return ir.OrUnknown(fn.Result)
			}
			return ir.AnyType
		}
		t.e.unsupported(t.fn, f.Loc, "unknown method %s.%s", cls.Name, f.Name)
	}

	args := t.typeArgs(c)
	for i, a := range c.Args {
		if l, ok := a.(*ir.Lambda); ok {
			t.lambda(l, nil)
			args[i] = ir.TypeOf(l)
		}
	}
	t.kwargs(c)
	res, ok := methodResult(xt, f.Name, args)
	switch {
	case ok:
		c.Builtin = f.Name
		f.T = ir.Func{Params: args, Result: res}
		return res
	case ir.IsUnknown(ir.Deref(xt)):
		return ir.Unresolved
	case isBuiltinShape(xt):
		t.e.unsupported(t.fn, f.Loc, "method %s of %s", f.Name, xt)
	}
	return ir.AnyType
}

// isBuiltinShape reports whether t is a builtin container or text type whose
// method set is closed.
func isBuiltinShape(t ir.Type) bool {
	switch ir.Deref(t).(type) {
	case ir.Seq, ir.Map, ir.Set, ir.Str:
		return true
	}
	return false
}
