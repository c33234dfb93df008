package codegen

import (
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/rust"
)

const maxClassDepth = 16

// class lowers a user class to a struct and its impl. Exception classes
// only contribute kinds to the PyException prelude.
func (u *unit) class(c *ir.Class) []rust.Item {
	if c.Exception {
		u.helpers[helperException] = true
		return nil
	}
	fields := u.allFields(c)
	st := &rust.Struct{
		Name:   c.Name,
		Derive: derives(fields),
		Pub:    true,
		Line:   c.Loc.Line,
	}
	for _, f := range fields {
		st.Fields = append(st.Fields, rust.StructField{Name: ident(f.Name), Type: u.typ(f.Type), Pub: true})
	}

	impl := &rust.Impl{Type: c.Name, Line: c.Loc.Line}
	for _, k := range c.Constants {
		l := u.lowerer(nil)
		ty := u.typ(k.Type)
		value := l.place(k.Value)
		if lit, ok := k.Value.(*ir.Literal); ok && lit.Kind == ir.LitStr {
			ty = rust.RefType{Inner: rust.Named("str")}
			value = rust.Str(lit.Str)
		}
		impl.Items = append(impl.Items, &rust.Const{Name: ident(k.Name), Type: ty, Value: value, Pub: true, Line: k.Loc.Line})
	}
	impl.Items = append(impl.Items, u.constructor(c, fields))
	for _, m := range u.allMethods(c) {
		if m.Name == "__init__" {
			continue
		}
		impl.Items = append(impl.Items, u.function(m, m.Name, c))
	}

	items := []rust.Item{st, impl}
	if u.display[c.Name] {
		items = append(items, u.displayImpl(c))
	}
	return items
}

// allFields returns the fields of c with inherited fields first.
func (u *unit) allFields(c *ir.Class) []*ir.Field {
	chain := u.chain(c)
	seen := make(map[string]bool)
	var out []*ir.Field
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

// allMethods returns the methods of c followed by inherited methods it
// does not override.
func (u *unit) allMethods(c *ir.Class) []*ir.Function {
	seen := make(map[string]bool)
	var out []*ir.Function
	for _, k := range u.chain(c) {
		for _, m := range k.Methods {
			if !seen[m.Name] {
				seen[m.Name] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// chain returns c followed by its user-defined bases.
func (u *unit) chain(c *ir.Class) []*ir.Class {
	var out []*ir.Class
	for depth := 0; c != nil && depth < maxClassDepth; depth++ {
		out = append(out, c)
		if len(c.Bases) == 0 {
			break
		}
		c = u.module.Class(c.Bases[0])
	}
	return out
}

// derives picks the derivable traits every field type supports.
func derives(fields []*ir.Field) []string {
	plain, debug := true, true
	for _, f := range fields {
		ir.Visit(f.Type, func(t ir.Type) {
			switch x := t.(type) {
			case ir.Func, ir.Any:
				plain, debug = false, false
			case ir.Generic:
				if x.Name == "File" {
					plain = false
				}
			}
		})
	}
	switch {
	case plain:
		return []string{"Debug", "Clone", "PartialEq"}
	case debug:
		return []string{"Debug"}
	}
	return nil
}

// constructor builds new. Dataclasses take every field; classes with an
// __init__ lower its body, directly into a struct literal when it only
// assigns fields, otherwise onto a zeroed value.
func (u *unit) constructor(c *ir.Class, fields []*ir.Field) *rust.Fn {
	out := &rust.Fn{Name: "new", Result: rust.Named("Self"), Pub: true, Line: c.Loc.Line}
	if c.Dataclass {
		lit := &rust.StructLit{Name: "Self"}
		for _, f := range fields {
			out.Params = append(out.Params, rust.Param{Name: ident(f.Name), Type: u.typ(f.Type)})
			lit.Fields = append(lit.Fields, rust.FieldInit{Name: ident(f.Name), Value: rust.Id(ident(f.Name))})
		}
		out.Body = &rust.Block{Tail: lit}
		return out
	}

	var init *ir.Function
	for _, k := range u.chain(c) {
		if m := k.Init(); m != nil {
			init = m
			break
		}
	}
	if init == nil {
		l := u.lowerer(nil)
		out.Body = &rust.Block{Tail: l.structLit(c, fields, nil)}
		return out
	}

	out.Params = u.params(init)
	out.Result = u.returnTypeOf(init, rust.Named("Self"))
	out.Line = init.Loc.Line
	if init.Skipped {
		out.Body = &rust.Block{Tail: rust.Todo(init.SkipReason)}
		return out
	}
	l := u.lowerer(init)
	if inits, ok := directInit(init); ok {
		values := make(map[string]rust.Expr, len(inits))
		for name, x := range inits {
			values[name] = l.valueAs(x, fieldType(fields, name))
		}
		out.Body = &rust.Block{Tail: l.okWrap(l.structLit(c, fields, values))}
		return out
	}

	l.selfName = "this"
	l.ctor = true
	body := l.block(init.Body)
	start := &rust.Let{Name: "this", Mut: true, Value: l.structLit(c, fields, nil)}
	body.Stmts = append([]rust.Stmt{start}, body.Stmts...)
	body.Tail = l.okWrap(rust.Id("this"))
	out.Body = body
	return out
}

func (u *unit) returnTypeOf(fn *ir.Function, t rust.Type) rust.Type {
	if fn.Fallible {
		u.helpers[helperException] = true
		return rust.Named("Result", t, rust.Named(ir.ExceptionClass))
	}
	return t
}

func fieldType(fields []*ir.Field, name string) ir.Type {
	for _, f := range fields {
		if f.Name == name {
			return f.Type
		}
	}
	return ir.Unresolved
}

// directInit matches an __init__ made only of "self.f = value" statements
// whose values do not read self. It returns the value per field.
func directInit(init *ir.Function) (map[string]ir.Expr, bool) {
	out := make(map[string]ir.Expr)
	for _, s := range init.Body {
		a, ok := s.(*ir.Assign)
		if !ok || a.Augmented() || a.Value == nil || len(a.Targets) != 1 {
			return nil, false
		}
		attr, ok := a.Targets[0].(*ir.Attribute)
		if !ok || !isSelf(attr.X, init) {
			return nil, false
		}
		if _, dup := out[attr.Name]; dup || readsSelf(a.Value, init) {
			return nil, false
		}
		out[attr.Name] = a.Value
	}
	return out, true
}

func isSelf(e ir.Expr, fn *ir.Function) bool {
	v, ok := e.(*ir.Var)
	return ok && fn.Self != nil && v.Binding == fn.Self
}

func readsSelf(e ir.Expr, fn *ir.Function) bool {
	found := false
	ir.WalkExpr(e, func(x ir.Expr) bool {
		if isSelf(x, fn) {
			found = true
		}
		return !found
	})
	return found
}

// structLit builds Self { .. } from explicit values, falling back to the
// class-level default and then the zero value of each field.
func (l *lowerer) structLit(c *ir.Class, fields []*ir.Field, values map[string]rust.Expr) rust.Expr {
	lit := &rust.StructLit{Name: "Self"}
	for _, f := range fields {
		v, ok := values[f.Name]
		if !ok && f.Default != nil {
			v, ok = l.valueAs(f.Default, f.Type), true
		}
		if !ok {
			v, ok = l.zero(f.Type)
		}
		if !ok {
			v = l.unsupported(l.fn, "field "+c.Name+"."+f.Name, "no default value for "+ir.OrUnknown(f.Type).String(), f.Loc)
		}
		lit.Fields = append(lit.Fields, rust.FieldInit{Name: ident(f.Name), Value: v})
	}
	return lit
}

// displayImpl forwards Display to the class's __str__ (or __repr__).
func (u *unit) displayImpl(c *ir.Class) rust.Item {
	method := "__str__"
	if c.Method(method) == nil {
		method = "__repr__"
	}
	fmtFn := &rust.Fn{
		Name:     "fmt",
		Receiver: "&self",
		Params: []rust.Param{{
			Name: "f",
			Type: rust.RefType{Mut: true, Inner: rust.Named("std::fmt::Formatter<'_>")},
		}},
		Result: rust.Named("std::fmt::Result"),
		Body: &rust.Block{Tail: &rust.Macro{Name: "write", Args: []rust.Expr{
			rust.Id("f"), rust.Str("{}"), rust.Method(rust.Id("self"), method),
		}}},
	}
	return &rust.Impl{Type: c.Name, Trait: "std::fmt::Display", Items: []rust.Item{fmtFn}}
}
