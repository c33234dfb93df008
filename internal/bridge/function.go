package bridge

import (
	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/pyast"
)

// exceptionBases are the builtin exception classes a user class may derive
// from.
var exceptionBases = map[string]bool{
	"Exception": true, "BaseException": true, "ValueError": true, "TypeError": true,
	"KeyError": true, "IndexError": true, "RuntimeError": true, "ArithmeticError": true,
	"ZeroDivisionError": true, "LookupError": true, "AttributeError": true,
	"NotImplementedError": true, "OSError": true, "IOError": true, "AssertionError": true,
}

// function lowers a def. Aborts are recovered here: the function is kept
// as a Skipped stub with whatever signature was already built.
func (b *Bridge) function(def *pyast.FunctionDef, cls *ir.Class) *ir.Function {
	fn := &ir.Function{
		Name:    def.Name,
		Async:   def.Async,
		Class:   cls,
		Returns: ir.Unresolved,
		Loc:     irLoc(def.Pos),
	}
	prev := b.fn
	b.fn = fn.QualifiedName()
	defer func() { b.fn = prev }()

	if d := b.guard(func() { b.lowerFunction(fn, def) }); d != nil {
		fn.Skipped = true
		fn.SkipReason = d.Message
		fn.Body = nil
		b.logger.Debug("function skipped", "function", fn.QualifiedName(), "reason", d.Message)
	}
	return fn
}

func (b *Bridge) lowerFunction(fn *ir.Function, def *pyast.FunctionDef) {
	for _, dec := range def.Decorators {
		switch decoratorName(dec) {
		case "staticmethod":
			if fn.Class == nil {
				b.unsupported(def.Pos, "staticmethod outside a class")
			}
			fn.Static = true
		default:
			b.unsupported(dec.Position(), "decorator @%s", decoratorName(dec))
		}
	}

	args := def.Args
	positional := args.Args
	if fn.Class != nil && !fn.Static {
		if len(positional) == 0 {
			b.unsupported(def.Pos, "method without a self parameter")
		}
		positional = positional[1:]
	}
	for _, a := range positional {
		fn.Params = append(fn.Params, b.param(a))
	}
	if args.Vararg != nil {
		p := b.param(args.Vararg)
		p.Variadic = true
		elem := p.Annotation
		if elem == nil {
			elem = ir.Unresolved
		}
		p.Annotation = ir.Seq{Elem: elem}
		fn.Params = append(fn.Params, p)
	}
	for _, a := range args.KwOnly {
		p := b.param(a)
		p.KwOnly = true
		fn.Params = append(fn.Params, p)
	}
	if args.Kwarg != nil {
		b.unsupported(args.Kwarg.Pos, "**%s parameter", args.Kwarg.Name)
	}

	if def.Returns != nil {
		fn.ReturnAnnotation = b.annotation(def.Returns)
		fn.Returns = fn.ReturnAnnotation
	}

	body := def.Body
	if len(body) > 0 {
		if es, ok := body[0].(*pyast.ExprStmt); ok && isDocstring(es) {
			fn.Doc = es.Value.(*pyast.Constant).Value
			fn.Doctests = b.doctests(fn.Doc, es.Line)
			body = body[1:]
		}
	}
	fn.Body = b.block(body)
}

func (b *Bridge) param(a *pyast.Arg) *ir.Param {
	p := &ir.Param{Name: a.Name, Loc: irLoc(a.Pos)}
	if a.Annotation != nil {
		p.Annotation = b.annotation(a.Annotation)
	}
	if a.Default != nil {
		p.Default = b.expr(a.Default)
	}
	return p
}

func decoratorName(e pyast.Expr) string {
	switch d := e.(type) {
	case *pyast.Name:
		return d.ID
	case *pyast.Attribute:
		return decoratorName(d.Value) + "." + d.Attr
	case *pyast.Call:
		return decoratorName(d.Func)
	}
	return "<expr>"
}

// class lowers a class definition. Methods abort individually; other
// unsupported members are reported and skipped.
func (b *Bridge) class(def *pyast.ClassDef) *ir.Class {
	cls := &ir.Class{Name: def.Name, Loc: irLoc(def.Pos)}

	for _, dec := range def.Decorators {
		switch decoratorName(dec) {
		case "dataclass", "dataclasses.dataclass":
			cls.Dataclass = true
		default:
			b.diags.Add(diag.UnsupportedConstruct("class decorator @"+decoratorName(dec), b.loc(dec.Position())))
		}
	}
	for _, base := range def.Bases {
		name := decoratorName(base)
		cls.Bases = append(cls.Bases, name)
		if exceptionBases[name] {
			cls.Exception = true
		} else if parent := b.module.Class(name); parent != nil && parent.Exception {
			cls.Exception = true
		}
	}
	if len(def.Keywords) > 0 {
		b.diags.Add(diag.UnsupportedConstruct("class keyword arguments", b.loc(def.Pos)))
	}

	for i, s := range def.Body {
		switch n := s.(type) {
		case *pyast.FunctionDef:
			cls.Methods = append(cls.Methods, b.function(n, cls))
		case *pyast.AnnAssign:
			b.guard(func() { b.classField(cls, n) })
		case *pyast.Assign:
			b.guard(func() { b.classConstant(cls, n) })
		case *pyast.Pass:
		case *pyast.ExprStmt:
			if i == 0 && isDocstring(n) {
				continue
			}
			if c, ok := n.Value.(*pyast.Constant); ok && c.Kind == pyast.ConstEllipsis {
				continue
			}
			b.diags.Add(diag.UnsupportedConstruct("class-level expression statement", b.loc(n.Pos)))
		default:
			b.diags.Add(diag.UnsupportedConstruct("class-level "+stmtName(s), b.loc(s.Position())))
		}
	}

	discoverFields(cls)
	return cls
}

func (b *Bridge) classField(cls *ir.Class, n *pyast.AnnAssign) {
	name, ok := n.Target.(*pyast.Name)
	if !ok {
		b.unsupported(n.Pos, "class-level annotation of %s", exprName(n.Target))
	}
	f := &ir.Field{Name: name.ID, Annotation: b.annotation(n.Annotation), Loc: irLoc(n.Pos)}
	f.Type = f.Annotation
	if n.Value != nil {
		f.Default = b.expr(n.Value)
	}
	cls.AddField(f)
}

func (b *Bridge) classConstant(cls *ir.Class, n *pyast.Assign) {
	if len(n.Targets) != 1 {
		b.unsupported(n.Pos, "class-level chained assignment")
	}
	name, ok := n.Targets[0].(*pyast.Name)
	if !ok {
		b.unsupported(n.Pos, "class-level assignment to %s", exprName(n.Targets[0]))
	}
	cls.Constants = append(cls.Constants, &ir.Constant{Name: name.ID, Value: b.expr(n.Value), Loc: irLoc(n.Pos)})
}

// discoverFields adds every "self.<name> = ..." target across all methods,
// in first-seen order, after the class-level annotated fields.
func discoverFields(cls *ir.Class) {
	for _, m := range cls.Methods {
		if m.Static {
			continue
		}
		ir.WalkStmts(m.Body, func(s ir.Stmt) bool {
			a, ok := s.(*ir.Assign)
			if !ok {
				return true
			}
			for _, t := range a.Targets {
				for _, attr := range selfAttributes(t) {
					f := cls.AddField(&ir.Field{Name: attr.Name, Type: ir.Unresolved, Loc: attr.Loc})
					if f.Annotation == nil && a.Annotation != nil && len(a.Targets) == 1 {
						f.Annotation = a.Annotation
						f.Type = a.Annotation
					}
				}
			}
			return true
		})
	}
}

func selfAttributes(target ir.Expr) []*ir.Attribute {
	switch t := target.(type) {
	case *ir.Attribute:
		if v, ok := t.X.(*ir.Var); ok && v.Name == "self" {
			return []*ir.Attribute{t}
		}
	case *ir.TupleLit:
		var out []*ir.Attribute
		for _, e := range t.Elems {
			out = append(out, selfAttributes(e)...)
		}
		return out
	}
	return nil
}
