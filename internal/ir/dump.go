package ir

import "strconv"

// Dump renders m as plain Go values suitable for MarshalCanonical.
// The dump includes resolved types, binding ids and ownership flags, so two
// dumps are equal exactly when the passes reached the same annotations.
func Dump(m *Module) map[string]any {
	decls := make([]any, 0, len(m.Decls))
	for _, d := range m.Decls {
		decls = append(decls, dumpDecl(d))
	}
	return map[string]any{
		"module":     m.Name,
		"decls":      decls,
		"ir_version": IRVersion,
	}
}

func dumpType(t Type) any {
	if t == nil {
		return nil
	}
	return t.String()
}

func dumpLoc(l Loc) string {
	return strconv.Itoa(l.Line) + ":" + strconv.Itoa(l.Col)
}

func dumpDecl(d Decl) map[string]any {
	switch x := d.(type) {
	case *Import:
		names := make([]any, 0, len(x.Names))
		for _, n := range x.Names {
			names = append(names, map[string]any{"name": n.Name, "alias": n.Alias})
		}
		return map[string]any{
			"kind":     "import",
			"module":   x.Module,
			"alias":    x.Alias,
			"from":     x.From,
			"names":    names,
			"target":   x.Target,
			"resolved": x.Resolved,
		}
	case *Constant:
		return map[string]any{
			"kind":  "constant",
			"name":  x.Name,
			"type":  dumpType(x.Type),
			"value": DumpExpr(x.Value),
		}
	case *Function:
		return dumpFunction(x)
	case *Class:
		fields := make([]any, 0, len(x.Fields))
		for _, f := range x.Fields {
			fields = append(fields, map[string]any{"name": f.Name, "type": dumpType(f.Type)})
		}
		methods := make([]any, 0, len(x.Methods))
		for _, fn := range x.Methods {
			methods = append(methods, dumpFunction(fn))
		}
		consts := make([]any, 0, len(x.Constants))
		for _, c := range x.Constants {
			consts = append(consts, dumpDecl(c))
		}
		return map[string]any{
			"kind":      "class",
			"name":      x.Name,
			"bases":     append([]string{}, x.Bases...),
			"fields":    fields,
			"methods":   methods,
			"constants": consts,
			"exception": x.Exception,
			"dataclass": x.Dataclass,
		}
	}
	return map[string]any{"kind": "unknown"}
}

func dumpFunction(f *Function) map[string]any {
	params := make([]any, 0, len(f.Params))
	for _, p := range f.Params {
		entry := map[string]any{
			"name":     p.Name,
			"variadic": p.Variadic,
		}
		if p.Binding != nil {
			entry["binding"] = dumpBinding(p.Binding)
		}
		if p.Default != nil {
			entry["default"] = DumpExpr(p.Default)
		}
		params = append(params, entry)
	}
	out := map[string]any{
		"kind":     "function",
		"name":     f.Name,
		"params":   params,
		"returns":  dumpType(f.Returns),
		"async":    f.Async,
		"static":   f.Static,
		"receiver": f.Receiver.String(),
		"fallible": f.Fallible,
		"body":     DumpStmts(f.Body),
	}
	if f.Skipped {
		out["skipped"] = f.SkipReason
	}
	return out
}

func dumpBinding(b *Binding) map[string]any {
	return map[string]any{
		"id":        b.ID,
		"name":      b.Name,
		"kind":      b.Kind.String(),
		"type":      dumpType(b.Type),
		"mutable":   b.Mutable,
		"in_place":  b.MutatedInPlace,
		"escapes":   b.Escapes,
		"pass":      b.Pass.String(),
		"hoisted":   b.Hoisted,
		"assigned":  b.Assignments,
		"read_late": b.ReadAfterMutation,
	}
}

func dumpBindings(bs []*Binding) []any {
	out := make([]any, 0, len(bs))
	for _, b := range bs {
		out = append(out, dumpBinding(b))
	}
	return out
}

// DumpStmts renders a block.
func DumpStmts(stmts []Stmt) []any {
	out := make([]any, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, dumpStmt(s))
	}
	return out
}

func dumpStmt(s Stmt) map[string]any {
	out := map[string]any{"stmt": StmtKind(s), "loc": dumpLoc(s.Pos())}
	switch x := s.(type) {
	case *Assign:
		out["targets"] = dumpExprs(x.Targets)
		out["value"] = DumpExpr(x.Value)
		if x.Op != OpNone {
			out["op"] = x.Op.String()
		}
		out["type"] = dumpType(x.Type)
	case *Return:
		out["value"] = DumpExpr(x.Value)
	case *If:
		out["cond"] = DumpExpr(x.Cond)
		out["then"] = DumpStmts(x.Then)
		out["else"] = DumpStmts(x.Else)
		out["hoisted"] = dumpBindings(x.Hoisted)
	case *While:
		out["cond"] = DumpExpr(x.Cond)
		out["body"] = DumpStmts(x.Body)
	case *For:
		out["target"] = DumpExpr(x.Target)
		out["iter"] = DumpExpr(x.Iter)
		out["body"] = DumpStmts(x.Body)
	case *ExprStmt:
		out["expr"] = DumpExpr(x.X)
	case *Raise:
		out["kind"] = x.Kind
		out["message"] = DumpExpr(x.Message)
		out["assert"] = x.Assert
		out["reraise"] = x.Reraise
	case *With:
		out["ctx"] = DumpExpr(x.Ctx)
		if x.Target != nil {
			out["target"] = DumpExpr(x.Target)
		}
		out["body"] = DumpStmts(x.Body)
	case *TryExcept:
		handlers := make([]any, 0, len(x.Handlers))
		for _, h := range x.Handlers {
			handlers = append(handlers, map[string]any{
				"kinds": append([]string{}, h.Kinds...),
				"name":  h.Name,
				"body":  DumpStmts(h.Body),
			})
		}
		out["body"] = DumpStmts(x.Body)
		out["handlers"] = handlers
		out["else"] = DumpStmts(x.Else)
		out["finally"] = DumpStmts(x.Finally)
		out["hoisted"] = dumpBindings(x.Hoisted)
	}
	return out
}

func dumpExprs(es []Expr) []any {
	out := make([]any, 0, len(es))
	for _, e := range es {
		out = append(out, DumpExpr(e))
	}
	return out
}

// DumpExpr renders one expression. A nil expression renders as nil.
func DumpExpr(e Expr) any {
	if e == nil {
		return nil
	}
	b := e.Base()
	out := map[string]any{"expr": ExprKind(e), "type": dumpType(b.T)}
	if b.Conv != nil {
		out["conv"] = dumpType(b.Conv)
	}
	switch x := e.(type) {
	case *Literal:
		switch x.Kind {
		case LitInt:
			out["value"] = x.Int
		case LitFloat:
			out["value"] = x.Str
		case LitStr, LitBytes:
			out["value"] = x.Str
		case LitBool:
			out["value"] = x.Bool
		case LitNone:
			out["value"] = nil
		}
	case *Var:
		out["name"] = x.Name
		out["ref"] = x.Ref.String()
		if x.Binding != nil {
			out["binding"] = x.Binding.ID
		}
		if x.Declares {
			out["declares"] = true
		}
		if x.LastUse {
			out["last_use"] = true
		}
		if x.Narrowed {
			out["narrowed"] = true
		}
	case *Binary:
		out["op"] = x.Op.String()
		out["l"] = DumpExpr(x.L)
		out["r"] = DumpExpr(x.R)
	case *Unary:
		out["op"] = x.Op.String()
		out["x"] = DumpExpr(x.X)
	case *Call:
		out["func"] = DumpExpr(x.Func)
		out["args"] = dumpExprs(x.Args)
		kw := make([]any, 0, len(x.Kwargs))
		for _, k := range x.Kwargs {
			kw = append(kw, map[string]any{"name": k.Name, "value": DumpExpr(k.Value)})
		}
		out["kwargs"] = kw
		if x.Builtin != "" {
			out["builtin"] = x.Builtin
		}
	case *Index:
		out["x"] = DumpExpr(x.X)
		out["index"] = DumpExpr(x.Index)
	case *Attribute:
		out["x"] = DumpExpr(x.X)
		out["name"] = x.Name
		if x.Rewrite != "" {
			out["rewrite"] = x.Rewrite
		}
	case *ListLit:
		out["elems"] = dumpExprs(x.Elems)
	case *TupleLit:
		out["elems"] = dumpExprs(x.Elems)
	case *SetLit:
		out["elems"] = dumpExprs(x.Elems)
	case *DictLit:
		out["keys"] = dumpExprs(x.Keys)
		out["values"] = dumpExprs(x.Values)
	case *Comprehension:
		gens := make([]any, 0, len(x.Gens))
		for _, g := range x.Gens {
			gens = append(gens, map[string]any{
				"target": DumpExpr(g.Target),
				"iter":   DumpExpr(g.Iter),
				"ifs":    dumpExprs(g.Ifs),
			})
		}
		out["gens"] = gens
		out["elem"] = DumpExpr(x.Elem)
		out["key"] = DumpExpr(x.Key)
		out["value"] = DumpExpr(x.Value)
	case *Lambda:
		params := make([]any, 0, len(x.Params))
		for _, p := range x.Params {
			params = append(params, p.Name)
		}
		out["params"] = params
		out["body"] = DumpExpr(x.Body)
	case *Slice:
		out["x"] = DumpExpr(x.X)
		out["lower"] = DumpExpr(x.Lower)
		out["upper"] = DumpExpr(x.Upper)
		out["step"] = DumpExpr(x.Step)
	case *FString:
		parts := make([]any, 0, len(x.Parts))
		for _, p := range x.Parts {
			if p.X == nil {
				parts = append(parts, p.Lit)
				continue
			}
			part := map[string]any{"x": DumpExpr(p.X), "spec": p.Spec}
			if p.Conv != 0 {
				part["conv"] = string(p.Conv)
			}
			parts = append(parts, part)
		}
		out["parts"] = parts
	case *Await:
		out["x"] = DumpExpr(x.X)
	case *Ternary:
		out["cond"] = DumpExpr(x.Cond)
		out["then"] = DumpExpr(x.Then)
		out["else"] = DumpExpr(x.Else)
	}
	return out
}
