package pyast

// WalkExpr calls fn for e and every expression nested inside it, parents
// first. Nested lambda bodies and comprehension clauses are included.
func WalkExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	for _, c := range exprChildren(e) {
		WalkExpr(c, fn)
	}
}

func exprChildren(e Expr) []Expr {
	var out []Expr
	add := func(xs ...Expr) {
		for _, x := range xs {
			if x != nil {
				out = append(out, x)
			}
		}
	}
	gens := func(gs []*Comprehension) {
		for _, g := range gs {
			add(g.Target, g.Iter)
			add(g.Ifs...)
		}
	}
	switch x := e.(type) {
	case *BoolOp:
		add(x.Values...)
	case *NamedExpr:
		add(x.Target, x.Value)
	case *BinOp:
		add(x.Left, x.Right)
	case *UnaryOp:
		add(x.Operand)
	case *Lambda:
		add(x.Body)
	case *IfExp:
		add(x.Test, x.Body, x.Orelse)
	case *Dict:
		add(x.Keys...)
		add(x.Values...)
	case *Set:
		add(x.Elts...)
	case *ListComp:
		gens(x.Generators)
		add(x.Elt)
	case *SetComp:
		gens(x.Generators)
		add(x.Elt)
	case *DictComp:
		gens(x.Generators)
		add(x.Key, x.Value)
	case *GeneratorExp:
		gens(x.Generators)
		add(x.Elt)
	case *Await:
		add(x.Value)
	case *Yield:
		add(x.Value)
	case *Compare:
		add(x.Left)
		add(x.Comparators...)
	case *Call:
		add(x.Func)
		add(x.Args...)
		for _, k := range x.Keywords {
			add(k.Value)
		}
	case *FormattedValue:
		add(x.Value)
	case *JoinedStr:
		add(x.Values...)
	case *Attribute:
		add(x.Value)
	case *Subscript:
		add(x.Value, x.Slice)
	case *Starred:
		add(x.Value)
	case *List:
		add(x.Elts...)
	case *Tuple:
		add(x.Elts...)
	case *Slice:
		add(x.Lower, x.Upper, x.Step)
	}
	return out
}

// WalkStmts calls fn for every statement in body, depth first, including
// statements nested in compound statements but not in nested function or
// class definitions.
func WalkStmts(body []Stmt, fn func(Stmt)) {
	for _, s := range body {
		fn(s)
		switch x := s.(type) {
		case *If:
			WalkStmts(x.Body, fn)
			WalkStmts(x.Orelse, fn)
		case *While:
			WalkStmts(x.Body, fn)
			WalkStmts(x.Orelse, fn)
		case *For:
			WalkStmts(x.Body, fn)
			WalkStmts(x.Orelse, fn)
		case *With:
			WalkStmts(x.Body, fn)
		case *Try:
			WalkStmts(x.Body, fn)
			for _, h := range x.Handlers {
				WalkStmts(h.Body, fn)
			}
			WalkStmts(x.Orelse, fn)
			WalkStmts(x.Finalbody, fn)
		}
	}
}
