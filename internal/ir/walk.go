package ir

// Children returns the direct sub-expressions of e in evaluation order.
// Nil children (omitted slice bounds, bare returns) are skipped.
func Children(e Expr) []Expr {
	var out []Expr
	add := func(xs ...Expr) {
		for _, x := range xs {
			if x != nil {
				out = append(out, x)
			}
		}
	}
	switch x := e.(type) {
	case *Binary:
		add(x.L, x.R)
	case *Unary:
		add(x.X)
	case *Call:
		add(x.Func)
		add(x.Args...)
		for _, k := range x.Kwargs {
			add(k.Value)
		}
	case *Index:
		add(x.X, x.Index)
	case *Attribute:
		add(x.X)
	case *ListLit:
		add(x.Elems...)
	case *TupleLit:
		add(x.Elems...)
	case *SetLit:
		add(x.Elems...)
	case *DictLit:
		for i := range x.Keys {
			add(x.Keys[i], x.Values[i])
		}
	case *Comprehension:
		for _, g := range x.Gens {
			add(g.Iter, g.Target)
			add(g.Ifs...)
		}
		add(x.Elem, x.Key, x.Value)
	case *Lambda:
		add(x.Body)
	case *Slice:
		add(x.X, x.Lower, x.Upper, x.Step)
	case *FString:
		for _, p := range x.Parts {
			add(p.X)
		}
	case *Await:
		add(x.X)
	case *Ternary:
		add(x.Cond, x.Then, x.Else)
	}
	return out
}

// WalkExpr calls fn for e and, while fn returns true, its descendants.
func WalkExpr(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range Children(e) {
		WalkExpr(c, fn)
	}
}

// StmtExprs returns the expressions owned directly by s (not by nested blocks).
func StmtExprs(s Stmt) []Expr {
	var out []Expr
	add := func(xs ...Expr) {
		for _, x := range xs {
			if x != nil {
				out = append(out, x)
			}
		}
	}
	switch x := s.(type) {
	case *Assign:
		add(x.Value)
		add(x.Targets...)
	case *Return:
		add(x.Value)
	case *If:
		add(x.Cond)
	case *While:
		add(x.Cond)
	case *For:
		add(x.Iter, x.Target)
	case *ExprStmt:
		add(x.X)
	case *Raise:
		add(x.Message)
	case *With:
		add(x.Ctx)
		if x.Target != nil {
			add(x.Target)
		}
	}
	return out
}

// Blocks returns the nested statement blocks of s.
func Blocks(s Stmt) [][]Stmt {
	switch x := s.(type) {
	case *If:
		return [][]Stmt{x.Then, x.Else}
	case *While:
		return [][]Stmt{x.Body}
	case *For:
		return [][]Stmt{x.Body}
	case *With:
		return [][]Stmt{x.Body}
	case *TryExcept:
		blocks := [][]Stmt{x.Body}
		for _, h := range x.Handlers {
			blocks = append(blocks, h.Body)
		}
		return append(blocks, x.Else, x.Finally)
	}
	return nil
}

// WalkStmts calls fn for every statement in stmts, depth first. Nested
// blocks of a statement are visited only when fn returns true.
func WalkStmts(stmts []Stmt, fn func(Stmt) bool) {
	for _, s := range stmts {
		if !fn(s) {
			continue
		}
		for _, b := range Blocks(s) {
			WalkStmts(b, fn)
		}
	}
}

// WalkBody visits every expression in stmts, including nested blocks.
func WalkBody(stmts []Stmt, fn func(Expr) bool) {
	WalkStmts(stmts, func(s Stmt) bool {
		for _, e := range StmtExprs(s) {
			WalkExpr(e, fn)
		}
		return true
	})
}

// CloneExpr returns a deep copy of e. Resolved slots are copied; bindings and
// declarations are shared references, not copied.
func CloneExpr(e Expr) Expr {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *Literal:
		c := *x
		return &c
	case *Var:
		c := *x
		c.Declares = false
		c.LastUse = false
		return &c
	case *Binary:
		c := *x
		c.L, c.R = CloneExpr(x.L), CloneExpr(x.R)
		return &c
	case *Unary:
		c := *x
		c.X = CloneExpr(x.X)
		return &c
	case *Call:
		c := *x
		c.Func = CloneExpr(x.Func)
		c.Args = cloneList(x.Args)
		c.Kwargs = make([]Keyword, len(x.Kwargs))
		for i, k := range x.Kwargs {
			c.Kwargs[i] = Keyword{Name: k.Name, Value: CloneExpr(k.Value)}
		}
		return &c
	case *Index:
		c := *x
		c.X, c.Index = CloneExpr(x.X), CloneExpr(x.Index)
		return &c
	case *Attribute:
		c := *x
		c.X = CloneExpr(x.X)
		return &c
	case *ListLit:
		c := *x
		c.Elems = cloneList(x.Elems)
		return &c
	case *TupleLit:
		c := *x
		c.Elems = cloneList(x.Elems)
		return &c
	case *SetLit:
		c := *x
		c.Elems = cloneList(x.Elems)
		return &c
	case *DictLit:
		c := *x
		c.Keys, c.Values = cloneList(x.Keys), cloneList(x.Values)
		return &c
	case *Comprehension:
		c := *x
		c.Elem, c.Key, c.Value = CloneExpr(x.Elem), CloneExpr(x.Key), CloneExpr(x.Value)
		c.Gens = make([]*Generator, len(x.Gens))
		for i, g := range x.Gens {
			c.Gens[i] = &Generator{Target: CloneExpr(g.Target), Iter: CloneExpr(g.Iter), Ifs: cloneList(g.Ifs)}
		}
		return &c
	case *Lambda:
		c := *x
		c.Body = CloneExpr(x.Body)
		return &c
	case *Slice:
		c := *x
		c.X, c.Lower, c.Upper, c.Step = CloneExpr(x.X), CloneExpr(x.Lower), CloneExpr(x.Upper), CloneExpr(x.Step)
		return &c
	case *FString:
		c := *x
		c.Parts = make([]FPart, len(x.Parts))
		for i, p := range x.Parts {
			p.X = CloneExpr(p.X)
			c.Parts[i] = p
		}
		return &c
	case *Await:
		c := *x
		c.X = CloneExpr(x.X)
		return &c
	case *Ternary:
		c := *x
		c.Cond, c.Then, c.Else = CloneExpr(x.Cond), CloneExpr(x.Then), CloneExpr(x.Else)
		return &c
	}
	return e
}

func cloneList(xs []Expr) []Expr {
	if xs == nil {
		return nil
	}
	out := make([]Expr, len(xs))
	for i, x := range xs {
		out[i] = CloneExpr(x)
	}
	return out
}

// TargetVars returns the *Var nodes of an assignment or loop target,
// flattening tuple unpacking. Index and attribute targets are skipped.
func TargetVars(target Expr) []*Var {
	switch x := target.(type) {
	case *Var:
		return []*Var{x}
	case *TupleLit:
		var out []*Var
		for _, e := range x.Elems {
			out = append(out, TargetVars(e)...)
		}
		return out
	case *ListLit:
		var out []*Var
		for _, e := range x.Elems {
			out = append(out, TargetVars(e)...)
		}
		return out
	}
	return nil
}

// Terminates reports whether control never falls off the end of stmts:
// the block ends in a return or raise, an if whose branches both terminate,
// or a "while True" loop without a break.
func Terminates(stmts []Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	switch s := stmts[len(stmts)-1].(type) {
	case *Return, *Raise:
		return true
	case *If:
		return Terminates(s.Then) && Terminates(s.Else)
	case *While:
		lit, ok := s.Cond.(*Literal)
		return ok && lit.Kind == LitBool && lit.Bool && !breaks(s.Body)
	case *TryExcept:
		if Terminates(s.Finally) {
			return true
		}
		if !Terminates(s.Body) && !Terminates(s.Else) {
			return false
		}
		for _, h := range s.Handlers {
			if !Terminates(h.Body) {
				return false
			}
		}
		return true
	case *With:
		return Terminates(s.Body)
	}
	return false
}

// breaks reports whether a break in stmts leaves the enclosing loop.
// Breaks inside nested loops belong to those loops.
func breaks(stmts []Stmt) bool {
	found := false
	WalkStmts(stmts, func(s Stmt) bool {
		switch s.(type) {
		case *Break:
			found = true
		case *For, *While:
			return false
		}
		return !found
	})
	return found
}
