package rust

// Children returns the direct subexpressions of e. Blocks nested in e are
// not included; see Blocks.
func Children(e Expr) []Expr {
	switch x := e.(type) {
	case *Binary:
		return []Expr{x.L, x.R}
	case *Unary:
		return []Expr{x.X}
	case *Paren:
		return []Expr{x.X}
	case *Cast:
		return []Expr{x.X}
	case *Borrow:
		return []Expr{x.X}
	case *Call:
		return append([]Expr{x.Func}, x.Args...)
	case *MethodCall:
		return append([]Expr{x.Recv}, x.Args...)
	case *Field:
		return []Expr{x.X}
	case *Index:
		return []Expr{x.X, x.Index}
	case *Macro:
		return x.Args
	case *StructLit:
		out := make([]Expr, len(x.Fields))
		for i, f := range x.Fields {
			out[i] = f.Value
		}
		return out
	case *Closure:
		return []Expr{x.Body}
	case *TryExpr:
		return []Expr{x.X}
	case *AwaitExpr:
		return []Expr{x.X}
	case *TupleExpr:
		return x.Elems
	case *ArrayLit:
		return x.Elems
	case *Range:
		var out []Expr
		if x.Lo != nil {
			out = append(out, x.Lo)
		}
		if x.Hi != nil {
			out = append(out, x.Hi)
		}
		return out
	case *If:
		if x.Else != nil {
			return []Expr{x.Cond, x.Else}
		}
		return []Expr{x.Cond}
	case *IfLet:
		return []Expr{x.X}
	case *While:
		return []Expr{x.Cond}
	case *For:
		return []Expr{x.Iter}
	case *Match:
		out := []Expr{x.X}
		for _, a := range x.Arms {
			if a.Guard != nil {
				out = append(out, a.Guard)
			}
			out = append(out, a.Body)
		}
		return out
	}
	return nil
}

// Blocks returns the blocks directly nested in e.
func Blocks(e Expr) []*Block {
	switch x := e.(type) {
	case *If:
		return []*Block{x.Then}
	case *IfLet:
		if x.Else != nil {
			return []*Block{x.Then, x.Else}
		}
		return []*Block{x.Then}
	case *While:
		return []*Block{x.Body}
	case *Loop:
		return []*Block{x.Body}
	case *For:
		return []*Block{x.Body}
	case *BlockExpr:
		return []*Block{x.Block}
	}
	return nil
}

// StmtExprs returns the expressions a statement evaluates.
func StmtExprs(s Stmt) []Expr {
	switch n := s.(type) {
	case *Let:
		if n.Value != nil {
			return []Expr{n.Value}
		}
	case *Assign:
		return []Expr{n.Target, n.Value}
	case *ExprStmt:
		return []Expr{n.X}
	case *Return:
		if n.Value != nil {
			return []Expr{n.Value}
		}
	}
	return nil
}

// Inspect visits e and every expression below it, including those in
// nested blocks, depth first. Returning false from fn skips the node's
// descendants.
func Inspect(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range Children(e) {
		Inspect(c, fn)
	}
	for _, b := range Blocks(e) {
		InspectBlock(b, fn)
	}
}

// InspectBlock runs Inspect over every statement and the tail of b.
func InspectBlock(b *Block, fn func(Expr) bool) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		for _, e := range StmtExprs(s) {
			Inspect(e, fn)
		}
	}
	if b.Tail != nil {
		Inspect(b.Tail, fn)
	}
}

// Rewrite replaces the expressions of the tree rooted at e bottom-up with
// the result of fn, descending into nested blocks. The tree is updated in
// place and the new root returned.
func Rewrite(e Expr, fn func(Expr) Expr) Expr {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *Binary:
		x.L, x.R = Rewrite(x.L, fn), Rewrite(x.R, fn)
	case *Unary:
		x.X = Rewrite(x.X, fn)
	case *Paren:
		x.X = Rewrite(x.X, fn)
	case *Cast:
		x.X = Rewrite(x.X, fn)
	case *Borrow:
		x.X = Rewrite(x.X, fn)
	case *Call:
		x.Func = Rewrite(x.Func, fn)
		rewriteList(x.Args, fn)
	case *MethodCall:
		x.Recv = Rewrite(x.Recv, fn)
		rewriteList(x.Args, fn)
	case *Field:
		x.X = Rewrite(x.X, fn)
	case *Index:
		x.X, x.Index = Rewrite(x.X, fn), Rewrite(x.Index, fn)
	case *Macro:
		rewriteList(x.Args, fn)
	case *StructLit:
		for i := range x.Fields {
			x.Fields[i].Value = Rewrite(x.Fields[i].Value, fn)
		}
	case *Closure:
		x.Body = Rewrite(x.Body, fn)
	case *TryExpr:
		x.X = Rewrite(x.X, fn)
	case *AwaitExpr:
		x.X = Rewrite(x.X, fn)
	case *TupleExpr:
		rewriteList(x.Elems, fn)
	case *ArrayLit:
		rewriteList(x.Elems, fn)
	case *Range:
		x.Lo, x.Hi = Rewrite(x.Lo, fn), Rewrite(x.Hi, fn)
	case *If:
		x.Cond = Rewrite(x.Cond, fn)
		RewriteBlock(x.Then, fn)
		x.Else = Rewrite(x.Else, fn)
	case *IfLet:
		x.X = Rewrite(x.X, fn)
		RewriteBlock(x.Then, fn)
		RewriteBlock(x.Else, fn)
	case *While:
		x.Cond = Rewrite(x.Cond, fn)
		RewriteBlock(x.Body, fn)
	case *Loop:
		RewriteBlock(x.Body, fn)
	case *For:
		x.Iter = Rewrite(x.Iter, fn)
		RewriteBlock(x.Body, fn)
	case *Match:
		x.X = Rewrite(x.X, fn)
		for i := range x.Arms {
			x.Arms[i].Guard = Rewrite(x.Arms[i].Guard, fn)
			x.Arms[i].Body = Rewrite(x.Arms[i].Body, fn)
		}
	case *BlockExpr:
		RewriteBlock(x.Block, fn)
	}
	return fn(e)
}

func rewriteList(es []Expr, fn func(Expr) Expr) {
	for i, e := range es {
		es[i] = Rewrite(e, fn)
	}
}

// RewriteBlock runs Rewrite over every statement and the tail of b.
func RewriteBlock(b *Block, fn func(Expr) Expr) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		switch n := s.(type) {
		case *Let:
			n.Value = Rewrite(n.Value, fn)
		case *Assign:
			n.Target = Rewrite(n.Target, fn)
			n.Value = Rewrite(n.Value, fn)
		case *ExprStmt:
			n.X = Rewrite(n.X, fn)
		case *Return:
			n.Value = Rewrite(n.Value, fn)
		}
	}
	b.Tail = Rewrite(b.Tail, fn)
}

// Functions returns every function item of f, including methods in impl
// blocks and functions in inline modules.
func Functions(f *File) []*Fn {
	return functions(f.Items)
}

func functions(items []Item) []*Fn {
	var out []*Fn
	for _, it := range items {
		switch n := it.(type) {
		case *Fn:
			out = append(out, n)
		case *Impl:
			out = append(out, functions(n.Items)...)
		case *Mod:
			out = append(out, functions(n.Items)...)
		}
	}
	return out
}
