package codegen

import (
	"strconv"
	"strings"

	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/rust"
)

// builtin lowers a call to a builtin function.
func (l *lowerer) builtin(c *ir.Call) rust.Expr {
	arg := func(i int) ir.Expr {
		if i < len(c.Args) {
			return c.Args[i]
		}
		return nil
	}
	x := arg(0)
	xt := ir.Deref(ir.EffectiveType(x))
	intType := rust.Named(l.profile.IntType())

	switch c.Builtin {
	case "print":
		return l.print(c)
	case "len":
		if x == nil {
			break
		}
		if ir.IsStr(xt) {
			return rust.Method(rust.Method(l.place(x), "chars"), "count")
		}
		return rust.Method(l.place(x), "len")
	case "int":
		switch {
		case x == nil:
			return rust.Int(0)
		case ir.IsStr(xt):
			s := rust.Method(l.place(x), "trim")
			if base := c.Kwarg("base"); base != nil || len(c.Args) > 1 {
				if base == nil {
					base = c.Args[1]
				}
				radix := &rust.Cast{X: l.place(base), Type: rust.Named("u32")}
				return l.fallibleStd(rust.CallPath(l.profile.IntType()+"::from_str_radix", s, radix), "ValueError")
			}
			return l.fallibleStd(&rust.MethodCall{Recv: s, Name: "parse", Turbofish: []rust.Type{intType}}, "ValueError")
		case ir.IsPrim(xt, ir.KindInt):
			return l.place(x)
		}
		return &rust.Cast{X: l.place(x), Type: intType}
	case "float":
		switch {
		case x == nil:
			return &rust.FloatLit{Value: 0}
		case ir.IsStr(xt):
			s := rust.Method(l.place(x), "trim")
			return l.fallibleStd(&rust.MethodCall{Recv: s, Name: "parse", Turbofish: []rust.Type{rust.Named("f64")}}, "ValueError")
		case isFloat(xt):
			return l.place(x)
		}
		return &rust.Cast{X: l.place(x), Type: rust.Named("f64")}
	case "str":
		if x == nil {
			return rust.CallPath("String::new")
		}
		return l.str(x)
	case "repr":
		if x != nil && ir.IsStr(xt) {
			return &rust.Macro{Name: "format", Args: []rust.Expr{rust.Str("'{}'"), l.place(x)}}
		}
		if x != nil {
			return l.str(x)
		}
	case "bool":
		if x == nil {
			return &rust.BoolLit{Value: false}
		}
		return l.cond(x)
	case "abs":
		if x == nil {
			break
		}
		if ir.IsPrim(xt, ir.KindUsize) {
			return l.place(x)
		}
		return rust.Method(l.receiver(l.place(x)), "abs")
	case "chr":
		if x == nil {
			break
		}
		ch := rust.CallPath("char::from_u32", &rust.Cast{X: l.place(x), Type: rust.Named("u32")})
		return rust.Method(rust.Method(ch, "unwrap"), "to_string")
	case "ord":
		if x == nil {
			break
		}
		first := rust.Method(rust.Method(l.place(x), "chars"), "next")
		return &rust.Cast{X: rust.Method(first, "unwrap"), Type: intType}
	case "hex", "bin", "oct":
		if x == nil {
			break
		}
		spec := map[string]string{"hex": "{:#x}", "bin": "{:#b}", "oct": "{:#o}"}[c.Builtin]
		return &rust.Macro{Name: "format", Args: []rust.Expr{rust.Str(spec), l.place(x)}}
	case "format":
		if x == nil {
			break
		}
		spec := ""
		if s, ok := arg(1).(*ir.Literal); ok && s.Kind == ir.LitStr {
			spec = s.Str
		} else if arg(1) != nil {
			return l.unsupported(l.fn, "format", "format spec must be a literal", c.Loc)
		}
		ph, a := l.formatArg(x, 0, spec)
		args := []rust.Expr{rust.Str(ph)}
		if a != nil {
			args = append(args, a)
		}
		return &rust.Macro{Name: "format", Args: args}
	case "round":
		if x == nil {
			break
		}
		if n := arg(1); n != nil {
			scale := rust.Method(&rust.FloatLit{Value: 10}, "powi", &rust.Cast{X: l.place(n), Type: rust.Named("i32")})
			scaled := rust.Method(&rust.Paren{X: &rust.Binary{Op: "*", L: l.place(x), R: scale}}, "round")
			return &rust.Binary{Op: "/", L: scaled, R: scale}
		}
		if ir.IsInteger(xt) {
			return l.place(x)
		}
		return &rust.Cast{X: rust.Method(l.receiver(l.place(x)), "round"), Type: intType}
	case "pow":
		if len(c.Args) != 2 {
			return l.unsupported(l.fn, "pow", "three-argument pow", c.Loc)
		}
		return l.numeric(ir.OpPow, l.place(c.Args[0]), l.place(c.Args[1]), ir.TypeOf(c), c.Args[1])
	case "divmod":
		if len(c.Args) != 2 {
			break
		}
		t := ir.IntType
		if tup, ok := ir.Deref(ir.TypeOf(c)).(ir.Tuple); ok && len(tup.Elems) == 2 {
			t = tup.Elems[0]
		}
		a, b := c.Args[0], c.Args[1]
		return &rust.TupleExpr{Elems: []rust.Expr{
			l.numeric(ir.OpFloorDiv, l.place(a), l.place(b), t, b),
			l.numeric(ir.OpMod, l.place(a), l.place(b), t, b),
		}}
	case "min", "max":
		return l.minMax(c)
	case "sum":
		if x == nil {
			break
		}
		elem := ir.TypeOf(c)
		total := &rust.MethodCall{Recv: l.iterate(x), Name: "sum", Turbofish: []rust.Type{l.typ(elem)}}
		if start := arg(1); start != nil {
			return &rust.Binary{Op: "+", L: l.value(start), R: total}
		}
		return total
	case "sorted":
		if x == nil {
			break
		}
		return l.sorted(c, x)
	case "list", "tuple":
		t := ir.TypeOf(c)
		switch {
		case x == nil:
			return rust.CallPath("Vec::new")
		case isSeq(xt):
			return l.value(x)
		}
		return collect(l.iterate(x), l.typ(t))
	case "set":
		l.use(hashSetPath)
		if x == nil {
			return rust.CallPath("HashSet::new")
		}
		return collect(l.iterate(x), l.typ(ir.TypeOf(c)))
	case "dict":
		l.use(hashMapPath)
		switch {
		case x == nil:
			return rust.CallPath("HashMap::new")
		case isMap(xt):
			return l.value(x)
		}
		return collect(l.iterate(x), l.typ(ir.TypeOf(c)))
	case "any", "all":
		if x == nil {
			break
		}
		return l.anyAll(c.Builtin, x)
	case "input":
		return l.input(x)
	case "open":
		return l.open(c)
	case "id", "hash", "callable", "isinstance", "super", "next":
		return l.unsupported(l.fn, c.Builtin+"()", "no Rust counterpart", c.Loc)
	}
	return l.unsupported(l.fn, c.Builtin+"()", "unsupported arguments", c.Loc)
}

func isSeq(t ir.Type) bool {
	_, ok := ir.Deref(t).(ir.Seq)
	return ok
}

func isMap(t ir.Type) bool {
	_, ok := ir.Deref(t).(ir.Map)
	return ok
}

// fallibleStd converts a std Result to the exception model: its error
// becomes a PyException of kind.
func (l *lowerer) fallibleStd(x rust.Expr, kind string) rust.Expr {
	if !l.result {
		return rust.Method(x, "expect", rust.Str(kind))
	}
	conv := &rust.Closure{
		Params: []rust.Param{{Name: "e"}},
		Body:   l.newException(kind, rust.Method(rust.Id("e"), "to_string")),
	}
	return &rust.TryExpr{X: rust.Method(x, "map_err", conv)}
}

// print lowers print() to println! or print!.
func (l *lowerer) print(c *ir.Call) rust.Expr {
	sep, end := " ", "\n"
	for _, kw := range c.Kwargs {
		lit, ok := kw.Value.(*ir.Literal)
		if !ok || lit.Kind != ir.LitStr {
			return l.unsupported(l.fn, "print", kw.Name+" must be a string literal", c.Loc)
		}
		switch kw.Name {
		case "sep":
			sep = lit.Str
		case "end":
			end = lit.Str
		default:
			return l.unsupported(l.fn, "print", "keyword "+kw.Name, c.Loc)
		}
	}
	var (
		tmpl strings.Builder
		args []rust.Expr
	)
	for i, a := range c.Args {
		if i > 0 {
			tmpl.WriteString(escapeBraces(sep))
		}
		if lit, ok := a.(*ir.Literal); ok && lit.Kind == ir.LitStr {
			tmpl.WriteString(escapeBraces(lit.Str))
			continue
		}
		ph, arg := l.formatArg(a, 0, "")
		tmpl.WriteString(ph)
		if arg != nil {
			args = append(args, arg)
		}
	}
	name := "println"
	if end != "\n" {
		name = "print"
		tmpl.WriteString(escapeBraces(end))
	}
	if tmpl.Len() == 0 && len(args) == 0 {
		if name == "print" {
			return &rust.TupleExpr{}
		}
		return &rust.Macro{Name: name}
	}
	return &rust.Macro{Name: name, Args: append([]rust.Expr{rust.Str(tmpl.String())}, args...)}
}

func (l *lowerer) minMax(c *ir.Call) rust.Expr {
	name := c.Builtin
	t := ir.TypeOf(c)
	if len(c.Args) == 1 {
		it := l.iterate(c.Args[0])
		var out rust.Expr
		switch key := c.Kwarg("key"); {
		case key != nil:
			lam, ok := key.(*ir.Lambda)
			if !ok {
				return l.unsupported(l.fn, name, "key must be a lambda", c.Loc)
			}
			fn := l.closure(lam, true)
			if name == "max" {
				fn.Body = rust.CallPath("std::cmp::Reverse", fn.Body)
			}
			out = rust.Method(it, "min_by_key", fn)
		case isFloat(t):
			seed := "f64::INFINITY"
			if name == "max" {
				seed = "f64::NEG_INFINITY"
			}
			return rust.Method(it, "fold", &rust.PathExpr{Path: seed}, &rust.PathExpr{Path: "f64::" + name})
		default:
			out = rust.Method(it, name)
		}
		if d := c.Kwarg("default"); d != nil {
			return rust.Method(out, "unwrap_or", l.valueAs(d, t))
		}
		return rust.Method(out, "unwrap")
	}
	if len(c.Args) == 0 {
		return l.unsupported(l.fn, name+"()", "no arguments", c.Loc)
	}
	acc := l.valueAs(c.Args[0], t)
	for _, a := range c.Args[1:] {
		if isFloat(t) {
			acc = rust.Method(l.receiver(acc), name, l.valueAs(a, t))
			continue
		}
		acc = rust.CallPath("std::cmp::"+name, acc, l.valueAs(a, t))
	}
	return acc
}

// sorted collects the iterable into a fresh Vec and sorts it in place.
func (l *lowerer) sorted(c *ir.Call, x ir.Expr) rust.Expr {
	t := ir.TypeOf(c)
	tmp := l.names.fresh("sorted")
	stmts := []rust.Stmt{&rust.Let{Name: tmp, Mut: true, Type: l.annotate(t), Value: collect(l.iterate(x), l.typ(t))}}
	stmts = append(stmts, l.sortStmts(rust.Id(tmp), c, ir.ElemOf(t))...)
	return &rust.BlockExpr{Block: &rust.Block{Stmts: stmts, Tail: rust.Id(tmp)}}
}

// sortStmts sorts the Vec v in place honoring the key and reverse keywords
// of c. The sort is stable in both directions.
func (l *lowerer) sortStmts(v rust.Expr, c *ir.Call, elem ir.Type) []rust.Stmt {
	reverse := false
	if r := c.Kwarg("reverse"); r != nil {
		lit, ok := r.(*ir.Literal)
		if !ok || lit.Kind != ir.LitBool {
			return []rust.Stmt{&rust.ExprStmt{X: l.unsupported(l.fn, "sort", "reverse must be a literal", c.Loc)}}
		}
		reverse = lit.Bool
	}
	a, b := rust.Expr(rust.Id("a")), rust.Expr(rust.Id("b"))
	if reverse {
		a, b = b, a
	}
	byRef := []rust.Param{{Name: "a"}, {Name: "b"}}

	key := c.Kwarg("key")
	if key == nil {
		if !isFloat(elem) && !reverse {
			return []rust.Stmt{&rust.ExprStmt{X: rust.Method(v, "sort")}}
		}
		cmp := rust.Method(a, "cmp", b)
		if isFloat(elem) {
			cmp = rust.Method(rust.Method(a, "partial_cmp", b), "unwrap")
		}
		return []rust.Stmt{&rust.ExprStmt{X: rust.Method(v, "sort_by", &rust.Closure{Params: byRef, Body: cmp})}}
	}
	lam, ok := key.(*ir.Lambda)
	if !ok {
		return []rust.Stmt{&rust.ExprStmt{X: l.unsupported(l.fn, "sort", "key must be a lambda", c.Loc)}}
	}
	if !reverse && isOrd(ir.TypeOf(lam.Body)) {
		return []rust.Stmt{&rust.ExprStmt{X: rust.Method(v, "sort_by_key", l.closure(lam, true))}}
	}
	keyFn := l.names.fresh("key")
	ka := &rust.Call{Func: rust.Id(keyFn), Args: []rust.Expr{a}}
	kb := &rust.Borrow{X: &rust.Call{Func: rust.Id(keyFn), Args: []rust.Expr{b}}}
	cmp := rust.Method(ka, "cmp", kb)
	if !isOrd(ir.TypeOf(lam.Body)) {
		cmp = rust.Method(rust.Method(ka, "partial_cmp", kb), "unwrap")
	}
	return []rust.Stmt{
		&rust.Let{Name: keyFn, Value: l.closure(lam, true)},
		&rust.ExprStmt{X: rust.Method(v, "sort_by", &rust.Closure{Params: byRef, Body: cmp})},
	}
}

// anyAll lowers any() and all(). A generator argument folds into the
// predicate closure.
func (l *lowerer) anyAll(name string, x ir.Expr) rust.Expr {
	if comp, ok := x.(*ir.Comprehension); ok && len(comp.Gens) == 1 && len(comp.Gens[0].Ifs) == 0 && comp.Kind != ir.CompDict {
		g := comp.Gens[0]
		pred := &rust.Closure{Params: []rust.Param{{Name: l.pattern(g.Target)}}, Body: l.cond(comp.Elem)}
		return rust.Method(l.iterate(g.Iter), name, pred)
	}
	v := l.names.fresh("v")
	pred := &rust.Closure{Params: []rust.Param{{Name: v}}, Body: truthy(rust.Id(v), ir.ElemOf(ir.TypeOf(x)))}
	return rust.Method(l.iterate(x), name, pred)
}

// input reads one line from stdin after printing the prompt.
func (l *lowerer) input(prompt ir.Expr) rust.Expr {
	var stmts []rust.Stmt
	if prompt != nil {
		ph, arg := l.formatArg(prompt, 0, "")
		args := []rust.Expr{rust.Str(ph)}
		if arg != nil {
			args = append(args, arg)
		}
		stmts = append(stmts,
			&rust.ExprStmt{X: &rust.Macro{Name: "print", Args: args}},
			&rust.ExprStmt{X: rust.Method(
				rust.CallPath("std::io::Write::flush", &rust.Borrow{Mut: true, X: rust.CallPath("std::io::stdout")}),
				"expect", rust.Str("flush stdout"))},
		)
	}
	line := l.names.fresh("line")
	read := rust.Method(rust.CallPath("std::io::stdin"), "read_line", &rust.Borrow{Mut: true, X: rust.Id(line)})
	stmts = append(stmts,
		&rust.Let{Name: line, Mut: true, Value: rust.CallPath("String::new")},
		&rust.ExprStmt{X: rust.Method(read, "expect", rust.Str("read stdin"))},
	)
	tail := rust.Method(rust.Method(rust.Id(line), "trim_end_matches", &rust.CharLit{Value: '\n'}), "to_string")
	return &rust.BlockExpr{Block: &rust.Block{Stmts: stmts, Tail: tail}}
}

// open lowers open(path, mode) for the r, w and a modes.
func (l *lowerer) open(c *ir.Call) rust.Expr {
	if !l.profile.HasFS {
		return l.unsupported(l.fn, "open()", "no filesystem on target "+l.profile.Name, c.Loc)
	}
	if len(c.Args) == 0 {
		return l.unsupported(l.fn, "open()", "missing path", c.Loc)
	}
	mode := "r"
	m := c.Kwarg("mode")
	if m == nil && len(c.Args) > 1 {
		m = c.Args[1]
	}
	if m != nil {
		lit, ok := m.(*ir.Literal)
		if !ok || lit.Kind != ir.LitStr {
			return l.unsupported(l.fn, "open()", "mode must be a string literal", c.Loc)
		}
		mode = strings.TrimSuffix(lit.Str, "t")
	}
	path := l.strRef(c.Args[0])
	var x rust.Expr
	switch mode {
	case "r", "":
		x = rust.CallPath("std::fs::File::open", path)
	case "w":
		x = rust.CallPath("std::fs::File::create", path)
	case "a":
		opts := rust.Method(rust.Method(rust.CallPath("std::fs::OpenOptions::new"), "append", &rust.BoolLit{Value: true}), "create", &rust.BoolLit{Value: true})
		x = rust.Method(opts, "open", path)
	default:
		return l.unsupported(l.fn, "open()", "mode "+strconv.Quote(mode), c.Loc)
	}
	return l.fallibleStd(x, "OSError")
}

// iterCall lowers calls that produce lazy iterators. ok is false for every
// other call.
func (l *lowerer) iterCall(c *ir.Call) (rust.Expr, bool) {
	if recv, name, isMethod := c.Method(); isMethod {
		if c.Builtin == "" || !isMap(ir.TypeOf(recv)) {
			return nil, false
		}
		m := ir.Deref(ir.TypeOf(recv)).(ir.Map)
		switch name {
		case "keys":
			return rust.Method(rust.Method(l.place(recv), "keys"), l.copier(m.Key)), true
		case "values":
			return rust.Method(rust.Method(l.place(recv), "values"), l.copier(m.Value)), true
		case "items":
			k, v := rust.Expr(rust.Id("k")), rust.Expr(rust.Id("v"))
			pair := &rust.TupleExpr{Elems: []rust.Expr{l.ownRef(k, m.Key), l.ownRef(v, m.Value)}}
			fn := &rust.Closure{Params: []rust.Param{{Name: "(k, v)"}}, Body: pair}
			return rust.Method(rust.Method(l.place(recv), "iter"), "map", fn), true
		}
		return nil, false
	}
	args := c.Args
	switch c.Builtin {
	case "range":
		return l.rangeIter(c), true
	case "reversed":
		if len(args) != 1 {
			return nil, false
		}
		return rust.Method(l.iterate(args[0]), "rev"), true
	case "enumerate":
		if len(args) == 0 {
			return nil, false
		}
		it := rust.Method(l.iterate(args[0]), "enumerate")
		start := c.Kwarg("start")
		if start == nil && len(args) > 1 {
			start = args[1]
		}
		if start != nil {
			shift := &rust.Closure{
				Params: []rust.Param{{Name: "(i, v)"}},
				Body:   &rust.TupleExpr{Elems: []rust.Expr{&rust.Binary{Op: "+", L: rust.Id("i"), R: l.usize(start)}, rust.Id("v")}},
			}
			return rust.Method(it, "map", shift), true
		}
		return it, true
	case "zip":
		if len(args) < 2 || len(args) > 3 {
			return nil, false
		}
		it := rust.Method(l.iterate(args[0]), "zip", l.iterate(args[1]))
		if len(args) == 3 {
			it = rust.Method(it, "zip", l.iterate(args[2]))
			flat := &rust.Closure{
				Params: []rust.Param{{Name: "((a, b), c)"}},
				Body:   &rust.TupleExpr{Elems: []rust.Expr{rust.Id("a"), rust.Id("b"), rust.Id("c")}},
			}
			it = rust.Method(it, "map", flat)
		}
		return it, true
	case "map":
		if len(args) != 2 {
			return nil, false
		}
		fn := l.mapFunc(args[0], ir.ElemOf(ir.TypeOf(args[1])))
		if fn == nil {
			return nil, false
		}
		return rust.Method(l.iterate(args[1]), "map", fn), true
	case "filter":
		if len(args) != 2 {
			return nil, false
		}
		lam, ok := args[0].(*ir.Lambda)
		if !ok {
			return nil, false
		}
		return rust.Method(l.iterate(args[1]), "filter", l.closure(lam, true)), true
	case "iter":
		if len(args) != 1 {
			return nil, false
		}
		return l.iterate(args[0]), true
	}
	return nil, false
}

// ownRef turns a reference yielded by a collection iterator into an owned
// value.
func (l *lowerer) ownRef(x rust.Expr, t ir.Type) rust.Expr {
	if copyable(t) {
		return &rust.Unary{Op: "*", X: x}
	}
	return cloneOf(x)
}

// mapFunc lowers the function argument of map(). It returns nil when the
// function has no lowering.
func (l *lowerer) mapFunc(f ir.Expr, elem ir.Type) rust.Expr {
	switch x := f.(type) {
	case *ir.Lambda:
		return l.closure(x, false)
	case *ir.Var:
		v := rust.Id("v")
		param := []rust.Param{{Name: "v"}}
		switch x.Ref {
		case ir.RefFunction:
			fn, ok := x.Decl.(*ir.Function)
			if !ok || len(fn.Params) != 1 {
				return nil
			}
			var a rust.Expr = v
			if b := fn.Params[0].Binding; b != nil && b.Pass == ir.PassBorrowed {
				a = &rust.Borrow{X: v}
			}
			return &rust.Closure{Params: param, Body: &rust.Call{Func: rust.Id(ident(fn.Name)), Args: []rust.Expr{a}}}
		case ir.RefBuiltin:
			var body rust.Expr
			switch x.Name {
			case "str":
				body = rust.Method(v, "to_string")
			case "int":
				if ir.IsStr(elem) {
					body = l.fallibleStd(&rust.MethodCall{Recv: rust.Method(v, "trim"), Name: "parse", Turbofish: []rust.Type{rust.Named(l.profile.IntType())}}, "ValueError")
				} else {
					body = &rust.Cast{X: v, Type: rust.Named(l.profile.IntType())}
				}
			case "float":
				if ir.IsStr(elem) {
					body = l.fallibleStd(&rust.MethodCall{Recv: rust.Method(v, "trim"), Name: "parse", Turbofish: []rust.Type{rust.Named("f64")}}, "ValueError")
				} else {
					body = &rust.Cast{X: v, Type: rust.Named("f64")}
				}
			case "abs":
				body = rust.Method(v, "abs")
			case "len":
				body = rust.Method(v, "len")
			default:
				return nil
			}
			return &rust.Closure{Params: param, Body: body}
		}
	}
	return nil
}

// rangeIter lowers range(...) to a Rust range, reversed and stepped for
// constant steps.
func (l *lowerer) rangeIter(c *ir.Call) rust.Expr {
	if len(c.Args) < 3 {
		return l.rangeExpr(c)
	}
	step, ok := intLiteral(c.Args[2])
	if !ok || step == 0 {
		return l.unsupported(l.fn, "range()", "step must be a non-zero constant", c.Loc)
	}
	lo, hi := l.place(c.Args[0]), l.place(c.Args[1])
	if step > 0 {
		r := &rust.Range{Lo: lo, Hi: hi}
		if step == 1 {
			return r
		}
		return rust.Method(r, "step_by", rust.Int(step))
	}
	var from rust.Expr = &rust.Binary{Op: "+", L: hi, R: rust.Int(1)}
	if v, isLit := hi.(*rust.IntLit); isLit {
		from = rust.Int(v.Value + 1)
	}
	it := rust.Method(&rust.Range{Lo: from, Hi: lo, Inclusive: true}, "rev")
	if step == -1 {
		return it
	}
	return rust.Method(it, "step_by", rust.Int(-step))
}

// rangeExpr lowers range(stop) and range(start, stop).
func (l *lowerer) rangeExpr(c *ir.Call) rust.Expr {
	switch len(c.Args) {
	case 1:
		var zero rust.Expr = rust.Int(0)
		return &rust.Range{Lo: zero, Hi: l.place(c.Args[0])}
	case 2:
		return &rust.Range{Lo: l.place(c.Args[0]), Hi: l.place(c.Args[1])}
	}
	return l.unsupported(l.fn, "range()", "stepped range in this position", c.Loc)
}

// iterate lowers e to an iterator over owned elements. Owned temporaries
// and locals at their last use are consumed; other places are copied or
// cloned element by element.
func (l *lowerer) iterate(e ir.Expr) rust.Expr {
	if c, ok := e.(*ir.Call); ok {
		if it, ok := l.iterCall(c); ok {
			return it
		}
	}
	t := ir.Deref(ir.TypeOf(e))
	switch x := t.(type) {
	case ir.Str:
		ch := l.names.fresh("c")
		return rust.Method(rust.Method(l.place(e), "chars"), "map", &rust.Closure{
			Params: []rust.Param{{Name: ch}},
			Body:   rust.Method(rust.Id(ch), "to_string"),
		})
	case ir.Map:
		return rust.Method(rust.Method(l.place(e), "keys"), l.copier(x.Key))
	case ir.Generic:
		if x.Name == "File" {
			l.use("std::io::BufRead")
			lines := rust.Method(rust.CallPath("std::io::BufReader::new", &rust.Borrow{X: l.place(e)}), "lines")
			ln := l.names.fresh("ln")
			return rust.Method(lines, "map", &rust.Closure{
				Params: []rust.Param{{Name: ln}},
				Body:   rust.Method(rust.Id(ln), "expect", rust.Str("read line")),
			})
		}
	}
	if l.consumable(e) {
		return rust.Method(l.place(e), "into_iter")
	}
	return rust.Method(rust.Method(l.place(e), "iter"), l.copier(ir.ElemOf(t)))
}

// consumable reports whether e may be moved into an iterator.
func (l *lowerer) consumable(e ir.Expr) bool {
	switch x := e.(type) {
	case *ir.Var:
		if x.Binding == nil || l.isRef(x) || x.Ref != ir.RefLocal && x.Ref != ir.RefUnresolved {
			return false
		}
		return x.LastUse
	case *ir.Attribute, *ir.Index:
		return false
	}
	return true
}

// forIter lowers the iterable of a for loop. Loops over a borrowed
// sequence of non-Copy elements bind the loop variable by reference.
func (l *lowerer) forIter(iter ir.Expr, target ir.Expr) rust.Expr {
	if v, ok := target.(*ir.Var); ok && v.Binding != nil && !v.Binding.NeedsMut() {
		t := ir.Deref(ir.TypeOf(iter))
		switch t.(type) {
		case ir.Seq, ir.Set:
			if !copyable(ir.ElemOf(t)) && !l.consumable(iter) {
				l.refVars[v.Binding] = true
				if l.isRef(iter) {
					return l.place(iter)
				}
				return &rust.Borrow{X: l.place(iter)}
			}
		}
	}
	it := l.iterate(iter)
	if m, ok := it.(*rust.MethodCall); ok && m.Name == "into_iter" && len(m.Args) == 0 {
		return m.Recv
	}
	return it
}

// builtinMethod lowers a method of a builtin type.
func (l *lowerer) builtinMethod(c *ir.Call, recv ir.Expr, name string) rust.Expr {
	switch t := ir.Deref(ir.TypeOf(recv)).(type) {
	case ir.Seq:
		return l.seqMethod(c, recv, name, t)
	case ir.Map:
		return l.mapMethod(c, recv, name, t)
	case ir.Set:
		return l.setMethod(c, recv, name, t)
	case ir.Str:
		return l.strMethod(c, recv, name)
	case ir.Generic:
		if t.Name == "File" {
			return l.fileMethod(c, recv, name)
		}
		if t.Name == ir.ExceptionClass && name == "args" {
			return &rust.Macro{Name: "vec", Bracket: true, Args: []rust.Expr{cloneOf(&rust.Field{X: l.place(recv), Name: "message"})}}
		}
	}
	return l.unsupported(l.fn, "method "+name, "on "+ir.TypeOf(recv).String(), c.Loc)
}

func (l *lowerer) seqMethod(c *ir.Call, recv ir.Expr, name string, t ir.Seq) rust.Expr {
	v := l.place(recv)
	a := c.Args
	switch name {
	case "append":
		if len(a) == 1 {
			return rust.Method(v, "push", l.valueAs(a[0], t.Elem))
		}
	case "extend":
		if len(a) == 1 {
			return rust.Method(v, "extend", l.iterate(a[0]))
		}
	case "insert":
		if len(a) == 2 {
			return rust.Method(v, "insert", l.usize(a[0]), l.valueAs(a[1], t.Elem))
		}
	case "pop":
		if len(a) == 0 {
			return rust.Method(rust.Method(v, "pop"), "unwrap")
		}
		return rust.Method(v, "remove", l.position(a[0], recv))
	case "remove", "index":
		if len(a) != 1 {
			break
		}
		e := l.names.fresh("e")
		pred := &rust.Closure{Params: []rust.Param{{Name: e}}, Body: &rust.Binary{Op: "==", L: rust.Id(e), R: l.refExact(a[0])}}
		pos := rust.Method(rust.Method(rust.Method(l.place(recv), "iter"), "position", pred), "unwrap")
		if name == "index" {
			return pos
		}
		return rust.Method(v, "remove", pos)
	case "count":
		if len(a) != 1 {
			break
		}
		e := l.names.fresh("e")
		pred := &rust.Closure{Params: []rust.Param{{Name: e}}, Body: &rust.Binary{Op: "==", L: &rust.Unary{Op: "*", X: rust.Id(e)}, R: l.refExact(a[0])}}
		return rust.Method(rust.Method(rust.Method(v, "iter"), "filter", pred), "count")
	case "sort":
		stmts := l.sortStmts(v, c, t.Elem)
		if len(stmts) == 1 {
			if s, ok := stmts[0].(*rust.ExprStmt); ok {
				return s.X
			}
		}
		return &rust.BlockExpr{Block: &rust.Block{Stmts: stmts}}
	case "reverse", "clear":
		return rust.Method(v, name)
	case "copy":
		return cloneOf(v)
	}
	return l.unsupported(l.fn, "list."+name, "unsupported arguments", c.Loc)
}

func (l *lowerer) mapMethod(c *ir.Call, recv ir.Expr, name string, t ir.Map) rust.Expr {
	m := l.place(recv)
	a := c.Args
	switch name {
	case "get":
		if len(a) == 0 {
			break
		}
		got := rust.Method(rust.Method(m, "get", l.keyRef(a[0])), l.copier(t.Value))
		if len(a) > 1 {
			return rust.Method(got, "unwrap_or", l.valueAs(a[1], t.Value))
		}
		return got
	case "pop":
		if len(a) == 0 {
			break
		}
		got := rust.Method(m, "remove", l.keyRef(a[0]))
		if len(a) > 1 {
			return rust.Method(got, "unwrap_or", l.valueAs(a[1], t.Value))
		}
		return rust.Method(got, "unwrap")
	case "setdefault":
		if len(a) != 2 {
			break
		}
		return rust.Method(rust.Method(m, "entry", l.valueAs(a[0], t.Key)), "or_insert", l.valueAs(a[1], t.Value))
	case "update":
		if len(a) == 1 {
			return rust.Method(m, "extend", l.value(a[0]))
		}
	case "clear":
		return rust.Method(m, "clear")
	case "copy":
		return cloneOf(m)
	case "keys", "values", "items":
		it, _ := l.iterCall(c)
		return it
	}
	return l.unsupported(l.fn, "dict."+name, "unsupported arguments", c.Loc)
}

func (l *lowerer) setMethod(c *ir.Call, recv ir.Expr, name string, t ir.Set) rust.Expr {
	s := l.place(recv)
	a := c.Args
	if len(a) == 1 {
		switch name {
		case "add":
			return rust.Method(s, "insert", l.valueAs(a[0], t.Elem))
		case "remove", "discard":
			return rust.Method(s, "remove", l.keyRef(a[0]))
		case "update":
			return rust.Method(s, "extend", l.iterate(a[0]))
		case "union", "intersection", "difference":
			l.use(hashSetPath)
			it := rust.Method(rust.Method(s, name, l.borrow(a[0], ir.TypeOf(a[0]))), "cloned")
			return collect(it, l.typ(t))
		case "issubset", "issuperset", "isdisjoint":
			method := map[string]string{"issubset": "is_subset", "issuperset": "is_superset", "isdisjoint": "is_disjoint"}[name]
			return rust.Method(s, method, l.borrow(a[0], ir.TypeOf(a[0])))
		}
	}
	switch name {
	case "clear":
		return rust.Method(s, "clear")
	case "copy":
		return cloneOf(s)
	}
	return l.unsupported(l.fn, "set."+name, "unsupported arguments", c.Loc)
}

// charClass maps str predicates to the char method every character must
// satisfy.
var charClass = map[string]string{
	"isdigit": "is_ascii_digit",
	"isalpha": "is_alphabetic",
	"isspace": "is_whitespace",
}

func (l *lowerer) strMethod(c *ir.Call, recv ir.Expr, name string) rust.Expr {
	s := l.place(recv)
	a := c.Args
	owned := func(x rust.Expr) rust.Expr { return rust.Method(x, "to_string") }
	switch name {
	case "upper":
		return rust.Method(s, "to_uppercase")
	case "lower":
		return rust.Method(s, "to_lowercase")
	case "strip", "lstrip", "rstrip":
		trim := map[string]string{"strip": "trim", "lstrip": "trim_start", "rstrip": "trim_end"}[name]
		if len(a) == 0 {
			return owned(rust.Method(s, trim))
		}
		lit, ok := a[0].(*ir.Literal)
		if !ok || lit.Kind != ir.LitStr {
			break
		}
		set := &rust.Closure{
			Params: []rust.Param{{Name: "c", Type: rust.Named("char")}},
			Body:   rust.Method(rust.Str(lit.Str), "contains", rust.Id("c")),
		}
		return owned(rust.Method(s, trim+"_matches", set))
	case "replace":
		if len(a) == 2 {
			return rust.Method(s, "replace", l.strRef(a[0]), l.strRef(a[1]))
		}
	case "capitalize":
		return capitalize(s)
	case "title":
		w := l.names.fresh("w")
		words := rust.Method(rust.Method(s, "split", &rust.CharLit{Value: ' '}), "map", &rust.Closure{
			Params: []rust.Param{{Name: w}},
			Body:   capitalize(rust.Id(w)),
		})
		return rust.Method(collect(words, rust.Named("Vec", rust.Named("String"))), "join", rust.Str(" "))
	case "join":
		if len(a) != 1 {
			break
		}
		sep := l.strRef(recv)
		if isSeq(ir.TypeOf(a[0])) {
			return rust.Method(l.place(a[0]), "join", sep)
		}
		return rust.Method(collect(l.iterate(a[0]), rust.Named("Vec", rust.Named("String"))), "join", sep)
	case "format":
		lit, ok := recv.(*ir.Literal)
		if !ok || lit.Kind != ir.LitStr {
			return l.unsupported(l.fn, "str.format", "receiver must be a literal", c.Loc)
		}
		return l.strFormat(c, lit.Str)
	case "center", "zfill":
		if len(a) == 0 {
			break
		}
		spec := "{:^1$}"
		if name == "zfill" {
			spec = "{:0>1$}"
		} else if len(a) > 1 {
			fill, ok := a[1].(*ir.Literal)
			if !ok || fill.Kind != ir.LitStr || len([]rune(fill.Str)) != 1 {
				break
			}
			spec = "{:" + escapeBraces(fill.Str) + "^1$}"
		}
		return &rust.Macro{Name: "format", Args: []rust.Expr{rust.Str(spec), s, l.usize(a[0])}}
	case "split":
		parts := rust.Method(s, "split_whitespace")
		if len(a) > 0 {
			parts = rust.Method(s, "split", l.strRef(a[0]))
			if len(a) > 1 {
				n, ok := intLiteral(a[1])
				if !ok {
					break
				}
				parts = rust.Method(s, "splitn", rust.Int(n+1), l.strRef(a[0]))
			}
		}
		return l.stringVec(parts)
	case "splitlines":
		return l.stringVec(rust.Method(s, "lines"))
	case "startswith", "endswith":
		if len(a) == 1 {
			method := map[string]string{"startswith": "starts_with", "endswith": "ends_with"}[name]
			return rust.Method(s, method, l.strRef(a[0]))
		}
	case "isdigit", "isalpha", "isspace":
		all := rust.Method(rust.Method(s, "chars"), "all", charTest(charClass[name]))
		nonEmpty := &rust.Unary{Op: "!", X: rust.Method(l.place(recv), "is_empty")}
		return &rust.Binary{Op: "&&", L: nonEmpty, R: all}
	case "isupper", "islower":
		want, other := "is_uppercase", "is_lowercase"
		if name == "islower" {
			want, other = other, want
		}
		has := rust.Method(rust.Method(s, "chars"), "any", charTest(want))
		none := &rust.Unary{Op: "!", X: rust.Method(rust.Method(l.place(recv), "chars"), "any", charTest(other))}
		return &rust.Binary{Op: "&&", L: has, R: none}
	case "find":
		if len(a) != 1 {
			break
		}
		i := l.names.fresh("i")
		idx := &rust.Closure{Params: []rust.Param{{Name: i}}, Body: &rust.Cast{X: rust.Id(i), Type: rust.Named(l.profile.IntType())}}
		return rust.Method(rust.Method(rust.Method(s, "find", l.strRef(a[0])), "map", idx), "unwrap_or", rust.Int(-1))
	case "count":
		if len(a) == 1 {
			return rust.Method(rust.Method(s, "matches", l.strRef(a[0])), "count")
		}
	}
	return l.unsupported(l.fn, "str."+name, "unsupported arguments", c.Loc)
}

// charTest is |c| c.method().
func charTest(method string) rust.Expr {
	return &rust.Closure{Params: []rust.Param{{Name: "c"}}, Body: rust.Method(rust.Id("c"), method)}
}

// stringVec collects an iterator of &str into Vec<String>.
func (l *lowerer) stringVec(parts rust.Expr) rust.Expr {
	p := l.names.fresh("p")
	owned := rust.Method(parts, "map", &rust.Closure{Params: []rust.Param{{Name: p}}, Body: rust.Method(rust.Id(p), "to_string")})
	return collect(owned, rust.Named("Vec", rust.Named("String")))
}

// capitalize upper-cases the first character of s and lower-cases the rest.
func capitalize(s rust.Expr) rust.Expr {
	first := &rust.MethodCall{
		Recv:      rust.Method(rust.Id("f"), "to_uppercase"),
		Name:      "collect",
		Turbofish: []rust.Type{rust.Named("String")},
	}
	rest := &rust.Borrow{X: rust.Method(rust.Method(rust.Id("cs"), "as_str"), "to_lowercase")}
	return &rust.BlockExpr{Block: &rust.Block{
		Stmts: []rust.Stmt{&rust.Let{Name: "cs", Mut: true, Value: rust.Method(s, "chars")}},
		Tail: &rust.Match{X: rust.Method(rust.Id("cs"), "next"), Arms: []rust.Arm{
			{Pattern: "Some(f)", Body: &rust.Binary{Op: "+", L: first, R: rest}},
			{Pattern: "None", Body: rust.CallPath("String::new")},
		}},
	}}
}

// strFormat lowers "literal".format(args) by translating each replacement
// field.
func (l *lowerer) strFormat(c *ir.Call, tmpl string) rust.Expr {
	var (
		out  strings.Builder
		args []rust.Expr
		next int
	)
	r := []rune(tmpl)
	for i := 0; i < len(r); i++ {
		switch {
		case r[i] == '{' && i+1 < len(r) && r[i+1] == '{':
			out.WriteString("{{")
			i++
		case r[i] == '}' && i+1 < len(r) && r[i+1] == '}':
			out.WriteString("}}")
			i++
		case r[i] == '{':
			end := i + 1
			for end < len(r) && r[end] != '}' {
				end++
			}
			if end == len(r) {
				return l.unsupported(l.fn, "str.format", "unterminated field", c.Loc)
			}
			field, spec, _ := strings.Cut(string(r[i+1:end]), ":")
			var x ir.Expr
			switch n, err := strconv.Atoi(field); {
			case field == "":
				if next < len(c.Args) {
					x = c.Args[next]
				}
				next++
			case err == nil:
				if n < len(c.Args) {
					x = c.Args[n]
				}
			default:
				x = c.Kwarg(field)
			}
			if x == nil {
				return l.unsupported(l.fn, "str.format", "no argument for field {"+field+"}", c.Loc)
			}
			ph, arg := l.formatArg(x, 0, spec)
			out.WriteString(ph)
			if arg != nil {
				args = append(args, arg)
			}
			i = end
		default:
			out.WriteRune(r[i])
		}
	}
	return &rust.Macro{Name: "format", Args: append([]rust.Expr{rust.Str(out.String())}, args...)}
}

func (l *lowerer) fileMethod(c *ir.Call, recv ir.Expr, name string) rust.Expr {
	f := l.place(recv)
	switch name {
	case "write":
		if len(c.Args) != 1 {
			break
		}
		l.use("std::io::Write")
		return l.fallibleStd(rust.Method(f, "write_all", rust.Method(l.strRef(c.Args[0]), "as_bytes")), "OSError")
	case "read":
		l.use("std::io::Read")
		buf := l.names.fresh("buf")
		read := l.fallibleStd(rust.Method(f, "read_to_string", &rust.Borrow{Mut: true, X: rust.Id(buf)}), "OSError")
		return &rust.BlockExpr{Block: &rust.Block{
			Stmts: []rust.Stmt{
				&rust.Let{Name: buf, Mut: true, Value: rust.CallPath("String::new")},
				&rust.ExprStmt{X: read},
			},
			Tail: rust.Id(buf),
		}}
	case "readlines":
		return collect(l.iterate(recv), rust.Named("Vec", rust.Named("String")))
	case "close":
		l.use("std::io::Write")
		return l.fallibleStd(rust.Method(f, "flush"), "OSError")
	}
	return l.unsupported(l.fn, "file."+name, "unsupported arguments", c.Loc)
}
