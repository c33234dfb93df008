package optimize

import (
	"sort"
	"strconv"

	"github.com/roach88/pyrs/internal/rust"
)

var arithOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"&": true, "|": true, "^": true, "<<": true, ">>": true,
}

// eagerMacros evaluate all their arguments.
var eagerMacros = map[string]bool{
	"format": true, "print": true, "println": true, "eprint": true, "eprintln": true,
	"vec": true, "write": true, "writeln": true,
}

type eliminator struct {
	sites *sites
	names *int
	stats *Stats
}

// eliminate hoists arithmetic that repeats within one statement.
func (o *Optimizer) eliminate(fn *rust.Fn, names *int, st *Stats) {
	e := &eliminator{sites: collectSites(fn), names: names, stats: st}
	eachBlock(fn.Body, e.block)
}

func (e *eliminator) block(b *rust.Block) {
	var out []rust.Stmt
	for _, stmt := range b.Stmts {
		line := 0
		var roots []*rust.Expr
		switch n := stmt.(type) {
		case *rust.Let:
			roots, line = []*rust.Expr{&n.Value}, n.Line
		case *rust.Assign:
			roots, line = []*rust.Expr{&n.Value}, n.Line
		case *rust.ExprStmt:
			roots, line = []*rust.Expr{&n.X}, n.Line
		case *rust.Return:
			roots, line = []*rust.Expr{&n.Value}, n.Line
		}
		out = append(out, e.hoist(roots, line)...)
		out = append(out, stmt)
	}
	out = append(out, e.hoist([]*rust.Expr{&b.Tail}, 0)...)
	b.Stmts = out
}

// hoist binds every repeated pure subexpression of roots to a fresh let and
// returns the lets.
func (e *eliminator) hoist(roots []*rust.Expr, line int) []rust.Stmt {
	var lets []rust.Stmt
	for {
		counts := make(map[string]int)
		for _, r := range roots {
			*r = e.walk(*r, func(x rust.Expr) rust.Expr {
				if e.pure(x, true) {
					counts[rust.PrintExpr(x)]++
				}
				return nil
			})
		}
		key := repeated(counts)
		if key == "" {
			return lets
		}
		var found rust.Expr
		name := "__cse" + strconv.Itoa(*e.names)
		*e.names++
		for _, r := range roots {
			*r = e.walk(*r, func(x rust.Expr) rust.Expr {
				if _, ok := x.(*rust.Binary); ok && rust.PrintExpr(x) == key {
					if found == nil {
						found = x
					}
					return rust.Id(name)
				}
				return nil
			})
		}
		lets = append(lets, &rust.Let{Name: name, Value: found, Line: line})
		e.stats.Hoisted++
	}
}

// repeated returns the longest key seen at least twice.
func repeated(counts map[string]int) string {
	var keys []string
	for k, n := range counts {
		if n > 1 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys[0]
}

// walk visits the subexpressions of x that are evaluated every time the
// statement runs, outermost first. A non-nil result from fn replaces the
// node and stops the descent below it.
func (e *eliminator) walk(x rust.Expr, fn func(rust.Expr) rust.Expr) rust.Expr {
	if x == nil {
		return nil
	}
	if r := fn(x); r != nil {
		return r
	}
	switch n := x.(type) {
	case *rust.Binary:
		n.L = e.walk(n.L, fn)
		if n.Op != "&&" && n.Op != "||" {
			n.R = e.walk(n.R, fn)
		}
	case *rust.Unary:
		n.X = e.walk(n.X, fn)
	case *rust.Paren:
		n.X = e.walk(n.X, fn)
	case *rust.Cast:
		n.X = e.walk(n.X, fn)
	case *rust.Borrow:
		n.X = e.walk(n.X, fn)
	case *rust.Call:
		e.walkList(n.Args, fn)
	case *rust.MethodCall:
		n.Recv = e.walk(n.Recv, fn)
		e.walkList(n.Args, fn)
	case *rust.Field:
		n.X = e.walk(n.X, fn)
	case *rust.Index:
		n.X = e.walk(n.X, fn)
		n.Index = e.walk(n.Index, fn)
	case *rust.Macro:
		if eagerMacros[n.Name] {
			e.walkList(n.Args, fn)
		}
	case *rust.StructLit:
		for i := range n.Fields {
			n.Fields[i].Value = e.walk(n.Fields[i].Value, fn)
		}
	case *rust.TupleExpr:
		e.walkList(n.Elems, fn)
	case *rust.ArrayLit:
		e.walkList(n.Elems, fn)
	case *rust.TryExpr:
		n.X = e.walk(n.X, fn)
	case *rust.If:
		n.Cond = e.walk(n.Cond, fn)
	case *rust.IfLet:
		n.X = e.walk(n.X, fn)
	case *rust.Match:
		n.X = e.walk(n.X, fn)
	case *rust.For:
		n.Iter = e.walk(n.Iter, fn)
	}
	return x
}

func (e *eliminator) walkList(xs []rust.Expr, fn func(rust.Expr) rust.Expr) {
	for i, x := range xs {
		xs[i] = e.walk(x, fn)
	}
}

// pure reports whether x is arithmetic over literals and immutable locals.
// A root must be an operator reading at least one local.
func (e *eliminator) pure(x rust.Expr, root bool) bool {
	switch n := x.(type) {
	case *rust.Binary:
		if !arithOps[n.Op] || !e.pure(n.L, false) || !e.pure(n.R, false) {
			return false
		}
		return !root || readsLocal(n)
	case *rust.Ident:
		return !root && e.sites.count[n.Name] == 1 && !e.sites.mutable[n.Name]
	case *rust.IntLit, *rust.FloatLit:
		return !root
	case *rust.Paren:
		return !root && e.pure(n.X, false)
	case *rust.Unary:
		return !root && n.Op == "-" && e.pure(n.X, false)
	case *rust.Cast:
		return !root && e.pure(n.X, false)
	}
	return false
}

func readsLocal(x rust.Expr) bool {
	found := false
	rust.Inspect(x, func(n rust.Expr) bool {
		if _, ok := n.(*rust.Ident); ok {
			found = true
		}
		return !found
	})
	return found
}
