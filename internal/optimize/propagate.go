package optimize

import (
	"strings"
	"unicode"

	"github.com/roach88/pyrs/internal/rust"
)

// sites counts, per name, the places in fn that bind or change it: lets,
// parameters, patterns, closure parameters, assignments and &mut borrows.
type sites struct {
	count   map[string]int
	mutable map[string]bool
	inline  map[string]bool // named inside a format string: {name}
}

func collectSites(fn *rust.Fn) *sites {
	s := &sites{count: make(map[string]int), mutable: make(map[string]bool), inline: make(map[string]bool)}
	for _, p := range fn.Params {
		s.bind(p.Name, p.Mut)
	}
	s.block(fn.Body)
	return s
}

func (s *sites) bind(name string, mut bool) {
	s.count[name]++
	if mut {
		s.mutable[name] = true
	}
}

// pattern counts every identifier of a pattern string as a binding site.
// Constructor names and literals are counted too, which only makes the
// passes more conservative.
func (s *sites) pattern(p string) {
	for _, w := range words(p) {
		if w != "mut" && w != "ref" {
			s.bind(w, strings.Contains(p, "mut "+w))
		}
	}
}

func (s *sites) block(b *rust.Block) {
	if b == nil {
		return
	}
	for _, st := range b.Stmts {
		switch n := st.(type) {
		case *rust.Let:
			if n.Name != "" {
				s.bind(n.Name, n.Mut)
			}
			for _, name := range n.Names {
				s.pattern(name)
			}
		case *rust.Assign:
			if root := rootIdent(n.Target); root != "" {
				s.bind(root, true)
			}
		}
		for _, e := range rust.StmtExprs(st) {
			s.expr(e)
		}
	}
	s.expr(b.Tail)
}

func (s *sites) expr(e rust.Expr) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *rust.Borrow:
		if root := rootIdent(n.X); root != "" && n.Mut {
			s.bind(root, true)
		}
	case *rust.Closure:
		for _, p := range n.Params {
			s.pattern(p.Name)
		}
	case *rust.For:
		s.pattern(n.Pattern)
	case *rust.IfLet:
		s.pattern(n.Pattern)
	case *rust.Match:
		for _, a := range n.Arms {
			s.pattern(a.Pattern)
		}
	case *rust.Macro:
		if len(n.Args) > 0 {
			if lit, ok := n.Args[0].(*rust.StrLit); ok {
				for _, name := range inlineNames(lit.Value) {
					s.inline[name] = true
				}
			}
		}
	}
	for _, c := range rust.Children(e) {
		s.expr(c)
	}
	for _, b := range rust.Blocks(e) {
		s.block(b)
	}
}

// blocksIn returns the outermost blocks nested in e.
func blocksIn(e rust.Expr) []*rust.Block {
	var out []*rust.Block
	var visit func(rust.Expr)
	visit = func(x rust.Expr) {
		if x == nil {
			return
		}
		for _, c := range rust.Children(x) {
			visit(c)
		}
		out = append(out, rust.Blocks(x)...)
	}
	visit(e)
	return out
}

// rootIdent returns the local a place expression such as a.b[i] is rooted
// at, or "".
func rootIdent(e rust.Expr) string {
	for {
		switch x := e.(type) {
		case *rust.Ident:
			return x.Name
		case *rust.Field:
			e = x.X
		case *rust.Index:
			e = x.X
		case *rust.Unary:
			if x.Op != "*" {
				return ""
			}
			e = x.X
		case *rust.Paren:
			e = x.X
		default:
			return ""
		}
	}
}

// words splits a pattern into identifier-like words.
func words(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool {
		return !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
	})
}

// inlineNames returns the names captured by a format string, as in
// "{x}" or "{x:>4}".
func inlineNames(tmpl string) []string {
	var out []string
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '{' {
			continue
		}
		if i+1 < len(tmpl) && tmpl[i+1] == '{' {
			i++
			continue
		}
		j := i + 1
		for j < len(tmpl) && tmpl[j] != '}' && tmpl[j] != ':' {
			j++
		}
		if name := tmpl[i+1 : j]; name != "" && !unicode.IsDigit(rune(name[0])) {
			out = append(out, name)
		}
		i = j
	}
	return out
}

// propagate substitutes literal lets whose name has a single binding site
// and drops the lets no format string still names.
func (o *Optimizer) propagate(fn *rust.Fn, st *Stats) {
	s := collectSites(fn)
	consts := make(map[string]*rust.Let)
	eachBlock(fn.Body, func(b *rust.Block) {
		for _, stmt := range b.Stmts {
			let, ok := stmt.(*rust.Let)
			if !ok || let.Name == "" || let.Mut || s.count[let.Name] != 1 || s.mutable[let.Name] {
				continue
			}
			if propagatable(let) {
				consts[let.Name] = let
			}
		}
	})
	if len(consts) == 0 {
		return
	}

	// Literals substituted at a method receiver carry the let's type, since
	// rustc cannot call methods on an unsuffixed literal.
	typed := make(map[*rust.IntLit]string)
	rust.RewriteBlock(fn.Body, func(e rust.Expr) rust.Expr {
		switch x := e.(type) {
		case *rust.Ident:
			let, ok := consts[x.Name]
			if !ok {
				return e
			}
			st.Propagated++
			switch v := let.Value.(type) {
			case *rust.IntLit:
				lit := &rust.IntLit{Value: v.Value, Suffix: v.Suffix}
				if p, ok := let.Type.(rust.Path); ok && lit.Suffix == "" {
					typed[lit] = p.Name
				}
				return lit
			case *rust.BoolLit:
				return &rust.BoolLit{Value: v.Value}
			}
		case *rust.MethodCall:
			if lit, ok := x.Recv.(*rust.IntLit); ok {
				if suffix, ok := typed[lit]; ok {
					lit.Suffix = suffix
				}
			}
		}
		return e
	})

	eachBlock(fn.Body, func(b *rust.Block) {
		kept := b.Stmts[:0]
		for _, stmt := range b.Stmts {
			if let, ok := stmt.(*rust.Let); ok && consts[let.Name] == let && !s.inline[let.Name] {
				st.Removed++
				continue
			}
			kept = append(kept, stmt)
		}
		b.Stmts = kept
	})
}

// propagatable reports whether let binds an integer or boolean literal of a
// known integer or bool type.
func propagatable(let *rust.Let) bool {
	switch v := let.Value.(type) {
	case *rust.BoolLit:
		return true
	case *rust.IntLit:
		if v.Suffix != "" {
			return true
		}
		p, ok := let.Type.(rust.Path)
		return ok && len(p.Args) == 0 && isIntType(p.Name)
	}
	return false
}

func isIntType(name string) bool {
	switch name {
	case "i8", "i16", "i32", "i64", "i128", "isize", "u8", "u16", "u32", "u64", "u128", "usize":
		return true
	}
	return false
}

// eachBlock calls fn for b and every block nested in it.
func eachBlock(b *rust.Block, fn func(*rust.Block)) {
	if b == nil {
		return
	}
	fn(b)
	for _, st := range b.Stmts {
		for _, e := range rust.StmtExprs(st) {
			for _, nb := range blocksIn(e) {
				eachBlock(nb, fn)
			}
		}
	}
	for _, nb := range blocksIn(b.Tail) {
		eachBlock(nb, fn)
	}
}
