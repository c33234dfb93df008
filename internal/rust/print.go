package rust

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Mapping ties one source line to the generated lines produced from it.
// Lines are 1-based and GenEnd is inclusive.
type Mapping struct {
	SourceLine int `json:"source_line"`
	GenStart   int `json:"generated_line_start"`
	GenEnd     int `json:"generated_line_end"`
}

// SourceMap lists mappings ordered by their first generated line. A mapping
// that encloses others comes before them.
type SourceMap []Mapping

const indentUnit = "    "

type printer struct {
	b       strings.Builder
	indent  int
	line    int
	bol     bool // at beginning of line, indentation not yet written
	mapping SourceMap
}

// Print renders f and returns the text with its source map.
func Print(f *File) (string, SourceMap) {
	p := &printer{line: 1, bol: true}
	p.file(f)
	sort.SliceStable(p.mapping, func(i, j int) bool {
		a, b := p.mapping[i], p.mapping[j]
		if a.GenStart != b.GenStart {
			return a.GenStart < b.GenStart
		}
		return a.GenEnd > b.GenEnd
	})
	return p.b.String(), p.mapping
}

// PrintExpr renders a single expression. Used by tests and diagnostics.
func PrintExpr(e Expr) string {
	p := &printer{line: 1}
	p.expr(e)
	return p.b.String()
}

func (p *printer) write(s string) {
	if s == "" {
		return
	}
	if p.bol {
		for i := 0; i < p.indent; i++ {
			p.b.WriteString(indentUnit)
		}
		p.bol = false
	}
	p.b.WriteString(s)
}

func (p *printer) newline() {
	p.b.WriteByte('\n')
	p.line++
	p.bol = true
}

// track records the generated lines body writes for a source line. body
// must end with a newline.
func (p *printer) track(src int, body func()) {
	start := p.line
	body()
	if src > 0 {
		p.mapping = append(p.mapping, Mapping{SourceLine: src, GenStart: start, GenEnd: p.line - 1})
	}
}

func (p *printer) file(f *File) {
	for _, a := range f.Attrs {
		p.write(a)
		p.newline()
	}
	if len(f.Attrs) > 0 {
		p.newline()
	}
	if uses := sortedUses(f.Uses); len(uses) > 0 {
		for _, u := range uses {
			p.write("use " + u + ";")
			p.newline()
		}
		p.newline()
	}
	p.items(f.Items)
}

func sortedUses(uses []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range uses {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

func (p *printer) items(items []Item) {
	for i, it := range items {
		if i > 0 {
			p.newline()
		}
		p.item(it)
	}
}

func (p *printer) item(it Item) {
	switch n := it.(type) {
	case *Fn:
		p.track(n.Line, func() { p.fn(n) })
	case *Struct:
		p.track(n.Line, func() { p.structItem(n) })
	case *Impl:
		p.track(n.Line, func() {
			if n.Trait != "" {
				p.write("impl " + n.Trait + " for " + n.Type + " {")
			} else {
				p.write("impl " + n.Type + " {")
			}
			p.newline()
			p.indent++
			p.items(n.Items)
			p.indent--
			p.write("}")
			p.newline()
		})
	case *Const:
		p.track(n.Line, func() {
			p.write(pub(n.Pub) + "const " + n.Name + ": " + n.Type.String() + " = ")
			p.expr(n.Value)
			p.write(";")
			p.newline()
		})
	case *Mod:
		for _, a := range n.Attrs {
			p.write(a)
			p.newline()
		}
		p.write("mod " + n.Name + " {")
		p.newline()
		p.indent++
		for _, u := range sortedUses(n.Uses) {
			p.write("use " + u + ";")
			p.newline()
		}
		if len(n.Uses) > 0 && len(n.Items) > 0 {
			p.newline()
		}
		p.items(n.Items)
		p.indent--
		p.write("}")
		p.newline()
	case *RawItem:
		for _, l := range strings.Split(strings.TrimRight(n.Text, "\n"), "\n") {
			if l != "" {
				p.write(l)
			}
			p.newline()
		}
	}
}

func pub(b bool) string {
	if b {
		return "pub "
	}
	return ""
}

func (p *printer) doc(doc string) {
	if doc == "" {
		return
	}
	for _, l := range strings.Split(strings.TrimRight(doc, "\n"), "\n") {
		if l = strings.TrimRight(l, " \t"); l == "" {
			p.write("///")
		} else {
			p.write("/// " + l)
		}
		p.newline()
	}
}

func (p *printer) fn(n *Fn) {
	p.doc(n.Doc)
	for _, a := range n.Attrs {
		p.write(a)
		p.newline()
	}
	head := pub(n.Pub)
	if n.Async {
		head += "async "
	}
	head += "fn " + n.Name + "("
	var params []string
	if n.Receiver != "" {
		params = append(params, n.Receiver)
	}
	for _, prm := range n.Params {
		params = append(params, param(prm))
	}
	head += strings.Join(params, ", ") + ")"
	if n.Result != nil && !IsUnit(n.Result) {
		head += " -> " + n.Result.String()
	}
	p.write(head + " ")
	p.block(n.Body)
	p.newline()
}

func param(prm Param) string {
	s := prm.Name
	if prm.Mut {
		s = "mut " + s
	}
	if prm.Type != nil {
		s += ": " + prm.Type.String()
	}
	return s
}

func (p *printer) structItem(n *Struct) {
	p.doc(n.Doc)
	if len(n.Derive) > 0 {
		p.write("#[derive(" + strings.Join(n.Derive, ", ") + ")]")
		p.newline()
	}
	if len(n.Fields) == 0 {
		p.write(pub(n.Pub) + "struct " + n.Name + " {}")
		p.newline()
		return
	}
	p.write(pub(n.Pub) + "struct " + n.Name + " {")
	p.newline()
	p.indent++
	for _, f := range n.Fields {
		p.write(pub(f.Pub) + f.Name + ": " + f.Type.String() + ",")
		p.newline()
	}
	p.indent--
	p.write("}")
	p.newline()
}

// block writes a braced block. The cursor is left after the closing brace.
func (p *printer) block(b *Block) {
	if b == nil || (len(b.Stmts) == 0 && b.Tail == nil) {
		p.write("{}")
		return
	}
	p.write("{")
	p.newline()
	p.indent++
	for _, s := range b.Stmts {
		p.stmt(s)
	}
	if b.Tail != nil {
		p.expr(b.Tail)
		p.newline()
	}
	p.indent--
	p.write("}")
}

func (p *printer) stmt(s Stmt) {
	switch n := s.(type) {
	case *Let:
		p.track(n.Line, func() {
			p.write("let ")
			if n.Mut {
				p.write("mut ")
			}
			if len(n.Names) > 0 {
				p.write("(" + strings.Join(n.Names, ", ") + ")")
			} else {
				p.write(n.Name)
			}
			if n.Type != nil {
				p.write(": " + n.Type.String())
			}
			if n.Value != nil {
				p.write(" = ")
				p.expr(n.Value)
			}
			p.write(";")
			p.newline()
		})
	case *Assign:
		p.track(n.Line, func() {
			p.expr(n.Target)
			p.write(" " + n.Op + " ")
			p.expr(n.Value)
			p.write(";")
			p.newline()
		})
	case *ExprStmt:
		p.track(n.Line, func() {
			p.expr(n.X)
			if !IsBlockLike(n.X) {
				p.write(";")
			}
			p.newline()
		})
	case *Return:
		p.track(n.Line, func() {
			if n.Value == nil {
				p.write("return;")
			} else {
				p.write("return ")
				p.expr(n.Value)
				p.write(";")
			}
			p.newline()
		})
	case *Break:
		p.track(n.Line, func() {
			p.write("break;")
			p.newline()
		})
	case *Continue:
		p.track(n.Line, func() {
			p.write("continue;")
			p.newline()
		})
	}
}

// Operator precedence, loosest first.
const (
	precLowest = iota
	precRange
	precOr
	precAnd
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precAdd
	precMul
	precCast
	precUnary
	precPostfix
)

func binaryPrec(op string) int {
	switch op {
	case "||":
		return precOr
	case "&&":
		return precAnd
	case "==", "!=", "<", ">", "<=", ">=":
		return precCompare
	case "|":
		return precBitOr
	case "^":
		return precBitXor
	case "&":
		return precBitAnd
	case "<<", ">>":
		return precShift
	case "+", "-":
		return precAdd
	case "*", "/", "%":
		return precMul
	}
	return precLowest
}

func exprPrec(e Expr) int {
	switch x := e.(type) {
	case *Binary:
		return binaryPrec(x.Op)
	case *Cast:
		return precCast
	case *Unary, *Borrow:
		return precUnary
	case *IntLit:
		if x.Value < 0 {
			return precUnary
		}
	case *FloatLit:
		if x.Value < 0 || math.Signbit(x.Value) {
			return precUnary
		}
	case *Range:
		return precRange
	case *Closure:
		return precLowest
	case *If, *IfLet, *While, *Loop, *For, *Match:
		return precLowest
	}
	return precPostfix
}

// operand writes e, parenthesized when it binds looser than min.
func (p *printer) operand(e Expr, min int) {
	if exprPrec(e) < min {
		p.write("(")
		p.expr(e)
		p.write(")")
		return
	}
	p.expr(e)
}

func (p *printer) exprs(es []Expr) {
	for i, e := range es {
		if i > 0 {
			p.write(", ")
		}
		p.expr(e)
	}
}

func (p *printer) expr(e Expr) {
	switch x := e.(type) {
	case *IntLit:
		p.write(strconv.FormatInt(x.Value, 10) + x.Suffix)
	case *FloatLit:
		p.write(FormatFloat(x.Value))
	case *BoolLit:
		p.write(strconv.FormatBool(x.Value))
	case *StrLit:
		p.write(Quote(x.Value))
	case *CharLit:
		p.write(QuoteChar(x.Value))
	case *Ident:
		p.write(x.Name)
	case *PathExpr:
		p.write(x.Path)
	case *Binary:
		prec := binaryPrec(x.Op)
		left, right := prec, prec+1
		if prec == precCompare {
			left = prec + 1
		}
		p.binaryOperand(x.L, left)
		p.write(" " + x.Op + " ")
		p.binaryOperand(x.R, right)
	case *Unary:
		p.write(x.Op)
		p.operand(x.X, precUnary)
	case *Paren:
		p.write("(")
		p.expr(x.X)
		p.write(")")
	case *Cast:
		p.operand(x.X, precCast)
		p.write(" as " + x.Type.String())
	case *Borrow:
		if x.Mut {
			p.write("&mut ")
		} else {
			p.write("&")
		}
		p.operand(x.X, precUnary)
	case *Call:
		p.operand(x.Func, precPostfix)
		p.write("(")
		p.exprs(x.Args)
		p.write(")")
	case *MethodCall:
		p.operand(x.Recv, precPostfix)
		p.write("." + x.Name)
		if len(x.Turbofish) > 0 {
			p.write("::<" + typeList(x.Turbofish) + ">")
		}
		p.write("(")
		p.exprs(x.Args)
		p.write(")")
	case *Field:
		p.operand(x.X, precPostfix)
		p.write("." + x.Name)
	case *Index:
		p.operand(x.X, precPostfix)
		p.write("[")
		p.expr(x.Index)
		p.write("]")
	case *Macro:
		open, close := "(", ")"
		if x.Bracket || x.Repeat {
			open, close = "[", "]"
		}
		p.write(x.Name + "!" + open)
		if x.Repeat && len(x.Args) == 2 {
			p.expr(x.Args[0])
			p.write("; ")
			p.expr(x.Args[1])
		} else {
			p.exprs(x.Args)
		}
		p.write(close)
	case *StructLit:
		if len(x.Fields) == 0 {
			p.write(x.Name + " {}")
			return
		}
		p.write(x.Name + " { ")
		for i, f := range x.Fields {
			if i > 0 {
				p.write(", ")
			}
			if id, ok := f.Value.(*Ident); ok && id.Name == f.Name {
				p.write(f.Name)
				continue
			}
			p.write(f.Name + ": ")
			p.expr(f.Value)
		}
		p.write(" }")
	case *Closure:
		if x.Move {
			p.write("move ")
		}
		var params []string
		for _, prm := range x.Params {
			params = append(params, param(prm))
		}
		p.write("|" + strings.Join(params, ", ") + "| ")
		if x.Result != nil {
			p.write("-> " + x.Result.String() + " ")
		}
		p.expr(x.Body)
	case *TryExpr:
		p.operand(x.X, precPostfix)
		p.write("?")
	case *AwaitExpr:
		p.operand(x.X, precPostfix)
		p.write(".await")
	case *TupleExpr:
		p.write("(")
		p.exprs(x.Elems)
		if len(x.Elems) == 1 {
			p.write(",")
		}
		p.write(")")
	case *ArrayLit:
		p.write("[")
		p.exprs(x.Elems)
		p.write("]")
	case *Range:
		if x.Lo != nil {
			p.operand(x.Lo, precRange+1)
		}
		if x.Inclusive {
			p.write("..=")
		} else {
			p.write("..")
		}
		if x.Hi != nil {
			p.operand(x.Hi, precRange+1)
		}
	case *If:
		p.ifExpr(x)
	case *IfLet:
		p.write("if let " + x.Pattern + " = ")
		p.cond(x.X)
		p.write(" ")
		p.block(x.Then)
		if x.Else != nil {
			p.write(" else ")
			p.block(x.Else)
		}
	case *While:
		p.write("while ")
		p.cond(x.Cond)
		p.write(" ")
		p.block(x.Body)
	case *Loop:
		p.write("loop ")
		p.block(x.Body)
	case *For:
		p.write("for " + x.Pattern + " in ")
		p.cond(x.Iter)
		p.write(" ")
		p.block(x.Body)
	case *Match:
		p.write("match ")
		p.cond(x.X)
		p.write(" {")
		p.newline()
		p.indent++
		for _, a := range x.Arms {
			p.write(a.Pattern)
			if a.Guard != nil {
				p.write(" if ")
				p.expr(a.Guard)
			}
			p.write(" => ")
			p.expr(a.Body)
			if _, ok := a.Body.(*BlockExpr); !ok {
				p.write(",")
			}
			p.newline()
		}
		p.indent--
		p.write("}")
	case *BlockExpr:
		p.block(x.Block)
	}
}

// binaryOperand writes a binary operand. Casts are always parenthesized so
// that "x as usize < y" never parses as a generic argument list.
func (p *printer) binaryOperand(e Expr, min int) {
	if _, ok := e.(*Cast); ok {
		p.write("(")
		p.expr(e)
		p.write(")")
		return
	}
	p.operand(e, min)
}

// cond writes the head expression of if, while, for and match. A struct
// literal there must be parenthesized.
func (p *printer) cond(e Expr) {
	if _, ok := e.(*StructLit); ok {
		p.write("(")
		p.expr(e)
		p.write(")")
		return
	}
	p.expr(e)
}

func (p *printer) ifExpr(x *If) {
	p.write("if ")
	p.cond(x.Cond)
	p.write(" ")
	p.block(x.Then)
	switch e := x.Else.(type) {
	case nil:
	case *If:
		p.write(" else ")
		p.ifExpr(e)
	case *BlockExpr:
		p.write(" else ")
		p.block(e.Block)
	default:
		p.write(" else { ")
		p.expr(e)
		p.write(" }")
	}
}

// FormatFloat renders v as a Rust f64 literal or constant path.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "f64::NAN"
	case math.IsInf(v, 1):
		return "f64::INFINITY"
	case math.IsInf(v, -1):
		return "f64::NEG_INFINITY"
	}
	abs := math.Abs(v)
	if abs != 0 && (abs >= 1e16 || abs < 1e-5) {
		s := strconv.FormatFloat(v, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		if !strings.Contains(mant, ".") {
			mant += ".0"
		}
		sign := ""
		if strings.HasPrefix(exp, "-") {
			sign = "-"
		}
		exp = strings.TrimLeft(exp, "+-0")
		if exp == "" {
			exp = "0"
		}
		return mant + "e" + sign + exp
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Quote renders s as a Rust string literal.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		writeEscaped(&b, r, '"')
	}
	b.WriteByte('"')
	return b.String()
}

// QuoteChar renders r as a Rust char literal.
func QuoteChar(r rune) string {
	var b strings.Builder
	b.WriteByte('\'')
	writeEscaped(&b, r, '\'')
	b.WriteByte('\'')
	return b.String()
}

func writeEscaped(b *strings.Builder, r rune, quote rune) {
	switch r {
	case '\\':
		b.WriteString(`\\`)
	case '\n':
		b.WriteString(`\n`)
	case '\r':
		b.WriteString(`\r`)
	case '\t':
		b.WriteString(`\t`)
	case 0:
		b.WriteString(`\0`)
	case quote:
		b.WriteByte('\\')
		b.WriteRune(r)
	default:
		if r < 0x20 || r == 0x7f {
			b.WriteString(`\u{` + strconv.FormatInt(int64(r), 16) + `}`)
			return
		}
		b.WriteRune(r)
	}
}
