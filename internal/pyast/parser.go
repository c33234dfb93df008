package pyast

import (
	"errors"
	"fmt"
)

// Parser is a recursive-descent parser over a token slice.
type Parser struct {
	toks []Token
	pos  int
}

// bailout carries a syntax error up the recursive descent; Parse recovers it.
type bailout struct {
	err *SyntaxError
}

// Parse reads a whole module.
func Parse(src string) (mod *Module, err error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			mod, err = nil, b.err
		}
	}()
	return p.module(), nil
}

// ParseExpr reads a single expression, as used inside f-string fields.
func ParseExpr(src string) (expr Expr, err error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			expr, err = nil, b.err
		}
	}()
	e := p.testListStarExpr()
	for p.tok().Kind == NEWLINE {
		p.next()
	}
	if p.tok().Kind != EOF {
		p.fail("unexpected " + p.tok().String())
	}
	return e, nil
}

// AsSyntaxError extracts a *SyntaxError from err.
func AsSyntaxError(err error) (*SyntaxError, bool) {
	var se *SyntaxError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func (p *Parser) tok() Token { return p.toks[p.pos] }

func (p *Parser) peek(n int) Token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) next() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) here() Pos {
	t := p.tok()
	return Pos{Line: t.Line, Col: t.Col}
}

func (p *Parser) fail(msg string) {
	t := p.tok()
	panic(bailout{&SyntaxError{Msg: msg, Line: t.Line, Col: t.Col}})
}

// isOp reports whether the current token is the operator op.
func (p *Parser) isOp(op string) bool {
	t := p.tok()
	return t.Kind == OP && t.Value == op
}

// isKw reports whether the current token is the keyword kw.
func (p *Parser) isKw(kw string) bool {
	t := p.tok()
	return t.Kind == NAME && t.Value == kw
}

func (p *Parser) acceptOp(op string) bool {
	if p.isOp(op) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) acceptKw(kw string) bool {
	if p.isKw(kw) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expectOp(op string) {
	if !p.acceptOp(op) {
		p.fail(fmt.Sprintf("expected '%s', found %s", op, p.tok()))
	}
}

func (p *Parser) expectKw(kw string) {
	if !p.acceptKw(kw) {
		p.fail(fmt.Sprintf("expected '%s', found %s", kw, p.tok()))
	}
}

func (p *Parser) expectName() string {
	t := p.tok()
	if t.Kind != NAME || IsKeyword(t.Value) {
		p.fail(fmt.Sprintf("expected name, found %s", t))
	}
	p.next()
	return t.Value
}

func (p *Parser) expectNewline() {
	if p.tok().Kind == EOF {
		return
	}
	if p.tok().Kind != NEWLINE {
		p.fail(fmt.Sprintf("expected end of line, found %s", p.tok()))
	}
	p.next()
}

// ---- statements ----

func (p *Parser) module() *Module {
	mod := &Module{}
	for p.tok().Kind != EOF {
		if p.tok().Kind == NEWLINE {
			p.next()
			continue
		}
		mod.Body = append(mod.Body, p.statement()...)
	}
	return mod
}

func (p *Parser) statement() []Stmt {
	t := p.tok()
	if t.Kind == INDENT {
		p.fail("unexpected indent")
	}
	if t.Kind == NAME {
		switch t.Value {
		case "def":
			return []Stmt{p.funcDef(nil, false)}
		case "class":
			return []Stmt{p.classDef(nil)}
		case "if":
			return []Stmt{p.ifStmt()}
		case "while":
			return []Stmt{p.whileStmt()}
		case "for":
			return []Stmt{p.forStmt(false)}
		case "with":
			return []Stmt{p.withStmt(false)}
		case "try":
			return []Stmt{p.tryStmt()}
		case "async":
			return []Stmt{p.asyncStmt(nil)}
		}
	}
	if p.isOp("@") {
		return []Stmt{p.decorated()}
	}
	return p.simpleStmts()
}

func (p *Parser) block() []Stmt {
	p.expectOp(":")
	if p.tok().Kind != NEWLINE {
		return p.simpleStmts()
	}
	p.next()
	if p.tok().Kind != INDENT {
		p.fail("expected an indented block")
	}
	p.next()
	var body []Stmt
	for p.tok().Kind != DEDENT && p.tok().Kind != EOF {
		if p.tok().Kind == NEWLINE {
			p.next()
			continue
		}
		body = append(body, p.statement()...)
	}
	if p.tok().Kind == DEDENT {
		p.next()
	}
	return body
}

func (p *Parser) simpleStmts() []Stmt {
	var out []Stmt
	for {
		out = append(out, p.smallStmt())
		if !p.acceptOp(";") {
			break
		}
		if p.tok().Kind == NEWLINE || p.tok().Kind == EOF {
			break
		}
	}
	p.expectNewline()
	return out
}

func (p *Parser) smallStmt() Stmt {
	pos := p.here()
	t := p.tok()
	if t.Kind == NAME {
		switch t.Value {
		case "pass":
			p.next()
			return &Pass{Pos: pos}
		case "break":
			p.next()
			return &Break{Pos: pos}
		case "continue":
			p.next()
			return &Continue{Pos: pos}
		case "return":
			p.next()
			var v Expr
			if !p.atStmtEnd() {
				v = p.testListStarExpr()
			}
			return &Return{Pos: pos, Value: v}
		case "raise":
			p.next()
			r := &Raise{Pos: pos}
			if !p.atStmtEnd() {
				r.Exc = p.test()
				if p.acceptKw("from") {
					r.Cause = p.test()
				}
			}
			return r
		case "global", "nonlocal":
			p.next()
			names := []string{p.expectName()}
			for p.acceptOp(",") {
				names = append(names, p.expectName())
			}
			if t.Value == "global" {
				return &Global{Pos: pos, Names: names}
			}
			return &Nonlocal{Pos: pos, Names: names}
		case "del":
			p.next()
			return &Delete{Pos: pos, Targets: p.exprList()}
		case "assert":
			p.next()
			a := &Assert{Pos: pos, Test: p.test()}
			if p.acceptOp(",") {
				a.Msg = p.test()
			}
			return a
		case "yield":
			return &ExprStmt{Pos: pos, Value: p.yieldExpr()}
		case "import":
			return p.importStmt()
		case "from":
			return p.fromImport()
		}
	}
	return p.exprStmt()
}

func (p *Parser) atStmtEnd() bool {
	k := p.tok().Kind
	return k == NEWLINE || k == EOF || p.isOp(";")
}

var augOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "//=": "//", "%=": "%",
	"**=": "**", "&=": "&", "|=": "|", "^=": "^", "<<=": "<<", ">>=": ">>", "@=": "@",
}

func (p *Parser) exprStmt() Stmt {
	pos := p.here()
	first := p.testListStarExpr()

	if p.isOp(":") {
		p.next()
		ann := &AnnAssign{Pos: pos, Target: first, Annotation: p.test()}
		if p.acceptOp("=") {
			ann.Value = p.testListStarExpr()
		}
		return ann
	}
	if t := p.tok(); t.Kind == OP {
		if op, ok := augOps[t.Value]; ok {
			p.next()
			return &AugAssign{Pos: pos, Target: first, Op: op, Value: p.testListStarExpr()}
		}
	}
	if p.isOp("=") {
		targets := []Expr{first}
		var value Expr
		for p.acceptOp("=") {
			if p.isKw("yield") {
				value = p.yieldExpr()
			} else {
				value = p.testListStarExpr()
			}
			targets = append(targets, value)
		}
		return &Assign{Pos: pos, Targets: targets[:len(targets)-1], Value: value}
	}
	return &ExprStmt{Pos: pos, Value: first}
}

func (p *Parser) dottedName() string {
	name := p.expectName()
	for p.acceptOp(".") {
		name += "." + p.expectName()
	}
	return name
}

func (p *Parser) importStmt() Stmt {
	pos := p.here()
	p.expectKw("import")
	imp := &Import{Pos: pos}
	for {
		a := &Alias{Name: p.dottedName()}
		if p.acceptKw("as") {
			a.AsName = p.expectName()
		}
		imp.Names = append(imp.Names, a)
		if !p.acceptOp(",") {
			break
		}
	}
	return imp
}

func (p *Parser) fromImport() Stmt {
	pos := p.here()
	p.expectKw("from")
	imp := &ImportFrom{Pos: pos}
	for p.isOp(".") || p.isOp("...") {
		if p.isOp("...") {
			imp.Level += 3
		} else {
			imp.Level++
		}
		p.next()
	}
	if !p.isKw("import") {
		imp.Module = p.dottedName()
	}
	p.expectKw("import")
	if p.acceptOp("*") {
		imp.Names = []*Alias{{Name: "*"}}
		return imp
	}
	paren := p.acceptOp("(")
	for {
		if paren && p.isOp(")") {
			break
		}
		a := &Alias{Name: p.expectName()}
		if p.acceptKw("as") {
			a.AsName = p.expectName()
		}
		imp.Names = append(imp.Names, a)
		if !p.acceptOp(",") {
			break
		}
	}
	if paren {
		p.expectOp(")")
	}
	return imp
}

func (p *Parser) decorated() Stmt {
	var decorators []Expr
	for p.acceptOp("@") {
		decorators = append(decorators, p.namedExprTest())
		p.expectNewline()
	}
	switch {
	case p.isKw("def"):
		return p.funcDef(decorators, false)
	case p.isKw("class"):
		return p.classDef(decorators)
	case p.isKw("async"):
		return p.asyncStmt(decorators)
	}
	p.fail("expected def or class after decorator")
	return nil
}

func (p *Parser) asyncStmt(decorators []Expr) Stmt {
	p.expectKw("async")
	switch {
	case p.isKw("def"):
		return p.funcDef(decorators, true)
	case p.isKw("for") && decorators == nil:
		return p.forStmt(true)
	case p.isKw("with") && decorators == nil:
		return p.withStmt(true)
	}
	p.fail("expected def, for or with after async")
	return nil
}

func (p *Parser) funcDef(decorators []Expr, async bool) Stmt {
	pos := p.here()
	p.expectKw("def")
	fn := &FunctionDef{Pos: pos, Name: p.expectName(), Decorators: decorators, Async: async}
	p.expectOp("(")
	fn.Args = p.arguments(")", true)
	p.expectOp(")")
	if p.acceptOp("->") {
		fn.Returns = p.test()
	}
	fn.Body = p.block()
	return fn
}

// arguments parses a formal parameter list up to (not including) end.
// Annotations are only allowed in def, not lambda.
func (p *Parser) arguments(end string, annotations bool) *Arguments {
	args := &Arguments{}
	kwOnly := false
	param := func() *Arg {
		a := &Arg{Pos: p.here(), Name: p.expectName()}
		if annotations && p.acceptOp(":") {
			a.Annotation = p.test()
		}
		return a
	}
	for !p.isOp(end) {
		switch {
		case p.acceptOp("**"):
			args.Kwarg = param()
		case p.acceptOp("*"):
			kwOnly = true
			if !p.isOp(",") && !p.isOp(end) {
				args.Vararg = param()
			}
		case p.acceptOp("/"):
			// positional-only marker; the preceding params stay positional
		default:
			a := param()
			if p.acceptOp("=") {
				a.Default = p.test()
			}
			if kwOnly {
				args.KwOnly = append(args.KwOnly, a)
			} else {
				args.Args = append(args.Args, a)
			}
		}
		if !p.acceptOp(",") {
			break
		}
	}
	return args
}

func (p *Parser) classDef(decorators []Expr) Stmt {
	pos := p.here()
	p.expectKw("class")
	cls := &ClassDef{Pos: pos, Name: p.expectName(), Decorators: decorators}
	if p.acceptOp("(") {
		args, kws := p.callArgs()
		cls.Bases, cls.Keywords = args, kws
		p.expectOp(")")
	}
	cls.Body = p.block()
	return cls
}

func (p *Parser) ifStmt() Stmt {
	pos := p.here()
	p.next() // "if" or "elif"
	s := &If{Pos: pos, Test: p.namedExprTest()}
	s.Body = p.block()
	switch {
	case p.isKw("elif"):
		s.Orelse = []Stmt{p.ifStmt()}
	case p.acceptKw("else"):
		s.Orelse = p.block()
	}
	return s
}

func (p *Parser) whileStmt() Stmt {
	pos := p.here()
	p.expectKw("while")
	s := &While{Pos: pos, Test: p.namedExprTest()}
	s.Body = p.block()
	if p.acceptKw("else") {
		s.Orelse = p.block()
	}
	return s
}

func (p *Parser) forStmt(async bool) Stmt {
	pos := p.here()
	p.expectKw("for")
	s := &For{Pos: pos, Target: p.targetList(), Async: async}
	p.expectKw("in")
	s.Iter = p.testListStarExpr()
	s.Body = p.block()
	if p.acceptKw("else") {
		s.Orelse = p.block()
	}
	return s
}

func (p *Parser) withStmt(async bool) Stmt {
	pos := p.here()
	p.expectKw("with")
	s := &With{Pos: pos, Async: async}
	paren := false
	if p.isOp("(") && p.parenthesizedWithItems() {
		p.next()
		paren = true
	}
	for {
		if paren && p.isOp(")") {
			break
		}
		item := &WithItem{Context: p.test()}
		if p.acceptKw("as") {
			item.Var = p.target()
		}
		s.Items = append(s.Items, item)
		if !p.acceptOp(",") {
			break
		}
	}
	if paren {
		p.expectOp(")")
	}
	s.Body = p.block()
	return s
}

// parenthesizedWithItems reports whether "with (" opens a parenthesized
// item list rather than a parenthesized expression. It looks for "as" at
// bracket depth one before the matching close.
func (p *Parser) parenthesizedWithItems() bool {
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		t := p.toks[i]
		if t.Kind == OP {
			switch t.Value {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
				if depth == 0 {
					return false
				}
			}
		}
		if depth == 1 && t.Kind == NAME && t.Value == "as" {
			return true
		}
		if t.Kind == NEWLINE || t.Kind == EOF {
			return false
		}
	}
	return false
}

func (p *Parser) tryStmt() Stmt {
	pos := p.here()
	p.expectKw("try")
	s := &Try{Pos: pos, Body: p.block()}
	for p.isKw("except") {
		h := &ExceptHandler{Pos: p.here()}
		p.next()
		p.acceptOp("*")
		if !p.isOp(":") {
			h.Type = p.test()
			if p.acceptKw("as") {
				h.Name = p.expectName()
			}
		}
		h.Body = p.block()
		s.Handlers = append(s.Handlers, h)
	}
	if p.acceptKw("else") {
		s.Orelse = p.block()
	}
	if p.acceptKw("finally") {
		s.Finalbody = p.block()
	}
	if len(s.Handlers) == 0 && s.Finalbody == nil {
		p.fail("expected 'except' or 'finally' block")
	}
	return s
}

// ---- expressions ----

// testListStarExpr parses "a, *b, c" forming a Tuple when a comma appears.
func (p *Parser) testListStarExpr() Expr {
	pos := p.here()
	first := p.starOrNamedTest()
	if !p.isOp(",") {
		return first
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.atExprListEnd() {
			break
		}
		elts = append(elts, p.starOrNamedTest())
	}
	return &Tuple{Pos: pos, Elts: elts}
}

func (p *Parser) atExprListEnd() bool {
	t := p.tok()
	if t.Kind == NEWLINE || t.Kind == EOF {
		return true
	}
	if t.Kind == OP {
		switch t.Value {
		case ")", "]", "}", "=", ":", ";":
			return true
		}
		if _, ok := augOps[t.Value]; ok {
			return true
		}
	}
	return false
}

func (p *Parser) starOrNamedTest() Expr {
	if p.isOp("*") {
		pos := p.here()
		p.next()
		return &Starred{Pos: pos, Value: p.bitOr()}
	}
	return p.namedExprTest()
}

func (p *Parser) namedExprTest() Expr {
	if p.tok().Kind == NAME && p.peek(1).Kind == OP && p.peek(1).Value == ":=" {
		pos := p.here()
		target := &Name{Pos: pos, ID: p.expectName()}
		p.next()
		return &NamedExpr{Pos: pos, Target: target, Value: p.test()}
	}
	return p.test()
}

// targetList parses for-loop and comprehension targets, which stop at "in".
func (p *Parser) targetList() Expr {
	pos := p.here()
	first := p.target()
	if !p.isOp(",") {
		return first
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isKw("in") || p.isOp("=") {
			break
		}
		elts = append(elts, p.target())
	}
	return &Tuple{Pos: pos, Elts: elts}
}

func (p *Parser) target() Expr {
	if p.isOp("*") {
		pos := p.here()
		p.next()
		return &Starred{Pos: pos, Value: p.bitOr()}
	}
	return p.bitOr()
}

// exprList parses comma-separated bitwise-or level expressions (del targets).
func (p *Parser) exprList() []Expr {
	out := []Expr{p.bitOr()}
	for p.acceptOp(",") {
		if p.atStmtEnd() {
			break
		}
		out = append(out, p.bitOr())
	}
	return out
}

func (p *Parser) test() Expr {
	if p.isKw("lambda") {
		return p.lambda()
	}
	pos := p.here()
	body := p.orTest()
	if p.isKw("if") {
		p.next()
		cond := p.orTest()
		p.expectKw("else")
		return &IfExp{Pos: pos, Test: cond, Body: body, Orelse: p.test()}
	}
	return body
}

// testNoCond is a test without a trailing conditional (comprehension ifs).
func (p *Parser) testNoCond() Expr {
	if p.isKw("lambda") {
		return p.lambda()
	}
	return p.orTest()
}

func (p *Parser) lambda() Expr {
	pos := p.here()
	p.expectKw("lambda")
	args := p.arguments(":", false)
	p.expectOp(":")
	return &Lambda{Pos: pos, Args: args, Body: p.test()}
}

func (p *Parser) orTest() Expr {
	pos := p.here()
	first := p.andTest()
	if !p.isKw("or") {
		return first
	}
	values := []Expr{first}
	for p.acceptKw("or") {
		values = append(values, p.andTest())
	}
	return &BoolOp{Pos: pos, Op: "or", Values: values}
}

func (p *Parser) andTest() Expr {
	pos := p.here()
	first := p.notTest()
	if !p.isKw("and") {
		return first
	}
	values := []Expr{first}
	for p.acceptKw("and") {
		values = append(values, p.notTest())
	}
	return &BoolOp{Pos: pos, Op: "and", Values: values}
}

func (p *Parser) notTest() Expr {
	if p.isKw("not") {
		pos := p.here()
		p.next()
		return &UnaryOp{Pos: pos, Op: "not", Operand: p.notTest()}
	}
	return p.comparison()
}

func (p *Parser) compOp() (string, bool) {
	t := p.tok()
	if t.Kind == OP {
		switch t.Value {
		case "<", ">", "==", ">=", "<=", "!=":
			p.next()
			return t.Value, true
		}
		return "", false
	}
	if t.Kind != NAME {
		return "", false
	}
	switch t.Value {
	case "in":
		p.next()
		return "in", true
	case "not":
		if n := p.peek(1); n.Kind == NAME && n.Value == "in" {
			p.next()
			p.next()
			return "not in", true
		}
	case "is":
		p.next()
		if p.acceptKw("not") {
			return "is not", true
		}
		return "is", true
	}
	return "", false
}

func (p *Parser) comparison() Expr {
	pos := p.here()
	left := p.bitOr()
	var ops []string
	var comps []Expr
	for {
		op, ok := p.compOp()
		if !ok {
			break
		}
		ops = append(ops, op)
		comps = append(comps, p.bitOr())
	}
	if len(ops) == 0 {
		return left
	}
	return &Compare{Pos: pos, Left: left, Ops: ops, Comparators: comps}
}

// binaryLevel parses a left-associative chain of operators over operand.
func (p *Parser) binaryLevel(operand func() Expr, ops ...string) Expr {
	left := operand()
	for {
		t := p.tok()
		if t.Kind != OP {
			return left
		}
		matched := false
		for _, op := range ops {
			if t.Value == op {
				matched = true
				break
			}
		}
		if !matched {
			return left
		}
		p.next()
		left = &BinOp{Pos: left.Position(), Left: left, Op: t.Value, Right: operand()}
	}
}

func (p *Parser) bitOr() Expr  { return p.binaryLevel(p.bitXor, "|") }
func (p *Parser) bitXor() Expr { return p.binaryLevel(p.bitAnd, "^") }
func (p *Parser) bitAnd() Expr { return p.binaryLevel(p.shift, "&") }
func (p *Parser) shift() Expr  { return p.binaryLevel(p.arith, "<<", ">>") }
func (p *Parser) arith() Expr  { return p.binaryLevel(p.term, "+", "-") }
func (p *Parser) term() Expr   { return p.binaryLevel(p.factor, "*", "/", "//", "%", "@") }

func (p *Parser) factor() Expr {
	if p.isOp("-") || p.isOp("+") || p.isOp("~") {
		pos := p.here()
		op := p.next().Value
		return &UnaryOp{Pos: pos, Op: op, Operand: p.factor()}
	}
	return p.power()
}

func (p *Parser) power() Expr {
	base := p.awaitPrimary()
	if p.isOp("**") {
		p.next()
		return &BinOp{Pos: base.Position(), Left: base, Op: "**", Right: p.factor()}
	}
	return base
}

func (p *Parser) awaitPrimary() Expr {
	if p.isKw("await") {
		pos := p.here()
		p.next()
		return &Await{Pos: pos, Value: p.primary()}
	}
	return p.primary()
}

func (p *Parser) primary() Expr {
	e := p.atom()
	for {
		switch {
		case p.isOp("."):
			p.next()
			pos := p.here()
			e = &Attribute{Pos: pos, Value: e, Attr: p.expectName()}
		case p.isOp("("):
			pos := e.Position()
			p.next()
			args, kws := p.callArgs()
			p.expectOp(")")
			e = &Call{Pos: pos, Func: e, Args: args, Keywords: kws}
		case p.isOp("["):
			pos := e.Position()
			p.next()
			e = &Subscript{Pos: pos, Value: e, Slice: p.subscriptList()}
			p.expectOp("]")
		default:
			return e
		}
	}
}

// callArgs parses call arguments up to (not including) ")".
func (p *Parser) callArgs() ([]Expr, []*Keyword) {
	var args []Expr
	var kws []*Keyword
	for !p.isOp(")") {
		pos := p.here()
		switch {
		case p.acceptOp("**"):
			kws = append(kws, &Keyword{Pos: pos, Value: p.test()})
		case p.acceptOp("*"):
			args = append(args, &Starred{Pos: pos, Value: p.test()})
		case p.tok().Kind == NAME && p.peek(1).Kind == OP && p.peek(1).Value == "=":
			name := p.expectName()
			p.next()
			kws = append(kws, &Keyword{Pos: pos, Arg: name, Value: p.test()})
		default:
			arg := p.namedExprTest()
			if p.isKw("for") || p.isKw("async") {
				arg = &GeneratorExp{Pos: pos, Elt: arg, Generators: p.compFor()}
			}
			args = append(args, arg)
		}
		if !p.acceptOp(",") {
			break
		}
	}
	return args, kws
}

func (p *Parser) subscriptList() Expr {
	pos := p.here()
	first := p.subscript()
	if !p.isOp(",") {
		return first
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp("]") {
			break
		}
		elts = append(elts, p.subscript())
	}
	return &Tuple{Pos: pos, Elts: elts}
}

func (p *Parser) subscript() Expr {
	pos := p.here()
	var lower Expr
	if !p.isOp(":") {
		lower = p.namedExprTest()
		if !p.isOp(":") {
			return lower
		}
	}
	p.expectOp(":")
	s := &Slice{Pos: pos, Lower: lower}
	if !p.isOp(":") && !p.isOp("]") && !p.isOp(",") {
		s.Upper = p.test()
	}
	if p.acceptOp(":") {
		if !p.isOp("]") && !p.isOp(",") {
			s.Step = p.test()
		}
	}
	return s
}

func (p *Parser) compFor() []*Comprehension {
	var gens []*Comprehension
	for p.isKw("for") || p.isKw("async") {
		c := &Comprehension{Async: p.acceptKw("async")}
		p.expectKw("for")
		c.Target = p.targetList()
		p.expectKw("in")
		c.Iter = p.orTest()
		for p.isKw("if") {
			p.next()
			c.Ifs = append(c.Ifs, p.testNoCond())
		}
		gens = append(gens, c)
	}
	return gens
}

func (p *Parser) atom() Expr {
	pos := p.here()
	t := p.tok()
	switch t.Kind {
	case NAME:
		switch t.Value {
		case "None":
			p.next()
			return &Constant{Pos: pos, Kind: ConstNone}
		case "True", "False":
			p.next()
			return &Constant{Pos: pos, Kind: ConstBool, Value: t.Value}
		case "yield":
			p.fail("'yield' outside parentheses")
		}
		if IsKeyword(t.Value) {
			p.fail(fmt.Sprintf("invalid syntax: unexpected keyword '%s'", t.Value))
		}
		p.next()
		return &Name{Pos: pos, ID: t.Value}
	case NUMBER:
		p.next()
		return numberConstant(pos, t.Value)
	case STRING:
		return p.strings()
	case OP:
		switch t.Value {
		case "(":
			return p.parenAtom()
		case "[":
			return p.listAtom()
		case "{":
			return p.dictOrSetAtom()
		case "...":
			p.next()
			return &Constant{Pos: pos, Kind: ConstEllipsis}
		}
	}
	p.fail(fmt.Sprintf("invalid syntax: unexpected %s", t))
	return nil
}

func numberConstant(pos Pos, raw string) *Constant {
	c := &Constant{Pos: pos, Kind: ConstInt, Value: raw}
	last := raw[len(raw)-1]
	switch {
	case last == 'j' || last == 'J':
		c.Kind = ConstComplex
	case len(raw) > 1 && raw[0] == '0' && (raw[1] == 'x' || raw[1] == 'X' || raw[1] == 'o' || raw[1] == 'O' || raw[1] == 'b' || raw[1] == 'B'):
		c.Kind = ConstInt
	default:
		for i := 0; i < len(raw); i++ {
			if raw[i] == '.' || raw[i] == 'e' || raw[i] == 'E' {
				c.Kind = ConstFloat
				break
			}
		}
	}
	return c
}

func (p *Parser) parenAtom() Expr {
	pos := p.here()
	p.expectOp("(")
	if p.acceptOp(")") {
		return &Tuple{Pos: pos}
	}
	if p.isKw("yield") {
		y := p.yieldExpr()
		p.expectOp(")")
		return y
	}
	first := p.starOrNamedTest()
	if p.isKw("for") || p.isKw("async") {
		g := &GeneratorExp{Pos: pos, Elt: first, Generators: p.compFor()}
		p.expectOp(")")
		return g
	}
	if !p.isOp(",") {
		p.expectOp(")")
		return first
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp(")") {
			break
		}
		elts = append(elts, p.starOrNamedTest())
	}
	p.expectOp(")")
	return &Tuple{Pos: pos, Elts: elts}
}

func (p *Parser) yieldExpr() Expr {
	pos := p.here()
	p.expectKw("yield")
	y := &Yield{Pos: pos}
	if p.acceptKw("from") {
		y.From = true
		y.Value = p.test()
		return y
	}
	if !p.isOp(")") && !p.atStmtEnd() {
		y.Value = p.testListStarExpr()
	}
	return y
}

func (p *Parser) listAtom() Expr {
	pos := p.here()
	p.expectOp("[")
	if p.acceptOp("]") {
		return &List{Pos: pos}
	}
	first := p.starOrNamedTest()
	if p.isKw("for") || p.isKw("async") {
		c := &ListComp{Pos: pos, Elt: first, Generators: p.compFor()}
		p.expectOp("]")
		return c
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp("]") {
			break
		}
		elts = append(elts, p.starOrNamedTest())
	}
	p.expectOp("]")
	return &List{Pos: pos, Elts: elts}
}

func (p *Parser) dictOrSetAtom() Expr {
	pos := p.here()
	p.expectOp("{")
	if p.acceptOp("}") {
		return &Dict{Pos: pos}
	}
	if p.acceptOp("**") {
		d := &Dict{Pos: pos, Keys: []Expr{nil}, Values: []Expr{p.bitOr()}}
		p.dictRest(d)
		return d
	}
	first := p.starOrNamedTest()
	if p.acceptOp(":") {
		value := p.test()
		if p.isKw("for") || p.isKw("async") {
			c := &DictComp{Pos: pos, Key: first, Value: value, Generators: p.compFor()}
			p.expectOp("}")
			return c
		}
		d := &Dict{Pos: pos, Keys: []Expr{first}, Values: []Expr{value}}
		p.dictRest(d)
		return d
	}
	if p.isKw("for") || p.isKw("async") {
		c := &SetComp{Pos: pos, Elt: first, Generators: p.compFor()}
		p.expectOp("}")
		return c
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp("}") {
			break
		}
		elts = append(elts, p.starOrNamedTest())
	}
	p.expectOp("}")
	return &Set{Pos: pos, Elts: elts}
}

func (p *Parser) dictRest(d *Dict) {
	for p.acceptOp(",") {
		if p.isOp("}") {
			break
		}
		if p.acceptOp("**") {
			d.Keys = append(d.Keys, nil)
			d.Values = append(d.Values, p.bitOr())
			continue
		}
		k := p.test()
		p.expectOp(":")
		d.Keys = append(d.Keys, k)
		d.Values = append(d.Values, p.test())
	}
	p.expectOp("}")
}

// strings joins adjacent string literals. Mixing bytes and text is an error;
// any f-string in the run makes the result a JoinedStr.
func (p *Parser) strings() Expr {
	pos := p.here()
	var parts []Expr
	var text []byte
	isBytes, isF, first := false, false, true
	flush := func() {
		if len(text) > 0 {
			parts = append(parts, &Constant{Pos: pos, Kind: ConstStr, Value: string(text)})
			text = text[:0]
		}
	}
	for p.tok().Kind == STRING {
		t := p.next()
		raw, b, f := prefixFlags(t.Prefix)
		if first {
			isBytes = b
			first = false
		} else if b != isBytes {
			p.fail("cannot mix bytes and nonbytes literals")
		}
		if f {
			isF = true
			flush()
			values, err := parseFString(t, raw)
			if err != nil {
				panic(bailout{err})
			}
			for _, v := range values {
				if c, ok := v.(*Constant); ok {
					text = append(text, c.Value...)
					continue
				}
				flush()
				parts = append(parts, v)
			}
			continue
		}
		decoded, err := decodeString(t.Value, raw, b)
		if err != nil {
			panic(bailout{&SyntaxError{Msg: err.Error(), Line: t.Line, Col: t.Col}})
		}
		text = append(text, decoded...)
	}
	if !isF {
		kind := ConstStr
		if isBytes {
			kind = ConstBytes
		}
		return &Constant{Pos: pos, Kind: kind, Value: string(text)}
	}
	flush()
	return &JoinedStr{Pos: pos, Values: parts}
}

func prefixFlags(prefix string) (raw, bytes, f bool) {
	for _, c := range prefix {
		switch c {
		case 'r':
			raw = true
		case 'b':
			bytes = true
		case 'f':
			f = true
		}
	}
	return raw, bytes, f
}
