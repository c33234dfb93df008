package pyast

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const tabSize = 8

type lexer struct {
	src     string
	pos     int
	line    int
	lineOff int // byte offset of the current line start

	tokens  []Token
	indents []int
	open    []Token // unclosed brackets, innermost last
}

// Tokenize splits src into tokens, ending with EOF.
func Tokenize(src string) ([]Token, error) {
	lx := &lexer{src: strings.ReplaceAll(src, "\r\n", "\n"), line: 1, indents: []int{0}}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.tokens, nil
}

func (lx *lexer) col() int {
	return lx.pos - lx.lineOff + 1
}

func (lx *lexer) errorf(msg string) *SyntaxError {
	return &SyntaxError{Msg: msg, Line: lx.line, Col: lx.col()}
}

func (lx *lexer) emit(kind TokenKind, value string, line, col int) {
	lx.tokens = append(lx.tokens, Token{Kind: kind, Value: value, Line: line, Col: col})
}

func (lx *lexer) lastKind() TokenKind {
	if len(lx.tokens) == 0 {
		return NEWLINE
	}
	return lx.tokens[len(lx.tokens)-1].Kind
}

func (lx *lexer) newline() {
	lx.line++
	lx.lineOff = lx.pos
}

func (lx *lexer) run() error {
	atLineStart := true
	for lx.pos < len(lx.src) {
		if atLineStart && len(lx.open) == 0 {
			blank, err := lx.indentation()
			if err != nil {
				return err
			}
			if blank {
				continue
			}
			atLineStart = false
		}
		c := lx.src[lx.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\f':
			lx.pos++
		case c == '#':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.pos++
			}
		case c == '\\':
			if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '\n' {
				lx.pos += 2
				lx.newline()
				continue
			}
			return lx.errorf("unexpected character after line continuation")
		case c == '\n':
			if len(lx.open) == 0 && lx.lastKind() != NEWLINE {
				lx.emit(NEWLINE, "", lx.line, lx.col())
			}
			lx.pos++
			lx.newline()
			atLineStart = true
		case c == '"' || c == '\'':
			if err := lx.str(""); err != nil {
				return err
			}
		case isDigit(c) || (c == '.' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1])):
			lx.number()
		case isIdentStart(lx.src[lx.pos:]):
			line, col := lx.line, lx.col()
			name := lx.ident()
			if lx.pos < len(lx.src) && (lx.src[lx.pos] == '"' || lx.src[lx.pos] == '\'') && isStringPrefix(name) {
				if err := lx.str(strings.ToLower(name)); err != nil {
					return err
				}
				continue
			}
			lx.emit(NAME, name, line, col)
		default:
			if err := lx.operator(); err != nil {
				return err
			}
		}
	}
	if n := len(lx.open); n > 0 {
		b := lx.open[n-1]
		return &SyntaxError{Msg: "'" + b.Value + "' was never closed: unclosed bracket", Line: b.Line, Col: b.Col}
	}
	if lx.lastKind() != NEWLINE {
		lx.emit(NEWLINE, "", lx.line, lx.col())
	}
	for len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		lx.emit(DEDENT, "", lx.line, 1)
	}
	lx.emit(EOF, "", lx.line, lx.col())
	return nil
}

// indentation measures the leading whitespace of a logical line and emits
// INDENT/DEDENT tokens. Blank and comment-only lines report blank.
func (lx *lexer) indentation() (blank bool, err error) {
	width := 0
scan:
	for lx.pos < len(lx.src) {
		switch lx.src[lx.pos] {
		case ' ':
			width++
		case '\t':
			width = (width/tabSize + 1) * tabSize
		case '\f':
			width = 0
		default:
			break scan
		}
		lx.pos++
	}
	if lx.pos >= len(lx.src) {
		return true, nil
	}
	switch lx.src[lx.pos] {
	case '\n':
		lx.pos++
		lx.newline()
		return true, nil
	case '#':
		for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
			lx.pos++
		}
		return true, nil
	}

	top := lx.indents[len(lx.indents)-1]
	switch {
	case width > top:
		lx.indents = append(lx.indents, width)
		lx.emit(INDENT, "", lx.line, 1)
	case width < top:
		for width < lx.indents[len(lx.indents)-1] {
			lx.indents = lx.indents[:len(lx.indents)-1]
			lx.emit(DEDENT, "", lx.line, 1)
		}
		if width != lx.indents[len(lx.indents)-1] {
			return false, lx.errorf("unindent does not match any outer indentation level")
		}
	}
	return false, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ident reads an identifier. Identifiers are NFC normalized so that
// canonically equivalent spellings name the same binding.
func (lx *lexer) ident() string {
	start := lx.pos
	for lx.pos < len(lx.src) {
		r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
		if !isIdentPart(r) {
			break
		}
		lx.pos += size
	}
	return norm.NFC.String(lx.src[start:lx.pos])
}

func isStringPrefix(name string) bool {
	switch strings.ToLower(name) {
	case "r", "u", "b", "f", "br", "rb", "fr", "rf":
		return true
	}
	return false
}

func (lx *lexer) number() {
	start, col := lx.pos, lx.col()
	src := lx.src
	if src[lx.pos] == '0' && lx.pos+1 < len(src) && strings.ContainsRune("xXoObB", rune(src[lx.pos+1])) {
		lx.pos += 2
		for lx.pos < len(src) && (isHexDigit(src[lx.pos]) || src[lx.pos] == '_') {
			lx.pos++
		}
		lx.emit(NUMBER, src[start:lx.pos], lx.line, col)
		return
	}
	digits := func() {
		for lx.pos < len(src) && (isDigit(src[lx.pos]) || src[lx.pos] == '_') {
			lx.pos++
		}
	}
	digits()
	if lx.pos < len(src) && src[lx.pos] == '.' {
		lx.pos++
		digits()
	}
	if lx.pos < len(src) && (src[lx.pos] == 'e' || src[lx.pos] == 'E') {
		save := lx.pos
		lx.pos++
		if lx.pos < len(src) && (src[lx.pos] == '+' || src[lx.pos] == '-') {
			lx.pos++
		}
		if lx.pos < len(src) && isDigit(src[lx.pos]) {
			digits()
		} else {
			lx.pos = save
		}
	}
	if lx.pos < len(src) && (src[lx.pos] == 'j' || src[lx.pos] == 'J') {
		lx.pos++
	}
	lx.emit(NUMBER, src[start:lx.pos], lx.line, col)
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// str reads a string literal starting at the opening quote.
func (lx *lexer) str(prefix string) error {
	line, col := lx.line, lx.col()-len(prefix)
	quote := lx.src[lx.pos]
	triple := strings.HasPrefix(lx.src[lx.pos:], strings.Repeat(string(quote), 3))
	delim := string(quote)
	if triple {
		delim = strings.Repeat(string(quote), 3)
	}
	lx.pos += len(delim)
	start := lx.pos
	for {
		if lx.pos >= len(lx.src) {
			return &SyntaxError{Msg: "unterminated string literal", Line: line, Col: col}
		}
		c := lx.src[lx.pos]
		switch {
		case c == '\\':
			lx.pos++
			if lx.pos < len(lx.src) && lx.src[lx.pos] == '\n' {
				lx.pos++
				lx.newline()
				continue
			}
			lx.pos++
		case c == '\n':
			if !triple {
				return &SyntaxError{Msg: "unterminated string literal", Line: line, Col: col}
			}
			lx.pos++
			lx.newline()
		case strings.HasPrefix(lx.src[lx.pos:], delim):
			body := lx.src[start:lx.pos]
			lx.pos += len(delim)
			lx.tokens = append(lx.tokens, Token{Kind: STRING, Value: body, Prefix: prefix, Line: line, Col: col})
			return nil
		default:
			lx.pos++
		}
	}
}

var closing = map[string]string{"(": ")", "[": "]", "{": "}"}

func (lx *lexer) operator() error {
	rest := lx.src[lx.pos:]
	for _, op := range operators {
		if !strings.HasPrefix(rest, op) {
			continue
		}
		switch op {
		case "(", "[", "{":
			lx.open = append(lx.open, Token{Kind: OP, Value: op, Line: lx.line, Col: lx.col()})
		case ")", "]", "}":
			n := len(lx.open)
			if n == 0 {
				return lx.errorf("unmatched '" + op + "'")
			}
			if want := closing[lx.open[n-1].Value]; want != op {
				return lx.errorf("closing '" + op + "' does not match '" + lx.open[n-1].Value + "'")
			}
			lx.open = lx.open[:n-1]
		}
		lx.emit(OP, op, lx.line, lx.col())
		lx.pos += len(op)
		return nil
	}
	if strings.HasPrefix(rest, "!") {
		return lx.errorf("invalid syntax: '!'")
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return lx.errorf("invalid character " + strconv.QuoteRune(r))
}
