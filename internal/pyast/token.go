package pyast

import "fmt"

// TokenKind is the lexical class of a token.
type TokenKind int

const (
	EOF TokenKind = iota
	NEWLINE
	INDENT
	DEDENT
	NAME
	NUMBER
	STRING
	OP
)

var tokenNames = map[TokenKind]string{
	EOF:     "EOF",
	NEWLINE: "NEWLINE",
	INDENT:  "INDENT",
	DEDENT:  "DEDENT",
	NAME:    "NAME",
	NUMBER:  "NUMBER",
	STRING:  "STRING",
	OP:      "OP",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is one lexical token.
//
// For STRING tokens Value holds the body between the quotes, undecoded, and
// Prefix the lowercased string prefix ("", "r", "b", "f", "rb", "fr", ...).
type Token struct {
	Kind   TokenKind
	Value  string
	Prefix string
	Line   int
	Col    int
}

func (t Token) String() string {
	switch t.Kind {
	case NAME, NUMBER, OP:
		return fmt.Sprintf("%s %q", t.Kind, t.Value)
	case STRING:
		return fmt.Sprintf("STRING %s%q", t.Prefix, t.Value)
	default:
		return t.Kind.String()
	}
}

// keywords are the reserved words of the language.
var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// IsKeyword reports whether name is reserved.
func IsKeyword(name string) bool {
	return keywords[name]
}

// operators lists punctuation longest first so the lexer can match greedily.
var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"->", ":=", "**", "//", "<<", ">>", "<=", ">=", "==", "!=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
	"+", "-", "*", "/", "%", "@", "&", "|", "^", "~", "<", ">",
	"(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "=",
}

// SyntaxError reports source text the lexer or parser could not read.
type SyntaxError struct {
	Msg  string
	Line int
	Col  int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Col, e.Msg)
}
