package pyast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeIndentation(t *testing.T) {
	src := "def f(x):\n    if x:\n        return 1\n    return 2\n"
	toks, err := Tokenize(src)
	require.NoError(t, err)

	assert.Equal(t, []TokenKind{
		NAME, NAME, OP, NAME, OP, OP, NEWLINE,
		INDENT, NAME, NAME, OP, NEWLINE,
		INDENT, NAME, NUMBER, NEWLINE,
		DEDENT, NAME, NUMBER, NEWLINE,
		DEDENT, EOF,
	}, kinds(toks))
}

func TestTokenizeSkipsBlankAndCommentLines(t *testing.T) {
	src := "x = 1  # one\n\n    # indented comment\ny = 2\n"
	toks, err := Tokenize(src)
	require.NoError(t, err)
	assert.Equal(t, []TokenKind{NAME, OP, NUMBER, NEWLINE, NAME, OP, NUMBER, NEWLINE, EOF}, kinds(toks))
}

func TestTokenizeBracketsSuppressNewlines(t *testing.T) {
	src := "xs = [\n    1,\n    2,\n]\n"
	toks, err := Tokenize(src)
	require.NoError(t, err)
	assert.NotContains(t, kinds(toks), INDENT)
	assert.Equal(t, 1, countKind(toks, NEWLINE))
}

func countKind(toks []Token, k TokenKind) int {
	n := 0
	for _, t := range toks {
		if t.Kind == k {
			n++
		}
	}
	return n
}

func TestTokenizeStringsAndNumbers(t *testing.T) {
	toks, err := Tokenize(`a = f"x{y}" + r'\d' + b"z" + 0x1F + 1_000 + 2.5e3` + "\n")
	require.NoError(t, err)

	var strs, nums []Token
	for _, tk := range toks {
		switch tk.Kind {
		case STRING:
			strs = append(strs, tk)
		case NUMBER:
			nums = append(nums, tk)
		}
	}
	require.Len(t, strs, 3)
	assert.Equal(t, "f", strs[0].Prefix)
	assert.Equal(t, "x{y}", strs[0].Value)
	assert.Equal(t, "r", strs[1].Prefix)
	assert.Equal(t, `\d`, strs[1].Value)
	assert.Equal(t, "b", strs[2].Prefix)

	require.Len(t, nums, 3)
	assert.Equal(t, "0x1F", nums[0].Value)
	assert.Equal(t, "1_000", nums[1].Value)
	assert.Equal(t, "2.5e3", nums[2].Value)
}

func TestTokenizeTripleQuotedSpansLines(t *testing.T) {
	toks, err := Tokenize("s = \"\"\"a\nb\"\"\"\nt = 1\n")
	require.NoError(t, err)
	assert.Equal(t, "a\nb", toks[2].Value)
	assert.Equal(t, 3, toks[4].Line, "line counting continues after the literal")
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"unterminated", "s = 'abc\n", "unterminated string"},
		{"bad dedent", "if x:\n        a = 1\n    b = 2\n", "unindent does not match"},
		{"unclosed bracket", "x = (1,\n", "unclosed bracket"},
		{"unmatched", "x = 1)\n", "unmatched"},
		{"mismatched", "x = [1)\n", "does not match '['"},
		{"bad char", "x = 1 $ 2\n", "invalid character"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestTokenizeUnclosedBracketReportsOpening(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		line, col int
		bracket   string
	}{
		{"parameter list", "def f(:\n    pass\n", 1, 6, "("},
		{"innermost wins", "x = [1,\n  (2,\n  3\n", 2, 3, "("},
		{"closed inner", "x = {1: (2)\n", 1, 5, "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.src)
			require.Error(t, err)
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.line, se.Line)
			assert.Equal(t, tt.col, se.Col)
			assert.Contains(t, se.Msg, "'"+tt.bracket+"' was never closed")
		})
	}
}
