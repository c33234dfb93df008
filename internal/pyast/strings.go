package pyast

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// decodeString resolves backslash escapes in a literal body.
// Raw bodies are returned unchanged.
func decodeString(body string, raw, bytes bool) (string, error) {
	if raw || !strings.Contains(body, `\`) {
		return body, nil
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := body[i]; e {
		case '\n':
			// line continuation inside the literal
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(body) && j < i+3 && body[j] >= '0' && body[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(body[i:j], 8, 32)
			writeCode(&b, rune(v), bytes)
			i = j - 1
		case 'x':
			v, err := hexEscape(body, i+1, 2)
			if err != nil {
				return "", err
			}
			writeCode(&b, rune(v), bytes)
			i += 2
		case 'u', 'U':
			if bytes {
				b.WriteByte('\\')
				b.WriteByte(e)
				continue
			}
			n := 4
			if e == 'U' {
				n = 8
			}
			v, err := hexEscape(body, i+1, n)
			if err != nil {
				return "", err
			}
			if !utf8.ValidRune(rune(v)) {
				return "", fmt.Errorf("invalid unicode escape \\%c%s", e, body[i+1:i+1+n])
			}
			b.WriteRune(rune(v))
			i += n
		default:
			// Unknown escapes are kept verbatim.
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String(), nil
}

func hexEscape(body string, start, n int) (uint64, error) {
	if start+n > len(body) {
		return 0, fmt.Errorf("truncated \\x escape")
	}
	v, err := strconv.ParseUint(body[start:start+n], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid escape \\%s", body[start-1:start+n])
	}
	return v, nil
}

func writeCode(b *strings.Builder, r rune, bytes bool) {
	if bytes || r < utf8.RuneSelf {
		b.WriteByte(byte(r))
		return
	}
	b.WriteRune(r)
}

// parseFString splits an f-string body into literal Constants and
// FormattedValues.
func parseFString(t Token, raw bool) ([]Expr, *SyntaxError) {
	body := t.Value
	pos := Pos{Line: t.Line, Col: t.Col}
	fail := func(msg string) *SyntaxError {
		return &SyntaxError{Msg: "f-string: " + msg, Line: t.Line, Col: t.Col}
	}

	var out []Expr
	var lit strings.Builder
	flush := func() error {
		if lit.Len() == 0 {
			return nil
		}
		s, err := decodeString(lit.String(), raw, false)
		if err != nil {
			return err
		}
		out = append(out, &Constant{Pos: pos, Kind: ConstStr, Value: s})
		lit.Reset()
		return nil
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '{' && i+1 < len(body) && body[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(body) && body[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '}':
			return nil, fail("single '}' is not allowed")
		case c == '{':
			end := matchingBrace(body, i)
			if end < 0 {
				return nil, fail("expecting '}'")
			}
			if err := flush(); err != nil {
				return nil, fail(err.Error())
			}
			fields, serr := formattedField(body[i+1:end], pos)
			if serr != nil {
				return nil, serr
			}
			out = append(out, fields...)
			i = end
		default:
			lit.WriteByte(c)
		}
	}
	if err := flush(); err != nil {
		return nil, fail(err.Error())
	}
	return out, nil
}

// matchingBrace returns the index of the '}' closing the field opened at
// open, skipping nested brackets and quoted strings.
func matchingBrace(body string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(body); i++ {
		c := body[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// formattedField parses "expr!conv:spec" and the "expr=" debug form.
func formattedField(field string, pos Pos) ([]Expr, *SyntaxError) {
	exprText, conv, spec := splitField(field)
	var out []Expr

	trimmed := strings.TrimRight(exprText, " ")
	if strings.HasSuffix(trimmed, "=") && !strings.HasSuffix(trimmed, "==") &&
		!strings.HasSuffix(trimmed, "!=") && !strings.HasSuffix(trimmed, "<=") &&
		!strings.HasSuffix(trimmed, ">=") {
		out = append(out, &Constant{Pos: pos, Kind: ConstStr, Value: exprText})
		exprText = strings.TrimSuffix(trimmed, "=")
		if conv == 0 && spec == "" {
			conv = 'r'
		}
	}

	if strings.TrimSpace(exprText) == "" {
		return nil, &SyntaxError{Msg: "f-string: empty expression not allowed", Line: pos.Line, Col: pos.Col}
	}
	e, err := ParseExpr(strings.TrimSpace(exprText))
	if err != nil {
		if se, ok := AsSyntaxError(err); ok {
			return nil, &SyntaxError{Msg: "f-string: " + se.Msg, Line: pos.Line, Col: pos.Col}
		}
		return nil, &SyntaxError{Msg: "f-string: " + err.Error(), Line: pos.Line, Col: pos.Col}
	}
	shiftPositions(e, pos)
	out = append(out, &FormattedValue{Pos: pos, Value: e, Conversion: conv, FormatSpec: spec})
	return out, nil
}

// splitField separates the expression from a top-level "!conv" and ":spec".
func splitField(field string) (expr string, conv byte, spec string) {
	depth := 0
	var quote byte
	for i := 0; i < len(field); i++ {
		c := field[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case '!':
			if depth == 0 && i+1 < len(field) && field[i+1] != '=' {
				expr = field[:i]
				rest := field[i+1:]
				conv = rest[0]
				if j := strings.IndexByte(rest, ':'); j >= 0 {
					spec = rest[j+1:]
				}
				return expr, conv, spec
			}
		case ':':
			if depth == 0 {
				return field[:i], 0, field[i+1:]
			}
		}
	}
	return field, 0, ""
}

// shiftPositions rebases positions of a field expression, which was parsed
// from its own text, onto the f-string's position.
func shiftPositions(e Expr, base Pos) {
	WalkExpr(e, func(x Expr) {
		setPos(x, base)
	})
}

func setPos(e Expr, base Pos) {
	switch x := e.(type) {
	case *Name:
		x.Pos = base
	case *Constant:
		x.Pos = base
	case *Attribute:
		x.Pos = base
	case *Call:
		x.Pos = base
	case *BinOp:
		x.Pos = base
	case *Subscript:
		x.Pos = base
	case *Compare:
		x.Pos = base
	case *UnaryOp:
		x.Pos = base
	case *BoolOp:
		x.Pos = base
	case *IfExp:
		x.Pos = base
	}
}
