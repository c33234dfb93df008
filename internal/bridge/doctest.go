package bridge

import (
	"strings"

	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/pyast"
)

// doctests extracts ">>> call" / expected-value pairs from a docstring.
// Examples whose call or expected text does not lower are dropped.
func (b *Bridge) doctests(doc string, line int) []ir.Doctest {
	lines := strings.Split(doc, "\n")
	var out []ir.Doctest
	for i := 0; i < len(lines); i++ {
		text := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(text, ">>> ") {
			continue
		}
		src := strings.TrimPrefix(text, ">>> ")
		if i+1 >= len(lines) {
			break
		}
		expected := strings.TrimSpace(lines[i+1])
		if expected == "" || strings.HasPrefix(expected, ">>>") {
			continue
		}
		i++
		call, ok := b.doctestExpr(src)
		if !ok {
			continue
		}
		want, ok := b.doctestExpr(expected)
		if !ok {
			continue
		}
		out = append(out, ir.Doctest{Call: call, Expected: want, Source: src, Line: line + i - 1})
	}
	return out
}

func (b *Bridge) doctestExpr(src string) (e ir.Expr, ok bool) {
	parsed, err := pyast.ParseExpr(src)
	if err != nil {
		return nil, false
	}
	defer func() {
		if r := recover(); r != nil {
			if _, isAbort := r.(abort); !isAbort {
				panic(r)
			}
			e, ok = nil, false
		}
	}()
	return b.expr(parsed), true
}
