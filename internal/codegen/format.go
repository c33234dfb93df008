package codegen

import (
	"strings"
	"unicode"

	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/rust"
	"github.com/roach88/pyrs/internal/target"
)

// fstring lowers an f-string to format!.
func (l *lowerer) fstring(f *ir.FString) rust.Expr {
	var (
		tmpl  strings.Builder
		plain strings.Builder
		args  []rust.Expr
		holes int
	)
	for _, p := range f.Parts {
		if p.X == nil {
			tmpl.WriteString(escapeBraces(p.Lit))
			plain.WriteString(p.Lit)
			continue
		}
		holes++
		ph, arg := l.formatArg(p.X, p.Conv, p.Spec)
		tmpl.WriteString(ph)
		if arg != nil {
			args = append(args, arg)
		}
	}
	if holes == 0 {
		return rust.Method(rust.Str(plain.String()), "to_string")
	}
	return &rust.Macro{Name: "format", Args: append([]rust.Expr{rust.Str(tmpl.String())}, args...)}
}

func escapeBraces(s string) string {
	return strings.NewReplacer("{", "{{", "}", "}}").Replace(s)
}

// formatArg returns the placeholder and argument that render x the way
// Python's format() does with conversion conv and format spec. A nil
// argument means the placeholder captures a local by name.
func (l *lowerer) formatArg(x ir.Expr, conv byte, spec string) (string, rust.Expr) {
	rs, ok := translateSpec(spec)
	if !ok {
		return "{}", l.unsupported(l.fn, "format spec "+spec, "", x.Base().Loc)
	}
	if rs != "" {
		rs = ":" + rs
	}
	t := ir.Deref(ir.EffectiveType(x))
	debug := false
	arg := l.place(x)
	switch tt := t.(type) {
	case ir.Prim:
		switch tt.Kind {
		case ir.KindBool:
			arg = &rust.If{
				Cond: arg,
				Then: &rust.Block{Tail: rust.Str("True")},
				Else: &rust.BlockExpr{Block: &rust.Block{Tail: rust.Str("False")}},
			}
			return "{" + rs + "}", arg
		case ir.KindFloat:
			debug = !strings.ContainsAny(rs, ".eExXob")
		case ir.KindUnit:
			return "None", nil
		}
	case ir.Str:
		if conv == 'r' {
			return "'{" + rs + "}'", arg
		}
	case ir.Generic:
		switch {
		case tt.Name == ir.ExceptionClass || l.isException(tt.Name):
			arg = &rust.Field{X: arg, Name: "message"}
			return "{" + rs + "}", arg
		case l.display[tt.Name]:
		default:
			debug = true
		}
	default:
		debug = true
	}
	if conv == 'r' && !ir.IsStr(t) {
		debug = true
	}
	arg = l.inlineOr(x, arg)
	if debug {
		if rs == "" {
			rs = ":"
		}
		rs += "?"
	}
	if arg == nil {
		return "{" + inlineName(x) + rs + "}", nil
	}
	return "{" + rs + "}", arg
}

// inlineOr returns nil when x is a plain local the placeholder can
// capture by name, and arg otherwise.
func (l *lowerer) inlineOr(x ir.Expr, arg rust.Expr) rust.Expr {
	if inlineName(x) != "" && l.profile.Supports(target.FeatureInlineFormatArgs) && !l.isSelfExpr(x) {
		return nil
	}
	return arg
}

func inlineName(x ir.Expr) string {
	v, ok := x.(*ir.Var)
	if !ok || v.Binding == nil || x.Base().Conv != nil {
		return ""
	}
	if v.Ref != ir.RefLocal && v.Ref != ir.RefUnresolved {
		return ""
	}
	if ident(v.Name) != v.Name {
		return ""
	}
	return v.Name
}

func (l *lowerer) isSelfExpr(x ir.Expr) bool {
	v, ok := x.(*ir.Var)
	return ok && l.isSelf(v)
}

func (u *unit) isException(name string) bool {
	c := u.module.Class(name)
	return c != nil && c.Exception
}

// str lowers str(x) to an owned String.
func (l *lowerer) str(x ir.Expr) rust.Expr {
	t := ir.Deref(ir.EffectiveType(x))
	if ir.IsStr(t) {
		return l.value(x)
	}
	if ir.IsInteger(t) || l.displayable(t) {
		return rust.Method(l.place(x), "to_string")
	}
	ph, arg := l.formatArg(x, 0, "")
	if arg == nil {
		return &rust.Macro{Name: "format", Args: []rust.Expr{rust.Str(ph)}}
	}
	if ph == "{}" {
		if _, isLit := arg.(*rust.If); isLit {
			return rust.Method(&rust.Paren{X: arg}, "to_string")
		}
	}
	return &rust.Macro{Name: "format", Args: []rust.Expr{rust.Str(ph), arg}}
}

func (l *lowerer) displayable(t ir.Type) bool {
	g, ok := t.(ir.Generic)
	return ok && l.display[g.Name]
}

// translateSpec converts a Python format spec to a Rust one. Grouping,
// space signs, = alignment and the g, n and % types have no counterpart.
func translateSpec(spec string) (string, bool) {
	if spec == "" {
		return "", true
	}
	r := []rune(spec)
	var out strings.Builder
	i := 0
	isAlign := func(c rune) bool { return c == '<' || c == '>' || c == '^' || c == '=' }
	switch {
	case len(r) >= 2 && isAlign(r[1]):
		if r[1] == '=' {
			return "", false
		}
		out.WriteRune(r[0])
		out.WriteRune(r[1])
		i = 2
	case isAlign(r[0]):
		if r[0] == '=' {
			return "", false
		}
		out.WriteRune(r[0])
		i = 1
	}
	if i < len(r) && (r[i] == '+' || r[i] == '-' || r[i] == ' ') {
		if r[i] == ' ' {
			return "", false
		}
		if r[i] == '+' {
			out.WriteRune('+')
		}
		i++
	}
	if i < len(r) && r[i] == '#' {
		out.WriteRune('#')
		i++
	}
	if i < len(r) && r[i] == '0' {
		out.WriteRune('0')
		i++
	}
	for i < len(r) && unicode.IsDigit(r[i]) {
		out.WriteRune(r[i])
		i++
	}
	if i < len(r) && (r[i] == ',' || r[i] == '_') {
		return "", false
	}
	precision := false
	if i < len(r) && r[i] == '.' {
		out.WriteRune('.')
		i++
		for i < len(r) && unicode.IsDigit(r[i]) {
			out.WriteRune(r[i])
			i++
			precision = true
		}
		if !precision {
			return "", false
		}
	}
	switch kind := string(r[i:]); kind {
	case "", "d", "s":
	case "f", "F":
		if !precision {
			out.WriteString(".6")
		}
	case "e", "E", "x", "X", "o", "b":
		out.WriteString(kind)
	default:
		return "", false
	}
	return out.String(), true
}
