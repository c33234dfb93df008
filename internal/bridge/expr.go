package bridge

import (
	"strconv"
	"strings"

	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/pyast"
)

var binOps = map[string]ir.BinOp{
	"+": ir.OpAdd, "-": ir.OpSub, "*": ir.OpMul, "/": ir.OpDiv, "//": ir.OpFloorDiv,
	"%": ir.OpMod, "**": ir.OpPow, "&": ir.OpBitAnd, "|": ir.OpBitOr, "^": ir.OpBitXor,
	"<<": ir.OpShl, ">>": ir.OpShr,
}

var cmpOps = map[string]ir.BinOp{
	"==": ir.OpEq, "!=": ir.OpNe, "<": ir.OpLt, "<=": ir.OpLe, ">": ir.OpGt, ">=": ir.OpGe,
	"in": ir.OpIn, "not in": ir.OpNotIn, "is": ir.OpIs, "is not": ir.OpIsNot,
}

var unaryOps = map[string]ir.UnaryOp{
	"-": ir.UNeg, "+": ir.UPos, "not": ir.UNot, "~": ir.UInvert,
}

func (b *Bridge) exprs(es []pyast.Expr) []ir.Expr {
	if len(es) == 0 {
		return nil
	}
	out := make([]ir.Expr, len(es))
	for i, e := range es {
		out[i] = b.expr(e)
	}
	return out
}

func (b *Bridge) expr(e pyast.Expr) ir.Expr {
	base := ir.ExprBase{Loc: irLoc(e.Position())}
	switch x := e.(type) {
	case *pyast.Constant:
		return b.constantExpr(x, base)
	case *pyast.Name:
		return &ir.Var{ExprBase: base, Name: x.ID}
	case *pyast.BinOp:
		op, ok := binOps[x.Op]
		if !ok {
			b.unsupported(x.Pos, "operator %s", x.Op)
		}
		return &ir.Binary{ExprBase: base, Op: op, L: b.expr(x.Left), R: b.expr(x.Right)}
	case *pyast.UnaryOp:
		return &ir.Unary{ExprBase: base, Op: unaryOps[x.Op], X: b.expr(x.Operand)}
	case *pyast.BoolOp:
		op := ir.OpAnd
		if x.Op == "or" {
			op = ir.OpOr
		}
		out := b.expr(x.Values[0])
		for _, v := range x.Values[1:] {
			out = &ir.Binary{ExprBase: base, Op: op, L: out, R: b.expr(v)}
		}
		return out
	case *pyast.Compare:
		return b.compare(x, base)
	case *pyast.Call:
		return b.call(x, base)
	case *pyast.Attribute:
		return &ir.Attribute{ExprBase: base, X: b.expr(x.Value), Name: x.Attr}
	case *pyast.Subscript:
		if s, ok := x.Slice.(*pyast.Slice); ok {
			sl := &ir.Slice{ExprBase: base, X: b.expr(x.Value)}
			if s.Lower != nil {
				sl.Lower = b.expr(s.Lower)
			}
			if s.Upper != nil {
				sl.Upper = b.expr(s.Upper)
			}
			if s.Step != nil {
				sl.Step = b.expr(s.Step)
			}
			return sl
		}
		return &ir.Index{ExprBase: base, X: b.expr(x.Value), Index: b.expr(x.Slice)}
	case *pyast.List:
		b.noStarred(x.Elts)
		return &ir.ListLit{ExprBase: base, Elems: b.exprs(x.Elts)}
	case *pyast.Tuple:
		b.noStarred(x.Elts)
		return &ir.TupleLit{ExprBase: base, Elems: b.exprs(x.Elts)}
	case *pyast.Set:
		b.noStarred(x.Elts)
		return &ir.SetLit{ExprBase: base, Elems: b.exprs(x.Elts)}
	case *pyast.Dict:
		d := &ir.DictLit{ExprBase: base}
		for i, k := range x.Keys {
			if k == nil {
				b.unsupported(x.Pos, "dict unpacking (**)")
			}
			d.Keys = append(d.Keys, b.expr(k))
			d.Values = append(d.Values, b.expr(x.Values[i]))
		}
		return d
	case *pyast.ListComp:
		return &ir.Comprehension{ExprBase: base, Kind: ir.CompList, Elem: b.expr(x.Elt), Gens: b.generators(x.Generators)}
	case *pyast.SetComp:
		return &ir.Comprehension{ExprBase: base, Kind: ir.CompSet, Elem: b.expr(x.Elt), Gens: b.generators(x.Generators)}
	case *pyast.GeneratorExp:
		return &ir.Comprehension{ExprBase: base, Kind: ir.CompGen, Elem: b.expr(x.Elt), Gens: b.generators(x.Generators)}
	case *pyast.DictComp:
		return &ir.Comprehension{ExprBase: base, Kind: ir.CompDict, Key: b.expr(x.Key), Value: b.expr(x.Value), Gens: b.generators(x.Generators)}
	case *pyast.Lambda:
		return b.lambda(x, base)
	case *pyast.IfExp:
		return &ir.Ternary{ExprBase: base, Cond: b.expr(x.Test), Then: b.expr(x.Body), Else: b.expr(x.Orelse)}
	case *pyast.JoinedStr:
		return b.fstring(x, base)
	case *pyast.Await:
		return &ir.Await{ExprBase: base, X: b.expr(x.Value)}
	}
	b.unsupported(e.Position(), "%s", exprName(e))
	return nil
}

func (b *Bridge) noStarred(es []pyast.Expr) {
	for _, e := range es {
		if _, ok := e.(*pyast.Starred); ok {
			b.unsupported(e.Position(), "starred expression")
		}
	}
}

func (b *Bridge) constantExpr(c *pyast.Constant, base ir.ExprBase) ir.Expr {
	switch c.Kind {
	case pyast.ConstInt:
		digits := c.Value
		if len(digits) > 1 && digits[0] == '0' && digits[1] >= '0' && digits[1] <= '9' {
			// "007" is decimal zero-padding; ParseInt with base 0 reads octal.
			digits = strings.TrimLeft(digits, "0_")
			if digits == "" {
				digits = "0"
			}
		}
		v, err := strconv.ParseInt(digits, 0, 64)
		if err != nil {
			b.unsupported(c.Pos, "integer literal %s out of range", c.Value)
		}
		return &ir.Literal{ExprBase: base, Kind: ir.LitInt, Int: v}
	case pyast.ConstFloat:
		raw := strings.ReplaceAll(c.Value, "_", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			b.unsupported(c.Pos, "float literal %s", c.Value)
		}
		return &ir.Literal{ExprBase: base, Kind: ir.LitFloat, Float: v, Str: raw}
	case pyast.ConstStr:
		return &ir.Literal{ExprBase: base, Kind: ir.LitStr, Str: c.Value}
	case pyast.ConstBytes:
		return &ir.Literal{ExprBase: base, Kind: ir.LitBytes, Str: c.Value}
	case pyast.ConstBool:
		return &ir.Literal{ExprBase: base, Kind: ir.LitBool, Bool: c.Value == "True"}
	case pyast.ConstNone:
		return &ir.Literal{ExprBase: base, Kind: ir.LitNone}
	case pyast.ConstComplex:
		b.unsupported(c.Pos, "complex literal")
	}
	b.unsupported(c.Pos, "ellipsis literal")
	return nil
}

// compare lowers a chain "a < b < c" into "a < b and b < c". The middle
// operand is cloned, so it is evaluated once per comparison it takes part in.
func (b *Bridge) compare(x *pyast.Compare, base ir.ExprBase) ir.Expr {
	left := b.expr(x.Left)
	var out ir.Expr
	for i, opText := range x.Ops {
		right := b.expr(x.Comparators[i])
		cmp := &ir.Binary{ExprBase: base, Op: cmpOps[opText], L: left, R: right}
		if out == nil {
			out = cmp
		} else {
			out = &ir.Binary{ExprBase: base, Op: ir.OpAnd, L: out, R: cmp}
		}
		left = ir.CloneExpr(right)
	}
	return out
}

func (b *Bridge) call(x *pyast.Call, base ir.ExprBase) ir.Expr {
	c := &ir.Call{ExprBase: base, Func: b.expr(x.Func)}
	for _, a := range x.Args {
		if _, ok := a.(*pyast.Starred); ok {
			b.unsupported(a.Position(), "argument unpacking (*)")
		}
		c.Args = append(c.Args, b.expr(a))
	}
	for _, k := range x.Keywords {
		if k.Arg == "" {
			b.unsupported(k.Pos, "keyword argument unpacking (**)")
		}
		c.Kwargs = append(c.Kwargs, ir.Keyword{Name: k.Arg, Value: b.expr(k.Value)})
	}
	return c
}

func (b *Bridge) generators(gens []*pyast.Comprehension) []*ir.Generator {
	out := make([]*ir.Generator, len(gens))
	for i, g := range gens {
		if g.Async {
			b.unsupported(g.Iter.Position(), "async comprehension")
		}
		out[i] = &ir.Generator{Target: b.target(g.Target), Iter: b.expr(g.Iter), Ifs: b.exprs(g.Ifs)}
	}
	return out
}

func (b *Bridge) lambda(x *pyast.Lambda, base ir.ExprBase) ir.Expr {
	if x.Args.Vararg != nil || x.Args.Kwarg != nil || len(x.Args.KwOnly) > 0 {
		b.unsupported(x.Pos, "lambda with variadic or keyword-only parameters")
	}
	l := &ir.Lambda{ExprBase: base, Body: b.expr(x.Body)}
	for _, a := range x.Args.Args {
		l.Params = append(l.Params, b.param(a))
	}
	return l
}

// fstring keeps literal and interpolated parts in order. Adjacent literal
// text is already merged by the parser.
func (b *Bridge) fstring(x *pyast.JoinedStr, base ir.ExprBase) ir.Expr {
	f := &ir.FString{ExprBase: base}
	for _, v := range x.Values {
		switch p := v.(type) {
		case *pyast.Constant:
			f.Parts = append(f.Parts, ir.FPart{Lit: p.Value})
		case *pyast.FormattedValue:
			if strings.ContainsAny(p.FormatSpec, "{}") {
				b.unsupported(p.Pos, "nested f-string format spec")
			}
			conv := p.Conversion
			if conv == 'a' {
				conv = 'r'
			}
			f.Parts = append(f.Parts, ir.FPart{X: b.expr(p.Value), Conv: conv, Spec: p.FormatSpec})
		}
	}
	return f
}
