package optimize

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/roach88/pyrs/internal/rust"
)

// folder returns the rewrite function of the folding pass.
func (o *Optimizer) folder(s *Stats) func(rust.Expr) rust.Expr {
	return func(e rust.Expr) rust.Expr {
		out := o.fold(e)
		if out != e {
			s.Folded++
		}
		return out
	}
}

func (o *Optimizer) fold(e rust.Expr) rust.Expr {
	switch x := e.(type) {
	case *rust.Paren:
		if isLiteral(x.X) {
			return x.X
		}
	case *rust.Unary:
		switch v := x.X.(type) {
		case *rust.IntLit:
			if x.Op == "-" {
				if r, ok := o.intResult(new(big.Int).Neg(big.NewInt(v.Value)), v.Suffix); ok {
					return r
				}
			}
		case *rust.BoolLit:
			if x.Op == "!" {
				return &rust.BoolLit{Value: !v.Value}
			}
		}
	case *rust.Binary:
		if out := o.foldBinary(x); out != nil {
			return out
		}
	}
	return e
}

func isLiteral(e rust.Expr) bool {
	switch x := e.(type) {
	case *rust.IntLit:
		return x.Value >= 0
	case *rust.BoolLit:
		return true
	}
	return false
}

func (o *Optimizer) foldBinary(b *rust.Binary) rust.Expr {
	if l, ok := b.L.(*rust.BoolLit); ok {
		if r, ok := b.R.(*rust.BoolLit); ok {
			return foldBool(b.Op, l.Value, r.Value)
		}
		return nil
	}
	l, ok := b.L.(*rust.IntLit)
	if !ok {
		return nil
	}
	r, ok := b.R.(*rust.IntLit)
	if !ok {
		return nil
	}
	suffix, ok := unify(l.Suffix, r.Suffix)
	if !ok {
		return nil
	}
	x, y := big.NewInt(l.Value), big.NewInt(r.Value)
	switch b.Op {
	case "==", "!=", "<", ">", "<=", ">=":
		return &rust.BoolLit{Value: compare(b.Op, x.Cmp(y))}
	}
	bits, _ := o.width(suffix)
	z := new(big.Int)
	switch b.Op {
	case "+":
		z.Add(x, y)
	case "-":
		z.Sub(x, y)
	case "*":
		z.Mul(x, y)
	case "/", "%":
		if y.Sign() == 0 {
			return nil
		}
		if b.Op == "/" {
			z.Quo(x, y)
		} else {
			z.Rem(x, y)
		}
	case "&":
		z.And(x, y)
	case "|":
		z.Or(x, y)
	case "^":
		z.Xor(x, y)
	case "<<", ">>":
		if y.Sign() < 0 || y.Int64() >= int64(bits) {
			return nil
		}
		if b.Op == "<<" {
			z.Lsh(x, uint(y.Int64()))
		} else {
			z.Rsh(x, uint(y.Int64()))
		}
	default:
		return nil
	}
	if out, ok := o.intResult(z, suffix); ok {
		return out
	}
	return nil
}

func foldBool(op string, l, r bool) rust.Expr {
	switch op {
	case "&&", "&":
		return &rust.BoolLit{Value: l && r}
	case "||", "|":
		return &rust.BoolLit{Value: l || r}
	case "==":
		return &rust.BoolLit{Value: l == r}
	case "!=", "^":
		return &rust.BoolLit{Value: l != r}
	}
	return nil
}

func compare(op string, c int) bool {
	switch op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	}
	return c >= 0
}

// unify returns the suffix of a literal combining operands with suffixes
// a and b. An unsuffixed literal takes the other operand's type.
func unify(a, b string) (string, bool) {
	switch {
	case a == b:
		return a, true
	case a == "":
		return b, true
	case b == "":
		return a, true
	}
	return "", false
}

// width returns the bit width and signedness of an integer literal with
// the given suffix.
func (o *Optimizer) width(suffix string) (int, bool) {
	switch suffix {
	case "":
		return o.intBits, true
	case "usize":
		return 64, false
	case "isize":
		return 64, true
	}
	if n, err := strconv.Atoi(suffix[1:]); err == nil && n > 0 {
		return n, strings.HasPrefix(suffix, "i")
	}
	return o.intBits, true
}

// intResult returns z as a literal when it fits the type of suffix.
func (o *Optimizer) intResult(z *big.Int, suffix string) (*rust.IntLit, bool) {
	bits, signed := o.width(suffix)
	var lo, hi big.Int
	if signed {
		hi.Lsh(big.NewInt(1), uint(bits-1))
		lo.Neg(&hi)
		hi.Sub(&hi, big.NewInt(1))
	} else {
		hi.Lsh(big.NewInt(1), uint(bits))
		hi.Sub(&hi, big.NewInt(1))
	}
	if z.Cmp(&lo) < 0 || z.Cmp(&hi) > 0 || !z.IsInt64() {
		return nil, false
	}
	return &rust.IntLit{Value: z.Int64(), Suffix: suffix}, true
}
