package optimize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/rust"
)

func bin(op string, l, r rust.Expr) *rust.Binary { return &rust.Binary{Op: op, L: l, R: r} }

func i64() rust.Type { return rust.Named("i64") }

func body(stmts ...rust.Stmt) *rust.Fn {
	return &rust.Fn{Name: "f", Body: &rust.Block{Stmts: stmts}}
}

func printed(fn *rust.Fn) string {
	code, _ := rust.Print(&rust.File{Items: []rust.Item{fn}})
	return code
}

func TestFoldArithmetic(t *testing.T) {
	tests := []struct {
		name string
		expr rust.Expr
		want string
	}{
		{"add", bin("+", rust.Int(2), rust.Int(3)), "5"},
		{"nested", bin("*", bin("+", rust.Int(1), rust.Int(2)), rust.Int(4)), "12"},
		{"truncating div", bin("/", rust.Int(-7), rust.Int(2)), "-3"},
		{"rem sign", bin("%", rust.Int(-7), rust.Int(2)), "-1"},
		{"compare", bin("<", rust.Int(1), rust.Int(2)), "true"},
		{"bool and", bin("&&", &rust.BoolLit{Value: true}, &rust.BoolLit{Value: false}), "false"},
		{"not", &rust.Unary{Op: "!", X: &rust.BoolLit{Value: false}}, "true"},
		{"shift", bin("<<", rust.Int(1), rust.Int(10)), "1024"},
		{"suffix kept", bin("+", &rust.IntLit{Value: 1, Suffix: "usize"}, rust.Int(2)), "3usize"},
		{"div by zero kept", bin("/", rust.Int(1), rust.Int(0)), "1 / 0"},
		{"overflow kept", bin("+", rust.Int(math.MaxInt64), rust.Int(1)), "9223372036854775807 + 1"},
		{"mixed suffix kept", bin("+", &rust.IntLit{Value: 1, Suffix: "u8"}, &rust.IntLit{Value: 1, Suffix: "i32"}), "1u8 + 1i32"},
		{"u8 overflow kept", bin("*", &rust.IntLit{Value: 16, Suffix: "u8"}, rust.Int(16)), "16u8 * 16"},
		{"shift too far kept", bin("<<", rust.Int(1), rust.Int(64)), "1 << 64"},
		{"variable kept", bin("+", rust.Id("x"), rust.Int(1)), "x + 1"},
	}
	o := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Stats
			got := rust.Rewrite(tt.expr, o.folder(&s))
			assert.Equal(t, tt.want, rust.PrintExpr(got))
		})
	}
}

func TestFoldRespectsIntBits(t *testing.T) {
	o := New(WithIntBits(32))
	var s Stats
	got := rust.Rewrite(bin("*", rust.Int(1<<20), rust.Int(1<<20)), o.folder(&s))
	assert.Equal(t, "1048576 * 1048576", rust.PrintExpr(got))
	assert.Zero(t, s.Folded)
}

func TestPropagateSingleAssignment(t *testing.T) {
	fn := body(
		&rust.Let{Name: "n", Type: i64(), Value: rust.Int(4)},
		&rust.Return{Value: bin("*", rust.Id("n"), rust.Int(2))},
	)
	st := New().Fn(fn)
	require.Len(t, fn.Body.Stmts, 1)
	assert.Equal(t, "8", rust.PrintExpr(fn.Body.Stmts[0].(*rust.Return).Value))
	assert.Equal(t, 1, st.Propagated)
	assert.Equal(t, 1, st.Removed)
}

func TestPropagateSkipsReassigned(t *testing.T) {
	fn := body(
		&rust.Let{Name: "n", Mut: true, Type: i64(), Value: rust.Int(0)},
		&rust.ExprStmt{X: &rust.Loop{Body: &rust.Block{Stmts: []rust.Stmt{
			&rust.Assign{Target: rust.Id("n"), Op: "+=", Value: rust.Int(1)},
		}}}},
		&rust.Return{Value: rust.Id("n")},
	)
	st := New().Fn(fn)
	assert.Zero(t, st.Propagated)
	assert.Len(t, fn.Body.Stmts, 3)
}

func TestPropagateSkipsShadowedName(t *testing.T) {
	fn := body(
		&rust.Let{Name: "n", Type: i64(), Value: rust.Int(1)},
		&rust.ExprStmt{X: &rust.For{Pattern: "n", Iter: &rust.Range{Lo: rust.Int(0), Hi: rust.Int(3)}, Body: &rust.Block{
			Stmts: []rust.Stmt{&rust.ExprStmt{X: rust.CallPath("use_it", rust.Id("n"))}},
		}}},
	)
	st := New().Fn(fn)
	assert.Zero(t, st.Propagated)
}

func TestPropagateKeepsLetNamedByFormatString(t *testing.T) {
	fn := body(
		&rust.Let{Name: "n", Type: i64(), Value: rust.Int(3)},
		&rust.ExprStmt{X: &rust.Macro{Name: "println", Args: []rust.Expr{rust.Str("{n} {}"), rust.Id("n")}}},
	)
	New().Fn(fn)
	code := printed(fn)
	assert.Contains(t, code, "let n: i64 = 3;")
	assert.Contains(t, code, `println!("{n} {}", 3);`)
}

func TestPropagateSuffixesMethodReceiver(t *testing.T) {
	fn := body(
		&rust.Let{Name: "n", Type: i64(), Value: rust.Int(3)},
		&rust.Return{Value: rust.Method(rust.Id("n"), "pow", rust.Int(2))},
	)
	New().Fn(fn)
	assert.Contains(t, printed(fn), "return 3i64.pow(2);")
}

func TestEliminateCommonSubexpression(t *testing.T) {
	ab := func() rust.Expr { return bin("*", rust.Id("a"), rust.Id("b")) }
	fn := &rust.Fn{
		Name:   "f",
		Params: []rust.Param{{Name: "a", Type: i64()}, {Name: "b", Type: i64()}},
		Body: &rust.Block{Stmts: []rust.Stmt{
			&rust.Return{Value: bin("/", bin("+", ab(), rust.Int(1)), bin("-", ab(), rust.Int(1)))},
		}},
	}
	st := New().Fn(fn)
	assert.Equal(t, 1, st.Hoisted)
	code := printed(fn)
	assert.Contains(t, code, "let __cse0 = a * b;")
	assert.Contains(t, code, "return (__cse0 + 1) / (__cse0 - 1);")
}

func TestEliminateSkipsMutableOperands(t *testing.T) {
	ab := func() rust.Expr { return bin("*", rust.Id("a"), rust.Id("b")) }
	fn := &rust.Fn{
		Name:   "f",
		Params: []rust.Param{{Name: "a", Type: i64(), Mut: true}, {Name: "b", Type: i64()}},
		Body: &rust.Block{Stmts: []rust.Stmt{
			&rust.Return{Value: bin("+", ab(), ab())},
		}},
	}
	st := New().Fn(fn)
	assert.Zero(t, st.Hoisted)
}

func TestEliminateSkipsShortCircuitOperand(t *testing.T) {
	ab := func() rust.Expr { return bin("*", rust.Id("a"), rust.Id("b")) }
	fn := &rust.Fn{
		Name:   "f",
		Params: []rust.Param{{Name: "a", Type: i64()}, {Name: "b", Type: i64()}},
		Body: &rust.Block{Stmts: []rust.Stmt{
			&rust.Return{Value: bin("&&", bin(">", ab(), rust.Int(0)), bin("<", ab(), rust.Int(9)))},
		}},
	}
	st := New().Fn(fn)
	assert.Zero(t, st.Hoisted)
}

func TestOptimizeIsIdempotent(t *testing.T) {
	build := func() *rust.Fn {
		return &rust.Fn{
			Name:   "f",
			Params: []rust.Param{{Name: "a", Type: i64()}},
			Body: &rust.Block{Stmts: []rust.Stmt{
				&rust.Let{Name: "k", Type: i64(), Value: bin("+", rust.Int(2), rust.Int(3))},
				&rust.Return{Value: bin("+", bin("*", rust.Id("a"), rust.Id("k")), bin("*", rust.Id("a"), rust.Id("k")))},
			}},
		}
	}
	fn := build()
	New().Fn(fn)
	once := printed(fn)
	st := New().Fn(fn)
	assert.False(t, st.Changed())
	assert.Equal(t, once, printed(fn))
	assert.Contains(t, once, "let __cse0 = a * 5;")
}

func TestFileFoldsConstants(t *testing.T) {
	f := &rust.File{Items: []rust.Item{
		&rust.Const{Name: "LIMIT", Type: i64(), Value: bin("*", rust.Int(60), rust.Int(60))},
	}}
	st := New().File(f)
	assert.Equal(t, 1, st.Folded)
	assert.Equal(t, "3600", rust.PrintExpr(f.Items[0].(*rust.Const).Value))
}
