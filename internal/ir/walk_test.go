package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkBodyVisitsNestedBlocks(t *testing.T) {
	body := []Stmt{
		&Assign{Targets: []Expr{&Var{Name: "x"}}, Value: IntLit(0)},
		&For{
			Target: &Var{Name: "i"},
			Iter:   &Call{Func: &Var{Name: "range"}, Args: []Expr{IntLit(3)}},
			Body: []Stmt{
				&If{Cond: &Binary{Op: OpGt, L: &Var{Name: "i"}, R: IntLit(1)},
					Then: []Stmt{&ExprStmt{X: &Call{Func: &Var{Name: "print"}, Args: []Expr{&Var{Name: "x"}}}}}},
			},
		},
	}

	var names []string
	WalkBody(body, func(e Expr) bool {
		if v, ok := e.(*Var); ok {
			names = append(names, v.Name)
		}
		return true
	})
	assert.Equal(t, []string{"x", "range", "i", "i", "print", "x"}, names)
}

func TestCloneExprIsDeep(t *testing.T) {
	b := &Binding{Name: "x"}
	orig := &Binary{Op: OpAdd, L: &Var{Name: "x", Binding: b, LastUse: true}, R: IntLit(1)}
	c, ok := CloneExpr(orig).(*Binary)
	require.True(t, ok)

	c.R.(*Literal).Int = 5
	assert.Equal(t, int64(1), orig.R.(*Literal).Int)
	assert.Same(t, b, c.L.(*Var).Binding, "bindings are shared")
	assert.False(t, c.L.(*Var).LastUse, "flow flags are not copied")
}

func TestTargetVarsFlattensTuples(t *testing.T) {
	target := &TupleLit{Elems: []Expr{
		&Var{Name: "a"},
		&TupleLit{Elems: []Expr{&Var{Name: "b"}, &Index{X: &Var{Name: "d"}, Index: IntLit(0)}}},
	}}
	vars := TargetVars(target)
	require.Len(t, vars, 2)
	assert.Equal(t, "a", vars[0].Name)
	assert.Equal(t, "b", vars[1].Name)
}

func TestTerminates(t *testing.T) {
	ret := &Return{Value: IntLit(1)}
	loopTrue := func(body ...Stmt) *While {
		return &While{Cond: BoolLit(true), Body: body}
	}
	tests := []struct {
		name string
		body []Stmt
		want bool
	}{
		{"empty", nil, false},
		{"return", []Stmt{ret}, true},
		{"raise", []Stmt{&Raise{Kind: "ValueError"}}, true},
		{"if without else", []Stmt{&If{Cond: BoolLit(true), Then: []Stmt{ret}}}, false},
		{"if both branches", []Stmt{&If{Cond: BoolLit(true), Then: []Stmt{ret}, Else: []Stmt{ret}}}, true},
		{"while true", []Stmt{loopTrue(&ExprStmt{X: IntLit(0)})}, true},
		{"while true with break", []Stmt{loopTrue(&Break{})}, false},
		{"nested loop break", []Stmt{loopTrue(&While{Cond: BoolLit(true), Body: []Stmt{&Break{}}})}, true},
		{"plain expression", []Stmt{&ExprStmt{X: IntLit(0)}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Terminates(tt.body))
		})
	}
}
