package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/pyrs/internal/ir"
)

func TestBuiltinCatalog(t *testing.T) {
	names := Builtins()
	assert.GreaterOrEqual(t, len(names), 40)
	assert.IsIncreasing(t, names)
	for _, name := range []string{"print", "len", "range", "enumerate", "zip", "sorted", "open", "isinstance"} {
		assert.True(t, IsBuiltin(name), name)
	}
	assert.True(t, IsBuiltin("ValueError"))
	assert.False(t, IsBuiltin("printf"))
}

func TestMethodResult(t *testing.T) {
	ints := ir.Seq{Elem: ir.IntType}
	counts := ir.Map{Key: ir.StrType, Value: ir.IntType}
	tests := []struct {
		name   string
		recv   ir.Type
		method string
		args   []ir.Type
		want   string
	}{
		{"list pop", ints, "pop", nil, "int"},
		{"list append", ints, "append", []ir.Type{ir.IntType}, "None"},
		{"list index", ints, "index", []ir.Type{ir.IntType}, "usize"},
		{"dict get", counts, "get", []ir.Type{ir.StrType}, "Optional[int]"},
		{"dict get default", counts, "get", []ir.Type{ir.StrType, ir.IntType}, "int"},
		{"dict items", counts, "items", nil, "Iterator[tuple[str, int]]"},
		{"set union", ir.Set{Elem: ir.StrType}, "union", nil, "set[str]"},
		{"str split", ir.StrType, "split", nil, "list[str]"},
		{"str find", ir.StrType, "find", []ir.Type{ir.StrType}, "int"},
		{"str count", ir.StrType, "count", []ir.Type{ir.StrType}, "usize"},
		{"file read", ir.Generic{Name: "File"}, "read", nil, "str"},
		{"borrowed receiver", ir.Ref{Inner: ints}, "copy", nil, "list[int]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := methodResult(tt.recv, tt.method, tt.args)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, ok := methodResult(ir.StrType, "append", nil)
	assert.False(t, ok)
}

func TestRangeResult(t *testing.T) {
	lit := ir.IntLit(0)
	n := &ir.Var{Name: "n"}
	c := &ir.Call{Args: []ir.Expr{lit, n}}

	got := rangeResult([]ir.Type{ir.IntType, ir.UsizeType}, c)
	assert.Equal(t, "range[usize]", got.String())

	got = rangeResult([]ir.Type{ir.IntType, ir.IntType}, c)
	assert.Equal(t, "range[int]", got.String())

	neg := &ir.Call{Args: []ir.Expr{ir.IntLit(-1), n}}
	got = rangeResult([]ir.Type{ir.IntType, ir.UsizeType}, neg)
	assert.Equal(t, "range[int]", got.String())
}

func TestIsMutatingMethod(t *testing.T) {
	assert.True(t, IsMutatingMethod(ir.Seq{Elem: ir.IntType}, "append"))
	assert.True(t, IsMutatingMethod(ir.Map{Key: ir.StrType, Value: ir.IntType}, "setdefault"))
	assert.True(t, IsMutatingMethod(ir.Generic{Name: "File"}, "write"))
	assert.False(t, IsMutatingMethod(ir.Seq{Elem: ir.IntType}, "copy"))
	assert.False(t, IsMutatingMethod(ir.StrType, "strip"))
	assert.False(t, IsMutatingMethod(ir.Generic{Name: "Counter"}, "append"))
}
