package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/pyrs/internal/ir"
)

func TestUnify(t *testing.T) {
	tests := []struct {
		name string
		a, b ir.Type
		want string
		ok   bool
	}{
		{"identical", ir.IntType, ir.IntType, "int", true},
		{"unknown left", ir.Unresolved, ir.StrType, "str", true},
		{"unknown right", ir.BoolType, nil, "bool", true},
		{"int usize", ir.IntType, ir.UsizeType, "int", true},
		{"int float", ir.IntType, ir.FloatType, "float", true},
		{"float int", ir.FloatType, ir.IntType, "float", true},
		{"usize float", ir.UsizeType, ir.FloatType, "float", true},
		{"containers differing in width", ir.Seq{Elem: ir.UsizeType}, ir.Seq{Elem: ir.IntType}, "list[int]", true},
		{"optional absorbs", ir.Optional{Inner: ir.IntType}, ir.IntType, "Optional[int]", true},
		{"open optional", ir.Optional{Inner: ir.Unresolved}, ir.StrType, "Optional[str]", true},
		{"optional right", ir.StrType, ir.Optional{Inner: ir.Unresolved}, "Optional[str]", true},
		{"seq elementwise", ir.Seq{Elem: ir.Unresolved}, ir.Seq{Elem: ir.IntType}, "list[int]", true},
		{"map elementwise", ir.Map{Key: ir.StrType, Value: ir.Unresolved}, ir.Map{Key: ir.Unresolved, Value: ir.FloatType}, "dict[str, float]", true},
		{"tuple", ir.Tuple{Elems: []ir.Type{ir.IntType, ir.Unresolved}}, ir.Tuple{Elems: []ir.Type{ir.IntType, ir.StrType}}, "tuple[int, str]", true},
		{"ref dereferenced", ir.Ref{Inner: ir.StrType}, ir.StrType, "str", true},
		{"any is terminal", ir.AnyType, ir.IntType, "Any", true},
		{"prim conflict", ir.IntType, ir.StrType, "Any", false},
		{"bool int conflict", ir.BoolType, ir.IntType, "Any", false},
		{"tuple arity", ir.Tuple{Elems: []ir.Type{ir.IntType}}, ir.Tuple{Elems: []ir.Type{ir.IntType, ir.IntType}}, "Any", false},
		{"class names", ir.Generic{Name: "A"}, ir.Generic{Name: "B"}, "Any", false},
		{"seq vs set", ir.Seq{Elem: ir.IntType}, ir.Set{Elem: ir.IntType}, "Any", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Unify(tt.a, tt.b)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestUnifyIsSymmetric(t *testing.T) {
	types := []ir.Type{
		ir.IntType, ir.UsizeType, ir.FloatType, ir.StrType, ir.Unresolved,
		ir.Optional{Inner: ir.IntType}, ir.Seq{Elem: ir.Unresolved}, ir.Seq{Elem: ir.FloatType},
	}
	for _, a := range types {
		for _, b := range types {
			ab, okAB := Unify(a, b)
			ba, okBA := Unify(b, a)
			assert.True(t, ir.Equal(ab, ba), "%s vs %s", a, b)
			assert.Equal(t, okAB, okBA, "%s vs %s", a, b)
		}
	}
}

func TestUnifyAll(t *testing.T) {
	got, ok := unifyAll([]ir.Type{ir.IntType, ir.UsizeType, ir.IntType})
	assert.True(t, ok)
	assert.Equal(t, "int", got.String())

	got, ok = unifyAll(nil)
	assert.True(t, ok)
	assert.True(t, ir.IsUnknown(got))

	got, ok = unifyAll([]ir.Type{ir.IntType, ir.StrType, ir.IntType})
	assert.False(t, ok)
	assert.True(t, ir.IsAny(got))
}
