package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		want string
	}{
		{"int", IntType, "int"},
		{"usize", UsizeType, "usize"},
		{"unit", UnitType, "None"},
		{"list", Seq{Elem: IntType}, "list[int]"},
		{"dict", Map{Key: StrType, Value: FloatType}, "dict[str, float]"},
		{"set", Set{Elem: StrType}, "set[str]"},
		{"tuple", Tuple{Elems: []Type{IntType, StrType}}, "tuple[int, str]"},
		{"optional unknown", Optional{Inner: Unresolved}, "Optional[?]"},
		{"nil inner", Seq{}, "list[?]"},
		{"ref", Ref{Mutable: true, Inner: Seq{Elem: IntType}}, "&mut list[int]"},
		{"generic", Generic{Name: "Point"}, "Point"},
		{"func", Func{Params: []Type{IntType}, Result: BoolType}, "Callable[[int], bool]"},
		{"result", Result{Ok: IntType, Err: Generic{Name: ExceptionClass}}, "Result[int, PyException]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestTypeEqual(t *testing.T) {
	assert.True(t, Equal(Seq{Elem: IntType}, Seq{Elem: IntType}))
	assert.False(t, Equal(Seq{Elem: IntType}, Seq{Elem: FloatType}))
	assert.False(t, Equal(Set{Elem: IntType}, Seq{Elem: IntType}))
	assert.True(t, Equal(nil, Unresolved), "nil is treated as Unknown")
	assert.True(t, Equal(Tuple{Elems: []Type{IntType, StrType}}, Tuple{Elems: []Type{IntType, StrType}}))
	assert.False(t, Equal(Tuple{Elems: []Type{IntType}}, Tuple{Elems: []Type{IntType, StrType}}))
	assert.False(t, Equal(Ref{Inner: IntType}, Ref{Mutable: true, Inner: IntType}))
}

func TestContainsUnknown(t *testing.T) {
	assert.True(t, ContainsUnknown(Optional{Inner: Unresolved}))
	assert.True(t, ContainsUnknown(Map{Key: StrType}))
	assert.False(t, ContainsUnknown(Map{Key: StrType, Value: IntType}))
	assert.True(t, ContainsAny(Seq{Elem: AnyType}))
	assert.False(t, ContainsAny(Seq{Elem: IntType}))
}

func TestMapTypeReplacesUnknown(t *testing.T) {
	in := Map{Key: StrType, Value: Seq{Elem: Unresolved}}
	out := MapType(in, func(t Type) Type {
		if IsUnknown(t) {
			return AnyType
		}
		return t
	})
	assert.Equal(t, "dict[str, list[Any]]", out.String())
	assert.True(t, ContainsUnknown(in), "input is not modified")
}

func TestIsCopy(t *testing.T) {
	assert.True(t, IsCopy(IntType))
	assert.True(t, IsCopy(Tuple{Elems: []Type{IntType, BoolType}}))
	assert.False(t, IsCopy(Tuple{Elems: []Type{IntType, StrType}}))
	assert.False(t, IsCopy(StrType))
	assert.False(t, IsCopy(Seq{Elem: IntType}))
	assert.True(t, IsCopy(Optional{Inner: FloatType}))
	assert.False(t, IsCopy(Ref{Mutable: true, Inner: IntType}))
}

func TestElemOf(t *testing.T) {
	assert.Equal(t, IntType, ElemOf(Seq{Elem: IntType}))
	assert.Equal(t, StrType, ElemOf(Map{Key: StrType, Value: IntType}))
	assert.Equal(t, StrType, ElemOf(StrType))
	assert.Equal(t, UsizeType, ElemOf(RangeOf(UsizeType)))
	assert.Equal(t, IntType, ElemOf(Ref{Inner: Set{Elem: IntType}}))
	assert.True(t, IsUnknown(ElemOf(IntType)))
}

func TestNumericPredicates(t *testing.T) {
	assert.True(t, IsInteger(UsizeType))
	assert.True(t, IsInteger(Ref{Inner: IntType}))
	assert.False(t, IsInteger(FloatType))
	assert.True(t, IsNumeric(FloatType))
	assert.False(t, IsNumeric(StrType))

	name, ok := ClassName(Generic{Name: "Point"})
	assert.True(t, ok)
	assert.Equal(t, "Point", name)
	_, ok = ClassName(RangeOf(IntType))
	assert.False(t, ok)
}
