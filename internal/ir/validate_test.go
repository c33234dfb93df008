package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateVariadicMustBeSequence(t *testing.T) {
	p := &Param{Name: "args", Variadic: true, Binding: &Binding{Name: "args", Type: IntType}}
	m := &Module{Decls: []Decl{&Function{Name: "f", Params: []*Param{p}, Returns: UnitType}}}

	errs := Validate(m, false)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrVariadicNotSequence, errs[0].Code)

	p.Binding.Type = Seq{Elem: IntType}
	assert.Empty(t, Validate(m, false))
}

func TestValidateDuplicates(t *testing.T) {
	c := &Class{Name: "C", Fields: []*Field{{Name: "x"}, {Name: "x"}}}
	f := &Function{Name: "f", Params: []*Param{{Name: "a"}, {Name: "a"}}}
	m := &Module{Decls: []Decl{c, f, &Function{Name: "f"}}}

	got := codes(Validate(m, false))
	assert.Contains(t, got, ErrDuplicateField)
	assert.Contains(t, got, ErrDuplicateParam)
	assert.Contains(t, got, ErrDuplicateDecl)
}

func TestValidateTypedRejectsUnknown(t *testing.T) {
	f := &Function{
		Name:     "f",
		Returns:  Seq{Elem: Unresolved},
		Bindings: []*Binding{{Name: "x", Type: Optional{Inner: Unresolved}}},
	}
	m := &Module{Decls: []Decl{f}}

	assert.Empty(t, Validate(m, false), "untyped validation ignores type slots")
	errs := Validate(m, true)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrUnresolvedType, errs[0].Code)
	assert.Contains(t, errs[1].Error(), "f:x")

	f.Skipped = true
	assert.Empty(t, Validate(m, true), "skipped stubs are not checked")
}
