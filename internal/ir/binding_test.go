package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeEnvironmentScoping(t *testing.T) {
	env := NewTypeEnvironment()
	outer := env.Declare("x", BindLocal, Loc{Line: 1})

	env.Push(ScopeBranch)
	inner := env.Declare("x", BindLocal, Loc{Line: 2})
	assert.Same(t, inner, env.Lookup("x"), "inner declaration shadows")
	assert.NotEqual(t, outer.ID, inner.ID)
	env.Pop()

	assert.Same(t, outer, env.Lookup("x"))
	assert.Nil(t, env.Lookup("y"))
	assert.Len(t, env.Bindings(), 2)
}

func TestTypeEnvironmentLoops(t *testing.T) {
	env := NewTypeEnvironment()
	fn := env.Current()
	assert.False(t, env.InLoop())

	env.Push(ScopeLoop)
	env.Push(ScopeBranch)
	assert.True(t, env.InLoop())
	assert.True(t, env.LoopBetween(fn))

	b, s := env.LookupScope("missing")
	assert.Nil(t, b)
	assert.Nil(t, s)
	env.Pop()
	env.Pop()
	assert.False(t, env.LoopBetween(fn))
}

func TestTypeEnvironmentPopFunctionScopePanics(t *testing.T) {
	env := NewTypeEnvironment()
	require.Panics(t, func() { env.Pop() })
}

func TestBindingNeedsMut(t *testing.T) {
	b := &Binding{Name: "x"}
	assert.False(t, b.NeedsMut())
	b.MutatedInPlace = true
	assert.True(t, b.NeedsMut())
	b = &Binding{Name: "y", Mutable: true}
	assert.True(t, b.NeedsMut())
}
