package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceHashDeterminism(t *testing.T) {
	a := SourceHash("def f():\n    return 1\n")
	b := SourceHash("def f():\n    return 1\n")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "SHA-256 hex is 64 characters")
	assert.NotEqual(t, a, SourceHash("def f():\n    return 2\n"))
}

func TestSourceHashNormalizesUnicode(t *testing.T) {
	assert.Equal(t, SourceHash("s = \"caf\u00e9\""), SourceHash("s = \"cafe\u0301\""))
}

func TestCacheKeyDependsOnOptions(t *testing.T) {
	src := "x = 1\n"
	k1 := MustCacheKey(src, map[string]any{"profile": "std", "optimize": true})
	k2 := MustCacheKey(src, map[string]any{"optimize": true, "profile": "std"})
	k3 := MustCacheKey(src, map[string]any{"profile": "wasm32", "optimize": true})

	assert.Equal(t, k1, k2, "key order does not matter")
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, SourceHash(src), k1, "domains separate source hashes from cache keys")
}

func TestCacheKeyRejectsUnsupportedOptions(t *testing.T) {
	_, err := CacheKey("x = 1\n", map[string]any{"ratio": 0.5})
	require.Error(t, err)
}

func TestModuleHash(t *testing.T) {
	m := &Module{Name: "m", Decls: []Decl{
		&Function{Name: "f", Returns: IntType, Body: []Stmt{&Return{Value: IntLit(1)}}},
	}}
	h1, err := ModuleHash(m)
	require.NoError(t, err)
	m.Function("f").Returns = FloatType
	h2, err := ModuleHash(m)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2, "annotations take part in the hash")
}
