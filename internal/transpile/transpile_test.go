package transpile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/mapping"
)

func TestTranspileReassignedBindingIsMutable(t *testing.T) {
	out, err := Transpile(`
def f() -> int:
    x = 1
    x = x + 1
    return x
`, Options{Optimize: true})
	require.NoError(t, err)
	assert.Contains(t, out.Code, "let mut x: i64 = 1;")
	assert.Contains(t, out.Code, "x = x + 1;")
	assert.Contains(t, out.Code, "return x;")
}

func TestTranspileLoopAccumulatorIsNotFolded(t *testing.T) {
	out, err := Transpile(`
def f() -> int:
    total = 0
    for x in range(10):
        total = total + x
    return total
`, Options{Optimize: true})
	require.NoError(t, err)
	assert.Contains(t, out.Code, "let mut total: i64 = 0;")
	assert.Contains(t, out.Code, "total = total + x;")
	assert.Contains(t, out.Code, "return total;")
	assert.NotContains(t, out.Code, "return 0;")
}

func TestTranspileSetMembership(t *testing.T) {
	out, err := Transpile(`
def f() -> bool:
    s = {1, 2, 3}
    return 2 in s
`, Options{})
	require.NoError(t, err)
	assert.Contains(t, out.Code, "s.contains(")
	assert.NotContains(t, out.Code, "contains_key")
}

func TestTranspileMappingMembership(t *testing.T) {
	out, err := Transpile(`
def f() -> bool:
    d = {"a": 1}
    return "a" in d
`, Options{})
	require.NoError(t, err)
	assert.Contains(t, out.Code, "d.contains_key(")
}

func TestTranspileIsDeterministic(t *testing.T) {
	src := `
def area(w: int, h: int) -> int:
    return w * h

def scale(xs: list[int], k: int) -> list[int]:
    return [x * k for x in xs]
`
	opts := Options{Optimize: true, EmitSourceMap: true}
	first, err := Transpile(src, opts)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Transpile(src, opts)
		require.NoError(t, err)
		assert.Equal(t, first.Code, again.Code, "run %d", i)
		assert.Equal(t, first.SourceMap, again.SourceMap, "run %d", i)
	}
}

func TestTranspileSyntaxError(t *testing.T) {
	out, err := Transpile("def f(:\n    pass\n", Options{})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, diag.IsKind(err, diag.KindSyntaxError))

	var d *diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, 1, d.Location.Line)
}

func TestTranspileUnknownProfile(t *testing.T) {
	_, err := Transpile("x = 1\n", Options{TargetProfile: "z80"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "z80")
}

func TestTranspileProfileSelectsIntWidth(t *testing.T) {
	out, err := Transpile(`
def add(a: int, b: int) -> int:
    return a + b
`, Options{TargetProfile: "wasm32"})
	require.NoError(t, err)
	assert.Contains(t, out.Code, "pub fn add(a: i32, b: i32) -> i32 {")
}

func TestTranspileSourceMapOnRequest(t *testing.T) {
	src := `
def add(a: int, b: int) -> int:
    return a + b
`
	without, err := Transpile(src, Options{})
	require.NoError(t, err)
	assert.Empty(t, without.SourceMap)

	with, err := Transpile(src, Options{EmitSourceMap: true})
	require.NoError(t, err)
	require.NotEmpty(t, with.SourceMap)

	lines := strings.Count(with.Code, "\n") + 1
	for _, m := range with.SourceMap {
		assert.Positive(t, m.SourceLine)
		assert.LessOrEqual(t, m.GenStart, m.GenEnd)
		assert.LessOrEqual(t, m.GenEnd, lines)
	}
}

func TestTranspileKeepsSiblingsOfUnsupportedFunction(t *testing.T) {
	out, err := Transpile(`
def bad():
    global counter
    counter = 1

def good(a: int) -> int:
    return a + 1
`, Options{})
	require.NoError(t, err)
	assert.True(t, out.HasErrors())
	assert.Contains(t, out.Code, "pub fn good(a: i64) -> i64 {")
}

func TestTranspileOptimizeFoldsConstants(t *testing.T) {
	src := `
def seconds() -> int:
    return 60 * 60 * 24
`
	plain, err := Transpile(src, Options{})
	require.NoError(t, err)
	assert.Contains(t, plain.Code, "return 60 * 60 * 24;")

	opt, err := Transpile(src, Options{Optimize: true})
	require.NoError(t, err)
	assert.Contains(t, opt.Code, "return 86400;")
}

func TestTranspileCustomMapping(t *testing.T) {
	table := mapping.Merge(mapping.Defaults(), mapping.Map{
		"geometry": {
			Source:     "geometry",
			TargetPath: "crate::geometry",
			ItemRewrites: map[string]mapping.Item{
				"area": {Path: "area", Params: []string{"float"}, Returns: "float"},
			},
		},
	})
	out, err := Transpile(`
from geometry import area

def f(r: float) -> float:
    return area(r)
`, Options{Mapping: table})
	require.NoError(t, err)
	assert.Contains(t, out.Code, "use crate::geometry::area;")
}

func TestTranspileConcurrentCallsShareNothing(t *testing.T) {
	srcs := []string{
		"def a(x: int) -> int:\n    return x + 1\n",
		"def b(s: str) -> int:\n    return len(s)\n",
		"def c() -> float:\n    return 1.5\n",
	}
	want := make([]string, len(srcs))
	for i, src := range srcs {
		out, err := Transpile(src, Options{})
		require.NoError(t, err)
		want[i] = out.Code
	}

	done := make(chan struct{})
	errs := make(chan string, 30)
	for n := 0; n < 10; n++ {
		for i, src := range srcs {
			go func() {
				defer func() { done <- struct{}{} }()
				out, err := Transpile(src, Options{})
				if err != nil || out.Code != want[i] {
					errs <- src
				}
			}()
		}
	}
	for n := 0; n < 10*len(srcs); n++ {
		<-done
	}
	close(errs)
	for src := range errs {
		t.Errorf("concurrent transpile diverged for %q", src)
	}
}

func TestLowerReturnsTypedModule(t *testing.T) {
	mod, diags, err := Lower("def f(a: int) -> int:\n    return a\n", Options{ModuleName: "calc"})
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, "calc", mod.Name)
	require.Len(t, mod.AllFunctions(), 1)
	assert.Equal(t, "f", mod.AllFunctions()[0].Name)
}
