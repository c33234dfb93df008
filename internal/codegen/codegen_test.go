package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/bridge"
	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/infer"
	"github.com/roach88/pyrs/internal/mapping"
	"github.com/roach88/pyrs/internal/ownership"
	"github.com/roach88/pyrs/internal/pyast"
	"github.com/roach88/pyrs/internal/rust"
	"github.com/roach88/pyrs/internal/target"
)

func generate(t *testing.T, src string, opts ...Option) (string, *diag.Collector) {
	t.Helper()
	parsed, err := pyast.Parse(src)
	require.NoError(t, err)
	diags := diag.NewCollector()
	mod := bridge.New(mapping.Defaults(), diags).Module("m", parsed)
	require.NoError(t, infer.New(diags).Run(mod))
	ownership.New().Run(mod)
	code, _ := rust.Print(New(diags, opts...).Generate(mod))
	return code, diags
}

func TestFunctionSignature(t *testing.T) {
	code, diags := generate(t, `
def add(a: int, b: int) -> int:
    return a + b
`)
	assert.Zero(t, diags.Len())
	assert.Contains(t, code, "pub fn add(a: i64, b: i64) -> i64 {")
	assert.Contains(t, code, "return a + b;")
}

func TestProfileIntWidth(t *testing.T) {
	code, _ := generate(t, `
def add(a: int, b: int) -> int:
    return a + b
`, WithProfile(target.MustLookup("wasm32")))
	assert.Contains(t, code, "pub fn add(a: i32, b: i32) -> i32 {")
}

func TestReassignedLocalIsMut(t *testing.T) {
	code, _ := generate(t, `
def f() -> int:
    x = 1
    x = x + 1
    return x
`)
	assert.Contains(t, code, "let mut x: i64 = 1;")
	assert.Contains(t, code, "x = x + 1;")
}

func TestSingleAssignmentIsNotMut(t *testing.T) {
	code, _ := generate(t, `
def f() -> int:
    x = 1
    return x
`)
	assert.Contains(t, code, "let x: i64 = 1;")
	assert.NotContains(t, code, "let mut x")
}

func TestForRange(t *testing.T) {
	code, _ := generate(t, `
def total(n: int) -> int:
    s = 0
    for i in range(n):
        s += i
    return s
`)
	assert.Contains(t, code, "for i in 0..n {")
	assert.Contains(t, code, "s += i;")
}

func TestRaiseMakesFunctionFallible(t *testing.T) {
	code, _ := generate(t, `
def check(x: int) -> int:
    if x < 0:
        raise ValueError("negative")
    return x
`)
	assert.Contains(t, code, "pub fn check(x: i64) -> Result<i64, PyException> {")
	assert.Contains(t, code, `return Err(PyException::new("ValueError", "negative"));`)
	assert.Contains(t, code, "return Ok(x);")
	assert.Contains(t, code, "pub struct PyException")
}

func TestTryExceptDispatchesOnKind(t *testing.T) {
	code, _ := generate(t, `
def parse(s: str) -> int:
    try:
        n = int(s)
    except ValueError:
        n = 0
    return n
`)
	assert.Contains(t, code, "let __try0 = (|| -> Result<(), PyException> {")
	assert.Contains(t, code, "if let Err(__err0) = __try0 {")
	assert.Contains(t, code, `__err0.kind == "ValueError"`)
}

func TestUnsupportedStepProducesPlaceholder(t *testing.T) {
	code, diags := generate(t, `
def f(n: int, k: int) -> int:
    s = 0
    for i in range(0, n, k):
        s += i
    return s
`)
	assert.Contains(t, code, "todo!(")
	assert.Positive(t, diags.Len())
}

func TestDoctestModule(t *testing.T) {
	src := `
def add(a: int, b: int) -> int:
    """Add two numbers.

    >>> add(1, 2)
    3
    """
    return a + b
`
	code, _ := generate(t, src, WithTests(true))
	assert.Contains(t, code, "#[cfg(test)]")
	assert.Contains(t, code, "assert_eq!(add(1, 2), 3);")

	code, _ = generate(t, src)
	assert.NotContains(t, code, "#[cfg(test)]")
}

func TestTranslateSpec(t *testing.T) {
	tests := []struct {
		spec string
		want string
		ok   bool
	}{
		{"", "", true},
		{".2f", ".2", true},
		{"f", ".6", true},
		{">10", ">10", true},
		{"*^8", "*^8", true},
		{"08.3f", "08.3", true},
		{"x", "x", true},
		{"+d", "+", true},
		{",", "", false},
		{"=10", "", false},
		{" d", "", false},
		{"g", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, ok := translateSpec(tt.spec)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAssignsAllPaths(t *testing.T) {
	code, _ := generate(t, `
def sign(x: int) -> str:
    if x < 0:
        s = "neg"
    else:
        s = "pos"
    return s
`)
	assert.Contains(t, code, "let s: String;")
}

func TestIdentEscapesKeywords(t *testing.T) {
	assert.Equal(t, "r#match", ident("match"))
	assert.Equal(t, "count", ident("count"))
}

func diagsAt(diags *diag.Collector, kind diag.Kind, line int) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, d := range diags.Items() {
		if d.Kind == kind && d.Location.Line == line {
			out = append(out, d)
		}
	}
	return out
}

func TestAugmentedAssignOnAnyReportedOnce(t *testing.T) {
	code, diags := generate(t, `
def f(c: bool):
    d = {"a": 1}
    if c:
        d = [1]
    d["a"] += 1
`)
	got := diagsAt(diags, diag.KindUnsupportedConversion, 6)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Location.Column)
	assert.NotContains(t, code, ") = todo!(")
}

func TestNoneTestNarrowsOptional(t *testing.T) {
	code, diags := generate(t, `from typing import Optional

def last_or(xs: list[int], d: int) -> int:
    r = None
    for x in xs:
        r = x
    if r is None:
        return d
    return r

def label(name: Optional[str]) -> str:
    if name is not None:
        return name
    return "anon"
`)
	assert.Zero(t, diags.Count(diag.KindUnsupportedConversion))
	assert.Contains(t, code, "return r.unwrap();")
	assert.Contains(t, code, "return name.as_ref().unwrap().clone();")
}

func TestOptionalIntoPlainReturnIsReported(t *testing.T) {
	code, diags := generate(t, `
def last(xs: list[int]) -> int:
    r = None
    for x in xs:
        r = x
    return r
`)
	got := diagsAt(diags, diag.KindUnsupportedConversion, 6)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "Optional value")
	assert.Contains(t, code, "todo!(")
	assert.NotContains(t, code, "return r;")
}

func TestContainerWidthConversions(t *testing.T) {
	code, diags := generate(t, `
def lengths(words: list[str]) -> list[int]:
    return [len(w) for w in words]

def sizes(groups: list[list[int]]) -> list[int]:
    out = []
    for g in groups:
        out.append(len(g))
    return out

def shortest(a: list[int], b: list[int]) -> int:
    return min(len(a), len(b), 10)

def word_lengths(words: list[str]):
    return [len(w) for w in words]

def total(xs: list[int]) -> int:
    return sum(xs)

def letters(words: list[str]) -> int:
    return total(word_lengths(words))
`)
	assert.Zero(t, diags.Count(diag.KindUnsupportedConversion))
	assert.Contains(t, code, "w.len() as i64")
	assert.Contains(t, code, "out.push(g.len() as i64)")
	assert.Contains(t, code, "a.len() as i64")
	assert.Contains(t, code, "b.len() as i64")
	assert.Contains(t, code, ".iter().map(|v| *v as i64).collect::<Vec<i64>>()")
}

func TestSlicesClampToBounds(t *testing.T) {
	code, _ := generate(t, `
def inner(xs: list[int]) -> list[int]:
    return xs[1:-1]

def tail(s: str) -> str:
    return s[-3:]
`)
	assert.Contains(t, code, "xs.iter().take(xs.len().saturating_sub(1)).skip(1).copied().collect::<Vec<i64>>()")
	assert.Contains(t, code, "s.chars().skip(s.chars().count().saturating_sub(3)).collect::<String>()")
	assert.NotContains(t, code, "xs.len() - 1")
}
