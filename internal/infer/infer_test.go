package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/bridge"
	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/mapping"
	"github.com/roach88/pyrs/internal/pyast"
)

func infer(t *testing.T, src string, opts ...Option) (*ir.Module, *diag.Collector) {
	t.Helper()
	mod, diags := lowerOnly(t, src)
	require.NoError(t, New(diags, opts...).Run(mod))
	return mod, diags
}

func lowerOnly(t *testing.T, src string) (*ir.Module, *diag.Collector) {
	t.Helper()
	parsed, err := pyast.Parse(src)
	require.NoError(t, err)
	diags := diag.NewCollector()
	return bridge.New(mapping.Defaults(), diags).Module("m", parsed), diags
}

func bindings(fn *ir.Function, name string) []*ir.Binding {
	var out []*ir.Binding
	for _, b := range fn.Bindings {
		if b.Name == name {
			out = append(out, b)
		}
	}
	return out
}

func binding(t *testing.T, fn *ir.Function, name string) *ir.Binding {
	t.Helper()
	bs := bindings(fn, name)
	require.Len(t, bs, 1, "bindings named %s", name)
	return bs[0]
}

func typeOf(t *testing.T, fn *ir.Function, name string) string {
	t.Helper()
	return binding(t, fn, name).Type.String()
}

func TestSequentialReassignment(t *testing.T) {
	mod, diags := infer(t, `
def f():
    x = 1
    x = x + 1
    return x
`)
	assert.Zero(t, diags.Len())
	f := mod.Function("f")
	assert.Equal(t, "int", typeOf(t, f, "x"))
	assert.True(t, ir.Equal(ir.IntType, f.Returns))
}

func TestLoopAssignmentNotMergedWithBranch(t *testing.T) {
	mod, _ := infer(t, `
def f(c: bool, items: list[int]):
    if c:
        v = None
    else:
        for i in items:
            v = i
    return 0
`)
	f := mod.Function("f")
	vs := bindings(f, "v")
	require.Len(t, vs, 2)
	assert.NotSame(t, vs[0], vs[1])
	assert.Equal(t, "Optional[None]", vs[0].Type.String())
	assert.Equal(t, "int", vs[1].Type.String())
	assert.False(t, vs[0].Hoisted)
	assert.False(t, vs[1].Hoisted)
}

func TestSetAndMapLiterals(t *testing.T) {
	mod, _ := infer(t, `
def f():
    s = {1, 2, 3}
    d = {"a": 1}
    return 2 in s and "a" in d
`)
	f := mod.Function("f")
	assert.Equal(t, "set[int]", typeOf(t, f, "s"))
	assert.Equal(t, "dict[str, int]", typeOf(t, f, "d"))
	assert.True(t, ir.Equal(ir.BoolType, f.Returns))
}

func TestAccumulatorOverRange(t *testing.T) {
	mod, diags := infer(t, `
def f():
    total = 0
    for x in range(10):
        total = total + x
    return total
`)
	assert.Zero(t, diags.Len())
	f := mod.Function("f")
	assert.Equal(t, "int", typeOf(t, f, "total"))
	assert.Equal(t, "int", typeOf(t, f, "x"))
	assert.Equal(t, "int", f.Returns.String())
}

func TestRangeOverLenIsUsize(t *testing.T) {
	mod, _ := infer(t, `
def f(xs: list[str]):
    for i in range(len(xs)):
        print(xs[i])
`)
	f := mod.Function("f")
	assert.Equal(t, "usize", typeOf(t, f, "i"))
	assert.Equal(t, "None", f.Returns.String())
}

func TestWidthLawRecordsConversions(t *testing.T) {
	mod, _ := infer(t, `
def count(xs: list[int]) -> int:
    n = len(xs)
    return n

def at(xs: list[int], i: int) -> int:
    return xs[i]

def mix(a: float, b: int) -> float:
    return a + b
`)
	count := mod.Function("count")
	assert.Equal(t, "usize", typeOf(t, count, "n"))
	ret := count.Body[1].(*ir.Return)
	assert.True(t, ir.Equal(ir.IntType, ret.Value.Base().Conv), "usize returned as int converts")

	at := mod.Function("at")
	idx := at.Body[0].(*ir.Return).Value.(*ir.Index)
	assert.True(t, ir.Equal(ir.UsizeType, idx.Index.Base().Conv), "int index converts to usize")

	mix := mod.Function("mix")
	sum := mix.Body[0].(*ir.Return).Value.(*ir.Binary)
	assert.Nil(t, sum.L.Base().Conv)
	assert.True(t, ir.Equal(ir.FloatType, sum.R.Base().Conv))
	assert.Equal(t, "float", sum.T.String())
}

func TestLiteralAdaptsToUsize(t *testing.T) {
	mod, _ := infer(t, `
def f(xs: list[int]):
    n = len(xs) - 1
    return n
`)
	f := mod.Function("f")
	assert.Equal(t, "usize", typeOf(t, f, "n"))
	bin := f.Body[0].(*ir.Assign).Value.(*ir.Binary)
	assert.Equal(t, "usize", bin.R.Base().T.String())
	assert.Nil(t, bin.R.Base().Conv)
}

func TestCallSiteSpecialization(t *testing.T) {
	mod, diags := infer(t, `
def add(a, b):
    return a + b

def main():
    return add(1, 2)
`)
	assert.Zero(t, diags.Len())
	add := mod.Function("add")
	assert.Equal(t, "int", add.Params[0].Binding.Type.String())
	assert.Equal(t, "int", add.Params[1].Binding.Type.String())
	assert.Equal(t, "int", add.Returns.String())
	assert.Equal(t, "int", mod.Function("main").Returns.String())
}

func TestCallSitesWidenToFloat(t *testing.T) {
	mod, _ := infer(t, `
def scale(x):
    return x * 2

def main():
    a = scale(1)
    b = scale(2.5)
    return a
`)
	scale := mod.Function("scale")
	assert.Equal(t, "float", scale.Params[0].Binding.Type.String())
}

func TestKeywordArgumentsBoundByPosition(t *testing.T) {
	mod, _ := infer(t, `
def g(a, b=2):
    return a * b

def main():
    x = g(b=3, a=1)
    y = g(4)
    return x + y
`)
	main := mod.Function("main")
	first := main.Body[0].(*ir.Assign).Value.(*ir.Call)
	require.Len(t, first.Args, 2)
	assert.Nil(t, first.Kwargs)
	assert.Equal(t, int64(1), first.Args[0].(*ir.Literal).Int)
	assert.Equal(t, int64(3), first.Args[1].(*ir.Literal).Int)
	assert.Same(t, mod.Function("g"), first.Callee)

	second := main.Body[1].(*ir.Assign).Value.(*ir.Call)
	require.Len(t, second.Args, 2)
	assert.Equal(t, int64(2), second.Args[1].(*ir.Literal).Int, "default filled in")
}

func TestUnknownKeywordIsUnsupported(t *testing.T) {
	mod, diags := infer(t, `
def g(a):
    return a

def main():
    return g(z=1)
`)
	assert.True(t, mod.Function("main").Skipped)
	assert.Equal(t, 1, diags.Count(diag.KindUnsupportedConstruct))
	assert.False(t, mod.Function("g").Skipped)
}

func TestOptionalRefinedByLaterAssignment(t *testing.T) {
	mod, _ := infer(t, `
def f(c: bool):
    x = None
    if c:
        x = 5
    return x
`)
	f := mod.Function("f")
	assert.Equal(t, "Optional[int]", typeOf(t, f, "x"))
	assert.Equal(t, "Optional[int]", f.Returns.String())
}

func TestFallThroughMakesReturnOptional(t *testing.T) {
	mod, _ := infer(t, `
def find(xs: list[int], want: int):
    for x in xs:
        if x == want:
            return x
`)
	assert.Equal(t, "Optional[int]", mod.Function("find").Returns.String())
}

func TestConflictingAssignmentsAreAmbiguous(t *testing.T) {
	mod, diags := infer(t, `
def f(c: bool):
    x = 1
    if c:
        x = "s"
    return 0
`)
	f := mod.Function("f")
	assert.Equal(t, "Any", typeOf(t, f, "x"))
	require.Equal(t, 1, diags.Count(diag.KindAmbiguousType))
	d := diags.Items()[0]
	assert.Equal(t, "x", d.Binding)
	assert.Equal(t, []string{"int", "str"}, d.Candidates)
	assert.Equal(t, diag.SeverityWarning, d.Severity)
}

func TestBackwardRefinesFromAppend(t *testing.T) {
	mod, diags := infer(t, `
def f():
    xs = []
    xs.append(1)
    return xs
`)
	assert.Zero(t, diags.Len())
	f := mod.Function("f")
	assert.Equal(t, "list[int]", typeOf(t, f, "xs"))
	assert.Equal(t, "list[int]", f.Returns.String())
}

func TestBackwardRefinesMapFromIndexStore(t *testing.T) {
	mod, _ := infer(t, `
def f(words: list[str]):
    counts = {}
    for w in words:
        counts[w] = 0
    return counts
`)
	assert.Equal(t, "dict[str, int]", typeOf(t, mod.Function("f"), "counts"))
}

func TestClassFieldsAndMethods(t *testing.T) {
	mod, diags := infer(t, `
class Counter:
    def __init__(self):
        self.n = 0

    def inc(self):
        self.n += 1
        return self.n

def main():
    c = Counter()
    return c.inc()
`)
	assert.Zero(t, diags.Len())
	cls := mod.Class("Counter")
	assert.Equal(t, "int", cls.Field("n").Type.String())
	main := mod.Function("main")
	assert.Equal(t, "Counter", typeOf(t, main, "c"))
	assert.Equal(t, "int", main.Returns.String())
	call := main.Body[1].(*ir.Return).Value.(*ir.Call)
	assert.Same(t, cls.Method("inc"), call.Callee)
}

func TestDataclassConstructor(t *testing.T) {
	mod, _ := infer(t, `
from dataclasses import dataclass

@dataclass
class Point:
    x: float
    y: float = 0.0

def origin():
    return Point(1)
`)
	call := mod.Function("origin").Body[0].(*ir.Return).Value.(*ir.Call)
	assert.Same(t, mod.Class("Point"), call.Ctor)
	require.Len(t, call.Args, 2)
	assert.True(t, ir.Equal(ir.FloatType, call.Args[0].Base().Conv))
}

func TestFallibility(t *testing.T) {
	mod, _ := infer(t, `
def f(x: int) -> int:
    if x < 0:
        raise ValueError("negative")
    return x

def g():
    return f(1)

def h():
    r = 0
    try:
        r = f(1)
    except Exception:
        r = -1
    return r

def k(x: int):
    assert x > 0
    return x
`)
	assert.True(t, mod.Function("f").Fallible)
	assert.True(t, mod.Function("g").Fallible)
	assert.False(t, mod.Function("h").Fallible)
	assert.False(t, mod.Function("k").Fallible)
}

func TestImportedMemberTypes(t *testing.T) {
	mod, _ := infer(t, `
import math

def hyp(a: float, b: float):
    return math.sqrt(a * a + b * b)
`)
	f := mod.Function("hyp")
	assert.Equal(t, "float", f.Returns.String())
	call := f.Body[0].(*ir.Return).Value.(*ir.Call)
	assert.Equal(t, "f64::sqrt", call.Func.(*ir.Attribute).Rewrite)
}

func TestLambdaParamsFromSortedKey(t *testing.T) {
	mod, _ := infer(t, `
def f(words: list[str]):
    return sorted(words, key=lambda w: len(w))
`)
	f := mod.Function("f")
	assert.Equal(t, "list[str]", f.Returns.String())
	assert.Equal(t, "str", typeOf(t, f, "w"))
}

func TestInferenceIsIdempotent(t *testing.T) {
	mod, _ := infer(t, `
class Stack:
    def __init__(self):
        self.items = []

    def push(self, x: int):
        self.items.append(x)

    def size(self):
        return len(self.items)

def run(n: int):
    s = Stack()
    total = 0
    for i in range(n):
        s.push(i)
        total += i
    if total > 10:
        label = "big"
    else:
        label = "small"
    return label, s.size()
`)
	before, err := ir.ModuleHash(mod)
	require.NoError(t, err)

	require.NoError(t, New(diag.NewCollector()).Run(mod))
	after, err := ir.ModuleHash(mod)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestNoUnknownSurvives(t *testing.T) {
	mod, _ := infer(t, `
def f(x):
    y = x
    return y

def g():
    data = []
    return data
`)
	errs := ir.Validate(mod, true)
	assert.Empty(t, errs)
	assert.Equal(t, "Any", typeOf(t, mod.Function("f"), "y"))
}

func TestQuotaExceeded(t *testing.T) {
	mod, diags := lowerOnly(t, `
def f():
    return 1
`)
	err := New(diags, WithMaxIterations(1)).Run(mod)
	require.Error(t, err)
	assert.True(t, IsQuotaExceededError(err))
	assert.Equal(t, "int", mod.Function("f").Returns.String(), "module is finalized anyway")
}

func returned(fn *ir.Function) ir.Expr {
	for i := len(fn.Body) - 1; i >= 0; i-- {
		if r, ok := fn.Body[i].(*ir.Return); ok {
			return r.Value
		}
	}
	return nil
}

func TestWidthAtContainerAndBuiltinSites(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		check func(t *testing.T, fn *ir.Function)
	}{
		{
			name: "comprehension returned as list[int]",
			src: `
def f(words: list[str]) -> list[int]:
    return [len(w) for w in words]
`,
			check: func(t *testing.T, fn *ir.Function) {
				c := returned(fn).(*ir.Comprehension)
				assert.Equal(t, "list[int]", c.T.String())
				assert.True(t, ir.Equal(ir.IntType, c.Elem.Base().Conv))
			},
		},
		{
			name: "list literal returned as list[int]",
			src: `
def f(xs: list[int]) -> list[int]:
    return [len(xs), 0]
`,
			check: func(t *testing.T, fn *ir.Function) {
				lit := returned(fn).(*ir.ListLit)
				assert.Equal(t, "list[int]", lit.T.String())
				assert.True(t, ir.Equal(ir.IntType, lit.Elems[0].Base().Conv))
				assert.Equal(t, "int", lit.Elems[1].Base().T.String())
				assert.Nil(t, lit.Elems[1].Base().Conv)
			},
		},
		{
			name: "append into a list returned as list[int]",
			src: `
def f(groups: list[list[int]]) -> list[int]:
    out = []
    for g in groups:
        out.append(len(g))
    return out
`,
			check: func(t *testing.T, fn *ir.Function) {
				assert.Equal(t, "list[int]", typeOf(t, fn, "out"))
				call := fn.Body[1].(*ir.For).Body[0].(*ir.ExprStmt).X.(*ir.Call)
				assert.True(t, ir.Equal(ir.IntType, call.Args[0].Base().Conv))
			},
		},
		{
			name: "dict store into a map returned as dict[str, int]",
			src: `
def f(words: list[str]) -> dict[str, int]:
    d = {}
    for w in words:
        d[w] = len(w)
    return d
`,
			check: func(t *testing.T, fn *ir.Function) {
				assert.Equal(t, "dict[str, int]", typeOf(t, fn, "d"))
				store := fn.Body[1].(*ir.For).Body[0].(*ir.Assign)
				assert.True(t, ir.Equal(ir.IntType, store.Value.Base().Conv))
			},
		},
		{
			name: "min over a length and an int",
			src: `
def f(xs: list[int], cap: int) -> int:
    return min(len(xs), cap)
`,
			check: func(t *testing.T, fn *ir.Function) {
				call := returned(fn).(*ir.Call)
				assert.Equal(t, "int", call.T.String())
				assert.True(t, ir.Equal(ir.IntType, call.Args[0].Base().Conv))
				assert.Nil(t, call.Args[1].Base().Conv)
			},
		},
		{
			name: "max over lengths stays usize",
			src: `
def f(a: list[int], b: list[int]):
    return max(len(a), len(b))
`,
			check: func(t *testing.T, fn *ir.Function) {
				call := returned(fn).(*ir.Call)
				assert.Equal(t, "usize", call.T.String())
				assert.Nil(t, call.Args[0].Base().Conv)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, _ := infer(t, tt.src)
			tt.check(t, mod.Function("f"))
		})
	}
}

func TestBackwardRefinesFromTypedArgument(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"by value", `
def consume(xs: list[int]) -> int:
    return len(xs)

def f() -> int:
    out = []
    return consume(out)
`},
		{"mutated in place", `
def push(xs: list[int], v: int):
    xs.append(v)

def f():
    out = []
    push(out, 1)
    return out
`},
		{"width only", `
def consume(xs: list[int]) -> int:
    return len(xs)

def f(words: list[str]) -> int:
    out = [len(w) for w in words]
    return consume(out)
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, _ := infer(t, tt.src)
			assert.Equal(t, "list[int]", typeOf(t, mod.Function("f"), "out"))
		})
	}
}

func TestOptionalMeetsPlainReturn(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		narrowed bool
	}{
		{"unchecked", `
def f(xs: list[int]) -> int:
    r = None
    for x in xs:
        r = x
    return r
`, false},
		{"after an early exit", `
def f(xs: list[int]) -> int:
    r = None
    for x in xs:
        r = x
    if r is None:
        return 0
    return r
`, true},
		{"inside the checked branch", `
def f(xs: list[int]) -> int:
    r = None
    for x in xs:
        r = x
    if r is not None:
        return r
    return 0
`, true},
		{"reassigned after the check", `
def f(xs: list[int], y: Optional[int]) -> int:
    r = None
    for x in xs:
        r = x
    if r is not None:
        r = y
        return r
    return 0
`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, _ := infer(t, "from typing import Optional\n"+tt.src)
			f := mod.Function("f")
			var ret *ir.Var
			ir.WalkStmts(f.Body, func(s ir.Stmt) bool {
				if r, ok := s.(*ir.Return); ok && ret == nil {
					if v, isVar := r.Value.(*ir.Var); isVar && v.Name == "r" {
						ret = v
					}
				}
				return ret == nil
			})
			require.NotNil(t, ret)
			assert.Equal(t, tt.narrowed, ret.Narrowed)
			if tt.narrowed {
				assert.Equal(t, "int", ret.T.String())
				assert.Nil(t, ret.Conv)
				return
			}
			assert.Equal(t, "Optional[int]", ret.T.String())
			assert.True(t, ir.Equal(ir.IntType, ret.Conv), "the mismatch is left for codegen to report")
		})
	}
}
