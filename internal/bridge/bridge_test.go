package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/mapping"
	"github.com/roach88/pyrs/internal/pyast"
)

func lower(t *testing.T, src string) (*ir.Module, *diag.Collector) {
	t.Helper()
	parsed, err := pyast.Parse(src)
	require.NoError(t, err)
	diags := diag.NewCollector()
	return New(mapping.Defaults(), diags).Module("m", parsed), diags
}

func TestDeclarationOrderPreserved(t *testing.T) {
	mod, diags := lower(t, `
import math
LIMIT = 10

def f():
    return 1

class C:
    pass

def g():
    return 2
`)
	assert.Zero(t, diags.Len())
	var names []string
	for _, d := range mod.Decls {
		names = append(names, d.DeclName())
	}
	assert.Equal(t, []string{"math", "LIMIT", "f", "C", "g"}, names)
}

func TestImportResolution(t *testing.T) {
	mod, diags := lower(t, "import math\nimport numpy as np\nfrom typing import List, Optional\n")

	imps := mod.Imports()
	require.Len(t, imps, 3)
	assert.True(t, imps[0].Resolved)
	assert.Equal(t, "std::f64", imps[0].Target)
	assert.Equal(t, "f64::sqrt", imps[0].Rewrites["sqrt"])

	assert.False(t, imps[1].Resolved)
	assert.Equal(t, "np", imps[1].Alias)

	assert.True(t, imps[2].From)
	assert.Len(t, imps[2].Names, 2)

	items := diags.Items()
	require.Len(t, items, 1, "only the unmapped import is reported")
	assert.Equal(t, diag.KindUnsupportedConstruct, items[0].Kind)
	assert.Contains(t, items[0].Message, "numpy")
	assert.Equal(t, 2, items[0].Location.Line)
}

func TestImportFromChecksNames(t *testing.T) {
	mod, diags := lower(t, "from math import sqrt, pi\nfrom collections import deque, defaultdict\nfrom typing import Any\n")

	imps := mod.Imports()
	require.Len(t, imps, 3)
	assert.Equal(t, "f64::sqrt", imps[0].Rewrites["sqrt"])

	items := diags.Items()
	require.Len(t, items, 1, "only the unlisted name is reported")
	assert.Equal(t, diag.KindUnsupportedConstruct, items[0].Kind)
	assert.Contains(t, items[0].Message, "defaultdict")
	assert.Contains(t, items[0].Message, "collections")
	assert.Equal(t, 2, items[0].Location.Line)
}

func TestFunctionSignature(t *testing.T) {
	mod, _ := lower(t, `
async def fetch(url: str, retries: int = 3, *parts: str, verbose=False) -> Optional[str]:
    """Fetch a URL."""
    return None
`)
	fn := mod.Function("fetch")
	require.NotNil(t, fn)
	assert.True(t, fn.Async)
	assert.Equal(t, "Fetch a URL.", fn.Doc)
	require.Len(t, fn.Params, 4)

	assert.Equal(t, ir.StrType, fn.Params[0].Annotation)
	assert.NotNil(t, fn.Params[1].Default)

	parts := fn.Params[2]
	assert.True(t, parts.Variadic)
	assert.Equal(t, ir.Seq{Elem: ir.StrType}, parts.Annotation)

	assert.True(t, fn.Params[3].KwOnly)
	assert.Nil(t, fn.Params[3].Annotation)
	assert.Equal(t, ir.Optional{Inner: ir.StrType}, fn.Returns)
	require.Len(t, fn.Body, 1, "docstring is not a statement")
}

func TestUnannotatedReturnIsUnknown(t *testing.T) {
	mod, _ := lower(t, "def f(x):\n    return x\n")
	assert.True(t, ir.IsUnknown(mod.Function("f").Returns))
	assert.Nil(t, mod.Function("f").ReturnAnnotation)
}

func TestDesugarTupleAssignment(t *testing.T) {
	mod, _ := lower(t, "def f():\n    a, b = 1, 2\n")
	a := mod.Function("f").Body[0].(*ir.Assign)
	require.Len(t, a.Targets, 2)
	assert.Equal(t, "a", a.Targets[0].(*ir.Var).Name)
	assert.IsType(t, &ir.TupleLit{}, a.Value)
}

func TestDesugarChainedAssignment(t *testing.T) {
	mod, _ := lower(t, "def f():\n    a = b = g()\n")
	body := mod.Function("f").Body
	require.Len(t, body, 2)
	first := body[0].(*ir.Assign)
	assert.IsType(t, &ir.Call{}, first.Value)
	second := body[1].(*ir.Assign)
	assert.Equal(t, "b", second.Targets[0].(*ir.Var).Name)
	assert.Equal(t, "a", second.Value.(*ir.Var).Name, "the call is evaluated once")
}

func TestDesugarAugmentedAssignment(t *testing.T) {
	mod, _ := lower(t, "def f(x):\n    x += 1\n    x //= 2\n")
	body := mod.Function("f").Body
	assert.Equal(t, ir.OpAdd, body[0].(*ir.Assign).Op)
	assert.Equal(t, ir.OpFloorDiv, body[1].(*ir.Assign).Op)
}

func TestDesugarChainedComparison(t *testing.T) {
	mod, _ := lower(t, "def f(a, b, c):\n    return a < b <= c\n")
	ret := mod.Function("f").Body[0].(*ir.Return)
	and := ret.Value.(*ir.Binary)
	assert.Equal(t, ir.OpAnd, and.Op)

	left := and.L.(*ir.Binary)
	right := and.R.(*ir.Binary)
	assert.Equal(t, ir.OpLt, left.Op)
	assert.Equal(t, ir.OpLe, right.Op)
	assert.Equal(t, "b", right.L.(*ir.Var).Name)
	assert.NotSame(t, left.R, right.L, "the shared operand is cloned, not shared")
}

func TestDesugarAssert(t *testing.T) {
	mod, _ := lower(t, "def f(x):\n    assert x > 0, \"positive\"\n")
	s := mod.Function("f").Body[0].(*ir.If)
	not := s.Cond.(*ir.Unary)
	assert.Equal(t, ir.UNot, not.Op)
	r := s.Then[0].(*ir.Raise)
	assert.True(t, r.Assert)
	assert.Equal(t, "AssertionError", r.Kind)
	assert.Equal(t, "positive", r.Message.(*ir.Literal).Str)
}

func TestPassDropped(t *testing.T) {
	mod, _ := lower(t, "def f():\n    pass\n")
	assert.Empty(t, mod.Function("f").Body)
}

func TestFStringParts(t *testing.T) {
	mod, _ := lower(t, "def f(name, total):\n    return f\"{name!r} owes {total:.2f}\"\n")
	fs := mod.Function("f").Body[0].(*ir.Return).Value.(*ir.FString)
	require.Len(t, fs.Parts, 3)
	assert.Equal(t, byte('r'), fs.Parts[0].Conv)
	assert.Equal(t, " owes ", fs.Parts[1].Lit)
	assert.Equal(t, ".2f", fs.Parts[2].Spec)
}

func TestRaiseForms(t *testing.T) {
	mod, _ := lower(t, `
def f(x):
    try:
        raise ValueError("bad")
    except (ValueError, KeyError) as e:
        raise
    except:
        raise RuntimeError
`)
	try := mod.Function("f").Body[0].(*ir.TryExcept)
	r := try.Body[0].(*ir.Raise)
	assert.Equal(t, "ValueError", r.Kind)
	assert.Equal(t, "bad", r.Message.(*ir.Literal).Str)

	require.Len(t, try.Handlers, 2)
	assert.Equal(t, []string{"ValueError", "KeyError"}, try.Handlers[0].Kinds)
	assert.Equal(t, "e", try.Handlers[0].Name)
	assert.True(t, try.Handlers[0].Body[0].(*ir.Raise).Reraise)
	assert.Empty(t, try.Handlers[1].Kinds)
	assert.Nil(t, try.Handlers[1].Body[0].(*ir.Raise).Message)
}

func TestWithItemsNest(t *testing.T) {
	mod, _ := lower(t, "def f(a, b):\n    with open(a) as x, open(b) as y:\n        return 1\n")
	outer := mod.Function("f").Body[0].(*ir.With)
	assert.Equal(t, "x", outer.Target.Name)
	inner := outer.Body[0].(*ir.With)
	assert.Equal(t, "y", inner.Target.Name)
	assert.IsType(t, &ir.Return{}, inner.Body[0])
}

func TestUnsupportedAbortsOnlyEnclosingFunction(t *testing.T) {
	mod, diags := lower(t, `
def gen():
    yield 1

def ok(x: int) -> int:
    return x + 1
`)
	gen := mod.Function("gen")
	require.NotNil(t, gen, "skipped functions are kept as stubs")
	assert.True(t, gen.Skipped)
	assert.Contains(t, gen.SkipReason, "yield")
	assert.Nil(t, gen.Body)

	ok := mod.Function("ok")
	assert.False(t, ok.Skipped)
	assert.Len(t, ok.Body, 1)

	items := diags.Items()
	require.Len(t, items, 1)
	assert.Equal(t, diag.KindUnsupportedConstruct, items[0].Kind)
	assert.Equal(t, "gen", items[0].Location.Function)
	assert.Equal(t, 3, items[0].Location.Line)
}

func TestUnsupportedConstructs(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"global", "global counter", "global"},
		{"kwargs", "f(**opts)", "keyword argument unpacking"},
		{"walrus", "if (n := 3): return n", "assignment expression"},
		{"del", "del xs[0]", "del"},
		{"for else", "for x in xs:\n        pass\n    else:\n        pass", "for-else"},
		{"complex", "return 2j", "complex literal"},
		{"nested def", "def inner():\n        pass", "function definition"},
		{"slice store", "xs[1:2] = ys", "slice assignment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, diags := lower(t, "def f(xs, ys, opts):\n    "+tt.body+"\n")
			fn := mod.Function("f")
			assert.True(t, fn.Skipped)
			require.Equal(t, 1, diags.Len())
			assert.Contains(t, diags.Items()[0].Message, tt.want)
		})
	}
}

func TestMainGuard(t *testing.T) {
	mod, _ := lower(t, `
def run():
    print("hi")

if __name__ == "__main__":
    run()
`)
	main := mod.Function("main")
	require.NotNil(t, main)
	assert.Equal(t, ir.UnitType, main.Returns)
	assert.Len(t, main.Body, 1)
}

func TestMainGuardCallingUserMain(t *testing.T) {
	mod, diags := lower(t, `
def main():
    print("hi")

if __name__ == "__main__":
    main()
`)
	assert.Len(t, mod.Functions(), 1)
	assert.Zero(t, diags.Len())
}

func TestModuleLevelStatementsReported(t *testing.T) {
	mod, diags := lower(t, `
"""Module docstring."""
for i in range(3):
    print(i)
print("side effect")
`)
	assert.Empty(t, mod.Decls)
	assert.Equal(t, 2, diags.Count(diag.KindUnsupportedConstruct))
}

func TestConstants(t *testing.T) {
	mod, _ := lower(t, "LIMIT: int = 10\nNAME = \"x\"\n")
	limit := mod.Constant("LIMIT")
	require.NotNil(t, limit)
	assert.Equal(t, ir.IntType, limit.Annotation)
	assert.Equal(t, int64(10), limit.Value.(*ir.Literal).Int)
	assert.Equal(t, "x", mod.Constant("NAME").Value.(*ir.Literal).Str)
}

func TestIntegerLiterals(t *testing.T) {
	mod, _ := lower(t, "A = 0x1F\nB = 1_000\nC = 007\nD = 0b101\n")
	want := map[string]int64{"A": 31, "B": 1000, "C": 7, "D": 5}
	for name, v := range want {
		assert.Equal(t, v, mod.Constant(name).Value.(*ir.Literal).Int, name)
	}
}

func TestDoctestExtraction(t *testing.T) {
	mod, _ := lower(t, `
def add(a: int, b: int) -> int:
    """Add two numbers.

    >>> add(1, 2)
    3
    >>> add(-1, 1)
    0
    """
    return a + b
`)
	fn := mod.Function("add")
	require.Len(t, fn.Doctests, 2)
	assert.Equal(t, "add(1, 2)", fn.Doctests[0].Source)
	assert.Equal(t, int64(3), fn.Doctests[0].Expected.(*ir.Literal).Int)
	assert.IsType(t, &ir.Call{}, fn.Doctests[1].Call)
	assert.Equal(t, 5, fn.Doctests[0].Line)
}
