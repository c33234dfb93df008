package ownership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/bridge"
	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/infer"
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/mapping"
	"github.com/roach88/pyrs/internal/pyast"
)

func analyze(t *testing.T, src string) *ir.Module {
	t.Helper()
	parsed, err := pyast.Parse(src)
	require.NoError(t, err)
	diags := diag.NewCollector()
	mod := bridge.New(mapping.Defaults(), diags).Module("m", parsed)
	require.NoError(t, infer.New(diags).Run(mod))
	New().Run(mod)
	return mod
}

func binding(t *testing.T, fn *ir.Function, name string) *ir.Binding {
	t.Helper()
	var found *ir.Binding
	for _, b := range fn.Bindings {
		if b.Name == name {
			require.Nil(t, found, "more than one binding named %s", name)
			found = b
		}
	}
	require.NotNil(t, found, "no binding named %s", name)
	return found
}

// reads returns the Var nodes reading name, in source order.
func reads(fn *ir.Function, name string) []*ir.Var {
	writes := make(map[*ir.Var]bool)
	ir.WalkStmts(fn.Body, func(s ir.Stmt) bool {
		switch n := s.(type) {
		case *ir.Assign:
			if !n.Augmented() {
				for _, t := range n.Targets {
					for _, v := range ir.TargetVars(t) {
						writes[v] = true
					}
				}
			}
		case *ir.For:
			for _, v := range ir.TargetVars(n.Target) {
				writes[v] = true
			}
		}
		return true
	})
	var out []*ir.Var
	ir.WalkBody(fn.Body, func(e ir.Expr) bool {
		if v, ok := e.(*ir.Var); ok && v.Name == name && !writes[v] {
			out = append(out, v)
		}
		return true
	})
	return out
}

func TestAssignmentCounts(t *testing.T) {
	mod := analyze(t, `
def f(c: bool, n: int) -> int:
    once = 1
    twice = 1
    twice = 2
    if c:
        v = 1
    else:
        v = 2
    total = 0
    for i in range(n):
        y = i * 2
        total += y
    return once + twice + v + total
`)
	f := mod.Function("f")

	tests := []struct {
		name    string
		count   int
		mutable bool
	}{
		{"once", 1, false},
		{"twice", 2, true},
		{"v", 1, false},
		{"total", 2, true},
		{"i", 1, false},
		{"y", 1, false},
		{"n", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := binding(t, f, tt.name)
			assert.Equal(t, tt.count, b.Assignments)
			assert.Equal(t, tt.mutable, b.Mutable)
		})
	}
}

func TestLoopAssignmentToOuterBindingCountsAsMany(t *testing.T) {
	mod := analyze(t, `
def f(items: list[int]) -> int:
    last = 0
    for x in items:
        last = x
    return last
`)
	last := binding(t, mod.Function("f"), "last")
	assert.True(t, last.Mutable, "a single assignment inside a loop may run many times")
}

func TestMutatedInPlaceIsNotReassignment(t *testing.T) {
	mod := analyze(t, `
def f() -> int:
    xs = []
    xs.append(1)
    n = len(xs)
    return n
`)
	xs := binding(t, mod.Function("f"), "xs")
	assert.False(t, xs.Mutable)
	assert.True(t, xs.MutatedInPlace)
	assert.True(t, xs.NeedsMut())
	assert.True(t, xs.ReadAfterMutation)
}

func TestIndexStoreMutatesBase(t *testing.T) {
	mod := analyze(t, `
def f(n: int) -> dict[str, int]:
    counts = {}
    counts["a"] = n
    return counts
`)
	counts := binding(t, mod.Function("f"), "counts")
	assert.True(t, counts.MutatedInPlace)
	assert.True(t, counts.Escapes)
	assert.True(t, counts.ReadAfterMutation)
	assert.False(t, counts.Mutable)
}

func TestParameterPassModes(t *testing.T) {
	mod := analyze(t, `
def total(xs: list[int]) -> int:
    s = 0
    for x in xs:
        s += x
    return s

def push(xs: list[int], v: int):
    xs.append(v)

def keep(xs: list[int]) -> list[int]:
    return xs

def greet(name: str) -> int:
    return len(name)

def collect(name: str) -> list[str]:
    out = []
    out.append(name)
    return out

def countdown(n: int, label: str) -> str:
    while n > 0:
        n -= 1
    label = label + "!"
    return label
`)
	tests := []struct {
		fn, param string
		want      ir.PassMode
	}{
		{"total", "xs", ir.PassBorrowed},
		{"push", "xs", ir.PassMutBorrowed},
		{"push", "v", ir.PassByValue},
		{"keep", "xs", ir.PassByValue},
		{"greet", "name", ir.PassBorrowed},
		{"collect", "name", ir.PassByValue},
		{"countdown", "n", ir.PassByValue},
		{"countdown", "label", ir.PassByValue},
	}
	for _, tt := range tests {
		t.Run(tt.fn+"."+tt.param, func(t *testing.T) {
			p := mod.Function(tt.fn).Param(tt.param)
			require.NotNil(t, p)
			assert.Equal(t, tt.want, p.Binding.Pass)
		})
	}
	assert.True(t, mod.Function("countdown").Param("n").Binding.Mutable)
}

func TestMutBorrowPropagatesThroughCalls(t *testing.T) {
	mod := analyze(t, `
def push(xs: list[int]):
    xs.append(1)

def outer(ys: list[int]):
    push(ys)

def main() -> int:
    zs = []
    outer(zs)
    return len(zs)
`)
	assert.Equal(t, ir.PassMutBorrowed, mod.Function("outer").Param("ys").Binding.Pass)
	zs := binding(t, mod.Function("main"), "zs")
	assert.True(t, zs.MutatedInPlace)
	assert.False(t, zs.Mutable)
}

func TestConsumingCallMakesParameterOwned(t *testing.T) {
	mod := analyze(t, `
def keep(xs: list[int]) -> list[int]:
    return xs

def relay(ys: list[int]) -> list[int]:
    return keep(ys)
`)
	assert.Equal(t, ir.PassByValue, mod.Function("relay").Param("ys").Binding.Pass)
}

func TestReceiverModes(t *testing.T) {
	mod := analyze(t, `
class Counter:
    def __init__(self):
        self.n = 0
        self.seen = []

    def inc(self):
        self.n += 1

    def record(self, v: int):
        self.seen.append(v)

    def bump(self):
        self.inc()

    def get(self) -> int:
        return self.n

    @staticmethod
    def zero() -> int:
        return 0
`)
	cls := mod.Class("Counter")
	require.NotNil(t, cls)
	tests := []struct {
		method string
		want   ir.ReceiverMode
	}{
		{"inc", ir.ReceiverMutRef},
		{"record", ir.ReceiverMutRef},
		{"bump", ir.ReceiverMutRef},
		{"get", ir.ReceiverRef},
		{"zero", ir.ReceiverNone},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			assert.Equal(t, tt.want, cls.Method(tt.method).Receiver)
		})
	}
}

func TestLastUse(t *testing.T) {
	mod := analyze(t, `
def f(s: str) -> int:
    t = s
    n = len(t)
    m = len(t)
    return n + m
`)
	f := mod.Function("f")

	s := reads(f, "s")
	require.Len(t, s, 1)
	assert.True(t, s[0].LastUse)

	tr := reads(f, "t")
	require.Len(t, tr, 2)
	assert.False(t, tr[0].LastUse)
	assert.True(t, tr[1].LastUse)
}

func TestNoLastUseInsideLoopForOuterBinding(t *testing.T) {
	mod := analyze(t, `
def f(items: list[str], n: int) -> int:
    c = 0
    for i in range(n):
        word = items[i]
        c += len(word)
    return c
`)
	f := mod.Function("f")
	for _, v := range reads(f, "items") {
		assert.False(t, v.LastUse, "items is read again on the next iteration")
	}
	word := reads(f, "word")
	require.Len(t, word, 1)
	assert.True(t, word[0].LastUse, "word is declared in the loop body")
}

func TestLastUseAcrossBranches(t *testing.T) {
	mod := analyze(t, `
def f(c: bool, s: str) -> int:
    if c:
        return len(s)
    n = len(s)
    return n
`)
	r := reads(mod.Function("f"), "s")
	require.Len(t, r, 2)
	assert.True(t, r[0].LastUse)
	assert.True(t, r[1].LastUse)
}

func TestAnalysisIsRepeatable(t *testing.T) {
	src := `
def push(xs: list[int]):
    xs.append(1)

def f(items: list[int]) -> int:
    total = 0
    for x in items:
        total += x
    push(items)
    return total
`
	mod := analyze(t, src)
	snapshot := func() []ir.Binding {
		var out []ir.Binding
		for _, fn := range mod.AllFunctions() {
			for _, b := range fn.Bindings {
				out = append(out, *b)
			}
		}
		return out
	}
	first := snapshot()
	New().Run(mod)
	assert.Equal(t, first, snapshot())
}
