package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/ir"
)

func TestTarjanSCC(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		edges map[string][]string
		want  [][]string
	}{
		{
			name:  "no edges keeps node order",
			nodes: []string{"a", "b", "c"},
			edges: map[string][]string{},
			want:  [][]string{{"a"}, {"b"}, {"c"}},
		},
		{
			name:  "callees first",
			nodes: []string{"main", "helper", "leaf"},
			edges: map[string][]string{"main": {"helper"}, "helper": {"leaf"}},
			want:  [][]string{{"leaf"}, {"helper"}, {"main"}},
		},
		{
			name:  "mutual recursion forms one component",
			nodes: []string{"even", "odd", "main"},
			edges: map[string][]string{"even": {"odd"}, "odd": {"even"}, "main": {"even"}},
			want:  [][]string{{"odd", "even"}, {"main"}},
		},
		{
			name:  "self loop",
			nodes: []string{"fact"},
			edges: map[string][]string{"fact": {"fact"}},
			want:  [][]string{{"fact"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tarjanSCC(tt.nodes, tt.edges))
		})
	}
}

func TestCallGraphOrderAndRecursion(t *testing.T) {
	mod, _ := lowerOnly(t, `
def main():
    return even(4)

def even(n):
    if n == 0:
        return True
    return odd(n - 1)

def odd(n):
    if n == 0:
        return False
    return even(n - 1)

def fact(n):
    if n <= 1:
        return 1
    return n * fact(n - 1)

class Box:
    def __init__(self):
        self.v = 0

    def get(self):
        return self.v

def use():
    b = Box()
    return b.get()
`)
	e := New(diag.NewCollector())
	e.module = mod
	e.broken = map[ir.Expr]bool{}
	e.resolveModule()
	for _, fn := range mod.AllFunctions() {
		e.resolve(fn)
	}
	g := buildCallGraph(mod)

	var names [][]string
	for _, scc := range g.order() {
		var group []string
		for _, fn := range scc {
			group = append(group, fn.QualifiedName())
		}
		names = append(names, group)
	}
	require.NotEmpty(t, names)
	assert.Equal(t, []string{"even", "odd"}, names[0])
	assert.Equal(t, []string{"main"}, names[1])

	assert.True(t, g.recursive("even"))
	assert.True(t, g.recursive("fact"))
	assert.False(t, g.recursive("main"))

	assert.Contains(t, g.edges["use"], "Box.__init__")
	assert.Contains(t, g.edges["use"], "Box.get")
}
