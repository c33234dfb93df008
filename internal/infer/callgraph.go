package infer

import (
	"github.com/roach88/pyrs/internal/ir"
)

// callGraph maps a function's qualified name to the functions it may call.
// Nodes keep declaration order so the resulting order is deterministic.
type callGraph struct {
	nodes []string
	edges map[string][]string
	funcs map[string]*ir.Function
}

// buildCallGraph collects call edges from resolved name references.
//
// Edges:
//   - f() where f is a module function       -> f
//   - C() where C is a class                 -> C.__init__
//   - C.m() and self.m()                     -> the method, searching bases
//   - x.m() on any other receiver            -> every class method named m
func buildCallGraph(m *ir.Module) *callGraph {
	g := &callGraph{
		edges: make(map[string][]string),
		funcs: make(map[string]*ir.Function),
	}
	byMethod := make(map[string][]*ir.Function)
	for _, fn := range m.AllFunctions() {
		name := fn.QualifiedName()
		if _, dup := g.funcs[name]; dup {
			continue
		}
		g.nodes = append(g.nodes, name)
		g.funcs[name] = fn
		g.edges[name] = []string{}
		if fn.IsMethod() {
			byMethod[fn.Name] = append(byMethod[fn.Name], fn)
		}
	}

	for _, name := range g.nodes {
		fn := g.funcs[name]
		seen := make(map[string]bool)
		add := func(callee *ir.Function) {
			if callee == nil {
				return
			}
			to := callee.QualifiedName()
			if seen[to] {
				return
			}
			seen[to] = true
			g.edges[name] = append(g.edges[name], to)
		}
		ir.WalkBody(fn.Body, func(e ir.Expr) bool {
			call, ok := e.(*ir.Call)
			if !ok {
				return true
			}
			switch f := call.Func.(type) {
			case *ir.Var:
				switch d := f.Decl.(type) {
				case *ir.Function:
					add(d)
				case *ir.Class:
					add(lookupMethod(m, d, "__init__"))
				}
			case *ir.Attribute:
				if cls := receiverClass(m, fn, f.X); cls != nil {
					add(lookupMethod(m, cls, f.Name))
					break
				}
				for _, cand := range byMethod[f.Name] {
					add(cand)
				}
			}
			return true
		})
	}
	return g
}

// receiverClass returns the class a method receiver statically names: a
// class reference or self.
func receiverClass(m *ir.Module, fn *ir.Function, x ir.Expr) *ir.Class {
	v, ok := x.(*ir.Var)
	if !ok {
		return nil
	}
	if cls, ok := v.Decl.(*ir.Class); ok {
		return cls
	}
	if v.Binding != nil && v.Binding.Kind == ir.BindSelf && fn.Class != nil {
		return fn.Class
	}
	if name, ok := ir.ClassName(ir.TypeOf(v)); ok {
		return m.Class(name)
	}
	return nil
}

// maxClassDepth bounds walks up a base class chain.
const maxClassDepth = 32

// lookupMethod finds name on cls or the first base class defining it.
func lookupMethod(m *ir.Module, cls *ir.Class, name string) *ir.Function {
	for depth := 0; cls != nil && depth < maxClassDepth; depth++ {
		if fn := cls.Method(name); fn != nil {
			return fn
		}
		cls = baseClass(m, cls)
	}
	return nil
}

// lookupField finds name on cls or its user-defined bases.
func lookupField(m *ir.Module, cls *ir.Class, name string) *ir.Field {
	for depth := 0; cls != nil && depth < maxClassDepth; depth++ {
		if f := cls.Field(name); f != nil {
			return f
		}
		cls = baseClass(m, cls)
	}
	return nil
}

// baseClass returns the first user-defined base of cls.
func baseClass(m *ir.Module, cls *ir.Class) *ir.Class {
	for _, b := range cls.Bases {
		if base := m.Class(b); base != nil && base != cls {
			return base
		}
	}
	return nil
}

// order returns the functions grouped into strongly connected components,
// callees before callers.
func (g *callGraph) order() [][]*ir.Function {
	var out [][]*ir.Function
	for _, scc := range tarjanSCC(g.nodes, g.edges) {
		group := make([]*ir.Function, 0, len(scc))
		// Tarjan pops members in reverse discovery order; restore
		// declaration order inside the component.
		for i := len(scc) - 1; i >= 0; i-- {
			group = append(group, g.funcs[scc[i]])
		}
		out = append(out, group)
	}
	return out
}

// recursive reports whether fn calls itself, directly or through a cycle.
func (g *callGraph) recursive(name string) bool {
	for _, scc := range tarjanSCC(g.nodes, g.edges) {
		for _, member := range scc {
			if member != name {
				continue
			}
			if len(scc) > 1 {
				return true
			}
			for _, to := range g.edges[name] {
				if to == name {
					return true
				}
			}
			return false
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Components come out in reverse topological order: every component is
// emitted after all components it calls into. Visiting roots in the given
// node order makes the result deterministic.
func tarjanSCC(nodes []string, edges map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}
