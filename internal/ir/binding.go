package ir

import "fmt"

// BindingKind classifies where a binding was introduced.
type BindingKind int

const (
	BindLocal BindingKind = iota
	BindParam
	BindLoopVar
	BindCompVar
	BindHandler // "except E as name"
	BindWith    // "with x as name"
	BindSelf
)

func (k BindingKind) String() string {
	switch k {
	case BindLocal:
		return "local"
	case BindParam:
		return "param"
	case BindLoopVar:
		return "loop"
	case BindCompVar:
		return "comprehension"
	case BindHandler:
		return "handler"
	case BindWith:
		return "with"
	case BindSelf:
		return "self"
	default:
		return "binding?"
	}
}

// PassMode is how a parameter receives its argument.
type PassMode int

const (
	PassByValue PassMode = iota
	PassBorrowed
	PassMutBorrowed
)

func (p PassMode) String() string {
	switch p {
	case PassBorrowed:
		return "&"
	case PassMutBorrowed:
		return "&mut"
	default:
		return "value"
	}
}

// Binding is the identity of one declared name. Two sibling branches that
// assign the same name without hoisting own two distinct bindings.
type Binding struct {
	ID   int
	Name string
	Kind BindingKind

	// Type is the inferred type; Declared holds an explicit annotation.
	Type     Type
	Declared Type

	// Assignments is the path-aware assignment count from ownership analysis.
	Assignments int

	// Mutable is set iff Assignments > 1.
	Mutable bool

	// MutatedInPlace marks receivers of mutating methods, index and
	// attribute stores, and arguments passed by &mut.
	MutatedInPlace bool

	// ReadAfterMutation marks bindings read after an in-place mutation.
	ReadAfterMutation bool

	// Escapes marks bindings returned or stored into a longer-lived value.
	Escapes bool

	// Pass is meaningful for parameters only.
	Pass PassMode

	// Hoisted marks bindings declared ahead of the branch that assigns them.
	Hoisted bool

	// Read is set once any expression reads the binding.
	Read bool

	// Candidates collects conflicting types seen during unification.
	Candidates []Type

	Loc Loc
}

// NeedsMut reports whether the binding must be declared mutable.
func (b *Binding) NeedsMut() bool {
	return b.Mutable || b.MutatedInPlace
}

func (b *Binding) String() string {
	return fmt.Sprintf("%s#%d", b.Name, b.ID)
}

// ScopeKind classifies lexical scopes.
type ScopeKind int

const (
	ScopeFunction ScopeKind = iota
	ScopeBlock
	ScopeBranch
	ScopeLoop
	ScopeComprehension
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeFunction:
		return "function"
	case ScopeBlock:
		return "block"
	case ScopeBranch:
		return "branch"
	case ScopeLoop:
		return "loop"
	case ScopeComprehension:
		return "comprehension"
	default:
		return "scope?"
	}
}

// Scope is one level of the environment.
type Scope struct {
	Kind  ScopeKind
	names map[string]*Binding
	order []*Binding
}

// Bindings returns the scope's bindings in declaration order.
func (s *Scope) Bindings() []*Binding {
	return s.order
}

// Lookup returns the binding declared directly in this scope.
func (s *Scope) Lookup(name string) *Binding {
	return s.names[name]
}

// TypeEnvironment is the scope-stacked map from names to bindings shared by
// inference and ownership analysis. One environment serves one function.
//
// Thread-safety: owned by a single pass; not safe for concurrent use.
type TypeEnvironment struct {
	scopes []*Scope
	all    []*Binding
	nextID int
}

// NewTypeEnvironment creates an environment holding one function scope.
func NewTypeEnvironment() *TypeEnvironment {
	env := &TypeEnvironment{}
	env.Push(ScopeFunction)
	return env
}

// Push opens a nested scope.
func (e *TypeEnvironment) Push(kind ScopeKind) *Scope {
	s := &Scope{Kind: kind, names: make(map[string]*Binding)}
	e.scopes = append(e.scopes, s)
	return s
}

// Pop closes the innermost scope and returns it.
// Panics if only the function scope remains: that is a pass bug.
func (e *TypeEnvironment) Pop() *Scope {
	if len(e.scopes) <= 1 {
		panic("ir: TypeEnvironment.Pop on function scope")
	}
	s := e.scopes[len(e.scopes)-1]
	e.scopes = e.scopes[:len(e.scopes)-1]
	return s
}

// Current returns the innermost scope.
func (e *TypeEnvironment) Current() *Scope {
	return e.scopes[len(e.scopes)-1]
}

// Depth returns the number of open scopes.
func (e *TypeEnvironment) Depth() int {
	return len(e.scopes)
}

// Declare creates a binding in the innermost scope, shadowing any outer one.
func (e *TypeEnvironment) Declare(name string, kind BindingKind, loc Loc) *Binding {
	return e.DeclareIn(e.Current(), name, kind, loc)
}

// DeclareIn creates a binding in scope s.
func (e *TypeEnvironment) DeclareIn(s *Scope, name string, kind BindingKind, loc Loc) *Binding {
	e.nextID++
	b := &Binding{ID: e.nextID, Name: name, Kind: kind, Type: Unresolved, Loc: loc}
	s.names[name] = b
	s.order = append(s.order, b)
	e.all = append(e.all, b)
	return b
}

// Lookup resolves name from the innermost scope outwards.
func (e *TypeEnvironment) Lookup(name string) *Binding {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if b := e.scopes[i].names[name]; b != nil {
			return b
		}
	}
	return nil
}

// LookupScope resolves name and also returns the scope that declares it.
func (e *TypeEnvironment) LookupScope(name string) (*Binding, *Scope) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if b := e.scopes[i].names[name]; b != nil {
			return b, e.scopes[i]
		}
	}
	return nil, nil
}

// InLoop reports whether any open scope is a loop body.
func (e *TypeEnvironment) InLoop() bool {
	for _, s := range e.scopes {
		if s.Kind == ScopeLoop {
			return true
		}
	}
	return false
}

// LoopBetween reports whether a loop scope lies strictly inside s, that is
// whether code at the current position may run many times per execution of s.
func (e *TypeEnvironment) LoopBetween(s *Scope) bool {
	inside := false
	for _, sc := range e.scopes {
		if inside && sc.Kind == ScopeLoop {
			return true
		}
		if sc == s {
			inside = true
		}
	}
	return false
}

// Bindings returns every binding ever declared, in creation order.
func (e *TypeEnvironment) Bindings() []*Binding {
	return e.all
}
