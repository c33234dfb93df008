package ownership

import (
	"io"
	"log/slog"

	"github.com/roach88/pyrs/internal/ir"
)

// Analyzer runs ownership and mutability analysis over a module.
//
// Thread-safety: an Analyzer holds no per-module state between calls to Run
// but is not meant to be shared across goroutines.
type Analyzer struct {
	logger *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run analyzes every function of m in place. m must be typed.
func (a *Analyzer) Run(m *ir.Module) {
	fns := m.AllFunctions()
	for _, fn := range fns {
		reset(fn)
		countAssignments(fn)
		markLastUses(fn)
	}

	// Pass modes only move towards ByValue and receivers only towards
	// &mut self, so the loop is bounded by the number of slots.
	limit := 1
	for _, fn := range fns {
		limit += len(fn.Params) + 1
	}
	rounds := 0
	for changed := true; changed && rounds < limit; rounds++ {
		changed = false
		for _, fn := range fns {
			if analyzeEffects(fn) {
				changed = true
			}
		}
	}
	a.logger.Debug("ownership analyzed", "module", m.Name, "functions", len(fns), "rounds", rounds)
}

// reset clears results of a previous run so that Run is repeatable.
func reset(fn *ir.Function) {
	for _, b := range fn.Bindings {
		b.Assignments = 0
		b.Mutable = false
		b.MutatedInPlace = false
		b.ReadAfterMutation = false
		b.Escapes = false
		b.Pass = ir.PassBorrowed
	}
	fn.Receiver = ir.ReceiverNone
	if fn.IsMethod() && !fn.Static {
		fn.Receiver = ir.ReceiverRef
	}
	ir.WalkBody(fn.Body, func(e ir.Expr) bool {
		if v, ok := e.(*ir.Var); ok {
			v.LastUse = false
		}
		return true
	})
}

// root returns the local binding at the base of an attribute or index
// chain such as self.items[i].
func root(e ir.Expr) *ir.Binding {
	for {
		switch x := e.(type) {
		case *ir.Var:
			if x.Ref == ir.RefLocal {
				return x.Binding
			}
			return nil
		case *ir.Attribute:
			e = x.X
		case *ir.Index:
			e = x.X
		case *ir.Slice:
			e = x.X
		default:
			return nil
		}
	}
}

// local returns the binding e reads directly, or nil.
func local(e ir.Expr) *ir.Binding {
	if v, ok := e.(*ir.Var); ok && v.Ref == ir.RefLocal {
		return v.Binding
	}
	return nil
}
