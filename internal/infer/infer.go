package infer

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/pyrs/internal/bridge"
	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/mapping"
)

// Engine infers types for one module. It is not safe for concurrent use;
// build one per transpile call.
type Engine struct {
	diags   *diag.Collector
	table   mapping.Table
	logger  *slog.Logger
	maxIter int

	module  *ir.Module
	classes map[string]bool
	graph   *callGraph

	// Per-round state.
	changed bool
	sites   map[*ir.Function]*callSites

	// Conflicts for slots that have no Candidates field of their own.
	fieldConflicts  map[*ir.Field][]ir.Type
	returnConflicts map[*ir.Function][]ir.Type
	exprConflicts   map[ir.Expr][]ir.Type

	itemTypes map[string]ir.Type

	// broken holds module-level values whose typing failed.
	broken map[ir.Expr]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMapping sets the module mapping table consulted for the parameter and
// return types of mapped library members.
func WithMapping(t mapping.Table) Option {
	return func(e *Engine) {
		e.table = t
	}
}

// WithMaxIterations bounds the module-level fixpoint.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		e.maxIter = n
	}
}

// New creates an Engine reporting into diags.
func New(diags *diag.Collector, opts ...Option) *Engine {
	e := &Engine{
		diags:   diags,
		table:   mapping.Defaults(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxIter: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run infers m in place. The returned error is a QuotaExceededError when
// the fixpoint did not converge; the module is finalized either way.
func (e *Engine) Run(m *ir.Module) error {
	e.module = m
	e.classes = make(map[string]bool)
	for _, c := range m.Classes() {
		e.classes[c.Name] = true
	}
	e.fieldConflicts = make(map[*ir.Field][]ir.Type)
	e.returnConflicts = make(map[*ir.Function][]ir.Type)
	e.exprConflicts = make(map[ir.Expr][]ir.Type)
	e.itemTypes = make(map[string]ir.Type)
	e.broken = make(map[ir.Expr]bool)

	e.resolveModule()
	for _, fn := range m.AllFunctions() {
		e.resolve(fn)
	}
	e.graph = buildCallGraph(m)
	order := e.graph.order()

	var quotaErr error
	quota := NewIterationQuota(e.maxIter)
	for {
		if err := quota.Check(m.Name); err != nil {
			quotaErr = err
			e.logger.Warn("inference did not converge", "module", m.Name, "error", err)
			break
		}
		e.changed = false
		e.sites = make(map[*ir.Function]*callSites)
		e.constants()
		for _, scc := range order {
			for _, fn := range scc {
				e.function(fn)
			}
		}
		e.specialize()
		if !e.changed {
			break
		}
	}
	e.logger.Debug("inference converged", "module", m.Name, "rounds", quota.Current())

	e.fallible()
	for _, fn := range m.AllFunctions() {
		e.doctests(fn)
		e.widen(fn)
	}
	e.finalize()
	return quotaErr
}

// function runs one forward and one backward pass over fn.
func (e *Engine) function(fn *ir.Function) {
	if fn.Skipped {
		return
	}
	e.guard(fn, func() {
		t := &typer{e: e, fn: fn}
		t.params()
		t.block(fn.Body)
		t.finishReturns()
		e.backward(fn)
	})
}

// abort unwinds the typing of one function.
type abort struct {
	d *diag.Diagnostic
}

func (e *Engine) loc(fn *ir.Function, l ir.Loc) diag.Location {
	loc := diag.At(l.Line, l.Col)
	if fn != nil {
		loc = loc.In(fn.QualifiedName())
	}
	return loc
}

// internalError aborts the current function with an InternalError.
func (e *Engine) internalError(fn *ir.Function, l ir.Loc, format string, args ...any) {
	panic(abort{diag.InternalError(fmt.Sprintf(format, args...), e.loc(fn, l))})
}

// unsupported aborts the current function with an UnsupportedConstruct.
func (e *Engine) unsupported(fn *ir.Function, l ir.Loc, format string, args ...any) {
	panic(abort{diag.UnsupportedConstruct(fmt.Sprintf(format, args...), e.loc(fn, l))})
}

// guard runs body and converts an abort into a reported diagnostic. The
// function, when given, is kept as a skipped stub.
func (e *Engine) guard(fn *ir.Function, body func()) (ok bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		a, isAbort := r.(abort)
		if !isAbort {
			panic(r)
		}
		e.diags.Add(a.d)
		ok = false
		if fn != nil {
			fn.Skipped = true
			fn.SkipReason = a.d.Message
			fn.Body = nil
			e.changed = true
			e.logger.Debug("function skipped", "function", fn.QualifiedName(), "reason", a.d.Message)
		}
	}()
	body()
	return true
}

// refine merges t into the binding's type. Annotated bindings keep their
// annotation. A failed unification records both candidates and leaves Any.
func (e *Engine) refine(b *ir.Binding, t ir.Type) {
	if b == nil || ir.IsUnknown(t) {
		return
	}
	if b.Declared != nil && !ir.ContainsUnknown(b.Declared) {
		return
	}
	next, ok := Unify(b.Type, t)
	if !ok {
		b.Candidates = addCandidates(b.Candidates, b.Type, t)
	}
	if !ir.Equal(next, b.Type) {
		b.Type = next
		e.changed = true
	}
}

// refineField is refine for class fields.
func (e *Engine) refineField(f *ir.Field, t ir.Type) {
	if f == nil || ir.IsUnknown(t) {
		return
	}
	if f.Annotation != nil && !ir.ContainsUnknown(f.Annotation) {
		return
	}
	next, ok := Unify(f.Type, t)
	if !ok {
		e.fieldConflicts[f] = addCandidates(e.fieldConflicts[f], f.Type, t)
	}
	if !ir.Equal(next, f.Type) {
		f.Type = next
		e.changed = true
	}
}

// refineSlot refines whatever storage x names: a local binding or a field.
func (e *Engine) refineSlot(x ir.Expr, t ir.Type) {
	switch v := x.(type) {
	case *ir.Var:
		if v.Ref == ir.RefLocal {
			e.refine(v.Binding, t)
		}
	case *ir.Attribute:
		e.refineField(v.Field, t)
	}
}

func addCandidates(list []ir.Type, ts ...ir.Type) []ir.Type {
	for _, t := range ts {
		if ir.IsUnknown(t) || ir.IsAny(t) {
			continue
		}
		dup := false
		for _, have := range list {
			if ir.Equal(have, t) {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, t)
		}
	}
	return list
}

// itemType returns the parsed annotation of a mapped library member.
func (e *Engine) itemType(src string) ir.Type {
	if src == "" {
		return ir.AnyType
	}
	if t, ok := e.itemTypes[src]; ok {
		return t
	}
	t, err := bridge.ParseAnnotation(src, e.classes)
	if err != nil {
		e.logger.Debug("unparseable mapping annotation", "annotation", src, "error", err)
		t = ir.AnyType
	}
	e.itemTypes[src] = t
	return t
}

// importItem looks up a member of an imported module in the mapping table.
func (e *Engine) importItem(imp *ir.Import, name string) (mapping.Entry, mapping.Item, bool) {
	entry, ok := e.table.Lookup(imp.Module)
	if !ok {
		return mapping.Entry{}, mapping.Item{}, false
	}
	item, ok := entry.Item(name)
	return entry, item, ok
}

// funcType is the callable type of a user function.
func funcType(fn *ir.Function) ir.Type {
	params := make([]ir.Type, len(fn.Params))
	for i, p := range fn.Params {
		if p.Binding != nil {
			params[i] = p.Binding.Type
		} else {
			params[i] = ir.OrUnknown(p.Annotation)
		}
	}
	return ir.Func{Params: params, Result: ir.OrUnknown(fn.Returns)}
}
