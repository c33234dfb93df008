package codegen

import (
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/mapping"
	"github.com/roach88/pyrs/internal/rust"
	"github.com/roach88/pyrs/internal/target"
)

// Generator lowers analyzed modules to Rust syntax trees.
type Generator struct {
	diags   *diag.Collector
	logger  *slog.Logger
	profile target.Profile
	table   mapping.Table
	tests   bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger for generation events.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// WithProfile sets the target profile (native int width, feature gates).
func WithProfile(p target.Profile) Option {
	return func(g *Generator) {
		g.profile = p
	}
}

// WithMapping sets the module mapping table used for use items.
func WithMapping(t mapping.Table) Option {
	return func(g *Generator) {
		g.table = t
	}
}

// WithTests enables the #[cfg(test)] module built from doctests.
func WithTests(on bool) Option {
	return func(g *Generator) {
		g.tests = on
	}
}

// New creates a Generator reporting into diags.
func New(diags *diag.Collector, opts ...Option) *Generator {
	g := &Generator{
		diags:   diags,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		profile: target.MustLookup(target.Default),
		table:   mapping.Defaults(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// fileAttrs relax lints that Python naming and ownership-driven output
// trip routinely.
var fileAttrs = []string{"#![allow(dead_code, non_snake_case, unused_mut, unused_variables)]"}

// unit is the state of one module lowering.
type unit struct {
	*Generator
	module  *ir.Module
	uses    map[string]bool
	helpers map[string]bool
	display map[string]bool // classes with a Display impl
}

// Generate lowers m. It never fails: constructs without a lowering rule are
// reported and replaced by placeholders.
func (g *Generator) Generate(m *ir.Module) *rust.File {
	u := &unit{
		Generator: g,
		module:    m,
		uses:      make(map[string]bool),
		helpers:   make(map[string]bool),
		display:   make(map[string]bool),
	}
	for _, c := range m.Classes() {
		if c.Method("__str__") != nil || c.Method("__repr__") != nil {
			u.display[c.Name] = true
		}
	}

	var items []rust.Item
	for _, d := range m.Decls {
		switch n := d.(type) {
		case *ir.Import:
			u.importUses(n)
		case *ir.Constant:
			items = append(items, u.constant(n))
		case *ir.Class:
			items = append(items, u.class(n)...)
		case *ir.Function:
			items = append(items, u.function(n, n.Name, nil))
		}
	}
	if g.tests {
		if mod := u.testModule(); mod != nil {
			items = append(items, mod)
		}
	}

	f := &rust.File{Attrs: fileAttrs}
	f.Items = append(u.prelude(), items...)
	for use := range u.uses {
		f.Uses = append(f.Uses, use)
	}
	sort.Strings(f.Uses)
	g.logger.Debug("generated module",
		"module", m.Name,
		"items", len(f.Items),
		"uses", len(f.Uses))
	return f
}

func (u *unit) use(path string) {
	if path != "" {
		u.uses[path] = true
	}
}

// importUses brings the items of a from-import into scope when the mapping
// names a relative path for them.
func (u *unit) importUses(imp *ir.Import) {
	if !imp.From || !imp.Resolved {
		return
	}
	e, ok := u.table.Lookup(imp.Module)
	if !ok {
		return
	}
	for _, n := range imp.Names {
		_, use := e.ItemPath(n.Name)
		u.use(use)
	}
}

// member returns the target expression for name of imp and brings it into
// scope when needed. ok is false for unmapped modules.
func (u *unit) member(imp *ir.Import, name string) (string, bool) {
	if !imp.Resolved {
		return "", false
	}
	e, ok := u.table.Lookup(imp.Module)
	if !ok {
		return "", false
	}
	expr, use := e.ItemPath(name)
	u.use(use)
	return expr, true
}

// unsupported reports an expression without a lowering rule and returns
// the placeholder that stands in for it.
func (u *unit) unsupported(fn *ir.Function, what, detail string, loc ir.Loc) rust.Expr {
	l := diag.At(loc.Line, loc.Col)
	if fn != nil {
		l = l.In(fn.QualifiedName())
	}
	u.diags.Add(diag.UnsupportedConversion(what, detail, l))
	msg := what
	if detail != "" {
		msg += ": " + detail
	}
	return rust.Todo(msg)
}
