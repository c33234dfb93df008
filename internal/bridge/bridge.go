package bridge

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/mapping"
	"github.com/roach88/pyrs/internal/pyast"
)

// Bridge converts one parsed module. It is not safe for concurrent use;
// build one per transpile call.
type Bridge struct {
	table  mapping.Table
	diags  *diag.Collector
	logger *slog.Logger

	classes map[string]bool
	module  *ir.Module
	fn      string // qualified name of the function being lowered
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// New creates a Bridge resolving imports through table and reporting into
// diags.
func New(table mapping.Table, diags *diag.Collector, opts ...Option) *Bridge {
	if table == nil {
		table = mapping.Defaults()
	}
	b := &Bridge{
		table:   table,
		diags:   diags,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		classes: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// abort unwinds the lowering of one function or declaration.
type abort struct {
	d *diag.Diagnostic
}

func (b *Bridge) loc(p pyast.Pos) diag.Location {
	l := diag.At(p.Line, p.Col)
	if b.fn != "" {
		l = l.In(b.fn)
	}
	return l
}

// unsupported aborts the current declaration with an UnsupportedConstruct.
func (b *Bridge) unsupported(p pyast.Pos, format string, args ...any) {
	panic(abort{diag.UnsupportedConstruct(fmt.Sprintf(format, args...), b.loc(p))})
}

// guard runs fn, converting an abort into a reported diagnostic.
// It returns the diagnostic when fn aborted.
func (b *Bridge) guard(fn func()) (d *diag.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			a, ok := r.(abort)
			if !ok {
				panic(r)
			}
			b.diags.Add(a.d)
			d = a.d
		}
	}()
	fn()
	return nil
}

func irLoc(p pyast.Pos) ir.Loc {
	return ir.Loc{Line: p.Line, Col: p.Col}
}

// Module lowers src into an IR module named name.
func (b *Bridge) Module(name string, src *pyast.Module) *ir.Module {
	b.module = &ir.Module{Name: name}
	for _, s := range src.Body {
		if c, ok := s.(*pyast.ClassDef); ok {
			b.classes[c.Name] = true
		}
	}

	var mainBlock *pyast.If
	for i, s := range src.Body {
		switch n := s.(type) {
		case *pyast.Import:
			b.importDecl(n)
		case *pyast.ImportFrom:
			b.importFrom(n)
		case *pyast.FunctionDef:
			b.module.Decls = append(b.module.Decls, b.function(n, nil))
		case *pyast.ClassDef:
			b.guard(func() {
				b.module.Decls = append(b.module.Decls, b.class(n))
			})
		case *pyast.Assign, *pyast.AnnAssign:
			b.guard(func() { b.constant(n) })
		case *pyast.If:
			if isMainGuard(n) {
				mainBlock = n
				continue
			}
			b.diags.Add(diag.UnsupportedConstruct("module-level if statement", diag.At(n.Line, n.Col)))
		case *pyast.ExprStmt:
			if i == 0 && isDocstring(n) {
				continue
			}
			b.diags.Add(diag.UnsupportedConstruct("module-level expression statement", diag.At(n.Line, n.Col)))
		case *pyast.Pass:
		default:
			p := s.Position()
			b.diags.Add(diag.UnsupportedConstruct("module-level "+stmtName(s), diag.At(p.Line, p.Col)))
		}
	}
	if mainBlock != nil {
		b.mainFunction(mainBlock)
	}
	b.logger.Debug("bridge complete", "module", name, "decls", len(b.module.Decls))
	return b.module
}

func isDocstring(s *pyast.ExprStmt) bool {
	c, ok := s.Value.(*pyast.Constant)
	return ok && c.Kind == pyast.ConstStr
}

// isMainGuard matches: if __name__ == "__main__":
func isMainGuard(n *pyast.If) bool {
	cmp, ok := n.Test.(*pyast.Compare)
	if !ok || len(cmp.Ops) != 1 || cmp.Ops[0] != "==" || len(n.Orelse) > 0 {
		return false
	}
	name, ok := cmp.Left.(*pyast.Name)
	lit, ok2 := cmp.Comparators[0].(*pyast.Constant)
	return ok && ok2 && name.ID == "__name__" && lit.Kind == pyast.ConstStr && lit.Value == "__main__"
}

// mainFunction turns the __main__ block into fn main. A block that only
// calls a user-defined zero-argument main() is dropped: that function
// already is the entry point.
func (b *Bridge) mainFunction(n *pyast.If) {
	if existing := b.module.Function("main"); existing != nil {
		if callsOnly(n.Body, "main") && len(existing.Params) == 0 {
			return
		}
		b.diags.Add(diag.UnsupportedConstruct("__main__ block alongside a function named main", diag.At(n.Line, n.Col)))
		return
	}
	def := &pyast.FunctionDef{Pos: n.Pos, Name: "main", Args: &pyast.Arguments{}, Body: n.Body}
	fn := b.function(def, nil)
	fn.Returns = ir.UnitType
	fn.ReturnAnnotation = ir.UnitType
	b.module.Decls = append(b.module.Decls, fn)
}

func callsOnly(body []pyast.Stmt, name string) bool {
	if len(body) != 1 {
		return false
	}
	es, ok := body[0].(*pyast.ExprStmt)
	if !ok {
		return false
	}
	call, ok := es.Value.(*pyast.Call)
	if !ok || len(call.Args) > 0 {
		return false
	}
	id, ok := call.Func.(*pyast.Name)
	return ok && id.ID == name
}

func (b *Bridge) importDecl(n *pyast.Import) {
	for _, a := range n.Names {
		imp := &ir.Import{Module: a.Name, Alias: a.AsName, Loc: irLoc(n.Pos)}
		if imp.Alias == "" {
			imp.Alias = a.Name
		}
		b.resolveImport(imp)
		b.module.Decls = append(b.module.Decls, imp)
	}
}

func (b *Bridge) importFrom(n *pyast.ImportFrom) {
	if n.Level > 0 {
		b.diags.Add(diag.UnsupportedConstruct("relative import", diag.At(n.Line, n.Col)))
		return
	}
	imp := &ir.Import{Module: n.Module, From: true, Loc: irLoc(n.Pos)}
	for _, a := range n.Names {
		if a.Name == "*" {
			b.diags.Add(diag.UnsupportedConstruct("wildcard import", diag.At(n.Line, n.Col)))
			return
		}
		imp.Names = append(imp.Names, ir.ImportName{Name: a.Name, Alias: a.AsName})
	}
	b.resolveImport(imp)
	b.module.Decls = append(b.module.Decls, imp)
}

// resolveImport consults the mapping table. An unknown module is reported
// for the import only; the declaration is kept so references resolve.
func (b *Bridge) resolveImport(imp *ir.Import) {
	e, ok := b.table.Lookup(imp.Module)
	if !ok {
		b.diags.Add(diag.UnsupportedConstruct(
			fmt.Sprintf("import of unmapped module %q", imp.Module),
			diag.At(imp.Loc.Line, imp.Loc.Col)))
		return
	}
	imp.Target = e.TargetPath
	imp.Rewrites = e.Rewrites()
	imp.Resolved = true
	if !imp.From || e.TargetPath == "" {
		return
	}
	for _, n := range imp.Names {
		if _, ok := e.Item(n.Name); !ok {
			b.diags.Add(diag.UnsupportedConstruct(
				fmt.Sprintf("import of unmapped name %q from %q", n.Name, imp.Module),
				diag.At(imp.Loc.Line, imp.Loc.Col)))
		}
	}
}

// constant lowers a module-level "NAME = value" or "NAME: T = value".
func (b *Bridge) constant(s pyast.Stmt) {
	var target, value, ann pyast.Expr
	switch n := s.(type) {
	case *pyast.Assign:
		if len(n.Targets) != 1 {
			b.unsupported(n.Pos, "module-level chained assignment")
		}
		target, value = n.Targets[0], n.Value
	case *pyast.AnnAssign:
		target, value, ann = n.Target, n.Value, n.Annotation
	}
	name, ok := target.(*pyast.Name)
	if !ok {
		b.unsupported(s.Position(), "module-level assignment to %s", exprName(target))
	}
	if value == nil {
		b.unsupported(s.Position(), "module-level annotation without a value")
	}
	c := &ir.Constant{Name: name.ID, Value: b.expr(value), Loc: irLoc(s.Position())}
	if ann != nil {
		c.Annotation = b.annotation(ann)
	}
	b.module.Decls = append(b.module.Decls, c)
}

func stmtName(s pyast.Stmt) string {
	switch s.(type) {
	case *pyast.For:
		return "for loop"
	case *pyast.While:
		return "while loop"
	case *pyast.With:
		return "with statement"
	case *pyast.Try:
		return "try statement"
	case *pyast.Raise:
		return "raise statement"
	case *pyast.Delete:
		return "del statement"
	case *pyast.Global:
		return "global statement"
	case *pyast.Nonlocal:
		return "nonlocal statement"
	case *pyast.Assert:
		return "assert statement"
	case *pyast.Return:
		return "return statement"
	case *pyast.AugAssign:
		return "augmented assignment"
	case *pyast.FunctionDef:
		return "function definition"
	case *pyast.ClassDef:
		return "class definition"
	default:
		return strings.ToLower(strings.TrimPrefix(fmt.Sprintf("%T", s), "*pyast."))
	}
}

func exprName(e pyast.Expr) string {
	switch e.(type) {
	case *pyast.Yield:
		return "yield expression"
	case *pyast.NamedExpr:
		return "assignment expression"
	case *pyast.Starred:
		return "starred expression"
	case *pyast.Subscript:
		return "subscript"
	case *pyast.Attribute:
		return "attribute"
	case *pyast.Tuple:
		return "tuple"
	default:
		return strings.ToLower(strings.TrimPrefix(fmt.Sprintf("%T", e), "*pyast."))
	}
}
