package transpile

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/pyrs/internal/bridge"
	"github.com/roach88/pyrs/internal/codegen"
	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/infer"
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/mapping"
	"github.com/roach88/pyrs/internal/optimize"
	"github.com/roach88/pyrs/internal/ownership"
	"github.com/roach88/pyrs/internal/pyast"
	"github.com/roach88/pyrs/internal/rust"
	"github.com/roach88/pyrs/internal/target"
)

// DefaultModuleName names the generated module when Options leaves it empty.
const DefaultModuleName = "main"

// Options configures one transpile call.
type Options struct {
	// TargetProfile selects the Rust target (see target.Names). Empty means
	// target.Default.
	TargetProfile string

	// Optimize enables the optimizer passes.
	Optimize bool

	// GenerateTests emits a #[cfg(test)] module from doctests.
	GenerateTests bool

	// EmitSourceMap fills GeneratedCode.SourceMap.
	EmitSourceMap bool

	// ModuleName is the module name used in diagnostics and IR dumps.
	ModuleName string

	// Mapping resolves imports. Nil means mapping.Defaults().
	Mapping mapping.Table

	// Logger receives stage boundaries at Debug. Nil discards.
	Logger *slog.Logger
}

// GeneratedCode is the output of one transpile call.
type GeneratedCode struct {
	Code        string
	Diagnostics []diag.Diagnostic
	SourceMap   rust.SourceMap
}

// HasErrors reports whether any diagnostic has error severity.
func (g *GeneratedCode) HasErrors() bool {
	for _, d := range g.Diagnostics {
		if d.Severity == diag.SeverityError {
			return true
		}
	}
	return false
}

// Transpile converts Python source text to Rust.
//
// The error is a *diag.Diagnostic of kind SYNTAX_ERROR when source does not
// parse, or a plain error for an unknown target profile. In both cases no
// code is produced.
func Transpile(source string, opts Options) (*GeneratedCode, error) {
	s, err := newSession(opts)
	if err != nil {
		return nil, err
	}
	return s.run(source)
}

// Lower runs the front half of the pipeline and returns the typed IR.
// The IR dump command uses it.
func Lower(source string, opts Options) (*ir.Module, []diag.Diagnostic, error) {
	s, err := newSession(opts)
	if err != nil {
		return nil, nil, err
	}
	mod, err := s.lower(source)
	if err != nil {
		return nil, nil, err
	}
	return mod, s.diags.Items(), nil
}

// session is the per-call state. It is discarded when the call returns.
type session struct {
	opts    Options
	profile target.Profile
	table   mapping.Table
	diags   *diag.Collector
	logger  *slog.Logger
}

func newSession(opts Options) (*session, error) {
	name := opts.TargetProfile
	if name == "" {
		name = target.Default
	}
	profile, err := target.Lookup(name)
	if err != nil {
		return nil, err
	}
	table := opts.Mapping
	if table == nil {
		table = mapping.Defaults()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.ModuleName == "" {
		opts.ModuleName = DefaultModuleName
	}
	return &session{
		opts:    opts,
		profile: profile,
		table:   table,
		diags:   diag.NewCollector(),
		logger:  logger.With("module", opts.ModuleName),
	}, nil
}

func (s *session) lower(source string) (*ir.Module, error) {
	parsed, err := pyast.Parse(source)
	if err != nil {
		if se, ok := pyast.AsSyntaxError(err); ok {
			return nil, diag.SyntaxError(se.Msg, diag.At(se.Line, se.Col))
		}
		return nil, fmt.Errorf("parse %s: %w", s.opts.ModuleName, err)
	}
	s.logger.Debug("parsed", "statements", len(parsed.Body))

	mod := bridge.New(s.table, s.diags, bridge.WithLogger(s.logger)).Module(s.opts.ModuleName, parsed)
	s.validate(mod, false)
	s.logger.Debug("bridged", "decls", len(mod.Decls))

	eng := infer.New(s.diags, infer.WithLogger(s.logger), infer.WithMapping(s.table))
	if err := eng.Run(mod); err != nil {
		// Non-convergence leaves the last types in place; the code is still
		// usable, so it is reported rather than returned.
		s.diags.Add(diag.InternalError(err.Error(), diag.Location{}))
	}
	s.validate(mod, true)
	s.logger.Debug("inferred")

	ownership.New(ownership.WithLogger(s.logger)).Run(mod)
	return mod, nil
}

// validate reports IR invariant violations as internal errors.
func (s *session) validate(mod *ir.Module, typed bool) {
	for _, v := range ir.Validate(mod, typed) {
		loc := diag.At(v.Line, 0)
		s.diags.Add(diag.InternalError(fmt.Sprintf("%s: %s [%s]", v.Field, v.Message, v.Code), loc))
	}
}

func (s *session) run(source string) (*GeneratedCode, error) {
	mod, err := s.lower(source)
	if err != nil {
		return nil, err
	}

	gen := codegen.New(s.diags,
		codegen.WithLogger(s.logger),
		codegen.WithProfile(s.profile),
		codegen.WithMapping(s.table),
		codegen.WithTests(s.opts.GenerateTests),
	)
	file := gen.Generate(mod)
	s.logger.Debug("generated", "items", len(file.Items))

	if s.opts.Optimize {
		st := optimize.New(optimize.WithLogger(s.logger), optimize.WithIntBits(s.profile.IntBits)).File(file)
		s.logger.Debug("optimized",
			"folded", st.Folded, "propagated", st.Propagated,
			"removed", st.Removed, "hoisted", st.Hoisted)
	}

	code, smap := rust.Print(file)
	out := &GeneratedCode{Code: code, Diagnostics: s.diags.Items()}
	if s.opts.EmitSourceMap {
		out.SourceMap = smap
	}
	return out, nil
}
