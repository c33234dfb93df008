package optimize

import (
	"io"
	"log/slog"

	"github.com/roach88/pyrs/internal/rust"
)

// Stats counts the rewrites of one run.
type Stats struct {
	Folded     int // operators replaced by their value
	Propagated int // reads replaced by a literal
	Removed    int // dead lets dropped
	Hoisted    int // common subexpressions bound to a __cse let
}

// Changed reports whether any rewrite happened.
func (s Stats) Changed() bool {
	return s.Folded+s.Propagated+s.Removed+s.Hoisted > 0
}

func (s *Stats) add(o Stats) {
	s.Folded += o.Folded
	s.Propagated += o.Propagated
	s.Removed += o.Removed
	s.Hoisted += o.Hoisted
}

// Optimizer runs the rewrite passes.
type Optimizer struct {
	logger    *slog.Logger
	intBits   int
	maxRounds int
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger sets the logger for pass statistics.
func WithLogger(l *slog.Logger) Option {
	return func(o *Optimizer) {
		o.logger = l
	}
}

// WithIntBits sets the width of unsuffixed integer literals, the native
// integer of the target profile.
func WithIntBits(bits int) Option {
	return func(o *Optimizer) {
		o.intBits = bits
	}
}

// WithMaxRounds bounds how often the passes are repeated per function.
func WithMaxRounds(n int) Option {
	return func(o *Optimizer) {
		o.maxRounds = n
	}
}

// New creates an Optimizer.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		intBits:   64,
		maxRounds: 8,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// File optimizes every function and constant of f in place.
func (o *Optimizer) File(f *rust.File) Stats {
	var total Stats
	for _, it := range f.Items {
		if c, ok := it.(*rust.Const); ok {
			var s Stats
			c.Value = rust.Rewrite(c.Value, o.folder(&s))
			total.add(s)
		}
	}
	for _, fn := range rust.Functions(f) {
		total.add(o.Fn(fn))
	}
	o.logger.Debug("optimized",
		"folded", total.Folded,
		"propagated", total.Propagated,
		"removed", total.Removed,
		"hoisted", total.Hoisted)
	return total
}

// Fn optimizes one function body in place.
func (o *Optimizer) Fn(fn *rust.Fn) Stats {
	var total Stats
	if fn.Body == nil {
		return total
	}
	names := 0
	for round := 0; round < o.maxRounds; round++ {
		var s Stats
		rust.RewriteBlock(fn.Body, o.folder(&s))
		o.propagate(fn, &s)
		rust.RewriteBlock(fn.Body, o.folder(&s))
		o.eliminate(fn, &names, &s)
		total.add(s)
		if !s.Changed() {
			break
		}
	}
	return total
}
