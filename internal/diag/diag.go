package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the diagnostic variant.
type Kind string

const (
	// KindUnsupportedConstruct marks a source construct with no IR or lowering rule.
	KindUnsupportedConstruct Kind = "UNSUPPORTED_CONSTRUCT"

	// KindAmbiguousType marks a binding whose candidate types did not unify.
	KindAmbiguousType Kind = "AMBIGUOUS_TYPE"

	// KindUnsupportedConversion marks a resolved type with no matching codegen rule.
	KindUnsupportedConversion Kind = "UNSUPPORTED_CONVERSION"

	// KindInternalError marks an invariant violation scoped to one function.
	KindInternalError Kind = "INTERNAL_ERROR"

	// KindSyntaxError marks source text the parser could not read.
	KindSyntaxError Kind = "SYNTAX_ERROR"
)

// Severity lets the caller decide which diagnostics block downstream use.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Location points at a position in the source module.
// Line and Column are 1-based; zero means unknown.
type Location struct {
	Line     int    `json:"line" yaml:"line"`
	Column   int    `json:"column" yaml:"column"`
	Function string `json:"function,omitempty" yaml:"function,omitempty"`
}

func (l Location) String() string {
	var b strings.Builder
	if l.Line > 0 {
		fmt.Fprintf(&b, "%d:%d", l.Line, l.Column)
	}
	if l.Function != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "in %s", l.Function)
	}
	return b.String()
}

// At builds a location from a line and column.
func At(line, col int) Location {
	return Location{Line: line, Column: col}
}

// In returns a copy of the location attributed to function fn.
func (l Location) In(fn string) Location {
	l.Function = fn
	return l
}

// Diagnostic is one reported problem. Only the fields relevant to Kind are set.
type Diagnostic struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Location Location `json:"location"`

	// Construct names the unsupported source construct (UnsupportedConstruct).
	Construct string `json:"construct,omitempty"`

	// Binding and Candidates describe a failed unification (AmbiguousType).
	Binding    string   `json:"binding,omitempty"`
	Candidates []string `json:"candidates,omitempty"`

	// Expression renders the expression that could not be lowered (UnsupportedConversion).
	Expression string `json:"expression,omitempty"`
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	return d.String()
}

// String renders the diagnostic as "line:col in fn: severity[KIND]: message".
func (d *Diagnostic) String() string {
	loc := d.Location.String()
	if loc != "" {
		return fmt.Sprintf("%s: %s[%s]: %s", loc, d.Severity, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s[%s]: %s", d.Severity, d.Kind, d.Message)
}

// UnsupportedConstruct creates a diagnostic for a construct outside the subset.
func UnsupportedConstruct(construct string, loc Location) *Diagnostic {
	return &Diagnostic{
		Kind:      KindUnsupportedConstruct,
		Severity:  SeverityError,
		Message:   fmt.Sprintf("unsupported construct: %s", construct),
		Location:  loc,
		Construct: construct,
	}
}

// AmbiguousType creates a diagnostic for a binding that fell back to Any.
// An empty candidate list means no use constrained the binding at all.
func AmbiguousType(binding string, candidates []string, loc Location) *Diagnostic {
	msg := fmt.Sprintf("could not resolve a type for %q, falling back to Any", binding)
	if len(candidates) > 0 {
		msg = fmt.Sprintf("conflicting types for %q (%s), falling back to Any",
			binding, strings.Join(candidates, ", "))
	}
	return &Diagnostic{
		Kind:       KindAmbiguousType,
		Severity:   SeverityWarning,
		Message:    msg,
		Location:   loc,
		Binding:    binding,
		Candidates: candidates,
	}
}

// UnsupportedConversion creates a diagnostic for an expression with no lowering rule.
func UnsupportedConversion(expression, detail string, loc Location) *Diagnostic {
	msg := fmt.Sprintf("no lowering rule for %s", expression)
	if detail != "" {
		msg += ": " + detail
	}
	return &Diagnostic{
		Kind:       KindUnsupportedConversion,
		Severity:   SeverityError,
		Message:    msg,
		Location:   loc,
		Expression: expression,
	}
}

// InternalError creates a diagnostic for an invariant violation.
func InternalError(message string, loc Location) *Diagnostic {
	return &Diagnostic{
		Kind:     KindInternalError,
		Severity: SeverityError,
		Message:  message,
		Location: loc,
	}
}

// SyntaxError creates a diagnostic for unparseable source.
func SyntaxError(message string, loc Location) *Diagnostic {
	return &Diagnostic{
		Kind:     KindSyntaxError,
		Severity: SeverityError,
		Message:  message,
		Location: loc,
	}
}

// IsKind reports whether err is a Diagnostic of the given kind.
// Uses errors.As to handle wrapped errors.
func IsKind(err error, kind Kind) bool {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d.Kind == kind
	}
	return false
}

// IsInternalError reports whether err is an InternalError diagnostic.
func IsInternalError(err error) bool {
	return IsKind(err, KindInternalError)
}

// IsUnsupportedConstruct reports whether err is an UnsupportedConstruct diagnostic.
func IsUnsupportedConstruct(err error) bool {
	return IsKind(err, KindUnsupportedConstruct)
}
