package harness

import (
	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/rust"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: deterministic output and every
	// assertion satisfied.
	Pass bool `json:"pass"`

	// Code is the generated Rust of the first run. Empty when the source
	// did not parse.
	Code string `json:"code"`

	// Diagnostics of the first run. A syntax error appears here too.
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`

	SourceMap rust.SourceMap `json:"source_map,omitempty"`

	// Runs is how many times the source was transpiled.
	Runs int `json:"runs"`

	// Errors contains assertion and determinism failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// HasErrors reports whether any diagnostic has error severity.
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == diag.SeverityError {
			return true
		}
	}
	return false
}
