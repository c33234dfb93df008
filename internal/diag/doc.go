// Package diag defines the diagnostics reported by the transpiler core.
//
// Every stage appends to a caller-supplied Collector instead of writing to a
// console. A Collector belongs to exactly one Transpile call; concurrent calls
// must each use their own.
//
// Recovery policy per kind:
//   - UnsupportedConstruct: the enclosing statement or function is skipped
//   - AmbiguousType: the binding falls back to Any, generation continues
//   - UnsupportedConversion: a placeholder is emitted in place of the expression
//   - InternalError: the current function is abandoned
//
// Diagnostic implements error so the entry point can return a parse failure as
// a single diagnostic.
package diag
