// Package transpile runs the pyrs pipeline: parse, bridge to IR, infer
// types, analyze ownership, generate Rust, optimize, print.
//
// Transpile handles one source text. Each call builds a fresh session (its
// own diagnostics collector and stage instances) and shares nothing with
// other calls, so concurrent calls are safe.
//
// Transpiler adds the batch surface: a bounded worker pool over many
// sources, an optional content-addressed result cache, and a run record
// per batch.
//
// # Errors
//
// Transpile returns an error only when the source does not parse. Every
// other problem becomes a diagnostic in GeneratedCode and best-effort code
// is still returned.
package transpile
