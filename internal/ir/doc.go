// Package ir provides the typed intermediate representation for pyrs.
//
// The bridge builds a Module once. Inference and ownership analysis then fill
// the type, binding and ownership slots in place; the code generator only
// reads. ir imports nothing internal, so every other package can depend on it
// without cycles.
//
// Key design constraints:
//   - Stmt, Expr, Decl and Type are sealed interfaces (closed variants)
//   - Unknown is transient and must never reach code generation
//   - Bindings carry identity; two sibling branches may own two bindings of
//     the same name
//   - Dumps and hashes go through MarshalCanonical so output is byte-stable
package ir
