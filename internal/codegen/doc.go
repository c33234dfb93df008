// Package codegen lowers an analyzed IR module to a Rust syntax tree.
//
// Lowering is a pure function of the annotated IR: every expression is
// dispatched on its IR variant and resolved type to exactly one rule. The
// ownership facts decide the surface form:
//
//   - a binding that is reassigned or mutated in place is declared let mut
//   - a parameter passed by reference is received as &T, &str or &[T], and
//     arguments are borrowed to match
//   - a non-copy value read at its last use is moved, otherwise cloned
//
// Constructs with no rule for their (variant, type) pair become a todo!()
// placeholder and an UnsupportedConversion diagnostic; the rest of the
// function is still generated.
//
// Raised errors use a generated PyException type. Fallible functions return
// Result<T, PyException>; try blocks become an immediately invoked closure
// whose error is dispatched on the exception kind.
package codegen
