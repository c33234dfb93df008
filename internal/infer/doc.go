// Package infer assigns a concrete type to every binding and expression of
// an IR module.
//
// Inference runs per module in four steps:
//
//  1. Scope resolution creates one *ir.Binding per declared name, decides
//     which branch-local names are hoisted, and resolves every name reference.
//  2. Functions are ordered by their call graph (callees first, strongly
//     connected components together) and typed to a fixpoint: a forward pass
//     seeds types from literals, constructors, annotations and builtin
//     signatures; a backward pass refines what is still unresolved from later
//     uses; call-site specialization types unannotated parameters from their
//     arguments.
//  3. The width law records an explicit conversion on every expression whose
//     numeric type differs from the type its context requires.
//  4. Finalization degrades whatever is still Unknown to Any and reports an
//     AmbiguousType diagnostic for it.
//
// Failures never abort the module. A reference to an undeclared name is an
// InternalError that marks only the enclosing function as skipped.
//
// Running inference again on a typed module changes nothing.
package infer
