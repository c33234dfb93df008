// Package bridge lowers the parsed source tree into the IR.
//
// The bridge emits one IR declaration per top-level declaration in source
// order and desugars surface syntax the later passes should not see:
//   - f-strings become ordered literal and interpolation parts
//   - tuple assignment becomes one multi-target Assign
//   - augmented assignment becomes Assign with Op set
//   - chained comparisons become an "and" of binary comparisons
//   - assert becomes If(not test) -> Raise(AssertionError)
//   - pass is dropped
//
// A construct outside the subset aborts only its enclosing function, which
// is kept as a Skipped stub so call sites still resolve. The module is
// always produced.
package bridge
