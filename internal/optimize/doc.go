// Package optimize rewrites a generated Rust tree in place.
//
// Four passes run over every function body until none changes anything:
//
//   - Constant folding evaluates integer and boolean operators over literal
//     operands. Integer results are computed exactly and left unfolded when
//     they overflow the operand type, so a fold never hides a panic.
//   - Constant propagation substitutes a literal let into its readers. A
//     name qualifies only when the let is its single binding site in the
//     function: no other let, parameter, pattern or assignment names it.
//   - Dead literal lets are dropped once every reader was substituted.
//   - Common subexpression elimination hoists pure arithmetic that repeats
//     within one statement into a let __cseN ahead of it. Only operands
//     that are immutable bindings or literals qualify, and only positions
//     the statement always evaluates are searched.
package optimize
