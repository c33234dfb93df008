// Package ownership decides, for every binding of a typed IR module, whether
// it must be declared mutable, where its value is last used, whether it
// escapes, and how parameters and method receivers are passed.
//
// The analysis has three parts:
//
//   - Assignment counting is path-aware. Sequential statements add, the
//     branches of an if or try take the maximum, and an assignment inside a
//     loop to a binding declared outside that loop counts as many. A binding
//     is Mutable iff its count exceeds one.
//   - A backward liveness scan marks the last read of each binding. A read of
//     a binding declared outside an enclosing loop is never a last use.
//   - Effects (in-place mutation, escapes, consumption) are collected per
//     function and turned into pass modes. Because passing an argument to a
//     &mut parameter mutates it, and passing it to an owning parameter
//     consumes it, the module is analyzed to a fixpoint over its call graph.
//
// The analyzer only reads types; it never changes them. Running it again on
// an analyzed module yields the same result.
package ownership
