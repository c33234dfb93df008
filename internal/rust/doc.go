// Package rust defines the target syntax tree produced by the code generator
// and a deterministic pretty printer for it.
//
// # Tree
//
// The tree is built from three sealed interfaces:
//
//   - Item: top-level and impl-level declarations (Fn, Struct, Impl, Const,
//     Mod, Raw).
//   - Stmt: statements inside a block (Let, Assign, ExprStmt, Return, Break,
//     Continue).
//   - Expr: expressions, including Rust's block-like expressions (If, IfLet,
//     While, Loop, For, Match, BlockExpr).
//
// Types are a separate sealed interface (Type). Only this package implements
// any of them, so code generator and optimizer switches can be exhaustive.
//
// Parents own their children. The optimizer rewrites the tree in place.
//
// # Printing
//
// Print renders a File in a fixed layout: four-space indentation, one item
// per paragraph, block-like expression statements without a trailing
// semicolon. Printing the same tree twice yields byte-identical output.
//
// Items and statements carry the source line they were generated from.
// Print records, for each of them, the range of generated lines it occupies;
// the result is the source map.
package rust
