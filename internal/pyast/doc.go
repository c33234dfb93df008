// Package pyast reads the supported Python subset into a syntax tree.
//
// The lexer is indentation aware: it emits INDENT and DEDENT tokens from the
// leading whitespace of logical lines and suppresses NEWLINE inside brackets.
// The parser is recursive descent over that token stream and mirrors the node
// shapes of Python's own ast module, so the bridge can follow the reference
// grammar closely.
//
// Parse reports the first syntax error as a *SyntaxError. Constructs that are
// valid Python but outside the transpiled subset (yield, global, walrus, ...)
// still parse; rejecting them is the bridge's job.
package pyast
