// Package mapping holds the module mapping table: which target-language path
// a source module import resolves to, and how its items are rewritten.
//
// The table is read-only for the pipeline. Built-in defaults cover the
// standard modules the subset supports; projects add or override entries in
// CUE files loaded with LoadFile or LoadDir.
package mapping
