package ir

// Version constants for the IR schema and the code generator.
// Both take part in cache keys, so bump them when output can change.
const (
	// IRVersion is the IR dump schema version.
	IRVersion = "1"

	// CodegenVersion is the pyrs code generator version.
	CodegenVersion = "0.3.0"
)
