package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/rust"
)

// marshalDiagnostics converts diagnostics to canonical JSON TEXT for storage.
func marshalDiagnostics(ds []diag.Diagnostic) (string, error) {
	if len(ds) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(ds)
	if err != nil {
		return "", fmt.Errorf("marshal diagnostics: %w", err)
	}
	return canonical(raw, "diagnostics")
}

// marshalSourceMap converts a source map to canonical JSON TEXT.
func marshalSourceMap(m rust.SourceMap) (string, error) {
	if len(m) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal source map: %w", err)
	}
	return canonical(raw, "source map")
}

// canonical re-encodes JSON through ir.MarshalCanonical so equal values are
// stored byte-identical.
func canonical(raw []byte, what string) (string, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	data, err := ir.MarshalCanonical(integers(v))
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	return string(data), nil
}

func unmarshalDiagnostics(data string) ([]diag.Diagnostic, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ds []diag.Diagnostic
	if err := json.Unmarshal([]byte(data), &ds); err != nil {
		return nil, fmt.Errorf("unmarshal diagnostics: %w", err)
	}
	return ds, nil
}

func unmarshalSourceMap(data string) (rust.SourceMap, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var m rust.SourceMap
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("unmarshal source map: %w", err)
	}
	return m, nil
}

// integers replaces decoded json.Number values with int64. Stored records
// carry no floats.
func integers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		return val.String()
	case []any:
		for i := range val {
			val[i] = integers(val[i])
		}
	case map[string]any:
		for k := range val {
			val[k] = integers(val[k])
		}
	}
	return v
}
