package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/rust"
)

func intPtr(n int) *int { return &n }

func sampleResult() *Result {
	r := NewResult()
	r.Code = "pub fn f() -> i64 {\n    return 1;\n}\n"
	r.Diagnostics = []diag.Diagnostic{
		*diag.UnsupportedConstruct("lambda", diag.At(4, 9).In("f")),
		*diag.AmbiguousType("v", []string{"int", "str"}, diag.At(6, 5)),
	}
	r.SourceMap = rust.SourceMap{{SourceLine: 2, GenStart: 2, GenEnd: 2}}
	return r
}

func TestEvaluateAssertions(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		pass      bool
	}{
		{"contains", Assertion{Type: AssertCodeContains, Text: "return 1;"}, true},
		{"contains missing", Assertion{Type: AssertCodeContains, Text: "return 2;"}, false},
		{"not contains", Assertion{Type: AssertCodeNotContains, Text: "mut"}, true},
		{"not contains present", Assertion{Type: AssertCodeNotContains, Text: "pub fn"}, false},
		{"matches", Assertion{Type: AssertCodeMatches, Pattern: `fn f\(\) -> i\d+`}, true},
		{"matches none", Assertion{Type: AssertCodeMatches, Pattern: `fn g`}, false},
		{"diagnostic any", Assertion{Type: AssertDiagnostic, Kind: "UNSUPPORTED_CONSTRUCT"}, true},
		{"diagnostic construct", Assertion{Type: AssertDiagnostic, Kind: "UNSUPPORTED_CONSTRUCT", Construct: "lambda"}, true},
		{"diagnostic wrong construct", Assertion{Type: AssertDiagnostic, Kind: "UNSUPPORTED_CONSTRUCT", Construct: "yield"}, false},
		{"diagnostic line", Assertion{Type: AssertDiagnostic, Kind: "AMBIGUOUS_TYPE", Line: 6}, true},
		{"diagnostic wrong line", Assertion{Type: AssertDiagnostic, Kind: "AMBIGUOUS_TYPE", Line: 7}, false},
		{"diagnostic count", Assertion{Type: AssertDiagnostic, Kind: "AMBIGUOUS_TYPE", Count: intPtr(1)}, true},
		{"diagnostic zero count", Assertion{Type: AssertDiagnostic, Kind: "INTERNAL_ERROR", Count: intPtr(0)}, true},
		{"diagnostic absent", Assertion{Type: AssertDiagnostic, Kind: "INTERNAL_ERROR"}, false},
		{"no errors", Assertion{Type: AssertNoErrors}, false},
		{"source map", Assertion{Type: AssertSourceMap, Line: 2}, true},
		{"source map missing", Assertion{Type: AssertSourceMap, Line: 3}, false},
		{"unknown", Assertion{Type: "bogus"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			if tt.pass {
				assert.Empty(t, errs)
			} else {
				assert.Len(t, errs, 1)
			}
		})
	}
}

func TestNoErrorsIgnoresWarnings(t *testing.T) {
	r := NewResult()
	r.Diagnostics = []diag.Diagnostic{*diag.AmbiguousType("v", nil, diag.At(1, 1))}
	assert.Empty(t, EvaluateAssertions(r, []Assertion{{Type: AssertNoErrors}}))
	assert.False(t, r.HasErrors())
}

func TestAssertionErrorIncludesCode(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{{Type: AssertCodeContains, Text: "nope"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "assertion[0]")
	assert.Contains(t, errs[0], `Expected: code containing "nope"`)
	assert.Contains(t, errs[0], "  2 |     return 1;")
}
