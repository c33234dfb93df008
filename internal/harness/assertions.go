package harness

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/pyrs/internal/diag"
)

// AssertionError is returned when an assertion fails.
// It includes the generated code to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Code     string // Generated code for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Code != "" {
		fmt.Fprintf(&buf, "\nGenerated code:\n")
		for i, line := range strings.Split(strings.TrimRight(e.Code, "\n"), "\n") {
			fmt.Fprintf(&buf, "  %3d | %s\n", i+1, line)
		}
	}

	return buf.String()
}

func assertCodeContains(r *Result, a Assertion) error {
	if strings.Contains(r.Code, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertCodeContains,
		Expected: fmt.Sprintf("code containing %q", a.Text),
		Actual:   "not found",
		Code:     r.Code,
	}
}

func assertCodeNotContains(r *Result, a Assertion) error {
	if !strings.Contains(r.Code, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertCodeNotContains,
		Expected: fmt.Sprintf("code without %q", a.Text),
		Actual:   "found",
		Code:     r.Code,
	}
}

func assertCodeMatches(r *Result, a Assertion) error {
	re, err := regexp.Compile(a.Pattern)
	if err != nil {
		return fmt.Errorf("code_matches: invalid pattern %q: %w", a.Pattern, err)
	}
	if re.MatchString(r.Code) {
		return nil
	}
	return &AssertionError{
		Type:     AssertCodeMatches,
		Expected: fmt.Sprintf("code matching /%s/", a.Pattern),
		Actual:   "no match",
		Code:     r.Code,
	}
}

// assertDiagnostic counts diagnostics matching kind and the optional
// construct and line filters.
func assertDiagnostic(r *Result, a Assertion) error {
	n := 0
	for _, d := range r.Diagnostics {
		if string(d.Kind) != a.Kind {
			continue
		}
		if a.Construct != "" && d.Construct != a.Construct {
			continue
		}
		if a.Line != 0 && d.Location.Line != a.Line {
			continue
		}
		n++
	}

	want := "at least 1"
	ok := n > 0
	if a.Count != nil {
		want = fmt.Sprintf("exactly %d", *a.Count)
		ok = n == *a.Count
	}
	if ok {
		return nil
	}

	filter := a.Kind
	if a.Construct != "" {
		filter += " construct=" + a.Construct
	}
	if a.Line != 0 {
		filter += fmt.Sprintf(" line=%d", a.Line)
	}
	return &AssertionError{
		Type:     AssertDiagnostic,
		Expected: fmt.Sprintf("%s diagnostic(s) %s", want, filter),
		Actual:   fmt.Sprintf("%d matching; all: %s", n, renderDiagnostics(r.Diagnostics)),
	}
}

func assertNoErrors(r *Result, _ Assertion) error {
	var errs []diag.Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == diag.SeverityError {
			errs = append(errs, d)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertNoErrors,
		Expected: "no error diagnostics",
		Actual:   renderDiagnostics(errs),
	}
}

func assertSourceMap(r *Result, a Assertion) error {
	for _, m := range r.SourceMap {
		if m.SourceLine == a.Line {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertSourceMap,
		Expected: fmt.Sprintf("a mapping for source line %d", a.Line),
		Actual:   fmt.Sprintf("%d mappings, none for that line", len(r.SourceMap)),
	}
}

func renderDiagnostics(ds []diag.Diagnostic) string {
	if len(ds) == 0 {
		return "none"
	}
	parts := make([]string, len(ds))
	for i := range ds {
		parts[i] = ds[i].String()
	}
	return strings.Join(parts, "; ")
}

// EvaluateAssertions runs all assertions against a result and returns
// error messages for failures.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertCodeContains:
			err = assertCodeContains(r, a)
		case AssertCodeNotContains:
			err = assertCodeNotContains(r, a)
		case AssertCodeMatches:
			err = assertCodeMatches(r, a)
		case AssertDiagnostic:
			err = assertDiagnostic(r, a)
		case AssertNoErrors:
			err = assertNoErrors(r, a)
		case AssertSourceMap:
			err = assertSourceMap(r, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %s", i, err.Error()))
		}
	}

	return errors
}
