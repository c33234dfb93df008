package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as golden text: the generated code followed by
// one comment line per diagnostic.
func Snapshot(r *Result) []byte {
	var buf strings.Builder
	buf.WriteString(r.Code)
	if len(r.Diagnostics) > 0 {
		if r.Code != "" && !strings.HasSuffix(r.Code, "\n") {
			buf.WriteByte('\n')
		}
		buf.WriteString("// diagnostics:\n")
		for i := range r.Diagnostics {
			fmt.Fprintf(&buf, "//   %s\n", r.Diagnostics[i].String())
		}
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario, fails t on assertion failures, and
// compares the snapshot against dir/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, dir string) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	for _, e := range result.Errors {
		t.Error(e)
	}
	AssertGolden(t, dir, scenario.Name, result)
	return result, nil
}

// AssertGolden compares a result already in hand against a golden file.
func AssertGolden(t *testing.T, dir, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(result))
}
