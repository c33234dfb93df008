package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/diag"
)

func TestSnapshot(t *testing.T) {
	r := NewResult()
	r.Code = "pub fn f() {}\n"
	r.Diagnostics = []diag.Diagnostic{*diag.UnsupportedConstruct("lambda", diag.At(3, 5))}

	got := string(Snapshot(r))
	assert.Equal(t, "pub fn f() {}\n// diagnostics:\n//   3:5: error[UNSUPPORTED_CONSTRUCT]: unsupported construct: lambda\n", got)
}

func TestSnapshot_NoDiagnostics(t *testing.T) {
	r := NewResult()
	r.Code = "pub fn f() {}\n"
	assert.Equal(t, r.Code, string(Snapshot(r)))
}

// TestRunWithGolden records a snapshot into a scratch fixture directory,
// then checks that a fresh run of the same scenario matches it.
func TestRunWithGolden(t *testing.T) {
	dir := t.TempDir()
	scenario := &Scenario{
		Name:        "golden_add",
		Description: "golden add",
		Source:      "def add(a: int, b: int) -> int:\n    return a + b\n",
		Options:     ScenarioOptions{Optimize: true},
		Assertions:  []Assertion{{Type: AssertNoErrors}},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	g := goldie.New(t, goldie.WithFixtureDir(dir), goldie.WithNameSuffix(".golden"))
	require.NoError(t, g.Update(t, scenario.Name, Snapshot(first)))

	_, err = os.Stat(filepath.Join(dir, "golden_add.golden"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario, dir)
	require.NoError(t, err)
	assert.True(t, result.Pass)
}
