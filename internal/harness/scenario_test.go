package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: add
description: "adds"
source: |
  def add(a: int, b: int) -> int:
      return a + b
options:
  target_profile: wasm32
  optimize: true
runs: 3
assertions:
  - type: code_contains
    text: "i32"
  - type: diagnostic
    kind: AMBIGUOUS_TYPE
    count: 0
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "add", s.Name)
	assert.Equal(t, "wasm32", s.Options.TargetProfile)
	assert.True(t, s.Options.Optimize)
	assert.Equal(t, 3, s.Runs)
	require.Len(t, s.Assertions, 2)
	require.NotNil(t, s.Assertions[1].Count)
	assert.Equal(t, 0, *s.Assertions[1].Count)
}

func TestLoadScenario_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m.py"), []byte("x = 1\n"), 0o644))
	path := writeScenario(t, dir, `
name: rel
description: "relative source"
source_file: m.py
assertions:
  - type: no_errors
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "m.py"), s.SourceFile)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", "name: a\ndescription: b\nsource: x\nassertion: []\n", "failed to parse YAML"},
		{"missing name", "description: b\nsource: x\nassertions: [{type: no_errors}]\n", "name is required"},
		{"missing description", "name: a\nsource: x\nassertions: [{type: no_errors}]\n", "description is required"},
		{"no source", "name: a\ndescription: b\nassertions: [{type: no_errors}]\n", "source or source_file is required"},
		{"both sources", "name: a\ndescription: b\nsource: x\nsource_file: y.py\nassertions: [{type: no_errors}]\n", "mutually exclusive"},
		{"missing source file", "name: a\ndescription: b\nsource_file: nope.py\nassertions: [{type: no_errors}]\n", "file not found"},
		{"no assertions", "name: a\ndescription: b\nsource: x\n", "assertions list is required"},
		{"negative runs", "name: a\ndescription: b\nsource: x\nruns: -1\nassertions: [{type: no_errors}]\n", "runs must be non-negative"},
		{"unknown type", "name: a\ndescription: b\nsource: x\nassertions: [{type: trace_order}]\n", "unknown assertion type"},
		{"contains without text", "name: a\ndescription: b\nsource: x\nassertions: [{type: code_contains}]\n", "text is required"},
		{"bad pattern", "name: a\ndescription: b\nsource: x\nassertions: [{type: code_matches, pattern: \"(\"}]\n", "invalid pattern"},
		{"unknown kind", "name: a\ndescription: b\nsource: x\nassertions: [{type: diagnostic, kind: OOPS}]\n", "unknown diagnostic kind"},
		{"source map without line", "name: a\ndescription: b\nsource: x\nassertions: [{type: source_map}]\n", "line is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, t.TempDir(), tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", "sub/c.yaml"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	all, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "sub", "c.yaml"),
	}, all)

	filtered, err := FindScenarios(dir, "b*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml")}, filtered)
}
