package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/diag"
)

func newTranspile(t *testing.T, format string) *RootOptions {
	t.Helper()
	return &RootOptions{Format: format, ConfigPath: noConfig(t)}
}

func TestTranspileToStdout(t *testing.T) {
	path := writeSource(t, t.TempDir(), "calc.py", calcSource)

	out, errOut, err := execute(NewTranspileCommand(newTranspile(t, "text")), path)
	require.NoError(t, err)
	assert.Contains(t, out, "pub fn area(w: i64, h: i64) -> i64 {")
	assert.Contains(t, out, "pub fn double(n: i64) -> i64 {")
	assert.NotContains(t, errOut, "error[")
}

func TestTranspileToFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "calc.py", calcSource)
	outFile := filepath.Join(dir, "calc.rs")

	out, _, err := execute(NewTranspileCommand(newTranspile(t, "text")), path, "-o", outFile)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pub fn area(w: i64, h: i64) -> i64 {")
}

func TestTranspileFromStdin(t *testing.T) {
	cmd := NewTranspileCommand(newTranspile(t, "text"))
	cmd.SetIn(strings.NewReader("def one() -> int:\n    return 1\n"))

	out, _, err := execute(cmd, "-")
	require.NoError(t, err)
	assert.Contains(t, out, "pub fn one() -> i64 {")
}

func TestTranspileWasmProfile(t *testing.T) {
	path := writeSource(t, t.TempDir(), "calc.py", calcSource)

	out, _, err := execute(NewTranspileCommand(newTranspile(t, "text")), path, "--profile", "wasm32")
	require.NoError(t, err)
	assert.Contains(t, out, "pub fn area(w: i32, h: i32) -> i32 {")
}

func TestTranspileOptimizeFoldsConstants(t *testing.T) {
	path := writeSource(t, t.TempDir(), "day.py", "def seconds() -> int:\n    return 60 * 60 * 24\n")

	out, _, err := execute(NewTranspileCommand(newTranspile(t, "text")), path, "--optimize")
	require.NoError(t, err)
	assert.Contains(t, out, "return 86400;")
}

func TestTranspileUnknownProfile(t *testing.T) {
	path := writeSource(t, t.TempDir(), "calc.py", calcSource)

	out, _, err := execute(NewTranspileCommand(newTranspile(t, "text")), path, "--profile", "avr")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeUnknownProfile)
	assert.Contains(t, out, "unknown target profile")
}

func TestTranspileMissingFile(t *testing.T) {
	out, _, err := execute(NewTranspileCommand(newTranspile(t, "text")), "/nonexistent/calc.py")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "file not found")
}

func TestTranspileSyntaxError(t *testing.T) {
	path := writeSource(t, t.TempDir(), "broken.py", brokenSource)

	out, errOut, err := execute(NewTranspileCommand(newTranspile(t, "text")), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, diag.IsKind(err, diag.KindSyntaxError))
	assert.Empty(t, out)
	assert.Contains(t, errOut, "broken.py:1:")
	assert.Contains(t, errOut, "SYNTAX_ERROR")
}

func TestTranspileSyntaxErrorJSON(t *testing.T) {
	path := writeSource(t, t.TempDir(), "broken.py", brokenSource)

	out, _, err := execute(NewTranspileCommand(newTranspile(t, "json")), path)
	require.Error(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   TranspileReport `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSyntax, resp.Error.Code)
	require.Len(t, resp.Data.Diagnostics, 1)
	assert.Equal(t, diag.KindSyntaxError, resp.Data.Diagnostics[0].Kind)
	assert.Empty(t, resp.Data.Code)
}

func TestTranspileUnsupportedConstructStillWritesCode(t *testing.T) {
	path := writeSource(t, t.TempDir(), "mixed.py", unsupportedSource)

	out, errOut, err := execute(NewTranspileCommand(newTranspile(t, "text")), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "pub fn good(a: i64) -> i64 {")
	assert.Contains(t, errOut, "mixed.py:2:")
	assert.Contains(t, errOut, "UNSUPPORTED_CONSTRUCT")
}

func TestTranspileJSON(t *testing.T) {
	path := writeSource(t, t.TempDir(), "calc.py", calcSource)

	out, _, err := execute(NewTranspileCommand(newTranspile(t, "json")), path, "--module", "geometry")
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   TranspileReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "geometry", resp.Data.Module)
	assert.Contains(t, resp.Data.Code, "pub fn area(")
	assert.NotNil(t, resp.Data.Diagnostics)
}

func TestTranspileSourceMap(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "calc.py", calcSource)
	mapFile := filepath.Join(dir, "calc.map.json")

	_, _, err := execute(NewTranspileCommand(newTranspile(t, "text")), path, "--source-map", mapFile)
	require.NoError(t, err)

	data, err := os.ReadFile(mapFile)
	require.NoError(t, err)
	var mappings []map[string]int
	require.NoError(t, json.Unmarshal(data, &mappings))
	require.NotEmpty(t, mappings)

	lines := map[int]bool{}
	for _, m := range mappings {
		lines[m["source_line"]] = true
		assert.LessOrEqual(t, m["generated_line_start"], m["generated_line_end"])
	}
	assert.True(t, lines[2], "return w * h should map")
}

func TestTranspileCustomMapping(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "client.py", "from geometry import area\n\n\ndef twice(x: int) -> int:\n    return area(x, 2)\n")
	mappingFile := writeSource(t, dir, "geometry.cue", `modules: [{
	source: "geometry"
	target: "crate::geometry"
	items: area: {path: "area", params: ["int", "int"], returns: "int"}
}]
`)

	out, _, err := execute(NewTranspileCommand(newTranspile(t, "text")), path, "--mapping", mappingFile)
	require.NoError(t, err)
	assert.Contains(t, out, "use crate::geometry::area;")
}

func TestTranspileMissingMapping(t *testing.T) {
	path := writeSource(t, t.TempDir(), "calc.py", calcSource)

	_, _, err := execute(NewTranspileCommand(newTranspile(t, "text")), path, "--mapping", "/nonexistent/map.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "mapping not found")
}

func TestTranspileConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "calc.py", calcSource)
	cfg := writeSource(t, dir, "pyrs.yaml", "profile: wasm32\n")

	out, _, err := execute(NewTranspileCommand(&RootOptions{Format: "text", ConfigPath: cfg}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "i32")

	// A flag beats the config file.
	out, _, err = execute(NewTranspileCommand(&RootOptions{Format: "text", ConfigPath: cfg}), path, "--profile", "std")
	require.NoError(t, err)
	assert.Contains(t, out, "pub fn area(w: i64, h: i64) -> i64 {")
}

func TestTranspileVerboseLogsToStderr(t *testing.T) {
	path := writeSource(t, t.TempDir(), "calc.py", calcSource)
	opts := newTranspile(t, "text")
	opts.Verbose = true

	out, errOut, err := execute(NewTranspileCommand(opts), path)
	require.NoError(t, err)
	assert.Contains(t, out, "pub fn area(")
	assert.Contains(t, errOut, "Transpiling")
	assert.Contains(t, errOut, "level=DEBUG")
}
