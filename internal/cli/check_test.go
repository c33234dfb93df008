package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/diag"
)

func TestCheckCleanDirectory(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "calc.py", calcSource)
	writeSource(t, dir, "pkg/one.py", "def one() -> int:\n    return 1\n")

	out, _, err := execute(NewCheckCommand(newTranspile(t, "text")), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "calc.py")
	assert.Contains(t, out, "one.py")
	assert.Contains(t, out, "Checked 2 file(s): 0 failed")
}

func TestCheckReportsFailures(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "calc.py", calcSource)
	writeSource(t, dir, "broken.py", brokenSource)
	writeSource(t, dir, "mixed.py", unsupportedSource)

	out, _, err := execute(NewCheckCommand(newTranspile(t, "text")), dir, "--jobs", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "SYNTAX_ERROR")
	assert.Contains(t, out, "UNSUPPORTED_CONSTRUCT")
	assert.Contains(t, out, "Checked 3 file(s): 2 failed")
}

func TestCheckJSON(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a_calc.py", calcSource)
	writeSource(t, dir, "b_broken.py", brokenSource)

	out, _, err := execute(NewCheckCommand(newTranspile(t, "json")), dir)
	require.Error(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Checked)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Files, 2)

	// Sorted input order is kept.
	assert.Contains(t, resp.Data.Files[0].File, "a_calc.py")
	assert.Zero(t, resp.Data.Files[0].Errors)
	assert.Contains(t, resp.Data.Files[1].File, "b_broken.py")
	require.Len(t, resp.Data.Files[1].Diagnostics, 1)
	assert.Equal(t, diag.KindSyntaxError, resp.Data.Files[1].Diagnostics[0].Kind)
}

func TestCheckMissingPath(t *testing.T) {
	_, _, err := execute(NewCheckCommand(newTranspile(t, "text")), "/nonexistent/src")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestCheckEmptyDirectory(t *testing.T) {
	_, _, err := execute(NewCheckCommand(newTranspile(t, "text")), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestCheckRequiresArgs(t *testing.T) {
	_, _, err := execute(NewCheckCommand(newTranspile(t, "text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}
