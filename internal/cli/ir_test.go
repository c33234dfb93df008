package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRDumpIsJSON(t *testing.T) {
	path := writeSource(t, t.TempDir(), "calc.py", calcSource)

	out, _, err := execute(NewIRCommand(newTranspile(t, "text")), path)
	require.NoError(t, err)

	var dump map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &dump))
	assert.Equal(t, "calc", dump["module"])
	assert.Equal(t, "1", dump["ir_version"])
	decls, ok := dump["decls"].([]any)
	require.True(t, ok)
	assert.Len(t, decls, 2)
}

func TestIRDumpIsDeterministic(t *testing.T) {
	path := writeSource(t, t.TempDir(), "calc.py", calcSource)

	first, _, err := execute(NewIRCommand(newTranspile(t, "text")), path, "--canonical")
	require.NoError(t, err)
	second, _, err := execute(NewIRCommand(newTranspile(t, "text")), path, "--canonical")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIRJSONIncludesHash(t *testing.T) {
	path := writeSource(t, t.TempDir(), "calc.py", calcSource)

	out, _, err := execute(NewIRCommand(newTranspile(t, "json")), path)
	require.NoError(t, err)

	var resp struct {
		Status string   `json:"status"`
		Data   IRReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data.Hash, 64)
	assert.NotEmpty(t, resp.Data.IR)
}

func TestIRToFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "calc.py", calcSource)
	outFile := filepath.Join(dir, "calc.ir.json")

	out, _, err := execute(NewIRCommand(newTranspile(t, "text")), path, "-o", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote IR to")

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestIRSyntaxError(t *testing.T) {
	path := writeSource(t, t.TempDir(), "broken.py", brokenSource)

	_, errOut, err := execute(NewIRCommand(newTranspile(t, "text")), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "SYNTAX_ERROR")
}
