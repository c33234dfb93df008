package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchFixture(t *testing.T) (src, out string) {
	t.Helper()
	root := t.TempDir()
	src = filepath.Join(root, "src")
	writeSource(t, src, "calc.py", calcSource)
	writeSource(t, src, "geo/shapes.py", "def square(s: int) -> int:\n    return s * s\n")
	return src, filepath.Join(root, "out")
}

func TestBatchWritesMirroredTree(t *testing.T) {
	src, out := batchFixture(t)

	stdout, _, err := execute(NewBatchCommand(newTranspile(t, "text")), src, "--out", out, "--jobs", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 file(s), 0 cached, 0 failed")

	calc, err := os.ReadFile(filepath.Join(out, "calc.rs"))
	require.NoError(t, err)
	assert.Contains(t, string(calc), "pub fn area(")

	shapes, err := os.ReadFile(filepath.Join(out, "geo", "shapes.rs"))
	require.NoError(t, err)
	assert.Contains(t, string(shapes), "pub fn square(s: i64) -> i64 {")
}

func TestBatchRequiresOut(t *testing.T) {
	src, _ := batchFixture(t)

	_, _, err := execute(NewBatchCommand(newTranspile(t, "text")), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out")
}

func TestBatchUsesCacheAcrossRuns(t *testing.T) {
	src, out := batchFixture(t)
	cache := filepath.Join(t.TempDir(), "state", "cache.db")

	_, _, err := execute(NewBatchCommand(newTranspile(t, "text")), src, "--out", out, "--cache", cache)
	require.NoError(t, err)

	stdout, _, err := execute(NewBatchCommand(newTranspile(t, "json")), src, "--out", out, "--cache", cache)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   BatchReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Cached)
	require.Len(t, resp.Data.Files, 2)
	for _, f := range resp.Data.Files {
		assert.True(t, f.Cached, f.File)
		assert.FileExists(t, f.Output)
	}
	assert.NotEmpty(t, resp.Data.RunID)
}

func TestBatchReportsFailedFiles(t *testing.T) {
	src, out := batchFixture(t)
	writeSource(t, src, "broken.py", brokenSource)

	stdout, errOut, err := execute(NewBatchCommand(newTranspile(t, "text")), src, "--out", out)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "3 file(s), 0 cached, 1 failed")
	assert.Contains(t, errOut, "SYNTAX_ERROR")
	assert.NoFileExists(t, filepath.Join(out, "broken.rs"))
}

func TestBatchCacheFromConfig(t *testing.T) {
	src, out := batchFixture(t)
	cfgDir := t.TempDir()
	cfg := writeSource(t, cfgDir, "pyrs.yaml", "cache: .pyrs/cache.db\njobs: 1\n")

	_, _, err := execute(NewBatchCommand(&RootOptions{Format: "text", ConfigPath: cfg}), src, "--out", out)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfgDir, ".pyrs", "cache.db"))
}
