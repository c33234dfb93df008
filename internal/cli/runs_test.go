package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordRuns runs batch twice against a fresh cache and returns its path.
func recordRuns(t *testing.T) string {
	t.Helper()
	src, out := batchFixture(t)
	writeSource(t, src, "broken.py", brokenSource)
	cache := filepath.Join(t.TempDir(), "cache.db")

	for i := 0; i < 2; i++ {
		_, _, err := execute(NewBatchCommand(newTranspile(t, "text")), src, "--out", out, "--cache", cache)
		require.Error(t, err) // broken.py fails every run
	}
	return cache
}

func TestRunsListsRecordedRuns(t *testing.T) {
	cache := recordRuns(t)

	out, _, err := execute(NewRunsCommand(newTranspile(t, "json")), "--cache", cache)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   []RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	for _, r := range resp.Data {
		assert.Equal(t, 3, r.Files)
		assert.Equal(t, 1, r.Failed)
		assert.Empty(t, r.Jobs)
	}
}

func TestRunsShowsOneRun(t *testing.T) {
	cache := recordRuns(t)

	listing, _, err := execute(NewRunsCommand(newTranspile(t, "json")), "--cache", cache)
	require.NoError(t, err)
	var resp struct {
		Data []RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(listing), &resp))
	require.Len(t, resp.Data, 2)
	second := resp.Data[1].ID

	out, _, err := execute(NewRunsCommand(newTranspile(t, "text")), second, "--cache", cache)
	require.NoError(t, err)
	assert.Contains(t, out, second)
	assert.Contains(t, out, "calc.py (cached)")
	assert.Contains(t, out, "broken.py")
}

func TestRunsUnknownRun(t *testing.T) {
	cache := recordRuns(t)

	_, _, err := execute(NewRunsCommand(newTranspile(t, "text")), "no-such-run", "--cache", cache)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found")
}

func TestRunsWithoutCache(t *testing.T) {
	_, _, err := execute(NewRunsCommand(newTranspile(t, "text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cache configured")
}

func TestRunsMissingCacheFile(t *testing.T) {
	_, _, err := execute(NewRunsCommand(newTranspile(t, "text")), "--cache", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache not found")
}
