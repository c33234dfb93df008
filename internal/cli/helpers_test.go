package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const calcSource = `def area(w: int, h: int) -> int:
    return w * h


def double(n: int) -> int:
    d = n * 2
    return d
`

const unsupportedSource = `def bad():
    global counter
    counter = 1

def good(a: int) -> int:
    return a + 1
`

const brokenSource = "def f(:\n    return 1\n"

// writeSource writes content to dir/name, creating parents.
func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// noConfig points the command at an empty config so a pyrs.yaml in the
// working directory cannot leak into tests.
func noConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pyrs.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	return path
}
