package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pyrs", cmd.Use)
	assert.Contains(t, cmd.Long, "Rust")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"transpile", "check", "ir", "batch", "runs", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("no-color"))
}

func TestPipelineFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"transpile", "check", "ir", "batch"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)

			profile := sub.Flags().Lookup("profile")
			require.NotNil(t, profile)
			assert.Equal(t, "std", profile.DefValue)

			for _, flag := range []string{"optimize", "tests", "mapping"} {
				assert.NotNil(t, sub.Flags().Lookup(flag), flag)
			}
		})
	}
}

func TestTranspileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	transpileCmd, _, err := cmd.Find([]string{"transpile"})
	require.NoError(t, err)

	outputFlag := transpileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)

	require.NotNil(t, transpileCmd.Flags().Lookup("source-map"))
	require.NotNil(t, transpileCmd.Flags().Lookup("module"))
}

func TestBatchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	batchCmd, _, err := cmd.Find([]string{"batch"})
	require.NoError(t, err)

	jobsFlag := batchCmd.Flags().Lookup("jobs")
	require.NotNil(t, jobsFlag)
	assert.Equal(t, "j", jobsFlag.Shorthand)
	assert.Equal(t, "0", jobsFlag.DefValue)

	require.NotNil(t, batchCmd.Flags().Lookup("out"))
	require.NotNil(t, batchCmd.Flags().Lookup("cache"))
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "invalid", "check", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootRunsSubcommand(t *testing.T) {
	path := writeSource(t, t.TempDir(), "calc.py", calcSource)

	cmd := NewRootCommand()
	out, _, err := execute(cmd, "--config", noConfig(t), "--no-color", "transpile", path, "--profile", "wasm32")
	require.NoError(t, err)
	assert.Contains(t, out, "pub fn area(w: i32, h: i32) -> i32 {")
}
