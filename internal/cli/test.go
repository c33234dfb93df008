package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/pyrs/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // golden snapshot directory
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run conformance scenarios using the harness framework.

Each scenario transpiles its source several times, checks that every run
produces identical output, and evaluates its assertions. When a golden
snapshot exists for a scenario it must match as well.

Golden snapshots live in --golden, by default the "golden" directory next
to the scenarios directory.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  pyrs test ./testdata/scenarios
  pyrs test ./testdata/scenarios --filter "set_*"
  pyrs test ./testdata/scenarios --update
  pyrs test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden snapshot directory")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	files, err := harness.FindScenarios(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	golden := goldenStore{dir: opts.GoldenDir, update: opts.Update}
	if golden.dir == "" {
		golden.dir = filepath.Join(filepath.Dir(filepath.Clean(scenariosDir)), "golden")
	}

	w := cmd.OutOrStdout()
	text := opts.Format != "json"
	if text && len(files) == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		r := golden.run(file)
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, r)
		if text {
			printScenario(w, r)
		}
	}

	var failed error
	if result.Failed > 0 {
		failed = NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	if !text {
		status, cliErr := "ok", (*CLIError)(nil)
		if failed != nil {
			status = "error"
			cliErr = &CLIError{Code: "E_TEST_FAILED", Message: failed.Error()}
		}
		formatter := &OutputFormatter{Format: "json", Writer: w}
		if err := formatter.JSON(status, result, cliErr); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if failed == nil {
		fmt.Fprintln(w, passStyle.Sprint("✓ All scenarios passed"))
	}
	return failed
}

// goldenStore compares scenario snapshots with <dir>/<name>.golden, the
// same naming harness.AssertGolden uses, or rewrites them when update is
// set. A scenario without a golden file is judged by its assertions alone.
type goldenStore struct {
	dir    string
	update bool
}

func (g goldenStore) run(file string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}
	result, err := harness.Run(scenario)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	out := ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
	if err := g.check(scenario.Name, harness.Snapshot(result)); err != nil {
		out.Pass = false
		out.Errors = append(out.Errors, err.Error())
	}
	return out
}

func (g goldenStore) check(name string, snapshot []byte) error {
	path := filepath.Join(g.dir, name+".golden")
	if g.update {
		if err := os.MkdirAll(g.dir, 0755); err != nil {
			return fmt.Errorf("failed to update golden file: %w", err)
		}
		if err := os.WriteFile(path, snapshot, 0644); err != nil {
			return fmt.Errorf("failed to update golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return fmt.Errorf("golden comparison failed: %w", err)
	case !bytes.Equal(want, snapshot):
		return fmt.Errorf("output does not match golden file (run with --update to regenerate)")
	}
	return nil
}

func printScenario(w io.Writer, r ScenarioResult) {
	if r.Pass {
		fmt.Fprintf(w, "%s %s\n", passStyle.Sprint("✓"), r.Name)
		return
	}
	fmt.Fprintf(w, "%s %s\n", errorStyle.Sprint("✗"), r.Name)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
