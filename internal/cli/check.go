package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/transpile"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	pipelineFlags
	Jobs int
}

// FileReport is the per-file result of check and batch.
type FileReport struct {
	File        string            `json:"file"`
	Output      string            `json:"output,omitempty"`
	Cached      bool              `json:"cached,omitempty"`
	Errors      int               `json:"errors"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
}

// CheckReport is the JSON payload of the check command.
type CheckReport struct {
	Files   []FileReport `json:"files"`
	Checked int          `json:"checked"`
	Failed  int          `json:"failed"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <path>...",
		Short: "Report diagnostics without writing code",
		Long: `Transpile Python files and report their diagnostics.

Directories are searched recursively for .py files. No code is written.

Exit codes:
  0 - No file has a syntax error or error diagnostic
  1 - At least one file failed
  2 - Command error (missing path, unknown profile, bad mapping)

Examples:
  pyrs check src/
  pyrs check calc.py geometry.py --profile wasm32
  pyrs check src/ --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	opts.pipelineFlags.register(cmd)
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "parallel workers (default: number of CPUs)")

	return cmd
}

func runCheck(opts *CheckOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := resolveConfig(opts.RootOptions, cmd, &opts.pipelineFlags)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	if cmd.Flags().Changed("jobs") {
		cfg.Jobs = opts.Jobs
	}
	logger := newLogger(opts.RootOptions, formatter.GetErrWriter())
	topts, err := transpileOptions(cfg, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	sources, err := LoadSources(paths)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	formatter.VerboseLog("Checking %d file(s)", len(sources))

	tr := transpile.New(topts, transpile.WithLogger(logger), transpile.WithWorkers(cfg.Jobs))
	run, err := tr.Batch(cmd.Context(), jobsFor(sources))
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	report := CheckReport{Files: make([]FileReport, 0, len(run.Results)), Checked: len(run.Results)}
	for _, res := range run.Results {
		fr := fileReport(res)
		if fr.Errors > 0 {
			report.Failed++
		}
		report.Files = append(report.Files, fr)
	}

	if opts.Format == "json" {
		status, cliErr := "ok", (*CLIError)(nil)
		if report.Failed > 0 {
			status = "error"
			cliErr = &CLIError{Code: ErrCodeDiagnostics, Message: fmt.Sprintf("%d file(s) failed", report.Failed)}
		}
		if err := formatter.JSON(status, report, cliErr); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, fr := range report.Files {
			if fr.Errors > 0 {
				fmt.Fprintf(w, "%s %s\n", errorStyle.Sprint("✗"), fr.File)
			} else {
				fmt.Fprintf(w, "%s %s\n", passStyle.Sprint("✓"), fr.File)
			}
			PrintDiagnostics(w, fr.File, fr.Diagnostics)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Checked %d file(s): %d failed\n", report.Checked, report.Failed)
	}

	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) failed", report.Failed))
	}
	return nil
}

func jobsFor(sources []SourceFile) []transpile.Job {
	jobs := make([]transpile.Job, len(sources))
	for i, s := range sources {
		jobs[i] = transpile.Job{Name: s.Path, Source: s.Source}
	}
	return jobs
}

// fileReport summarizes one job. A syntax error counts as one error
// diagnostic.
func fileReport(res transpile.JobResult) FileReport {
	fr := FileReport{File: res.Name, Cached: res.Cached, Diagnostics: []diag.Diagnostic{}}
	if res.Err != nil {
		var d *diag.Diagnostic
		if errors.As(res.Err, &d) {
			fr.Diagnostics = []diag.Diagnostic{*d}
		} else {
			fr.Diagnostics = []diag.Diagnostic{*diag.InternalError(res.Err.Error(), diag.Location{})}
		}
		fr.Errors = 1
		return fr
	}
	fr.Diagnostics = nonNil(res.Output.Diagnostics)
	fr.Errors = countErrors(res.Output.Diagnostics)
	return fr
}
