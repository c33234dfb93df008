package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pyrs/internal/store"
	"github.com/roach88/pyrs/internal/transpile"
)

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions
	pipelineFlags
	OutDir string
	Jobs   int
	Cache  string
}

// BatchReport is the JSON payload of the batch command.
type BatchReport struct {
	RunID   string       `json:"run_id"`
	Workers int          `json:"workers"`
	Files   []FileReport `json:"files"`
	Cached  int          `json:"cached"`
	Failed  int          `json:"failed"`
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch <path>...",
		Short: "Transpile many files in parallel",
		Long: `Transpile Python files with a bounded worker pool and write one .rs file
per source under --out, mirroring the directory layout.

With --cache (or PYRS_CACHE) results are cached in a SQLite database keyed
by source hash and options, and every batch is recorded as a run; see
"pyrs runs".

Exit codes:
  0 - Every file transpiled without error diagnostics
  1 - At least one file failed
  2 - Command error (missing path, unknown profile, cache error)

Examples:
  pyrs batch src/ --out rust/src
  pyrs batch src/ --out rust/src --jobs 8 --cache .pyrs/cache.db`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, args, cmd)
		},
	}

	opts.pipelineFlags.register(cmd)
	cmd.Flags().StringVar(&opts.OutDir, "out", "", "output directory for generated .rs files")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "parallel workers (default: number of CPUs)")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "SQLite result cache path")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runBatch(opts *BatchOptions, paths []string, cmd *cobra.Command) error {
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
	if cmd.Flags().Changed("cache") {
		cfg.Cache = opts.Cache
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

	options := []transpile.Option{transpile.WithLogger(logger), transpile.WithWorkers(cfg.Jobs)}
	if cfg.Cache != "" {
		st, err := openCache(cfg.Cache)
		if err != nil {
			return formatter.Fail(ExitCommandError, err)
		}
		defer st.Close()
		options = append(options, transpile.WithCache(st))
		formatter.VerboseLog("Using cache %s", cfg.Cache)
	}
	tr := transpile.New(topts, options...)
	formatter.VerboseLog("Transpiling %d file(s) with %d worker(s)", len(sources), tr.Workers())

	run, err := tr.Batch(cmd.Context(), jobsFor(sources))
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	report := BatchReport{RunID: run.ID, Workers: tr.Workers(), Files: make([]FileReport, 0, len(run.Results))}
	for i, res := range run.Results {
		fr := fileReport(res)
		if res.Cached {
			report.Cached++
		}
		if res.Output != nil {
			out := filepath.Join(opts.OutDir, strings.TrimSuffix(sources[i].Rel, ".py")+".rs")
			if err := writeOutput(out, res.Output.Code); err != nil {
				return formatter.Fail(ExitCommandError, err)
			}
			fr.Output = out
		}
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
			mark := passStyle.Sprint("✓")
			if fr.Errors > 0 {
				mark = errorStyle.Sprint("✗")
			}
			switch {
			case fr.Output == "":
				fmt.Fprintf(w, "%s %s\n", mark, fr.File)
			case fr.Cached:
				fmt.Fprintf(w, "%s %s → %s (cached)\n", mark, fr.File, fr.Output)
			default:
				fmt.Fprintf(w, "%s %s → %s\n", mark, fr.File, fr.Output)
			}
			PrintDiagnostics(formatter.GetErrWriter(), fr.File, fr.Diagnostics)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Run %s: %d file(s), %d cached, %d failed\n",
			report.RunID, len(report.Files), report.Cached, report.Failed)
	}

	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) failed", report.Failed))
	}
	return nil
}

// openCache opens the result cache, creating its directory.
func openCache(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &CodedError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("creating cache directory: %v", err)}
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, &CodedError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("opening cache: %v", err)}
	}
	return st, nil
}

func writeOutput(path, code string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &CodedError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("creating %s: %v", filepath.Dir(path), err)}
	}
	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		return &CodedError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing %s: %v", path, err)}
	}
	return nil
}
