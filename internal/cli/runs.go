package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pyrs/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Cache string
}

// RunSummary is one recorded batch run in JSON output.
type RunSummary struct {
	ID       string       `json:"id"`
	Started  string       `json:"started_at"`
	Finished string       `json:"finished_at"`
	Workers  int          `json:"workers"`
	Files    int          `json:"files"`
	Failed   int          `json:"failed"`
	Jobs     []RunJobView `json:"jobs,omitempty"`
}

// RunJobView is one job of a recorded run in JSON output.
type RunJobView struct {
	Name        string `json:"name"`
	Cached      bool   `json:"cached"`
	Diagnostics int    `json:"diagnostics"`
	Error       string `json:"error,omitempty"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show batch runs recorded in the cache",
		Long: `List batch runs recorded in the result cache, oldest first, or show
the per-file outcome of one run.

Examples:
  pyrs runs --cache .pyrs/cache.db
  pyrs runs 0190a4c2-... --cache .pyrs/cache.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Cache, "cache", "", "SQLite result cache path")

	return cmd
}

func runRuns(opts *RunsOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := resolveConfig(opts.RootOptions, cmd, nil)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	if cmd.Flags().Changed("cache") {
		cfg.Cache = opts.Cache
	}
	if cfg.Cache == "" {
		return formatter.Fail(ExitCommandError, &CodedError{Code: ErrCodeNotFound, Message: "no cache configured (use --cache or PYRS_CACHE)"})
	}
	// Opening creates the database; a missing cache is an error here.
	if _, err := os.Stat(cfg.Cache); os.IsNotExist(err) {
		return formatter.Fail(ExitCommandError, &CodedError{Code: ErrCodeNotFound, Message: fmt.Sprintf("cache not found: %s", cfg.Cache)})
	}
	st, err := store.Open(cfg.Cache)
	if err != nil {
		return formatter.Fail(ExitCommandError, &CodedError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("opening cache: %v", err)})
	}
	defer st.Close()

	ctx := cmd.Context()
	if len(args) == 1 {
		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return formatter.Fail(ExitCommandError, err)
		}
		if run == nil {
			return formatter.Fail(ExitCommandError, &CodedError{Code: ErrCodeNotFound, Message: fmt.Sprintf("run not found: %s", args[0])})
		}
		summary := summarizeRun(run, true)
		if opts.Format == "json" {
			return formatter.JSON("ok", summary, nil)
		}
		printRun(formatter, summary)
		for _, j := range summary.Jobs {
			status := passStyle.Sprint("✓")
			if j.Error != "" {
				status = errorStyle.Sprint("✗")
			}
			fmt.Fprintf(formatter.Writer, "  %s %s", status, j.Name)
			if j.Cached {
				fmt.Fprint(formatter.Writer, " (cached)")
			}
			if j.Diagnostics > 0 {
				fmt.Fprintf(formatter.Writer, " %d diagnostic(s)", j.Diagnostics)
			}
			if j.Error != "" {
				fmt.Fprintf(formatter.Writer, ": %s", j.Error)
			}
			fmt.Fprintln(formatter.Writer)
		}
		return nil
	}

	ids, err := st.RunIDs(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	summaries := make([]RunSummary, 0, len(ids))
	for _, id := range ids {
		run, err := st.GetRun(ctx, id)
		if err != nil {
			return formatter.Fail(ExitCommandError, err)
		}
		if run != nil {
			summaries = append(summaries, summarizeRun(run, false))
		}
	}

	if opts.Format == "json" {
		return formatter.JSON("ok", summaries, nil)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, s := range summaries {
		printRun(formatter, s)
	}
	return nil
}

func summarizeRun(run *store.Run, withJobs bool) RunSummary {
	s := RunSummary{
		ID:       run.ID,
		Started:  run.Started.UTC().Format(time.RFC3339),
		Finished: run.Finished.UTC().Format(time.RFC3339),
		Workers:  run.Workers,
		Files:    len(run.Jobs),
		Failed:   run.Failed(),
	}
	if withJobs {
		for _, j := range run.Jobs {
			s.Jobs = append(s.Jobs, RunJobView{Name: j.Name, Cached: j.Cached, Diagnostics: j.Diagnostics, Error: j.Error})
		}
	}
	return s
}

func printRun(formatter *OutputFormatter, s RunSummary) {
	fmt.Fprintf(formatter.Writer, "%s  %s  %d file(s), %d failed, %d worker(s)\n",
		s.ID, s.Started, s.Files, s.Failed, s.Workers)
}
