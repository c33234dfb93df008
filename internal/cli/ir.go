package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/transpile"
)

// IROptions holds flags for the ir command.
type IROptions struct {
	*RootOptions
	pipelineFlags
	Output    string // write IR to file
	Canonical bool   // compact canonical JSON instead of indented
}

// IRReport is the JSON payload of the ir command.
type IRReport struct {
	File        string            `json:"file"`
	Hash        string            `json:"hash"`
	IR          json.RawMessage   `json:"ir"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
}

// NewIRCommand creates the ir command.
func NewIRCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IROptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ir <file.py|->",
		Short: "Dump the typed intermediate representation",
		Long: `Lower a Python file to the typed, ownership-annotated IR and print it
as JSON.

The dump is deterministic: keys are sorted and bindings are identified by
name and id. With --canonical the output is the compact canonical form
whose hash is printed with --verbose.

Examples:
  pyrs ir calc.py
  pyrs ir calc.py --canonical -o calc.ir.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIR(opts, args[0], cmd)
		},
	}

	opts.pipelineFlags.register(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write IR to file instead of stdout")
	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "emit compact canonical JSON")

	return cmd
}

func runIR(opts *IROptions, path string, cmd *cobra.Command) error {
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
	topts, err := transpileOptions(cfg, newLogger(opts.RootOptions, formatter.GetErrWriter()))
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	source, err := readSource(path, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	if path != "-" {
		topts.ModuleName = transpile.ModuleNameFor(path)
	}

	mod, diags, err := transpile.Lower(source, topts)
	if err != nil {
		var d *diag.Diagnostic
		if errors.As(err, &d) {
			return reportSyntaxError(formatter, path, d)
		}
		return formatter.Fail(ExitCommandError, err)
	}

	canonical, err := ir.MarshalCanonical(ir.Dump(mod))
	if err != nil {
		return formatter.Fail(ExitCommandError, fmt.Errorf("marshaling IR: %w", err))
	}
	hash, err := ir.ModuleHash(mod)
	if err != nil {
		return formatter.Fail(ExitCommandError, fmt.Errorf("hashing IR: %w", err))
	}
	formatter.VerboseLog("IR hash %s", hash)

	data := canonical
	if !opts.Canonical {
		var buf bytes.Buffer
		if err := json.Indent(&buf, canonical, "", "  "); err != nil {
			return formatter.Fail(ExitCommandError, fmt.Errorf("indenting IR: %w", err))
		}
		data = buf.Bytes()
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0644); err != nil {
			return formatter.Fail(ExitCommandError, &CodedError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing %s: %v", opts.Output, err)})
		}
	}

	if opts.Format == "json" {
		return formatter.JSON("ok", IRReport{
			File:        path,
			Hash:        hash,
			IR:          json.RawMessage(canonical),
			Diagnostics: nonNil(diags),
		}, nil)
	}

	if opts.Output == "" {
		fmt.Fprintln(formatter.Writer, string(data))
	} else {
		fmt.Fprintf(formatter.Writer, "Wrote IR to %s\n", opts.Output)
	}
	PrintDiagnostics(formatter.GetErrWriter(), path, diags)
	return nil
}
