package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/rust"
	"github.com/roach88/pyrs/internal/transpile"
)

// TranspileOptions holds flags for the transpile command.
type TranspileOptions struct {
	*RootOptions
	pipelineFlags
	Output    string // Rust output file, stdout if empty
	SourceMap string // source map output file
	Module    string // module name override
}

// TranspileReport is the JSON payload of the transpile command.
type TranspileReport struct {
	File        string            `json:"file"`
	Module      string            `json:"module"`
	Code        string            `json:"code,omitempty"`
	Output      string            `json:"output,omitempty"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	SourceMap   rust.SourceMap    `json:"source_map,omitempty"`
}

// NewTranspileCommand creates the transpile command.
func NewTranspileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranspileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transpile <file.py|->",
		Short: "Transpile a Python file to Rust",
		Long: `Transpile one Python source file to Rust.

The generated code goes to stdout or --output; diagnostics go to stderr.
Unsupported constructs are reported and skipped, so code is written even
when diagnostics are present. Use "-" to read the source from stdin.

Exit codes:
  0 - Code generated without error diagnostics
  1 - Syntax error, or error diagnostics were reported
  2 - Command error (missing file, unknown profile, bad mapping)

Examples:
  pyrs transpile calc.py
  pyrs transpile calc.py -o src/calc.rs --optimize
  pyrs transpile calc.py --profile wasm32 --source-map calc.map.json
  cat calc.py | pyrs transpile - --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranspile(opts, args[0], cmd)
		},
	}

	opts.pipelineFlags.register(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write Rust to file instead of stdout")
	cmd.Flags().StringVar(&opts.SourceMap, "source-map", "", "write the line source map as JSON to file")
	cmd.Flags().StringVar(&opts.Module, "module", "", "module name (default: file base name)")

	return cmd
}

func runTranspile(opts *TranspileOptions, path string, cmd *cobra.Command) error {
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
	if opts.SourceMap != "" {
		cfg.SourceMap = true
	}
	topts, err := transpileOptions(cfg, newLogger(opts.RootOptions, formatter.GetErrWriter()))
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	source, err := readSource(path, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	topts.ModuleName = opts.Module
	if topts.ModuleName == "" {
		if path == "-" {
			topts.ModuleName = transpile.DefaultModuleName
		} else {
			topts.ModuleName = transpile.ModuleNameFor(path)
		}
	}
	formatter.VerboseLog("Transpiling %s as module %s (profile %s)", path, topts.ModuleName, cfg.Profile)

	out, err := transpile.Transpile(source, topts)
	if err != nil {
		var d *diag.Diagnostic
		if errors.As(err, &d) {
			return reportSyntaxError(formatter, path, d)
		}
		return formatter.Fail(ExitCommandError, err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(out.Code), 0644); err != nil {
			return formatter.Fail(ExitCommandError, &CodedError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing %s: %v", opts.Output, err)})
		}
	}
	if opts.SourceMap != "" {
		if err := writeJSONFile(opts.SourceMap, out.SourceMap); err != nil {
			return formatter.Fail(ExitCommandError, &CodedError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing %s: %v", opts.SourceMap, err)})
		}
	}

	nerr := countErrors(out.Diagnostics)
	if opts.Format == "json" {
		report := TranspileReport{
			File:        path,
			Module:      topts.ModuleName,
			Output:      opts.Output,
			Diagnostics: nonNil(out.Diagnostics),
			SourceMap:   out.SourceMap,
		}
		if opts.Output == "" {
			report.Code = out.Code
		}
		status, cliErr := "ok", (*CLIError)(nil)
		if nerr > 0 {
			status = "error"
			cliErr = &CLIError{Code: ErrCodeDiagnostics, Message: fmt.Sprintf("%d error diagnostic(s)", nerr)}
		}
		if err := formatter.JSON(status, report, cliErr); err != nil {
			return err
		}
	} else {
		if opts.Output == "" {
			fmt.Fprint(formatter.Writer, out.Code)
		} else {
			formatter.VerboseLog("Wrote %s", opts.Output)
		}
		PrintDiagnostics(formatter.GetErrWriter(), path, out.Diagnostics)
	}

	if nerr > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d error diagnostic(s)", path, nerr))
	}
	return nil
}

// reportSyntaxError outputs a parse failure; no code was produced.
func reportSyntaxError(formatter *OutputFormatter, path string, d *diag.Diagnostic) error {
	if formatter.Format == "json" {
		_ = formatter.JSON("error", TranspileReport{File: path, Diagnostics: []diag.Diagnostic{*d}},
			&CLIError{Code: ErrCodeSyntax, Message: d.Message})
	} else {
		PrintDiagnostics(formatter.GetErrWriter(), path, []diag.Diagnostic{*d})
	}
	return WrapExitError(ExitFailure, fmt.Sprintf("%s: syntax error", path), d)
}

// readSource reads path, or r when path is "-".
func readSource(path string, r io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(r)
	} else {
		data, err = os.ReadFile(path)
	}
	if os.IsNotExist(err) {
		return "", &CodedError{Code: ErrCodeNotFound, Message: fmt.Sprintf("file not found: %s", path)}
	}
	if err != nil {
		return "", &CodedError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	return string(data), nil
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// nonNil keeps JSON output an array when there are no diagnostics.
func nonNil(ds []diag.Diagnostic) []diag.Diagnostic {
	if ds == nil {
		return []diag.Diagnostic{}
	}
	return ds
}
