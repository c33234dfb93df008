package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/roach88/pyrs/internal/diag"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Source failure (syntax error, error diagnostics, scenarios failed)
	ExitCommandError = 2 // Command error (invalid paths, unknown profile, bad mapping, etc.)
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure when err
// is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results either as a JSON CLIResponse or
// as plain text.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics and verbose lines; falls back to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string      `json:"status"` // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`
	Error  *CLIError   `json:"error,omitempty"`
}

// CLIError is the error half of a CLIResponse.
type CLIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// JSON writes an indented CLIResponse with the given status and payload.
func (f *OutputFormatter) JSON(status string, data interface{}, cliErr *CLIError) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: status, Data: data, Error: cliErr})
}

// Error reports a coded error. Text mode prints details only when verbose.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return f.JSON("error", nil, &CLIError{Code: code, Message: message, Details: details})
	}
	fmt.Fprintf(f.Writer, "%s %s\n", errorStyle.Sprintf("Error [%s]:", code), message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err in the configured format and returns it as an
// ExitError with the given exit code.
func (f *OutputFormatter) Fail(exitCode int, err error) error {
	code, message := errorCode(err), errorMessage(err)
	_ = f.Error(code, message, nil)
	return WrapExitError(exitCode, fmt.Sprintf("%s: %s", code, message), nil)
}

// VerboseLog prints a progress line under --verbose. It never writes to
// Writer when ErrWriter is set, so JSON on stdout stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when none is set.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

var (
	errorStyle   = color.New(color.FgRed, color.Bold)
	warningStyle = color.New(color.FgYellow, color.Bold)
	infoStyle    = color.New(color.FgCyan)
	pathStyle    = color.New(color.Bold)
	passStyle    = color.New(color.FgGreen)
)

func severityStyle(s diag.Severity) *color.Color {
	switch s {
	case diag.SeverityError:
		return errorStyle
	case diag.SeverityWarning:
		return warningStyle
	default:
		return infoStyle
	}
}

// PrintDiagnostics writes one line per diagnostic in the form
// file:line:col: severity[KIND]: message (in fn). Colors follow
// color.NoColor.
func PrintDiagnostics(w io.Writer, file string, diags []diag.Diagnostic) {
	for i := range diags {
		d := &diags[i]
		loc := file
		if d.Location.Line > 0 {
			loc = fmt.Sprintf("%s:%d:%d", file, d.Location.Line, d.Location.Column)
		}
		fmt.Fprintf(w, "%s: %s[%s]: %s",
			pathStyle.Sprint(loc), severityStyle(d.Severity).Sprint(d.Severity), d.Kind, d.Message)
		if d.Location.Function != "" {
			fmt.Fprintf(w, " (in %s)", d.Location.Function)
		}
		fmt.Fprintln(w)
	}
}

// countErrors counts diagnostics with error severity.
func countErrors(diags []diag.Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.Severity == diag.SeverityError {
			n++
		}
	}
	return n
}
