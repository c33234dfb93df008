package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/mapping"
	"github.com/roach88/pyrs/internal/target"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric        = "E001" // Generic/unknown error
	ErrCodeScanError      = "E002" // Directory scan error
	ErrCodeNoFiles        = "E003" // No Python files found
	ErrCodeLoadFailed     = "E004" // Mapping or config load failed
	ErrCodeNotFound       = "E005" // Path not found
	ErrCodeWriteFailed    = "E007" // File write error
	ErrCodeUnknownProfile = "E008" // Unknown target profile
	ErrCodeInvalidConfig  = "E009" // Bad pyrs.yaml
	ErrCodeReadFailed     = "E010" // Source read error

	// Transpile errors
	ErrCodeSyntax      = "E101" // Source does not parse
	ErrCodeDiagnostics = "E102" // Error diagnostics were reported
)

// SourceFile is one Python file read from disk.
type SourceFile struct {
	Path string
	// Rel is the path relative to the directory argument it was found
	// under, or the base name for a file argument.
	Rel    string
	Source string
}

// FindPythonFiles walks dir and returns all .py file paths in sorted order.
func FindPythonFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".py" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// LoadSources reads every path argument. Directories contribute all .py
// files below them; files are read as given. The result keeps argument
// order and sorted order within a directory.
func LoadSources(paths []string) ([]SourceFile, error) {
	var files, rels []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, &CodedError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", p)}
		}
		if err != nil {
			return nil, &CodedError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", p, err)}
		}
		if !info.IsDir() {
			files = append(files, p)
			rels = append(rels, filepath.Base(p))
			continue
		}
		found, err := FindPythonFiles(p)
		if err != nil {
			return nil, &CodedError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		for _, f := range found {
			rel, err := filepath.Rel(p, f)
			if err != nil {
				rel = filepath.Base(f)
			}
			files = append(files, f)
			rels = append(rels, rel)
		}
	}
	if len(files) == 0 {
		return nil, &CodedError{Code: ErrCodeNoFiles, Message: "no Python files found"}
	}

	out := make([]SourceFile, 0, len(files))
	for i, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, &CodedError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", f, err)}
		}
		out = append(out, SourceFile{Path: f, Rel: rels[i], Source: string(data)})
	}
	return out, nil
}

// LoadMapping reads module mapping overrides from a CUE file or a
// directory of CUE files and merges them over the built-in defaults.
// An empty path returns nil, which the pipeline treats as the defaults.
func LoadMapping(path string) (mapping.Map, error) {
	if path == "" {
		return nil, nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &CodedError{Code: ErrCodeNotFound, Message: fmt.Sprintf("mapping not found: %s", path)}
	}
	if err != nil {
		return nil, &CodedError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing mapping: %v", err)}
	}

	var overrides mapping.Map
	if info.IsDir() {
		overrides, err = mapping.LoadDir(path)
	} else {
		overrides, err = mapping.LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return mapping.Merge(mapping.Defaults(), overrides), nil
}

// CodedError is a command error carrying one of the ErrCode constants.
type CodedError struct {
	Code    string
	Message string
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// errorCode picks the error code for err.
func errorCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	var loadErr *mapping.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	var profileErr *target.UnknownProfileError
	if errors.As(err, &profileErr) {
		return ErrCodeUnknownProfile
	}
	if diag.IsKind(err, diag.KindSyntaxError) {
		return ErrCodeSyntax
	}
	return ErrCodeGeneric
}

// errorMessage is err without a CodedError's code prefix.
func errorMessage(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}
	return err.Error()
}
