package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pyrs/internal/diag"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the module name
	// and the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Source is the Python text to transpile.
	Source string `yaml:"source,omitempty"`

	// SourceFile is a path to the Python text, used when Source is empty.
	// Relative paths are resolved against the scenario file location.
	SourceFile string `yaml:"source_file,omitempty"`

	// Mapping is an optional CUE module mapping file merged over the
	// defaults. Resolved like SourceFile.
	Mapping string `yaml:"mapping,omitempty"`

	Options ScenarioOptions `yaml:"options,omitempty"`

	// Runs is how many times to transpile for the determinism check.
	// Zero means DefaultRuns.
	Runs int `yaml:"runs,omitempty"`

	// Assertions validate the generated code and diagnostics.
	Assertions []Assertion `yaml:"assertions"`
}

// ScenarioOptions mirrors transpile.Options.
type ScenarioOptions struct {
	TargetProfile string `yaml:"target_profile,omitempty"`
	Optimize      bool   `yaml:"optimize,omitempty"`
	GenerateTests bool   `yaml:"generate_tests,omitempty"`
	EmitSourceMap bool   `yaml:"emit_source_map,omitempty"`
}

// DefaultRuns is the number of transpile runs when a scenario sets none.
const DefaultRuns = 2

// Assertion validates the result of a scenario.
type Assertion struct {
	// Type specifies the assertion type (see the Assert constants).
	Type string `yaml:"type"`

	// Text is the substring for code_contains and code_not_contains.
	Text string `yaml:"text,omitempty"`

	// Pattern is the regexp for code_matches.
	Pattern string `yaml:"pattern,omitempty"`

	// Kind is the diagnostic kind for diagnostic, e.g. UNSUPPORTED_CONSTRUCT.
	Kind string `yaml:"kind,omitempty"`

	// Construct narrows a diagnostic assertion to one construct name.
	Construct string `yaml:"construct,omitempty"`

	// Line narrows a diagnostic assertion to one source line; for
	// source_map it is the source line that must be covered.
	Line int `yaml:"line,omitempty"`

	// Count, when set, is the exact number of matching diagnostics.
	// Unset means at least one.
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertCodeContains    = "code_contains"
	AssertCodeNotContains = "code_not_contains"
	AssertCodeMatches     = "code_matches"
	AssertDiagnostic      = "diagnostic"
	AssertNoErrors        = "no_errors"
	AssertSourceMap       = "source_map"
)

var diagnosticKinds = map[string]bool{
	string(diag.KindUnsupportedConstruct):  true,
	string(diag.KindAmbiguousType):         true,
	string(diag.KindUnsupportedConversion): true,
	string(diag.KindInternalError):         true,
	string(diag.KindSyntaxError):           true,
}

// LoadScenario reads and parses a scenario YAML file.
// Relative source_file and mapping paths resolve against the file's
// directory. Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving relative paths against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.SourceFile = resolve(basePath, scenario.SourceFile)
	scenario.Mapping = resolve(basePath, scenario.Mapping)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Source != "" && s.SourceFile != "":
		return fmt.Errorf("source and source_file are mutually exclusive")
	case s.Source == "" && s.SourceFile == "":
		return fmt.Errorf("source or source_file is required")
	}

	for _, p := range []string{s.SourceFile, s.Mapping} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", p)
		}
	}

	if s.Runs < 0 {
		return fmt.Errorf("runs must be non-negative")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCodeContains, AssertCodeNotContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertCodeMatches:
		if a.Pattern == "" {
			return fmt.Errorf("assertions[%d]: pattern is required for code_matches", index)
		}
		if _, err := regexp.Compile(a.Pattern); err != nil {
			return fmt.Errorf("assertions[%d]: invalid pattern: %w", index, err)
		}
	case AssertDiagnostic:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for diagnostic", index)
		}
		if !diagnosticKinds[a.Kind] {
			return fmt.Errorf("assertions[%d]: unknown diagnostic kind %q", index, a.Kind)
		}
		if a.Count != nil && *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for diagnostic", index)
		}
	case AssertNoErrors:
	case AssertSourceMap:
		if a.Line <= 0 {
			return fmt.Errorf("assertions[%d]: line is required for source_map", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
