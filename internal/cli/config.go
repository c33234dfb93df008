package cli

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pyrs/internal/target"
	"github.com/roach88/pyrs/internal/transpile"
)

// DefaultConfigFile is read from the working directory when --config is
// not given. A missing default file is not an error.
const DefaultConfigFile = "pyrs.yaml"

// Config is the project configuration. Precedence, highest first:
// command flags, environment, config file, defaults.
type Config struct {
	Profile       string `yaml:"profile"`
	Optimize      bool   `yaml:"optimize"`
	GenerateTests bool   `yaml:"generate_tests"`
	SourceMap     bool   `yaml:"source_map"`
	Mapping       string `yaml:"mapping"`
	Jobs          int    `yaml:"jobs"`
	Cache         string `yaml:"cache"`
	NoColor       bool   `yaml:"no_color"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{Profile: target.Default}
}

// LoadConfig reads a config file over the defaults. Relative mapping and
// cache paths resolve against the file's directory. When required is false
// a missing file yields the defaults.
func LoadConfig(path string, required bool) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !required {
		return cfg, nil
	}
	if err != nil {
		return cfg, &CodedError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading config: %v", err)}
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, &CodedError{Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	if cfg.Jobs < 0 {
		return cfg, &CodedError{Code: ErrCodeInvalidConfig, Message: "jobs must be non-negative"}
	}

	base := filepath.Dir(path)
	cfg.Mapping = resolvePath(base, cfg.Mapping)
	cfg.Cache = resolvePath(base, cfg.Cache)
	return cfg, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// EnvOverrides are the configuration values taken from the environment.
// Empty or zero fields leave the config unchanged.
type EnvOverrides struct {
	Profile string
	Jobs    int
	Cache   string
	NoColor bool
}

// ReadEnv reads PYRS_PROFILE, PYRS_JOBS, PYRS_CACHE and NO_COLOR.
func ReadEnv() EnvOverrides {
	return EnvOverrides{
		Profile: env.Str("PYRS_PROFILE"),
		Jobs:    env.Int("PYRS_JOBS", 0),
		Cache:   env.Str("PYRS_CACHE"),
		NoColor: env.Has("NO_COLOR"),
	}
}

// Apply layers the overrides onto cfg.
func (e EnvOverrides) Apply(cfg *Config) {
	if e.Profile != "" {
		cfg.Profile = e.Profile
	}
	if e.Jobs > 0 {
		cfg.Jobs = e.Jobs
	}
	if e.Cache != "" {
		cfg.Cache = e.Cache
	}
	if e.NoColor {
		cfg.NoColor = true
	}
}

// pipelineFlags are the transpile options shared by transpile, check,
// ir and batch. Only flags the user set override the config.
type pipelineFlags struct {
	profile  string
	optimize bool
	tests    bool
	mapping  string
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.profile, "profile", target.Default, fmt.Sprintf("target profile %v", target.Names()))
	cmd.Flags().BoolVar(&f.optimize, "optimize", false, "run the optimizer (constant folding, CSE)")
	cmd.Flags().BoolVar(&f.tests, "tests", false, "generate a test module from doctests")
	cmd.Flags().StringVar(&f.mapping, "mapping", "", "CUE module mapping file or directory")
}

func (f *pipelineFlags) apply(cmd *cobra.Command, cfg *Config) {
	if cmd.Flags().Changed("profile") {
		cfg.Profile = f.profile
	}
	if cmd.Flags().Changed("optimize") {
		cfg.Optimize = f.optimize
	}
	if cmd.Flags().Changed("tests") {
		cfg.GenerateTests = f.tests
	}
	if cmd.Flags().Changed("mapping") {
		cfg.Mapping = f.mapping
	}
}

// resolveConfig builds the effective config for cmd: config file, then
// environment, then the flags in pf.
func resolveConfig(opts *RootOptions, cmd *cobra.Command, pf *pipelineFlags) (Config, error) {
	path, required := opts.ConfigPath, true
	if path == "" {
		path, required = DefaultConfigFile, false
	}
	cfg, err := LoadConfig(path, required)
	if err != nil {
		return cfg, err
	}
	ReadEnv().Apply(&cfg)
	if pf != nil {
		pf.apply(cmd, &cfg)
	}
	if opts.NoColor {
		cfg.NoColor = true
	}
	if cfg.NoColor {
		color.NoColor = true
	}
	return cfg, nil
}

// transpileOptions turns a resolved config into pipeline options.
func transpileOptions(cfg Config, logger *slog.Logger) (transpile.Options, error) {
	if _, err := target.Lookup(cfg.Profile); err != nil {
		return transpile.Options{}, err
	}
	opts := transpile.Options{
		TargetProfile: cfg.Profile,
		Optimize:      cfg.Optimize,
		GenerateTests: cfg.GenerateTests,
		EmitSourceMap: cfg.SourceMap,
		Logger:        logger,
	}
	table, err := LoadMapping(cfg.Mapping)
	if err != nil {
		return transpile.Options{}, err
	}
	if table != nil {
		opts.Mapping = table
	}
	return opts, nil
}

// newLogger returns a Debug-level text logger on w under --verbose and a
// discarding logger otherwise.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	if !opts.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
