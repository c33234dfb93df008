package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/mapping"
	"github.com/roach88/pyrs/internal/store"
	"github.com/roach88/pyrs/internal/testutil"
	"github.com/roach88/pyrs/internal/transpile"
)

// Harness is the scenario execution engine.
// It transpiles through a cache-backed transpile.Transpiler with a
// deterministic clock and run IDs.
type Harness struct {
	store      *store.Store
	transpiler *transpile.Transpiler
	clock      *testutil.DeterministicClock
	logger     *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory cache for isolation.
//
// Execution flow:
// 1. Read the source and load the mapping override
// 2. Transpile Runs times; the first run fills the cache, later runs hit it
// 3. Compare every run against the first
// 4. Evaluate assertions on the first run
//
// The error return is for setup failures (unreadable source, bad mapping,
// unknown profile). A syntax error in the source is a diagnostic.
func Run(scenario *Scenario) (*Result, error) {
	source, err := scenarioSource(scenario)
	if err != nil {
		return nil, err
	}

	opts := transpile.Options{
		TargetProfile: scenario.Options.TargetProfile,
		Optimize:      scenario.Options.Optimize,
		GenerateTests: scenario.Options.GenerateTests,
		EmitSourceMap: scenario.Options.EmitSourceMap,
		ModuleName:    scenario.Name,
	}
	if scenario.Mapping != "" {
		overrides, err := mapping.LoadFile(scenario.Mapping)
		if err != nil {
			return nil, fmt.Errorf("failed to load mapping: %w", err)
		}
		opts.Mapping = mapping.Merge(mapping.Defaults(), overrides)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		store:  st,
		clock:  clock,
		logger: logger,
		transpiler: transpile.New(opts,
			transpile.WithLogger(logger),
			transpile.WithWorkers(1),
			transpile.WithCache(st),
			transpile.WithClock(clock.Now),
			transpile.WithRunIDs(testutil.NewSequentialRunIDs(scenario.Name)),
		),
	}

	runs := scenario.Runs
	if runs == 0 {
		runs = DefaultRuns
	}
	return h.execute(context.Background(), scenario, source, runs)
}

func (h *Harness) execute(ctx context.Context, scenario *Scenario, source string, runs int) (*Result, error) {
	job := transpile.Job{Name: scenario.Name + ".py", Source: source}
	result := NewResult()

	var first transpile.JobResult
	for i := 0; i < runs; i++ {
		run, err := h.transpiler.Batch(ctx, []transpile.Job{job})
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
		res := run.Results[0]
		if i == 0 {
			first = res
			if res.Err != nil && !diag.IsKind(res.Err, diag.KindSyntaxError) {
				return nil, res.Err
			}
			continue
		}
		if msg := compareRuns(first, res); msg != "" {
			result.AddError(fmt.Sprintf("non-deterministic output: run %d %s", i+1, msg))
		}
	}
	result.Runs = runs

	if err := h.checkRecorded(ctx, runs); err != nil {
		return nil, err
	}

	if first.Err != nil {
		var d *diag.Diagnostic
		if errors.As(first.Err, &d) {
			result.Diagnostics = []diag.Diagnostic{*d}
		}
	} else {
		result.Code = first.Output.Code
		result.Diagnostics = first.Output.Diagnostics
		result.SourceMap = first.Output.SourceMap
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	h.logger.Info("scenario finished", "scenario", scenario.Name, "pass", result.Pass)
	return result, nil
}

// compareRuns describes how a later run differs from the first, or
// returns "" when they match.
func compareRuns(first, later transpile.JobResult) string {
	switch {
	case (first.Err == nil) != (later.Err == nil):
		return fmt.Sprintf("error %v, first run error %v", later.Err, first.Err)
	case first.Err != nil:
		if first.Err.Error() != later.Err.Error() {
			return fmt.Sprintf("error %q, first run %q", later.Err, first.Err)
		}
		return ""
	case first.Key != later.Key:
		return "has a different cache key"
	case first.Output.Code != later.Output.Code:
		return "produced different code"
	case !sameDiagnostics(first.Output.Diagnostics, later.Output.Diagnostics):
		return "produced different diagnostics"
	case !reflect.DeepEqual(first.Output.SourceMap, later.Output.SourceMap):
		return "produced a different source map"
	}
	return ""
}

func sameDiagnostics(a, b []diag.Diagnostic) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].String() != b[i].String() || a[i].Construct != b[i].Construct ||
			a[i].Binding != b[i].Binding || a[i].Expression != b[i].Expression ||
			strings.Join(a[i].Candidates, "|") != strings.Join(b[i].Candidates, "|") {
			return false
		}
	}
	return true
}

// checkRecorded verifies that every run reached the run log.
func (h *Harness) checkRecorded(ctx context.Context, runs int) error {
	ids, err := h.store.RunIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to read run log: %w", err)
	}
	if len(ids) != runs {
		return fmt.Errorf("run log has %d runs, expected %d", len(ids), runs)
	}
	return nil
}

func scenarioSource(s *Scenario) (string, error) {
	if s.Source != "" {
		return s.Source, nil
	}
	data, err := os.ReadFile(s.SourceFile)
	if err != nil {
		return "", fmt.Errorf("failed to read source file: %w", err)
	}
	return string(data), nil
}
