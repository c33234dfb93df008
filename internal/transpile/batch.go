package transpile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/mapping"
	"github.com/roach88/pyrs/internal/store"
	"github.com/roach88/pyrs/internal/target"
)

// Cache stores results by cache key. *store.Store implements it.
// Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*store.Result, error)
	Put(ctx context.Context, key string, r store.Result) error
}

// RunRecorder persists batch runs. A Cache that also implements
// RunRecorder gets every batch recorded.
type RunRecorder interface {
	RecordRun(ctx context.Context, run store.Run) error
}

// Job is one source to transpile.
type Job struct {
	// Name identifies the job in results, usually the file path.
	Name   string
	Source string
}

// JobResult is the outcome of one job.
type JobResult struct {
	Name   string
	Key    string
	Cached bool
	Output *GeneratedCode

	// Err is set when the job produced no code (syntax error).
	Err error
}

// Run is the outcome of one batch. Results are in input order.
type Run struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Results  []JobResult
}

// Failed counts jobs that produced no code.
func (r *Run) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Transpiler runs transpile jobs with shared options.
type Transpiler struct {
	opts    Options
	logger  *slog.Logger
	workers int
	cache   Cache
	ids     RunIDGenerator
	clock   func() time.Time
}

// Option configures a Transpiler.
type Option func(*Transpiler)

// WithLogger sets the logger. Per-job outcomes are logged at Info.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transpiler) {
		t.logger = l
	}
}

// WithWorkers bounds the number of jobs transpiled at once.
// Values below one are ignored.
func WithWorkers(n int) Option {
	return func(t *Transpiler) {
		if n > 0 {
			t.workers = n
		}
	}
}

// WithCache enables the result cache.
func WithCache(c Cache) Option {
	return func(t *Transpiler) {
		t.cache = c
	}
}

// WithRunIDs sets the run ID generator. The default is UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(t *Transpiler) {
		t.ids = g
	}
}

// WithClock sets the time source for run start and finish times.
func WithClock(now func() time.Time) Option {
	return func(t *Transpiler) {
		t.clock = now
	}
}

// New creates a Transpiler applying opts to every job.
func New(opts Options, options ...Option) *Transpiler {
	t := &Transpiler{
		opts:    opts,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers: runtime.GOMAXPROCS(0),
		ids:     UUIDv7Generator{},
		clock:   time.Now,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Workers returns the worker pool size.
func (t *Transpiler) Workers() int {
	return t.workers
}

// Transpile runs one job, consulting the cache first.
func (t *Transpiler) Transpile(ctx context.Context, job Job) JobResult {
	res := JobResult{Name: job.Name}
	opts := t.opts
	if opts.ModuleName == "" {
		opts.ModuleName = ModuleNameFor(job.Name)
	}
	if opts.TargetProfile == "" {
		opts.TargetProfile = target.Default
	}
	opts.Logger = t.logger

	key, cacheable := cacheKey(job.Source, opts)
	res.Key = key
	if cacheable && t.cache != nil {
		hit, err := t.cache.Get(ctx, key)
		if err != nil {
			t.logger.Warn("cache read failed", "job", job.Name, "error", err)
		} else if hit != nil {
			res.Cached = true
			res.Output = &GeneratedCode{Code: hit.Code, Diagnostics: hit.Diagnostics, SourceMap: hit.SourceMap}
			t.logger.Info("transpiled", "job", job.Name, "cached", true, "diagnostics", len(hit.Diagnostics))
			return res
		}
	}

	out, err := Transpile(job.Source, opts)
	if err != nil {
		res.Err = err
		t.logger.Info("transpile failed", "job", job.Name, "error", err)
		return res
	}
	res.Output = out
	t.logger.Info("transpiled", "job", job.Name, "cached", false, "diagnostics", len(out.Diagnostics))

	if cacheable && t.cache != nil {
		entry := store.Result{
			SourceHash:  ir.SourceHash(job.Source),
			Profile:     opts.TargetProfile,
			Code:        out.Code,
			Diagnostics: out.Diagnostics,
			SourceMap:   out.SourceMap,
		}
		if err := t.cache.Put(ctx, key, entry); err != nil {
			t.logger.Warn("cache write failed", "job", job.Name, "error", err)
		}
	}
	return res
}

// Batch transpiles jobs in a bounded worker pool. Each job gets its own
// session; results come back in input order whatever order jobs finish in.
//
// Job failures are reported in the results. The error return is for
// cancellation and for failing to record the run.
func (t *Transpiler) Batch(ctx context.Context, jobs []Job) (*Run, error) {
	run := &Run{
		ID:      t.ids.Generate(),
		Started: t.clock(),
		Results: make([]JobResult, len(jobs)),
	}
	t.logger.Info("batch started", "run", run.ID, "jobs", len(jobs), "workers", t.workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			run.Results[i] = t.Transpile(gctx, job)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch %s: %w", run.ID, err)
	}
	run.Finished = t.clock()

	if rec, ok := t.cache.(RunRecorder); ok {
		if err := rec.RecordRun(ctx, t.record(run)); err != nil {
			return run, fmt.Errorf("batch %s: %w", run.ID, err)
		}
	}
	t.logger.Info("batch finished", "run", run.ID, "failed", run.Failed())
	return run, nil
}

func (t *Transpiler) record(run *Run) store.Run {
	rec := store.Run{ID: run.ID, Started: run.Started, Finished: run.Finished, Workers: t.workers}
	for _, res := range run.Results {
		j := store.RunJob{Name: res.Name, Key: res.Key, Cached: res.Cached}
		if res.Output != nil {
			j.Diagnostics = len(res.Output.Diagnostics)
		}
		if res.Err != nil {
			j.Error = res.Err.Error()
		}
		rec.Jobs = append(rec.Jobs, j)
	}
	return rec
}

// ModuleNameFor derives a module name from a job name: the file base without
// its extension.
func ModuleNameFor(name string) string {
	if name == "" {
		return DefaultModuleName
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return DefaultModuleName
	}
	return base
}

// cacheKey identifies a transpile request. Only a mapping.Map can be
// hashed; any other Table makes the request uncacheable.
func cacheKey(source string, opts Options) (string, bool) {
	options := map[string]any{
		"target_profile":  opts.TargetProfile,
		"optimize":        opts.Optimize,
		"generate_tests":  opts.GenerateTests,
		"emit_source_map": opts.EmitSourceMap,
		"module_name":     opts.ModuleName,
	}
	cacheable := true
	switch m := opts.Mapping.(type) {
	case nil:
	case mapping.Map:
		options["mapping"] = mappingKey(m)
	default:
		cacheable = false
	}
	key, err := ir.CacheKey(source, options)
	if err != nil {
		return "", false
	}
	return key, cacheable
}

func mappingKey(m mapping.Map) map[string]any {
	out := make(map[string]any, len(m))
	for src, e := range m {
		items := make(map[string]any, len(e.ItemRewrites))
		for name, it := range e.ItemRewrites {
			params := append([]string(nil), it.Params...)
			items[name] = map[string]any{"path": it.Path, "params": params, "returns": it.Returns}
		}
		out[src] = map[string]any{"target": e.TargetPath, "items": items}
	}
	return out
}
