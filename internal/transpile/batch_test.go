package transpile

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/mapping"
	"github.com/roach88/pyrs/internal/store"
)

// memCache is an in-memory Cache that counts calls.
type memCache struct {
	mu      sync.Mutex
	entries map[string]store.Result
	gets    int
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]store.Result)}
}

func (c *memCache) Get(_ context.Context, key string) (*store.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	r, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (c *memCache) Put(_ context.Context, key string, r store.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if _, ok := c.entries[key]; !ok {
		r.Key = key
		c.entries[key] = r
	}
	return nil
}

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func numberedJobs(n int) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = Job{
			Name:   fmt.Sprintf("src/mod%02d.py", i),
			Source: fmt.Sprintf("def f%d(a: int) -> int:\n    return a + %d\n", i, i),
		}
	}
	return jobs
}

func TestBatchPreservesInputOrder(t *testing.T) {
	jobs := numberedJobs(12)
	tr := New(Options{}, WithWorkers(4), WithRunIDs(NewFixedGenerator("run-1")))

	run, err := tr.Batch(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	require.Len(t, run.Results, len(jobs))
	for i, res := range run.Results {
		assert.Equal(t, jobs[i].Name, res.Name)
		require.NoError(t, res.Err)
		assert.Contains(t, res.Output.Code, fmt.Sprintf("pub fn f%d(a: i64) -> i64 {", i))
	}
	assert.Zero(t, run.Failed())
}

func TestBatchReportsFailedJobs(t *testing.T) {
	jobs := []Job{
		{Name: "ok.py", Source: "def f() -> int:\n    return 1\n"},
		{Name: "broken.py", Source: "def f(:\n"},
	}
	run, err := New(Options{}, WithRunIDs(NewFixedGenerator("r"))).Batch(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Failed())
	assert.NoError(t, run.Results[0].Err)
	assert.True(t, diag.IsKind(run.Results[1].Err, diag.KindSyntaxError))
	assert.Nil(t, run.Results[1].Output)
}

func TestBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}, WithRunIDs(NewFixedGenerator("r"))).Batch(ctx, numberedJobs(3))
	require.ErrorIs(t, err, context.Canceled)
}

func TestTranspilerUsesCache(t *testing.T) {
	cache := newMemCache()
	tr := New(Options{Optimize: true}, WithCache(cache))
	job := Job{Name: "calc.py", Source: "def sq(a: int) -> int:\n    return a * a\n"}

	first := tr.Transpile(context.Background(), job)
	require.NoError(t, first.Err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, cache.puts)

	second := tr.Transpile(context.Background(), job)
	require.NoError(t, second.Err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, first.Output.Code, second.Output.Code)
	assert.Equal(t, 1, cache.puts)
}

func TestTranspilerDoesNotCacheSyntaxErrors(t *testing.T) {
	cache := newMemCache()
	res := New(Options{}, WithCache(cache)).Transpile(context.Background(), Job{Name: "x.py", Source: "def (\n"})
	require.Error(t, res.Err)
	assert.Zero(t, cache.puts)
}

func TestCacheKeyCoversOptions(t *testing.T) {
	src := "def f() -> int:\n    return 1\n"
	base := Options{TargetProfile: "std", ModuleName: "m"}
	k0, ok := cacheKey(src, base)
	require.True(t, ok)

	variants := []Options{
		{TargetProfile: "wasm32", ModuleName: "m"},
		{TargetProfile: "std", ModuleName: "n"},
		{TargetProfile: "std", ModuleName: "m", Optimize: true},
		{TargetProfile: "std", ModuleName: "m", GenerateTests: true},
		{TargetProfile: "std", ModuleName: "m", EmitSourceMap: true},
		{TargetProfile: "std", ModuleName: "m", Mapping: mapping.Map{"x": {Source: "x", TargetPath: "crate::x"}}},
	}
	for i, o := range variants {
		k, ok := cacheKey(src, o)
		require.True(t, ok)
		assert.NotEqual(t, k0, k, "variant %d", i)
	}

	again, _ := cacheKey(src, base)
	assert.Equal(t, k0, again)

	other, _ := cacheKey(src+"\n", base)
	assert.NotEqual(t, k0, other)
}

type lookupFunc func(string) (mapping.Entry, bool)

func (f lookupFunc) Lookup(p string) (mapping.Entry, bool) { return f(p) }

func TestCacheKeySkipsOpaqueMapping(t *testing.T) {
	_, ok := cacheKey("x = 1\n", Options{Mapping: lookupFunc(mapping.Defaults().Lookup)})
	assert.False(t, ok)
}

func TestModuleName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"src/pkg/calc.py", "calc"},
		{"calc", "calc"},
		{"", DefaultModuleName},
		{"/", DefaultModuleName},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ModuleNameFor(tt.in), tt.in)
	}
}

func TestBatchRecordsRunInStore(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	jobs := append(numberedJobs(3), Job{Name: "bad.py", Source: "def (\n"})
	tr := New(Options{},
		WithCache(s),
		WithWorkers(2),
		WithRunIDs(NewFixedGenerator("run-a", "run-b")),
		WithClock(fixedClock()),
	)

	ctx := context.Background()
	first, err := tr.Batch(ctx, jobs)
	require.NoError(t, err)
	second, err := tr.Batch(ctx, jobs)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.False(t, first.Results[i].Cached, "first run job %d", i)
		assert.True(t, second.Results[i].Cached, "second run job %d", i)
		assert.Equal(t, first.Results[i].Output.Code, second.Results[i].Output.Code)
	}

	ids, err := s.RunIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b"}, ids)

	rec, err := s.GetRun(ctx, "run-b")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.Workers)
	assert.True(t, second.Started.Equal(rec.Started))
	assert.True(t, second.Finished.Equal(rec.Finished))
	require.Len(t, rec.Jobs, 4)
	assert.Equal(t, "bad.py", rec.Jobs[3].Name)
	assert.NotEmpty(t, rec.Jobs[3].Error)
	assert.True(t, rec.Jobs[0].Cached)
	assert.Equal(t, 1, rec.Failed())
}

func TestFixedGeneratorExhausted(t *testing.T) {
	g := NewFixedGenerator("only")
	assert.Equal(t, "only", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7GeneratorIsSortable(t *testing.T) {
	var g UUIDv7Generator
	a := g.Generate()
	time.Sleep(2 * time.Millisecond)
	b := g.Generate()
	assert.Len(t, a, 36)
	assert.Less(t, a, b)
}
