package store

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/roach88/pyrs/internal/diag"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"results", "runs", "run_jobs"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	for _, p := range pragmas {
		got, err := s.pragmaValue(p.name)
		if err != nil {
			t.Fatal(err)
		}
		if got != p.reads {
			t.Errorf("%s = %q, want %q", p.name, got, p.reads)
		}
	}

	version, err := s.pragmaValue("user_version")
	if err != nil {
		t.Fatal(err)
	}
	if want := strconv.Itoa(len(migrations)); version != want {
		t.Errorf("user_version = %s, want %s", version, want)
	}
}

func TestOpen_MigratesOldCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	// Rewind a fresh cache to before the source index existed.
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.Exec("DROP INDEX idx_results_source"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("Open() on old cache failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_results_source'",
	).Scan(&name)
	if err != nil {
		t.Errorf("source index not restored: %v", err)
	}
	if v, _ := s.pragmaValue("user_version"); v != strconv.Itoa(len(migrations)) {
		t.Errorf("user_version = %s after migration", v)
	}
}

func TestSchema_ResultsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "results")
	expected := []string{
		"cache_key", "source_hash", "profile", "code", "diagnostics",
		"source_map", "ir_version", "codegen_version", "seq",
	}
	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("results table missing column %q", col)
		}
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	key, want := createTestResult(t, "def f():\n    return 1\n", "std")

	if err := s.Put(ctx, key, want); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil for stored key")
	}
	if got.Key != key {
		t.Errorf("Key = %q, want %q", got.Key, key)
	}
	if got.Code != want.Code {
		t.Errorf("Code = %q, want %q", got.Code, want.Code)
	}
	if got.SourceHash != want.SourceHash || got.Profile != want.Profile {
		t.Errorf("got hash/profile %q/%q, want %q/%q", got.SourceHash, got.Profile, want.SourceHash, want.Profile)
	}
	if len(got.Diagnostics) != 1 {
		t.Fatalf("len(Diagnostics) = %d, want 1", len(got.Diagnostics))
	}
	d := got.Diagnostics[0]
	if d.Kind != diag.KindUnsupportedConstruct || d.Construct != "lambda" || d.Location.Line != 3 || d.Location.Function != "f" {
		t.Errorf("diagnostic not preserved: %+v", d)
	}
	if len(got.SourceMap) != 1 || got.SourceMap[0] != want.SourceMap[0] {
		t.Errorf("SourceMap = %+v, want %+v", got.SourceMap, want.SourceMap)
	}
}

func TestGet_Miss(t *testing.T) {
	s := createTestStore(t)

	got, err := s.Get(context.Background(), "sha256:missing")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get() = %+v, want nil", got)
	}
}

func TestPut_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	key, r := createTestResult(t, "x = 1\n", "std")

	if err := s.Put(ctx, key, r); err != nil {
		t.Fatalf("first Put() failed: %v", err)
	}
	r2 := r
	r2.Code = "different"
	if err := s.Put(ctx, key, r2); err != nil {
		t.Fatalf("second Put() failed: %v", err)
	}

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Code != r.Code {
		t.Errorf("Code = %q, want first write %q", got.Code, r.Code)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM results").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("results rows = %d, want 1", count)
	}
}

func TestPut_EmptyKey(t *testing.T) {
	s := createTestStore(t)
	if err := s.Put(context.Background(), "", Result{}); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestPut_EmptyDiagnosticsStoredAsEmptyArray(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	key, r := createTestResult(t, "y = 2\n", "std")
	r.Diagnostics = nil
	r.SourceMap = nil

	if err := s.Put(ctx, key, r); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	var diags, smap string
	if err := s.db.QueryRow("SELECT diagnostics, source_map FROM results WHERE cache_key = ?", key).Scan(&diags, &smap); err != nil {
		t.Fatal(err)
	}
	if diags != "[]" || smap != "[]" {
		t.Errorf("stored %q/%q, want []/[]", diags, smap)
	}
}

func TestResultsForSource_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	src := "def g(n):\n    return n\n"

	var keys []string
	for _, profile := range []string{"wasm32", "std", "legacy"} {
		key, r := createTestResult(t, src, profile)
		if err := s.Put(ctx, key, r); err != nil {
			t.Fatalf("Put(%s) failed: %v", profile, err)
		}
		keys = append(keys, key)
	}

	_, r := createTestResult(t, src, "std")
	got, err := s.ResultsForSource(ctx, r.SourceHash)
	if err != nil {
		t.Fatalf("ResultsForSource() failed: %v", err)
	}
	if len(got) != len(keys) {
		t.Fatalf("got %d keys, want %d", len(got), len(keys))
	}
	for i := range keys {
		if got[i] != keys[i] {
			t.Errorf("key[%d] = %q, want %q", i, got[i], keys[i])
		}
	}
}

func TestPut_ConcurrentWriters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key, r := createTestResult(t, "v = "+string(rune('a'+i))+"\n", "std")
			errs <- s.Put(ctx, key, r)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent Put() failed: %v", err)
		}
	}

	var count, distinct int
	if err := s.db.QueryRow("SELECT COUNT(*), COUNT(DISTINCT seq) FROM results").Scan(&count, &distinct); err != nil {
		t.Fatal(err)
	}
	if count != 8 || distinct != 8 {
		t.Errorf("rows = %d, distinct seq = %d, want 8/8", count, distinct)
	}
}

func TestRecordRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun("run-1", "b.py", "a.py", "c.py")
	run.Jobs[1].Cached = true
	run.Jobs[2].Error = "syntax error at 1:1"
	run.Jobs[0].Diagnostics = 2

	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun() returned nil")
	}
	if !got.Started.Equal(run.Started) || !got.Finished.Equal(run.Finished) {
		t.Errorf("times = %v..%v, want %v..%v", got.Started, got.Finished, run.Started, run.Finished)
	}
	if got.Workers != 2 {
		t.Errorf("Workers = %d, want 2", got.Workers)
	}
	if len(got.Jobs) != 3 {
		t.Fatalf("len(Jobs) = %d, want 3", len(got.Jobs))
	}
	// Input order, not name order.
	for i, name := range []string{"b.py", "a.py", "c.py"} {
		if got.Jobs[i].Name != name {
			t.Errorf("Jobs[%d].Name = %q, want %q", i, got.Jobs[i].Name, name)
		}
	}
	if !got.Jobs[1].Cached || got.Jobs[0].Cached {
		t.Error("Cached flag not preserved")
	}
	if got.Jobs[0].Diagnostics != 2 {
		t.Errorf("Jobs[0].Diagnostics = %d, want 2", got.Jobs[0].Diagnostics)
	}
	if got.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", got.Failed())
	}
}

func TestRecordRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun("run-1", "a.py")

	for i := 0; i < 2; i++ {
		if err := s.RecordRun(ctx, run); err != nil {
			t.Fatalf("RecordRun() #%d failed: %v", i, err)
		}
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM run_jobs").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("run_jobs rows = %d, want 1", count)
	}
}

func TestRecordRun_EmptyID(t *testing.T) {
	s := createTestStore(t)
	if err := s.RecordRun(context.Background(), Run{}); err == nil {
		t.Error("expected error for empty run ID")
	}
}

func TestRunIDs_RecordOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		if err := s.RecordRun(ctx, createTestRun(id, "x.py")); err != nil {
			t.Fatalf("RecordRun(%s) failed: %v", id, err)
		}
	}

	ids, err := s.RunIDs(ctx)
	if err != nil {
		t.Fatalf("RunIDs() failed: %v", err)
	}
	want := []string{"zeta", "alpha", "mid"}
	if len(ids) != len(want) {
		t.Fatalf("RunIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestGetRun_Miss(t *testing.T) {
	s := createTestStore(t)
	got, err := s.GetRun(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetRun() = %+v, want nil", got)
	}
}
