package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/rust"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestResult creates a result for source with one diagnostic and a
// one-entry source map.
func createTestResult(t *testing.T, source, profile string) (string, Result) {
	t.Helper()
	key, err := ir.CacheKey(source, map[string]any{"target_profile": profile})
	if err != nil {
		t.Fatalf("CacheKey() failed: %v", err)
	}
	return key, Result{
		SourceHash: ir.SourceHash(source),
		Profile:    profile,
		Code:       "pub fn f() -> i64 {\n    return 1;\n}\n",
		Diagnostics: []diag.Diagnostic{
			*diag.UnsupportedConstruct("lambda", diag.At(3, 5).In("f")),
		},
		SourceMap: rust.SourceMap{{SourceLine: 1, GenStart: 1, GenEnd: 3}},
	}
}

// createTestRun creates a finished run with the given job names.
func createTestRun(id string, names ...string) Run {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := Run{ID: id, Started: start, Finished: start.Add(time.Second), Workers: 2}
	for _, n := range names {
		run.Jobs = append(run.Jobs, RunJob{Name: n, Key: "key-" + n})
	}
	return run
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
