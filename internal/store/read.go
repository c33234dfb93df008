package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/pyrs/internal/diag"
	"github.com/roach88/pyrs/internal/rust"
)

// Result is a cached transpile result.
type Result struct {
	Key         string
	SourceHash  string
	Profile     string
	Code        string
	Diagnostics []diag.Diagnostic
	SourceMap   rust.SourceMap
}

// Run is one batch invocation.
type Run struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Workers  int
	Jobs     []RunJob
}

// Failed counts jobs that ended in an error.
func (r Run) Failed() int {
	n := 0
	for _, j := range r.Jobs {
		if j.Error != "" {
			n++
		}
	}
	return n
}

// RunJob is the outcome of one file in a batch.
type RunJob struct {
	Name        string
	Key         string
	Cached      bool
	Diagnostics int
	Error       string
}

// Get returns the result stored under key, or nil if there is none.
func (s *Store) Get(ctx context.Context, key string) (*Result, error) {
	var r Result
	var diags, smap string
	err := s.db.QueryRowContext(ctx, `
		SELECT cache_key, source_hash, profile, code, diagnostics, source_map
		FROM results
		WHERE cache_key = ?
	`, key).Scan(&r.Key, &r.SourceHash, &r.Profile, &r.Code, &diags, &smap)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result %s: %w", key, err)
	}
	if r.Diagnostics, err = unmarshalDiagnostics(diags); err != nil {
		return nil, fmt.Errorf("get result %s: %w", key, err)
	}
	if r.SourceMap, err = unmarshalSourceMap(smap); err != nil {
		return nil, fmt.Errorf("get result %s: %w", key, err)
	}
	return &r, nil
}

// ResultsForSource returns the cache keys stored for a source hash, oldest
// first. One source has several keys when it was transpiled with different
// options.
func (s *Store) ResultsForSource(ctx context.Context, sourceHash string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cache_key FROM results
		WHERE source_hash = ?
		ORDER BY seq ASC, cache_key COLLATE BINARY ASC
	`, sourceHash)
	if err != nil {
		return nil, fmt.Errorf("results for source %s: %w", sourceHash, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan cache key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetRun returns a recorded run with its jobs in input order, or nil.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	var started, finished string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, workers FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &started, &finished, &run.Workers)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	if run.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("get run %s: started_at: %w", id, err)
	}
	if run.Finished, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return nil, fmt.Errorf("get run %s: finished_at: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, cache_key, cached, diagnostics, error
		FROM run_jobs
		WHERE run_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get run %s jobs: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var j RunJob
		var cached int
		if err := rows.Scan(&j.Name, &j.Key, &cached, &j.Diagnostics, &j.Error); err != nil {
			return nil, fmt.Errorf("scan run job: %w", err)
		}
		j.Cached = cached != 0
		run.Jobs = append(run.Jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get run %s jobs: %w", id, err)
	}
	return &run, nil
}

// RunIDs lists recorded run IDs in the order they were recorded.
func (s *Store) RunIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs ORDER BY seq ASC, id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
