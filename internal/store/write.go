package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/pyrs/internal/ir"
)

// Put stores a transpile result under key.
// Idempotent: a key that is already present is left untouched, since equal
// keys imply equal output.
func (s *Store) Put(ctx context.Context, key string, r Result) error {
	if key == "" {
		return fmt.Errorf("put result: empty cache key")
	}
	diags, err := marshalDiagnostics(r.Diagnostics)
	if err != nil {
		return fmt.Errorf("put result %s: %w", key, err)
	}
	smap, err := marshalSourceMap(r.SourceMap)
	if err != nil {
		return fmt.Errorf("put result %s: %w", key, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put result %s: begin: %w", key, err)
	}
	defer tx.Rollback()

	seq, err := s.nextSeq(ctx, tx, "results")
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO results (cache_key, source_hash, profile, code, diagnostics, source_map, ir_version, codegen_version, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO NOTHING
	`, key, r.SourceHash, r.Profile, r.Code, diags, smap, ir.IRVersion, ir.CodegenVersion, seq)
	if err != nil {
		return fmt.Errorf("put result %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put result %s: commit: %w", key, err)
	}
	return nil
}

// RecordRun stores a batch run and its jobs in one transaction.
// Idempotent on run ID.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("record run: empty run ID")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run %s: begin: %w", run.ID, err)
	}
	defer tx.Rollback()

	seq, err := s.nextSeq(ctx, tx, "runs")
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, workers, jobs, failed, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, formatTime(run.Started), formatTime(run.Finished), run.Workers, len(run.Jobs), run.Failed(), seq)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tx.Commit()
	}

	for i, j := range run.Jobs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_jobs (run_id, position, name, cache_key, cached, diagnostics, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.ID, i, j.Name, j.Key, boolToInt(j.Cached), j.Diagnostics, j.Error)
		if err != nil {
			return fmt.Errorf("record run %s job %d: %w", run.ID, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run %s: commit: %w", run.ID, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
