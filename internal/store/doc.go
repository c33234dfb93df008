// Package store provides SQLite-backed durable storage for pyrs.
//
// The store holds two kinds of records:
//   - Results: transpiled Rust code with its diagnostics and source map,
//     keyed by ir.CacheKey over the source text and transpile options
//   - Runs: one record per batch invocation plus one row per job
//
// # Critical Patterns
//
// Content-Addressed Results
//   - The cache key covers the source, the options and the IR and codegen
//     versions, so a stale entry is never returned after an upgrade
//   - Put is idempotent: ON CONFLICT(cache_key) DO NOTHING
//
// Logical Ordering
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Run jobs are ordered by their position in the batch input
//
// Canonical JSON
//   - Diagnostics and source maps are stored as canonical JSON TEXT
//     (sorted keys, no insignificant whitespace)
//
// # Schema and Connection
//
// schema.sql is embedded and applied on every Open. Caches written by older
// builds are upgraded in place by the migrations list, tracked through
// PRAGMA user_version. The connection runs in WAL mode with a single open
// connection, so concurrent batch workers queue instead of hitting
// SQLITE_BUSY.
//
// # Usage
//
//	s, err := store.Open(".pyrs/cache.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	res, err := s.Get(ctx, key)
//	if err != nil {
//	    return err
//	}
//	if res == nil {
//	    // miss: transpile, then s.Put(ctx, key, result)
//	}
package store
