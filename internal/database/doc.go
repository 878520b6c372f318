// Package database provides SQLite-based persistence for crawl runs.
//
// It stores each run's configuration and final summary, every page record
// the crawl emitted, and the classification tags per page. Persisted runs
// can be re-read for offline re-tagging and historical comparison.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for crawl-sized datasets
// 4. WAL mode provides good concurrent read performance
package database
