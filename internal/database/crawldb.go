package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scopecrawl/scopecrawl/internal/model"
)

// dbFileName is the database file created inside the database directory.
const dbFileName = "scopecrawl.db"

// CrawlDB stores crawl runs, their page records, and per-page tags in a
// single SQLite file. One file holds many runs, which keeps historical
// queries and backups simple.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent read
	// performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in the given directory.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, dbFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw prevents the driver from creating a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer; one pooled connection avoids
	// SQLITE_BUSY churn from the worker pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the location of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl invocation. Summary columns are filled by FinishRun.
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed_url TEXT NOT NULL,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		max_depth INTEGER NOT NULL,
		max_pages INTEGER NOT NULL,
		workers INTEGER NOT NULL,
		duration_ms INTEGER,
		total_pages INTEGER,
		successful INTEGER,
		failed INTEGER,
		max_depth_reached INTEGER,
		internal_links INTEGER,
		external_links INTEGER,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed_url);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per fetched page within a run.
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		parent_url TEXT,
		final_url TEXT,
		status_code INTEGER,
		title TEXT,
		depth INTEGER NOT NULL,
		discovered INTEGER NOT NULL,
		fetched_at DATETIME,
		redirects INTEGER,
		snapshot TEXT,
		has_login_form INTEGER DEFAULT 0,
		headers TEXT,
		error TEXT,
		error_kind TEXT,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);

	-- Classification tags, one row per page/tag pair.
	CREATE TABLE IF NOT EXISTS page_tags (
		page_id INTEGER NOT NULL REFERENCES pages(id),
		tag TEXT NOT NULL,
		UNIQUE(page_id, tag)
	);

	CREATE INDEX IF NOT EXISTS idx_tags_tag ON page_tags(tag);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// CreateRun inserts a new run row and returns its ID.
func (cdb *CrawlDB) CreateRun(ctx context.Context, seedURL string, maxDepth, maxPages, workers int) (int64, error) {
	query := `
	INSERT INTO runs (seed_url, max_depth, max_pages, workers)
	VALUES (?, ?, ?, ?)
	`

	result, err := cdb.db.ExecContext(ctx, query, seedURL, maxDepth, maxPages, workers)
	if err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}
	return result.LastInsertId()
}

// FinishRun records the final summary on the run row.
func (cdb *CrawlDB) FinishRun(ctx context.Context, runID int64, summary *model.CrawlSummary) error {
	query := `
	UPDATE runs SET
		duration_ms = ?,
		total_pages = ?,
		successful = ?,
		failed = ?,
		max_depth_reached = ?,
		internal_links = ?,
		external_links = ?,
		reason = ?
	WHERE id = ?
	`

	_, err := cdb.db.ExecContext(ctx, query,
		summary.Duration.Milliseconds(),
		summary.TotalPages,
		summary.Successful,
		summary.Failed,
		summary.MaxDepthReached,
		summary.InternalLinks,
		summary.ExternalLinks,
		string(summary.Reason),
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// InsertPage stores one page record with its tags. Re-inserting the same URL
// within a run updates the existing row; its old tags are replaced.
func (cdb *CrawlDB) InsertPage(ctx context.Context, runID int64, r *model.PageResult, tags []string) (int64, error) {
	headersJSON, err := json.Marshal(r.Headers)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize headers: %w", err)
	}

	query := `
	INSERT INTO pages (run_id, url, parent_url, final_url, status_code, title, depth, discovered,
		fetched_at, redirects, snapshot, has_login_form, headers, error, error_kind)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		parent_url = excluded.parent_url,
		final_url = excluded.final_url,
		status_code = excluded.status_code,
		title = excluded.title,
		depth = excluded.depth,
		discovered = excluded.discovered,
		fetched_at = excluded.fetched_at,
		redirects = excluded.redirects,
		snapshot = excluded.snapshot,
		has_login_form = excluded.has_login_form,
		headers = excluded.headers,
		error = excluded.error,
		error_kind = excluded.error_kind
	`

	if _, err := cdb.db.ExecContext(ctx, query,
		runID,
		r.URL,
		r.ParentURL,
		r.FinalURL,
		r.StatusCode,
		r.Title,
		r.Depth,
		r.Discovered,
		r.FetchedAt.UTC().Format(time.RFC3339Nano),
		r.Redirects,
		r.Snapshot,
		boolToInt(r.HasLoginForm),
		string(headersJSON),
		r.Error,
		string(r.ErrorKind),
	); err != nil {
		return 0, fmt.Errorf("failed to insert page: %w", err)
	}

	var pageID int64
	if err := cdb.db.QueryRowContext(ctx,
		"SELECT id FROM pages WHERE run_id = ? AND url = ?", runID, r.URL,
	).Scan(&pageID); err != nil {
		return 0, fmt.Errorf("failed to resolve page id: %w", err)
	}

	if err := cdb.replaceTags(ctx, pageID, tags); err != nil {
		return 0, err
	}
	return pageID, nil
}

// replaceTags swaps a page's tag set.
func (cdb *CrawlDB) replaceTags(ctx context.Context, pageID int64, tags []string) error {
	if _, err := cdb.db.ExecContext(ctx, "DELETE FROM page_tags WHERE page_id = ?", pageID); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	for _, tag := range tags {
		if _, err := cdb.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO page_tags (page_id, tag) VALUES (?, ?)", pageID, tag,
		); err != nil {
			return fmt.Errorf("failed to insert tag: %w", err)
		}
	}
	return nil
}

// GetRunPages returns all page records of a run, ordered by discovery
// ordinal, with their tags attached.
func (cdb *CrawlDB) GetRunPages(ctx context.Context, runID int64) ([]*model.PageResult, error) {
	query := `
	SELECT id, url, parent_url, final_url, status_code, title, depth, discovered,
		fetched_at, redirects, snapshot, has_login_form, headers, error, error_kind
	FROM pages
	WHERE run_id = ?
	ORDER BY discovered
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var results []*model.PageResult
	ids := make([]int64, 0)

	for rows.Next() {
		var (
			r            model.PageResult
			pageID       int64
			fetchedAt    string
			hasLoginForm int
			headersJSON  sql.NullString
		)
		if err := rows.Scan(
			&pageID,
			&r.URL,
			&r.ParentURL,
			&r.FinalURL,
			&r.StatusCode,
			&r.Title,
			&r.Depth,
			&r.Discovered,
			&fetchedAt,
			&r.Redirects,
			&r.Snapshot,
			&hasLoginForm,
			&headersJSON,
			&r.Error,
			&r.ErrorKind,
		); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}

		r.FetchedAt = parseTimestamp(fetchedAt)
		r.HasLoginForm = hasLoginForm != 0
		if headersJSON.Valid && headersJSON.String != "" && headersJSON.String != "null" {
			var headers http.Header
			if err := json.Unmarshal([]byte(headersJSON.String), &headers); err != nil {
				return nil, fmt.Errorf("failed to parse headers: %w", err)
			}
			r.Headers = headers
		}

		results = append(results, &r)
		ids = append(ids, pageID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		tags, err := cdb.pageTags(ctx, id)
		if err != nil {
			return nil, err
		}
		results[i].Tags = tags
	}
	return results, nil
}

// pageTags returns the tags of one page.
func (cdb *CrawlDB) pageTags(ctx context.Context, pageID int64) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx,
		"SELECT tag FROM page_tags WHERE page_id = ? ORDER BY tag", pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// TagCounts returns how many pages of a run carry each tag.
func (cdb *CrawlDB) TagCounts(ctx context.Context, runID int64) (map[string]int, error) {
	query := `
	SELECT t.tag, COUNT(*) FROM page_tags t
	JOIN pages p ON p.id = t.page_id
	WHERE p.run_id = ?
	GROUP BY t.tag
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			tag string
			n   int
		)
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, fmt.Errorf("failed to scan tag count: %w", err)
		}
		counts[tag] = n
	}
	return counts, rows.Err()
}

// RunMetadata is one row of the run listing.
type RunMetadata struct {
	// ID is the run's database identifier.
	ID int64

	// SeedURL is the crawl's starting point.
	SeedURL string

	// StartedAt is when the run began.
	StartedAt time.Time

	// TotalPages is the number of pages the run emitted, 0 for unfinished
	// runs.
	TotalPages int

	// Reason is the termination reason, empty for unfinished runs.
	Reason string
}

// ListRuns returns metadata for all stored runs, newest first.
func (cdb *CrawlDB) ListRuns(ctx context.Context) ([]RunMetadata, error) {
	query := `
	SELECT id, seed_url, started_at, COALESCE(total_pages, 0), COALESCE(reason, '')
	FROM runs
	ORDER BY started_at DESC, id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunMetadata
	for rows.Next() {
		var (
			meta      RunMetadata
			startedAt string
		)
		if err := rows.Scan(&meta.ID, &meta.SeedURL, &startedAt, &meta.TotalPages, &meta.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		meta.StartedAt = parseTimestamp(startedAt)
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampFormats contains the timestamp formats SQLite may return.
// The order matters: more specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses a timestamp string against the known SQLite formats,
// returning the zero time when nothing matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
