package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/docharvest/internal/model"
	"github.com/nao1215/docharvest/internal/webaddr"
)

// FileName is the name of the database file inside the database directory.
const FileName = "docharvest.db"

// DocumentDB provides SQLite-based storage for harvested documents and run reports.
// It is safe for concurrent use.
type DocumentDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures DocumentDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a DocumentDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*DocumentDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc creates it.
	// busy_timeout lets a second process (e.g. history during a harvest) wait
	// for the writer instead of failing with SQLITE_BUSY.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ddb := &DocumentDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := ddb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return ddb, nil
}

// Path returns the path of the database file.
func (ddb *DocumentDB) Path() string {
	return ddb.dbPath
}

// Close closes the database connection.
func (ddb *DocumentDB) Close() error {
	return ddb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (ddb *DocumentDB) createTables() error {
	schema := `
	-- Documents are keyed by their normalized download URL
	CREATE TABLE IF NOT EXISTS documents (
		url TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		source TEXT,
		title TEXT,
		content_type TEXT NOT NULL,
		snippet TEXT,
		published_date TEXT,
		last_modified TEXT,
		hierarchy TEXT,
		metadata TEXT,
		content_hash TEXT,
		size INTEGER DEFAULT 0,
		added_by TEXT,
		collected_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_domain ON documents(domain);
	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
	CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);

	-- Harvest runs store complete run reports as JSON
	CREATE TABLE IF NOT EXISTS harvest_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		domain TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		report_json TEXT NOT NULL,
		summary_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_domain ON harvest_runs(domain);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON harvest_runs(timestamp);
	`

	_, err := ddb.db.ExecContext(context.Background(), schema)
	return err
}

// storeKey returns the normalized form of rawURL, or rawURL itself when it
// cannot be normalized.
func storeKey(rawURL string) string {
	if normalized, err := webaddr.Normalize(rawURL); err == nil {
		return normalized
	}
	return rawURL
}

// ContainsURL reports whether a document with the normalized form of rawURL
// is stored.
func (ddb *DocumentDB) ContainsURL(ctx context.Context, rawURL string) (bool, error) {
	var count int
	err := ddb.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE url = ?`, storeKey(rawURL),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to look up document: %w", err)
	}
	return count > 0, nil
}

const upsertDocument = `
	INSERT INTO documents (url, domain, source, title, content_type, snippet, published_date,
		last_modified, hierarchy, metadata, content_hash, size, added_by, collected_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		domain = excluded.domain,
		source = excluded.source,
		title = excluded.title,
		content_type = excluded.content_type,
		snippet = excluded.snippet,
		published_date = excluded.published_date,
		last_modified = excluded.last_modified,
		hierarchy = excluded.hierarchy,
		metadata = excluded.metadata,
		content_hash = excluded.content_hash,
		size = excluded.size,
		added_by = excluded.added_by,
		collected_at = excluded.collected_at
	`

// SaveDocument inserts or replaces a single document.
func (ddb *DocumentDB) SaveDocument(ctx context.Context, doc *model.Document) error {
	return ddb.SaveDocuments(ctx, []model.Document{*doc})
}

// SaveDocuments inserts or replaces documents in one transaction.
func (ddb *DocumentDB) SaveDocuments(ctx context.Context, docs []model.Document) (err error) {
	tx, err := ddb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertDocument)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range docs {
		doc := &docs[i]
		hierarchyJSON, err := json.Marshal(doc.Hierarchy)
		if err != nil {
			return fmt.Errorf("failed to serialize hierarchy: %w", err)
		}
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to serialize metadata: %w", err)
		}

		if _, err := stmt.ExecContext(ctx,
			storeKey(doc.URL),
			doc.Domain,
			doc.Source,
			doc.Title,
			doc.ContentType.String(),
			doc.Snippet,
			formatOptionalTime(doc.PublishedDate),
			formatOptionalTime(doc.LastModified),
			string(hierarchyJSON),
			string(metadataJSON),
			doc.ContentHash,
			doc.Size,
			doc.AddedBy,
			doc.CollectedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("failed to save document %s: %w", doc.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit documents: %w", err)
	}
	return nil
}

const selectDocument = `
	SELECT url, domain, source, title, content_type, snippet, published_date, last_modified,
		hierarchy, metadata, content_hash, size, added_by, collected_at
	FROM documents
	`

// GetDocument retrieves a document by URL. It returns nil when none is stored.
func (ddb *DocumentDB) GetDocument(ctx context.Context, rawURL string) (*model.Document, error) {
	row := ddb.db.QueryRowContext(ctx, selectDocument+` WHERE url = ?`, storeKey(rawURL))
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns the documents collected from domain, newest first.
// An empty domain lists every document.
func (ddb *DocumentDB) ListDocuments(ctx context.Context, domain string) ([]model.Document, error) {
	query := selectDocument + ` WHERE 1=1`
	args := make([]any, 0, 1)
	if domain != "" {
		query += ` AND domain = ?`
		args = append(args, domain)
	}
	query += ` ORDER BY collected_at DESC, url`

	rows, err := ddb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}

	return docs, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		doc                                   model.Document
		source, title, snippet, hash, addedBy sql.NullString
		published, lastModified               sql.NullString
		hierarchyJSON, metadataJSON           sql.NullString
		contentType, collectedAt              string
	)

	if err := row.Scan(
		&doc.URL,
		&doc.Domain,
		&source,
		&title,
		&contentType,
		&snippet,
		&published,
		&lastModified,
		&hierarchyJSON,
		&metadataJSON,
		&hash,
		&doc.Size,
		&addedBy,
		&collectedAt,
	); err != nil {
		return nil, err
	}

	doc.Source = source.String
	doc.Title = title.String
	doc.ContentType = model.ParseContentType(contentType)
	doc.Snippet = snippet.String
	doc.PublishedDate = parseOptionalTime(published)
	doc.LastModified = parseOptionalTime(lastModified)
	doc.ContentHash = hash.String
	doc.AddedBy = addedBy.String
	doc.CollectedAt = parseTimestamp(collectedAt)

	if hierarchyJSON.Valid && hierarchyJSON.String != "" {
		if err := json.Unmarshal([]byte(hierarchyJSON.String), &doc.Hierarchy); err != nil {
			return nil, fmt.Errorf("failed to parse hierarchy: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
	}

	return &doc, nil
}

// SaveRunReport saves a complete harvest report as JSON.
func (ddb *DocumentDB) SaveRunReport(ctx context.Context, report *model.HarvestReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	summaryJSON, err := json.Marshal(report.Summarize())
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	query := `
	INSERT INTO harvest_runs (run_id, domain, timestamp, report_json, summary_json)
	VALUES (?, ?, ?, ?, ?)
	`

	_, err = ddb.db.ExecContext(ctx, query,
		report.RunID,
		report.Domain,
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		string(reportJSON),
		string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}

	return nil
}

// GetLatestRunReport retrieves the most recent run report for a domain.
// It returns nil when the domain was never harvested.
func (ddb *DocumentDB) GetLatestRunReport(ctx context.Context, domain string) (*model.HarvestReport, error) {
	query := `
	SELECT report_json FROM harvest_runs
	WHERE domain = ?
	ORDER BY id DESC
	LIMIT 1
	`

	return ddb.queryReport(ctx, query, domain)
}

// GetRunReportByID retrieves a run report by its database ID.
// It returns nil when no such run exists.
func (ddb *DocumentDB) GetRunReportByID(ctx context.Context, id int64) (*model.HarvestReport, error) {
	return ddb.queryReport(ctx, `SELECT report_json FROM harvest_runs WHERE id = ?`, id)
}

func (ddb *DocumentDB) queryReport(ctx context.Context, query string, args ...any) (*model.HarvestReport, error) {
	var reportJSON string
	err := ddb.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}

	var report model.HarvestReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListHarvestedDomains returns every domain with at least one stored run.
func (ddb *DocumentDB) ListHarvestedDomains(ctx context.Context) ([]string, error) {
	rows, err := ddb.db.QueryContext(ctx, `SELECT DISTINCT domain FROM harvest_runs ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, domain)
	}

	return domains, rows.Err()
}

// GetRunHistory retrieves all run reports for a domain, newest first.
func (ddb *DocumentDB) GetRunHistory(ctx context.Context, domain string) ([]*model.HarvestReport, error) {
	query := `
	SELECT report_json FROM harvest_runs
	WHERE domain = ?
	ORDER BY id DESC
	`

	rows, err := ddb.db.QueryContext(ctx, query, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var reports []*model.HarvestReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		var report model.HarvestReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// It is used to list the history without loading full reports.
type RunMetadata struct {
	// ID is the database ID of the run.
	ID int64

	// RunID is the run's UUID.
	RunID string

	// Domain is the harvested domain.
	Domain string

	// Timestamp is when the run started.
	Timestamp time.Time

	// Summary holds the run's counters.
	Summary model.Summary
}

// GetRunHistoryWithMetadata retrieves run metadata for a domain, newest first.
func (ddb *DocumentDB) GetRunHistoryWithMetadata(ctx context.Context, domain string) ([]RunMetadata, error) {
	query := `
	SELECT id, run_id, domain, timestamp, summary_json
	FROM harvest_runs
	WHERE domain = ?
	ORDER BY id DESC
	`

	rows, err := ddb.db.QueryContext(ctx, query, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var timestamp string
		var summaryJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.RunID, &meta.Domain, &timestamp, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		if summaryJSON.Valid && summaryJSON.String != "" {
			// A damaged summary leaves the zero value; the row is still listed.
			_ = json.Unmarshal([]byte(summaryJSON.String), &meta.Summary) //nolint:errcheck
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

func formatOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseOptionalTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTimestamp(s.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // Written by this package
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
