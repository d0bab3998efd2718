package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

// Default timeout for catalog operations
const defaultTimeout = 5 * time.Second

// Catalog manages the File/FileVariant records backing the pipeline.
type Catalog struct {
	db     *sql.DB
	dbPath string
}

// New opens (creating if necessary) the catalog database.
// dbPath must be the full path to the database file; the parent directory
// must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Catalog, error) {
	logging.Info("Catalog database path: %s", dbPath)

	// WAL with a busy timeout keeps a second worker process from tripping
	// over "database is locked" during the claim step.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=1", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to catalog database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	c := &Catalog{db: db, dbPath: dbPath}

	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after schema failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	logging.Info("Catalog initialized successfully at %s", dbPath)
	return c, nil
}

func (c *Catalog) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		kind TEXT NOT NULL,
		processing_status TEXT NOT NULL DEFAULT 'QUEUED',
		processing_progress INTEGER,
		processing_notes TEXT NOT NULL DEFAULT '',
		expire_by INTEGER,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_files_status_created ON files(processing_status, created_at);
	CREATE INDEX IF NOT EXISTS idx_files_expire_by ON files(expire_by) WHERE expire_by IS NOT NULL;

	CREATE TABLE IF NOT EXISTS file_variants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id TEXT NOT NULL,
		variant TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		extension TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE,
		UNIQUE(file_id, variant)
	);

	CREATE INDEX IF NOT EXISTS idx_file_variants_file ON file_variants(file_id);
	`

	_, err := c.db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// recordQuery tracks query metrics the way every catalog operation should.
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
