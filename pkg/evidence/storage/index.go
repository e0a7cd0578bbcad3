package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"custodia-hq/custodia/pkg/evidence"
)

// IndexConfig contains configuration for the SQLite pack index.
type IndexConfig struct {
	// Path is the database file path.
	Path string

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultIndexConfig returns the default index configuration.
func DefaultIndexConfig() *IndexConfig {
	return &IndexConfig{
		Path:        "data/packs.db",
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// IndexEntry is one cataloged evidence pack.
type IndexEntry struct {
	ExecutionID      string
	PackID           string
	Path             string
	ManifestChecksum string
	Signed           bool
	CreatedAt        time.Time
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS packs (
    execution_id      TEXT PRIMARY KEY,
    pack_id           TEXT NOT NULL,
    path              TEXT NOT NULL,
    manifest_checksum TEXT NOT NULL,
    signed            INTEGER NOT NULL DEFAULT 0,
    created_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_packs_created_at ON packs(created_at);
`

// Index is an SQLite catalog of persisted evidence packs. It records
// where packs live and their manifest checksums for audit queries; it
// never stores pack content.
type Index struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewIndex opens (or creates) the pack index database.
func NewIndex(config *IndexConfig) (*Index, error) {
	if config == nil {
		config = DefaultIndexConfig()
	}
	logger := slog.Default().With("component", "evidence.storage.index")

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "open", err)
	}

	if config.WALMode {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, evidence.NewStorageError("sqlite", "enable_wal", err)
		}
	}
	busy := config.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busy.Milliseconds())); err != nil {
		db.Close()
		return nil, evidence.NewStorageError("sqlite", "set_busy_timeout", err)
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, evidence.NewStorageError("sqlite", "create_schema", err)
	}

	logger.Info("pack index initialized", "path", config.Path)
	return &Index{db: db, logger: logger}, nil
}

// Add catalogs a persisted pack. Re-adding an execution id replaces
// its entry.
func (i *Index) Add(ctx context.Context, entry IndexEntry) error {
	if entry.ExecutionID == "" {
		return evidence.NewValidationError("executionId", "must not be empty")
	}
	_, err := i.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO packs (execution_id, pack_id, path, manifest_checksum, signed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ExecutionID, entry.PackID, entry.Path, entry.ManifestChecksum, entry.Signed, entry.CreatedAt)
	if err != nil {
		return evidence.NewStorageError("sqlite", "add", err)
	}
	return nil
}

// Get returns the entry for an execution id.
func (i *Index) Get(ctx context.Context, executionID string) (*IndexEntry, error) {
	row := i.db.QueryRowContext(ctx,
		`SELECT execution_id, pack_id, path, manifest_checksum, signed, created_at
		 FROM packs WHERE execution_id = ?`, executionID)

	var e IndexEntry
	err := row.Scan(&e.ExecutionID, &e.PackID, &e.Path, &e.ManifestChecksum, &e.Signed, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, evidence.NewNotFoundError("pack", executionID)
	}
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "get", err)
	}
	return &e, nil
}

// List returns entries created in [from, to), newest first, capped at
// limit (0 means no cap).
func (i *Index) List(ctx context.Context, from, to time.Time, limit int) ([]IndexEntry, error) {
	query := `SELECT execution_id, pack_id, path, manifest_checksum, signed, created_at
	          FROM packs WHERE created_at >= ? AND created_at < ? ORDER BY created_at DESC`
	args := []any{from, to}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	var out []IndexEntry
	for rows.Next() {
		var e IndexEntry
		if err := rows.Scan(&e.ExecutionID, &e.PackID, &e.Path, &e.ManifestChecksum, &e.Signed, &e.CreatedAt); err != nil {
			return nil, evidence.NewStorageError("sqlite", "list", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("sqlite", "list", err)
	}
	return out, nil
}

// Remove drops an entry. Removing a missing entry is not an error.
func (i *Index) Remove(ctx context.Context, executionID string) error {
	_, err := i.db.ExecContext(ctx, `DELETE FROM packs WHERE execution_id = ?`, executionID)
	if err != nil {
		return evidence.NewStorageError("sqlite", "remove", err)
	}
	return nil
}

// Count returns the number of cataloged packs.
func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packs`).Scan(&n); err != nil {
		return 0, evidence.NewStorageError("sqlite", "count", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (i *Index) Close() error {
	return i.db.Close()
}
