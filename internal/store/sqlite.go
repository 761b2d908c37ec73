package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"datafetch/internal/logging"

	_ "modernc.org/sqlite"
)

// Asset represents a row in the assets ledger.
type Asset struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Dest         string    `json:"dest"`
	Status       string    `json:"status"`
	SizeBytes    int64     `json:"size_bytes"`
	SHA256       string    `json:"sha256,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store wraps an sql.DB and provides typed helpers.
type Store struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at the given path and ensures schema.
func Open(path string) (*Store, error) {
	// Pragmas: busy timeout and WAL for better concurrency.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Conservative limits.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	// Create table if not exists.
	const ddl = `
CREATE TABLE IF NOT EXISTS assets (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    url TEXT NOT NULL,
    dest TEXT NOT NULL,
    status TEXT,
    size_bytes INTEGER,
    sha256 TEXT,
    etag TEXT,
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status);
CREATE INDEX IF NOT EXISTS idx_assets_created_at ON assets(created_at);
`
	_, err := db.Exec(ddl)
	if err != nil {
		return err
	}

	if err := ensureColumn(db, "assets", "sha256", "TEXT"); err != nil {
		return err
	}
	if err := ensureColumn(db, "assets", "etag", "TEXT"); err != nil {
		return err
	}
	if err := ensureColumn(db, "assets", "error_message", "TEXT"); err != nil {
		return err
	}

	return nil
}

func ensureColumn(db *sql.DB, table, column, colType string) error {
	hasCol, err := hasColumn(db, table, column)
	if err != nil {
		return err
	}
	if hasCol {
		return nil
	}

	_, err = db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, colType))
	return err
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Close closes the underlying DB.
func (s *Store) Close() error { return s.db.Close() }

// RecordAsset upserts a ledger row for a manifest asset and returns its ID.
// An existing row keeps its history; its url/dest are refreshed and the
// status is reset to pending unless the asset already completed.
func (s *Store) RecordAsset(ctx context.Context, name, url, dest string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, ErrEmptyName
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO assets (name, url, dest, status, size_bytes)
VALUES (?, ?, ?, 'pending', 0)
ON CONFLICT(name) DO UPDATE SET
    url = excluded.url,
    dest = excluded.dest,
    status = CASE WHEN assets.status = 'completed' THEN assets.status ELSE 'pending' END,
    updated_at = CURRENT_TIMESTAMP`, name, url, dest)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM assets WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("get asset id: %w", err)
	}
	logging.LogDBCreate(id, name, url, dest, "pending")
	return id, nil
}

// UpdateStatus sets status and bumps updated_at. A non-empty errMsg is
// recorded for error rows and cleared otherwise.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status string, errMsg string) error {
	st := normalizeStatus(status)
	var err error
	if st == "error" {
		trimmedErr := strings.TrimSpace(errMsg)
		if trimmedErr == "" {
			_, err = s.db.ExecContext(ctx, `UPDATE assets SET status = ?, error_message = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, st, id)
		} else {
			_, err = s.db.ExecContext(ctx, `UPDATE assets SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, st, trimmedErr, id)
		}
	} else {
		_, err = s.db.ExecContext(ctx, `UPDATE assets SET status = ?, error_message = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, st, id)
	}
	if err != nil {
		return err
	}
	fields := map[string]any{"status": st}
	if errMsg != "" {
		fields["error_message"] = errMsg
	}
	logging.LogDBUpdate("update_status", id, fields)
	return nil
}

// UpdateResult records the measured size and digest of a fetched asset.
func (s *Store) UpdateResult(ctx context.Context, id int64, sizeBytes int64, sha256 string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE assets SET size_bytes = ?, sha256 = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, sizeBytes, sha256, id)
	if err != nil {
		return err
	}
	logging.LogDBUpdate("update_result", id, map[string]any{"size_bytes": sizeBytes, "sha256": sha256})
	return nil
}

// UpdateRemoteInfo records size/etag reported by the server before download.
// Zero size and empty etag are left untouched.
func (s *Store) UpdateRemoteInfo(ctx context.Context, id int64, sizeBytes int64, etag string) error {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if sizeBytes > 0 {
		sets = append(sets, "size_bytes = ?")
		args = append(args, sizeBytes)
	}
	if etag != "" {
		sets = append(sets, "etag = ?")
		args = append(args, etag)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	q := "UPDATE assets SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return err
	}
	logging.LogDBUpdate("update_remote_info", id, map[string]any{"size_bytes": sizeBytes, "etag": etag})
	return nil
}

// GetAssetByName returns a single asset by manifest name.
func (s *Store) GetAssetByName(ctx context.Context, name string) (Asset, bool, error) {
	if strings.TrimSpace(name) == "" {
		return Asset{}, false, ErrEmptyName
	}
	var a Asset
	var sha, etag, errMsg sql.NullString
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, url, dest, status, size_bytes, sha256, etag, error_message, created_at, updated_at
FROM assets
WHERE name = ?`, name).Scan(
		&a.ID, &a.Name, &a.URL, &a.Dest, &a.Status, &a.SizeBytes, &sha, &etag, &errMsg, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Asset{}, false, nil
	}
	if err != nil {
		return Asset{}, false, err
	}
	a.SHA256 = sha.String
	a.ETag = etag.String
	a.ErrorMessage = errMsg.String
	return a, true, nil
}

// ListAssets returns all ledger rows ordered by creation time.
func (s *Store) ListAssets(ctx context.Context) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, url, dest, status, size_bytes, sha256, etag, error_message, created_at, updated_at
FROM assets
ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Asset, 0, 8)
	for rows.Next() {
		var a Asset
		var sha, etag, errMsg sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &a.URL, &a.Dest, &a.Status, &a.SizeBytes, &sha, &etag, &errMsg, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.SHA256 = sha.String
		a.ETag = etag.String
		a.ErrorMessage = errMsg.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByStatus returns the count of assets with the given status.
func (s *Store) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets WHERE status = ?`, normalizeStatus(status)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ResetInterrupted moves rows a previous run left mid-fetch back to pending.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE assets SET status = 'pending', error_message = NULL, updated_at = CURRENT_TIMESTAMP WHERE status IN ('fetching', 'error')`)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		logging.LogDBOperation("reset_interrupted", affected, nil)
	}
	return affected, nil
}

func normalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "queued":
		return "pending"
	case "downloading":
		return "fetching"
	case "fetching", "completed", "pending", "skipped":
		return s
	case "failed", "error":
		return "error"
	default:
		return "pending"
	}
}
