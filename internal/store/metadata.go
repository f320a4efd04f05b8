package store

import (
	"context"
	"database/sql"
	"time"
)

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

const lastSyncKey = "last_sync"

// SetLastSync records when the snapshot was last refreshed from a remote API.
func (s *Store) SetLastSync(ctx context.Context, at time.Time) error {
	return s.SetMetadata(ctx, lastSyncKey, formatTime(at))
}

// LastSync returns the last refresh time, or the zero time if there was none.
func (s *Store) LastSync(ctx context.Context) (time.Time, error) {
	v, err := s.GetMetadata(ctx, lastSyncKey)
	if err != nil {
		return time.Time{}, err
	}
	return parseTime(v), nil
}

// GetImportedFileHash returns the content hash recorded for path, or ""
// if path was never imported.
func (s *Store) GetImportedFileHash(ctx context.Context, path string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the content hash of an imported file.
func (s *Store) SetImportedFileHash(ctx context.Context, path, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO imported_files (path, hash, imported_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, imported_at = excluded.imported_at`,
		path, hash, formatTime(time.Now()),
	)
	return err
}
