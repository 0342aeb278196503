package store

import (
	"database/sql"
	"fmt"
)

// GetFileHash returns the cached content hash for (path, mtime), or ""
// when the cache entry is missing or stale. Keyed by absolute path on
// disk, not by stored note path.
func (s *Store) GetFileHash(path string, mtime int64) (string, error) {
	var hash string
	err := s.db.QueryRow(
		`SELECT content_hash FROM file_hashes WHERE path = ? AND mtime = ?`,
		path, mtime).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: failed to read file hash: %w", err)
	}
	return hash, nil
}

// UpsertFileHash records the content hash observed for a path at mtime.
func (s *Store) UpsertFileHash(path, hash string, mtime int64) error {
	_, err := s.db.Exec(`
		INSERT INTO file_hashes (path, content_hash, mtime) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET content_hash = excluded.content_hash, mtime = excluded.mtime`,
		path, hash, mtime)
	if err != nil {
		return fmt.Errorf("store: failed to upsert file hash: %w", err)
	}
	return nil
}
