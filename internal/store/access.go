package store

import (
	"database/sql"
	"fmt"
)

// AppendStaging appends one access-log row to the staging tier.
func (s *Store) AppendStaging(noteID, queryID int64, kind int, payload string) error {
	if payload == "" {
		payload = "{}"
	}
	_, err := s.db.Exec(
		`INSERT INTO staging (note_id, query_id, kind, created_at, payload) VALUES (?, ?, ?, ?, ?)`,
		noteID, queryID, kind, nowMillis(), payload)
	if err != nil {
		return fmt.Errorf("store: failed to append staging row: %w", err)
	}
	return nil
}

// CountStaging returns the number of staged rows.
func (s *Store) CountStaging() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM staging`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: failed to count staging rows: %w", err)
	}
	return n, nil
}

// CountCommitted returns the number of committed rows.
func (s *Store) CountCommitted() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM committed`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: failed to count committed rows: %w", err)
	}
	return n, nil
}

// CommitAll moves every staging row to committed with the supplied
// timestamp, then truncates staging, all in one transaction. Returns the
// number of rows moved. An empty staging tier is a no-op fast path.
func (s *Store) CommitAll(committedAt int64) (int64, error) {
	staged, err := s.CountStaging()
	if err != nil {
		return 0, err
	}
	if staged == 0 {
		return 0, nil
	}

	var moved int64
	err = s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO committed (note_id, query_id, kind, created_at, payload, committed_at)
			SELECT note_id, query_id, kind, created_at, payload, ? FROM staging ORDER BY id`,
			committedAt)
		if err != nil {
			return fmt.Errorf("store: failed to commit staging rows: %w", err)
		}
		moved, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("store: failed to count moved rows: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM staging`); err != nil {
			return fmt.Errorf("store: failed to truncate staging: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}
