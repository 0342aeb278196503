package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/spall-labs/spall/internal/errors"
)

// CreateQuery validates the viewer workspace and every corpus id, then
// persists the retrieval scope.
func (s *Store) CreateQuery(viewer int64, tracked bool, corpora []int64) (*Query, error) {
	if _, err := s.GetWorkspaceByID(viewer); err != nil {
		return nil, err
	}
	for _, cid := range corpora {
		if _, err := s.GetCorpusByID(cid); err != nil {
			return nil, err
		}
	}

	res, err := s.db.Exec(
		`INSERT INTO queries (viewer_id, tracked, corpora, created_at) VALUES (?, ?, ?, ?)`,
		viewer, boolToInt(tracked), idsJSON(corpora), nowMillis())
	if err != nil {
		return nil, fmt.Errorf("store: failed to create query: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: failed to read query id: %w", err)
	}
	return s.GetQuery(id)
}

// GetQuery returns the query with the given id.
func (s *Store) GetQuery(id int64) (*Query, error) {
	row := s.db.QueryRow(
		`SELECT id, viewer_id, tracked, corpora, created_at FROM queries WHERE id = ?`, id)
	q, err := scanQuery(row)
	if err == sql.ErrNoRows {
		return nil, errors.QueryNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to load query %d: %w", id, err)
	}
	return q, nil
}

// RecentQueries returns the most recently created queries, newest first.
func (s *Store) RecentQueries(limit int) ([]Query, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT id, viewer_id, tracked, corpora, created_at FROM queries
		 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list recent queries: %w", err)
	}
	defer rows.Close()

	out := []Query{}
	for rows.Next() {
		q, err := scanQueryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

// DeleteQuery removes a query together with its staging and committed
// access rows.
func (s *Store) DeleteQuery(id int64) error {
	if _, err := s.GetQuery(id); err != nil {
		return err
	}
	return s.withTx(func(tx *sql.Tx) error {
		steps := []string{
			`DELETE FROM staging WHERE query_id = ?`,
			`DELETE FROM committed WHERE query_id = ?`,
			`DELETE FROM queries WHERE id = ?`,
		}
		for _, q := range steps {
			if _, err := tx.Exec(q, id); err != nil {
				return fmt.Errorf("store: failed to delete query %d: %w", id, err)
			}
		}
		return nil
	})
}

func scanQuery(row *sql.Row) (*Query, error) {
	var (
		q       Query
		tracked int
		corpora string
	)
	if err := row.Scan(&q.ID, &q.Viewer, &tracked, &corpora, &q.CreatedAt); err != nil {
		return nil, err
	}
	q.Tracked = tracked != 0
	if err := json.Unmarshal([]byte(corpora), &q.Corpora); err != nil {
		return nil, fmt.Errorf("store: corrupt corpora list on query %d: %w", q.ID, err)
	}
	return &q, nil
}

func scanQueryRows(rows *sql.Rows) (*Query, error) {
	var (
		q       Query
		tracked int
		corpora string
	)
	if err := rows.Scan(&q.ID, &q.Viewer, &tracked, &corpora, &q.CreatedAt); err != nil {
		return nil, fmt.Errorf("store: failed to scan query: %w", err)
	}
	q.Tracked = tracked != 0
	if err := json.Unmarshal([]byte(corpora), &q.Corpora); err != nil {
		return nil, fmt.Errorf("store: corrupt corpora list on query %d: %w", q.ID, err)
	}
	return &q, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
