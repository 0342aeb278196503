package store

import (
	"database/sql"
	"fmt"

	"github.com/spall-labs/spall/internal/bus"
	"github.com/spall-labs/spall/internal/errors"
)

// GetWorkspaceByName looks a workspace up by its unique name.
func (s *Store) GetWorkspaceByName(name string) (*Workspace, error) {
	return s.scanWorkspace(s.db.QueryRow(
		`SELECT id, name, created_at, updated_at FROM workspaces WHERE name = ?`, name), name)
}

// GetWorkspaceByID looks a workspace up by id.
func (s *Store) GetWorkspaceByID(id int64) (*Workspace, error) {
	return s.scanWorkspace(s.db.QueryRow(
		`SELECT id, name, created_at, updated_at FROM workspaces WHERE id = ?`, id), id)
}

func (s *Store) scanWorkspace(row *sql.Row, ref any) (*Workspace, error) {
	var w Workspace
	err := row.Scan(&w.ID, &w.Name, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.WorkspaceNotFound(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to load workspace: %w", err)
	}
	return &w, nil
}

// ListWorkspaces returns all workspaces ordered by id.
func (s *Store) ListWorkspaces() ([]Workspace, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at, updated_at FROM workspaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		var w Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: failed to scan workspace: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetOrCreateWorkspace returns the workspace named name, creating it if
// absent. Publishes workspace.created when a row was inserted.
func (s *Store) GetOrCreateWorkspace(name string) (*Workspace, error) {
	if w, err := s.GetWorkspaceByName(name); err == nil {
		return w, nil
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	now := nowMillis()
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO workspaces (name, created_at, updated_at) VALUES (?, ?, ?)`,
		name, now, now)
	if err != nil {
		return nil, fmt.Errorf("store: failed to create workspace %q: %w", name, err)
	}

	w, getErr := s.GetWorkspaceByName(name)
	if getErr != nil {
		return nil, getErr
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.publish(bus.WorkspaceCreated(w))
	}
	return w, nil
}

// RemoveWorkspace deletes a workspace together with its queries and their
// access-log rows. Corpora and notes are left untouched.
func (s *Store) RemoveWorkspace(id int64) error {
	if _, err := s.GetWorkspaceByID(id); err != nil {
		return err
	}

	return s.withTx(func(tx *sql.Tx) error {
		steps := []string{
			`DELETE FROM staging WHERE query_id IN (SELECT id FROM queries WHERE viewer_id = ?)`,
			`DELETE FROM committed WHERE query_id IN (SELECT id FROM queries WHERE viewer_id = ?)`,
			`DELETE FROM queries WHERE viewer_id = ?`,
			`DELETE FROM workspaces WHERE id = ?`,
		}
		for _, q := range steps {
			if _, err := tx.Exec(q, id); err != nil {
				return fmt.Errorf("store: failed to remove workspace %d: %w", id, err)
			}
		}
		return nil
	})
}
