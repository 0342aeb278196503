package store

import (
	"database/sql"
	"fmt"

	"github.com/spall-labs/spall/internal/bus"
	"github.com/spall-labs/spall/internal/errors"
)

// GetCorpusByName looks a corpus up by its unique name.
func (s *Store) GetCorpusByName(name string) (*Corpus, error) {
	return s.scanCorpus(s.db.QueryRow(
		`SELECT id, name, created_at, updated_at FROM corpora WHERE name = ?`, name), name)
}

// GetCorpusByID looks a corpus up by id.
func (s *Store) GetCorpusByID(id int64) (*Corpus, error) {
	return s.scanCorpus(s.db.QueryRow(
		`SELECT id, name, created_at, updated_at FROM corpora WHERE id = ?`, id), id)
}

func (s *Store) scanCorpus(row *sql.Row, ref any) (*Corpus, error) {
	var c Corpus
	err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.CorpusNotFound(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to load corpus: %w", err)
	}
	return &c, nil
}

// ListCorpora returns all corpora ordered by id.
func (s *Store) ListCorpora() ([]Corpus, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at, updated_at FROM corpora ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list corpora: %w", err)
	}
	defer rows.Close()

	var out []Corpus
	for rows.Next() {
		var c Corpus
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: failed to scan corpus: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetOrCreateCorpus returns the corpus named name, creating it if absent.
// Publishes corpus.created when a row was inserted.
func (s *Store) GetOrCreateCorpus(name string) (*Corpus, error) {
	if c, err := s.GetCorpusByName(name); err == nil {
		return c, nil
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	now := nowMillis()
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO corpora (name, created_at, updated_at) VALUES (?, ?, ?)`,
		name, now, now)
	if err != nil {
		return nil, fmt.Errorf("store: failed to create corpus %q: %w", name, err)
	}

	c, getErr := s.GetCorpusByName(name)
	if getErr != nil {
		return nil, getErr
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.publish(bus.CorpusCreated(c))
	}
	return c, nil
}

// RemoveCorpus deletes a corpus and everything it owns: vectors, chunk
// rows, FTS rows, and notes, all in one transaction.
func (s *Store) RemoveCorpus(id int64) error {
	if _, err := s.GetCorpusByID(id); err != nil {
		return err
	}

	return s.withTx(func(tx *sql.Tx) error {
		steps := []string{
			`DELETE FROM vectors WHERE id IN (
				SELECT e.id FROM embeddings e
				JOIN notes n ON n.id = e.note_id
				WHERE n.corpus_id = ?)`,
			`DELETE FROM embeddings WHERE note_id IN (SELECT id FROM notes WHERE corpus_id = ?)`,
			`DELETE FROM notes_fts WHERE rowid IN (SELECT id FROM notes WHERE corpus_id = ?)`,
			`DELETE FROM notes WHERE corpus_id = ?`,
			`DELETE FROM corpora WHERE id = ?`,
		}
		for _, q := range steps {
			if _, err := tx.Exec(q, id); err != nil {
				return fmt.Errorf("store: failed to remove corpus %d: %w", id, err)
			}
		}
		return nil
	})
}
