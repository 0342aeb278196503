package store

import "fmt"

// NotesUnderPrefix returns every note in the corpus whose path equals the
// prefix or lives under it. An empty prefix selects the whole corpus.
// Used by the scanner to build its reconciliation map.
func (s *Store) NotesUnderPrefix(corpusID int64, prefix string) ([]Note, error) {
	prefix = CanonicalPath(prefix)

	query := noteSelect + ` WHERE corpus_id = ? ORDER BY path`
	args := []any{corpusID}
	if prefix != "" {
		query = noteSelect + ` WHERE corpus_id = ? AND (path = ? OR path GLOB ? || '/*') ORDER BY path`
		args = []any{corpusID, prefix, prefix}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: failed to load notes under %q: %w", prefix, err)
	}
	defer rows.Close()

	notes := []Note{}
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.CorpusID, &n.Path, &n.Content, &n.ContentHash,
			&n.Size, &n.Mtime, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// TouchNoteMtime updates only a note's mtime, for files whose timestamp
// moved but whose content hash did not.
func (s *Store) TouchNoteMtime(id, mtime int64) error {
	_, err := s.db.Exec(`UPDATE notes SET mtime = ? WHERE id = ?`, mtime, id)
	if err != nil {
		return fmt.Errorf("store: failed to touch note %d: %w", id, err)
	}
	return nil
}
