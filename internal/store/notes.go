package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/spall-labs/spall/internal/bus"
	"github.com/spall-labs/spall/internal/errors"
)

// HashContent returns the hex digest used as a note's content hash.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// GetNote returns the note at (corpus, path). The path is canonicalized
// before lookup.
func (s *Store) GetNote(corpusID int64, path string) (*Note, error) {
	path = CanonicalPath(path)
	return s.scanNote(s.db.QueryRow(
		noteSelect+` WHERE corpus_id = ? AND path = ?`, corpusID, path), path)
}

// GetNoteByID returns the note with the given id.
func (s *Store) GetNoteByID(id int64) (*Note, error) {
	return s.scanNote(s.db.QueryRow(noteSelect+` WHERE id = ?`, id), id)
}

const noteSelect = `SELECT id, corpus_id, path, content, content_hash, size, mtime, created_at, updated_at FROM notes`

func (s *Store) scanNote(row *sql.Row, ref any) (*Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.CorpusID, &n.Path, &n.Content, &n.ContentHash,
		&n.Size, &n.Mtime, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NoteNotFound(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to load note: %w", err)
	}
	return &n, nil
}

// ListNotes returns the (id, path) refs of every note in a corpus,
// ordered by path.
func (s *Store) ListNotes(corpusID int64) ([]NoteRef, error) {
	if _, err := s.GetCorpusByID(corpusID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, path FROM notes WHERE corpus_id = ? ORDER BY path`, corpusID)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list notes: %w", err)
	}
	defer rows.Close()

	refs := []NoteRef{}
	for rows.Next() {
		var r NoteRef
		if err := rows.Scan(&r.ID, &r.Path); err != nil {
			return nil, fmt.Errorf("store: failed to scan note ref: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// ListByPath pages through notes in the given corpora whose path matches
// the glob, using keyset pagination over the canonical path. The returned
// cursor is non-empty only when exactly limit rows came back.
func (s *Store) ListByPath(corpusIDs []int64, glob, cursor string, limit int) ([]Note, string, error) {
	if glob == "" {
		glob = "*"
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		noteSelect+` WHERE corpus_id IN (SELECT value FROM json_each(?))
			AND path GLOB ? AND path > ?
			ORDER BY path LIMIT ?`,
		idsJSON(corpusIDs), glob, cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("store: failed to page notes: %w", err)
	}
	defer rows.Close()

	notes := []Note{}
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.CorpusID, &n.Path, &n.Content, &n.ContentHash,
			&n.Size, &n.Mtime, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, "", fmt.Errorf("store: failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	next := ""
	if len(notes) == limit {
		next = notes[len(notes)-1].Path
	}
	return notes, next, nil
}

// AddNote inserts a new note. Within a corpus, content identical to an
// existing note's is rejected unless dupe is set; a (corpus, path)
// collision always fails with note.already_exists.
func (s *Store) AddNote(corpusID int64, path, content string, mtime int64, dupe bool) (*Note, error) {
	if _, err := s.GetCorpusByID(corpusID); err != nil {
		return nil, err
	}
	path = CanonicalPath(path)
	hash := HashContent(content)
	if mtime == 0 {
		mtime = nowMillis()
	}

	if !dupe {
		dup, err := s.hasContent(corpusID, hash, 0)
		if err != nil {
			return nil, err
		}
		if dup {
			return nil, errors.DuplicateContent(path)
		}
	}

	now := nowMillis()
	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO notes (corpus_id, path, content, content_hash, size, mtime, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			corpusID, path, content, hash, len(content), mtime, now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return errors.NoteExists(path)
			}
			return fmt.Errorf("store: failed to insert note: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: failed to read note id: %w", err)
		}
		return upsertFTS(tx, id, content)
	})
	if err != nil {
		return nil, err
	}

	note, err := s.GetNoteByID(id)
	if err != nil {
		return nil, err
	}
	s.publish(bus.NoteCreated(note))
	return note, nil
}

// UpdateNote replaces a note's content. Duplicate-content policy applies
// against every other note in the same corpus unless dupe is set.
func (s *Store) UpdateNote(id int64, content string, mtime int64, dupe bool) (*Note, error) {
	existing, err := s.GetNoteByID(id)
	if err != nil {
		return nil, err
	}
	hash := HashContent(content)
	if mtime == 0 {
		mtime = nowMillis()
	}

	if !dupe {
		dup, err := s.hasContent(existing.CorpusID, hash, id)
		if err != nil {
			return nil, err
		}
		if dup {
			return nil, errors.DuplicateContent(existing.Path)
		}
	}

	err = s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`UPDATE notes SET content = ?, content_hash = ?, size = ?, mtime = ?, updated_at = ? WHERE id = ?`,
			content, hash, len(content), mtime, nowMillis(), id); err != nil {
			return fmt.Errorf("store: failed to update note %d: %w", id, err)
		}
		return upsertFTS(tx, id, content)
	})
	if err != nil {
		return nil, err
	}

	note, err := s.GetNoteByID(id)
	if err != nil {
		return nil, err
	}
	s.publish(bus.NoteUpdated(note))
	return note, nil
}

// UpsertNote adds the note at (corpus, path) or updates it in place.
func (s *Store) UpsertNote(corpusID int64, path, content string, mtime int64, dupe bool) (*Note, error) {
	existing, err := s.GetNote(corpusID, path)
	if err == nil {
		return s.UpdateNote(existing.ID, content, mtime, dupe)
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}
	return s.AddNote(corpusID, path, content, mtime, dupe)
}

// DeleteNote removes a note with its chunk rows, vectors and FTS row.
func (s *Store) DeleteNote(id int64) error {
	if _, err := s.GetNoteByID(id); err != nil {
		return err
	}

	return s.withTx(func(tx *sql.Tx) error {
		steps := []string{
			`DELETE FROM vectors WHERE id IN (SELECT id FROM embeddings WHERE note_id = ?)`,
			`DELETE FROM embeddings WHERE note_id = ?`,
			`DELETE FROM notes_fts WHERE rowid = ?`,
			`DELETE FROM notes WHERE id = ?`,
		}
		for _, q := range steps {
			if _, err := tx.Exec(q, id); err != nil {
				return fmt.Errorf("store: failed to delete note %d: %w", id, err)
			}
		}
		return nil
	})
}

// hasContent reports whether another note in the corpus carries this
// content hash. excludeID skips the note being updated.
func (s *Store) hasContent(corpusID int64, hash string, excludeID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notes WHERE corpus_id = ? AND content_hash = ? AND id != ?`,
		corpusID, hash, excludeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: failed to check content hash: %w", err)
	}
	return n > 0, nil
}

func isUniqueViolation(err error) bool {
	if se, ok := err.(sqlite3.Error); ok {
		return se.Code == sqlite3.ErrConstraint
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
