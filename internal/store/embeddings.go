package store

import (
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// SaveEmbeddings atomically replaces every chunk row and vector for one
// note. Chunk seq is the slice index.
func (s *Store) SaveEmbeddings(noteID int64, chunks []ChunkEmbedding) error {
	rows := make([]EmbeddingRow, len(chunks))
	for i, c := range chunks {
		rows[i] = EmbeddingRow{NoteID: noteID, Seq: i, Pos: c.Pos, Vector: c.Vector}
	}
	return s.SaveEmbeddingBatch(rows, []int64{noteID})
}

// SaveEmbeddingBatch inserts chunk rows and their vectors in a single
// transaction, first clearing any residual rows for the notes listed in
// clearNotes. Batches that continue a note started in an earlier batch
// must not list that note again.
func (s *Store) SaveEmbeddingBatch(rows []EmbeddingRow, clearNotes []int64) error {
	for _, r := range rows {
		if len(r.Vector) != s.dims {
			return fmt.Errorf("store: vector for note %d has %d dimensions, want %d",
				r.NoteID, len(r.Vector), s.dims)
		}
	}

	return s.withTx(func(tx *sql.Tx) error {
		for _, noteID := range clearNotes {
			if err := clearEmbeddings(tx, noteID); err != nil {
				return err
			}
		}

		insChunk, err := tx.Prepare(`INSERT INTO embeddings (note_id, seq, pos) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: failed to prepare chunk insert: %w", err)
		}
		defer insChunk.Close()

		insVec, err := tx.Prepare(`INSERT INTO vectors (id, embedding) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("store: failed to prepare vector insert: %w", err)
		}
		defer insVec.Close()

		for _, r := range rows {
			res, err := insChunk.Exec(r.NoteID, r.Seq, r.Pos)
			if err != nil {
				return fmt.Errorf("store: failed to insert chunk row: %w", err)
			}
			chunkID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("store: failed to read chunk id: %w", err)
			}

			blob, err := sqlite_vec.SerializeFloat32(r.Vector)
			if err != nil {
				return fmt.Errorf("store: failed to serialize vector: %w", err)
			}
			if _, err := insVec.Exec(chunkID, blob); err != nil {
				return fmt.Errorf("store: failed to insert vector %d: %w", chunkID, err)
			}
		}
		return nil
	})
}

// ClearEmbeddings removes all chunk rows and vectors for a note.
func (s *Store) ClearEmbeddings(noteID int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		return clearEmbeddings(tx, noteID)
	})
}

func clearEmbeddings(tx *sql.Tx, noteID int64) error {
	if _, err := tx.Exec(
		`DELETE FROM vectors WHERE id IN (SELECT id FROM embeddings WHERE note_id = ?)`, noteID); err != nil {
		return fmt.Errorf("store: failed to clear vectors for note %d: %w", noteID, err)
	}
	if _, err := tx.Exec(`DELETE FROM embeddings WHERE note_id = ?`, noteID); err != nil {
		return fmt.Errorf("store: failed to clear chunks for note %d: %w", noteID, err)
	}
	return nil
}

// CountEmbeddings returns the number of chunk rows for a note.
func (s *Store) CountEmbeddings(noteID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM embeddings WHERE note_id = ?`, noteID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: failed to count chunks: %w", err)
	}
	return n, nil
}

// CountVectors returns the number of vector rows for a note.
func (s *Store) CountVectors(noteID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM vectors WHERE id IN (SELECT id FROM embeddings WHERE note_id = ?)`,
		noteID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: failed to count vectors: %w", err)
	}
	return n, nil
}

// UnembeddedNotes returns the ids of notes in a corpus with no chunk rows.
func (s *Store) UnembeddedNotes(corpusID int64) ([]int64, error) {
	rows, err := s.db.Query(`
		SELECT id FROM notes
		WHERE corpus_id = ? AND id NOT IN (SELECT DISTINCT note_id FROM embeddings)
		ORDER BY id`, corpusID)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list unembedded notes: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// VectorSearch returns the k nearest chunks to the query vector by cosine
// distance, joined through embeddings to notes. No corpus or path filter
// is applied here; callers post-filter.
func (s *Store) VectorSearch(query []float32, k int) ([]VectorHit, error) {
	if len(query) != s.dims {
		return nil, fmt.Errorf("store: query vector has %d dimensions, want %d", len(query), s.dims)
	}
	if k <= 0 {
		return []VectorHit{}, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("store: failed to serialize query vector: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT v.id, e.note_id, n.corpus_id, n.path, n.content, e.pos, v.distance
		FROM (
			SELECT id, distance FROM vectors
			WHERE embedding MATCH ? AND k = ?
			ORDER BY distance
		) v
		JOIN embeddings e ON e.id = v.id
		JOIN notes n ON n.id = e.note_id
		ORDER BY v.distance`,
		blob, k)
	if err != nil {
		return nil, fmt.Errorf("store: vector search failed: %w", err)
	}
	defer rows.Close()

	hits := []VectorHit{}
	for rows.Next() {
		var h VectorHit
		if err := rows.Scan(&h.EmbeddingID, &h.NoteID, &h.CorpusID, &h.Path,
			&h.Content, &h.ChunkPos, &h.Distance); err != nil {
			return nil, fmt.Errorf("store: failed to scan vector hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
