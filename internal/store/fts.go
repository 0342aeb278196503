package store

import (
	"database/sql"
	"fmt"
	"math"
)

// Default highlight delimiters for FTS snippets.
const (
	DefaultHighlightStart = "«"
	DefaultHighlightEnd   = "»"
)

// upsertFTS keeps the FTS row in lockstep with the notes table. Runs
// inside the caller's transaction.
func upsertFTS(tx *sql.Tx, noteID int64, content string) error {
	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE rowid = ?`, noteID); err != nil {
		return fmt.Errorf("store: failed to clear fts row %d: %w", noteID, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO notes_fts (rowid, content) VALUES (?, ?)`, noteID, content); err != nil {
		return fmt.Errorf("store: failed to insert fts row %d: %w", noteID, err)
	}
	return nil
}

// UpsertFTS replaces the FTS row for a note.
func (s *Store) UpsertFTS(noteID int64, content string) error {
	return s.withTx(func(tx *sql.Tx) error {
		return upsertFTS(tx, noteID, content)
	})
}

// DeleteFTS removes the FTS row for a note.
func (s *Store) DeleteFTS(noteID int64) error {
	_, err := s.db.Exec(`DELETE FROM notes_fts WHERE rowid = ?`, noteID)
	if err != nil {
		return fmt.Errorf("store: failed to delete fts row %d: %w", noteID, err)
	}
	return nil
}

// FTSSearch runs a tokenized FTS5 match expression over the given corpora
// and path glob, returning up to limit notes ranked by a bounded
// BM25-derived score with a snippet of at most 16 tokens. Ties are broken
// by rowid ascending.
func (s *Store) FTSSearch(match string, corpusIDs []int64, glob string, limit int, hlStart, hlEnd string) ([]FTSResult, error) {
	if match == "" {
		return []FTSResult{}, nil
	}
	if glob == "" {
		glob = "*"
	}
	if limit <= 0 {
		limit = 10
	}
	if hlStart == "" && hlEnd == "" {
		hlStart, hlEnd = DefaultHighlightStart, DefaultHighlightEnd
	}

	rows, err := s.db.Query(`
		SELECT n.id, n.corpus_id, n.path,
		       snippet(notes_fts, 0, ?, ?, '…', 16),
		       bm25(notes_fts)
		FROM notes_fts
		JOIN notes n ON n.id = notes_fts.rowid
		WHERE notes_fts MATCH ?
		  AND n.corpus_id IN (SELECT value FROM json_each(?))
		  AND n.path GLOB ?
		ORDER BY bm25(notes_fts) ASC, n.id ASC
		LIMIT ?`,
		hlStart, hlEnd, match, idsJSON(corpusIDs), glob, limit)
	if err != nil {
		return nil, fmt.Errorf("store: fts search failed: %w", err)
	}
	defer rows.Close()

	results := []FTSResult{}
	for rows.Next() {
		var (
			r    FTSResult
			rank float64
		)
		if err := rows.Scan(&r.NoteID, &r.CorpusID, &r.Path, &r.Snippet, &rank); err != nil {
			return nil, fmt.Errorf("store: failed to scan fts result: %w", err)
		}
		r.Score = normalizeBM25(rank)
		results = append(results, r)
	}
	return results, rows.Err()
}

// normalizeBM25 maps FTS5's bm25() rank (negative = better) onto (-1, 1),
// higher = better.
func normalizeBM25(rank float64) float64 {
	return 2*(1/(1+math.Exp(rank*0.3))) - 1
}
