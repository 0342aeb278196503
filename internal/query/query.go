// Package query implements the retrieval facade: a persisted query fixes
// a viewer workspace and a set of corpora, and every listing, search,
// fetch and path aggregation is filtered through that scope.
package query

import (
	"context"
	"strings"
	"time"

	"github.com/spall-labs/spall/internal/errors"
	"github.com/spall-labs/spall/internal/glob"
	"github.com/spall-labs/spall/internal/model"
	"github.com/spall-labs/spall/internal/store"
)

// Search modes.
const (
	ModePlain = "plain"
	ModeFTS   = "fts"
)

// Over-fetch factor for vector search: k = limit × vsearchOverfetch,
// filtered down afterwards. Short results are returned short; never loop.
const vsearchOverfetch = 3

// vsearchChunkLen is the fixed slice of note content returned per hit.
const vsearchChunkLen = 2048

// VSearchResult is one semantic search hit.
type VSearchResult struct {
	NoteID   int64   `json:"noteId"`
	Corpus   int64   `json:"corpus"`
	Path     string  `json:"path"`
	Chunk    string  `json:"chunk"`
	ChunkPos int     `json:"chunkPos"`
	Score    float64 `json:"score"`
}

// Service exposes query-scoped retrieval over the store and the model
// adapter.
type Service struct {
	store  *store.Store
	models *model.Adapter
}

// New creates the service.
func New(st *store.Store, models *model.Adapter) *Service {
	return &Service{store: st, models: models}
}

// Create validates the viewer and corpora and persists the query.
func (s *Service) Create(viewer int64, tracked bool, corpora []int64) (*store.Query, error) {
	return s.store.CreateQuery(viewer, tracked, corpora)
}

// Get returns the query with the given id.
func (s *Service) Get(id int64) (*store.Query, error) {
	return s.store.GetQuery(id)
}

// Recent returns the most recently created queries.
func (s *Service) Recent(limit int) ([]store.Query, error) {
	return s.store.RecentQueries(limit)
}

// Notes pages through the query's corpora by canonical path.
func (s *Service) Notes(id int64, path, cursor string, limit int) ([]store.Note, string, error) {
	q, err := s.store.GetQuery(id)
	if err != nil {
		return nil, "", err
	}
	return s.store.ListByPath(q.Corpora, path, cursor, limit)
}

// Search runs keyword search over the query's corpora. Plain mode (the
// default) tokenizes q into AND-ed quoted terms; fts mode passes the
// trimmed input through as an FTS5 expression. An empty match expression
// yields an empty result.
func (s *Service) Search(id int64, q, path string, limit int, mode string) ([]store.FTSResult, error) {
	query, err := s.store.GetQuery(id)
	if err != nil {
		return nil, err
	}

	var match string
	switch mode {
	case ModeFTS:
		match = strings.TrimSpace(q)
	case ModePlain, "":
		match = plainMatch(q)
	default:
		match = plainMatch(q)
	}
	if match == "" {
		return []store.FTSResult{}, nil
	}

	return s.store.FTSSearch(match, query.Corpora, path, limit, "", "")
}

// VSearch runs semantic search: embed the query text, over-fetch from the
// vector index, then post-filter by the query's corpora and the path
// glob. Score is 1 − cosine distance.
func (s *Service) VSearch(ctx context.Context, id int64, q, path string, limit int) ([]VSearchResult, error) {
	query, err := s.store.GetQuery(id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	vec, err := s.models.EmbedQuery(ctx, q)
	if err != nil {
		return nil, err
	}

	hits, err := s.store.VectorSearch(vec, limit*vsearchOverfetch)
	if err != nil {
		return nil, err
	}

	inScope := make(map[int64]bool, len(query.Corpora))
	for _, cid := range query.Corpora {
		inScope[cid] = true
	}

	results := []VSearchResult{}
	for _, h := range hits {
		if !inScope[h.CorpusID] {
			continue
		}
		ok, err := glob.Match(path, h.Path)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		end := h.ChunkPos + vsearchChunkLen
		if end > len(h.Content) {
			end = len(h.Content)
		}
		start := h.ChunkPos
		if start > len(h.Content) {
			start = len(h.Content)
		}

		results = append(results, VSearchResult{
			NoteID:   h.NoteID,
			Corpus:   h.CorpusID,
			Path:     h.Path,
			Chunk:    h.Content[start:end],
			ChunkPos: h.ChunkPos,
			Score:    1 - h.Distance,
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// Fetch returns full notes for the given ids. For tracked queries, each
// fetched note appends one "note read" staging row.
func (s *Service) Fetch(id int64, ids []int64) ([]store.Note, error) {
	query, err := s.store.GetQuery(id)
	if err != nil {
		return nil, err
	}

	notes := []store.Note{}
	for _, nid := range ids {
		note, err := s.store.GetNoteByID(nid)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		notes = append(notes, *note)
		if query.Tracked {
			if err := s.store.AppendStaging(note.ID, query.ID, store.AccessKindNoteRead, "{}"); err != nil {
				return nil, err
			}
		}
	}
	return notes, nil
}

// Paths lists all note paths in scope grouped by corpus.
func (s *Service) Paths(id int64, path string) ([]store.CorpusPaths, error) {
	query, err := s.store.GetQuery(id)
	if err != nil {
		return nil, err
	}
	return s.store.PathsByCorpus(query.Corpora, path)
}

// Commit moves every staged access row to the committed tier.
func (s *Service) Commit() (int64, int64, error) {
	committedAt := time.Now().UnixMilli()
	moved, err := s.store.CommitAll(committedAt)
	if err != nil {
		return 0, 0, err
	}
	return moved, committedAt, nil
}

// plainMatch tokenizes free text into an FTS5 expression: split on
// whitespace, split each run on non-alphanumeric-underscore characters,
// drop empties, quote each token (doubling embedded quotes), join with
// " AND ".
func plainMatch(q string) string {
	var tokens []string
	for _, field := range strings.Fields(q) {
		for _, tok := range splitNonWord(field) {
			if tok == "" {
				continue
			}
			tokens = append(tokens, `"`+strings.ReplaceAll(tok, `"`, `""`)+`"`)
		}
	}
	return strings.Join(tokens, " AND ")
}

func splitNonWord(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return false
		}
		return true
	})
}
