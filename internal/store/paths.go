package store

import (
	"encoding/json"
	"fmt"
)

// CorpusPaths is one corpus's slice of the grouped path listing.
type CorpusPaths struct {
	Corpus string   `json:"corpus"`
	Paths  []string `json:"paths"`
}

// PathsByCorpus lists every note path matching the glob in the given
// corpora, grouped by corpus, as a single grouped-aggregate query.
func (s *Store) PathsByCorpus(corpusIDs []int64, glob string) ([]CorpusPaths, error) {
	if glob == "" {
		glob = "*"
	}

	rows, err := s.db.Query(`
		SELECT c.name, json_group_array(n.path)
		FROM (
			SELECT corpus_id, path FROM notes
			WHERE corpus_id IN (SELECT value FROM json_each(?)) AND path GLOB ?
			ORDER BY corpus_id, path
		) n
		JOIN corpora c ON c.id = n.corpus_id
		GROUP BY c.id
		ORDER BY c.id`,
		idsJSON(corpusIDs), glob)
	if err != nil {
		return nil, fmt.Errorf("store: failed to group paths: %w", err)
	}
	defer rows.Close()

	out := []CorpusPaths{}
	for rows.Next() {
		var (
			cp  CorpusPaths
			arr string
		)
		if err := rows.Scan(&cp.Corpus, &arr); err != nil {
			return nil, fmt.Errorf("store: failed to scan grouped paths: %w", err)
		}
		if err := json.Unmarshal([]byte(arr), &cp.Paths); err != nil {
			return nil, fmt.Errorf("store: corrupt grouped path array: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}
