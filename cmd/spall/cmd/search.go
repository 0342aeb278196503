package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spall-labs/spall/internal/store"
)

func newSearchCmd() *cobra.Command {
	var queryID int64
	var mode string
	var pathGlob string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Keyword search over the query's corpora",
		Long: `BM25-ranked full-text search. Plain mode (the default) treats the
input as literal words joined with AND; fts mode passes the input
through as a raw match expression with OR, NOT and phrase syntax.

Without --query, an untracked query scoped to the workspace is created
for this search.

Examples:
  spall search "lock file election"
  spall search --mode fts 'lease OR lock' --limit 5
  spall search "idle timeout" --path 'docs/*'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := connect(cfg)
			if err != nil {
				return err
			}
			id, err := resolveQueryID(c, cfg, queryID, false)
			if err != nil {
				return err
			}

			params := url.Values{}
			params.Set("q", strings.Join(args, " "))
			params.Set("mode", mode)
			params.Set("path", pathGlob)
			params.Set("limit", fmt.Sprint(limit))

			var page struct {
				Results []store.FTSResult `json:"results"`
			}
			if err := c.get(fmt.Sprintf("/query/%d/search?%s", id, params.Encode()), &page); err != nil {
				return err
			}
			return printJSON(page.Results)
		},
	}

	cmd.Flags().Int64VarP(&queryID, "query", "q", 0, "Existing query id (default: fresh untracked query)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "plain", "Match mode: plain or fts")
	cmd.Flags().StringVar(&pathGlob, "path", "", "Only include paths matching this pattern (* and ?)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results")
	return cmd
}

func newVSearchCmd() *cobra.Command {
	var queryID int64
	var pathGlob string
	var limit int

	cmd := &cobra.Command{
		Use:   "vsearch <text>",
		Short: "Semantic search over the query's corpora",
		Long: `Embed the input and rank note chunks by cosine similarity.

Examples:
  spall vsearch "how do we recover from a stale lock"
  spall vsearch "retry strategy" --path 'design/*' --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := connect(cfg)
			if err != nil {
				return err
			}
			id, err := resolveQueryID(c, cfg, queryID, false)
			if err != nil {
				return err
			}

			params := url.Values{}
			params.Set("q", strings.Join(args, " "))
			params.Set("path", pathGlob)
			params.Set("limit", fmt.Sprint(limit))

			var page struct {
				Results []queryVSearchResult `json:"results"`
			}
			if err := c.get(fmt.Sprintf("/query/%d/vsearch?%s", id, params.Encode()), &page); err != nil {
				return err
			}
			return printJSON(page.Results)
		},
	}

	cmd.Flags().Int64VarP(&queryID, "query", "q", 0, "Existing query id (default: fresh untracked query)")
	cmd.Flags().StringVar(&pathGlob, "path", "", "Only include paths matching this pattern (* and ?)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results")
	return cmd
}

// queryVSearchResult mirrors the daemon's vsearch result shape.
type queryVSearchResult struct {
	NoteID   int64   `json:"noteId"`
	Corpus   int64   `json:"corpus"`
	Path     string  `json:"path"`
	Chunk    string  `json:"chunk"`
	ChunkPos int     `json:"chunkPos"`
	Score    float64 `json:"score"`
}
