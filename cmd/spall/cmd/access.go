package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spall-labs/spall/internal/store"
)

func newNotesCmd() *cobra.Command {
	var queryID int64
	var pathGlob string
	var after string
	var limit int

	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Page through the query's notes by path",
		Args:  cobra.NoArgs,
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
			params.Set("path", pathGlob)
			params.Set("after", after)
			params.Set("limit", fmt.Sprint(limit))

			var page struct {
				Notes      []store.Note `json:"notes"`
				NextCursor *string      `json:"nextCursor"`
			}
			if err := c.get(fmt.Sprintf("/query/%d/notes?%s", id, params.Encode()), &page); err != nil {
				return err
			}
			return printJSON(page)
		},
	}

	cmd.Flags().Int64VarP(&queryID, "query", "q", 0, "Existing query id (default: fresh untracked query)")
	cmd.Flags().StringVar(&pathGlob, "path", "", "Only include paths matching this pattern (* and ?)")
	cmd.Flags().StringVar(&after, "after", "", "Resume after this path cursor")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Page size (default 50)")
	return cmd
}

func newFetchCmd() *cobra.Command {
	var queryID int64

	cmd := &cobra.Command{
		Use:   "fetch <note-id>...",
		Short: "Fetch notes through a query, recording access",
		Long: `Fetch full note contents through a query handle. On a tracked
query each fetched note is staged in the access log; spall commit
promotes staged records.

Without --query a fresh tracked query is created for the fetch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid note id %q", arg)
				}
				ids = append(ids, id)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := connect(cfg)
			if err != nil {
				return err
			}
			qid, err := resolveQueryID(c, cfg, queryID, true)
			if err != nil {
				return err
			}

			var page struct {
				Notes []store.Note `json:"notes"`
			}
			if err := c.post(fmt.Sprintf("/query/%d/fetch", qid), map[string]any{"ids": ids}, &page); err != nil {
				return err
			}
			return printJSON(page.Notes)
		},
	}

	cmd.Flags().Int64VarP(&queryID, "query", "q", 0, "Existing query id (default: fresh tracked query)")
	return cmd
}

func newPathsCmd() *cobra.Command {
	var queryID int64
	var pathGlob string

	cmd := &cobra.Command{
		Use:   "paths",
		Short: "List note paths grouped by corpus",
		Args:  cobra.NoArgs,
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
			params.Set("path", pathGlob)

			var page struct {
				Paths []store.CorpusPaths `json:"paths"`
			}
			if err := c.get(fmt.Sprintf("/query/%d/paths?%s", id, params.Encode()), &page); err != nil {
				return err
			}
			return printJSON(page.Paths)
		},
	}

	cmd.Flags().Int64VarP(&queryID, "query", "q", 0, "Existing query id (default: fresh untracked query)")
	cmd.Flags().StringVar(&pathGlob, "path", "", "Only include paths matching this pattern (* and ?)")
	return cmd
}

func newCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Promote staged access records",
		Long: `Move every staged access-log record to the committed log with a
single commit timestamp.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := connect(cfg)
			if err != nil {
				return err
			}
			var result struct {
				Moved       int64 `json:"moved"`
				CommittedAt int64 `json:"committedAt"`
			}
			if err := c.post("/commit/", nil, &result); err != nil {
				return err
			}
			c.render.Successf("committed %d access records", result.Moved)
			return nil
		},
	}
}
