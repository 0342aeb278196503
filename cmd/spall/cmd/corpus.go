package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/spall-labs/spall/internal/store"
)

func newCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Manage corpora",
	}
	cmd.AddCommand(
		newCorpusCreateCmd(),
		newCorpusListCmd(),
		newCorpusRemoveCmd(),
		newCorpusNotesCmd(),
	)
	return cmd
}

func newCorpusCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a corpus (no-op when it exists)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := connect(cfg)
			if err != nil {
				return err
			}
			corpus, err := c.ensureCorpus(args[0])
			if err != nil {
				return err
			}
			return printJSON(corpus)
		},
	}
}

func newCorpusListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List corpora",
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
			var corpora []store.Corpus
			if err := c.get("/corpus/list", &corpora); err != nil {
				return err
			}
			return printJSON(corpora)
		},
	}
}

func newCorpusRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a corpus and all its notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := connect(cfg)
			if err != nil {
				return err
			}
			var corpus store.Corpus
			if err := c.get("/corpus/?name="+url.QueryEscape(args[0]), &corpus); err != nil {
				return err
			}
			if err := c.del(fmt.Sprintf("/corpus/%d", corpus.ID)); err != nil {
				return err
			}
			c.render.Successf("removed corpus %s", corpus.Name)
			return nil
		},
	}
}

func newCorpusNotesCmd() *cobra.Command {
	var pathGlob string
	var after string
	var limit int

	cmd := &cobra.Command{
		Use:   "notes <name>",
		Short: "Page through a corpus's notes by path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := connect(cfg)
			if err != nil {
				return err
			}
			var corpus store.Corpus
			if err := c.get("/corpus/?name="+url.QueryEscape(args[0]), &corpus); err != nil {
				return err
			}
			var page struct {
				Notes      []store.Note `json:"notes"`
				NextCursor *string      `json:"nextCursor"`
			}
			params := url.Values{}
			params.Set("path", pathGlob)
			params.Set("after", after)
			params.Set("limit", fmt.Sprint(limit))
			if err := c.get(fmt.Sprintf("/corpus/%d/notes?%s", corpus.ID, params.Encode()), &page); err != nil {
				return err
			}
			return printJSON(page)
		},
	}

	cmd.Flags().StringVar(&pathGlob, "path", "", "Only include paths matching this pattern (* and ?)")
	cmd.Flags().StringVar(&after, "after", "", "Resume after this path cursor")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Page size (default 50)")
	return cmd
}
