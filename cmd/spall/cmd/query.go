package cmd

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spall-labs/spall/internal/config"
	"github.com/spall-labs/spall/internal/store"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Manage query handles",
		Long: `A query is a handle scoping reads to a set of corpora on behalf of
a workspace. Tracked queries record which notes were fetched through
them; spall commit moves those records into the committed access log.`,
	}
	cmd.AddCommand(newQueryNewCmd(), newQueryRecentCmd(), newQueryShowCmd())
	return cmd
}

func newQueryNewCmd() *cobra.Command {
	var corpora []string
	var tracked bool

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a query handle",
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
			q, err := createQuery(c, cfg, corpora, tracked)
			if err != nil {
				return err
			}
			return printJSON(q)
		},
	}

	cmd.Flags().StringSliceVar(&corpora, "corpora", nil, "Corpora to read from (default: workspace scope)")
	cmd.Flags().BoolVar(&tracked, "tracked", false, "Record fetched notes in the access log")
	return cmd
}

func newQueryRecentCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recent queries",
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
			var page struct {
				Queries []store.Query `json:"queries"`
			}
			if err := c.get("/query/recent?limit="+strconv.Itoa(limit), &page); err != nil {
				return err
			}
			return printJSON(page.Queries)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of queries")
	return cmd
}

func newQueryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a query by id",
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
			var q store.Query
			if err := c.get("/query/"+args[0], &q); err != nil {
				return err
			}
			return printJSON(q)
		},
	}
}

// createQuery builds a query from the workspace scope, overridable by an
// explicit corpora list.
func createQuery(c *client, cfg *config.Config, corpora []string, tracked bool) (*store.Query, error) {
	wsName := "default"
	if cfg.Workspace != nil && cfg.Workspace.Name != "" {
		wsName = cfg.Workspace.Name
	}
	ws, err := c.ensureWorkspace(wsName)
	if err != nil {
		return nil, err
	}

	names := corpora
	if len(names) == 0 && cfg.Workspace != nil {
		names = cfg.Workspace.ReadCorpora
	}
	if len(names) == 0 {
		names = []string{"default"}
	}

	ids := make([]int64, 0, len(names))
	for _, name := range names {
		var corpus store.Corpus
		if err := c.get("/corpus/?name="+url.QueryEscape(name), &corpus); err != nil {
			return nil, err
		}
		ids = append(ids, corpus.ID)
	}

	var q store.Query
	if err := c.post("/query/", map[string]any{
		"viewer":  ws.ID,
		"tracked": tracked,
		"corpora": ids,
	}, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// resolveQueryID returns the explicit query id when given, otherwise
// creates a fresh query from the workspace scope.
func resolveQueryID(c *client, cfg *config.Config, queryFlag int64, tracked bool) (int64, error) {
	if queryFlag > 0 {
		return queryFlag, nil
	}
	q, err := createQuery(c, cfg, nil, tracked)
	if err != nil {
		return 0, err
	}
	return q.ID, nil
}
