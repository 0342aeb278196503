package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spall-labs/spall/internal/config"
	"github.com/spall-labs/spall/internal/watcher"
)

func newSyncCmd() *cobra.Command {
	var corpusName string
	var glob string
	var prefix string
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync [dir]",
		Short: "Mirror a directory of text files into a corpus",
		Long: `Walk a directory, ingest new and changed files as notes, remove
notes whose files are gone, and embed everything that needs it.

With --watch, stay running and re-sync whenever files change.

Examples:
  spall sync
  spall sync ./docs --glob '*.md'
  spall sync ./docs --corpus handbook --prefix docs --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", dir, err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := connect(cfg)
			if err != nil {
				return err
			}

			corpus, err := c.ensureCorpus(resolveWriteCorpus(corpusName, cfg))
			if err != nil {
				return err
			}

			runSync := func() error {
				return c.stream("POST", "/sse/corpus/sync", map[string]any{
					"corpus": corpus.ID,
					"dir":    absDir,
					"glob":   glob,
					"prefix": prefix,
				})
			}

			if err := runSync(); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return watchAndResync(cmd, absDir, runSync)
		},
	}

	cmd.Flags().StringVarP(&corpusName, "corpus", "c", "", "Target corpus (default from workspace, else \"default\")")
	cmd.Flags().StringVarP(&glob, "glob", "g", "", "Only sync files matching this pattern (* and ?)")
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Prepend this prefix to stored note paths")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Stay running and re-sync on file changes")
	return cmd
}

// watchAndResync re-runs sync on every debounced batch of file changes
// until interrupted.
func watchAndResync(cmd *cobra.Command, dir string, runSync func() error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New(watcher.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	go func() {
		_ = w.Start(ctx, dir)
	}()

	fmt.Fprintf(os.Stderr, "watching %s\n", dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Batches():
			if !ok {
				return nil
			}
			if len(batch) == 0 {
				continue
			}
			if err := runSync(); err != nil {
				fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
			}
		case err, ok := <-w.Errors():
			if ok && err != nil {
				fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
			}
		}
	}
}

// resolveWriteCorpus picks the corpus writes go to: explicit flag, then
// the workspace's write corpus, then "default".
func resolveWriteCorpus(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	if cfg.Workspace != nil && cfg.Workspace.WriteCorpus != "" {
		return cfg.Workspace.WriteCorpus
	}
	return "default"
}
