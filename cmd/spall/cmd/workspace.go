package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spall-labs/spall/internal/config"
	"github.com/spall-labs/spall/internal/store"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage workspaces",
	}
	cmd.AddCommand(
		newWorkspaceInitCmd(),
		newWorkspaceListCmd(),
		newWorkspaceRemoveCmd(),
	)
	return cmd
}

func newWorkspaceInitCmd() *cobra.Command {
	var name string
	var readCorpora []string
	var writeCorpus string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Mark the current directory as a workspace",
		Long: `Create .spall/spall.json in the current directory and register the
workspace with the daemon. Commands run under this directory then scope
reads to the workspace's corpora and writes to its write corpus.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(cwd)
			}
			if writeCorpus == "" {
				writeCorpus = "default"
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := connect(cfg)
			if err != nil {
				return err
			}
			registered, err := c.ensureWorkspace(name)
			if err != nil {
				return err
			}

			ws := &config.Workspace{
				Root:        cwd,
				Name:        name,
				ID:          registered.ID,
				ReadCorpora: readCorpora,
				WriteCorpus: writeCorpus,
			}
			if err := ws.WriteFile(); err != nil {
				return err
			}
			c.render.Successf("initialized workspace %s (id %d)", name, registered.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Workspace name (default: directory name)")
	cmd.Flags().StringSliceVar(&readCorpora, "read", nil, "Corpora queries read from (repeatable)")
	cmd.Flags().StringVar(&writeCorpus, "write", "", "Corpus writes go to (default \"default\")")
	return cmd
}

func newWorkspaceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
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
			var workspaces []store.Workspace
			if err := c.get("/workspace/list", &workspaces); err != nil {
				return err
			}
			return printJSON(workspaces)
		},
	}
}

func newWorkspaceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a workspace and its queries",
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
			if err := c.del("/workspace/" + args[0]); err != nil {
				return err
			}
			c.render.Successf("removed workspace %s", args[0])
			return nil
		},
	}
}
