// Package cmd provides the CLI commands for spall.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spall-labs/spall/internal/config"
	"github.com/spall-labs/spall/pkg/version"
)

var (
	flagDebug   bool
	flagOffline bool
	flagDataDir string
)

// NewRootCmd creates the root command for the spall CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spall",
		Short: "Local semantic note store",
		Long: `spall stores plain-text notes in corpora and serves keyword and
semantic search over them. A background daemon owns the store and the
embedding model; CLI commands talk to it over localhost, starting it on
demand and letting it exit when idle.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Flags are exported as SPALL_* so the config loader and any
			// daemon this process spawns see the same overrides.
			if flagDataDir != "" {
				if err := os.Setenv("SPALL_DATA_DIR", flagDataDir); err != nil {
					return err
				}
			}
			if flagOffline {
				if err := os.Setenv("SPALL_EMBED_OFFLINE", "1"); err != nil {
					return err
				}
			}
			if flagDebug {
				if err := os.Setenv("SPALL_LOG_LEVEL", "debug"); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.SetVersionTemplate("spall version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "Use deterministic hash embeddings (skip model download)")
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Override the data directory (default ~/.spall)")

	cmd.AddCommand(
		newServeCmd(),
		newStatusCmd(),
		newShutdownCmd(),
		newSyncCmd(),
		newAddCmd(),
		newNoteCmd(),
		newCorpusCmd(),
		newWorkspaceCmd(),
		newQueryCmd(),
		newSearchCmd(),
		newVSearchCmd(),
		newNotesCmd(),
		newFetchCmd(),
		newPathsCmd(),
		newCommitCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "spall: %v\n", err)
		return err
	}
	return nil
}

// loadConfig resolves the effective configuration from the working
// directory.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}
	return config.Load(cwd)
}
