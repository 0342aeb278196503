package cmd

import (
	"github.com/spf13/cobra"

	"github.com/spall-labs/spall/internal/daemon"
	"github.com/spall-labs/spall/internal/logging"
)

func newServeCmd() *cobra.Command {
	var persist bool
	var force bool
	var idleTimeoutMS int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the spall daemon in the foreground",
		Long: `Run the daemon that owns the note store and embedding model.

Normally the daemon is spawned on demand by other commands and exits
after the idle timeout; run serve directly for a long-lived instance
(combine with --persist) or when debugging.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if persist {
				cfg.Server.Persist = true
			}
			if force {
				cfg.Server.Force = true
			}
			if idleTimeoutMS > 0 {
				cfg.Server.IdleTimeoutMS = idleTimeoutMS
			}

			logCfg := logging.DefaultConfig(cfg.DataDir)
			logCfg.Level = cfg.Server.LogLevel
			// Detached daemons have no terminal; the log file is the record.
			logCfg.WriteToStderr = false
			logger, cleanup, err := logging.Setup(logCfg)
			if err != nil {
				return err
			}
			defer cleanup()

			return daemon.NewServer(cfg, logger).Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&persist, "persist", false, "Disable idle shutdown")
	cmd.Flags().BoolVar(&force, "force", false, "Take over a stale or contested lock")
	cmd.Flags().IntVar(&idleTimeoutMS, "idle-timeout", 0, "Idle shutdown timeout in milliseconds")
	return cmd
}
