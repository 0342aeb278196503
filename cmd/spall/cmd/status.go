package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spall-labs/spall/internal/daemon"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			info, err := daemon.NewLockFile(cfg.LockPath()).Read()
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("daemon: not running")
					return nil
				}
				return err
			}

			switch {
			case info.Port == nil:
				fmt.Printf("daemon: starting (pid %d)\n", info.PID)
			case daemon.HealthOK(*info.Port):
				fmt.Printf("daemon: running (pid %d, port %d)\n", info.PID, *info.Port)
			default:
				fmt.Printf("daemon: stale lock (pid %d, port %d not responding)\n", info.PID, *info.Port)
			}
			return nil
		},
	}
}
