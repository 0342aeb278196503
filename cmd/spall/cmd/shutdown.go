package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spall-labs/spall/internal/daemon"
)

func newShutdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Stop a running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Do not spawn a daemon just to shut it down.
			info, err := daemon.NewLockFile(cfg.LockPath()).Read()
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("daemon: not running")
					return nil
				}
				return err
			}
			if info.Port == nil || !daemon.HealthOK(*info.Port) {
				fmt.Println("daemon: not running")
				return nil
			}

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Post(fmt.Sprintf("http://127.0.0.1:%d/shutdown", *info.Port), "application/json", nil)
			if err != nil {
				return fmt.Errorf("shutdown request failed: %w", err)
			}
			defer resp.Body.Close()
			fmt.Println("daemon: stopping")
			return nil
		},
	}
}
