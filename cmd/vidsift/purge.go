package main

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vidsift/vidsift/internal/logger"
	"github.com/vidsift/vidsift/internal/queue"
)

func newPurgeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Drop all pending messages from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if !yes {
				cmd.Printf("Purge all messages from queue %q? [y/N]: ", cfg.Queue.Name)
				reader := bufio.NewReader(cmd.InOrStdin())
				answer, _ := reader.ReadString('\n')
				if !strings.EqualFold(strings.TrimSpace(answer), "y") {
					cmd.Println("aborted")
					return nil
				}
			}

			q := queue.NewClient(logger.L, cfg.Queue.URL, cfg.Queue.Name,
				cfg.Queue.ConnectAttempts, cfg.Queue.RetryDelay())
			defer q.Close()

			removed, err := q.Purge(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("purged %d messages from %q\n", removed, cfg.Queue.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}
