package main

import (
	"github.com/spf13/cobra"

	"github.com/vidsift/vidsift/internal/logger"
	"github.com/vidsift/vidsift/internal/queue"
	"github.com/vidsift/vidsift/internal/report"
	"github.com/vidsift/vidsift/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the status report for the configured store and queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st := store.NewClient(logger.L, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection,
				cfg.Mongo.ConnectAttempts, cfg.Mongo.RetryDelay())
			defer st.Close(cmd.Context())
			q := queue.NewClient(logger.L, cfg.Queue.URL, cfg.Queue.Name,
				cfg.Queue.ConnectAttempts, cfg.Queue.RetryDelay())
			defer q.Close()

			cmd.Println(report.NewBuilder(logger.L, st, q, nil).Report(cmd.Context()))
			return nil
		},
	}
}
