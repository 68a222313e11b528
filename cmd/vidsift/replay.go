package main

import (
	"github.com/spf13/cobra"

	"github.com/vidsift/vidsift/internal/logger"
	"github.com/vidsift/vidsift/internal/queue"
	"github.com/vidsift/vidsift/internal/replay"
	"github.com/vidsift/vidsift/internal/store"
)

func newReplayCmd() *cobra.Command {
	var all bool
	var limit int64

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Republish recorded suggestions to the queue",
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

			summary, err := replay.NewService(logger.L, st, q).Run(cmd.Context(), all, limit)
			if err != nil {
				return err
			}
			cmd.Printf("replayed %d of %d suggestions (%d failed)\n",
				summary.Published, summary.Scanned, summary.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "republish every recorded suggestion, not only unpublished ones")
	cmd.Flags().Int64Var(&limit, "limit", 0, "cap the number of suggestions replayed, 0 means no cap")
	return cmd
}
