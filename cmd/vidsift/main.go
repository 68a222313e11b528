package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vidsift/vidsift/internal/config"
	"github.com/vidsift/vidsift/internal/logger"
	"github.com/vidsift/vidsift/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:           "vidsift",
		Short:         "Watch a chat channel for video links and queue them for processing",
		Version:       version.GetInfo(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newPurgeCmd())
	root.AddCommand(newStatusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig loads the config for the one-shot commands and initializes
// logging from it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
