package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tapdin/planner/internal/config"
	"github.com/tapdin/planner/pkg/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tapdin",
		Short: "Turn event flyers and pages into saved plans",
		Long: `tapdin extracts event details from an uploaded image or a web page,
normalizes them with a chat model and stores them as plans.

Configuration comes from defaults, an optional YAML file named by
TAPDIN_CONFIG, and TAPDIN_* environment variables.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newExtractCmd())
	root.AddCommand(newPlansCmd())
	return root
}

// setup loads configuration and initializes logging to w.
func setup(ctx context.Context, w io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(w)); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}
