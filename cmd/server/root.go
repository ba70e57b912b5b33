package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/surveyform/internal/config"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "survey-server",
		Short: "Serve dynamic survey forms",
		Long: `survey-server assembles survey forms from stored definitions, paginates them
by category or question, and saves respondents' answers. Authenticated
respondents get their previous answers back when they return.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	return cmd
}

func (o *rootOptions) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	logger := config.NewLogger(cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
