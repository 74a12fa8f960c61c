package main

import (
	"fmt"
	"os"

	"guildkeeper/internal/config"
	"guildkeeper/internal/modules/audit"
	"guildkeeper/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfgFile string

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "guildkeeper",
		Short:         "Guild automation bot and its settings dashboard",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cfgFile != "" {
				_ = os.Setenv("CONFIG_PATH", cfgFile)
			}
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default: config.yaml or $CONFIG_PATH)")

	cmd.AddCommand(botCmd())
	cmd.AddCommand(dashboardCmd())
	cmd.AddCommand(runCmd())
	cmd.AddCommand(validateCmd())
	return cmd
}

type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  *storage.Store
	audit  *audit.Logger
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		audit:  audit.NewLogger(store, logger.Named("audit")),
	}, nil
}

func (a *app) Close() {
	a.store.Close()
	_ = a.logger.Sync()
}
