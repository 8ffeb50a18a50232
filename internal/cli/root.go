// Package cli implements the vacancy-sync command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ned0ra/diplom/internal/config"
	"github.com/ned0ra/diplom/internal/logger"
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "vacancy-sync",
	Short: "Ingest trudvsem vacancies into region, company and vacancy tables",
	Long: `vacancy-sync fetches vacancies from the trudvsem open data API, flattens
and cleans them, and synchronises them into three relational tables.
Configuration is read from the environment and an optional CONFIG_PATH file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Tests replace these.
var (
	loadConfig = config.Load
	newLogger  = logger.New
)

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// withApp loads configuration, wires the App and runs fn with it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := newLogger(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
