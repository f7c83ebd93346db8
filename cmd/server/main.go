package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"familybudget/internal/config"
	"familybudget/internal/database"
	"familybudget/pkg/logger"
)

var (
	envFile string
	version = "dev"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "familybudget",
		Short:         "Family budget API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file loaded before the environment")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads and validates configuration and builds the logger
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logger.New(cfg.LogLevel), nil
}

// openDatabase connects using the configured dialect
func openDatabase(cfg *config.Config, log *logrus.Logger) (*database.DB, error) {
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.WithField("type", db.Dialect.Name()).Info("Database connection established")
	return db, nil
}
