package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the session store schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Store.Driver != "postgres" {
		return fmt.Errorf("migrate requires store.driver=postgres, got %q", cfg.Store.Driver)
	}

	direction := "up"
	if len(args) == 1 {
		direction = args[0]
	}
	if direction == "up" {
		return migrateUp(cfg.Store.MigrationsPath, cfg.Store.DatabaseURL, logger)
	}

	m, err := newMigrate(cfg.Store.MigrationsPath, cfg.Store.DatabaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	logger.Info("migrations rolled back", zap.String("source", cfg.Store.MigrationsPath))
	return nil
}
