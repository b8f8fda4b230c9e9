package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hms-dbmi/sciauthz/internal/logger"
	"github.com/hms-dbmi/sciauthz/pkg/authz/store"
	"github.com/hms-dbmi/sciauthz/pkg/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations for the permission store.

This command applies pending database migrations to the configured database
(SQLite or PostgreSQL). It is required after upgrading SciAuthZ when schema
changes have been made.

Examples:
  # Run migrations with default config
  sciauthz migrate

  # Run migrations with custom config
  sciauthz migrate --config /etc/sciauthz/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("Running database migrations", "type", cfg.Database.Type)

	// Create the store (this triggers auto-migration)
	ctx := context.Background()
	s, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = s.Close() }()

	// Verify the migration worked by checking if we can query users
	if _, err := s.ListUsers(ctx); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Printf("Migrations completed successfully (database type: %s)\n", cfg.Database.Type)
	return nil
}
