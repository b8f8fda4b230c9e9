package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hms-dbmi/sciauthz/internal/logger"
	"github.com/hms-dbmi/sciauthz/pkg/authz/api"
	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
	"github.com/hms-dbmi/sciauthz/pkg/authz/policy"
	"github.com/hms-dbmi/sciauthz/pkg/authz/store"
	"github.com/hms-dbmi/sciauthz/pkg/config"
	"github.com/hms-dbmi/sciauthz/pkg/metrics"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the SciAuthZ server",
	Long: `Start the SciAuthZ authorization server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/sciauthz/config.yaml.

Examples:
  # Start with default config location
  sciauthz start

  # Start with custom config file
  sciauthz start --config /etc/sciauthz/config.yaml

  # Start with environment variable overrides
  SCIAUTHZ_LOGGING_LEVEL=DEBUG sciauthz start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	// Initialize the permission store (this runs schema migration)
	s, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() { _ = s.Close() }()
	logger.Info("Store initialized", "type", cfg.Database.Type)

	// Ensure admin user exists (generates random password on first run)
	adminPassword, err := s.EnsureAdminUser(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to ensure admin user: %w", err)
	}
	if adminPassword != "" {
		logger.Info("Admin user created", "username", models.AdminUsername)
		fmt.Printf("\n*** IMPORTANT: Admin user created with password: %s ***\n", adminPassword)
		fmt.Println("Please save this password. It will not be shown again.")
		fmt.Println()
	}

	// Initialize metrics (if enabled)
	var authzMetrics *metrics.AuthzMetrics
	metricsServer := metrics.NewServer(&cfg.Metrics)
	if metricsServer != nil {
		authzMetrics = metrics.NewAuthzMetrics(prometheus.DefaultRegisterer)
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Wire the policy engine over the store
	engine := policy.New(s, authzMetrics)

	// Create the API server
	apiServer, err := api.NewServer(cfg.API, engine, s, authzMetrics)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}
	logger.Info("API server configured", "port", cfg.API.Port)

	// Start servers in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("Metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer shutdownCancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Metrics server shutdown error", "error", err)
			}
		}()
	}

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Wait for server to shut down gracefully
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}
