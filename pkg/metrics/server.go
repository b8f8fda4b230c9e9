package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hms-dbmi/sciauthz/internal/logger"
)

// Config controls the standalone metrics server.
type Config struct {
	// Enabled turns metrics collection and the /metrics endpoint on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the port the metrics server listens on. Default: 9090.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 9090
	}
}

// Server serves the Prometheus /metrics endpoint on its own port, separate
// from the API listener so scraping never competes with client traffic.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a metrics server for the given config.
// Returns nil when metrics are disabled.
func NewServer(config *Config) *Server {
	if config == nil || !config.Enabled {
		return nil
	}
	config.ApplyDefaults()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start begins serving. Blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logger.Info("Metrics server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
