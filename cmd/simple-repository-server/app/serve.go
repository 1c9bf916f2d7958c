package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/simpleindex/simple-repository-server/internal/api"
	"github.com/simpleindex/simple-repository-server/internal/builder"
	"github.com/simpleindex/simple-repository-server/internal/config"
	"github.com/simpleindex/simple-repository-server/internal/logger"
	"github.com/simpleindex/simple-repository-server/internal/telemetry"
	"github.com/simpleindex/simple-repository-server/internal/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the repository server",
	Long: `Start the HTTP server exposing the configured repository over the
simple repository protocol.

The server requires a configuration file (--config) that specifies:
- The upstream sources, ordered from highest to lowest priority
- Cache, allow list and metadata injection settings

See examples/ directory for sample configurations.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
	serverRequestTimeout   = 60 * time.Second // Metadata extraction may touch remote archives
	serverReadTimeout      = 10 * time.Second // Enough for headers and small requests
	serverWriteTimeout     = 75 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second // Keep connections alive for reuse
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	serveCmd.Flags().Bool("metrics", true, "Expose Prometheus metrics on /metrics")

	err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address"))
	if err != nil {
		logger.Fatalf("Failed to bind address flag: %v", err)
	}
	err = viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	if err != nil {
		logger.Fatalf("Failed to bind config flag: %v", err)
	}
	err = viper.BindPFlag("metrics", serveCmd.Flags().Lookup("metrics"))
	if err != nil {
		logger.Fatalf("Failed to bind metrics flag: %v", err)
	}

	// Mark config as required
	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		logger.Fatalf("Failed to mark config flag as required: %v", err)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	address := viper.GetString("address")

	logger.Infof("Starting repository server on %s", address)

	// Load and validate configuration
	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Infof("Loaded configuration from %s (repository: %s, sources: %d)",
		configPath, cfg.GetRepositoryName(), len(cfg.Sources))

	// Assemble the repository component graph
	repo, err := builder.Build(cfg)
	if err != nil {
		return fmt.Errorf("failed to build repository: %w", err)
	}

	// Initialize telemetry
	tel, err := telemetry.New(ctx,
		telemetry.WithEnabled(viper.GetBool("metrics")),
		telemetry.WithServiceName("simple-repository-server"),
		telemetry.WithServiceVersion(versions.GetVersionInfo().Version),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Failed to shutdown telemetry: %v", err)
		}
	}()

	metricsMiddleware, err := telemetry.MetricsMiddleware(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create metrics middleware: %w", err)
	}
	repositoryMetrics, err := telemetry.NewRepositoryMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create repository metrics: %w", err)
	}

	// Create the repository server with middleware
	router := api.NewServer(repo,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			metricsMiddleware,
			api.LoggingMiddleware,
		),
		api.WithMetricsHandler(tel.Handler()),
		api.WithRepositoryMetrics(repositoryMetrics),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Server listening on %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}
