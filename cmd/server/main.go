// Package main is the entry point for the DCA backtest service.
// The service stores daily price series, runs single-symbol, sweep and
// portfolio backtests over HTTP, and keeps a history of finished runs.
//
// The application follows the same layering throughout:
// - Engine packages are pure (no storage or transport dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/config"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/di"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/server"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/pkg/logger"
)

// main is the application entry point. It orchestrates the startup sequence:
// 1. Loads configuration from environment variables (.env supported)
// 2. Initializes logging
// 3. Wires all dependencies via DI container (databases, repositories, services, jobs)
// 4. Starts the HTTP server and the maintenance scheduler
// 5. Waits for a shutdown signal and shuts down gracefully
//
// Two SQLite databases live under DCA_DATA_DIR:
// - market.db: daily prices and cached betas
// - results.db: stored backtest runs
func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting DCA backtest service")

	// Wire all dependencies using DI container
	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Jobs:      jobs,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Retention cleanup and WAL checkpoints
	container.Scheduler.Start()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop scheduling new jobs and wait for a running one to finish
	container.Scheduler.Stop()

	// Graceful shutdown
	// In-flight backtests get up to 30 seconds; sweeps observe the request
	// context and stop between combinations.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
