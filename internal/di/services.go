// Package di provides dependency injection for services.
package di

import (
	"context"
	"fmt"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/config"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/database"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/metrics"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/beta"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/portfolio"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/sweep"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates the services that sit on top of the repositories
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.PriceRepo == nil || container.BetaRepo == nil {
		return fmt.Errorf("repositories must be initialized before services")
	}

	container.BetaService = beta.NewService(
		container.BetaRepo,
		container.PriceRepo,
		cfg.BenchmarkSymbol,
		cfg.BetaMaxAge,
		cfg.DefaultBeta,
		log,
	)
	container.SweepRunner = sweep.NewRunner(cfg.SweepWorkers, log)
	container.PortfolioRunner = portfolio.NewRunner(log)
	container.Metrics = metrics.New()

	if cfg.BackupEnabled() {
		client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			Bucket:          cfg.Backup.Bucket,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		container.Backup = reliability.NewBackupService(
			client,
			[]*database.DB{container.MarketDB, container.ResultsDB},
			cfg.DataDir,
			log,
		)
	}

	log.Info().
		Int("sweep_workers", container.SweepRunner.Workers()).
		Str("benchmark", cfg.BenchmarkSymbol).
		Bool("backup", container.Backup != nil).
		Msg("All services initialized")

	return nil
}
