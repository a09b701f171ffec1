// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/config"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. market.db - Daily prices and cached betas (re-importable)
	marketDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "market.db"),
		Profile: database.ProfileCache,
		Name:    database.NameMarket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize market database: %w", err)
	}
	container.MarketDB = marketDB

	// 2. results.db - Stored backtest runs
	resultsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "results.db"),
		Profile: database.ProfileStandard,
		Name:    database.NameResults,
	})
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize results database: %w", err)
	}
	container.ResultsDB = resultsDB

	for _, db := range []*database.DB{marketDB, resultsDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}
