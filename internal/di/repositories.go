// Package di provides dependency injection for repositories.
package di

import (
	"fmt"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/beta"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/prices"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/results"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories on the container's databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.MarketDB == nil || container.ResultsDB == nil {
		return fmt.Errorf("databases must be initialized before repositories")
	}

	container.PriceRepo = prices.NewRepository(container.MarketDB.Conn(), log)
	container.BetaRepo = beta.NewRepository(container.MarketDB.Conn(), log)
	container.ResultRepo = results.NewRepository(container.ResultsDB.Conn(), log)

	log.Info().Msg("All repositories initialized")

	return nil
}
