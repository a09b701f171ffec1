/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived dependency of the server. It is
 * created by Wire() and handed to the HTTP server and the scheduler.
 */
package di

import (
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/database"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/metrics"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/beta"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/portfolio"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/prices"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/results"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/sweep"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/reliability"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/scheduler"
)

// Container holds all dependencies for the application.
type Container struct {
	// Databases
	MarketDB  *database.DB // daily prices and cached betas
	ResultsDB *database.DB // stored backtest runs

	// Repositories
	PriceRepo  *prices.Repository
	BetaRepo   *beta.Repository
	ResultRepo *results.Repository

	// Services
	BetaService     *beta.Service
	SweepRunner     *sweep.Runner
	PortfolioRunner *portfolio.Runner
	Metrics         *metrics.Metrics
	Backup          *reliability.BackupService // nil when backups are not configured

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs so they can be triggered manually
type JobInstances struct {
	Cleanup       scheduler.Job
	WALCheckpoint scheduler.Job
	Backup        scheduler.Job // nil when backups are not configured
}

// Close releases the databases. It is safe to call on a partially
// initialized container.
func (c *Container) Close() {
	if c.MarketDB != nil {
		c.MarketDB.Close()
	}
	if c.ResultsDB != nil {
		c.ResultsDB.Close()
	}
}
