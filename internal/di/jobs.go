// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/config"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/database"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/scheduler"
	"github.com/rs/zerolog"
)

// walCheckpointSchedule runs the checkpoint job every 15 minutes
const walCheckpointSchedule = "*/15 * * * *"

// RegisterJobs creates the scheduler and registers the maintenance jobs.
// The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{}

	// Job 1: purge stored runs past the retention window
	instances.Cleanup = scheduler.NewCleanupJob(container.ResultRepo, cfg.ResultRetention(), container.Metrics, log)
	if err := sched.AddJob(cfg.CleanupSchedule, instances.Cleanup); err != nil {
		return nil, fmt.Errorf("failed to register cleanup job: %w", err)
	}

	// Job 2: keep WAL files from growing between restarts
	instances.WALCheckpoint = scheduler.NewWALCheckpointJob(map[string]*database.DB{
		database.NameMarket:  container.MarketDB,
		database.NameResults: container.ResultsDB,
	}, log)
	if err := sched.AddJob(walCheckpointSchedule, instances.WALCheckpoint); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}

	// Job 3: off-site backup, only when a bucket is configured
	if container.Backup != nil {
		instances.Backup = scheduler.NewBackupJob(container.Backup, cfg.BackupRetention(), log)
		if err := sched.AddJob(cfg.Backup.Schedule, instances.Backup); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
	}

	container.Scheduler = sched

	log.Info().Int("jobs", sched.Entries()).Msg("Jobs registered")

	return instances, nil
}
