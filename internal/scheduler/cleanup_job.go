package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RunPruner deletes stored runs past their retention
type RunPruner interface {
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// CleanupObserver is notified of how many runs a cleanup removed
type CleanupObserver interface {
	ObserveCleanup(deleted int64)
}

// CleanupJob removes stored backtest runs older than the retention period.
// It should be scheduled to run daily.
type CleanupJob struct {
	runs      RunPruner
	retention time.Duration
	observer  CleanupObserver
	log       zerolog.Logger
}

// NewCleanupJob creates a new run retention job. observer may be nil.
func NewCleanupJob(runs RunPruner, retention time.Duration, observer CleanupObserver, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		runs:      runs,
		retention: retention,
		observer:  observer,
		log:       log.With().Str("job", "run_retention_cleanup").Logger(),
	}
}

// Run executes the cleanup job
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := j.runs.DeleteOlderThan(ctx, j.retention)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired runs")
		return err
	}

	if j.observer != nil {
		j.observer.ObserveCleanup(deleted)
	}
	if deleted > 0 {
		j.log.Info().
			Int64("deleted", deleted).
			Dur("retention", j.retention).
			Msg("Run retention cleanup completed")
	}

	return nil
}

// Name returns the job name for scheduling and logging
func (j *CleanupJob) Name() string {
	return "run_retention_cleanup"
}
