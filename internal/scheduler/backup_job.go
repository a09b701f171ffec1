package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Backupper uploads database snapshots and prunes old ones
type Backupper interface {
	CreateAndUpload(ctx context.Context) (string, error)
	RotateOldBackups(ctx context.Context, retention time.Duration) (int, error)
}

// BackupJob uploads a database snapshot, then rotates old snapshots.
// A failed rotation is logged but does not fail the job.
type BackupJob struct {
	backups   Backupper
	retention time.Duration
	log       zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(backups Backupper, retention time.Duration, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups:   backups,
		retention: retention,
		log:       log.With().Str("job", "database_backup").Logger(),
	}
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	key, err := j.backups.CreateAndUpload(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Database backup failed")
		return fmt.Errorf("failed to create backup: %w", err)
	}

	deleted, err := j.backups.RotateOldBackups(ctx, j.retention)
	if err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	j.log.Info().Str("key", key).Int("rotated", deleted).Msg("Database backup completed")
	return nil
}

// Name returns the job name for scheduling and logging
func (j *BackupJob) Name() string {
	return "database_backup"
}
