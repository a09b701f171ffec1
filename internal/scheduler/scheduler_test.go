package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/database"
	testingpkg "github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	deleted int64
	err     error
	age     time.Duration
	calls   int
}

func (f *fakePruner) DeleteOlderThan(_ context.Context, age time.Duration) (int64, error) {
	f.calls++
	f.age = age
	return f.deleted, f.err
}

type countingObserver struct {
	total int64
}

func (c *countingObserver) ObserveCleanup(deleted int64) {
	c.total += deleted
}

func quiet() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestCleanupJob_Run(t *testing.T) {
	pruner := &fakePruner{deleted: 7}
	obs := &countingObserver{}
	job := NewCleanupJob(pruner, 30*24*time.Hour, obs, quiet())

	require.NoError(t, job.Run())
	assert.Equal(t, 1, pruner.calls)
	assert.Equal(t, 30*24*time.Hour, pruner.age)
	assert.Equal(t, int64(7), obs.total)
	assert.Equal(t, "run_retention_cleanup", job.Name())
}

func TestCleanupJob_RunError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("disk I/O error")}
	obs := &countingObserver{}
	job := NewCleanupJob(pruner, time.Hour, obs, quiet())

	assert.Error(t, job.Run())
	assert.Equal(t, int64(0), obs.total)
}

func TestCleanupJob_NilObserver(t *testing.T) {
	job := NewCleanupJob(&fakePruner{deleted: 1}, time.Hour, nil, quiet())
	assert.NoError(t, job.Run())
}

func TestWALCheckpointJob_Run(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "market")
	defer cleanup()

	job := NewWALCheckpointJob(map[string]*database.DB{
		"market":  db,
		"missing": nil,
	}, quiet())

	assert.Equal(t, "wal_checkpoint", job.Name())
	assert.NoError(t, job.Run())
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(quiet())
	job := NewCleanupJob(&fakePruner{}, time.Hour, nil, quiet())

	require.NoError(t, s.AddJob("0 3 * * *", job))
	assert.Equal(t, 1, s.Entries())

	assert.Error(t, s.AddJob("not a schedule", job))
	assert.Equal(t, 1, s.Entries())
}

func TestScheduler_RunNow(t *testing.T) {
	pruner := &fakePruner{}
	s := New(quiet())

	require.NoError(t, s.RunNow(NewCleanupJob(pruner, time.Hour, nil, quiet())))
	assert.Equal(t, 1, pruner.calls)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(quiet())
	s.Start()
	s.Stop()
}
