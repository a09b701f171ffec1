package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DCA_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, 0, cfg.SweepWorkers)
	assert.Equal(t, 30, cfg.ResultRetentionDays)
	assert.Equal(t, 1.0, cfg.DefaultBeta)
	assert.Equal(t, "SPY", cfg.BenchmarkSymbol)
	assert.Equal(t, 24*time.Hour, cfg.BetaMaxAge)
	assert.Equal(t, 30*24*time.Hour, cfg.ResultRetention())
	assert.Equal(t, 5*time.Minute, cfg.RequestTimeout)
	assert.False(t, cfg.BackupEnabled())
	assert.Equal(t, "auto", cfg.Backup.Region)
	assert.Equal(t, "0 4 * * *", cfg.Backup.Schedule)
	assert.Equal(t, 14*24*time.Hour, cfg.BackupRetention())
}

func TestLoad_Backup(t *testing.T) {
	t.Setenv("DCA_DATA_DIR", t.TempDir())
	t.Setenv("BACKUP_BUCKET", "dca-backups")
	t.Setenv("BACKUP_ENDPOINT", "https://example.r2.cloudflarestorage.com")
	t.Setenv("BACKUP_ACCESS_KEY_ID", "key")
	t.Setenv("BACKUP_SECRET_ACCESS_KEY", "secret")
	t.Setenv("BACKUP_RETENTION_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.BackupEnabled())
	assert.Equal(t, "dca-backups", cfg.Backup.Bucket)
	assert.Equal(t, 7*24*time.Hour, cfg.BackupRetention())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DCA_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9100")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("SWEEP_WORKERS", "3")
	t.Setenv("DEFAULT_BETA", "1.4")
	t.Setenv("BENCHMARK_SYMBOL", "QQQ")
	t.Setenv("CLEANUP_SCHEDULE", "*/15 * * * *")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 3, cfg.SweepWorkers)
	assert.Equal(t, 1.4, cfg.DefaultBeta)
	assert.Equal(t, "QQQ", cfg.BenchmarkSymbol)
	assert.Equal(t, "*/15 * * * *", cfg.CleanupSchedule)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoad_UnparseableValuesFallBack(t *testing.T) {
	t.Setenv("DCA_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "not-a-port")
	t.Setenv("DEV_MODE", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Port)
	assert.False(t, cfg.DevMode)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:                8001,
			RequestTimeout:      time.Minute,
			ResultRetentionDays: 30,
			CleanupSchedule:     "0 3 * * *",
			DefaultBeta:         1.0,
			BenchmarkSymbol:     "SPY",
			BetaMaxAge:          time.Hour,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"workers", func(c *Config) { c.SweepWorkers = -1 }},
		{"retention", func(c *Config) { c.ResultRetentionDays = 0 }},
		{"beta", func(c *Config) { c.DefaultBeta = 12 }},
		{"benchmark", func(c *Config) { c.BenchmarkSymbol = "" }},
		{"beta age", func(c *Config) { c.BetaMaxAge = 0 }},
		{"schedule", func(c *Config) { c.CleanupSchedule = "every day" }},
		{"backup schedule", func(c *Config) { c.Backup = BackupConfig{Bucket: "b", Schedule: "nightly", RetentionDays: 1} }},
		{"backup retention", func(c *Config) { c.Backup = BackupConfig{Bucket: "b", Schedule: "0 4 * * *"} }},
		{"backup credentials", func(c *Config) {
			c.Backup = BackupConfig{Bucket: "b", Schedule: "0 4 * * *", RetentionDays: 1, AccessKeyID: "key"}
		}},
	}

	require.NoError(t, valid().Validate())

	// Backup settings are ignored while no bucket is configured
	disabled := valid()
	disabled.Backup = BackupConfig{Schedule: "nightly"}
	require.NoError(t, disabled.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
