// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the SQLite databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	RequestTimeout time.Duration // Upper bound for a single HTTP request; websocket streams are exempt

	SweepWorkers        int // Parallel sessions per sweep (0 = number of CPU cores)
	ResultRetentionDays int // Stored runs older than this are purged by the cleanup job
	CleanupSchedule     string

	DefaultBeta     float64 // Used when beta cannot be fetched or computed
	BenchmarkSymbol string  // Market series beta is regressed against
	BetaMaxAge      time.Duration

	// Off-site backups to an S3-compatible bucket; disabled when Backup.Bucket is empty
	Backup BackupConfig
}

// BackupConfig holds S3-compatible backup settings
type BackupConfig struct {
	Bucket          string
	Endpoint        string // Empty for AWS, set for R2/MinIO
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string
	RetentionDays   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DCA_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("GO_PORT", 8001),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		RequestTimeout:      time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 300)) * time.Second,
		SweepWorkers:        getEnvAsInt("SWEEP_WORKERS", 0),
		ResultRetentionDays: getEnvAsInt("RESULT_RETENTION_DAYS", 30),
		CleanupSchedule:     getEnv("CLEANUP_SCHEDULE", "0 3 * * *"), // daily at 03:00
		DefaultBeta:         getEnvAsFloat("DEFAULT_BETA", 1.0),
		BenchmarkSymbol:     getEnv("BENCHMARK_SYMBOL", "SPY"),
		BetaMaxAge:          time.Duration(getEnvAsInt("BETA_MAX_AGE_HOURS", 24)) * time.Hour,
		Backup:              BackupConfig{
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 4 * * *"), // daily at 04:00
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 14),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configured values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("GO_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	if c.SweepWorkers < 0 {
		return fmt.Errorf("SWEEP_WORKERS must not be negative, got %d", c.SweepWorkers)
	}
	if c.ResultRetentionDays <= 0 {
		return fmt.Errorf("RESULT_RETENTION_DAYS must be positive, got %d", c.ResultRetentionDays)
	}
	// Same range the engine accepts
	if c.DefaultBeta <= 0 || c.DefaultBeta > 10 {
		return fmt.Errorf("DEFAULT_BETA must be in (0, 10], got %g", c.DefaultBeta)
	}
	if c.BenchmarkSymbol == "" {
		return fmt.Errorf("BENCHMARK_SYMBOL must not be empty")
	}
	if c.BetaMaxAge <= 0 {
		return fmt.Errorf("BETA_MAX_AGE_HOURS must be positive")
	}
	if _, err := cron.ParseStandard(c.CleanupSchedule); err != nil {
		return fmt.Errorf("invalid CLEANUP_SCHEDULE %q: %w", c.CleanupSchedule, err)
	}
	if c.BackupEnabled() {
		if _, err := cron.ParseStandard(c.Backup.Schedule); err != nil {
			return fmt.Errorf("invalid BACKUP_SCHEDULE %q: %w", c.Backup.Schedule, err)
		}
		if c.Backup.RetentionDays <= 0 {
			return fmt.Errorf("BACKUP_RETENTION_DAYS must be positive, got %d", c.Backup.RetentionDays)
		}
		if (c.Backup.AccessKeyID == "") != (c.Backup.SecretAccessKey == "") {
			return fmt.Errorf("BACKUP_ACCESS_KEY_ID and BACKUP_SECRET_ACCESS_KEY must be set together")
		}
	}
	return nil
}

// BackupEnabled reports whether off-site backups are configured
func (c *Config) BackupEnabled() bool {
	return c.Backup.Bucket != ""
}

// BackupRetention returns the backup retention window as a duration
func (c *Config) BackupRetention() time.Duration {
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}

// ResultRetention returns the retention window as a duration
func (c *Config) ResultRetention() time.Duration {
	return time.Duration(c.ResultRetentionDays) * 24 * time.Hour
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
