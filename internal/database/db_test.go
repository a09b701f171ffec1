package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildConnectionString(t *testing.T) {
	tests := []struct {
		profile  DatabaseProfile
		contains string
	}{
		{ProfileLedger, "synchronous(FULL)"},
		{ProfileCache, "synchronous(OFF)"},
		{ProfileStandard, "synchronous(NORMAL)"},
	}

	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			conn := buildConnectionString("/tmp/x.db", tt.profile)
			assert.Contains(t, conn, "journal_mode(WAL)")
			assert.Contains(t, conn, tt.contains)
			assert.Contains(t, conn, "busy_timeout(5000)")
		})
	}
}

func TestMigrate_CreatesTables(t *testing.T) {
	tests := []struct {
		name   string
		tables []string
	}{
		{NameMarket, []string{"daily_prices", "symbol_betas"}},
		{NameResults, []string{"backtest_runs"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t, tt.name, ProfileStandard)
			require.NoError(t, db.Migrate())
			// idempotent
			require.NoError(t, db.Migrate())

			for _, table := range tt.tables {
				var count int
				err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
				require.NoError(t, err)
				assert.Equal(t, 1, count, "table %s", table)
			}
		})
	}
}

func TestMigrate_UnknownDatabase(t *testing.T) {
	db := newTestDB(t, "unknown", ProfileCache)
	assert.Error(t, db.Migrate())
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newTestDB(t, NameMarket, ProfileStandard)
	require.NoError(t, db.Migrate())

	insert := func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO symbol_betas (symbol, benchmark, beta, observations, computed_at)
			VALUES ('AAA', 'SPY', 1.2, 100, 0)`)
		return err
	}

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if err := insert(tx); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM symbol_betas").Scan(&count))
	assert.Equal(t, 0, count)

	require.NoError(t, WithTransaction(db.Conn(), insert))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM symbol_betas").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t, NameResults, ProfileLedger)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.QuickCheck(context.Background()))
	assert.NoError(t, db.WALCheckpoint(""))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
}

func TestBackupTo(t *testing.T) {
	db := newTestDB(t, NameMarket, ProfileCache)
	require.NoError(t, db.Migrate())
	_, err := db.Exec(`INSERT INTO daily_prices (symbol, date, open, high, low, close, adj_close, volume)
		VALUES ('AAA', '2024-01-02', 10, 11, 9, 10, 10, 100)`)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, db.BackupTo(context.Background(), dest))

	copied, err := New(Config{Path: dest, Name: NameMarket})
	require.NoError(t, err)
	defer copied.Close()

	var n int
	require.NoError(t, copied.QueryRow("SELECT COUNT(*) FROM daily_prices").Scan(&n))
	assert.Equal(t, 1, n)

	// existing destination is refused
	assert.Error(t, db.BackupTo(context.Background(), dest))
}
