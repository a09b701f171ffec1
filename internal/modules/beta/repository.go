package beta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Record is a stored beta
type Record struct {
	Symbol       string    `json:"symbol"`
	Benchmark    string    `json:"benchmark"`
	Beta         float64   `json:"beta"`
	Observations int       `json:"observations"`
	ComputedAt   time.Time `json:"computedAt"`
}

// Repository provides access to the symbol_betas table
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new beta repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "beta").Logger(),
	}
}

// Get returns the stored beta for symbol, or nil if none is stored
func (r *Repository) Get(ctx context.Context, symbol string) (*Record, error) {
	var rec Record
	var computedAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT symbol, benchmark, beta, observations, computed_at
		FROM symbol_betas
		WHERE symbol = ?
	`, symbol).Scan(&rec.Symbol, &rec.Benchmark, &rec.Beta, &rec.Observations, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get beta for %s: %w", symbol, err)
	}
	rec.ComputedAt = time.Unix(computedAt, 0).UTC()
	return &rec, nil
}

// Save stores or replaces the beta for a symbol
func (r *Repository) Save(ctx context.Context, rec Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO symbol_betas (symbol, benchmark, beta, observations, computed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			benchmark = excluded.benchmark,
			beta = excluded.beta,
			observations = excluded.observations,
			computed_at = excluded.computed_at
	`, rec.Symbol, rec.Benchmark, rec.Beta, rec.Observations, rec.ComputedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save beta for %s: %w", rec.Symbol, err)
	}
	return nil
}
