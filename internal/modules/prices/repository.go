// Package prices stores and loads the daily price series the backtest engine
// replays.
package prices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/database"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
	"github.com/rs/zerolog"
)

// ErrNoPrices is returned when a symbol has no stored prices in the range
var ErrNoPrices = errors.New("no prices stored")

const dateLayout = "2006-01-02"

// Repository provides access to the daily_prices table
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new price repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "prices").Logger(),
	}
}

// Upsert stores price points for symbol, replacing existing rows for the
// same dates. All points are validated before anything is written.
func (r *Repository) Upsert(ctx context.Context, symbol string, points []backtest.PricePoint) (int, error) {
	if symbol == "" {
		return 0, fmt.Errorf("%w: symbol is required", backtest.ErrInvalidConfig)
	}
	for _, p := range points {
		if reason := ValidateOHLC(p); reason != "" {
			return 0, fmt.Errorf("%w: invalid price for %s on %s: %s", backtest.ErrInvalidConfig, symbol, p.Date.Format(dateLayout), reason)
		}
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO daily_prices (symbol, date, open, high, low, close, adj_close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(symbol, date) DO UPDATE SET
				open = excluded.open,
				high = excluded.high,
				low = excluded.low,
				close = excluded.close,
				adj_close = excluded.adj_close,
				volume = excluded.volume
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare price upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range points {
			adj := p.AdjClose
			if adj == 0 {
				adj = p.Close
			}
			if _, err := stmt.ExecContext(ctx, symbol, p.Date.Format(dateLayout),
				p.Open, p.High, p.Low, p.Close, adj, p.Volume); err != nil {
				return fmt.Errorf("failed to upsert price for %s: %w", p.Date.Format(dateLayout), err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Debug().Str("symbol", symbol).Int("count", len(points)).Msg("Stored daily prices")
	return len(points), nil
}

// GetRange returns prices for symbol between from and to inclusive, in
// ascending date order. A zero from or to leaves that side unbounded.
func (r *Repository) GetRange(ctx context.Context, symbol string, from, to time.Time) ([]backtest.PricePoint, error) {
	query := `
		SELECT date, open, high, low, close, adj_close, volume
		FROM daily_prices
		WHERE symbol = ?
	`
	args := []interface{}{symbol}
	if !from.IsZero() {
		query += " AND date >= ?"
		args = append(args, from.Format(dateLayout))
	}
	if !to.IsZero() {
		query += " AND date <= ?"
		args = append(args, to.Format(dateLayout))
	}
	query += " ORDER BY date ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var points []backtest.PricePoint
	for rows.Next() {
		var p backtest.PricePoint
		var date string
		if err := rows.Scan(&date, &p.Open, &p.High, &p.Low, &p.Close, &p.AdjClose, &p.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		p.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored date %q: %w", date, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoPrices, symbol)
	}
	return points, nil
}

// Symbols returns every symbol with stored prices
func (r *Repository) Symbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// DeleteSymbol removes all stored prices for symbol
func (r *Repository) DeleteSymbol(ctx context.Context, symbol string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM daily_prices WHERE symbol = ?", symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to delete prices for %s: %w", symbol, err)
	}
	return res.RowsAffected()
}
