package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when no run has the requested id
var ErrNotFound = errors.New("run not found")

// DefaultListLimit caps List when the caller passes no limit
const DefaultListLimit = 50

// Repository provides access to the backtest_runs table
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a new run repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "results").Logger(),
	}
}

// Save assigns the run an id and creation time and stores it.
func (r *Repository) Save(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = r.now().UTC().Truncate(time.Second)
	}

	params, err := msgpack.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	summary, err := msgpack.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	body, err := msgpack.Marshal(payload{
		Transactions: run.Transactions,
		EquityCurve:  run.EquityCurve,
		Log:          run.Log,
	})
	if err != nil {
		return fmt.Errorf("failed to encode run payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO backtest_runs (
			id, kind, symbol, created_at, start_date, end_date,
			total_return, max_drawdown, total_buys, total_sells,
			params, summary, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, string(run.Kind), run.Symbol, run.CreatedAt.Unix(),
		run.Summary.StartDate, run.Summary.EndDate,
		run.Summary.TotalReturn, run.Summary.MaxDrawdown,
		run.Summary.TotalBuys, run.Summary.TotalSells,
		params, summary, body,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	r.log.Debug().
		Str("id", run.ID).
		Str("kind", string(run.Kind)).
		Str("symbol", run.Symbol).
		Int("payload_bytes", len(body)).
		Msg("Saved run")
	return nil
}

// Get returns the run with its full payload
func (r *Repository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, symbol, created_at, params, summary, payload
		FROM backtest_runs
		WHERE id = ?
	`, id)

	var run Run
	var kind string
	var createdAt int64
	var params, summary, body []byte
	err := row.Scan(&run.ID, &kind, &run.Symbol, &createdAt, &params, &summary, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	run.Kind = Kind(kind)
	run.CreatedAt = time.Unix(createdAt, 0).UTC()

	if err := decodeHeader(&run, params, summary); err != nil {
		return nil, err
	}
	var p payload
	if err := msgpack.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode run payload %s: %w", id, err)
	}
	run.Transactions = p.Transactions
	run.EquityCurve = p.EquityCurve
	run.Log = p.Log

	return &run, nil
}

// List returns the newest runs first without their payloads. An empty
// symbol lists every symbol.
func (r *Repository) List(ctx context.Context, symbol string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, kind, symbol, created_at, params, summary
		FROM backtest_runs
	`
	args := []interface{}{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var kind string
		var createdAt int64
		var params, summary []byte
		if err := rows.Scan(&run.ID, &kind, &run.Symbol, &createdAt, &params, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Kind = Kind(kind)
		run.CreatedAt = time.Unix(createdAt, 0).UTC()
		if err := decodeHeader(&run, params, summary); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// DeleteOlderThan removes runs created before now minus age and returns how
// many were removed.
func (r *Repository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := r.now().Add(-age).Unix()
	res, err := r.db.ExecContext(ctx, `DELETE FROM backtest_runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted runs: %w", err)
	}
	return n, nil
}

func decodeHeader(run *Run, params, summary []byte) error {
	if err := msgpack.Unmarshal(params, &run.Params); err != nil {
		return fmt.Errorf("failed to decode params of run %s: %w", run.ID, err)
	}
	if err := msgpack.Unmarshal(summary, &run.Summary); err != nil {
		return fmt.Errorf("failed to decode summary of run %s: %w", run.ID, err)
	}
	return nil
}
