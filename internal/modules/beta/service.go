package beta

import (
	"context"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
	"github.com/rs/zerolog"
)

// Source says where a beta value came from
type Source string

const (
	SourceCache    Source = "cache"
	SourceComputed Source = "computed"
	SourceDefault  Source = "default"
	SourceRequest  Source = "request"
)

// PriceSource provides stored daily prices
type PriceSource interface {
	GetRange(ctx context.Context, symbol string, from, to time.Time) ([]backtest.PricePoint, error)
}

// Store persists computed betas
type Store interface {
	Get(ctx context.Context, symbol string) (*Record, error)
	Save(ctx context.Context, rec Record) error
}

// Lookup is a resolved beta ready to hand to the engine
type Lookup struct {
	Symbol string    `json:"symbol"`
	Beta   float64   `json:"beta"`
	Source Source    `json:"source"`
	AsOf   time.Time `json:"asOf"`
}

// Service resolves a beta for a symbol, always ending in a concrete value.
// Order: a cached value younger than maxAge, a fresh regression against the
// benchmark, then the configured default.
type Service struct {
	store       Store
	prices      PriceSource
	benchmark   string
	maxAge      time.Duration
	defaultBeta float64
	now         func() time.Time
	log         zerolog.Logger
}

// NewService creates a new beta service
func NewService(store Store, prices PriceSource, benchmark string, maxAge time.Duration, defaultBeta float64, log zerolog.Logger) *Service {
	return &Service{
		store:       store,
		prices:      prices,
		benchmark:   benchmark,
		maxAge:      maxAge,
		defaultBeta: defaultBeta,
		now:         time.Now,
		log:         log.With().Str("component", "beta_service").Logger(),
	}
}

// Get resolves the beta for symbol. It never fails: lookup and regression
// errors fall back to the default and are logged.
func (s *Service) Get(ctx context.Context, symbol string) Lookup {
	now := s.now()

	if symbol == s.benchmark {
		return Lookup{Symbol: symbol, Beta: 1.0, Source: SourceComputed, AsOf: now}
	}

	rec, err := s.store.Get(ctx, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to read cached beta")
	}
	if rec != nil && rec.Benchmark == s.benchmark && now.Sub(rec.ComputedAt) < s.maxAge {
		return Lookup{Symbol: symbol, Beta: rec.Beta, Source: SourceCache, AsOf: rec.ComputedAt}
	}

	est, err := s.compute(ctx, symbol)
	if err != nil {
		if rec != nil && rec.Benchmark == s.benchmark {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Beta refresh failed, using stale value")
			return Lookup{Symbol: symbol, Beta: rec.Beta, Source: SourceCache, AsOf: rec.ComputedAt}
		}
		s.log.Warn().Err(err).
			Str("symbol", symbol).
			Float64("default_beta", s.defaultBeta).
			Msg("Beta unavailable, using default")
		return Lookup{Symbol: symbol, Beta: s.defaultBeta, Source: SourceDefault, AsOf: now}
	}

	if err := s.store.Save(ctx, Record{
		Symbol:       symbol,
		Benchmark:    s.benchmark,
		Beta:         est.Beta,
		Observations: est.Observations,
		ComputedAt:   now,
	}); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache beta")
	}

	s.log.Debug().
		Str("symbol", symbol).
		Float64("beta", est.Beta).
		Int("observations", est.Observations).
		Msg("Computed beta")
	return Lookup{Symbol: symbol, Beta: est.Beta, Source: SourceComputed, AsOf: now}
}

// Apply fills params.Beta from the service when beta scaling is enabled and
// the caller left beta unset.
func (s *Service) Apply(ctx context.Context, symbol string, params *backtest.Params) Lookup {
	if params.Beta > 0 || !params.EnableBetaScaling {
		return Lookup{Symbol: symbol, Beta: params.Beta, Source: SourceRequest, AsOf: s.now()}
	}
	l := s.Get(ctx, symbol)
	params.Beta = clamp(l.Beta)
	return l
}

func (s *Service) compute(ctx context.Context, symbol string) (Estimate, error) {
	// Two years of daily data is plenty for a stable estimate
	from := s.now().AddDate(-2, 0, 0)

	asset, err := s.prices.GetRange(ctx, symbol, from, time.Time{})
	if err != nil {
		return Estimate{}, err
	}
	bench, err := s.prices.GetRange(ctx, s.benchmark, from, time.Time{})
	if err != nil {
		return Estimate{}, err
	}
	return Calculate(asset, bench)
}

// clamp keeps a regressed beta inside the range the engine accepts
func clamp(b float64) float64 {
	switch {
	case b <= 0:
		return 0
	case b > 10:
		return 10
	default:
		return b
	}
}
