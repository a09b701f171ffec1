package beta

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
	testingpkg "github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrices struct {
	series map[string][]backtest.PricePoint
	calls  int
}

func (f *fakePrices) GetRange(_ context.Context, symbol string, _, _ time.Time) ([]backtest.PricePoint, error) {
	f.calls++
	s, ok := f.series[symbol]
	if !ok {
		return nil, errors.New("no prices stored")
	}
	return s, nil
}

func newTestService(t *testing.T, prices PriceSource) (*Service, *Repository) {
	t.Helper()

	db := testingpkg.NewMemoryDB(t, testingpkg.LoadSchema(t, "market_schema.sql"))
	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := NewRepository(db, log)

	svc := NewService(repo, prices, "SPY", 24*time.Hour, 1.0, log)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestService_ComputesAndCaches(t *testing.T) {
	bench := benchmarkCloses(60)
	prices := &fakePrices{series: map[string][]backtest.PricePoint{
		"SPY":  seriesFrom(bench, nil),
		"TSLA": seriesFrom(scaled(bench, 2), nil),
	}}
	svc, repo := newTestService(t, prices)
	ctx := context.Background()

	first := svc.Get(ctx, "TSLA")
	assert.Equal(t, SourceComputed, first.Source)
	assert.InDelta(t, 2.0, first.Beta, 1e-9)
	assert.Equal(t, 2, prices.calls)

	stored, err := repo.Get(ctx, "TSLA")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "SPY", stored.Benchmark)
	assert.Equal(t, 59, stored.Observations)

	second := svc.Get(ctx, "TSLA")
	assert.Equal(t, SourceCache, second.Source)
	assert.InDelta(t, first.Beta, second.Beta, 1e-12)
	assert.Equal(t, 2, prices.calls, "cached beta must not reload prices")
}

func TestService_RefreshesExpiredCache(t *testing.T) {
	bench := benchmarkCloses(60)
	prices := &fakePrices{series: map[string][]backtest.PricePoint{
		"SPY": seriesFrom(bench, nil),
		"QQQ": seriesFrom(scaled(bench, 1.2), nil),
	}}
	svc, repo := newTestService(t, prices)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, Record{
		Symbol:     "QQQ",
		Benchmark:  "SPY",
		Beta:       0.7,
		ComputedAt: svc.now().Add(-48 * time.Hour),
	}))

	l := svc.Get(ctx, "QQQ")
	assert.Equal(t, SourceComputed, l.Source)
	assert.InDelta(t, 1.2, l.Beta, 1e-9)
}

func TestService_FallsBackToStaleThenDefault(t *testing.T) {
	svc, repo := newTestService(t, &fakePrices{})
	ctx := context.Background()

	l := svc.Get(ctx, "NOPE")
	assert.Equal(t, SourceDefault, l.Source)
	assert.Equal(t, 1.0, l.Beta)

	require.NoError(t, repo.Save(ctx, Record{
		Symbol:     "OLD",
		Benchmark:  "SPY",
		Beta:       1.8,
		ComputedAt: svc.now().Add(-72 * time.Hour),
	}))
	stale := svc.Get(ctx, "OLD")
	assert.Equal(t, SourceCache, stale.Source)
	assert.Equal(t, 1.8, stale.Beta)
}

func TestService_BenchmarkIsOne(t *testing.T) {
	svc, _ := newTestService(t, &fakePrices{})

	l := svc.Get(context.Background(), "SPY")
	assert.Equal(t, 1.0, l.Beta)
}

func TestService_Apply(t *testing.T) {
	bench := benchmarkCloses(60)
	prices := &fakePrices{series: map[string][]backtest.PricePoint{
		"SPY":  seriesFrom(bench, nil),
		"TSLA": seriesFrom(scaled(bench, 2.5), nil),
	}}
	svc, _ := newTestService(t, prices)
	ctx := context.Background()

	params := backtest.DefaultParams()
	params.EnableBetaScaling = true
	params.Beta = 0
	l := svc.Apply(ctx, "TSLA", &params)
	assert.Equal(t, SourceComputed, l.Source)
	assert.InDelta(t, 2.5, params.Beta, 1e-9)

	explicit := backtest.DefaultParams()
	explicit.EnableBetaScaling = true
	explicit.Beta = 1.3
	l = svc.Apply(ctx, "TSLA", &explicit)
	assert.Equal(t, SourceRequest, l.Source)
	assert.Equal(t, 1.3, explicit.Beta)

	disabled := backtest.DefaultParams()
	disabled.Beta = 0
	svc.Apply(ctx, "TSLA", &disabled)
	assert.Equal(t, 0.0, disabled.Beta)
}
