package beta

import (
	"math"
	"testing"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func seriesFrom(closes []float64, skip map[int]bool) []backtest.PricePoint {
	var out []backtest.PricePoint
	for i, c := range closes {
		if skip[i] {
			continue
		}
		out = append(out, backtest.PricePoint{Date: start.AddDate(0, 0, i), Close: c})
	}
	return out
}

func benchmarkCloses(n int) []float64 {
	closes := make([]float64, n)
	closes[0] = 100
	for i := 1; i < n; i++ {
		closes[i] = closes[i-1] * (1 + 0.01*math.Sin(float64(i)))
	}
	return closes
}

// scaled returns a series whose daily returns are exactly k times the input's
func scaled(closes []float64, k float64) []float64 {
	out := make([]float64, len(closes))
	out[0] = 50
	for i := 1; i < len(closes); i++ {
		r := closes[i]/closes[i-1] - 1
		out[i] = out[i-1] * (1 + k*r)
	}
	return out
}

func TestCalculate_RecoversKnownBeta(t *testing.T) {
	bench := benchmarkCloses(60)
	asset := scaled(bench, 1.5)

	est, err := Calculate(seriesFrom(asset, nil), seriesFrom(bench, nil))
	require.NoError(t, err)

	assert.InDelta(t, 1.5, est.Beta, 1e-9)
	assert.InDelta(t, 1.0, est.Correlation, 1e-9)
	assert.Equal(t, 59, est.Observations)
}

func TestCalculate_AlignsOnSharedDates(t *testing.T) {
	bench := benchmarkCloses(60)
	asset := scaled(bench, 2)

	// The asset misses some days; returns are only taken across shared days
	est, err := Calculate(seriesFrom(asset, map[int]bool{10: true, 11: true, 30: true}), seriesFrom(bench, nil))
	require.NoError(t, err)

	assert.Equal(t, 56, est.Observations)
	assert.InDelta(t, 2.0, est.Beta, 0.1)
}

func TestCalculate_PrefersAdjustedClose(t *testing.T) {
	bench := benchmarkCloses(40)
	asset := scaled(bench, 0.5)

	points := seriesFrom(asset, nil)
	for i := range points {
		points[i].AdjClose = points[i].Close
		// A fake split in the raw close must not show up as a return
		if i >= 20 {
			points[i].Close /= 2
		}
	}

	est, err := Calculate(points, seriesFrom(bench, nil))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, est.Beta, 1e-9)
}

func TestCalculate_InsufficientData(t *testing.T) {
	bench := benchmarkCloses(10)

	_, err := Calculate(seriesFrom(bench, nil), seriesFrom(bench, nil))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCalculate_FlatBenchmark(t *testing.T) {
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}

	_, err := Calculate(seriesFrom(benchmarkCloses(30), nil), seriesFrom(flat, nil))
	assert.ErrorIs(t, err, ErrInsufficientData)
}
