package testing

import (
	"math"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
)

// FixtureStart is the first date of every generated price series
var FixtureStart = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// NewPriceSeries builds consecutive daily price points from closes.
func NewPriceSeries(start time.Time, closes ...float64) []backtest.PricePoint {
	points := make([]backtest.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = backtest.PricePoint{
			Date:     start.AddDate(0, 0, i),
			Open:     c,
			High:     c * 1.01,
			Low:      c * 0.99,
			Close:    c,
			AdjClose: c,
			Volume:   1_000_000,
		}
	}
	return points
}

// NewWaveSeries returns a deterministic oscillating series around base.
// amplitude is a fraction of base; drift is added per day.
func NewWaveSeries(days int, base, amplitude, drift float64) []backtest.PricePoint {
	closes := make([]float64, days)
	for i := range closes {
		x := float64(i)
		closes[i] = base*(1+amplitude*math.Sin(x/8)+amplitude*0.3*math.Sin(x/2.1)) + drift*x
	}
	return NewPriceSeries(FixtureStart, closes...)
}

// NewTestParams returns engine parameters with small lots and trailing
// disabled, suitable for short fixture series.
func NewTestParams() backtest.Params {
	params := backtest.DefaultParams()
	params.LotSizeUSD = 1000
	params.TrailingBuyActivationPercent = 0
	params.TrailingBuyReboundPercent = 0
	params.TrailingSellActivationPercent = 0
	params.TrailingSellPullbackPercent = 0
	params.StopLossPercent = 0
	return params
}
