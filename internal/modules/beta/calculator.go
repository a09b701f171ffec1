// Package beta computes and caches the per-symbol volatility multiplier the
// engine scales its thresholds by.
package beta

import (
	"errors"
	"fmt"
	"math"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
	"gonum.org/v1/gonum/stat"
)

// MinObservations is the fewest aligned daily returns a regression accepts
const MinObservations = 20

// ErrInsufficientData is returned when the two series overlap too little
var ErrInsufficientData = errors.New("insufficient overlapping price data")

// Estimate is the result of one regression
type Estimate struct {
	Beta         float64 `json:"beta"`
	Correlation  float64 `json:"correlation"`
	Observations int     `json:"observations"`
}

// Calculate regresses the asset's daily returns on the benchmark's over the
// dates both series share: beta = cov(asset, benchmark) / var(benchmark).
func Calculate(asset, benchmark []backtest.PricePoint) (Estimate, error) {
	a, b := alignedReturns(asset, benchmark)
	if len(a) < MinObservations {
		return Estimate{}, fmt.Errorf("%w: %d aligned returns, need %d", ErrInsufficientData, len(a), MinObservations)
	}

	variance := stat.Variance(b, nil)
	if variance == 0 || math.IsNaN(variance) {
		return Estimate{}, fmt.Errorf("%w: benchmark returns have no variance", ErrInsufficientData)
	}

	est := Estimate{
		Beta:         stat.Covariance(a, b, nil) / variance,
		Correlation:  stat.Correlation(a, b, nil),
		Observations: len(a),
	}
	if math.IsNaN(est.Beta) || math.IsInf(est.Beta, 0) {
		return Estimate{}, fmt.Errorf("beta regression produced %v", est.Beta)
	}
	return est, nil
}

// alignedReturns returns daily close-to-close returns for dates present in
// both series on consecutive shared days.
func alignedReturns(asset, benchmark []backtest.PricePoint) ([]float64, []float64) {
	bench := make(map[string]float64, len(benchmark))
	for _, p := range benchmark {
		bench[p.Date.Format("2006-01-02")] = closeOf(p)
	}

	var a, b []float64
	var prevAsset, prevBench float64
	havePrev := false
	for _, p := range asset {
		bc, ok := bench[p.Date.Format("2006-01-02")]
		if !ok {
			continue
		}
		ac := closeOf(p)
		if havePrev && prevAsset > 0 && prevBench > 0 {
			a = append(a, ac/prevAsset-1)
			b = append(b, bc/prevBench-1)
		}
		prevAsset, prevBench = ac, bc
		havePrev = true
	}
	return a, b
}

// closeOf prefers the adjusted close so splits and dividends do not show up
// as returns.
func closeOf(p backtest.PricePoint) float64 {
	if p.AdjClose > 0 {
		return p.AdjClose
	}
	return p.Close
}
