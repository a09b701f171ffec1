package backtest

import (
	"math"
	"sort"
)

const (
	// DefaultConsecutiveSellSteps is the default length of the consecutive-sell margin sequence
	DefaultConsecutiveSellSteps = 10
	// DefaultConsecutiveSellProfitCap bounds the consecutive-sell margin sequence
	DefaultConsecutiveSellProfitCap = 0.7

	maxBeta = 10.0
)

// Params is the full strategy configuration of one session.
// Percent fields are fractions: 0.1 means 10%.
type Params struct {
	LotSizeUSD float64 `json:"lotSizeUsd"`
	MaxLots    int     `json:"maxLots"`

	GridIntervalPercent           float64 `json:"gridIntervalPercent"`
	ProfitRequirement             float64 `json:"profitRequirement"`
	StopLossPercent               float64 `json:"stopLossPercent"`
	TrailingBuyActivationPercent  float64 `json:"trailingBuyActivationPercent"`
	TrailingBuyReboundPercent     float64 `json:"trailingBuyReboundPercent"`
	TrailingSellActivationPercent float64 `json:"trailingSellActivationPercent"`
	TrailingSellPullbackPercent   float64 `json:"trailingSellPullbackPercent"`

	GridConsecutiveIncrement               float64 `json:"gridConsecutiveIncrement"`
	EnableConsecutiveIncrementalBuyGrid    bool    `json:"enableConsecutiveIncrementalBuyGrid"`
	EnableConsecutiveIncrementalSellProfit bool    `json:"enableConsecutiveIncrementalSellProfit"`

	// ConsecutiveSellSteps and ConsecutiveSellProfitCap shape the
	// consecutive-sell sequence; 0 selects the package default.
	ConsecutiveSellSteps     int     `json:"consecutiveSellSteps,omitempty"`
	ConsecutiveSellProfitCap float64 `json:"consecutiveSellProfitCap,omitempty"`

	// Beta of 0 means unavailable and is treated as 1.0.
	// Coefficient of 0 means unset and is treated as 1.0.
	Beta              float64 `json:"beta"`
	Coefficient       float64 `json:"coefficient"`
	EnableBetaScaling bool    `json:"enableBetaScaling"`

	EnableDynamicProfile bool `json:"enableDynamicProfile"`
	MomentumBasedBuy     bool `json:"momentumBasedBuy"`
	MomentumBasedSell    bool `json:"momentumBasedSell"`
	NormalizeToReference bool `json:"normalizeToReference"`
}

// DefaultParams returns the product's default strategy
func DefaultParams() Params {
	return Params{
		LotSizeUSD:                    10000,
		MaxLots:                       10,
		GridIntervalPercent:           0.10,
		ProfitRequirement:             0.05,
		StopLossPercent:               0.30,
		TrailingBuyActivationPercent:  0.10,
		TrailingBuyReboundPercent:     0.05,
		TrailingSellActivationPercent: 0.20,
		TrailingSellPullbackPercent:   0.10,
		GridConsecutiveIncrement:      0.05,
		ConsecutiveSellSteps:          DefaultConsecutiveSellSteps,
		ConsecutiveSellProfitCap:      DefaultConsecutiveSellProfitCap,
		Beta:                          1.0,
		Coefficient:                   1.0,
	}
}

// withDefaults replaces the zero value of the optional fields with their
// defaults. Zero is never a usable setting for these fields.
func (p Params) withDefaults() Params {
	if p.ConsecutiveSellSteps == 0 {
		p.ConsecutiveSellSteps = DefaultConsecutiveSellSteps
	}
	if p.ConsecutiveSellProfitCap == 0 {
		p.ConsecutiveSellProfitCap = DefaultConsecutiveSellProfitCap
	}
	if p.Coefficient == 0 {
		p.Coefficient = 1.0
	}
	return p
}

// BetaFactor returns beta × coefficient when beta scaling is enabled, else 1
func (p Params) BetaFactor() float64 {
	if !p.EnableBetaScaling {
		return 1.0
	}
	beta := p.Beta
	if beta == 0 {
		beta = 1.0
	}
	coefficient := p.Coefficient
	if coefficient == 0 {
		coefficient = 1.0
	}
	return beta * coefficient
}

// Validate checks the configuration once, before any day runs
func (p Params) Validate() error {
	if !finite(p.LotSizeUSD) || p.LotSizeUSD <= 0 {
		return configError("lotSizeUsd must be positive, got %g", p.LotSizeUSD)
	}
	if !p.MomentumBasedBuy && p.MaxLots <= 0 {
		return configError("maxLots must be positive unless momentumBasedBuy is enabled, got %d", p.MaxLots)
	}

	// Fractions that describe a drop must stay below 100%
	below := map[string]float64{
		"gridIntervalPercent":          p.GridIntervalPercent,
		"stopLossPercent":              p.StopLossPercent,
		"trailingBuyActivationPercent": p.TrailingBuyActivationPercent,
		"trailingSellPullbackPercent":  p.TrailingSellPullbackPercent,
	}
	for _, name := range sortedKeys(below) {
		v := below[name]
		if !finite(v) || v < 0 || v >= 1 {
			return configError("%s must be in [0, 1), got %g", name, v)
		}
	}

	nonNegative := map[string]float64{
		"profitRequirement":             p.ProfitRequirement,
		"trailingBuyReboundPercent":     p.TrailingBuyReboundPercent,
		"trailingSellActivationPercent": p.TrailingSellActivationPercent,
		"gridConsecutiveIncrement":      p.GridConsecutiveIncrement,
		"consecutiveSellProfitCap":      p.ConsecutiveSellProfitCap,
	}
	for _, name := range sortedKeys(nonNegative) {
		v := nonNegative[name]
		if !finite(v) || v < 0 {
			return configError("%s must be a non-negative number, got %g", name, v)
		}
	}

	if !finite(p.Beta) || p.Beta < 0 || p.Beta > maxBeta {
		return configError("beta must be in [0, %g] (0 means unavailable), got %g", maxBeta, p.Beta)
	}
	if !finite(p.Coefficient) || p.Coefficient < 0 {
		return configError("coefficient must be a non-negative number (0 means 1.0), got %g", p.Coefficient)
	}
	if p.EnableBetaScaling && !finite(p.BetaFactor()) {
		return configError("beta factor is not finite")
	}

	if p.MomentumBasedSell && p.EnableConsecutiveIncrementalSellProfit {
		return configError("momentumBasedSell disposes the whole position and cannot be combined with enableConsecutiveIncrementalSellProfit")
	}
	if p.EnableConsecutiveIncrementalSellProfit {
		if p.ConsecutiveSellSteps < 3 {
			return configError("consecutiveSellSteps must be at least 3, got %d", p.ConsecutiveSellSteps)
		}
		if _, err := NewSequence(p.ConsecutiveSellSteps, 0, p.GridConsecutiveIncrement, p.ConsecutiveSellProfitCap); err != nil {
			return err
		}
	}

	return nil
}

// ValidatePrices checks that the series is non-empty, strictly date-ascending
// and carries positive closes.
func ValidatePrices(prices []PricePoint) error {
	if len(prices) == 0 {
		return configError("price series is empty")
	}
	for i, p := range prices {
		if !finite(p.Close) || p.Close <= 0 {
			return configError("close on %s must be positive, got %g", p.Date.Format(dateLayout), p.Close)
		}
		if i > 0 && !p.Date.After(prices[i-1].Date) {
			return configError("price dates must be strictly ascending: %s follows %s",
				p.Date.Format(dateLayout), prices[i-1].Date.Format(dateLayout))
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
