// Package sweep runs one backtest per parameter combination over the same
// price series and ranks the outcomes.
package sweep

import (
	"fmt"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
)

// MaxCombinations bounds the cartesian product a single sweep may request
const MaxCombinations = 5000

// Grid lists candidate values per parameter. An empty list keeps the base
// value for that parameter.
type Grid struct {
	GridIntervalPercent           []float64 `json:"gridIntervalPercent,omitempty"`
	ProfitRequirement             []float64 `json:"profitRequirement,omitempty"`
	StopLossPercent               []float64 `json:"stopLossPercent,omitempty"`
	TrailingBuyActivationPercent  []float64 `json:"trailingBuyActivationPercent,omitempty"`
	TrailingBuyReboundPercent     []float64 `json:"trailingBuyReboundPercent,omitempty"`
	TrailingSellActivationPercent []float64 `json:"trailingSellActivationPercent,omitempty"`
	TrailingSellPullbackPercent   []float64 `json:"trailingSellPullbackPercent,omitempty"`
	MomentumBasedBuy              []bool    `json:"momentumBasedBuy,omitempty"`
	MomentumBasedSell             []bool    `json:"momentumBasedSell,omitempty"`
}

type floatAxis struct {
	values []float64
	set    func(*backtest.Params, float64)
}

type boolAxis struct {
	values []bool
	set    func(*backtest.Params, bool)
}

func (g Grid) floatAxes() []floatAxis {
	return []floatAxis{
		{g.GridIntervalPercent, func(p *backtest.Params, v float64) { p.GridIntervalPercent = v }},
		{g.ProfitRequirement, func(p *backtest.Params, v float64) { p.ProfitRequirement = v }},
		{g.StopLossPercent, func(p *backtest.Params, v float64) { p.StopLossPercent = v }},
		{g.TrailingBuyActivationPercent, func(p *backtest.Params, v float64) { p.TrailingBuyActivationPercent = v }},
		{g.TrailingBuyReboundPercent, func(p *backtest.Params, v float64) { p.TrailingBuyReboundPercent = v }},
		{g.TrailingSellActivationPercent, func(p *backtest.Params, v float64) { p.TrailingSellActivationPercent = v }},
		{g.TrailingSellPullbackPercent, func(p *backtest.Params, v float64) { p.TrailingSellPullbackPercent = v }},
	}
}

func (g Grid) boolAxes() []boolAxis {
	return []boolAxis{
		{g.MomentumBasedBuy, func(p *backtest.Params, v bool) { p.MomentumBasedBuy = v }},
		{g.MomentumBasedSell, func(p *backtest.Params, v bool) { p.MomentumBasedSell = v }},
	}
}

// Size returns the number of combinations the grid expands to
func (g Grid) Size() int {
	n := 1
	for _, a := range g.floatAxes() {
		if len(a.values) > 0 {
			n *= len(a.values)
		}
	}
	for _, a := range g.boolAxes() {
		if len(a.values) > 0 {
			n *= len(a.values)
		}
	}
	return n
}

// Combinations expands the grid over base. The first axis varies slowest,
// so the order is stable for a given grid.
func (g Grid) Combinations(base backtest.Params) ([]backtest.Params, error) {
	if size := g.Size(); size > MaxCombinations {
		return nil, fmt.Errorf("%w: sweep has %d combinations, limit is %d", backtest.ErrInvalidConfig, size, MaxCombinations)
	}

	combos := []backtest.Params{base}
	for _, axis := range g.floatAxes() {
		if len(axis.values) == 0 {
			continue
		}
		next := make([]backtest.Params, 0, len(combos)*len(axis.values))
		for _, p := range combos {
			for _, v := range axis.values {
				c := p
				axis.set(&c, v)
				next = append(next, c)
			}
		}
		combos = next
	}
	for _, axis := range g.boolAxes() {
		if len(axis.values) == 0 {
			continue
		}
		next := make([]backtest.Params, 0, len(combos)*len(axis.values))
		for _, p := range combos {
			for _, v := range axis.values {
				c := p
				axis.set(&c, v)
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos, nil
}
