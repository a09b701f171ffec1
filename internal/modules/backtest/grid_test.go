package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculator_BetaScaling(t *testing.T) {
	params := DefaultParams()
	params.EnableBetaScaling = true
	params.Beta = 1.5
	params.Coefficient = 2

	calc, err := NewCalculator(params)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, calc.Factor(), 1e-12)

	th, err := calc.Effective(ProfileNone, Counters{})
	require.NoError(t, err)
	assert.InDelta(t, 0.30, th.GridIntervalPercent, 1e-12)
	assert.InDelta(t, 0.15, th.ProfitRequirement, 1e-12)
	assert.InDelta(t, 0.90, th.StopLossPercent, 1e-12)
	assert.InDelta(t, 0.30, th.TrailingBuyActivationPercent, 1e-12)
}

func TestCalculator_UnavailableBetaDefaultsToOne(t *testing.T) {
	params := DefaultParams()
	params.EnableBetaScaling = true
	params.Beta = 0
	params.Coefficient = 0

	calc, err := NewCalculator(params)
	require.NoError(t, err)
	assert.Equal(t, 1.0, calc.Factor())
}

func TestCalculator_ScalingDisabledIgnoresBeta(t *testing.T) {
	params := DefaultParams()
	params.Beta = 2.5

	calc, err := NewCalculator(params)
	require.NoError(t, err)

	th, err := calc.Effective(ProfileNone, Counters{})
	require.NoError(t, err)
	assert.Equal(t, params.GridIntervalPercent, th.GridIntervalPercent)
}

func TestCalculator_ZeroStaysZero(t *testing.T) {
	params := Params{
		LotSizeUSD:                             1000,
		MaxLots:                                5,
		GridIntervalPercent:                    0,
		ProfitRequirement:                      0,
		StopLossPercent:                        0,
		TrailingBuyActivationPercent:           0,
		TrailingBuyReboundPercent:              0,
		TrailingSellActivationPercent:          0,
		TrailingSellPullbackPercent:            0,
		GridConsecutiveIncrement:               0.05,
		EnableConsecutiveIncrementalBuyGrid:    true,
		EnableConsecutiveIncrementalSellProfit: true,
		Beta:                                   2.5,
		Coefficient:                            3,
		EnableBetaScaling:                      true,
	}
	calc, err := NewCalculator(params)
	require.NoError(t, err)

	for _, profile := range []Profile{ProfileNone, ProfileConservative, ProfileAggressive} {
		t.Run(string(profile), func(t *testing.T) {
			th, err := calc.Effective(profile, Counters{ConsecutiveBuys: 4, ConsecutiveSells: 3})
			require.NoError(t, err)

			assert.Equal(t, Thresholds{}, th)
		})
	}
}

func TestCalculator_ProfileOverridesScaledValues(t *testing.T) {
	params := DefaultParams()
	params.EnableBetaScaling = true
	params.Beta = 2

	calc, err := NewCalculator(params)
	require.NoError(t, err)

	th, err := calc.Effective(ProfileAggressive, Counters{})
	require.NoError(t, err)

	assert.Equal(t, 0.0, th.TrailingBuyActivationPercent)
	assert.Equal(t, 0.05, th.TrailingBuyReboundPercent)
	assert.Equal(t, 0.20, th.ProfitRequirement)
	assert.Equal(t, 0.20, th.TrailingSellActivationPercent)
	assert.Equal(t, 0.20, th.TrailingSellPullbackPercent)

	// grid and stop loss are not part of a profile
	assert.InDelta(t, 0.20, th.GridIntervalPercent, 1e-12)
	assert.InDelta(t, 0.60, th.StopLossPercent, 1e-12)
}

func TestCalculator_ConsecutiveBuyGrid(t *testing.T) {
	params := DefaultParams()
	params.EnableConsecutiveIncrementalBuyGrid = true

	calc, err := NewCalculator(params)
	require.NoError(t, err)

	tests := []struct {
		buys     int
		expected float64
	}{
		{0, 0.10},
		{1, 0.15},
		{3, 0.25},
	}
	for _, tt := range tests {
		th, err := calc.Effective(ProfileNone, Counters{ConsecutiveBuys: tt.buys})
		require.NoError(t, err)
		assert.InDelta(t, tt.expected, th.GridIntervalPercent, 1e-12, "buys=%d", tt.buys)
	}
}

func TestCalculator_ConsecutiveSellIncrement(t *testing.T) {
	params := DefaultParams()
	params.EnableConsecutiveIncrementalSellProfit = true

	calc, err := NewCalculator(params)
	require.NoError(t, err)

	th, err := calc.Effective(ProfileNone, Counters{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, th.SellProfitIncrement)

	th, err = calc.Effective(ProfileNone, Counters{ConsecutiveSells: 1})
	require.NoError(t, err)
	assert.Equal(t, 0.05, th.SellProfitIncrement)

	th, err = calc.Effective(ProfileNone, Counters{ConsecutiveSells: 40})
	require.NoError(t, err)
	assert.Equal(t, DefaultConsecutiveSellProfitCap, th.SellProfitIncrement)
}

func TestCalculator_MomentumForcesActivationToZero(t *testing.T) {
	params := DefaultParams()
	params.MomentumBasedBuy = true
	params.MomentumBasedSell = true

	calc, err := NewCalculator(params)
	require.NoError(t, err)

	th, err := calc.Effective(ProfileConservative, Counters{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, th.TrailingBuyActivationPercent)
	assert.Equal(t, 0.0, th.TrailingSellActivationPercent)
	assert.Equal(t, 0.10, th.TrailingBuyReboundPercent)
}

func TestCalculator_NonFiniteThresholdIsInvariantViolation(t *testing.T) {
	calc := &Calculator{params: plainParams().withDefaults(), factor: math.Inf(1)}

	_, err := calc.Effective(ProfileNone, Counters{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariantViolation)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}
