package sweep

import (
	"context"
	"testing"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
	testingpkg "github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestRunner_RunsAndRanks(t *testing.T) {
	prices := testingpkg.NewWaveSeries(250, 100, 0.2, 0.02)
	g := Grid{
		GridIntervalPercent: []float64{0.05, 0.10, 0.15},
		ProfitRequirement:   []float64{0.05, 0.10},
	}
	combos, err := g.Combinations(testingpkg.NewTestParams())
	require.NoError(t, err)

	var updates []Progress
	r := NewRunner(3, quietLogger())
	report, err := r.Run(context.Background(), "WAVE", prices, combos, func(p Progress) {
		updates = append(updates, p)
	})
	require.NoError(t, err)

	assert.Equal(t, 6, report.Total)
	assert.Len(t, report.Ranked, 6)
	assert.Empty(t, report.Failed)

	require.Len(t, updates, 6)
	for i, u := range updates {
		assert.Equal(t, i+1, u.Done)
		assert.Equal(t, 6, u.Total)
	}

	for i := 1; i < len(report.Ranked); i++ {
		prev, cur := report.Ranked[i-1].Summary, report.Ranked[i].Summary
		assert.GreaterOrEqual(t, prev.TotalReturn, cur.TotalReturn)
	}

	best, ok := report.Best()
	require.True(t, ok)
	require.NotNil(t, best.Result())
	assert.Equal(t, best.Summary.TotalReturn, best.Result().Summary.TotalReturn)
}

func TestRunner_MatchesSequentialRuns(t *testing.T) {
	prices := testingpkg.NewWaveSeries(120, 50, 0.15, 0)
	combos, err := Grid{GridIntervalPercent: []float64{0.04, 0.08}}.Combinations(testingpkg.NewTestParams())
	require.NoError(t, err)

	report, err := NewRunner(2, quietLogger()).Run(context.Background(), "X", prices, combos, nil)
	require.NoError(t, err)

	for _, o := range report.Ranked {
		res, err := backtest.Run(context.Background(), "X", prices, combos[o.Index])
		require.NoError(t, err)
		assert.Equal(t, res.Summary, *o.Summary, "combination %d", o.Index)
	}
}

func TestRunner_ReportsFailedCombinations(t *testing.T) {
	prices := testingpkg.NewWaveSeries(60, 100, 0.1, 0)
	good := testingpkg.NewTestParams()
	bad := good
	bad.LotSizeUSD = -1

	report, err := NewRunner(2, quietLogger()).Run(context.Background(), "X", prices, []backtest.Params{good, bad}, nil)
	require.NoError(t, err)

	assert.Len(t, report.Ranked, 1)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 1, report.Failed[0].Index)
	assert.Contains(t, report.Failed[0].Error, "lotSizeUsd")
	assert.Nil(t, report.Failed[0].Summary)
}

func TestRunner_Cancelled(t *testing.T) {
	prices := testingpkg.NewWaveSeries(60, 100, 0.1, 0)
	combos, err := Grid{GridIntervalPercent: []float64{0.05, 0.1}}.Combinations(testingpkg.NewTestParams())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewRunner(1, quietLogger()).Run(ctx, "X", prices, combos, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_DefaultWorkers(t *testing.T) {
	r := NewRunner(0, quietLogger())
	assert.Positive(t, r.Workers())
}

func TestRank_TieBreaks(t *testing.T) {
	outcomes := []Outcome{
		{Index: 0, Summary: &backtest.Summary{TotalReturn: 0.1, MaxDrawdown: 0.2}},
		{Index: 1, Summary: &backtest.Summary{TotalReturn: 0.2, MaxDrawdown: 0.3}},
		{Index: 2, Summary: &backtest.Summary{TotalReturn: 0.1, MaxDrawdown: 0.1}},
		{Index: 3, Summary: &backtest.Summary{TotalReturn: 0.1, MaxDrawdown: 0.1}},
	}
	Rank(outcomes)

	var order []int
	for _, o := range outcomes {
		order = append(order, o.Index)
	}
	assert.Equal(t, []int{1, 2, 3, 0}, order)
}
