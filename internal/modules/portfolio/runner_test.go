package portfolio

import (
	"context"
	"testing"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
	testingpkg "github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner() *Runner {
	return NewRunner(zerolog.New(nil).Level(zerolog.Disabled))
}

func holding(symbol string, closes ...float64) Holding {
	return Holding{
		Symbol: symbol,
		Params: testingpkg.NewTestParams(),
		Prices: testingpkg.NewPriceSeries(testingpkg.FixtureStart, closes...),
	}
}

func TestRun_SellProceedsFundLaterBuys(t *testing.T) {
	cfg := Config{
		TotalCapital: 1000,
		Holdings: []Holding{
			holding("AAA", 100, 90, 100),
			holding("BBB", 100, 90, 90),
		},
	}

	res, err := newTestRunner().Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, res.Symbols, 2)

	a, b := res.Symbols[0], res.Symbols[1]

	// Day 2: AAA takes the only lot the pool can pay for
	require.Len(t, a.Transactions, 2)
	assert.Equal(t, backtest.TransactionBuy, a.Transactions[0].Type)
	assert.Equal(t, backtest.TransactionSell, a.Transactions[1].Type)
	assert.Equal(t, 1, b.Summary.RejectedBuys.CapitalUnavailable)
	assert.Equal(t, 1, res.CapitalRejected)

	// Day 3: AAA's sale returns cash that BBB spends the same day
	require.Len(t, b.Transactions, 1)
	assert.Equal(t, backtest.TransactionBuy, b.Transactions[0].Type)
	assert.Equal(t, a.Transactions[1].Date, b.Transactions[0].Date)

	assert.InDelta(t, 111.11, res.FinalCash, 0.01)
	assert.InDelta(t, 1111.11, res.FinalValue, 0.01)
	assert.InDelta(t, 0.1111, res.TotalReturn, 0.0001)
	require.Len(t, res.Curve, 3)
	assert.InDelta(t, 1000, res.Curve[0].Value, 1e-9)
}

func TestRun_UnionOfCalendars(t *testing.T) {
	early := holding("EARLY", 100, 101, 102)
	late := holding("LATE", 50, 51, 52)
	for i := range late.Prices {
		late.Prices[i].Date = late.Prices[i].Date.AddDate(0, 0, 1)
	}

	res, err := newTestRunner().Run(context.Background(), Config{
		TotalCapital: 5000,
		Holdings:     []Holding{early, late},
	})
	require.NoError(t, err)

	assert.Len(t, res.Curve, 4)
	assert.Equal(t, 3, res.Symbols[0].Summary.Days)
	assert.Equal(t, 3, res.Symbols[1].Summary.Days)
	assert.Equal(t, 5000.0, res.FinalCash)
}

func TestRun_CashConservation(t *testing.T) {
	wave := func(symbol string, base, amp float64) Holding {
		return Holding{
			Symbol: symbol,
			Params: testingpkg.NewTestParams(),
			Prices: testingpkg.NewWaveSeries(200, base, amp, 0),
		}
	}
	cfg := Config{
		TotalCapital: 2000,
		Holdings: []Holding{
			wave("A", 100, 0.25),
			wave("B", 40, 0.3),
			wave("C", 250, 0.2),
		},
	}

	res, err := newTestRunner().Run(context.Background(), cfg)
	require.NoError(t, err)

	cash := cfg.TotalCapital
	var held float64
	for _, r := range res.Symbols {
		for _, tx := range r.Transactions {
			if tx.Type == backtest.TransactionBuy {
				cash -= tx.Value
			} else {
				cash += tx.Value
			}
		}
		held += r.Summary.SharesHeld * r.Summary.FinalPrice
	}
	assert.InDelta(t, cash, res.FinalCash, 1e-6)
	assert.InDelta(t, res.FinalCash+held, res.FinalValue, 1e-6)

	for _, p := range res.Curve {
		assert.GreaterOrEqual(t, p.Cash, -1e-6)
	}
	assert.Positive(t, res.CapitalRejected)
}

func TestRun_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no capital", Config{TotalCapital: 0, Holdings: []Holding{holding("A", 1, 2)}}},
		{"no holdings", Config{TotalCapital: 1000}},
		{"duplicate symbol", Config{TotalCapital: 1000, Holdings: []Holding{holding("A", 1, 2), holding("A", 3, 4)}}},
		{"empty series", Config{TotalCapital: 1000, Holdings: []Holding{{Symbol: "A", Params: testingpkg.NewTestParams()}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestRunner().Run(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, backtest.ErrInvalidConfig)
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRunner().Run(ctx, Config{TotalCapital: 1000, Holdings: []Holding{holding("A", 1, 2)}})
	assert.ErrorIs(t, err, context.Canceled)
}
