// Package portfolio runs several symbols in lock-step against one shared cash
// pool.
package portfolio

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Holding is one symbol's input to a portfolio run
type Holding struct {
	Symbol string                `json:"symbol"`
	Params backtest.Params       `json:"params"`
	Prices []backtest.PricePoint `json:"-"`
}

// Config describes a portfolio run
type Config struct {
	TotalCapital float64   `json:"totalCapital"`
	Holdings     []Holding `json:"holdings"`
}

// Point is the end-of-day state of the whole portfolio
type Point struct {
	Date  time.Time `json:"date"`
	Cash  float64   `json:"cash"`
	Value float64   `json:"value"`
}

// Result is the outcome of a portfolio run
type Result struct {
	StartingCapital float64            `json:"startingCapital"`
	FinalCash       float64            `json:"finalCash"`
	FinalValue      float64            `json:"finalValue"`
	TotalReturn     float64            `json:"totalReturn"`
	MaxDrawdown     float64            `json:"maxDrawdown"`
	CapitalRejected int                `json:"capitalRejected"`
	Symbols         []*backtest.Result `json:"symbols"`
	Curve           []Point            `json:"curve"`
}

// cashTolerance absorbs float rounding of transaction values
var cashTolerance = decimal.New(-1, -6)

// Runner drives sessions day by day
type Runner struct {
	log zerolog.Logger
}

// NewRunner creates a portfolio runner
func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{log: log.With().Str("component", "portfolio").Logger()}
}

type member struct {
	symbol  string
	session *backtest.Session
	lot     float64
	byDate  map[time.Time]backtest.PricePoint
	last    float64
	started bool
}

// Run processes every date present in any holding's series. On each date
// all symbols trading that day run their sell half first and the proceeds
// return to the pool; then each runs its buy half, allowed only while the
// pool can pay for a full lot.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if !(cfg.TotalCapital > 0) {
		return nil, fmt.Errorf("%w: totalCapital must be positive, got %g", backtest.ErrInvalidConfig, cfg.TotalCapital)
	}
	if len(cfg.Holdings) == 0 {
		return nil, fmt.Errorf("%w: portfolio has no holdings", backtest.ErrInvalidConfig)
	}

	members := make([]*member, 0, len(cfg.Holdings))
	dateSet := map[time.Time]struct{}{}
	seen := map[string]bool{}
	for _, h := range cfg.Holdings {
		if seen[h.Symbol] {
			return nil, fmt.Errorf("%w: duplicate symbol %s", backtest.ErrInvalidConfig, h.Symbol)
		}
		seen[h.Symbol] = true

		if err := backtest.ValidatePrices(h.Prices); err != nil {
			return nil, fmt.Errorf("%s: %w", h.Symbol, err)
		}
		s, err := backtest.NewSession(h.Symbol, h.Params, backtest.WithLogger(r.log))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", h.Symbol, err)
		}
		m := &member{
			symbol:  h.Symbol,
			session: s,
			lot:     s.Params().LotSizeUSD,
			byDate:  make(map[time.Time]backtest.PricePoint, len(h.Prices)),
		}
		for _, p := range h.Prices {
			d := p.Date.UTC().Truncate(24 * time.Hour)
			m.byDate[d] = p
			dateSet[d] = struct{}{}
		}
		members = append(members, m)
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	cash := decimal.NewFromFloat(cfg.TotalCapital)
	res := &Result{StartingCapital: cfg.TotalCapital}

	for i, d := range dates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("portfolio run stopped after %d of %d dates: %w", i, len(dates), err)
		}

		var active []*member
		for _, m := range members {
			p, ok := m.byDate[d]
			if !ok {
				continue
			}
			day, err := m.session.BeginDay(p)
			if err != nil {
				return nil, err
			}
			cash = cash.Add(flow(day.Transactions))
			m.last = p.Close
			m.started = true
			active = append(active, m)
		}

		for _, m := range active {
			cost := backtest.SharesForAmount(m.lot, m.last).Mul(decimal.NewFromFloat(m.last))
			available := cash.GreaterThanOrEqual(cost)

			day, err := m.session.FinishDay(available)
			if err != nil {
				return nil, err
			}
			if day.BuyRejection == backtest.RejectCapitalUnavailable {
				res.CapitalRejected++
			}
			// Sells in the day result were credited in the first pass
			cash = cash.Add(flow(buys(day.Transactions)))
			if cash.LessThan(cashTolerance) {
				return nil, fmt.Errorf("%w: cash pool went negative (%s) on %s",
					backtest.ErrInvariantViolation, cash.StringFixed(2), d.Format("2006-01-02"))
			}
		}

		value := cash
		for _, m := range members {
			if m.started {
				value = value.Add(m.session.Ledger().MarketValue(m.last))
			}
		}
		res.Curve = append(res.Curve, Point{Date: d, Cash: cash.InexactFloat64(), Value: value.InexactFloat64()})
	}

	for _, m := range members {
		res.Symbols = append(res.Symbols, m.session.Result())
	}
	res.FinalCash = cash.InexactFloat64()
	if n := len(res.Curve); n > 0 {
		res.FinalValue = res.Curve[n-1].Value
	}
	res.TotalReturn = (res.FinalValue - cfg.TotalCapital) / cfg.TotalCapital
	res.MaxDrawdown = drawdown(res.Curve)

	r.log.Info().
		Int("symbols", len(members)).
		Int("dates", len(dates)).
		Float64("final_value", res.FinalValue).
		Float64("total_return", res.TotalReturn).
		Msg("Portfolio run completed")

	return res, nil
}

func buys(day []backtest.Transaction) []backtest.Transaction {
	var out []backtest.Transaction
	for _, tx := range day {
		if tx.Type == backtest.TransactionBuy {
			out = append(out, tx)
		}
	}
	return out
}

func flow(txs []backtest.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		v := decimal.NewFromFloat(tx.Value)
		if tx.Type == backtest.TransactionBuy {
			total = total.Sub(v)
		} else {
			total = total.Add(v)
		}
	}
	return total
}

func drawdown(curve []Point) float64 {
	var peak, worst float64
	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			if dd := (peak - p.Value) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
