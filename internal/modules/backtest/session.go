package backtest

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Option configures a Session
type Option func(*Session)

// WithLogger sets the structured logger used for lifecycle events.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) {
		s.log = log.With().Str("component", "backtest").Str("symbol", s.symbol).Logger()
	}
}

// WithoutDiagnosticLog disables the human-readable per-day log.
func WithoutDiagnosticLog() Option {
	return func(s *Session) {
		s.diagnostics = nil
	}
}

// Session runs one symbol under one parameter set. It is not safe for
// concurrent use; independent sessions share nothing.
type Session struct {
	symbol string
	params Params

	calc     *Calculator
	ledger   *Ledger
	buyStop  *TrailingStop
	sellStop *TrailingStop
	profile  *ProfileController
	counters Counters

	transactions []Transaction
	equity       []EquityPoint
	rejected     RejectedBuys
	maxDeployed  decimal.Decimal

	day      int
	first    PricePoint
	last     PricePoint
	pending  *pendingDay
	finished bool

	log         zerolog.Logger
	diagnostics *bytes.Buffer
	diag        zerolog.Logger
}

// pendingDay holds the state of a day between BeginDay and FinishDay
type pendingDay struct {
	point      PricePoint
	thresholds Thresholds
	result     DayResult
}

// NewSession validates params and creates a session at day zero.
func NewSession(symbol string, params Params, opts ...Option) (*Session, error) {
	params = params.withDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	calc, err := NewCalculator(params)
	if err != nil {
		return nil, err
	}

	s := &Session{
		symbol:      symbol,
		params:      params,
		calc:        calc,
		ledger:      NewLedger(),
		buyStop:     NewTrailingStop(SideBuy),
		sellStop:    NewTrailingStop(SideSell),
		profile:     NewProfileController(params.EnableDynamicProfile),
		maxDeployed: decimal.Zero,
		log:         zerolog.Nop(),
		diagnostics: &bytes.Buffer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.diagnostics != nil {
		s.diag = logger.NewBuffered(s.diagnostics)
	} else {
		s.diag = zerolog.Nop()
	}

	s.log.Debug().
		Float64("lot_size", params.LotSizeUSD).
		Int("max_lots", params.MaxLots).
		Float64("beta_factor", calc.Factor()).
		Msg("Session created")

	return s, nil
}

// Symbol returns the instrument this session trades.
func (s *Session) Symbol() string {
	return s.symbol
}

// Params returns the effective parameters including defaults.
func (s *Session) Params() Params {
	return s.params
}

// Ledger exposes the open lots for inspection. Callers must not mutate it.
func (s *Session) Ledger() *Ledger {
	return s.ledger
}

// Counters returns a copy of the consecutive-trade state.
func (s *Session) Counters() Counters {
	return s.counters
}

// Profile returns the active profile.
func (s *Session) Profile() Profile {
	return s.profile.Current()
}

// Days returns the number of completed days.
func (s *Session) Days() int {
	return s.day
}

// Step processes one complete day. capitalAvailable gates buys only.
func (s *Session) Step(point PricePoint, capitalAvailable bool) (DayResult, error) {
	if _, err := s.BeginDay(point); err != nil {
		return DayResult{}, err
	}
	return s.FinishDay(capitalAvailable)
}

// BeginDay runs the first half of a day: position status, the profile
// controller, stop loss and the sell machine. Sell proceeds are visible in
// the returned result before any buy is evaluated, so a portfolio can pool
// them across symbols before calling FinishDay.
func (s *Session) BeginDay(point PricePoint) (DayResult, error) {
	if s.pending != nil {
		return DayResult{}, s.abort(point, invariantError("day %s begun before previous day finished", point.Date.Format(dateLayout)))
	}
	if !finite(point.Close) || point.Close <= 0 {
		return DayResult{}, configError("close on %s must be positive, got %g", point.Date.Format(dateLayout), point.Close)
	}
	if s.day > 0 && !point.Date.After(s.last.Date) {
		return DayResult{}, configError("price dates must be strictly ascending: %s follows %s",
			point.Date.Format(dateLayout), s.last.Date.Format(dateLayout))
	}

	price := point.Close
	if s.day == 0 {
		s.first = point
		s.counters.Reference = price
		s.counters.GridAnchor = price
	}

	status := s.positionStatus(price)
	switched := s.profile.Observe(status)

	th, err := s.calc.Effective(s.profile.Current(), s.counters)
	if err != nil {
		return DayResult{}, s.abort(point, err)
	}

	if switched {
		buyCancelled := s.buyStop.Refresh(th.TrailingBuyActivationPercent, th.TrailingBuyReboundPercent, price)
		sellCancelled := s.sellStop.Refresh(th.TrailingSellActivationPercent, th.TrailingSellPullbackPercent, price)
		s.diag.Log().
			Str("date", point.Date.Format(dateLayout)).
			Str("profile", string(s.profile.Current())).
			Str("status", string(status)).
			Bool("buy_stop_cancelled", buyCancelled).
			Bool("sell_stop_cancelled", sellCancelled).
			Msg("PROFILE")
	}

	s.pending = &pendingDay{
		point:      point,
		thresholds: th,
		result: DayResult{
			Date:            point.Date,
			Close:           price,
			Status:          status,
			Profile:         s.profile.Current(),
			ProfileSwitched: switched,
			Thresholds:      th,
		},
	}

	if err := s.sellPhase(); err != nil {
		s.pending = nil
		return DayResult{}, s.abort(point, err)
	}

	s.pending.result.SellStop = s.sellStop.State()
	return s.pending.result, nil
}

// FinishDay runs the buy machine for the day started by BeginDay and
// commits the day.
func (s *Session) FinishDay(capitalAvailable bool) (DayResult, error) {
	if s.pending == nil {
		return DayResult{}, invariantError("no day in progress")
	}
	pd := s.pending
	s.pending = nil

	if err := s.buyPhase(pd, capitalAvailable); err != nil {
		return DayResult{}, s.abort(pd.point, err)
	}

	price := pd.point.Close
	if !s.params.NormalizeToReference && price > s.counters.GridAnchor {
		s.counters.GridAnchor = price
	}

	deployed := s.ledger.CostBasis()
	if deployed.GreaterThan(s.maxDeployed) {
		s.maxDeployed = deployed
	}
	s.equity = append(s.equity, EquityPoint{
		Date:       pd.point.Date,
		Close:      price,
		Realized:   s.ledger.RealizedPNL().InexactFloat64(),
		Unrealized: s.ledger.UnrealizedPNL(price).InexactFloat64(),
		Deployed:   deployed.InexactFloat64(),
		Lots:       s.ledger.Len(),
	})

	pd.result.BuyStop = s.buyStop.State()
	pd.result.SellStop = s.sellStop.State()
	s.last = pd.point
	s.day++

	return pd.result, nil
}

// Result summarizes the session so far.
func (s *Session) Result() *Result {
	res := &Result{
		Symbol:       s.symbol,
		Params:       s.params,
		Summary:      s.summarize(),
		Transactions: append([]Transaction(nil), s.transactions...),
		EquityCurve:  append([]EquityPoint(nil), s.equity...),
	}
	if s.diagnostics != nil {
		res.Log = s.diagnostics.String()
	}
	return res
}

// Run replays prices through a new session. The context is checked between
// days; a cancelled run returns no result.
func Run(ctx context.Context, symbol string, prices []PricePoint, params Params, opts ...Option) (*Result, error) {
	if err := ValidatePrices(prices); err != nil {
		return nil, err
	}
	s, err := NewSession(symbol, params, opts...)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	for i, p := range prices {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest of %s stopped after %d of %d days: %w", symbol, i, len(prices), err)
		}
		if _, err := s.Step(p, true); err != nil {
			return nil, err
		}
	}

	res := s.Result()
	s.log.Info().
		Int("days", len(prices)).
		Int("transactions", len(res.Transactions)).
		Float64("total_return", res.Summary.TotalReturn).
		Dur("duration", time.Since(start)).
		Msg("Backtest completed")

	return res, nil
}

func (s *Session) abort(point PricePoint, err error) error {
	ie := &InvariantError{Symbol: s.symbol, Day: s.day, Point: point, Err: err}
	s.log.Error().Err(err).Int("day", s.day).Str("date", point.Date.Format(dateLayout)).Msg("Backtest aborted")
	return ie
}

func (s *Session) positionStatus(price float64) PositionStatus {
	basis := s.ledger.CostBasis()
	if basis.IsZero() {
		return StatusFlat
	}
	fraction := s.ledger.UnrealizedPNL(price).Div(basis).InexactFloat64()
	return ClassifyPosition(fraction, true)
}
