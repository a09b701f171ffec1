package backtest

import (
	"math"

	"github.com/shopspring/decimal"
)

// sellPhase runs stop loss and the sell machine for the pending day.
func (s *Session) sellPhase() error {
	pd := s.pending
	th := pd.thresholds
	price := pd.point.Close

	if s.ledger.Empty() {
		s.sellStop.Track(price, th.TrailingSellActivationPercent, th.TrailingSellPullbackPercent)
		return nil
	}

	if th.StopLossPercent > 0 {
		avg, _ := s.ledger.AverageCost()
		if atOrBelow(price, avg*(1-th.StopLossPercent)) {
			if err := s.sell(pd, s.ledger.TotalShares(), RuleStopLoss); err != nil {
				return err
			}
			s.sellStop.Reset(price)
			return nil
		}
	}

	if !s.sellStop.Advance(price, th.TrailingSellActivationPercent, th.TrailingSellPullbackPercent) {
		return nil
	}

	rule, ok := s.sellAllowed(price, th)
	if !ok {
		s.sellStop.Hold()
		return nil
	}

	shares := s.ledger.TotalShares()
	if !s.params.MomentumBasedSell {
		oldest, _ := s.ledger.OldestLot()
		shares = oldest.Shares
	}
	if err := s.sell(pd, shares, rule); err != nil {
		return err
	}
	s.sellStop.Executed(price)
	return nil
}

// sellAllowed applies the sell guards and names the rule that would fire.
func (s *Session) sellAllowed(price float64, th Thresholds) (Rule, bool) {
	avg, ok := s.ledger.AverageCost()
	if !ok {
		return "", false
	}
	if !atOrAbove(price, avg*(1+th.ProfitRequirement)) {
		return "", false
	}

	if s.params.MomentumBasedSell {
		return RuleMomentumSell, true
	}

	rule := RuleTrailingSell
	if th.TrailingSellActivationPercent == 0 && th.TrailingSellPullbackPercent == 0 {
		rule = RuleProfitSell
	}

	if s.counters.ConsecutiveSells == 0 {
		return rule, true
	}

	last := s.counters.LastSellPrice
	if step := s.gridStep(last, th); step > 0 && math.Abs(price-last) < step*(1-priceTolerance) {
		return "", false
	}

	if s.params.EnableConsecutiveIncrementalSellProfit && price > last {
		lowest, _ := s.ledger.LowestHeldPrice()
		if !atOrAbove(price, lowest*(1+th.ProfitRequirement+th.SellProfitIncrement)) {
			return "", false
		}
		rule = RuleConsecutiveSell
	}
	return rule, true
}

// buyPhase runs the buy machine for a day whose sell phase has completed.
func (s *Session) buyPhase(pd *pendingDay, capitalAvailable bool) error {
	th := pd.thresholds
	price := pd.point.Close

	if !s.buyStop.Advance(price, th.TrailingBuyActivationPercent, th.TrailingBuyReboundPercent) {
		return nil
	}

	rule, reason, ok := s.buyAllowed(price, th, capitalAvailable)
	if !ok {
		s.buyStop.Hold()
		if reason != RejectNone {
			s.rejected.add(reason)
			pd.result.BuyRejection = reason
			s.diag.Log().
				Str("date", pd.point.Date.Format(dateLayout)).
				Float64("price", price).
				Str("reason", string(reason)).
				Msg("REJECT")
		}
		return nil
	}

	shares := SharesForAmount(s.params.LotSizeUSD, price)
	lot, err := s.ledger.AddLot(decimal.NewFromFloat(price), shares, pd.point.Date)
	if err != nil {
		return err
	}
	s.counters.recordBuy()
	if !s.params.NormalizeToReference {
		s.counters.GridAnchor = price
	}

	tx := Transaction{
		Seq:         len(s.transactions) + 1,
		Date:        pd.point.Date,
		Type:        TransactionBuy,
		Price:       price,
		Shares:      shares.InexactFloat64(),
		Value:       lot.CostBasis().InexactFloat64(),
		Rule:        rule,
		Thresholds:  th,
		Profile:     s.profile.Current(),
		LotsAfter:   s.ledger.Len(),
		Consecutive: s.counters.ConsecutiveBuys,
	}
	s.record(pd, tx)

	s.buyStop.Executed(price)
	s.sellStop.ResetIfIdle(price)
	return nil
}

// buyAllowed applies the buy guards in order. A failed grid check is not a
// rejection; the machine simply stays armed. Momentum buys are limited only
// by profitability and capital.
func (s *Session) buyAllowed(price float64, th Thresholds, capitalAvailable bool) (Rule, RejectionReason, bool) {
	if s.params.MomentumBasedBuy {
		if !s.ledger.Empty() && s.ledger.UnrealizedPNL(price).IsNegative() {
			return "", RejectProfitability, false
		}
		if !capitalAvailable {
			return "", RejectCapitalUnavailable, false
		}
		return RuleMomentumBuy, RejectNone, true
	}

	if !s.gridAllowsBuy(price, th) {
		return "", RejectNone, false
	}
	if s.ledger.Len() >= s.params.MaxLots {
		return "", RejectLotLimit, false
	}
	if !capitalAvailable {
		return "", RejectCapitalUnavailable, false
	}

	if th.TrailingBuyActivationPercent == 0 && th.TrailingBuyReboundPercent == 0 {
		return RuleGridBuy, RejectNone, true
	}
	return RuleTrailingBuy, RejectNone, true
}

// gridAllowsBuy requires a flat position to sit one grid step below the
// anchor, and an open position to sit one step below its lowest lot.
func (s *Session) gridAllowsBuy(price float64, th Thresholds) bool {
	g := th.GridIntervalPercent
	if g == 0 {
		return true
	}
	lowest, holding := s.ledger.LowestHeldPrice()
	if !holding {
		return atOrBelow(price, s.counters.GridAnchor*(1-g))
	}
	return atOrBelow(price, lowest-s.gridStep(lowest, th))
}

// gridStep is the price distance of one grid interval measured from base, or
// from the session's first close when normalizing.
func (s *Session) gridStep(base float64, th Thresholds) float64 {
	if s.params.NormalizeToReference {
		base = s.counters.Reference
	}
	return th.GridIntervalPercent * base
}

func (s *Session) sell(pd *pendingDay, shares decimal.Decimal, rule Rule) error {
	price := pd.point.Close
	basis, pnl, err := s.ledger.RealizeSale(shares, price)
	if err != nil {
		return err
	}
	s.counters.recordSell(price)
	if !s.params.NormalizeToReference {
		s.counters.GridAnchor = price
	}

	tx := Transaction{
		Seq:         len(s.transactions) + 1,
		Date:        pd.point.Date,
		Type:        TransactionSell,
		Price:       price,
		Shares:      shares.InexactFloat64(),
		Value:       shares.Mul(decimal.NewFromFloat(price)).InexactFloat64(),
		CostBasis:   basis.InexactFloat64(),
		RealizedPNL: pnl.InexactFloat64(),
		Rule:        rule,
		Thresholds:  pd.thresholds,
		Profile:     s.profile.Current(),
		LotsAfter:   s.ledger.Len(),
		Consecutive: s.counters.ConsecutiveSells,
	}
	s.record(pd, tx)

	s.buyStop.ResetIfIdle(price)
	return nil
}

func (s *Session) record(pd *pendingDay, tx Transaction) {
	s.transactions = append(s.transactions, tx)
	pd.result.Transactions = append(pd.result.Transactions, tx)

	ev := s.diag.Log().
		Int("seq", tx.Seq).
		Str("date", tx.Date.Format(dateLayout)).
		Str("rule", string(tx.Rule)).
		Float64("price", tx.Price).
		Str("shares", decimal.NewFromFloat(tx.Shares).StringFixed(4)).
		Int("lots", tx.LotsAfter)
	if tx.Type == TransactionSell {
		ev = ev.Str("pnl", decimal.NewFromFloat(tx.RealizedPNL).StringFixed(2))
	}
	ev.Msg(string(tx.Type))
}
