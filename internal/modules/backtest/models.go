// Package backtest replays a daily price series through the DCA trading engine.
//
// A Session owns one symbol's lot ledger, both trailing-stop machines, the
// consecutive-trade counters and the profile controller. Days are processed
// strictly in order; nothing in this package is shared between sessions.
package backtest

import "time"

// PricePoint is one trading day of OHLCV data. The engine trades at Close.
type PricePoint struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjClose"`
	Volume   int64     `json:"volume"`
}

// TransactionType is the side of an executed trade
type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// Rule names the rule that triggered an execution
type Rule string

const (
	RuleGridBuy         Rule = "grid_buy"
	RuleTrailingBuy     Rule = "trailing_stop_buy"
	RuleMomentumBuy     Rule = "momentum_buy"
	RuleProfitSell      Rule = "profit_sell"
	RuleTrailingSell    Rule = "trailing_stop_sell"
	RuleConsecutiveSell Rule = "consecutive_incremental_sell"
	RuleMomentumSell    Rule = "momentum_sell"
	RuleStopLoss        Rule = "stop_loss"
)

// RejectionReason explains why a ready buy was not executed
type RejectionReason string

const (
	RejectNone               RejectionReason = ""
	RejectCapitalUnavailable RejectionReason = "capital_unavailable"
	RejectLotLimit           RejectionReason = "lot_limit"
	RejectProfitability      RejectionReason = "profitability"
)

// Thresholds holds the effective threshold values for one day
type Thresholds struct {
	GridIntervalPercent           float64 `json:"gridIntervalPercent"`
	ProfitRequirement             float64 `json:"profitRequirement"`
	StopLossPercent               float64 `json:"stopLossPercent"`
	TrailingBuyActivationPercent  float64 `json:"trailingBuyActivationPercent"`
	TrailingBuyReboundPercent     float64 `json:"trailingBuyReboundPercent"`
	TrailingSellActivationPercent float64 `json:"trailingSellActivationPercent"`
	TrailingSellPullbackPercent   float64 `json:"trailingSellPullbackPercent"`

	// SellProfitIncrement is the bounded-sequence margin added to rising consecutive sells
	SellProfitIncrement float64 `json:"sellProfitIncrement"`
}

// Transaction is an immutable record of one execution
type Transaction struct {
	Seq         int             `json:"seq"`
	Date        time.Time       `json:"date"`
	Type        TransactionType `json:"type"`
	Price       float64         `json:"price"`
	Shares      float64         `json:"shares"`
	Value       float64         `json:"value"`
	CostBasis   float64         `json:"costBasis,omitempty"`
	RealizedPNL float64         `json:"realizedPnl,omitempty"`
	Rule        Rule            `json:"rule"`
	Thresholds  Thresholds      `json:"thresholds"`
	Profile     Profile         `json:"profile"`
	LotsAfter   int             `json:"lotsAfter"`
	Consecutive int             `json:"consecutive"`
}

// RejectedBuys counts ready buys that were blocked, split by reason
type RejectedBuys struct {
	CapitalUnavailable int `json:"capitalUnavailable"`
	LotLimit           int `json:"lotLimit"`
	Profitability      int `json:"profitability"`
}

func (r *RejectedBuys) add(reason RejectionReason) {
	switch reason {
	case RejectCapitalUnavailable:
		r.CapitalUnavailable++
	case RejectLotLimit:
		r.LotLimit++
	case RejectProfitability:
		r.Profitability++
	}
}

// Total returns the number of rejected buys across all reasons
func (r RejectedBuys) Total() int {
	return r.CapitalUnavailable + r.LotLimit + r.Profitability
}

// EquityPoint is the end-of-day state of a session
type EquityPoint struct {
	Date       time.Time `json:"date"`
	Close      float64   `json:"close"`
	Realized   float64   `json:"realized"`
	Unrealized float64   `json:"unrealized"`
	Deployed   float64   `json:"deployed"`
	Lots       int       `json:"lots"`
}

// DayResult reports what happened on one processed day
type DayResult struct {
	Date            time.Time       `json:"date"`
	Close           float64         `json:"close"`
	Status          PositionStatus  `json:"status"`
	Profile         Profile         `json:"profile"`
	ProfileSwitched bool            `json:"profileSwitched"`
	Thresholds      Thresholds      `json:"thresholds"`
	Transactions    []Transaction   `json:"transactions,omitempty"`
	BuyRejection    RejectionReason `json:"buyRejection,omitempty"`
	BuyStop         StopState       `json:"buyStop"`
	SellStop        StopState       `json:"sellStop"`
}

// CashFlow returns the net cash effect of the day's executions: sell proceeds
// minus buy costs.
func (d DayResult) CashFlow() float64 {
	var flow float64
	for _, tx := range d.Transactions {
		if tx.Type == TransactionBuy {
			flow -= tx.Value
		} else {
			flow += tx.Value
		}
	}
	return flow
}

const dateLayout = "2006-01-02"
