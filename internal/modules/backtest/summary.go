package backtest

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// tradingDaysPerYear annualizes daily return statistics
const tradingDaysPerYear = 252

// Summary is the performance report of a session
type Summary struct {
	Symbol    string `json:"symbol"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Days      int    `json:"days"`

	RealizedPNL   float64 `json:"realizedPnl"`
	UnrealizedPNL float64 `json:"unrealizedPnl"`
	TotalPNL      float64 `json:"totalPnl"`
	TotalReturn   float64 `json:"totalReturn"`
	MaxDrawdown   float64 `json:"maxDrawdown"`

	BuyAndHoldReturn float64 `json:"buyAndHoldReturn"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	Volatility       float64 `json:"volatility"`

	TotalBuys        int     `json:"totalBuys"`
	TotalSells       int     `json:"totalSells"`
	AverageBuyPrice  float64 `json:"averageBuyPrice"`
	AverageSellPrice float64 `json:"averageSellPrice"`

	LotsHeld           int     `json:"lotsHeld"`
	SharesHeld         float64 `json:"sharesHeld"`
	AverageCost        float64 `json:"averageCost,omitempty"`
	FinalPrice         float64 `json:"finalPrice"`
	MaxCapitalDeployed float64 `json:"maxCapitalDeployed"`

	RejectedBuys    RejectedBuys `json:"rejectedBuys"`
	FinalProfile    Profile      `json:"finalProfile"`
	ProfileSwitches int          `json:"profileSwitches"`
}

// Result is the complete output of a session
type Result struct {
	Symbol       string        `json:"symbol"`
	Params       Params        `json:"params"`
	Summary      Summary       `json:"summary"`
	Transactions []Transaction `json:"transactions"`
	EquityCurve  []EquityPoint `json:"equityCurve"`
	Log          string        `json:"log,omitempty"`
}

func (s *Session) summarize() Summary {
	sum := Summary{
		Symbol:          s.symbol,
		Days:            s.day,
		RejectedBuys:    s.rejected,
		FinalProfile:    s.profile.Current(),
		ProfileSwitches: s.profile.Switches(),
		LotsHeld:        s.ledger.Len(),
		SharesHeld:      s.ledger.TotalShares().InexactFloat64(),
	}
	if s.day == 0 {
		return sum
	}

	sum.StartDate = s.first.Date.Format(dateLayout)
	sum.EndDate = s.last.Date.Format(dateLayout)
	sum.FinalPrice = s.last.Close

	realized := s.ledger.RealizedPNL()
	unrealized := s.ledger.UnrealizedPNL(s.last.Close)
	sum.RealizedPNL = realized.InexactFloat64()
	sum.UnrealizedPNL = unrealized.InexactFloat64()
	sum.TotalPNL = realized.Add(unrealized).InexactFloat64()
	if avg, ok := s.ledger.AverageCost(); ok {
		sum.AverageCost = avg
	}

	base := s.maxDeployed
	if base.IsZero() {
		base = decimal.NewFromFloat(s.params.LotSizeUSD)
	}
	sum.MaxCapitalDeployed = s.maxDeployed.InexactFloat64()
	sum.TotalReturn = realized.Add(unrealized).Div(base).InexactFloat64()
	sum.BuyAndHoldReturn = (s.last.Close - s.first.Close) / s.first.Close

	var buyValue, sellValue, buyShares, sellShares float64
	for _, tx := range s.transactions {
		if tx.Type == TransactionBuy {
			sum.TotalBuys++
			buyValue += tx.Value
			buyShares += tx.Shares
		} else {
			sum.TotalSells++
			sellValue += tx.Value
			sellShares += tx.Shares
		}
	}
	if buyShares > 0 {
		sum.AverageBuyPrice = buyValue / buyShares
	}
	if sellShares > 0 {
		sum.AverageSellPrice = sellValue / sellShares
	}

	capital := base.InexactFloat64()
	sum.MaxDrawdown = maxDrawdown(s.equity, capital)
	sum.SharpeRatio, sum.Volatility = riskStats(s.equity, capital)

	return sum
}

// equityValue is the capital base plus everything earned so far
func equityValue(p EquityPoint, capital float64) float64 {
	return capital + p.Realized + p.Unrealized
}

// maxDrawdown returns the largest peak-to-trough decline of the equity curve
// as a positive fraction of the peak.
func maxDrawdown(curve []EquityPoint, capital float64) float64 {
	var peak, worst float64
	for i, p := range curve {
		v := equityValue(p, capital)
		if i == 0 || v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

// riskStats returns the annualized Sharpe ratio (zero risk-free rate) and
// annualized volatility of daily equity returns.
func riskStats(curve []EquityPoint, capital float64) (float64, float64) {
	if len(curve) < 3 {
		return 0, 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := equityValue(curve[i-1], capital)
		if prev <= 0 {
			continue
		}
		returns = append(returns, equityValue(curve[i], capital)/prev-1)
	}
	if len(returns) < 2 {
		return 0, 0
	}

	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0, 0
	}
	annual := math.Sqrt(tradingDaysPerYear)
	return mean / std * annual, std * annual
}
