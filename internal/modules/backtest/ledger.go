package backtest

import (
	"time"

	"github.com/shopspring/decimal"
)

// sharePrecision is the number of decimal places kept for fractional shares
const sharePrecision = 8

// Lot is one open purchase batch
type Lot struct {
	Seq    int
	Date   time.Time
	Price  decimal.Decimal
	Shares decimal.Decimal
}

// CostBasis returns price × shares for the remaining shares of the lot.
func (l Lot) CostBasis() decimal.Decimal {
	return l.Price.Mul(l.Shares)
}

// Ledger holds the open lots of one symbol in purchase order.
//
// All share and money arithmetic is done in decimals so that repeated
// partial disposals never drift. Derived values (average cost, lowest
// held price) are recomputed from the open lots on every call.
type Ledger struct {
	lots     []Lot
	realized decimal.Decimal
	nextSeq  int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{nextSeq: 1}
}

// SharesForAmount converts a dollar amount into a share quantity at price.
func SharesForAmount(amount, price float64) decimal.Decimal {
	return decimal.NewFromFloat(amount).DivRound(decimal.NewFromFloat(price), sharePrecision)
}

// AddLot appends an open lot and returns it.
func (l *Ledger) AddLot(price, shares decimal.Decimal, date time.Time) (Lot, error) {
	if !price.IsPositive() || !shares.IsPositive() {
		return Lot{}, invariantError("lot requires positive price and shares, got price=%s shares=%s", price, shares)
	}

	lot := Lot{Seq: l.nextSeq, Date: date, Price: price, Shares: shares}
	l.nextSeq++
	l.lots = append(l.lots, lot)
	return lot, nil
}

// DisposeShares removes shares from the oldest lots first and returns the
// cost basis of what was removed. A partially used lot keeps its remainder.
func (l *Ledger) DisposeShares(shares decimal.Decimal) (decimal.Decimal, error) {
	if !shares.IsPositive() {
		return decimal.Zero, invariantError("dispose requires positive shares, got %s", shares)
	}
	held := l.TotalShares()
	if shares.GreaterThan(held) {
		return decimal.Zero, invariantError("cannot dispose %s shares, only %s held", shares, held)
	}

	remaining := shares
	basis := decimal.Zero
	consumed := 0
	for i := range l.lots {
		if remaining.IsZero() {
			break
		}
		lot := &l.lots[i]
		if lot.Shares.LessThanOrEqual(remaining) {
			basis = basis.Add(lot.CostBasis())
			remaining = remaining.Sub(lot.Shares)
			consumed++
			continue
		}
		basis = basis.Add(lot.Price.Mul(remaining))
		lot.Shares = lot.Shares.Sub(remaining)
		remaining = decimal.Zero
	}
	l.lots = append([]Lot(nil), l.lots[consumed:]...)

	return basis, nil
}

// RealizeSale disposes shares FIFO at price and books the profit or loss.
// It returns the disposed cost basis and the realized P&L of this sale.
func (l *Ledger) RealizeSale(shares decimal.Decimal, price float64) (decimal.Decimal, decimal.Decimal, error) {
	basis, err := l.DisposeShares(shares)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	pnl := shares.Mul(decimal.NewFromFloat(price)).Sub(basis)
	l.realized = l.realized.Add(pnl)
	return basis, pnl, nil
}

// TotalShares returns the sum of shares across open lots.
func (l *Ledger) TotalShares() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		total = total.Add(lot.Shares)
	}
	return total
}

// CostBasis returns the total cost of the open lots.
func (l *Ledger) CostBasis() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		total = total.Add(lot.CostBasis())
	}
	return total
}

// AverageCost returns the share-weighted purchase price of the open lots.
// ok is false when no lot is open.
func (l *Ledger) AverageCost() (float64, bool) {
	shares := l.TotalShares()
	if shares.IsZero() {
		return 0, false
	}
	return l.CostBasis().Div(shares).InexactFloat64(), true
}

// LowestHeldPrice returns the lowest purchase price among open lots.
// ok is false when no lot is open.
func (l *Ledger) LowestHeldPrice() (float64, bool) {
	if len(l.lots) == 0 {
		return 0, false
	}
	lowest := l.lots[0].Price
	for _, lot := range l.lots[1:] {
		if lot.Price.LessThan(lowest) {
			lowest = lot.Price
		}
	}
	return lowest.InexactFloat64(), true
}

// MarketValue returns the value of all open shares at price.
func (l *Ledger) MarketValue(price float64) decimal.Decimal {
	return l.TotalShares().Mul(decimal.NewFromFloat(price))
}

// UnrealizedPNL returns market value minus cost basis at price.
func (l *Ledger) UnrealizedPNL(price float64) decimal.Decimal {
	return l.MarketValue(price).Sub(l.CostBasis())
}

// RealizedPNL returns the accumulated P&L of all sales.
func (l *Ledger) RealizedPNL() decimal.Decimal {
	return l.realized
}

// OldestLot returns the first open lot in disposal order.
func (l *Ledger) OldestLot() (Lot, bool) {
	if len(l.lots) == 0 {
		return Lot{}, false
	}
	return l.lots[0], true
}

// Lots returns a copy of the open lots in disposal order.
func (l *Ledger) Lots() []Lot {
	out := make([]Lot, len(l.lots))
	copy(out, l.lots)
	return out
}

// Len returns the number of open lots.
func (l *Ledger) Len() int {
	return len(l.lots)
}

// Empty reports whether no lot is open.
func (l *Ledger) Empty() bool {
	return len(l.lots) == 0
}
